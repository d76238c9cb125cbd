package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Session  SessionConfig  `mapstructure:"session"`
	Hospital HospitalConfig `mapstructure:"hospital"`
	OIDC     OIDCConfig     `mapstructure:"oidc"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Mail     MailConfig     `mapstructure:"mail"`
	Outbox   OutboxConfig   `mapstructure:"outbox"`
	Log      LogConfig      `mapstructure:"log"`
}

type ServerConfig struct {
	Port           int `mapstructure:"port"`
	TimeoutSeconds int `mapstructure:"timeoutSeconds"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	SSLMode  string `mapstructure:"sslmode"`

	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

type RedisConfig struct {
	URL string `mapstructure:"url"`
}

type SessionConfig struct {
	Store        string        `mapstructure:"store"`
	CookieName   string        `mapstructure:"cookie_name"`
	CookieDomain string        `mapstructure:"cookie_domain"`
	Secure       bool          `mapstructure:"secure"`
	TTL          time.Duration `mapstructure:"ttl"`
}

type HospitalConfig struct {
	MainDomain          string `mapstructure:"main_domain"`
	AllowTenantOverride bool   `mapstructure:"allow_tenant_override"`
	OverrideParam       string `mapstructure:"override_param"`
}

type OIDCConfig struct {
	Enabled            bool          `mapstructure:"enabled"`
	Issuer             string        `mapstructure:"issuer"`
	ClientID           string        `mapstructure:"client_id"`
	ClientSecret       string        `mapstructure:"client_secret"`
	RedirectURL        string        `mapstructure:"redirect_url"`
	AuthURL            string        `mapstructure:"auth_url"`
	TokenURL           string        `mapstructure:"token_url"`
	JWKSURL            string        `mapstructure:"jwks_url"`
	UserInfoURL        string        `mapstructure:"userinfo_url"`
	Scopes             []string      `mapstructure:"scopes"`
	StateSecret        string        `mapstructure:"state_secret"`
	RevalidateInterval time.Duration `mapstructure:"revalidate_interval"`
	Timeout            time.Duration `mapstructure:"timeout"`
}

type AuthConfig struct {
	PasswordLogin bool    `mapstructure:"password_login"`
	LoginRate     float64 `mapstructure:"login_rate"`
	LoginBurst    int     `mapstructure:"login_burst"`
	BcryptCost    int     `mapstructure:"bcrypt_cost"`
}

type MailConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
	BaseURL  string `mapstructure:"base_url"`
}

type OutboxConfig struct {
	BatchSize     int           `mapstructure:"batch_size"`
	PollInterval  time.Duration `mapstructure:"poll_interval"`
	RetryAttempts int           `mapstructure:"retry_attempts"`
	RetryDelay    time.Duration `mapstructure:"retry_delay"`
	Retention     time.Duration `mapstructure:"retention"`
	Channel       string        `mapstructure:"channel"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

// Secrets are deployment overrides read from CASEFLOW_* environment variables.
type Secrets struct {
	DBHost           string `envconfig:"DB_HOST"`
	DBPort           int    `envconfig:"DB_PORT"`
	DBPassword       string `envconfig:"DB_PASSWORD"`
	RedisURL         string `envconfig:"REDIS_URL"`
	OIDCClientSecret string `envconfig:"OIDC_CLIENT_SECRET"`
	StateSecret      string `envconfig:"STATE_SECRET"`
	SMTPPassword     string `envconfig:"SMTP_PASSWORD"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.timeoutSeconds", 30)
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 30*time.Minute)
	v.SetDefault("redis.url", "redis://localhost:6379/0")
	v.SetDefault("session.store", "redis")
	v.SetDefault("session.cookie_name", "caseflow_session")
	v.SetDefault("session.ttl", 12*time.Hour)
	v.SetDefault("hospital.override_param", "hospital")
	v.SetDefault("oidc.scopes", []string{"openid", "profile", "email", "groups"})
	v.SetDefault("oidc.revalidate_interval", 5*time.Minute)
	v.SetDefault("oidc.timeout", 5*time.Second)
	v.SetDefault("auth.password_login", true)
	v.SetDefault("auth.login_rate", 0.2)
	v.SetDefault("auth.login_burst", 5)
	v.SetDefault("auth.bcrypt_cost", 12)
	v.SetDefault("mail.port", 587)
	v.SetDefault("outbox.batch_size", 100)
	v.SetDefault("outbox.poll_interval", 5*time.Second)
	v.SetDefault("outbox.retry_attempts", 3)
	v.SetDefault("outbox.retry_delay", 2*time.Second)
	v.SetDefault("outbox.retention", 30*24*time.Hour)
	v.SetDefault("outbox.channel", "case-events")
	v.SetDefault("log.level", "info")
}

func LoadConfig() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/app")
	v.AddConfigPath("/app/config")

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	var secrets Secrets
	if err := envconfig.Process("caseflow", &secrets); err != nil {
		return nil, fmt.Errorf("failed to read environment overrides: %w", err)
	}
	config.ApplySecrets(secrets)

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// ApplySecrets overlays non-empty environment secrets onto the file config.
func (c *Config) ApplySecrets(s Secrets) {
	if s.DBHost != "" {
		c.Database.Host = s.DBHost
	}
	if s.DBPort != 0 {
		c.Database.Port = s.DBPort
	}
	if s.DBPassword != "" {
		c.Database.Password = s.DBPassword
	}
	if s.RedisURL != "" {
		c.Redis.URL = s.RedisURL
	}
	if s.OIDCClientSecret != "" {
		c.OIDC.ClientSecret = s.OIDCClientSecret
	}
	if s.StateSecret != "" {
		c.OIDC.StateSecret = s.StateSecret
	}
	if s.SMTPPassword != "" {
		c.Mail.Password = s.SMTPPassword
	}
}

func (c *Config) Validate() error {
	if c.Hospital.MainDomain == "" {
		return errors.New("hospital.main_domain is required")
	}
	if c.OIDC.Enabled {
		if c.OIDC.Issuer == "" || c.OIDC.ClientID == "" {
			return errors.New("oidc.issuer and oidc.client_id are required when oidc is enabled")
		}
		if len(c.OIDC.StateSecret) < 32 {
			return errors.New("oidc.state_secret must be at least 32 bytes")
		}
	}
	switch c.Session.Store {
	case "redis", "memory":
	default:
		return fmt.Errorf("unknown session store %q", c.Session.Store)
	}
	return nil
}

// DSN returns the lib/pq connection string.
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}
