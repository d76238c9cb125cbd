package auth

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/megcare/caseflow/internal/model"
	"github.com/megcare/caseflow/internal/repository"
	"github.com/megcare/caseflow/internal/service/identity"
	"github.com/megcare/caseflow/internal/session"
	"github.com/megcare/caseflow/pkg/metrics"
	"github.com/megcare/caseflow/pkg/security"
)

var (
	ErrNotAuthenticated = errors.New("not authenticated")
	ErrWrongHospital    = errors.New("principal belongs to another hospital")
	ErrPasswordLoginOff = errors.New("password login is disabled")
	ErrFederationOff    = errors.New("federated login is disabled")
	ErrSessionRevoked   = errors.New("identity revoked by provider")
)

// Federation is the identity provider as seen by the login flow.
type Federation interface {
	AuthCodeURL(st identity.State) (string, string, error)
	ParseState(raw string) (*identity.State, error)
	Exchange(ctx context.Context, code, nonce string) (*identity.Tokens, error)
	Revalidate(ctx context.Context, accessToken string) error
}

type Config struct {
	PasswordLogin      bool
	RevalidateInterval time.Duration
}

type Service struct {
	users      repository.UserRepository
	hasher     security.PasswordHasher
	adapter    *identity.Adapter
	federation Federation
	metrics    *metrics.Metrics
	cfg        Config
	now        func() time.Time
}

// NewService wires the login flows. federation may be nil when federated
// login is not configured.
func NewService(users repository.UserRepository, hasher security.PasswordHasher, adapter *identity.Adapter,
	federation Federation, m *metrics.Metrics, cfg Config) *Service {
	return &Service{
		users:      users,
		hasher:     hasher,
		adapter:    adapter,
		federation: federation,
		metrics:    m,
		cfg:        cfg,
		now:        time.Now,
	}
}

// Login authenticates a local password principal inside tenant.
func (s *Service) Login(ctx context.Context, sess *session.Session, tenant *model.Tenant, req model.LoginRequest) (*model.LoginResponse, error) {
	if !s.cfg.PasswordLogin {
		return nil, ErrPasswordLoginOff
	}

	user, err := s.users.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(req.Email)))
	if errors.Is(err, repository.ErrNotFound) {
		s.hasher.CompareNothing(req.Password)
		return nil, model.ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if user.PasswordHash == nil {
		s.hasher.CompareNothing(req.Password)
		return nil, model.ErrInvalidCredentials
	}
	if err := s.hasher.Compare(*user.PasswordHash, req.Password); err != nil {
		return nil, model.ErrInvalidCredentials
	}

	if err := authorizeLogin(user, tenant); err != nil {
		return nil, err
	}

	s.establish(ctx, sess, user)
	return &model.LoginResponse{User: user, Redirect: user.RoleType.DashboardRoute()}, nil
}

// BeginFederated returns the provider URL that starts a federated login.
func (s *Service) BeginFederated(sess *session.Session, tenant *model.Tenant, req model.OIDCLoginRequest) (string, error) {
	if s.federation == nil {
		return "", ErrFederationOff
	}

	st := identity.State{Role: req.Role, HospitalID: req.HospitalID}
	if tenant != nil {
		st.Subdomain = tenant.Subdomain
	}
	url, nonce, err := s.federation.AuthCodeURL(st)
	if err != nil {
		return "", fmt.Errorf("failed to build login url: %w", err)
	}
	sess.Set(session.KeyIdentityStateNonce, nonce)
	return url, nil
}

// CompleteFederated finishes a federated login from the provider callback.
func (s *Service) CompleteFederated(ctx context.Context, sess *session.Session, tenant *model.Tenant, req model.OIDCCallbackRequest) (*model.LoginResponse, error) {
	if s.federation == nil {
		return nil, ErrFederationOff
	}

	st, err := s.federation.ParseState(req.State)
	if err != nil {
		return nil, err
	}
	nonce, ok := sess.Take(session.KeyIdentityStateNonce)
	if !ok || nonce != st.Nonce {
		return nil, security.ErrInvalidState
	}

	tokens, err := s.federation.Exchange(ctx, req.Code, nonce)
	if err != nil {
		return nil, err
	}

	res, err := s.adapter.Resolve(ctx, tokens.Assertion, *st, tenant)
	if err != nil {
		return nil, err
	}
	if err := authorizeLogin(res.User, res.Tenant); err != nil {
		return nil, err
	}

	s.establish(ctx, sess, res.User)
	sess.Set(session.KeyIdentityIDToken, tokens.IDToken)
	sess.Set(session.KeyIdentityAccess, tokens.AccessToken)
	sess.SetTime(session.KeyIdentityValidated, s.now())

	return &model.LoginResponse{User: res.User, Redirect: res.User.RoleType.DashboardRoute()}, nil
}

// Logout forgets the principal and every federation-derived key. It
// returns the login route for the principal's role.
func (s *Service) Logout(ctx context.Context, sess *session.Session) string {
	route := model.RoleUnknown.LoginRoute()
	if user, err := s.Principal(ctx, sess); err == nil {
		route = user.RoleType.LoginRoute()
	}
	s.forget(sess)
	return route
}

// Principal loads the signed-in principal of sess.
func (s *Service) Principal(ctx context.Context, sess *session.Session) (*model.User, error) {
	raw, ok := sess.Get(session.KeyUserID)
	if !ok {
		return nil, ErrNotAuthenticated
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		sess.Delete(session.KeyUserID)
		return nil, ErrNotAuthenticated
	}

	user, err := s.users.Get(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		s.forget(sess)
		return nil, ErrNotAuthenticated
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load principal: %w", err)
	}
	return user, nil
}

// Revalidate re-checks a federated session with the provider once the
// revalidation interval has passed. An unreachable provider leaves the
// session valid; a rejection clears it and returns ErrSessionRevoked.
func (s *Service) Revalidate(ctx context.Context, sess *session.Session) error {
	access, ok := sess.Get(session.KeyIdentityAccess)
	if !ok || s.federation == nil {
		return nil
	}
	if last, ok := sess.GetTime(session.KeyIdentityValidated); ok && s.now().Sub(last) < s.cfg.RevalidateInterval {
		return nil
	}

	err := s.federation.Revalidate(ctx, access)
	switch {
	case err == nil:
		s.metrics.IdentityRevalidation("valid")
		sess.SetTime(session.KeyIdentityValidated, s.now())
		return nil
	case errors.Is(err, identity.ErrProviderUnreachable):
		s.metrics.IdentityRevalidation("unreachable")
		log.Warn().Err(err).Msg("Identity provider unreachable, keeping session")
		return nil
	case errors.Is(err, identity.ErrProviderRejected):
		s.metrics.IdentityRevalidation("rejected")
		s.forget(sess)
		return ErrSessionRevoked
	}
	return fmt.Errorf("failed to revalidate identity: %w", err)
}

// authorizeLogin decides whether user may sign in to tenant. System-tier
// principals sign in without a hospital.
func authorizeLogin(user *model.User, tenant *model.Tenant) error {
	if !user.IsActive() {
		return model.ErrUserInactive
	}
	if user.RoleType.IsSystem() {
		return nil
	}
	if tenant == nil {
		return identity.ErrHospitalContextRequired
	}
	if user.HospitalID != tenant.ID {
		return ErrWrongHospital
	}
	return nil
}

func (s *Service) establish(ctx context.Context, sess *session.Session, user *model.User) {
	sess.Regenerate()
	sess.Delete(session.IdentityKeys...)
	sess.Set(session.KeyUserID, strconv.FormatInt(user.ID, 10))

	if err := s.users.UpdateLastLogin(ctx, user.ID, s.now()); err != nil {
		log.Error().Err(err).Int64("user_id", user.ID).Msg("Failed to record last login")
	}
	log.Info().Int64("user_id", user.ID).Str("role", user.RoleType.String()).Msg("User signed in")
}

func (s *Service) forget(sess *session.Session) {
	sess.Delete(session.KeyUserID)
	sess.Delete(session.IdentityKeys...)
}
