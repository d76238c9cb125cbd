package identity

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"github.com/megcare/caseflow/internal/config"
	"github.com/megcare/caseflow/pkg/circuitbreaker"
	"github.com/megcare/caseflow/pkg/security"
)

// Tokens is the outcome of a successful authorization code exchange.
type Tokens struct {
	IDToken     string
	AccessToken string
	Assertion   Assertion
}

// Provider talks to the OpenID Connect identity provider.
type Provider struct {
	oauth    *oauth2.Config
	verifier *Verifier
	http     *resty.Client
	breaker  *circuitbreaker.CircuitBreaker
	signer   *security.StateSigner
	userInfo string
	timeout  time.Duration
}

// NewProvider builds a provider from cfg. Endpoints left empty default to
// the Okta layout under the issuer.
func NewProvider(cfg config.OIDCConfig, signer *security.StateSigner, breaker *circuitbreaker.CircuitBreaker) *Provider {
	issuer := strings.TrimRight(cfg.Issuer, "/")
	endpoint := func(configured, suffix string) string {
		if configured != "" {
			return configured
		}
		return issuer + suffix
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	client := resty.New().
		SetTimeout(timeout).
		SetRetryCount(1).
		SetRetryWaitTime(200*time.Millisecond).
		SetHeader("Accept", "application/json")

	return &Provider{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Endpoint: oauth2.Endpoint{
				AuthURL:  endpoint(cfg.AuthURL, "/v1/authorize"),
				TokenURL: endpoint(cfg.TokenURL, "/v1/token"),
			},
			Scopes: cfg.Scopes,
		},
		verifier: NewVerifier(issuer, cfg.ClientID, endpoint(cfg.JWKSURL, "/v1/keys"), client),
		http:     client,
		breaker:  breaker,
		signer:   signer,
		userInfo: endpoint(cfg.UserInfoURL, "/v1/userinfo"),
		timeout:  timeout,
	}
}

// AuthCodeURL returns the provider login URL for st. The returned nonce
// must be kept in the session and passed to Exchange.
func (p *Provider) AuthCodeURL(st State) (string, string, error) {
	st.Nonce = uuid.NewString()
	signed, err := p.signer.Sign(&st, &st.RegisteredClaims)
	if err != nil {
		return "", "", err
	}
	return p.oauth.AuthCodeURL(signed, oauth2.SetAuthURLParam("nonce", st.Nonce)), st.Nonce, nil
}

// ParseState verifies the signed state returned by the provider.
func (p *Provider) ParseState(raw string) (*State, error) {
	var st State
	if err := p.signer.Parse(raw, &st); err != nil {
		return nil, err
	}
	return &st, nil
}

// Exchange trades code for tokens and verifies the ID token. The token's
// nonce must match the one issued with the login URL.
func (p *Provider) Exchange(ctx context.Context, code, nonce string) (*Tokens, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	ctx = context.WithValue(ctx, oauth2.HTTPClient, p.http.GetClient())

	tok, err := p.oauth.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange authorization code: %w", err)
	}

	rawID, ok := tok.Extra("id_token").(string)
	if !ok || rawID == "" {
		return nil, fmt.Errorf("%w: no id_token in token response", ErrTokenInvalid)
	}
	claims, err := p.verifier.Verify(ctx, rawID)
	if err != nil {
		return nil, err
	}
	if got, _ := claims["nonce"].(string); nonce == "" || got != nonce {
		return nil, fmt.Errorf("%w: nonce mismatch", ErrTokenInvalid)
	}

	assertion := NewAssertion(claims, nil)
	if assertion.Email == "" {
		info, err := p.UserInfo(ctx, tok.AccessToken)
		if err != nil {
			return nil, err
		}
		assertion = NewAssertion(claims, info)
	}

	return &Tokens{IDToken: rawID, AccessToken: tok.AccessToken, Assertion: assertion}, nil
}

// UserInfo fetches the userinfo document for accessToken.
func (p *Provider) UserInfo(ctx context.Context, accessToken string) (map[string]interface{}, error) {
	var info map[string]interface{}
	status, err := p.callUserInfo(ctx, accessToken, &info)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("%w: userinfo returned %d", ErrProviderRejected, status)
	}
	return info, nil
}

// Revalidate asks the provider whether accessToken is still good. Transport
// failures and an open breaker yield ErrProviderUnreachable; any non-200
// answer yields ErrProviderRejected.
func (p *Provider) Revalidate(ctx context.Context, accessToken string) error {
	if accessToken == "" {
		return ErrProviderRejected
	}
	status, err := p.callUserInfo(ctx, accessToken, nil)
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return fmt.Errorf("%w: userinfo returned %d", ErrProviderRejected, status)
	}
	return nil
}

// callUserInfo returns the HTTP status of the userinfo call. Only transport
// failures count against the breaker; an open breaker reads as unreachable.
func (p *Provider) callUserInfo(ctx context.Context, accessToken string, result interface{}) (int, error) {
	var status int
	err := p.breaker.Execute(func() error {
		req := p.http.R().
			SetContext(ctx).
			SetAuthToken(accessToken)
		if result != nil {
			req.SetResult(result)
		}
		resp, err := req.Get(p.userInfo)
		if err != nil {
			return err
		}
		status = resp.StatusCode()
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrProviderUnreachable, err)
	}
	return status, nil
}
