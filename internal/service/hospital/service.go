package hospital

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/megcare/caseflow/internal/model"
	"github.com/megcare/caseflow/internal/repository"
	"github.com/megcare/caseflow/internal/session"
	"github.com/megcare/caseflow/pkg/metrics"
)

// Result is the outcome of establishing a request's hospital context.
// When RedirectURL is set the request must stop and redirect there.
type Result struct {
	Tenant      *model.Tenant
	Notice      *model.Notice
	RedirectURL string
}

// Service keeps the session's cached hospital consistent with the live
// hospital record.
type Service struct {
	resolver *Resolver
	tenants  repository.TenantRepository
	metrics  *metrics.Metrics
}

func NewService(resolver *Resolver, tenants repository.TenantRepository, m *metrics.Metrics) *Service {
	return &Service{resolver: resolver, tenants: tenants, metrics: m}
}

func (s *Service) Resolver() *Resolver { return s.resolver }

// Establish resolves the hospital for req using sess as a cache. The cached
// hospital is re-read on every call, so a deactivation is noticed on the
// next request. Resolution failures become a redirect with a notice queued
// for the following request; only store failures are returned as errors.
func (s *Service) Establish(ctx context.Context, sess *session.Session, req Request) (*Result, error) {
	var cached model.Tenant
	hasCached := sess.GetJSON(session.KeyHospital, &cached)

	if hasCached {
		if candidate := s.resolver.Candidate(req); candidate != "" && candidate != cached.Subdomain {
			sess.Delete(session.KeyHospital)
			hasCached = false
		}
	}

	var tenant *model.Tenant
	if hasCached {
		live, err := s.tenants.Get(ctx, cached.ID)
		switch {
		case errors.Is(err, repository.ErrNotFound):
			return s.redirect(sess, req, errDeactivated(cached.Subdomain, nil))
		case err != nil:
			return nil, fmt.Errorf("failed to revalidate hospital %d: %w", cached.ID, err)
		case !live.IsActive():
			return s.redirect(sess, req, errDeactivated(cached.Subdomain, live))
		}
		tenant = live
	} else {
		resolved, err := s.resolver.Resolve(ctx, req)
		var resErr *ResolutionError
		if errors.As(err, &resErr) {
			return s.redirect(sess, req, resErr)
		}
		if err != nil {
			return nil, err
		}
		tenant = resolved
	}

	if tenant != nil {
		if err := sess.SetJSON(session.KeyHospital, tenant); err != nil {
			return nil, err
		}
	}

	result := &Result{Tenant: tenant}
	var notice model.Notice
	if sess.TakeJSON(session.KeyRedirectNotice, &notice) {
		result.Notice = &notice
	}
	return result, nil
}

func (s *Service) redirect(sess *session.Session, req Request, cause *ResolutionError) (*Result, error) {
	sess.Delete(session.KeyHospital)
	if err := sess.SetJSON(session.KeyRedirectNotice, cause.Notice()); err != nil {
		return nil, err
	}
	s.metrics.TenantRedirect(string(cause.Kind))

	target := s.resolver.MainDomainURL(req)
	log.Info().
		Str("host", req.Host).
		Str("subdomain", cause.Subdomain).
		Str("reason", string(cause.Kind)).
		Str("target", target).
		Msg("Redirecting away from unusable hospital")

	return &Result{RedirectURL: target}, nil
}

type contextKey struct{}

// WithTenant returns a context carrying the request's hospital.
func WithTenant(ctx context.Context, t *model.Tenant) context.Context {
	return context.WithValue(ctx, contextKey{}, t)
}

// FromContext returns the request's hospital, or nil when the request
// addresses the main site.
func FromContext(ctx context.Context) *model.Tenant {
	t, _ := ctx.Value(contextKey{}).(*model.Tenant)
	return t
}
