package hospital

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/megcare/caseflow/internal/model"
	"github.com/megcare/caseflow/internal/repository"
)

// Request is the part of an HTTP request that selects a hospital.
type Request struct {
	Host string
	// Override is the development tenant query parameter, if present.
	Override string
	Secure   bool
}

type ResolverConfig struct {
	MainDomain          string
	AllowTenantOverride bool
}

// Resolver derives the hospital a request addresses. It has no side effects
// beyond reading the tenant store.
type Resolver struct {
	tenants repository.TenantRepository
	config  ResolverConfig
}

func NewResolver(tenants repository.TenantRepository, config ResolverConfig) *Resolver {
	config.MainDomain = strings.ToLower(config.MainDomain)
	return &Resolver{tenants: tenants, config: config}
}

// Candidate returns the subdomain the request names, honoring the
// development override only when enabled and only on development hosts.
func (r *Resolver) Candidate(req Request) string {
	candidate := ExtractSubdomain(req.Host, r.config.MainDomain)
	override := strings.ToLower(strings.TrimSpace(req.Override))
	if override != "" && r.config.AllowTenantOverride && overrideHostAllowed(req.Host, r.config.MainDomain) {
		candidate = override
	}
	return candidate
}

// Resolve returns the hospital for req, or nil when the request addresses
// the main site. Unusable hospitals are reported as *ResolutionError.
func (r *Resolver) Resolve(ctx context.Context, req Request) (*model.Tenant, error) {
	candidate := r.Candidate(req)

	if candidate == "" {
		hostname, _ := SplitHost(req.Host)
		if !isLocalhost(hostname) {
			return nil, nil
		}
		tenant, err := r.tenants.FirstActive(ctx)
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil
		}
		if err != nil {
			return nil, fmt.Errorf("failed to load default hospital: %w", err)
		}
		return tenant, nil
	}

	tenant, err := r.tenants.GetBySubdomain(ctx, candidate)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, errNotFound(candidate)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up hospital %q: %w", candidate, err)
	}
	if !tenant.IsActive() {
		return nil, errInactive(tenant)
	}
	return tenant, nil
}

// MainDomainURL is where unusable hospital requests are sent.
func (r *Resolver) MainDomainURL(req Request) string {
	return MainDomainURL(req.Host, r.config.MainDomain, req.Secure)
}
