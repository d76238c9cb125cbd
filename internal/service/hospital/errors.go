package hospital

import (
	"fmt"

	"github.com/megcare/caseflow/internal/model"
)

// ResolutionError reports why a request's hospital could not be used. Kind
// doubles as the notice shown after the redirect.
type ResolutionError struct {
	Kind      model.NoticeKind
	Subdomain string
	// Tenant is set when a hospital was found but cannot be used.
	Tenant *model.Tenant
}

func (e *ResolutionError) Error() string {
	switch e.Kind {
	case model.NoticeNonexistent:
		return fmt.Sprintf("hospital %q not found", e.Subdomain)
	case model.NoticeInactive:
		return fmt.Sprintf("hospital %q is inactive", e.Subdomain)
	case model.NoticeDeactivated:
		return fmt.Sprintf("hospital %q was deactivated during the session", e.Subdomain)
	}
	return fmt.Sprintf("hospital %q cannot be used", e.Subdomain)
}

// Notice is the one-shot message queued for the next request.
func (e *ResolutionError) Notice() model.Notice {
	return model.Notice{Kind: e.Kind, Subject: e.Subdomain}
}

func errNotFound(subdomain string) *ResolutionError {
	return &ResolutionError{Kind: model.NoticeNonexistent, Subdomain: subdomain}
}

func errInactive(t *model.Tenant) *ResolutionError {
	return &ResolutionError{Kind: model.NoticeInactive, Subdomain: t.Subdomain, Tenant: t}
}

func errDeactivated(subdomain string, t *model.Tenant) *ResolutionError {
	return &ResolutionError{Kind: model.NoticeDeactivated, Subdomain: subdomain, Tenant: t}
}
