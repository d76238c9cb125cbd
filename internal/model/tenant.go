package model

// Tenant status constants
const (
	TenantStatusActive   = "active"
	TenantStatusInactive = "inactive"
)

// Tenant is a hospital. Subdomain is unique across all tenants.
type Tenant struct {
	Base
	Name      string `db:"name" json:"name"`
	Subdomain string `db:"subdomain" json:"subdomain"`
	Status    string `db:"status" json:"status"`
}

// IsActive reports whether the tenant may serve as a request's hospital context.
func (t *Tenant) IsActive() bool {
	return t != nil && t.Status == TenantStatusActive
}

// NoticeKind identifies why a request was redirected away from a hospital.
type NoticeKind string

const (
	NoticeNonexistent NoticeKind = "nonexistent"
	NoticeInactive    NoticeKind = "inactive"
	NoticeDeactivated NoticeKind = "deactivated"
)

// Notice is a one-shot message queued in the session by one request and
// shown by the next.
type Notice struct {
	Kind    NoticeKind `json:"kind"`
	Subject string     `json:"subject"`
}

// Message renders the notice for display.
func (n Notice) Message() string {
	switch n.Kind {
	case NoticeNonexistent:
		return "The hospital \"" + n.Subject + "\" does not exist. You have been redirected to the main site."
	case NoticeInactive:
		return "The hospital \"" + n.Subject + "\" is currently inactive. You have been redirected to the main site."
	case NoticeDeactivated:
		return "The hospital \"" + n.Subject + "\" has been deactivated. You have been redirected to the main site."
	}
	return "You have been redirected to the main site."
}
