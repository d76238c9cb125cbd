package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/megcare/caseflow/internal/model"
)

var (
	// ErrNotFound is returned when a lookup matches no row.
	ErrNotFound = errors.New("record not found")
	// ErrNoChange is returned by a CaseMutation that found nothing to do
	// once the row was locked; the transaction is rolled back.
	ErrNoChange = errors.New("no change")
)

// CaseMutation describes one atomic change to a locked case row. Apply
// re-checks its precondition against the locked row and edits it in place.
// Every tracked field that changes is audited as ChangedBy, Assignment (if
// any) is appended, and EventType (if set) is enqueued in the outbox, all in
// the same transaction.
type CaseMutation struct {
	ChangedBy  int64
	Apply      func(c *model.Case) error
	Assignment *model.CaseAssignment
	EventType  string
}

// All repository interfaces in one file
type (
	TenantRepository interface {
		Create(ctx context.Context, tenant *model.Tenant) error
		Get(ctx context.Context, id int64) (*model.Tenant, error)
		GetBySubdomain(ctx context.Context, subdomain string) (*model.Tenant, error)
		FirstActive(ctx context.Context) (*model.Tenant, error)
		List(ctx context.Context) ([]*model.Tenant, error)
		UpdateStatus(ctx context.Context, id int64, status string) error
	}

	RoleRepository interface {
		GetByType(ctx context.Context, roleType model.RoleType) (*model.Role, error)
		List(ctx context.Context) ([]*model.Role, error)
	}

	UserRepository interface {
		Create(ctx context.Context, user *model.User) error
		Get(ctx context.Context, id int64) (*model.User, error)
		GetByEmail(ctx context.Context, email string) (*model.User, error)
		List(ctx context.Context, filters *model.UserFilters) ([]*model.User, error)
		LinkOktaID(ctx context.Context, id int64, oktaID string) error
		UpdateLastLogin(ctx context.Context, id int64, at time.Time) error
	}

	CaseRepository interface {
		// Create inserts the case with its initial assignment and outbox event.
		Create(ctx context.Context, c *model.Case, assignment *model.CaseAssignment, eventType string) error
		Get(ctx context.Context, hospitalID, id int64) (*model.Case, error)
		// ListVisible returns cases of the hospital that principalID currently
		// holds or appears in the assignment history of.
		ListVisible(ctx context.Context, hospitalID, principalID int64, filter model.CaseFilter) ([]*model.Case, error)
		CountVisibleByStatus(ctx context.Context, hospitalID, principalID int64) (map[model.CaseStatus]int, error)
		Mutate(ctx context.Context, hospitalID, id int64, m CaseMutation) (*model.Case, error)
	}

	AssignmentRepository interface {
		// Exists reports whether any assignment of caseID names userID as
		// assigner or assignee.
		Exists(ctx context.Context, caseID, userID int64) (bool, error)
		ListByCase(ctx context.Context, caseID int64) ([]*model.CaseAssignment, error)
	}

	CaseAuditRepository interface {
		ListByCase(ctx context.Context, caseID int64) ([]*model.CaseAudit, error)
	}

	OutboxRepository interface {
		GetPendingEventsWithLock(ctx context.Context, limit int) ([]*model.OutboxEvent, error)
		UpdateStatus(ctx context.Context, id uuid.UUID, status model.OutboxStatus, errorMessage *string, retryAt *time.Time) error
		DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error)
	}
)
