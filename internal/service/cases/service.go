package cases

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/megcare/caseflow/internal/model"
	"github.com/megcare/caseflow/internal/repository"
	"github.com/megcare/caseflow/pkg/metrics"
)

type CaseService interface {
	List(ctx context.Context, tenant *model.Tenant, user *model.User, filter model.CaseFilter) ([]*model.Case, error)
	View(ctx context.Context, tenant *model.Tenant, user *model.User, id int64) (*model.CaseDetail, error)
	Create(ctx context.Context, tenant *model.Tenant, user *model.User, req model.CreateCaseRequest) (*model.Case, error)
	Update(ctx context.Context, tenant *model.Tenant, user *model.User, id int64, req model.UpdateCaseRequest) (*model.Case, error)
	Assign(ctx context.Context, tenant *model.Tenant, user *model.User, id int64, req model.AssignCaseRequest) (*model.Case, error)
	Complete(ctx context.Context, tenant *model.Tenant, user *model.User, id int64) (*model.Case, error)
	Delete(ctx context.Context, tenant *model.Tenant, user *model.User, id int64) error
	AuditTrail(ctx context.Context, tenant *model.Tenant, user *model.User, id int64) ([]*model.CaseAudit, error)
	Summary(ctx context.Context, tenant *model.Tenant, user *model.User) (*model.CaseSummary, error)
}

var _ CaseService = (*Service)(nil)

type Service struct {
	cases       repository.CaseRepository
	assignments repository.AssignmentRepository
	audits      repository.CaseAuditRepository
	users       repository.UserRepository
	guard       *Guard
	policy      model.StatusPolicy
	metrics     *metrics.Metrics
	now         func() time.Time
}

type Option func(*Service)

// WithStatusPolicy replaces the global status aggregation.
func WithStatusPolicy(p model.StatusPolicy) Option {
	return func(s *Service) { s.policy = p }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func NewService(
	cases repository.CaseRepository,
	assignments repository.AssignmentRepository,
	audits repository.CaseAuditRepository,
	users repository.UserRepository,
	opts ...Option,
) *Service {
	s := &Service{
		cases:       cases,
		assignments: assignments,
		audits:      audits,
		users:       users,
		guard:       NewGuard(cases, assignments),
		policy:      model.DeriveGlobalStatus,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) Guard() *Guard { return s.guard }

func (s *Service) List(ctx context.Context, tenant *model.Tenant, user *model.User, filter model.CaseFilter) ([]*model.Case, error) {
	if err := Authorize(tenant, user, model.ActionList); err != nil {
		return nil, err
	}
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, ErrInvalidStatus
	}
	if filter.Priority != "" && !model.ValidPriority(filter.Priority) {
		return nil, ErrInvalidPriority
	}

	cases, err := s.cases.ListVisible(ctx, tenant.ID, user.ID, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list cases: %w", err)
	}
	return cases, nil
}

// View returns the case with its history. Opening a case whose track for
// the viewer's role is still assigned moves it to in_progress first; that
// write is best-effort and never fails the view.
func (s *Service) View(ctx context.Context, tenant *model.Tenant, user *model.User, id int64) (*model.CaseDetail, error) {
	if err := Authorize(tenant, user, model.ActionView); err != nil {
		return nil, err
	}
	c, err := s.guard.Load(ctx, tenant, user, id)
	if err != nil {
		return nil, err
	}

	track := user.RoleType.Track()
	if track != model.TrackNone && c.TrackStatus(track) == model.CaseStatusAssigned {
		updated, err := s.cases.Mutate(ctx, tenant.ID, c.ID, repository.CaseMutation{
			ChangedBy: user.ID,
			Apply:     autoProgress(track, s.policy),
			EventType: model.EventCaseStatusChanged,
		})
		switch {
		case err == nil:
			s.recordTransitions(c, updated)
			c = updated
		case errors.Is(err, repository.ErrNoChange):
		default:
			log.Warn().Err(err).
				Int64("case_id", c.ID).
				Int64("hospital_id", tenant.ID).
				Int64("user_id", user.ID).
				Msg("Failed to auto-progress case on view")
		}
	}

	assignments, err := s.assignments.ListByCase(ctx, c.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list case assignments: %w", err)
	}
	trail, err := s.audits.ListByCase(ctx, c.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list case audit trail: %w", err)
	}

	return &model.CaseDetail{Case: c, Assignments: assignments, AuditTrail: trail}, nil
}

func (s *Service) Create(ctx context.Context, tenant *model.Tenant, user *model.User, req model.CreateCaseRequest) (*model.Case, error) {
	if err := Authorize(tenant, user, model.ActionCreate); err != nil {
		return nil, err
	}
	if !model.ValidPriority(req.Priority) {
		return nil, ErrInvalidPriority
	}

	c := initialCase(tenant, user, req, s.policy)
	assignment := &model.CaseAssignment{
		UserID:     user.ID,
		AssignedTo: user.ID,
		Notes:      req.Notes,
	}
	if err := s.cases.Create(ctx, c, assignment, model.EventCaseCreated); err != nil {
		return nil, fmt.Errorf("failed to create case: %w", err)
	}

	log.Info().
		Int64("case_id", c.ID).
		Int64("hospital_id", tenant.ID).
		Int64("user_id", user.ID).
		Msg("Case created")
	return c, nil
}

func (s *Service) Update(ctx context.Context, tenant *model.Tenant, user *model.User, id int64, req model.UpdateCaseRequest) (*model.Case, error) {
	if err := Authorize(tenant, user, model.ActionEdit); err != nil {
		return nil, err
	}
	c, err := s.guard.Load(ctx, tenant, user, id)
	if err != nil {
		return nil, err
	}

	updated, err := s.mutate(ctx, tenant, c.ID, repository.CaseMutation{
		ChangedBy: user.ID,
		Apply:     update(req),
		EventType: model.EventCaseUpdated,
	})
	if errors.Is(err, repository.ErrNoChange) {
		return c, nil
	}
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Assign hands the case to another principal of the same hospital whose
// role works a track. The assigner keeps access through the new
// assignment row.
func (s *Service) Assign(ctx context.Context, tenant *model.Tenant, user *model.User, id int64, req model.AssignCaseRequest) (*model.Case, error) {
	if err := Authorize(tenant, user, model.ActionAssign); err != nil {
		return nil, err
	}
	c, err := s.guard.Load(ctx, tenant, user, id)
	if err != nil {
		return nil, err
	}

	assignee, err := s.users.Get(ctx, req.AssignTo)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrInvalidAssignee
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get assignee: %w", err)
	}
	if !assignee.IsActive() || !assignee.BelongsTo(tenant) || assignee.RoleType.Track() == model.TrackNone {
		return nil, ErrInvalidAssignee
	}

	updated, err := s.mutate(ctx, tenant, c.ID, repository.CaseMutation{
		ChangedBy: user.ID,
		Apply:     assignTo(assignee, s.policy),
		Assignment: &model.CaseAssignment{
			UserID:     user.ID,
			AssignedTo: assignee.ID,
			Notes:      req.Notes,
		},
		EventType: model.EventCaseAssigned,
	})
	if err != nil {
		return nil, err
	}

	s.recordTransitions(c, updated)
	return updated, nil
}

// Complete cascades every track and the global status to completed in one
// transaction. Of two concurrent completions exactly one succeeds; the
// other sees ErrAlreadyCompleted.
func (s *Service) Complete(ctx context.Context, tenant *model.Tenant, user *model.User, id int64) (*model.Case, error) {
	if err := Authorize(tenant, user, model.ActionComplete); err != nil {
		return nil, err
	}
	c, err := s.guard.Load(ctx, tenant, user, id)
	if err != nil {
		return nil, err
	}
	if c.Status == model.CaseStatusCompleted {
		return nil, ErrAlreadyCompleted
	}

	updated, err := s.mutate(ctx, tenant, c.ID, repository.CaseMutation{
		ChangedBy: user.ID,
		Apply:     completeAll(),
		EventType: model.EventCaseCompleted,
	})
	if err != nil {
		if !errors.Is(err, ErrAlreadyCompleted) {
			log.Error().Err(err).
				Int64("case_id", c.ID).
				Int64("hospital_id", tenant.ID).
				Int64("user_id", user.ID).
				Msg("Failed to complete case")
		}
		return nil, err
	}

	s.recordTransitions(c, updated)
	return updated, nil
}

func (s *Service) Delete(ctx context.Context, tenant *model.Tenant, user *model.User, id int64) error {
	if err := Authorize(tenant, user, model.ActionDelete); err != nil {
		return err
	}
	c, err := s.guard.Load(ctx, tenant, user, id)
	if err != nil {
		return err
	}

	_, err = s.mutate(ctx, tenant, c.ID, repository.CaseMutation{
		ChangedBy: user.ID,
		Apply:     softDelete(s.now),
		EventType: model.EventCaseDeleted,
	})
	return err
}

func (s *Service) AuditTrail(ctx context.Context, tenant *model.Tenant, user *model.User, id int64) ([]*model.CaseAudit, error) {
	if err := Authorize(tenant, user, model.ActionView); err != nil {
		return nil, err
	}
	c, err := s.guard.Load(ctx, tenant, user, id)
	if err != nil {
		return nil, err
	}

	trail, err := s.audits.ListByCase(ctx, c.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list case audit trail: %w", err)
	}
	return trail, nil
}

// Summary counts the principal's visible cases by global status.
func (s *Service) Summary(ctx context.Context, tenant *model.Tenant, user *model.User) (*model.CaseSummary, error) {
	if err := Authorize(tenant, user, model.ActionList); err != nil {
		return nil, err
	}

	counts, err := s.cases.CountVisibleByStatus(ctx, tenant.ID, user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to summarize cases: %w", err)
	}

	summary := &model.CaseSummary{ByStatus: counts}
	for _, n := range counts {
		summary.Total += n
	}
	return summary, nil
}

// mutate runs m against the locked row. A row that vanished between the
// guard and the lock reads as ErrCaseNotFound; domain and no-change errors
// from Apply pass through unwrapped.
func (s *Service) mutate(ctx context.Context, tenant *model.Tenant, id int64, m repository.CaseMutation) (*model.Case, error) {
	updated, err := s.cases.Mutate(ctx, tenant.ID, id, m)
	switch {
	case err == nil:
		return updated, nil
	case errors.Is(err, repository.ErrNotFound):
		return nil, ErrCaseNotFound
	case errors.Is(err, repository.ErrNoChange),
		errors.Is(err, ErrAlreadyCompleted),
		errors.Is(err, ErrCaseClosed),
		errors.Is(err, ErrInvalidPriority):
		return nil, err
	}
	return nil, fmt.Errorf("failed to update case %d: %w", id, err)
}

func (s *Service) recordTransitions(before, after *model.Case) {
	if s.metrics == nil || after == nil {
		return
	}
	for _, a := range model.DiffCase(before, after, 0, s.now()) {
		switch a.FieldName {
		case model.FieldStatus, model.FieldTechnicianStatus, model.FieldScientistStatus, model.FieldDoctorStatus:
			s.metrics.CaseTransition(a.FieldName, a.NewValue)
		}
	}
}
