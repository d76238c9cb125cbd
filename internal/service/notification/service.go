package notification

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/megcare/caseflow/internal/email"
	"github.com/megcare/caseflow/internal/model"
	"github.com/megcare/caseflow/internal/repository"
	"github.com/megcare/caseflow/pkg/metrics"
)

// Service turns case outbox events into e-mail for the people involved.
type Service struct {
	users   repository.UserRepository
	tenants repository.TenantRepository
	mailer  email.Service
	baseURL string
	metrics *metrics.Metrics
}

// NewService builds the notifier. baseURL is the main site, e.g.
// https://meg.www; case links are placed on the hospital's subdomain.
func NewService(users repository.UserRepository, tenants repository.TenantRepository, mailer email.Service, baseURL string, m *metrics.Metrics) *Service {
	return &Service{
		users:   users,
		tenants: tenants,
		mailer:  mailer,
		baseURL: baseURL,
		metrics: m,
	}
}

// HandleCaseAssigned mails the assignee of a case.assigned event. Self
// assignments and inactive assignees are skipped.
func (s *Service) HandleCaseAssigned(ctx context.Context, event *model.OutboxEvent) error {
	var ev model.CaseEvent
	if err := json.Unmarshal(event.Payload, &ev); err != nil {
		s.metrics.Notification("failed")
		return fmt.Errorf("failed to decode case event %s: %w", event.ID, err)
	}
	if ev.AssignedTo == 0 || ev.AssignedTo == ev.ActorID {
		s.metrics.Notification("skipped")
		return nil
	}

	assignee, err := s.users.Get(ctx, ev.AssignedTo)
	if errors.Is(err, repository.ErrNotFound) || (err == nil && !assignee.IsActive()) {
		s.metrics.Notification("skipped")
		return nil
	}
	if err != nil {
		s.metrics.Notification("failed")
		return fmt.Errorf("failed to get assignee: %w", err)
	}

	tenant, err := s.tenants.Get(ctx, ev.HospitalID)
	if err != nil {
		s.metrics.Notification("failed")
		return fmt.Errorf("failed to get hospital %d: %w", ev.HospitalID, err)
	}

	assignedBy := "A colleague"
	if actor, err := s.users.Get(ctx, ev.ActorID); err == nil {
		assignedBy = actor.Name
	}

	caseURL, err := s.caseURL(tenant, ev.CaseID)
	if err != nil {
		s.metrics.Notification("failed")
		return err
	}

	n := model.AssignmentNotification{
		CaseID:       ev.CaseID,
		HospitalName: tenant.Name,
		Priority:     ev.Priority,
		Notes:        ev.Notes,
		AssigneeName: assignee.Name,
		Recipient:    assignee.Email,
		AssignedBy:   assignedBy,
		CaseURL:      caseURL,
	}
	if err := s.mailer.SendAssignment(ctx, n); err != nil {
		s.metrics.Notification("failed")
		return err
	}

	s.metrics.Notification("sent")
	log.Info().
		Int64("case_id", ev.CaseID).
		Int64("user_id", assignee.ID).
		Msg("Assignment notification sent")
	return nil
}

func (s *Service) caseURL(tenant *model.Tenant, caseID int64) (string, error) {
	u, err := url.Parse(strings.TrimRight(s.baseURL, "/"))
	if err != nil {
		return "", fmt.Errorf("invalid mail base url: %w", err)
	}
	u.Host = tenant.Subdomain + "." + u.Host
	u.Path = fmt.Sprintf("%s/cases/%d", u.Path, caseID)
	return u.String(), nil
}
