package cases

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/megcare/caseflow/internal/model"
	"github.com/megcare/caseflow/internal/repository"
)

// store is an in-memory stand-in for the case, assignment, audit and user
// repositories. Mutate serializes on one mutex the way the row lock does.
type store struct {
	mu          sync.Mutex
	nextID      int64
	cases       map[int64]*model.Case
	assignments []*model.CaseAssignment
	audits      []*model.CaseAudit
	events      []string
	users       map[int64]*model.User
	mutateErr   error
}

func newStore() *store {
	return &store{
		nextID: 100,
		cases:  map[int64]*model.Case{},
		users:  map[int64]*model.User{},
	}
}

func (s *store) addCase(c *model.Case) *model.Case {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *c
	s.cases[c.ID] = &cp
	return c
}

func (s *store) addAssignment(caseID, by, to int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.assignments = append(s.assignments, &model.CaseAssignment{ID: int64(len(s.assignments) + 1), CaseID: caseID, UserID: by, AssignedTo: to})
}

func (s *store) auditsFor(caseID int64, field string) []*model.CaseAudit {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*model.CaseAudit
	for _, a := range s.audits {
		if a.CaseID == caseID && (field == "" || a.FieldName == field) {
			out = append(out, a)
		}
	}
	return out
}

func (s *store) current(id int64) model.Case {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.cases[id]
}

func (s *store) visible(c *model.Case, hospitalID, principalID int64) bool {
	if c.HospitalID != hospitalID || c.DeletedAt != nil {
		return false
	}
	if c.CurrentUserID == principalID {
		return true
	}
	for _, a := range s.assignments {
		if a.CaseID == c.ID && (a.AssignedTo == principalID || a.UserID == principalID) {
			return true
		}
	}
	return false
}

type caseRepo struct{ *store }

func (r caseRepo) Create(_ context.Context, c *model.Case, a *model.CaseAssignment, eventType string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	c.ID = r.nextID
	cp := *c
	r.cases[c.ID] = &cp
	if a != nil {
		a.CaseID = c.ID
		r.assignments = append(r.assignments, a)
	}
	if eventType != "" {
		r.events = append(r.events, eventType)
	}
	return nil
}

func (r caseRepo) Get(_ context.Context, hospitalID, id int64) (*model.Case, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.cases[id]
	if !ok || c.HospitalID != hospitalID || c.DeletedAt != nil {
		return nil, repository.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (r caseRepo) ListVisible(_ context.Context, hospitalID, principalID int64, filter model.CaseFilter) ([]*model.Case, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.Case
	for _, c := range r.cases {
		if !r.visible(c, hospitalID, principalID) {
			continue
		}
		if filter.Status != "" && c.Status != filter.Status {
			continue
		}
		cp := *c
		out = append(out, &cp)
	}
	return out, nil
}

func (r caseRepo) CountVisibleByStatus(_ context.Context, hospitalID, principalID int64) (map[model.CaseStatus]int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	counts := map[model.CaseStatus]int{}
	for _, c := range r.cases {
		if r.visible(c, hospitalID, principalID) {
			counts[c.Status]++
		}
	}
	return counts, nil
}

func (r caseRepo) Mutate(_ context.Context, hospitalID, id int64, m repository.CaseMutation) (*model.Case, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.mutateErr != nil {
		return nil, r.mutateErr
	}
	stored, ok := r.cases[id]
	if !ok || stored.HospitalID != hospitalID || stored.DeletedAt != nil {
		return nil, repository.ErrNotFound
	}

	before := *stored
	after := before
	if err := m.Apply(&after); err != nil {
		return nil, err
	}
	diffs := model.DiffCase(&before, &after, m.ChangedBy, time.Now())
	if len(diffs) == 0 && m.Assignment == nil && after.Notes == before.Notes {
		return nil, repository.ErrNoChange
	}

	*stored = after
	for i := range diffs {
		r.audits = append(r.audits, &diffs[i])
	}
	if m.Assignment != nil {
		m.Assignment.CaseID = id
		r.assignments = append(r.assignments, m.Assignment)
	}
	if m.EventType != "" {
		r.events = append(r.events, m.EventType)
	}
	cp := after
	return &cp, nil
}

type assignmentRepo struct{ *store }

func (r assignmentRepo) Exists(_ context.Context, caseID, userID int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.assignments {
		if a.CaseID == caseID && (a.AssignedTo == userID || a.UserID == userID) {
			return true, nil
		}
	}
	return false, nil
}

func (r assignmentRepo) ListByCase(_ context.Context, caseID int64) ([]*model.CaseAssignment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.CaseAssignment
	for _, a := range r.assignments {
		if a.CaseID == caseID {
			out = append(out, a)
		}
	}
	return out, nil
}

type auditRepo struct{ *store }

func (r auditRepo) ListByCase(_ context.Context, caseID int64) ([]*model.CaseAudit, error) {
	return r.auditsFor(caseID, ""), nil
}

type userRepo struct {
	repository.UserRepository
	*store
}

func (r userRepo) Get(_ context.Context, id int64) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return u, nil
}

var errBoom = errors.New("boom")
