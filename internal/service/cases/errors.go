package cases

import "errors"

var (
	// ErrCaseNotFound covers both missing cases and cases the principal may
	// not see, so case existence never leaks.
	ErrCaseNotFound = errors.New("case not found")
	// ErrActionForbidden is a role-level denial, independent of access.
	ErrActionForbidden  = errors.New("action not permitted for this role")
	ErrAlreadyCompleted = errors.New("case is already completed")
	ErrHospitalRequired = errors.New("hospital context required")
	ErrInvalidAssignee  = errors.New("assignee cannot take this case")
	ErrInvalidPriority  = errors.New("invalid priority")
	ErrCaseClosed       = errors.New("case is closed")
	ErrInvalidStatus    = errors.New("invalid status filter")
)
