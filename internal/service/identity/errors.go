package identity

import "errors"

var (
	// ErrRoleUnsupported rejects a login whose role cannot be mapped, including
	// an explicit provider role outside the supported set.
	ErrRoleUnsupported = errors.New("role not supported")
	// ErrHospitalContextRequired rejects a non-system login with no hospital.
	ErrHospitalContextRequired = errors.New("hospital context required")
	// ErrProviderUnreachable is soft: callers treat the identity as still valid.
	ErrProviderUnreachable = errors.New("identity provider unreachable")
	// ErrProviderRejected is hard: the identity must be dropped.
	ErrProviderRejected = errors.New("identity provider rejected the token")
	ErrTokenInvalid     = errors.New("identity token invalid")
	ErrMissingEmail     = errors.New("identity assertion has no email")
)
