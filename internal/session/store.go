package session

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by a Store when the session does not exist or
// has expired.
var ErrNotFound = errors.New("session not found")

// Store persists session values by session id. Save replaces the whole
// session; Update sets and removes individual keys and leaves every other
// key alone. Both refresh the TTL, and both drop a session left empty.
type Store interface {
	Load(ctx context.Context, id string) (map[string]string, error)
	Save(ctx context.Context, id string, values map[string]string, ttl time.Duration) error
	Update(ctx context.Context, id string, set map[string]string, removed []string, ttl time.Duration) error
	Delete(ctx context.Context, id string) error
}
