package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Keys used by request handling.
const (
	KeyHospital           = "hospital.current"
	KeyRedirectNotice     = "hospital.redirect_notice"
	KeyUserID             = "auth.user_id"
	KeyIdentityValidated  = "identity.last_validated"
	KeyIdentityIDToken    = "identity.id_token"
	KeyIdentityAccess     = "identity.access_token"
	KeyIdentityStateNonce = "identity.state_nonce"
)

// IdentityKeys are every key derived from a federated login.
var IdentityKeys = []string{KeyIdentityValidated, KeyIdentityIDToken, KeyIdentityAccess, KeyIdentityStateNonce}

// Session is the state of one browser session. A Session value belongs to
// one request and is not safe for concurrent use. Concurrent requests on
// the same session id each hold their own copy; Save writes back only the
// keys this copy changed, so they do not erase each other's keys.
type Session struct {
	id      string
	values  map[string]string
	store   Store
	ttl     time.Duration
	isNew   bool
	dirty   bool
	oldID   string
	deleted bool

	// replace forces a full write: the stored copy is absent or stale.
	replace bool
	changed map[string]struct{}
	removed map[string]struct{}
}

// New starts an empty session with a fresh id.
func New(store Store, ttl time.Duration) *Session {
	return &Session{
		id:      uuid.NewString(),
		values:  make(map[string]string),
		store:   store,
		ttl:     ttl,
		isNew:   true,
		replace: true,
		changed: make(map[string]struct{}),
		removed: make(map[string]struct{}),
	}
}

// Load fetches the session with id, starting a new one when it is unknown
// or expired.
func Load(ctx context.Context, store Store, id string, ttl time.Duration) (*Session, error) {
	if id == "" {
		return New(store, ttl), nil
	}
	values, err := store.Load(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return New(store, ttl), nil
	}
	if err != nil {
		return nil, err
	}
	return &Session{
		id:      id,
		values:  values,
		store:   store,
		ttl:     ttl,
		changed: make(map[string]struct{}),
		removed: make(map[string]struct{}),
	}, nil
}

func (s *Session) ID() string { return s.id }

// IsNew reports whether the session was created by this request.
func (s *Session) IsNew() bool { return s.isNew }

// Dirty reports whether the session has unsaved changes.
func (s *Session) Dirty() bool { return s.dirty }

func (s *Session) Get(key string) (string, bool) {
	v, ok := s.values[key]
	return v, ok
}

func (s *Session) Set(key, value string) {
	if cur, ok := s.values[key]; ok && cur == value {
		return
	}
	s.values[key] = value
	s.changed[key] = struct{}{}
	delete(s.removed, key)
	s.dirty = true
}

func (s *Session) Delete(keys ...string) {
	for _, key := range keys {
		if _, ok := s.values[key]; ok {
			delete(s.values, key)
			delete(s.changed, key)
			s.removed[key] = struct{}{}
			s.dirty = true
		}
	}
}

// Take returns the value under key and removes it.
func (s *Session) Take(key string) (string, bool) {
	v, ok := s.values[key]
	if ok {
		s.Delete(key)
	}
	return v, ok
}

func (s *Session) SetJSON(key string, v interface{}) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode session value %s: %w", key, err)
	}
	s.Set(key, string(raw))
	return nil
}

// GetJSON decodes the value under key into v. A value that no longer
// decodes is dropped from the session and reported as absent.
func (s *Session) GetJSON(key string, v interface{}) bool {
	raw, ok := s.values[key]
	if !ok {
		return false
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		s.Delete(key)
		return false
	}
	return true
}

// TakeJSON is GetJSON followed by removal of the key.
func (s *Session) TakeJSON(key string, v interface{}) bool {
	ok := s.GetJSON(key, v)
	s.Delete(key)
	return ok
}

func (s *Session) SetTime(key string, t time.Time) {
	s.Set(key, t.UTC().Format(time.RFC3339Nano))
}

func (s *Session) GetTime(key string) (time.Time, bool) {
	raw, ok := s.values[key]
	if !ok {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// Regenerate moves the session to a new id, keeping its values. Call it
// when the principal changes so a pre-login id cannot be reused.
func (s *Session) Regenerate() {
	if !s.isNew && s.oldID == "" {
		s.oldID = s.id
	}
	s.id = uuid.NewString()
	s.replace = true
	s.dirty = true
}

// Clear drops every value.
func (s *Session) Clear() {
	if len(s.values) > 0 {
		s.values = make(map[string]string)
		s.replace = true
		s.dirty = true
	}
}

// Save persists the session if it changed. A new, regenerated or cleared
// session is written whole; otherwise only the keys set or deleted since
// the last save are written.
func (s *Session) Save(ctx context.Context) error {
	if s.deleted || !s.dirty {
		return nil
	}
	if s.oldID != "" {
		if err := s.store.Delete(ctx, s.oldID); err != nil {
			return err
		}
		s.oldID = ""
	}

	var err error
	if s.replace {
		err = s.store.Save(ctx, s.id, s.values, s.ttl)
	} else {
		set := make(map[string]string, len(s.changed))
		for key := range s.changed {
			set[key] = s.values[key]
		}
		removed := make([]string, 0, len(s.removed))
		for key := range s.removed {
			removed = append(removed, key)
		}
		err = s.store.Update(ctx, s.id, set, removed, s.ttl)
	}
	if err != nil {
		return err
	}

	s.dirty = false
	s.isNew = false
	s.replace = false
	s.changed = make(map[string]struct{})
	s.removed = make(map[string]struct{})
	return nil
}

// Destroy removes the session from the store.
func (s *Session) Destroy(ctx context.Context) error {
	s.values = make(map[string]string)
	s.deleted = true
	s.dirty = false
	return s.store.Delete(ctx, s.id)
}

// Destroyed reports whether Destroy was called.
func (s *Session) Destroyed() bool { return s.deleted }
