// Package secmem holds the camera agent's control-plane auth token (and
// any other short-lived secret) in memory with best-effort zeroing and
// accidental-logging protection.
package secmem

import (
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/breeze-rmm/agent/internal/logging"
)

var log = logging.L("secmem")

const redacted = "[REDACTED]"

// SecureString holds sensitive data (an enrollment or bearer token) with
// best-effort memory zeroing. Go's GC may copy or retain the backing
// array, so this is defense-in-depth, not a guarantee. Call Zero() in
// shutdown paths to overwrite the token in place.
type SecureString struct {
	mu         sync.Mutex
	data       []byte
	warnedOnce atomic.Bool
}

// NewSecureString creates a SecureString from the given string.
func NewSecureString(s string) *SecureString {
	b := make([]byte, len(s))
	copy(b, s)
	return &SecureString{data: b}
}

// Reveal returns the plaintext value, or "" if the token has been zeroed
// or s is nil. Callers should use the result immediately (e.g. to set an
// Authorization header) and avoid storing it elsewhere.
func (s *SecureString) Reveal() string {
	if s == nil {
		return ""
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.data == nil {
		if s.warnedOnce.CompareAndSwap(false, true) {
			log.Warn("Reveal called on a zeroed token")
		}
		return ""
	}
	return string(s.data)
}

// IsZeroed reports whether Zero has already been called.
func (s *SecureString) IsZeroed() bool {
	if s == nil {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data == nil
}

// Zero overwrites the backing byte slice with zeros and releases it.
// Safe to call multiple times and on a nil receiver.
func (s *SecureString) Zero() {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.data {
		s.data[i] = 0
	}
	s.data = nil
}

// String returns a redacted representation so a bare %s/Println never
// leaks the token.
func (s *SecureString) String() string {
	return redacted
}

// GoString returns a redacted representation to prevent accidental
// logging via fmt.Printf("%#v", token).
func (s *SecureString) GoString() string {
	return redacted
}

// Format implements fmt.Formatter so every verb, not just %s and %v,
// prints the redacted form.
func (s *SecureString) Format(f fmt.State, verb rune) {
	fmt.Fprint(f, redacted)
}

// MarshalJSON always marshals to the redacted placeholder, so a
// SecureString embedded in a config or status struct never serializes
// the real token.
func (s *SecureString) MarshalJSON() ([]byte, error) {
	return json.Marshal(redacted)
}

// MarshalText implements encoding.TextMarshaler with the same redaction.
func (s *SecureString) MarshalText() ([]byte, error) {
	return []byte(redacted), nil
}

// UnmarshalJSON always fails: secrets must be loaded via NewSecureString
// from config/environment, never decoded from an arbitrary JSON payload.
func (s *SecureString) UnmarshalJSON([]byte) error {
	return fmt.Errorf("secmem: SecureString cannot be unmarshaled from JSON")
}
