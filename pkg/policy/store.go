package policy

import (
	"fmt"
	"os"
	"sync/atomic"

	"github.com/arbiterai/arbiter-oss/pkg/domain"
)

// Store holds the active policy snapshot. Reload swaps the pointer atomically,
// so readers always see either the old or the new policy in full.
type Store struct {
	snap atomic.Pointer[Snapshot]
}

// NewStore creates a store seeded with the given snapshot.
func NewStore(snap *Snapshot) *Store {
	s := &Store{}
	if snap != nil {
		s.snap.Store(snap)
	}
	return s
}

// LoadFile reads, parses and compiles a policy document from disk.
func LoadFile(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- path is configured at startup
	if err != nil {
		return nil, fmt.Errorf("read policy file: %w", err)
	}
	return Parse(data)
}

// Current returns the active snapshot, or nil when nothing is loaded.
func (s *Store) Current() *Snapshot {
	return s.snap.Load()
}

// Replace atomically installs a new snapshot.
func (s *Store) Replace(snap *Snapshot) {
	s.snap.Store(snap)
}

// Version returns the active policy version, or the empty string when no
// policy is loaded.
func (s *Store) Version() string {
	if snap := s.Current(); snap != nil {
		return snap.Version()
	}
	return ""
}

// Decide evaluates against the active snapshot.
func (s *Store) Decide(role, intent string, attrs map[string]string) (domain.Decision, error) {
	snap := s.Current()
	if snap == nil {
		return domain.Decision{}, domain.ErrPolicyNotLoaded
	}
	return snap.Decide(role, intent, attrs), nil
}
