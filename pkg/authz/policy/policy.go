// Package policy loads and serves the static fallback policy: the
// classification-keyed scope sets used when dynamic resolution fails or
// is disabled. The policy lives in a YAML file and can be hot-reloaded.
package policy

import (
	"fmt"
	"os"
	"sync"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// Policy maps subject classifications to the scope strings they are
// granted in degraded mode.
type Policy struct {
	Classifications map[string][]string `yaml:"classifications"`
}

// Default returns the built-in policy used when no policy file is
// configured: platform admins keep full access so operators can still
// act during an outage, everyone else gets nothing.
func Default() *Policy {
	return &Policy{
		Classifications: map[string][]string{
			"platform-admin":  {"*"},
			"service-account": {},
			"standard":        {},
		},
	}
}

// Load reads and parses a policy file.
func Load(path string) (*Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read policy file: %w", err)
	}
	var p Policy
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to parse policy file: %w", err)
	}
	if p.Classifications == nil {
		p.Classifications = map[string][]string{}
	}
	return &p, nil
}

// Store holds the current policy behind a read lock so lookups stay
// cheap while reloads swap the whole policy atomically.
type Store struct {
	mu      sync.RWMutex
	path    string
	current *Policy
	log     *logrus.Logger
}

// NewStore creates a policy store. If path is empty the built-in default
// policy is used and Reload is a no-op.
func NewStore(path string, log *logrus.Logger) (*Store, error) {
	if log == nil {
		log = logrus.New()
	}
	s := &Store{path: path, current: Default(), log: log}
	if path != "" {
		p, err := Load(path)
		if err != nil {
			return nil, err
		}
		s.current = p
		log.WithField("path", path).Info("Loaded fallback policy")
	}
	return s, nil
}

// ScopesFor returns a copy of the scope set for a classification.
// Unknown classifications get no scopes.
func (s *Store) ScopesFor(classification string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	scopes := s.current.Classifications[classification]
	out := make([]string, len(scopes))
	copy(out, scopes)
	return out
}

// Reload re-reads the policy file. On parse failure the previous policy
// stays in effect.
func (s *Store) Reload() error {
	if s.path == "" {
		return nil
	}
	p, err := Load(s.path)
	if err != nil {
		s.log.WithError(err).Error("Failed to reload fallback policy, keeping previous")
		return err
	}
	s.mu.Lock()
	s.current = p
	s.mu.Unlock()
	s.log.WithField("path", s.path).Info("Reloaded fallback policy")
	return nil
}

// Path returns the policy file path, empty when using the default.
func (s *Store) Path() string {
	return s.path
}
