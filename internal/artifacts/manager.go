package artifacts

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/samber/lo"

	"narration-video-gen/internal/logging"
	"narration-video-gen/internal/model"
)

// Report summarizes a cleanup pass. Warnings never turn into run failures.
type Report struct {
	Results  []Result
	Warnings []string
}

// Clean reports whether every path was reclaimed without a warning.
func (r Report) Clean() bool {
	return len(r.Warnings) == 0
}

// Count returns how many results ended with outcome o.
func (r Report) Count(o Outcome) int {
	return lo.CountBy(r.Results, func(res Result) bool { return res.Outcome == o })
}

// Manager tracks every temp file a run creates and deletes them at run end.
type Manager struct {
	mu        sync.Mutex
	artifacts []model.TempArtifact
	seen      map[string]bool
	policy    RetryPolicy
	attempt   AttemptFunc
	log       *logging.Logger
}

func NewManager(policy RetryPolicy, attempt AttemptFunc, log *logging.Logger) *Manager {
	if attempt == nil {
		attempt = OSAttempt
	}
	return &Manager{
		seen:    make(map[string]bool),
		policy:  policy,
		attempt: attempt,
		log:     log,
	}
}

// Register adds path to the cleanup set. Registering the same path twice is
// a no-op and returns false.
func (m *Manager) Register(path string) bool {
	if path == "" {
		return false
	}
	path = filepath.Clean(path)

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.seen[path] {
		return false
	}
	m.seen[path] = true
	m.artifacts = append(m.artifacts, model.TempArtifact{
		Path:         path,
		RetryBudget:  m.policy.MaxAttempts,
		RegisteredAt: time.Now(),
	})
	return true
}

// Artifacts returns the paths registered and not yet cleaned up.
func (m *Manager) Artifacts() []model.TempArtifact {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.TempArtifact(nil), m.artifacts...)
}

// Cleanup attempts deletion of every registered path exactly once, in
// registration order, then forgets them.
func (m *Manager) Cleanup() Report {
	m.mu.Lock()
	pending := m.artifacts
	m.artifacts = nil
	m.seen = make(map[string]bool)
	m.mu.Unlock()

	var rep Report
	for _, a := range pending {
		res := m.policy.Delete(a.Path, m.logged(m.attempt))
		rep.Results = append(rep.Results, res)

		switch res.Outcome {
		case Deleted:
			m.log.Infof("cleanup: ✓ deleted temporary file %s", a.Path)
		case Missing:
			m.log.Infof("cleanup: %s already gone", a.Path)
		case Locked:
			msg := fmt.Sprintf("could not delete %s after %d attempts, file may still be in use", a.Path, res.Attempts)
			m.log.Warnf("cleanup: %s", msg)
			rep.Warnings = append(rep.Warnings, msg)
		case Failed:
			msg := fmt.Sprintf("error deleting %s", a.Path)
			m.log.Errorf("cleanup: %s", msg)
			rep.Warnings = append(rep.Warnings, msg)
		}
	}
	return rep
}

func (m *Manager) logged(attempt AttemptFunc) AttemptFunc {
	return func(path string, n int) Outcome {
		out := attempt(path, n)
		if out == Locked && n < m.policy.MaxAttempts {
			m.log.Infof("cleanup: %s is locked (attempt %d/%d), retrying in %v", path, n, m.policy.MaxAttempts, m.policy.Delay)
		}
		return out
	}
}
