package artifacts

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/samber/lo"

	"narration-video-gen/internal/logging"
)

// TempPatterns match the files a run leaves in its temp dir.
var TempPatterns = []string{
	"narration-*",
	"mixed-*.m4a",
	"background-*.mp4",
	"looped-*.mp4",
	"music-*",
	"caption-*.txt",
	"*.part",
}

// SweepPatterns returns the TempPatterns a sweep may delete. A background
// cache the configuration keeps is left alone.
func SweepPatterns(keepBackgroundCache bool) []string {
	if !keepBackgroundCache {
		return TempPatterns
	}
	return lo.Filter(TempPatterns, func(p string, _ int) bool {
		return !strings.HasPrefix(p, "background-")
	})
}

// Sweep deletes files in dir matching patterns whose modification time is
// older than maxAge. It reclaims what crashed runs could not.
func Sweep(dir string, patterns []string, maxAge time.Duration, now time.Time, policy RetryPolicy, attempt AttemptFunc, log *logging.Logger) (Report, error) {
	if attempt == nil {
		attempt = OSAttempt
	}

	seen := make(map[string]bool)
	var stale []string
	for _, p := range patterns {
		matches, err := filepath.Glob(filepath.Join(dir, p))
		if err != nil {
			return Report{}, fmt.Errorf("glob %s: %w", p, err)
		}
		for _, path := range matches {
			if seen[path] {
				continue
			}
			seen[path] = true
			info, err := os.Stat(path)
			if err != nil || info.IsDir() {
				continue
			}
			if now.Sub(info.ModTime()) < maxAge {
				continue
			}
			stale = append(stale, path)
		}
	}
	sort.Strings(stale)

	log.Infof("sweep: %d stale artifacts in %s (older than %v)", len(stale), dir, maxAge)
	m := NewManager(policy, attempt, log)
	for _, path := range stale {
		m.Register(path)
	}
	return m.Cleanup(), nil
}
