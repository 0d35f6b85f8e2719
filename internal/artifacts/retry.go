package artifacts

import (
	"errors"
	"io/fs"
	"os"
	"time"
)

// Outcome is the result of a single deletion attempt.
type Outcome int

const (
	Deleted Outcome = iota
	Missing         // nothing to delete, treated as success
	Locked          // held by another process, worth retrying
	Failed          // any other error, not retried
)

func (o Outcome) String() string {
	switch o {
	case Deleted:
		return "deleted"
	case Missing:
		return "missing"
	case Locked:
		return "locked"
	default:
		return "failed"
	}
}

// AttemptFunc performs deletion attempt number n (1-based) of path.
type AttemptFunc func(path string, n int) Outcome

// RemoveAttempt adapts a remove function such as os.Remove to an AttemptFunc.
func RemoveAttempt(remove func(string) error) AttemptFunc {
	return func(path string, _ int) Outcome {
		err := remove(path)
		switch {
		case err == nil:
			return Deleted
		case errors.Is(err, fs.ErrNotExist):
			return Missing
		case isLocked(err):
			return Locked
		default:
			return Failed
		}
	}
}

// OSAttempt deletes files with os.Remove.
var OSAttempt = RemoveAttempt(os.Remove)

// RetryPolicy bounds how often a locked file is retried.
type RetryPolicy struct {
	MaxAttempts int
	Delay       time.Duration
	Sleep       func(time.Duration) // nil means time.Sleep
}

// Result records how deleting one path ended.
type Result struct {
	Path     string
	Outcome  Outcome
	Attempts int
}

// Delete calls attempt until the path is gone, a non-lock error occurs, or
// MaxAttempts is used up. The delay is applied between attempts only.
func (p RetryPolicy) Delete(path string, attempt AttemptFunc) Result {
	maxAttempts := p.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = time.Sleep
	}

	res := Result{Path: path, Outcome: Locked}
	for n := 1; n <= maxAttempts; n++ {
		res.Attempts = n
		res.Outcome = attempt(path, n)
		if res.Outcome != Locked {
			return res
		}
		if n < maxAttempts && p.Delay > 0 {
			sleep(p.Delay)
		}
	}
	return res
}
