package ffmpeg

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"narration-video-gen/internal/logging"
)

// Runner executes an external media tool and returns its stdout.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// ffmpegSem limits the number of concurrent ffmpeg processes to 1 to avoid
// "pthread_create() failed: Resource temporarily unavailable" under heavy load.
var ffmpegSem = make(chan struct{}, 1)

type execRunner struct {
	log *logging.Logger
}

// NewRunner returns a Runner backed by os/exec.
func NewRunner(log *logging.Logger) Runner {
	return &execRunner{log: log}
}

func (r *execRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	if name == "ffmpeg" {
		// Acquire semaphore – only one ffmpeg process at a time.
		select {
		case ffmpegSem <- struct{}{}:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		defer func() { <-ffmpegSem }()
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	// Run waits for the process, so every file handle it held is released
	// before we return, including on failure.
	if err := cmd.Run(); err != nil {
		errMsg := strings.TrimSpace(stderr.String())
		if errMsg == "" {
			errMsg = err.Error()
		}
		r.log.Errorf("[FFMPEG] ✗ %s failed (exit code: %v): %s", name, err, errMsg)
		return stdout.Bytes(), fmt.Errorf("%s error: %s", name, errMsg)
	}
	return stdout.Bytes(), nil
}

// Seconds formats a duration in seconds for ffmpeg arguments.
func Seconds(s float64) string {
	return strconv.FormatFloat(s, 'f', 3, 64)
}

// BaseArgs are the flags every ffmpeg invocation starts with.
func BaseArgs() []string {
	return []string{"-hide_banner", "-loglevel", "error", "-y"}
}
