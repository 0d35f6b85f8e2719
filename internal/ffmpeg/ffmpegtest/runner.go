// Package ffmpegtest provides a fake ffmpeg.Runner for package tests.
package ffmpegtest

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
)

type Call struct {
	Name string
	Args []string
}

// Joined returns the arguments as one space separated string.
func (c Call) Joined() string {
	return strings.Join(c.Args, " ")
}

// Media describes what ffprobe reports for a path.
type Media struct {
	DurationS float64
	Width     int
	Height    int
	Audio     bool
}

// Runner answers ffprobe from Media and makes ffmpeg write its output file
// (the last argument). FFmpegErr, when set, fails every ffmpeg call. Any
// other tool is dispatched to Tools.
type Runner struct {
	mu        sync.Mutex
	Media     map[string]Media
	FFmpegErr error
	Tools     map[string]func(args []string) error
	Calls     []Call
}

func New() *Runner {
	return &Runner{Media: map[string]Media{}, Tools: map[string]func([]string) error{}}
}

func (r *Runner) Set(path string, m Media) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Media[path] = m
}

func (r *Runner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	r.mu.Lock()
	r.Calls = append(r.Calls, Call{Name: name, Args: append([]string(nil), args...)})
	r.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("%s: no arguments", name)
	}
	target := args[len(args)-1]

	switch name {
	case "ffprobe":
		r.mu.Lock()
		m, ok := r.Media[target]
		r.mu.Unlock()
		if !ok {
			return nil, fmt.Errorf("ffprobe error: %s: No such file or directory", target)
		}
		return []byte(ProbeJSON(m)), nil
	case "ffmpeg":
		if r.FFmpegErr != nil {
			_ = os.WriteFile(target, []byte("partial"), 0o644)
			return nil, r.FFmpegErr
		}
		return nil, os.WriteFile(target, []byte("media"), 0o644)
	default:
		if fn, ok := r.Tools[name]; ok {
			return nil, fn(args)
		}
		return nil, fmt.Errorf("unexpected tool %s", name)
	}
}

// CallsTo returns the recorded calls of one tool.
func (r *Runner) CallsTo(name string) []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Call
	for _, c := range r.Calls {
		if c.Name == name {
			out = append(out, c)
		}
	}
	return out
}

// ProbeJSON renders an ffprobe -print_format json report.
func ProbeJSON(m Media) string {
	var streams []string
	if m.Width > 0 {
		streams = append(streams, fmt.Sprintf(`{"codec_type":"video","width":%d,"height":%d}`, m.Width, m.Height))
	}
	if m.Audio {
		streams = append(streams, `{"codec_type":"audio","sample_rate":"44100"}`)
	}
	return fmt.Sprintf(`{"streams":[%s],"format":{"duration":"%.6f"}}`, strings.Join(streams, ","), m.DurationS)
}
