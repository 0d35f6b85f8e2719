// Package speech synthesizes the narration track.
package speech

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"narration-video-gen/internal/artifacts"
	"narration-video-gen/internal/ffmpeg"
	"narration-video-gen/internal/logging"
	"narration-video-gen/internal/model"
)

var (
	ErrEmptyText      = errors.New("narration text is empty")
	ErrEmptyNarration = errors.New("synthesized narration is empty")
	ErrUnknownEngine  = errors.New("unknown tts engine")
	ErrNoCommand      = errors.New("tts command is not configured")
)

// Synthesizer renders one run's narration into the temp dir.
type Synthesizer struct {
	engine    Engine
	runner    ffmpeg.Runner
	artifacts *artifacts.Manager
	dir       string
	log       *logging.Logger
}

func NewSynthesizer(engine Engine, runner ffmpeg.Runner, am *artifacts.Manager, dir string, log *logging.Logger) *Synthesizer {
	return &Synthesizer{engine: engine, runner: runner, artifacts: am, dir: dir, log: log}
}

// Synthesize speaks text into narration-<runID><ext> and measures the
// result. The file is registered for cleanup as soon as the engine returns.
func (s *Synthesizer) Synthesize(ctx context.Context, text, runID string) (model.NarrationAudio, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return model.NarrationAudio{}, ErrEmptyText
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return model.NarrationAudio{}, fmt.Errorf("create temp dir: %w", err)
	}

	out := filepath.Join(s.dir, "narration-"+runID+s.engine.Ext())
	s.log.Infof("speech: synthesizing %d characters → %s", len(text), out)

	err := s.engine.Synthesize(ctx, text, out)
	s.artifacts.Register(out)
	if err != nil {
		return model.NarrationAudio{}, err
	}

	if _, err := os.Stat(out); err != nil {
		return model.NarrationAudio{}, fmt.Errorf("%w: %s was not written", ErrEmptyNarration, out)
	}
	info, err := ffmpeg.Probe(ctx, s.runner, out)
	if err != nil {
		return model.NarrationAudio{}, fmt.Errorf("%w: %v", ErrEmptyNarration, err)
	}
	if info.DurationS <= 0 {
		return model.NarrationAudio{}, fmt.Errorf("%w: duration %.3fs", ErrEmptyNarration, info.DurationS)
	}

	s.log.Infof("speech: ✓ narration is %.2fs", info.DurationS)
	return model.NarrationAudio{Path: out, Text: text, DurationS: info.DurationS}, nil
}
