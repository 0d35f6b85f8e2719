// Package mixer lays the attenuated music bed under the narration.
package mixer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"narration-video-gen/internal"
	"narration-video-gen/internal/artifacts"
	"narration-video-gen/internal/ffmpeg"
	"narration-video-gen/internal/logging"
	"narration-video-gen/internal/model"
	"narration-video-gen/internal/s3"
)

var (
	ErrMissingMusic  = errors.New("background music asset is missing")
	ErrMusicTooShort = errors.New("background music is shorter than the narration")
)

// durationSlack absorbs container rounding when comparing durations.
const durationSlack = 0.001

type Mixer struct {
	cfg       *internal.Config
	runner    ffmpeg.Runner
	store     s3.Client // optional source of the music asset
	artifacts *artifacts.Manager
	log       *logging.Logger
}

func New(cfg *internal.Config, runner ffmpeg.Runner, store s3.Client, am *artifacts.Manager, log *logging.Logger) *Mixer {
	return &Mixer{cfg: cfg, runner: runner, store: store, artifacts: am, log: log}
}

// Mix returns narration plus the first D seconds of music at the configured
// gain, where D is the narration duration. The narration is not altered.
func (m *Mixer) Mix(ctx context.Context, narration model.NarrationAudio, runID string) (model.MixedAudio, error) {
	d := narration.DurationS

	music, err := m.resolveMusic(ctx, runID)
	if err != nil {
		return model.MixedAudio{}, err
	}
	info, err := ffmpeg.Probe(ctx, m.runner, music)
	if err != nil {
		return model.MixedAudio{}, fmt.Errorf("%w: %v", ErrMissingMusic, err)
	}
	if info.DurationS+durationSlack < d {
		return model.MixedAudio{}, fmt.Errorf("%w: %.2fs of music for %.2fs of narration", ErrMusicTooShort, info.DurationS, d)
	}

	bed := model.MusicBed{SourcePath: music, SourceS: info.DurationS, DurationS: d, Gain: m.cfg.MusicGain}
	out := filepath.Join(m.cfg.TempDir, "mixed-"+runID+".m4a")
	m.artifacts.Register(out)

	m.log.Infof("mixer: mixing %.2fs narration with music at gain %.2f", d, bed.Gain)
	if _, err := m.runner.Run(ctx, "ffmpeg", m.mixArgs(narration.Path, bed, out)...); err != nil {
		return model.MixedAudio{}, fmt.Errorf("mix: %w", err)
	}

	m.log.Infof("mixer: ✓ mixed audio ready: %s", out)
	return model.MixedAudio{Path: out, DurationS: d, Bed: bed}, nil
}

// resolveMusic returns a local path to the music asset, fetching it from
// object storage when only MusicS3Key is usable.
func (m *Mixer) resolveMusic(ctx context.Context, runID string) (string, error) {
	if m.cfg.MusicPath != "" {
		if st, err := os.Stat(m.cfg.MusicPath); err == nil && !st.IsDir() {
			return m.cfg.MusicPath, nil
		}
	}
	if m.cfg.MusicS3Key == "" || m.store == nil {
		return "", fmt.Errorf("%w: %s", ErrMissingMusic, m.cfg.MusicPath)
	}

	if err := os.MkdirAll(m.cfg.TempDir, 0o755); err != nil {
		return "", fmt.Errorf("create temp dir: %w", err)
	}
	local := filepath.Join(m.cfg.TempDir, "music-"+runID+filepath.Ext(m.cfg.MusicS3Key))
	m.artifacts.Register(local)
	m.log.Infof("mixer: fetching music from s3 %s", m.cfg.MusicS3Key)
	if err := m.store.GetFile(ctx, m.cfg.MusicS3Key, local); err != nil {
		return "", fmt.Errorf("%w: s3 %s: %v", ErrMissingMusic, m.cfg.MusicS3Key, err)
	}
	return local, nil
}

// FilterGraph trims the music to durationS, scales it by gain and mixes it
// under the narration without renormalizing either input.
func FilterGraph(durationS, gain float64) string {
	return fmt.Sprintf(
		"[1:a]atrim=0:%s,asetpts=PTS-STARTPTS,volume=%.3f[bed];"+
			"[0:a][bed]amix=inputs=2:duration=first:dropout_transition=0:normalize=0[aout]",
		ffmpeg.Seconds(durationS), gain,
	)
}

func (m *Mixer) mixArgs(narration string, bed model.MusicBed, out string) []string {
	args := ffmpeg.BaseArgs()
	args = append(args,
		"-i", narration,
		"-i", bed.SourcePath,
		"-filter_complex", FilterGraph(bed.DurationS, bed.Gain),
		"-map", "[aout]",
		"-t", ffmpeg.Seconds(bed.DurationS),
		"-c:a", m.cfg.AudioCodec,
		"-b:a", "192k",
		out,
	)
	return args
}
