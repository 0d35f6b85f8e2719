// Package render composites background, captions, watermark and audio into
// the final video.
package render

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"narration-video-gen/internal"
	"narration-video-gen/internal/artifacts"
	"narration-video-gen/internal/ffmpeg"
	"narration-video-gen/internal/logging"
	"narration-video-gen/internal/model"
)

var (
	ErrRender = errors.New("render failed")
	// ErrQuotedPath means a font or temp path contains a single quote, which
	// drawtext options cannot carry through both filtergraph unquoting levels.
	ErrQuotedPath = errors.New("single quote in drawtext path")
)

// Composition is everything one render needs.
type Composition struct {
	RunID      string
	Background model.BackgroundTrack
	Captions   []model.CaptionChunk
	Audio      model.MixedAudio
	DurationS  float64
	OutputPath string
}

type Renderer struct {
	cfg       *internal.Config
	runner    ffmpeg.Runner
	artifacts *artifacts.Manager
	log       *logging.Logger
}

func New(cfg *internal.Config, runner ffmpeg.Runner, am *artifacts.Manager, log *logging.Logger) *Renderer {
	return &Renderer{cfg: cfg, runner: runner, artifacts: am, log: log}
}

// Render writes c.OutputPath, replacing any previous file there. On failure
// the partial output is removed.
func (r *Renderer) Render(ctx context.Context, c Composition) (model.RenderedVideo, error) {
	if c.DurationS <= 0 {
		return model.RenderedVideo{}, fmt.Errorf("%w: duration %v", ErrRender, c.DurationS)
	}
	if err := os.MkdirAll(filepath.Dir(c.OutputPath), 0o755); err != nil {
		return model.RenderedVideo{}, fmt.Errorf("%w: create output dir: %v", ErrRender, err)
	}

	graph, err := r.filterGraph(c)
	if errors.Is(err, ErrQuotedPath) {
		return model.RenderedVideo{}, err
	}
	if err != nil {
		return model.RenderedVideo{}, fmt.Errorf("%w: %v", ErrRender, err)
	}

	r.log.Infof("[FFMPEG] rendering %d captions over %.2fs → %s", len(c.Captions), c.DurationS, c.OutputPath)
	if _, err := r.runner.Run(ctx, "ffmpeg", r.args(c, graph)...); err != nil {
		if rmErr := os.Remove(c.OutputPath); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
			r.log.Warnf("render: could not remove partial output %s: %v", c.OutputPath, rmErr)
		}
		return model.RenderedVideo{}, fmt.Errorf("%w: %v", ErrRender, err)
	}

	st, err := os.Stat(c.OutputPath)
	if err != nil {
		return model.RenderedVideo{}, fmt.Errorf("%w: ffmpeg did not create output file: %s", ErrRender, c.OutputPath)
	}

	r.log.Infof("[FFMPEG] ✓ video rendered: %s (%d bytes)", c.OutputPath, st.Size())
	return model.RenderedVideo{
		Path:       c.OutputPath,
		DurationS:  c.DurationS,
		Width:      r.cfg.VideoWidth,
		Height:     r.cfg.VideoHeight,
		FPS:        r.cfg.FPS,
		VideoCodec: r.cfg.VideoCodec,
		AudioCodec: r.cfg.AudioCodec,
		SizeBytes:  st.Size(),
		CreatedAt:  time.Now(),
	}, nil
}

// filterGraph draws every caption inside its [start, end) window and the
// watermark for the whole video. Text goes through files so that no caption
// content needs filtergraph escaping.
func (r *Renderer) filterGraph(c Composition) (string, error) {
	for _, v := range []string{r.cfg.TempDir, r.cfg.CaptionFont, r.cfg.WatermarkFont} {
		if strings.ContainsRune(v, '\'') {
			return "", fmt.Errorf("%w: %q", ErrQuotedPath, v)
		}
	}
	if err := os.MkdirAll(r.cfg.TempDir, 0o755); err != nil {
		return "", err
	}

	layers := make([]string, 0, len(c.Captions)+1)
	for i, chunk := range c.Captions {
		path := filepath.Join(r.cfg.TempDir, fmt.Sprintf("caption-%s-%03d.txt", c.RunID, i))
		if err := r.writeText(path, chunk.Text); err != nil {
			return "", err
		}
		layers = append(layers, CaptionFilter(path, chunk, r.cfg))
	}

	wm := filepath.Join(r.cfg.TempDir, "caption-"+c.RunID+"-watermark.txt")
	if err := r.writeText(wm, r.cfg.WatermarkText); err != nil {
		return "", err
	}
	layers = append(layers, WatermarkFilter(wm, r.cfg))

	return "[0:v]" + strings.Join(layers, ",") + "[vout]", nil
}

func (r *Renderer) writeText(path, text string) error {
	r.artifacts.Register(path)
	return os.WriteFile(path, []byte(text), 0o644)
}

// CaptionFilter is the drawtext layer of one caption chunk, horizontally
// centred at the configured caption line.
func CaptionFilter(textfile string, c model.CaptionChunk, cfg *internal.Config) string {
	return fmt.Sprintf(
		"drawtext=font='%s':textfile='%s':expansion=none:fontsize=%d:fontcolor=%s:x=(w-text_w)/2:y=%d:enable='gte(t,%s)*lt(t,%s)'",
		filterEscape(cfg.CaptionFont), filterEscape(textfile), cfg.CaptionFontSize, cfg.CaptionColor, cfg.CaptionY,
		ffmpeg.Seconds(c.StartS), ffmpeg.Seconds(c.EndS()),
	)
}

// WatermarkFilter is the boxed watermark shown for the whole video.
func WatermarkFilter(textfile string, cfg *internal.Config) string {
	return fmt.Sprintf(
		"drawtext=font='%s':textfile='%s':expansion=none:fontsize=%d:fontcolor=%s:box=1:boxcolor=%s:boxborderw=6:x=(w-text_w)/2:y=%d",
		filterEscape(cfg.WatermarkFont), filterEscape(textfile), cfg.WatermarkSize, cfg.WatermarkColor, cfg.WatermarkBoxFill, cfg.WatermarkY,
	)
}

// filterEscape prepares a value for a single quoted drawtext option. The
// filtergraph level keeps the quoted text as is and the option level then
// unescapes it, so only backslash and colon need escaping. Values must not
// contain a single quote; filterGraph rejects those.
func filterEscape(s string) string {
	s = filepath.ToSlash(s)
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, ":", `\:`)
	return s
}

func (r *Renderer) args(c Composition, graph string) []string {
	args := ffmpeg.BaseArgs()
	args = append(args,
		"-i", c.Background.LocalPath,
		"-i", c.Audio.Path,
		"-filter_complex", graph,
		"-map", "[vout]",
		"-map", "1:a",
		"-t", ffmpeg.Seconds(c.DurationS),
		"-r", strconv.Itoa(r.cfg.FPS),
		"-c:v", r.cfg.VideoCodec,
		"-preset", r.cfg.Preset,
		"-pix_fmt", "yuv420p",
		"-c:a", r.cfg.AudioCodec,
		"-b:a", "192k",
		"-movflags", "+faststart",
		c.OutputPath,
	)
	return args
}
