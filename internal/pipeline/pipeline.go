// Package pipeline runs narration → captions → background → mix → render
// strictly in order and always reclaims the run's temp files.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"narration-video-gen/internal"
	"narration-video-gen/internal/artifacts"
	"narration-video-gen/internal/background"
	"narration-video-gen/internal/captions"
	"narration-video-gen/internal/ffmpeg"
	"narration-video-gen/internal/logging"
	"narration-video-gen/internal/mixer"
	"narration-video-gen/internal/model"
	"narration-video-gen/internal/notify"
	"narration-video-gen/internal/render"
	"narration-video-gen/internal/s3"
	"narration-video-gen/internal/speech"
)

var ErrMissingTool = errors.New("required tool not found on PATH")

// Deps are the pipeline's collaborators. Only Engine, Downloader and Runner
// are required.
type Deps struct {
	Engine     speech.Engine
	Downloader background.Downloader
	Runner     ffmpeg.Runner
	Store      s3.Client
	Observer   notify.Observer

	// Test hooks. Nil means the real implementation.
	Attempt  artifacts.AttemptFunc
	Sleep    func(time.Duration)
	LookPath func(file string) (string, error)
	NewRunID func() string
}

// Result describes one successful or failed run. Cleanup is always filled.
type Result struct {
	RunID      string
	Narration  model.NarrationAudio
	Captions   []model.CaptionChunk
	Background model.BackgroundTrack
	Audio      model.MixedAudio
	Video      model.RenderedVideo
	Cleanup    artifacts.Report
}

type Pipeline struct {
	cfg  internal.Config
	deps Deps
	log  *logging.Logger

	// mu serializes runs: every run shares the temp dir and background cache.
	mu sync.Mutex
}

func New(cfg internal.Config, deps Deps, log *logging.Logger) *Pipeline {
	if deps.Observer == nil {
		deps.Observer = notify.Nop{}
	}
	if deps.Sleep == nil {
		deps.Sleep = time.Sleep
	}
	if deps.LookPath == nil {
		deps.LookPath = exec.LookPath
	}
	if deps.NewRunID == nil {
		deps.NewRunID = func() string { return uuid.NewString()[:8] }
	}
	return &Pipeline{cfg: cfg, deps: deps, log: log}
}

// CheckPrerequisites reports every external tool missing from PATH.
func (p *Pipeline) CheckPrerequisites() error {
	tools := []string{"ffmpeg", "ffprobe"}
	if bin := speech.Binary(p.deps.Engine); bin != "" {
		tools = append(tools, bin)
	}
	var missing []string
	for _, t := range tools {
		if _, err := p.deps.LookPath(t); err != nil {
			missing = append(missing, t)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingTool, strings.Join(missing, ", "))
	}
	return nil
}

// Run renders text into outputPath (cfg.OutputPath when empty). Concurrent
// callers wait for each other. The caller's context is the only timeout.
func (p *Pipeline) Run(ctx context.Context, text, outputPath string) (res Result, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if outputPath == "" {
		outputPath = p.cfg.OutputPath
	}
	runID := p.deps.NewRunID()
	res.RunID = runID
	obs := p.deps.Observer
	cfg := &p.cfg

	am := artifacts.NewManager(artifacts.RetryPolicy{
		MaxAttempts: cfg.CleanupAttempts,
		Delay:       cfg.CleanupDelay,
		Sleep:       p.deps.Sleep,
	}, p.deps.Attempt, p.log)

	defer func() {
		res.Cleanup = am.Cleanup()
		obs.Progress(p.event(runID, notify.StageCleanup, fmt.Sprintf("%d files, %d warnings", len(res.Cleanup.Results), len(res.Cleanup.Warnings))))
		if err != nil {
			p.log.Errorf("pipeline: run %s failed: %v", runID, err)
			obs.RenderDone(runID, "", err)
			return
		}
		obs.RenderDone(runID, res.Video.Path, nil)
	}()

	if err := p.CheckPrerequisites(); err != nil {
		return res, err
	}
	obs.Progress(p.event(runID, notify.StageStarted, fmt.Sprintf("%d words → %s", len(strings.Fields(text)), outputPath)))

	res.Narration, err = speech.NewSynthesizer(p.deps.Engine, p.deps.Runner, am, cfg.TempDir, p.log).Synthesize(ctx, text, runID)
	if err != nil {
		return res, fmt.Errorf("synthesize: %w", err)
	}
	d := res.Narration.DurationS
	obs.Progress(p.event(runID, notify.StageNarration, fmt.Sprintf("%.2fs", d)))

	res.Captions = captions.Build(res.Narration.Text, d, cfg.CaptionWidth)
	obs.Progress(p.event(runID, notify.StageCaptions, fmt.Sprintf("%d chunks", len(res.Captions))))

	res.Background, err = background.NewProvider(cfg, p.deps.Downloader, p.deps.Runner, p.deps.Store, am, p.log).
		Fetch(ctx, cfg.BackgroundURL, d, runID)
	if err != nil {
		return res, fmt.Errorf("download background: %w", err)
	}
	obs.Progress(p.event(runID, notify.StageBackground, fmt.Sprintf("%d loops of %.2fs", res.Background.Loops, res.Background.ClipS)))

	res.Audio, err = mixer.New(cfg, p.deps.Runner, p.deps.Store, am, p.log).Mix(ctx, res.Narration, runID)
	if err != nil {
		return res, fmt.Errorf("mix audio: %w", err)
	}
	obs.Progress(p.event(runID, notify.StageAudio, fmt.Sprintf("music bed at %.2f", res.Audio.Bed.Gain)))

	res.Video, err = render.New(cfg, p.deps.Runner, am, p.log).Render(ctx, render.Composition{
		RunID:      runID,
		Background: res.Background,
		Captions:   res.Captions,
		Audio:      res.Audio,
		DurationS:  d,
		OutputPath: outputPath,
	})
	if err != nil {
		return res, fmt.Errorf("render: %w", err)
	}
	obs.Progress(p.event(runID, notify.StageRender, res.Video.Path))

	return res, nil
}

// Sweep reclaims stale temp files left by crashed runs. It waits for any run
// in progress so it never deletes files that run is using.
func (p *Pipeline) Sweep(now time.Time) (artifacts.Report, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	cfg := &p.cfg
	report, err := artifacts.Sweep(cfg.TempDir, artifacts.SweepPatterns(cfg.KeepBackgroundCache), cfg.SweepMaxAge, now,
		artifacts.RetryPolicy{MaxAttempts: cfg.CleanupAttempts, Delay: cfg.CleanupDelay, Sleep: p.deps.Sleep},
		p.deps.Attempt, p.log)
	if err != nil {
		return report, err
	}
	p.log.Infof("sweep: %d deleted, %d warnings", report.Count(artifacts.Deleted), len(report.Warnings))
	return report, nil
}

func (p *Pipeline) event(runID string, stage notify.Stage, msg string) notify.Event {
	return notify.Event{RunID: runID, Stage: stage, Message: msg, At: time.Now()}
}

// IsConfigError reports whether err comes from configuration or input
// rather than from a failing external dependency.
func IsConfigError(err error) bool {
	for _, target := range []error{
		speech.ErrEmptyText,
		speech.ErrEmptyNarration,
		speech.ErrUnknownEngine,
		speech.ErrNoCommand,
		mixer.ErrMissingMusic,
		mixer.ErrMusicTooShort,
		background.ErrBadTarget,
		render.ErrQuotedPath,
		ErrMissingTool,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
