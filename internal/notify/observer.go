// Package notify reports run progress to interested parties. Observers are
// fire-and-forget: nothing they do can fail a run.
package notify

import (
	"time"

	"narration-video-gen/internal/logging"
)

type Stage string

const (
	StageStarted    Stage = "started"
	StageNarration  Stage = "narration"
	StageCaptions   Stage = "captions"
	StageBackground Stage = "background"
	StageAudio      Stage = "audio"
	StageRender     Stage = "render"
	StageCleanup    Stage = "cleanup"
)

// Event marks the completion of a stage.
type Event struct {
	RunID   string
	Stage   Stage
	Message string
	At      time.Time
}

type Observer interface {
	Progress(e Event)
	// RenderDone carries the output path on success or the run error.
	RenderDone(runID, path string, err error)
}

// Nop ignores everything.
type Nop struct{}

func (Nop) Progress(Event)                   {}
func (Nop) RenderDone(string, string, error) {}

// Multi fans events out to every observer in order.
func Multi(obs ...Observer) Observer {
	return multi(obs)
}

type multi []Observer

func (m multi) Progress(e Event) {
	for _, o := range m {
		o.Progress(e)
	}
}

func (m multi) RenderDone(runID, path string, err error) {
	for _, o := range m {
		o.RenderDone(runID, path, err)
	}
}

// LogObserver writes progress to the logger.
type LogObserver struct {
	Log *logging.Logger
}

func (o LogObserver) Progress(e Event) {
	o.Log.Infof("run %s: %s: %s", e.RunID, e.Stage, e.Message)
}

func (o LogObserver) RenderDone(runID, path string, err error) {
	if err != nil {
		o.Log.Errorf("run %s: ✗ failed: %v", runID, err)
		return
	}
	o.Log.Infof("run %s: ✓ video ready: %s", runID, path)
}
