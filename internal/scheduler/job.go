package scheduler

import (
	"context"
	"errors"
	"fmt"

	"github.com/samber/lo"

	"narration-video-gen/internal/logging"
	"narration-video-gen/internal/pipeline"
	"narration-video-gen/internal/uploaders"
)

// Pipeline is satisfied by *pipeline.Pipeline.
type Pipeline interface {
	Run(ctx context.Context, text, outputPath string) (pipeline.Result, error)
}

// ErrPublish is returned when the video rendered but at least one upload
// failed. The video is still on disk, so callers treat it as a warning.
var ErrPublish = errors.New("publish failed")

// TextSource supplies the narration for one run.
type TextSource func(ctx context.Context) (string, error)

// RenderJob renders one video and publishes it.
type RenderJob struct {
	Pipeline   Pipeline
	Text       TextSource
	Uploads    *uploaders.Manager // optional
	// Destinations limits publishing to these platforms. Empty means all.
	Destinations []string
	OutputPath   string
	Log        *logging.Logger
}

func (j *RenderJob) Run(ctx context.Context) error {
	text, err := j.Text(ctx)
	if err != nil {
		return fmt.Errorf("narration text: %w", err)
	}

	res, err := j.Pipeline.Run(ctx, text, j.OutputPath)
	if err != nil {
		return err
	}
	j.Log.Infof("job: ✓ run %s rendered %s (%.2fs)", res.RunID, res.Video.Path, res.Video.DurationS)

	if j.Uploads == nil {
		return nil
	}
	req := &uploaders.UploadRequest{
		RunID:    res.RunID,
		Video:    res.Video,
		Captions: res.Captions,
	}
	platforms := j.Destinations
	if len(platforms) == 0 {
		platforms = j.Uploads.AvailablePlatforms()
	}
	results := j.Uploads.UploadToSelected(ctx, platforms, req)
	failed := 0
	for _, platform := range lo.Uniq(platforms) {
		r := results[platform]
		if r == nil || !r.Success {
			failed++
			j.Log.Warnf("job: publish to %s failed: %s", platform, errString(r))
			continue
		}
		j.Log.Infof("job: ✓ published to %s %s", platform, r.URL)
	}
	if failed > 0 {
		return fmt.Errorf("%w: %d of %d destinations, video kept at %s", ErrPublish, failed, len(results), res.Video.Path)
	}
	return nil
}

func errString(r *uploaders.UploadResult) string {
	if r == nil {
		return "no result"
	}
	return r.Error
}
