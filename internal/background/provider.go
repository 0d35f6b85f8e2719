// Package background provides the looped background clip.
package background

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"

	"narration-video-gen/internal"
	"narration-video-gen/internal/artifacts"
	"narration-video-gen/internal/ffmpeg"
	"narration-video-gen/internal/logging"
	"narration-video-gen/internal/model"
	"narration-video-gen/internal/s3"
)

var (
	ErrNoStream        = errors.New("no usable background stream")
	ErrDownloadMissing = errors.New("downloaded background is missing")
	ErrBadTarget       = errors.New("target duration must be positive")
)

// Provider downloads (or reuses) the background clip and loops it to the
// narration length.
type Provider struct {
	cfg       *internal.Config
	dl        Downloader
	runner    ffmpeg.Runner
	store     s3.Client // optional remote cache
	artifacts *artifacts.Manager
	log       *logging.Logger

	// WorkDir is searched for misplaced downloads. Empty means the process
	// working directory.
	WorkDir string
}

func NewProvider(cfg *internal.Config, dl Downloader, runner ffmpeg.Runner, store s3.Client, am *artifacts.Manager, log *logging.Logger) *Provider {
	return &Provider{cfg: cfg, dl: dl, runner: runner, store: store, artifacts: am, log: log}
}

// CacheKey identifies a source URL in the local and remote caches.
func CacheKey(sourceURL string) string {
	h := sha256.Sum256([]byte(sourceURL))
	return hex.EncodeToString(h[:])[:16]
}

// Fetch returns a silent background exactly targetS seconds long.
func (p *Provider) Fetch(ctx context.Context, sourceURL string, targetS float64, runID string) (model.BackgroundTrack, error) {
	if targetS <= 0 {
		return model.BackgroundTrack{}, fmt.Errorf("%w: %v", ErrBadTarget, targetS)
	}
	if err := os.MkdirAll(p.cfg.TempDir, 0o755); err != nil {
		return model.BackgroundTrack{}, fmt.Errorf("create temp dir: %w", err)
	}

	clip, err := p.sourceClip(ctx, sourceURL)
	if err != nil {
		return model.BackgroundTrack{}, err
	}

	info, err := ffmpeg.Probe(ctx, p.runner, clip)
	if err != nil {
		return model.BackgroundTrack{}, fmt.Errorf("%w: %v", ErrNoStream, err)
	}
	loops, err := PlanLoop(info.DurationS, targetS)
	if err != nil {
		return model.BackgroundTrack{}, err
	}
	p.log.Infof("background: clip %.2fs, %d loops for %.2fs", info.DurationS, loops, targetS)

	looped := filepath.Join(p.cfg.TempDir, "looped-"+runID+".mp4")
	p.artifacts.Register(looped)
	if _, err := p.runner.Run(ctx, "ffmpeg", p.loopArgs(clip, looped, loops, targetS)...); err != nil {
		return model.BackgroundTrack{}, fmt.Errorf("loop background: %w", err)
	}

	p.log.Infof("background: ✓ looped background ready: %s", looped)
	return model.BackgroundTrack{
		SourceURL: sourceURL,
		ClipPath:  clip,
		LocalPath: looped,
		ClipS:     info.DurationS,
		DurationS: targetS,
		Loops:     loops,
		Width:     p.cfg.VideoWidth,
		Height:    p.cfg.VideoHeight,
	}, nil
}

// sourceClip resolves the clip from the local cache, the remote cache or a
// fresh download, in that order.
func (p *Provider) sourceClip(ctx context.Context, sourceURL string) (string, error) {
	key := CacheKey(sourceURL)
	clip := filepath.Join(p.cfg.TempDir, "background-"+key+".mp4")
	if !p.cfg.KeepBackgroundCache {
		p.artifacts.Register(clip)
	}

	if st, err := os.Stat(clip); err == nil && st.Size() > 0 {
		p.log.Infof("background: using cached clip %s", clip)
		return clip, nil
	}

	remoteKey := p.cfg.BackgroundsPrefix + key + ".mp4"
	if p.store != nil {
		err := p.store.GetFile(ctx, remoteKey, clip)
		if err == nil {
			p.log.Infof("background: restored clip from s3 %s", remoteKey)
			return clip, nil
		}
		if !errors.Is(err, s3.ErrNotExist) {
			p.log.Warnf("background: s3 cache lookup %s failed: %v", remoteKey, err)
		}
	}

	p.log.Infof("background: downloading %s", sourceURL)
	if err := p.dl.Download(ctx, sourceURL, clip); err != nil {
		os.Remove(clip)
		if errors.Is(err, ErrNoStream) {
			return "", err
		}
		return "", fmt.Errorf("%w: %v", ErrNoStream, err)
	}
	if err := p.verify(clip); err != nil {
		return "", err
	}

	if p.store != nil {
		if err := p.store.PutFile(ctx, remoteKey, clip, "video/mp4"); err != nil {
			p.log.Warnf("background: s3 cache upload %s failed: %v", remoteKey, err)
		} else {
			p.log.Infof("background: cached clip in s3 %s", remoteKey)
		}
	}
	return clip, nil
}

// verify checks the download landed at clip. A file of the same name in the
// working directory is moved into place; a tiny file is only reported.
func (p *Provider) verify(clip string) error {
	st, err := os.Stat(clip)
	if err != nil {
		wd := p.WorkDir
		if wd == "" {
			if wd, err = os.Getwd(); err != nil {
				return fmt.Errorf("%w: %s", ErrDownloadMissing, clip)
			}
		}
		stray := filepath.Join(wd, filepath.Base(clip))
		if _, serr := os.Stat(stray); serr != nil {
			return fmt.Errorf("%w: %s", ErrDownloadMissing, clip)
		}
		p.log.Warnf("background: download landed in %s, moving to %s", stray, clip)
		if err := moveFile(stray, clip); err != nil {
			return fmt.Errorf("%w: relocate %s: %v", ErrDownloadMissing, stray, err)
		}
		if st, err = os.Stat(clip); err != nil {
			return fmt.Errorf("%w: %s", ErrDownloadMissing, clip)
		}
	}

	if st.Size() < p.cfg.MinDownloadBytes {
		p.log.Warnf("background: downloaded file is only %d bytes, it may be corrupted", st.Size())
	}
	return nil
}

func moveFile(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}
	// Rename fails across filesystems.
	b, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	if err := os.WriteFile(dst, b, 0o644); err != nil {
		return err
	}
	return os.Remove(src)
}

// PlanLoop returns how many whole copies of a clip cover targetS: always
// floor(targetS/clipS)+1, so the looped result is never shorter than the
// target before trimming.
func PlanLoop(clipS, targetS float64) (int, error) {
	if clipS <= 0 {
		return 0, fmt.Errorf("%w: clip duration %v", ErrNoStream, clipS)
	}
	if targetS <= 0 {
		return 0, fmt.Errorf("%w: %v", ErrBadTarget, targetS)
	}
	return int(math.Floor(targetS/clipS)) + 1, nil
}

func (p *Provider) loopArgs(clip, out string, loops int, targetS float64) []string {
	w, h := p.cfg.VideoWidth, p.cfg.VideoHeight
	vf := fmt.Sprintf("scale=%d:%d:force_original_aspect_ratio=increase,crop=%d:%d,setsar=1,fps=%d", w, h, w, h, p.cfg.FPS)
	args := ffmpeg.BaseArgs()
	args = append(args,
		"-stream_loop", strconv.Itoa(loops-1),
		"-i", clip,
		"-t", ffmpeg.Seconds(targetS),
		"-an",
		"-vf", vf,
		"-c:v", p.cfg.VideoCodec,
		"-preset", p.cfg.Preset,
		"-pix_fmt", "yuv420p",
		out,
	)
	return args
}
