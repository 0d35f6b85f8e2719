package mixer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"narration-video-gen/internal"
	"narration-video-gen/internal/artifacts"
	"narration-video-gen/internal/ffmpeg/ffmpegtest"
	"narration-video-gen/internal/logging"
	"narration-video-gen/internal/model"
	"narration-video-gen/internal/s3/s3test"
)

type fixture struct {
	cfg       internal.Config
	runner    *ffmpegtest.Runner
	am        *artifacts.Manager
	narration model.NarrationAudio
}

func newFixture(t *testing.T, musicS float64) *fixture {
	t.Helper()
	dir := t.TempDir()
	cfg := internal.Default()
	cfg.TempDir = filepath.Join(dir, "temp")
	cfg.MusicPath = filepath.Join(dir, "background_music.mp3")
	if err := os.WriteFile(cfg.MusicPath, []byte("ID3"), 0o644); err != nil {
		t.Fatal(err)
	}

	f := &fixture{
		cfg:       cfg,
		runner:    ffmpegtest.New(),
		am:        artifacts.NewManager(artifacts.RetryPolicy{MaxAttempts: 1}, nil, logging.Discard()),
		narration: model.NarrationAudio{Path: filepath.Join(dir, "narration-run1.wav"), DurationS: 6.0},
	}
	f.runner.Set(cfg.MusicPath, ffmpegtest.Media{DurationS: musicS, Audio: true})
	if err := os.MkdirAll(cfg.TempDir, 0o755); err != nil {
		t.Fatal(err)
	}
	return f
}

func TestMixDurationFollowsNarration(t *testing.T) {
	f := newFixture(t, 180)
	m := New(&f.cfg, f.runner, nil, f.am, logging.Discard())

	mixed, err := m.Mix(context.Background(), f.narration, "run1")
	if err != nil {
		t.Fatalf("Mix: %v", err)
	}
	if mixed.DurationS != f.narration.DurationS {
		t.Errorf("mixed duration = %v; want narration duration %v", mixed.DurationS, f.narration.DurationS)
	}
	if mixed.Bed.DurationS != 6.0 || mixed.Bed.Gain != 0.15 {
		t.Errorf("bed = %+v; want 6s at 0.15", mixed.Bed)
	}

	calls := f.runner.CallsTo("ffmpeg")
	if len(calls) != 1 {
		t.Fatalf("ffmpeg calls = %d; want 1", len(calls))
	}
	args := calls[0].Joined()
	for _, want := range []string{"-i " + f.narration.Path, "-i " + f.cfg.MusicPath, "atrim=0:6.000", "volume=0.150", "normalize=0", "-t 6.000", "-c:a aac"} {
		if !strings.Contains(args, want) {
			t.Errorf("ffmpeg args %q missing %q", args, want)
		}
	}
	if got := f.am.Artifacts(); len(got) != 1 || got[0].Path != mixed.Path {
		t.Errorf("mixed output not registered: %+v", got)
	}
}

func TestMixMusicErrors(t *testing.T) {
	t.Run("too short", func(t *testing.T) {
		f := newFixture(t, 4.0)
		_, err := New(&f.cfg, f.runner, nil, f.am, logging.Discard()).Mix(context.Background(), f.narration, "run1")
		if !errors.Is(err, ErrMusicTooShort) {
			t.Errorf("err = %v; want ErrMusicTooShort", err)
		}
	})

	t.Run("missing asset", func(t *testing.T) {
		f := newFixture(t, 180)
		f.cfg.MusicPath = filepath.Join(t.TempDir(), "nope.mp3")
		_, err := New(&f.cfg, f.runner, nil, f.am, logging.Discard()).Mix(context.Background(), f.narration, "run1")
		if !errors.Is(err, ErrMissingMusic) {
			t.Errorf("err = %v; want ErrMissingMusic", err)
		}
	})

	t.Run("missing in s3 too", func(t *testing.T) {
		f := newFixture(t, 180)
		f.cfg.MusicPath = ""
		f.cfg.MusicS3Key = "music/bed.mp3"
		_, err := New(&f.cfg, f.runner, s3test.New(), f.am, logging.Discard()).Mix(context.Background(), f.narration, "run1")
		if !errors.Is(err, ErrMissingMusic) {
			t.Errorf("err = %v; want ErrMissingMusic", err)
		}
	})
}

func TestMixFetchesMusicFromS3(t *testing.T) {
	f := newFixture(t, 180)
	f.cfg.MusicPath = ""
	f.cfg.MusicS3Key = "music/bed.mp3"
	store := s3test.New()
	store.Put("music/bed.mp3", []byte("ID3"))
	local := filepath.Join(f.cfg.TempDir, "music-run1.mp3")
	f.runner.Set(local, ffmpegtest.Media{DurationS: 90, Audio: true})

	mixed, err := New(&f.cfg, f.runner, store, f.am, logging.Discard()).Mix(context.Background(), f.narration, "run1")
	if err != nil {
		t.Fatalf("Mix: %v", err)
	}
	if mixed.Bed.SourcePath != local {
		t.Errorf("bed source = %s; want %s", mixed.Bed.SourcePath, local)
	}
	if len(f.am.Artifacts()) != 2 {
		t.Errorf("fetched music and mix must both be registered: %+v", f.am.Artifacts())
	}
}

func TestFilterGraph(t *testing.T) {
	got := FilterGraph(31.25, 0.15)
	want := "[1:a]atrim=0:31.250,asetpts=PTS-STARTPTS,volume=0.150[bed];[0:a][bed]amix=inputs=2:duration=first:dropout_transition=0:normalize=0[aout]"
	if got != want {
		t.Errorf("FilterGraph = %q\nwant %q", got, want)
	}
}
