package speech

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
)

// fakeEngine writes a file and tells the fake ffprobe how long it is.
type fakeEngine struct {
	runner   *ffmpegtest.Runner
	duration float64
	write    bool
	err      error
	texts    []string
}

func (f *fakeEngine) Ext() string { return ".wav" }

func (f *fakeEngine) Synthesize(_ context.Context, text, out string) error {
	f.texts = append(f.texts, text)
	if f.write {
		if err := os.WriteFile(out, []byte("RIFF"), 0o644); err != nil {
			return err
		}
		f.runner.Set(out, ffmpegtest.Media{DurationS: f.duration, Audio: true})
	}
	return f.err
}

func newTestSynth(t *testing.T, e *fakeEngine) (*Synthesizer, *artifacts.Manager, string) {
	t.Helper()
	dir := t.TempDir()
	am := artifacts.NewManager(artifacts.RetryPolicy{MaxAttempts: 1}, nil, logging.Discard())
	return NewSynthesizer(e, e.runner, am, dir, logging.Discard()), am, dir
}

func TestSynthesizeMeasuresDuration(t *testing.T) {
	e := &fakeEngine{runner: ffmpegtest.New(), duration: 6.0, write: true}
	s, am, dir := newTestSynth(t, e)

	got, err := s.Synthesize(context.Background(), "  Open a new savings account.  ", "run1")
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if got.DurationS != 6.0 {
		t.Errorf("duration = %v; want 6.0", got.DurationS)
	}
	if got.Text != "Open a new savings account." {
		t.Errorf("text not trimmed: %q", got.Text)
	}
	if want := filepath.Join(dir, "narration-run1.wav"); got.Path != want {
		t.Errorf("path = %s; want %s", got.Path, want)
	}
	if len(am.Artifacts()) != 1 || am.Artifacts()[0].Path != got.Path {
		t.Errorf("narration not registered: %+v", am.Artifacts())
	}
}

func TestSynthesizeFailures(t *testing.T) {
	tests := []struct {
		name         string
		text         string
		engine       *fakeEngine
		wantErr      error
		wantRegister bool
	}{
		{"empty text", "   ", &fakeEngine{write: true, duration: 1}, ErrEmptyText, false},
		{"nothing written", "hello", &fakeEngine{}, ErrEmptyNarration, true},
		{"zero duration", "hello", &fakeEngine{write: true, duration: 0}, ErrEmptyNarration, true},
		{"engine error", "hello", &fakeEngine{write: true, duration: 1, err: errBoom}, errBoom, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			tc.engine.runner = ffmpegtest.New()
			s, am, _ := newTestSynth(t, tc.engine)

			_, err := s.Synthesize(context.Background(), tc.text, "x")
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("err = %v; want %v", err, tc.wantErr)
			}
			if got := len(am.Artifacts()) == 1; got != tc.wantRegister {
				t.Errorf("registered = %v; want %v", got, tc.wantRegister)
			}
		})
	}
}

var errBoom = errors.New("engine crashed")

func TestEspeakEngineArgs(t *testing.T) {
	r := ffmpegtest.New()
	var got []string
	r.Tools["espeak-ng"] = func(args []string) error {
		got = args
		return nil
	}
	e := &EspeakEngine{Runner: r, Rate: 140, Voice: "en-us"}
	if err := e.Synthesize(context.Background(), "-leading dash text", "/tmp/n.wav"); err != nil {
		t.Fatal(err)
	}
	want := "-s 140 -v en-us -w /tmp/n.wav -- -leading dash text"
	if strings.Join(got, " ") != want {
		t.Errorf("args = %q; want %q", strings.Join(got, " "), want)
	}
}

func TestCommandEngineTemplate(t *testing.T) {
	r := ffmpegtest.New()
	var got []string
	r.Tools["edge-tts"] = func(args []string) error {
		got = args
		return nil
	}
	e := &CommandEngine{
		Runner:   r,
		Template: "edge-tts --voice {voice} --rate=+{rate}% --text {text} --write-media {output}",
		Rate:     140,
		Voice:    "en-US-GuyNeural",
	}
	if err := e.Synthesize(context.Background(), "two words", "/tmp/n.mp3"); err != nil {
		t.Fatal(err)
	}
	want := []string{"--voice", "en-US-GuyNeural", "--rate=+140%", "--text", "two words", "--write-media", "/tmp/n.mp3"}
	if len(got) != len(want) {
		t.Fatalf("args = %q; want %q", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("arg %d = %q; want %q", i, got[i], want[i])
		}
	}
}

func TestNewEngine(t *testing.T) {
	cfg := internal.Default()
	r := ffmpegtest.New()

	e, err := NewEngine(&cfg, r)
	if err != nil {
		t.Fatal(err)
	}
	if Binary(e) != "espeak-ng" {
		t.Errorf("default engine binary = %q", Binary(e))
	}

	cfg.TTSEngine = "command"
	if _, err := NewEngine(&cfg, r); !errors.Is(err, ErrNoCommand) {
		t.Errorf("command without template: %v", err)
	}
	cfg.TTSCommand = "edge-tts --text {text} --write-media {output}"
	e, err = NewEngine(&cfg, r)
	if err != nil {
		t.Fatal(err)
	}
	if e.Ext() != ".mp3" || Binary(e) != "edge-tts" {
		t.Errorf("edge-tts engine: ext %q binary %q", e.Ext(), Binary(e))
	}

	cfg.TTSEngine = "pyttsx3"
	if _, err := NewEngine(&cfg, r); !errors.Is(err, ErrUnknownEngine) {
		t.Errorf("unknown engine: %v", err)
	}
}
