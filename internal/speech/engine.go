package speech

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"narration-video-gen/internal"
	"narration-video-gen/internal/ffmpeg"
)

// Engine turns text into one audio file at out.
type Engine interface {
	Synthesize(ctx context.Context, text, out string) error
	// Ext is the file extension the engine writes, including the dot.
	Ext() string
}

// EspeakEngine drives espeak-ng, which writes WAV.
type EspeakEngine struct {
	Runner ffmpeg.Runner
	Rate   int
	Voice  string
}

func (e *EspeakEngine) Ext() string { return ".wav" }

func (e *EspeakEngine) Synthesize(ctx context.Context, text, out string) error {
	args := []string{"-s", strconv.Itoa(e.Rate)}
	if e.Voice != "" {
		args = append(args, "-v", e.Voice)
	}
	args = append(args, "-w", out, "--", text)
	if _, err := e.Runner.Run(ctx, "espeak-ng", args...); err != nil {
		return fmt.Errorf("espeak-ng: %w", err)
	}
	return nil
}

// CommandEngine runs an arbitrary TTS command line. The template is split on
// whitespace first, then {text}, {output}, {rate} and {voice} are replaced
// inside each argument, so the text always stays a single argument.
//
//	edge-tts --voice en-US-GuyNeural --text {text} --write-media {output}
type CommandEngine struct {
	Runner    ffmpeg.Runner
	Template  string
	Rate      int
	Voice     string
	Extension string
}

func (e *CommandEngine) Ext() string {
	if e.Extension != "" {
		return e.Extension
	}
	return ".wav"
}

func (e *CommandEngine) Synthesize(ctx context.Context, text, out string) error {
	name, args, err := e.command(text, out)
	if err != nil {
		return err
	}
	if _, err := e.Runner.Run(ctx, name, args...); err != nil {
		return fmt.Errorf("tts command %s: %w", name, err)
	}
	return nil
}

func (e *CommandEngine) command(text, out string) (string, []string, error) {
	fields := strings.Fields(e.Template)
	if len(fields) == 0 {
		return "", nil, ErrNoCommand
	}
	r := strings.NewReplacer(
		"{text}", text,
		"{output}", out,
		"{rate}", strconv.Itoa(e.Rate),
		"{voice}", e.Voice,
	)
	args := make([]string, 0, len(fields)-1)
	for _, f := range fields[1:] {
		args = append(args, r.Replace(f))
	}
	return fields[0], args, nil
}

// NewEngine picks the engine named by cfg.TTSEngine.
func NewEngine(cfg *internal.Config, r ffmpeg.Runner) (Engine, error) {
	switch cfg.TTSEngine {
	case "", "espeak":
		return &EspeakEngine{Runner: r, Rate: cfg.SpeechRate, Voice: cfg.TTSVoice}, nil
	case "command":
		if strings.TrimSpace(cfg.TTSCommand) == "" {
			return nil, ErrNoCommand
		}
		ext := ".wav"
		if strings.Contains(cfg.TTSCommand, "edge-tts") {
			ext = ".mp3"
		}
		return &CommandEngine{Runner: r, Template: cfg.TTSCommand, Rate: cfg.SpeechRate, Voice: cfg.TTSVoice, Extension: ext}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEngine, cfg.TTSEngine)
	}
}

// Binary is the executable the engine needs on PATH.
func Binary(e Engine) string {
	switch e := e.(type) {
	case *EspeakEngine:
		return "espeak-ng"
	case *CommandEngine:
		if f := strings.Fields(e.Template); len(f) > 0 {
			return f[0]
		}
	}
	return ""
}
