package internal

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.CaptionWidth != 50 || cfg.CleanupAttempts != 5 || cfg.CleanupDelay != time.Second {
		t.Errorf("unexpected defaults: width=%d attempts=%d delay=%v", cfg.CaptionWidth, cfg.CleanupAttempts, cfg.CleanupDelay)
	}
	if cfg.S3Enabled() || cfg.TelegramEnabled() {
		t.Errorf("optional integrations must be disabled by default")
	}
}

func TestLoadConfigYAMLThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "narrator.yaml")
	yml := `
speech_rate: 160
caption_width: 40
music_gain: 0.2
cleanup_delay: 250ms
temp_dir: /tmp/narrator
`
	if err := os.WriteFile(path, []byte(yml), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CAPTION_WIDTH", "32")
	t.Setenv("S3_ACCESS_KEY_ID", "key")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.SpeechRate != 160 {
		t.Errorf("SpeechRate = %d; want 160", cfg.SpeechRate)
	}
	if cfg.CaptionWidth != 32 {
		t.Errorf("CaptionWidth = %d; want env override 32", cfg.CaptionWidth)
	}
	if cfg.MusicGain != 0.2 {
		t.Errorf("MusicGain = %v; want 0.2", cfg.MusicGain)
	}
	if cfg.CleanupDelay != 250*time.Millisecond {
		t.Errorf("CleanupDelay = %v; want 250ms", cfg.CleanupDelay)
	}
	if cfg.TempDir != "/tmp/narrator" {
		t.Errorf("TempDir = %q", cfg.TempDir)
	}
	if cfg.S3AccessKey != "key" {
		t.Errorf("S3AccessKey = %q; want fallback env var", cfg.S3AccessKey)
	}
}

func TestValidateReportsEveryProblem(t *testing.T) {
	cfg := Default()
	cfg.SpeechRate = 0
	cfg.TTSEngine = "command"
	cfg.CleanupAttempts = 0
	cfg.CaptionFont = "O'Reilly Sans"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{"speech_rate", "TTS_COMMAND", "cleanup_attempts", "single quote"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %s", err, want)
		}
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}
