package ai

import (
	"context"
	"errors"
	"testing"

	"narration-video-gen/internal/logging"
)

func TestCleanNarration(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Hello Anna.\n\n**Premier Checking.** Earn more.", "Hello Anna. Premier Checking. Earn more."},
		{"## Title\n* one\n* two", "Title one two"},
		{"  plain text  ", "plain text"},
		{"", ""},
	}
	for _, tc := range tests {
		if got := CleanNarration(tc.in); got != tc.want {
			t.Errorf("CleanNarration(%q) = %q; want %q", tc.in, got, tc.want)
		}
	}
}

func TestWrite(t *testing.T) {
	w := NewNarrationWriter("key", "gemini-2.0-flash", logging.Discard())
	var gotSystem, gotUser string
	w.generate = func(_ context.Context, model, system, user string) (string, error) {
		gotSystem, gotUser = system, user
		return "Hello Anna.\n**Open a new savings account.**", nil
	}

	text, err := w.Write(context.Background(), "", "Customer: Anna, nurse")
	if err != nil {
		t.Fatal(err)
	}
	if text != "Hello Anna. Open a new savings account." {
		t.Errorf("text = %q", text)
	}
	if gotSystem != DefaultSystemPrompt || gotUser != "Customer: Anna, nurse" {
		t.Errorf("prompts = %q / %q", gotSystem, gotUser)
	}
}

func TestWriteErrors(t *testing.T) {
	if _, err := NewNarrationWriter("", "m", logging.Discard()).Write(context.Background(), "", "x"); !errors.Is(err, ErrNoAPIKey) {
		t.Errorf("no key: %v", err)
	}

	w := NewNarrationWriter("key", "m", logging.Discard())
	w.generate = func(context.Context, string, string, string) (string, error) { return "  ** ", nil }
	if _, err := w.Write(context.Background(), "sys", "x"); err == nil {
		t.Error("empty response must fail")
	}

	quota := errors.New("RESOURCE_EXHAUSTED")
	w.generate = func(context.Context, string, string, string) (string, error) { return "", quota }
	if _, err := w.Write(context.Background(), "sys", "x"); !errors.Is(err, quota) {
		t.Errorf("api error not wrapped: %v", err)
	}
}
