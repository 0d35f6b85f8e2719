package logging

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestErrorsAreMirroredToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "errors.log")
	if err := os.WriteFile(path, []byte("stale line from the last start\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	l, err := New(path)
	if err != nil {
		t.Fatal(err)
	}
	l.Infof("not mirrored")
	l.Warnf("not mirrored either")
	l.Error(errors.New("render failed"))
	l.Error(nil)
	if err := l.Close(); err != nil {
		t.Fatal(err)
	}

	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	got := string(b)
	if strings.Contains(got, "stale line") {
		t.Error("errors.log must be truncated on start")
	}
	if strings.Contains(got, "mirrored") {
		t.Errorf("info and warn lines leaked into errors.log: %q", got)
	}
	if strings.Count(got, "\n") != 1 || !strings.Contains(got, "render failed") {
		t.Errorf("errors.log = %q; want exactly the one error", got)
	}
}

func TestNewWriterPrefixesLevels(t *testing.T) {
	var buf bytes.Buffer
	l := NewWriter(&buf)
	l.Infof("a")
	l.Warnf("b")
	l.Errorf("c")
	if got, want := buf.String(), "INFO a\nWARN b\nERROR c\n"; got != want {
		t.Errorf("output = %q; want %q", got, want)
	}
	if l.ErrorsPath() != "" {
		t.Errorf("writer logger has errors path %q", l.ErrorsPath())
	}
}

func TestTailLastNLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "errors.log")
	if err := os.WriteFile(path, []byte("1\n2\n3\n4\n5\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	tests := []struct {
		n    int
		want string
	}{
		{3, "3,4,5"},
		{5, "1,2,3,4,5"},
		{10, "1,2,3,4,5"},
		{0, ""},
	}
	for _, tc := range tests {
		got, err := TailLastNLines(path, tc.n)
		if err != nil {
			t.Fatal(err)
		}
		if strings.Join(got, ",") != tc.want {
			t.Errorf("TailLastNLines(%d) = %v; want %s", tc.n, got, tc.want)
		}
	}

	if _, err := TailLastNLines(filepath.Join(t.TempDir(), "missing.log"), 3); !os.IsNotExist(err) {
		t.Errorf("missing file: %v", err)
	}
}
