package uploaders

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"narration-video-gen/internal/model"
	"narration-video-gen/internal/s3/s3test"
)

func testRequest(t *testing.T) *UploadRequest {
	t.Helper()
	path := filepath.Join(t.TempDir(), "recommendations_video.mp4")
	if err := os.WriteFile(path, []byte("media"), 0o644); err != nil {
		t.Fatal(err)
	}
	return &UploadRequest{
		RunID:    "run1",
		Video:    model.RenderedVideo{Path: path, DurationS: 6.0, Width: 1280, Height: 720, FPS: 24},
		Captions: []model.CaptionChunk{{Text: "Open a new savings account", DurationS: 2.5, LineCount: 1, Words: 5}},
	}
}

func TestS3UploaderWritesVideoAndManifest(t *testing.T) {
	store := s3test.New()
	u := NewS3Uploader(store, "media", "videos/")

	res, err := u.Upload(context.Background(), testRequest(t))
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if !res.Success || res.URL != "s3://media/videos/run1.mp4" {
		t.Errorf("result = %+v", res)
	}
	if store.Types["videos/run1.mp4"] != "video/mp4" {
		t.Errorf("video content type = %q", store.Types["videos/run1.mp4"])
	}

	var m Manifest
	if err := json.Unmarshal(store.Objects["videos/run1.json"], &m); err != nil {
		t.Fatalf("manifest: %v", err)
	}
	if m.VideoKey != "videos/run1.mp4" || m.Video.DurationS != 6.0 || len(m.Captions) != 1 {
		t.Errorf("manifest = %+v", m)
	}
}

func TestS3UploaderMissingFile(t *testing.T) {
	req := testRequest(t)
	req.Video.Path = filepath.Join(t.TempDir(), "gone.mp4")

	res, err := NewS3Uploader(s3test.New(), "media", "videos/").Upload(context.Background(), req)
	if err == nil || res.Success {
		t.Errorf("missing video must fail: %+v, %v", res, err)
	}
}

type fakeBot struct {
	sent []tgbotapi.Chattable
	err  error
}

func (b *fakeBot) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	b.sent = append(b.sent, c)
	return tgbotapi.Message{MessageID: 7}, b.err
}

func TestTelegramUploader(t *testing.T) {
	bot := &fakeBot{}
	res, err := NewTelegramUploader(bot, 42).Upload(context.Background(), testRequest(t))
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if !res.Success || res.Details["message_id"] != "7" {
		t.Errorf("result = %+v", res)
	}
	v, ok := bot.sent[0].(tgbotapi.VideoConfig)
	if !ok {
		t.Fatalf("sent %T; want a video", bot.sent[0])
	}
	if v.ChatID != 42 || v.Duration != 6 || v.Caption == "" {
		t.Errorf("video config = %+v", v)
	}

	bot.err = errors.New("Request Entity Too Large")
	if res, err := NewTelegramUploader(bot, 42).Upload(context.Background(), testRequest(t)); err == nil || res.Success {
		t.Errorf("send failure must surface: %+v", res)
	}
	if res, err := NewTelegramUploader(bot, 0).Upload(context.Background(), testRequest(t)); err == nil || res.Success {
		t.Errorf("missing chat id must fail: %+v", res)
	}
}

type stubUploader struct {
	name string
	err  error
}

func (s stubUploader) Platform() string { return s.name }
func (s stubUploader) Upload(context.Context, *UploadRequest) (*UploadResult, error) {
	if s.err != nil {
		return failed(s.name, s.err)
	}
	return &UploadResult{Success: true, Platform: s.name}, nil
}

func TestManagerUploadToAvailable(t *testing.T) {
	m := NewManager(stubUploader{name: "telegram"}, stubUploader{name: "s3", err: errors.New("AccessDenied")})

	if got := m.AvailablePlatforms(); !reflect.DeepEqual(got, []string{"s3", "telegram"}) {
		t.Errorf("platforms = %v", got)
	}
	results := m.UploadToSelected(context.Background(), m.AvailablePlatforms(), &UploadRequest{RunID: "run1"})
	if !results["telegram"].Success || results["s3"].Success || results["s3"].Error != "AccessDenied" {
		t.Errorf("results = %+v %+v", results["telegram"], results["s3"])
	}

	res, err := m.Upload(context.Background(), "youtube", &UploadRequest{})
	if err == nil || res.Success || res.Platform != "youtube" {
		t.Errorf("unknown platform = %+v, %v", res, err)
	}
}

type countingUploader struct {
	name  string
	calls *int
}

func (c countingUploader) Platform() string { return c.name }
func (c countingUploader) Upload(context.Context, *UploadRequest) (*UploadResult, error) {
	*c.calls++
	return nil, nil
}

func TestManagerUploadToSelected(t *testing.T) {
	calls := 0
	m := NewManager(
		countingUploader{name: "telegram", calls: &calls},
		stubUploader{name: "s3", err: errors.New("AccessDenied")},
	)

	tests := []struct {
		name      string
		platforms []string
		want      map[string]bool
		wantCalls int
	}{
		{"subset skips others", []string{"telegram"}, map[string]bool{"telegram": true}, 1},
		{"duplicates upload once", []string{"telegram", "telegram"}, map[string]bool{"telegram": true}, 1},
		{"unknown platform fails", []string{"youtube", "telegram"}, map[string]bool{"youtube": false, "telegram": true}, 1},
		{"failure is reported", []string{"s3"}, map[string]bool{"s3": false}, 0},
		{"nothing selected", nil, map[string]bool{}, 0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			calls = 0
			results := m.UploadToSelected(context.Background(), tc.platforms, &UploadRequest{RunID: "run1"})
			if len(results) != len(tc.want) {
				t.Fatalf("results = %+v; want %d entries", results, len(tc.want))
			}
			for platform, ok := range tc.want {
				r := results[platform]
				if r == nil || r.Success != ok || r.Platform != platform {
					t.Errorf("%s result = %+v; want success=%v", platform, r, ok)
				}
			}
			if calls != tc.wantCalls {
				t.Errorf("telegram uploads = %d; want %d", calls, tc.wantCalls)
			}
		})
	}

	if r := m.UploadToSelected(context.Background(), []string{"youtube"}, &UploadRequest{})["youtube"]; !strings.Contains(r.Error, "uploader not found") {
		t.Errorf("unknown platform error = %q", r.Error)
	}
}

func TestManagerUploadToSelectedStopsWhenCancelled(t *testing.T) {
	calls := 0
	m := NewManager(countingUploader{name: "telegram", calls: &calls})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := m.UploadToSelected(ctx, []string{"telegram"}, &UploadRequest{})["telegram"]
	if calls != 0 || r == nil || r.Success {
		t.Errorf("calls = %d, result = %+v; want no upload after cancel", calls, r)
	}
}
