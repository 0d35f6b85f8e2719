package uploaders

import (
	"context"

	"narration-video-gen/internal/model"
)

// UploadResult represents the result of an upload operation
type UploadResult struct {
	Success  bool              `json:"success"`
	Platform string            `json:"platform"`
	URL      string            `json:"url,omitempty"`
	Error    string            `json:"error,omitempty"`
	Details  map[string]string `json:"details,omitempty"`
}

// UploadRequest represents a request to publish a rendered video
type UploadRequest struct {
	RunID    string
	Video    model.RenderedVideo
	Captions []model.CaptionChunk
	Caption  string
}

// Uploader publishes a rendered video to one destination
type Uploader interface {
	Upload(ctx context.Context, req *UploadRequest) (*UploadResult, error)
	Platform() string
}

func failed(platform string, err error) (*UploadResult, error) {
	return &UploadResult{Success: false, Platform: platform, Error: err.Error()}, err
}
