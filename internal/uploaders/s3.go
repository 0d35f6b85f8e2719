package uploaders

import (
	"context"
	"fmt"

	"narration-video-gen/internal/model"
	"narration-video-gen/internal/s3"
)

// S3Uploader stores the video and a JSON manifest under one prefix
type S3Uploader struct {
	store  s3.Client
	bucket string
	prefix string
}

// Manifest is written next to every published video
type Manifest struct {
	RunID    string               `json:"run_id"`
	VideoKey string               `json:"video_key"`
	Video    model.RenderedVideo  `json:"video"`
	Captions []model.CaptionChunk `json:"captions"`
}

func NewS3Uploader(store s3.Client, bucket, prefix string) *S3Uploader {
	return &S3Uploader{store: store, bucket: bucket, prefix: prefix}
}

func (u *S3Uploader) Platform() string {
	return "s3"
}

func (u *S3Uploader) Upload(ctx context.Context, req *UploadRequest) (*UploadResult, error) {
	key := u.prefix + req.RunID + ".mp4"
	if err := u.store.PutFile(ctx, key, req.Video.Path, "video/mp4"); err != nil {
		return failed(u.Platform(), fmt.Errorf("upload %s: %w", key, err))
	}

	manifestKey := u.prefix + req.RunID + ".json"
	m := Manifest{
		RunID:    req.RunID,
		VideoKey: key,
		Video:    req.Video,
		Captions: req.Captions,
	}
	if err := u.store.WriteJSON(ctx, manifestKey, m); err != nil {
		return failed(u.Platform(), fmt.Errorf("write manifest %s: %w", manifestKey, err))
	}

	return &UploadResult{
		Success:  true,
		Platform: u.Platform(),
		URL:      fmt.Sprintf("s3://%s/%s", u.bucket, key),
		Details:  map[string]string{"manifest": manifestKey},
	}, nil
}
