package background

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/kkdai/youtube/v2"
	"github.com/samber/lo"

	"narration-video-gen/internal/logging"
)

// Downloader fetches a source video to an explicit target path.
type Downloader interface {
	Download(ctx context.Context, sourceURL, target string) error
}

// YouTubeDownloader downloads the highest resolution progressive stream
// (video and audio in one file) of a YouTube video.
type YouTubeDownloader struct {
	Client    *youtube.Client
	Container string // mime type prefix, e.g. video/mp4
	log       *logging.Logger
}

func NewYouTubeDownloader(container string, log *logging.Logger) *YouTubeDownloader {
	return &YouTubeDownloader{Client: &youtube.Client{}, Container: container, log: log}
}

func (d *YouTubeDownloader) Download(ctx context.Context, sourceURL, target string) error {
	d.log.Infof("background: getting video details for %s", sourceURL)
	video, err := d.Client.GetVideoContext(ctx, sourceURL)
	if err != nil {
		return fmt.Errorf("get video %s: %w", sourceURL, err)
	}

	format, err := SelectFormat(video.Formats, d.Container)
	if err != nil {
		return err
	}
	d.log.Infof("background: selected %s %dx%d (itag %d)", format.MimeType, format.Width, format.Height, format.ItagNo)

	stream, _, err := d.Client.GetStreamContext(ctx, video, &format)
	if err != nil {
		return fmt.Errorf("get stream %s: %w", sourceURL, err)
	}
	defer stream.Close()

	part := target + ".part"
	f, err := os.Create(part)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, stream); err != nil {
		f.Close()
		os.Remove(part)
		return fmt.Errorf("copy stream %s: %w", sourceURL, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(part)
		return err
	}
	return os.Rename(part, target)
}

// SelectFormat picks the progressive format of the given container with the
// largest height, then width, then bitrate.
func SelectFormat(formats youtube.FormatList, container string) (youtube.Format, error) {
	progressive := lo.Filter(formats, func(f youtube.Format, _ int) bool {
		return f.AudioChannels > 0 && f.Width > 0 && f.Height > 0 &&
			strings.HasPrefix(f.MimeType, container)
	})
	if len(progressive) == 0 {
		return youtube.Format{}, fmt.Errorf("%w: no progressive %s format among %d", ErrNoStream, container, len(formats))
	}
	return lo.MaxBy(progressive, func(a, b youtube.Format) bool {
		if a.Height != b.Height {
			return a.Height > b.Height
		}
		if a.Width != b.Width {
			return a.Width > b.Width
		}
		return a.Bitrate > b.Bitrate
	}), nil
}
