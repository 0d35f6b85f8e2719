package ffmpeg

import (
	"context"
	"errors"
	"fmt"

	"github.com/tidwall/gjson"
)

var ErrNoDuration = errors.New("ffprobe reported no duration")

// Info is what the pipeline needs to know about a media file.
type Info struct {
	DurationS float64
	Width     int
	Height    int
	HasVideo  bool
	HasAudio  bool
}

// Probe runs ffprobe on path and parses its JSON report.
func Probe(ctx context.Context, r Runner, path string) (Info, error) {
	out, err := r.Run(ctx, "ffprobe",
		"-v", "error",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	)
	if err != nil {
		return Info{}, fmt.Errorf("probe %s: %w", path, err)
	}
	return ParseProbe(out)
}

// ParseProbe extracts duration and stream facts from ffprobe JSON output.
func ParseProbe(data []byte) (Info, error) {
	if !gjson.ValidBytes(data) {
		return Info{}, fmt.Errorf("ffprobe output is not valid json")
	}
	res := gjson.ParseBytes(data)

	info := Info{DurationS: res.Get("format.duration").Float()}

	video := res.Get(`streams.#(codec_type=="video")`)
	if video.Exists() {
		info.HasVideo = true
		info.Width = int(video.Get("width").Int())
		info.Height = int(video.Get("height").Int())
		if info.DurationS <= 0 {
			info.DurationS = video.Get("duration").Float()
		}
	}
	audio := res.Get(`streams.#(codec_type=="audio")`)
	if audio.Exists() {
		info.HasAudio = true
		if info.DurationS <= 0 {
			info.DurationS = audio.Get("duration").Float()
		}
	}

	if info.DurationS <= 0 {
		return info, ErrNoDuration
	}
	return info, nil
}
