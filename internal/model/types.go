package model

import "time"

// NarrationAudio is the synthesized speech for the full text. Duration is
// measured from the file, never estimated.
type NarrationAudio struct {
	Path      string  `json:"path"`
	Text      string  `json:"text"`
	DurationS float64 `json:"duration_s"`
}

// CaptionChunk is one on-screen block of at most two wrapped lines.
type CaptionChunk struct {
	Text      string  `json:"text"`
	StartS    float64 `json:"start_s"`
	DurationS float64 `json:"duration_s"`
	LineCount int     `json:"line_count"`
	Words     float64 `json:"words"`
}

// EndS is where the chunk stops being visible.
func (c CaptionChunk) EndS() float64 {
	return c.StartS + c.DurationS
}

// BackgroundTrack is the silent background clip, looped and trimmed to the
// narration duration.
type BackgroundTrack struct {
	SourceURL string  `json:"source_url"`
	ClipPath  string  `json:"clip_path"` // downloaded (or cached) source clip
	LocalPath string  `json:"local_path"`
	ClipS     float64 `json:"clip_s"`
	DurationS float64 `json:"duration_s"`
	Loops     int     `json:"loops"`
	Width     int     `json:"width"`
	Height    int     `json:"height"`
}

// MusicBed is the attenuated, trimmed slice of the music asset.
type MusicBed struct {
	SourcePath string  `json:"source_path"`
	SourceS    float64 `json:"source_s"`
	DurationS  float64 `json:"duration_s"`
	Gain       float64 `json:"gain"`
}

// MixedAudio is narration plus music bed. Its duration always equals the
// narration duration.
type MixedAudio struct {
	Path      string   `json:"path"`
	DurationS float64  `json:"duration_s"`
	Bed       MusicBed `json:"bed"`
}

// RenderedVideo is the terminal artifact of a run.
type RenderedVideo struct {
	Path       string    `json:"path"`
	DurationS  float64   `json:"duration_s"`
	Width      int       `json:"width"`
	Height     int       `json:"height"`
	FPS        int       `json:"fps"`
	VideoCodec string    `json:"video_codec"`
	AudioCodec string    `json:"audio_codec"`
	SizeBytes  int64     `json:"size_bytes"`
	CreatedAt  time.Time `json:"created_at"`
}

// TempArtifact is any on-disk byproduct of a run, reclaimed at run end.
type TempArtifact struct {
	Path         string    `json:"path"`
	RetryBudget  int       `json:"retry_budget"`
	RegisteredAt time.Time `json:"registered_at"`
}
