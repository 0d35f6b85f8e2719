package internal

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is passed explicitly to every pipeline component. Nothing in the
// pipeline reads process-wide settings on its own.
type Config struct {
	// Speech synthesis
	TTSEngine  string `yaml:"tts_engine"`  // "espeak" or "command"
	TTSCommand string `yaml:"tts_command"` // used when TTSEngine == "command"
	TTSVoice   string `yaml:"tts_voice"`
	SpeechRate int    `yaml:"speech_rate"` // words per minute

	// Captions
	CaptionWidth     int    `yaml:"caption_width"` // characters per line
	CaptionFont      string `yaml:"caption_font"`
	CaptionFontSize  int    `yaml:"caption_font_size"`
	CaptionColor     string `yaml:"caption_color"`
	CaptionY         int    `yaml:"caption_y"`
	WatermarkText    string `yaml:"watermark_text"`
	WatermarkFont    string `yaml:"watermark_font"`
	WatermarkSize    int    `yaml:"watermark_font_size"`
	WatermarkColor   string `yaml:"watermark_color"`
	WatermarkBoxFill string `yaml:"watermark_box_color"`
	WatermarkY       int    `yaml:"watermark_y"`

	// Music bed
	MusicPath  string  `yaml:"music_path"`
	MusicS3Key string  `yaml:"music_s3_key"` // fetched when MusicPath is missing
	MusicGain  float64 `yaml:"music_gain"`

	// Video encoding
	VideoWidth  int    `yaml:"video_width"`
	VideoHeight int    `yaml:"video_height"`
	FPS         int    `yaml:"fps"`
	VideoCodec  string `yaml:"video_codec"`
	AudioCodec  string `yaml:"audio_codec"`
	Preset      string `yaml:"preset"`

	// Background video
	BackgroundURL       string `yaml:"background_url"`
	BackgroundContainer string `yaml:"background_container"` // mime prefix, e.g. video/mp4
	MinDownloadBytes    int64  `yaml:"min_download_bytes"`
	KeepBackgroundCache bool   `yaml:"keep_background_cache"`

	// Cleanup
	CleanupAttempts int           `yaml:"cleanup_attempts"`
	CleanupDelay    time.Duration `yaml:"cleanup_delay"`
	SweepMaxAge     time.Duration `yaml:"sweep_max_age"`

	// Paths
	TempDir    string `yaml:"temp_dir"`
	OutputPath string `yaml:"output_path"`

	// Object storage (optional)
	S3Endpoint        string `yaml:"s3_endpoint"`
	S3Region          string `yaml:"s3_region"`
	S3Bucket          string `yaml:"s3_bucket"`
	S3AccessKey       string `yaml:"-"`
	S3SecretKey       string `yaml:"-"`
	BackgroundsPrefix string `yaml:"backgrounds_prefix"`
	VideosPrefix      string `yaml:"videos_prefix"`

	// Notifications (optional)
	TelegramToken  string `yaml:"-"`
	TelegramChatID int64  `yaml:"telegram_chat_id"`

	// Narration text generation (optional)
	GeminiAPIKey string `yaml:"-"`
	GeminiModel  string `yaml:"gemini_model"`

	// Recurring runs (optional), robfig/cron schedule
	Schedule string `yaml:"schedule"`
}

// Default returns the configuration the original recommendation video used:
// 140 wpm narration, 50 character caption lines, music at 15% and a 1280x720
// H.264/AAC render at 24 fps.
func Default() Config {
	return Config{
		TTSEngine:  "espeak",
		TTSVoice:   "en-us",
		SpeechRate: 140,

		CaptionWidth:     50,
		CaptionFont:      "DejaVuSans-Bold",
		CaptionFontSize:  30,
		CaptionColor:     "red",
		CaptionY:         360,
		WatermarkText:    "This video uses only consented customer data",
		WatermarkFont:    "DejaVuSans",
		WatermarkSize:    20,
		WatermarkColor:   "white",
		WatermarkBoxFill: "black",
		WatermarkY:       670,

		MusicPath: filepath.Join("data", "background_music.mp3"),
		MusicGain: 0.15,

		VideoWidth:  1280,
		VideoHeight: 720,
		FPS:         24,
		VideoCodec:  "libx264",
		AudioCodec:  "aac",
		Preset:      "medium",

		BackgroundURL:       "https://www.youtube.com/watch?v=PuR_hbA38oI",
		BackgroundContainer: "video/mp4",
		MinDownloadBytes:    1024,

		CleanupAttempts: 5,
		CleanupDelay:    time.Second,
		SweepMaxAge:     6 * time.Hour,

		TempDir:    filepath.Join("artifacts", "temp"),
		OutputPath: filepath.Join("artifacts", "output", "recommendations_video.mp4"),

		BackgroundsPrefix: "backgrounds/",
		VideosPrefix:      "videos/",

		GeminiModel: "gemini-2.0-flash",
	}
}

// LoadConfig builds the configuration from defaults, then the optional YAML
// file at path, then environment variables.
func LoadConfig(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	applyEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	setString(&cfg.TTSEngine, "TTS_ENGINE")
	setString(&cfg.TTSCommand, "TTS_COMMAND")
	setString(&cfg.TTSVoice, "TTS_VOICE")
	setInt(&cfg.SpeechRate, "SPEECH_RATE")
	setInt(&cfg.CaptionWidth, "CAPTION_WIDTH")
	setString(&cfg.CaptionFont, "CAPTION_FONT")
	setString(&cfg.WatermarkText, "WATERMARK_TEXT")
	setString(&cfg.MusicPath, "MUSIC_PATH")
	setString(&cfg.MusicS3Key, "MUSIC_S3_KEY")
	setFloat(&cfg.MusicGain, "MUSIC_GAIN")
	setInt(&cfg.FPS, "VIDEO_FPS")
	setString(&cfg.BackgroundURL, "BACKGROUND_URL")
	setInt(&cfg.CleanupAttempts, "CLEANUP_ATTEMPTS")
	setDuration(&cfg.CleanupDelay, "CLEANUP_DELAY")
	setString(&cfg.TempDir, "TEMP_DIR")
	setString(&cfg.OutputPath, "OUTPUT_PATH")
	setString(&cfg.Schedule, "SCHEDULE")

	if v := os.Getenv("KEEP_BACKGROUND_CACHE"); v != "" {
		cfg.KeepBackgroundCache = v != "false" && v != "0"
	}

	setString(&cfg.S3Endpoint, "S3_ENDPOINT")
	setString(&cfg.S3Region, "S3_REGION")
	setString(&cfg.S3Bucket, "S3_BUCKET")
	cfg.S3AccessKey = firstNonEmpty(os.Getenv("S3_ACCESS_KEY"), os.Getenv("S3_ACCESS_KEY_ID"), cfg.S3AccessKey)
	cfg.S3SecretKey = firstNonEmpty(os.Getenv("S3_SECRET_ACCESS_KEY"), os.Getenv("S3_SECRET_ACCESS_KEY_ID"), cfg.S3SecretKey)

	setString(&cfg.TelegramToken, "TELEGRAM_BOT_TOKEN")
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n != 0 {
			cfg.TelegramChatID = n
		}
	}

	cfg.GeminiAPIKey = firstNonEmpty(os.Getenv("GOOGLE_API_KEY"), os.Getenv("GEMINI_API_KEY"), cfg.GeminiAPIKey)
	setString(&cfg.GeminiModel, "GEMINI_MODEL")
}

// Validate rejects configurations the pipeline cannot run with.
func (c Config) Validate() error {
	var errs []error
	if c.SpeechRate <= 0 {
		errs = append(errs, errors.New("speech_rate must be positive"))
	}
	if c.CaptionWidth <= 0 {
		errs = append(errs, errors.New("caption_width must be positive"))
	}
	if c.MusicGain < 0 {
		errs = append(errs, errors.New("music_gain must not be negative"))
	}
	if c.VideoWidth <= 0 || c.VideoHeight <= 0 || c.FPS <= 0 {
		errs = append(errs, errors.New("video_width, video_height and fps must be positive"))
	}
	if c.CleanupAttempts <= 0 {
		errs = append(errs, errors.New("cleanup_attempts must be positive"))
	}
	if c.CleanupDelay < 0 {
		errs = append(errs, errors.New("cleanup_delay must not be negative"))
	}
	if c.TTSEngine == "command" && c.TTSCommand == "" {
		errs = append(errs, errors.New("TTS_COMMAND is required when tts_engine is command"))
	}
	if c.TTSEngine != "espeak" && c.TTSEngine != "command" {
		errs = append(errs, fmt.Errorf("unknown tts_engine %q", c.TTSEngine))
	}
	if c.BackgroundURL == "" {
		errs = append(errs, errors.New("background_url is required"))
	}
	if c.TempDir == "" || c.OutputPath == "" {
		errs = append(errs, errors.New("temp_dir and output_path are required"))
	}
	if strings.ContainsRune(c.TempDir+c.CaptionFont+c.WatermarkFont, '\'') {
		errs = append(errs, errors.New("temp_dir, caption_font and watermark_font must not contain a single quote"))
	}
	return errors.Join(errs...)
}

// S3Enabled reports whether object storage is fully configured.
func (c Config) S3Enabled() bool {
	return c.S3Endpoint != "" && c.S3Region != "" && c.S3Bucket != "" && c.S3AccessKey != "" && c.S3SecretKey != ""
}

// TelegramEnabled reports whether Telegram notifications can be sent.
func (c Config) TelegramEnabled() bool {
	return c.TelegramToken != "" && c.TelegramChatID != 0
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			*dst = n
		}
	}
}

func setFloat(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f >= 0 {
			*dst = f
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}

func firstNonEmpty(v ...string) string {
	for _, s := range v {
		if s != "" {
			return s
		}
	}
	return ""
}
