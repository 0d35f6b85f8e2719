package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/joho/godotenv"

	"narration-video-gen/internal"
	"narration-video-gen/internal/ai"
	"narration-video-gen/internal/artifacts"
	"narration-video-gen/internal/background"
	"narration-video-gen/internal/bot"
	"narration-video-gen/internal/ffmpeg"
	"narration-video-gen/internal/logging"
	"narration-video-gen/internal/notify"
	"narration-video-gen/internal/pipeline"
	"narration-video-gen/internal/s3"
	"narration-video-gen/internal/scheduler"
	"narration-video-gen/internal/speech"
	"narration-video-gen/internal/uploaders"
)

const (
	exitOK     = 0
	exitFailed = 1
	exitConfig = 2
)

func main() {
	// Load .env file if it exists (try multiple paths)
	for _, path := range []string{".env", "../.env", "../../.env"} {
		_ = godotenv.Load(path)
	}
	os.Exit(run())
}

func run() int {
	var (
		configPath   = flag.String("config", "", "YAML config file (optional)")
		text         = flag.String("text", "", "Narration text")
		textFile     = flag.String("text-file", "", "File with the narration text")
		promptFile   = flag.String("prompt-file", "", "Generate the narration with Gemini from this prompt file")
		systemPrompt = flag.String("system-prompt-file", "", "System prompt for -prompt-file (optional)")
		out          = flag.String("out", "", "Output video path (defaults to output_path)")
		schedule     = flag.String("schedule", "", "Cron schedule with seconds; run as a daemon")
		serve        = flag.Bool("serve", false, "Run as a daemon answering Telegram commands")
		publish      = flag.String("publish", "", "Comma separated platforms to publish to (default: all configured)")
		check        = flag.Bool("check", false, "Only check that ffmpeg, ffprobe and the TTS engine are installed")
	)
	flag.Parse()

	log, err := logging.New("errors.log")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating logger: %v\n", err)
		return exitFailed
	}
	defer log.Close()

	cfg, err := internal.LoadConfig(*configPath)
	if err != nil {
		log.Errorf("config: %v", err)
		return exitConfig
	}
	if *schedule != "" {
		cfg.Schedule = *schedule
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Stop on SIGINT/SIGTERM
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Infof("shutdown signal received")
		cancel()
	}()

	runner := ffmpeg.NewRunner(log)
	engine, err := speech.NewEngine(&cfg, runner)
	if err != nil {
		log.Errorf("tts: %v", err)
		return exitConfig
	}

	var store s3.Client
	if cfg.S3Enabled() {
		if store, err = s3.New(cfg); err != nil {
			log.Errorf("s3: %v", err)
			return exitConfig
		}
		log.Infof("s3: using bucket %s", cfg.S3Bucket)
	}

	observers := []notify.Observer{notify.LogObserver{Log: log}}
	uploads := uploaders.NewManager()
	if store != nil {
		uploads.AddUploader("s3", uploaders.NewS3Uploader(store, cfg.S3Bucket, cfg.VideosPrefix))
	}
	var api *tgbotapi.BotAPI
	if cfg.TelegramEnabled() {
		if api, err = tgbotapi.NewBotAPI(cfg.TelegramToken); err != nil {
			log.Errorf("telegram: %v", err)
			return exitConfig
		}
		api.Debug = false
		log.Infof("telegram: authorized as @%s", api.Self.UserName)
		tg := notify.NewTelegramObserver(api, cfg.TelegramChatID, log.ErrorsPath(), log)
		defer tg.Close()
		observers = append(observers, tg)
		uploads.AddUploader("telegram", uploaders.NewTelegramUploader(api, cfg.TelegramChatID))
	}

	p := pipeline.New(cfg, pipeline.Deps{
		Engine:     engine,
		Downloader: background.NewYouTubeDownloader(cfg.BackgroundContainer, log),
		Runner:     runner,
		Store:      store,
		Observer:   notify.Multi(observers...),
	}, log)

	if *check {
		if err := p.CheckPrerequisites(); err != nil {
			log.Errorf("check: %v", err)
			return exitConfig
		}
		log.Infof("check: ✓ all tools found")
		return exitOK
	}

	daemon := cfg.Schedule != "" || *serve
	source, err := textSource(&cfg, log, *text, *textFile, *promptFile, *systemPrompt)
	if err != nil && (!daemon || cfg.Schedule != "") {
		log.Errorf("narration: %v", err)
		return exitConfig
	}
	job := &scheduler.RenderJob{
		Pipeline:     p,
		Text:         source,
		Uploads:      uploads,
		Destinations: destinations(*publish),
		OutputPath:   *out,
		Log:          log,
	}

	if !daemon {
		if err := job.Run(ctx); err != nil {
			if errors.Is(err, scheduler.ErrPublish) {
				log.Warnf("%v", err)
				return exitOK
			}
			log.Errorf("%v", err)
			if pipeline.IsConfigError(err) {
				return exitConfig
			}
			return exitFailed
		}
		return exitOK
	}

	svc := scheduler.NewService(log)
	if cfg.Schedule != "" {
		if err := svc.Add(cfg.Schedule, "render", job.Run); err != nil {
			log.Errorf("%v", err)
			return exitConfig
		}
	}
	if err := svc.Add("@hourly", "sweep", func(context.Context) error {
		_, err := p.Sweep(time.Now())
		return err
	}); err != nil {
		log.Errorf("%v", err)
		return exitFailed
	}

	if api != nil {
		b := bot.NewTelegramBot(api, bot.Deps{
			Pipeline:   p,
			Uploads:    uploads,
			OutputPath: *out,
			Sweep:      func() (artifacts.Report, error) { return p.Sweep(time.Now()) },
			Entries:    svc.Entries,
		}, cfg.TelegramChatID, log.ErrorsPath(), log)
		go func() {
			if err := b.Run(ctx, cancel); err != nil {
				log.Errorf("bot run: %v", err)
			}
		}()
	} else if cfg.Schedule == "" {
		log.Errorf("-serve needs TELEGRAM_BOT_TOKEN and TELEGRAM_CHAT_ID")
		return exitConfig
	}

	if err := svc.Run(ctx); err != nil {
		log.Errorf("scheduler stopped: %v", err)
		return exitFailed
	}

	time.Sleep(300 * time.Millisecond)
	return exitOK
}

// textSource picks where the narration comes from. Files are re-read on every
// scheduled run so they can be edited while the daemon is running.
func textSource(cfg *internal.Config, log *logging.Logger, text, textFile, promptFile, systemFile string) (scheduler.TextSource, error) {
	switch {
	case text != "":
		return func(context.Context) (string, error) { return text, nil }, nil

	case textFile != "":
		return func(context.Context) (string, error) {
			data, err := os.ReadFile(textFile)
			if err != nil {
				return "", err
			}
			return string(data), nil
		}, nil

	case promptFile != "":
		if cfg.GeminiAPIKey == "" {
			return nil, ai.ErrNoAPIKey
		}
		writer := ai.NewNarrationWriter(cfg.GeminiAPIKey, cfg.GeminiModel, log)
		return func(ctx context.Context) (string, error) {
			prompt, err := os.ReadFile(promptFile)
			if err != nil {
				return "", err
			}
			var system []byte
			if systemFile != "" {
				if system, err = os.ReadFile(systemFile); err != nil {
					return "", err
				}
			}
			return writer.Write(ctx, string(system), strings.TrimSpace(string(prompt)))
		}, nil
	}
	return nil, errors.New("one of -text, -text-file or -prompt-file is required")
}

func destinations(list string) []string {
	var out []string
	for _, p := range strings.Split(list, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
