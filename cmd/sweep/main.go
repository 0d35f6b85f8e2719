package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"

	"narration-video-gen/internal"
	"narration-video-gen/internal/artifacts"
	"narration-video-gen/internal/logging"
	"narration-video-gen/internal/s3"
)

func main() {
	// Load .env file if it exists
	_ = godotenv.Load(".env")
	_ = godotenv.Load("../.env")

	var (
		configPath = flag.String("config", "", "YAML config file (optional)")
		maxAge     = flag.Duration("max-age", 0, "Delete artifacts older than this (defaults to sweep_max_age)")
		remote     = flag.Bool("remote", false, "Also prune cached backgrounds in S3")
		videos     = flag.Bool("videos", false, "With -remote, also prune published videos")
		remoteAge  = flag.Duration("remote-max-age", 30*24*time.Hour, "Age limit for S3 objects")
	)
	flag.Parse()

	cfg, err := internal.LoadConfig(*configPath)
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(2)
	}
	if *maxAge > 0 {
		cfg.SweepMaxAge = *maxAge
	}

	log, err := logging.New("sweep.log")
	if err != nil {
		fmt.Printf("Error creating logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Close()

	fmt.Printf("=== Sweeping %s ===\n", cfg.TempDir)
	report, err := artifacts.Sweep(cfg.TempDir, artifacts.SweepPatterns(cfg.KeepBackgroundCache), cfg.SweepMaxAge, time.Now(),
		artifacts.RetryPolicy{MaxAttempts: cfg.CleanupAttempts, Delay: cfg.CleanupDelay}, nil, log)
	if err != nil {
		log.Errorf("sweep: %v", err)
		fmt.Printf("❌ Error sweeping temp dir: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("✅ %d deleted, %d already gone, %d warnings\n",
		report.Count(artifacts.Deleted), report.Count(artifacts.Missing), len(report.Warnings))
	for _, w := range report.Warnings {
		fmt.Printf("⚠️  %s\n", w)
	}

	if !*remote {
		return
	}
	if !cfg.S3Enabled() {
		log.Errorf("sweep: -remote needs S3_ENDPOINT, S3_REGION, S3_BUCKET and credentials")
		os.Exit(2)
	}
	store, err := s3.New(cfg)
	if err != nil {
		log.Errorf("Error creating S3 client: %v", err)
		os.Exit(1)
	}

	prefixes := []string{cfg.BackgroundsPrefix}
	if *videos {
		prefixes = append(prefixes, cfg.VideosPrefix)
	}
	ctx := context.Background()
	failed := false
	for _, prefix := range prefixes {
		fmt.Printf("=== Pruning s3://%s/%s ===\n", cfg.S3Bucket, prefix)
		deleted, err := s3.Prune(ctx, store, prefix, *remoteAge, time.Now())
		if err != nil {
			log.Errorf("prune %s: %v", prefix, err)
			fmt.Printf("❌ Error pruning %s: %v\n", prefix, err)
			failed = true
		}
		fmt.Printf("✅ %d objects deleted\n", len(deleted))
	}
	if failed {
		os.Exit(1)
	}
}
