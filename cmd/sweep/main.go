package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"media-relay-bot/internal"
	"media-relay-bot/internal/logging"
	"media-relay-bot/internal/s3"
	"media-relay-bot/internal/scheduler"
)

func main() {
	// Load .env file if it exists
	_ = godotenv.Load(".env")
	_ = godotenv.Load("../.env")

	var (
		sweepLocal = flag.Bool("local", false, "Remove stale files from DOWNLOAD_DIR")
		sweepS3    = flag.Bool("s3", false, "Remove uploads older than S3_RETENTION")
		sweepAll   = flag.Bool("all", false, "Run both sweeps")
	)
	flag.Parse()

	if !*sweepLocal && !*sweepS3 && !*sweepAll {
		fmt.Println("Usage: sweep [-local] [-s3] [-all]")
		fmt.Println()
		fmt.Println("Options:")
		fmt.Println("  -local    Remove files older than ARTIFACT_MAX_AGE from DOWNLOAD_DIR")
		fmt.Println("  -s3       Remove uploads older than S3_RETENTION under S3_PREFIX")
		fmt.Println("  -all      Run both sweeps")
		fmt.Println()
		fmt.Println("Stop the bot first: a standalone sweep cannot see which users are busy.")
		os.Exit(1)
	}

	cfg, err := internal.LoadConfig()
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}
	cfg.SweepSchedule = ""

	log, err := logging.New("sweep.log")
	if err != nil {
		fmt.Printf("Error creating logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Close()

	var s3c s3.Client
	if *sweepAll || *sweepS3 {
		if !cfg.S3Enabled() {
			fmt.Println("❌ S3 is not configured (S3_BUCKET, S3_ACCESS_KEY, S3_SECRET_KEY)")
			os.Exit(1)
		}
		if s3c, err = s3.New(cfg); err != nil {
			log.Errorf("Error creating S3 client: %v", err)
			os.Exit(1)
		}
	}

	janitor, err := scheduler.NewJanitor(cfg, nil, s3c, log)
	if err != nil {
		log.Errorf("Error creating janitor: %v", err)
		os.Exit(1)
	}
	ctx := context.Background()

	if *sweepAll || *sweepLocal {
		fmt.Printf("=== Sweeping %s ===\n", cfg.DownloadDir)
		n, err := janitor.SweepLocal()
		if err != nil {
			log.Errorf("Error sweeping local files: %v", err)
			fmt.Printf("❌ Error sweeping local files: %v\n", err)
		} else {
			fmt.Printf("✅ Removed %d files\n", n)
		}
	}

	if *sweepAll || *sweepS3 {
		fmt.Printf("=== Sweeping s3://%s/%s ===\n", cfg.S3Bucket, cfg.S3Prefix)
		n, err := janitor.SweepRemote(ctx)
		if err != nil {
			log.Errorf("Error sweeping S3: %v", err)
			fmt.Printf("❌ Error sweeping S3: %v\n", err)
		} else {
			fmt.Printf("✅ Removed %d objects\n", n)
		}
	}
}
