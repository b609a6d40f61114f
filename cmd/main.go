package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"media-relay-bot/internal"
	"media-relay-bot/internal/ai"
	"media-relay-bot/internal/api"
	"media-relay-bot/internal/bot"
	"media-relay-bot/internal/fetcher"
	"media-relay-bot/internal/lifecycle"
	"media-relay-bot/internal/logging"
	"media-relay-bot/internal/media"
	"media-relay-bot/internal/platform"
	"media-relay-bot/internal/proc"
	"media-relay-bot/internal/s3"
	"media-relay-bot/internal/scheduler"
	"media-relay-bot/internal/session"
	"media-relay-bot/internal/transcript"
	"media-relay-bot/internal/uploaders"
)

func main() {
	// Load .env file if it exists (try multiple paths)
	envPaths := []string{".env", "../.env", "../../.env"}
	for _, path := range envPaths {
		_ = godotenv.Load(path)
	}

	cfg, err := internal.LoadConfig()
	if err != nil {
		panic(err)
	}

	log, err := logging.New(cfg.ErrorsLog)
	if err != nil {
		panic(err)
	}
	defer log.Close()

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

	if err := os.MkdirAll(cfg.DownloadDir, 0o755); err != nil {
		log.Errorf("download dir: %v", err)
		return
	}

	platforms := platform.Default()
	if cfg.PlatformsFile != "" {
		if platforms, err = platform.Load(cfg.PlatformsFile); err != nil {
			log.Errorf("platforms: %v", err)
			return
		}
	}

	var s3c s3.Client
	if cfg.S3Enabled() {
		if s3c, err = s3.New(cfg); err != nil {
			log.Errorf("s3 init: %v", err)
			return
		}
	}

	chain := buildChain(ctx, cfg, s3c, log)
	store := session.NewMemoryStore()
	runner := proc.Exec{WaitDelay: 5 * time.Second}

	ctl := lifecycle.New(
		store,
		platforms,
		fetcher.NewYtDlp(fetcher.Options{
			Binary:    cfg.YtDlpPath,
			Dir:       cfg.DownloadDir,
			Timeout:   cfg.FetchTimeout,
			UserAgent: cfg.UserAgent,
		}, runner, log),
		media.NewProber(log),
		media.NewTranscoder(cfg.FFmpegPath, runner, log),
		chain,
		lifecycle.Options{
			Dir: cfg.DownloadDir,
			Limits: lifecycle.Limits{
				Inline:         cfg.InlineLimitMB * lifecycle.MB,
				Audio:          cfg.AudioLimitMB * lifecycle.MB,
				CompressTarget: cfg.CompressTargetMB * lifecycle.MB,
			},
			KillOnCancel: cfg.CancelKillsFetch,
		},
		log,
	)

	var gen ai.Generator
	if cfg.GeminiAPIKey != "" {
		g, err := ai.NewGemini(ctx, cfg.GeminiAPIKey, cfg.GeminiModel, log)
		if err != nil {
			log.Errorf("gemini init: %v", err)
		} else {
			gen = g
		}
	} else {
		log.Warnf("GEMINI_API_KEY not set, /ask and /summary are disabled")
	}
	assistant := ai.NewAssistant(gen, transcript.NewYouTube(log), ai.Options{
		Workers: cfg.AIWorkers,
		Limit:   cfg.AIReplyLimit,
		Budget:  cfg.TranscriptBudget,
		Langs:   cfg.TranscriptLangs,
	}, log)

	janitor, err := scheduler.NewJanitor(cfg, store, s3c, log)
	if err != nil {
		log.Errorf("janitor: %v", err)
		return
	}
	go func() {
		if err := janitor.Run(ctx); err != nil {
			log.Errorf("janitor stopped: %v", err)
		}
	}()

	if cfg.HealthAddr != "" {
		go func() {
			if err := api.Serve(ctx, cfg.HealthAddr, api.NewRouter(store, chain.Platforms()), log); err != nil {
				log.Errorf("health server: %v", err)
			}
		}()
	}

	b, err := bot.NewTelegramBot(cfg, ctl, assistant, chain.Platforms(), log, cancel)
	if err != nil {
		log.Errorf("bot init: %v", err)
		return
	}
	if err := b.Run(ctx); err != nil {
		log.Errorf("bot run: %v", err)
		return
	}

	<-ctx.Done()
	time.Sleep(300 * time.Millisecond)
}

// buildChain registers upload hosts in fallback order. A host that fails to
// initialise is skipped.
func buildChain(ctx context.Context, cfg internal.Config, s3c s3.Client, log *logging.Logger) *uploaders.Chain {
	chain := uploaders.NewChain(log)
	if cfg.GoFileEnabled {
		chain.Add(uploaders.NewGoFile(cfg.GoFileToken))
	}
	if cfg.GDriveCredentials != "" {
		d, err := uploaders.NewDrive(ctx, []byte(cfg.GDriveCredentials), cfg.GDriveFolderID)
		if err != nil {
			log.Errorf("gdrive init: %v", err)
		} else {
			chain.Add(d)
		}
	}
	if s3c != nil {
		chain.Add(uploaders.NewS3(s3c, cfg.S3Prefix, cfg.S3LinkTTL))
	}
	log.Infof("upload hosts: %v", chain.Platforms())
	return chain
}
