package internal

import (
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/pkg/errors"
)

type Config struct {
	TelegramToken    string `envconfig:"TELEGRAM_BOT_TOKEN"`
	TelegramEndpoint string `envconfig:"TELEGRAM_API_ENDPOINT"` // local Bot API server lifts the 50 MB upload cap
	AdminChatID      int64  `envconfig:"ADMIN_CHAT_ID"`

	GeminiAPIKey     string   `envconfig:"GEMINI_API_KEY"`
	GeminiModel      string   `envconfig:"GEMINI_MODEL" default:"gemini-2.0-flash"`
	AIWorkers        int      `envconfig:"AI_WORKERS" default:"3"`
	AIReplyLimit     int      `envconfig:"AI_REPLY_LIMIT" default:"4000"`
	TranscriptBudget int      `envconfig:"TRANSCRIPT_BUDGET" default:"10000"`
	TranscriptLangs  []string `envconfig:"TRANSCRIPT_LANGS" default:"ru,en"`

	DownloadDir      string        `envconfig:"DOWNLOAD_DIR" default:"downloads"`
	PlatformsFile    string        `envconfig:"PLATFORMS_FILE"`
	FetchTimeout     time.Duration `envconfig:"FETCH_TIMEOUT" default:"600s"`
	InlineLimitMB    int64         `envconfig:"INLINE_LIMIT_MB" default:"2000"`
	AudioLimitMB     int64         `envconfig:"AUDIO_LIMIT_MB" default:"2000"`
	CompressTargetMB int64         `envconfig:"COMPRESS_TARGET_MB" default:"0"`
	CancelKillsFetch bool          `envconfig:"CANCEL_KILLS_FETCH" default:"true"`
	YtDlpPath        string        `envconfig:"YTDLP_PATH" default:"yt-dlp"`
	FFmpegPath       string        `envconfig:"FFMPEG_PATH" default:"ffmpeg"`
	UserAgent        string        `envconfig:"USER_AGENT"`

	GoFileEnabled     bool   `envconfig:"GOFILE_ENABLED" default:"true"`
	GoFileToken       string `envconfig:"GOFILE_TOKEN"`
	GDriveCredentials string `envconfig:"GDRIVE_CREDENTIALS"` // service-account JSON blob
	GDriveFolderID    string `envconfig:"GDRIVE_FOLDER_ID"`

	S3Endpoint  string        `envconfig:"S3_ENDPOINT"`
	S3Region    string        `envconfig:"S3_REGION" default:"us-east-1"`
	S3Bucket    string        `envconfig:"S3_BUCKET"`
	S3AccessKey string        `envconfig:"S3_ACCESS_KEY"`
	S3SecretKey string        `envconfig:"S3_SECRET_KEY"`
	S3Prefix    string        `envconfig:"S3_PREFIX" default:"relay/"`
	S3LinkTTL   time.Duration `envconfig:"S3_LINK_TTL" default:"24h"`
	S3Retention time.Duration `envconfig:"S3_RETENTION" default:"72h"`

	HealthAddr     string        `envconfig:"HEALTH_ADDR"`
	SweepSchedule  string        `envconfig:"SWEEP_SCHEDULE" default:"@every 10m"`
	ArtifactMaxAge time.Duration `envconfig:"ARTIFACT_MAX_AGE" default:"1h"`
	ErrorsLog      string        `envconfig:"ERRORS_LOG" default:"errors.log"`
}

// S3Enabled reports whether the optional bucket host is configured.
func (c Config) S3Enabled() bool {
	return c.S3Bucket != "" && c.S3AccessKey != "" && c.S3SecretKey != ""
}

// LoadConfig reads the environment. Only the bot token is mandatory.
func LoadConfig() (Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return cfg, errors.Wrap(err, "process environment")
	}

	cfg.TelegramToken = firstNonEmpty(cfg.TelegramToken, os.Getenv("BOT_TOKEN"))
	cfg.GeminiAPIKey = firstNonEmpty(cfg.GeminiAPIKey, os.Getenv("GOOGLE_API_KEY"))
	cfg.S3AccessKey = firstNonEmpty(cfg.S3AccessKey, os.Getenv("S3_ACCESS_KEY_ID"))
	cfg.S3SecretKey = firstNonEmpty(cfg.S3SecretKey, os.Getenv("S3_SECRET_ACCESS_KEY"))

	if cfg.TelegramToken == "" {
		return cfg, errors.New("TELEGRAM_BOT_TOKEN is required")
	}
	if cfg.InlineLimitMB <= 0 {
		return cfg, errors.New("INLINE_LIMIT_MB must be positive")
	}
	if cfg.FetchTimeout <= 0 {
		return cfg, errors.New("FETCH_TIMEOUT must be positive")
	}
	return cfg, nil
}

func firstNonEmpty(v ...string) string {
	for _, s := range v {
		if s != "" {
			return s
		}
	}
	return ""
}
