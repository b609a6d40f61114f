package internal

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	for _, k := range []string{"TELEGRAM_BOT_TOKEN", "BOT_TOKEN", "GEMINI_API_KEY", "GOOGLE_API_KEY", "S3_ACCESS_KEY", "S3_ACCESS_KEY_ID", "S3_SECRET_KEY", "S3_SECRET_ACCESS_KEY", "S3_BUCKET"} {
		t.Setenv(k, "")
	}
}

func TestLoadConfig_TokenRequired(t *testing.T) {
	clearEnv(t)
	_, err := LoadConfig()
	assert.Error(t, err)
}

func TestLoadConfig_Defaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("TELEGRAM_BOT_TOKEN", "123:abc")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, 600*time.Second, cfg.FetchTimeout)
	assert.EqualValues(t, 2000, cfg.InlineLimitMB)
	assert.Equal(t, 3, cfg.AIWorkers)
	assert.Equal(t, 4000, cfg.AIReplyLimit)
	assert.Equal(t, 10000, cfg.TranscriptBudget)
	assert.Equal(t, []string{"ru", "en"}, cfg.TranscriptLangs)
	assert.True(t, cfg.CancelKillsFetch)
	assert.True(t, cfg.GoFileEnabled)
	assert.False(t, cfg.S3Enabled())
}

func TestLoadConfig_Fallbacks(t *testing.T) {
	clearEnv(t)
	t.Setenv("BOT_TOKEN", "legacy")
	t.Setenv("GOOGLE_API_KEY", "g-key")
	t.Setenv("INLINE_LIMIT_MB", "49")
	t.Setenv("TRANSCRIPT_LANGS", "en,de")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "legacy", cfg.TelegramToken)
	assert.Equal(t, "g-key", cfg.GeminiAPIKey)
	assert.EqualValues(t, 49, cfg.InlineLimitMB)
	assert.Equal(t, []string{"en", "de"}, cfg.TranscriptLangs)
}

func TestLoadConfig_BadValue(t *testing.T) {
	clearEnv(t)
	t.Setenv("TELEGRAM_BOT_TOKEN", "x")
	t.Setenv("FETCH_TIMEOUT", "soon")
	_, err := LoadConfig()
	assert.Error(t, err)
}
