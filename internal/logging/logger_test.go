package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogger_ErrorsGoToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "errors.log")
	require.NoError(t, os.WriteFile(path, []byte("stale line\n"), 0o644))

	log, err := New(path)
	require.NoError(t, err)

	log.Infof("fetch started for %d", 42)
	log.With("user", 42).Warnf("slow prober")
	log.Errorf("fetch failed: %s", "boom")
	require.NoError(t, log.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(data)

	assert.NotContains(t, text, "stale line")
	assert.NotContains(t, text, "fetch started")
	assert.Contains(t, text, "slow prober")
	assert.Contains(t, text, "user=42")
	assert.Contains(t, text, "fetch failed: boom")
}

func TestDiscard(t *testing.T) {
	log := Discard()
	log.Infof("nothing")
	log.Error(nil)
	assert.NoError(t, log.Close())
}
