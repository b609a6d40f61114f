package fetcher

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"media-relay-bot/internal/logging"
	"media-relay-bot/internal/model"
	"media-relay-bot/internal/platform"
	"media-relay-bot/internal/proc"
)

var errExit = errors.New("exit status 1")

func writeFile(t *testing.T, path string, size int) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, make([]byte, size), 0o644))
}

func TestYtDlp_ArgsVideo(t *testing.T) {
	y := NewYtDlp(Options{Dir: "/tmp/dl"}, nil, logging.Discard())
	profile := platform.Default().Resolve("https://www.tiktok.com/@a/video/1")

	args := y.Args(Request{UserID: 42, URL: "https://www.tiktok.com/@a/video/1", Choice: model.ChoiceVideo, Profile: profile})

	assert.Equal(t, []string{"-o", "/tmp/dl/42_raw.%(ext)s"}, args[:2])
	assert.Contains(t, args, "--no-playlist")
	assert.Contains(t, args, "Referer:https://www.tiktok.com/")
	assert.Contains(t, args, "--merge-output-format")
	assert.NotContains(t, args, "-x")
	assert.Equal(t, "https://www.tiktok.com/@a/video/1", args[len(args)-1])
}

func TestYtDlp_ArgsAudio(t *testing.T) {
	y := NewYtDlp(Options{Dir: "/tmp/dl"}, nil, logging.Discard())
	profile := platform.Default().Resolve("https://youtu.be/abc")

	args := y.Args(Request{UserID: 1, URL: "https://youtu.be/abc", Choice: model.ChoiceAudio, Profile: profile})

	assert.Contains(t, args, "-x")
	assert.Contains(t, args, "mp3")
	assert.Contains(t, args, "bestaudio/best")
	assert.NotContains(t, args, "--merge-output-format")
}

func TestYtDlp_FetchSuccess(t *testing.T) {
	dir := t.TempDir()
	runner := proc.RunFunc(func(ctx context.Context, name string, args ...string) (proc.Result, error) {
		assert.Equal(t, "yt-dlp", name)
		writeFile(t, filepath.Join(dir, "5_raw.mp4"), 128)
		writeFile(t, filepath.Join(dir, "5_raw.f137.mp4.part"), 64)
		return proc.Result{}, nil
	})
	y := NewYtDlp(Options{Dir: dir}, runner, logging.Discard())

	art, err := y.Fetch(context.Background(), Request{UserID: 5, URL: "https://youtu.be/x", Choice: model.ChoiceVideo, Profile: platform.Default().Resolve("https://youtu.be/x")})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "5_raw.mp4"), art.Path)
	assert.EqualValues(t, 128, art.Size)
	assert.Equal(t, ".mp4", art.Ext)
}

func TestYtDlp_FetchMissingFile(t *testing.T) {
	runner := proc.RunFunc(func(ctx context.Context, name string, args ...string) (proc.Result, error) {
		return proc.Result{}, nil
	})
	y := NewYtDlp(Options{Dir: t.TempDir()}, runner, logging.Discard())

	_, err := y.Fetch(context.Background(), Request{UserID: 5, URL: "https://youtu.be/x", Choice: model.ChoiceVideo})
	assert.Equal(t, model.KindArtifactMissing, model.KindOf(err))
}

func TestYtDlp_FetchClassifiesExit(t *testing.T) {
	runner := proc.RunFunc(func(ctx context.Context, name string, args ...string) (proc.Result, error) {
		return proc.Result{ExitCode: 1, Stderr: []byte("ERROR: [youtube] x: Private video")}, errExit
	})
	y := NewYtDlp(Options{Dir: t.TempDir()}, runner, logging.Discard())

	_, err := y.Fetch(context.Background(), Request{UserID: 5, URL: "https://youtu.be/x"})
	assert.Equal(t, model.KindFetchAuthRequired, model.KindOf(err))
}

func TestYtDlp_FetchTimeout(t *testing.T) {
	runner := proc.RunFunc(func(ctx context.Context, name string, args ...string) (proc.Result, error) {
		<-ctx.Done()
		return proc.Result{ExitCode: -1}, ctx.Err()
	})
	y := NewYtDlp(Options{Dir: t.TempDir(), Timeout: 20 * time.Millisecond}, runner, logging.Discard())

	_, err := y.Fetch(context.Background(), Request{UserID: 5, URL: "https://youtu.be/x"})
	assert.Equal(t, model.KindFetchTimeout, model.KindOf(err))
}

func TestYtDlp_FetchCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	runner := proc.RunFunc(func(ctx context.Context, name string, args ...string) (proc.Result, error) {
		cancel()
		<-ctx.Done()
		return proc.Result{ExitCode: -1}, ctx.Err()
	})
	y := NewYtDlp(Options{Dir: t.TempDir()}, runner, logging.Discard())

	_, err := y.Fetch(ctx, Request{UserID: 5, URL: "https://youtu.be/x"})
	assert.Equal(t, model.KindCanceled, model.KindOf(err))
}

func TestLocate_Deterministic(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "9_raw.webm"), 10)
	writeFile(t, filepath.Join(dir, "9_raw.mkv"), 20)
	writeFile(t, filepath.Join(dir, "90_raw.aaa"), 30)

	art, err := Locate(dir, 9)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "9_raw.mkv"), art.Path)
}

func TestPurge_OnlyUserNamespace(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "9_raw.mp4"), 1)
	writeFile(t, filepath.Join(dir, "9_final.mp4"), 1)
	writeFile(t, filepath.Join(dir, "90_raw.mp4"), 1)

	n, err := Purge(dir, 9)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	left, _ := filepath.Glob(filepath.Join(dir, "*"))
	assert.Equal(t, []string{filepath.Join(dir, "90_raw.mp4")}, left)
}
