package media

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/pkg/errors"
	ffmpeg "github.com/u2takey/ffmpeg-go"

	"media-relay-bot/internal/logging"
	"media-relay-bot/internal/proc"
)

// ffmpegSem limits concurrent ffmpeg processes across all users.
var ffmpegSem = make(chan struct{}, 2)

const (
	audioKbps      = 128
	minVideoKbps   = 100
	bitrateSafety  = 0.9
	TargetExt      = ".mp4"
	TargetFormat   = "mp4"
	defaultTimeout = 30 * time.Minute
)

type Transcoder struct {
	binary  string
	runner  proc.Runner
	timeout time.Duration
	log     *logging.Logger
}

func NewTranscoder(binary string, runner proc.Runner, log *logging.Logger) *Transcoder {
	if binary == "" {
		binary = "ffmpeg"
	}
	return &Transcoder{binary: binary, runner: runner, timeout: defaultTimeout, log: log}
}

// NormalizeArgs re-encodes to H.264/AAC MP4 that phones play inline.
func NormalizeArgs(in, out string) []string {
	return ffmpegArgs(in, out, ffmpeg.KwArgs{
		"c:v":      "libx264",
		"pix_fmt":  "yuv420p",
		"preset":   "fast",
		"crf":      "23",
		"c:a":      "aac",
		"b:a":      fmt.Sprintf("%dk", audioKbps),
		"movflags": "+faststart",
	})
}

// CompressArgs re-encodes under an explicit video bitrate.
func CompressArgs(in, out string, videoKbps int) []string {
	return ffmpegArgs(in, out, ffmpeg.KwArgs{
		"c:v":      "libx264",
		"pix_fmt":  "yuv420p",
		"preset":   "fast",
		"b:v":      fmt.Sprintf("%dk", videoKbps),
		"maxrate":  fmt.Sprintf("%dk", videoKbps),
		"bufsize":  fmt.Sprintf("%dk", videoKbps*2),
		"c:a":      "aac",
		"b:a":      fmt.Sprintf("%dk", audioKbps),
		"movflags": "+faststart",
	})
}

func ffmpegArgs(in, out string, kw ffmpeg.KwArgs) []string {
	args := ffmpeg.Input(in).Output(out, kw).OverWriteOutput().GetArgs()
	return append([]string{"-hide_banner", "-loglevel", "error"}, args...)
}

// VideoBitrate returns the video bitrate in kbps that fits targetBytes over
// duration seconds: (target_bits / duration) * safety minus the audio track.
func VideoBitrate(targetBytes int64, duration float64) (int, error) {
	if targetBytes <= 0 {
		return 0, errors.New("target size must be positive")
	}
	if duration <= 0 {
		return 0, errors.New("duration is unknown")
	}
	totalKbps := float64(targetBytes*8) / duration * bitrateSafety / 1000
	video := int(totalKbps) - audioKbps
	if video < minVideoKbps {
		return 0, errors.Errorf("target %d bytes is too small for %.0fs", targetBytes, duration)
	}
	return video, nil
}

func (t *Transcoder) Normalize(ctx context.Context, in, out string) error {
	return t.run(ctx, "normalize", out, NormalizeArgs(in, out))
}

func (t *Transcoder) Compress(ctx context.Context, in, out string, targetBytes int64, duration float64) error {
	kbps, err := VideoBitrate(targetBytes, duration)
	if err != nil {
		return err
	}
	t.log.Infof("[FFMPEG] compress %s to ~%d bytes at %dk", in, targetBytes, kbps)
	return t.run(ctx, "compress", out, CompressArgs(in, out, kbps))
}

func (t *Transcoder) run(ctx context.Context, op, out string, args []string) error {
	select {
	case ffmpegSem <- struct{}{}:
	case <-ctx.Done():
		return errors.Wrap(ctx.Err(), "wait for ffmpeg slot")
	}
	defer func() { <-ffmpegSem }()

	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	t.log.Infof("[FFMPEG] %s -> %s", op, out)
	res, err := t.runner.Run(ctx, t.binary, args...)
	if err != nil {
		msg := res.Diagnostic()
		if msg == "" {
			msg = err.Error()
		}
		t.log.Errorf("[FFMPEG] ✗ %s failed (exit %d): %s", op, res.ExitCode, msg)
		return errors.Errorf("ffmpeg %s: %s", op, msg)
	}
	if _, err := os.Stat(out); err != nil {
		return errors.Wrapf(err, "ffmpeg did not create output file %s", out)
	}
	t.log.Infof("[FFMPEG] ✓ %s done in %s", op, res.Elapsed.Round(time.Millisecond))
	return nil
}
