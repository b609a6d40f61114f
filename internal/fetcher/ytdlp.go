package fetcher

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"

	"media-relay-bot/internal/logging"
	"media-relay-bot/internal/model"
	"media-relay-bot/internal/platform"
	"media-relay-bot/internal/proc"
)

const (
	DefaultTimeout   = 600 * time.Second
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
)

// Request describes one fetch.
type Request struct {
	UserID  int64
	URL     string
	Choice  model.Choice
	Profile platform.Profile
}

type Options struct {
	Binary    string
	Dir       string
	Timeout   time.Duration
	UserAgent string
}

// YtDlp drives the yt-dlp binary.
type YtDlp struct {
	opts   Options
	runner proc.Runner
	log    *logging.Logger
}

func NewYtDlp(opts Options, runner proc.Runner, log *logging.Logger) *YtDlp {
	if opts.Binary == "" {
		opts.Binary = "yt-dlp"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	return &YtDlp{opts: opts, runner: runner, log: log}
}

func (y *YtDlp) Dir() string { return y.opts.Dir }

// OutputTemplate is the yt-dlp -o value for a user. Everything a user's cycle
// writes shares the "{userID}_" prefix.
func OutputTemplate(dir string, userID int64) string {
	return filepath.Join(dir, fmt.Sprintf("%d_raw.%%(ext)s", userID))
}

// Args builds the yt-dlp command line for req.
func (y *YtDlp) Args(req Request) []string {
	args := []string{
		"-o", OutputTemplate(y.opts.Dir, req.UserID),
		"--no-playlist",
		"--no-warnings",
		"--no-progress",
		"--user-agent", y.opts.UserAgent,
	}

	keys := make([]string, 0, len(req.Profile.Headers))
	for k := range req.Profile.Headers {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		args = append(args, "--add-header", k+":"+req.Profile.Headers[k])
	}

	if req.Choice == model.ChoiceAudio {
		args = append(args, "-f", req.Profile.Selector(model.ChoiceAudio), "-x", "--audio-format", "mp3")
	} else {
		args = append(args, "-f", req.Profile.Selector(model.ChoiceVideo))
		if req.Profile.MergeContainer != "" {
			args = append(args, "--merge-output-format", req.Profile.MergeContainer)
		}
	}
	return append(args, req.URL)
}

// Fetch runs yt-dlp and returns the artifact it produced.
func (y *YtDlp) Fetch(ctx context.Context, req Request) (model.Artifact, error) {
	ctx, cancel := context.WithTimeout(ctx, y.opts.Timeout)
	defer cancel()

	args := y.Args(req)
	y.log.Infof("[YTDLP] user=%d profile=%s choice=%s url=%s", req.UserID, req.Profile.Name, req.Choice, req.URL)

	res, err := y.runner.Run(ctx, y.opts.Binary, args...)
	if ctxErr := ctx.Err(); ctxErr != nil {
		if errors.Is(ctxErr, context.DeadlineExceeded) {
			y.log.Errorf("[YTDLP] ✗ user=%d timed out after %s", req.UserID, y.opts.Timeout)
			return model.Artifact{}, model.Errorf(model.KindFetchTimeout, "yt-dlp exceeded %s", y.opts.Timeout)
		}
		return model.Artifact{}, model.NewError(model.KindCanceled, errors.Wrap(ctxErr, "yt-dlp"))
	}
	if err != nil {
		diag := res.Diagnostic()
		kind := Classify(diag)
		y.log.Errorf("[YTDLP] ✗ user=%d exit=%d kind=%s: %s", req.UserID, res.ExitCode, kind, lastLines(diag, 5))
		return model.Artifact{}, model.NewError(kind, errors.Wrapf(err, "yt-dlp: %s", lastLines(diag, 1)))
	}

	art, err := Locate(y.opts.Dir, req.UserID)
	if err != nil {
		y.log.Errorf("[YTDLP] ✗ user=%d reported success but no file found", req.UserID)
		return model.Artifact{}, err
	}
	y.log.Infof("[YTDLP] ✓ user=%d file=%s size=%d in %s", req.UserID, filepath.Base(art.Path), art.Size, res.Elapsed.Round(time.Millisecond))
	return art, nil
}

func lastLines(s string, n int) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, " | ")
}
