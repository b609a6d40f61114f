package ai

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/semaphore"

	"media-relay-bot/internal/logging"
	"media-relay-bot/internal/model"
	"media-relay-bot/internal/transcript"
)

const (
	DefaultWorkers  = 3
	DefaultLimit    = 4000
	DefaultBudget   = 10000
	TruncatedMarker = "… (ответ обрезан)"

	callTimeout = 2 * time.Minute
)

// ErrEmptyQuery means /ask was sent without a question.
var ErrEmptyQuery = errors.New("empty query")

type Options struct {
	Workers int
	Limit   int
	Budget  int
	Langs   []string
}

// Assistant answers free-form questions and summarizes videos. Calls are
// bounded by a weighted semaphore so slow replies never block the update loop.
type Assistant struct {
	gen         Generator
	transcripts transcript.Source
	sem         *semaphore.Weighted
	opts        Options
	log         *logging.Logger
}

// NewAssistant accepts a nil generator; every call then fails with
// AIUnavailable.
func NewAssistant(gen Generator, transcripts transcript.Source, opts Options, log *logging.Logger) *Assistant {
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}
	if opts.Limit <= 0 {
		opts.Limit = DefaultLimit
	}
	if opts.Budget <= 0 {
		opts.Budget = DefaultBudget
	}
	if len(opts.Langs) == 0 {
		opts.Langs = []string{"ru", "en"}
	}
	return &Assistant{
		gen:         gen,
		transcripts: transcripts,
		sem:         semaphore.NewWeighted(int64(opts.Workers)),
		opts:        opts,
		log:         log,
	}
}

func (a *Assistant) Ask(ctx context.Context, query string) (string, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return "", ErrEmptyQuery
	}
	a.log.Infof("ai: ask (%d chars)", len([]rune(query)))
	return a.generate(ctx, query)
}

// Summarize fetches the video's captions, clips them to the budget and asks
// for a short summary.
func (a *Assistant) Summarize(ctx context.Context, link string) (string, error) {
	id, err := transcript.VideoID(link)
	if err != nil {
		return "", model.NewError(model.KindLinkNotFound, err)
	}
	if a.transcripts == nil {
		return "", model.Errorf(model.KindTranscriptUnavailable, "transcripts are disabled")
	}

	segs, err := a.transcripts.Fetch(ctx, id, a.opts.Langs)
	if err != nil {
		if model.IsKind(err, model.KindTranscriptUnavailable) {
			return "", err
		}
		return "", model.NewError(model.KindAIUnavailable, errors.Wrap(err, "transcript"))
	}
	text := Clip(transcript.Join(segs), a.opts.Budget)
	if text == "" {
		return "", model.Errorf(model.KindTranscriptUnavailable, "empty transcript for %s", id)
	}

	a.log.Infof("ai: summarize %s (%d chars of transcript)", id, len([]rune(text)))
	prompt := fmt.Sprintf(
		"Сделай краткое содержание видео на русском языке: основные мысли списком, без вступлений. "+
			"Расшифровка:\n\n%s", text)
	return a.generate(ctx, prompt)
}

func (a *Assistant) generate(ctx context.Context, prompt string) (string, error) {
	if a.gen == nil {
		return "", model.Errorf(model.KindAIUnavailable, "no generator configured")
	}
	if err := a.sem.Acquire(ctx, 1); err != nil {
		return "", model.NewError(model.KindAIUnavailable, errors.Wrap(err, "wait for ai worker"))
	}
	defer a.sem.Release(1)

	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	start := time.Now()
	out, err := a.gen.Generate(ctx, prompt)
	if err != nil {
		a.log.Errorf("ai: generate failed after %s: %v", time.Since(start).Round(time.Millisecond), err)
		return "", model.NewError(model.KindAIUnavailable, err)
	}
	return Truncate(out, a.opts.Limit), nil
}

// Truncate cuts s to limit characters and appends TruncatedMarker when it
// had to cut.
func Truncate(s string, limit int) string {
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit]) + TruncatedMarker
}

// Clip cuts s to limit characters without a marker.
func Clip(s string, limit int) string {
	s = strings.TrimSpace(s)
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit])
}
