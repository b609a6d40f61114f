package transcript

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/kkdai/youtube/v2"
	"github.com/pkg/errors"
	"github.com/samber/lo"

	"media-relay-bot/internal/logging"
	"media-relay-bot/internal/model"
)

// Segment is one caption line.
type Segment struct {
	Text  string
	Start time.Duration
}

// Source fetches captions for a YouTube video.
type Source interface {
	Fetch(ctx context.Context, videoID string, langs []string) ([]Segment, error)
}

var idPatterns = []*regexp.Regexp{
	regexp.MustCompile(`[?&]v=([A-Za-z0-9_-]{11})`),
	regexp.MustCompile(`youtu\.be/([A-Za-z0-9_-]{11})`),
	regexp.MustCompile(`/shorts/([A-Za-z0-9_-]{11})`),
	regexp.MustCompile(`/embed/([A-Za-z0-9_-]{11})`),
	regexp.MustCompile(`/live/([A-Za-z0-9_-]{11})`),
}

// VideoID pulls the 11-character video id out of a YouTube link.
func VideoID(link string) (string, error) {
	link = strings.TrimSpace(link)
	for _, re := range idPatterns {
		if m := re.FindStringSubmatch(link); m != nil {
			return m[1], nil
		}
	}
	if !strings.Contains(link, "/") {
		if id, err := youtube.ExtractVideoID(link); err == nil {
			return id, nil
		}
	}
	return "", errors.Errorf("no youtube video id in %q", link)
}

type YouTube struct {
	client *youtube.Client
	log    *logging.Logger
}

func NewYouTube(log *logging.Logger) *YouTube {
	return &YouTube{client: &youtube.Client{}, log: log}
}

// Fetch tries each preferred language in order. Disabled captions or no
// matching language is reported as TranscriptUnavailable.
func (y *YouTube) Fetch(ctx context.Context, videoID string, langs []string) ([]Segment, error) {
	video, err := y.client.GetVideoContext(ctx, videoID)
	if err != nil {
		return nil, errors.Wrapf(err, "get video %s", videoID)
	}

	langs = lo.Uniq(lo.Compact(langs))
	for _, lang := range langs {
		tr, err := y.client.GetTranscriptCtx(ctx, video, lang)
		if errors.Is(err, youtube.ErrTranscriptDisabled) {
			y.log.Infof("transcript: captions disabled for %s", videoID)
			return nil, model.NewError(model.KindTranscriptUnavailable, err)
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil, errors.Wrap(ctx.Err(), "transcript")
			}
			y.log.Infof("transcript: %s has no %s captions: %v", videoID, lang, err)
			continue
		}
		segs := make([]Segment, 0, len(tr))
		for _, s := range tr {
			if text := strings.TrimSpace(s.Text); text != "" {
				segs = append(segs, Segment{Text: text, Start: time.Duration(s.StartMs) * time.Millisecond})
			}
		}
		if len(segs) > 0 {
			y.log.Infof("transcript: %s fetched %d segments (%s)", videoID, len(segs), lang)
			return segs, nil
		}
	}
	return nil, model.Errorf(model.KindTranscriptUnavailable, "no captions for %s in %v", videoID, langs)
}

// Join flattens segments into a single line of text.
func Join(segs []Segment) string {
	return strings.Join(lo.Map(segs, func(s Segment, _ int) string { return s.Text }), " ")
}
