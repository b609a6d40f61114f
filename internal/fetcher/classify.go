package fetcher

import (
	"strings"

	"media-relay-bot/internal/model"
)

type rule struct {
	kind     model.ErrorKind
	patterns []string
}

// rules are evaluated top to bottom; the first hit wins. Auth markers come
// first so that "Private video. Video unavailable" is never reported as a
// removed video.
var rules = []rule{
	{kind: model.KindFetchAuthRequired, patterns: []string{
		"private",
		"sign in",
		"login required",
		"log in",
		"members-only",
		"members only",
		"confirm your age",
		"age-restricted",
		"use --cookies",
	}},
	{kind: model.KindFetchNoFormats, patterns: []string{
		"requested format is not available",
		"no video formats found",
		"no formats found",
		"no video could be found",
	}},
	{kind: model.KindFetchUnavailable, patterns: []string{
		"unavailable",
		"has been removed",
		"was removed",
		"not available",
		"does not exist",
		"http error 404",
		"account has been terminated",
		"unable to extract",
	}},
}

// Classify maps the fetcher's diagnostic output to an error kind.
func Classify(diagnostic string) model.ErrorKind {
	text := strings.ToLower(diagnostic)
	for _, r := range rules {
		for _, p := range r.patterns {
			if strings.Contains(text, p) {
				return r.kind
			}
		}
	}
	return model.KindFetchGenericFailure
}
