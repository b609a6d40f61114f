package platform

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/samber/lo"

	"media-relay-bot/internal/model"
)

var linkRe = regexp.MustCompile(`https?://\S+`)

// ExtractLink picks the single URL a message refers to. Links carried by
// message entities win; otherwise the first URL in the raw text is accepted
// only if its domain is on the allowlist.
func ExtractLink(text string, entityLinks []string, t *Table) (string, error) {
	explicit := lo.Filter(entityLinks, func(s string, _ int) bool { return isHTTPURL(s) })
	if len(explicit) > 0 {
		return trimLink(explicit[0]), nil
	}

	raw := linkRe.FindString(text)
	if raw == "" {
		return "", model.Errorf(model.KindLinkNotFound, "no link in message")
	}
	raw = trimLink(raw)
	if !t.Allowed(raw) {
		return "", model.Errorf(model.KindUnsupportedPlatform, "domain of %s is not supported", raw)
	}
	return raw, nil
}

func isHTTPURL(s string) bool {
	u, err := url.Parse(strings.TrimSpace(s))
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// trimLink strips punctuation that usually trails a pasted link.
func trimLink(s string) string {
	return strings.TrimRight(strings.TrimSpace(s), ".,;:!?)]}>\"'")
}
