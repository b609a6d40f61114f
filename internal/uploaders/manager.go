package uploaders

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/samber/lo"

	"media-relay-bot/internal/logging"
	"media-relay-bot/internal/model"
)

// Attempt records one host that could not take the file.
type Attempt struct {
	Platform string
	Err      error
}

// Chain tries hosts in registration order and stops at the first success.
type Chain struct {
	uploaders []Uploader
	log       *logging.Logger
}

func NewChain(log *logging.Logger, ups ...Uploader) *Chain {
	c := &Chain{log: log}
	for _, u := range ups {
		c.Add(u)
	}
	return c
}

// Add appends a host to the end of the chain; nil is ignored so optional
// hosts can be passed straight from their constructors.
func (c *Chain) Add(u Uploader) {
	if u == nil {
		return
	}
	c.uploaders = append(c.uploaders, u)
}

func (c *Chain) Platforms() []string {
	return lo.Map(c.uploaders, func(u Uploader, _ int) string { return u.Platform() })
}

// Upload returns the first successful result together with the hosts that
// failed before it. When every host fails the error is AllUploadsExhausted.
func (c *Chain) Upload(ctx context.Context, req *UploadRequest) (*UploadResult, []Attempt, error) {
	var attempts []Attempt
	for _, u := range c.uploaders {
		if err := ctx.Err(); err != nil {
			return nil, attempts, model.NewError(model.KindCanceled, err)
		}

		start := time.Now()
		c.log.Infof("upload: %s START (%s, %d bytes)", u.Platform(), req.Name, req.Size)
		res, err := u.Upload(ctx, req)
		if err == nil && (res == nil || !res.Success || res.URL == "") {
			err = errors.New("host returned no link")
			if res != nil && res.Error != "" {
				err = errors.New(res.Error)
			}
		}
		if err != nil {
			c.log.Warnf("upload: %s failed after %s: %v", u.Platform(), time.Since(start).Round(time.Millisecond), err)
			attempts = append(attempts, Attempt{
				Platform: u.Platform(),
				Err:      &model.Error{Kind: model.KindUploadFailure, Host: u.Platform(), Err: err},
			})
			continue
		}
		c.log.Infof("upload: %s ✓ %s in %s", u.Platform(), res.URL, time.Since(start).Round(time.Millisecond))
		return res, attempts, nil
	}

	if err := ctx.Err(); err != nil {
		return nil, attempts, model.NewError(model.KindCanceled, err)
	}
	hosts := lo.Map(attempts, func(a Attempt, _ int) string { return a.Platform })
	return nil, attempts, model.Errorf(model.KindAllUploadsExhausted, "no host accepted the file (tried: %s)", strings.Join(hosts, ", "))
}
