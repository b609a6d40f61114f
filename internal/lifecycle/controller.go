package lifecycle

import (
	"context"
	"fmt"
	"mime"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"media-relay-bot/internal/fetcher"
	"media-relay-bot/internal/logging"
	"media-relay-bot/internal/media"
	"media-relay-bot/internal/model"
	"media-relay-bot/internal/platform"
	"media-relay-bot/internal/session"
	"media-relay-bot/internal/uploaders"
)

type Fetcher interface {
	Fetch(ctx context.Context, req fetcher.Request) (model.Artifact, error)
}

type Prober interface {
	Probe(ctx context.Context, path string) (*media.Info, error)
}

type Transcoder interface {
	Normalize(ctx context.Context, in, out string) error
	Compress(ctx context.Context, in, out string, targetBytes int64, duration float64) error
}

type Uploader interface {
	Upload(ctx context.Context, req *uploaders.UploadRequest) (*uploaders.UploadResult, []uploaders.Attempt, error)
	Platforms() []string
}

// Delivery is one thing to hand to the user: a local file for inline kinds,
// a link for DeliverUpload.
type Delivery struct {
	Kind       model.DeliveryKind
	Path       string
	Size       int64
	SourceURL  string
	Link       string
	Host       string
	Downgraded bool
}

// Deliverer is the chat side of a cycle.
type Deliverer interface {
	Stage(stage model.Stage)
	Deliver(ctx context.Context, d Delivery) error
}

type Options struct {
	Dir    string
	Limits Limits
	// KillOnCancel makes /cancel abort the running cycle, killing its
	// subprocess. When false the cycle runs on and only its delivery is
	// suppressed.
	KillOnCancel bool
}

// Outcome summarizes a finished cycle. It is returned alongside errors too,
// so the caller can still show the original link or the failed hosts.
type Outcome struct {
	ID               string
	SourceURL        string
	Kind             model.DeliveryKind
	Link             string
	Host             string
	Downgraded       bool
	Transcoded       bool
	OriginalFallback bool
	Attempts         []uploaders.Attempt
	Elapsed          time.Duration
}

type Submission struct {
	URL        string
	Profile    platform.Profile
	AutoSelect model.Choice
}

type CancelResult struct {
	HadURL      bool
	Interrupted bool
	Purged      int
}

type Controller struct {
	store      session.Store
	platforms  *platform.Table
	fetcher    Fetcher
	prober     Prober
	transcoder Transcoder
	uploads    Uploader
	opts       Options
	log        *logging.Logger
}

func New(store session.Store, platforms *platform.Table, f Fetcher, p Prober, t Transcoder, up Uploader, opts Options, log *logging.Logger) *Controller {
	if opts.Limits.Inline <= 0 {
		opts.Limits = DefaultLimits()
	}
	return &Controller{
		store:      store,
		platforms:  platforms,
		fetcher:    f,
		prober:     p,
		transcoder: t,
		uploads:    up,
		opts:       opts,
		log:        log,
	}
}

func (c *Controller) Store() session.Store { return c.store }

// Submit is pure intake: it extracts the link and remembers it, replacing any
// earlier one. The busy flag is left alone.
func (c *Controller) Submit(userID int64, text string, entityLinks []string) (*Submission, error) {
	link, err := platform.ExtractLink(text, entityLinks, c.platforms)
	if err != nil {
		return nil, err
	}
	c.store.SetURL(userID, link)
	p := c.platforms.Resolve(link)
	c.log.Infof("submit: user %d -> %s (%s)", userID, link, p.Name)
	return &Submission{URL: link, Profile: p, AutoSelect: p.AutoSelect}, nil
}

// Select runs one fetch/deliver cycle. Only one cycle per user runs at a
// time; a concurrent call fails with AlreadyInProgress and changes nothing.
// Whatever happens, the user's artifacts are purged and the guard released
// before Select returns.
func (c *Controller) Select(ctx context.Context, userID int64, choice model.Choice, d Deliverer) (*Outcome, error) {
	if _, ok := model.ParseChoice(string(choice)); !ok {
		return nil, errors.Errorf("unknown choice %q", choice)
	}

	ctx, cancel := context.WithCancel(ctx)
	var aborted atomic.Bool
	stop := func() {
		aborted.Store(true)
		if c.opts.KillOnCancel {
			cancel()
		}
	}
	if !c.store.Acquire(userID, stop) {
		cancel()
		return nil, model.Errorf(model.KindAlreadyInProgress, "user %d already has a running cycle", userID)
	}

	cy := &cycle{
		Controller: c,
		userID:     userID,
		choice:     choice,
		d:          d,
		aborted:    &aborted,
		out:        &Outcome{ID: uuid.NewString()[:8]},
	}
	cy.log = c.log.With("cycle", cy.out.ID).With("user", userID)
	start := time.Now()

	defer func() {
		cancel()
		if n, err := fetcher.Purge(c.opts.Dir, userID); err != nil {
			cy.log.Errorf("cleanup: %v", err)
		} else if n > 0 {
			cy.log.Infof("cleanup: removed %d file(s)", n)
		}
		c.store.Release(userID)
		cy.out.Elapsed = time.Since(start)
	}()

	sess, ok := c.store.Get(userID)
	if !ok || sess.PendingURL == "" {
		return nil, model.Errorf(model.KindLinkExpired, "no pending link for user %d", userID)
	}
	cy.out.SourceURL = sess.PendingURL
	cy.log.Infof("select: START %s %s", choice, sess.PendingURL)

	err := cy.run(ctx)
	if err != nil {
		if aborted.Load() || errors.Is(err, context.Canceled) {
			err = model.NewError(model.KindCanceled, err)
		}
		cy.log.Warnf("select: FAILED %s: %v", choice, err)
		return cy.out, err
	}
	cy.log.Infof("select: DONE %s via %s", choice, cy.out.Kind)
	return cy.out, nil
}

// Cancel forgets the pending link. A running cycle is interrupted (see
// Options.KillOnCancel) and purges its own files on exit; otherwise leftover
// files are purged here under the busy guard.
func (c *Controller) Cancel(userID int64) CancelResult {
	sess, _ := c.store.Get(userID)
	c.store.Clear(userID)
	res := CancelResult{HadURL: sess.PendingURL != ""}

	if c.store.Cancel(userID) {
		res.Interrupted = true
		c.log.Infof("cancel: user %d interrupted running cycle", userID)
		return res
	}
	if !c.store.CompareAndSwapBusy(userID, false, true) {
		res.Interrupted = c.store.Cancel(userID)
		return res
	}
	n, err := fetcher.Purge(c.opts.Dir, userID)
	c.store.CompareAndSwapBusy(userID, true, false)
	if err != nil {
		c.log.Errorf("cancel: purge user %d: %v", userID, err)
	}
	res.Purged = n
	return res
}

type cycle struct {
	*Controller
	userID  int64
	choice  model.Choice
	d       Deliverer
	aborted *atomic.Bool
	out     *Outcome
	log     *logging.Logger
}

func (cy *cycle) canUpload() bool {
	return cy.uploads != nil && len(cy.uploads.Platforms()) > 0
}

func (cy *cycle) run(ctx context.Context) error {
	profile := cy.platforms.Resolve(cy.out.SourceURL)

	cy.d.Stage(model.StageFetching)
	art, err := cy.fetcher.Fetch(ctx, fetcher.Request{
		UserID:  cy.userID,
		URL:     cy.out.SourceURL,
		Choice:  cy.choice,
		Profile: profile,
	})
	if err != nil {
		return err
	}
	cy.log.Infof("fetch: %s (%d bytes)", art.Path, art.Size)

	effective := cy.choice
	var info *media.Info
	if cy.choice == model.ChoiceVideo && !art.IsImage() {
		cy.d.Stage(model.StageProbing)
		info, err = cy.prober.Probe(ctx, art.Path)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			// An unreadable probe is not proof of a missing stream.
			cy.log.Warnf("probe: %v, assuming video", err)
			info = &media.Info{HasVideo: true}
		}
		if !info.HasVideo {
			cy.log.Infof("probe: no video stream, sending as audio")
			effective = model.ChoiceAudio
			cy.out.Downgraded = true
		}
	}

	kind := Decide(effective, art, cy.opts.Limits, cy.canUpload())

	if effective == model.ChoiceVideo && !art.IsImage() {
		art, kind, err = cy.shape(ctx, art, kind, info)
		if err != nil {
			return err
		}
	}
	cy.out.Kind = kind

	switch kind {
	case model.DeliverSizeRejected:
		return model.Errorf(model.KindAllUploadsExhausted, "%d bytes is over the inline limit and no upload host is configured", art.Size)
	case model.DeliverUpload:
		return cy.upload(ctx, art)
	}

	if cy.aborted.Load() {
		return context.Canceled
	}
	cy.d.Stage(model.StageDelivering)
	err = cy.d.Deliver(ctx, Delivery{
		Kind:       kind,
		Path:       art.Path,
		Size:       art.Size,
		SourceURL:  cy.out.SourceURL,
		Downgraded: cy.out.Downgraded,
	})
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	cy.log.Warnf("deliver: inline %s failed: %v", kind, err)
	if !cy.canUpload() {
		return model.NewError(model.KindDeliveryFailed, err)
	}
	cy.out.Kind = model.DeliverUpload
	return cy.upload(ctx, art)
}

// shape brings a video artifact into deliverable form: oversized files are
// compressed when a target is configured, inline files in a foreign
// container are normalized to MP4.
func (cy *cycle) shape(ctx context.Context, art model.Artifact, kind model.DeliveryKind, info *media.Info) (model.Artifact, model.DeliveryKind, error) {
	lim := cy.opts.Limits

	if kind != model.DeliverInlineVideo && lim.CompressTarget > 0 && info != nil && info.Duration > 0 {
		cy.d.Stage(model.StageTranscoding)
		out := fetcher.ArtifactPath(cy.opts.Dir, cy.userID, "small"+media.TargetExt)
		err := cy.transcoder.Compress(ctx, art.Path, out, lim.CompressTarget, info.Duration)
		if err == nil {
			if small, serr := fetcher.Stat(out); serr == nil && small.Size <= lim.Inline {
				cy.out.Transcoded = true
				return small, model.DeliverInlineVideo, nil
			}
		} else if ctx.Err() != nil {
			return art, kind, ctx.Err()
		}
		cy.log.Warnf("compress: no inline-sized result (%v), keeping original", err)
		return art, kind, nil
	}

	if kind != model.DeliverInlineVideo || art.Ext == media.TargetExt {
		return art, kind, nil
	}

	cy.d.Stage(model.StageTranscoding)
	out := fetcher.ArtifactPath(cy.opts.Dir, cy.userID, "final"+media.TargetExt)
	if err := cy.transcoder.Normalize(ctx, art.Path, out); err != nil {
		if ctx.Err() != nil {
			return art, kind, ctx.Err()
		}
		if art.Size <= lim.Inline {
			cy.log.Warnf("transcode: %v, sending original %s", err, art.Ext)
			cy.out.OriginalFallback = true
			return art, kind, nil
		}
		return art, kind, model.NewError(model.KindTranscodeFailure, err)
	}
	norm, err := fetcher.Stat(out)
	if err != nil {
		return art, kind, model.NewError(model.KindTranscodeFailure, err)
	}
	cy.out.Transcoded = true
	return norm, Decide(model.ChoiceVideo, norm, lim, cy.canUpload()), nil
}

// upload escalates to the host chain. When every host fails the returned
// error is AllUploadsExhausted and Outcome.SourceURL is the manual fallback.
func (cy *cycle) upload(ctx context.Context, art model.Artifact) error {
	if cy.aborted.Load() {
		return context.Canceled
	}
	cy.d.Stage(model.StageUploading)
	res, attempts, err := cy.uploads.Upload(ctx, &uploaders.UploadRequest{
		Path:        art.Path,
		Name:        fmt.Sprintf("media_%s%s", cy.out.ID, art.Ext),
		ContentType: mime.TypeByExtension(art.Ext),
		Size:        art.Size,
		UserID:      cy.userID,
	})
	cy.out.Attempts = attempts
	if err != nil {
		return err
	}
	cy.out.Link, cy.out.Host = res.URL, res.Platform

	if cy.aborted.Load() {
		return context.Canceled
	}
	cy.d.Stage(model.StageDelivering)
	if err := cy.d.Deliver(ctx, Delivery{
		Kind:       model.DeliverUpload,
		Size:       art.Size,
		SourceURL:  cy.out.SourceURL,
		Link:       res.URL,
		Host:       res.Platform,
		Downgraded: cy.out.Downgraded,
	}); err != nil {
		return model.NewError(model.KindDeliveryFailed, err)
	}
	return nil
}
