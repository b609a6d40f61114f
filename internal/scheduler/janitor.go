package scheduler

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"
	"github.com/samber/lo"

	"media-relay-bot/internal"
	"media-relay-bot/internal/logging"
	"media-relay-bot/internal/s3"
)

// BusyChecker reports whether a user has a cycle running.
type BusyChecker interface {
	Busy(userID int64) bool
}

type Report struct {
	Local  int
	Remote int
}

// Janitor removes artifacts that outlived their cycle: files a crashed
// process left in the download directory and S3 uploads past retention.
type Janitor struct {
	dir       string
	maxAge    time.Duration
	busy      BusyChecker
	s3c       s3.Client
	prefix    string
	retention time.Duration

	log  *logging.Logger
	cron *cron.Cron
	now  func() time.Time
}

// NewJanitor schedules Sweep on cfg.SweepSchedule. s3c may be nil.
func NewJanitor(cfg internal.Config, busy BusyChecker, s3c s3.Client, log *logging.Logger) (*Janitor, error) {
	j := &Janitor{
		dir:       cfg.DownloadDir,
		maxAge:    cfg.ArtifactMaxAge,
		busy:      busy,
		s3c:       s3c,
		prefix:    cfg.S3Prefix,
		retention: cfg.S3Retention,
		log:       log,
		cron:      cron.New(cron.WithSeconds()),
		now:       time.Now,
	}
	if cfg.SweepSchedule == "" {
		return j, nil
	}
	if _, err := j.cron.AddFunc(cfg.SweepSchedule, func() {
		rep := j.Sweep(context.Background())
		if rep.Local+rep.Remote > 0 {
			log.Infof("cron: sweep removed %d local, %d remote", rep.Local, rep.Remote)
		}
	}); err != nil {
		return nil, errors.Wrapf(err, "schedule %q", cfg.SweepSchedule)
	}
	return j, nil
}

// Run sweeps once, then follows the schedule until ctx is done.
func (j *Janitor) Run(ctx context.Context) error {
	rep := j.Sweep(ctx)
	j.log.Infof("janitor: startup sweep removed %d local, %d remote", rep.Local, rep.Remote)

	j.cron.Start()
	<-ctx.Done()

	ctxStop := j.cron.Stop()
	select {
	case <-ctxStop.Done():
		return nil
	case <-time.After(10 * time.Second):
		return errors.New("cron stop timeout")
	}
}

// Sweep runs both passes; failures are logged, not returned.
func (j *Janitor) Sweep(ctx context.Context) Report {
	var rep Report
	n, err := j.SweepLocal()
	if err != nil {
		j.log.Errorf("sweep local: %v", err)
	}
	rep.Local = n

	if j.s3c != nil && j.retention > 0 {
		n, err = j.SweepRemote(ctx)
		if err != nil {
			j.log.Errorf("sweep s3: %v", err)
		}
		rep.Remote = n
	}
	return rep
}

// SweepLocal deletes files older than maxAge. Files of users with a cycle in
// flight are left alone whatever their age.
func (j *Janitor) SweepLocal() (int, error) {
	entries, err := os.ReadDir(j.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, errors.Wrap(err, "read download dir")
	}
	cutoff := j.now().Add(-j.maxAge)

	stale := lo.Filter(entries, func(e os.DirEntry, _ int) bool {
		if e.IsDir() {
			return false
		}
		if uid, ok := ownerOf(e.Name()); ok && j.busy != nil && j.busy.Busy(uid) {
			return false
		}
		info, err := e.Info()
		return err == nil && info.ModTime().Before(cutoff)
	})

	removed := 0
	for _, e := range stale {
		p := filepath.Join(j.dir, e.Name())
		if err := os.Remove(p); err != nil {
			j.log.Warnf("sweep: remove %s: %v", p, err)
			continue
		}
		removed++
	}
	return removed, nil
}

// SweepRemote deletes uploads under the prefix older than retention.
func (j *Janitor) SweepRemote(ctx context.Context) (int, error) {
	if j.s3c == nil {
		return 0, nil
	}
	objs, err := j.s3c.List(ctx, j.prefix)
	if err != nil {
		return 0, errors.Wrap(err, "list uploads")
	}
	cutoff := j.now().Add(-j.retention)

	removed := 0
	for _, o := range objs {
		if !o.LastModified.Before(cutoff) {
			continue
		}
		if err := j.s3c.Delete(ctx, o.Key); err != nil {
			j.log.Warnf("sweep: delete s3://%s: %v", o.Key, err)
			continue
		}
		removed++
	}
	return removed, nil
}

// ownerOf parses the "{userId}_" namespace prefix of an artifact name.
func ownerOf(name string) (int64, bool) {
	head, _, ok := strings.Cut(name, "_")
	if !ok {
		return 0, false
	}
	uid, err := strconv.ParseInt(head, 10, 64)
	return uid, err == nil
}
