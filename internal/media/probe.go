package media

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/tidwall/gjson"
	ffmpeg "github.com/u2takey/ffmpeg-go"

	"media-relay-bot/internal/logging"
)

// Info is what the lifecycle needs to know about a fetched file.
type Info struct {
	HasVideo bool
	HasAudio bool
	Duration float64
	Format   string
}

// ProbeFunc returns ffprobe's JSON report for a file.
type ProbeFunc func(path string, timeout time.Duration) (string, error)

func ffprobeJSON(path string, timeout time.Duration) (string, error) {
	return ffmpeg.ProbeWithTimeout(path, timeout, ffmpeg.KwArgs{})
}

type Prober struct {
	probe   ProbeFunc
	timeout time.Duration
	log     *logging.Logger
}

func NewProber(log *logging.Logger) *Prober {
	return &Prober{probe: ffprobeJSON, timeout: 30 * time.Second, log: log}
}

// WithProbeFunc swaps the ffprobe call, mostly for tests.
func (p *Prober) WithProbeFunc(fn ProbeFunc) *Prober {
	p.probe = fn
	return p
}

func (p *Prober) Probe(ctx context.Context, path string) (*Info, error) {
	timeout := p.timeout
	if dl, ok := ctx.Deadline(); ok {
		if left := time.Until(dl); left < timeout {
			timeout = left
		}
	}
	if timeout <= 0 {
		return nil, errors.Wrap(context.DeadlineExceeded, "ffprobe")
	}

	out, err := p.probe(path, timeout)
	if err != nil {
		return nil, errors.Wrap(err, "ffprobe")
	}
	info, err := ParseProbe(out)
	if err != nil {
		return nil, err
	}
	p.log.Infof("[FFPROBE] %s: video=%t audio=%t duration=%.1fs format=%s", path, info.HasVideo, info.HasAudio, info.Duration, info.Format)
	return info, nil
}

// ParseProbe reads ffprobe's -show_streams -show_format JSON. Embedded cover
// art is not counted as a video stream.
func ParseProbe(js string) (*Info, error) {
	if !gjson.Valid(js) {
		return nil, errors.New("ffprobe returned invalid json")
	}
	root := gjson.Parse(js)
	info := &Info{
		Duration: root.Get("format.duration").Float(),
		Format:   root.Get("format.format_name").String(),
	}
	root.Get("streams").ForEach(func(_, s gjson.Result) bool {
		switch s.Get("codec_type").String() {
		case "video":
			if s.Get("disposition.attached_pic").Int() == 0 {
				info.HasVideo = true
			}
		case "audio":
			info.HasAudio = true
		}
		return true
	})
	if info.Duration == 0 {
		root.Get("streams").ForEach(func(_, s gjson.Result) bool {
			if d := s.Get("duration").Float(); d > info.Duration {
				info.Duration = d
			}
			return true
		})
	}
	return info, nil
}
