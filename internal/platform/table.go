package platform

import (
	_ "embed"
	"net/url"
	"os"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"media-relay-bot/internal/model"
)

//go:embed platforms.yaml
var defaultTable []byte

const GenericName = "generic"

// Profile holds everything the fetcher needs to know about a platform.
type Profile struct {
	Name           string            `yaml:"name"`
	Domains        []string          `yaml:"domains"`
	VideoSelector  string            `yaml:"video_selector"`
	AudioSelector  string            `yaml:"audio_selector"`
	MergeContainer string            `yaml:"merge_container"`
	Headers        map[string]string `yaml:"headers"`
	AutoSelect     model.Choice      `yaml:"auto_select"`
}

// Selector returns the format selector for the requested choice.
func (p Profile) Selector(choice model.Choice) string {
	if choice == model.ChoiceAudio {
		return p.AudioSelector
	}
	return p.VideoSelector
}

type Table struct {
	Profiles []Profile `yaml:"profiles"`
	generic  Profile
}

// Default returns the table compiled into the binary.
func Default() *Table {
	t, err := Parse(defaultTable)
	if err != nil {
		panic(err)
	}
	return t
}

// Load reads a table from path, or returns Default when path is empty.
func Load(path string) (*Table, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read platforms file")
	}
	return Parse(data)
}

func Parse(data []byte) (*Table, error) {
	var t Table
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, errors.Wrap(err, "parse platforms")
	}
	found := false
	for i := range t.Profiles {
		p := &t.Profiles[i]
		if p.Name == "" {
			return nil, errors.Errorf("profile %d has no name", i)
		}
		if p.VideoSelector == "" {
			p.VideoSelector = "bestvideo+bestaudio/best"
		}
		if p.AudioSelector == "" {
			p.AudioSelector = "bestaudio/best"
		}
		if p.MergeContainer == "" {
			p.MergeContainer = "mp4"
		}
		for j, d := range p.Domains {
			p.Domains[j] = strings.ToLower(strings.TrimPrefix(d, "www."))
		}
		if p.Name == GenericName {
			t.generic = *p
			found = true
		}
	}
	if !found {
		t.generic = Profile{
			Name:           GenericName,
			VideoSelector:  "bestvideo+bestaudio/best",
			AudioSelector:  "bestaudio/best",
			MergeContainer: "mp4",
		}
	}
	return &t, nil
}

// Resolve returns the profile for rawURL, falling back to the generic one.
func (t *Table) Resolve(rawURL string) Profile {
	if p, ok := t.lookup(rawURL); ok {
		return p
	}
	return t.generic
}

// Allowed reports whether rawURL belongs to a known platform.
func (t *Table) Allowed(rawURL string) bool {
	_, ok := t.lookup(rawURL)
	return ok
}

func (t *Table) lookup(rawURL string) (Profile, bool) {
	host := hostOf(rawURL)
	if host == "" {
		return Profile{}, false
	}
	for _, p := range t.Profiles {
		for _, d := range p.Domains {
			if host == d || strings.HasSuffix(host, "."+d) {
				return p, true
			}
		}
	}
	return Profile{}, false
}

func hostOf(rawURL string) string {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || u.Host == "" {
		return ""
	}
	return strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
}
