package platform

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"media-relay-bot/internal/model"
)

func TestDefault_Resolve(t *testing.T) {
	tbl := Default()

	yt := tbl.Resolve("https://www.youtube.com/watch?v=dQw4w9WgXcQ")
	assert.Equal(t, "youtube", yt.Name)
	assert.Equal(t, "bestaudio/best", yt.Selector(model.ChoiceAudio))
	assert.Contains(t, yt.Selector(model.ChoiceVideo), "bestvideo")

	tt := tbl.Resolve("https://vm.tiktok.com/ZM123/")
	assert.Equal(t, "tiktok", tt.Name)
	assert.Equal(t, "https://www.tiktok.com/", tt.Headers["Referer"])

	pin := tbl.Resolve("https://pin.it/abc")
	assert.Equal(t, model.ChoiceVideo, pin.AutoSelect)

	gen := tbl.Resolve("https://example.com/clip")
	assert.Equal(t, GenericName, gen.Name)
	assert.Equal(t, "mp4", gen.MergeContainer)
}

func TestTable_Allowed(t *testing.T) {
	tbl := Default()
	assert.True(t, tbl.Allowed("https://m.youtube.com/watch?v=x"))
	assert.True(t, tbl.Allowed("https://x.com/user/status/1"))
	assert.False(t, tbl.Allowed("https://notyoutube.com/watch"))
	assert.False(t, tbl.Allowed("https://example.com/clip"))
	assert.False(t, tbl.Allowed("not a url"))
}

func TestLoad_Override(t *testing.T) {
	path := filepath.Join(t.TempDir(), "platforms.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
profiles:
  - name: vimeo
    domains: [www.Vimeo.com]
    video_selector: "best[height<=720]"
`), 0o644))

	tbl, err := Load(path)
	require.NoError(t, err)

	p := tbl.Resolve("https://vimeo.com/1")
	assert.Equal(t, "vimeo", p.Name)
	assert.Equal(t, "best[height<=720]", p.VideoSelector)
	assert.Equal(t, "bestaudio/best", p.AudioSelector)

	assert.Equal(t, GenericName, tbl.Resolve("https://example.com").Name)
}

func TestParse_RejectsNamelessProfile(t *testing.T) {
	_, err := Parse([]byte("profiles:\n  - domains: [a.com]\n"))
	assert.Error(t, err)
}
