package uploaders

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"github.com/tidwall/gjson"
)

const (
	GoFileAPI            = "https://api.gofile.io"
	GoFileUploadTemplate = "https://%s.gofile.io/contents/uploadfile"
)

// GoFile uploads to gofile.io. The upload server is asked for first, then
// the file is streamed as multipart without buffering it in memory.
type GoFile struct {
	apiBase        string
	uploadTemplate string
	token          string
	client         *http.Client
}

func NewGoFile(token string) *GoFile {
	return &GoFile{
		apiBase:        GoFileAPI,
		uploadTemplate: GoFileUploadTemplate,
		token:          token,
		client:         &http.Client{Timeout: 2 * time.Hour},
	}
}

// WithEndpoints points the uploader at another API base and upload URL
// template (a single %s receives the server name).
func (g *GoFile) WithEndpoints(apiBase, uploadTemplate string) *GoFile {
	g.apiBase = apiBase
	g.uploadTemplate = uploadTemplate
	return g
}

func (g *GoFile) Platform() string {
	return "gofile"
}

func (g *GoFile) Upload(ctx context.Context, req *UploadRequest) (*UploadResult, error) {
	server, err := g.server(ctx)
	if err != nil {
		return failed(g.Platform(), err), err
	}

	f, err := os.Open(req.Path)
	if err != nil {
		err = errors.Wrap(err, "open file")
		return failed(g.Platform(), err), err
	}
	defer f.Close()

	name := req.Name
	if name == "" {
		name = filepath.Base(req.Path)
	}

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		part, err := mw.CreateFormFile("file", name)
		if err == nil {
			_, err = io.Copy(part, f)
		}
		if err == nil {
			err = mw.Close()
		}
		pw.CloseWithError(err)
	}()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, fmt.Sprintf(g.uploadTemplate, server), pr)
	if err != nil {
		pr.CloseWithError(err)
		return failed(g.Platform(), err), err
	}
	httpReq.Header.Set("Content-Type", mw.FormDataContentType())
	if g.token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+g.token)
	}

	body, err := g.do(httpReq)
	pr.Close()
	if err != nil {
		err = errors.Wrap(err, "upload")
		return failed(g.Platform(), err), err
	}

	link := gjson.GetBytes(body, "data.downloadPage").String()
	if link == "" {
		err = errors.New("response has no download page")
		return failed(g.Platform(), err), err
	}
	return &UploadResult{
		Success:  true,
		Platform: g.Platform(),
		URL:      link,
		RemoteID: gjson.GetBytes(body, "data.id").String(),
		Server:   server,
	}, nil
}

func (g *GoFile) server(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.apiBase+"/servers", nil)
	if err != nil {
		return "", err
	}
	body, err := g.do(req)
	if err != nil {
		return "", errors.Wrap(err, "get server")
	}
	data := gjson.GetBytes(body, "data")
	name := data.Get("servers.0.name").String()
	if name == "" {
		name = data.Get("server").String()
	}
	if name == "" {
		return "", errors.New("no upload server available")
	}
	return name, nil
}

// do sends the request and accepts only 2xx replies whose status is "ok".
func (g *GoFile) do(req *http.Request) ([]byte, error) {
	resp, err := g.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, errors.Wrap(err, "read response")
	}
	if resp.StatusCode/100 != 2 {
		return nil, errors.Errorf("http %d: %s", resp.StatusCode, snippet(body))
	}
	if !gjson.ValidBytes(body) {
		return nil, errors.Errorf("invalid json: %s", snippet(body))
	}
	if status := gjson.GetBytes(body, "status").String(); status != "ok" {
		return nil, errors.Errorf("status %q: %s", status, snippet(body))
	}
	return body, nil
}

func snippet(b []byte) string {
	if len(b) > 200 {
		return string(b[:200]) + "..."
	}
	return string(b)
}
