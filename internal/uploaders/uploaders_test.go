package uploaders

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"

	"media-relay-bot/internal/logging"
	"media-relay-bot/internal/model"
	"media-relay-bot/internal/s3"
)

type fakeUploader struct {
	name  string
	url   string
	err   error
	calls int
}

func (f *fakeUploader) Platform() string { return f.name }

func (f *fakeUploader) Upload(ctx context.Context, req *UploadRequest) (*UploadResult, error) {
	f.calls++
	if f.err != nil {
		return failed(f.name, f.err), f.err
	}
	return &UploadResult{Success: true, Platform: f.name, URL: f.url}, nil
}

func TestChain_FirstHostWins(t *testing.T) {
	a := &fakeUploader{name: "a", url: "https://a/1"}
	b := &fakeUploader{name: "b", url: "https://b/1"}
	c := NewChain(logging.Discard(), a, b)

	res, attempts, err := c.Upload(context.Background(), &UploadRequest{Name: "x.mp4"})
	require.NoError(t, err)
	assert.Equal(t, "https://a/1", res.URL)
	assert.Empty(t, attempts)
	assert.Equal(t, 0, b.calls)
}

func TestChain_FallsBackInOrder(t *testing.T) {
	a := &fakeUploader{name: "a", err: errors.New("http 503")}
	b := &fakeUploader{name: "b", url: "https://b/1"}
	c := NewChain(logging.Discard(), a, nil, b)

	assert.Equal(t, []string{"a", "b"}, c.Platforms())
	res, attempts, err := c.Upload(context.Background(), &UploadRequest{Name: "x.mp4"})
	require.NoError(t, err)
	assert.Equal(t, "b", res.Platform)
	require.Len(t, attempts, 1)
	assert.Equal(t, "a", attempts[0].Platform)
	assert.Equal(t, model.KindUploadFailure, model.KindOf(attempts[0].Err))
}

func TestChain_AllExhausted(t *testing.T) {
	a := &fakeUploader{name: "a", err: errors.New("boom")}
	b := &fakeUploader{name: "b", err: errors.New("bang")}
	c := NewChain(logging.Discard(), a, b)

	_, attempts, err := c.Upload(context.Background(), &UploadRequest{})
	assert.Equal(t, model.KindAllUploadsExhausted, model.KindOf(err))
	assert.Len(t, attempts, 2)
	assert.Equal(t, 1, a.calls)
	assert.Equal(t, 1, b.calls)

	_, _, err = NewChain(logging.Discard()).Upload(context.Background(), &UploadRequest{})
	assert.Equal(t, model.KindAllUploadsExhausted, model.KindOf(err))
}

func TestChain_SuccessWithoutLinkIsFailure(t *testing.T) {
	a := &fakeUploader{name: "a"}
	b := &fakeUploader{name: "b", url: "https://b/1"}
	res, attempts, err := NewChain(logging.Discard(), a, b).Upload(context.Background(), &UploadRequest{})
	require.NoError(t, err)
	assert.Equal(t, "b", res.Platform)
	assert.Len(t, attempts, 1)
}

func TestChain_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	a := &fakeUploader{name: "a", url: "https://a/1"}
	_, _, err := NewChain(logging.Discard(), a).Upload(ctx, &UploadRequest{})
	assert.Equal(t, model.KindCanceled, model.KindOf(err))
	assert.Equal(t, 0, a.calls)
}

func tempFile(t *testing.T, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "7_final.mp4")
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func TestGoFile_Upload(t *testing.T) {
	var gotFile, gotAuth string
	mux := http.NewServeMux()
	mux.HandleFunc("/servers", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"status":"ok","data":{"servers":[{"name":"store7","zone":"eu"}]}}`)
	})
	mux.HandleFunc("/store7/upload", func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		f, hdr, err := r.FormFile("file")
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		defer f.Close()
		b, _ := io.ReadAll(f)
		gotFile = hdr.Filename + ":" + string(b)
		_, _ = io.WriteString(w, `{"status":"ok","data":{"downloadPage":"https://gofile.io/d/AbC","id":"f1"}}`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	g := NewGoFile("tok").WithEndpoints(srv.URL, srv.URL+"/%s/upload")
	res, err := g.Upload(context.Background(), &UploadRequest{Path: tempFile(t, "payload"), Name: "clip.mp4"})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "https://gofile.io/d/AbC", res.URL)
	assert.Equal(t, "store7", res.Server)
	assert.Equal(t, "clip.mp4:payload", gotFile)
	assert.Equal(t, "Bearer tok", gotAuth)
}

func TestGoFile_Failures(t *testing.T) {
	tests := []struct {
		name    string
		servers string
		upload  string
		code    int
	}{
		{"no servers", `{"status":"ok","data":{"servers":[]}}`, "", 200},
		{"status not ok", `{"status":"ok","data":{"servers":[{"name":"s"}]}}`, `{"status":"error-rateLimit","data":{}}`, 200},
		{"http error", `{"status":"ok","data":{"servers":[{"name":"s"}]}}`, `{"status":"ok"}`, 500},
		{"no link", `{"status":"ok","data":{"servers":[{"name":"s"}]}}`, `{"status":"ok","data":{}}`, 200},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mux := http.NewServeMux()
			mux.HandleFunc("/servers", func(w http.ResponseWriter, r *http.Request) {
				_, _ = io.WriteString(w, tt.servers)
			})
			mux.HandleFunc("/s/upload", func(w http.ResponseWriter, r *http.Request) {
				_, _ = io.Copy(io.Discard, r.Body)
				w.WriteHeader(tt.code)
				_, _ = io.WriteString(w, tt.upload)
			})
			srv := httptest.NewServer(mux)
			defer srv.Close()

			res, err := NewGoFile("").WithEndpoints(srv.URL, srv.URL+"/%s/upload").
				Upload(context.Background(), &UploadRequest{Path: tempFile(t, "x")})
			assert.Error(t, err)
			require.NotNil(t, res)
			assert.False(t, res.Success)
		})
	}
}

type fakeS3 struct {
	mu       sync.Mutex
	uploaded map[string]string
	deleted  []string
	failSign bool
}

func (f *fakeS3) UploadFile(ctx context.Context, key, path, contentType string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.uploaded == nil {
		f.uploaded = map[string]string{}
	}
	f.uploaded[key] = path
	return nil
}

func (f *fakeS3) PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error) {
	if f.failSign {
		return "", errors.New("signer broken")
	}
	return "https://bucket.example/" + key + "?X-Amz-Expires=" + ttl.String(), nil
}

func (f *fakeS3) Delete(ctx context.Context, key string) error {
	f.deleted = append(f.deleted, key)
	return nil
}

func (f *fakeS3) List(ctx context.Context, prefix string) ([]s3.ObjectInfo, error) {
	return nil, nil
}

func TestS3_Upload(t *testing.T) {
	fs := &fakeS3{}
	u := NewS3(fs, "relay", time.Hour)

	res, err := u.Upload(context.Background(), &UploadRequest{Path: "/dl/1_final.mp4", Name: "clip.mp4"})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(res.URL, "https://bucket.example/relay/"))
	assert.True(t, strings.HasSuffix(res.RemoteID, "/clip.mp4"))
	assert.Len(t, fs.uploaded, 1)

	fs.failSign = true
	_, err = u.Upload(context.Background(), &UploadRequest{Path: "/dl/1_final.mp4", Name: "clip.mp4"})
	assert.Error(t, err)
	assert.Len(t, fs.deleted, 1)
}

func newTestDrive(t *testing.T, h http.HandlerFunc) *Drive {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	d, err := newDrive(context.Background(), "folder1",
		option.WithEndpoint(srv.URL+"/drive/v3/"),
		option.WithHTTPClient(srv.Client()),
		option.WithoutAuthentication(),
	)
	require.NoError(t, err)
	return d
}

func TestDrive_UploadAndShare(t *testing.T) {
	var mu sync.Mutex
	var calls []string
	d := newTestDrive(t, func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		calls = append(calls, r.Method+" "+r.URL.Path)
		mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		switch {
		case strings.HasSuffix(r.URL.Path, "/files") && r.Method == http.MethodPost:
			_, _ = io.WriteString(w, `{"id":"f1","webViewLink":"https://drive.google.com/file/d/f1/view"}`)
		case strings.HasSuffix(r.URL.Path, "/files/f1/permissions"):
			_, _ = io.WriteString(w, `{"id":"anyoneWithLink","type":"anyone","role":"reader"}`)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})

	res, err := d.Upload(context.Background(), &UploadRequest{Path: tempFile(t, "clip.mp4"), Name: "media_1.mp4", ContentType: "video/mp4"})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "https://drive.google.com/file/d/f1/view", res.URL)
	assert.Equal(t, "f1", res.RemoteID)
	require.Len(t, calls, 2)
	assert.Contains(t, calls[0], "/upload/drive/v3/files")
}

func TestDrive_ShareFailureDeletesFile(t *testing.T) {
	var deleted bool
	d := newTestDrive(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.Method == http.MethodDelete && strings.HasSuffix(r.URL.Path, "/files/f1"):
			deleted = true
			w.WriteHeader(http.StatusNoContent)
		case strings.HasSuffix(r.URL.Path, "/permissions"):
			w.WriteHeader(http.StatusForbidden)
			_, _ = io.WriteString(w, `{"error":{"code":403,"message":"sharing disabled"}}`)
		case strings.HasSuffix(r.URL.Path, "/files"):
			_, _ = io.WriteString(w, `{"id":"f1","webViewLink":"https://drive.google.com/file/d/f1/view"}`)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})

	res, err := d.Upload(context.Background(), &UploadRequest{Path: tempFile(t, "clip.mp4")})
	require.Error(t, err)
	assert.False(t, res.Success)
	assert.True(t, deleted)
}

func TestNewDrive_RejectsBadCredentials(t *testing.T) {
	_, err := NewDrive(context.Background(), []byte("not json"), "")
	assert.Error(t, err)
}
