package uploaders

import (
	"context"
	"time"
)

// UploadResult is what a host reports for one artifact. RemoteID is the
// host's handle for the file (GoFile content id, Drive file id, S3 key).
type UploadResult struct {
	Success   bool      `json:"success"`
	Platform  string    `json:"platform"`
	URL       string    `json:"url,omitempty"`
	RemoteID  string    `json:"remote_id,omitempty"`
	Server    string    `json:"server,omitempty"`
	ExpiresAt time.Time `json:"expires_at,omitempty"`
	Error     string    `json:"error,omitempty"`
}

// UploadRequest describes one local artifact to publish.
type UploadRequest struct {
	Path        string
	Name        string // file name shown to the recipient
	ContentType string
	Size        int64
	UserID      int64
}

// Uploader is a file host that returns a shareable link.
type Uploader interface {
	Upload(ctx context.Context, req *UploadRequest) (*UploadResult, error)
	Platform() string
}

func failed(platform string, err error) *UploadResult {
	return &UploadResult{Success: false, Platform: platform, Error: err.Error()}
}
