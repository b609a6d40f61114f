package uploaders

import (
	"context"
	"path"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"media-relay-bot/internal/s3"
)

// S3 parks the file in a bucket and hands out a presigned GET link.
type S3 struct {
	client s3.Client
	prefix string
	ttl    time.Duration
}

func NewS3(client s3.Client, prefix string, ttl time.Duration) *S3 {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &S3{client: client, prefix: prefix, ttl: ttl}
}

func (u *S3) Platform() string {
	return "s3"
}

// Key places every upload under its own random directory so names never
// collide.
func (u *S3) Key(name string) string {
	return path.Join(u.prefix, uuid.NewString(), name)
}

func (u *S3) Upload(ctx context.Context, req *UploadRequest) (*UploadResult, error) {
	name := req.Name
	if name == "" {
		name = filepath.Base(req.Path)
	}
	key := u.Key(name)

	if err := u.client.UploadFile(ctx, key, req.Path, req.ContentType); err != nil {
		return failed(u.Platform(), err), err
	}
	link, err := u.client.PresignGet(ctx, key, u.ttl)
	if err != nil {
		_ = u.client.Delete(ctx, key)
		err = errors.Wrap(err, "presign")
		return failed(u.Platform(), err), err
	}
	return &UploadResult{
		Success:   true,
		Platform:  u.Platform(),
		URL:       link,
		RemoteID:  key,
		ExpiresAt: time.Now().Add(u.ttl),
	}, nil
}
