package s3

import (
	"context"
	"os"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/pkg/errors"

	"media-relay-bot/internal"
)

// Client is the slice of S3 the relay needs: park a large artifact, hand
// out a temporary link, and prune old uploads.
type Client interface {
	UploadFile(ctx context.Context, key, path, contentType string) error
	PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error)
	Delete(ctx context.Context, key string) error
	List(ctx context.Context, prefix string) ([]ObjectInfo, error)
}

type ObjectInfo struct {
	Key          string
	Size         int64
	LastModified time.Time
}

type s3Client struct {
	bucket  string
	api     *awss3.Client
	upl     *manager.Uploader
	presign *awss3.PresignClient
}

func New(cfg internal.Config) (Client, error) {
	if cfg.S3Bucket == "" {
		return nil, errors.New("S3_BUCKET is empty")
	}
	endpoint := cfg.S3Endpoint
	forcePathStyle := true
	if endpoint == "" || strings.Contains(endpoint, "amazonaws.com") {
		forcePathStyle = false
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(),
		awsconfig.WithRegion(cfg.S3Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.S3AccessKey, cfg.S3SecretKey, "")),
	)
	if err != nil {
		return nil, errors.Wrap(err, "load aws config")
	}

	client := awss3.NewFromConfig(awsCfg, func(o *awss3.Options) {
		o.UsePathStyle = forcePathStyle
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	})

	return &s3Client{
		bucket: cfg.S3Bucket,
		api:    client,
		upl: manager.NewUploader(client, func(u *manager.Uploader) {
			u.PartSize = 64 * 1024 * 1024
			u.Concurrency = 4
		}),
		presign: awss3.NewPresignClient(client),
	}, nil
}

// UploadFile streams a local file through the multipart uploader.
func (c *s3Client) UploadFile(ctx context.Context, key, path, contentType string) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrap(err, "open upload source")
	}
	defer f.Close()

	in := &awss3.PutObjectInput{Bucket: aws.String(c.bucket), Key: aws.String(key), Body: f}
	if contentType != "" {
		in.ContentType = aws.String(contentType)
	}
	if _, err := c.upl.Upload(ctx, in); err != nil {
		return errors.Wrapf(err, "upload %s", key)
	}
	return nil
}

func (c *s3Client) PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error) {
	req, err := c.presign.PresignGetObject(ctx, &awss3.GetObjectInput{Bucket: &c.bucket, Key: &key}, awss3.WithPresignExpires(ttl))
	if err != nil {
		return "", errors.Wrapf(err, "presign %s", key)
	}
	return req.URL, nil
}

func (c *s3Client) Delete(ctx context.Context, key string) error {
	_, err := c.api.DeleteObject(ctx, &awss3.DeleteObjectInput{Bucket: &c.bucket, Key: &key})
	return err
}

func (c *s3Client) List(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	var out []ObjectInfo
	p := awss3.NewListObjectsV2Paginator(c.api, &awss3.ListObjectsV2Input{Bucket: &c.bucket, Prefix: &prefix})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, obj := range page.Contents {
			out = append(out, ObjectInfo{
				Key:          aws.ToString(obj.Key),
				Size:         aws.ToInt64(obj.Size),
				LastModified: aws.ToTime(obj.LastModified),
			})
		}
	}
	return out, nil
}
