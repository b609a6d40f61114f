package uploaders

import (
	"context"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"
)

// Drive uploads into a Google Drive folder with a service account and makes
// the file readable by anyone with the link.
type Drive struct {
	svc      *drive.Service
	folderID string
}

// NewDrive takes the service-account key as a JSON blob, the way it is
// stored in GDRIVE_CREDENTIALS.
func NewDrive(ctx context.Context, credentialsJSON []byte, folderID string) (*Drive, error) {
	creds, err := google.CredentialsFromJSON(ctx, credentialsJSON, drive.DriveFileScope)
	if err != nil {
		return nil, errors.Wrap(err, "parse drive credentials")
	}
	return newDrive(ctx, folderID, option.WithCredentials(creds))
}

func newDrive(ctx context.Context, folderID string, opts ...option.ClientOption) (*Drive, error) {
	svc, err := drive.NewService(ctx, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "create drive service")
	}
	return &Drive{svc: svc, folderID: folderID}, nil
}

func (d *Drive) Platform() string {
	return "gdrive"
}

func (d *Drive) Upload(ctx context.Context, req *UploadRequest) (*UploadResult, error) {
	f, err := os.Open(req.Path)
	if err != nil {
		err = errors.Wrap(err, "open file")
		return failed(d.Platform(), err), err
	}
	defer f.Close()

	meta := &drive.File{Name: req.Name, MimeType: req.ContentType}
	if meta.Name == "" {
		meta.Name = filepath.Base(req.Path)
	}
	if d.folderID != "" {
		meta.Parents = []string{d.folderID}
	}

	created, err := d.svc.Files.Create(meta).
		Media(f).
		Fields("id", "webViewLink").
		SupportsAllDrives(true).
		Context(ctx).
		Do()
	if err != nil {
		err = errors.Wrap(err, "create file")
		return failed(d.Platform(), err), err
	}

	_, err = d.svc.Permissions.Create(created.Id, &drive.Permission{Type: "anyone", Role: "reader"}).
		SupportsAllDrives(true).
		Context(ctx).
		Do()
	if err != nil {
		// Unshared files are removed.
		_ = d.svc.Files.Delete(created.Id).SupportsAllDrives(true).Context(ctx).Do()
		err = errors.Wrap(err, "share file")
		return failed(d.Platform(), err), err
	}

	return &UploadResult{
		Success:  true,
		Platform: d.Platform(),
		URL:      created.WebViewLink,
		RemoteID: created.Id,
	}, nil
}
