package google

import (
	"context"
	"fmt"

	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"

	"github.com/roach88/classprep/internal/model"
)

// DriveScopes limit access to files this application created or opened.
var DriveScopes = []string{drive.DriveFileScope}

// Drive copies and deletes files.
type Drive struct {
	svc *drive.Service
}

// NewDrive creates a Drive client. Pass option.WithHTTPClient with an
// authorized client in production.
func NewDrive(ctx context.Context, opts ...option.ClientOption) (*Drive, error) {
	svc, err := drive.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create drive service: %w", err)
	}
	return &Drive{svc: svc}, nil
}

// CopyFile copies sourceFileID under a new name and returns the copy's id.
func (d *Drive) CopyFile(ctx context.Context, sourceFileID, name string) (string, error) {
	f, err := d.svc.Files.Copy(sourceFileID, &drive.File{Name: name}).
		Fields("id").
		SupportsAllDrives(true).
		Context(ctx).
		Do()
	if err != nil {
		return "", remoteError(model.ServiceDrive, "copy_file", sourceFileID, err)
	}
	if f.Id == "" {
		return "", remoteError(model.ServiceDrive, "copy_file", sourceFileID, fmt.Errorf("copy returned no file id"))
	}
	return f.Id, nil
}

// DeleteFile permanently deletes a file.
func (d *Drive) DeleteFile(ctx context.Context, fileID string) error {
	err := d.svc.Files.Delete(fileID).
		SupportsAllDrives(true).
		Context(ctx).
		Do()
	if err != nil {
		return remoteError(model.ServiceDrive, "delete_file", fileID, err)
	}
	return nil
}
