package domain

import (
	"context"
	"io"
)

// Upload is one received file. Open may be called more than once so callers can retry.
type Upload struct {
	Field       string
	Filename    string
	ContentType string
	Size        int64
	Open        func() (io.ReadCloser, error)
}

// ObjectStorage stores binary attachments.
type ObjectStorage interface {
	Upload(ctx context.Context, file Upload, folder string) (*Attachment, error)
	// Delete is idempotent: a missing object is not an error.
	Delete(ctx context.Context, publicID string) error
}
