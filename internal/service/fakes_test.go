package service

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"

	"github.com/shineinfo/crm-backend/internal/domain"
)

type fakeStorage struct {
	mu         sync.Mutex
	seq        int
	uploads    []string
	deleted    []string
	failUpload map[string]bool
	failDelete map[string]bool
	// onUpload runs once before the next upload completes, outside the lock.
	onUpload func()
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{failUpload: map[string]bool{}, failDelete: map[string]bool{}}
}

func (f *fakeStorage) Upload(_ context.Context, file domain.Upload, folder string) (*domain.Attachment, error) {
	f.mu.Lock()
	hook := f.onUpload
	f.onUpload = nil
	f.mu.Unlock()
	if hook != nil {
		hook()
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failUpload[file.Filename] {
		return nil, errors.New("storage unavailable")
	}
	f.uploads = append(f.uploads, file.Filename)
	id := folder + "/" + file.Filename
	return &domain.Attachment{PublicID: id, URL: "https://cdn.example/" + id}, nil
}

func (f *fakeStorage) Delete(_ context.Context, publicID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, publicID)
	if f.failDelete[publicID] {
		return errors.New("delete failed")
	}
	return nil
}

func (f *fakeStorage) deletedIDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.deleted...)
}

func file(field, name string) domain.Upload {
	return domain.Upload{
		Field:    field,
		Filename: name,
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(strings.NewReader(name)), nil
		},
	}
}

func att(id string) *domain.Attachment {
	return &domain.Attachment{PublicID: id, URL: "https://cdn.example/" + id}
}
