package storage

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shineinfo/crm-backend/internal/domain"
	"github.com/shineinfo/crm-backend/internal/reliability/retry"
)

type fakeS3 struct {
	mu        sync.Mutex
	puts      map[string]string
	deletes   []string
	putErrs   []error
	deleteErr error
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.putErrs) > 0 {
		err := f.putErrs[0]
		f.putErrs = f.putErrs[1:]
		return nil, err
	}
	body, _ := io.ReadAll(in.Body)
	if f.puts == nil {
		f.puts = map[string]string{}
	}
	f.puts[aws.ToString(in.Key)] = string(body)
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletes = append(f.deletes, aws.ToString(in.Key))
	if f.deleteErr != nil {
		return nil, f.deleteErr
	}
	return &s3.DeleteObjectOutput{}, nil
}

func upload(field, name, body string) domain.Upload {
	return domain.Upload{
		Field:    field,
		Filename: name,
		Size:     int64(len(body)),
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(strings.NewReader(body)), nil
		},
	}
}

func newTestStorage(api s3API) *S3Storage {
	s := newS3Storage(api, "crm-files", "https://cdn.example/", nil)
	s.retry = &retry.Config{MaxAttempts: 3, InitialBackoff: time.Millisecond, MaxBackoff: time.Millisecond, BackoffMultiplier: 1}
	return s
}

func TestUploadStoresUnderFolder(t *testing.T) {
	api := &fakeS3{}
	s := newTestStorage(api)

	att, err := s.Upload(context.Background(), upload("resume", "CV.PDF", "pdf-bytes"), "employees")
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(att.PublicID, "employees/"))
	assert.True(t, strings.HasSuffix(att.PublicID, ".pdf"))
	assert.Equal(t, "https://cdn.example/"+att.PublicID, att.URL)
	assert.Equal(t, "pdf-bytes", api.puts[att.PublicID])
}

func TestUploadRetriesTransientFailure(t *testing.T) {
	api := &fakeS3{putErrs: []error{errors.New("timeout")}}
	s := newTestStorage(api)

	att, err := s.Upload(context.Background(), upload("profile_image", "me.png", "png"), "employees")
	require.NoError(t, err)
	assert.Equal(t, "png", api.puts[att.PublicID])
}

func TestUploadFailsAfterRetries(t *testing.T) {
	boom := errors.New("denied")
	api := &fakeS3{putErrs: []error{boom, boom, boom}}
	s := newTestStorage(api)

	_, err := s.Upload(context.Background(), upload("resume", "a.pdf", "x"), "employees")
	assert.ErrorIs(t, err, boom)
}

func TestDeleteTreatsMissingKeyAsSuccess(t *testing.T) {
	api := &fakeS3{deleteErr: &types.NoSuchKey{}}
	s := newTestStorage(api)

	require.NoError(t, s.Delete(context.Background(), "employees/gone.pdf"))
	assert.Equal(t, []string{"employees/gone.pdf"}, api.deletes)
}

func TestDeleteEmptyIDIsNoop(t *testing.T) {
	api := &fakeS3{}
	s := newTestStorage(api)

	require.NoError(t, s.Delete(context.Background(), ""))
	assert.Empty(t, api.deletes)
}

func TestObjectKey(t *testing.T) {
	assert.Regexp(t, `^[0-9a-f-]{36}\.jpg$`, objectKey("", "photo.JPG"))
	assert.Regexp(t, `^a/b/[0-9a-f-]{36}$`, objectKey("/a/b/", "noext"))
}
