package storage

import (
	"context"
	"errors"
	"fmt"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/shineinfo/crm-backend/internal/domain"
	"github.com/shineinfo/crm-backend/internal/observability/metrics"
	"github.com/shineinfo/crm-backend/internal/reliability/circuitbreaker"
	"github.com/shineinfo/crm-backend/internal/reliability/retry"
	"github.com/shineinfo/crm-backend/pkg/config"
)

type s3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// S3Storage stores attachments in an S3-compatible bucket.
type S3Storage struct {
	api     s3API
	bucket  string
	baseURL string
	retry   *retry.Config
	breaker *circuitbreaker.CircuitBreaker
	logger  *zap.Logger
}

// NewS3Storage builds a client from the default AWS credential chain.
// A custom endpoint switches to path-style addressing for MinIO and friends.
func NewS3Storage(ctx context.Context, cfg config.StorageConfig, logger *zap.Logger) (*S3Storage, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("S3_BUCKET is required")
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return newS3Storage(client, cfg.Bucket, cfg.PublicBaseURL, logger), nil
}

func newS3Storage(api s3API, bucket, baseURL string, logger *zap.Logger) *S3Storage {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("component", "s3_storage"))
	breaker := circuitbreaker.New("s3", 5, 2, 30*time.Second)
	breaker.OnStateChange(func(name string, from, to circuitbreaker.State) {
		logger.Warn("circuit breaker state change",
			zap.String("breaker", name), zap.Stringer("from", from), zap.Stringer("to", to))
		metrics.ObserveBreakerTransition(name, to.String())
	})
	return &S3Storage{
		api:     api,
		bucket:  bucket,
		baseURL: strings.TrimRight(baseURL, "/"),
		retry:   retry.DefaultConfig(),
		breaker: breaker,
		logger:  logger,
	}
}

// Upload stores file under folder with a random key and returns its reference.
func (s *S3Storage) Upload(ctx context.Context, file domain.Upload, folder string) (*domain.Attachment, error) {
	start := time.Now()
	key := objectKey(folder, file.Filename)

	_, err := retry.Do(ctx, s.retry, s.logger, "s3.put_object", func(ctx context.Context) (struct{}, error) {
		err := s.breaker.Execute(func() error {
			body, err := file.Open()
			if err != nil {
				return err
			}
			defer body.Close()

			input := &s3.PutObjectInput{
				Bucket: aws.String(s.bucket),
				Key:    aws.String(key),
				Body:   body,
			}
			if file.ContentType != "" {
				input.ContentType = aws.String(file.ContentType)
			}
			if file.Size > 0 {
				input.ContentLength = aws.Int64(file.Size)
			}
			_, err = s.api.PutObject(ctx, input)
			return err
		})
		if errors.Is(err, circuitbreaker.ErrOpen) {
			return struct{}{}, retry.Permanent(err)
		}
		return struct{}{}, err
	})
	if err != nil {
		metrics.ObserveUpload(file.Field, "error", time.Since(start))
		return nil, fmt.Errorf("upload %s: %w", file.Filename, err)
	}

	metrics.ObserveUpload(file.Field, "success", time.Since(start))
	return &domain.Attachment{PublicID: key, URL: s.baseURL + "/" + key}, nil
}

// Delete removes the object. A missing key is treated as success.
func (s *S3Storage) Delete(ctx context.Context, publicID string) error {
	if publicID == "" {
		return nil
	}
	_, err := retry.Do(ctx, s.retry, s.logger, "s3.delete_object", func(ctx context.Context) (struct{}, error) {
		err := s.breaker.Execute(func() error {
			_, err := s.api.DeleteObject(ctx, &s3.DeleteObjectInput{
				Bucket: aws.String(s.bucket),
				Key:    aws.String(publicID),
			})
			if isNotFound(err) {
				return nil
			}
			return err
		})
		if errors.Is(err, circuitbreaker.ErrOpen) {
			return struct{}{}, retry.Permanent(err)
		}
		return struct{}{}, err
	})
	if err != nil {
		metrics.ObserveStorageDelete("error")
		return fmt.Errorf("delete %s: %w", publicID, err)
	}
	metrics.ObserveStorageDelete("success")
	return nil
}

func objectKey(folder, filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	name := uuid.NewString() + ext
	folder = strings.Trim(folder, "/")
	if folder == "" {
		return name
	}
	return path.Join(folder, name)
}

func isNotFound(err error) bool {
	if err == nil {
		return false
	}
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var apiErr smithy.APIError
	return errors.As(err, &apiErr) && (apiErr.ErrorCode() == "NoSuchKey" || apiErr.ErrorCode() == "NotFound")
}
