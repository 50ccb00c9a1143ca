package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/ahmetcoskunkizilkaya/litterquest-backend/internal/config"
	"github.com/ahmetcoskunkizilkaya/litterquest-backend/internal/media"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/google/uuid"
)

const (
	refScheme = "s3://"
	keyPrefix = "pickups/"
)

// S3 stores images in an S3-compatible bucket (AWS, R2, MinIO).
// References have the form s3://<bucket>/<key>.
type S3 struct {
	client *s3.Client
	bucket string
}

func NewS3(cfg *config.Config) *S3 {
	client := s3.New(s3.Options{
		BaseEndpoint: aws.String(cfg.S3Endpoint),
		Credentials: credentials.NewStaticCredentialsProvider(
			cfg.S3AccessKeyID,
			cfg.S3SecretAccessKey,
			"",
		),
		Region:                     cfg.S3Region,
		UsePathStyle:               true,
		RequestChecksumCalculation: aws.RequestChecksumCalculationWhenRequired,
		ResponseChecksumValidation: aws.ResponseChecksumValidationWhenRequired,
	})
	return &S3{client: client, bucket: cfg.S3Bucket}
}

// NewFromConfig picks S3 when a bucket is configured, inline storage otherwise.
func NewFromConfig(cfg *config.Config) ImageStore {
	if cfg.S3Bucket == "" || cfg.S3Endpoint == "" {
		slog.Warn("S3 not configured, storing images inline")
		return Inline{}
	}
	return NewS3(cfg)
}

func (s *S3) Put(ctx context.Context, img media.Image) (string, error) {
	key := keyPrefix + uuid.New().String() + media.Extension(img.MIME)

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(img.Data),
		ContentType:   aws.String(img.MIME),
		ContentLength: aws.Int64(int64(len(img.Data))),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload image: %w", err)
	}
	return refScheme + s.bucket + "/" + key, nil
}

func (s *S3) Get(ctx context.Context, ref string) (media.Image, error) {
	// Rows written before object storage was enabled still carry data URIs.
	if strings.HasPrefix(ref, "data:") {
		return Inline{}.Get(ctx, ref)
	}

	bucket, key, err := parseRef(ref)
	if err != nil {
		return media.Image{}, err
	}

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return media.Image{}, ErrNotFound
		}
		return media.Image{}, fmt.Errorf("failed to fetch image: %w", err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(io.LimitReader(out.Body, media.MaxImageBytes+1))
	if err != nil {
		return media.Image{}, fmt.Errorf("failed to read image: %w", err)
	}
	if len(data) > media.MaxImageBytes {
		return media.Image{}, media.ErrImageTooLarge
	}

	mime := aws.ToString(out.ContentType)
	if !media.IsImageMIME(mime) {
		mime = "image/jpeg"
	}
	return media.Image{MIME: mime, Data: data}, nil
}

func (s *S3) Delete(ctx context.Context, ref string) error {
	if strings.HasPrefix(ref, "data:") {
		return nil
	}
	bucket, key, err := parseRef(ref)
	if err != nil {
		return err
	}

	_, err = s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete image: %w", err)
	}
	return nil
}

func parseRef(ref string) (bucket, key string, err error) {
	rest, ok := strings.CutPrefix(ref, refScheme)
	if !ok {
		return "", "", ErrInvalidRef
	}
	bucket, key, ok = strings.Cut(rest, "/")
	if !ok || bucket == "" || key == "" {
		return "", "", ErrInvalidRef
	}
	return bucket, key, nil
}
