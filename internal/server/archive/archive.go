// Package archive keeps sealed copies of raw enrollment uploads in
// S3-compatible object storage so that templates can be re-derived when an
// extraction backend changes.
package archive

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/dmitrijs2005/biokeeper/internal/biometric"
	"github.com/google/uuid"
)

// Archive stores one upload and returns its object key.
type Archive interface {
	Store(ctx context.Context, userID int64, modality biometric.Modality, data []byte) (string, error)
}

// Sealer encrypts media before it leaves the process.
type Sealer interface {
	SealBytes(plaintext []byte) ([]byte, error)
}

// Noop discards uploads. It is used when archiving is disabled.
type Noop struct{}

func (Noop) Store(context.Context, int64, biometric.Modality, []byte) (string, error) {
	return "", nil
}

var (
	loadDefaultAWSConfig = config.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}

	putObject = func(c *s3.Client, ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
		return c.PutObject(ctx, in, optFns...)
	}

	now = time.Now
)

// S3Config mirrors the S3 fields of the server configuration.
type S3Config struct {
	User         string
	Password     string
	Bucket       string
	Region       string
	BaseEndpoint string
}

// S3Archive writes sealed uploads to a bucket.
type S3Archive struct {
	cfg    S3Config
	sealer Sealer

	once    sync.Once
	client  *s3.Client
	initErr error
}

func NewS3Archive(cfg S3Config, sealer Sealer) *S3Archive {
	return &S3Archive{cfg: cfg, sealer: sealer}
}

func (a *S3Archive) getClient(ctx context.Context) (*s3.Client, error) {
	a.once.Do(func() {
		cfg, err := loadDefaultAWSConfig(ctx,
			config.WithRegion(a.cfg.Region),
			config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
				a.cfg.User,
				a.cfg.Password,
				"",
			)))
		if err != nil {
			a.initErr = err
			return
		}
		a.client = newS3ClientFromConfig(cfg, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(a.cfg.BaseEndpoint)
			o.UsePathStyle = true
		})
	})
	return a.client, a.initErr
}

// ObjectKey builds the storage key of a new upload.
func ObjectKey(userID int64, modality biometric.Modality) string {
	d := now().UTC()
	return fmt.Sprintf("%s/%d/%d/%02d/%02d/%v", modality, userID, d.Year(), d.Month(), d.Day(), uuid.New())
}

func (a *S3Archive) Store(ctx context.Context, userID int64, modality biometric.Modality, data []byte) (string, error) {
	client, err := a.getClient(ctx)
	if err != nil {
		return "", fmt.Errorf("s3 client: %w", err)
	}

	sealed, err := a.sealer.SealBytes(data)
	if err != nil {
		return "", fmt.Errorf("seal media: %w", err)
	}

	key := ObjectKey(userID, modality)
	bucket := a.cfg.Bucket
	_, err = putObject(client, ctx, &s3.PutObjectInput{
		Bucket:      &bucket,
		Key:         &key,
		Body:        bytes.NewReader(sealed),
		ContentType: aws.String("application/octet-stream"),
	})
	if err != nil {
		return "", fmt.Errorf("put object: %w", err)
	}

	return key, nil
}
