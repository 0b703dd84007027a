// utils/r2.go
package utils

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"github.com/gosimple/slug"
)

// R2Config holds the Cloudflare R2 credentials for off-site backups.
type R2Config struct {
	AccountID       string
	AccessKeyID     string
	AccessKeySecret string
	Bucket          string
	Prefix          string
}

// Enabled reports whether enough is set to upload anything.
func (c R2Config) Enabled() bool {
	return c.AccountID != "" && c.AccessKeyID != "" && c.AccessKeySecret != "" && c.Bucket != ""
}

type objectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// R2Uploader stores state documents in an R2 bucket.
type R2Uploader struct {
	client objectPutter
	bucket string
	prefix string
	now    func() time.Time
}

func NewR2Uploader(ctx context.Context, cfg R2Config) (*R2Uploader, error) {
	if !cfg.Enabled() {
		return nil, errors.New("r2 backup is not configured")
	}

	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion("auto"),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID, cfg.AccessKeySecret, "",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load R2 config: %w", err)
	}

	endpoint := fmt.Sprintf("https://%s.r2.cloudflarestorage.com", cfg.AccountID)
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(endpoint)
	})
	return newR2Uploader(client, cfg.Bucket, cfg.Prefix), nil
}

func newR2Uploader(client objectPutter, bucket, prefix string) *R2Uploader {
	p := slug.Make(prefix)
	if p == "" {
		p = "invite-bot"
	}
	return &R2Uploader{client: client, bucket: bucket, prefix: p, now: time.Now}
}

// BackupKey names a backup object, e.g. "my-bot/backups/20260301T120000Z-<uuid>.json".
func (u *R2Uploader) BackupKey() string {
	return fmt.Sprintf("%s/backups/%s-%s.json", u.prefix, u.now().UTC().Format("20060102T150405Z"), uuid.NewString())
}

// UploadBackup writes doc under a fresh key and returns the key.
func (u *R2Uploader) UploadBackup(ctx context.Context, doc []byte) (string, error) {
	key := u.BackupKey()
	_, err := u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(u.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(doc),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload to R2: %w", err)
	}
	return key, nil
}
