package export

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinioUploader stores exports in an S3-compatible bucket and hands out
// presigned download links.
type MinioUploader struct {
	client *minio.Client
	bucket string
	expiry time.Duration
}

// NewMinioUploader connects to endpoint and makes sure bucket exists.
func NewMinioUploader(ctx context.Context, endpoint, accessKey, secretKey, bucket string, useSSL bool) (*MinioUploader, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("minio client: %w", err)
	}
	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket %s: %w", bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket %s: %w", bucket, err)
		}
	}
	return &MinioUploader{client: client, bucket: bucket, expiry: 24 * time.Hour}, nil
}

// Upload writes res under key and returns a presigned GET URL.
func (u *MinioUploader) Upload(ctx context.Context, key string, res *Result) (string, error) {
	_, err := u.client.PutObject(ctx, u.bucket, key, bytes.NewReader(res.Data), int64(len(res.Data)), minio.PutObjectOptions{
		ContentType: res.MimeType,
	})
	if err != nil {
		return "", fmt.Errorf("put object: %w", err)
	}
	params := url.Values{}
	params.Set("response-content-disposition", fmt.Sprintf("attachment; filename=%q", res.Filename))
	link, err := u.client.PresignedGetObject(ctx, u.bucket, key, u.expiry, params)
	if err != nil {
		return "", fmt.Errorf("presign object: %w", err)
	}
	return link.String(), nil
}
