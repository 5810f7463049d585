package storage

import (
	"context"
	"fmt"
	"io"
	"net/url"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Minio keeps artifacts as objects in one bucket, keyed {prefix}{jobId}_{fileName}.
type Minio struct {
	client     *minio.Client
	bucketName string
	region     string
	prefix     string
}

// NewMinio connects to MinIO and makes sure the bucket exists.
func NewMinio(ctx context.Context, endpoint, region, bucket, accessKey, secretKey, prefix string, useSSL bool) (*Minio, error) {
	cli, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
		Region: region,
	})
	if err != nil {
		return nil, err
	}

	exists, err := cli.BucketExists(ctx, bucket)
	if err != nil {
		return nil, err
	}
	if !exists {
		if err := cli.MakeBucket(ctx, bucket, minio.MakeBucketOptions{Region: region}); err != nil {
			return nil, err
		}
	}

	return &Minio{client: cli, bucketName: bucket, region: region, prefix: prefix}, nil
}

// Put uploads r and returns the object key, which is what Open expects back.
func (s *Minio) Put(ctx context.Context, jobID, fileName string, r io.Reader) (string, error) {
	key := s.prefix + ArtifactName(jobID, fileName)
	_, err := s.client.PutObject(ctx, s.bucketName, key, r, -1, minio.PutObjectOptions{
		ContentType: contentType(fileName),
		UserMetadata: map[string]string{
			"job-id":    jobID,
			"file-name": url.PathEscape(fileName),
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload artifact %s: %w", key, err)
	}
	return key, nil
}

func (s *Minio) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	obj, err := s.client.GetObject(ctx, s.bucketName, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, err
	}
	// GetObject is lazy; Stat surfaces a missing key now instead of on first Read
	if _, err := obj.Stat(); err != nil {
		obj.Close()
		return nil, fmt.Errorf("stat artifact %s: %w", key, err)
	}
	return obj, nil
}

func (s *Minio) Remove(ctx context.Context, key string) error {
	return s.client.RemoveObject(ctx, s.bucketName, key, minio.RemoveObjectOptions{})
}

// Check implements middleware.HealthChecker.
func (s *Minio) Check(ctx context.Context) error {
	ok, err := s.client.BucketExists(ctx, s.bucketName)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("bucket %s does not exist", s.bucketName)
	}
	return nil
}
