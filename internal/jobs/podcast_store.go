package jobs

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// AudioStore uploads synthesized podcast audio to object storage, the same
// S3-compatible client shape yanqian-ai-helloworld's R2Storage wraps.
type AudioStore struct {
	client *minio.Client
	bucket string
}

func NewAudioStore(endpoint, accessKey, secretKey, bucket, region string, useSSL bool) (*AudioStore, error) {
	client, err := minio.New(sanitizeEndpoint(endpoint), &minio.Options{
		Creds:        credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure:       useSSL,
		Region:       region,
		BucketLookup: minio.BucketLookupPath,
	})
	if err != nil {
		return nil, fmt.Errorf("jobs: init audio store client: %w", err)
	}
	return &AudioStore{client: client, bucket: bucket}, nil
}

func (s *AudioStore) ensureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err == nil && exists {
		return nil
	}
	err = s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{})
	if err != nil && minio.ToErrorResponse(err).Code != "BucketAlreadyOwnedByYou" {
		return fmt.Errorf("jobs: make bucket: %w", err)
	}
	return nil
}

// PutAudio uploads a synthesized podcast's audio bytes under key and
// returns the object key to record on the Podcast row.
func (s *AudioStore) PutAudio(ctx context.Context, key string, data []byte, mimeType string) (string, error) {
	if err := s.ensureBucket(ctx); err != nil {
		return "", err
	}
	_, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: mimeType,
	})
	if err != nil {
		return "", fmt.Errorf("jobs: upload audio: %w", err)
	}
	return key, nil
}

// presignedAudioTTL bounds how long a podcast download link stays valid.
const presignedAudioTTL = time.Hour

// PresignedGetURL returns a time-limited download link for a stored
// podcast's audio object, so the polling endpoint never has to proxy the
// bytes itself.
func (s *AudioStore) PresignedGetURL(ctx context.Context, key string) (string, error) {
	u, err := s.client.PresignedGetObject(ctx, s.bucket, key, presignedAudioTTL, url.Values{})
	if err != nil {
		return "", fmt.Errorf("jobs: presign audio url: %w", err)
	}
	return u.String(), nil
}

func sanitizeEndpoint(raw string) string {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(strings.TrimPrefix(raw, "https://"), "http://")
	if strings.Contains(raw, "/") {
		raw = strings.Split(raw, "/")[0]
	}
	return raw
}
