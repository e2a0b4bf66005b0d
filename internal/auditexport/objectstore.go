package auditexport

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/minio/minio-go/v7"
)

// ObjectArchiver uploads a finished NDJSON archive to the exports bucket.
type ObjectArchiver struct {
	client *minio.Client
	bucket string
	now    func() time.Time
}

func NewObjectArchiver(client *minio.Client, bucket string) (*ObjectArchiver, error) {
	if client == nil {
		return nil, fmt.Errorf("object store client is required")
	}
	if bucket == "" {
		return nil, fmt.Errorf("exports bucket is required")
	}
	return &ObjectArchiver{client: client, bucket: bucket, now: time.Now}, nil
}

// Archive writes the blob under a timestamped key and returns that key.
func (a *ObjectArchiver) Archive(ctx context.Context, blob []byte) (string, error) {
	if a == nil || a.client == nil {
		return "", fmt.Errorf("object archiver not initialized")
	}
	key := fmt.Sprintf("audit-export-%s.ndjson", a.now().UTC().Format("20060102T150405Z"))
	_, err := a.client.PutObject(
		ctx,
		a.bucket,
		key,
		bytes.NewReader(blob),
		int64(len(blob)),
		minio.PutObjectOptions{ContentType: "application/x-ndjson"},
	)
	if err != nil {
		return "", fmt.Errorf("upload export: %w", err)
	}
	return key, nil
}
