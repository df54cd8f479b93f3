package storage

import (
	"context"
	"fmt"
	"io"
	"strings"

	"gocloud.dev/blob"

	_ "gocloud.dev/blob/fileblob"
	_ "gocloud.dev/blob/gcsblob"
	_ "gocloud.dev/blob/memblob"
	_ "gocloud.dev/blob/s3blob"
)

// Bucket writes objects through the Go CDK, so any of its drivers can hold uploads.
type Bucket struct {
	bucket *blob.Bucket
}

// OpenBucket opens a bucket URL: file://, mem://, gs:// or s3://.
func OpenBucket(ctx context.Context, url string) (*Bucket, error) {
	if url == "" {
		return nil, fmt.Errorf("bucket url is empty")
	}
	b, err := blob.OpenBucket(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to open bucket: %w", err)
	}
	return NewBucket(b), nil
}

func NewBucket(b *blob.Bucket) *Bucket {
	return &Bucket{bucket: b}
}

// Create starts a new object. Nothing is visible in the bucket until Close
// succeeds; if ctx is cancelled first the object is discarded.
func (b *Bucket) Create(ctx context.Context, name string) (io.WriteCloser, error) {
	return b.bucket.NewWriter(ctx, objectKey(name), nil)
}

func (b *Bucket) Bucket() *blob.Bucket {
	return b.bucket
}

func (b *Bucket) Close() error {
	return b.bucket.Close()
}

func objectKey(name string) string {
	return strings.TrimPrefix(name, "/")
}
