package storage

import (
	"context"
	"fmt"
	"io"

	gcs "cloud.google.com/go/storage"
	"github.com/rs/zerolog/log"
)

// GCS writes objects with the native Cloud Storage client.
type GCS struct {
	client *gcs.Client
	bucket *gcs.BucketHandle
}

func NewGCS(ctx context.Context, bucket string) (*GCS, error) {
	if bucket == "" {
		return nil, fmt.Errorf("gcs bucket name is empty")
	}
	client, err := gcs.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("error creating storage client: %w", err)
	}
	log.Debug().Str("bucket", bucket).Msg("gcs storage client created")
	return &GCS{
		client: client,
		bucket: client.Bucket(bucket),
	}, nil
}

// Create returns an object writer. Cancelling ctx before Close aborts the upload.
func (g *GCS) Create(ctx context.Context, name string) (io.WriteCloser, error) {
	return g.bucket.Object(objectKey(name)).NewWriter(ctx), nil
}

func (g *GCS) Close() error {
	return g.client.Close()
}
