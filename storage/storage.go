// Package storage provides the sinks uploaded files are written into.
package storage

import (
	"context"
	"fmt"
	"io"
)

const (
	DriverDisk   = "disk"
	DriverMemory = "memory"
	DriverBlob   = "blob"
	DriverGCS    = "gcs"
)

// Factory creates a writable sink for name. Writes block while the sink is
// busy, which is what slows the upload down. Close must flush: the data is
// only durable once Close returned nil. Cancelling ctx before Close aborts
// the write where the backend supports it.
type Factory interface {
	Create(ctx context.Context, name string) (io.WriteCloser, error)
}

// Backend is a Factory that holds resources until closed.
type Backend interface {
	Factory
	io.Closer
}

type Options struct {
	Driver string
	// BucketURL is a gocloud.dev URL such as file:///data, mem://, gs://bucket or s3://bucket.
	BucketURL string
	// Bucket is the GCS bucket name used by the gcs driver.
	Bucket string
}

// Open returns the backend selected by opts.Driver.
func Open(ctx context.Context, opts Options) (Backend, error) {
	switch opts.Driver {
	case "", DriverDisk:
		return NewDisk(), nil
	case DriverMemory:
		return NewMemory(), nil
	case DriverBlob:
		return OpenBucket(ctx, opts.BucketURL)
	case DriverGCS:
		return NewGCS(ctx, opts.Bucket)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", opts.Driver)
	}
}
