package storage

import (
	"context"
	"errors"
	"io"
	"os"
)

// Disk writes files straight to the local filesystem.
type Disk struct {
	perm os.FileMode
}

func NewDisk() *Disk {
	return &Disk{perm: 0644}
}

// Create opens name for writing, truncating an existing file. The parent
// directory must exist.
func (d *Disk) Create(ctx context.Context, name string) (io.WriteCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(name, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, d.perm)
	if err != nil {
		return nil, err
	}
	return &syncFile{File: f}, nil
}

func (d *Disk) Close() error { return nil }

type syncFile struct {
	*os.File
}

// Close flushes the file to stable storage before closing it.
func (f *syncFile) Close() error {
	return errors.Join(f.File.Sync(), f.File.Close())
}
