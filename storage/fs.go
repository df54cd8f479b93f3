package storage

import (
	"context"
	"io"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
)

// FS writes into a billy filesystem.
type FS struct {
	fs billy.Filesystem
}

func NewFS(fs billy.Filesystem) *FS {
	return &FS{fs: fs}
}

// NewMemory returns an FS backed by memory. Files are lost on exit.
func NewMemory() *FS {
	return NewFS(memfs.New())
}

func (s *FS) Create(ctx context.Context, name string) (io.WriteCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.fs.Create(name)
}

// Filesystem exposes the underlying filesystem, mostly so stored files can be read back.
func (s *FS) Filesystem() billy.Filesystem {
	return s.fs
}

func (s *FS) Close() error { return nil }
