package source

import (
	"context"
	"fmt"
	"io"
	"os"
)

// File reads the dataset from the local filesystem.
type File struct {
	path string
}

func NewFile(path string) *File {
	return &File{path: path}
}

func (f *File) Open(_ context.Context) (io.ReadCloser, error) {
	fh, err := os.Open(f.path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", f.path, err)
	}
	return fh, nil
}

func (f *File) String() string { return f.path }
