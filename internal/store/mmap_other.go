//go:build !unix

package store

import (
	"io"
	"os"
)

// mapFile falls back to a plain read where mmap is unavailable.
func mapFile(f *os.File, size int64) ([]byte, func() error, error) {
	data, err := io.ReadAll(io.LimitReader(f, size))
	if err != nil {
		return nil, nil, err
	}
	return data, func() error { return nil }, nil
}
