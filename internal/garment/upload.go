package garment

import (
	"fmt"
	"io"
	"mime/multipart"
)

// reads a multipart upload into a File. at most limit+1 bytes are read so
// oversized uploads still fail the size check instead of being buffered
// whole. a nil header yields a nil file.
func FromMultipart(fh *multipart.FileHeader, limit int64) (*File, error) {
	if fh == nil {
		return nil, nil
	}

	src, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open upload: %w", err)
	}
	defer src.Close() //nolint:errcheck,gosec // best-effort cleanup

	reader := io.Reader(src)
	if limit > 0 {
		reader = io.LimitReader(src, limit+1)
	}

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read upload: %w", err)
	}

	return &File{
		Name:        fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Data:        data,
	}, nil
}
