package garment

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
)

// TempPreviews writes previews to temporary files
type TempPreviews struct {
	Dir string
}

type tempPreview struct {
	path string
}

func (t TempPreviews) Create(f *File) (Preview, error) {
	ext := filepath.Ext(f.Name)
	if ext == "" {
		ext = ".img"
	}

	tmp, err := os.CreateTemp(t.Dir, "vestilook-preview-*"+ext)
	if err != nil {
		return nil, fmt.Errorf("failed to create preview file: %w", err)
	}

	if _, err := tmp.Write(f.Data); err != nil {
		tmp.Close()           //nolint:errcheck,gosec // best-effort cleanup
		os.Remove(tmp.Name()) //nolint:errcheck,gosec // best-effort cleanup
		return nil, fmt.Errorf("failed to write preview file: %w", err)
	}

	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name()) //nolint:errcheck,gosec // best-effort cleanup
		return nil, fmt.Errorf("failed to close preview file: %w", err)
	}

	return &tempPreview{path: tmp.Name()}, nil
}

func (p *tempPreview) URL() string {
	return (&url.URL{Scheme: "file", Path: filepath.ToSlash(p.path)}).String()
}

func (p *tempPreview) Release() error {
	if err := os.Remove(p.path); err != nil && !os.IsNotExist(err) {
		return err
	}

	return nil
}
