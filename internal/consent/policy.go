package consent

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"codeberg.org/vestilook/server/internal/logger"
	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

const sourceFile = "file"

var (
	ErrMissingFrontMatter = errors.New("consent policy is missing front matter")
	ErrMissingVersion     = errors.New("consent policy has no version")
)

var frontMatterDelim = []byte("---")

// parses a markdown policy with a yaml front matter block
func ParsePolicy(data []byte) (*Policy, error) {
	data = bytes.TrimLeft(data, "\ufeff\r\n\t ")
	if !bytes.HasPrefix(data, frontMatterDelim) {
		return nil, ErrMissingFrontMatter
	}

	rest := data[len(frontMatterDelim):]
	end := bytes.Index(rest, append([]byte("\n"), frontMatterDelim...))
	if end < 0 {
		return nil, ErrMissingFrontMatter
	}

	var fm frontMatter
	if err := yaml.Unmarshal(rest[:end], &fm); err != nil {
		return nil, fmt.Errorf("failed to parse front matter: %w", err)
	}

	if strings.TrimSpace(fm.Version) == "" {
		return nil, ErrMissingVersion
	}

	policy := &Policy{
		Version:   strings.TrimSpace(fm.Version),
		Title:     fm.Title,
		UpdatedAt: fm.UpdatedAt,
		Content:   strings.TrimSpace(string(rest[end+1+len(frontMatterDelim):])),
		Source:    sourceFile,
	}

	if fm.ExpiresAfter != "" {
		d, err := time.ParseDuration(fm.ExpiresAfter)
		if err != nil {
			return nil, fmt.Errorf("invalid expiresAfter: %w", err)
		}

		policy.ExpiresAfter = d
	}

	return policy, nil
}

// returns when an acceptance made at the given time lapses, if ever
func (p *Policy) ExpiryFor(acceptedAt time.Time) *time.Time {
	if p.ExpiresAfter <= 0 {
		return nil
	}

	t := acceptedAt.Add(p.ExpiresAfter)
	return &t
}

// loads the policy file once; call Watch to keep it current
func LoadPolicyStore(path, url string) (*PolicyStore, error) {
	s := &PolicyStore{path: path, url: url}

	if err := s.reload(); err != nil {
		return nil, err
	}

	return s, nil
}

// creates a store that always serves the given policy
func NewStaticPolicyStore(p *Policy) *PolicyStore {
	s := &PolicyStore{url: p.URL}
	s.current.Store(p)

	return s
}

// returns the active policy
func (s *PolicyStore) Current() *Policy {
	return s.current.Load()
}

// returns the version users must accept
func (s *PolicyStore) RequiredVersion() string {
	return s.Current().Version
}

func (s *PolicyStore) reload() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return fmt.Errorf("failed to read consent policy: %w", err)
	}

	policy, err := ParsePolicy(data)
	if err != nil {
		return err
	}

	policy.URL = s.url

	if policy.UpdatedAt.IsZero() {
		if info, err := os.Stat(s.path); err == nil {
			policy.UpdatedAt = info.ModTime().UTC()
		}
	}

	s.current.Store(policy)
	return nil
}

// watches the policy file and reloads it on change until ctx is done
func (s *PolicyStore) Watch(ctx context.Context) error {
	if s.path == "" {
		<-ctx.Done()
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create policy watcher: %w", err)
	}

	defer watcher.Close() //nolint:errcheck // best-effort cleanup

	// watch the directory so editors that replace the file are still seen
	if err := watcher.Add(filepath.Dir(s.path)); err != nil {
		return fmt.Errorf("failed to watch policy directory: %w", err)
	}

	s.watching.Store(true)
	defer s.watching.Store(false)

	name := filepath.Clean(s.path)

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}

			if filepath.Clean(ev.Name) != name {
				continue
			}

			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}

			prev := s.RequiredVersion()
			if err := s.reload(); err != nil {
				logger.ErrorErr(err, "failed to reload consent policy, keeping previous version",
					"path", s.path,
					"version", prev,
				)

				continue
			}

			logger.Info("consent policy reloaded",
				"path", s.path,
				"previous_version", prev,
				"version", s.RequiredVersion(),
			)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}

			logger.ErrorErr(err, "consent policy watcher error", "path", s.path)
		}
	}
}
