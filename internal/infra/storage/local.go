package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// Local keeps artifacts as files in a single uploads directory.
type Local struct {
	dir     string
	once    sync.Once
	initErr error
}

func NewLocal(dir string) *Local {
	return &Local{dir: dir}
}

// Dir returns the uploads directory.
func (s *Local) Dir() string { return s.dir }

// ensureDir creates the uploads directory on first use.
func (s *Local) ensureDir() error {
	s.once.Do(func() {
		if err := os.MkdirAll(s.dir, 0o755); err != nil {
			s.initErr = fmt.Errorf("create upload dir %s: %w", s.dir, err)
		}
	})
	return s.initErr
}

// Put writes r to {dir}/{jobId}_{fileName}. The file is created exclusively,
// so two uploads can never write through the same path.
func (s *Local) Put(ctx context.Context, jobID, fileName string, r io.Reader) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := s.ensureDir(); err != nil {
		return "", err
	}
	path := filepath.Join(s.dir, ArtifactName(jobID, fileName))
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("failed to create artifact %s: %w", path, err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(path)
		return "", fmt.Errorf("failed to write artifact %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("failed to close artifact %s: %w", path, err)
	}
	return path, nil
}

func (s *Local) Open(_ context.Context, path string) (io.ReadCloser, error) {
	return os.Open(path)
}

func (s *Local) Remove(_ context.Context, path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// Check implements middleware.HealthChecker: the uploads dir must be writable.
func (s *Local) Check(_ context.Context) error {
	if err := s.ensureDir(); err != nil {
		return err
	}
	f, err := os.CreateTemp(s.dir, ".health-*")
	if err != nil {
		return fmt.Errorf("upload dir not writable: %w", err)
	}
	name := f.Name()
	f.Close()
	return os.Remove(name)
}
