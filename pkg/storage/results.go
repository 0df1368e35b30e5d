package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/sirupsen/logrus"
)

var ErrNoResult = errors.New("no result has been written yet")

// ResultStore keeps the latest annotated output under a fixed name in the
// results directory. Every save overwrites the previous file.
type ResultStore struct {
	dir  string
	name string
	mu   sync.RWMutex
	log  *logrus.Logger
}

func NewResultStore(dir string, name string, log *logrus.Logger) (*ResultStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create results directory: %w", err)
	}

	return &ResultStore{
		dir:  dir,
		name: name,
		log:  log,
	}, nil
}

func (s *ResultStore) Path() string {
	return filepath.Join(s.dir, s.name)
}

// Save replaces the output file with data. The write goes to a temporary
// file first so readers never see a partial image.
func (s *ResultStore) Save(data []byte) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tmp, err := os.CreateTemp(s.dir, s.name+".*.tmp")
	if err != nil {
		return "", fmt.Errorf("failed to create temp result: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return "", fmt.Errorf("failed to write result: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("failed to close result: %w", err)
	}

	path := s.Path()
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("failed to move result into place: %w", err)
	}

	if s.log != nil {
		s.log.WithFields(logrus.Fields{
			"path":  path,
			"bytes": len(data),
		}).Debug("Saved detection output")
	}

	return path, nil
}

func (s *ResultStore) Load() ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := os.ReadFile(s.Path())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNoResult
		}
		return nil, fmt.Errorf("failed to read result: %w", err)
	}

	return data, nil
}
