// Package render fills document templates with placeholder values.
package render

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

var (
	// ErrTemplateNotFound is returned when the template file does not exist.
	ErrTemplateNotFound = errors.New("template not found")
	// ErrRender wraps failures while filling a template.
	ErrRender = errors.New("render failed")
	// ErrConvert wraps failures of the external document converter.
	ErrConvert = errors.New("conversion failed")
)

// TemplateStore reads template files from a directory and keeps them in memory
// until the file changes on disk.
type TemplateStore struct {
	dir   string
	mu    sync.RWMutex
	cache map[string]cachedTemplate
}

type cachedTemplate struct {
	modTime time.Time
	data    []byte
}

// NewTemplateStore constructs a store rooted at dir.
func NewTemplateStore(dir string) *TemplateStore {
	return &TemplateStore{dir: dir, cache: map[string]cachedTemplate{}}
}

// Load returns the bytes of the named template file.
func (s *TemplateStore) Load(name string) ([]byte, error) {
	if name == "" || strings.ContainsAny(name, `/\`) || strings.Contains(name, "..") {
		return nil, fmt.Errorf("%w: %q", ErrTemplateNotFound, name)
	}
	path := filepath.Join(s.dir, name)
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrTemplateNotFound, path)
		}
		return nil, fmt.Errorf("stat template %s: %w", path, err)
	}

	s.mu.RLock()
	cached, ok := s.cache[name]
	s.mu.RUnlock()
	if ok && cached.modTime.Equal(info.ModTime()) {
		return cached.data, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read template %s: %w", path, err)
	}
	s.mu.Lock()
	s.cache[name] = cachedTemplate{modTime: info.ModTime(), data: data}
	s.mu.Unlock()
	return data, nil
}
