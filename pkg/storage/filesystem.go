package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// ErrOutsideBase is returned when a relative path escapes the base directory.
var ErrOutsideBase = errors.New("path escapes storage directory")

// LocalStorage persists files on disk under a base directory.
type LocalStorage struct {
	baseDir string
}

// NewLocalStorage ensures the base directory exists and returns a handle.
func NewLocalStorage(baseDir string) (*LocalStorage, error) {
	if baseDir == "" {
		return nil, fmt.Errorf("storage directory required")
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("create storage directory: %w", err)
	}
	return &LocalStorage{baseDir: baseDir}, nil
}

// SaveUnique writes data under "<stem>_<uuid>.<ext>" and returns the relative
// name. The random suffix keeps concurrent renders from colliding.
func (s *LocalStorage) SaveUnique(stem, ext string, data []byte) (string, error) {
	name := fmt.Sprintf("%s_%s.%s", SanitizeFilename(stem), uuid.NewString(), strings.TrimPrefix(ext, "."))
	path, err := s.resolve(name)
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write output file: %w", err)
	}
	return name, nil
}

// Open returns a read-only handle for the stored file.
func (s *LocalStorage) Open(name string) (*os.File, error) {
	path, err := s.resolve(name)
	if err != nil {
		return nil, err
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", name, err)
	}
	return file, nil
}

func (s *LocalStorage) resolve(name string) (string, error) {
	cleaned := filepath.Clean("/" + name)
	if cleaned == "/" {
		return "", ErrOutsideBase
	}
	path := filepath.Join(s.baseDir, cleaned)
	rel, err := filepath.Rel(s.baseDir, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", ErrOutsideBase
	}
	return path, nil
}

// SanitizeFilename strips path separators and whitespace from a filename stem.
func SanitizeFilename(raw string) string {
	if strings.TrimSpace(raw) == "" {
		return "document"
	}
	replacer := strings.NewReplacer(" ", "_", "/", "-", "\\", "-", ":", "-", "..", ".")
	result := replacer.Replace(strings.TrimSpace(raw))
	if len(result) > 100 {
		return result[:100]
	}
	return result
}
