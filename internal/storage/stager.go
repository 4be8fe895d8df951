package storage

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

var (
	ErrInvalidName = errors.New("invalid file name")
	ErrTooLarge    = errors.New("file exceeds upload limit")
)

// Stager writes uploaded files to <root>/<session>/<name> so the converter
// can read them from disk. Staged files are kept as the local raw-file copy.
type Stager struct {
	root     string
	maxBytes int64
}

// NewStager stages under root. maxBytes <= 0 disables the size limit.
func NewStager(root string, maxBytes int64) *Stager {
	return &Stager{root: root, maxBytes: maxBytes}
}

func (s *Stager) Root() string {
	return s.root
}

// SanitizeName reduces an uploaded file name to a safe base name.
func SanitizeName(name string) (string, error) {
	name = strings.ReplaceAll(name, "\\", "/")
	name = strings.TrimSpace(filepath.Base(name))
	if name == "" || name == "." || name == ".." || name == "/" || strings.ContainsRune(name, 0) {
		return "", ErrInvalidName
	}
	return name, nil
}

// Path returns where name is staged for sessionID.
func (s *Stager) Path(sessionID, name string) (string, error) {
	clean, err := SanitizeName(name)
	if err != nil {
		return "", err
	}
	dir, err := SanitizeName(sessionID)
	if err != nil {
		return "", fmt.Errorf("invalid session id: %w", err)
	}
	return filepath.Join(s.root, dir, clean), nil
}

// Stage copies r to the staging path of name and returns that path. A
// previous file of the same name is replaced.
func (s *Stager) Stage(sessionID, name string, r io.Reader) (string, error) {
	dst, err := s.Path(sessionID, name)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return "", fmt.Errorf("failed to create upload dir: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dst), ".upload-*")
	if err != nil {
		return "", fmt.Errorf("failed to create upload file: %w", err)
	}
	defer os.Remove(tmp.Name())

	src := r
	if s.maxBytes > 0 {
		src = io.LimitReader(r, s.maxBytes+1)
	}
	n, err := io.Copy(tmp, src)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return "", fmt.Errorf("failed to write upload: %w", err)
	}
	if s.maxBytes > 0 && n > s.maxBytes {
		return "", fmt.Errorf("%s: %w (%d bytes)", name, ErrTooLarge, s.maxBytes)
	}

	if err := os.Rename(tmp.Name(), dst); err != nil {
		return "", fmt.Errorf("failed to move upload into place: %w", err)
	}
	return dst, nil
}
