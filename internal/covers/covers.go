// Package covers stores one JPEG cover image per ISBN on the filesystem.
package covers

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"biblioteca/internal/models"
)

// MaxSize bounds the size of an uploaded cover
const MaxSize = 5 << 20

// Store keeps covers as <dir>/<isbn>.jpg
type Store struct {
	dir string
}

// NewStore creates the cover directory if needed
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create covers directory: %w", err)
	}
	return &Store{dir: dir}, nil
}

// Validate checks that data is a decodable JPEG image
func Validate(data []byte) error {
	if len(data) == 0 {
		return fmt.Errorf("empty cover: %w", models.ErrFormat)
	}
	if len(data) > MaxSize {
		return fmt.Errorf("cover larger than %d bytes: %w", MaxSize, models.ErrFormat)
	}
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil || format != "jpeg" {
		return fmt.Errorf("cover must be a JPEG image: %w", models.ErrFormat)
	}
	if cfg.Width == 0 || cfg.Height == 0 {
		return fmt.Errorf("cover has no pixels: %w", models.ErrFormat)
	}
	return nil
}

// Put validates and stores the cover, replacing any previous one
func (s *Store) Put(isbn string, data []byte) error {
	if err := Validate(data); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(s.dir, ".cover-*")
	if err != nil {
		return fmt.Errorf("failed to create temporary cover: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write cover: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write cover: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path(isbn)); err != nil {
		return fmt.Errorf("failed to store cover: %w", err)
	}
	return nil
}

// Get returns the stored cover of a book
func (s *Store) Get(isbn string) ([]byte, error) {
	data, err := os.ReadFile(s.path(isbn))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("cover of %s: %w", isbn, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read cover: %w", err)
	}
	return data, nil
}

// Delete removes the cover of a book; a missing cover is not an error
func (s *Store) Delete(isbn string) error {
	err := os.Remove(s.path(isbn))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to delete cover: %w", err)
	}
	return nil
}

// path maps an ISBN to its file; separators are stripped so the name
// cannot leave the directory
func (s *Store) path(isbn string) string {
	name := strings.Map(func(r rune) rune {
		if r == '/' || r == '\\' || r == '.' {
			return -1
		}
		return r
	}, isbn)
	return filepath.Join(s.dir, name+".jpg")
}
