package exchange

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/klauspost/compress/zip"
	"golang.org/x/sync/errgroup"

	"biblioteca/internal/models"
)

// ArchiveBaseName is the file name, without extension, of every archive member
const ArchiveBaseName = "biblioteca"

// Archive encodes books in every format concurrently and packs the results
// into a zip file with one member per format
func Archive(ctx context.Context, books []models.Book, modified time.Time) ([]byte, error) {
	encoded := make([][]byte, len(Formats))

	g, _ := errgroup.WithContext(ctx)
	for i, f := range Formats {
		i, f := i, f
		g.Go(func() error {
			data, err := Encode(f, books)
			if err != nil {
				return fmt.Errorf("failed to encode %s: %w", f, err)
			}
			encoded[i] = data
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for i, f := range Formats {
		header := &zip.FileHeader{
			Name:     ArchiveBaseName + "." + f.Extension(),
			Method:   zip.Deflate,
			Modified: modified,
		}
		w, err := zw.CreateHeader(header)
		if err != nil {
			return nil, fmt.Errorf("failed to add %s: %w", header.Name, err)
		}
		if _, err := w.Write(encoded[i]); err != nil {
			return nil, fmt.Errorf("failed to write %s: %w", header.Name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("failed to finish archive: %w", err)
	}
	return buf.Bytes(), nil
}
