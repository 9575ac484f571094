package covers

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"biblioteca/internal/models"
)

// sampleImage encodes a small gradient with encode
func sampleImage(t *testing.T, encode func(*bytes.Buffer, image.Image) error) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 6))
	for x := 0; x < 4; x++ {
		for y := 0; y < 6; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 60), G: uint8(y * 40), B: 200, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, encode(&buf, img))
	return buf.Bytes()
}

func jpegBytes(t *testing.T) []byte {
	return sampleImage(t, func(b *bytes.Buffer, img image.Image) error { return jpeg.Encode(b, img, nil) })
}

func TestStore_PutGet(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	data := jpegBytes(t)
	require.NoError(t, store.Put("0-13-468599-7", data))

	got, err := store.Get("0-13-468599-7")
	require.NoError(t, err)
	assert.Equal(t, data, got)

	// Re-upload overwrites
	other := sampleImage(t, func(b *bytes.Buffer, img image.Image) error {
		return jpeg.Encode(b, img, &jpeg.Options{Quality: 10})
	})
	require.NoError(t, store.Put("0-13-468599-7", other))
	got, err = store.Get("0-13-468599-7")
	require.NoError(t, err)
	assert.Equal(t, other, got)
}

func TestStore_RejectsNonJPEG(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	pngData := sampleImage(t, func(b *bytes.Buffer, img image.Image) error { return png.Encode(b, img) })

	assert.ErrorIs(t, store.Put("1", pngData), models.ErrFormat)
	assert.ErrorIs(t, store.Put("1", []byte("not an image")), models.ErrFormat)
	assert.ErrorIs(t, store.Put("1", nil), models.ErrFormat)

	_, err = store.Get("1")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestStore_Delete(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, store.Put("1", jpegBytes(t)))
	require.NoError(t, store.Delete("1"))
	require.NoError(t, store.Delete("1"))

	_, err = store.Get("1")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestStore_PathStaysInDirectory(t *testing.T) {
	store := &Store{dir: "/covers"}
	assert.Equal(t, "/covers/etcpasswd.jpg", store.path("../../etc/passwd"))
}
