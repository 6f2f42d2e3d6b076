package source

import (
	"errors"
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrameConvert(t *testing.T) {
	dst := image.NewRGBA(image.Rect(0, 0, 2, 1))

	t.Run("RGBA copies", func(t *testing.T) {
		f := Frame{Data: []byte{1, 2, 3, 4, 5, 6, 7, 8}, Width: 2, Height: 1, Format: RGBA}
		require.NoError(t, f.convert(dst))
		assert.Equal(t, []byte{1, 2, 3, 4, 5, 6, 7, 8}, dst.Pix)
	})

	t.Run("BGRA swaps red and blue", func(t *testing.T) {
		f := Frame{Data: []byte{1, 2, 3, 4, 5, 6, 7, 8}, Width: 2, Height: 1, Format: BGRA}
		require.NoError(t, f.convert(dst))
		assert.Equal(t, []byte{3, 2, 1, 4, 7, 6, 5, 8}, dst.Pix)
	})

	t.Run("RGB expands with opaque alpha", func(t *testing.T) {
		f := Frame{Data: []byte{1, 2, 3, 4, 5, 6}, Width: 2, Height: 1, Format: RGB}
		require.NoError(t, f.convert(dst))
		assert.Equal(t, []byte{1, 2, 3, 255, 4, 5, 6, 255}, dst.Pix)
	})

	t.Run("honors stride padding", func(t *testing.T) {
		tall := image.NewRGBA(image.Rect(0, 0, 1, 2))
		f := Frame{Data: []byte{1, 2, 3, 0, 4, 5, 6}, Width: 1, Height: 2, Stride: 4, Format: RGB}
		require.NoError(t, f.convert(tall))
		assert.Equal(t, []byte{1, 2, 3, 255, 4, 5, 6, 255}, tall.Pix)
	})

	t.Run("short data", func(t *testing.T) {
		f := Frame{Data: []byte{1, 2, 3}, Width: 2, Height: 1, Format: RGBA}
		assert.True(t, errors.Is(f.convert(dst), ErrShortFrame))
	})

	t.Run("unknown format", func(t *testing.T) {
		f := Frame{Data: make([]byte, 8), Width: 2, Height: 1, Format: PixelFormat(9)}
		assert.True(t, errors.Is(f.convert(dst), ErrUnsupportedFormat))
	})
}

func TestParsePixelFormat(t *testing.T) {
	f, err := ParsePixelFormat("BGRx")
	require.NoError(t, err)
	assert.Equal(t, BGRA, f)
	_, err = ParsePixelFormat("I420")
	assert.True(t, errors.Is(err, ErrUnsupportedFormat))
}
