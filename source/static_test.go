package source

import (
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatic(t *testing.T) {
	t.Run("same texture every time", func(t *testing.T) {
		s := NewStatic(image.NewRGBA(image.Rect(0, 0, 30, 20)))
		assert.Same(t, s.Produce(context.Background(), 0), s.Produce(context.Background(), 1e9))
		assert.Equal(t, 30.0, s.NaturalSize().W)
		assert.Equal(t, 20.0, s.NaturalSize().H)
	})

	t.Run("converts other image types", func(t *testing.T) {
		gray := image.NewGray(image.Rect(5, 5, 7, 7))
		gray.SetGray(5, 5, color.Gray{Y: 200})
		s := NewStatic(gray)
		tex := s.Produce(context.Background(), 0)
		assert.Equal(t, image.Rect(0, 0, 2, 2), tex.Bounds())
		assert.Equal(t, byte(200), tex.Pix[0])
	})

	t.Run("load from file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "logo.png")
		img := image.NewRGBA(image.Rect(0, 0, 12, 8))
		img.Set(0, 0, color.RGBA{255, 0, 0, 255})
		f, err := os.Create(path)
		require.NoError(t, err)
		require.NoError(t, png.Encode(f, img))
		f.Close()

		s, err := LoadStatic(path)
		require.NoError(t, err)
		assert.Equal(t, 12.0, s.NaturalSize().W)
		assert.Equal(t, 8.0, s.NaturalSize().H)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadStatic(filepath.Join(t.TempDir(), "missing.png"))
		assert.Error(t, err)
	})
}
