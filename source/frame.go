package source

import (
	"fmt"
	"image"
	"time"
)

type PixelFormat int

const (
	RGBA PixelFormat = iota
	BGRA
	RGB
)

func (f PixelFormat) String() string {
	switch f {
	case RGBA:
		return "RGBA"
	case BGRA:
		return "BGRA"
	case RGB:
		return "RGB"
	}
	return fmt.Sprintf("PixelFormat(%d)", int(f))
}

func (f PixelFormat) bytesPerPixel() int {
	if f == RGB {
		return 3
	}
	return 4
}

// ParsePixelFormat maps GStreamer raw video format names
func ParsePixelFormat(s string) (PixelFormat, error) {
	switch s {
	case "RGBA", "RGBx":
		return RGBA, nil
	case "BGRA", "BGRx":
		return BGRA, nil
	case "RGB":
		return RGB, nil
	}
	return 0, fmt.Errorf("%w: %s", ErrUnsupportedFormat, s)
}

// Frame is one raw capture sample. Data is only borrowed for the duration of
// Camera.Push.
type Frame struct {
	Data      []byte
	Width     int
	Height    int
	Stride    int
	Format    PixelFormat
	Timestamp time.Duration
}

func (f Frame) stride() int {
	if f.Stride > 0 {
		return f.Stride
	}
	return f.Width * f.Format.bytesPerPixel()
}

func (f Frame) validate() error {
	if f.Format != RGBA && f.Format != BGRA && f.Format != RGB {
		return fmt.Errorf("%w: %v", ErrUnsupportedFormat, f.Format)
	}
	if f.Width <= 0 || f.Height <= 0 {
		return fmt.Errorf("%w: %dx%d", ErrShortFrame, f.Width, f.Height)
	}
	stride := f.stride()
	if stride < f.Width*f.Format.bytesPerPixel() || len(f.Data) < stride*(f.Height-1)+f.Width*f.Format.bytesPerPixel() {
		return fmt.Errorf("%w: %d bytes for %dx%d %v", ErrShortFrame, len(f.Data), f.Width, f.Height, f.Format)
	}
	return nil
}

// convert writes f into dst, which must be f.Width x f.Height. Alpha is forced
// opaque for RGB and kept as-is otherwise.
func (f Frame) convert(dst *image.RGBA) error {
	if err := f.validate(); err != nil {
		return err
	}
	stride := f.stride()
	rowBytes := f.Width * 4
	for y := 0; y < f.Height; y++ {
		src := f.Data[y*stride:]
		row := dst.Pix[y*dst.Stride : y*dst.Stride+rowBytes]
		switch f.Format {
		case RGBA:
			copy(row, src[:rowBytes])
		case BGRA:
			for i := 0; i < rowBytes; i += 4 {
				row[i] = src[i+2]
				row[i+1] = src[i+1]
				row[i+2] = src[i]
				row[i+3] = src[i+3]
			}
		case RGB:
			for x, j := 0, 0; x < rowBytes; x, j = x+4, j+3 {
				row[x] = src[j]
				row[x+1] = src[j+1]
				row[x+2] = src[j+2]
				row[x+3] = 0xff
			}
		}
	}
	return nil
}
