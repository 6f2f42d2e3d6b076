package source

import (
	"image"

	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/math/f64"
)

// Filter renders src into dst. Both images have the same size.
type Filter interface {
	Apply(dst, src *image.RGBA) error
}

type FilterFunc func(dst, src *image.RGBA) error

func (f FilterFunc) Apply(dst, src *image.RGBA) error {
	return f(dst, src)
}

func sameSize(dst, src *image.RGBA) error {
	if dst.Rect.Size() != src.Rect.Size() {
		return ErrSizeMismatch
	}
	return nil
}

// Mirror flips horizontally, as a front camera preview does
var Mirror Filter = FilterFunc(func(dst, src *image.RGBA) error {
	if err := sameSize(dst, src); err != nil {
		return err
	}
	w := float64(src.Rect.Dx())
	s2d := f64.Aff3{-1, 0, w, 0, 1, 0}
	xdraw.NearestNeighbor.Transform(dst, s2d, src, src.Bounds(), xdraw.Src, nil)
	return nil
})

// Grayscale uses the same luma weights as image/color.GrayModel
var Grayscale Filter = FilterFunc(func(dst, src *image.RGBA) error {
	if err := sameSize(dst, src); err != nil {
		return err
	}
	w, h := src.Rect.Dx(), src.Rect.Dy()
	for y := 0; y < h; y++ {
		s := src.Pix[y*src.Stride : y*src.Stride+w*4]
		d := dst.Pix[y*dst.Stride : y*dst.Stride+w*4]
		for i := 0; i < len(s); i += 4 {
			r, g, b := uint32(s[i]), uint32(s[i+1]), uint32(s[i+2])
			l := uint8((19595*r + 38470*g + 7471*b + 1<<15) >> 16)
			d[i], d[i+1], d[i+2], d[i+3] = l, l, l, s[i+3]
		}
	}
	return nil
})

type chain struct {
	filters []Filter
	scratch [2]*image.RGBA
}

// Chain applies filters in order. The returned filter keeps scratch buffers
// and must not be shared between cameras.
func Chain(filters ...Filter) Filter {
	if len(filters) == 1 {
		return filters[0]
	}
	return &chain{filters: filters}
}

func (c *chain) Apply(dst, src *image.RGBA) error {
	if err := sameSize(dst, src); err != nil {
		return err
	}
	if len(c.filters) == 0 {
		copy(dst.Pix, src.Pix)
		return nil
	}
	w, h := src.Rect.Dx(), src.Rect.Dy()
	in := src
	for i, f := range c.filters {
		out := dst
		if i < len(c.filters)-1 {
			c.scratch[i%2] = ensureRGBA(c.scratch[i%2], w, h)
			out = c.scratch[i%2]
		}
		if err := f.Apply(out, in); err != nil {
			return err
		}
		in = out
	}
	return nil
}
