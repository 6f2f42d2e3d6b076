// Package geometry holds the value types shared by sources, layers and the
// compositor, and the placement function used by every output path.
package geometry

import (
	"fmt"
	"image"
	"math"
)

type Size struct {
	W, H float64
}

type Point struct {
	X, Y float64
}

type Rect struct {
	X, Y, W, H float64
}

func Sz(w, h float64) Size {
	return Size{w, h}
}

func SizeOf(b image.Rectangle) Size {
	return Size{float64(b.Dx()), float64(b.Dy())}
}

func (s Size) Empty() bool {
	return s.W <= 0 || s.H <= 0
}

func (s Size) Scale(f float64) Size {
	return Size{s.W * f, s.H * f}
}

// Pixels rounds to the integer dimensions of a backing buffer
func (s Size) Pixels() (int, int) {
	return int(math.Round(s.W)), int(math.Round(s.H))
}

func (s Size) String() string {
	return fmt.Sprintf("%gx%g", s.W, s.H)
}

func R(x, y, w, h float64) Rect {
	return Rect{x, y, w, h}
}

func RectOf(s Size) Rect {
	return Rect{0, 0, s.W, s.H}
}

func (r Rect) Size() Size {
	return Size{r.W, r.H}
}

func (r Rect) Empty() bool {
	return r.W <= 0 || r.H <= 0
}

func (r Rect) Center() Point {
	return Point{r.X + r.W/2, r.Y + r.H/2}
}

func (r Rect) Max() Point {
	return Point{r.X + r.W, r.Y + r.H}
}

// Bounds returns the smallest integer rectangle containing r
func (r Rect) Bounds() image.Rectangle {
	return image.Rect(
		int(math.Floor(r.X)),
		int(math.Floor(r.Y)),
		int(math.Ceil(r.X+r.W)),
		int(math.Ceil(r.Y+r.H)),
	)
}

func (r Rect) String() string {
	return fmt.Sprintf("(%g,%g %gx%g)", r.X, r.Y, r.W, r.H)
}
