package geometry

import "math"

type Kind int

const (
	Cover Kind = iota
	Fit
)

func (k Kind) String() string {
	if k == Fit {
		return "fit"
	}
	return "cover"
}

// Layout is comparable: two layouts are equal when kind and anchor are
type Layout struct {
	Kind   Kind
	Anchor Point
}

var Center = Point{0.5, 0.5}

func CoverAt(anchor Point) Layout {
	return Layout{Cover, clampAnchor(anchor)}
}

func FitAt(anchor Point) Layout {
	return Layout{Fit, clampAnchor(anchor)}
}

func clampAnchor(p Point) Point {
	return Point{
		math.Max(0, math.Min(1, p.X)),
		math.Max(0, math.Min(1, p.Y)),
	}
}

// Place computes where a source of size src lands inside dest.
// Cover scales by the larger ratio so dest is fully covered, Fit by the
// smaller one so the source is fully visible. On each axis the overflow
// (negative) or the empty space (positive) is split according to the anchor:
// 0 aligns to the start edge, 1 to the end edge.
func Place(src Size, dest Rect, layout Layout) Rect {
	if src.Empty() || dest.Empty() {
		return Rect{dest.X, dest.Y, 0, 0}
	}
	rw := dest.W / src.W
	rh := dest.H / src.H
	var scale float64
	if layout.Kind == Fit {
		scale = math.Min(rw, rh)
	} else {
		scale = math.Max(rw, rh)
	}
	w := src.W * scale
	h := src.H * scale
	return Rect{
		X: dest.X + (dest.W-w)*layout.Anchor.X,
		Y: dest.Y + (dest.H-h)*layout.Anchor.Y,
		W: w,
		H: h,
	}
}
