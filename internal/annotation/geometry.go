// Package annotation implements the review-session engine for
// timestamped, spatially-anchored video feedback: box drawing and
// resizing in fractional frame coordinates, visibility windowing while
// paused, and the playback transport keymap.
package annotation

import (
	"math"

	"github.com/mktbiz-byte/cnec-platform/internal/model"
)

const (
	// MinBoxSize is the smallest width/height a drawn box may have and
	// still be promoted to a savable marker. Accidental clicks produce
	// near-zero boxes and are discarded. The API applies the same
	// threshold to boxes submitted directly.
	MinBoxSize = 0.02

	// handleHitSize is the half-extent of a corner handle's hit area.
	handleHitSize = 0.02
)

// Point is a pointer position in fractional frame coordinates. The
// rendering layer converts device pixels before calling the engine, so
// desktop and touch input look identical here.
type Point struct {
	X float64
	Y float64
}

// Handle names a corner of an annotation box.
type Handle string

const (
	HandleNone Handle = ""
	HandleNW   Handle = "nw"
	HandleNE   Handle = "ne"
	HandleSW   Handle = "sw"
	HandleSE   Handle = "se"
)

func clamp01(v float64) float64 {
	return math.Min(1, math.Max(0, v))
}

func clampPoint(p Point) Point {
	return Point{X: clamp01(p.X), Y: clamp01(p.Y)}
}

// spanBox returns the axis-aligned rectangle spanning the drag anchor
// and the current pointer, clamped to the frame. Geometry is recomputed
// in full from the two points, so repeated pointer-move calls are
// idempotent.
func spanBox(anchor, p Point) model.AnnotationBox {
	a, b := clampPoint(anchor), clampPoint(p)
	return model.AnnotationBox{
		X:      math.Min(a.X, b.X),
		Y:      math.Min(a.Y, b.Y),
		Width:  math.Abs(a.X - b.X),
		Height: math.Abs(a.Y - b.Y),
	}
}

// corner returns the named corner of a box.
func corner(box model.AnnotationBox, h Handle) Point {
	switch h {
	case HandleNW:
		return Point{X: box.X, Y: box.Y}
	case HandleNE:
		return Point{X: box.X + box.Width, Y: box.Y}
	case HandleSW:
		return Point{X: box.X, Y: box.Y + box.Height}
	default:
		return Point{X: box.X + box.Width, Y: box.Y + box.Height}
	}
}

func opposite(h Handle) Handle {
	switch h {
	case HandleNW:
		return HandleSE
	case HandleNE:
		return HandleSW
	case HandleSW:
		return HandleNE
	default:
		return HandleNW
	}
}

// HandleAt reports which corner handle of box, if any, the pointer is
// over. Used on pointer-down to decide between starting a new box and
// resizing a persisted one.
func HandleAt(p Point, box model.AnnotationBox) Handle {
	for _, h := range []Handle{HandleNW, HandleNE, HandleSW, HandleSE} {
		c := corner(box, h)
		if math.Abs(p.X-c.X) <= handleHitSize && math.Abs(p.Y-c.Y) <= handleHitSize {
			return h
		}
	}
	return HandleNone
}

// ResizeBy moves the named corner of box by (dx, dy) while the opposite
// corner stays fixed, returning the resulting rectangle clamped to the
// frame. Dragging a corner past the fixed one flips the box rather than
// producing negative dimensions.
func ResizeBy(box model.AnnotationBox, h Handle, dx, dy float64) model.AnnotationBox {
	moved := corner(box, h)
	moved.X += dx
	moved.Y += dy
	return spanBox(corner(box, opposite(h)), moved)
}
