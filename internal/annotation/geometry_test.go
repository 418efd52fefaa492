package annotation

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mktbiz-byte/cnec-platform/internal/model"
)

func TestSpanBox(t *testing.T) {
	tests := []struct {
		name    string
		anchor  Point
		pointer Point
		want    model.AnnotationBox
	}{
		{
			name:    "drag down right",
			anchor:  Point{X: 0.1, Y: 0.1},
			pointer: Point{X: 0.4, Y: 0.3},
			want:    model.AnnotationBox{X: 0.1, Y: 0.1, Width: 0.3, Height: 0.2},
		},
		{
			name:    "drag up left normalizes",
			anchor:  Point{X: 0.4, Y: 0.3},
			pointer: Point{X: 0.1, Y: 0.1},
			want:    model.AnnotationBox{X: 0.1, Y: 0.1, Width: 0.3, Height: 0.2},
		},
		{
			name:    "pointer outside frame clamps",
			anchor:  Point{X: 0.9, Y: 0.9},
			pointer: Point{X: 1.5, Y: -0.2},
			want:    model.AnnotationBox{X: 0.9, Y: 0, Width: 0.1, Height: 0.9},
		},
		{
			name:    "zero size at anchor",
			anchor:  Point{X: 0.5, Y: 0.5},
			pointer: Point{X: 0.5, Y: 0.5},
			want:    model.AnnotationBox{X: 0.5, Y: 0.5},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := spanBox(tt.anchor, tt.pointer)
			assert.InDelta(t, tt.want.X, got.X, 1e-9)
			assert.InDelta(t, tt.want.Y, got.Y, 1e-9)
			assert.InDelta(t, tt.want.Width, got.Width, 1e-9)
			assert.InDelta(t, tt.want.Height, got.Height, 1e-9)
		})
	}
}

func TestHandleAt(t *testing.T) {
	box := model.AnnotationBox{X: 0.2, Y: 0.2, Width: 0.4, Height: 0.4}

	assert.Equal(t, HandleNW, HandleAt(Point{X: 0.21, Y: 0.19}, box))
	assert.Equal(t, HandleNE, HandleAt(Point{X: 0.6, Y: 0.2}, box))
	assert.Equal(t, HandleSW, HandleAt(Point{X: 0.2, Y: 0.6}, box))
	assert.Equal(t, HandleSE, HandleAt(Point{X: 0.61, Y: 0.61}, box))
	assert.Equal(t, HandleNone, HandleAt(Point{X: 0.4, Y: 0.4}, box), "box center is not a handle")
	assert.Equal(t, HandleNone, HandleAt(Point{X: 0.9, Y: 0.9}, box))
}

func TestResizeBy(t *testing.T) {
	box := model.AnnotationBox{X: 0.2, Y: 0.2, Width: 0.4, Height: 0.4}

	grown := ResizeBy(box, HandleSE, 0.1, 0.1)
	assert.InDelta(t, 0.2, grown.X, 1e-9)
	assert.InDelta(t, 0.2, grown.Y, 1e-9)
	assert.InDelta(t, 0.5, grown.Width, 1e-9)
	assert.InDelta(t, 0.5, grown.Height, 1e-9)

	shrunk := ResizeBy(box, HandleNW, 0.1, 0.1)
	assert.InDelta(t, 0.3, shrunk.X, 1e-9)
	assert.InDelta(t, 0.3, shrunk.Y, 1e-9)
	assert.InDelta(t, 0.3, shrunk.Width, 1e-9)
	assert.InDelta(t, 0.3, shrunk.Height, 1e-9)

	// Dragging a corner past the opposite one flips instead of going
	// negative.
	flipped := ResizeBy(box, HandleSE, -0.5, -0.5)
	assert.InDelta(t, 0.1, flipped.X, 1e-9)
	assert.InDelta(t, 0.1, flipped.Width, 1e-9)
	assert.GreaterOrEqual(t, flipped.Width, 0.0)
	assert.GreaterOrEqual(t, flipped.Height, 0.0)

	// Resize never leaves the frame.
	clamped := ResizeBy(box, HandleSE, 10, 10)
	assert.InDelta(t, 0.8, clamped.Width, 1e-9)
	assert.InDelta(t, 0.8, clamped.Height, 1e-9)
}
