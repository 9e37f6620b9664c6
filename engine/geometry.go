package engine

import (
	"image"
	"math"
)

// Box is a rectangle in PDF units (1/72 inch), origin bottom-left.
type Box struct {
	X      float64 // Left
	Y      float64 // Bottom (PDF coordinate system)
	Width  float64
	Height float64
}

// NewBox creates a box from its origin and size.
func NewBox(x, y, width, height float64) Box {
	return Box{X: x, Y: y, Width: width, Height: height}
}

// Right returns the right edge X coordinate
func (b Box) Right() float64 {
	return b.X + b.Width
}

// Top returns the top edge Y coordinate
func (b Box) Top() float64 {
	return b.Y + b.Height
}

// Scale returns the box with its size multiplied by f.
func (b Box) Scale(f float64) Box {
	return Box{X: b.X * f, Y: b.Y * f, Width: b.Width * f, Height: b.Height * f}
}

// Rotate returns the box as it appears after a rotation in degrees.
// Quarter turns swap width and height.
func (b Box) Rotate(degrees int) Box {
	switch NormalizeRotation(degrees) {
	case 90, 270:
		return Box{X: b.Y, Y: b.X, Width: b.Height, Height: b.Width}
	default:
		return b
	}
}

// NormalizeRotation folds any multiple of 90 into 0, 90, 180 or 270.
// Other values round down to the previous quarter turn.
func NormalizeRotation(degrees int) int {
	r := degrees % 360
	if r < 0 {
		r += 360
	}
	return r - r%90
}

// Viewport maps a page box to device pixels.
type Viewport struct {
	Scale    float64
	Rotation int

	// Width and Height are in device pixels, after rotation.
	Width  float64
	Height float64
}

// NewViewport builds the viewport for a page box at a scale and rotation.
// A non-positive scale is treated as 1.
func NewViewport(page Box, scale float64, rotation int) Viewport {
	if scale <= 0 {
		scale = 1
	}
	rotation = NormalizeRotation(rotation)
	b := page.Rotate(rotation).Scale(scale)
	return Viewport{
		Scale:    scale,
		Rotation: rotation,
		Width:    b.Width,
		Height:   b.Height,
	}
}

// sizeEpsilon absorbs float error so 612*(300/72) is 2550, not 2551.
const sizeEpsilon = 1e-6

// Size returns the surface size in whole pixels, never smaller than 1x1.
func (v Viewport) Size() (int, int) {
	w := int(math.Ceil(v.Width - sizeEpsilon))
	h := int(math.Ceil(v.Height - sizeEpsilon))
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	return w, h
}

// Bounds returns the pixel rectangle of the viewport anchored at 0,0.
func (v Viewport) Bounds() image.Rectangle {
	w, h := v.Size()
	return image.Rect(0, 0, w, h)
}

// PageBox returns the unrotated page size in PDF units.
func (v Viewport) PageBox() Box {
	b := NewBox(0, 0, v.Width/v.Scale, v.Height/v.Scale)
	return b.Rotate(-v.Rotation)
}
