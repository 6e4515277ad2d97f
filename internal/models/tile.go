package models

import (
	"image"
)

// Tile is a fixed-size rectangular sub-region of one raster level, the unit
// of streamed I/O. A tile is ephemeral: created, filled, composited and
// released within one processing step, never persisted beyond it.
type Tile struct {
	// OriginX and OriginY locate the tile's top-left corner in level pixels.
	OriginX int
	OriginY int

	// Width and Height are the tile dimensions in pixels. Edge tiles are
	// clamped to the level bounds and may be smaller than the nominal size.
	Width  int
	Height int

	// Pix holds the pixel data as interleaved non-premultiplied RGBA,
	// row-major, len = Width*Height*4.
	Pix []uint8
}

// NewTile allocates a zeroed (fully transparent) tile.
func NewTile(originX, originY, width, height int) *Tile {
	return &Tile{
		OriginX: originX,
		OriginY: originY,
		Width:   width,
		Height:  height,
		Pix:     make([]uint8, width*height*4),
	}
}

// PixOffset returns the index of the first channel of the pixel at
// tile-relative coordinates (x, y).
func (t *Tile) PixOffset(x, y int) int {
	return (y*t.Width + x) * 4
}

// NRGBA returns an image view sharing the tile's pixel buffer. The view's
// bounds are placed at the tile's absolute level coordinates so that tiles
// compose naturally with draw operations.
func (t *Tile) NRGBA() *image.NRGBA {
	return &image.NRGBA{
		Pix:    t.Pix,
		Stride: t.Width * 4,
		Rect:   image.Rect(t.OriginX, t.OriginY, t.OriginX+t.Width, t.OriginY+t.Height),
	}
}

// LevelPlan describes one usable pyramid level reconciled between the image
// and mask pyramids. Plans are created by the level aligner and consumed,
// unmodified, by the tile compositor.
type LevelPlan struct {
	// LevelIndex is the pyramid level this plan covers.
	LevelIndex int

	// ImageWidth and ImageHeight are the image pyramid's dimensions at this level.
	ImageWidth  int
	ImageHeight int

	// MaskWidth and MaskHeight are the mask pyramid's dimensions at this level.
	MaskWidth  int
	MaskHeight int

	// ScaleFactor maps mask-pyramid coordinates to image-pyramid coordinates
	// at this level. Under matched pyramid construction it is exactly 1.0;
	// it is still recorded explicitly so the compositor corrects residual
	// misalignment instead of assuming structural equality.
	ScaleFactor float64

	// Downsample is the image pyramid's downsample factor at this level,
	// carried so the output pyramid mirrors the image pyramid's structure.
	Downsample float64
}
