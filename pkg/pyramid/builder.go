package pyramid

import (
	"image"

	"github.com/pkg/errors"
	"golang.org/x/image/draw"

	"github.com/Othman-vram/Tissue-Extraction-Pipeline/internal/models"
)

// BuildFromImage constructs a pyramid from a decoded base image by successive
// halving, writing each level tile by tile through the writer. Levels are
// generated until the longer side fits within one tile, or until maxLevels
// levels exist when maxLevels is positive.
//
// Every level is resampled from the base image rather than from the previous
// level, so resampling error does not compound down the pyramid. This is
// conversion glue for the input slide: the base image is held decoded in
// memory, unlike the mask and compositing stages which stream.
func BuildFromImage(src image.Image, w Writer, tileSize, maxLevels int) error {
	if tileSize <= 0 {
		return errors.Errorf("invalid tile size %d", tileSize)
	}
	bounds := src.Bounds()
	baseW, baseH := bounds.Dx(), bounds.Dy()
	if baseW <= 0 || baseH <= 0 {
		return errors.Errorf("base image has dimensions %dx%d", baseW, baseH)
	}

	base, ok := src.(*image.NRGBA)
	if !ok || base.Rect.Min != (image.Point{}) {
		base = image.NewNRGBA(image.Rect(0, 0, baseW, baseH))
		draw.Draw(base, base.Rect, src, bounds.Min, draw.Src)
	}

	for level := 0; ; level++ {
		lw := baseW >> level
		lh := baseH >> level
		if lw < 1 {
			lw = 1
		}
		if lh < 1 {
			lh = 1
		}

		plane := base
		if level > 0 {
			plane = image.NewNRGBA(image.Rect(0, 0, lw, lh))
			draw.CatmullRom.Scale(plane, plane.Rect, base, base.Rect, draw.Src, nil)
		}
		if err := writePlane(w, plane, float64(baseW)/float64(lw), tileSize); err != nil {
			return errors.Wrapf(err, "writing pyramid level %d", level)
		}

		if maxLevels > 0 && level+1 >= maxLevels {
			return nil
		}
		if lw <= tileSize && lh <= tileSize {
			return nil
		}
	}
}

// writePlane streams one fully materialized level plane into the writer in
// raster order.
func writePlane(w Writer, plane *image.NRGBA, downsample float64, tileSize int) error {
	width := plane.Rect.Dx()
	height := plane.Rect.Dy()
	if err := w.BeginLevel(width, height, downsample); err != nil {
		return err
	}
	grid := NewGrid(width, height, tileSize)
	for {
		x, y, tw, th, ok := grid.Next()
		if !ok {
			break
		}
		t := models.NewTile(x, y, tw, th)
		for row := 0; row < th; row++ {
			srcOff := plane.PixOffset(x, y+row)
			copy(t.Pix[row*tw*4:(row+1)*tw*4], plane.Pix[srcOff:srcOff+tw*4])
		}
		if err := w.WriteTile(x, y, t); err != nil {
			return err
		}
	}
	return w.EndLevel()
}
