// Package compositor streams fixed-size tiles across the image and mask
// pyramids for one reconciled level and writes RGBA tiles to the output
// sink: tissue pixels opaque, background transparent. At most one image
// tile, one mask tile and one output tile are resident at any time, so
// memory use is constant no matter how large the level is.
package compositor

import (
	"fmt"
	"image"
	"math"

	"github.com/pkg/errors"
	"golang.org/x/image/draw"
	"golang.org/x/sync/errgroup"

	"github.com/Othman-vram/Tissue-Extraction-Pipeline/internal/models"
	"github.com/Othman-vram/Tissue-Extraction-Pipeline/pkg/pyramid"
)

// DefaultTileSize is the streaming window used when Options does not set one.
const DefaultTileSize = 512

// DefaultMaskThreshold matches the mask rasterizer's binary output: any
// sample above it counts as tissue.
const DefaultMaskThreshold = 128

// TileError reports a tile read or write failure. It aborts processing of
// the current output level; levels completed earlier are not rolled back, so
// a valid but incomplete output pyramid may remain on disk.
type TileError struct {
	Level int
	X     int
	Y     int
	Err   error
}

func (e *TileError) Error() string {
	return fmt.Sprintf("level %d tile (%d, %d): %v", e.Level, e.X, e.Y, e.Err)
}

func (e *TileError) Unwrap() error { return e.Err }

// Options tunes one compositing pass.
type Options struct {
	// TileSize is the streaming window edge in pixels; DefaultTileSize
	// when zero.
	TileSize int

	// MaskThreshold is the sample value above which a mask pixel counts as
	// tissue; DefaultMaskThreshold when zero. Output alpha is always exactly
	// 0 or 255, never an intermediate value.
	MaskThreshold uint8
}

// Result summarizes one completed level for reporting.
type Result struct {
	Level        int
	Tiles        int
	TissuePixels int64
	TotalPixels  int64

	// TileCoverage holds the tissue fraction of each processed tile in
	// raster order, feeding the coverage statistics.
	TileCoverage []float64
}

// TissueFraction is the share of opaque pixels across the whole level.
func (r *Result) TissueFraction() float64 {
	if r.TotalPixels == 0 {
		return 0
	}
	return float64(r.TissuePixels) / float64(r.TotalPixels)
}

// Composite processes one reconciled level: it opens the output level, walks
// the image grid in raster order, reads the image tile and the matching
// scale-corrected mask tile, composites them and writes the RGBA tile, then
// closes the level.
//
// The two source reads run concurrently — they touch two distinct handles,
// and each handle still sees a single cursor. The output tile is written
// only after both source tiles are fully read, so an interruption never
// leaves a torn tile behind. Identical inputs and options produce
// byte-identical output.
func Composite(plan models.LevelPlan, img, mask pyramid.Reader, out pyramid.Writer, opts Options) (*Result, error) {
	tileSize := opts.TileSize
	if tileSize <= 0 {
		tileSize = DefaultTileSize
	}
	threshold := opts.MaskThreshold
	if threshold == 0 {
		threshold = DefaultMaskThreshold
	}
	if plan.ScaleFactor <= 0 {
		return nil, errors.Errorf("level %d has invalid scale factor %g", plan.LevelIndex, plan.ScaleFactor)
	}

	if err := out.BeginLevel(plan.ImageWidth, plan.ImageHeight, plan.Downsample); err != nil {
		return nil, errors.Wrapf(err, "opening output level %d", plan.LevelIndex)
	}

	res := &Result{Level: plan.LevelIndex}
	grid := pyramid.NewGrid(plan.ImageWidth, plan.ImageHeight, tileSize)
	for {
		x, y, w, h, ok := grid.Next()
		if !ok {
			break
		}

		var imgTile *models.Tile
		var maskPlane *image.NRGBA
		var g errgroup.Group
		g.Go(func() error {
			var err error
			imgTile, err = img.ReadTile(plan.LevelIndex, x, y, w, h)
			return errors.Wrap(err, "image read")
		})
		g.Go(func() error {
			var err error
			maskPlane, err = readMaskWindow(plan, mask, x, y, w, h)
			return errors.Wrap(err, "mask read")
		})
		if err := g.Wait(); err != nil {
			return nil, &TileError{Level: plan.LevelIndex, X: x, Y: y, Err: err}
		}

		outTile := models.NewTile(x, y, w, h)
		tissue := 0
		for i := 0; i < w*h; i++ {
			off := i * 4
			outTile.Pix[off+0] = imgTile.Pix[off+0]
			outTile.Pix[off+1] = imgTile.Pix[off+1]
			outTile.Pix[off+2] = imgTile.Pix[off+2]
			if maskPlane.Pix[off] > threshold {
				outTile.Pix[off+3] = 255
				tissue++
			}
		}
		if err := out.WriteTile(x, y, outTile); err != nil {
			return nil, &TileError{Level: plan.LevelIndex, X: x, Y: y, Err: errors.Wrap(err, "output write")}
		}

		res.Tiles++
		res.TissuePixels += int64(tissue)
		res.TotalPixels += int64(w * h)
		res.TileCoverage = append(res.TileCoverage, float64(tissue)/float64(w*h))
	}

	if err := out.EndLevel(); err != nil {
		return nil, errors.Wrapf(err, "closing output level %d", plan.LevelIndex)
	}
	return res, nil
}

// readMaskWindow maps the image-space tile rectangle into mask space via the
// level's scale factor and reads it. When the mapped window does not match
// the image tile size — a scale factor other than 1.0, or a mask level
// clamped smaller — the mask is resampled at nearest-pixel granularity.
// Nearest-neighbour sampling keeps mask samples binary; the mask is never
// interpolated.
func readMaskWindow(plan models.LevelPlan, mask pyramid.Reader, x, y, w, h int) (*image.NRGBA, error) {
	sf := plan.ScaleFactor
	mx := clampInt(int(float64(x)/sf), 0, plan.MaskWidth-1)
	my := clampInt(int(float64(y)/sf), 0, plan.MaskHeight-1)
	mx1 := clampInt(int(math.Ceil(float64(x+w)/sf)), mx+1, plan.MaskWidth)
	my1 := clampInt(int(math.Ceil(float64(y+h)/sf)), my+1, plan.MaskHeight)

	tile, err := mask.ReadTile(plan.LevelIndex, mx, my, mx1-mx, my1-my)
	if err != nil {
		return nil, err
	}
	src := tile.NRGBA()
	if tile.Width == w && tile.Height == h {
		src.Rect = image.Rect(0, 0, w, h)
		return src, nil
	}

	dst := image.NewNRGBA(image.Rect(0, 0, w, h))
	draw.NearestNeighbor.Scale(dst, dst.Rect, src, src.Rect, draw.Src, nil)
	return dst, nil
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
