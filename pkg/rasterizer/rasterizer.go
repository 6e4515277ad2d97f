// Package rasterizer produces binary tissue mask levels directly from
// normalized vector geometry. Each pyramid level is re-rasterized from the
// base-coordinate polygons at that level's resolution — never by downsampling
// a finer mask — so boundaries stay sharp at every scale and aliasing does
// not compound.
//
// Filling uses scan-line parity (the even-odd rule): a pixel center is tissue
// when a ray through it crosses an odd number of ring segments. Holes and
// overlapping multipolygon parts therefore behave consistently at all levels.
package rasterizer

import (
	"math"
	"sort"

	"github.com/pkg/errors"

	"github.com/Othman-vram/Tissue-Extraction-Pipeline/internal/models"
	"github.com/Othman-vram/Tissue-Extraction-Pipeline/pkg/pyramid"
)

// ErrRasterization reports a tile fill inconsistent with its declared bounds.
// It aborts the current mask level only; previously completed levels remain
// valid and usable.
var ErrRasterization = errors.New("rasterization produced inconsistent tile")

// MaskValue is the pixel value marking tissue in a rasterized mask.
const MaskValue = 255

// edge is one non-horizontal ring segment in level coordinates, stored with
// y0 < y1. Horizontal segments never cross a scan line and are dropped.
type edge struct {
	x0, y0 float64
	x1, y1 float64
}

// buildEdges scales the geometry by 1/downsample and flattens every ring
// (exteriors and holes alike — parity filling treats them uniformly) into an
// edge list.
func buildEdges(geom models.Geometry, downsample float64) []edge {
	scale := 1.0 / downsample
	var edges []edge
	appendRing := func(r models.Ring) {
		for i := 0; i+1 < len(r); i++ {
			x0, y0 := r[i].X*scale, r[i].Y*scale
			x1, y1 := r[i+1].X*scale, r[i+1].Y*scale
			if y0 == y1 {
				continue
			}
			if y0 > y1 {
				x0, y0, x1, y1 = x1, y1, x0, y0
			}
			edges = append(edges, edge{x0: x0, y0: y0, x1: x1, y1: y1})
		}
	}
	for _, poly := range geom {
		appendRing(poly.Exterior)
		for _, hole := range poly.Holes {
			appendRing(hole)
		}
	}
	return edges
}

// fillTile rasterizes the window (x0, y0, w, h) into a binary buffer of
// length w*h. Sampling is at pixel centers; a crossing at y counts when
// edge.y0 <= y < edge.y1, the half-open convention that keeps shared vertices
// from double-counting.
func fillTile(edges []edge, x0, y0, w, h int) []uint8 {
	mask := make([]uint8, w*h)
	var crossings []float64
	for row := 0; row < h; row++ {
		yc := float64(y0+row) + 0.5
		crossings = crossings[:0]
		for _, e := range edges {
			if e.y0 <= yc && yc < e.y1 {
				crossings = append(crossings, e.x0+(yc-e.y0)*(e.x1-e.x0)/(e.y1-e.y0))
			}
		}
		if len(crossings) < 2 {
			continue
		}
		sort.Float64s(crossings)
		for i := 0; i+1 < len(crossings); i += 2 {
			xa, xb := crossings[i], crossings[i+1]
			// Pixel centers x+0.5 in [xa, xb), clipped to the tile.
			start := int(math.Ceil(xa - 0.5))
			end := int(math.Ceil(xb - 0.5))
			if start < x0 {
				start = x0
			}
			if end > x0+w {
				end = x0 + w
			}
			for x := start; x < end; x++ {
				mask[row*w+(x-x0)] = MaskValue
			}
		}
	}
	return mask
}

// Rasterize is the pure form of the mask rasterizer: it renders the whole
// level plane into one binary buffer of length width*height. It is intended
// for small levels and tests; RasterizeLevel streams tile by tile instead.
func Rasterize(geom models.Geometry, width, height int, downsample float64) []uint8 {
	return fillTile(buildEdges(geom, downsample), 0, 0, width, height)
}

// RasterizeLevel rasterizes one pyramid level of the geometry into the writer,
// tile by tile in raster order. No buffer larger than a single tile is ever
// materialized. An empty geometry yields an entirely background level.
//
// A tile whose fill disagrees with its declared bounds fails with
// ErrRasterization; the open level is abandoned and the error carries the
// tile coordinates.
func RasterizeLevel(geom models.Geometry, width, height int, downsample float64, w pyramid.Writer, tileSize int) error {
	if width <= 0 || height <= 0 {
		return errors.Errorf("invalid level dimensions %dx%d", width, height)
	}
	if downsample <= 0 {
		return errors.Errorf("invalid downsample factor %g", downsample)
	}
	edges := buildEdges(geom, downsample)

	if err := w.BeginLevel(width, height, downsample); err != nil {
		return errors.Wrap(err, "opening mask level")
	}
	grid := pyramid.NewGrid(width, height, tileSize)
	for {
		x, y, tw, th, ok := grid.Next()
		if !ok {
			break
		}

		// Only edges whose vertical span reaches this tile's rows can
		// contribute crossings. Edges left or right of the tile still count
		// toward parity, so there is no horizontal prefilter.
		tileEdges := edges[:0:0]
		top, bottom := float64(y), float64(y+th)
		for _, e := range edges {
			if e.y1 > top && e.y0 < bottom {
				tileEdges = append(tileEdges, e)
			}
		}

		mask := fillTile(tileEdges, x, y, tw, th)
		if len(mask) != tw*th {
			return errors.Wrapf(ErrRasterization, "tile (%d, %d): got %d samples for %dx%d bounds",
				x, y, len(mask), tw, th)
		}

		t := models.NewTile(x, y, tw, th)
		for i, v := range mask {
			t.Pix[i*4+0] = v
			t.Pix[i*4+1] = v
			t.Pix[i*4+2] = v
			t.Pix[i*4+3] = 255
		}
		if err := w.WriteTile(x, y, t); err != nil {
			return errors.Wrapf(err, "writing mask tile (%d, %d)", x, y)
		}
	}
	return errors.Wrap(w.EndLevel(), "closing mask level")
}
