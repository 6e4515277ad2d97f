// Package pyramid models multi-resolution rasters: descriptor reflection over
// an opened source, the reader/writer contracts used by the pipeline, a
// windowed tile iterator, and two pyramid containers (an on-disk tile store
// and an in-memory pyramid).
package pyramid

import (
	"github.com/pkg/errors"
)

// ErrUnreadablePyramid reports a malformed or empty source pyramid: zero
// levels, invalid dimensions, or inconsistent downsample factors. It is fatal
// and aborts a run before any output is produced.
var ErrUnreadablePyramid = errors.New("unreadable pyramid")

// downsampleTolerance absorbs rounding from integer level dimensions when
// checking the base level's downsample factor.
const downsampleTolerance = 1e-6

// Dims is one level's raster dimensions in pixels.
type Dims struct {
	Width  int
	Height int
}

// LevelSource is the reflection surface an opened pyramidal raster exposes:
// level count plus per-level dimensions and downsample factor. The external
// reader and writer collaborators, and both containers in this package,
// implement it.
type LevelSource interface {
	// LevelCount returns the number of pyramid levels.
	LevelCount() int

	// LevelDimensions returns the raster dimensions of the given level.
	LevelDimensions(level int) (width, height int)

	// LevelDownsample returns the downsample factor of the given level:
	// the ratio of level-0 resolution to this level's resolution.
	LevelDownsample(level int) float64
}

// Descriptor is the immutable shape of a multi-resolution raster: level
// count, per-level dimensions and per-level downsample factor. Level 0 is
// full resolution with a downsample of exactly 1.0, and factors never
// decrease with level index.
type Descriptor struct {
	LevelCount  int
	Dimensions  []Dims
	Downsamples []float64
}

// Describe reflects over an opened pyramidal raster and validates its shape.
// It fails with ErrUnreadablePyramid if the source exposes zero levels,
// non-positive dimensions, a base downsample other than 1.0, or a
// non-monotonic downsample sequence.
func Describe(src LevelSource) (*Descriptor, error) {
	n := src.LevelCount()
	if n <= 0 {
		return nil, errors.Wrap(ErrUnreadablePyramid, "source exposes zero levels")
	}

	d := &Descriptor{
		LevelCount:  n,
		Dimensions:  make([]Dims, n),
		Downsamples: make([]float64, n),
	}
	for level := 0; level < n; level++ {
		w, h := src.LevelDimensions(level)
		if w <= 0 || h <= 0 {
			return nil, errors.Wrapf(ErrUnreadablePyramid, "level %d has dimensions %dx%d", level, w, h)
		}
		d.Dimensions[level] = Dims{Width: w, Height: h}
		d.Downsamples[level] = src.LevelDownsample(level)
	}

	if diff := d.Downsamples[0] - 1.0; diff > downsampleTolerance || diff < -downsampleTolerance {
		return nil, errors.Wrapf(ErrUnreadablePyramid, "base level downsample is %g, want 1.0", d.Downsamples[0])
	}
	for level := 1; level < n; level++ {
		if d.Downsamples[level] < d.Downsamples[level-1] {
			return nil, errors.Wrapf(ErrUnreadablePyramid,
				"downsample decreases from %g to %g at level %d",
				d.Downsamples[level-1], d.Downsamples[level], level)
		}
	}
	return d, nil
}
