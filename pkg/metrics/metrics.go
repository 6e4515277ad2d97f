// Package metrics derives per-level tissue coverage statistics from
// compositing results, reported in the pipeline summary.
package metrics

import (
	"fmt"

	"gonum.org/v1/gonum/stat"

	"github.com/Othman-vram/Tissue-Extraction-Pipeline/pkg/compositor"
)

// LevelStats summarizes one composited pyramid level.
type LevelStats struct {
	// Level is the pyramid level index.
	Level int

	// Tiles is the number of tiles processed at this level.
	Tiles int

	// TissueFraction is the share of opaque (tissue) pixels in the level.
	TissueFraction float64

	// CoverageMean and CoverageStdDev describe the distribution of per-tile
	// tissue fractions, a quick read on how clustered the annotation is.
	CoverageMean   float64
	CoverageStdDev float64
}

// Summarize reduces one level's compositing result to its statistics.
func Summarize(res *compositor.Result) LevelStats {
	s := LevelStats{
		Level:          res.Level,
		Tiles:          res.Tiles,
		TissueFraction: res.TissueFraction(),
	}
	if len(res.TileCoverage) > 0 {
		s.CoverageMean = stat.Mean(res.TileCoverage, nil)
	}
	if len(res.TileCoverage) > 1 {
		s.CoverageStdDev = stat.StdDev(res.TileCoverage, nil)
	}
	return s
}

// String renders one summary line for the pipeline report.
func (s LevelStats) String() string {
	return fmt.Sprintf("level %d: %d tiles, %.1f%% tissue (tile coverage %.3f +/- %.3f)",
		s.Level, s.Tiles, s.TissueFraction*100, s.CoverageMean, s.CoverageStdDev)
}
