package pyramid

import (
	"github.com/Othman-vram/Tissue-Extraction-Pipeline/internal/models"
)

// Reader provides tile-windowed pixel access to an opened pyramidal raster.
// A Reader is an exclusively owned, stateful handle: one read cursor at a
// time, no concurrent access to a single open handle.
type Reader interface {
	// Descriptor reflects the pyramid's shape.
	Descriptor() (*Descriptor, error)

	// ReadTile reads the window (x, y, width, height) of the given level.
	// The window must lie within the level bounds.
	ReadTile(level, x, y, width, height int) (*models.Tile, error)

	// Close releases the handle.
	Close() error
}

// Writer receives one pyramid level at a time: BeginLevel, then WriteTile
// calls in raster (row-major) order with tile origins aligned to the writer's
// tile grid, then EndLevel. A level is durable only after EndLevel returns;
// an abandoned level is never visible to later readers, which keeps each
// level atomic with respect to itself.
type Writer interface {
	// BeginLevel opens the next level for writing. The downsample factor is
	// recorded so readers of the finished pyramid can reflect its shape.
	BeginLevel(width, height int, downsample float64) error

	// WriteTile stores one tile of the open level at origin (x, y).
	WriteTile(x, y int, t *models.Tile) error

	// EndLevel completes and publishes the open level.
	EndLevel() error

	// Close releases the handle. An open, unfinished level is discarded.
	Close() error
}
