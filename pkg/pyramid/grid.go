package pyramid

// Grid enumerates the tile windows of one raster level in row-major order.
// It is a lazy, finite, restartable iterator: memory use stays constant no
// matter how large the level is, which is what allows streaming gigapixel
// planes one tile at a time.
type Grid struct {
	width    int
	height   int
	tileSize int

	x int
	y int
}

// NewGrid returns a tile iterator over a width x height level cut into
// tileSize x tileSize windows. Edge windows are clamped to the level bounds.
func NewGrid(width, height, tileSize int) *Grid {
	return &Grid{width: width, height: height, tileSize: tileSize}
}

// Next yields the next tile window. ok is false once the grid is exhausted.
func (g *Grid) Next() (x, y, w, h int, ok bool) {
	if g.y >= g.height || g.width <= 0 || g.tileSize <= 0 {
		return 0, 0, 0, 0, false
	}
	x, y = g.x, g.y
	w = g.tileSize
	if x+w > g.width {
		w = g.width - x
	}
	h = g.tileSize
	if y+h > g.height {
		h = g.height - y
	}

	g.x += g.tileSize
	if g.x >= g.width {
		g.x = 0
		g.y += g.tileSize
	}
	return x, y, w, h, true
}

// Reset rewinds the iterator to the first tile.
func (g *Grid) Reset() {
	g.x = 0
	g.y = 0
}

// Tiles returns the total number of windows the grid yields.
func (g *Grid) Tiles() int {
	if g.width <= 0 || g.height <= 0 || g.tileSize <= 0 {
		return 0
	}
	cols := (g.width + g.tileSize - 1) / g.tileSize
	rows := (g.height + g.tileSize - 1) / g.tileSize
	return cols * rows
}
