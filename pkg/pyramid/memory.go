package pyramid

import (
	"github.com/pkg/errors"

	"github.com/Othman-vram/Tissue-Extraction-Pipeline/internal/models"
)

// Memory is an in-memory pyramid implementing LevelSource, Reader and
// Writer. It holds every level fully resident, so it is only suitable for
// tests and small rasters; production runs use the on-disk TileStore.
type Memory struct {
	levels []*memoryLevel
	open   *memoryLevel
	closed bool
}

type memoryLevel struct {
	width      int
	height     int
	downsample float64
	pix        []uint8 // interleaved NRGBA, row-major
}

// NewMemory returns an empty in-memory pyramid.
func NewMemory() *Memory {
	return &Memory{}
}

// LevelCount implements LevelSource.
func (m *Memory) LevelCount() int { return len(m.levels) }

// LevelDimensions implements LevelSource.
func (m *Memory) LevelDimensions(level int) (int, int) {
	l := m.levels[level]
	return l.width, l.height
}

// LevelDownsample implements LevelSource.
func (m *Memory) LevelDownsample(level int) float64 {
	return m.levels[level].downsample
}

// Descriptor implements Reader.
func (m *Memory) Descriptor() (*Descriptor, error) {
	return Describe(m)
}

// BeginLevel implements Writer.
func (m *Memory) BeginLevel(width, height int, downsample float64) error {
	if m.closed {
		return errors.New("pyramid is closed")
	}
	if m.open != nil {
		return errors.New("a level is already open for writing")
	}
	if width <= 0 || height <= 0 {
		return errors.Errorf("invalid level dimensions %dx%d", width, height)
	}
	m.open = &memoryLevel{
		width:      width,
		height:     height,
		downsample: downsample,
		pix:        make([]uint8, width*height*4),
	}
	return nil
}

// WriteTile implements Writer.
func (m *Memory) WriteTile(x, y int, t *models.Tile) error {
	if m.open == nil {
		return errors.New("no level open for writing")
	}
	l := m.open
	if x < 0 || y < 0 || x+t.Width > l.width || y+t.Height > l.height {
		return errors.Errorf("tile (%d, %d) %dx%d exceeds level bounds %dx%d",
			x, y, t.Width, t.Height, l.width, l.height)
	}
	for row := 0; row < t.Height; row++ {
		src := t.Pix[row*t.Width*4 : (row+1)*t.Width*4]
		dstOff := ((y+row)*l.width + x) * 4
		copy(l.pix[dstOff:dstOff+t.Width*4], src)
	}
	return nil
}

// EndLevel implements Writer.
func (m *Memory) EndLevel() error {
	if m.open == nil {
		return errors.New("no level open for writing")
	}
	m.levels = append(m.levels, m.open)
	m.open = nil
	return nil
}

// AbandonLevel discards an open, unfinished level.
func (m *Memory) AbandonLevel() {
	m.open = nil
}

// ReadTile implements Reader.
func (m *Memory) ReadTile(level, x, y, width, height int) (*models.Tile, error) {
	if level < 0 || level >= len(m.levels) {
		return nil, errors.Errorf("level %d out of range [0, %d)", level, len(m.levels))
	}
	l := m.levels[level]
	if x < 0 || y < 0 || width <= 0 || height <= 0 || x+width > l.width || y+height > l.height {
		return nil, errors.Errorf("window (%d, %d) %dx%d exceeds level bounds %dx%d",
			x, y, width, height, l.width, l.height)
	}
	t := models.NewTile(x, y, width, height)
	for row := 0; row < height; row++ {
		srcOff := ((y+row)*l.width + x) * 4
		copy(t.Pix[row*width*4:(row+1)*width*4], l.pix[srcOff:srcOff+width*4])
	}
	return t, nil
}

// Close implements Reader and Writer. An open, unfinished level is discarded.
func (m *Memory) Close() error {
	m.open = nil
	m.closed = true
	return nil
}
