package pyramid

import (
	"fmt"
	"image"
	"image/draw"
	"image/png"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/Othman-vram/Tissue-Extraction-Pipeline/internal/models"
)

const manifestName = "manifest.yaml"

// storeManifest is the on-disk description of a tile store pyramid.
type storeManifest struct {
	TileSize int          `yaml:"tileSize"`
	Levels   []storeLevel `yaml:"levels"`
}

type storeLevel struct {
	Width      int     `yaml:"width"`
	Height     int     `yaml:"height"`
	Downsample float64 `yaml:"downsample"`
}

// TileStore is a directory-backed pyramid container: a manifest.yaml plus one
// PNG file per tile under level_N/ subdirectories. Tiles are written aligned
// to a fixed grid and levels are published to the manifest only on EndLevel,
// so an interrupted run leaves previously completed levels fully readable.
//
// TileStore implements LevelSource, Reader and Writer. Windowed reads
// assemble the requested window from the stored tiles that cover it, one
// decoded tile resident at a time.
type TileStore struct {
	dir      string
	manifest storeManifest

	open      *storeLevel
	openIndex int
}

// CreateTileStore initializes an empty tile store at dir with the given grid
// tile size. The directory is created if needed; an existing manifest is an
// error, a store is never appended to in place.
func CreateTileStore(dir string, tileSize int) (*TileStore, error) {
	if tileSize <= 0 {
		return nil, errors.Errorf("invalid tile size %d", tileSize)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, errors.Wrap(err, "creating tile store directory")
	}
	if _, err := os.Stat(filepath.Join(dir, manifestName)); err == nil {
		return nil, errors.Errorf("tile store already exists at %s", dir)
	}
	s := &TileStore{
		dir:      dir,
		manifest: storeManifest{TileSize: tileSize},
	}
	if err := s.writeManifest(); err != nil {
		return nil, err
	}
	return s, nil
}

// OpenTileStore opens an existing tile store for reading.
func OpenTileStore(dir string) (*TileStore, error) {
	data, err := os.ReadFile(filepath.Join(dir, manifestName))
	if err != nil {
		return nil, errors.Wrapf(ErrUnreadablePyramid, "reading manifest at %s: %v", dir, err)
	}
	var m storeManifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, errors.Wrapf(ErrUnreadablePyramid, "parsing manifest at %s: %v", dir, err)
	}
	if m.TileSize <= 0 {
		return nil, errors.Wrapf(ErrUnreadablePyramid, "manifest at %s has tile size %d", dir, m.TileSize)
	}
	return &TileStore{dir: dir, manifest: m}, nil
}

// TileSize returns the store's grid tile size.
func (s *TileStore) TileSize() int { return s.manifest.TileSize }

// Dir returns the store's root directory.
func (s *TileStore) Dir() string { return s.dir }

// LevelCount implements LevelSource.
func (s *TileStore) LevelCount() int { return len(s.manifest.Levels) }

// LevelDimensions implements LevelSource.
func (s *TileStore) LevelDimensions(level int) (int, int) {
	l := s.manifest.Levels[level]
	return l.Width, l.Height
}

// LevelDownsample implements LevelSource.
func (s *TileStore) LevelDownsample(level int) float64 {
	return s.manifest.Levels[level].Downsample
}

// Descriptor implements Reader.
func (s *TileStore) Descriptor() (*Descriptor, error) {
	return Describe(s)
}

// BeginLevel implements Writer.
func (s *TileStore) BeginLevel(width, height int, downsample float64) error {
	if s.open != nil {
		return errors.New("a level is already open for writing")
	}
	if width <= 0 || height <= 0 {
		return errors.Errorf("invalid level dimensions %dx%d", width, height)
	}
	index := len(s.manifest.Levels)
	if err := os.MkdirAll(s.levelDir(index), 0755); err != nil {
		return errors.Wrapf(err, "creating level %d directory", index)
	}
	s.open = &storeLevel{Width: width, Height: height, Downsample: downsample}
	s.openIndex = index
	return nil
}

// WriteTile implements Writer. Tile origins must be aligned to the store's
// grid; edge tiles may be clamped.
func (s *TileStore) WriteTile(x, y int, t *models.Tile) error {
	if s.open == nil {
		return errors.New("no level open for writing")
	}
	ts := s.manifest.TileSize
	if x%ts != 0 || y%ts != 0 {
		return errors.Errorf("tile origin (%d, %d) not aligned to grid size %d", x, y, ts)
	}
	if x < 0 || y < 0 || x+t.Width > s.open.Width || y+t.Height > s.open.Height {
		return errors.Errorf("tile (%d, %d) %dx%d exceeds level bounds %dx%d",
			x, y, t.Width, t.Height, s.open.Width, s.open.Height)
	}

	f, err := os.Create(s.tilePath(s.openIndex, x/ts, y/ts))
	if err != nil {
		return errors.Wrap(err, "creating tile file")
	}
	defer f.Close()

	img := &image.NRGBA{
		Pix:    t.Pix,
		Stride: t.Width * 4,
		Rect:   image.Rect(0, 0, t.Width, t.Height),
	}
	if err := png.Encode(f, img); err != nil {
		return errors.Wrap(err, "encoding tile")
	}
	return nil
}

// EndLevel implements Writer, publishing the open level to the manifest.
func (s *TileStore) EndLevel() error {
	if s.open == nil {
		return errors.New("no level open for writing")
	}
	s.manifest.Levels = append(s.manifest.Levels, *s.open)
	s.open = nil
	if err := s.writeManifest(); err != nil {
		s.manifest.Levels = s.manifest.Levels[:len(s.manifest.Levels)-1]
		return err
	}
	return nil
}

// AbandonLevel discards an open, unfinished level so the store can accept a
// new BeginLevel. Tiles already written for the abandoned level stay on disk
// but are never published to the manifest.
func (s *TileStore) AbandonLevel() {
	s.open = nil
}

// ReadTile implements Reader, assembling the window from the stored tiles
// that cover it.
func (s *TileStore) ReadTile(level, x, y, width, height int) (*models.Tile, error) {
	if level < 0 || level >= len(s.manifest.Levels) {
		return nil, errors.Errorf("level %d out of range [0, %d)", level, len(s.manifest.Levels))
	}
	l := s.manifest.Levels[level]
	if x < 0 || y < 0 || width <= 0 || height <= 0 || x+width > l.Width || y+height > l.Height {
		return nil, errors.Errorf("window (%d, %d) %dx%d exceeds level bounds %dx%d",
			x, y, width, height, l.Width, l.Height)
	}

	out := models.NewTile(x, y, width, height)
	dst := out.NRGBA()
	ts := s.manifest.TileSize
	for ty := y / ts; ty <= (y+height-1)/ts; ty++ {
		for tx := x / ts; tx <= (x+width-1)/ts; tx++ {
			src, err := s.loadTile(level, tx, ty)
			if err != nil {
				return nil, err
			}
			r := dst.Rect.Intersect(src.Bounds())
			draw.Draw(dst, r, src, r.Min, draw.Src)
		}
	}
	return out, nil
}

// Close implements Reader and Writer. An open, unfinished level is abandoned:
// its directory may remain on disk but it is never visible in the manifest.
func (s *TileStore) Close() error {
	s.open = nil
	return nil
}

// loadTile decodes one stored tile and positions it at its absolute level
// coordinates.
func (s *TileStore) loadTile(level, tx, ty int) (*image.NRGBA, error) {
	f, err := os.Open(s.tilePath(level, tx, ty))
	if err != nil {
		return nil, errors.Wrapf(err, "opening tile (%d, %d) of level %d", tx, ty, level)
	}
	defer f.Close()

	decoded, err := png.Decode(f)
	if err != nil {
		return nil, errors.Wrapf(err, "decoding tile (%d, %d) of level %d", tx, ty, level)
	}
	img, ok := decoded.(*image.NRGBA)
	if !ok {
		b := decoded.Bounds()
		img = image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
		draw.Draw(img, img.Rect, decoded, b.Min, draw.Src)
	}
	ts := s.manifest.TileSize
	img.Rect = img.Rect.Add(image.Pt(tx*ts, ty*ts))
	return img, nil
}

func (s *TileStore) levelDir(level int) string {
	return filepath.Join(s.dir, fmt.Sprintf("level_%d", level))
}

func (s *TileStore) tilePath(level, tx, ty int) string {
	return filepath.Join(s.levelDir(level), fmt.Sprintf("%d_%d.png", tx, ty))
}

// writeManifest persists the manifest atomically so readers never observe a
// half-written level list.
func (s *TileStore) writeManifest() error {
	data, err := yaml.Marshal(&s.manifest)
	if err != nil {
		return errors.Wrap(err, "marshaling manifest")
	}
	tmp := filepath.Join(s.dir, manifestName+".tmp")
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return errors.Wrap(err, "writing manifest")
	}
	if err := os.Rename(tmp, filepath.Join(s.dir, manifestName)); err != nil {
		return errors.Wrap(err, "publishing manifest")
	}
	return nil
}
