package pipeline

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Othman-vram/Tissue-Extraction-Pipeline/pkg/pyramid"
)

// writeSlide encodes a deterministic 64x48 RGB gradient as a PNG slide.
func writeSlide(t *testing.T, path string) *image.NRGBA {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 64, 48))
	for y := 0; y < 48; y++ {
		for x := 0; x < 64; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: uint8(x * 4), G: uint8(y * 5), B: uint8(x ^ y), A: 255})
		}
	}
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, img))
	return img
}

func writeAnnotations(t *testing.T, path, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
}

const rectAnnotation = `{
	"type": "FeatureCollection",
	"features": [{
		"type": "Feature",
		"properties": {"classification": "tissue"},
		"geometry": {
			"type": "Polygon",
			"coordinates": [[[8, 8], [40, 8], [40, 32], [8, 32], [8, 8]]]
		}
	}]
}`

func testParams(t *testing.T) (*Params, string) {
	t.Helper()
	dir := t.TempDir()
	slidePath := filepath.Join(dir, "slide.png")
	annotationPath := filepath.Join(dir, "annotations.geojson")
	outputDir := filepath.Join(dir, "out")
	writeSlide(t, slidePath)
	writeAnnotations(t, annotationPath, rectAnnotation)

	return &Params{
		SlidePath:         slidePath,
		AnnotationPath:    annotationPath,
		OutputDir:         outputDir,
		TempDir:           filepath.Join(dir, "tmp"),
		TileSize:          32,
		MaskThreshold:     128,
		LevelSpec:         "",
		Interactive:       false,
		KeepIntermediates: true,
		Verbose:           false,
	}, dir
}

func TestProcessEndToEnd(t *testing.T) {
	params, dir := testParams(t)
	p := New(params)
	require.NoError(t, p.Process())

	out, err := pyramid.OpenTileStore(params.OutputDir)
	require.NoError(t, err)
	defer out.Close()

	// 64x48 slide with 32px tiles yields two pyramid levels.
	d, err := out.Descriptor()
	require.NoError(t, err)
	require.Equal(t, 2, d.LevelCount)
	assert.Equal(t, pyramid.Dims{Width: 64, Height: 48}, d.Dimensions[0])
	assert.Equal(t, pyramid.Dims{Width: 32, Height: 24}, d.Dimensions[1])

	// Level 0: the annotated rectangle [8, 40) x [8, 32) is opaque with the
	// slide's RGB carried through; everything else is transparent with RGB
	// still preserved.
	slide, err := pyramid.OpenTileStore(filepath.Join(dir, "tmp", "tissue_pyramid"))
	require.NoError(t, err)
	defer slide.Close()
	wantTile, err := slide.ReadTile(0, 0, 0, 64, 48)
	require.NoError(t, err)
	gotTile, err := out.ReadTile(0, 0, 0, 64, 48)
	require.NoError(t, err)

	alphaAt := func(x, y int) uint8 {
		return gotTile.Pix[gotTile.PixOffset(x, y)+3]
	}
	assert.Equal(t, uint8(255), alphaAt(8, 8))
	assert.Equal(t, uint8(255), alphaAt(39, 31))
	assert.Equal(t, uint8(255), alphaAt(20, 20))
	assert.Equal(t, uint8(0), alphaAt(7, 8))
	assert.Equal(t, uint8(0), alphaAt(40, 8))
	assert.Equal(t, uint8(0), alphaAt(8, 32))
	assert.Equal(t, uint8(0), alphaAt(60, 40))
	for i := 0; i < len(gotTile.Pix); i += 4 {
		require.Equal(t, wantTile.Pix[i], gotTile.Pix[i])
		require.Equal(t, wantTile.Pix[i+1], gotTile.Pix[i+1])
		require.Equal(t, wantTile.Pix[i+2], gotTile.Pix[i+2])
		a := gotTile.Pix[i+3]
		require.True(t, a == 0 || a == 255)
	}

	// Level 1: the rectangle lands at half scale, [4, 20) x [4, 16).
	l1, err := out.ReadTile(1, 0, 0, 32, 24)
	require.NoError(t, err)
	assert.Equal(t, uint8(255), l1.Pix[l1.PixOffset(5, 5)+3])
	assert.Equal(t, uint8(0), l1.Pix[l1.PixOffset(2, 2)+3])
	assert.Equal(t, uint8(0), l1.Pix[l1.PixOffset(25, 20)+3])

	// Per-level statistics cover both levels.
	stats := p.Stats()
	require.Len(t, stats, 2)
	assert.Equal(t, 0, stats[0].Level)
	assert.Equal(t, 1, stats[1].Level)
	// 32x24 tissue pixels in 64x48.
	assert.InDelta(t, 0.25, stats[0].TissueFraction, 1e-9)
}

func TestProcessIsIdempotent(t *testing.T) {
	params1, _ := testParams(t)
	require.NoError(t, New(params1).Process())
	params2, _ := testParams(t)
	require.NoError(t, New(params2).Process())

	out1, err := pyramid.OpenTileStore(params1.OutputDir)
	require.NoError(t, err)
	defer out1.Close()
	out2, err := pyramid.OpenTileStore(params2.OutputDir)
	require.NoError(t, err)
	defer out2.Close()

	for level := 0; level < 2; level++ {
		w, h := out1.LevelDimensions(level)
		t1, err := out1.ReadTile(level, 0, 0, w, h)
		require.NoError(t, err)
		t2, err := out2.ReadTile(level, 0, 0, w, h)
		require.NoError(t, err)
		assert.Equal(t, t1.Pix, t2.Pix, "level %d differs between runs", level)
	}
}

func TestProcessEmptyAnnotationsIsNonFatal(t *testing.T) {
	params, _ := testParams(t)
	writeAnnotations(t, params.AnnotationPath, `{"type": "FeatureCollection", "features": []}`)

	p := New(params)
	require.NoError(t, p.Process())

	out, err := pyramid.OpenTileStore(params.OutputDir)
	require.NoError(t, err)
	defer out.Close()

	tile, err := out.ReadTile(0, 0, 0, 64, 48)
	require.NoError(t, err)
	for i := 3; i < len(tile.Pix); i += 4 {
		require.Equal(t, uint8(0), tile.Pix[i])
	}
}

func TestProcessLevelSpecSelectsSubset(t *testing.T) {
	params, _ := testParams(t)
	params.LevelSpec = "1"

	p := New(params)
	require.NoError(t, p.Process())

	out, err := pyramid.OpenTileStore(params.OutputDir)
	require.NoError(t, err)
	defer out.Close()

	// Only level 1 was composited, stored as the single output level.
	require.Equal(t, 1, out.LevelCount())
	w, h := out.LevelDimensions(0)
	assert.Equal(t, 32, w)
	assert.Equal(t, 24, h)
}

func TestProcessInvalidLevelSpecFails(t *testing.T) {
	params, _ := testParams(t)
	params.LevelSpec = "9"

	err := New(params).Process()
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"9"`)
}

func TestProcessInteractivePromptRetriesOnBadInput(t *testing.T) {
	params, _ := testParams(t)
	params.Interactive = true

	p := New(params)
	p.SetPromptReader(strings.NewReader("bogus\n1\n"))
	require.NoError(t, p.Process())

	require.Equal(t, 1, len(p.Stats()))
	assert.Equal(t, 1, p.Stats()[0].Level)
}

func TestProcessCleansIntermediates(t *testing.T) {
	params, dir := testParams(t)
	params.KeepIntermediates = false

	require.NoError(t, New(params).Process())

	_, err := os.Stat(filepath.Join(dir, "tmp", "tissue_pyramid"))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(dir, "tmp", "mask_pyramid"))
	assert.True(t, os.IsNotExist(err))
}

func TestProcessAcceptsPrebuiltPyramidDirectory(t *testing.T) {
	params, dir := testParams(t)

	// First run converts the slide; the preserved tile store then serves
	// directly as input for a second run.
	require.NoError(t, New(params).Process())

	params2, _ := testParams(t)
	params2.SlidePath = filepath.Join(dir, "tmp", "tissue_pyramid")

	p := New(params2)
	require.NoError(t, p.Process())
	assert.Len(t, p.Stats(), 2)
}
