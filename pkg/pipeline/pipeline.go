// Package pipeline orchestrates the tissue extraction run: converting the
// input slide into a pyramid, rasterizing the annotation mask pyramid,
// reconciling the two, and compositing the selected levels into the RGBA
// output pyramid.
package pipeline

import (
	"bufio"
	"fmt"
	"image"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	// Slide images arrive as PNG or JPEG planes.
	_ "image/jpeg"
	_ "image/png"

	"github.com/pkg/errors"

	"github.com/Othman-vram/Tissue-Extraction-Pipeline/internal/models"
	"github.com/Othman-vram/Tissue-Extraction-Pipeline/pkg/align"
	"github.com/Othman-vram/Tissue-Extraction-Pipeline/pkg/compositor"
	"github.com/Othman-vram/Tissue-Extraction-Pipeline/pkg/geometry"
	"github.com/Othman-vram/Tissue-Extraction-Pipeline/pkg/metrics"
	"github.com/Othman-vram/Tissue-Extraction-Pipeline/pkg/pyramid"
	"github.com/Othman-vram/Tissue-Extraction-Pipeline/pkg/rasterizer"
	"github.com/Othman-vram/Tissue-Extraction-Pipeline/pkg/selection"
)

// Params holds the pipeline configuration for one run.
type Params struct {
	// SlidePath is the input slide: a PNG/JPEG plane to be pyramided, or a
	// directory holding an already-converted tile store pyramid.
	SlidePath string

	// AnnotationPath is the GeoJSON tissue annotation document.
	AnnotationPath string

	// OutputDir receives the RGBA output pyramid as a tile store.
	OutputDir string

	// TempDir holds the converted slide pyramid and the intermediate mask
	// pyramid. Empty means a fresh directory under the system temp root.
	TempDir string

	// TileSize is the streaming window edge in pixels for every tiled stage.
	TileSize int

	// MaskThreshold is the mask sample value above which a pixel counts as
	// tissue.
	MaskThreshold uint8

	// MaxLevels caps how many mask pyramid levels are built; 0 builds one
	// for every image pyramid level.
	MaxLevels int

	// LevelSpec selects which pyramid levels to composite, in the level
	// selection grammar. Empty with Interactive set prompts on stdin;
	// empty without Interactive selects every usable level.
	LevelSpec string

	// Interactive enables the stdin level selection prompt.
	Interactive bool

	// KeepIntermediates preserves the temp-dir pyramids after the run.
	KeepIntermediates bool

	// Verbose controls progress output.
	Verbose bool
}

// Pipeline runs the tissue extraction process:
// 1. Converting the input slide into a pyramidal tile store
// 2. Normalizing the GeoJSON annotations into base-level polygons
// 3. Rasterizing the binary mask pyramid, level by level
// 4. Aligning the image and mask pyramids into level plans
// 5. Selecting the levels to materialize
// 6. Streaming tile-wise RGBA compositing for each selected level
type Pipeline struct {
	params *Params
	stats  []metrics.LevelStats

	// prompt is where the interactive level selection reads from; stdin
	// outside of tests.
	prompt io.Reader

	elapsed time.Duration
}

// New creates a pipeline instance with the provided parameters.
func New(params *Params) *Pipeline {
	return &Pipeline{
		params: params,
		prompt: os.Stdin,
	}
}

// SetPromptReader redirects the interactive level selection input.
func (p *Pipeline) SetPromptReader(r io.Reader) {
	p.prompt = r
}

// Stats returns the per-level coverage statistics of the completed run.
func (p *Pipeline) Stats() []metrics.LevelStats {
	return p.stats
}

// Elapsed returns the wall time of the completed run.
func (p *Pipeline) Elapsed() time.Duration {
	return p.elapsed
}

// Process runs the complete extraction pipeline.
func (p *Pipeline) Process() error {
	start := time.Now()

	tempDir := p.params.TempDir
	if tempDir == "" {
		var err error
		tempDir, err = os.MkdirTemp("", "tissue_pipeline_")
		if err != nil {
			return errors.Wrap(err, "creating temp directory")
		}
	} else if err := os.MkdirAll(tempDir, 0755); err != nil {
		return errors.Wrap(err, "creating temp directory")
	}
	imageDir := filepath.Join(tempDir, "tissue_pyramid")
	maskDir := filepath.Join(tempDir, "mask_pyramid")
	p.logf("Working directory: %s", tempDir)

	// Step 1: Convert the slide into a pyramidal tile store.
	p.logf("Step 1: Converting slide to pyramidal tile store...")
	imgStore, err := p.openImagePyramid(imageDir)
	if err != nil {
		return errors.Wrap(err, "failed to convert slide")
	}
	defer imgStore.Close()
	imgDesc, err := imgStore.Descriptor()
	if err != nil {
		return errors.Wrap(err, "failed to reflect image pyramid")
	}
	p.logf("Image pyramid ready: %d levels, base %dx%d",
		imgDesc.LevelCount, imgDesc.Dimensions[0].Width, imgDesc.Dimensions[0].Height)

	// Step 2: Load and normalize the annotations.
	p.logf("Step 2: Loading annotations...")
	fc, err := geometry.Load(p.params.AnnotationPath)
	if err != nil {
		return errors.Wrap(err, "failed to load annotations")
	}
	geom, err := geometry.Normalize(fc, imgDesc.Dimensions[0].Width, imgDesc.Dimensions[0].Height)
	if err != nil {
		if !errors.Is(err, geometry.ErrEmptyGeometry) {
			return errors.Wrap(err, "failed to normalize annotations")
		}
		// No tissue annotated: proceed and produce an all-transparent mask.
		p.logf("Warning: annotation document contains no polygons; mask will be empty")
	}
	p.logf("Normalized %d polygons", len(geom))

	// Step 3: Rasterize the mask pyramid, one level at a time.
	p.logf("Step 3: Rasterizing mask pyramid...")
	maskStore, err := pyramid.CreateTileStore(maskDir, p.params.TileSize)
	if err != nil {
		return errors.Wrap(err, "failed to create mask store")
	}
	defer maskStore.Close()
	if err := p.rasterizeMaskPyramid(geom, imgDesc, maskStore); err != nil {
		return err
	}

	// Step 4: Reconcile the two pyramids.
	p.logf("Step 4: Aligning image and mask pyramids...")
	maskDesc, err := maskStore.Descriptor()
	if err != nil {
		return errors.Wrap(err, "failed to reflect mask pyramid")
	}
	plans, err := align.Plan(imgDesc, maskDesc)
	if err != nil {
		return errors.Wrap(err, "failed to align pyramids")
	}
	p.logf("Available levels - Tissue: %d, Mask: %d, Usable: %d",
		imgDesc.LevelCount, maskDesc.LevelCount, len(plans))

	// Step 5: Select the levels to materialize.
	selected, err := p.selectLevels(imgDesc.LevelCount, maskDesc.LevelCount, len(plans))
	if err != nil {
		return err
	}
	p.logf("Step 5: Processing %d pyramid levels: %v", len(selected), selected)

	// Step 6: Composite each selected level into the output pyramid.
	p.logf("Step 6: Compositing selected levels...")
	outStore, err := pyramid.CreateTileStore(p.params.OutputDir, p.params.TileSize)
	if err != nil {
		return errors.Wrap(err, "failed to create output store")
	}
	defer outStore.Close()
	opts := compositor.Options{
		TileSize:      p.params.TileSize,
		MaskThreshold: p.params.MaskThreshold,
	}
	for _, level := range selected {
		res, err := compositor.Composite(plans[level], imgStore, maskStore, outStore, opts)
		if err != nil {
			var tileErr *compositor.TileError
			if errors.As(err, &tileErr) {
				// The failed level is abandoned; completed levels stay on
				// disk as a valid but incomplete output pyramid.
				p.logf("Warning: aborted level %d: %v", level, err)
				outStore.AbandonLevel()
				continue
			}
			return errors.Wrapf(err, "failed to composite level %d", level)
		}
		stats := metrics.Summarize(res)
		p.stats = append(p.stats, stats)
		p.logf("  %s", stats)
	}

	p.elapsed = time.Since(start)

	// Step 7: Summary and cleanup.
	if !p.params.KeepIntermediates {
		if err := os.RemoveAll(imageDir); err != nil {
			p.logf("Warning: could not remove %s: %v", imageDir, err)
		}
		if err := os.RemoveAll(maskDir); err != nil {
			p.logf("Warning: could not remove %s: %v", maskDir, err)
		}
		p.logf("Intermediate pyramids cleaned up")
	} else {
		p.logf("Intermediate pyramids preserved in %s", tempDir)
	}
	p.printSummary()

	return nil
}

// openImagePyramid opens the slide as a pyramid. A directory is treated as
// an already-converted tile store; anything else is decoded and pyramided
// into the temp directory.
func (p *Pipeline) openImagePyramid(imageDir string) (*pyramid.TileStore, error) {
	info, err := os.Stat(p.params.SlidePath)
	if err != nil {
		return nil, errors.Wrap(err, "opening slide")
	}
	if info.IsDir() {
		return pyramid.OpenTileStore(p.params.SlidePath)
	}

	f, err := os.Open(p.params.SlidePath)
	if err != nil {
		return nil, errors.Wrap(err, "opening slide")
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	if err != nil {
		return nil, errors.Wrap(err, "decoding slide image")
	}

	store, err := pyramid.CreateTileStore(imageDir, p.params.TileSize)
	if err != nil {
		return nil, err
	}
	if err := pyramid.BuildFromImage(img, store, p.params.TileSize, p.params.MaxLevels); err != nil {
		return nil, err
	}
	return store, nil
}

// rasterizeMaskPyramid builds one mask level per image pyramid level,
// re-rasterizing the geometry at each level's resolution. A rasterization
// failure abandons that level only and the build continues; the aligner and
// the compositor's scale correction absorb the shorter mask pyramid.
func (p *Pipeline) rasterizeMaskPyramid(geom models.Geometry, imgDesc *pyramid.Descriptor, maskStore *pyramid.TileStore) error {
	levels := imgDesc.LevelCount
	if p.params.MaxLevels > 0 && p.params.MaxLevels < levels {
		levels = p.params.MaxLevels
	}
	for level := 0; level < levels; level++ {
		dims := imgDesc.Dimensions[level]
		err := rasterizer.RasterizeLevel(geom, dims.Width, dims.Height,
			imgDesc.Downsamples[level], maskStore, p.params.TileSize)
		if err != nil {
			if errors.Is(err, rasterizer.ErrRasterization) {
				p.logf("Warning: aborted mask level %d: %v", level, err)
				maskStore.AbandonLevel()
				continue
			}
			return errors.Wrapf(err, "failed to rasterize mask level %d", level)
		}
		p.logf("  mask level %d: %dx%d", level, dims.Width, dims.Height)
	}
	return nil
}

// selectLevels resolves the level specification, prompting on stdin when
// interactive and no specification was supplied. An invalid interactive
// entry re-prompts; an invalid flag-supplied specification is an error.
func (p *Pipeline) selectLevels(imageLevels, maskLevels, usable int) ([]int, error) {
	spec := p.params.LevelSpec
	if spec != "" || !p.params.Interactive {
		return selection.Parse(spec, usable)
	}

	fmt.Print(selection.PromptText(imageLevels, maskLevels, usable))
	scanner := bufio.NewScanner(p.prompt)
	for {
		fmt.Print("\nEnter pyramid levels to process (default: all): ")
		if !scanner.Scan() {
			// EOF or interrupt: fall back to every usable level.
			fmt.Println()
			p.logf("No selection read, using all %d levels", usable)
			return selection.Parse("", usable)
		}
		levels, err := selection.Parse(scanner.Text(), usable)
		if err != nil {
			fmt.Printf("%v\n", err)
			continue
		}
		return levels, nil
	}
}

// printSummary reports timing, sizes and per-level statistics.
func (p *Pipeline) printSummary() {
	if !p.params.Verbose {
		return
	}
	fmt.Println("\n============================================================")
	fmt.Println("PIPELINE COMPLETED")
	fmt.Println("============================================================")
	fmt.Printf("Total processing time: %.1f seconds\n", p.elapsed.Seconds())
	if size, err := pathSize(p.params.SlidePath); err == nil {
		fmt.Printf("Input slide size: %.1f MB\n", float64(size)/(1024*1024))
	}
	if size, err := pathSize(p.params.OutputDir); err == nil {
		fmt.Printf("Output RGBA size: %.1f MB\n", float64(size)/(1024*1024))
	}
	fmt.Printf("Final output: %s\n", p.params.OutputDir)
	fmt.Println("\nLevel statistics:")
	for _, s := range p.stats {
		fmt.Printf("  %s\n", s)
	}
}

// pathSize sums the bytes under a file or directory.
func pathSize(path string) (int64, error) {
	var total int64
	err := filepath.WalkDir(path, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		total += info.Size()
		return nil
	})
	return total, err
}

// logf prints a progress line when verbose output is enabled.
func (p *Pipeline) logf(format string, args ...interface{}) {
	if !p.params.Verbose {
		return
	}
	fmt.Printf(format+"\n", args...)
}
