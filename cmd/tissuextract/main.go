package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/Othman-vram/Tissue-Extraction-Pipeline/pkg/config"
	"github.com/Othman-vram/Tissue-Extraction-Pipeline/pkg/pipeline"
)

func main() {
	// Parse command line arguments
	slidePath := flag.String("slide", "", "Input slide image (PNG/JPEG) or an already-converted pyramid directory")
	annotationPath := flag.String("annotations", "", "GeoJSON tissue annotation file")
	outputDir := flag.String("output", "extracted_tissue", "Output RGBA pyramid directory")
	tempDir := flag.String("temp-dir", "", "Directory for intermediate pyramids (default: system temp)")
	levelSpec := flag.String("levels", "", "Pyramid levels to process, e.g. '3', '0,2-4' or 'all' (default: prompt)")
	tileSize := flag.Int("tile-size", 0, "Streaming tile size in pixels (0 = config value)")
	threshold := flag.Int("threshold", 0, "Mask threshold in 1-255 (0 = config value)")
	maxLevels := flag.Int("max-levels", 0, "Cap on pyramid levels to build (0 = all)")
	keepIntermediates := flag.Bool("keep-intermediates", true, "Keep intermediate pyramids after completion")
	noPrompt := flag.Bool("no-prompt", false, "Never prompt for levels; empty -levels selects all")
	configPath := flag.String("config", "tissuextract.yaml", "Configuration YAML file")
	flag.Parse()

	// Validate inputs
	if *slidePath == "" || *annotationPath == "" {
		flag.Usage()
		os.Exit(1)
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Explicit flags win over the configuration file.
	explicit := make(map[string]bool)
	flag.Visit(func(f *flag.Flag) { explicit[f.Name] = true })
	if !explicit["tile-size"] {
		*tileSize = cfg.Processing.TileSize
	}
	if !explicit["threshold"] {
		*threshold = cfg.Processing.MaskThreshold
	}
	if !explicit["max-levels"] {
		*maxLevels = cfg.Processing.MaxLevels
	}
	if !explicit["keep-intermediates"] {
		*keepIntermediates = cfg.Output.KeepIntermediates
	}
	if !explicit["levels"] {
		*levelSpec = cfg.Selection.Levels
	}
	if *tileSize <= 0 {
		log.Fatalf("Invalid tile size: %d", *tileSize)
	}
	if *threshold < 1 || *threshold > 255 {
		log.Fatalf("Invalid mask threshold: %d (must be in 1-255)", *threshold)
	}

	fmt.Println("================================")
	fmt.Println("TISSUE EXTRACTION PIPELINE")
	fmt.Println("Slide + GeoJSON annotations -> pyramidal RGBA with transparent background")
	fmt.Println("================================")
	fmt.Printf("Input slide: %s\n", *slidePath)
	fmt.Printf("Input annotations: %s\n", *annotationPath)
	fmt.Printf("Final output: %s\n", *outputDir)

	params := &pipeline.Params{
		SlidePath:         *slidePath,
		AnnotationPath:    *annotationPath,
		OutputDir:         *outputDir,
		TempDir:           *tempDir,
		TileSize:          *tileSize,
		MaskThreshold:     uint8(*threshold),
		MaxLevels:         *maxLevels,
		LevelSpec:         *levelSpec,
		Interactive:       cfg.Selection.Interactive && !*noPrompt,
		KeepIntermediates: *keepIntermediates,
		Verbose:           cfg.Output.Verbose,
	}

	p := pipeline.New(params)
	if err := p.Process(); err != nil {
		log.Fatalf("Pipeline failed: %v", err)
	}

	fmt.Println("\nOutput format:")
	fmt.Println("- RGBA pyramidal tile store")
	fmt.Println("- Transparent background")
	fmt.Println("- Opaque tissue regions")
	fmt.Println("- Preserved pyramid structure")
}
