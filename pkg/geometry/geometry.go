// Package geometry loads vector tissue annotations and normalizes them into
// a flat polygon list in base-level pixel coordinates.
package geometry

import (
	"os"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/pkg/errors"

	"github.com/Othman-vram/Tissue-Extraction-Pipeline/internal/models"
)

// ErrEmptyGeometry reports that zero polygons remain after normalization.
// It is reported, not fatal: a caller may proceed and produce an
// all-transparent mask when no tissue is annotated.
var ErrEmptyGeometry = errors.New("empty geometry")

// Load reads and parses a GeoJSON annotation document. The features are
// expected to be in the same coordinate space as the image pyramid's base
// level.
func Load(path string) (*geojson.FeatureCollection, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "reading annotation file")
	}
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, errors.Wrap(err, "parsing GeoJSON")
	}
	return fc, nil
}

// Normalize flattens the parsed features into a canonical Geometry in
// base-level pixel coordinates. Multipolygons become independent polygons
// sharing one fill rule; non-areal feature types are skipped. Coordinates
// outside [0, baseWidth) x [0, baseHeight) are retained as-is — clipping
// happens implicitly during per-tile rasterization, not here.
//
// Returns ErrEmptyGeometry alongside an empty Geometry when no polygons
// remain; the caller decides whether that aborts the run.
func Normalize(fc *geojson.FeatureCollection, baseWidth, baseHeight int) (models.Geometry, error) {
	_ = baseWidth
	_ = baseHeight

	var geom models.Geometry
	for _, f := range fc.Features {
		switch g := f.Geometry.(type) {
		case orb.Polygon:
			if p, ok := convertPolygon(g); ok {
				geom = append(geom, p)
			}
		case orb.MultiPolygon:
			for _, sub := range g {
				if p, ok := convertPolygon(sub); ok {
					geom = append(geom, p)
				}
			}
		default:
			// Points, lines and other non-areal types carry no tissue region.
		}
	}
	if geom.Empty() {
		return models.Geometry{}, ErrEmptyGeometry
	}
	return geom, nil
}

// convertPolygon translates an orb polygon (first ring exterior, remaining
// rings holes) into the pipeline's model, closing unclosed rings.
func convertPolygon(p orb.Polygon) (models.Polygon, bool) {
	if len(p) == 0 || len(p[0]) < 3 {
		return models.Polygon{}, false
	}
	out := models.Polygon{Exterior: convertRing(p[0])}
	for _, hole := range p[1:] {
		if len(hole) < 3 {
			continue
		}
		out.Holes = append(out.Holes, convertRing(hole))
	}
	return out, true
}

func convertRing(r orb.Ring) models.Ring {
	ring := make(models.Ring, 0, len(r)+1)
	for _, pt := range r {
		ring = append(ring, models.Point{X: pt[0], Y: pt[1]})
	}
	if !ring.Closed() && len(ring) > 0 {
		ring = append(ring, ring[0])
	}
	return ring
}
