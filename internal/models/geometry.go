package models

// Point is a single vertex in base-level (level 0) pixel coordinates.
type Point struct {
	X, Y float64
}

// Ring is a closed sequence of points. The first and last point are equal.
// Rings are assumed non-self-intersecting per the annotation input contract;
// malformed rings degrade rasterization quality but never fail the pipeline.
type Ring []Point

// Closed reports whether the ring's first and last points coincide.
func (r Ring) Closed() bool {
	if len(r) < 2 {
		return false
	}
	return r[0] == r[len(r)-1]
}

// Bounds returns the axis-aligned bounding box of the ring.
// An empty ring yields a zero box with ok=false.
func (r Ring) Bounds() (minX, minY, maxX, maxY float64, ok bool) {
	if len(r) == 0 {
		return 0, 0, 0, 0, false
	}
	minX, minY = r[0].X, r[0].Y
	maxX, maxY = r[0].X, r[0].Y
	for _, p := range r[1:] {
		if p.X < minX {
			minX = p.X
		}
		if p.X > maxX {
			maxX = p.X
		}
		if p.Y < minY {
			minY = p.Y
		}
		if p.Y > maxY {
			maxY = p.Y
		}
	}
	return minX, minY, maxX, maxY, true
}

// Polygon is one annotated region: an exterior boundary plus zero or more
// hole boundaries. Multipolygon features are flattened into independent
// Polygons during normalization.
type Polygon struct {
	// Exterior is the outer boundary of the region.
	Exterior Ring

	// Holes are interior boundaries excluded from the region.
	Holes []Ring
}

// Geometry is the canonical, normalized annotation set: an ordered sequence
// of polygons in base-level pixel coordinates. It is read-only after
// normalization and owned by the mask rasterizer for the duration of a run.
type Geometry []Polygon

// Empty reports whether the geometry contains no polygons.
func (g Geometry) Empty() bool {
	return len(g) == 0
}
