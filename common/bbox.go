package common

import (
	"fmt"

	"github.com/go-spatial/geom"
)

// BoundingBox is a geographic extent in EPSG:4326 coordinates.
type BoundingBox struct {
	West  float64 `json:"west"`
	South float64 `json:"south"`
	East  float64 `json:"east"`
	North float64 `json:"north"`
}

// NewBoundingBox creates a BoundingBox from a (west, south, east, north) slice
func NewBoundingBox(coords []float64) (BoundingBox, error) {
	if len(coords) != 4 {
		return BoundingBox{}, fmt.Errorf("bbox: invalid size: %d", len(coords))
	}
	bbox := BoundingBox{West: coords[0], South: coords[1], East: coords[2], North: coords[3]}
	if err := bbox.Validate(); err != nil {
		return BoundingBox{}, err
	}
	return bbox, nil
}

// Validate checks the ordering and the coordinate ranges
func (b BoundingBox) Validate() error {
	if !(-180 <= b.West && b.West <= b.East && b.East <= 180) {
		return fmt.Errorf("bbox: invalid west=%v east=%v", b.West, b.East)
	}
	if !(-90 <= b.South && b.South <= b.North && b.North <= 90) {
		return fmt.Errorf("bbox: invalid south=%v north=%v", b.South, b.North)
	}
	return nil
}

// Polygon returns the equivalent rectangle with corners ordered
// (xmin,ymin), (xmin,ymax), (xmax,ymax), (xmax,ymin).
func (b BoundingBox) Polygon() geom.Polygon {
	return geom.Polygon{{
		{b.West, b.South},
		{b.West, b.North},
		{b.East, b.North},
		{b.East, b.South},
	}}
}

// WKT returns the rectangle as a closed well-known-text polygon
func (b BoundingBox) WKT() string {
	return fmt.Sprintf("POLYGON((%g %g,%g %g,%g %g,%g %g,%g %g))",
		b.West, b.South, b.West, b.North, b.East, b.North, b.East, b.South, b.West, b.South)
}

// Slice returns the bbox as a (west, south, east, north) slice
func (b BoundingBox) Slice() []float64 {
	return []float64{b.West, b.South, b.East, b.North}
}

func (b BoundingBox) String() string {
	return fmt.Sprintf("(%g, %g, %g, %g)", b.West, b.South, b.East, b.North)
}
