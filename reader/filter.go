package reader

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/go-spatial/geom"
	"github.com/paulsmith/gogeos/geos"

	"github.com/geolake/stac-reader/common"
	"github.com/geolake/stac-reader/dataset"
	"github.com/geolake/stac-reader/service/geometry"
)

// ExtraDimensionsFilter extracts the equality filters from the property
// mapping: for each cube:dimensions.<dim>... property, the literal operand
// of the eq / = nodes of its process graph (the last node wins).
func (r *Reader) ExtraDimensionsFilter() (common.OrderedMap[interface{}], error) {
	var filter common.OrderedMap[interface{}]
	if r.properties == nil {
		return filter, nil
	}
	for _, name := range r.properties.Keys() {
		if !strings.HasPrefix(name, "cube:dimensions") {
			continue
		}
		fields := strings.Split(name, ".")
		if len(fields) < 2 {
			return filter, fmt.Errorf("ExtraDimensionsFilter: unexpected property name: %s", name)
		}
		dimension := fields[1]

		prop, _ := r.properties.Get(name)
		if prop.ProcessGraph == nil {
			return filter, fmt.Errorf("ExtraDimensionsFilter: property %s has no process_graph", name)
		}
		value, found, err := prop.ProcessGraph.EqualityValue()
		if err != nil {
			return filter, fmt.Errorf("ExtraDimensionsFilter[%s]: %w", name, err)
		}
		if found {
			filter.Set(dimension, value)
		}
	}
	return filter, nil
}

// FilterByExtraDimensions narrows the dataset to the single coordinate value
// of each filtered extra dimension. The dimensions are kept with length 1.
func (r *Reader) FilterByExtraDimensions(ds *dataset.Dataset) (*dataset.Dataset, error) {
	filter, err := r.ExtraDimensionsFilter()
	if err != nil {
		return nil, fmt.Errorf("FilterByExtraDimensions.%w", err)
	}
	for _, dimension := range filter.Keys() {
		value, _ := filter.Get(dimension)
		if ds, err = ds.Sel(map[string]interface{}{dimension: value}); err != nil {
			return nil, fmt.Errorf("FilterByExtraDimensions.Sel[%s]: %w", dimension, err)
		}
	}
	return ds, nil
}

// FilterItems returns the items whose geometry intersects the bounding box
// and whose datetime falls inside the temporal extent. Items without
// geometry or datetime pass the corresponding check.
func (r *Reader) FilterItems() ([]common.Item, error) {
	bboxGeom, err := geos.FromWKT(r.bbox.WKT())
	if err != nil {
		return nil, fmt.Errorf("FilterItems.FromWKT: %w", err)
	}
	pbbox := bboxGeom.Prepare()

	filtered := make([]common.Item, 0, len(r.items))
	for _, item := range r.items {
		if len(item.Geometry) > 0 {
			g, err := geometry.UnmarshalGeometry(item.Geometry)
			if err != nil {
				return nil, fmt.Errorf("FilterItems[%s].%w", item.ID, err)
			}
			itemGeom, err := geometry.GeomToGeos(g)
			if err != nil {
				return nil, fmt.Errorf("FilterItems[%s].%w", item.ID, err)
			}
			intersects, err := pbbox.Intersects(itemGeom)
			if err != nil {
				return nil, fmt.Errorf("FilterItems[%s].Intersects: %w", item.ID, err)
			}
			if !intersects {
				continue
			}
		}
		if !r.extent.IsZero() {
			if datetime, err := item.Datetime(); err == nil && !r.extent.Contains(datetime) {
				continue
			}
		}
		filtered = append(filtered, item)
	}
	runtime.KeepAlive(bboxGeom)
	return filtered, nil
}

// CoveredGeometry returns the union of the footprints of the items,
// simplified. Nil when no item carries a geometry.
func CoveredGeometry(items []common.Item) (geom.Geometry, error) {
	var footprints []*geos.Geometry
	for _, item := range items {
		if len(item.Geometry) == 0 {
			continue
		}
		g, err := geometry.UnmarshalGeometry(item.Geometry)
		if err != nil {
			return nil, fmt.Errorf("CoveredGeometry[%s].%w", item.ID, err)
		}
		footprint, err := geometry.GeomToGeos(g)
		if err != nil {
			return nil, fmt.Errorf("CoveredGeometry[%s].%w", item.ID, err)
		}
		footprints = append(footprints, footprint)
	}
	if len(footprints) == 0 {
		return nil, nil
	}
	aoi, err := geometry.Union(footprints, geometry.TOLERANCE_GEOG)
	if err != nil {
		return nil, fmt.Errorf("CoveredGeometry.%w", err)
	}
	covered, err := geometry.GeosToGeom(aoi)
	if err != nil {
		return nil, fmt.Errorf("CoveredGeometry.%w", err)
	}
	return covered, nil
}
