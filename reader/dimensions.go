package reader

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"

	"github.com/go-spatial/geom"

	"github.com/geolake/stac-reader/common"
)

// ErrDimensionNotFound is returned when no cube dimension matches the criteria
type ErrDimensionNotFound struct {
	Criteria string
}

func (e ErrDimensionNotFound) Error() string {
	return fmt.Sprintf("dimension not found: %s", e.Criteria)
}

// Polygon returns the bounding box of the query as a rectangular polygon,
// corners ordered (xmin,ymin) (xmin,ymax) (xmax,ymax) (xmax,ymin)
func (r *Reader) Polygon() geom.Polygon {
	return r.bbox.Polygon()
}

func cubeDimensions(item common.Item) (common.OrderedMap[common.CubeDimension], error) {
	if !item.Properties.HasCubeDimensions() {
		return common.OrderedMap[common.CubeDimension]{}, fmt.Errorf("item %s has no cube:dimensions property", item.ID)
	}
	return item.Properties.CubeDimensions, nil
}

// DimensionForAxis returns the name of the first dimension of the item whose
// axis matches, in document order
func DimensionForAxis(item common.Item, axis common.Axis) (string, error) {
	dims, err := cubeDimensions(item)
	if err != nil {
		return "", fmt.Errorf("DimensionForAxis: %w", err)
	}
	for _, name := range dims.Keys() {
		if dim, _ := dims.Get(name); dim.Axis != "" && dim.Axis == axis {
			return name, nil
		}
	}
	return "", ErrDimensionNotFound{Criteria: fmt.Sprintf("axis=%s", axis)}
}

// DimensionName returns the name of the first dimension of the item matching
// the axis or the type, in document order. At least one criterion is required.
func DimensionName(item common.Item, axis common.Axis, dimType common.DimensionType) (string, error) {
	if axis == "" && dimType == "" {
		return "", fmt.Errorf("DimensionName: either an axis or a type is required")
	}
	dims, err := cubeDimensions(item)
	if err != nil {
		return "", fmt.Errorf("DimensionName: %w", err)
	}
	for _, name := range dims.Keys() {
		dim, _ := dims.Get(name)
		if axis != "" && dim.Axis != "" && dim.Axis == axis {
			return name, nil
		}
		if dimType != "" && dim.Type != "" && dim.Type == dimType {
			return name, nil
		}
	}
	return "", ErrDimensionNotFound{Criteria: fmt.Sprintf("axis=%s type=%s", axis, dimType)}
}

// EPSG returns the reference system of the item: the last one declared
// across all dimensions in document order, not the first.
func EPSG(item common.Item) (int, error) {
	dims, err := cubeDimensions(item)
	if err != nil {
		return 0, fmt.Errorf("EPSG: %w", err)
	}
	var ref interface{}
	for _, name := range dims.Keys() {
		if dim, _ := dims.Get(name); dim.ReferenceSystem != nil {
			ref = dim.ReferenceSystem
		}
	}
	if ref == nil {
		return 0, ErrDimensionNotFound{Criteria: "reference_system"}
	}
	epsg, err := toInt(ref)
	if err != nil {
		return 0, fmt.Errorf("EPSG: %w", err)
	}
	return epsg, nil
}

// Resolution returns the pixel resolution of the item: the absolute step of
// the last dimension declaring one, in document order.
func Resolution(item common.Item) (float64, error) {
	dims, err := cubeDimensions(item)
	if err != nil {
		return 0, fmt.Errorf("Resolution: %w", err)
	}
	var step interface{}
	for _, name := range dims.Keys() {
		if dim, _ := dims.Get(name); dim.Step != nil {
			step = dim.Step
		}
	}
	if step == nil {
		return 0, ErrDimensionNotFound{Criteria: "step"}
	}
	resolution, err := toFloat(step)
	if err != nil {
		return 0, fmt.Errorf("Resolution: %w", err)
	}
	return math.Abs(resolution), nil
}

func toFloat(v interface{}) (float64, error) {
	switch v := v.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case json.Number:
		return v.Float64()
	case string:
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return 0, fmt.Errorf("cannot convert %q to a number", v)
		}
		return f, nil
	}
	return 0, fmt.Errorf("cannot convert %T to a number", v)
}

func toInt(v interface{}) (int, error) {
	f, err := toFloat(v)
	if err != nil {
		return 0, err
	}
	return int(f), nil
}
