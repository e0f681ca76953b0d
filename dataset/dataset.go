// Package dataset holds a small in-memory labeled array collection: named
// dimensions carrying coordinate labels, and variables laid out over those
// dimensions in row-major order. It is the target of the extra-dimension
// filters applied after raster loading.
package dataset

import (
	"fmt"
)

// Variable is an n-dimensional array over a subset of the dataset dimensions
type Variable struct {
	Dims []string  `json:"dims"`
	Data []float64 `json:"data"`
}

// Dataset is a set of variables sharing named, labeled dimensions
type Dataset struct {
	dims   []string
	sizes  map[string]int
	coords map[string][]interface{}
	vars   map[string]Variable
}

// New creates an empty dataset
func New() *Dataset {
	return &Dataset{
		sizes:  map[string]int{},
		coords: map[string][]interface{}{},
		vars:   map[string]Variable{},
	}
}

// AddDimension declares a dimension with its coordinate labels
func (d *Dataset) AddDimension(name string, coords []interface{}) error {
	if _, ok := d.sizes[name]; ok {
		return fmt.Errorf("dataset: dimension %s already exists", name)
	}
	if len(coords) == 0 {
		return fmt.Errorf("dataset: dimension %s has no coordinates", name)
	}
	d.dims = append(d.dims, name)
	d.sizes[name] = len(coords)
	d.coords[name] = coords
	return nil
}

// AddVariable adds a variable laid out over the given dimensions, row-major
func (d *Dataset) AddVariable(name string, dims []string, data []float64) error {
	size := 1
	for _, dim := range dims {
		n, ok := d.sizes[dim]
		if !ok {
			return fmt.Errorf("dataset: variable %s: unknown dimension %s", name, dim)
		}
		size *= n
	}
	if len(data) != size {
		return fmt.Errorf("dataset: variable %s: expected %d values, got %d", name, size, len(data))
	}
	d.vars[name] = Variable{Dims: dims, Data: data}
	return nil
}

// Dimensions returns the dimension names in declaration order
func (d *Dataset) Dimensions() []string {
	return d.dims
}

// Size returns the length of the dimension, 0 if unknown
func (d *Dataset) Size(dim string) int {
	return d.sizes[dim]
}

// Coords returns the coordinate labels of the dimension
func (d *Dataset) Coords(dim string) []interface{} {
	return d.coords[dim]
}

// Variables returns the variable names
func (d *Dataset) Variables() []string {
	names := make([]string, 0, len(d.vars))
	for name := range d.vars {
		names = append(names, name)
	}
	return names
}

// Variable returns the variable with the given name
func (d *Dataset) Variable(name string) (Variable, bool) {
	v, ok := d.vars[name]
	return v, ok
}

// Sel selects a single coordinate label on each given dimension. The selected
// dimensions are kept with length 1. An unknown dimension or label is an error.
func (d *Dataset) Sel(selection map[string]interface{}) (*Dataset, error) {
	out := d
	for dim, label := range selection {
		index, err := out.coordIndex(dim, label)
		if err != nil {
			return nil, err
		}
		out = out.isel(dim, index)
	}
	return out, nil
}

// coordIndex returns the position of the label on the dimension
func (d *Dataset) coordIndex(dim string, label interface{}) (int, error) {
	coords, ok := d.coords[dim]
	if !ok {
		return 0, fmt.Errorf("dataset: unknown dimension %s", dim)
	}
	for i, c := range coords {
		if labelEqual(c, label) {
			return i, nil
		}
	}
	return 0, fmt.Errorf("dataset: dimension %s has no coordinate %v", dim, label)
}

// isel selects the given position on the dimension, keeping the dimension
func (d *Dataset) isel(dim string, index int) *Dataset {
	out := New()
	for _, name := range d.dims {
		coords := d.coords[name]
		if name == dim {
			coords = coords[index : index+1]
		}
		out.dims = append(out.dims, name)
		out.sizes[name] = len(coords)
		out.coords[name] = coords
	}
	for name, v := range d.vars {
		axis := -1
		for i, vdim := range v.Dims {
			if vdim == dim {
				axis = i
				break
			}
		}
		if axis < 0 {
			out.vars[name] = Variable{Dims: v.Dims, Data: v.Data}
			continue
		}
		shape := make([]int, len(v.Dims))
		for i, vdim := range v.Dims {
			shape[i] = d.sizes[vdim]
		}
		out.vars[name] = Variable{Dims: v.Dims, Data: sliceAxis(v.Data, shape, axis, index)}
	}
	return out
}

// sliceAxis extracts the values at the given position of one axis, keeping the
// row-major layout of the remaining positions.
func sliceAxis(data []float64, shape []int, axis, index int) []float64 {
	strides := make([]int, len(shape))
	acc := 1
	for i := len(shape) - 1; i >= 0; i-- {
		strides[i] = acc
		acc *= shape[i]
	}

	out := make([]float64, 0, len(data)/shape[axis])
	pos := make([]int, len(shape))
	pos[axis] = index
	for {
		flat := 0
		for i, p := range pos {
			flat += p * strides[i]
		}
		out = append(out, data[flat])

		i := len(shape) - 1
		for ; i >= 0; i-- {
			if i == axis {
				continue
			}
			pos[i]++
			if pos[i] < shape[i] {
				break
			}
			pos[i] = 0
		}
		if i < 0 {
			break
		}
	}
	return out
}

// labelEqual compares coordinate labels, normalizing numeric types
func labelEqual(a, b interface{}) bool {
	if af, ok := toFloat(a); ok {
		bf, ok := toFloat(b)
		return ok && af == bf
	}
	return a == b
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}
