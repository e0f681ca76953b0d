package common

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/araddon/dateparse"
)

// DimensionType of a datacube dimension
type DimensionType string

// List of dimension types defined by the datacube extension
const (
	DimensionTypeSpatial  DimensionType = "spatial"
	DimensionTypeTemporal DimensionType = "temporal"
	DimensionTypeBands    DimensionType = "bands"
	DimensionTypeOther    DimensionType = "other"
)

// Axis of a horizontal spatial dimension
type Axis string

// List of axes of the datacube extension
const (
	AxisX Axis = "x"
	AxisY Axis = "y"
	AxisZ Axis = "z"
)

// MediaType of an asset
type MediaType string

// Some media types of raster assets
const (
	MediaTypeGeoTIFF MediaType = "image/tiff; application=geotiff"
	MediaTypeCOG     MediaType = "image/tiff; application=geotiff; profile=cloud-optimized"
	MediaTypeZarr    MediaType = "application/vnd+zarr"
	MediaTypeNetCDF  MediaType = "application/x-netcdf"
	MediaTypeGeoJSON MediaType = "application/geo+json"
)

// Asset is a file reachable through an item
type Asset struct {
	Href        string    `json:"href"`
	Type        MediaType `json:"type,omitempty"`
	Title       string    `json:"title,omitempty"`
	Description string    `json:"description,omitempty"`
	Roles       []string  `json:"roles,omitempty"`
}

// CubeDimension describes one named dimension of a datacube item.
// Step and ReferenceSystem are kept raw: catalogs serve them as numbers or strings.
type CubeDimension struct {
	Axis            Axis          `json:"axis,omitempty"`
	Type            DimensionType `json:"type,omitempty"`
	Description     string        `json:"description,omitempty"`
	Extent          []interface{} `json:"extent,omitempty"`
	Values          []interface{} `json:"values,omitempty"`
	Step            interface{}   `json:"step,omitempty"`
	ReferenceSystem interface{}   `json:"reference_system,omitempty"`
}

// Link relates an item to another resource
type Link struct {
	Rel   string `json:"rel"`
	Href  string `json:"href"`
	Type  string `json:"type,omitempty"`
	Title string `json:"title,omitempty"`
}

// ItemProperties is the properties object of an item.
// Cube dimensions and additional fields keep their document order.
type ItemProperties struct {
	Datetime       string
	StartDatetime  string
	EndDatetime    string
	CubeDimensions OrderedMap[CubeDimension]
	Extra          OrderedMap[json.RawMessage]

	hasCubeDimensions bool
}

// HasCubeDimensions returns whether the item declares the datacube extension fields
func (p ItemProperties) HasCubeDimensions() bool {
	return p.hasCubeDimensions
}

// UnmarshalJSON implements json.Unmarshaler
func (p *ItemProperties) UnmarshalJSON(data []byte) error {
	var fields OrderedMap[json.RawMessage]
	if err := json.Unmarshal(data, &fields); err != nil {
		return fmt.Errorf("properties: %w", err)
	}
	*p = ItemProperties{}
	for _, key := range fields.Keys() {
		raw, _ := fields.Get(key)
		var err error
		switch key {
		case "datetime":
			err = json.Unmarshal(raw, &p.Datetime)
		case "start_datetime":
			err = json.Unmarshal(raw, &p.StartDatetime)
		case "end_datetime":
			err = json.Unmarshal(raw, &p.EndDatetime)
		case "cube:dimensions":
			err = json.Unmarshal(raw, &p.CubeDimensions)
			p.hasCubeDimensions = err == nil
		default:
			p.Extra.Set(key, raw)
		}
		if err != nil {
			return fmt.Errorf("properties[%s]: %w", key, err)
		}
	}
	return nil
}

// MarshalJSON implements json.Marshaler
func (p ItemProperties) MarshalJSON() ([]byte, error) {
	var fields OrderedMap[json.RawMessage]
	set := func(key string, v interface{}) error {
		raw, err := json.Marshal(v)
		if err != nil {
			return err
		}
		fields.Set(key, raw)
		return nil
	}
	if p.Datetime != "" {
		if err := set("datetime", p.Datetime); err != nil {
			return nil, err
		}
	}
	if p.StartDatetime != "" {
		if err := set("start_datetime", p.StartDatetime); err != nil {
			return nil, err
		}
	}
	if p.EndDatetime != "" {
		if err := set("end_datetime", p.EndDatetime); err != nil {
			return nil, err
		}
	}
	if p.hasCubeDimensions {
		if err := set("cube:dimensions", p.CubeDimensions); err != nil {
			return nil, err
		}
	}
	for _, key := range p.Extra.Keys() {
		raw, _ := p.Extra.Get(key)
		fields.Set(key, raw)
	}
	return json.Marshal(fields)
}

// Item is a STAC item: a GeoJSON feature carrying assets and datacube properties
type Item struct {
	Type       string            `json:"type,omitempty"`
	ID         string            `json:"id"`
	Collection string            `json:"collection,omitempty"`
	Bbox       []float64         `json:"bbox,omitempty"`
	Geometry   json.RawMessage   `json:"geometry,omitempty"`
	Properties ItemProperties    `json:"properties"`
	Assets     OrderedMap[Asset] `json:"assets"`
	Links      []Link            `json:"links,omitempty"`
}

// FirstAssetHref returns the href of the first asset in document order
func (i Item) FirstAssetHref() (string, error) {
	_, asset, ok := i.Assets.First()
	if !ok {
		return "", fmt.Errorf("item %s: no assets", i.ID)
	}
	if asset.Href == "" {
		return "", fmt.Errorf("item %s: first asset has no href", i.ID)
	}
	return asset.Href, nil
}

// Datetime returns the nominal instant of the item, falling back on start_datetime
func (i Item) Datetime() (time.Time, error) {
	datetime := i.Properties.Datetime
	if datetime == "" {
		datetime = i.Properties.StartDatetime
	}
	if datetime == "" {
		return time.Time{}, fmt.Errorf("item %s: no datetime", i.ID)
	}
	t, err := dateparse.ParseAny(datetime)
	if err != nil {
		return time.Time{}, fmt.Errorf("item %s: parse datetime: %w", i.ID, err)
	}
	return t, nil
}
