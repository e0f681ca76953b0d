// Package reader prepares authenticated access to cloud-stored raster assets
// described by catalog items. A Reader validates the query (bounding box,
// temporal extent, item list) at construction, derives the storage bucket,
// region and credentials from the first asset of the first item, and exposes
// helpers to locate dimension metadata, convert asset urls between schemes
// and build storage sessions for downstream array loading.
package reader

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/geolake/stac-reader/common"
	"github.com/geolake/stac-reader/interface/credentials"
	"github.com/geolake/stac-reader/processgraph"
)

// PropertyFilter is the filter fragment attached to one property
type PropertyFilter struct {
	ProcessGraph *processgraph.Graph `json:"process_graph"`
}

// Properties maps property names (cube:dimensions.<dim>...) to filter
// fragments, in document order
type Properties = common.OrderedMap[PropertyFilter]

// Reader gives access to the assets of the items matching one query
type Reader struct {
	items      []common.Item
	bands      []string
	bbox       common.BoundingBox
	extent     common.TemporalExtent
	properties *Properties

	bucket          string
	endpoint        string
	accessKeyID     string
	secretAccessKey string
	region          string
}

type options struct {
	regionParser credentials.RegionParser
}

// Option configures the construction of a Reader
type Option func(*options)

// WithRegionParser overrides the default endpoint-to-region parser
func WithRegionParser(parser credentials.RegionParser) Option {
	return func(o *options) { o.regionParser = parser }
}

// New creates a Reader over a non-empty list of items. The storage bucket is
// derived from the first asset of the first item, its credentials are fetched
// from the provider and the region is parsed from the credential endpoint.
func New(ctx context.Context, items []common.Item, bands []string, bbox common.BoundingBox, extent common.TemporalExtent, properties *Properties, provider credentials.Provider, opts ...Option) (*Reader, error) {
	o := options{regionParser: credentials.ParseRegion}
	for _, opt := range opts {
		opt(&o)
	}

	if len(items) == 0 {
		return nil, fmt.Errorf("reader.New: items is empty")
	}
	if err := bbox.Validate(); err != nil {
		return nil, fmt.Errorf("reader.New: %w", err)
	}
	if err := extent.Validate(); err != nil {
		return nil, fmt.Errorf("reader.New: %w", err)
	}

	href, err := items[0].FirstAssetHref()
	if err != nil {
		return nil, fmt.Errorf("reader.New: %w", err)
	}
	bucket, err := BucketFromURL(href)
	if err != nil {
		return nil, fmt.Errorf("reader.New.%w", err)
	}
	creds, err := provider.CredentialsByBucket(ctx, bucket)
	if err != nil {
		return nil, fmt.Errorf("reader.New: %w", err)
	}
	region, err := o.regionParser(strings.ToLower(creds.Endpoint))
	if err != nil {
		return nil, fmt.Errorf("reader.New: %w", err)
	}

	return &Reader{
		items:           items,
		bands:           bands,
		bbox:            bbox,
		extent:          extent,
		properties:      properties,
		bucket:          bucket,
		endpoint:        creds.Endpoint,
		accessKeyID:     creds.AccessKeyID,
		secretAccessKey: creds.SecretAccessKey,
		region:          region,
	}, nil
}

// Bucket hosting the assets of the first item
func (r *Reader) Bucket() string {
	return r.bucket
}

// Endpoint of the object storage, lowercased
func (r *Reader) Endpoint() string {
	return strings.ToLower(r.endpoint)
}

// Region of the object storage, parsed from the endpoint
func (r *Reader) Region() string {
	return r.region
}

// AccessKeyID of the bucket credentials
func (r *Reader) AccessKeyID() string {
	return r.accessKeyID
}

// SecretAccessKey of the bucket credentials
func (r *Reader) SecretAccessKey() string {
	return r.secretAccessKey
}

// Items matched by the query
func (r *Reader) Items() []common.Item {
	return r.items
}

// Bands requested by the query
func (r *Reader) Bands() []string {
	return r.bands
}

// BBox requested by the query
func (r *Reader) BBox() common.BoundingBox {
	return r.bbox
}

// TemporalExtent requested by the query
func (r *Reader) TemporalExtent() common.TemporalExtent {
	return r.extent
}

// StartDatetime of the temporal extent
func (r *Reader) StartDatetime() time.Time {
	return r.extent.Start
}

// EndDatetime of the temporal extent, nil for open intervals
func (r *Reader) EndDatetime() *time.Time {
	return r.extent.End
}
