package reader_test

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/geolake/stac-reader/common"
	"github.com/geolake/stac-reader/dataset"
	"github.com/geolake/stac-reader/interface/credentials"
	"github.com/geolake/stac-reader/reader"
	"github.com/go-spatial/geom"
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

const itemDoc = `{
	"type": "Feature",
	"id": "item-1",
	"collection": "sentinel2-l2a",
	"bbox": [0, 0, 10, 10],
	"geometry": {"type": "Polygon", "coordinates": [[[0,0],[0,10],[10,10],[10,0],[0,0]]]},
	"properties": {
		"datetime": "2020-06-10T00:00:00Z",
		"cube:dimensions": {
			"x": {"axis": "x", "type": "spatial", "step": 0.000064, "reference_system": 4326},
			"y": {"axis": "y", "type": "spatial", "step": -0.000064, "reference_system": 32632},
			"time": {"type": "temporal"},
			"level": {"type": "other", "values": [50, 100, 150]}
		}
	},
	"assets": {
		"b02": {"href": "s3://bucket1/path/to/obj.tif", "type": "image/tiff; application=geotiff"},
		"b03": {"href": "s3://bucket1/path/to/b03.tif", "type": "image/tiff; application=geotiff"}
	}
}`

const levelFilterDoc = `{
	"cube:dimensions.level.process_graph": {
		"process_graph": {
			"eq1": {"process_id": "eq", "arguments": {"x": {"from_parameter": "data"}, "y": 100}, "result": true}
		}
	}
}`

var _ = Describe("Reader", func() {
	start := time.Date(2020, 6, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2020, 6, 30, 0, 0, 0, 0, time.UTC)
	bbox := common.BoundingBox{West: 0, South: 0, East: 10, North: 10}
	extent := common.TemporalExtent{Start: start, End: &end}

	decodeItem := func(doc string) common.Item {
		var item common.Item
		err := json.Unmarshal([]byte(doc), &item)
		Expect(err).NotTo(HaveOccurred())
		return item
	}

	decodeProperties := func(doc string) *reader.Properties {
		properties := &reader.Properties{}
		err := json.Unmarshal([]byte(doc), properties)
		Expect(err).NotTo(HaveOccurred())
		return properties
	}

	newReader := func(items []common.Item, properties *reader.Properties) *reader.Reader {
		r, err := reader.New(ctx, items, []string{"b02"}, bbox, extent, properties, provider)
		Expect(err).NotTo(HaveOccurred())
		return r
	}

	Describe("Creating a reader", func() {
		It("derives the storage identity from the first asset of the first item", func() {
			r := newReader([]common.Item{decodeItem(itemDoc)}, nil)
			Expect(r.Bucket()).To(Equal("bucket1"))
			Expect(r.Endpoint()).To(Equal("s3.us-south.cloud-object-storage.appdomain.cloud"))
			Expect(r.Region()).To(Equal("us-south"))
			Expect(r.AccessKeyID()).To(Equal("AKIATESTKEY"))
			Expect(r.SecretAccessKey()).To(Equal("testsecret"))
			Expect(r.Items()).To(HaveLen(1))
			Expect(r.Bands()).To(Equal([]string{"b02"}))
			Expect(r.BBox()).To(Equal(bbox))
			Expect(r.StartDatetime()).To(Equal(start))
			Expect(*r.EndDatetime()).To(Equal(end))
		})

		It("lowercases the endpoint of the credentials", func() {
			upper := credentials.Static{"bucket1": {
				Endpoint:    "S3.US-South.Cloud-Object-Storage.appdomain.cloud",
				AccessKeyID: "AKIATESTKEY",
			}}
			r, err := reader.New(ctx, []common.Item{decodeItem(itemDoc)}, nil, bbox, extent, nil, upper)
			Expect(err).NotTo(HaveOccurred())
			Expect(r.Endpoint()).To(Equal("s3.us-south.cloud-object-storage.appdomain.cloud"))
			Expect(r.Region()).To(Equal("us-south"))
		})

		It("fails on an empty item list", func() {
			_, err := reader.New(ctx, nil, nil, bbox, extent, nil, provider)
			Expect(err).To(MatchError(ContainSubstring("items is empty")))
		})

		It("fails on an invalid bounding box", func() {
			items := []common.Item{decodeItem(itemDoc)}
			_, err := reader.New(ctx, items, nil, common.BoundingBox{West: 10, South: 0, East: 0, North: 10}, extent, nil, provider)
			Expect(err).To(HaveOccurred())
			_, err = reader.New(ctx, items, nil, common.BoundingBox{West: 0, South: 10, East: 10, North: 0}, extent, nil, provider)
			Expect(err).To(HaveOccurred())
			_, err = reader.New(ctx, items, nil, common.BoundingBox{West: -200, South: 0, East: 10, North: 10}, extent, nil, provider)
			Expect(err).To(HaveOccurred())
			_, err = reader.New(ctx, items, nil, common.BoundingBox{West: 0, South: 0, East: 10, North: 100}, extent, nil, provider)
			Expect(err).To(HaveOccurred())
		})

		It("fails when the temporal extent ends before it starts", func() {
			backwards := common.TemporalExtent{Start: end, End: &start}
			_, err := reader.New(ctx, []common.Item{decodeItem(itemDoc)}, nil, bbox, backwards, nil, provider)
			Expect(err).To(HaveOccurred())
		})

		It("fails when the first item has no assets", func() {
			item := decodeItem(`{"id": "empty", "properties": {}, "assets": {}}`)
			_, err := reader.New(ctx, []common.Item{item}, nil, bbox, extent, nil, provider)
			Expect(err).To(MatchError(ContainSubstring("no assets")))
		})

		It("fails when no credentials are registered for the bucket", func() {
			item := decodeItem(`{"id": "orphan", "properties": {}, "assets": {"b02": {"href": "s3://unknown-bucket/k.tif"}}}`)
			_, err := reader.New(ctx, []common.Item{item}, nil, bbox, extent, nil, provider)
			var notFound credentials.ErrNotFound
			Expect(errors.As(err, &notFound)).To(BeTrue())
			Expect(notFound.Bucket).To(Equal("unknown-bucket"))
		})

		It("fails when the endpoint carries no region", func() {
			elsewhere := credentials.Static{"bucket1": {Endpoint: "storage.googleapis.com"}}
			_, err := reader.New(ctx, []common.Item{decodeItem(itemDoc)}, nil, bbox, extent, nil, elsewhere)
			Expect(err).To(MatchError(ContainSubstring("no region")))
		})
	})

	Describe("Converting asset urls", func() {
		It("extracts the bucket from an s3 url", func() {
			bucket, err := reader.BucketFromURL("s3://bucket1/path/to/obj.tif")
			Expect(err).NotTo(HaveOccurred())
			Expect(bucket).To(Equal("bucket1"))

			bucket, err = reader.BucketFromURL("s3://BUCKET1/path/to/obj.tif")
			Expect(err).NotTo(HaveOccurred())
			Expect(bucket).To(Equal("bucket1"))
		})

		It("extracts the bucket from an https url", func() {
			bucket, err := reader.BucketFromURL("https://s3.us-south.cloud-object-storage.appdomain.cloud/bucket2/path/obj.tif")
			Expect(err).NotTo(HaveOccurred())
			Expect(bucket).To(Equal("bucket2"))
		})

		It("fails when the url carries no bucket", func() {
			_, err := reader.BucketFromURL("https://host.example.com/onlysegment")
			Expect(err).To(MatchError(ContainSubstring("unable to find bucket name")))
			_, err = reader.BucketFromURL("https://host.example.com/")
			Expect(err).To(HaveOccurred())
			_, err = reader.BucketFromURL("")
			Expect(err).To(HaveOccurred())
		})

		It("extracts the object key after the first path segment", func() {
			object, err := reader.ObjectFromURL("https://host.example.com/bucket2/path/obj.tif")
			Expect(err).NotTo(HaveOccurred())
			Expect(object).To(Equal("path/obj.tif"))

			object, err = reader.ObjectFromURL("s3://bucket1/path/to/obj.tif")
			Expect(err).NotTo(HaveOccurred())
			Expect(object).To(Equal("to/obj.tif"))
		})

		It("fails when the url carries no object", func() {
			_, err := reader.ObjectFromURL("https://host.example.com/bucket2")
			Expect(err).To(MatchError(ContainSubstring("unable to find object name")))
			_, err = reader.ObjectFromURL("s3://bucket1/justkey")
			Expect(err).To(HaveOccurred())
		})

		It("rebuilds the s3 url of an https asset", func() {
			url, err := reader.HTTPSToS3("https://host.example.com/bucket2/path/obj.tif")
			Expect(err).NotTo(HaveOccurred())
			Expect(url).To(Equal("s3://bucket2/path/obj.tif"))
		})

		It("refuses to rebuild a non-http url", func() {
			_, err := reader.HTTPSToS3("s3://bucket1/path/to/obj.tif")
			Expect(err).To(MatchError(ContainSubstring("not an http(s) url")))
		})
	})

	Describe("Locating cube dimensions", func() {
		It("returns the first dimension matching an axis", func() {
			item := decodeItem(itemDoc)
			name, err := reader.DimensionForAxis(item, common.AxisX)
			Expect(err).NotTo(HaveOccurred())
			Expect(name).To(Equal("x"))

			name, err = reader.DimensionName(item, common.AxisY, "")
			Expect(err).NotTo(HaveOccurred())
			Expect(name).To(Equal("y"))
		})

		It("returns the first dimension matching a type", func() {
			name, err := reader.DimensionName(decodeItem(itemDoc), "", common.DimensionTypeTemporal)
			Expect(err).NotTo(HaveOccurred())
			Expect(name).To(Equal("time"))
		})

		It("returns the first dimension matching either criterion", func() {
			name, err := reader.DimensionName(decodeItem(itemDoc), common.AxisY, common.DimensionTypeTemporal)
			Expect(err).NotTo(HaveOccurred())
			Expect(name).To(Equal("y"))
		})

		It("requires at least one criterion", func() {
			_, err := reader.DimensionName(decodeItem(itemDoc), "", "")
			Expect(err).To(MatchError(ContainSubstring("either an axis or a type is required")))
		})

		It("fails when no dimension matches", func() {
			_, err := reader.DimensionForAxis(decodeItem(itemDoc), common.AxisZ)
			var notFound reader.ErrDimensionNotFound
			Expect(errors.As(err, &notFound)).To(BeTrue())
		})

		It("fails when the item declares no cube dimensions", func() {
			item := decodeItem(`{"id": "bare", "properties": {"datetime": "2020-06-10T00:00:00Z"}, "assets": {}}`)
			_, err := reader.DimensionName(item, common.AxisX, "")
			Expect(err).To(MatchError(ContainSubstring("no cube:dimensions")))
		})

		It("returns the reference system of the last dimension declaring one", func() {
			epsg, err := reader.EPSG(decodeItem(itemDoc))
			Expect(err).NotTo(HaveOccurred())
			Expect(epsg).To(Equal(32632))
		})

		It("fails when no dimension declares a reference system", func() {
			item := decodeItem(`{"id": "noref", "properties": {"cube:dimensions": {"time": {"type": "temporal"}}}, "assets": {}}`)
			_, err := reader.EPSG(item)
			var notFound reader.ErrDimensionNotFound
			Expect(errors.As(err, &notFound)).To(BeTrue())
			Expect(notFound.Criteria).To(Equal("reference_system"))
		})

		It("returns the absolute step of the last dimension declaring one", func() {
			resolution, err := reader.Resolution(decodeItem(itemDoc))
			Expect(err).NotTo(HaveOccurred())
			Expect(resolution).To(Equal(0.000064))
		})

		It("accepts a step given as a string", func() {
			item := decodeItem(`{"id": "str", "properties": {"cube:dimensions": {"x": {"axis": "x", "step": "0.5"}}}, "assets": {}}`)
			resolution, err := reader.Resolution(item)
			Expect(err).NotTo(HaveOccurred())
			Expect(resolution).To(Equal(0.5))
		})

		It("fails on a non-numeric step", func() {
			item := decodeItem(`{"id": "bad", "properties": {"cube:dimensions": {"x": {"axis": "x", "step": "fast"}}}, "assets": {}}`)
			_, err := reader.Resolution(item)
			Expect(err).To(MatchError(ContainSubstring("cannot convert")))
		})
	})

	Describe("The query polygon", func() {
		It("builds the rectangle of the bounding box", func() {
			r := newReader([]common.Item{decodeItem(itemDoc)}, nil)
			Expect(r.Polygon()).To(Equal(geom.Polygon{{{0, 0}, {0, 10}, {10, 10}, {10, 0}}}))
		})
	})

	Describe("Extracting extra dimension filters", func() {
		It("returns the literal operand of an equality node", func() {
			r := newReader([]common.Item{decodeItem(itemDoc)}, decodeProperties(levelFilterDoc))
			filter, err := r.ExtraDimensionsFilter()
			Expect(err).NotTo(HaveOccurred())
			Expect(filter.Len()).To(Equal(1))
			value, ok := filter.Get("level")
			Expect(ok).To(BeTrue())
			Expect(value).To(Equal(100.0))
		})

		It("takes the x argument when it is a literal", func() {
			properties := decodeProperties(`{"cube:dimensions.level.process_graph": {"process_graph": {
				"eq1": {"process_id": "eq", "arguments": {"x": 42}}
			}}}`)
			filter, err := newReader([]common.Item{decodeItem(itemDoc)}, properties).ExtraDimensionsFilter()
			Expect(err).NotTo(HaveOccurred())
			value, _ := filter.Get("level")
			Expect(value).To(Equal(42.0))
		})

		It("honors the = alias", func() {
			properties := decodeProperties(`{"cube:dimensions.level.process_graph": {"process_graph": {
				"eq1": {"process_id": "=", "arguments": {"x": {"from_parameter": "data"}, "y": 150}}
			}}}`)
			filter, err := newReader([]common.Item{decodeItem(itemDoc)}, properties).ExtraDimensionsFilter()
			Expect(err).NotTo(HaveOccurred())
			value, _ := filter.Get("level")
			Expect(value).To(Equal(150.0))
		})

		It("ignores non-equality operations", func() {
			properties := decodeProperties(`{"cube:dimensions.level.process_graph": {"process_graph": {
				"gt1": {"process_id": "gt", "arguments": {"x": {"from_parameter": "data"}, "y": 30}}
			}}}`)
			filter, err := newReader([]common.Item{decodeItem(itemDoc)}, properties).ExtraDimensionsFilter()
			Expect(err).NotTo(HaveOccurred())
			Expect(filter.Len()).To(Equal(0))
		})

		It("keeps the last equality node of the graph", func() {
			properties := decodeProperties(`{"cube:dimensions.level.process_graph": {"process_graph": {
				"eq1": {"process_id": "eq", "arguments": {"x": {"from_parameter": "data"}, "y": 100}},
				"eq2": {"process_id": "eq", "arguments": {"x": {"from_parameter": "data"}, "y": 200}}
			}}}`)
			filter, err := newReader([]common.Item{decodeItem(itemDoc)}, properties).ExtraDimensionsFilter()
			Expect(err).NotTo(HaveOccurred())
			value, _ := filter.Get("level")
			Expect(value).To(Equal(200.0))
		})

		It("skips properties outside cube:dimensions", func() {
			properties := decodeProperties(`{"eo:cloud_cover": {"process_graph": {
				"lte1": {"process_id": "lte", "arguments": {"x": {"from_parameter": "value"}, "y": 20}}
			}}}`)
			filter, err := newReader([]common.Item{decodeItem(itemDoc)}, properties).ExtraDimensionsFilter()
			Expect(err).NotTo(HaveOccurred())
			Expect(filter.Len()).To(Equal(0))
		})

		It("fails on a missing x argument", func() {
			properties := decodeProperties(`{"cube:dimensions.level.process_graph": {"process_graph": {
				"eq1": {"process_id": "eq", "arguments": {"y": 100}}
			}}}`)
			_, err := newReader([]common.Item{decodeItem(itemDoc)}, properties).ExtraDimensionsFilter()
			Expect(err).To(MatchError(ContainSubstring("missing argument x")))
		})

		It("fails on a parameter reference without a y argument", func() {
			properties := decodeProperties(`{"cube:dimensions.level.process_graph": {"process_graph": {
				"eq1": {"process_id": "eq", "arguments": {"x": {"from_parameter": "data"}}}
			}}}`)
			_, err := newReader([]common.Item{decodeItem(itemDoc)}, properties).ExtraDimensionsFilter()
			Expect(err).To(MatchError(ContainSubstring("missing argument y")))
		})

		It("fails on a property name without a dimension", func() {
			properties := decodeProperties(`{"cube:dimensions": {"process_graph": {
				"eq1": {"process_id": "eq", "arguments": {"x": 1}}
			}}}`)
			_, err := newReader([]common.Item{decodeItem(itemDoc)}, properties).ExtraDimensionsFilter()
			Expect(err).To(MatchError(ContainSubstring("unexpected property name")))
		})

		It("fails when the property has no process graph", func() {
			properties := decodeProperties(`{"cube:dimensions.level.process_graph": {}}`)
			_, err := newReader([]common.Item{decodeItem(itemDoc)}, properties).ExtraDimensionsFilter()
			Expect(err).To(MatchError(ContainSubstring("has no process_graph")))
		})

		It("returns an empty filter without properties", func() {
			filter, err := newReader([]common.Item{decodeItem(itemDoc)}, nil).ExtraDimensionsFilter()
			Expect(err).NotTo(HaveOccurred())
			Expect(filter.Len()).To(Equal(0))
		})
	})

	Describe("Filtering a dataset", func() {
		newDataset := func() *dataset.Dataset {
			ds := dataset.New()
			Expect(ds.AddDimension("time", []interface{}{"2020-06-10", "2020-06-11"})).To(Succeed())
			Expect(ds.AddDimension("level", []interface{}{50.0, 100.0, 150.0})).To(Succeed())
			Expect(ds.AddVariable("t2m", []string{"time", "level"}, []float64{1, 2, 3, 4, 5, 6})).To(Succeed())
			return ds
		}

		It("narrows each filtered dimension to its single value", func() {
			r := newReader([]common.Item{decodeItem(itemDoc)}, decodeProperties(levelFilterDoc))
			out, err := r.FilterByExtraDimensions(newDataset())
			Expect(err).NotTo(HaveOccurred())
			Expect(out.Size("level")).To(Equal(1))
			Expect(out.Coords("level")).To(Equal([]interface{}{100.0}))
			Expect(out.Size("time")).To(Equal(2))
			t2m, ok := out.Variable("t2m")
			Expect(ok).To(BeTrue())
			Expect(t2m.Data).To(Equal([]float64{2, 5}))
		})

		It("fails when the dataset has no matching coordinate", func() {
			properties := decodeProperties(`{"cube:dimensions.level.process_graph": {"process_graph": {
				"eq1": {"process_id": "eq", "arguments": {"x": {"from_parameter": "data"}, "y": 75}}
			}}}`)
			r := newReader([]common.Item{decodeItem(itemDoc)}, properties)
			_, err := r.FilterByExtraDimensions(newDataset())
			Expect(err).To(MatchError(ContainSubstring("no coordinate")))
		})

		It("leaves the dataset untouched without filters", func() {
			ds := newDataset()
			out, err := newReader([]common.Item{decodeItem(itemDoc)}, nil).FilterByExtraDimensions(ds)
			Expect(err).NotTo(HaveOccurred())
			Expect(out).To(BeIdenticalTo(ds))
		})
	})

	Describe("Filtering items", func() {
		itemIDs := func(items []common.Item) []string {
			ids := make([]string, len(items))
			for i, item := range items {
				ids[i] = item.ID
			}
			return ids
		}

		farDoc := `{
			"id": "item-far",
			"geometry": {"type": "Polygon", "coordinates": [[[100,40],[100,50],[110,50],[110,40],[100,40]]]},
			"properties": {"datetime": "2020-06-12T00:00:00Z"},
			"assets": {"b02": {"href": "s3://bucket1/far.tif"}}
		}`
		lateDoc := `{
			"id": "item-late",
			"geometry": {"type": "Polygon", "coordinates": [[[1,1],[1,2],[2,2],[2,1],[1,1]]]},
			"properties": {"datetime": "2021-01-01T00:00:00Z"},
			"assets": {"b02": {"href": "s3://bucket1/late.tif"}}
		}`
		bareDoc := `{
			"id": "item-bare",
			"properties": {},
			"assets": {"b02": {"href": "s3://bucket1/bare.tif"}}
		}`

		It("keeps the items intersecting the bounding box inside the extent", func() {
			items := []common.Item{decodeItem(itemDoc), decodeItem(farDoc), decodeItem(lateDoc)}
			filtered, err := newReader(items, nil).FilterItems()
			Expect(err).NotTo(HaveOccurred())
			Expect(itemIDs(filtered)).To(Equal([]string{"item-1"}))
		})

		It("keeps the items without geometry or datetime", func() {
			items := []common.Item{decodeItem(itemDoc), decodeItem(bareDoc)}
			filtered, err := newReader(items, nil).FilterItems()
			Expect(err).NotTo(HaveOccurred())
			Expect(itemIDs(filtered)).To(Equal([]string{"item-1", "item-bare"}))
		})

		It("unions the footprints of the items", func() {
			items := []common.Item{decodeItem(itemDoc), decodeItem(lateDoc), decodeItem(bareDoc)}
			covered, err := reader.CoveredGeometry(items)
			Expect(err).NotTo(HaveOccurred())
			Expect(covered).To(BeAssignableToTypeOf(geom.Polygon{}))
		})

		It("returns no covered geometry when no item carries one", func() {
			covered, err := reader.CoveredGeometry([]common.Item{decodeItem(bareDoc)})
			Expect(err).NotTo(HaveOccurred())
			Expect(covered).To(BeNil())
		})
	})

	Describe("Storage access", func() {
		It("builds an object store for the derived bucket", func() {
			r := newReader([]common.Item{decodeItem(itemDoc)}, nil)
			Expect(r.Store().Name()).To(Equal("S3"))
		})

		It("signs a session with the derived credentials", func() {
			r := newReader([]common.Item{decodeItem(itemDoc)}, nil)
			cfg, err := r.Session(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg.Region).To(Equal("us-south"))
			creds, err := cfg.Credentials.Retrieve(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(creds.AccessKeyID).To(Equal("AKIATESTKEY"))
			Expect(creds.SecretAccessKey).To(Equal("testsecret"))
		})

		It("opens a filesystem handle over the endpoint", func() {
			r := newReader([]common.Item{decodeItem(itemDoc)}, nil)
			fs, err := r.S3Filesystem(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(fs).NotTo(BeNil())
		})
	})
})
