package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	neturl "net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/geolake/stac-reader/common"
	"github.com/geolake/stac-reader/interface/credentials"
	"github.com/geolake/stac-reader/interface/credentials/pg"
	"github.com/geolake/stac-reader/interface/objectstore"
	"github.com/geolake/stac-reader/interface/stac"
	"github.com/geolake/stac-reader/reader"
	"github.com/geolake/stac-reader/service"
	"github.com/geolake/stac-reader/service/log"
	geomwkt "github.com/go-spatial/geom/encoding/wkt"
	"go.uber.org/zap"
)

type config struct {
	ItemsFile      string
	StacURL        string
	StacToken      string
	Collections    []string
	Limit          int
	BBox           common.BoundingBox
	Extent         common.TemporalExtent
	Bands          []string
	PropertiesFile string

	CredentialsFile string
	DbConnection    string

	WorkingDir    string
	Download      bool
	GsConcurrency int
	FtpUser       string
	FtpPassword   string
	LogConfig     string
}

func newAppConfig() (*config, error) {
	config := config{}

	// Query
	flag.StringVar(&config.ItemsFile, "items", "", "path or url of a JSON file holding the items to read: an array of items or a search response (alternative to -stac-url)")
	flag.StringVar(&config.StacURL, "stac-url", "", "url of the STAC API to search for items")
	flag.StringVar(&config.StacToken, "stac-token", "", "bearer token of the STAC API (optional)")
	collections := flag.String("collections", "", "collections to search, comma-separated")
	flag.IntVar(&config.Limit, "limit", 0, "page size of the STAC search (optional)")
	bbox := flag.String("bbox", "", "bounding box of the query: west,south,east,north (EPSG:4326)")
	startDate := flag.String("start-date", "", "start of the temporal extent (e.g. 2020-06-01)")
	endDate := flag.String("end-date", "", "end of the temporal extent (optional, open interval if empty)")
	bands := flag.String("bands", "", "bands to read, comma-separated (optional)")
	flag.StringVar(&config.PropertiesFile, "properties", "", "path of a JSON file holding property filters (optional)")

	// Bucket credentials
	flag.StringVar(&config.CredentialsFile, "credentials-file", "", "path of a JSON file mapping bucket to credentials. To resolve bucket credentials from a file.")
	flag.StringVar(&config.DbConnection, "db-connection", "", "postgres connection string. To resolve bucket credentials from a database. Credentials are read from the environment if neither flag is given.")

	// Outputs
	flag.StringVar(&config.WorkingDir, "workdir", ".", "working directory to store downloaded assets")
	flag.BoolVar(&config.Download, "download", false, "download the first asset of each matching item into workdir")
	flag.IntVar(&config.GsConcurrency, "gs-concurrency", 5, "number of parallel downloads from google storage")
	flag.StringVar(&config.FtpUser, "ftp-user", "", "ftp account username (optional). To download assets served over ftp.")
	flag.StringVar(&config.FtpPassword, "ftp-password", "", "ftp account password (optional)")
	flag.StringVar(&config.LogConfig, "log-config", "", "path of a zap JSON configuration (optional)")

	flag.Parse()

	if config.ItemsFile == "" && config.StacURL == "" {
		return nil, fmt.Errorf("missing items or stac-url config flag")
	}
	if *bbox == "" {
		return nil, fmt.Errorf("missing bbox config flag")
	}
	coords := strings.Split(*bbox, ",")
	if len(coords) != 4 {
		return nil, fmt.Errorf("malformed bbox config. Must be west,south,east,north")
	}
	bboxCoords := make([]float64, 4)
	for i, coord := range coords {
		var err error
		if bboxCoords[i], err = strconv.ParseFloat(strings.TrimSpace(coord), 64); err != nil {
			return nil, fmt.Errorf("malformed bbox config. Must be west,south,east,north")
		}
	}
	var err error
	if config.BBox, err = common.NewBoundingBox(bboxCoords); err != nil {
		return nil, err
	}
	if *startDate != "" {
		if config.Extent, err = common.NewTemporalExtent(*startDate, *endDate); err != nil {
			return nil, err
		}
	}
	if *collections != "" {
		config.Collections = strings.Split(*collections, ",")
	}
	if *bands != "" {
		config.Bands = strings.Split(*bands, ",")
	}
	return &config, nil
}

func main() {
	ctx := context.Background()
	err := run(ctx)
	if err != nil {
		log.Fatal("error", zap.Error(err))
	}
}

func run(ctx context.Context) error {
	config, err := newAppConfig()
	if err != nil {
		return err
	}
	if config.LogConfig != "" {
		if err := log.Init(config.LogConfig); err != nil {
			return err
		}
	}

	// Load the items
	var items []common.Item
	var logItems string
	if config.ItemsFile != "" {
		logItems = "file:" + config.ItemsFile
		if items, err = loadItems(config.ItemsFile); err != nil {
			return fmt.Errorf("items %s: %w", config.ItemsFile, err)
		}
	} else {
		logItems = config.StacURL
		client := stac.Client{URL: config.StacURL, Token: config.StacToken, Limit: config.Limit}
		if items, err = client.Search(ctx, stac.NewSearchRequest(config.Collections, config.BBox, config.Extent)); err != nil {
			return fmt.Errorf("stac.Search: %w", err)
		}
	}

	var properties *reader.Properties
	if config.PropertiesFile != "" {
		raw, err := os.ReadFile(config.PropertiesFile)
		if err != nil {
			return fmt.Errorf("properties %s: %w", config.PropertiesFile, err)
		}
		properties = &reader.Properties{}
		if err := json.Unmarshal(raw, properties); err != nil {
			return fmt.Errorf("properties %s: %w", config.PropertiesFile, err)
		}
	}

	// Bucket credentials
	var provider credentials.Provider
	var logProvider string
	{
		switch {
		case config.DbConnection != "":
			logProvider = "postgres"
			if provider, err = pg.New(ctx, config.DbConnection); err != nil {
				return fmt.Errorf("credentials: %w", err)
			}
		case config.CredentialsFile != "":
			logProvider = "file:" + config.CredentialsFile
			if provider, err = credentials.NewFile(config.CredentialsFile); err != nil {
				return fmt.Errorf("credentials: %w", err)
			}
		default:
			logProvider = "environment"
			provider = credentials.Env{}
		}
	}

	r, err := reader.New(ctx, items, config.Bands, config.BBox, config.Extent, properties, provider)
	if err != nil {
		return err
	}

	sugar := log.Logger(ctx).Sugar()
	sugar.Debugf("reader starts with %d items from %s, credentials from %s", len(items), logItems, logProvider)
	sugar.Infof("bucket=%s endpoint=%s region=%s", r.Bucket(), r.Endpoint(), r.Region())
	sugar.Infof("aoi=%s extent=%s", r.BBox().WKT(), r.TemporalExtent())

	filter, err := r.ExtraDimensionsFilter()
	if err != nil {
		return err
	}
	for _, dimension := range filter.Keys() {
		value, _ := filter.Get(dimension)
		sugar.Infof("filter %s=%v", dimension, value)
	}

	filtered, err := r.FilterItems()
	if err != nil {
		return err
	}
	sugar.Infof("%d/%d items match the query", len(filtered), len(items))
	covered, err := reader.CoveredGeometry(filtered)
	if err != nil {
		return err
	}
	if covered != nil {
		sugar.Infof("covered aoi=%s", geomwkt.MustEncode(covered))
	}
	for _, item := range filtered {
		describeItem(ctx, item)
	}

	if !config.Download {
		return nil
	}
	for _, item := range filtered {
		if err := downloadFirstAsset(ctx, r, item, config); err != nil {
			if service.Temporary(err) {
				log.Logger(log.With(ctx, "item", item.ID)).Warn("download temporary failure", zap.Error(err))
				continue
			}
			return err
		}
	}
	return nil
}

// loadItems reads items from a JSON array or from the features of a search response
func loadItems(path string) ([]common.Item, error) {
	var raw []byte
	var err error
	if strings.HasPrefix(strings.ToLower(path), "http") {
		raw, err = service.GetBodyRetry(path, 3)
	} else {
		raw, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, err
	}
	var items []common.Item
	if err := json.Unmarshal(raw, &items); err == nil {
		return items, nil
	}
	collection := struct {
		Features []common.Item `json:"features"`
	}{}
	if err := json.Unmarshal(raw, &collection); err != nil {
		return nil, err
	}
	return collection.Features, nil
}

func describeItem(ctx context.Context, item common.Item) {
	desc := "item " + item.ID
	if datetime, err := item.Datetime(); err == nil {
		desc += " " + datetime.Format(time.RFC3339)
	}
	if epsg, err := reader.EPSG(item); err == nil {
		desc += fmt.Sprintf(" epsg:%d", epsg)
	}
	if resolution, err := reader.Resolution(item); err == nil {
		desc += fmt.Sprintf(" resolution:%g", resolution)
	}
	if x, err := reader.DimensionForAxis(item, common.AxisX); err == nil {
		if y, err := reader.DimensionForAxis(item, common.AxisY); err == nil {
			desc += fmt.Sprintf(" axes:%s/%s", x, y)
		}
	}
	if temporal, err := reader.DimensionName(item, "", common.DimensionTypeTemporal); err == nil {
		desc += " time:" + temporal
	}
	log.Logger(ctx).Sugar().Info(desc)
}

// downloadFirstAsset fetches the first asset of the item with the store of its scheme
func downloadFirstAsset(ctx context.Context, r *reader.Reader, item common.Item, config *config) error {
	href, err := item.FirstAssetHref()
	if err != nil {
		return err
	}
	u, err := neturl.Parse(href)
	if err != nil {
		return fmt.Errorf("asset %s: %w", href, err)
	}
	var store objectstore.Store
	switch strings.ToLower(u.Scheme) {
	case "s3":
		store = r.Store()
	case "gs":
		store = objectstore.NewGCSStore(config.GsConcurrency)
	case "http", "https":
		store = objectstore.NewHTTPSStore(nil, nil)
	case "ftp":
		store = objectstore.NewFTPStore(config.FtpUser, config.FtpPassword)
	default:
		return fmt.Errorf("asset %s: unsupported scheme %s", href, u.Scheme)
	}
	log.Logger(ctx).Sugar().Debugf("downloading %s from %s", href, store.Name())
	if err := service.Retriable(ctx, func() error {
		return store.Download(ctx, href, config.WorkingDir)
	}, 15*time.Second, 3); err != nil {
		return fmt.Errorf("download %s: %w (after 3 retries)", href, err)
	}
	return nil
}
