package objectstore

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/airbusgeo/osio"
	osiogcs "github.com/airbusgeo/osio/gcs"
	"golang.org/x/sync/errgroup"
	"google.golang.org/api/iterator"

	"github.com/geolake/stac-reader/service"
)

// GCSStore implements Store for Google Cloud Storage using the application
// default credentials
type GCSStore struct {
	concurrency int
}

// NewGCSStore creates a new Store downloading concurrency objects at a time
func NewGCSStore(concurrency int) *GCSStore {
	if concurrency <= 0 {
		concurrency = 5
	}
	return &GCSStore{concurrency: concurrency}
}

// Name implements Store
func (g *GCSStore) Name() string {
	return "GoogleStorage"
}

// Filesystem returns a random-access filesystem handle over the storage.
// Keys are of the form bucket/object.
func (g *GCSStore) Filesystem(ctx context.Context) (*osio.Adapter, error) {
	handle, err := osiogcs.Handle(ctx)
	if err != nil {
		return nil, fmt.Errorf("Filesystem.Handle: %w", err)
	}
	adapter, err := osio.NewAdapter(handle)
	if err != nil {
		return nil, fmt.Errorf("Filesystem.NewAdapter: %w", err)
	}
	return adapter, nil
}

type gcsObjectToDownload struct {
	object string
	file   string
}

// Download implements Store. url is gs://bucket/prefix and all the objects
// sharing the prefix are fetched into localDir, recreating the layout.
// Failures are temporary unless the url matches no object.
func (g *GCSStore) Download(ctx context.Context, url, localDir string) error {
	bucket, prefix, err := splitBucketObject(url)
	if err != nil {
		return fmt.Errorf("GCSStore.%w", err)
	}
	prefix = strings.TrimRight(prefix, "/")

	client, err := storage.NewClient(ctx)
	if err != nil {
		return fmt.Errorf("GCSStore.NewClient: %w", service.MakeTemporary(err))
	}
	defer client.Close()

	wg, ctx := errgroup.WithContext(ctx)
	jobs := make(chan gcsObjectToDownload)
	for i := 0; i < g.concurrency; i++ {
		wg.Go(func() error { return downloadGCSWorker(ctx, client.Bucket(bucket), jobs) })
	}

	n, pushErr := func() (int, error) {
		defer close(jobs)
		q := &storage.Query{Prefix: prefix, Versions: false}
		q.SetAttrSelection([]string{"Name"})
		it := client.Bucket(bucket).Objects(ctx, q)
		n := 0
		for {
			attrs, err := it.Next()
			if err == iterator.Done {
				return n, nil
			}
			if err != nil {
				return n, fmt.Errorf("bucket iterate[%s/%s]: %w", bucket, prefix, err)
			}
			filename := attrs.Name
			if strings.HasPrefix(filename, prefix) {
				filename = filename[len(prefix):]
			}
			if len(filename) > 0 && filename[len(filename)-1] == '/' {
				continue
			}
			localFile := filepath.Join(localDir, filename)
			if err := os.MkdirAll(filepath.Dir(localFile), 0766); err != nil {
				return n, fmt.Errorf("mkdirall %s: %w", filepath.Dir(localFile), err)
			}
			select {
			case jobs <- gcsObjectToDownload{object: attrs.Name, file: localFile}:
				n++
			case <-ctx.Done():
				return n, ctx.Err()
			}
		}
	}()

	if err := service.MergeErrors(true, wg.Wait(), pushErr); err != nil {
		return fmt.Errorf("GCSStore.%w", service.MakeTemporary(err))
	}
	if n == 0 {
		return ErrObjectNotFound{url}
	}
	return nil
}

func downloadGCSWorker(ctx context.Context, bucket *storage.BucketHandle, jobs <-chan gcsObjectToDownload) error {
	for job := range jobs {
		select {
		case <-ctx.Done():
		default:
			if err := downloadGCSObject(ctx, bucket, job.object, job.file); err != nil {
				return err
			}
		}
	}
	return nil
}

func downloadGCSObject(ctx context.Context, bucket *storage.BucketHandle, object, localPath string) error {
	r, err := bucket.Object(object).NewReader(ctx)
	if err != nil {
		return fmt.Errorf("newReader[%s]: %w", object, err)
	}
	defer r.Close()

	f, err := os.Create(localPath)
	if err != nil {
		return fmt.Errorf("create[%s]: %w", localPath, err)
	}
	defer f.Close()

	if _, err := io.Copy(f, r); err != nil {
		return fmt.Errorf("copy[%s]: %w", object, err)
	}
	return nil
}
