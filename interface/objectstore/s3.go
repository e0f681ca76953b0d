package objectstore

import (
	"context"
	"fmt"
	"os"
	"path"
	"strings"

	"github.com/airbusgeo/osio"
	osios3 "github.com/airbusgeo/osio/s3"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	awscredentials "github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/geolake/stac-reader/interface/credentials"
)

// S3Store implements Store for any S3-compatible object storage
type S3Store struct {
	endpoint        string
	region          string
	accessKeyID     string
	secretAccessKey string
}

// NewS3Store creates a new Store from the credentials of a bucket
func NewS3Store(creds credentials.Credentials, region string) *S3Store {
	return &S3Store{
		endpoint:        creds.Endpoint,
		region:          region,
		accessKeyID:     creds.AccessKeyID,
		secretAccessKey: creds.SecretAccessKey,
	}
}

// Name implements Store
func (s *S3Store) Name() string {
	return "S3"
}

// EndpointURL prefixes the endpoint with https:// when it carries no scheme
func EndpointURL(endpoint string) string {
	if endpoint == "" || strings.Contains(endpoint, "://") {
		return endpoint
	}
	return "https://" + endpoint
}

// Config returns a signed aws.Config from the static credentials
func (s *S3Store) Config(ctx context.Context) (aws.Config, error) {
	cfg, err := config.LoadDefaultConfig(ctx,
		config.WithCredentialsProvider(awscredentials.NewStaticCredentialsProvider(s.accessKeyID, s.secretAccessKey, "")),
		config.WithRegion(s.region),
	)
	if err != nil {
		return aws.Config{}, fmt.Errorf("config.LoadDefaultConfig: %w", err)
	}
	return cfg, nil
}

// Client returns an S3 client against the endpoint
func (s *S3Store) Client(ctx context.Context) (*s3.Client, error) {
	cfg, err := s.Config(ctx)
	if err != nil {
		return nil, fmt.Errorf("Client.%w", err)
	}
	endpoint := EndpointURL(s.endpoint)
	return s3.NewFromConfig(cfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		}
	}), nil
}

// Filesystem returns a random-access filesystem handle over the storage.
// Keys are of the form bucket/object.
func (s *S3Store) Filesystem(ctx context.Context) (*osio.Adapter, error) {
	client, err := s.Client(ctx)
	if err != nil {
		return nil, fmt.Errorf("Filesystem.%w", err)
	}
	handle, err := osios3.Handle(ctx, osios3.S3Client(client))
	if err != nil {
		return nil, fmt.Errorf("Filesystem.Handle: %w", err)
	}
	adapter, err := osio.NewAdapter(handle)
	if err != nil {
		return nil, fmt.Errorf("Filesystem.NewAdapter: %w", err)
	}
	return adapter, nil
}

// Download implements Store. url is s3://bucket/object and all the objects
// prefixed by object are fetched flat into localDir.
func (s *S3Store) Download(ctx context.Context, url, localDir string) error {
	bucket, prefix, err := splitBucketObject(url)
	if err != nil {
		return fmt.Errorf("S3Store.%w", err)
	}
	client, err := s.Client(ctx)
	if err != nil {
		return fmt.Errorf("S3Store.%w", err)
	}

	downloader := manager.NewDownloader(client, func(d *manager.Downloader) {
		d.PartSize = 10 * 1024 * 1024 // 10MB per part
	})
	paginator := s3.NewListObjectsV2Paginator(client, &s3.ListObjectsV2Input{
		Bucket: aws.String(bucket),
		Prefix: aws.String(prefix),
	})

	n := 0
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return fmt.Errorf("S3Store.NextPage: %w", err)
		}
		for _, object := range page.Contents {
			objectKey := aws.ToString(object.Key)
			localFilePath := path.Join(localDir, objectKey[strings.LastIndex(objectKey, "/")+1:])
			if err := downloadObjectToFile(ctx, downloader, bucket, objectKey, localFilePath); err != nil {
				return fmt.Errorf("S3Store.%w", err)
			}
			n++
		}
	}
	if n == 0 {
		return ErrObjectNotFound{url}
	}
	return nil
}

func downloadObjectToFile(ctx context.Context, downloader *manager.Downloader, bucket, objectKey, localPath string) error {
	file, err := os.Create(localPath)
	if err != nil {
		return fmt.Errorf("downloadObjectToFile.Create[%s]: %w", localPath, err)
	}
	defer file.Close()

	if _, err = downloader.Download(ctx, file, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(objectKey),
	}); err != nil {
		return fmt.Errorf("downloadObjectToFile[%s/%s]: %w", bucket, objectKey, err)
	}
	return nil
}
