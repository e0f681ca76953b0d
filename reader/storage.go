package reader

import (
	"context"

	"github.com/airbusgeo/osio"
	"github.com/aws/aws-sdk-go-v2/aws"

	"github.com/geolake/stac-reader/interface/credentials"
	"github.com/geolake/stac-reader/interface/objectstore"
)

// Store returns the object store of the derived bucket
func (r *Reader) Store() *objectstore.S3Store {
	return objectstore.NewS3Store(credentials.Credentials{
		Endpoint:        r.Endpoint(),
		AccessKeyID:     r.accessKeyID,
		SecretAccessKey: r.secretAccessKey,
	}, r.region)
}

// S3Filesystem returns an authenticated random-access filesystem handle
// against the derived endpoint, served over https when the endpoint carries
// no scheme. Keys are of the form bucket/object. No I/O is performed beyond
// client construction.
func (r *Reader) S3Filesystem(ctx context.Context) (*osio.Adapter, error) {
	return r.Store().Filesystem(ctx)
}

// Session returns a signed aws.Config built from the derived credentials and
// region, usable to construct further service clients
func (r *Reader) Session(ctx context.Context) (aws.Config, error) {
	return r.Store().Config(ctx)
}
