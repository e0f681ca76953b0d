package credentials

import (
	"context"
	"os"
	"strings"
)

// Env is a Provider reading the process environment. For a bucket named
// my-bucket it reads MY_BUCKET_ENDPOINT, MY_BUCKET_ACCESS_KEY_ID and
// MY_BUCKET_SECRET_ACCESS_KEY.
type Env struct{}

// CredentialsByBucket implements Provider
func (e Env) CredentialsByBucket(ctx context.Context, bucket string) (Credentials, error) {
	prefix := envPrefix(bucket)
	creds := Credentials{
		Endpoint:        os.Getenv(prefix + "_ENDPOINT"),
		AccessKeyID:     os.Getenv(prefix + "_ACCESS_KEY_ID"),
		SecretAccessKey: os.Getenv(prefix + "_SECRET_ACCESS_KEY"),
	}
	if creds.Endpoint == "" || creds.AccessKeyID == "" {
		return Credentials{}, ErrNotFound{Bucket: bucket}
	}
	return creds, nil
}

func envPrefix(bucket string) string {
	prefix := strings.ToUpper(bucket)
	return strings.Map(func(r rune) rune {
		if ('A' <= r && r <= 'Z') || ('0' <= r && r <= '9') {
			return r
		}
		return '_'
	}, prefix)
}
