// Package credentials resolves object-storage credentials per bucket.
package credentials

import (
	"context"
	"fmt"
	neturl "net/url"
	"strings"
)

// Credentials give access to the bucket they were registered for
type Credentials struct {
	Endpoint        string `json:"endpoint"`
	AccessKeyID     string `json:"access_key_id"`
	SecretAccessKey string `json:"secret_access_key"`
}

// ErrNotFound is returned when no credentials are registered for a bucket
type ErrNotFound struct {
	Bucket string
}

func (e ErrNotFound) Error() string {
	return fmt.Sprintf("credentials not found for bucket: %s", e.Bucket)
}

// Provider resolves the credentials of a bucket.
// May return ErrNotFound.
type Provider interface {
	CredentialsByBucket(ctx context.Context, bucket string) (Credentials, error)
}

// RegionParser extracts the storage region from an endpoint
type RegionParser func(endpoint string) (string, error)

// ParseRegion extracts the region label of an endpoint hostname, e.g.
// s3.us-south.cloud-object-storage.appdomain.cloud or s3.eu-west-1.amazonaws.com.
// Qualifier labels (private, direct, dualstack) are skipped and the legacy
// global AWS endpoint maps to us-east-1.
func ParseRegion(endpoint string) (string, error) {
	host := strings.ToLower(endpoint)
	if strings.Contains(host, "://") {
		u, err := neturl.Parse(host)
		if err != nil {
			return "", fmt.Errorf("ParseRegion: %w", err)
		}
		host = u.Hostname()
	} else if i := strings.IndexAny(host, "/:"); i >= 0 {
		host = host[:i]
	}

	parts := strings.Split(host, ".")
	for i, part := range parts {
		if region, ok := strings.CutPrefix(part, "s3-"); ok && region != "" {
			return region, nil
		}
		if part != "s3" {
			continue
		}
		for _, region := range parts[i+1:] {
			switch region {
			case "private", "direct", "dualstack":
				continue
			case "amazonaws":
				return "us-east-1", nil
			default:
				return region, nil
			}
		}
	}
	return "", fmt.Errorf("ParseRegion: no region in endpoint: %s", endpoint)
}
