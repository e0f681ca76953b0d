package reader

import (
	"fmt"
	neturl "net/url"
	"strings"
)

// BucketFromURL extracts the bucket name from an asset url. For the s3
// scheme the bucket is the url hostname, for any other scheme it is the
// first segment of the path.
func BucketFromURL(url string) (string, error) {
	u, err := neturl.Parse(url)
	if err != nil {
		return "", fmt.Errorf("BucketFromURL: %w", err)
	}
	if strings.EqualFold(u.Scheme, "s3") && u.Hostname() != "" {
		return strings.ToLower(u.Hostname()), nil
	}
	path := u.Path
	end := 0
	if len(path) > 1 {
		if i := strings.Index(path[1:], "/"); i >= 0 {
			end = i + 1
		}
	}
	if end <= 1 {
		return "", fmt.Errorf("BucketFromURL: unable to find bucket name: %s", url)
	}
	return path[1:end], nil
}

// ObjectFromURL extracts the object key from an asset url: the path
// remainder after the first path segment.
func ObjectFromURL(url string) (string, error) {
	u, err := neturl.Parse(url)
	if err != nil {
		return "", fmt.Errorf("ObjectFromURL: %w", err)
	}
	path := u.Path
	begin := 0
	if len(path) > 1 {
		if i := strings.Index(path[1:], "/"); i >= 0 {
			begin = i + 2
		}
	}
	if begin <= 1 {
		return "", fmt.Errorf("ObjectFromURL: unable to find object name: %s", url)
	}
	return path[begin:], nil
}

// HTTPSToS3 rebuilds the s3://bucket/object url of an http(s) asset url
func HTTPSToS3(url string) (string, error) {
	if !strings.HasPrefix(strings.ToLower(url), "http") {
		return "", fmt.Errorf("HTTPSToS3: not an http(s) url: %s", url)
	}
	bucket, err := BucketFromURL(url)
	if err != nil {
		return "", fmt.Errorf("HTTPSToS3.%w", err)
	}
	object, err := ObjectFromURL(url)
	if err != nil {
		return "", fmt.Errorf("HTTPSToS3.%w", err)
	}
	return fmt.Sprintf("s3://%s/%s", bucket, object), nil
}
