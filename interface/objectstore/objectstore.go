// Package objectstore provides authenticated access to the object storages
// hosting the assets of a collection.
package objectstore

import (
	"context"
	"fmt"
	neturl "net/url"
	"strings"
)

// Store is the interface of an object download service
type Store interface {
	// Download the object at url (or all the objects it prefixes) into localDir
	Download(ctx context.Context, url, localDir string) error

	// Name of the store
	Name() string
}

// ErrObjectNotFound is an error returned when an url does not point to any stored object
type ErrObjectNotFound struct {
	Object string
}

func (e ErrObjectNotFound) Error() string {
	return fmt.Sprintf("Object not found or unavailable: %s", e.Object)
}

// splitBucketObject splits a scheme://bucket/object url
func splitBucketObject(rawURL string) (bucket, object string, err error) {
	u, err := neturl.Parse(rawURL)
	if err != nil {
		return "", "", fmt.Errorf("splitBucketObject: %w", err)
	}
	if u.Host == "" {
		return "", "", fmt.Errorf("splitBucketObject: missing bucket in %s", rawURL)
	}
	return u.Host, strings.TrimPrefix(u.Path, "/"), nil
}
