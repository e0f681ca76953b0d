package credentials

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
)

// File is a Provider loaded from a JSON file mapping bucket names to credentials
type File struct {
	buckets map[string]Credentials
}

// NewFile loads the mapping from the JSON file at path
func NewFile(path string) (*File, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("NewFile: %w", err)
	}
	buckets := map[string]Credentials{}
	if err := json.Unmarshal(raw, &buckets); err != nil {
		return nil, fmt.Errorf("NewFile.Unmarshal: %w", err)
	}
	return &File{buckets: buckets}, nil
}

// CredentialsByBucket implements Provider
func (f *File) CredentialsByBucket(ctx context.Context, bucket string) (Credentials, error) {
	creds, ok := f.buckets[bucket]
	if !ok {
		return Credentials{}, ErrNotFound{Bucket: bucket}
	}
	return creds, nil
}
