package credentials

import (
	"context"
)

// Static is a Provider over a fixed in-memory mapping
type Static map[string]Credentials

// CredentialsByBucket implements Provider
func (s Static) CredentialsByBucket(ctx context.Context, bucket string) (Credentials, error) {
	creds, ok := s[bucket]
	if !ok {
		return Credentials{}, ErrNotFound{Bucket: bucket}
	}
	return creds, nil
}
