// Package pg resolves bucket credentials from a Postgres table.
package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/geolake/stac-reader/interface/credentials"
	"github.com/lib/pq"
)

// pgInterface allows to use either a sql.DB or a sql.Tx
type pgInterface interface {
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// Backend implements credentials.Provider over a bucket_credentials table
type Backend struct {
	pgInterface
}

/* http://www.postgresql.org/docs/9.3/static/errcodes-appendix.html */
const (
	noError         = "00000"
	uniqueViolation = "23505"

	notPqError = "X"
)

func pqErrorCode(err error) pq.ErrorCode {
	if err == nil {
		return noError
	}
	var pqerr *pq.Error
	if errors.As(err, &pqerr) {
		return pqerr.Code
	}
	return notPqError
}

// New creates a new backend using Postgres
func New(ctx context.Context, dbConnection string) (*Backend, error) {
	db, err := sql.Open("postgres", dbConnection)
	if err != nil {
		return nil, fmt.Errorf("sql.open: %w", err)
	}
	return &Backend{pgInterface: db}, nil
}

// NewFromDB creates a new backend over an existing database handle
func NewFromDB(db *sql.DB) *Backend {
	return &Backend{pgInterface: db}
}

// CredentialsByBucket implements credentials.Provider
func (b Backend) CredentialsByBucket(ctx context.Context, bucket string) (credentials.Credentials, error) {
	creds := credentials.Credentials{}
	err := b.QueryRowContext(ctx,
		"select endpoint, access_key_id, secret_access_key from bucket_credentials where bucket=$1",
		bucket).Scan(&creds.Endpoint, &creds.AccessKeyID, &creds.SecretAccessKey)
	switch {
	case err == sql.ErrNoRows:
		return credentials.Credentials{}, credentials.ErrNotFound{Bucket: bucket}
	case err != nil:
		return credentials.Credentials{}, fmt.Errorf("CredentialsByBucket.Scan: %w", err)
	}
	return creds, nil
}

// RegisterBucket stores or refreshes the credentials of a bucket
func (b Backend) RegisterBucket(ctx context.Context, bucket string, creds credentials.Credentials) error {
	_, err := b.ExecContext(ctx,
		"insert into bucket_credentials (bucket, endpoint, access_key_id, secret_access_key) values ($1, $2, $3, $4)",
		bucket, creds.Endpoint, creds.AccessKeyID, creds.SecretAccessKey)
	switch pqErrorCode(err) {
	case noError:
		return nil
	case uniqueViolation:
		if _, err = b.ExecContext(ctx,
			"update bucket_credentials set endpoint=$2, access_key_id=$3, secret_access_key=$4 where bucket=$1",
			bucket, creds.Endpoint, creds.AccessKeyID, creds.SecretAccessKey); err != nil {
			return fmt.Errorf("RegisterBucket.update: %w", err)
		}
		return nil
	default:
		return fmt.Errorf("RegisterBucket.exec: %w", err)
	}
}

// Buckets returns the registered bucket names
func (b Backend) Buckets(ctx context.Context) ([]string, error) {
	rows, err := b.QueryContext(ctx, "select bucket from bucket_credentials ORDER BY bucket")
	if err != nil {
		return nil, fmt.Errorf("buckets.QueryContext: %w", err)
	}
	defer rows.Close()
	buckets := make([]string, 0)
	for rows.Next() {
		var bucket string
		if err := rows.Scan(&bucket); err != nil {
			return nil, fmt.Errorf("buckets.Scan: %w", err)
		}
		buckets = append(buckets, bucket)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("buckets.rows.err: %w", err)
	}
	return buckets, nil
}
