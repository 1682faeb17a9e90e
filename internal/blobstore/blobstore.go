/*
Package blobstore fetches and decompresses delivered log objects. It is the
Log Object Reader of §4.3: fetch by (bucket, key), gzip-decode, and hand
back a UTF-8 text stream for the line parser.
*/
package blobstore

import (
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"sync"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Reader fetches gzip-compressed objects from blob storage.
type Reader struct {
	s3 *s3.Client
}

var (
	singleton *Reader
	initOnce  sync.Once
	initErr   error
)

// Default lazily builds and caches the process-wide Reader.
func Default(ctx context.Context) (*Reader, error) {
	initOnce.Do(func() {
		singleton, initErr = New(ctx)
	})
	return singleton, initErr
}

// New builds a Reader from the default AWS config chain.
func New(ctx context.Context) (*Reader, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return &Reader{s3: s3.NewFromConfig(cfg)}, nil
}

// FetchText fetches bucket/key and returns its gzip-decoded contents as a
// UTF-8 string. The whole object is read into memory: log objects are
// bounded by the edge-CDN's own rotation interval and comfortably fit.
func (r *Reader) FetchText(ctx context.Context, bucket, key string) (string, error) {
	out, err := r.s3.GetObject(ctx, &s3.GetObjectInput{
		Bucket: &bucket,
		Key:    &key,
	})
	if err != nil {
		return "", fmt.Errorf("get object s3://%s/%s: %w", bucket, key, err)
	}
	defer out.Body.Close()

	return DecodeGzip(out.Body)
}

// DecodeGzip reads and gzip-decompresses r, returning its contents as a string.
func DecodeGzip(r io.Reader) (string, error) {
	gz, err := gzip.NewReader(r)
	if err != nil {
		return "", fmt.Errorf("gzip reader: %w", err)
	}
	defer gz.Close()

	body, err := io.ReadAll(gz)
	if err != nil {
		return "", fmt.Errorf("gzip read: %w", err)
	}
	return string(body), nil
}
