// Package source opens the collision CSV from a local file, an http(s) URL,
// or an S3-compatible object store.
package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"
)

// Source is a readable dataset location.
type Source interface {
	// Open returns a reader over the raw CSV bytes. Callers close it.
	Open(ctx context.Context) (io.ReadCloser, error)
	String() string
}

// Options tunes the remote sources. Zero values fall back to defaults.
type Options struct {
	// Timeout bounds an HTTP fetch from request to the end of the body read.
	Timeout    time.Duration
	RetryCount int
	RetryWait  time.Duration

	S3Region    string
	S3Endpoint  string
	S3AccessKey string
	S3SecretKey string
}

const (
	defaultTimeout    = 30 * time.Second
	defaultRetryCount = 3
	defaultRetryWait  = 500 * time.Millisecond
)

func (o Options) withDefaults() Options {
	if o.Timeout <= 0 {
		o.Timeout = defaultTimeout
	}
	if o.RetryCount < 0 {
		o.RetryCount = 0
	} else if o.RetryCount == 0 {
		o.RetryCount = defaultRetryCount
	}
	if o.RetryWait <= 0 {
		o.RetryWait = defaultRetryWait
	}
	if o.S3Region == "" {
		o.S3Region = "us-east-1"
	}
	return o
}

// New picks the source implementation from the scheme of raw.
// Anything without an http, https or s3 scheme is treated as a file path.
func New(ctx context.Context, raw string, opts Options, logger *slog.Logger) (Source, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, errors.New("empty data source")
	}
	opts = opts.withDefaults()

	lower := strings.ToLower(raw)
	switch {
	case strings.HasPrefix(lower, "http://"), strings.HasPrefix(lower, "https://"):
		return NewHTTP(raw, opts, logger), nil
	case strings.HasPrefix(lower, "s3://"):
		bucket, key, err := ParseS3URL(raw)
		if err != nil {
			return nil, err
		}
		client, err := newS3Client(ctx, opts)
		if err != nil {
			return nil, fmt.Errorf("s3 client: %w", err)
		}
		return NewS3(client, bucket, key, logger), nil
	default:
		return NewFile(raw), nil
	}
}
