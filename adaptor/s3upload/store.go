// Package s3upload stores deploy assets as S3 objects.
package s3upload

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
)

// Store writes objects to S3 buckets.
type Store struct {
	client *s3.Client
	logger *slog.Logger
}

// NewStore creates an S3 store from an AWS config.
// A non-empty endpointOverride switches to path-style addressing so
// S3-compatible endpoints work. Pass a non-nil httpClient to use a custom
// transport; nil uses the default from the AWS config.
//
//	st := s3upload.NewStore(cfg, "eu-west-1", "", nil, slog.Default())
//	err := st.PutObject(ctx, "site-bucket", "index.html", body, "text/html")
func NewStore(awsCfg aws.Config, region, endpointOverride string, httpClient *http.Client, logger *slog.Logger) *Store {
	opts := func(o *s3.Options) {
		if region != "" {
			o.Region = region
		}
		if endpointOverride != "" {
			o.BaseEndpoint = aws.String(endpointOverride)
			o.UsePathStyle = true
		}
		if httpClient != nil {
			o.HTTPClient = httpClient
		}
	}

	return &Store{
		client: s3.NewFromConfig(awsCfg, opts),
		logger: logger,
	}
}

// PutObject stores body under bucket/key with the given Content-Type.
// Errors carry the S3 error code when the service returned one.
func (s *Store) PutObject(ctx context.Context, bucket, key string, body []byte, contentType string) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(body),
		ContentLength: aws.Int64(int64(len(body))),
		ContentType:   aws.String(contentType),
	})
	if err != nil {
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) {
			return fmt.Errorf("s3upload: PutObject %s/%s: %s: %w", bucket, key, apiErr.ErrorCode(), err)
		}
		return fmt.Errorf("s3upload: PutObject %s/%s: %w", bucket, key, err)
	}

	s.logger.Debug("stored object", "bucket", bucket, "key", key, "contentType", contentType, "bytes", len(body))
	return nil
}
