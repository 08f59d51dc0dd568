// Package cfinvalidate creates CloudFront cache invalidations.
package cfinvalidate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudfront"
	"github.com/aws/aws-sdk-go-v2/service/cloudfront/types"
	"github.com/aws/smithy-go"
)

// Client wraps the CloudFront API.
type Client struct {
	cf     *cloudfront.Client
	logger *slog.Logger
}

// NewClient creates a CloudFront client from an AWS config. CloudFront is a
// global service; an empty region falls back to the config's region.
//
//	c := cfinvalidate.NewClient(cfg, "", "", nil, slog.Default())
//	id, err := c.CreateInvalidation(ctx, "E2ABCDEF", "req-1", []string{"/*"})
func NewClient(awsCfg aws.Config, region, endpointOverride string, httpClient *http.Client, logger *slog.Logger) *Client {
	opts := func(o *cloudfront.Options) {
		if region != "" {
			o.Region = region
		}
		if endpointOverride != "" {
			o.BaseEndpoint = aws.String(endpointOverride)
		}
		if httpClient != nil {
			o.HTTPClient = httpClient
		}
	}
	return &Client{
		cf:     cloudfront.NewFromConfig(awsCfg, opts),
		logger: logger,
	}
}

// CreateInvalidation submits one invalidation batch and returns its id.
// CloudFront deduplicates batches by callerReference.
func (c *Client) CreateInvalidation(ctx context.Context, distributionID, callerReference string, paths []string) (string, error) {
	items := append([]string(nil), paths...)
	out, err := c.cf.CreateInvalidation(ctx, &cloudfront.CreateInvalidationInput{
		DistributionId: aws.String(distributionID),
		InvalidationBatch: &types.InvalidationBatch{
			CallerReference: aws.String(callerReference),
			Paths: &types.Paths{
				Quantity: aws.Int32(int32(len(items))),
				Items:    items,
			},
		},
	})
	if err != nil {
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) {
			return "", fmt.Errorf("cfinvalidate: CreateInvalidation %s: %s: %w", distributionID, apiErr.ErrorCode(), err)
		}
		return "", fmt.Errorf("cfinvalidate: CreateInvalidation %s: %w", distributionID, err)
	}
	if out.Invalidation == nil || out.Invalidation.Id == nil {
		return "", fmt.Errorf("cfinvalidate: CreateInvalidation %s: response has no invalidation id", distributionID)
	}

	c.logger.Info("invalidation created",
		"distribution", distributionID,
		"invalidationID", *out.Invalidation.Id,
		"status", aws.ToString(out.Invalidation.Status))
	return *out.Invalidation.Id, nil
}
