// Package stackresolve looks up the bucket and distribution a CloudFormation
// stack created, so the CLI can deploy by stack name.
package stackresolve

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudformation"
	"github.com/aws/smithy-go"
)

// Resource types read from the stack.
const (
	TypeBucket       = "AWS::S3::Bucket"
	TypeDistribution = "AWS::CloudFront::Distribution"
)

// API is the subset of the CloudFormation client the resolver uses.
type API interface {
	DescribeStackResources(ctx context.Context, in *cloudformation.DescribeStackResourcesInput, optFns ...func(*cloudformation.Options)) (*cloudformation.DescribeStackResourcesOutput, error)
}

// Resources holds the physical ids found in a stack. Empty means the stack
// has no resource of that type.
type Resources struct {
	BucketName     string
	DistributionID string
}

// Resolver reads stack resources.
type Resolver struct {
	api    API
	logger *slog.Logger
}

// NewResolver creates a resolver backed by a CloudFormation client built
// from awsCfg.
//
//	r := stackresolve.NewResolver(cfg, "eu-west-1", "", nil, slog.Default())
//	res, err := r.Resolve(ctx, "my-site")
func NewResolver(awsCfg aws.Config, region, endpointOverride string, httpClient *http.Client, logger *slog.Logger) *Resolver {
	client := cloudformation.NewFromConfig(awsCfg, func(o *cloudformation.Options) {
		if region != "" {
			o.Region = region
		}
		if endpointOverride != "" {
			o.BaseEndpoint = aws.String(endpointOverride)
		}
		if httpClient != nil {
			o.HTTPClient = httpClient
		}
	})
	return NewResolverWithAPI(client, logger)
}

// NewResolverWithAPI creates a resolver over an existing client.
func NewResolverWithAPI(api API, logger *slog.Logger) *Resolver {
	return &Resolver{api: api, logger: logger}
}

// Resolve returns the bucket and distribution of stackName. A stack with
// more than one resource of either type is ambiguous and is an error.
func (r *Resolver) Resolve(ctx context.Context, stackName string) (Resources, error) {
	out, err := r.api.DescribeStackResources(ctx, &cloudformation.DescribeStackResourcesInput{
		StackName: aws.String(stackName),
	})
	if err != nil {
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) {
			return Resources{}, fmt.Errorf("stackresolve: DescribeStackResources %s: %s: %w", stackName, apiErr.ErrorCode(), err)
		}
		return Resources{}, fmt.Errorf("stackresolve: DescribeStackResources %s: %w", stackName, err)
	}

	byType := map[string][]string{}
	logical := map[string][]string{}
	for _, res := range out.StackResources {
		typ := aws.ToString(res.ResourceType)
		if typ != TypeBucket && typ != TypeDistribution {
			continue
		}
		id := aws.ToString(res.PhysicalResourceId)
		if id == "" {
			continue
		}
		byType[typ] = append(byType[typ], id)
		logical[typ] = append(logical[typ], aws.ToString(res.LogicalResourceId))
	}

	var result Resources
	for typ, dst := range map[string]*string{TypeBucket: &result.BucketName, TypeDistribution: &result.DistributionID} {
		switch ids := byType[typ]; len(ids) {
		case 0:
		case 1:
			*dst = ids[0]
		default:
			names := logical[typ]
			sort.Strings(names)
			return Resources{}, fmt.Errorf("stackresolve: stack %s has %d %s resources (%s); pass the id explicitly",
				stackName, len(ids), typ, strings.Join(names, ", "))
		}
	}

	r.logger.Info("resolved stack resources",
		"stack", stackName,
		"bucket", result.BucketName,
		"distribution", result.DistributionID)
	return result, nil
}
