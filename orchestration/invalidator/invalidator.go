// Package invalidator marks a CDN distribution's whole path space stale so
// edge caches refetch the freshly uploaded assets from origin.
package invalidator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// AllPaths is the universal path pattern invalidated on every deploy.
const AllPaths = "/*"

// ErrNoDistribution is returned when no distribution id is given.
var ErrNoDistribution = errors.New("invalidator: distribution id is required")

// ErrNoCallerReference is returned when the caller supplies no idempotency token.
var ErrNoCallerReference = errors.New("invalidator: caller reference is required")

// Request is one invalidation request.
type Request struct {
	DistributionID  string
	CallerReference string
	Paths           []string
}

// CDN creates invalidations. It returns the service-assigned invalidation id.
type CDN interface {
	CreateInvalidation(ctx context.Context, req Request) (string, error)
}

// Invalidator issues whole-distribution invalidations.
type Invalidator struct {
	cdn    CDN
	logger *slog.Logger
}

// NewInvalidator creates an invalidator.
//
//	inv := invalidator.NewInvalidator(cfBridge, slog.Default())
//	id, err := inv.InvalidateAll(ctx, "E2ABC123", requestID)
func NewInvalidator(cdn CDN, logger *slog.Logger) *Invalidator {
	return &Invalidator{cdn: cdn, logger: logger}
}

// InvalidateAll issues a single request covering "/*". The caller reference
// must come from the caller so a retried request is recognized as the same
// logical operation while distinct deploys never collide. No retry is
// attempted here.
//
//	id, err := inv.InvalidateAll(ctx, "E2ABC123", "5e1d-...-request-id")
func (i *Invalidator) InvalidateAll(ctx context.Context, distributionID, callerReference string) (string, error) {
	if distributionID == "" {
		return "", ErrNoDistribution
	}
	if callerReference == "" {
		return "", ErrNoCallerReference
	}

	req := Request{
		DistributionID:  distributionID,
		CallerReference: callerReference,
		Paths:           []string{AllPaths},
	}

	i.logger.Info("invalidating CDN cache",
		"distribution", distributionID,
		"callerReference", callerReference,
		"paths", req.Paths)

	id, err := i.cdn.CreateInvalidation(ctx, req)
	if err != nil {
		return "", fmt.Errorf("invalidator: %s: %w", distributionID, err)
	}

	i.logger.Info("invalidated all paths", "distribution", distributionID, "invalidationID", id)
	return id, nil
}
