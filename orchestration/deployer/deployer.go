// Package deployer composes the upload and invalidation phases of a deploy,
// skipping each when its target identifier is absent.
package deployer

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/gurre/sitedeploy-go/logic/lifecycle"
	"github.com/gurre/sitedeploy-go/orchestration/uploader"
)

// Lister enumerates the asset names in the local deploy directory.
type Lister interface {
	List() ([]string, error)
}

// AssetUploader runs the upload phase.
type AssetUploader interface {
	UploadAll(ctx context.Context, bucket string, names []string, entry string, exclusions []string) (uploader.Result, error)
}

// CacheInvalidator runs the invalidation phase.
type CacheInvalidator interface {
	InvalidateAll(ctx context.Context, distributionID, callerReference string) (string, error)
}

// Outcome describes what a deploy did.
type Outcome struct {
	// Uploaded lists stored asset names, entry asset last.
	Uploaded []string
	// InvalidationID is set when an invalidation was created.
	InvalidationID string
	// Skipped is true when the target had no object store.
	Skipped bool
	// InvalidationSkipped is true when assets were uploaded but the target
	// had no CDN distribution.
	InvalidationSkipped bool
}

// Deployer runs deploys against one local directory.
type Deployer struct {
	lister      Lister
	uploader    AssetUploader
	invalidator CacheInvalidator
	logger      *slog.Logger
	entry       string
	exclusions  []string
}

// NewDeployer creates a deployer. The exclusions are copied.
//
//	d := deployer.NewDeployer(siteDir, up, inv, "index.html", cfg.UploadExclusions(), slog.Default())
//	out, err := d.Deploy(ctx, requestID, lifecycle.Target{ObjectStoreID: "site-bucket"})
func NewDeployer(lister Lister, up AssetUploader, inv CacheInvalidator, entry string, exclusions []string, logger *slog.Logger) *Deployer {
	return &Deployer{
		lister:      lister,
		uploader:    up,
		invalidator: inv,
		logger:      logger,
		entry:       entry,
		exclusions:  append([]string(nil), exclusions...),
	}
}

// Deploy uploads the local assets to target.ObjectStoreID and then, if a
// distribution is set, invalidates it using requestID as the caller
// reference. Without an object store it does nothing and makes no remote
// calls. The first failure is returned; an upload failure means no
// invalidation is attempted.
//
//	out, err := d.Deploy(ctx, ev.RequestID, ev.Target)
func (d *Deployer) Deploy(ctx context.Context, requestID string, target lifecycle.Target) (Outcome, error) {
	if !target.HasObjectStore() {
		d.logger.Info("no object store in target, nothing to deploy", "requestID", requestID)
		return Outcome{Skipped: true}, nil
	}

	names, err := d.lister.List()
	if err != nil {
		return Outcome{}, fmt.Errorf("deployer: list assets: %w", err)
	}

	res, err := d.uploader.UploadAll(ctx, target.ObjectStoreID, names, d.entry, d.exclusions)
	if err != nil {
		return Outcome{Uploaded: res.Uploaded}, fmt.Errorf("deployer: upload to %s: %w", target.ObjectStoreID, err)
	}
	out := Outcome{Uploaded: res.Uploaded}

	if !target.HasCDN() {
		d.logger.Info("skipping cache invalidation",
			"reason", "no distribution id",
			"bucket", target.ObjectStoreID)
		out.InvalidationSkipped = true
		return out, nil
	}

	id, err := d.invalidator.InvalidateAll(ctx, target.CDNDistributionID, requestID)
	if err != nil {
		return out, fmt.Errorf("deployer: invalidate %s: %w", target.CDNDistributionID, err)
	}
	out.InvalidationID = id

	d.logger.Info("deploy complete",
		"bucket", target.ObjectStoreID,
		"distribution", target.CDNDistributionID,
		"uploaded", len(out.Uploaded),
		"invalidationID", id)
	return out, nil
}
