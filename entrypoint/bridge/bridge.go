// Package bridge adapts adaptor implementations to the orchestration
// interfaces. Both entrypoints wire through these types so adaptors never
// import orchestration.
package bridge

import (
	"context"

	"github.com/gurre/sitedeploy-go/adaptor/cfinvalidate"
	"github.com/gurre/sitedeploy-go/adaptor/sitedir"
	"github.com/gurre/sitedeploy-go/orchestration/invalidator"
	"github.com/gurre/sitedeploy-go/orchestration/uploader"
)

// AssetSource adapts sitedir.Dir to uploader.AssetSource.
type AssetSource struct {
	Dir *sitedir.Dir
}

func (b *AssetSource) Load(name string) (uploader.Asset, []byte, error) {
	f, err := b.Dir.Read(name)
	if err != nil {
		return uploader.Asset{}, nil, err
	}
	return uploader.Asset{Name: f.Name, LocalPath: f.Path, ContentType: f.ContentType}, f.Body, nil
}

// CDN adapts cfinvalidate.Client to invalidator.CDN.
type CDN struct {
	Client *cfinvalidate.Client
}

func (b *CDN) CreateInvalidation(ctx context.Context, req invalidator.Request) (string, error) {
	return b.Client.CreateInvalidation(ctx, req.DistributionID, req.CallerReference, req.Paths)
}

// Listing is a directory listing taken once and handed to the deployer, so
// a caller that already planned the upload does not read the directory again.
type Listing []string

// List returns a copy of the listed names.
func (l Listing) List() ([]string, error) {
	return append([]string(nil), l...), nil
}
