// Package uploader puts a site's assets into the object store, holding back
// the entry asset until every other asset is stored.
package uploader

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/gurre/sitedeploy-go/logic/uploadplan"
)

// Asset is one local file to upload. Immutable once read.
type Asset struct {
	Name        string
	LocalPath   string
	ContentType string
}

// AssetSource reads local assets by name.
type AssetSource interface {
	Load(name string) (Asset, []byte, error)
}

// ObjectStore stores one object. Each call is atomic from the uploader's
// point of view: it either stored the object or returned an error.
type ObjectStore interface {
	PutObject(ctx context.Context, bucket, key string, body []byte, contentType string) error
}

// ProgressFunc is called after each successful put with the number of
// assets stored so far and the total planned.
type ProgressFunc func(done, total int, name string)

// Result describes a completed upload phase.
type Result struct {
	// Uploaded lists asset names in completion order. The entry asset is last.
	Uploaded []string
	// Excluded lists names skipped by an exclusion pattern.
	Excluded []string
}

// Uploader runs the upload phase of a deploy.
type Uploader struct {
	store       ObjectStore
	source      AssetSource
	progress    ProgressFunc
	logger      *slog.Logger
	concurrency int
}

// NewUploader creates an uploader. Concurrency bounds parallel puts of
// non-entry assets; values below 1 mean sequential.
//
//	up := uploader.NewUploader(s3Bridge, siteDir, 4, slog.Default())
//	res, err := up.UploadAll(ctx, "site-bucket", names, "index.html", excl)
func NewUploader(store ObjectStore, source AssetSource, concurrency int, logger *slog.Logger) *Uploader {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Uploader{
		store:       store,
		source:      source,
		logger:      logger,
		concurrency: concurrency,
	}
}

// WithProgress returns a copy of the uploader that reports each stored asset.
func (u *Uploader) WithProgress(fn ProgressFunc) *Uploader {
	c := *u
	c.progress = fn
	return &c
}

// UploadAll uploads every listed asset except the excluded ones, then the
// entry asset. When UploadAll returns nil, every non-entry asset was stored
// before the entry asset's put was issued.
//
// The first failed put cancels the remaining puts and is returned; the entry
// asset is not uploaded in that case. Nothing already stored is removed.
//
//	res, err := up.UploadAll(ctx, "site-bucket", []string{"app.js", "index.html"}, "index.html", nil)
func (u *Uploader) UploadAll(ctx context.Context, bucket string, names []string, entry string, exclusions []string) (Result, error) {
	plan, err := uploadplan.Build(names, entry, exclusions)
	if err != nil {
		return Result{}, fmt.Errorf("uploader: %w", err)
	}

	total := len(plan.Assets) + 1
	u.logger.Info("uploading assets",
		"bucket", bucket,
		"assets", total,
		"entry", plan.Entry,
		"excluded", plan.Excluded)

	var (
		mu       sync.Mutex
		uploaded = make([]string, 0, total)
	)
	record := func(name string) {
		mu.Lock()
		uploaded = append(uploaded, name)
		done := len(uploaded)
		mu.Unlock()
		if u.progress != nil {
			u.progress(done, total, name)
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(u.concurrency)
	for _, name := range plan.Assets {
		name := name // per-iteration copy for go < 1.22 loop semantics
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			if err := u.put(gctx, bucket, name); err != nil {
				return err
			}
			record(name)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Result{Uploaded: uploaded, Excluded: plan.Excluded}, err
	}
	if err := ctx.Err(); err != nil {
		return Result{Uploaded: uploaded, Excluded: plan.Excluded}, fmt.Errorf("uploader: %w", err)
	}

	// Every dependent asset is stored; only now may the entry asset appear.
	if err := u.put(ctx, bucket, plan.Entry); err != nil {
		return Result{Uploaded: uploaded, Excluded: plan.Excluded}, err
	}
	record(plan.Entry)

	u.logger.Info("upload complete", "bucket", bucket, "uploaded", len(uploaded))
	return Result{Uploaded: uploaded, Excluded: plan.Excluded}, nil
}

func (u *Uploader) put(ctx context.Context, bucket, name string) error {
	asset, body, err := u.source.Load(name)
	if err != nil {
		return fmt.Errorf("uploader: read %s: %w", name, err)
	}

	u.logger.Info("uploading asset",
		"bucket", bucket,
		"key", asset.Name,
		"contentType", asset.ContentType,
		"bytes", len(body))

	if err := u.store.PutObject(ctx, bucket, asset.Name, body, asset.ContentType); err != nil {
		return fmt.Errorf("uploader: put %s: %w", asset.Name, err)
	}
	return nil
}
