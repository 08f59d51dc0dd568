// Package localcli wires the sitedeploy CLI flow. Unlike the Lambda handler
// it runs one deploy synchronously from a workstation or CI job, with no
// lifecycle event and no callback.
package localcli

import (
	"context"
	"crypto/rand"
	"fmt"
	"io"
	"log/slog"
	"errors"
	"math/big"
	"os"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/schollz/progressbar/v3"

	"github.com/gurre/sitedeploy-go/adaptor/cfinvalidate"
	"github.com/gurre/sitedeploy-go/adaptor/configloader"
	"github.com/gurre/sitedeploy-go/adaptor/logfile"
	"github.com/gurre/sitedeploy-go/adaptor/s3upload"
	"github.com/gurre/sitedeploy-go/adaptor/sitedir"
	"github.com/gurre/sitedeploy-go/adaptor/stackresolve"
	"github.com/gurre/sitedeploy-go/entrypoint/bridge"
	"github.com/gurre/sitedeploy-go/logic/lifecycle"
	"github.com/gurre/sitedeploy-go/logic/uploadplan"
	"github.com/gurre/sitedeploy-go/orchestration/deployer"
	"github.com/gurre/sitedeploy-go/orchestration/invalidator"
	"github.com/gurre/sitedeploy-go/orchestration/uploader"
	"github.com/gurre/sitedeploy-go/state/config"
)

// Options holds the CLI arguments for a deploy.
type Options struct {
	Dir             string
	ConfigFile      string
	ObjectStore     string
	CDNDistribution string
	Stack           string
	Region          string
	Profile         string
	Concurrency     int
	// Progress draws a bar on ProgressOut while assets upload.
	Progress    bool
	ProgressOut io.Writer
}

// DefaultOptions returns options for deploying the working directory.
//
//	opts := localcli.DefaultOptions()
//	opts.ObjectStore = "site-bucket"
func DefaultOptions() Options {
	return Options{Dir: "."}
}

// ManifestOptions holds the CLI arguments for writing a manifest.
type ManifestOptions struct {
	Dir        string
	ConfigFile string
}

// ManifestResult describes a manifest run. PreviousContentHash is the hash
// the file held before the run, empty when there was none.
type ManifestResult struct {
	Path                string
	ContentHash         string
	PreviousContentHash string
	Written             bool
}

// StackResolver looks up deploy targets by stack name.
type StackResolver interface {
	Resolve(ctx context.Context, stackName string) (stackresolve.Resources, error)
}

// NewLogger builds the CLI logger: text records on stderr and, when logPath
// is set, the same records in a size-capped log file. The returned closer
// must be called before exit.
//
//	logger, closer, err := localcli.NewLogger(os.Stderr, ".sitedeploy/deploy.log", false)
//	defer closer.Close()
func NewLogger(stderr io.Writer, logPath string, verbose bool) (*slog.Logger, io.Closer, error) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}
	if logPath == "" {
		return slog.New(slog.NewTextHandler(stderr, opts)), io.NopCloser(nil), nil
	}
	w, err := logfile.Open(logPath, logfile.DefaultOptions())
	if err != nil {
		return nil, nil, fmt.Errorf("localcli: open log file: %w", err)
	}
	return slog.New(slog.NewTextHandler(io.MultiWriter(stderr, w), opts)), w, nil
}

// Deploy uploads the directory to the object store and invalidates the
// distribution. When either id is missing after flag and stack resolution,
// nothing is deployed; this lets build-only pipelines run the same command.
//
//	out, err := localcli.Deploy(ctx, opts, logger)
func Deploy(ctx context.Context, opts Options, logger *slog.Logger) (deployer.Outcome, error) {
	cfg, err := loadConfig(opts.ConfigFile, opts.Dir)
	if err != nil {
		return deployer.Outcome{}, err
	}
	if opts.Region != "" {
		cfg.Region = opts.Region
	}
	if opts.Concurrency > 0 {
		cfg.Concurrency = opts.Concurrency
	}

	target := lifecycle.Target{ObjectStoreID: opts.ObjectStore, CDNDistributionID: opts.CDNDistribution}
	if opts.Stack == "" && !complete(target) {
		return skip(target, logger), nil
	}

	awsOpts := []func(*awsconfig.LoadOptions) error{}
	if cfg.Region != "" {
		awsOpts = append(awsOpts, awsconfig.WithRegion(cfg.Region))
	}
	if opts.Profile != "" {
		awsOpts = append(awsOpts, awsconfig.WithSharedConfigProfile(opts.Profile))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsOpts...)
	if err != nil {
		return deployer.Outcome{}, fmt.Errorf("localcli: load AWS config: %w", err)
	}

	var resolver StackResolver
	if opts.Stack != "" {
		resolver = stackresolve.NewResolver(awsCfg, cfg.Region, "", nil, logger)
	}
	return run(ctx, opts, cfg, awsCfg, resolver, logger)
}

// run performs a deploy with a loaded configuration.
func run(ctx context.Context, opts Options, cfg config.Deploy, awsCfg aws.Config, resolver StackResolver, logger *slog.Logger) (deployer.Outcome, error) {
	target := lifecycle.Target{ObjectStoreID: opts.ObjectStore, CDNDistributionID: opts.CDNDistribution}
	if opts.Stack != "" && resolver != nil && !complete(target) {
		res, err := resolver.Resolve(ctx, opts.Stack)
		if err != nil {
			return deployer.Outcome{}, fmt.Errorf("localcli: resolve stack: %w", err)
		}
		if target.ObjectStoreID == "" {
			target.ObjectStoreID = res.BucketName
		}
		if target.CDNDistributionID == "" {
			target.CDNDistributionID = res.DistributionID
		}
	}
	if !complete(target) {
		return skip(target, logger), nil
	}

	dir := sitedir.Open(cfg.Dir, cfg.SniffUnknown)
	names, err := dir.List()
	if err != nil {
		return deployer.Outcome{}, fmt.Errorf("localcli: %w", err)
	}
	plan, err := uploadplan.Build(names, cfg.IndexFilename, cfg.UploadExclusions())
	if err != nil {
		return deployer.Outcome{}, fmt.Errorf("localcli: %w", err)
	}

	store := s3upload.NewStore(awsCfg, cfg.Region, cfg.S3EndpointOverride, nil, logger)
	cdn := cfinvalidate.NewClient(awsCfg, "", cfg.CloudFrontEndpointOverride, nil, logger)

	up := uploader.NewUploader(store, &bridge.AssetSource{Dir: dir}, cfg.Concurrency, logger)
	var bar *progressbar.ProgressBar
	if opts.Progress && opts.ProgressOut != nil {
		bar = newProgressBar(len(plan.Order()), opts.ProgressOut)
		up = up.WithProgress(func(_, _ int, _ string) { _ = bar.Add(1) })
	}
	inv := invalidator.NewInvalidator(&bridge.CDN{Client: cdn}, logger)
	d := deployer.NewDeployer(bridge.Listing(names), up, inv, cfg.IndexFilename, cfg.UploadExclusions(), logger)

	requestID := newRequestID()
	logger.Info("local deploy starting",
		"requestID", requestID,
		"dir", dir.Root(),
		"bucket", target.ObjectStoreID,
		"distribution", target.CDNDistributionID,
		"assets", len(plan.Order()))

	out, err := d.Deploy(ctx, requestID, target)
	if bar != nil {
		_ = bar.Finish()
	}
	if err != nil {
		return out, fmt.Errorf("localcli: %w", err)
	}
	logger.Info("local deploy succeeded", "requestID", requestID, "uploaded", len(out.Uploaded), "invalidationID", out.InvalidationID)
	return out, nil
}

// Manifest computes the content hash of the directory and records it, with
// the index file name, in the config file the handler reads at startup.
// Every other setting in that file is preserved. The index file must exist.
//
//	res, err := localcli.Manifest(localcli.ManifestOptions{Dir: "dist"}, logger)
func Manifest(opts ManifestOptions, logger *slog.Logger) (ManifestResult, error) {
	cfg, err := loadConfig(opts.ConfigFile, opts.Dir)
	if err != nil {
		return ManifestResult{}, err
	}

	dir := sitedir.Open(cfg.Dir, false)
	if !dir.Has(cfg.IndexFilename) {
		return ManifestResult{}, fmt.Errorf("localcli: %s not found in assets of %s", cfg.IndexFilename, dir.Root())
	}
	hash, err := dir.ContentHash(cfg.UploadExclusions())
	if err != nil {
		return ManifestResult{}, fmt.Errorf("localcli: %w", err)
	}

	path := filepath.Join(dir.Root(), cfg.ManifestFilename)
	var previous string
	switch prev, err := configloader.LoadManifest(path); {
	case err == nil:
		previous = prev.ContentHash
	case !errors.Is(err, os.ErrNotExist):
		return ManifestResult{}, fmt.Errorf("localcli: %w", err)
	}

	written, err := configloader.WriteManifest(path, configloader.Manifest{
		IndexFilename: cfg.IndexFilename,
		ContentHash:   hash,
	}, cfg.Cache)
	if err != nil {
		return ManifestResult{}, fmt.Errorf("localcli: %w", err)
	}

	logger.Info("manifest",
		"path", path,
		"contentHash", hash,
		"previousContentHash", previous,
		"changed", previous != hash,
		"written", written)
	return ManifestResult{Path: path, ContentHash: hash, PreviousContentHash: previous, Written: written}, nil
}

// loadConfig loads configFile, or the manifest inside dir when configFile is
// empty. A non-empty dir always wins over the file's dir.
func loadConfig(configFile, dir string) (config.Deploy, error) {
	if dir == "" {
		dir = "."
	}
	if configFile == "" {
		configFile = filepath.Join(dir, config.Default().ManifestFilename)
	}
	cfg, err := configloader.Load(configFile)
	if err != nil {
		return config.Deploy{}, fmt.Errorf("localcli: load config: %w", err)
	}
	if cfg.Dir == "" || dir != "." {
		cfg.Dir = dir
	}
	return cfg, nil
}

func complete(t lifecycle.Target) bool {
	return t.ObjectStoreID != "" && t.CDNDistributionID != ""
}

func skip(t lifecycle.Target, logger *slog.Logger) deployer.Outcome {
	logger.Info("object store or distribution not set, nothing to deploy",
		"bucket", t.ObjectStoreID,
		"distribution", t.CDNDistributionID)
	return deployer.Outcome{Skipped: true}
}

func newProgressBar(total int, w io.Writer) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(w),
		progressbar.OptionShowBytes(false),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetDescription("uploading"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowElapsedTimeOnFinish(),
	)
}

// newRequestID returns an id used as the invalidation caller reference, so
// every CLI run creates its own invalidation.
func newRequestID() string {
	n, _ := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 64))
	return "cli-" + n.Text(36)
}
