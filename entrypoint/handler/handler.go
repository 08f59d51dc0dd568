// Package handler wires configuration, adaptors, and orchestration together
// to serve custom-resource lifecycle events on the Lambda runtime.
package handler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"

	"github.com/gurre/sitedeploy-go/adaptor/callback"
	"github.com/gurre/sitedeploy-go/adaptor/cfinvalidate"
	"github.com/gurre/sitedeploy-go/adaptor/configloader"
	"github.com/gurre/sitedeploy-go/adaptor/s3upload"
	"github.com/gurre/sitedeploy-go/adaptor/sitedir"
	"github.com/gurre/sitedeploy-go/entrypoint/bridge"
	"github.com/gurre/sitedeploy-go/logic/lifecycle"
	"github.com/gurre/sitedeploy-go/orchestration/customresource"
	"github.com/gurre/sitedeploy-go/orchestration/deployer"
	"github.com/gurre/sitedeploy-go/orchestration/invalidator"
	"github.com/gurre/sitedeploy-go/orchestration/uploader"
	"github.com/gurre/sitedeploy-go/state/config"
)

// callbackTimeout bounds the response PUT. The pre-signed URL is valid for
// much longer; this only guards against a stalled connection.
const callbackTimeout = 30 * time.Second

// Env describes the process environment the handler starts in.
type Env struct {
	// Getenv reads environment variables (os.Getenv in production).
	Getenv func(string) string
	// ExeDir is the directory holding the running executable and, by
	// default, the deployed assets.
	ExeDir string
	// LogStream is the invocation's log stream name.
	LogStream string
}

// Build loads configuration and the AWS config and returns a ready handler.
//
//	h, err := handler.Build(ctx, handler.Env{Getenv: os.Getenv, ExeDir: dir, LogStream: lambdacontext.LogStreamName}, logger)
//	lambda.Start(h.Handle)
func Build(ctx context.Context, env Env, logger *slog.Logger) (*customresource.Handler, error) {
	cfg, err := LoadConfig(env)
	if err != nil {
		return nil, err
	}

	var awsOpts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		awsOpts = append(awsOpts, awsconfig.WithRegion(cfg.Region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsOpts...)
	if err != nil {
		return nil, fmt.Errorf("handler: load AWS config: %w", err)
	}

	logger.Info("handler ready",
		"dir", cfg.Dir,
		"index", cfg.IndexFilename,
		"contentHash", cfg.ContentHash,
		"region", awsCfg.Region)
	return New(cfg, awsCfg, env.LogStream, logger), nil
}

// LoadConfig reads the config file next to the executable (or the one named
// by SITEDEPLOY_CONFIG), then applies environment overrides. An unset deploy
// directory becomes the executable's directory.
func LoadConfig(env Env) (config.Deploy, error) {
	path := configloader.ConfigPath(env.Getenv, env.ExeDir)
	cfg, err := configloader.Load(path)
	if err != nil {
		return config.Deploy{}, fmt.Errorf("handler: load config: %w", err)
	}
	cfg = configloader.ApplyEnv(cfg, env.Getenv)
	if cfg.Dir == "" {
		cfg.Dir = env.ExeDir
	}
	return cfg, nil
}

// New assembles the handler from an already loaded configuration.
func New(cfg config.Deploy, awsCfg aws.Config, logStream string, logger *slog.Logger) *customresource.Handler {
	dir := sitedir.Open(cfg.Dir, cfg.SniffUnknown)
	store := s3upload.NewStore(awsCfg, cfg.Region, cfg.S3EndpointOverride, nil, logger)
	cdn := cfinvalidate.NewClient(awsCfg, "", cfg.CloudFrontEndpointOverride, nil, logger)

	up := uploader.NewUploader(store, &bridge.AssetSource{Dir: dir}, cfg.Concurrency, logger)
	inv := invalidator.NewInvalidator(&bridge.CDN{Client: cdn}, logger)
	d := deployer.NewDeployer(dir, up, inv, cfg.IndexFilename, cfg.UploadExclusions(), logger)

	n := callback.NewNotifier(nil, callbackTimeout, logger)
	return customresource.NewHandler(d, n, cfg.ContentHash, logStream, logger)
}

// NewFailing returns a handler that answers every deploying event with FAILED
// carrying cause. It is used when startup fails, so the stack operation
// fails fast instead of waiting for a response that never comes. Delete
// still succeeds, which keeps a broken stack removable.
func NewFailing(cause error, logStream string, logger *slog.Logger) *customresource.Handler {
	n := callback.NewNotifier(nil, callbackTimeout, logger)
	return customresource.NewHandler(failingDeployer{err: cause}, n, "", logStream, logger)
}

type failingDeployer struct {
	err error
}

func (f failingDeployer) Deploy(context.Context, string, lifecycle.Target) (deployer.Outcome, error) {
	return deployer.Outcome{}, f.err
}
