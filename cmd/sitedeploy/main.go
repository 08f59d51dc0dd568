// Command sitedeploy deploys a static site from a workstation or CI job.
//
// Usage:
//
//	sitedeploy deploy [flags]     Upload a build directory and invalidate the CDN
//	sitedeploy manifest [flags]   Write sitedeploy.yml with the build's content hash
//	sitedeploy version            Print the version
//
// Deploy flags:
//
//	--dir               Build directory (default: .)
//	--config            Config file (default: <dir>/sitedeploy.yml)
//	--object-store      Bucket to upload to
//	--cdn-distribution  Distribution to invalidate
//	--stack             Resolve missing ids from this CloudFormation stack
//	--region, --profile AWS region and shared-config profile
//	--concurrency       Parallel uploads of non-entry assets
//	--log-file          Also write logs to this size-capped file
//	--progress          Draw a progress bar on stderr
//
// Without both an object store and a distribution the deploy is skipped
// and the command exits 0.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/gurre/sitedeploy-go/entrypoint/localcli"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "sitedeploy: %s\n", err)
		cancel()
		os.Exit(1)
	}
}

// globalFlags are shared by every subcommand.
type globalFlags struct {
	logFile string
	verbose bool
}

func newRootCmd() *cobra.Command {
	var g globalFlags
	root := &cobra.Command{
		Use:           "sitedeploy",
		Short:         "Deploy a static site to S3 and invalidate CloudFront",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&g.logFile, "log-file", "", "also write logs to this file")
	root.PersistentFlags().BoolVarP(&g.verbose, "verbose", "v", false, "log every stored object")

	root.AddCommand(newDeployCmd(&g), newManifestCmd(&g), newVersionCmd())
	return root
}

func newDeployCmd(g *globalFlags) *cobra.Command {
	opts := localcli.DefaultOptions()
	cmd := &cobra.Command{
		Use:   "deploy",
		Short: "Upload the build directory, entry asset last, then invalidate the distribution",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger, closer, err := localcli.NewLogger(cmd.ErrOrStderr(), g.logFile, g.verbose)
			if err != nil {
				return err
			}
			defer func() { _ = closer.Close() }()

			opts.ProgressOut = cmd.ErrOrStderr()
			_, err = localcli.Deploy(cmd.Context(), opts, logger)
			return err
		},
	}
	f := cmd.Flags()
	f.StringVarP(&opts.Dir, "dir", "d", opts.Dir, "build directory")
	f.StringVarP(&opts.ConfigFile, "config", "c", "", "config file (default <dir>/sitedeploy.yml)")
	f.StringVarP(&opts.ObjectStore, "object-store", "b", "", "bucket to upload to")
	f.StringVarP(&opts.CDNDistribution, "cdn-distribution", "i", "", "distribution to invalidate")
	f.StringVarP(&opts.Stack, "stack", "S", "", "CloudFormation stack to resolve missing ids from")
	f.StringVarP(&opts.Region, "region", "R", "", "AWS region")
	f.StringVarP(&opts.Profile, "profile", "P", "", "AWS shared-config profile")
	f.IntVar(&opts.Concurrency, "concurrency", 0, "parallel uploads (default from config)")
	f.BoolVar(&opts.Progress, "progress", false, "draw a progress bar")
	return cmd
}

func newManifestCmd(g *globalFlags) *cobra.Command {
	var opts localcli.ManifestOptions
	cmd := &cobra.Command{
		Use:   "manifest",
		Short: "Write sitedeploy.yml with the entry asset and content hash",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger, closer, err := localcli.NewLogger(cmd.ErrOrStderr(), g.logFile, g.verbose)
			if err != nil {
				return err
			}
			defer func() { _ = closer.Close() }()

			res, err := localcli.Manifest(opts, logger)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), res.ContentHash)
			return nil
		},
	}
	cmd.Flags().StringVarP(&opts.Dir, "dir", "d", ".", "build directory")
	cmd.Flags().StringVarP(&opts.ConfigFile, "config", "c", "", "config file (default <dir>/sitedeploy.yml)")
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			_, _ = io.WriteString(cmd.OutOrStdout(), resolveVersion()+"\n")
		},
	}
}

// resolveVersion reads the module version from Go build info.
// Falls back to "unknown" when build info is unavailable (e.g. go run).
func resolveVersion() string {
	bi, ok := debug.ReadBuildInfo()
	if !ok || bi.Main.Version == "" || bi.Main.Version == "(devel)" {
		return "unknown"
	}
	return bi.Main.Version
}
