// Package cli implements the datasets command line.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/bonnerlab/datasets/dataset"
	"github.com/bonnerlab/datasets/fs/billy"
)

// Object store backends.
const (
	BackendS3    = "s3"
	BackendMinio = "minio"
)

// ValidBackends lists the accepted --backend values.
var ValidBackends = []string{BackendS3, BackendMinio}

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose   bool
	WorkDir   string
	Backend   string
	Endpoint  string
	Region    string
	Anonymous bool

	// Transfer tuning. Zero values keep the backend defaults.
	Timeout     time.Duration
	PartSizeMiB int64
	Concurrency int

	// Dial overrides backend construction (for testing).
	Dial func(ctx context.Context) (Backend, error)

	logger *slog.Logger
}

// NewRootCommand creates the root command for the datasets CLI.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&RootOptions{})
}

func newRootCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "datasets",
		Short: "Download and repackage neuroimaging datasets",
		Long: `Download neuroimaging datasets (NSD, Object2Vec) from their object store,
split packed stimulus images into PNG files, and package stimulus sets and
data assemblies into a local directory or an S3 bucket recorded in a catalog.

Datasets are named by a built-in descriptor (` + strings.Join(dataset.Names(), ", ") + `)
or by the path of a YAML descriptor.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidBackends, opts.Backend) {
				return NewExitError(ExitCommandError,
					fmt.Sprintf("invalid backend %q: must be one of %v", opts.Backend, ValidBackends))
			}

			level := slog.LevelInfo
			if opts.Verbose {
				level = slog.LevelDebug
			}
			handler := slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level})
			opts.logger = slog.New(handler)
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVarP(&opts.WorkDir, "workdir", "C", ".", "working directory mirroring the remote key layout")
	cmd.PersistentFlags().StringVar(&opts.Backend, "backend", BackendS3, "object store backend (s3|minio)")
	cmd.PersistentFlags().StringVar(&opts.Endpoint, "endpoint", "", "object store endpoint (required for minio)")
	cmd.PersistentFlags().StringVar(&opts.Region, "region", "", "object store region")
	cmd.PersistentFlags().BoolVar(&opts.Anonymous, "anonymous", false, "send unsigned requests")
	cmd.PersistentFlags().DurationVar(&opts.Timeout, "timeout", 0, "per-request timeout (0 for none)")
	cmd.PersistentFlags().Int64Var(&opts.PartSizeMiB, "part-size", 0, "multipart upload part size in MiB")
	cmd.PersistentFlags().IntVar(&opts.Concurrency, "upload-concurrency", 0, "parts of one upload in flight")

	cmd.AddCommand(NewManifestCommand(opts))
	cmd.AddCommand(NewDownloadCommand(opts))
	cmd.AddCommand(NewImagesCommand(opts))
	cmd.AddCommand(NewPackageCommand(opts))
	cmd.AddCommand(NewCatalogCommand(opts))

	return cmd
}

// Logger returns the logger configured by the root command.
func (o *RootOptions) Logger() *slog.Logger {
	if o.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return o.logger
}

// workFS opens the working directory.
func (o *RootOptions) workFS() (*billy.FS, string, error) {
	dir, err := filepath.Abs(o.WorkDir)
	if err != nil {
		return nil, "", WrapExitError(ExitCommandError, "invalid working directory", err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, "", WrapExitError(ExitCommandError, "failed to create working directory", err)
	}
	return billy.NewOSFS(dir), dir, nil
}

// resolveDataset returns the built-in descriptor called name, or loads name
// as a YAML descriptor when it names a file.
func resolveDataset(name string) (dataset.Descriptor, error) {
	if d, err := dataset.Lookup(name); err == nil {
		return d, nil
	}

	ext := filepath.Ext(name)
	if ext != ".yaml" && ext != ".yml" {
		return dataset.Descriptor{}, NewExitError(ExitCommandError,
			fmt.Sprintf("unknown dataset %q (built-in: %s)", name, strings.Join(dataset.Names(), ", ")))
	}

	abs, err := filepath.Abs(name)
	if err != nil {
		return dataset.Descriptor{}, WrapExitError(ExitCommandError, "invalid descriptor path", err)
	}
	d, err := dataset.Load(billy.NewOSFS(filepath.Dir(abs)), filepath.Base(abs))
	if err != nil {
		return dataset.Descriptor{}, WrapExitError(ExitCommandError, "failed to load descriptor", err)
	}
	return d, nil
}
