package cli

import (
	"github.com/spf13/cobra"

	"github.com/bonnerlab/datasets/catalog"
	"github.com/bonnerlab/datasets/dataset"
	"github.com/bonnerlab/datasets/packaging"
	"github.com/bonnerlab/datasets/pipeline"
)

// PackageOptions holds flags for the package command.
type PackageOptions struct {
	*RootOptions
	Catalog       string
	LocationType  string
	Location      string
	ForceDownload bool
	Workers       int
}

// NewPackageCommand creates the package command.
func NewPackageCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &PackageOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "package <dataset>",
		Short: "Package a dataset as a stimulus set and data assemblies",
		Long: `Run every stage for a dataset and store the result at a location.

NSD-layout datasets are downloaded, their stimuli are split into PNG files, and
the stimulus set plus one data assembly per subject are packaged. Object2Vec
is packaged from the condition list, cross-validation files and stimulus tree
already present in the working directory.

Every stored file is registered in the catalog database.

Example:
  datasets package nsd --anonymous -C /data/nsd --catalog ./catalog.db --location ./packages
  datasets package object2vec -C /data/object2vec --catalog ./catalog.db \
    --location-type s3 --location s3://brainio-store/object2vec`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPackage(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Catalog, "catalog", "", "path to SQLite catalog database (required)")
	cmd.Flags().StringVar(&opts.LocationType, "location-type", packaging.LocationLocal, "where packages are stored (local|s3)")
	cmd.Flags().StringVar(&opts.Location, "location", "", "directory, or bucket[/prefix] for s3 (required)")
	cmd.Flags().BoolVar(&opts.ForceDownload, "force-download", false, "download files that are already present")
	cmd.Flags().IntVar(&opts.Workers, "workers", 0, "images encoded at once (default GOMAXPROCS)")
	_ = cmd.MarkFlagRequired("catalog")
	_ = cmd.MarkFlagRequired("location")

	return cmd
}

func runPackage(opts *PackageOptions, name string, cmd *cobra.Command) error {
	ctx := cmd.Context()
	logger := opts.Logger()

	d, err := resolveDataset(name)
	if err != nil {
		return err
	}
	cfg := pipeline.Config{
		ForceDownload: opts.ForceDownload,
		Location:      packaging.Location{Type: opts.LocationType, Path: opts.Location},
		UploadOptions: opts.uploadOptions(),
	}
	if err := cfg.Location.Validate(); err != nil {
		return WrapExitError(ExitCommandError, "invalid location", err)
	}
	work, dir, err := opts.workFS()
	if err != nil {
		return err
	}

	cat, err := catalog.Open(opts.Catalog)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open catalog", err)
	}
	defer func() {
		if closeErr := cat.Close(); closeErr != nil {
			logger.Error("error closing catalog", "error", closeErr)
		}
	}()
	cfg.Catalog = cat

	var report *pipeline.Report
	if isObject2Vec(d) {
		p := &pipeline.Object2Vec{Descriptor: d, FS: work, Logger: logger}
		if cfg.Location.Type == packaging.LocationS3 {
			if p.Uploader, err = opts.backend(ctx); err != nil {
				return err
			}
		}
		report, err = p.Package(ctx, cfg)
	} else {
		var backend Backend
		if backend, err = opts.backend(ctx); err != nil {
			return err
		}
		p := &pipeline.NSD{
			Descriptor: d,
			WorkDir:    dir,
			FS:         work,
			Getter:     backend,
			Uploader:   backend,
			Workers:    opts.Workers,
			Logger:     logger,
		}
		report, err = p.Package(ctx, cfg)
	}

	if report != nil && len(report.Entries) > 0 {
		if renderErr := renderEntries(cmd.OutOrStdout(), report.Entries); renderErr != nil {
			logger.ErrorContext(ctx, "failed to print entries", "error", renderErr)
		}
	}
	if err != nil {
		return WrapExitError(ExitFailure, "packaging failed", err)
	}
	return nil
}

// isObject2Vec reports whether d is packaged from per-subject
// cross-validation files rather than a downloaded image brick.
func isObject2Vec(d dataset.Descriptor) bool {
	_, ok := d.Files[dataset.FileCVSets]
	return ok
}
