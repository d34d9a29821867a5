package pipeline

import (
	"context"
	"log/slog"

	"github.com/bonnerlab/datasets/dataset"
	"github.com/bonnerlab/datasets/fs"
	"github.com/bonnerlab/datasets/metadata"
	"github.com/bonnerlab/datasets/packaging"
)

// Object2Vec packages the Object2Vec stimulus set from files already present
// in the working directory: the condition list, the per-subject
// cross-validation files and the stimulus image tree.
type Object2Vec struct {
	Descriptor dataset.Descriptor
	FS         fs.Filesystem
	Uploader   packaging.Uploader
	Logger     *slog.Logger
}

// Package builds the stimulus table and packages it with its images.
func (o *Object2Vec) Package(ctx context.Context, cfg Config) (*Report, error) {
	logger := discard(o.Logger).With("dataset", o.Descriptor.Name)
	report := &Report{}

	if err := o.Descriptor.Validate(); err != nil {
		return report, err
	}
	if err := cfg.Location.Validate(); err != nil {
		return report, err
	}

	table, err := metadata.BuildObject2Vec(o.FS, o.Descriptor)
	if err != nil {
		return report, err
	}
	logger.InfoContext(ctx, "built stimulus table", "stimuli", table.Len())

	packager := &packaging.Packager{
		FS:       o.FS,
		Catalog:  cfg.Catalog,
		Uploader: o.Uploader,
		Logger:   logger,

		UploadOptions: cfg.UploadOptions,
	}
	report.Entries, err = packager.PackageStimulusSet(ctx, o.Descriptor.Identifier, table, ".", cfg.Location)
	return report, err
}
