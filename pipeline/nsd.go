package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/bonnerlab/datasets/dataset"
	"github.com/bonnerlab/datasets/errors"
	"github.com/bonnerlab/datasets/fetch"
	"github.com/bonnerlab/datasets/fs"
	"github.com/bonnerlab/datasets/imagesplit"
	"github.com/bonnerlab/datasets/manifest"
	"github.com/bonnerlab/datasets/metadata"
	"github.com/bonnerlab/datasets/packaging"
)

// DefaultImagesDir is where decoded stimuli are written.
const DefaultImagesDir = "images"

// ImageSource is a closable stimulus source.
type ImageSource interface {
	imagesplit.Source
	Close() error
}

// NSD packages an NSD-layout dataset found in WorkDir.
type NSD struct {
	Descriptor dataset.Descriptor
	// WorkDir is the OS path of the working directory; FS is rooted at it.
	WorkDir  string
	FS       fs.Filesystem
	Getter   fetch.Getter
	Uploader packaging.Uploader
	Workers  int
	Logger   *slog.Logger

	// OpenImages opens the stimulus brick. It defaults to the HDF5 file
	// registered by the descriptor.
	OpenImages func(d dataset.Descriptor) (ImageSource, error)
}

// Package runs download, image split, stimulus table construction and
// packaging. Every stage skips work an earlier run completed, so a failed
// run is resumed by running it again.
func (n *NSD) Package(ctx context.Context, cfg Config) (*Report, error) {
	d := n.Descriptor
	logger := discard(n.Logger).With("dataset", d.Name)
	report := &Report{}

	if err := d.Validate(); err != nil {
		return report, err
	}
	if err := cfg.Location.Validate(); err != nil {
		return report, err
	}
	if d.Image == nil {
		return report, errors.Newf(errors.CodeInvalidConfig, "pipeline.NSD", "dataset %q has no image shape", d.Name)
	}

	var err error
	if report.Fetch, err = n.download(ctx, cfg.ForceDownload, logger); err != nil {
		return report, err
	}
	if report.Images, err = n.splitImages(ctx, logger); err != nil {
		return report, err
	}

	table, err := metadata.BuildNSD(n.FS, d, DefaultImagesDir)
	if err != nil {
		return report, err
	}

	packager := &packaging.Packager{
		FS:       n.FS,
		Catalog:  cfg.Catalog,
		Uploader: n.Uploader,
		Logger:   logger,

		UploadOptions: cfg.UploadOptions,
	}
	entries, err := packager.PackageStimulusSet(ctx, d.Identifier, table, ".", cfg.Location)
	report.Entries = append(report.Entries, entries...)
	if err != nil {
		return report, err
	}

	for s := range d.Subjects {
		e, err := packager.PackageDataAssembly(ctx, SubjectAssembly(d, s), cfg.Location)
		if err != nil {
			return report, err
		}
		report.Entries = append(report.Entries, e)
	}
	return report, nil
}

// SubjectAssembly is the data assembly of one 0-based subject: every file
// fetched for that subject.
func SubjectAssembly(d dataset.Descriptor, subject int) packaging.Assembly {
	return packaging.Assembly{
		Identifier:  fmt.Sprintf("%s.%s", d.Identifier, manifest.SubjectDir(subject)),
		StimulusSet: d.Identifier,
		Files:       manifest.SubjectKeys(d, subject),
		Attributes: map[string]string{
			"subject":           fmt.Sprint(subject),
			"sessions":          fmt.Sprint(d.SessionsFor(subject)),
			"held_out_sessions": fmt.Sprint(d.HeldOutSessions),
		},
	}
}

// Download fetches every manifest key of the dataset into FS.
func (n *NSD) Download(ctx context.Context, force bool) (*fetch.Report, error) {
	return n.download(ctx, force, discard(n.Logger).With("dataset", n.Descriptor.Name))
}

// SplitImages writes every stimulus of the downloaded image brick to
// DefaultImagesDir.
func (n *NSD) SplitImages(ctx context.Context) (*imagesplit.Report, error) {
	if n.Descriptor.Image == nil {
		return nil, errors.Newf(errors.CodeInvalidConfig, "pipeline.NSD", "dataset %q has no image shape", n.Descriptor.Name)
	}
	return n.splitImages(ctx, discard(n.Logger).With("dataset", n.Descriptor.Name))
}

func (n *NSD) download(ctx context.Context, force bool, logger *slog.Logger) (*fetch.Report, error) {
	d := n.Descriptor
	if d.Bucket == "" {
		return nil, errors.Newf(errors.CodeInvalidConfig, "pipeline.NSD", "dataset %q has no bucket", d.Name)
	}
	keys := manifest.NSDKeys(d)
	logger.InfoContext(ctx, "downloading", "keys", len(keys), "bucket", d.Bucket)
	runner := &fetch.Runner{
		Getter: n.Getter,
		Bucket: d.Bucket,
		FS:     n.FS,
		Force:  force,
		Logger: logger,
	}
	return runner.Run(ctx, keys)
}

func (n *NSD) splitImages(ctx context.Context, logger *slog.Logger) (*imagesplit.Report, error) {
	open := n.OpenImages
	if open == nil {
		open = n.openHDF5
	}
	src, err := open(n.Descriptor)
	if err != nil {
		return nil, err
	}
	defer src.Close()

	splitter := &imagesplit.Splitter{
		FS:      n.FS,
		Dir:     DefaultImagesDir,
		Workers: n.Workers,
		Logger:  logger,
	}
	return splitter.Run(ctx, src, n.Descriptor.Stimuli)
}

func (n *NSD) openHDF5(d dataset.Descriptor) (ImageSource, error) {
	key, err := d.File(dataset.FileStimuli)
	if err != nil {
		return nil, err
	}
	brick, err := d.File(dataset.FileImageBrick)
	if err != nil {
		return nil, err
	}
	src, err := imagesplit.OpenHDF5(filepath.Join(n.WorkDir, filepath.FromSlash(key)), brick, d.Stimuli, *d.Image)
	if err != nil {
		return nil, err
	}
	return src, nil
}
