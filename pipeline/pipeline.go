// Package pipeline runs the end-to-end repackaging of a dataset: fetch the
// raw files, derive the stimulus set, and hand stimulus set and data
// assemblies to the packager.
package pipeline

import (
	"log/slog"

	"github.com/bonnerlab/datasets/aws/s3/s3types"
	"github.com/bonnerlab/datasets/catalog"
	"github.com/bonnerlab/datasets/fetch"
	"github.com/bonnerlab/datasets/imagesplit"
	"github.com/bonnerlab/datasets/packaging"
)

// Config carries the caller's choices through a run without interpreting
// them.
type Config struct {
	ForceDownload bool
	Catalog       packaging.Registrar
	Location      packaging.Location

	// UploadOptions tune uploads to s3 locations.
	UploadOptions []s3types.UploadOption
}

// Report summarises a run. Stages that did not run are nil.
type Report struct {
	Fetch   *fetch.Report
	Images  *imagesplit.Report
	Entries []catalog.Entry
}

func discard(l *slog.Logger) *slog.Logger {
	if l != nil {
		return l
	}
	return slog.New(slog.DiscardHandler)
}
