package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bonnerlab/datasets/pipeline"
)

// DownloadOptions holds flags for the download command.
type DownloadOptions struct {
	*RootOptions
	Force bool
}

// NewDownloadCommand creates the download command.
func NewDownloadCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DownloadOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "download <dataset>",
		Short: "Mirror the remote files of a dataset into the working directory",
		Long: `Download every remote key of a dataset into the working directory. Files that
are already present are skipped, so an interrupted download resumes when the
command is run again.

Example:
  datasets download nsd --anonymous -C /data/nsd
  datasets download nsd --backend minio --endpoint http://localhost:9000`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDownload(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Force, "force", false, "download files that are already present")

	return cmd
}

func runDownload(opts *DownloadOptions, name string, cmd *cobra.Command) error {
	d, err := resolveDataset(name)
	if err != nil {
		return err
	}
	work, _, err := opts.workFS()
	if err != nil {
		return err
	}
	backend, err := opts.backend(cmd.Context())
	if err != nil {
		return err
	}

	n := &pipeline.NSD{
		Descriptor: d,
		FS:         work,
		Getter:     backend,
		Logger:     opts.Logger(),
	}
	report, err := n.Download(cmd.Context(), opts.Force)
	if report != nil {
		fmt.Fprintf(cmd.OutOrStdout(), "fetched %d, skipped %d (%d bytes)\n",
			len(report.Fetched), len(report.Skipped), report.Bytes)
	}
	if err != nil {
		return WrapExitError(ExitFailure, "download failed", err)
	}
	return nil
}
