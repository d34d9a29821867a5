package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/bonnerlab/datasets/pipeline"
)

// ImagesOptions holds flags for the images command.
type ImagesOptions struct {
	*RootOptions
	Workers int
}

// NewImagesCommand creates the images command.
func NewImagesCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ImagesOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "images <dataset>",
		Short: "Split the downloaded stimulus brick into PNG files",
		Long: `Write every stimulus of the downloaded HDF5 image brick to images/imageNNNNN.png
in the working directory. Existing files are left alone.

Example:
  datasets images nsd -C /data/nsd --workers 8`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImages(opts, args[0], cmd)
		},
	}

	cmd.Flags().IntVar(&opts.Workers, "workers", 0, "images encoded at once (default GOMAXPROCS)")

	return cmd
}

func runImages(opts *ImagesOptions, name string, cmd *cobra.Command) error {
	d, err := resolveDataset(name)
	if err != nil {
		return err
	}
	work, dir, err := opts.workFS()
	if err != nil {
		return err
	}

	n := &pipeline.NSD{
		Descriptor: d,
		WorkDir:    dir,
		FS:         work,
		Workers:    opts.Workers,
		Logger:     opts.Logger(),
	}
	report, err := n.SplitImages(cmd.Context())
	if report != nil {
		fmt.Fprintf(cmd.OutOrStdout(), "wrote %d, skipped %d in %s\n",
			report.Written, report.Skipped, report.Duration.Round(time.Millisecond))
	}
	if err != nil {
		return WrapExitError(ExitFailure, "image split failed", err)
	}
	return nil
}
