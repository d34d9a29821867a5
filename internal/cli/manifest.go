package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bonnerlab/datasets/manifest"
)

// ManifestOptions holds flags for the manifest command.
type ManifestOptions struct {
	*RootOptions
	Missing bool
}

// NewManifestCommand creates the manifest command.
func NewManifestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ManifestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "manifest <dataset>",
		Short: "List the remote keys of a dataset",
		Long: `List the remote object keys a dataset needs, one per line, in download order.

Example:
  datasets manifest nsd
  datasets manifest ./nsd-subset.yaml --missing -C /data/nsd`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runManifest(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Missing, "missing", false, "list only keys not yet present in the working directory")

	return cmd
}

func runManifest(opts *ManifestOptions, name string, cmd *cobra.Command) error {
	d, err := resolveDataset(name)
	if err != nil {
		return err
	}
	if d.Bucket == "" {
		return NewExitError(ExitCommandError, fmt.Sprintf("dataset %q is not stored in a bucket", d.Name))
	}

	keys := manifest.NSDKeys(d)
	if opts.Missing {
		work, _, err := opts.workFS()
		if err != nil {
			return err
		}
		missing := keys[:0]
		for _, key := range keys {
			exists, err := work.Exists(key)
			if err != nil {
				return WrapExitError(ExitFailure, "failed to inspect working directory", err)
			}
			if !exists {
				missing = append(missing, key)
			}
		}
		keys = missing
	}

	out := cmd.OutOrStdout()
	for _, key := range keys {
		fmt.Fprintln(out, key)
	}
	return nil
}
