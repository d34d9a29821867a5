package cli

import (
	"io"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/bonnerlab/datasets/catalog"
)

// CatalogOptions holds flags for the catalog commands.
type CatalogOptions struct {
	*RootOptions
	Database   string
	Identifier string
}

// NewCatalogCommand creates the catalog command group.
func NewCatalogCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CatalogOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Inspect the lookup catalog",
	}
	cmd.PersistentFlags().StringVar(&opts.Database, "catalog", "", "path to SQLite catalog database (required)")
	_ = cmd.MarkPersistentFlagRequired("catalog")

	list := &cobra.Command{
		Use:   "list",
		Short: "List registered packages",
		Long: `List the files registered in the catalog, ordered by identifier.

Example:
  datasets catalog list --catalog ./catalog.db
  datasets catalog list --catalog ./catalog.db --identifier allen2021.natural_scenes`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCatalogList(opts, cmd)
		},
	}
	list.Flags().StringVar(&opts.Identifier, "identifier", "", "only list entries of this identifier")
	cmd.AddCommand(list)

	return cmd
}

func runCatalogList(opts *CatalogOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()

	cat, err := catalog.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open catalog", err)
	}
	defer func() {
		if closeErr := cat.Close(); closeErr != nil {
			opts.Logger().Error("error closing catalog", "error", closeErr)
		}
	}()

	var entries []catalog.Entry
	if opts.Identifier != "" {
		entries, err = cat.Lookup(ctx, opts.Identifier)
	} else {
		entries, err = cat.List(ctx)
	}
	if err != nil {
		return WrapExitError(ExitFailure, "failed to read catalog", err)
	}

	return renderEntries(cmd.OutOrStdout(), entries)
}

// renderEntries prints entries as a table.
func renderEntries(w io.Writer, entries []catalog.Entry) error {
	table := tablewriter.NewWriter(w)
	table.Header("IDENTIFIER", "TYPE", "LOCATION", "SHA1", "STIMULUS SET")
	for _, e := range entries {
		if err := table.Append([]string{e.Identifier, e.Type, e.Location, e.SHA1, e.StimulusSet}); err != nil {
			return err
		}
	}
	return table.Render()
}
