package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lavignes/roolz/internal/registry"
)

// ListOptions holds flags for the list command.
type ListOptions struct {
	*RootOptions
	Database string
}

// SourceListing is the JSON payload for one registry entry.
type SourceListing struct {
	Path    string `json:"path"`
	Package string `json:"package,omitempty"`
	OK      bool   `json:"ok"`
	Error   string `json:"error,omitempty"`
	Seq     int64  `json:"seq"`
}

// NewListCommand creates the list command.
func NewListCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ListOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List registered rule sources and their latest parse outcomes",
		Args:  cobra.NoArgs,
		Long: `List every rule source known to the registry together with the outcome
of its most recent parse.

Example:
  roolz list --db roolz.db
  roolz list --db roolz.db --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to registry database (required)")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func runList(opts *ListOptions, cmd *cobra.Command) error {
	reg, err := registry.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open registry", err)
	}
	defer reg.Close()

	sources, err := reg.List(cmd.Context())
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to list sources", err)
	}

	if opts.Format == "json" {
		listings := make([]SourceListing, 0, len(sources))
		for _, src := range sources {
			listings = append(listings, SourceListing{
				Path:    src.Path,
				Package: src.Package,
				OK:      src.OK,
				Error:   src.ErrorText,
				Seq:     src.Seq,
			})
		}
		formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
		return formatter.Success(listings)
	}

	for _, src := range sources {
		if src.OK {
			fmt.Fprintf(cmd.OutOrStdout(), "✓ %s (pkg %s) seq=%d\n", src.Path, src.Package, src.Seq)
		} else {
			fmt.Fprintf(cmd.OutOrStdout(), "✗ %s: %s seq=%d\n", src.Path, src.ErrorText, src.Seq)
		}
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%d source(s)\n", len(sources))
	return nil
}
