package cmd

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/preflightbundle/preflightbundle/internal/output"
)

func newListCmd() *cobra.Command {
	var root string
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List every bundle across all storage roots",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runList(cmd.Context(), cmd, root, jsonOutput)
		},
	}

	cmd.Flags().StringVar(&root, "root", "", "Storage root override")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func runList(ctx context.Context, cmd *cobra.Command, root string, jsonOutput bool) error {
	mgr, err := newManager(ctx, root, true)
	if err != nil {
		return err
	}

	bundles, err := mgr.List()
	if err != nil {
		return err
	}

	if jsonOutput {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(bundles)
	}

	w := output.New(cmd.OutOrStdout())
	if len(bundles) == 0 {
		w.Status("=", "no bundles found")
		return nil
	}
	for _, b := range bundles {
		name := b.Manifest.DisplayName
		if name == "" {
			name = b.Manifest.BundleID
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s  %s  %d repo(s)  %s\n",
			b.Manifest.BundleID, name, len(b.Manifest.Repos), b.Manifest.UpdatedAt.Format("2006-01-02 15:04"))
	}
	return nil
}
