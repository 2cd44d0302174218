package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/preflightbundle/preflightbundle/internal/lifecycle"
	"github.com/preflightbundle/preflightbundle/internal/output"
)

func newRepairCmd() *cobra.Command {
	var fix bool
	var root string

	cmd := &cobra.Command{
		Use:   "repair <bundle-id>",
		Short: "Validate (and optionally regenerate) a bundle's required artifacts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRepair(cmd.Context(), cmd, args[0], fix, root)
		},
	}

	cmd.Flags().BoolVar(&fix, "fix", false, "Regenerate any missing or empty artifacts")
	cmd.Flags().StringVar(&root, "root", "", "Storage root override")

	return cmd
}

func runRepair(ctx context.Context, cmd *cobra.Command, bundleID string, fix bool, root string) error {
	w := output.New(cmd.OutOrStdout())

	mgr, err := newManager(ctx, root, true)
	if err != nil {
		return err
	}

	mode := lifecycle.RepairValidate
	if fix {
		mode = lifecycle.RepairFix
	}

	result, err := mgr.Repair(ctx, bundleID, mode)
	if err != nil {
		w.Error(err.Error())
		return err
	}

	if len(result.Missing) == 0 {
		w.Success("all required artifacts present")
		return nil
	}
	for _, m := range result.Missing {
		w.Warning(fmt.Sprintf("missing: %s", m))
	}
	for _, r := range result.Regenerated {
		w.Success(fmt.Sprintf("regenerated: %s", r))
	}
	if !fix {
		return fmt.Errorf("%d artifact(s) missing, rerun with --fix to regenerate", len(result.Missing))
	}
	return nil
}
