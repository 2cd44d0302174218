package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/preflightbundle/preflightbundle/internal/lifecycle"
	"github.com/preflightbundle/preflightbundle/internal/output"
)

func newStatusCmd() *cobra.Command {
	var root string

	cmd := &cobra.Command{
		Use:   "status <bundle-id>",
		Short: "Show a bundle's manifest summary and artifact health",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(cmd.Context(), cmd, args[0], root)
		},
	}

	cmd.Flags().StringVar(&root, "root", "", "Storage root override")

	return cmd
}

func runStatus(ctx context.Context, cmd *cobra.Command, bundleID, root string) error {
	w := output.New(cmd.OutOrStdout())

	mgr, err := newManager(ctx, root, true)
	if err != nil {
		return err
	}

	summary, err := mgr.Get(bundleID)
	if err != nil {
		w.Error(err.Error())
		return err
	}

	mf := summary.Manifest
	w.Statusf("i", "bundle:      %s", mf.BundleID)
	w.Statusf("i", "fingerprint: %s", mf.Fingerprint)
	w.Statusf("i", "repos:       %d", len(mf.Repos))
	w.Statusf("i", "updated:     %s", mf.UpdatedAt.Format("2006-01-02 15:04"))

	result, err := mgr.Repair(ctx, bundleID, lifecycle.RepairValidate)
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
	return nil
}
