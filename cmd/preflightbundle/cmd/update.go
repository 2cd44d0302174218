package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/preflightbundle/preflightbundle/internal/lifecycle"
	"github.com/preflightbundle/preflightbundle/internal/output"
)

func newUpdateCmd() *cobra.Command {
	var checkOnly, force, offline bool
	var root string

	cmd := &cobra.Command{
		Use:   "update <bundle-id>",
		Short: "Refresh a bundle's repos and rebuild its indexes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUpdate(cmd.Context(), cmd, args[0], checkOnly, force, root, offline)
		},
	}

	cmd.Flags().BoolVar(&checkOnly, "check", false, "Report remote-HEAD deltas without rebuilding")
	cmd.Flags().BoolVar(&force, "force", false, "Rebuild even if no repo has changed")
	cmd.Flags().StringVar(&root, "root", "", "Storage root override")
	cmd.Flags().BoolVar(&offline, "offline", false, "Skip embedder construction for this update")

	return cmd
}

func runUpdate(ctx context.Context, cmd *cobra.Command, bundleID string, checkOnly, force bool, root string, offline bool) error {
	w := output.New(cmd.OutOrStdout())

	if !checkOnly {
		if err := runPrecheck(ctx, bundleRoots(root)[0], offline); err != nil {
			return err
		}
	}

	mgr, err := newManager(ctx, root, offline)
	if err != nil {
		return err
	}

	result, check, err := mgr.Update(ctx, bundleID, lifecycle.UpdateOptions{CheckOnly: checkOnly, Force: force})
	if err != nil {
		w.Error(err.Error())
		return err
	}

	if checkOnly {
		if !check.HasChanges {
			w.Status("=", "no repo has changed since the last build")
			return nil
		}
		for _, d := range check.RepoDeltas {
			if d.Changed {
				w.Statusf("~", "%s: %s -> %s", d.RepoID, d.OldHeadSHA, d.NewHeadSHA)
			}
		}
		return nil
	}

	w.Success(fmt.Sprintf("bundle %s rebuilt (fingerprint %s)", result.BundleID, result.Fingerprint))
	return nil
}
