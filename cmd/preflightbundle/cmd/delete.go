package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/preflightbundle/preflightbundle/internal/output"
)

func newDeleteCmd() *cobra.Command {
	var root string
	var yes bool

	cmd := &cobra.Command{
		Use:   "delete <bundle-id>",
		Short: "Schedule a bundle for deletion from every storage root",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return fmt.Errorf("refusing to delete %s without --yes", args[0])
			}
			return runDelete(cmd.Context(), cmd, args[0], root)
		},
	}

	cmd.Flags().StringVar(&root, "root", "", "Storage root override")
	cmd.Flags().BoolVar(&yes, "yes", false, "Confirm deletion")

	return cmd
}

func runDelete(ctx context.Context, cmd *cobra.Command, bundleID, root string) error {
	w := output.New(cmd.OutOrStdout())

	mgr, err := newManager(ctx, root, true)
	if err != nil {
		return err
	}

	if err := mgr.Delete(bundleID); err != nil {
		w.Error(err.Error())
		return err
	}

	w.Success(fmt.Sprintf("bundle %s scheduled for deletion", bundleID))
	return nil
}
