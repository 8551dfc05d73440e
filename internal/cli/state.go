package cli

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/picklr-io/infraviz/internal/service"
	"github.com/picklr-io/infraviz/internal/snapshot"
)

var stateJSON bool

var stateCmd = &cobra.Command{
	Use:   "state",
	Short: "Inspect exported stack snapshots",
	Long: `Commands for inspecting the stack snapshots written to the configured
snapshot directory or bucket (INFRAVIZ_SNAPSHOT_DIR or INFRAVIZ_SNAPSHOT_BUCKET).`,
}

var stateListCmd = &cobra.Command{
	Use:   "list",
	Short: "List exported stacks",
	RunE:  runStateList,
}

var stateShowCmd = &cobra.Command{
	Use:   "show <stack-id>",
	Short: "Show one exported stack",
	Args:  cobra.ExactArgs(1),
	RunE:  runStateShow,
}

var stateUnlockCmd = &cobra.Command{
	Use:   "unlock <stack-id>",
	Short: "Release a stuck snapshot lock",
	Args:  cobra.ExactArgs(1),
	RunE:  runStateUnlock,
}

func init() {
	stateShowCmd.Flags().BoolVar(&stateJSON, "json", false, "Output in JSON format")

	stateCmd.AddCommand(stateListCmd)
	stateCmd.AddCommand(stateShowCmd)
	stateCmd.AddCommand(stateUnlockCmd)
}

func openSnapshots(cmd *cobra.Command) (snapshot.Backend, error) {
	b, err := snapshot.New(cmd.Context(), service.SnapshotConfig(cfg))
	if err != nil {
		return nil, err
	}
	if b == nil {
		return nil, errors.New("snapshots are disabled: set INFRAVIZ_SNAPSHOT_DIR or INFRAVIZ_SNAPSHOT_BUCKET")
	}
	return b, nil
}

func runStateList(cmd *cobra.Command, args []string) error {
	b, err := openSnapshots(cmd)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	records, err := snapshot.Restore(ctx, b)
	if err != nil {
		return fmt.Errorf("failed to read snapshots: %w", err)
	}
	if len(records) == 0 {
		fmt.Fprintln(out, "No stacks exported.")
		return nil
	}

	for _, rec := range records {
		fmt.Fprintf(out, "  %s  %-9s  %3d resource(s)  $%.2f/mo\n",
			rec.StackID, rec.DeployStatus, len(rec.Nodes), rec.TotalCost)
	}
	fmt.Fprintf(out, "\nTotal: %d stack(s)\n", len(records))
	return nil
}

func runStateShow(cmd *cobra.Command, args []string) error {
	b, err := openSnapshots(cmd)
	if err != nil {
		return err
	}
	rec, err := b.Read(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("failed to read snapshot of %s: %w", args[0], err)
	}

	out := cmd.OutOrStdout()
	if stateJSON {
		data, err := json.MarshalIndent(rec, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal snapshot: %w", err)
		}
		fmt.Fprintln(out, string(data))
		return nil
	}
	renderRecord(out, rec)
	return nil
}

func runStateUnlock(cmd *cobra.Command, args []string) error {
	b, err := openSnapshots(cmd)
	if err != nil {
		return err
	}
	if err := b.Unlock(cmd.Context(), args[0]); err != nil {
		return fmt.Errorf("failed to unlock %s: %w", args[0], err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Released lock on %s.\n", args[0])
	return nil
}
