package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/picklr-io/infraviz/internal/engine"
	"github.com/picklr-io/infraviz/internal/extract"
	"github.com/picklr-io/infraviz/internal/ir"
)

var extractEventLog bool

var extractCmd = &cobra.Command{
	Use:   "extract <program.ts|event-log.jsonl>",
	Short: "Print the preview events of a program as JSON",
	Long: `Prints the canonical resource list the graph is built from.

By default the argument is a program and resources are recovered from its
text. With --event-log the argument is an engine event log (for example the
output of 'pulumi preview --event-log') and its steps are normalized instead.`,
	Args: cobra.ExactArgs(1),
	RunE: runExtract,
}

func init() {
	extractCmd.Flags().BoolVar(&extractEventLog, "event-log", false, "Read an engine event log instead of a program")
}

func runExtract(cmd *cobra.Command, args []string) error {
	var evs []ir.PreviewEvent
	if extractEventLog {
		steps, err := readEventLog(args[0])
		if err != nil {
			return err
		}
		evs = extract.Normalize(steps)
	} else {
		code, err := readProgram(args[0])
		if err != nil {
			return err
		}
		evs = extract.ParseProgram(code)
	}
	if evs == nil {
		evs = []ir.PreviewEvent{}
	}

	data, err := json.MarshalIndent(evs, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal events: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return nil
}

func readEventLog(path string) ([]*engine.StepMetadata, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open event log %s: %w", path, err)
	}
	defer f.Close()

	var all []engine.EngineEvent
	if err := engine.ReadEvents(f, func(ev engine.EngineEvent) { all = append(all, ev) }); err != nil {
		return nil, err
	}
	return engine.ResourcePreEvents(all), nil
}
