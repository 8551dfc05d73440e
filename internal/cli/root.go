package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/picklr-io/infraviz/internal/config"
	"github.com/picklr-io/infraviz/internal/logging"
)

var (
	configFile string
	logLevel   string
	noColor    bool

	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "infraviz",
	Short: "Cost-annotated dependency graphs for generated infrastructure",
	Long: `Infraviz turns generated Pulumi TypeScript programs into dependency graphs
with monthly cost estimates, and deploys them through the Pulumi CLI.

It provides:
  • Resource extraction from an engine preview, or from the program text
  • Graph layout with per-resource cost estimates
  • Deploys with a bounded, trimmed log
  • Optional snapshot export and lifecycle events`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(cmd.Context(), configFile)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("log-level") {
			loaded.LogLevel = logLevel
		}
		cfg = loaded
		logging.Init(cfg.LogLevel)
		noColor = !shouldUseColor()
		return nil
	},
}

// Execute runs the root command. SIGINT and SIGTERM cancel the command's context.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "PKL configuration file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")

	rootCmd.AddCommand(consoleCmd)
	rootCmd.AddCommand(extractCmd)
	rootCmd.AddCommand(graphCmd)
	rootCmd.AddCommand(stateCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(versionCmd)
}
