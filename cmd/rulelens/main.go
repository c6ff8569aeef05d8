// rulelens inspects forward-chaining rule sets: it renders their static
// logic graph, filters it by fact pattern, and explains why facts exist in a
// running session by reconstructing provenance into explanation graphs.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"rulelens/internal/config"
)

var (
	// Global flags
	verbose    bool
	configPath string

	cfg    config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "rulelens",
	Short: "rulelens - rule set structure and provenance as navigable graphs",
	Long: `rulelens turns a declarative, forward-chaining rule set into graphs for
debugging and explainability:

  logic graph    - how rules, their conditions, and the fact types they
                   read and produce relate (static, from definitions)
  explanation    - why a specific fact exists in a running session
                   (dynamic, from working memory and provenance traces)

Graphs are printed in their JSON export form.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		zcfg := zap.NewProductionConfig()
		if verbose {
			zcfg = zap.NewDevelopmentConfig()
			zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zcfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		if cfg.Debug {
			verbose = true
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func main() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "rulelens.yaml", "config file path")

	rootCmd.AddCommand(logicCmd)
	rootCmd.AddCommand(filterCmd)
	rootCmd.AddCommand(explainCmd)
	rootCmd.AddCommand(factsCmd)
	rootCmd.AddCommand(watchCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
