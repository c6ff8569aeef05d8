package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"rulelens/internal/graph"
	"rulelens/internal/logic"
	"rulelens/internal/manglesrc"
	"rulelens/internal/rules"
)

var logicCmd = &cobra.Command{
	Use:   "logic [source.mg...]",
	Short: "Compute the static logic graph for rule sources",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rs, _, err := loadSources(args)
		if err != nil {
			return err
		}
		g, err := logic.Assemble(cmd.Context(), rs, logger)
		if err != nil {
			return err
		}
		return printGraph(g)
	},
}

var filterCmd = &cobra.Command{
	Use:   "filter <pattern> [source.mg...]",
	Short: "Filter the logic graph down to fact nodes matching a pattern",
	Long: `Computes the logic graph for the given sources, then extracts the
sub-graph around every fact node whose value matches the regex pattern:
everything that leads into a match plus everything a match leads to.`,
	Args: cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		rs, _, err := loadSources(args[1:])
		if err != nil {
			return err
		}
		g, err := logic.Assemble(cmd.Context(), rs, logger)
		if err != nil {
			return err
		}
		sub, err := graph.FilterByFactPattern(g, args[0])
		if err != nil {
			return err
		}
		return printGraph(sub)
	},
}

// loadSources parses the given .mg files, concatenating rule sets and base
// facts across files.
func loadSources(paths []string) ([]*rules.Rule, []sourceFacts, error) {
	src := manglesrc.New(logger)
	var (
		rs    []*rules.Rule
		facts []sourceFacts
	)
	for _, path := range paths {
		loaded, base, err := src.LoadFile(path)
		if err != nil {
			return nil, nil, err
		}
		rs = append(rs, loaded...)
		facts = append(facts, sourceFacts{path: path, facts: base})
	}
	return rs, facts, nil
}

func printGraph(g *graph.Graph) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(g); err != nil {
		return fmt.Errorf("encode graph: %w", err)
	}
	return nil
}
