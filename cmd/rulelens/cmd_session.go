package main

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"

	"github.com/spf13/cobra"

	"rulelens/internal/engine"
	"rulelens/internal/explain"
	"rulelens/internal/journal"
)

var (
	explainAll  bool
	factsFilter string
)

// sourceFacts groups the base facts loaded from one source file.
type sourceFacts struct {
	path  string
	facts []*explain.Fact
}

var explainCmd = &cobra.Command{
	Use:   "explain [source.mg...] [fact-id...]",
	Short: "Explain why facts exist in a session built from the sources",
	Long: `Builds a session from the given sources (rules plus base facts), runs it
to a fixpoint, and prints the explanation graph for the requested fact
identifiers. With --all, every derived fact is explained.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var sources, ids []string
		for _, arg := range args {
			if isMangleSource(arg) {
				sources = append(sources, arg)
			} else {
				ids = append(ids, arg)
			}
		}
		if len(sources) == 0 {
			return fmt.Errorf("at least one .mg source is required")
		}
		if len(ids) == 0 && !explainAll {
			return fmt.Errorf("no fact identifiers requested; pass ids or --all")
		}

		snap, err := runSession(cmd, sources)
		if err != nil {
			return err
		}
		if explainAll {
			idx := explain.BuildIndex(snap)
			for id := range idx.Traces {
				ids = append(ids, id)
			}
		}

		g, err := explain.Explain(snap, ids, logger)
		if err != nil {
			return err
		}
		return printGraph(g)
	},
}

var factsCmd = &cobra.Command{
	Use:   "facts [source.mg...]",
	Short: "List fact types and facts held by a session built from the sources",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		snap, err := runSession(cmd, args)
		if err != nil {
			return err
		}
		idx := explain.BuildIndex(snap)

		var filter *regexp.Regexp
		if factsFilter != "" {
			filter, err = regexp.Compile(factsFilter)
			if err != nil {
				return fmt.Errorf("compile filter %q: %w", factsFilter, err)
			}
		}

		out := make(map[string][]factListing)
		for _, typeName := range idx.TypeNames() {
			for _, f := range idx.ByType[typeName] {
				listing := factListing{
					ID:      explain.FactID(f),
					Value:   f.Value,
					Derived: f.Trace != nil,
				}
				if filter != nil && !filter.MatchString(fmt.Sprintf("%v", f.Value)) {
					continue
				}
				out[typeName] = append(out[typeName], listing)
			}
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	},
}

type factListing struct {
	ID      string `json:"id"`
	Value   any    `json:"value"`
	Derived bool   `json:"derived"`
}

// runSession builds a session from the sources, asserts their base facts,
// runs to fixpoint, and returns one atomic snapshot.
func runSession(cmd *cobra.Command, sources []string) (*explain.Snapshot, error) {
	rs, fileFacts, err := loadSources(sources)
	if err != nil {
		return nil, err
	}

	opts := []engine.Option{engine.WithLogger(logger)}
	if cfg.Journal != "" {
		j, err := journal.Open(cfg.Journal)
		if err != nil {
			return nil, err
		}
		defer j.Close()
		opts = append(opts, engine.WithRecorder(j))
	}

	session := engine.NewSession(cfg.Engine, rs, opts...)
	for _, sf := range fileFacts {
		for _, f := range sf.facts {
			if err := session.Assert(cmd.Context(), f.Type.Symbolic(), f.Value); err != nil {
				return nil, fmt.Errorf("assert fact from %s: %w", sf.path, err)
			}
		}
	}
	if err := session.Run(cmd.Context()); err != nil {
		return nil, err
	}
	return session.Snapshot(), nil
}

func isMangleSource(arg string) bool {
	return len(arg) > 3 && arg[len(arg)-3:] == ".mg"
}

func init() {
	explainCmd.Flags().BoolVar(&explainAll, "all", false, "explain every derived fact")
	factsCmd.Flags().StringVar(&factsFilter, "filter", "", "regex filter over fact values")
}
