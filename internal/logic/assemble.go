package logic

import (
	"context"
	"runtime"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"rulelens/internal/graph"
	"rulelens/internal/rules"
)

// Assemble builds the logic graph for a rule set. Per-rule fragments have no
// data dependency on each other and are computed in parallel; the union is
// associative and order-independent, so the result is identical however the
// rule list is partitioned.
func Assemble(ctx context.Context, rs []*rules.Rule, logger *zap.Logger) (*graph.Graph, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	frags := make([]*graph.Graph, len(rs))
	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(runtime.GOMAXPROCS(0))

	for i, r := range rs {
		i, r := i, r
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			frag, err := BuildRuleSubgraph(r)
			if err != nil {
				return err
			}
			frags[i] = frag
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	g, err := graph.Union(frags...)
	if err != nil {
		return nil, err
	}

	nodes, edges := g.Len()
	logger.Debug("assembled logic graph",
		zap.Int("rules", len(rs)),
		zap.Int("nodes", nodes),
		zap.Int("edges", edges))
	return g, nil
}
