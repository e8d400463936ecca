// Package consensus merges per-adapter inference results into one final
// answer. A single result passes through untouched; the multi-result
// merge is a pluggable strategy so future voting schemes can slot in
// without touching the aggregation contract.
package consensus

import (
	"github.com/rs/zerolog"

	"adapterd/pkg/types"
)

// Strategy merges two or more inference results. The routing decision
// carries the per-adapter confidence the router assigned; every strategy
// receives it even if it ignores it.
type Strategy interface {
	Merge(results []types.InferenceResult, decision types.RoutingDecision) types.ConsensusResult
	Method() types.ConsensusMethod
}

// Aggregator applies the pass-through and empty-set rules around the
// configured merge strategy.
type Aggregator struct {
	strategy Strategy
	logger   zerolog.Logger
}

// New builds an aggregator. A nil strategy defaults to highest-confidence.
func New(strategy Strategy, logger zerolog.Logger) *Aggregator {
	if strategy == nil {
		strategy = HighestConfidence{}
	}
	return &Aggregator{strategy: strategy, logger: logger}
}

// Aggregate merges results for one query. Zero results fail with
// EmptyResultSet; exactly one is a pass-through with method single-pass;
// more than one defers to the strategy.
func (a *Aggregator) Aggregate(results []types.InferenceResult, decision types.RoutingDecision) (types.ConsensusResult, error) {
	switch len(results) {
	case 0:
		return types.ConsensusResult{}, ErrEmptyResultSet()
	case 1:
		return types.ConsensusResult{
			FinalText:    results[0].Text,
			Contributing: results,
			Method:       types.MethodSinglePass,
		}, nil
	}
	out := a.strategy.Merge(results, decision)
	a.logger.Debug().
		Str("query_id", decision.QueryID).
		Str("method", string(out.Method)).
		Int("results", len(results)).
		Msg("aggregated")
	return out, nil
}
