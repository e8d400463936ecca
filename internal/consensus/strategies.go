package consensus

import (
	"strings"

	"adapterd/pkg/types"
)

// HighestConfidence picks the result whose adapter the router scored
// highest. Ties go to the earlier result, matching attachment order.
type HighestConfidence struct{}

func (HighestConfidence) Method() types.ConsensusMethod { return types.MethodHighestConfidence }

func (s HighestConfidence) Merge(results []types.InferenceResult, decision types.RoutingDecision) types.ConsensusResult {
	best := 0
	for i := 1; i < len(results); i++ {
		if decision.Confidence(results[i].AdapterID) > decision.Confidence(results[best].AdapterID) {
			best = i
		}
	}
	return types.ConsensusResult{
		FinalText:    results[best].Text,
		Contributing: results,
		Method:       s.Method(),
	}
}

// MajorityMerge picks the answer most similar to the others, a textual
// stand-in for majority voting: the result with the highest summed token
// overlap against its peers wins. Ties go to the earlier result.
type MajorityMerge struct{}

func (MajorityMerge) Method() types.ConsensusMethod { return types.MethodMajorityMerge }

func (s MajorityMerge) Merge(results []types.InferenceResult, decision types.RoutingDecision) types.ConsensusResult {
	best, bestScore := 0, -1.0
	for i := range results {
		score := 0.0
		for j := range results {
			if i != j {
				score += overlap(results[i].Text, results[j].Text)
			}
		}
		if score > bestScore {
			best, bestScore = i, score
		}
	}
	return types.ConsensusResult{
		FinalText:    results[best].Text,
		Contributing: results,
		Method:       s.Method(),
	}
}

// overlap is the Jaccard similarity of the two texts' lowercase token sets.
func overlap(a, b string) float64 {
	as, bs := tokens(a), tokens(b)
	if len(as) == 0 || len(bs) == 0 {
		return 0
	}
	inter := 0
	for tok := range as {
		if _, ok := bs[tok]; ok {
			inter++
		}
	}
	union := len(as) + len(bs) - inter
	return float64(inter) / float64(union)
}

func tokens(s string) map[string]struct{} {
	out := make(map[string]struct{})
	for _, f := range strings.Fields(strings.ToLower(s)) {
		out[strings.Trim(f, ".,!?;:\"'")] = struct{}{}
	}
	return out
}

// AccuracyProvider supplies each adapter's historical accuracy score. It
// is the boundary to the external metrics collaborator.
type AccuracyProvider interface {
	Accuracy(adapterID string) float64
}

// WeightedBlend weighs router confidence by historical adapter accuracy
// and picks the highest product. Adapters the provider does not know get
// a neutral weight of 1.
type WeightedBlend struct {
	Provider AccuracyProvider
}

func (WeightedBlend) Method() types.ConsensusMethod { return types.MethodWeightedBlend }

func (s WeightedBlend) Merge(results []types.InferenceResult, decision types.RoutingDecision) types.ConsensusResult {
	best, bestScore := 0, -1.0
	for i, r := range results {
		w := 1.0
		if s.Provider != nil {
			if acc := s.Provider.Accuracy(r.AdapterID); acc > 0 {
				w = acc
			}
		}
		score := decision.Confidence(r.AdapterID) * w
		if score > bestScore {
			best, bestScore = i, score
		}
	}
	return types.ConsensusResult{
		FinalText:    results[best].Text,
		Contributing: results,
		Method:       s.Method(),
	}
}
