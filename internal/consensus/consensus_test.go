package consensus

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"adapterd/pkg/types"
)

func decision(sel ...types.Selection) types.RoutingDecision {
	return types.RoutingDecision{QueryID: "q1", Selected: sel}
}

func result(adapter, text string) types.InferenceResult {
	return types.InferenceResult{AdapterID: adapter, Text: text}
}

func TestAggregateEmpty(t *testing.T) {
	a := New(nil, zerolog.Nop())
	_, err := a.Aggregate(nil, decision())
	require.Error(t, err)
	assert.True(t, IsEmptyResultSet(err))
}

func TestAggregateSinglePassThrough(t *testing.T) {
	a := New(nil, zerolog.Nop())
	r := result("home", "lights are on")
	out, err := a.Aggregate([]types.InferenceResult{r}, decision())
	require.NoError(t, err)
	assert.Equal(t, "lights are on", out.FinalText)
	assert.Equal(t, types.MethodSinglePass, out.Method)
	assert.Equal(t, []types.InferenceResult{r}, out.Contributing)
}

func TestHighestConfidenceWins(t *testing.T) {
	a := New(HighestConfidence{}, zerolog.Nop())
	d := decision(
		types.Selection{AdapterID: "home", Domain: types.DomainHome, Confidence: 0.4},
		types.Selection{AdapterID: "health", Domain: types.DomainHealth, Confidence: 0.7},
	)
	out, err := a.Aggregate([]types.InferenceResult{
		result("home", "home answer"),
		result("health", "health answer"),
	}, d)
	require.NoError(t, err)
	assert.Equal(t, "health answer", out.FinalText)
	assert.Equal(t, types.MethodHighestConfidence, out.Method)
	assert.Len(t, out.Contributing, 2)
}

func TestHighestConfidenceTieKeepsOrder(t *testing.T) {
	a := New(HighestConfidence{}, zerolog.Nop())
	d := decision(
		types.Selection{AdapterID: "a", Confidence: 0.5},
		types.Selection{AdapterID: "b", Confidence: 0.5},
	)
	out, err := a.Aggregate([]types.InferenceResult{
		result("a", "first"),
		result("b", "second"),
	}, d)
	require.NoError(t, err)
	assert.Equal(t, "first", out.FinalText)
}

func TestMajorityMerge(t *testing.T) {
	a := New(MajorityMerge{}, zerolog.Nop())
	out, err := a.Aggregate([]types.InferenceResult{
		result("a", "the lights are now on"),
		result("b", "the lights are on now"),
		result("c", "please water the plants"),
	}, decision())
	require.NoError(t, err)
	// The two agreeing answers outvote the outlier; the earlier one wins.
	assert.Equal(t, "the lights are now on", out.FinalText)
	assert.Equal(t, types.MethodMajorityMerge, out.Method)
}

type fixedAccuracy map[string]float64

func (f fixedAccuracy) Accuracy(id string) float64 { return f[id] }

func TestWeightedBlend(t *testing.T) {
	a := New(WeightedBlend{Provider: fixedAccuracy{"home": 0.9, "health": 0.3}}, zerolog.Nop())
	d := decision(
		types.Selection{AdapterID: "home", Confidence: 0.5},
		types.Selection{AdapterID: "health", Confidence: 0.8},
	)
	out, err := a.Aggregate([]types.InferenceResult{
		result("home", "home answer"),
		result("health", "health answer"),
	}, d)
	require.NoError(t, err)
	// 0.5*0.9 beats 0.8*0.3 despite the lower router confidence.
	assert.Equal(t, "home answer", out.FinalText)
	assert.Equal(t, types.MethodWeightedBlend, out.Method)
}

func TestWeightedBlendWithoutProvider(t *testing.T) {
	a := New(WeightedBlend{}, zerolog.Nop())
	d := decision(
		types.Selection{AdapterID: "a", Confidence: 0.3},
		types.Selection{AdapterID: "b", Confidence: 0.6},
	)
	out, err := a.Aggregate([]types.InferenceResult{
		result("a", "first"),
		result("b", "second"),
	}, d)
	require.NoError(t, err)
	assert.Equal(t, "second", out.FinalText)
}
