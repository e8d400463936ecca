// Package router classifies queries and decides which adapters should
// answer them. Classification is keyword scoring per domain plus a
// recency boost from the external context memory and an affinity boost
// from the user's profile record; selection is ordered by declared
// domain priority with store ties broken by registration order.
// Anything below the confidence threshold falls back to the base model,
// which is the one sanctioned silent degradation in the system.
package router

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"adapterd/internal/store"
	"adapterd/pkg/types"
)

// Defaults applied when corresponding Config fields are unset.
const (
	defaultThreshold    = 0.25
	defaultRecentLimit  = 8
	defaultSnippetBoost = 0.15
	defaultMaxBoost     = 0.3
	defaultSnippetTTL   = 30 * time.Minute
	defaultMaxAffinity  = 0.2
)

// Snippet is one recent interaction reference from the external context
// memory: an opaque ref, the domain it was routed to, and its age.
type Snippet struct {
	Ref    string
	Domain types.Domain
	Age    time.Duration
}

// ContextMemory is the read-only boundary to the external long-term
// memory collaborator. Implementations return the most recent snippets
// first.
type ContextMemory interface {
	Recent(ctx context.Context, limit int) ([]Snippet, error)
}

// ProfileSource is the read-only boundary to the external per-user
// profile record. Affinity values are in [0, 1] per domain and act as a
// bounded tiebreaker: an affinity on its own never clears the default
// threshold.
type ProfileSource interface {
	DomainAffinity(ctx context.Context) (map[types.Domain]float64, error)
}

// Config carries router tunables. Store is required, everything else has
// package defaults.
type Config struct {
	Store *store.Store
	// Memory may be nil, in which case routing runs on keywords alone.
	Memory ContextMemory
	// Profile may be nil, in which case no affinity boost is applied.
	Profile ProfileSource
	// Threshold is the minimum confidence a domain must clear to be
	// selected. Defaults to 0.25, which one keyword hit clears.
	Threshold float64
	// Priority overrides the declared domain priority order.
	Priority []types.Domain
	Logger   zerolog.Logger
}

// Router turns queries into routing decisions. It holds no per-query
// state; domain continuity comes from the context memory's recency
// signal, not from router mutation.
type Router struct {
	cfg Config
}

func New(cfg Config) *Router {
	if cfg.Threshold <= 0 {
		cfg.Threshold = defaultThreshold
	}
	if len(cfg.Priority) == 0 {
		cfg.Priority = types.Domains()
	}
	return &Router{cfg: cfg}
}

// Route classifies query and selects at most one adapter per matching
// domain. An empty catalog returns an empty decision together with
// NoAdaptersRegistered so callers can count the degradation; every other
// path returns a nil error, including the below-threshold fallback.
func (r *Router) Route(ctx context.Context, queryID, query string) (types.RoutingDecision, error) {
	decision := types.RoutingDecision{QueryID: queryID}
	if r.cfg.Store.Len() == 0 {
		r.cfg.Logger.Warn().Str("query_id", queryID).Msg("routing with empty adapter catalog")
		return decision, ErrNoAdaptersRegistered()
	}

	var snippets []Snippet
	if r.cfg.Memory != nil {
		var err error
		snippets, err = r.cfg.Memory.Recent(ctx, defaultRecentLimit)
		if err != nil {
			r.cfg.Logger.Warn().Err(err).Str("query_id", queryID).Msg("context memory unavailable, routing on keywords alone")
			snippets = nil
		}
	}

	confidence := Score(query, snippets)
	if r.cfg.Profile != nil {
		affinity, err := r.cfg.Profile.DomainAffinity(ctx)
		if err != nil {
			r.cfg.Logger.Warn().Err(err).Str("query_id", queryID).Msg("profile unavailable, routing without affinity")
		} else {
			applyAffinity(confidence, affinity)
		}
	}
	for _, domain := range r.cfg.Priority {
		c := confidence[domain]
		if c < r.cfg.Threshold {
			continue
		}
		recs := r.cfg.Store.ListByDomain(domain)
		if len(recs) == 0 {
			continue
		}
		// One adapter per matched domain; registration order breaks ties.
		decision.Selected = append(decision.Selected, types.Selection{
			AdapterID:  recs[0].ID,
			Domain:     domain,
			Confidence: c,
		})
	}

	if len(decision.Selected) > 0 {
		selected := make(map[types.Domain]struct{}, len(decision.Selected))
		for _, s := range decision.Selected {
			selected[s.Domain] = struct{}{}
		}
		for _, sn := range snippets {
			if _, ok := selected[sn.Domain]; ok {
				decision.ContextSnippets = append(decision.ContextSnippets, sn.Ref)
			}
		}
	}

	r.cfg.Logger.Debug().
		Str("query_id", queryID).
		Strs("adapters", decision.AdapterIDs()).
		Msg("routed")
	return decision, nil
}

// Score computes per-domain confidence for a query: a keyword component
// that saturates toward 1 with hit count, plus a bounded recency boost
// from matching context snippets. Pure; exported for tests and tuning.
func Score(query string, snippets []Snippet) map[types.Domain]float64 {
	hits := keywordHits(query)
	out := make(map[types.Domain]float64, len(hits))
	for domain, n := range hits {
		out[domain] = float64(n) / (float64(n) + 2)
	}
	boost := make(map[types.Domain]float64)
	for _, sn := range snippets {
		f := freshness(sn.Age)
		if f <= 0 {
			continue
		}
		b := boost[sn.Domain] + defaultSnippetBoost*f
		if b > defaultMaxBoost {
			b = defaultMaxBoost
		}
		boost[sn.Domain] = b
	}
	for domain, b := range boost {
		c := out[domain] + b
		if c > 1 {
			c = 1
		}
		out[domain] = c
	}
	return out
}

// applyAffinity folds profile domain affinities into the confidence map,
// scaled so a full affinity adds at most defaultMaxAffinity.
func applyAffinity(confidence, affinity map[types.Domain]float64) {
	for domain, a := range affinity {
		if a <= 0 {
			continue
		}
		if a > 1 {
			a = 1
		}
		c := confidence[domain] + a*defaultMaxAffinity
		if c > 1 {
			c = 1
		}
		confidence[domain] = c
	}
}

// freshness decays linearly from 1 (now) to 0 (snippet TTL and older).
func freshness(age time.Duration) float64 {
	if age <= 0 {
		return 1
	}
	if age >= defaultSnippetTTL {
		return 0
	}
	return 1 - float64(age)/float64(defaultSnippetTTL)
}
