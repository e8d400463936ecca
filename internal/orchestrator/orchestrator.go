// Package orchestrator drives the full answer pipeline: route the query,
// swap attachments, run one inference pass per selected adapter, and
// merge the results. It is the single writer of interaction records and
// the facade the control API talks to.
package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"adapterd/internal/consensus"
	"adapterd/internal/host"
	"adapterd/internal/router"
	"adapterd/internal/store"
	"adapterd/pkg/types"
)

// Defaults applied when corresponding Config fields are unset.
const (
	defaultSwapRetries = 3
	defaultSwapBackoff = 50 * time.Millisecond
)

// Config wires the orchestrator to the components it drives.
type Config struct {
	Store      *store.Store
	Host       *host.Host
	Attacher   *host.AttachmentManager
	Router     *router.Router
	Aggregator *consensus.Aggregator
	// Sink receives one record per answered query; nil disables recording.
	Sink RecordSink
	// SwapRetries bounds attach retries after SwapInProgress.
	SwapRetries int
	// SwapBackoff is the sleep between those retries.
	SwapBackoff time.Duration
	// DefaultSampling fills unset fields of per-request sampling.
	DefaultSampling types.SamplingConfig
	Logger          zerolog.Logger
}

// Orchestrator answers queries and exposes the process status view.
type Orchestrator struct {
	cfg     Config
	started time.Time
	queryID atomic.Uint64

	mu      sync.Mutex
	lastErr string
}

func New(cfg Config) *Orchestrator {
	if cfg.SwapRetries <= 0 {
		cfg.SwapRetries = defaultSwapRetries
	}
	if cfg.SwapBackoff <= 0 {
		cfg.SwapBackoff = defaultSwapBackoff
	}
	return &Orchestrator{cfg: cfg, started: time.Now()}
}

// Answer runs the whole pipeline for one query. Explicit adapter ids in
// the request bypass routing; otherwise the router decides, and an empty
// selection answers with the base model alone. With multiple adapters
// each gets its own exclusive attach plus inference pass, sequentially,
// before the aggregator merges.
func (o *Orchestrator) Answer(ctx context.Context, req types.QueryRequest) (types.QueryResponse, error) {
	qid := fmt.Sprintf("q-%d", o.queryID.Add(1))
	start := time.Now()

	decision, err := o.decide(ctx, qid, req)
	if err != nil {
		return types.QueryResponse{}, o.fail(err)
	}

	results, err := o.runPasses(ctx, req.Query, decision, req.Sampling)
	if err != nil {
		return types.QueryResponse{}, o.fail(err)
	}

	merged, err := o.cfg.Aggregator.Aggregate(results, decision)
	if err != nil {
		return types.QueryResponse{}, o.fail(err)
	}
	consensusMethodTotal.WithLabelValues(string(merged.Method)).Inc()
	queriesTotal.WithLabelValues("ok").Inc()
	queryDuration.Observe(time.Since(start).Seconds())

	total := time.Since(start).Milliseconds()
	o.record(qid, req.Query, decision, merged, total)

	return types.QueryResponse{
		QueryID:    qid,
		FinalText:  merged.FinalText,
		Method:     merged.Method,
		AdapterIDs: decision.AdapterIDs(),
		Results:    merged.Contributing,
		TotalMs:    total,
	}, nil
}

// decide produces the routing decision, honoring explicit adapter ids.
func (o *Orchestrator) decide(ctx context.Context, qid string, req types.QueryRequest) (types.RoutingDecision, error) {
	if len(req.AdapterIDs) > 0 {
		decision := types.RoutingDecision{QueryID: qid}
		for _, id := range req.AdapterIDs {
			rec, err := o.cfg.Store.Lookup(id)
			if err != nil {
				return types.RoutingDecision{}, err
			}
			decision.Selected = append(decision.Selected, types.Selection{
				AdapterID:  rec.ID,
				Domain:     rec.Domain,
				Confidence: 1,
			})
		}
		return decision, nil
	}

	decision, err := o.cfg.Router.Route(ctx, qid, req.Query)
	if err != nil {
		if router.IsNoAdaptersRegistered(err) {
			// Sanctioned degradation: answer with the base model alone.
			routerFallbacksTotal.Inc()
			return decision, nil
		}
		return types.RoutingDecision{}, err
	}
	if len(decision.Selected) == 0 {
		routerFallbacksTotal.Inc()
	}
	return decision, nil
}

// runPasses swaps and infers once per selected adapter, or once base-only
// when nothing was selected. The external memory owns snippet content;
// the core only carries refs, so the query text is the prompt as-is.
func (o *Orchestrator) runPasses(ctx context.Context, query string, decision types.RoutingDecision, sampling types.SamplingConfig) ([]types.InferenceResult, error) {
	sampling = o.fillSampling(sampling)
	ids := decision.AdapterIDs()
	if len(ids) == 0 {
		if err := o.attachWithRetry(ctx, nil); err != nil {
			return nil, err
		}
		res, err := o.cfg.Host.Infer(ctx, query, sampling)
		if err != nil {
			return nil, err
		}
		inferencesTotal.WithLabelValues("base").Inc()
		return []types.InferenceResult{res}, nil
	}

	results := make([]types.InferenceResult, 0, len(ids))
	for _, id := range ids {
		if err := o.attachWithRetry(ctx, []string{id}); err != nil {
			return nil, err
		}
		res, err := o.cfg.Host.Infer(ctx, query, sampling)
		if err != nil {
			return nil, err
		}
		inferencesTotal.WithLabelValues(id).Inc()
		results = append(results, res)
	}
	return results, nil
}

// attachWithRetry retries SwapInProgress rejections with a short backoff;
// every other error surfaces immediately.
func (o *Orchestrator) attachWithRetry(ctx context.Context, ids []string) error {
	var err error
	for attempt := 0; attempt <= o.cfg.SwapRetries; attempt++ {
		if attempt > 0 {
			swapRetriesTotal.Inc()
			select {
			case <-time.After(o.cfg.SwapBackoff):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		err = o.cfg.Attacher.Attach(ctx, ids)
		if err == nil || !host.IsSwapInProgress(err) {
			return err
		}
	}
	return err
}

func (o *Orchestrator) fillSampling(s types.SamplingConfig) types.SamplingConfig {
	d := o.cfg.DefaultSampling
	if s.MaxTokens <= 0 {
		s.MaxTokens = d.MaxTokens
	}
	if s.Temperature <= 0 {
		s.Temperature = d.Temperature
	}
	if s.TopP <= 0 {
		s.TopP = d.TopP
	}
	if s.TopK <= 0 {
		s.TopK = d.TopK
	}
	return s
}

func (o *Orchestrator) record(qid, query string, decision types.RoutingDecision, merged types.ConsensusResult, totalMs int64) {
	if o.cfg.Sink == nil {
		return
	}
	confs := make([]float64, 0, len(decision.Selected))
	for _, s := range decision.Selected {
		confs = append(confs, s.Confidence)
	}
	o.cfg.Sink.Record(types.QueryRecord{
		QueryID:     qid,
		Query:       query,
		AdapterIDs:  decision.AdapterIDs(),
		Confidences: confs,
		Method:      merged.Method,
		Results:     merged.Contributing,
		TotalMs:     totalMs,
		Timestamp:   time.Now(),
	})
}

func (o *Orchestrator) fail(err error) error {
	queriesTotal.WithLabelValues("error").Inc()
	o.cfg.Logger.Error().Err(err).Msg("query failed")
	o.mu.Lock()
	o.lastErr = err.Error()
	o.mu.Unlock()
	return err
}

// Adapters returns the catalog.
func (o *Orchestrator) Adapters() types.AdaptersResponse {
	return types.AdaptersResponse{Adapters: o.cfg.Store.List()}
}

// Attach swaps the active composition explicitly and returns the new state.
func (o *Orchestrator) Attach(ctx context.Context, ids []string) (types.AttachmentState, error) {
	if err := o.cfg.Attacher.Attach(ctx, ids); err != nil {
		return types.AttachmentState{}, err
	}
	return o.cfg.Attacher.Current(), nil
}

// Detach returns the host to base-only and reports the new state.
func (o *Orchestrator) Detach(ctx context.Context) (types.AttachmentState, error) {
	if err := o.cfg.Attacher.DetachAll(ctx); err != nil {
		return types.AttachmentState{}, err
	}
	return o.cfg.Attacher.Current(), nil
}

// Uninstall frees an adapter's weights and removes it from the catalog.
func (o *Orchestrator) Uninstall(ctx context.Context, id string) error {
	return o.cfg.Attacher.Uninstall(ctx, id)
}

// Ready reports whether the base model is resident.
func (o *Orchestrator) Ready() bool { return o.cfg.Host.Loaded() }

// Status assembles the process status view for the control API.
func (o *Orchestrator) Status() types.StatusResponse {
	att := o.cfg.Attacher.Current()
	attached := make(map[string]struct{}, len(att.ActiveAdapterIDs))
	for _, id := range att.ActiveAdapterIDs {
		attached[id] = struct{}{}
	}
	resident := make(map[string]struct{})
	for _, id := range o.cfg.Attacher.ResidentDeltas() {
		resident[id] = struct{}{}
	}

	recs := o.cfg.Store.List()
	adapters := make([]types.AdapterStatus, 0, len(recs))
	for _, rec := range recs {
		_, isResident := resident[rec.ID]
		_, isAttached := attached[rec.ID]
		adapters = append(adapters, types.AdapterStatus{
			ID:        rec.ID,
			Domain:    rec.Domain,
			Rank:      rec.Rank,
			SizeBytes: rec.SizeBytes,
			Resident:  isResident,
			Attached:  isAttached,
		})
	}

	state := "loading"
	if o.cfg.Host.Loaded() {
		state = "ready"
	}
	o.mu.Lock()
	lastErr := o.lastErr
	o.mu.Unlock()

	now := time.Now()
	return types.StatusResponse{
		BaseModel:      o.cfg.Host.BaseModel(),
		BaseArch:       o.cfg.Host.BaseArch(),
		State:          state,
		LastError:      lastErr,
		Attachment:     att,
		Adapters:       adapters,
		QueueLen:       o.cfg.Host.QueueLen(),
		Inflight:       o.cfg.Host.Inflight(),
		MaxQueueDepth:  o.cfg.Host.MaxQueueDepth(),
		SwapsTotal:     o.cfg.Host.SwapsTotal(),
		UptimeSeconds:  int64(now.Sub(o.started).Seconds()),
		ServerTimeUnix: now.Unix(),
	}
}
