package orchestrator

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"adapterd/internal/consensus"
	"adapterd/internal/gguf/gguftest"
	"adapterd/internal/host"
	"adapterd/internal/router"
	"adapterd/internal/store"
	"adapterd/pkg/types"
)

// echoEngine answers with the attached composition so tests can tell
// which adapter produced each pass.
type echoEngine struct {
	sess *echoSession
}

func (e *echoEngine) Load(path string, opts host.EngineOptions) (host.EngineSession, error) {
	if e.sess == nil {
		e.sess = &echoSession{loaded: map[host.DeltaHandle]string{}, nextID: 1}
	}
	return e.sess, nil
}

type echoSession struct {
	mu      sync.Mutex
	nextID  host.DeltaHandle
	loaded  map[host.DeltaHandle]string
	applied []host.DeltaHandle
}

func (s *echoSession) LoadDelta(path string, scale float32) (host.DeltaHandle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	h := s.nextID
	s.nextID++
	s.loaded[h] = store.AdapterID(path)
	return h, nil
}

func (s *echoSession) ApplyDelta(h host.DeltaHandle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.loaded[h]; !ok {
		return errors.New("unknown handle")
	}
	s.applied = append(s.applied, h)
	return nil
}

func (s *echoSession) RemoveDelta(h host.DeltaHandle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, a := range s.applied {
		if a == h {
			s.applied = append(s.applied[:i], s.applied[i+1:]...)
			return nil
		}
	}
	return errors.New("delta not applied")
}

func (s *echoSession) ClearDeltas() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.applied = nil
	return nil
}

func (s *echoSession) FreeDelta(h host.DeltaHandle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.loaded, h)
	return nil
}

func (s *echoSession) Generate(ctx context.Context, prompt string, params host.GenerateParams, onToken func(string) error) (host.FinalResult, error) {
	s.mu.Lock()
	who := "base"
	if len(s.applied) > 0 {
		who = s.loaded[s.applied[len(s.applied)-1]]
	}
	s.mu.Unlock()
	text := who + " answer"
	if onToken != nil {
		if err := onToken(text); err != nil {
			return host.FinalResult{}, err
		}
	}
	return host.FinalResult{Content: text, TokenCount: 1, FinishReason: "stop"}, nil
}

func (s *echoSession) Close() error { return nil }

func newOrchestrator(t *testing.T, ids ...string) (*Orchestrator, *MemorySink) {
	t.Helper()
	dir := t.TempDir()
	base := gguftest.WriteBase(t, dir, "base.gguf", "llama", 4096)

	st := store.New(store.Config{BaseArch: "llama", HiddenSize: 4096})
	for _, id := range ids {
		p := gguftest.WriteAdapter(t, dir, id+".gguf", "llama", 8)
		_, err := st.Register(p, types.ParseDomain(id), 0)
		require.NoError(t, err)
	}

	h := host.New(host.Config{Engine: &echoEngine{}})
	require.NoError(t, h.Load(base))
	mgr := host.NewAttachmentManager(st, h)
	sink := &MemorySink{}

	o := New(Config{
		Store:      st,
		Host:       h,
		Attacher:   mgr,
		Router:     router.New(router.Config{Store: st}),
		Aggregator: consensus.New(consensus.HighestConfidence{}, zerolog.Nop()),
		Sink:       sink,
		Logger:     zerolog.Nop(),
	})
	return o, sink
}

func TestAnswerRoutesAndSwaps(t *testing.T) {
	o, sink := newOrchestrator(t, "personality", "home")

	resp, err := o.Answer(context.Background(), types.QueryRequest{Query: "turn on the kitchen lights"})
	require.NoError(t, err)
	assert.Equal(t, []string{"home"}, resp.AdapterIDs)
	assert.Equal(t, types.MethodSinglePass, resp.Method)
	assert.Equal(t, "home answer", resp.FinalText)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "home", resp.Results[0].AdapterID)

	// The swap is left in place for the next query.
	st, err := o.Attach(context.Background(), []string{"home"})
	require.NoError(t, err)
	assert.Equal(t, []string{"home"}, st.ActiveAdapterIDs)

	recs := sink.Records()
	require.Len(t, recs, 1)
	assert.Equal(t, "turn on the kitchen lights", recs[0].Query)
	assert.Equal(t, []string{"home"}, recs[0].AdapterIDs)
	assert.Equal(t, types.MethodSinglePass, recs[0].Method)
	require.Len(t, recs[0].Confidences, 1)
	assert.Greater(t, recs[0].Confidences[0], 0.25)
}

func TestAnswerBaseOnlyFallback(t *testing.T) {
	o, _ := newOrchestrator(t, "home")

	// Attach something first so fallback also proves detachment.
	_, err := o.Attach(context.Background(), []string{"home"})
	require.NoError(t, err)

	resp, err := o.Answer(context.Background(), types.QueryRequest{Query: "what is the capital of France"})
	require.NoError(t, err)
	assert.Empty(t, resp.AdapterIDs)
	assert.Equal(t, types.MethodSinglePass, resp.Method)
	assert.Equal(t, "base answer", resp.FinalText)
	assert.Empty(t, resp.Results[0].AdapterID)

	st := o.Status()
	assert.Empty(t, st.Attachment.ActiveAdapterIDs)
}

func TestAnswerEmptyCatalogDegrades(t *testing.T) {
	o, _ := newOrchestrator(t)

	resp, err := o.Answer(context.Background(), types.QueryRequest{Query: "turn on the lights"})
	require.NoError(t, err)
	assert.Empty(t, resp.AdapterIDs)
	assert.Equal(t, "base answer", resp.FinalText)
}

func TestAnswerMultiAdapterConsensus(t *testing.T) {
	o, sink := newOrchestrator(t, "home", "health")

	resp, err := o.Answer(context.Background(), types.QueryRequest{
		Query: "dim the lights while I finish this workout exercise run",
	})
	require.NoError(t, err)
	require.Equal(t, []string{"home", "health"}, resp.AdapterIDs)
	assert.Equal(t, types.MethodHighestConfidence, resp.Method)
	// Three health keywords outscore one home keyword.
	assert.Equal(t, "health answer", resp.FinalText)
	require.Len(t, resp.Results, 2)
	assert.Equal(t, "home", resp.Results[0].AdapterID)
	assert.Equal(t, "health", resp.Results[1].AdapterID)

	recs := sink.Records()
	require.Len(t, recs, 1)
	assert.Equal(t, types.MethodHighestConfidence, recs[0].Method)
}

func TestAnswerExplicitAdaptersBypassRouter(t *testing.T) {
	o, _ := newOrchestrator(t, "home", "work")

	resp, err := o.Answer(context.Background(), types.QueryRequest{
		Query:      "schedule a meeting",
		AdapterIDs: []string{"home"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"home"}, resp.AdapterIDs)
	assert.Equal(t, "home answer", resp.FinalText)
}

func TestAnswerExplicitUnknownAdapter(t *testing.T) {
	o, sink := newOrchestrator(t, "home")

	_, err := o.Answer(context.Background(), types.QueryRequest{
		Query:      "anything",
		AdapterIDs: []string{"ghost"},
	})
	require.Error(t, err)
	assert.True(t, store.IsNotFound(err))
	assert.Empty(t, sink.Records())
	assert.Equal(t, err.Error(), o.Status().LastError)
}

func TestStatusView(t *testing.T) {
	o, _ := newOrchestrator(t, "home", "work")

	_, err := o.Answer(context.Background(), types.QueryRequest{Query: "turn on the kitchen lights"})
	require.NoError(t, err)

	st := o.Status()
	assert.Equal(t, "ready", st.State)
	assert.Equal(t, "llama", st.BaseArch)
	assert.Equal(t, []string{"home"}, st.Attachment.ActiveAdapterIDs)
	assert.GreaterOrEqual(t, st.SwapsTotal, uint64(1))
	require.Len(t, st.Adapters, 2)
	for _, a := range st.Adapters {
		switch a.ID {
		case "home":
			assert.True(t, a.Resident)
			assert.True(t, a.Attached)
		case "work":
			assert.False(t, a.Resident)
			assert.False(t, a.Attached)
		}
	}
}

func TestUninstallThroughFacade(t *testing.T) {
	o, _ := newOrchestrator(t, "home")
	ctx := context.Background()

	_, err := o.Attach(ctx, []string{"home"})
	require.NoError(t, err)
	require.Error(t, o.Uninstall(ctx, "home"))

	_, err = o.Detach(ctx)
	require.NoError(t, err)
	require.NoError(t, o.Uninstall(ctx, "home"))
	assert.Empty(t, o.Adapters().Adapters)
}
