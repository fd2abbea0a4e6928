package pipeline_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/couchcryptid/disaster-risk-service/internal/assess"
	"github.com/couchcryptid/disaster-risk-service/internal/domain"
	"github.com/couchcryptid/disaster-risk-service/internal/observability"
	"github.com/couchcryptid/disaster-risk-service/internal/pipeline"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- mocks ---

type mockExtractor struct {
	mu      sync.Mutex
	batches [][]domain.RawMessage
	errs    []error
}

func (m *mockExtractor) ExtractBatch(ctx context.Context, _ int) ([]domain.RawMessage, error) {
	m.mu.Lock()
	if len(m.errs) > 0 {
		err := m.errs[0]
		m.errs = m.errs[1:]
		m.mu.Unlock()
		return nil, err
	}
	if len(m.batches) > 0 {
		b := m.batches[0]
		m.batches = m.batches[1:]
		m.mu.Unlock()
		return b, nil
	}
	m.mu.Unlock()

	// block until cancelled to simulate an idle topic
	<-ctx.Done()
	return nil, ctx.Err()
}

type mockTransformer struct {
	failKeys    map[string]bool
	invalidKeys map[string]bool
}

func (m *mockTransformer) Transform(_ context.Context, raw domain.RawMessage) (domain.OutputMessage, error) {
	if m.failKeys[string(raw.Key)] {
		return domain.OutputMessage{}, errors.New("bad request")
	}
	if m.invalidKeys[string(raw.Key)] {
		return domain.OutputMessage{}, &domain.ValidationError{Field: "type", Reason: "is required"}
	}
	return domain.OutputMessage{Key: raw.Key, Value: raw.Value}, nil
}

type mockLoader struct {
	mu     sync.Mutex
	failN  int
	loaded []domain.OutputMessage
}

func (m *mockLoader) LoadBatch(_ context.Context, msgs []domain.OutputMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failN > 0 {
		m.failN--
		return errors.New("broker unavailable")
	}
	m.loaded = append(m.loaded, msgs...)
	return nil
}

func (m *mockLoader) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.loaded)
}

type commitTracker struct {
	mu   sync.Mutex
	keys []string
}

func (c *commitTracker) raw(key string) domain.RawMessage {
	return domain.RawMessage{
		Key:   []byte(key),
		Value: []byte(`{"type":"flood"}`),
		Commit: func(context.Context) error {
			c.mu.Lock()
			defer c.mu.Unlock()
			c.keys = append(c.keys, key)
			return nil
		},
	}
}

func (c *commitTracker) committed() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.keys...)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func runFor(t *testing.T, p *pipeline.Pipeline, d time.Duration) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), d)
	defer cancel()
	require.NoError(t, p.Run(ctx))
}

// --- pipeline tests ---

func TestPipeline_Run_HappyPath(t *testing.T) {
	commits := &commitTracker{}
	ext := &mockExtractor{batches: [][]domain.RawMessage{{commits.raw("a"), commits.raw("b")}}}
	ldr := &mockLoader{}
	metrics := observability.NewMetricsForTesting()

	p := pipeline.New(ext, &mockTransformer{}, ldr, discardLogger(), metrics, 10)
	require.Error(t, p.CheckReadiness(context.Background()))

	runFor(t, p, 300*time.Millisecond)

	assert.Equal(t, 2, ldr.count())
	assert.Equal(t, []string{"a", "b"}, commits.committed())
	assert.NoError(t, p.CheckReadiness(context.Background()))
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.MessagesConsumed))
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.MessagesProduced))
	assert.Equal(t, 0.0, testutil.ToFloat64(metrics.PipelineRunning), "gauge reset on exit")
}

func TestPipeline_Run_ContextCancellation(t *testing.T) {
	ldr := &mockLoader{}
	p := pipeline.New(&mockExtractor{}, &mockTransformer{}, ldr, discardLogger(), observability.NewMetricsForTesting(), 10)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.NoError(t, p.Run(ctx))
	assert.Zero(t, ldr.count())
}

func TestPipeline_Run_TransformErrorSkipsAndCommits(t *testing.T) {
	commits := &commitTracker{}
	ext := &mockExtractor{batches: [][]domain.RawMessage{{commits.raw("bad"), commits.raw("good")}}}
	ldr := &mockLoader{}
	metrics := observability.NewMetricsForTesting()

	p := pipeline.New(ext, &mockTransformer{failKeys: map[string]bool{"bad": true}}, ldr, discardLogger(), metrics, 10)
	runFor(t, p, 300*time.Millisecond)

	require.Equal(t, 1, ldr.count())
	assert.Equal(t, []byte("good"), ldr.loaded[0].Key)
	assert.ElementsMatch(t, []string{"bad", "good"}, commits.committed())
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.TransformErrors))
	assert.Equal(t, 0.0, testutil.ToFloat64(metrics.InvalidRequests))
}

func TestPipeline_Run_InvalidRequestsCountedSeparately(t *testing.T) {
	commits := &commitTracker{}
	ext := &mockExtractor{batches: [][]domain.RawMessage{{commits.raw("invalid"), commits.raw("broken"), commits.raw("good")}}}
	ldr := &mockLoader{}
	metrics := observability.NewMetricsForTesting()

	tfm := &mockTransformer{
		failKeys:    map[string]bool{"broken": true},
		invalidKeys: map[string]bool{"invalid": true},
	}
	p := pipeline.New(ext, tfm, ldr, discardLogger(), metrics, 10)
	runFor(t, p, 300*time.Millisecond)

	assert.Equal(t, 1, ldr.count())
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.InvalidRequests))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.TransformErrors))
	assert.ElementsMatch(t, []string{"invalid", "broken", "good"}, commits.committed(), "rejected requests are still committed")
}

func TestPipeline_Run_AllFailedStaysNotReady(t *testing.T) {
	commits := &commitTracker{}
	ext := &mockExtractor{batches: [][]domain.RawMessage{{commits.raw("bad")}}}

	p := pipeline.New(ext, &mockTransformer{failKeys: map[string]bool{"bad": true}}, &mockLoader{}, discardLogger(), observability.NewMetricsForTesting(), 10)
	runFor(t, p, 300*time.Millisecond)

	assert.Error(t, p.CheckReadiness(context.Background()))
}

func TestPipeline_Run_LoadFailureDoesNotCommit(t *testing.T) {
	commits := &commitTracker{}
	ext := &mockExtractor{batches: [][]domain.RawMessage{{commits.raw("a")}}}
	ldr := &mockLoader{failN: 1}

	p := pipeline.New(ext, &mockTransformer{}, ldr, discardLogger(), observability.NewMetricsForTesting(), 10)
	runFor(t, p, 400*time.Millisecond)

	assert.Zero(t, ldr.count())
	assert.Empty(t, commits.committed())
	assert.Error(t, p.CheckReadiness(context.Background()))
}

func TestPipeline_Run_RecoversAfterExtractError(t *testing.T) {
	commits := &commitTracker{}
	ext := &mockExtractor{
		errs:    []error{errors.New("rebalance in progress")},
		batches: [][]domain.RawMessage{{commits.raw("a")}},
	}
	ldr := &mockLoader{}

	p := pipeline.New(ext, &mockTransformer{}, ldr, discardLogger(), observability.NewMetricsForTesting(), 10)
	runFor(t, p, time.Second)

	assert.Equal(t, 1, ldr.count(), "batch processed after the first backoff")
}

// --- transformer tests ---

type stubPredictor struct {
	resp domain.PredictionResponse
}

func (s stubPredictor) Predict(context.Context, domain.PredictionRequest, string) domain.PredictionResponse {
	return s.resp
}

type stubCatalog struct{}

func (stubCatalog) ListModels(context.Context) []domain.ModelDescriptor {
	return []domain.ModelDescriptor{{Name: "xgboost_v1"}}
}

func testTransformer(resp domain.PredictionResponse) *pipeline.AssessmentTransformer {
	metrics := observability.NewMetricsForTesting()
	a := assess.New(stubCatalog{}, stubPredictor{resp: resp}, domain.NewSynthesizer(nil), metrics, discardLogger())
	return pipeline.NewTransformer(a, discardLogger())
}

func TestAssessmentTransformer_Transform(t *testing.T) {
	tfm := testTransformer(domain.PredictionResponse{RiskScore: 4.1, Source: domain.SourceLive})

	out, err := tfm.Transform(context.Background(), domain.RawMessage{
		Key:   []byte("req-7"),
		Value: []byte(`{"type":"earthquake","fields":{"latitude":28.6,"longitude":77.2,"depth":10}}`),
	})
	require.NoError(t, err)

	assert.Equal(t, []byte("req-7"), out.Key, "message key becomes the result ID")
	assert.Equal(t, "earthquake", out.Headers["disaster_type"])
	assert.Equal(t, "medium", out.Headers["risk_level"])

	var res assess.Result
	require.NoError(t, json.Unmarshal(out.Value, &res))
	assert.Equal(t, "req-7", res.ID)
	assert.Equal(t, domain.Earthquake, res.Type)
}

func TestAssessmentTransformer_BodyIDWins(t *testing.T) {
	tfm := testTransformer(domain.PredictionResponse{RiskScore: 0.1})

	out, err := tfm.Transform(context.Background(), domain.RawMessage{
		Key:   []byte("key"),
		Value: []byte(`{"id":"body-id","type":"flood","fields":{"latitude":26.1,"longitude":91.7,"rainfall_mm":25,"elevation_m":50,"river_discharge_m3_s":100}}`),
	})
	require.NoError(t, err)
	assert.Equal(t, []byte("body-id"), out.Key)
	assert.Equal(t, "low", out.Headers["risk_level"])
}

func TestAssessmentTransformer_Errors(t *testing.T) {
	tests := []struct {
		name  string
		value string
	}{
		{"not json", `not-json{{{`},
		{"unknown type", `{"type":"tsunami"}`},
		{"outside region", `{"type":"earthquake","fields":{"latitude":51.5,"longitude":-0.1,"depth":10}}`},
	}

	tfm := testTransformer(domain.PredictionResponse{RiskScore: 0.5})
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tfm.Transform(context.Background(), domain.RawMessage{Key: []byte("k"), Value: []byte(tt.value)})
			require.Error(t, err)
			assert.ErrorIs(t, err, domain.ErrValidation, "counted as an invalid request")
		})
	}
}
