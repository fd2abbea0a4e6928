package predictor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/couchcryptid/disaster-risk-service/internal/domain"
	"github.com/couchcryptid/disaster-risk-service/internal/observability"
)

const (
	// maxResponseBytes caps how much of an upstream body is read.
	maxResponseBytes = 1 << 20

	endpointV1     = "v1"
	endpointLegacy = "legacy"

	simulatedPrefix    = "Simulated prediction (API unavailable): "
	unrecognizedPrefix = "Unable to parse prediction result, showing a neutral estimate: "
)

// Client calls the prediction service. Landslide requests go to the v1 API;
// the other disaster types go to the legacy per-type endpoint.
type Client struct {
	baseURL    string
	legacyURL  string
	httpClient *http.Client
	rng        domain.RandomSource
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates a prediction client. A zero timeout leaves the request
// bounded only by the caller's context.
func NewClient(baseURL, legacyURL string, timeout time.Duration, metrics *observability.Metrics, logger *slog.Logger) *Client {
	return &Client{
		baseURL:   baseURL,
		legacyURL: legacyURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		rng:     domain.DefaultRandom,
		metrics: metrics,
		logger:  logger,
	}
}

// Predict sends one prediction request and normalizes the answer. It never
// fails: transport errors and non-2xx statuses produce a simulated response,
// and unrecognized bodies produce the type's neutral value. The message is
// always derived from the classification band of the final score.
//
// RiskScore stays in the type's native units, so the fallbacks do too:
//
//	type         neutral (unrecognized)   simulated (unreachable)
//	flood        0.5                      uniform [0,1)
//	landslide    0.5                      uniform [0,1)
//	earthquake   magnitude 4.05           magnitude uniform [3.0,5.5)
//	forestfire   class 1 (Medium)         class 0, 1 or 2
//
// See domain.NeutralValue and domain.SimulatedValue. Callers that need to tell
// a fallback from a live answer check Simulated and Source, not the value.
func (c *Client) Predict(ctx context.Context, req domain.PredictionRequest, modelName string) domain.PredictionResponse {
	endpoint, url, payload := c.route(req, modelName)

	start := time.Now()
	body, err := c.post(ctx, url, payload)
	c.metrics.UpstreamDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())

	if err != nil {
		c.logger.Warn("prediction request failed, simulating",
			"type", req.Type,
			"endpoint", endpoint,
			"error", err,
		)
		score := domain.SimulatedValue(req.Type, c.rng.Float64())
		return c.respond(req.Type, modelName, parsed{score: score}, domain.SourceSimulated)
	}

	p, ok := normalize(body)
	if !ok {
		c.logger.Warn("unrecognized prediction response shape",
			"type", req.Type,
			"endpoint", endpoint,
			"body", truncate(body, 256),
		)
		return c.respond(req.Type, modelName, parsed{score: domain.NeutralValue(req.Type)}, domain.SourceUnrecognized)
	}

	c.logger.Debug("prediction received", "type", req.Type, "field", p.field, "score", p.score)
	return c.respond(req.Type, modelName, p, domain.SourceLive)
}

// route picks the endpoint and builds the JSON payload for a request.
func (c *Client) route(req domain.PredictionRequest, modelName string) (endpoint, url string, payload map[string]any) {
	payload = req.Fields()
	if req.Type.Legacy() {
		payload["model_type"] = string(req.Type)
		return endpointLegacy, c.legacyURL + "/predict", payload
	}
	if modelName != "" {
		payload["model_name"] = modelName
	}
	return endpointV1, c.baseURL + "/api/v1/predict", payload
}

func (c *Client) post(ctx context.Context, url string, payload map[string]any) ([]byte, error) {
	buf, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(buf))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("predict request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("prediction API error: status %d: %s", resp.StatusCode, truncate(body, 256))
	}
	return body, nil
}

func (c *Client) respond(t domain.DisasterType, modelName string, p parsed, source domain.ResponseSource) domain.PredictionResponse {
	c.metrics.Predictions.WithLabelValues(string(t), string(source)).Inc()

	resp := domain.PredictionResponse{
		RiskScore:   p.score,
		Label:       p.label,
		Variability: p.variability,
		Source:      source,
		Simulated:   source == domain.SourceSimulated,
	}
	if !t.Legacy() {
		resp.Model = modelName
	}

	var cls domain.Classification
	if p.label != "" {
		cls = domain.ClassifyForestFireLabel(p.label)
	} else {
		var err error
		cls, err = domain.Classify(t, p.score)
		if err != nil {
			// Only reachable for types the router never sends.
			resp.Message = err.Error()
			return resp
		}
	}

	switch source {
	case domain.SourceSimulated:
		resp.Message = simulatedPrefix + cls.Message
	case domain.SourceUnrecognized:
		resp.Message = unrecognizedPrefix + cls.Message
	default:
		resp.Message = cls.Message
	}
	return resp
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
