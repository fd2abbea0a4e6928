package predictor

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/couchcryptid/disaster-risk-service/internal/domain"
	"github.com/couchcryptid/disaster-risk-service/internal/observability"
)

// DefaultCatalogTimeout bounds the model list fetch.
const DefaultCatalogTimeout = 3 * time.Second

var defaultFallback = []domain.ModelDescriptor{
	{Name: "xgboost_20250306_193033", Description: "XGBoost Model (Default)"},
	{Name: "random_forest_20250305_142211", Description: "Random Forest Model"},
	{Name: "gradient_boost_20250307_083022", Description: "Gradient Boosting Model"},
}

// DefaultFallbackCatalog returns the built-in catalog served when the live
// list cannot be fetched.
func DefaultFallbackCatalog() []domain.ModelDescriptor {
	return cloneModels(defaultFallback)
}

// modelFamilies infers a description from a bare model name. Order matters:
// the first keyword found in the lowercased name wins.
var modelFamilies = []struct {
	keyword     string
	description string
}{
	{"xgboost", "XGBoost Model"},
	{"linear", "Linear Regression Model"},
	{"lightgbm", "Light GBM Model"},
	{"random", "Random Forest Model"},
}

const unknownFamily = "Unknown Model Type"

// Catalog lists the models offered by the prediction service.
type Catalog struct {
	baseURL    string
	httpClient *http.Client
	fallback   []domain.ModelDescriptor
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewCatalog creates a catalog client. A nil or empty fallback uses
// DefaultFallbackCatalog.
func NewCatalog(baseURL string, timeout time.Duration, fallback []domain.ModelDescriptor, metrics *observability.Metrics, logger *slog.Logger) *Catalog {
	if timeout <= 0 {
		timeout = DefaultCatalogTimeout
	}
	if len(fallback) == 0 {
		fallback = defaultFallback
	}
	return &Catalog{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		fallback: cloneModels(fallback),
		metrics:  metrics,
		logger:   logger,
	}
}

// ListModels returns the live model list, or the fallback catalog when the
// service is unreachable or answers with an unexpected shape. The result is
// never empty.
func (c *Catalog) ListModels(ctx context.Context) []domain.ModelDescriptor {
	start := time.Now()
	models, err := c.fetch(ctx)
	c.metrics.UpstreamDuration.WithLabelValues("models").Observe(time.Since(start).Seconds())

	if err != nil {
		c.logger.Warn("model catalog unavailable, using fallback", "error", err, "fallback_models", len(c.fallback))
		c.metrics.CatalogFetches.WithLabelValues("fallback").Inc()
		return cloneModels(c.fallback)
	}

	c.metrics.CatalogFetches.WithLabelValues("live").Inc()
	return models
}

func (c *Catalog) fetch(ctx context.Context) ([]domain.ModelDescriptor, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/v1/models", nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("models request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("models API error: status %d: %s", resp.StatusCode, truncate(body, 256))
	}

	return parseModels(body)
}

// parseModels accepts an array of names or an array of descriptor objects.
func parseModels(body []byte) ([]domain.ModelDescriptor, error) {
	var items []json.RawMessage
	if err := json.Unmarshal(body, &items); err != nil {
		return nil, fmt.Errorf("unexpected models response: %w", err)
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("models response is empty")
	}

	out := make([]domain.ModelDescriptor, 0, len(items))
	seen := make(map[string]bool, len(items))
	for i, raw := range items {
		m, err := parseModel(raw)
		if err != nil {
			return nil, fmt.Errorf("model %d: %w", i, err)
		}
		if seen[m.Name] {
			continue
		}
		seen[m.Name] = true
		out = append(out, m)
	}
	return out, nil
}

func parseModel(raw json.RawMessage) (domain.ModelDescriptor, error) {
	var name string
	if err := json.Unmarshal(raw, &name); err == nil {
		name = strings.TrimSpace(name)
		if name == "" {
			return domain.ModelDescriptor{}, fmt.Errorf("empty model name")
		}
		return domain.ModelDescriptor{Name: name, Description: describe(name)}, nil
	}

	var m domain.ModelDescriptor
	if err := json.Unmarshal(raw, &m); err != nil {
		return domain.ModelDescriptor{}, fmt.Errorf("unexpected model entry: %w", err)
	}
	m.Name = strings.TrimSpace(m.Name)
	if m.Name == "" {
		return domain.ModelDescriptor{}, fmt.Errorf("model entry has no name")
	}
	return m, nil
}

// describe infers a description from a model-family keyword in the name.
func describe(name string) string {
	lower := strings.ToLower(name)
	for _, f := range modelFamilies {
		if strings.Contains(lower, f.keyword) {
			return f.description
		}
	}
	return unknownFamily
}

func cloneModels(in []domain.ModelDescriptor) []domain.ModelDescriptor {
	out := make([]domain.ModelDescriptor, len(in))
	copy(out, in)
	return out
}
