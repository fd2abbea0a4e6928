// Package assess runs one full assessment: validate the form, resolve the
// model, call the prediction service, classify the result and, for landslide,
// add the confidence band and factor ranking. The HTTP API, the batch pipeline
// and the command-line tool all go through Assessor.
package assess

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/couchcryptid/disaster-risk-service/internal/domain"
	"github.com/couchcryptid/disaster-risk-service/internal/observability"
)

// ModelLister fetches the model catalog.
type ModelLister interface {
	ListModels(ctx context.Context) []domain.ModelDescriptor
}

// Predictor calls the prediction service. It must never fail.
type Predictor interface {
	Predict(ctx context.Context, req domain.PredictionRequest, modelName string) domain.PredictionResponse
}

// Input is one assessment request as it arrives over HTTP or Kafka.
type Input struct {
	ID        string         `json:"id,omitempty"`
	Type      string         `json:"type"`
	Fields    map[string]any `json:"fields"`
	ModelName string         `json:"model_name,omitempty"`
}

// Result is a completed assessment. Assessment and Factors are only set for
// landslide, whose model answers with a [0,1] probability.
type Result struct {
	ID             string                     `json:"id"`
	Type           domain.DisasterType        `json:"type"`
	Model          string                     `json:"model,omitempty"`
	Prediction     domain.PredictionResponse  `json:"prediction"`
	Classification domain.Classification      `json:"classification"`
	Assessment     *domain.RiskAssessment     `json:"assessment,omitempty"`
	Factors        []domain.FeatureImportance `json:"factors,omitempty"`
	AssessedAt     time.Time                  `json:"assessed_at"`
}

// Assessor wires the catalog, prediction client and synthesizer together.
type Assessor struct {
	catalog     ModelLister
	predictor   Predictor
	synthesizer *domain.Synthesizer
	metrics     *observability.Metrics
	logger      *slog.Logger

	// defaultModel is the catalog's first model, fetched on first use. Callers
	// without a session (batch, CLI, sessionless HTTP) share it.
	defaultMu    sync.Mutex
	defaultModel string
}

// New creates an Assessor. A nil synthesizer uses the default random source.
func New(catalog ModelLister, predictor Predictor, synthesizer *domain.Synthesizer, metrics *observability.Metrics, logger *slog.Logger) *Assessor {
	if synthesizer == nil {
		synthesizer = domain.NewSynthesizer(nil)
	}
	return &Assessor{
		catalog:     catalog,
		predictor:   predictor,
		synthesizer: synthesizer,
		metrics:     metrics,
		logger:      logger,
	}
}

// Assess validates the input and runs one prediction cycle. Only validation
// failures are returned as errors (matching domain.ErrValidation); the
// prediction step itself always yields a result.
func (a *Assessor) Assess(ctx context.Context, in Input) (Result, error) {
	t, err := domain.ParseDisasterType(in.Type)
	if err != nil {
		return Result{}, err
	}

	form, err := formValues(in.Fields)
	if err != nil {
		return Result{}, err
	}

	req, err := domain.ParseRequest(t, form)
	if err != nil {
		return Result{}, err
	}

	model := a.resolveModel(ctx, t, in.ModelName)
	resp := a.predictor.Predict(ctx, req, model)

	var cls domain.Classification
	if resp.Label != "" {
		cls = domain.ClassifyForestFireLabel(resp.Label)
	} else {
		cls, err = domain.Classify(t, resp.RiskScore)
		if err != nil {
			return Result{}, fmt.Errorf("classify prediction: %w", err)
		}
	}

	res := Result{
		ID:             in.ID,
		Type:           t,
		Model:          model,
		Prediction:     resp,
		Classification: cls,
		AssessedAt:     domain.Now(),
	}
	if res.ID == "" {
		res.ID = uuid.NewString()
	}

	if t == domain.Landslide {
		synth := a.synthesizer.SynthesizeReported(resp.RiskScore, req.Numeric, resp.Variability)
		res.Assessment = &synth.Assessment
		res.Factors = synth.Factors
	}

	a.metrics.Assessments.WithLabelValues(string(t), string(cls.Level)).Inc()
	a.logger.Info("assessment complete",
		"id", res.ID,
		"type", t,
		"model", model,
		"level", cls.Level,
		"source", resp.Source,
	)
	return res, nil
}

// resolveModel returns the requested model, or the catalog default for types
// served by the v1 API. Legacy types ignore model names.
func (a *Assessor) resolveModel(ctx context.Context, t domain.DisasterType, requested string) string {
	if t.Legacy() {
		return ""
	}
	if requested != "" || a.catalog == nil {
		return requested
	}
	return a.catalogDefault(ctx)
}

// catalogDefault fetches the catalog once. An empty answer is not cached so a
// later call can retry.
func (a *Assessor) catalogDefault(ctx context.Context) string {
	a.defaultMu.Lock()
	defer a.defaultMu.Unlock()

	if a.defaultModel != "" {
		return a.defaultModel
	}
	models := a.catalog.ListModels(ctx)
	if len(models) == 0 {
		return ""
	}
	a.defaultModel = models[0].Name
	return a.defaultModel
}

// Report renders the plain-text report for the result.
func (r Result) Report() string {
	report := domain.Report{
		Type:           r.Type,
		Model:          r.Model,
		Prediction:     r.Prediction,
		Classification: r.Classification,
		GeneratedAt:    r.AssessedAt,
	}
	if r.Assessment != nil {
		report.Synthesis = &domain.Synthesis{Assessment: *r.Assessment, Factors: r.Factors}
	}
	return domain.RenderReport(report)
}

// Message serializes the result for the sink topic, keyed by result ID.
func (r Result) Message() (domain.OutputMessage, error) {
	value, err := json.Marshal(r)
	if err != nil {
		return domain.OutputMessage{}, fmt.Errorf("marshal assessment: %w", err)
	}
	return domain.OutputMessage{
		Key:   []byte(r.ID),
		Value: value,
		Headers: map[string]string{
			"disaster_type": string(r.Type),
			"risk_level":    string(r.Classification.Level),
			"assessed_at":   r.AssessedAt.Format(time.RFC3339),
		},
	}, nil
}

// formValues flattens JSON field values into the string form ParseRequest
// expects. Nulls are dropped so they surface as missing fields.
func formValues(fields map[string]any) (map[string]string, error) {
	form := make(map[string]string, len(fields))
	for k, v := range fields {
		switch val := v.(type) {
		case nil:
			continue
		case string:
			form[k] = val
		case float64:
			form[k] = strconv.FormatFloat(val, 'f', -1, 64)
		case json.Number:
			form[k] = val.String()
		case int:
			form[k] = strconv.Itoa(val)
		case int64:
			form[k] = strconv.FormatInt(val, 10)
		default:
			return nil, &domain.ValidationError{Field: k, Reason: fmt.Sprintf("unsupported value type %T", v)}
		}
	}
	return form, nil
}
