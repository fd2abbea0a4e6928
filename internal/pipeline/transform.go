package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/couchcryptid/disaster-risk-service/internal/assess"
	"github.com/couchcryptid/disaster-risk-service/internal/domain"
)

// Assessor runs one assessment.
type Assessor interface {
	Assess(ctx context.Context, in assess.Input) (assess.Result, error)
}

// AssessmentTransformer implements Transformer by decoding an assessment
// request, running it, and serializing the result.
type AssessmentTransformer struct {
	assessor Assessor
	logger   *slog.Logger
}

// NewTransformer creates an AssessmentTransformer.
func NewTransformer(assessor Assessor, logger *slog.Logger) *AssessmentTransformer {
	return &AssessmentTransformer{assessor: assessor, logger: logger}
}

// Transform decodes raw.Value as an assess.Input. A request without an ID
// takes the message key. Malformed payloads fail with a domain.ValidationError
// just like requests the Assessor rejects.
func (t *AssessmentTransformer) Transform(ctx context.Context, raw domain.RawMessage) (domain.OutputMessage, error) {
	in, err := decodeInput(raw.Value)
	if err != nil {
		return domain.OutputMessage{}, err
	}
	if in.ID == "" && len(raw.Key) > 0 {
		in.ID = string(raw.Key)
	}

	res, err := t.assessor.Assess(ctx, in)
	if err != nil {
		return domain.OutputMessage{}, fmt.Errorf("assess %s: %w", in.ID, err)
	}
	if res.Prediction.Simulated {
		t.logger.Debug("batch assessment used a simulated prediction", "id", res.ID, "type", res.Type)
	}
	return res.Message()
}

func decodeInput(data []byte) (assess.Input, error) {
	var in assess.Input
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&in); err != nil {
		return assess.Input{}, &domain.ValidationError{Field: "body", Reason: fmt.Sprintf("not an assessment request: %v", err)}
	}
	return in, nil
}
