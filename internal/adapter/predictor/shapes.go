package predictor

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/couchcryptid/disaster-risk-service/internal/domain"
)

// parsed is the model output pulled out of one response body.
type parsed struct {
	field       string
	score       float64
	label       string
	variability float64
}

// shapeMatcher recognizes one response shape by the field that carries the score.
type shapeMatcher struct {
	field string
	match func(raw json.RawMessage) (parsed, bool)
}

// responseShapes are tried in order. The first two come from the v1 API, the
// rest from the legacy per-type endpoint.
var responseShapes = []shapeMatcher{
	{field: "prediction", match: numericScore},
	{field: "risk_score", match: numericScore},
	{field: "predicted_magnitude", match: numericScore},
	{field: "predicted_flood_risk", match: numericScore},
	{field: "predicted_risk_level", match: categoricalLevel},
}

var forestFireLabels = []string{"Low", "Medium", "High"}

// normalize decodes a response body and runs it through responseShapes.
func normalize(body []byte) (parsed, bool) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(body, &obj); err != nil {
		return parsed{}, false
	}

	for _, shape := range responseShapes {
		raw, ok := obj[shape.field]
		if !ok {
			continue
		}
		p, ok := shape.match(raw)
		if !ok {
			continue
		}
		p.field = shape.field
		if v, ok := decodeNumber(obj["prediction_variability"]); ok && v > 0 {
			p.variability = v
		}
		return p, true
	}
	return parsed{}, false
}

func numericScore(raw json.RawMessage) (parsed, bool) {
	v, ok := decodeNumber(raw)
	if !ok {
		return parsed{}, false
	}
	return parsed{score: v}, true
}

// categoricalLevel accepts "Low"/"Medium"/"High" or the bare class index.
func categoricalLevel(raw json.RawMessage) (parsed, bool) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		s = strings.TrimSpace(s)
		if s == "" {
			return parsed{}, false
		}
		return parsed{score: domain.ForestFireClassIndex(s), label: s}, true
	}

	v, ok := decodeNumber(raw)
	if !ok || v != math.Trunc(v) || v < 0 || int(v) >= len(forestFireLabels) {
		return parsed{}, false
	}
	return parsed{score: v, label: forestFireLabels[int(v)]}, true
}

// decodeNumber accepts a JSON number or a numeric string. Non-finite values
// are rejected.
func decodeNumber(raw json.RawMessage) (float64, bool) {
	if len(raw) == 0 || string(raw) == "null" {
		return 0, false
	}

	var v float64
	if err := json.Unmarshal(raw, &v); err != nil {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return 0, false
		}
		v, err = strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return 0, false
		}
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}
