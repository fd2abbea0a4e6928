package domain

import (
	"fmt"
	"strings"
)

// DisasterType tags a prediction request with the model family that serves it.
type DisasterType string

const (
	Earthquake DisasterType = "earthquake"
	Flood      DisasterType = "flood"
	ForestFire DisasterType = "forestfire"
	Landslide  DisasterType = "landslide"
)

// DisasterTypes lists every supported type in display order.
var DisasterTypes = []DisasterType{Earthquake, Flood, ForestFire, Landslide}

// ParseDisasterType accepts a case-insensitive type tag. "forest_fire" and
// "forest-fire" are accepted as aliases for forestfire.
func ParseDisasterType(s string) (DisasterType, error) {
	normalized := strings.ToLower(strings.TrimSpace(s))
	normalized = strings.NewReplacer("_", "", "-", "", " ", "").Replace(normalized)
	for _, t := range DisasterTypes {
		if string(t) == normalized {
			return t, nil
		}
	}
	return "", &ValidationError{Field: "type", Reason: fmt.Sprintf("unsupported disaster type %q", s)}
}

// GeoScoped reports whether the type's model only covers the supported
// bounding box, so coordinates must be checked before submission.
func (t DisasterType) GeoScoped() bool {
	return t == Earthquake || t == Flood
}

// Legacy reports whether the type is served by the legacy /predict endpoint.
func (t DisasterType) Legacy() bool {
	return t != Landslide
}

// ModelDescriptor names one model offered by the prediction service.
type ModelDescriptor struct {
	Name        string `json:"name" koanf:"name"`
	Description string `json:"description,omitempty" koanf:"description"`
}

// ResponseSource records how a PredictionResponse was obtained.
type ResponseSource string

const (
	SourceLive         ResponseSource = "live"
	SourceUnrecognized ResponseSource = "unrecognized"
	SourceSimulated    ResponseSource = "simulated"
)

// PredictionResponse is the normalized result of one prediction call.
// RiskScore is always set: a [0,1] score for flood and landslide, a
// magnitude for earthquake and a class index (0 Low, 1 Medium, 2 High)
// for forest fire.
type PredictionResponse struct {
	RiskScore   float64        `json:"risk_score"`
	Label       string         `json:"label,omitempty"` // categorical answer, forest fire only
	Message     string         `json:"message"`
	Variability float64        `json:"prediction_variability,omitempty"`
	Source      ResponseSource `json:"source"`
	Simulated   bool           `json:"simulated"`
	Model       string         `json:"model,omitempty"`
}
