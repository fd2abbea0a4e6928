package domain

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

var (
	// ErrValidation matches every *ValidationError via errors.Is.
	ErrValidation = errors.New("validation failed")

	// ErrOutsideRegion marks coordinates outside the supported bounding box.
	ErrOutsideRegion = errors.New("coordinates outside supported region")
)

// ValidationError rejects user input before any network call is made.
type ValidationError struct {
	Field  string
	Reason string
	cause  error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Is reports ErrValidation for every validation error.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func (e *ValidationError) Unwrap() error {
	return e.cause
}

// PredictionRequest is a validated set of model inputs for one disaster type.
type PredictionRequest struct {
	Type    DisasterType
	Numeric map[string]float64
	Text    map[string]string
}

// Fields merges numeric and text inputs into the JSON-ready field map sent
// to the prediction service.
func (r PredictionRequest) Fields() map[string]any {
	out := make(map[string]any, len(r.Numeric)+len(r.Text))
	for k, v := range r.Numeric {
		out[k] = v
	}
	for k, v := range r.Text {
		out[k] = v
	}
	return out
}

type fieldKind int

const (
	numberField fieldKind = iota
	integerField
	textField
)

type fieldSpec struct {
	name    string
	kind    fieldKind
	min     float64
	max     float64
	allowed []string // text fields only; matched case-insensitively
}

func number(name string, lo, hi float64) fieldSpec {
	return fieldSpec{name: name, kind: numberField, min: lo, max: hi}
}

func coordinate(name string, limit float64) fieldSpec {
	return number(name, -limit, limit)
}

func text(name string, allowed ...string) fieldSpec {
	return fieldSpec{name: name, kind: textField, allowed: allowed}
}

var inf = math.Inf(1)

// requiredFields lists the inputs each model needs, in form order. Landslide
// ranges mirror the service's request schema.
var requiredFields = map[DisasterType][]fieldSpec{
	Earthquake: {
		coordinate("latitude", 90),
		coordinate("longitude", 180),
		number("depth", -inf, inf),
	},
	Flood: {
		coordinate("latitude", 90),
		coordinate("longitude", 180),
		number("rainfall_mm", 0, inf),
		number("elevation_m", -inf, inf),
		number("river_discharge_m3_s", 0, inf),
	},
	ForestFire: {
		text("state", forestFireStates...),
	},
	Landslide: {
		number("elevation", 0, 10000),
		number("slope", 0, 90),
		number("aspect", 0, 360),
		number("rainfall_daily", 0, inf),
		number("rainfall_monthly", 0, inf),
		number("distance_to_faults", 0, inf),
		number("soil_depth", 0, inf),
		number("vegetation_density", 0, 1),
		number("earthquake_magnitude", 0, inf),
		number("soil_moisture", 0, 100),
		{name: "previous_landslides", kind: integerField, min: 0, max: inf},
		number("snow_melt", 0, inf),
		number("landslide_probability", 0, 1),
		text("lithology", "basalt", "granite", "limestone", "sandstone", "shale"),
		text("land_use", "agriculture", "barren", "forest", "grassland", "urban"),
		text("human_activity", "high", "low", "medium"),
	},
}

// RequiredFields returns the field names the given type requires, in form order.
func RequiredFields(t DisasterType) []string {
	specs := requiredFields[t]
	names := make([]string, len(specs))
	for i, s := range specs {
		names[i] = s.name
	}
	return names
}

// ParseRequest validates raw form values for the given disaster type.
// Every required field must be present; numeric fields must parse as finite
// numbers inside their range and text fields must be non-empty (and, where
// the model only knows a fixed vocabulary, one of it). Geo-scoped types are
// additionally gated on IsWithinSupportedRegion. Unknown fields are ignored.
func ParseRequest(t DisasterType, form map[string]string) (PredictionRequest, error) {
	specs, ok := requiredFields[t]
	if !ok {
		return PredictionRequest{}, &ValidationError{Field: "type", Reason: fmt.Sprintf("unsupported disaster type %q", t)}
	}

	req := PredictionRequest{
		Type:    t,
		Numeric: make(map[string]float64),
		Text:    make(map[string]string),
	}

	for _, spec := range specs {
		raw := strings.TrimSpace(form[spec.name])
		if raw == "" {
			return PredictionRequest{}, &ValidationError{Field: spec.name, Reason: "is required"}
		}

		if spec.kind == textField {
			v, err := spec.parseText(raw)
			if err != nil {
				return PredictionRequest{}, err
			}
			req.Text[spec.name] = v
			continue
		}

		v, err := spec.parseNumber(raw)
		if err != nil {
			return PredictionRequest{}, err
		}
		req.Numeric[spec.name] = v
	}

	if t.GeoScoped() {
		lat, lon := req.Numeric["latitude"], req.Numeric["longitude"]
		if !IsWithinSupportedRegion(lat, lon) {
			return PredictionRequest{}, &ValidationError{
				Field: "latitude",
				Reason: fmt.Sprintf("(%g, %g) is outside the supported region (lat %g–%g, lon %g–%g)",
					lat, lon, MinSupportedLat, MaxSupportedLat, MinSupportedLon, MaxSupportedLon),
				cause: ErrOutsideRegion,
			}
		}
	}

	return req, nil
}

func (s fieldSpec) parseNumber(raw string) (float64, error) {
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, &ValidationError{Field: s.name, Reason: "must be a finite number"}
	}
	if s.kind == integerField && v != math.Trunc(v) {
		return 0, &ValidationError{Field: s.name, Reason: "must be a whole number"}
	}
	if v < s.min || v > s.max {
		return 0, &ValidationError{Field: s.name, Reason: s.rangeReason()}
	}
	return v, nil
}

func (s fieldSpec) rangeReason() string {
	switch {
	case math.IsInf(s.max, 1):
		return fmt.Sprintf("must be at least %g", s.min)
	case math.IsInf(s.min, -1):
		return fmt.Sprintf("must be at most %g", s.max)
	default:
		return fmt.Sprintf("must be between %g and %g", s.min, s.max)
	}
}

// parseText returns the canonical spelling from the allowed list, so
// "Granite" is sent as "granite" and "kerala" as "Kerala".
func (s fieldSpec) parseText(raw string) (string, error) {
	if len(s.allowed) == 0 {
		return raw, nil
	}
	for _, a := range s.allowed {
		if strings.EqualFold(a, raw) {
			return a, nil
		}
	}
	allowed := make([]string, len(s.allowed))
	copy(allowed, s.allowed)
	sort.Strings(allowed)
	if len(allowed) > 6 {
		return "", &ValidationError{Field: s.name, Reason: fmt.Sprintf("%q is not a supported value", raw)}
	}
	return "", &ValidationError{Field: s.name, Reason: fmt.Sprintf("must be one of %s", strings.Join(allowed, ", "))}
}
