package domain

import (
	"fmt"
	"math"
	"strings"
)

// RiskLevel is the discretized classification shown to users.
type RiskLevel string

const (
	LevelLow    RiskLevel = "low"
	LevelMedium RiskLevel = "medium"
	LevelHigh   RiskLevel = "high"
)

// Classification is the static text attached to one threshold band.
type Classification struct {
	Level           RiskLevel `json:"level"`
	Label           string    `json:"label"`
	Description     string    `json:"description"`
	Recommendations []string  `json:"recommendations,omitempty"`
	Message         string    `json:"message"`
}

// band covers values up to upper. The last band in a table is open-ended.
type band struct {
	upper     float64
	inclusive bool
	Classification
}

func (b band) contains(v float64) bool {
	return v < b.upper || (b.inclusive && v == b.upper)
}

// thresholdTable describes one disaster type's native metric.
type thresholdTable struct {
	metric string
	bands  []band
	// neutral substitutes for an unrecognized upstream response.
	neutral float64
	// simulate maps a uniform draw in [0,1) onto the metric's native domain.
	simulate func(u float64) float64
}

// thresholds is keyed by disaster type. Each table is ordered from lowest to
// highest risk.
var thresholds = map[DisasterType]thresholdTable{
	Earthquake: {
		metric: "predicted magnitude",
		bands: []band{
			{upper: 3.8, Classification: Classification{
				Level:       LevelLow,
				Label:       "Safe",
				Description: "Predicted magnitude is below 3.8. Shaking, if felt at all, is unlikely to cause damage.",
				Message:     "Safe: predicted earthquake magnitude is below the damage threshold.",
			}},
			{upper: 4.3, inclusive: true, Classification: Classification{
				Level:       LevelMedium,
				Label:       "Low Risk",
				Description: "Predicted magnitude is between 3.8 and 4.3. Light shaking is possible; damage is rare.",
				Recommendations: []string{
					"Secure heavy furniture and shelves",
					"Review household earthquake plans",
				},
				Message: "Low risk of earthquake damage at this location.",
			}},
			{Classification: Classification{
				Level:       LevelHigh,
				Label:       "High Risk",
				Description: "Predicted magnitude is above 4.3. Noticeable shaking and structural damage are possible.",
				Recommendations: []string{
					"Identify safe spots in every room",
					"Prepare an emergency kit",
					"Have structures inspected for seismic resilience",
				},
				Message: "High risk of earthquake damage. Preparedness measures are advised.",
			}},
		},
		neutral:  4.05,
		simulate: func(u float64) float64 { return 3.0 + u*2.5 },
	},
	Flood: {
		metric: "flood risk score",
		bands: []band{
			{upper: 0.3, Classification: Classification{
				Level:       LevelLow,
				Label:       "Low Risk",
				Description: "Flooding is unlikely under the given rainfall, elevation and river discharge.",
				Message:     "Low risk of flooding based on the provided parameters.",
			}},
			{upper: 0.6, inclusive: true, Classification: Classification{
				Level:       LevelMedium,
				Label:       "Moderate Risk",
				Description: "Flooding is possible during sustained heavy rainfall.",
				Recommendations: []string{
					"Monitor river level advisories",
					"Keep drainage channels clear",
				},
				Message: "Moderate risk of flooding. Monitor local advisories.",
			}},
			{Classification: Classification{
				Level:       LevelHigh,
				Label:       "High Risk",
				Description: "Conditions indicate a high probability of flooding.",
				Recommendations: []string{
					"Move valuables above expected flood level",
					"Plan an evacuation route to higher ground",
					"Follow official flood warnings",
				},
				Message: "High risk of flooding. Prepare for evacuation.",
			}},
		},
		neutral:  0.5,
		simulate: func(u float64) float64 { return u },
	},
	Landslide: {
		metric: "landslide risk score",
		bands: []band{
			{upper: 0.33, Classification: Classification{
				Level:       LevelLow,
				Label:       "Low Risk",
				Description: "The probability of a landslide occurring is relatively low based on the current conditions.",
				Recommendations: []string{
					"Monitor conditions during extreme weather events",
					"Follow standard land management practices",
					"No immediate action required",
				},
				Message: "Low risk of landslide based on the provided parameters.",
			}},
			{upper: 0.66, Classification: Classification{
				Level:       LevelMedium,
				Label:       "Medium Risk",
				Description: "There is a moderate probability of landslide occurrence under certain conditions.",
				Recommendations: []string{
					"Increased monitoring during rainfall events",
					"Consider implementing preventive measures",
					"Have emergency plans prepared",
					"Avoid substantial modifications to slopes",
				},
				Message: "Medium risk of landslide. Consider monitoring and preventive measures.",
			}},
			{Classification: Classification{
				Level:       LevelHigh,
				Label:       "High Risk",
				Description: "Current conditions indicate a high probability of landslide occurrence.",
				Recommendations: []string{
					"Implement immediate risk mitigation measures",
					"Consider evacuation during heavy rainfall",
					"Engage geological experts for detailed assessment",
					"Avoid all activities that could destabilize slopes",
					"Install monitoring instruments if possible",
				},
				Message: "High risk of landslide. Immediate attention and mitigation advised.",
			}},
		},
		neutral:  0.5,
		simulate: func(u float64) float64 { return u },
	},
	// Forest fire answers with a class; the numeric form is its index.
	ForestFire: {
		metric: "fire risk class",
		bands: []band{
			{upper: 0.5, Classification: Classification{
				Level:       LevelLow,
				Label:       "Low",
				Description: "Forest fire risk for the selected state is low.",
				Message:     "Low risk of forest fire in the selected state.",
			}},
			{upper: 1.5, Classification: Classification{
				Level:       LevelMedium,
				Label:       "Medium",
				Description: "Forest fire risk for the selected state is elevated.",
				Recommendations: []string{
					"Avoid open burning during dry months",
				},
				Message: "Elevated risk of forest fire in the selected state.",
			}},
			{Classification: Classification{
				Level:       LevelHigh,
				Label:       "High",
				Description: "Forest fire risk for the selected state is high.",
				Recommendations: []string{
					"Avoid open burning during dry months",
					"Follow forest department fire alerts",
					"Keep firebreaks around settlements clear",
				},
				Message: "High risk of forest fire in the selected state.",
			}},
		},
		neutral:  1,
		simulate: func(u float64) float64 { return math.Min(2, math.Floor(u*3)) },
	},
}

// Classify maps a raw model output in the type's native units to exactly one
// band. It is total over finite values; NaN, infinities and unknown types
// are errors.
func Classify(t DisasterType, raw float64) (Classification, error) {
	table, ok := thresholds[t]
	if !ok {
		return Classification{}, fmt.Errorf("classify: unsupported disaster type %q", t)
	}
	if math.IsNaN(raw) || math.IsInf(raw, 0) {
		return Classification{}, fmt.Errorf("classify %s: %s is not finite", t, table.metric)
	}
	return table.lookup(raw).clone(), nil
}

func (tt thresholdTable) lookup(v float64) Classification {
	last := len(tt.bands) - 1
	for i, b := range tt.bands[:last] {
		if b.contains(v) {
			return tt.bands[i].Classification
		}
	}
	return tt.bands[last].Classification
}

// ClassifyForestFireLabel passes the service's categorical answer through.
// "Low" gets the low band; "Medium" the medium band; any other value is
// treated as elevated risk and keeps its own label.
func ClassifyForestFireLabel(label string) Classification {
	bands := thresholds[ForestFire].bands
	trimmed := strings.TrimSpace(label)
	switch {
	case strings.EqualFold(trimmed, "low"):
		return bands[0].clone()
	case strings.EqualFold(trimmed, "medium"):
		return bands[1].clone()
	}
	c := bands[2].clone()
	if trimmed != "" {
		c.Label = trimmed
	}
	return c
}

// ForestFireClassIndex returns the numeric class for a categorical label,
// matching the index the legacy model emits.
func ForestFireClassIndex(label string) float64 {
	switch strings.ToLower(strings.TrimSpace(label)) {
	case "low":
		return 0
	case "medium":
		return 1
	default:
		return 2
	}
}

// LevelForScore classifies a generic [0,1] score with the landslide table.
func LevelForScore(score float64) RiskLevel {
	return thresholds[Landslide].lookup(score).Level
}

// NeutralValue is the score substituted when the service answers with a
// shape nobody recognizes. It sits in the middle band of every table.
func NeutralValue(t DisasterType) float64 {
	if table, ok := thresholds[t]; ok {
		return table.neutral
	}
	return 0.5
}

// SimulatedValue maps a uniform draw in [0,1) onto the type's native domain.
func SimulatedValue(t DisasterType, u float64) float64 {
	u = math.Max(0, math.Min(1, u))
	if table, ok := thresholds[t]; ok {
		return table.simulate(u)
	}
	return u
}

func (c Classification) clone() Classification {
	if c.Recommendations != nil {
		recs := make([]string, len(c.Recommendations))
		copy(recs, c.Recommendations)
		c.Recommendations = recs
	}
	return c
}

func (b band) clone() Classification {
	return b.Classification.clone()
}
