package domain

import (
	"cmp"
	"math"
	"math/rand/v2"
	"slices"
)

// Confidence band width, in percentage points either side of the estimate.
const (
	minVariability = 5.0
	maxVariability = 15.0
)

// RandomSource yields uniform draws in [0,1). *rand.Rand satisfies it.
type RandomSource interface {
	Float64() float64
}

type globalRandom struct{}

func (globalRandom) Float64() float64 { return rand.Float64() }

// DefaultRandom draws from the goroutine-safe math/rand/v2 global source.
var DefaultRandom RandomSource = globalRandom{}

// ConfidenceInterval bounds ProbabilityPercent. Both ends are clamped to [0,100].
type ConfidenceInterval struct {
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
}

// RiskAssessment is the presentation form of a [0,1] risk score.
type RiskAssessment struct {
	Level              RiskLevel          `json:"level"`
	ProbabilityPercent float64            `json:"probability_percent"`
	ConfidenceInterval ConfidenceInterval `json:"confidence_interval"`
}

// FeatureImportance is one heuristic contribution to the displayed risk.
type FeatureImportance struct {
	Feature    string  `json:"feature"`
	Importance float64 `json:"importance"`
}

// Synthesis bundles an assessment with its ranked factors.
type Synthesis struct {
	Assessment RiskAssessment      `json:"assessment"`
	Factors    []FeatureImportance `json:"factors"`
}

// featureWeight scales one input against its domain maximum into
// [0, weight]. The weights are illustrative explanations for users and are
// not taken from the prediction model.
type featureWeight struct {
	feature string
	input   string
	weight  float64
	ratio   func(v float64) float64
}

var featureWeights = []featureWeight{
	{feature: "Slope", input: "slope", weight: 25, ratio: func(v float64) float64 { return v / 90 }},
	{feature: "Rainfall", input: "rainfall_daily", weight: 20, ratio: func(v float64) float64 { return v / 300 }},
	{feature: "Soil Moisture", input: "soil_moisture", weight: 20, ratio: func(v float64) float64 { return v / 100 }},
	{feature: "Vegetation", input: "vegetation_density", weight: 15, ratio: func(v float64) float64 { return 1 - v }},
	{feature: "Elevation", input: "elevation", weight: 10, ratio: func(v float64) float64 { return v / 5000 }},
	{feature: "Fault Distance", input: "distance_to_faults", weight: 10, ratio: func(v float64) float64 { return (5000 - v) / 5000 }},
}

// Synthesizer derives confidence bounds and factor rankings from a score.
type Synthesizer struct {
	rng RandomSource
}

// NewSynthesizer creates a Synthesizer. A nil source uses DefaultRandom.
func NewSynthesizer(rng RandomSource) *Synthesizer {
	if rng == nil {
		rng = DefaultRandom
	}
	return &Synthesizer{rng: rng}
}

// Synthesize builds the assessment for a [0,1] score, drawing the interval
// half-width uniformly from [5,15] percentage points.
func (s *Synthesizer) Synthesize(rawScore float64, inputs map[string]float64) Synthesis {
	variability := minVariability + s.rng.Float64()*(maxVariability-minVariability)
	return synthesize(rawScore, inputs, variability)
}

// SynthesizeReported uses the variability reported by the service (a [0,0.5]
// fraction) instead of a random draw. Non-positive values fall back to
// Synthesize.
func (s *Synthesizer) SynthesizeReported(rawScore float64, inputs map[string]float64, reported float64) Synthesis {
	if !(reported > 0) {
		return s.Synthesize(rawScore, inputs)
	}
	return synthesize(rawScore, inputs, clamp(reported*100, minVariability, maxVariability))
}

func synthesize(rawScore float64, inputs map[string]float64, variability float64) Synthesis {
	score := clamp(rawScore, 0, 1)
	probability := score * 100

	return Synthesis{
		Assessment: RiskAssessment{
			Level:              LevelForScore(score),
			ProbabilityPercent: probability,
			ConfidenceInterval: ConfidenceInterval{
				Lower: math.Max(0, probability-variability),
				Upper: math.Min(100, probability+variability),
			},
		},
		Factors: FeatureImportances(inputs),
	}
}

// FeatureImportances ranks the six explanatory factors, highest first.
// Missing inputs count as zero.
func FeatureImportances(inputs map[string]float64) []FeatureImportance {
	out := make([]FeatureImportance, 0, len(featureWeights))
	for _, fw := range featureWeights {
		v := inputs[fw.input]
		if math.IsNaN(v) {
			v = 0
		}
		out = append(out, FeatureImportance{
			Feature:    fw.feature,
			Importance: clamp(fw.ratio(v), 0, 1) * fw.weight,
		})
	}
	slices.SortStableFunc(out, func(a, b FeatureImportance) int {
		return cmp.Compare(b.Importance, a.Importance)
	})
	return out
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Max(lo, math.Min(hi, v))
}
