package domain

import (
	"fmt"
	"strings"
	"time"
)

var typeTitles = map[DisasterType]string{
	Earthquake: "Earthquake",
	Flood:      "Flood",
	ForestFire: "Forest Fire",
	Landslide:  "Landslide",
}

// Report is everything the downloadable plain-text report shows.
type Report struct {
	Type           DisasterType
	Model          string
	Prediction     PredictionResponse
	Classification Classification
	Synthesis      *Synthesis
	GeneratedAt    time.Time
}

// RenderReport formats a plain-text risk report.
func RenderReport(r Report) string {
	var b strings.Builder

	fmt.Fprintf(&b, "%s Risk Assessment Report\n", typeTitles[r.Type])
	fmt.Fprintf(&b, "Generated: %s\n", r.GeneratedAt.UTC().Format(time.RFC1123))
	if r.Model != "" {
		fmt.Fprintf(&b, "Model: %s\n", r.Model)
	}
	b.WriteString("\n")

	fmt.Fprintf(&b, "RISK LEVEL: %s\n", strings.ToUpper(r.Classification.Label))
	if r.Synthesis != nil {
		a := r.Synthesis.Assessment
		fmt.Fprintf(&b, "Risk Probability: %.1f%%\n", a.ProbabilityPercent)
		fmt.Fprintf(&b, "Confidence Interval: %.1f%% - %.1f%%\n", a.ConfidenceInterval.Lower, a.ConfidenceInterval.Upper)
	} else {
		fmt.Fprintf(&b, "Model Output: %s\n", formatRaw(r.Type, r.Prediction))
	}
	if r.Prediction.Simulated {
		b.WriteString("NOTE: the prediction service was unavailable; this result is simulated.\n")
	}
	b.WriteString("\n")

	b.WriteString("ASSESSMENT:\n")
	b.WriteString(r.Classification.Description)
	b.WriteString("\n")

	if len(r.Classification.Recommendations) > 0 {
		b.WriteString("\nRECOMMENDATIONS:\n")
		for _, rec := range r.Classification.Recommendations {
			fmt.Fprintf(&b, "• %s\n", rec)
		}
	}

	if r.Synthesis != nil && len(r.Synthesis.Factors) > 0 {
		b.WriteString("\nKEY RISK FACTORS:\n")
		for _, f := range r.Synthesis.Factors {
			fmt.Fprintf(&b, "%-15s %5.1f\n", f.Feature, f.Importance)
		}
	}

	b.WriteString("\nDISCLAIMER:\n")
	b.WriteString("This assessment is produced by machine learning models trained on historical data. ")
	b.WriteString("Confidence intervals and factor weights are illustrative and are not derived from the model itself. ")
	b.WriteString("Consult local authorities and qualified experts before making safety decisions.\n")

	return b.String()
}

func formatRaw(t DisasterType, p PredictionResponse) string {
	switch t {
	case Earthquake:
		return fmt.Sprintf("magnitude %.2f", p.RiskScore)
	case ForestFire:
		if p.Label != "" {
			return p.Label
		}
		return fmt.Sprintf("class %.0f", p.RiskScore)
	default:
		return fmt.Sprintf("risk score %.3f", p.RiskScore)
	}
}
