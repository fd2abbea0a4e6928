// Package domain models disaster-risk predictions and their user-facing
// classification.
//
// # Data Source
//
// Risk values come from an external prediction service. Two generations of
// that service exist and both are still deployed:
//
//	POST /api/v1/predict   landslide model, optional "model_name",
//	                       answers {"prediction": 0.53} or {"risk_score": 0.53}
//	POST /predict          legacy multi-model endpoint keyed by "model_type",
//	                       answers predicted_magnitude | predicted_flood_risk |
//	                       predicted_risk_level depending on the model
//
// The service is unreliable and its response shapes drift. Normalization into
// a [PredictionResponse] lives in the predictor adapter; this package owns
// the rules that give those numbers meaning.
//
// # Disaster Types
//
//	earthquake  latitude, longitude, depth                      (geo scoped)
//	flood       latitude, longitude, rainfall_mm, elevation_m,
//	            river_discharge_m3_s                            (geo scoped)
//	forestfire  state                                           (state list)
//	landslide   13 numeric terrain/weather inputs plus lithology,
//	            land_use, human_activity                        (ranged)
//
// Geo-scoped types must fall inside the supported bounding box
// (6°N–37°N, 68°E–97°E); see [IsWithinSupportedRegion].
//
// # Classification
//
// Each type has a threshold table in native units:
//
//	Earthquake (magnitude): <3.8 Safe | ≤4.3 Low Risk | >4.3 High Risk
//	Flood (score 0–1):      <0.3 Low Risk | ≤0.6 Moderate Risk | >0.6 High Risk
//	Landslide (score 0–1):  <0.33 Low Risk | <0.66 Medium Risk | ≥0.66 High Risk
//	Forest fire (class):    Low | Medium | anything else is elevated
//
// Band text is static so identical levels always render identically.
//
// # Synthesis
//
// For landslide scores the [Synthesizer] adds a confidence interval and a
// ranked list of contributing factors. Both are presentation heuristics:
// the interval is a random ±5–15 point band (or the service-reported
// variability when present) and the factor weights are illustrative, not
// read from the model.
package domain
