package validation

import (
	"geoagent/geo"
	"geoagent/types"
)

// agreementRadiusKm is the distance under which an external source is
// considered to agree with the prediction.
const agreementRadiusKm = 1.0

// ExternalObservation is an independently sourced location fix used for
// cross-validation.
type ExternalObservation struct {
	Source     string  `json:"source"`
	Latitude   float64 `json:"latitude"`
	Longitude  float64 `json:"longitude"`
	Confidence float64 `json:"confidence"`
}

// SourceAgreement records an external source that agrees with the
// prediction.
type SourceAgreement struct {
	Source     string  `json:"source"`
	DistanceKm float64 `json:"distance_km"`
	Confidence float64 `json:"confidence"`
}

// SourceDiscrepancy records an external source that disagrees, with both
// coordinate pairs.
type SourceDiscrepancy struct {
	Source     string              `json:"source"`
	DistanceKm float64             `json:"distance_km"`
	Predicted  types.GeoCoordinate `json:"predicted_coords"`
	Observed   types.GeoCoordinate `json:"source_coords"`
}

// CrossValidationResult is the outcome of validating a prediction against
// independent external sources.
type CrossValidationResult struct {
	CrossValidationScore float64             `json:"cross_validation_score"`
	ExternalAgreement    []SourceAgreement   `json:"external_agreement"`
	Discrepancies        []SourceDiscrepancy `json:"discrepancies"`
	FinalConfidence      float64             `json:"final_confidence"`
}

// CrossValidate scores a prediction against external observations. This
// calibration path is independent of Validate's heuristic adjustment; the
// caller chooses which (or both) to apply. Pure function, no mutation of the
// prediction.
func CrossValidate(pred types.LocationPrediction, sources []ExternalObservation) CrossValidationResult {
	result := CrossValidationResult{
		ExternalAgreement: []SourceAgreement{},
		Discrepancies:     []SourceDiscrepancy{},
		FinalConfidence:   pred.PredictedLocation.Confidence,
	}

	if len(sources) == 0 {
		return result
	}

	primary := pred.PredictedLocation.Coordinate()

	for _, src := range sources {
		observed := types.GeoCoordinate{Latitude: src.Latitude, Longitude: src.Longitude}
		distance := geo.DistanceKm(primary, observed)

		if distance < agreementRadiusKm {
			result.ExternalAgreement = append(result.ExternalAgreement, SourceAgreement{
				Source:     src.Source,
				DistanceKm: distance,
				Confidence: src.Confidence,
			})
		} else {
			result.Discrepancies = append(result.Discrepancies, SourceDiscrepancy{
				Source:     src.Source,
				DistanceKm: distance,
				Predicted:  primary,
				Observed:   observed,
			})
		}
	}

	if len(result.ExternalAgreement) > 0 {
		var total float64
		for _, a := range result.ExternalAgreement {
			total += a.Confidence
		}
		score := total / float64(len(result.ExternalAgreement))
		if score > 1 {
			score = 1
		}
		result.CrossValidationScore = score
	}

	blended := 0.7*pred.PredictedLocation.Confidence + 0.3*result.CrossValidationScore
	if blended > 1 {
		blended = 1
	}
	result.FinalConfidence = blended

	return result
}
