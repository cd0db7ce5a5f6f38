package validation

import (
	"geoagent/geo"
	"geoagent/types"
)

// PlausibilityChecker decides whether a predicted coordinate is
// geographically implausible. The default implementation is a coarse
// illustrative filter; real landmass lookups can be plugged in.
type PlausibilityChecker interface {
	IsOutlier(c types.GeoCoordinate) bool
}

// BoundingBoxChecker flags out-of-range coordinates and a fixed bounding box
// over open Pacific ocean.
type BoundingBoxChecker struct{}

func (BoundingBoxChecker) IsOutlier(c types.GeoCoordinate) bool {
	if !c.Valid() {
		return true
	}
	if c.Latitude > -5 && c.Latitude < 5 && c.Longitude > -170 && c.Longitude < -160 {
		return true
	}
	return false
}

// FeatureConsistencyChecker scores how well the image features match the
// predicted coordinate, in [0, 1].
type FeatureConsistencyChecker interface {
	Score(c types.GeoCoordinate, f types.ImageFeatureSet) float64
}

// NeutralFeatureChecker is the acknowledged stub for future
// feature-to-location cross-checking. It contributes a constant neutral
// score, not a real signal.
type NeutralFeatureChecker struct{}

func (NeutralFeatureChecker) Score(types.GeoCoordinate, types.ImageFeatureSet) float64 {
	return 0.5
}

// Validator recomputes a calibrated confidence for a prediction from its
// internal consistency, geographic plausibility, and the feature-matching
// stub.
type Validator struct {
	ConfidenceThreshold float64
	Plausibility        PlausibilityChecker
	FeatureCheck        FeatureConsistencyChecker
}

// NewValidator returns a validator with the default strategy slots.
func NewValidator(confidenceThreshold float64) *Validator {
	return &Validator{
		ConfidenceThreshold: confidenceThreshold,
		Plausibility:        BoundingBoxChecker{},
		FeatureCheck:        NeutralFeatureChecker{},
	}
}

// ValidatedPrediction is a prediction with its adjusted confidence, the
// attached validation metrics, and the reliability flag.
type ValidatedPrediction struct {
	types.LocationPrediction
	ValidationMetrics types.ValidationMetrics `json:"validation_metrics"`
	IsReliable        bool                    `json:"is_reliable"`
}

// Validate adjusts the prediction's confidence from the validation metrics.
// Only the confidence field changes; coordinates pass through untouched.
func (v *Validator) Validate(pred types.LocationPrediction, features *types.ImageFeatureSet) ValidatedPrediction {
	metrics := v.calculateMetrics(pred, features)
	adjusted := AdjustConfidence(pred.PredictedLocation.Confidence, metrics)

	out := ValidatedPrediction{
		LocationPrediction: pred,
		ValidationMetrics:  metrics,
	}
	out.PredictedLocation.Confidence = adjusted
	out.IsReliable = adjusted >= v.ConfidenceThreshold

	return out
}

func (v *Validator) calculateMetrics(pred types.LocationPrediction, features *types.ImageFeatureSet) types.ValidationMetrics {
	metrics := types.ValidationMetrics{
		ValidationNotes: []string{},
	}

	primary := pred.PredictedLocation.Coordinate()

	metrics.ConsistencyScore = ConsistencyScore(primary, pred.AlternativeLocations)

	if features != nil {
		metrics.FeatureMatchingScore = v.FeatureCheck.Score(primary, *features)
	}

	if v.Plausibility.IsOutlier(primary) {
		metrics.OutlierDetected = true
		metrics.ValidationNotes = append(metrics.ValidationNotes, "Predicted location appears to be an outlier")
	}

	return metrics
}

// ConsistencyScore maps the mean great-circle distance from the primary
// prediction to its alternatives onto (0, 1]: 1/(1 + avgKm/10), clamped.
// Without alternatives the prediction is vacuously consistent.
func ConsistencyScore(primary types.GeoCoordinate, alternatives []types.AlternativeLocation) float64 {
	if len(alternatives) == 0 {
		return 1.0
	}

	var total float64
	for _, alt := range alternatives {
		total += geo.DistanceKm(primary, types.GeoCoordinate{Latitude: alt.Latitude, Longitude: alt.Longitude})
	}
	avg := total / float64(len(alternatives))

	score := 1 / (1 + avg/10)
	if score > 1 {
		score = 1
	}
	return score
}

// AdjustConfidence recombines the original confidence with the validation
// metrics. The multiplicative weights are fixed calibration constants;
// changing them changes output parity.
func AdjustConfidence(original float64, metrics types.ValidationMetrics) float64 {
	adjusted := original
	adjusted *= 0.7 + 0.3*metrics.ConsistencyScore
	adjusted *= 0.8 + 0.2*metrics.FeatureMatchingScore

	if metrics.OutlierDetected {
		adjusted *= 0.5
	}

	return clamp01(adjusted)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
