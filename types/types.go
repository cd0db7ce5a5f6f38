package types

// Accuracy tiers attached to a predicted coordinate. The tier is a coarse
// qualitative label, distinct from the numeric confidence score.
const (
	AccuracyHigh   = "high"
	AccuracyMedium = "medium"
	AccuracyLow    = "low"
)

// GeoCoordinate is a WGS84 latitude/longitude pair in decimal degrees.
type GeoCoordinate struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Valid reports whether both components are within range. Out-of-range
// values must be flagged by callers, never stored as valid.
func (c GeoCoordinate) Valid() bool {
	return c.Latitude >= -90 && c.Latitude <= 90 &&
		c.Longitude >= -180 && c.Longitude <= 180
}

// RGB is an 8-bit color triple.
type RGB struct {
	R uint8 `json:"r"`
	G uint8 `json:"g"`
	B uint8 `json:"b"`
}

// ImageFeatureSet holds the coarse visual descriptors computed once per
// image. It is consumed both by the inference engine (prompt construction)
// and by the location store (feature-vector construction).
type ImageFeatureSet struct {
	Width          int     `json:"width"`
	Height         int     `json:"height"`
	ColorMode      string  `json:"color_mode"`
	Brightness     float64 `json:"brightness"`
	EdgeDensity    int     `json:"edge_density"`
	DominantColors []RGB   `json:"dominant_colors"`
}

// PredictedLocation is the primary predicted coordinate with its accuracy
// tier and confidence score.
type PredictedLocation struct {
	Latitude   float64 `json:"latitude"`
	Longitude  float64 `json:"longitude"`
	Accuracy   string  `json:"accuracy"`
	Confidence float64 `json:"confidence"`
}

// Coordinate returns the predicted coordinate pair.
func (p PredictedLocation) Coordinate() GeoCoordinate {
	return GeoCoordinate{Latitude: p.Latitude, Longitude: p.Longitude}
}

// AlternativeLocation is a lower-confidence candidate coordinate.
type AlternativeLocation struct {
	Latitude   float64 `json:"latitude"`
	Longitude  float64 `json:"longitude"`
	Confidence float64 `json:"confidence"`
}

// LocationPrediction is the inference engine's output. The validator adjusts
// the confidence field only; coordinates are never altered downstream.
type LocationPrediction struct {
	PredictedLocation    PredictedLocation     `json:"predicted_location"`
	Reasoning            string                `json:"reasoning"`
	AlternativeLocations []AlternativeLocation `json:"alternative_locations"`
}

// ValidationMetrics is the side record the confidence validator attaches to
// a prediction.
type ValidationMetrics struct {
	ConsistencyScore     float64  `json:"consistency_score"`
	FeatureMatchingScore float64  `json:"feature_matching_score"`
	OutlierDetected      bool     `json:"outlier_detection"`
	ValidationNotes      []string `json:"validation_notes"`
}

// LocationRecord is a persisted geotagged observation. The store assigns the
// identifier on insert and never reuses it.
type LocationRecord struct {
	ID          int64   `json:"id"`
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
	ImagePath   string  `json:"image_path"`
	Description string  `json:"description"`
	CreatedAt   string  `json:"created_at"`
}

// Coordinate returns the record's coordinate pair.
func (r LocationRecord) Coordinate() GeoCoordinate {
	return GeoCoordinate{Latitude: r.Latitude, Longitude: r.Longitude}
}
