package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCrossValidateNoSources(t *testing.T) {
	pred := prediction(48.8584, 2.2945, 0.8)

	result := CrossValidate(pred, nil)

	assert.Zero(t, result.CrossValidationScore)
	assert.Empty(t, result.ExternalAgreement)
	assert.Empty(t, result.Discrepancies)
	assert.InDelta(t, 0.8, result.FinalConfidence, 0.000001)
}

func TestCrossValidateAgreement(t *testing.T) {
	pred := prediction(48.8584, 2.2945, 0.8)
	sources := []ExternalObservation{
		{Source: "wifi", Latitude: 48.8585, Longitude: 2.2946, Confidence: 0.9},
		{Source: "cell", Latitude: 48.8583, Longitude: 2.2944, Confidence: 0.7},
	}

	result := CrossValidate(pred, sources)

	assert.Len(t, result.ExternalAgreement, 2)
	assert.Empty(t, result.Discrepancies)
	// score = mean(0.9, 0.7) = 0.8; blended = 0.7*0.8 + 0.3*0.8 = 0.8.
	assert.InDelta(t, 0.8, result.CrossValidationScore, 0.000001)
	assert.InDelta(t, 0.8, result.FinalConfidence, 0.000001)
}

func TestCrossValidateDiscrepancy(t *testing.T) {
	pred := prediction(48.8584, 2.2945, 0.8)
	sources := []ExternalObservation{
		{Source: "geoip", Latitude: 40.7128, Longitude: -74.0060, Confidence: 0.9},
	}

	result := CrossValidate(pred, sources)

	assert.Empty(t, result.ExternalAgreement)
	assert.Len(t, result.Discrepancies, 1)

	d := result.Discrepancies[0]
	assert.Equal(t, "geoip", d.Source)
	assert.Greater(t, d.DistanceKm, 1.0)
	assert.InDelta(t, 48.8584, d.Predicted.Latitude, 0.000001)
	assert.InDelta(t, 40.7128, d.Observed.Latitude, 0.000001)

	// No agreeing sources: score 0, blended = 0.7*0.8 = 0.56.
	assert.Zero(t, result.CrossValidationScore)
	assert.InDelta(t, 0.56, result.FinalConfidence, 0.000001)
}

func TestCrossValidateMixedSources(t *testing.T) {
	pred := prediction(48.8584, 2.2945, 0.6)
	sources := []ExternalObservation{
		{Source: "wifi", Latitude: 48.8584, Longitude: 2.2945, Confidence: 0.9},
		{Source: "geoip", Latitude: 52.5200, Longitude: 13.4050, Confidence: 0.5},
	}

	result := CrossValidate(pred, sources)

	assert.Len(t, result.ExternalAgreement, 1)
	assert.Len(t, result.Discrepancies, 1)
	// score = 0.9 (agreeing only); blended = 0.7*0.6 + 0.3*0.9 = 0.69.
	assert.InDelta(t, 0.9, result.CrossValidationScore, 0.000001)
	assert.InDelta(t, 0.69, result.FinalConfidence, 0.000001)
}

func TestCrossValidateDoesNotMutatePrediction(t *testing.T) {
	pred := prediction(48.8584, 2.2945, 0.6)
	CrossValidate(pred, []ExternalObservation{
		{Source: "wifi", Latitude: 48.8584, Longitude: 2.2945, Confidence: 0.9},
	})

	assert.InDelta(t, 0.6, pred.PredictedLocation.Confidence, 0.000001)
}
