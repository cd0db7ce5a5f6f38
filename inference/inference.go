package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"geoagent/config"
	"geoagent/logging"
	"geoagent/types"
)

// Engine decides whether embedded metadata alone answers the question or a
// model call is required, and degrades to a fixed fallback prediction on any
// failure. Infer never returns an error; the pipeline never raises on model
// failure.
type Engine struct {
	client      *http.Client
	apiKey      string
	baseURL     string
	model       string
	temperature float64
	maxTokens   int
}

// NewEngine builds an engine from the model-endpoint configuration. The
// engine enforces no timeout of its own; the caller's context carries the
// request budget.
func NewEngine(cfg config.Config) *Engine {
	return &Engine{
		client:      &http.Client{},
		apiKey:      cfg.APIKey,
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
	}
}

// FallbackPrediction is the fixed degrade-to-safe-default result substituted
// whenever inference cannot produce a usable prediction.
func FallbackPrediction() types.LocationPrediction {
	return types.LocationPrediction{
		PredictedLocation: types.PredictedLocation{
			Latitude:   0,
			Longitude:  0,
			Accuracy:   types.AccuracyLow,
			Confidence: 0.1,
		},
		Reasoning:            "Unable to determine location from available data",
		AlternativeLocations: []types.AlternativeLocation{},
	}
}

// Infer produces a location prediction from the image features, an optional
// metadata coordinate, and free-text user context. A present metadata
// coordinate short-circuits the model call entirely.
func (e *Engine) Infer(ctx context.Context, features types.ImageFeatureSet, metaCoord *types.GeoCoordinate, userContext string) types.LocationPrediction {
	if metaCoord != nil {
		return types.LocationPrediction{
			PredictedLocation: types.PredictedLocation{
				Latitude:   metaCoord.Latitude,
				Longitude:  metaCoord.Longitude,
				Accuracy:   types.AccuracyHigh,
				Confidence: 0.95,
			},
			Reasoning:            "Location determined from embedded GPS metadata",
			AlternativeLocations: []types.AlternativeLocation{},
		}
	}

	content, err := e.callModel(ctx, buildPrompt(features, userContext))
	if err != nil {
		logging.LogWarning("model call failed, using fallback prediction: %v", err)
		return FallbackPrediction()
	}

	return ParseModelResponse(content)
}

// callModel posts a two-message conversation to the chat-completions
// endpoint and returns the first choice's message content. No retries here;
// the retry budget belongs to an outer layer.
func (e *Engine) callModel(ctx context.Context, prompt string) (string, error) {
	payload := map[string]interface{}{
		"model": e.model,
		"messages": []map[string]string{
			{"role": "system", "content": systemInstruction},
			{"role": "user", "content": prompt},
		},
		"temperature": e.temperature,
		"max_tokens":  e.maxTokens,
		"response_format": map[string]string{
			"type": "json_object",
		},
	}

	buf, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("cannot marshal request: %v", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/chat/completions", bytes.NewReader(buf))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	if e.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+e.apiKey)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("model endpoint returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var envelope struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return "", fmt.Errorf("cannot decode completion envelope: %v", err)
	}
	if len(envelope.Choices) == 0 {
		return "", errors.New("empty completion response")
	}

	return envelope.Choices[0].Message.Content, nil
}
