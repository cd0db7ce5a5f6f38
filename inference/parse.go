package inference

import (
	"encoding/json"
	"regexp"
	"strings"

	"geoagent/logging"
	"geoagent/types"
)

// fencedJSON matches a JSON object wrapped in a markdown code fence, with or
// without a json language tag.
var fencedJSON = regexp.MustCompile("(?s)```(?:json)?\\s*(\\{.*?\\})\\s*```")

// ParseModelResponse turns the model's raw text into a prediction. Each of
// the three top-level fields missing from the parsed object is filled with
// the corresponding fallback default (partial fallback); a response that
// cannot be parsed at all resolves to the whole fallback prediction.
func ParseModelResponse(content string) types.LocationPrediction {
	raw := extractJSON(content)

	var parsed struct {
		PredictedLocation    *types.PredictedLocation    `json:"predicted_location"`
		Reasoning            *string                     `json:"reasoning"`
		AlternativeLocations []types.AlternativeLocation `json:"alternative_locations"`
	}
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		logging.LogWarning("unparseable model response: %v", err)
		logging.DebugLog("model response content: %s", content)
		return FallbackPrediction()
	}

	fallback := FallbackPrediction()
	pred := types.LocationPrediction{}

	if parsed.PredictedLocation != nil {
		pred.PredictedLocation = *parsed.PredictedLocation
	} else {
		pred.PredictedLocation = fallback.PredictedLocation
	}

	if parsed.Reasoning != nil {
		pred.Reasoning = *parsed.Reasoning
	} else {
		pred.Reasoning = fallback.Reasoning
	}

	if parsed.AlternativeLocations != nil {
		pred.AlternativeLocations = parsed.AlternativeLocations
	} else {
		pred.AlternativeLocations = []types.AlternativeLocation{}
	}

	return pred
}

// extractJSON locates the JSON payload inside the model's raw text: a fenced
// json block first, else the substring between the first '{' and the last
// '}', else the whole trimmed response.
func extractJSON(content string) string {
	if m := fencedJSON.FindStringSubmatch(content); m != nil {
		return m[1]
	}

	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start != -1 && end > start {
		return content[start : end+1]
	}

	return strings.TrimSpace(content)
}
