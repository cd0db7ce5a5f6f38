package inference

import (
	"fmt"
	"strings"

	"geoagent/types"
)

const systemInstruction = "You are an expert at determining geographic locations from image features and contextual information. " +
	"Provide the most likely location with coordinates, accuracy estimate, and confidence score. Respond in JSON format."

const promptInstructions = `
Based on these features, please provide:
1. Most likely geographic location (city, region, country)
2. Estimated latitude and longitude coordinates
3. Accuracy level (high, medium, low)
4. Confidence score (0-1)
5. Alternative possible locations with lower confidence
6. Reasoning for your prediction

Respond in JSON format with the following structure:
{
    "predicted_location": {
        "latitude": <number>,
        "longitude": <number>,
        "accuracy": "<high|medium|low>",
        "confidence": <number>
    },
    "reasoning": "<explanation>",
    "alternative_locations": [
        {
            "latitude": <number>,
            "longitude": <number>,
            "confidence": <number>
        }
    ]
}`

// buildPrompt embeds the feature summary and free-text user context into the
// analysis request sent as the user message.
func buildPrompt(f types.ImageFeatureSet, userContext string) string {
	var b strings.Builder

	b.WriteString("Analyze the following image features to determine the geographic location:\n\n")
	b.WriteString("Image Features:\n")
	fmt.Fprintf(&b, "- Size: %dx%d\n", f.Width, f.Height)
	fmt.Fprintf(&b, "- Mode: %s\n", f.ColorMode)
	fmt.Fprintf(&b, "- Brightness: %.1f\n", f.Brightness)
	fmt.Fprintf(&b, "- Number of edges: %d\n", f.EdgeDensity)
	fmt.Fprintf(&b, "- Dominant colors: %s\n", formatColors(f.DominantColors))

	if strings.TrimSpace(userContext) == "" {
		userContext = "No additional context provided"
	}
	fmt.Fprintf(&b, "\nUser Context: %s\n", userContext)

	b.WriteString(promptInstructions)

	return b.String()
}

func formatColors(colors []types.RGB) string {
	if len(colors) == 0 {
		return "Unknown"
	}
	parts := make([]string, 0, len(colors))
	for _, c := range colors {
		parts = append(parts, fmt.Sprintf("(%d, %d, %d)", c.R, c.G, c.B))
	}
	return strings.Join(parts, ", ")
}
