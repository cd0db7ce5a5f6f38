package imageprocessor

import "geoagent/types"

// Analyzer adapts the package-level feature functions to the small
// interfaces the server and ingest layers accept.
type Analyzer struct{}

func (Analyzer) AnalyzeImage(path string) (types.ImageFeatureSet, error) {
	return AnalyzeImage(path)
}

func (Analyzer) BuildFeatureVector(path string) ([]float32, error) {
	return BuildFeatureVector(path)
}
