package imageprocessor

import (
	"fmt"

	"gocv.io/x/gocv"

	"geoagent/types"
)

// Canny thresholds for the edge-density measurement.
const (
	cannyLowThreshold  = 100
	cannyHighThreshold = 200
)

// AnalyzeImage loads an image from disk and computes its coarse visual
// features. Deterministic, no side effects beyond reading the file.
func AnalyzeImage(path string) (types.ImageFeatureSet, error) {
	img := gocv.IMRead(path, gocv.IMReadColor)
	if img.Empty() {
		return types.ImageFeatureSet{}, fmt.Errorf("cannot load image: %s", path)
	}
	defer img.Close()

	return analyzeMat(img)
}

// AnalyzeImageBytes computes the same features from raw image bytes.
func AnalyzeImageBytes(data []byte) (types.ImageFeatureSet, error) {
	img, err := gocv.IMDecode(data, gocv.IMReadColor)
	if err != nil {
		return types.ImageFeatureSet{}, fmt.Errorf("cannot decode image: %v", err)
	}
	if img.Empty() {
		return types.ImageFeatureSet{}, fmt.Errorf("cannot decode image: empty result")
	}
	defer img.Close()

	return analyzeMat(img)
}

func analyzeMat(img gocv.Mat) (types.ImageFeatureSet, error) {
	channels := img.Channels()
	mean := img.Mean()

	// Convert to grayscale for edge detection
	gray := gocv.NewMat()
	defer gray.Close()

	if channels == 1 {
		img.CopyTo(&gray)
	} else {
		gocv.CvtColor(img, &gray, gocv.ColorBGRToGray)
	}

	edges := gocv.NewMat()
	defer edges.Close()

	gocv.Canny(gray, &edges, cannyLowThreshold, cannyHighThreshold)

	// The dominant color is the arithmetic-mean BGR triple, not a clustered
	// palette. This is a documented simplification.
	dominant := types.RGB{
		R: clampChannel(mean.Val3),
		G: clampChannel(mean.Val2),
		B: clampChannel(mean.Val1),
	}

	return types.ImageFeatureSet{
		Width:          img.Cols(),
		Height:         img.Rows(),
		ColorMode:      colorMode(channels),
		Brightness:     meanIntensity(mean, channels),
		EdgeDensity:    gocv.CountNonZero(edges),
		DominantColors: []types.RGB{dominant},
	}, nil
}

// meanIntensity averages the per-channel means over the populated channels.
func meanIntensity(mean gocv.Scalar, channels int) float64 {
	switch channels {
	case 1:
		return mean.Val1
	case 2:
		return (mean.Val1 + mean.Val2) / 2
	default:
		// Alpha, when present, is excluded from the brightness measure.
		return (mean.Val1 + mean.Val2 + mean.Val3) / 3
	}
}

func colorMode(channels int) string {
	switch channels {
	case 1:
		return "grayscale"
	case 3:
		return "RGB"
	case 4:
		return "RGBA"
	default:
		return fmt.Sprintf("%d-channel", channels)
	}
}

func clampChannel(v float64) uint8 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}
