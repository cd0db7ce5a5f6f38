package imageprocessor

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"
)

// thumbSize is the edge length of the grayscale thumbnail whose intensities
// form the spatial part of the feature vector.
const thumbSize = 10

// BuildFeatureVector computes a numeric feature vector for similarity
// search: the normalized intensities of a thumbSize x thumbSize grayscale
// thumbnail followed by normalized scalar features. The vector has its
// natural length; the location store pads or truncates it to the index
// dimension on insert and query.
func BuildFeatureVector(path string) ([]float32, error) {
	img := gocv.IMRead(path, gocv.IMReadColor)
	if img.Empty() {
		return nil, fmt.Errorf("cannot load image: %s", path)
	}
	defer img.Close()

	return buildVector(img)
}

// BuildFeatureVectorBytes computes the same vector from raw image bytes.
func BuildFeatureVectorBytes(data []byte) ([]float32, error) {
	img, err := gocv.IMDecode(data, gocv.IMReadColor)
	if err != nil {
		return nil, fmt.Errorf("cannot decode image: %v", err)
	}
	if img.Empty() {
		return nil, fmt.Errorf("cannot decode image: empty result")
	}
	defer img.Close()

	return buildVector(img)
}

func buildVector(img gocv.Mat) ([]float32, error) {
	gray := gocv.NewMat()
	defer gray.Close()

	if img.Channels() == 1 {
		img.CopyTo(&gray)
	} else {
		gocv.CvtColor(img, &gray, gocv.ColorBGRToGray)
	}

	thumb := gocv.NewMat()
	defer thumb.Close()

	gocv.Resize(gray, &thumb, image.Point{X: thumbSize, Y: thumbSize}, 0, 0, gocv.InterpolationLinear)

	vec := make([]float32, 0, thumbSize*thumbSize+6)
	for y := 0; y < thumb.Rows(); y++ {
		for x := 0; x < thumb.Cols(); x++ {
			vec = append(vec, float32(thumb.GetUCharAt(y, x))/255.0)
		}
	}

	mean := img.Mean()
	width := img.Cols()
	height := img.Rows()

	edges := gocv.NewMat()
	defer edges.Close()
	gocv.Canny(gray, &edges, cannyLowThreshold, cannyHighThreshold)

	edgeRatio := float32(0)
	if width > 0 && height > 0 {
		edgeRatio = float32(gocv.CountNonZero(edges)) / float32(width*height)
	}

	aspect := float32(0)
	if height > 0 {
		aspect = float32(width) / float32(height)
	}

	brightness := float32(meanIntensity(mean, img.Channels())) / 255.0

	vec = append(vec,
		brightness,
		edgeRatio,
		aspect,
		float32(mean.Val3)/255.0, // R
		float32(mean.Val2)/255.0, // G
		float32(mean.Val1)/255.0, // B
	)

	return vec, nil
}
