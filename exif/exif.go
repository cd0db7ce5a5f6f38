package exif

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/barasher/go-exiftool"

	"geoagent/logging"
	"geoagent/types"
)

// Extractor reads embedded GPS positioning tags through a long-lived
// exiftool process. The extraction is a pure parse with no side effects;
// missing or malformed tags are a recoverable miss, never an error.
type Extractor struct {
	et *exiftool.Exiftool
}

// NewExtractor starts the backing exiftool process.
func NewExtractor() (*Extractor, error) {
	et, err := exiftool.NewExiftool()
	if err != nil {
		return nil, fmt.Errorf("cannot start exiftool: %v", err)
	}
	return &Extractor{et: et}, nil
}

// Close stops the backing exiftool process.
func (e *Extractor) Close() error {
	return e.et.Close()
}

// ExtractCoordinate returns the coordinate embedded in the image's GPS tags,
// or nil when the required tags are absent or malformed.
func (e *Extractor) ExtractCoordinate(path string) (*types.GeoCoordinate, error) {
	metas := e.et.ExtractMetadata(path)
	if len(metas) == 0 {
		return nil, nil
	}

	fm := metas[0]
	if fm.Err != nil {
		logging.DebugLog("exif read failed for %s: %v", path, fm.Err)
		return nil, nil
	}

	latRaw, err := fm.GetString("GPSLatitude")
	if err != nil {
		return nil, nil
	}
	lonRaw, err := fm.GetString("GPSLongitude")
	if err != nil {
		return nil, nil
	}

	lat, latRef, ok := ParseCoordinate(latRaw)
	if !ok {
		logging.DebugLog("malformed GPSLatitude %q in %s", latRaw, path)
		return nil, nil
	}
	lon, lonRef, ok := ParseCoordinate(lonRaw)
	if !ok {
		logging.DebugLog("malformed GPSLongitude %q in %s", lonRaw, path)
		return nil, nil
	}

	// Prefer the explicit reference tags; fall back to any hemisphere letter
	// embedded in the coordinate rendering itself.
	if ref, err := fm.GetString("GPSLatitudeRef"); err == nil && ref != "" {
		latRef = ref
	}
	if ref, err := fm.GetString("GPSLongitudeRef"); err == nil && ref != "" {
		lonRef = ref
	}

	lat = ApplyHemisphere(lat, latRef, 'S')
	lon = ApplyHemisphere(lon, lonRef, 'W')

	coord := &types.GeoCoordinate{Latitude: lat, Longitude: lon}
	if !coord.Valid() {
		logging.LogWarning("out-of-range GPS coordinate (%f, %f) in %s", lat, lon, path)
		return nil, nil
	}

	return coord, nil
}

// ConvertToDegrees converts a degrees/minutes/seconds triple to decimal
// degrees.
func ConvertToDegrees(d, m, s float64) float64 {
	return d + m/60.0 + s/3600.0
}

// dmsPattern matches exiftool's human-readable coordinate rendering,
// e.g. `48 deg 51' 29.76" N`.
var dmsPattern = regexp.MustCompile(`^\s*(\d+(?:\.\d+)?)\s+deg\s+(\d+(?:\.\d+)?)'\s*(\d+(?:\.\d+)?)"\s*([NSEW])?\s*$`)

// ParseCoordinate parses a single GPS coordinate value as produced by
// exiftool: either a DMS rendering or a plain decimal string. It returns the
// coordinate value, any hemisphere letter embedded in the value, and whether
// the parse succeeded.
func ParseCoordinate(raw string) (float64, string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, "", false
	}

	if m := dmsPattern.FindStringSubmatch(raw); m != nil {
		d, errD := strconv.ParseFloat(m[1], 64)
		min, errM := strconv.ParseFloat(m[2], 64)
		s, errS := strconv.ParseFloat(m[3], 64)
		if errD != nil || errM != nil || errS != nil {
			return 0, "", false
		}
		return ConvertToDegrees(d, min, s), m[4], true
	}

	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, "", false
	}
	return v, "", true
}

// ApplyHemisphere negates a positive coordinate value when the reference tag
// names the negative hemisphere (S for latitude, W for longitude). N/E or
// absent references leave the value untouched.
func ApplyHemisphere(value float64, ref string, negative byte) float64 {
	ref = strings.ToUpper(strings.TrimSpace(ref))
	if ref == "" {
		return value
	}
	if ref[0] == negative && value > 0 {
		return -value
	}
	return value
}
