package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	// Format sniffing for the upload allowlist. TIFF and WebP come from
	// x/image; JPEG and PNG from the standard library.
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"geoagent/logging"
	"geoagent/types"
)

const defaultSimilarK = 5

// geolocate accepts a multipart image upload plus optional free-text
// context and runs the full pipeline: metadata -> features -> inference ->
// validation. The uploaded file lives in the scratch dir for the duration
// of the request only.
func (r *Router) geolocate(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		httpError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	contents, filename, ok := r.readUpload(w, req)
	if !ok {
		return
	}

	tmpPath, err := r.saveScratchFile(contents, filename)
	if err != nil {
		logging.LogError("cannot save upload: %v", err)
		httpError(w, http.StatusInternalServerError, "error processing image")
		return
	}
	defer os.Remove(tmpPath)

	ctx, cancel := context.WithTimeout(req.Context(), r.cfg.Timeout)
	defer cancel()

	coord, err := r.meta.ExtractCoordinate(tmpPath)
	if err != nil {
		// Metadata problems are a recoverable miss, not a failure.
		logging.DebugLog("metadata extraction failed for %s: %v", tmpPath, err)
		coord = nil
	}

	features, err := r.analyzer.AnalyzeImage(tmpPath)
	if err != nil {
		logging.LogError("feature extraction failed for %s: %v", tmpPath, err)
		httpError(w, http.StatusInternalServerError, "error processing image")
		return
	}

	prediction := r.engine.Infer(ctx, features, coord, req.FormValue("context"))
	validated := r.validator.Validate(prediction, &features)

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status": "success",
		"result": validated,
	})
}

// addLocation is the explicit, caller-initiated write-through: it persists
// an accepted observation and, when supplied, its feature vector.
func (r *Router) addLocation(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		httpError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var body struct {
		Latitude      float64   `json:"latitude"`
		Longitude     float64   `json:"longitude"`
		ImagePath     string    `json:"image_path"`
		Description   string    `json:"description"`
		FeatureVector []float32 `json:"feature_vector"`
		FeatureType   string    `json:"feature_type"`
	}
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		httpError(w, http.StatusBadRequest, err.Error())
		return
	}

	coord := types.GeoCoordinate{Latitude: body.Latitude, Longitude: body.Longitude}
	if !coord.Valid() {
		httpError(w, http.StatusBadRequest, fmt.Sprintf("invalid coordinate (%f, %f)", body.Latitude, body.Longitude))
		return
	}

	id, err := r.store.AddLocation(req.Context(), coord, body.ImagePath, body.Description)
	if err != nil {
		logging.LogError("cannot store location: %v", err)
		httpError(w, http.StatusInternalServerError, "cannot store location")
		return
	}

	if len(body.FeatureVector) > 0 {
		if err := r.store.AddFeatures(req.Context(), id, body.FeatureVector, body.FeatureType); err != nil {
			// The location row is already committed; report the partial write.
			logging.LogError("cannot store features for location %d: %v", id, err)
			httpError(w, http.StatusInternalServerError, fmt.Sprintf("location %d stored but features failed", id))
			return
		}
	}

	respondJSON(w, http.StatusCreated, map[string]int64{"id": id})
}

func (r *Router) locationByID(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		httpError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	idStr := strings.TrimPrefix(req.URL.Path, "/locations/")
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		httpError(w, http.StatusBadRequest, "invalid location id")
		return
	}

	rec, err := r.store.GetLocation(req.Context(), id)
	if err != nil {
		logging.LogError("cannot read location %d: %v", id, err)
		httpError(w, http.StatusInternalServerError, "cannot read location")
		return
	}
	if rec == nil {
		httpError(w, http.StatusNotFound, "location not found")
		return
	}

	respondJSON(w, http.StatusOK, rec)
}

func (r *Router) radius(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		httpError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	lat, errLat := strconv.ParseFloat(req.URL.Query().Get("lat"), 64)
	lon, errLon := strconv.ParseFloat(req.URL.Query().Get("lon"), 64)
	if errLat != nil || errLon != nil {
		httpError(w, http.StatusBadRequest, "lat and lon query parameters are required")
		return
	}

	radiusKm := 10.0
	if raw := req.URL.Query().Get("radius_km"); raw != "" {
		parsed, err := strconv.ParseFloat(raw, 64)
		if err != nil || parsed < 0 {
			httpError(w, http.StatusBadRequest, "invalid radius_km")
			return
		}
		radiusKm = parsed
	}

	center := types.GeoCoordinate{Latitude: lat, Longitude: lon}
	if !center.Valid() {
		httpError(w, http.StatusBadRequest, fmt.Sprintf("invalid coordinate (%f, %f)", lat, lon))
		return
	}

	matches, err := r.store.FindByRadius(req.Context(), center, radiusKm)
	if err != nil {
		logging.LogError("radius search failed: %v", err)
		httpError(w, http.StatusInternalServerError, "radius search failed")
		return
	}

	respondJSON(w, http.StatusOK, matches)
}

// similar accepts a multipart image and returns the k nearest stored
// observations by feature-vector distance.
func (r *Router) similar(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		httpError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	contents, filename, ok := r.readUpload(w, req)
	if !ok {
		return
	}

	k := defaultSimilarK
	if raw := req.FormValue("k"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			httpError(w, http.StatusBadRequest, "invalid k")
			return
		}
		k = parsed
	}

	tmpPath, err := r.saveScratchFile(contents, filename)
	if err != nil {
		logging.LogError("cannot save upload: %v", err)
		httpError(w, http.StatusInternalServerError, "error processing image")
		return
	}
	defer os.Remove(tmpPath)

	vector, err := r.analyzer.BuildFeatureVector(tmpPath)
	if err != nil {
		logging.LogError("feature vector failed for %s: %v", tmpPath, err)
		httpError(w, http.StatusInternalServerError, "error processing image")
		return
	}

	matches, err := r.store.FindSimilar(req.Context(), vector, k)
	if err != nil {
		logging.LogError("similarity search failed: %v", err)
		httpError(w, http.StatusInternalServerError, "similarity search failed")
		return
	}

	respondJSON(w, http.StatusOK, matches)
}

// readUpload enforces the upload boundary: byte-size cap, extension
// allowlist, and a decodable-image sniff. It writes the error response
// itself and reports ok=false on rejection.
func (r *Router) readUpload(w http.ResponseWriter, req *http.Request) (contents []byte, filename string, ok bool) {
	req.Body = http.MaxBytesReader(w, req.Body, r.cfg.MaxImageSize)

	if err := req.ParseMultipartForm(r.cfg.MaxImageSize); err != nil {
		httpError(w, http.StatusBadRequest, fmt.Sprintf("file too large or malformed form (max %d bytes)", r.cfg.MaxImageSize))
		return nil, "", false
	}

	file, header, err := req.FormFile("image")
	if err != nil {
		httpError(w, http.StatusBadRequest, "image file is required")
		return nil, "", false
	}
	defer file.Close()

	ext := filepath.Ext(header.Filename)
	if !r.cfg.FormatAllowed(ext) {
		httpError(w, http.StatusBadRequest, fmt.Sprintf("file format not supported, allowed formats: %s", strings.Join(r.cfg.AllowedFormats, ", ")))
		return nil, "", false
	}

	contents, err = io.ReadAll(file)
	if err != nil {
		httpError(w, http.StatusBadRequest, "cannot read upload")
		return nil, "", false
	}

	if _, _, err := image.DecodeConfig(bytes.NewReader(contents)); err != nil {
		httpError(w, http.StatusBadRequest, "upload is not a decodable image")
		return nil, "", false
	}

	return contents, header.Filename, true
}

// saveScratchFile writes the upload into the scratch dir under a
// timestamp-unique name. The caller removes it when the request ends.
func (r *Router) saveScratchFile(contents []byte, filename string) (string, error) {
	if err := os.MkdirAll(r.cfg.UploadDir, 0755); err != nil {
		return "", fmt.Errorf("cannot create upload dir: %v", err)
	}

	name := fmt.Sprintf("%d_%s", time.Now().UnixNano(), filepath.Base(filename))
	path := filepath.Join(r.cfg.UploadDir, name)

	if err := os.WriteFile(path, contents, 0644); err != nil {
		return "", fmt.Errorf("cannot write upload: %v", err)
	}

	return path, nil
}

func respondJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.LogError("cannot encode response: %v", err)
	}
}

func httpError(w http.ResponseWriter, status int, detail string) {
	respondJSON(w, status, map[string]string{"detail": detail})
}
