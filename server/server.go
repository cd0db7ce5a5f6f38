// Package server implements the upload boundary and HTTP API around the
// geolocation pipeline. Handlers depend on small interfaces so the boundary
// is testable without OpenCV, exiftool, or a live model endpoint.
package server

import (
	"context"
	"net/http"

	"geoagent/config"
	"geoagent/database"
	"geoagent/types"
	"geoagent/validation"
)

// MetadataReader extracts an embedded GPS coordinate, nil on a recoverable
// miss.
type MetadataReader interface {
	ExtractCoordinate(path string) (*types.GeoCoordinate, error)
}

// Analyzer computes visual features and feature vectors for an image file.
type Analyzer interface {
	AnalyzeImage(path string) (types.ImageFeatureSet, error)
	BuildFeatureVector(path string) ([]float32, error)
}

// Inferencer produces a location prediction; it never fails (fallback
// semantics live below this interface).
type Inferencer interface {
	Infer(ctx context.Context, features types.ImageFeatureSet, metaCoord *types.GeoCoordinate, userContext string) types.LocationPrediction
}

// LocationStore is the subset of the store the API needs.
type LocationStore interface {
	AddLocation(ctx context.Context, coord types.GeoCoordinate, imagePath, description string) (int64, error)
	AddFeatures(ctx context.Context, locationID int64, vector []float32, featureType string) error
	GetLocation(ctx context.Context, id int64) (*types.LocationRecord, error)
	FindSimilar(ctx context.Context, query []float32, k int) ([]database.SimilarLocation, error)
	FindByRadius(ctx context.Context, center types.GeoCoordinate, radiusKm float64) ([]types.LocationRecord, error)
}

// Router builds the HTTP handlers.
type Router struct {
	cfg       config.Config
	meta      MetadataReader
	analyzer  Analyzer
	engine    Inferencer
	validator *validation.Validator
	store     LocationStore
}

// NewRouter wires the pipeline collaborators into a router.
func NewRouter(cfg config.Config, meta MetadataReader, analyzer Analyzer, engine Inferencer, validator *validation.Validator, store LocationStore) *Router {
	return &Router{
		cfg:       cfg,
		meta:      meta,
		analyzer:  analyzer,
		engine:    engine,
		validator: validator,
		store:     store,
	}
}

// Register attaches all handlers to the mux.
func (r *Router) Register(mux *http.ServeMux) {
	mux.HandleFunc("/geolocate", r.geolocate)
	mux.HandleFunc("/health", r.health)
	mux.HandleFunc("/locations", r.addLocation)
	mux.HandleFunc("/locations/radius", r.radius)
	mux.HandleFunc("/locations/similar", r.similar)
	mux.HandleFunc("/locations/", r.locationByID)
}

func (r *Router) health(w http.ResponseWriter, req *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "geoagent geolocation API",
	})
}
