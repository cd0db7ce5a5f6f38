// Package ingest feeds the location store from folders of geotagged
// photographs: a bulk scan over existing files and an optional watcher for
// newly arriving ones. Images without embedded GPS tags are skipped, not
// errors.
package ingest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"geoagent/logging"
	"geoagent/types"
)

// Store is the write surface ingest needs.
type Store interface {
	AddLocation(ctx context.Context, coord types.GeoCoordinate, imagePath, description string) (int64, error)
	AddFeatures(ctx context.Context, locationID int64, vector []float32, featureType string) error
}

// MetadataReader extracts an embedded GPS coordinate, nil on a miss.
type MetadataReader interface {
	ExtractCoordinate(path string) (*types.GeoCoordinate, error)
}

// VectorBuilder computes a similarity feature vector for an image file.
type VectorBuilder interface {
	BuildFeatureVector(path string) ([]float32, error)
}

// Options configures a folder scan.
type Options struct {
	FolderPath string
	MaxWorkers int
}

// Stats summarizes a completed scan.
type Stats struct {
	TotalFiles int
	Stored     int
	Skipped    int
	Errors     int
}

// Ingestor processes image files into the location store.
type Ingestor struct {
	store   Store
	meta    MetadataReader
	vectors VectorBuilder
}

// New builds an ingestor from its collaborators.
func New(store Store, meta MetadataReader, vectors VectorBuilder) *Ingestor {
	return &Ingestor{store: store, meta: meta, vectors: vectors}
}

// fileResult holds the outcome of processing one file.
type fileResult struct {
	Path       string
	LocationID int64
	Skipped    bool
	Err        error
}

// Scan walks the folder and processes every image file through a bounded
// worker pool. It returns aggregate statistics; per-file failures are
// counted and logged, not fatal.
func (in *Ingestor) Scan(ctx context.Context, options Options) (Stats, error) {
	info, err := os.Stat(options.FolderPath)
	if err != nil {
		return Stats{}, fmt.Errorf("cannot access folder: %v", err)
	}
	if !info.IsDir() {
		return Stats{}, fmt.Errorf("path is not a directory: %s", options.FolderPath)
	}

	maxWorkers := options.MaxWorkers
	if maxWorkers < 1 {
		maxWorkers = 1
	}

	var wg sync.WaitGroup
	resultsChan := make(chan fileResult, 100)
	semaphore := make(chan struct{}, maxWorkers)

	stats := Stats{}
	statsDone := make(chan struct{})
	go func() {
		defer close(statsDone)
		for res := range resultsChan {
			stats.TotalFiles++
			switch {
			case res.Err != nil:
				stats.Errors++
				logging.LogImageProcessed(res.Path, false, res.Err.Error())
			case res.Skipped:
				stats.Skipped++
				logging.DebugLog("no GPS metadata, skipping: %s", res.Path)
			default:
				stats.Stored++
				logging.LogImageProcessed(res.Path, true, "")
			}
		}
	}()

	walkErr := filepath.Walk(options.FolderPath, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // Skip files that can't be accessed
		}
		if info.IsDir() || !IsImageFile(path) {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		wg.Add(1)
		semaphore <- struct{}{}
		go func(path string) {
			defer wg.Done()
			defer func() { <-semaphore }()
			resultsChan <- in.processFile(ctx, path)
		}(path)

		return nil
	})

	wg.Wait()
	close(resultsChan)
	<-statsDone

	if walkErr != nil && walkErr != ctx.Err() {
		return stats, fmt.Errorf("folder walk failed: %v", walkErr)
	}

	return stats, ctx.Err()
}

// processFile runs the metadata-gated store write for one image.
func (in *Ingestor) processFile(ctx context.Context, path string) fileResult {
	coord, err := in.meta.ExtractCoordinate(path)
	if err != nil {
		return fileResult{Path: path, Err: fmt.Errorf("metadata extraction failed: %v", err)}
	}
	if coord == nil {
		return fileResult{Path: path, Skipped: true}
	}

	id, err := in.store.AddLocation(ctx, *coord, path, "")
	if err != nil {
		return fileResult{Path: path, Err: fmt.Errorf("cannot store location: %v", err)}
	}

	vector, err := in.vectors.BuildFeatureVector(path)
	if err != nil {
		// The location row is already committed; surface the partial write.
		return fileResult{Path: path, LocationID: id, Err: fmt.Errorf("location %d stored but feature vector failed: %v", id, err)}
	}

	if err := in.store.AddFeatures(ctx, id, vector, "visual"); err != nil {
		return fileResult{Path: path, LocationID: id, Err: fmt.Errorf("location %d stored but features failed: %v", id, err)}
	}

	return fileResult{Path: path, LocationID: id}
}

// IsImageFile reports whether the path has a supported image extension.
func IsImageFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg", ".png", ".tif", ".tiff":
		return true
	default:
		return false
	}
}
