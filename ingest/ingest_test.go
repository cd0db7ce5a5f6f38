package ingest

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"geoagent/types"
)

// fakeStore records writes under a lock; the scan pool is concurrent.
type fakeStore struct {
	mu        sync.Mutex
	nextID    int64
	locations map[int64]string
	features  map[int64][]float32
	failAdd   bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		nextID:    1,
		locations: make(map[int64]string),
		features:  make(map[int64][]float32),
	}
}

func (s *fakeStore) AddLocation(_ context.Context, coord types.GeoCoordinate, imagePath, _ string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failAdd {
		return 0, errors.New("store unavailable")
	}
	id := s.nextID
	s.nextID++
	s.locations[id] = imagePath
	return id, nil
}

func (s *fakeStore) AddFeatures(_ context.Context, locationID int64, vector []float32, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.features[locationID] = vector
	return nil
}

// fakeMeta maps file basenames to coordinates; absent means no GPS tags.
type fakeMeta struct {
	coords map[string]types.GeoCoordinate
}

func (f *fakeMeta) ExtractCoordinate(path string) (*types.GeoCoordinate, error) {
	c, ok := f.coords[filepath.Base(path)]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

// fakeVectors returns a fixed vector, or fails for named files.
type fakeVectors struct {
	failFor map[string]bool
}

func (f *fakeVectors) BuildFeatureVector(path string) ([]float32, error) {
	if f.failFor[filepath.Base(path)] {
		return nil, errors.New("cannot decode image")
	}
	return []float32{1, 2, 3}, nil
}

func writeFiles(t *testing.T, dir string, names ...string) {
	t.Helper()
	for _, name := range names {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("fake image data"), 0644))
	}
}

func TestScan(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, "tagged.jpg", "untagged.jpg", "notes.txt", "broken.png")

	store := newFakeStore()
	meta := &fakeMeta{coords: map[string]types.GeoCoordinate{
		"tagged.jpg": {Latitude: 48.8584, Longitude: 2.2945},
		"broken.png": {Latitude: 1, Longitude: 2},
	}}
	vectors := &fakeVectors{failFor: map[string]bool{"broken.png": true}}

	stats, err := New(store, meta, vectors).Scan(context.Background(), Options{
		FolderPath: dir,
		MaxWorkers: 2,
	})
	require.NoError(t, err)

	// notes.txt is not counted; broken.png stores the location but fails on
	// the feature vector.
	assert.Equal(t, 3, stats.TotalFiles)
	assert.Equal(t, 1, stats.Stored)
	assert.Equal(t, 1, stats.Skipped)
	assert.Equal(t, 1, stats.Errors)

	assert.Len(t, store.locations, 2)
	assert.Len(t, store.features, 1)
}

func TestScanWalksSubdirectories(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "nested")
	require.NoError(t, os.MkdirAll(sub, 0755))
	writeFiles(t, sub, "deep.jpg")

	store := newFakeStore()
	meta := &fakeMeta{coords: map[string]types.GeoCoordinate{
		"deep.jpg": {Latitude: 10, Longitude: 20},
	}}

	stats, err := New(store, meta, &fakeVectors{}).Scan(context.Background(), Options{FolderPath: dir})
	require.NoError(t, err)

	assert.Equal(t, 1, stats.Stored)
}

func TestScanStoreFailureCountsAsError(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, "tagged.jpg")

	store := newFakeStore()
	store.failAdd = true
	meta := &fakeMeta{coords: map[string]types.GeoCoordinate{
		"tagged.jpg": {Latitude: 1, Longitude: 2},
	}}

	stats, err := New(store, meta, &fakeVectors{}).Scan(context.Background(), Options{FolderPath: dir})
	require.NoError(t, err)

	assert.Equal(t, 1, stats.Errors)
	assert.Zero(t, stats.Stored)
}

func TestScanRejectsBadFolder(t *testing.T) {
	ingestor := New(newFakeStore(), &fakeMeta{}, &fakeVectors{})

	_, err := ingestor.Scan(context.Background(), Options{FolderPath: "/no/such/folder"})
	assert.Error(t, err)

	file := filepath.Join(t.TempDir(), "plain.txt")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0644))
	_, err = ingestor.Scan(context.Background(), Options{FolderPath: file})
	assert.Error(t, err)
}

func TestIsImageFile(t *testing.T) {
	tests := []struct {
		path     string
		expected bool
	}{
		{"photo.jpg", true},
		{"photo.JPEG", true},
		{"photo.png", true},
		{"scan.tif", true},
		{"scan.tiff", true},
		{"document.pdf", false},
		{"archive.zip", false},
		{"noextension", false},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.expected, IsImageFile(tt.path))
		})
	}
}
