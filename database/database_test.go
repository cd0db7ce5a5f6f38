package database

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"geoagent/types"
)

const testDimension = 16

func openTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	store, err := Open(filepath.Join(dir, "test.db"), filepath.Join(dir, "vectors"), testDimension)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestAddAndGetLocation(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	coord := types.GeoCoordinate{Latitude: 48.8584, Longitude: 2.2945}
	id, err := store.AddLocation(ctx, coord, "/photos/tower.jpg", "Eiffel Tower")
	require.NoError(t, err)
	assert.Positive(t, id)

	rec, err := store.GetLocation(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, id, rec.ID)
	assert.InDelta(t, 48.8584, rec.Latitude, 0.000001)
	assert.InDelta(t, 2.2945, rec.Longitude, 0.000001)
	assert.Equal(t, "/photos/tower.jpg", rec.ImagePath)
	assert.Equal(t, "Eiffel Tower", rec.Description)
	assert.NotEmpty(t, rec.CreatedAt)
}

func TestGetLocationMissing(t *testing.T) {
	store := openTestStore(t)

	rec, err := store.GetLocation(context.Background(), 12345)
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestAddLocationRejectsInvalidCoordinate(t *testing.T) {
	store := openTestStore(t)

	_, err := store.AddLocation(context.Background(), types.GeoCoordinate{Latitude: 91, Longitude: 0}, "", "")
	assert.Error(t, err)
}

func TestAddFeaturesAndGetFeatures(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	id, err := store.AddLocation(ctx, types.GeoCoordinate{Latitude: 1, Longitude: 2}, "", "")
	require.NoError(t, err)

	// Natural-length vector, longer than the index dimension.
	vector := make([]float32, 30)
	for i := range vector {
		vector[i] = float32(i) / 10
	}
	require.NoError(t, store.AddFeatures(ctx, id, vector, ""))

	features, err := store.GetFeatures(ctx, id)
	require.NoError(t, err)
	// The relational copy keeps the original length; only the index resizes.
	assert.Equal(t, vector, features["visual"])
}

func TestAddFeaturesRejectsEmptyVector(t *testing.T) {
	store := openTestStore(t)

	assert.Error(t, store.AddFeatures(context.Background(), 1, nil, "visual"))
}

func TestFindSimilarEmptyIndex(t *testing.T) {
	store := openTestStore(t)

	for _, k := range []int{1, 5, 100} {
		matches, err := store.FindSimilar(context.Background(), make([]float32, testDimension), k)
		require.NoError(t, err)
		assert.Empty(t, matches)
	}
}

func TestFindSimilarRejectsNonPositiveK(t *testing.T) {
	store := openTestStore(t)

	_, err := store.FindSimilar(context.Background(), make([]float32, testDimension), 0)
	assert.Error(t, err)
}

func TestFindSimilarOrdersByDistance(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	near := make([]float32, testDimension)
	far := make([]float32, testDimension)
	for i := range far {
		far[i] = 10
	}
	near[0] = 1

	nearID, err := store.AddLocation(ctx, types.GeoCoordinate{Latitude: 10, Longitude: 20}, "near.jpg", "")
	require.NoError(t, err)
	require.NoError(t, store.AddFeatures(ctx, nearID, near, "visual"))

	farID, err := store.AddLocation(ctx, types.GeoCoordinate{Latitude: -30, Longitude: 40}, "far.jpg", "")
	require.NoError(t, err)
	require.NoError(t, store.AddFeatures(ctx, farID, far, "visual"))

	matches, err := store.FindSimilar(ctx, make([]float32, testDimension), 2)
	require.NoError(t, err)
	require.Len(t, matches, 2)

	assert.Equal(t, nearID, matches[0].ID)
	assert.Equal(t, farID, matches[1].ID)
	assert.Less(t, matches[0].Distance, matches[1].Distance)
	assert.Equal(t, "near.jpg", matches[0].ImagePath)
}

func TestIndexPersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "test.db")
	indexPath := filepath.Join(dir, "vectors")
	ctx := context.Background()

	store, err := Open(dbPath, indexPath, testDimension)
	require.NoError(t, err)

	vector := make([]float32, testDimension)
	vector[0] = 1
	id, err := store.AddLocation(ctx, types.GeoCoordinate{Latitude: 5, Longitude: 6}, "p.jpg", "")
	require.NoError(t, err)
	require.NoError(t, store.AddFeatures(ctx, id, vector, "visual"))
	require.NoError(t, store.Close())

	reopened, err := Open(dbPath, indexPath, testDimension)
	require.NoError(t, err)
	defer reopened.Close()

	matches, err := reopened.FindSimilar(ctx, vector, 1)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, id, matches[0].ID)
}

func TestFindByRadius(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	paris := types.GeoCoordinate{Latitude: 48.8566, Longitude: 2.3522}
	versailles := types.GeoCoordinate{Latitude: 48.8049, Longitude: 2.1204}
	london := types.GeoCoordinate{Latitude: 51.5074, Longitude: -0.1278}

	for _, c := range []types.GeoCoordinate{paris, versailles, london} {
		_, err := store.AddLocation(ctx, c, "", "")
		require.NoError(t, err)
	}

	// Versailles is ~18 km from central Paris; London far outside.
	matches, err := store.FindByRadius(ctx, paris, 25)
	require.NoError(t, err)
	require.Len(t, matches, 2)

	matches, err = store.FindByRadius(ctx, paris, 1)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.InDelta(t, paris.Latitude, matches[0].Latitude, 0.000001)

	matches, err = store.FindByRadius(ctx, types.GeoCoordinate{Latitude: 0, Longitude: 0}, 10)
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestFindByRadiusRejectsBadInput(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	_, err := store.FindByRadius(ctx, types.GeoCoordinate{Latitude: 91, Longitude: 0}, 10)
	assert.Error(t, err)

	_, err = store.FindByRadius(ctx, types.GeoCoordinate{}, -1)
	assert.Error(t, err)
}

func TestOpenRejectsDimensionMismatch(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "test.db")
	indexPath := filepath.Join(dir, "vectors")

	store, err := Open(dbPath, indexPath, testDimension)
	require.NoError(t, err)
	id, err := store.AddLocation(context.Background(), types.GeoCoordinate{Latitude: 1, Longitude: 2}, "", "")
	require.NoError(t, err)
	require.NoError(t, store.AddFeatures(context.Background(), id, make([]float32, testDimension), "visual"))
	require.NoError(t, store.Close())

	_, err = Open(dbPath, indexPath, testDimension*2)
	assert.Error(t, err)
}

func TestOpenRejectsInvalidDimension(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "test.db"), filepath.Join(t.TempDir(), "vectors"), 0)
	assert.Error(t, err)
}
