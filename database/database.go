package database

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/hupe1980/vecgo"
	_ "github.com/mattn/go-sqlite3"

	"geoagent/geo"
	"geoagent/logging"
	"geoagent/types"
)

// Store persists location observations in SQLite and their feature vectors
// in a local vecgo index. Each indexed vector carries its location identifier
// as payload, so similarity hits resolve to real records.
//
// Writes are serialized by an exclusive lock; reads may run concurrently
// with each other but not with a write. The relational insert and the index
// commit in AddFeatures are not transactionally linked: a failure after the
// relational commit leaves the pair inconsistent. The error is surfaced to
// the caller; no rollback is attempted.
type Store struct {
	db        *sql.DB
	index     *vecgo.DB
	dimension int
	mu        sync.RWMutex
}

// Open initializes the relational schema and opens or creates the vector
// index at indexPath. The index dimensionality is a configuration parameter
// carried by the store; reopening an existing index with a different
// dimension is an error.
func Open(dbPath, indexPath string, dimension int) (*Store, error) {
	if dimension <= 0 {
		return nil, fmt.Errorf("invalid vector dimension %d", dimension)
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("cannot open database %s: %v", dbPath, err)
	}

	createTableSQL := `
	CREATE TABLE IF NOT EXISTS locations (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		latitude REAL NOT NULL,
		longitude REAL NOT NULL,
		image_path TEXT,
		description TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);
	CREATE TABLE IF NOT EXISTS image_features (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		location_id INTEGER,
		feature_vector BLOB,
		feature_type TEXT,
		FOREIGN KEY (location_id) REFERENCES locations (id)
	);
	CREATE INDEX IF NOT EXISTS idx_features_location ON image_features(location_id);`

	if _, err := db.Exec(createTableSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("cannot create schema: %v", err)
	}

	index, err := vecgo.Open(context.Background(), vecgo.Local(indexPath),
		vecgo.Create(dimension, vecgo.MetricL2))
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("cannot open vector index %s: %v", indexPath, err)
	}

	return &Store{
		db:        db,
		index:     index,
		dimension: dimension,
	}, nil
}

// Dimension returns the index's configured vector dimensionality.
func (s *Store) Dimension() int {
	return s.dimension
}

// AddLocation inserts a new geotagged observation and returns its assigned
// identifier. The insert is synchronously committed before returning.
func (s *Store) AddLocation(ctx context.Context, coord types.GeoCoordinate, imagePath, description string) (int64, error) {
	if !coord.Valid() {
		return 0, fmt.Errorf("invalid coordinate (%f, %f)", coord.Latitude, coord.Longitude)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO locations (latitude, longitude, image_path, description, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		coord.Latitude, coord.Longitude, imagePath, description,
		time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return 0, fmt.Errorf("cannot insert location: %v", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("cannot read inserted location id: %v", err)
	}

	return id, nil
}

// AddFeatures stores the serialized vector keyed to the location, inserts a
// copy resized to the index dimension into the similarity index with the
// location identifier as payload, and commits the index so the write is
// durable. Best-effort dual write; see the Store doc.
func (s *Store) AddFeatures(ctx context.Context, locationID int64, vector []float32, featureType string) error {
	if len(vector) == 0 {
		return fmt.Errorf("empty feature vector for location %d", locationID)
	}
	if featureType == "" {
		featureType = "visual"
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO image_features (location_id, feature_vector, feature_type)
		VALUES (?, ?, ?)`,
		locationID, encodeVector(vector), featureType); err != nil {
		return fmt.Errorf("cannot insert features for location %d: %v", locationID, err)
	}

	rec := vecgo.NewRecord(PadOrTruncate(vector, s.dimension)).
		WithPayload(encodeLocationID(locationID)).
		Build()
	if _, err := s.index.InsertRecord(ctx, rec); err != nil {
		return fmt.Errorf("cannot index features for location %d: %v", locationID, err)
	}

	if err := s.index.Commit(ctx); err != nil {
		return fmt.Errorf("cannot persist vector index: %v", err)
	}

	return nil
}

// GetLocation retrieves a location by its identifier, or nil when absent.
func (s *Store) GetLocation(ctx context.Context, id int64) (*types.LocationRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.getLocationLocked(ctx, id)
}

func (s *Store) getLocationLocked(ctx context.Context, id int64) (*types.LocationRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, latitude, longitude, image_path, description, created_at
		FROM locations
		WHERE id = ?`, id)

	rec, err := scanLocation(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cannot read location %d: %v", id, err)
	}
	return rec, nil
}

// GetFeatures returns the stored feature vectors for a location, keyed by
// feature type, decoded from their blobs at their original length.
func (s *Store) GetFeatures(ctx context.Context, locationID int64) (map[string][]float32, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT feature_type, feature_vector
		FROM image_features
		WHERE location_id = ?
		ORDER BY id`, locationID)
	if err != nil {
		return nil, fmt.Errorf("cannot read features for location %d: %v", locationID, err)
	}
	defer rows.Close()

	out := make(map[string][]float32)
	for rows.Next() {
		var featureType string
		var blob []byte
		if err := rows.Scan(&featureType, &blob); err != nil {
			return nil, fmt.Errorf("cannot scan feature row: %v", err)
		}
		vector, err := decodeVector(blob)
		if err != nil {
			return nil, fmt.Errorf("corrupt feature blob for location %d: %v", locationID, err)
		}
		out[featureType] = vector
	}

	return out, rows.Err()
}

// SimilarLocation pairs a stored record with its feature-space distance to
// the query vector.
type SimilarLocation struct {
	types.LocationRecord
	Distance float32 `json:"distance"`
}

// FindSimilar returns up to k stored observations nearest to the query
// vector by L2 distance. The query is resized to the index dimension first.
// An empty index yields an empty result for any k.
func (s *Store) FindSimilar(ctx context.Context, query []float32, k int) ([]SimilarLocation, error) {
	if k <= 0 {
		return nil, fmt.Errorf("k must be positive, got %d", k)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	candidates, err := s.index.Search(ctx, PadOrTruncate(query, s.dimension), k)
	if err != nil {
		return nil, fmt.Errorf("vector search failed: %v", err)
	}

	similar := make([]SimilarLocation, 0, len(candidates))
	for _, c := range candidates {
		locationID, ok := decodeLocationID(c.Payload)
		if !ok {
			logging.DebugLog("vector index entry %d carries no location payload", c.ID)
			continue
		}
		rec, err := s.getLocationLocked(ctx, locationID)
		if err != nil {
			return nil, err
		}
		if rec == nil {
			// Index entry without a backing row; skip rather than surface
			// placeholder data.
			logging.DebugLog("vector index entry %d references missing location %d", c.ID, locationID)
			continue
		}
		similar = append(similar, SimilarLocation{LocationRecord: *rec, Distance: c.Score})
	}

	return similar, nil
}

// FindByRadius returns every stored observation within radiusKm of the
// center coordinate, computed as a full great-circle set filter. Correctness
// over speed at this scale; no bounding-box prefilter.
func (s *Store) FindByRadius(ctx context.Context, center types.GeoCoordinate, radiusKm float64) ([]types.LocationRecord, error) {
	if !center.Valid() {
		return nil, fmt.Errorf("invalid coordinate (%f, %f)", center.Latitude, center.Longitude)
	}
	if radiusKm < 0 {
		return nil, fmt.Errorf("radius must be non-negative, got %f", radiusKm)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, latitude, longitude, image_path, description, created_at
		FROM locations
		ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("cannot query locations: %v", err)
	}
	defer rows.Close()

	matches := []types.LocationRecord{}
	for rows.Next() {
		rec, err := scanLocation(rows)
		if err != nil {
			return nil, fmt.Errorf("cannot scan location row: %v", err)
		}
		if geo.DistanceKm(center, rec.Coordinate()) <= radiusKm {
			matches = append(matches, *rec)
		}
	}

	return matches, rows.Err()
}

// Close releases the database connection and the vector index.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	indexErr := s.index.Close()
	if err := s.db.Close(); err != nil {
		return err
	}
	return indexErr
}

// rowScanner covers both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanLocation(row rowScanner) (*types.LocationRecord, error) {
	var rec types.LocationRecord
	var imagePath, description, createdAt sql.NullString

	if err := row.Scan(&rec.ID, &rec.Latitude, &rec.Longitude, &imagePath, &description, &createdAt); err != nil {
		return nil, err
	}

	rec.ImagePath = imagePath.String
	rec.Description = description.String
	rec.CreatedAt = createdAt.String

	return &rec, nil
}
