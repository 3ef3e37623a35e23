// Package knowledge implements the persistent, similarity-indexed record
// store that closes the learning loop: game analyses, test run history, and
// human feedback are appended here and consulted by later planning cycles.
//
// Records are append-only. Similarity search is a brute-force cosine scan
// over stored embeddings, which is O(n) per query; acceptable at this scale
// (hundreds of records). Build with -tags sqlite_vec to register the
// sqlite-vec extension for ANN search instead.
package knowledge

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"gametester/internal/embedding"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// RecordKind tags the three record collections.
type RecordKind string

const (
	KindGameAnalysis RecordKind = "game_analysis"
	KindTestHistory  RecordKind = "test_history"
	KindFeedback     RecordKind = "feedback"
)

// Record is one append-only unit of persisted experience.
type Record struct {
	ID        string            `json:"id"`
	Kind      RecordKind        `json:"kind"`
	Payload   string            `json:"payload"`
	Context   map[string]string `json:"context,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
	Embedding []float32         `json:"-"`

	// Similarity is populated on query results only.
	Similarity float64 `json:"similarity,omitempty"`
}

// Store is the single writer to its SQLite database. Appends are serialized;
// reads may run concurrently.
type Store struct {
	db     *sql.DB
	mu     sync.Mutex
	engine embedding.Engine
	logger *zap.Logger

	availMu   sync.RWMutex
	available bool
}

// Open initializes the store at the given path. A missing database file is
// created; a corrupt one is moved aside and replaced by a fresh empty store
// with a logged warning, never a fatal error.
func Open(path string, engine embedding.Engine, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create store directory: %w", err)
		}
	}

	db, err := openDatabase(path)
	if err != nil && path != ":memory:" {
		logger.Warn("knowledge database unreadable, starting with an empty store",
			zap.String("path", path), zap.Error(err))
		corrupt := path + ".corrupt"
		if renameErr := os.Rename(path, corrupt); renameErr != nil {
			return nil, fmt.Errorf("failed to move corrupt database aside: %w", renameErr)
		}
		db, err = openDatabase(path)
	}
	if err != nil {
		return nil, err
	}

	s := &Store{
		db:        db,
		engine:    engine,
		logger:    logger,
		available: engine != nil,
	}

	if engine != nil {
		if hc, ok := engine.(embedding.HealthChecker); ok {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if hcErr := hc.HealthCheck(ctx); hcErr != nil {
				logger.Warn("embedding engine unreachable, similarity search disabled",
					zap.String("engine", engine.Name()), zap.Error(hcErr))
				s.setAvailable(false)
			}
		}
	}

	return s, nil
}

func openDatabase(path string) (*sql.DB, error) {
	db, err := sql.Open(driverName, path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// Single writer connection; WAL keeps readers unblocked during appends.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy_timeout: %w", err)
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	schema := `
	CREATE TABLE IF NOT EXISTS records (
		id         TEXT PRIMARY KEY,
		kind       TEXT NOT NULL,
		payload    TEXT NOT NULL,
		context    TEXT,
		created_at TIMESTAMP NOT NULL,
		embedding  TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_records_kind ON records(kind);
	CREATE INDEX IF NOT EXISTS idx_records_created ON records(created_at);
	`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return db, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Available reports whether similarity search is usable. It flips to false
// when the embedding collaborator cannot be reached.
func (s *Store) Available() bool {
	s.availMu.RLock()
	defer s.availMu.RUnlock()
	return s.available
}

func (s *Store) setAvailable(v bool) {
	s.availMu.Lock()
	s.available = v
	s.availMu.Unlock()
}

// Append persists a record and returns its identifier. Records are never
// overwritten: a new record with the same logical key supersedes older ones
// by timestamp. When the embedding engine is down the record is stored
// without an embedding and the store degrades to Available()==false.
func (s *Store) Append(ctx context.Context, rec Record) (string, error) {
	if rec.Kind == "" {
		return "", fmt.Errorf("record kind must not be empty")
	}
	if rec.Payload == "" {
		return "", fmt.Errorf("record payload must not be empty")
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	var embeddingJSON sql.NullString
	if s.engine != nil && s.Available() {
		vec, err := s.engine.Embed(ctx, rec.Payload)
		if err != nil {
			s.logger.Warn("embedding failed, storing record without vector",
				zap.String("id", rec.ID), zap.Error(err))
			s.setAvailable(false)
		} else {
			data, merr := json.Marshal(vec)
			if merr != nil {
				return "", fmt.Errorf("failed to serialize embedding: %w", merr)
			}
			embeddingJSON = sql.NullString{String: string(data), Valid: true}
		}
	}

	ctxJSON, err := json.Marshal(rec.Context)
	if err != nil {
		return "", fmt.Errorf("failed to serialize context: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	_, err = s.db.ExecContext(ctx,
		"INSERT INTO records (id, kind, payload, context, created_at, embedding) VALUES (?, ?, ?, ?, ?, ?)",
		rec.ID, string(rec.Kind), rec.Payload, string(ctxJSON), rec.CreatedAt, embeddingJSON,
	)
	if err != nil {
		return "", fmt.Errorf("failed to append record: %w", err)
	}
	return rec.ID, nil
}

// Query returns up to topK records ordered by descending cosine similarity to
// the query text, filtered to similarity >= minSimilarity. Ties break by most
// recent timestamp. When the embedding engine is unavailable it returns an
// empty slice, never an error.
func (s *Store) Query(ctx context.Context, text string, kind RecordKind, topK int, minSimilarity float64) ([]Record, error) {
	if topK <= 0 {
		topK = 10
	}
	if s.engine == nil || !s.Available() {
		return nil, nil
	}

	queryVec, err := s.engine.Embed(ctx, text)
	if err != nil {
		s.logger.Warn("query embedding failed, similarity search disabled", zap.Error(err))
		s.setAvailable(false)
		return nil, nil
	}

	q := "SELECT id, kind, payload, context, created_at, embedding FROM records WHERE embedding IS NOT NULL"
	args := []interface{}{}
	if kind != "" {
		q += " AND kind = ?"
		args = append(args, string(kind))
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to scan records: %w", err)
	}
	defer rows.Close()

	var candidates []Record
	for rows.Next() {
		rec, vec, scanErr := scanRecord(rows)
		if scanErr != nil {
			continue
		}
		sim, simErr := embedding.CosineSimilarity(queryVec, vec)
		if simErr != nil || sim < minSimilarity {
			continue
		}
		rec.Similarity = sim
		rec.Embedding = vec
		candidates = append(candidates, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed reading records: %w", err)
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Similarity != candidates[j].Similarity {
			return candidates[i].Similarity > candidates[j].Similarity
		}
		return candidates[i].CreatedAt.After(candidates[j].CreatedAt)
	})

	if len(candidates) > topK {
		candidates = candidates[:topK]
	}
	return candidates, nil
}

// All returns every record of a kind in append order. Used by read-side
// aggregations that must not depend on embeddings.
func (s *Store) All(ctx context.Context, kind RecordKind) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, kind, payload, context, created_at, embedding FROM records WHERE kind = ? ORDER BY created_at ASC",
		string(kind))
	if err != nil {
		return nil, fmt.Errorf("failed to scan records: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		rec, _, scanErr := scanRecord(rows)
		if scanErr != nil {
			continue
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func scanRecord(rows *sql.Rows) (Record, []float32, error) {
	var rec Record
	var kind, ctxJSON string
	var embeddingJSON sql.NullString
	if err := rows.Scan(&rec.ID, &kind, &rec.Payload, &ctxJSON, &rec.CreatedAt, &embeddingJSON); err != nil {
		return Record{}, nil, err
	}
	rec.Kind = RecordKind(kind)
	if ctxJSON != "" {
		_ = json.Unmarshal([]byte(ctxJSON), &rec.Context)
	}
	var vec []float32
	if embeddingJSON.Valid {
		if err := json.Unmarshal([]byte(embeddingJSON.String), &vec); err != nil {
			return Record{}, nil, err
		}
	}
	return rec, vec, nil
}
