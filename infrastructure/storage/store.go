// Package storage persists completed classification runs in SQLite.
//
// The store is the system of record for run history. SaveRun writes the run
// row, its provider summaries, and its fitted feature scales in a single
// transaction, so a run is either fully queryable or absent. Provider
// summaries travel as JSON documents; the columns queried by listings and
// reports (label, exam count, variance ratio) are lifted into their own
// columns so they stay reachable from plain SQL.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/ahrav/go-radqc/internal/domain"
	"github.com/ahrav/go-radqc/internal/ports"
)

// SQLiteStore implements ports.ResultStore on a local SQLite database.
// It is safe for concurrent use; SQLite serializes writers and the WAL
// journal keeps readers unblocked.
type SQLiteStore struct {
	db   *sql.DB
	path string

	mu     sync.RWMutex
	closed bool
}

var _ ports.ResultStore = (*SQLiteStore)(nil)

// Open opens the SQLite database at path, creating the file, its parent
// directory, and the schema when missing. Databases written by an older
// build are upgraded in place; databases from a newer build are refused.
func Open(path string) (*SQLiteStore, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: database path is empty", domain.ErrInvalidConfiguration)
	}
	path = filepath.Clean(path)
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply %s: %w", pragma, execErr)
		}
	}

	store := &SQLiteStore{db: db, path: path}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Path returns the filesystem location of the database.
func (s *SQLiteStore) Path() string { return s.path }

// conn returns the database handle, or ErrStoreClosed after Close.
func (s *SQLiteStore) conn() (*sql.DB, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ports.ErrStoreClosed
	}
	return s.db, nil
}

// SaveRun persists a completed run atomically. The run identifier must be
// unique; saving the same identifier twice fails rather than overwriting
// history.
func (s *SQLiteStore) SaveRun(ctx context.Context, run *domain.Run) error {
	if run == nil {
		return ports.NewStoreError("save_run", "", errors.New("run is nil"))
	}
	if run.ID == "" {
		return ports.NewStoreError("save_run", "", errors.New("run has no identifier"))
	}

	db, err := s.conn()
	if err != nil {
		return ports.NewStoreError("save_run", run.ID, err)
	}

	featureNames, err := json.Marshal(run.FeatureNames)
	if err != nil {
		return ports.NewStoreError("save_run", run.ID, fmt.Errorf("encode feature names: %w", err))
	}
	diagnostics, varianceRatio, wcss, err := encodeDiagnostics(run.Diagnostics)
	if err != nil {
		return ports.NewStoreError("save_run", run.ID, err)
	}
	warnings, err := encodeWarnings(run.Warnings)
	if err != nil {
		return ports.NewStoreError("save_run", run.ID, err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return ports.NewStoreError("save_run", run.ID, fmt.Errorf("begin transaction: %w", err))
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (id, pipeline_id, created_at, seed, feature_names,
		                  variance_ratio, wcss, diagnostics, warnings, warning_count)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID,
		run.PipelineID,
		run.CreatedAt.UTC().Format(time.RFC3339Nano),
		run.Seed,
		string(featureNames),
		varianceRatio,
		wcss,
		diagnostics,
		warnings,
		len(run.Warnings),
	)
	if err != nil {
		return ports.NewStoreError("save_run", run.ID, fmt.Errorf("insert run: %w", err))
	}

	for i, summary := range run.Summaries {
		encoded, marshalErr := json.Marshal(summary)
		if marshalErr != nil {
			return ports.NewStoreError("save_run", run.ID,
				fmt.Errorf("encode summary for provider %s: %w", summary.ProviderID, marshalErr))
		}
		var clusterIdx, label any
		if summary.Cluster != nil {
			clusterIdx = summary.Cluster.ClusterIndex
			label = string(summary.Cluster.Label)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO run_providers (run_id, position, provider_id, exam_count, cluster_idx, label, summary)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			run.ID, i, summary.ProviderID, summary.ExamCount, clusterIdx, label, string(encoded),
		); err != nil {
			return ports.NewStoreError("save_run", run.ID,
				fmt.Errorf("insert provider %s: %w", summary.ProviderID, err))
		}
	}

	for i, scale := range run.Parameters.Scales {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO run_features (run_id, position, feature, mean, std_dev)
			VALUES (?, ?, ?, ?, ?)`,
			run.ID, i, scale.Feature, scale.Mean, scale.StdDev,
		); err != nil {
			return ports.NewStoreError("save_run", run.ID,
				fmt.Errorf("insert feature %s: %w", scale.Feature, err))
		}
	}

	if err := tx.Commit(); err != nil {
		return ports.NewStoreError("save_run", run.ID, fmt.Errorf("commit: %w", err))
	}
	return nil
}

// GetRun retrieves a run by its identifier, reassembling summaries, scales,
// diagnostics, and warnings. It returns ports.ErrRunNotFound when no run
// with the identifier exists.
func (s *SQLiteStore) GetRun(ctx context.Context, id string) (*domain.Run, error) {
	db, err := s.conn()
	if err != nil {
		return nil, ports.NewStoreError("get_run", id, err)
	}

	row := db.QueryRowContext(ctx, `
		SELECT id, pipeline_id, created_at, seed, feature_names, diagnostics, warnings
		FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ports.NewStoreError("get_run", id, ports.ErrRunNotFound)
	}
	if err != nil {
		return nil, ports.NewStoreError("get_run", id, err)
	}

	if run.Summaries, err = loadSummaries(ctx, db, id); err != nil {
		return nil, ports.NewStoreError("get_run", id, err)
	}
	if run.Parameters.Scales, err = loadScales(ctx, db, id); err != nil {
		return nil, ports.NewStoreError("get_run", id, err)
	}
	return run, nil
}

// LatestRun retrieves the most recently created run. Creation-time ties
// break toward the larger identifier so the choice stays deterministic.
func (s *SQLiteStore) LatestRun(ctx context.Context) (*domain.Run, error) {
	db, err := s.conn()
	if err != nil {
		return nil, ports.NewStoreError("latest_run", "", err)
	}

	var id string
	err = db.QueryRowContext(ctx,
		`SELECT id FROM runs ORDER BY created_at DESC, id DESC LIMIT 1`,
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ports.NewStoreError("latest_run", "", ports.ErrRunNotFound)
	}
	if err != nil {
		return nil, ports.NewStoreError("latest_run", "", err)
	}
	return s.GetRun(ctx, id)
}

// ListRuns returns metadata for stored runs, newest first. A non-positive
// limit returns every run.
func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]ports.RunInfo, error) {
	db, err := s.conn()
	if err != nil {
		return nil, ports.NewStoreError("list_runs", "", err)
	}

	query := `
		SELECT id, pipeline_id, created_at, seed, warning_count,
		       (SELECT COUNT(*) FROM run_providers p WHERE p.run_id = runs.id)
		FROM runs
		ORDER BY created_at DESC, id DESC`
	var args []any
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, ports.NewStoreError("list_runs", "", err)
	}
	defer rows.Close()

	var infos []ports.RunInfo
	for rows.Next() {
		var (
			info      ports.RunInfo
			createdAt string
		)
		if err := rows.Scan(&info.ID, &info.PipelineID, &createdAt, &info.Seed,
			&info.Warnings, &info.Providers); err != nil {
			return nil, ports.NewStoreError("list_runs", "", fmt.Errorf("scan run row: %w", err))
		}
		ts, parseErr := time.Parse(time.RFC3339Nano, createdAt)
		if parseErr != nil {
			return nil, ports.NewStoreError("list_runs", "", fmt.Errorf("parse created_at: %w", parseErr))
		}
		info.CreatedAt = ts
		infos = append(infos, info)
	}
	if err := rows.Err(); err != nil {
		return nil, ports.NewStoreError("list_runs", "", err)
	}
	return infos, nil
}

// Close closes the database. Further calls on the store return
// ports.ErrStoreClosed; closing twice is a no-op.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}

// encodeDiagnostics flattens diagnostics for the run row. The variance ratio
// and WCSS are lifted into their own columns so listings can filter on
// clustering quality without decoding JSON.
func encodeDiagnostics(d *domain.ClusteringDiagnostics) (blob, varianceRatio, wcss any, err error) {
	if d == nil {
		return nil, nil, nil, nil
	}
	encoded, err := json.Marshal(d)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("encode diagnostics: %w", err)
	}
	return string(encoded), d.VarianceRatio, d.WCSS, nil
}

func encodeWarnings(warnings []domain.IntegrityViolation) (any, error) {
	if len(warnings) == 0 {
		return nil, nil
	}
	encoded, err := json.Marshal(warnings)
	if err != nil {
		return nil, fmt.Errorf("encode warnings: %w", err)
	}
	return string(encoded), nil
}

func scanRun(row *sql.Row) (*domain.Run, error) {
	var (
		run          domain.Run
		createdAt    string
		featureNames string
		diagnostics  sql.NullString
		warnings     sql.NullString
	)
	if err := row.Scan(&run.ID, &run.PipelineID, &createdAt, &run.Seed,
		&featureNames, &diagnostics, &warnings); err != nil {
		return nil, err
	}

	ts, err := time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	run.CreatedAt = ts

	if err := json.Unmarshal([]byte(featureNames), &run.FeatureNames); err != nil {
		return nil, fmt.Errorf("decode feature names: %w", err)
	}
	if diagnostics.Valid {
		run.Diagnostics = &domain.ClusteringDiagnostics{}
		if err := json.Unmarshal([]byte(diagnostics.String), run.Diagnostics); err != nil {
			return nil, fmt.Errorf("decode diagnostics: %w", err)
		}
	}
	if warnings.Valid {
		if err := json.Unmarshal([]byte(warnings.String), &run.Warnings); err != nil {
			return nil, fmt.Errorf("decode warnings: %w", err)
		}
	}
	return &run, nil
}

func loadSummaries(ctx context.Context, db *sql.DB, runID string) ([]domain.ProviderSummary, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT summary FROM run_providers WHERE run_id = ? ORDER BY position`, runID)
	if err != nil {
		return nil, fmt.Errorf("query providers: %w", err)
	}
	defer rows.Close()

	var summaries []domain.ProviderSummary
	for rows.Next() {
		var encoded string
		if err := rows.Scan(&encoded); err != nil {
			return nil, fmt.Errorf("scan provider row: %w", err)
		}
		var summary domain.ProviderSummary
		if err := json.Unmarshal([]byte(encoded), &summary); err != nil {
			return nil, fmt.Errorf("decode provider summary: %w", err)
		}
		summaries = append(summaries, summary)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate providers: %w", err)
	}
	return summaries, nil
}

func loadScales(ctx context.Context, db *sql.DB, runID string) ([]domain.FeatureScale, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT feature, mean, std_dev FROM run_features WHERE run_id = ? ORDER BY position`, runID)
	if err != nil {
		return nil, fmt.Errorf("query features: %w", err)
	}
	defer rows.Close()

	var scales []domain.FeatureScale
	for rows.Next() {
		var scale domain.FeatureScale
		if err := rows.Scan(&scale.Feature, &scale.Mean, &scale.StdDev); err != nil {
			return nil, fmt.Errorf("scan feature row: %w", err)
		}
		scales = append(scales, scale)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate features: %w", err)
	}
	return scales, nil
}
