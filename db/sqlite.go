package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"scorecast/ml"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("not found")

const schema = `
    CREATE TABLE IF NOT EXISTS predictions (
        id TEXT PRIMARY KEY,
        inputs TEXT NOT NULL,
        prediction REAL NOT NULL,
        request_id TEXT,
        created_at DATETIME NOT NULL
    );
    CREATE INDEX IF NOT EXISTS idx_predictions_created_at ON predictions(created_at);
    CREATE TABLE IF NOT EXISTS training_log (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        model_name VARCHAR(50) NOT NULL,
        kind VARCHAR(50) NOT NULL,
        params TEXT,
        cv_score REAL,
        train_r2 REAL,
        test_r2 REAL,
        selected INTEGER DEFAULT 0,
        data_points INTEGER,
        trained_at DATETIME NOT NULL
    );
    `

// Store is the sqlite log of served predictions and training runs.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path and applies the
// schema.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	database, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	database.SetMaxOpenConns(1)
	if _, err := database.Exec(schema); err != nil {
		database.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{db: database}, nil
}

// Close closes the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Prediction is one served prediction with the inputs it was computed from.
type Prediction struct {
	ID         string    `json:"id"`
	Inputs     ml.Record `json:"inputs"`
	Prediction float64   `json:"prediction"`
	RequestID  string    `json:"request_id,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// SavePrediction inserts p. Inputs are stored as JSON.
func (s *Store) SavePrediction(ctx context.Context, p Prediction) error {
	if p.ID == "" {
		return errors.New("prediction id required")
	}
	inputs, err := json.Marshal(p.Inputs)
	if err != nil {
		return err
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
	}
	_, err = s.db.ExecContext(ctx, `
        INSERT INTO predictions (id, inputs, prediction, request_id, created_at)
        VALUES (?, ?, ?, ?, ?)`,
		p.ID, string(inputs), p.Prediction, p.RequestID, p.CreatedAt.UTC())
	return err
}

// GetPrediction returns ErrNotFound when id is unknown.
func (s *Store) GetPrediction(ctx context.Context, id string) (*Prediction, error) {
	row := s.db.QueryRowContext(ctx, `
        SELECT id, inputs, prediction, request_id, created_at
        FROM predictions
        WHERE id = ?`, id)
	p, err := scanPrediction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return p, err
}

// RecentPredictions returns up to limit predictions, newest first.
func (s *Store) RecentPredictions(ctx context.Context, limit int) ([]Prediction, error) {
	rows, err := s.db.QueryContext(ctx, `
        SELECT id, inputs, prediction, request_id, created_at
        FROM predictions
        ORDER BY created_at DESC, rowid DESC
        LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	predictions := make([]Prediction, 0)
	for rows.Next() {
		p, err := scanPrediction(rows)
		if err != nil {
			return nil, err
		}
		predictions = append(predictions, *p)
	}
	return predictions, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPrediction(row scanner) (*Prediction, error) {
	var p Prediction
	var inputs string
	var requestID sql.NullString
	if err := row.Scan(&p.ID, &inputs, &p.Prediction, &requestID, &p.CreatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(inputs), &p.Inputs); err != nil {
		return nil, fmt.Errorf("decode inputs of %s: %w", p.ID, err)
	}
	p.RequestID = requestID.String
	return &p, nil
}

// TrainingLog is one evaluated model of a training run. Selected marks the
// model that was saved as the serving artifact.
type TrainingLog struct {
	ID         int64     `json:"id"`
	ModelName  string    `json:"model_name"`
	Kind       string    `json:"kind"`
	Params     ml.Params `json:"params"`
	CVScore    float64   `json:"cv_score"`
	TrainR2    float64   `json:"train_r2"`
	TestR2     float64   `json:"test_r2"`
	Selected   bool      `json:"selected"`
	DataPoints int       `json:"data_points"`
	TrainedAt  time.Time `json:"trained_at"`
}

// SaveTrainingLog inserts every entry of a run in one transaction.
func (s *Store) SaveTrainingLog(ctx context.Context, logs []TrainingLog) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx, `
        INSERT INTO training_log (
            model_name, kind, params, cv_score, train_r2, test_r2, selected, data_points, trained_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()

	for _, l := range logs {
		params, err := json.Marshal(l.Params)
		if err != nil {
			tx.Rollback()
			return err
		}
		if l.TrainedAt.IsZero() {
			l.TrainedAt = time.Now()
		}
		if _, err := stmt.ExecContext(ctx, l.ModelName, l.Kind, string(params), l.CVScore, l.TrainR2, l.TestR2,
			l.Selected, l.DataPoints, l.TrainedAt.UTC()); err != nil {
			tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

// LoadTrainingLog returns every logged model, newest run first.
func (s *Store) LoadTrainingLog(ctx context.Context) ([]TrainingLog, error) {
	rows, err := s.db.QueryContext(ctx, `
        SELECT id, model_name, kind, params, cv_score, train_r2, test_r2, selected, data_points, trained_at
        FROM training_log
        ORDER BY trained_at DESC, id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	logs := make([]TrainingLog, 0)
	for rows.Next() {
		var l TrainingLog
		var params sql.NullString
		if err := rows.Scan(&l.ID, &l.ModelName, &l.Kind, &params, &l.CVScore, &l.TrainR2, &l.TestR2,
			&l.Selected, &l.DataPoints, &l.TrainedAt); err != nil {
			return nil, err
		}
		if params.Valid && params.String != "" {
			if err := json.Unmarshal([]byte(params.String), &l.Params); err != nil {
				return nil, err
			}
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}
