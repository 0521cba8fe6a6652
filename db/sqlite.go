package db

import (
	"database/sql"
	"errors"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

var database *sql.DB

var ErrNotInitialized = errors.New("database not initialized")

// InitDB initializes the SQLite database
func InitDB(path string) error {
	var err error
	database, err = sql.Open("sqlite3", path)
	if err != nil {
		return err
	}

	query := `
    CREATE TABLE IF NOT EXISTS training_log (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        model_name VARCHAR(50),
        samples INTEGER,
        dropped_rows INTEGER,
        iterations INTEGER,
        training_error REAL,
        accuracy REAL,
        precision REAL,
        recall REAL,
        duration_ms INTEGER,
        trained_at DATETIME
    );
    CREATE TABLE IF NOT EXISTS predictions (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        selection TEXT NOT NULL,
        edible REAL,
        poisonous REAL,
        verdict VARCHAR(20),
        created_at DATETIME DEFAULT CURRENT_TIMESTAMP
    );
    `

	if _, err = database.Exec(query); err != nil {
		database.Close()
		database = nil
		return err
	}
	return nil
}

// Enabled reports whether InitDB has opened a database.
func Enabled() bool {
	return database != nil
}

// Close releases the database; Enabled reports false afterwards.
func Close() error {
	if database == nil {
		return nil
	}
	err := database.Close()
	database = nil
	return err
}

// TrainingLog is one row of training_log.
type TrainingLog struct {
	ModelName     string        `json:"model_name"`
	Samples       int           `json:"samples"`
	DroppedRows   int           `json:"dropped_rows"`
	Iterations    int           `json:"iterations"`
	TrainingError float64       `json:"training_error"`
	Accuracy      float64       `json:"accuracy"`
	Precision     float64       `json:"precision"`
	Recall        float64       `json:"recall"`
	Duration      time.Duration `json:"duration"`
	TrainedAt     time.Time     `json:"trained_at"`
}

// SaveTrainingLog appends one training run.
func SaveTrainingLog(log TrainingLog) error {
	if database == nil {
		return ErrNotInitialized
	}
	_, err := database.Exec(`
        INSERT INTO training_log (
            model_name, samples, dropped_rows, iterations, training_error,
            accuracy, precision, recall, duration_ms, trained_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
    `,
		log.ModelName,
		log.Samples,
		log.DroppedRows,
		log.Iterations,
		log.TrainingError,
		log.Accuracy,
		log.Precision,
		log.Recall,
		log.Duration.Milliseconds(),
		log.TrainedAt.UTC(),
	)
	return err
}

// LoadTrainingLog returns up to limit entries, newest first.
func LoadTrainingLog(limit int) ([]TrainingLog, error) {
	if database == nil {
		return nil, ErrNotInitialized
	}
	rows, err := database.Query(`
        SELECT model_name, samples, dropped_rows, iterations, training_error,
               accuracy, precision, recall, duration_ms, trained_at
        FROM training_log
        ORDER BY trained_at DESC, id DESC
        LIMIT ?
    `, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	logs := make([]TrainingLog, 0)
	for rows.Next() {
		var (
			log        TrainingLog
			durationMs int64
		)
		if err := rows.Scan(&log.ModelName, &log.Samples, &log.DroppedRows, &log.Iterations, &log.TrainingError,
			&log.Accuracy, &log.Precision, &log.Recall, &durationMs, &log.TrainedAt); err != nil {
			return nil, err
		}
		log.Duration = time.Duration(durationMs) * time.Millisecond
		logs = append(logs, log)
	}
	return logs, rows.Err()
}

// PredictionRecord is one row of predictions.
type PredictionRecord struct {
	Selection string    `json:"selection"`
	Edible    float64   `json:"edible"`
	Poisonous float64   `json:"poisonous"`
	Verdict   string    `json:"verdict"`
	CreatedAt time.Time `json:"created_at"`
}

// SavePrediction appends one served prediction.
func SavePrediction(record PredictionRecord) error {
	if database == nil {
		return ErrNotInitialized
	}
	if record.Selection == "" {
		return errors.New("selection required")
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now()
	}
	_, err := database.Exec(`
        INSERT INTO predictions (selection, edible, poisonous, verdict, created_at)
        VALUES (?, ?, ?, ?, ?)
    `, record.Selection, record.Edible, record.Poisonous, record.Verdict, record.CreatedAt.UTC())
	return err
}

// QueryPredictions returns up to limit recorded predictions, newest first.
func QueryPredictions(limit int) ([]PredictionRecord, error) {
	if database == nil {
		return nil, ErrNotInitialized
	}
	rows, err := database.Query(`
        SELECT selection, edible, poisonous, verdict, created_at
        FROM predictions
        ORDER BY created_at DESC, id DESC
        LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := make([]PredictionRecord, 0)
	for rows.Next() {
		var r PredictionRecord
		if err := rows.Scan(&r.Selection, &r.Edible, &r.Poisonous, &r.Verdict, &r.CreatedAt); err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, rows.Err()
}
