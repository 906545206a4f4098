package data

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/khaledhikmat/vs-face/model"
	"github.com/khaledhikmat/vs-face/service/config"
)

const sqliteFile = "vs-face.db"

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS errors (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	timestamp INTEGER NOT NULL,
	processor TEXT NOT NULL,
	inner_error TEXT NOT NULL,
	message TEXT NOT NULL,
	stack_trace TEXT NOT NULL,
	misc TEXT
);

CREATE TABLE IF NOT EXISTS stream_stats (
	id TEXT PRIMARY KEY,
	camera TEXT NOT NULL,
	analyzer TEXT NOT NULL,
	frames INTEGER NOT NULL,
	annotated INTEGER NOT NULL,
	analyze_errors INTEGER NOT NULL,
	encode_errors INTEGER NOT NULL,
	fps INTEGER NOT NULL,
	uptime INTEGER NOT NULL,
	avg_proc_time REAL NOT NULL,
	timestamp INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS analyzer_stats (
	id TEXT PRIMARY KEY,
	analyzer TEXT NOT NULL,
	faces INTEGER NOT NULL,
	ok INTEGER NOT NULL,
	error TEXT,
	proc_time REAL NOT NULL,
	timestamp INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_errors_timestamp ON errors(timestamp);
CREATE INDEX IF NOT EXISTS idx_stream_stats_timestamp ON stream_stats(timestamp);
CREATE INDEX IF NOT EXISTS idx_analyzer_stats_timestamp ON analyzer_stats(timestamp);
`

// sqliteDBService stores telemetry in a single SQLite file under the data folder.
type sqliteDBService struct {
	db     *sql.DB
	dbPath string
}

func NewSQLiteDB(cfgsvc config.IService) (IService, error) {
	dbDir := cfgsvc.GetDataFolder()
	if err := os.MkdirAll(dbDir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	dbPath := filepath.Join(dbDir, sqliteFile)
	db, err := sql.Open("sqlite", dbPath+"?mode=rwc")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	ctx := context.Background()
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return &sqliteDBService{
		db:     db,
		dbPath: dbPath,
	}, nil
}

func (svc *sqliteDBService) NewError(err interface{}) error {
	rec := newErrorRecord(err, time.Now().Unix())

	var misc []byte
	if rec.Misc != nil {
		var mErr error
		if misc, mErr = json.Marshal(rec.Misc); mErr != nil {
			return fmt.Errorf("failed to marshal misc: %w", mErr)
		}
	}

	_, execErr := svc.db.ExecContext(context.Background(), `
		INSERT INTO errors (timestamp, processor, inner_error, message, stack_trace, misc)
		VALUES (?, ?, ?, ?, ?, ?)`,
		rec.Timestamp, rec.Processor, rec.Inner, rec.Message, rec.StackTrace, nullString(misc),
	)
	if execErr != nil {
		return fmt.Errorf("failed to insert error: %w", execErr)
	}
	return nil
}

func (svc *sqliteDBService) NewStreamStats(stats model.StreamStats) error {
	stats.Timestamp = time.Now().Unix()

	_, err := svc.db.ExecContext(context.Background(), `
		INSERT OR REPLACE INTO stream_stats
			(id, camera, analyzer, frames, annotated, analyze_errors, encode_errors, fps, uptime, avg_proc_time, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		stats.ID, stats.Camera, stats.Analyzer, stats.Frames, stats.Annotated, stats.AnalyzeErrors,
		stats.EncodeErrors, stats.FPS, stats.Uptime, stats.AvgProcTime, stats.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to insert stream stats: %w", err)
	}
	return nil
}

func (svc *sqliteDBService) NewAnalyzerStats(stats model.AnalyzerStats) error {
	stats.Timestamp = time.Now().Unix()

	_, err := svc.db.ExecContext(context.Background(), `
		INSERT OR REPLACE INTO analyzer_stats (id, analyzer, faces, ok, error, proc_time, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		stats.ID, stats.Analyzer, stats.Faces, stats.OK, stats.Error, stats.ProcTime, stats.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to insert analyzer stats: %w", err)
	}
	return nil
}

func (svc *sqliteDBService) RetrieveErrors() ([]ErrorRecord, error) {
	rows, err := svc.db.QueryContext(context.Background(), `
		SELECT timestamp, processor, inner_error, message, stack_trace, misc
		FROM errors ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query errors: %w", err)
	}
	defer rows.Close()

	records := []ErrorRecord{}
	for rows.Next() {
		var rec ErrorRecord
		var misc sql.NullString
		if err := rows.Scan(&rec.Timestamp, &rec.Processor, &rec.Inner, &rec.Message, &rec.StackTrace, &misc); err != nil {
			return nil, fmt.Errorf("failed to scan error: %w", err)
		}
		if misc.Valid {
			if err := json.Unmarshal([]byte(misc.String), &rec.Misc); err != nil {
				return nil, fmt.Errorf("failed to unmarshal misc: %w", err)
			}
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func (svc *sqliteDBService) RetrieveStreamStats() ([]model.StreamStats, error) {
	rows, err := svc.db.QueryContext(context.Background(), `
		SELECT id, camera, analyzer, frames, annotated, analyze_errors, encode_errors, fps, uptime, avg_proc_time, timestamp
		FROM stream_stats ORDER BY timestamp, rowid`)
	if err != nil {
		return nil, fmt.Errorf("failed to query stream stats: %w", err)
	}
	defer rows.Close()

	stats := []model.StreamStats{}
	for rows.Next() {
		var s model.StreamStats
		if err := rows.Scan(&s.ID, &s.Camera, &s.Analyzer, &s.Frames, &s.Annotated, &s.AnalyzeErrors,
			&s.EncodeErrors, &s.FPS, &s.Uptime, &s.AvgProcTime, &s.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan stream stats: %w", err)
		}
		stats = append(stats, s)
	}
	return stats, rows.Err()
}

func (svc *sqliteDBService) RetrieveAnalyzerStats() ([]model.AnalyzerStats, error) {
	rows, err := svc.db.QueryContext(context.Background(), `
		SELECT id, analyzer, faces, ok, error, proc_time, timestamp
		FROM analyzer_stats ORDER BY timestamp, rowid`)
	if err != nil {
		return nil, fmt.Errorf("failed to query analyzer stats: %w", err)
	}
	defer rows.Close()

	stats := []model.AnalyzerStats{}
	for rows.Next() {
		var s model.AnalyzerStats
		var errMsg sql.NullString
		if err := rows.Scan(&s.ID, &s.Analyzer, &s.Faces, &s.OK, &errMsg, &s.ProcTime, &s.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan analyzer stats: %w", err)
		}
		s.Error = errMsg.String
		stats = append(stats, s)
	}
	return stats, rows.Err()
}

func (svc *sqliteDBService) Close() error {
	return svc.db.Close()
}

func nullString(b []byte) sql.NullString {
	if b == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: string(b), Valid: true}
}
