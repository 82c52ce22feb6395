package migrations

import "gorm.io/gorm"

// Migration001Transcripts creates the run and segment tables.
type Migration001Transcripts struct{}

func (m *Migration001Transcripts) Version() string { return "001_transcripts" }

func (m *Migration001Transcripts) Description() string {
	return "Create transcript_runs and transcript_segments"
}

func (m *Migration001Transcripts) Up(db *gorm.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS transcript_runs (
			id VARCHAR(64) PRIMARY KEY,
			title VARCHAR(255),
			source VARCHAR(1024),
			status VARCHAR(32) NOT NULL,
			backend VARCHAR(64),
			model VARCHAR(128),
			language VARCHAR(16),
			duration REAL NOT NULL DEFAULT 0,
			units INTEGER NOT NULL DEFAULT 0,
			error_count INTEGER NOT NULL DEFAULT 0,
			text TEXT,
			stats JSON,
			error TEXT,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL,
			completed_at DATETIME
		)`,
		`CREATE INDEX IF NOT EXISTS idx_transcript_runs_status ON transcript_runs(status)`,
		`CREATE INDEX IF NOT EXISTS idx_transcript_runs_created_at ON transcript_runs(created_at)`,
		`CREATE TABLE IF NOT EXISTS transcript_segments (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id VARCHAR(64) NOT NULL,
			track INTEGER NOT NULL DEFAULT 0,
			seq INTEGER NOT NULL,
			start_sec REAL NOT NULL,
			end_sec REAL NOT NULL,
			text TEXT NOT NULL,
			speaker_id INTEGER NOT NULL DEFAULT 0,
			speaker VARCHAR(64)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_transcript_segments_run ON transcript_segments(run_id, track, seq)`,
	}
	for _, s := range stmts {
		if err := db.Exec(s).Error; err != nil {
			return err
		}
	}
	return nil
}

func (m *Migration001Transcripts) Down(db *gorm.DB) error {
	if err := db.Exec(`DROP TABLE IF EXISTS transcript_segments`).Error; err != nil {
		return err
	}
	return db.Exec(`DROP TABLE IF EXISTS transcript_runs`).Error
}
