package migrations

import "gorm.io/gorm"

// Migration002RunEvents adds the per-run event log.
type Migration002RunEvents struct{}

func (m *Migration002RunEvents) Version() string { return "002_run_events" }

func (m *Migration002RunEvents) Description() string { return "Create run_events" }

func (m *Migration002RunEvents) Up(db *gorm.DB) error {
	if err := db.Exec(`
		CREATE TABLE IF NOT EXISTS run_events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id VARCHAR(64) NOT NULL,
			topic VARCHAR(128) NOT NULL,
			data JSON NOT NULL,
			created_at DATETIME NOT NULL
		)
	`).Error; err != nil {
		return err
	}
	if err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_run_events_run_id ON run_events(run_id)`).Error; err != nil {
		return err
	}
	return db.Exec(`CREATE INDEX IF NOT EXISTS idx_run_events_topic ON run_events(topic)`).Error
}

func (m *Migration002RunEvents) Down(db *gorm.DB) error {
	return db.Exec(`DROP TABLE IF EXISTS run_events`).Error
}
