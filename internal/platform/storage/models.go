package storage

import (
	"time"

	"gorm.io/datatypes"
)

// Run statuses.
const (
	StatusQueued    = "queued"
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
	StatusCancelled = "cancelled"
)

// Segment tracks stored per run.
const (
	TrackPlain   = 0
	TrackSpeaker = 1
)

// TranscriptRun is one transcription job and its final text.
type TranscriptRun struct {
	ID          string         `gorm:"primaryKey;type:varchar(64)" json:"id"`
	Title       string         `json:"title,omitempty"`
	Source      string         `json:"source,omitempty"`
	Status      string         `gorm:"index;not null" json:"status"`
	Backend     string         `json:"backend,omitempty"`
	Model       string         `json:"model,omitempty"`
	Language    string         `json:"language,omitempty"`
	Duration    float64        `json:"duration"`
	Units       int            `json:"units"`
	ErrorCount  int            `json:"error_count"`
	Text        string         `gorm:"type:text" json:"text,omitempty"`
	Stats       datatypes.JSON `json:"stats,omitempty"`
	Error       string         `gorm:"type:text" json:"error,omitempty"`
	CreatedAt   time.Time      `gorm:"index" json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	CompletedAt *time.Time     `json:"completed_at,omitempty"`
}

// TranscriptSegment is one timed line of a run, on the plain or speaker track.
type TranscriptSegment struct {
	ID        uint    `gorm:"primaryKey"`
	RunID     string  `gorm:"index;not null;type:varchar(64)"`
	Track     int     `gorm:"not null"`
	Seq       int     `gorm:"not null"`
	StartSec  float64 `gorm:"not null"`
	EndSec    float64 `gorm:"not null"`
	Text      string  `gorm:"type:text;not null"`
	SpeakerID int
	Speaker   string
}

// RunEvent is a pipeline event persisted for later inspection.
type RunEvent struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	RunID     string         `gorm:"index;not null;type:varchar(64)" json:"run_id"`
	Topic     string         `gorm:"index;not null" json:"topic"`
	Data      datatypes.JSON `gorm:"not null" json:"data"`
	CreatedAt time.Time      `json:"created_at"`
}
