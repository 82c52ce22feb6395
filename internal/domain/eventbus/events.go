package eventbus

import "time"

// Topics published by the transcription pipeline.
const (
	TopicUnitDone   = "transcription:unit_done"
	TopicUnitFailed = "transcription:unit_failed"
	TopicProgress   = "transcription:progress"
	TopicCompleted  = "transcription:completed"
	TopicFailed     = "transcription:failed"
)

// UnitEvent describes the outcome of one recognition unit.
type UnitEvent struct {
	RunID    string  `json:"run_id"`
	Index    int     `json:"index"`
	Total    int     `json:"total"`
	Start    float64 `json:"start"`
	End      float64 `json:"end"`
	Segments int     `json:"segments"`
	Attempts int     `json:"attempts"`
	Error    string  `json:"error,omitempty"`
}

// ProgressEvent reports processed/total units.
type ProgressEvent struct {
	RunID     string `json:"run_id"`
	Processed int    `json:"processed"`
	Total     int    `json:"total"`
}

// RunEvent closes a run.
type RunEvent struct {
	RunID      string        `json:"run_id"`
	Segments   int           `json:"segments"`
	ErrorCount int           `json:"error_count"`
	Elapsed    time.Duration `json:"elapsed"`
	Error      string        `json:"error,omitempty"`
}
