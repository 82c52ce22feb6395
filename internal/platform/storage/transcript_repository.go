package storage

import (
	"context"
	"time"

	"github.com/bytedance/sonic"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"vietscribe-go/internal/domain/transcript"
	"vietscribe-go/internal/platform/errors"
)

// TranscriptRepository persists runs, their segments and their events.
type TranscriptRepository struct {
	db *gorm.DB
}

func NewTranscriptRepository(db *gorm.DB) *TranscriptRepository {
	return &TranscriptRepository{db: db}
}

// CreateRun inserts a new run record.
func (r *TranscriptRepository) CreateRun(ctx context.Context, run *TranscriptRun) error {
	if run.Status == "" {
		run.Status = StatusQueued
	}
	if err := r.db.WithContext(ctx).Create(run).Error; err != nil {
		return errors.Wrap(errors.KindStorage, "transcript.create_run", "failed to create run", err)
	}
	return nil
}

// UpdateStatus sets the status and, for terminal states, the error text and
// completion time.
func (r *TranscriptRepository) UpdateStatus(ctx context.Context, id, status, errMsg string) error {
	updates := map[string]interface{}{"status": status, "error": errMsg}
	if status == StatusCompleted || status == StatusFailed || status == StatusCancelled {
		updates["completed_at"] = time.Now()
	}
	res := r.db.WithContext(ctx).Model(&TranscriptRun{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return errors.Wrap(errors.KindStorage, "transcript.update_status", "failed to update run status", res.Error)
	}
	if res.RowsAffected == 0 {
		return errors.Wrap(errors.KindStorage, "transcript.update_status", "run not found: "+id, ErrNotFound)
	}
	return nil
}

// SaveDocument stores the final transcript of a run, replacing any earlier
// segments, and marks it completed.
func (r *TranscriptRepository) SaveDocument(ctx context.Context, doc transcript.Document, units int) error {
	stats, err := sonic.Marshal(doc.Stats)
	if err != nil {
		return errors.Wrap(errors.KindStorage, "transcript.save", "failed to encode stats", err)
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now()
		res := tx.Model(&TranscriptRun{}).Where("id = ?", doc.ID).Updates(map[string]interface{}{
			"status":       StatusCompleted,
			"model":        doc.Model,
			"language":     doc.Language,
			"duration":     doc.Duration,
			"units":        units,
			"error_count":  doc.ErrorCount,
			"text":         doc.Text,
			"stats":        datatypes.JSON(stats),
			"error":        "",
			"completed_at": now,
		})
		if res.Error != nil {
			return errors.Wrap(errors.KindStorage, "transcript.save", "failed to update run", res.Error)
		}
		if res.RowsAffected == 0 {
			return errors.Wrap(errors.KindStorage, "transcript.save", "run not found: "+doc.ID, ErrNotFound)
		}
		if err := tx.Where("run_id = ?", doc.ID).Delete(&TranscriptSegment{}).Error; err != nil {
			return errors.Wrap(errors.KindStorage, "transcript.save", "failed to clear segments", err)
		}

		rows := make([]TranscriptSegment, 0, len(doc.Segments)+len(doc.Speakers))
		for i, s := range doc.Segments {
			rows = append(rows, TranscriptSegment{RunID: doc.ID, Track: TrackPlain, Seq: i, StartSec: s.Start, EndSec: s.End, Text: s.Text})
		}
		for i, s := range doc.Speakers {
			rows = append(rows, TranscriptSegment{
				RunID: doc.ID, Track: TrackSpeaker, Seq: i, StartSec: s.Start, EndSec: s.End,
				Text: s.Text, SpeakerID: s.SpeakerID, Speaker: s.Speaker,
			})
		}
		if len(rows) == 0 {
			return nil
		}
		if err := tx.CreateInBatches(rows, 200).Error; err != nil {
			return errors.Wrap(errors.KindStorage, "transcript.save", "failed to insert segments", err)
		}
		return nil
	})
}

// GetRun loads a run without its segments.
func (r *TranscriptRepository) GetRun(ctx context.Context, id string) (*TranscriptRun, error) {
	var run TranscriptRun
	if err := r.db.WithContext(ctx).First(&run, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.Wrap(errors.KindStorage, "transcript.get_run", "run not found", ErrNotFound)
		}
		return nil, errors.Wrap(errors.KindStorage, "transcript.get_run", "failed to load run", err)
	}
	return &run, nil
}

// GetDocument rebuilds the transcript document of a run.
func (r *TranscriptRepository) GetDocument(ctx context.Context, id string) (transcript.Document, error) {
	run, err := r.GetRun(ctx, id)
	if err != nil {
		return transcript.Document{}, err
	}

	var rows []TranscriptSegment
	if err := r.db.WithContext(ctx).Where("run_id = ?", id).Order("track, seq").Find(&rows).Error; err != nil {
		return transcript.Document{}, errors.Wrap(errors.KindStorage, "transcript.get_document", "failed to load segments", err)
	}

	doc := transcript.Document{
		ID:         run.ID,
		Title:      run.Title,
		Source:     run.Source,
		Language:   run.Language,
		Model:      run.Model,
		CreatedAt:  run.CreatedAt,
		Duration:   run.Duration,
		Text:       run.Text,
		ErrorCount: run.ErrorCount,
		Segments:   []transcript.Segment{},
	}
	for _, row := range rows {
		if row.Track == TrackSpeaker {
			doc.Speakers = append(doc.Speakers, transcript.SpeakerSegment{
				SpeakerID: row.SpeakerID, Speaker: row.Speaker, Start: row.StartSec, End: row.EndSec, Text: row.Text,
			})
			continue
		}
		doc.Segments = append(doc.Segments, transcript.Segment{Start: row.StartSec, End: row.EndSec, Text: row.Text})
	}
	if len(run.Stats) > 0 {
		if err := sonic.Unmarshal(run.Stats, &doc.Stats); err != nil {
			return transcript.Document{}, errors.Wrap(errors.KindStorage, "transcript.get_document", "failed to decode stats", err)
		}
	}
	return doc, nil
}

// ListRuns returns runs newest first with the total count.
func (r *TranscriptRepository) ListRuns(ctx context.Context, limit, offset int) ([]TranscriptRun, int64, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var (
		runs  []TranscriptRun
		total int64
	)
	if err := r.db.WithContext(ctx).Model(&TranscriptRun{}).Count(&total).Error; err != nil {
		return nil, 0, errors.Wrap(errors.KindStorage, "transcript.list", "failed to count runs", err)
	}
	if err := r.db.WithContext(ctx).Omit("text").Order("created_at DESC").Limit(limit).Offset(offset).Find(&runs).Error; err != nil {
		return nil, 0, errors.Wrap(errors.KindStorage, "transcript.list", "failed to list runs", err)
	}
	return runs, total, nil
}

// DeleteRun removes a run with its segments and events.
func (r *TranscriptRepository) DeleteRun(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("run_id = ?", id).Delete(&TranscriptSegment{}).Error; err != nil {
			return errors.Wrap(errors.KindStorage, "transcript.delete", "failed to delete segments", err)
		}
		if err := tx.Where("run_id = ?", id).Delete(&RunEvent{}).Error; err != nil {
			return errors.Wrap(errors.KindStorage, "transcript.delete", "failed to delete events", err)
		}
		res := tx.Where("id = ?", id).Delete(&TranscriptRun{})
		if res.Error != nil {
			return errors.Wrap(errors.KindStorage, "transcript.delete", "failed to delete run", res.Error)
		}
		if res.RowsAffected == 0 {
			return errors.Wrap(errors.KindStorage, "transcript.delete", "run not found", ErrNotFound)
		}
		return nil
	})
}

// AppendEvent stores an event payload for a run.
func (r *TranscriptRepository) AppendEvent(ctx context.Context, runID, topic string, data interface{}) error {
	raw, err := sonic.Marshal(data)
	if err != nil {
		return errors.Wrap(errors.KindStorage, "transcript.append_event", "failed to encode event", err)
	}
	ev := &RunEvent{RunID: runID, Topic: topic, Data: raw, CreatedAt: time.Now()}
	if err := r.db.WithContext(ctx).Create(ev).Error; err != nil {
		return errors.Wrap(errors.KindStorage, "transcript.append_event", "failed to store event", err)
	}
	return nil
}

// Events lists a run's events in insertion order.
func (r *TranscriptRepository) Events(ctx context.Context, runID string) ([]RunEvent, error) {
	var events []RunEvent
	if err := r.db.WithContext(ctx).Where("run_id = ?", runID).Order("id").Find(&events).Error; err != nil {
		return nil, errors.Wrap(errors.KindStorage, "transcript.events", "failed to load events", err)
	}
	return events, nil
}
