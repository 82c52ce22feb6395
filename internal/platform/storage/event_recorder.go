package storage

import (
	"context"
	"time"

	"vietscribe-go/internal/domain/eventbus"
	"vietscribe-go/internal/platform/logging"
)

// SubscribeRecorder persists unit failures and run outcomes published on bus.
// Events without a run id are ignored.
func SubscribeRecorder(bus eventbus.Bus, repo *TranscriptRepository, logger *logging.Logger) error {
	store := func(runID, topic string, data interface{}) {
		if runID == "" {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := repo.AppendEvent(ctx, runID, topic, data); err != nil {
			logger.WarnTag("STORE", "failed to record %s for %s: %v", topic, runID, err)
		}
	}

	subs := map[string]interface{}{
		eventbus.TopicUnitFailed: func(e eventbus.UnitEvent) { store(e.RunID, eventbus.TopicUnitFailed, e) },
		eventbus.TopicCompleted:  func(e eventbus.RunEvent) { store(e.RunID, eventbus.TopicCompleted, e) },
		eventbus.TopicFailed:     func(e eventbus.RunEvent) { store(e.RunID, eventbus.TopicFailed, e) },
	}
	for topic, fn := range subs {
		if err := bus.Subscribe(topic, fn); err != nil {
			return err
		}
	}
	return nil
}
