package eventbus

import "vietscribe-go/internal/platform/logging"

// SubscribeLogger mirrors pipeline events into the log.
func SubscribeLogger(bus Bus, logger *logging.Logger) error {
	subs := map[string]interface{}{
		TopicUnitDone: func(e UnitEvent) {
			logger.DebugTag("PIPELINE", "unit %d/%d done [%.2f-%.2f] segments=%d", e.Index+1, e.Total, e.Start, e.End, e.Segments)
		},
		TopicUnitFailed: func(e UnitEvent) {
			logger.WarnTag("PIPELINE", "unit %d/%d failed after %d attempt(s): %s", e.Index+1, e.Total, e.Attempts, e.Error)
		},
		TopicCompleted: func(e RunEvent) {
			logger.InfoTag("PIPELINE", "run %s completed: segments=%d errors=%d elapsed=%s", e.RunID, e.Segments, e.ErrorCount, e.Elapsed)
		},
		TopicFailed: func(e RunEvent) {
			logger.ErrorTag("PIPELINE", "run %s failed: %s", e.RunID, e.Error)
		},
	}
	for topic, fn := range subs {
		if err := bus.Subscribe(topic, fn); err != nil {
			return err
		}
	}
	return nil
}
