package pipeline

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"vietscribe-go/internal/platform/errors"
	"vietscribe-go/internal/platform/logging"
	"vietscribe-go/internal/platform/storage"
	"vietscribe-go/internal/util/work"
)

// Jobs queues requests for background execution by a Service. With one
// worker, runs execute strictly one after another.
type Jobs struct {
	service *Service
	queue   *work.Queue[Request]
	logger  *logging.Logger

	maxRetries int

	mu      sync.Mutex
	pending map[string]bool
	running map[string]context.CancelFunc
	dropped map[string]bool
}

// NewJobs creates a job queue over service. maxRetries re-runs a job whose
// failure was transient I/O.
func NewJobs(service *Service, workers, maxRetries int) *Jobs {
	j := &Jobs{
		service:    service,
		logger:     service.logger,
		maxRetries: maxRetries,
		pending:    make(map[string]bool),
		running:    make(map[string]context.CancelFunc),
		dropped:    make(map[string]bool),
	}
	j.queue = work.NewWorkQueue(workers, j.handle,
		work.WithRetryable[Request](func(err error) bool {
			return maxRetries > 0 && errors.Retryable(err)
		}),
		work.WithBackoff[Request](func(attempt int) time.Duration {
			return time.Duration(attempt) * 2 * time.Second
		}),
		work.WithDeadLetter(j.deadLetter),
	)
	return j
}

// Start launches the workers; they stop when ctx ends or Stop is called.
func (j *Jobs) Start(ctx context.Context) { j.queue.Start(ctx) }

// Stop cancels running jobs and marks queued ones cancelled.
func (j *Jobs) Stop() { j.queue.Stop() }

// Submit records the run as queued and enqueues it. It returns the run id.
func (j *Jobs) Submit(ctx context.Context, req Request) (string, error) {
	if j.queue.IsStopped() {
		return "", errors.Wrap(errors.KindTransport, "jobs.submit", "queue is closed", work.ErrWorkQueueClosed)
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	if st := j.service.store; st != nil {
		run := &storage.TranscriptRun{
			ID:       req.ID,
			Title:    req.Title,
			Source:   req.Path,
			Status:   storage.StatusQueued,
			Backend:  string(j.service.recognizer.Backend()),
			Model:    j.service.recognizer.Model(),
			Language: j.service.cfg.ASR.Language,
		}
		if err := st.CreateRun(ctx, run); err != nil {
			return "", err
		}
	}
	j.mu.Lock()
	j.pending[req.ID] = true
	j.mu.Unlock()
	if err := j.queue.SubmitWithRetries(req, 0, j.maxRetries); err != nil {
		j.mu.Lock()
		delete(j.pending, req.ID)
		j.mu.Unlock()
		return "", errors.Wrap(errors.KindTransport, "jobs.submit", "queue is closed", err)
	}
	j.logger.InfoTag("PIPELINE", "queued run %s (%s)", req.ID, req.Path)
	return req.ID, nil
}

// Cancel stops a running job or drops a queued one, which then fails as
// cancelled when a worker reaches it. It reports whether the id was still
// held by the queue; finished and unknown ids are left alone.
func (j *Jobs) Cancel(id string) bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	if cancel, ok := j.running[id]; ok {
		cancel()
		return true
	}
	if j.pending[id] {
		j.dropped[id] = true
		return true
	}
	return false
}

// Defaults returns the service's default request for path.
func (j *Jobs) Defaults(path string) Request { return j.service.Defaults(path) }

// Stats reports queued and running job counts.
func (j *Jobs) Stats() (queued, running int) { return j.queue.Stats() }

func (j *Jobs) handle(ctx context.Context, req Request) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	j.mu.Lock()
	if j.dropped[req.ID] {
		j.mu.Unlock()
		j.service.fail(req.ID, context.Canceled, time.Now())
		j.finish(req)
		return nil
	}
	j.running[req.ID] = cancel
	j.mu.Unlock()

	defer func() {
		j.mu.Lock()
		delete(j.running, req.ID)
		j.mu.Unlock()
	}()

	_, err := j.service.Run(ctx, req, nil)
	if err == nil {
		j.finish(req)
	}
	return err
}

// deadLetter receives every job that ended in failure.
func (j *Jobs) deadLetter(item work.Item[Request]) {
	defer j.finish(item.Data)
	if errors.Is(item.LastError, work.ErrWorkQueueClosed) {
		j.service.fail(item.Data.ID, context.Canceled, item.CreatedAt)
		return
	}
	j.logger.WarnTag("PIPELINE", "run %s gave up after %d attempt(s): %v", item.Data.ID, item.Attempts, item.LastError)
}

// finish forgets a job that reached a terminal state and removes its source
// file when the request owns it.
func (j *Jobs) finish(req Request) {
	j.mu.Lock()
	delete(j.pending, req.ID)
	delete(j.dropped, req.ID)
	j.mu.Unlock()

	if !req.RemoveSource || req.Path == "" {
		return
	}
	if err := os.Remove(req.Path); err != nil && !os.IsNotExist(err) {
		j.logger.WarnTag("PIPELINE", "run %s: failed to remove %s: %v", req.ID, req.Path, err)
	}
}
