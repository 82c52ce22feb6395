package pipeline

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vietscribe-go/internal/domain/asr/asrtest"
	"vietscribe-go/internal/domain/eventbus"
	"vietscribe-go/internal/platform/errors"
	"vietscribe-go/internal/platform/storage"
	testutil "vietscribe-go/internal/platform/testing"
)

func waitForStatus(t *testing.T, repo *storage.TranscriptRepository, id, status string) {
	t.Helper()
	require.Eventually(t, func() bool {
		run, err := repo.GetRun(context.Background(), id)
		return err == nil && run.Status == status
	}, 3*time.Second, 10*time.Millisecond, "run %s never reached %s", id, status)
}

func TestJobs_RunsQueuedRequestsInOrder(t *testing.T) {
	repo := newRepo(t)
	bus := eventbus.New()
	events := captureRuns(t, bus)
	rec := &asrtest.Recognizer{Fallback: asrtest.Text(0, 1, "xin chào")}
	svc, err := New(testConfig(t), rec, WithStore(repo), WithPublisher(bus))
	require.NoError(t, err)

	jobs := NewJobs(svc, 1, 0)
	sig := silence(10)
	first, err := jobs.Submit(context.Background(), Request{Signal: &sig})
	require.NoError(t, err)
	second, err := jobs.Submit(context.Background(), Request{ID: "second", Signal: &sig})
	require.NoError(t, err)
	assert.Equal(t, "second", second)

	run, err := repo.GetRun(context.Background(), first)
	require.NoError(t, err)
	assert.Equal(t, storage.StatusQueued, run.Status)

	jobs.Start(context.Background())
	defer jobs.Stop()

	waitForStatus(t, repo, first, storage.StatusCompleted)
	waitForStatus(t, repo, second, storage.StatusCompleted)

	completed := events.get(eventbus.TopicCompleted)
	require.Len(t, completed, 2)
	assert.Equal(t, first, completed[0].RunID)
	assert.Equal(t, second, completed[1].RunID)
}

func TestJobs_CancelRunningJob(t *testing.T) {
	repo := newRepo(t)
	rec := &asrtest.Recognizer{Gate: make(chan struct{}), Fallback: asrtest.Text(0, 1, "x")}
	svc, err := New(testConfig(t), rec, WithStore(repo))
	require.NoError(t, err)

	jobs := NewJobs(svc, 1, 0)
	jobs.Start(context.Background())
	defer jobs.Stop()

	sig := silence(30)
	id, err := jobs.Submit(context.Background(), Request{Signal: &sig})
	require.NoError(t, err)
	waitForStatus(t, repo, id, storage.StatusRunning)

	assert.True(t, jobs.Cancel(id))
	waitForStatus(t, repo, id, storage.StatusCancelled)
}

func TestJobs_CancelQueuedJob(t *testing.T) {
	repo := newRepo(t)
	rec := &asrtest.Recognizer{Fallback: asrtest.Text(0, 1, "x")}
	svc, err := New(testConfig(t), rec, WithStore(repo))
	require.NoError(t, err)

	jobs := NewJobs(svc, 1, 0)
	sig := silence(10)
	id, err := jobs.Submit(context.Background(), Request{Signal: &sig})
	require.NoError(t, err)
	assert.True(t, jobs.Cancel(id))

	jobs.Start(context.Background())
	defer jobs.Stop()

	waitForStatus(t, repo, id, storage.StatusCancelled)
	assert.Zero(t, rec.CallCount())
}

func TestJobs_StopCancelsQueued(t *testing.T) {
	repo := newRepo(t)
	rec := &asrtest.Recognizer{Fallback: asrtest.Text(0, 1, "x")}
	svc, err := New(testConfig(t), rec, WithStore(repo))
	require.NoError(t, err)

	jobs := NewJobs(svc, 1, 0)
	sig := silence(10)
	id, err := jobs.Submit(context.Background(), Request{Signal: &sig})
	require.NoError(t, err)

	jobs.Stop()
	run, err := repo.GetRun(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, storage.StatusCancelled, run.Status)

	_, err = jobs.Submit(context.Background(), Request{Signal: &sig})
	assert.Error(t, err)
}

func TestJobs_CancelUnknownOrFinishedIDIsIgnored(t *testing.T) {
	repo := newRepo(t)
	rec := &asrtest.Recognizer{Fallback: asrtest.Text(0, 1, "x")}
	svc, err := New(testConfig(t), rec, WithStore(repo))
	require.NoError(t, err)

	jobs := NewJobs(svc, 1, 0)
	jobs.Start(context.Background())
	defer jobs.Stop()

	assert.False(t, jobs.Cancel("later"))

	sig := silence(10)
	done, err := jobs.Submit(context.Background(), Request{Signal: &sig})
	require.NoError(t, err)
	waitForStatus(t, repo, done, storage.StatusCompleted)
	require.Eventually(t, func() bool { return !jobs.Cancel(done) }, time.Second, 10*time.Millisecond)

	later, err := jobs.Submit(context.Background(), Request{ID: "later", Signal: &sig})
	require.NoError(t, err)
	waitForStatus(t, repo, later, storage.StatusCompleted)

	require.Eventually(t, func() bool {
		jobs.mu.Lock()
		defer jobs.mu.Unlock()
		return len(jobs.dropped) == 0 && len(jobs.pending) == 0
	}, time.Second, 10*time.Millisecond)
}

func TestJobs_RemovesOwnedSourceWhenFinished(t *testing.T) {
	tests := []struct {
		name   string
		rec    *asrtest.Recognizer
		remove bool
		status string
	}{
		{"completed", &asrtest.Recognizer{Fallback: asrtest.Text(0, 1, "x")}, true, storage.StatusCompleted},
		{"failed", &asrtest.Recognizer{Fallback: asrtest.Step{Err: errors.New(errors.KindBackend, "test", "model crashed")}}, true, storage.StatusFailed},
		{"not owned", &asrtest.Recognizer{Fallback: asrtest.Text(0, 1, "x")}, false, storage.StatusCompleted},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newRepo(t)
			svc, err := New(testConfig(t), tt.rec, WithStore(repo))
			require.NoError(t, err)
			jobs := NewJobs(svc, 1, 0)
			jobs.Start(context.Background())
			defer jobs.Stop()

			path := testutil.WriteWAV(t, "upload.wav", silence(10))
			id, err := jobs.Submit(context.Background(), Request{Path: path, RemoveSource: tt.remove})
			require.NoError(t, err)
			waitForStatus(t, repo, id, tt.status)

			if !tt.remove {
				time.Sleep(50 * time.Millisecond)
				assert.FileExists(t, path)
				return
			}
			require.Eventually(t, func() bool {
				_, err := os.Stat(path)
				return os.IsNotExist(err)
			}, time.Second, 10*time.Millisecond)
		})
	}
}

func TestJobs_RemovesSourceOfCancelledQueuedJob(t *testing.T) {
	repo := newRepo(t)
	rec := &asrtest.Recognizer{Fallback: asrtest.Text(0, 1, "x")}
	svc, err := New(testConfig(t), rec, WithStore(repo))
	require.NoError(t, err)

	jobs := NewJobs(svc, 1, 0)
	path := testutil.WriteWAV(t, "queued.wav", silence(10))
	id, err := jobs.Submit(context.Background(), Request{Path: path, RemoveSource: true})
	require.NoError(t, err)
	require.True(t, jobs.Cancel(id))

	jobs.Start(context.Background())
	defer jobs.Stop()

	waitForStatus(t, repo, id, storage.StatusCancelled)
	require.Eventually(t, func() bool {
		_, err := os.Stat(path)
		return os.IsNotExist(err)
	}, time.Second, 10*time.Millisecond)
}
