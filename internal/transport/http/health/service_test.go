package health

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vietscribe-go/internal/platform/config"
	httptransport "vietscribe-go/internal/transport/http"
)

type fixedQueue struct{ queued, running int }

func (q fixedQueue) Stats() (int, int) { return q.queued, q.running }

func TestHealth(t *testing.T) {
	router, err := httptransport.Build(httptransport.Options{Config: config.DefaultConfig()})
	require.NoError(t, err)
	NewService(fixedQueue{queued: 2, running: 1}, "command").Register(context.Background(), router.API)

	w := httptest.NewRecorder()
	router.Engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Success bool `json:"success"`
		Data    struct {
			Status  string `json:"status"`
			Backend string `json:"backend"`
			Queue   struct {
				Queued  int `json:"queued"`
				Running int `json:"running"`
			} `json:"queue"`
			Host struct {
				LogicalCPUs int `json:"logical_cpus"`
			} `json:"host"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.True(t, body.Success)
	assert.Equal(t, "ok", body.Data.Status)
	assert.Equal(t, "command", body.Data.Backend)
	assert.Equal(t, 2, body.Data.Queue.Queued)
	assert.Equal(t, 1, body.Data.Queue.Running)
	assert.Positive(t, body.Data.Host.LogicalCPUs)
}

func TestUnknownRoute(t *testing.T) {
	router, err := httptransport.Build(httptransport.Options{Config: config.DefaultConfig()})
	require.NoError(t, err)

	w := httptest.NewRecorder()
	router.Engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/nope", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), `"success":false`)
}
