package httptransport

import (
	"encoding/json"
	stderrors "errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vietscribe-go/internal/platform/errors"
)

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{errors.New(errors.KindConfig, "op", "bad strategy"), http.StatusBadRequest},
		{errors.New(errors.KindAudio, "op", "undecodable"), http.StatusUnprocessableEntity},
		{errors.New(errors.KindAggregate, "op", "3 of 3 failed"), http.StatusBadGateway},
		{errors.New(errors.KindTransport, "op", "queue is closed"), http.StatusServiceUnavailable},
		{errors.New(errors.KindStorage, "op", "locked"), http.StatusInternalServerError},
		{stderrors.New("plain"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, StatusFor(tt.err), tt.err.Error())
	}
}

func TestRespondErr(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name    string
		err     error
		status  int
		message string
	}{
		{"client error keeps its message", errors.New(errors.KindConfig, "op", "unknown strategy"), http.StatusBadRequest, "[config:op] unknown strategy"},
		{"server error is hidden", errors.New(errors.KindStorage, "op", "disk path /var/x"), http.StatusInternalServerError, "storage error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			RespondErr(c, tt.err, "storage error")

			require.Equal(t, tt.status, w.Code)
			var body APIResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.False(t, body.Success)
			assert.Equal(t, tt.message, body.Message)
		})
	}
}
