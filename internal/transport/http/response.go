package httptransport

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"vietscribe-go/internal/platform/errors"
)

// APIResponse is the envelope of every JSON reply.
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data"`
	Message string      `json:"message"`
	Code    int         `json:"code"`
}

// RespondSuccess writes a success envelope.
func RespondSuccess(c *gin.Context, httpStatus int, data interface{}, message string) {
	if message == "" {
		message = "ok"
	}

	c.JSON(httpStatus, APIResponse{
		Success: true,
		Message: message,
		Code:    httpStatus,
		Data:    data,
	})
}

// RespondError writes a failure envelope.
func RespondError(c *gin.Context, httpStatus int, message string, data interface{}) {
	if data == nil {
		data = gin.H{}
	}
	c.JSON(httpStatus, APIResponse{
		Success: false,
		Message: message,
		Code:    httpStatus,
		Data:    data,
	})
}

// StatusFor maps an error kind onto an HTTP status.
func StatusFor(err error) int {
	switch errors.KindOf(err) {
	case errors.KindConfig, errors.KindDomain:
		return http.StatusBadRequest
	case errors.KindAudio:
		return http.StatusUnprocessableEntity
	case errors.KindBackend, errors.KindRecognizer, errors.KindAggregate:
		return http.StatusBadGateway
	case errors.KindTransientIO, errors.KindTransport, errors.KindBootstrap:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// RespondErr writes a failure envelope whose status follows the error kind.
// Server-side kinds hide err behind message.
func RespondErr(c *gin.Context, err error, message string) {
	status := StatusFor(err)
	if status < http.StatusInternalServerError {
		message = err.Error()
	}
	RespondError(c, status, message, gin.H{"kind": errors.KindOf(err)})
}
