// Package httpapi is the registry's HTTP surface: a gin.Engine assembled
// the way internal/server/router.go assembles the teacher's router, with
// trace-id propagation generalizing middleware.AttachRequestContext.
package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// APIError is the error body shape, matching internal/http/response's
// envelope so existing client tooling in the pack's style keeps working.
type APIError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// ErrorEnvelope wraps APIError with the request's trace id.
type ErrorEnvelope struct {
	Error   APIError `json:"error"`
	TraceID string   `json:"trace_id,omitempty"`
}

func respondOK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}

func respondError(c *gin.Context, status int, code string, err error) {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	c.JSON(status, ErrorEnvelope{
		Error:   APIError{Message: msg, Code: code},
		TraceID: c.GetString(traceIDKey),
	})
}
