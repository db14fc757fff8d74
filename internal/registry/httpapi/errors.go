package httpapi

import (
	"errors"
	"net/http"

	"github.com/yungbote/neurobridge-backend/internal/registry/jobserr"
)

// statusFor maps a jobserr sentinel to an HTTP status and a short machine
// code, the way apierr.Error{Status, Code, Err} does for the teacher's
// domain errors.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, jobserr.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, jobserr.ErrConflict):
		return http.StatusConflict, "conflict"
	case errors.Is(err, jobserr.ErrIllegalTransition):
		return http.StatusConflict, "illegal_transition"
	case errors.Is(err, jobserr.ErrPipelinePaused):
		return http.StatusServiceUnavailable, "pipeline_paused"
	case errors.Is(err, jobserr.ErrContended):
		return http.StatusConflict, "contended"
	case errors.Is(err, jobserr.ErrTerminal):
		return http.StatusConflict, "terminal"
	case errors.Is(err, jobserr.ErrNotRestartable):
		return http.StatusBadRequest, "not_restartable"
	case errors.Is(err, jobserr.ErrNotCancelable):
		return http.StatusBadRequest, "not_cancelable"
	case errors.Is(err, jobserr.ErrBadRequest):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, jobserr.ErrUnavailable):
		return http.StatusServiceUnavailable, "unavailable"
	default:
		return http.StatusInternalServerError, "internal"
	}
}
