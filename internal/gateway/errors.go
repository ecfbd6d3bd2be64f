package gateway

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/sautilabs/sauti/internal/registry"
	"github.com/sautilabs/sauti/pkg/audio"
)

// apiError is an error with an HTTP status attached. The dispatch layer uses
// it to keep the caller's-fault / backend's-fault split explicit.
type apiError struct {
	status int
	msg    string
}

func (e *apiError) Error() string { return e.msg }

// badRequest marks a failure as the caller's fault (4xx).
func badRequest(format string, args ...any) error {
	return &apiError{status: http.StatusBadRequest, msg: fmt.Sprintf(format, args...)}
}

// notFound marks a lookup miss (404).
func notFound(format string, args ...any) error {
	return &apiError{status: http.StatusNotFound, msg: fmt.Sprintf(format, args...)}
}

// serverError marks a backend-internal failure (5xx).
func serverError(format string, args ...any) error {
	return &apiError{status: http.StatusInternalServerError, msg: fmt.Sprintf(format, args...)}
}

// httpStatus maps an error to its HTTP status. Audio normalization failures
// and unknown scorer ids are client errors even when they bubble up unwrapped
// from lower layers; everything unclassified is a server error.
func httpStatus(err error) int {
	var ae *apiError
	if errors.As(err, &ae) {
		return ae.status
	}
	switch {
	case errors.Is(err, audio.ErrBrokenAudio),
		errors.Is(err, audio.ErrUnsupportedFormat),
		errors.Is(err, registry.ErrUnknownScorer):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}
