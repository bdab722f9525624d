package handlers

import (
	"errors"
	"net/http"

	"realtime-voice-gateway/internal/infra/logger"
	"realtime-voice-gateway/internal/infra/services"

	"github.com/sirupsen/logrus"
)

// ErrorHandler is the generic failure path for requests that cannot be served.
// The full cause is logged and the client gets a plain 500.
type ErrorHandler struct {
	Logger *logger.Logger
}

func NewErrorHandler(logger *logger.Logger) *ErrorHandler {
	return &ErrorHandler{Logger: logger}
}

func (th *ErrorHandler) ServeError(w http.ResponseWriter, r *http.Request, err error) {
	fields := logrus.Fields{
		"method": r.Method,
		"url":    r.URL.RequestURI(),
		"error":  err.Error(),
	}

	var renderErr *services.RenderError
	if errors.As(err, &renderErr) {
		fields["stage"] = renderErr.Stage
		fields["file"] = renderErr.Path
		fields["cause"] = renderErr.Err.Error()
	}

	th.Logger.Error("Request failed", fields)
	http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
}
