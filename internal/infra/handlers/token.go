package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"realtime-voice-gateway/internal/domain/dto"
	"realtime-voice-gateway/internal/infra/logger"
	"realtime-voice-gateway/internal/infra/metrics"
	"realtime-voice-gateway/internal/infra/provider"
)

const tokenErrorMessage = "Failed to generate token"

type TokenHandlers struct {
	Logger          *logger.Logger
	SessionProvider provider.IRealtimeSessionProvider
	Metrics         *metrics.Metrics
}

func NewTokenHandlers(logger *logger.Logger, sessionProvider provider.IRealtimeSessionProvider, metrics *metrics.Metrics) *TokenHandlers {
	return &TokenHandlers{Logger: logger, SessionProvider: sessionProvider, Metrics: metrics}
}

// Token issues an ephemeral realtime session and relays the upstream JSON verbatim.
//
// HTTP Status Codes:
//   - 200 OK: the upstream answered with a JSON body, whatever its own status
//   - 500 Internal Server Error: the upstream call failed or returned something
//     other than JSON; the body is always {"error":"Failed to generate token"}
func (th *TokenHandlers) Token(w http.ResponseWriter, r *http.Request) {
	session, err := th.SessionProvider.CreateSession(r.Context())
	if err != nil {
		th.Logger.Error(fmt.Sprintf("Token generation error: %v", err))
		th.Metrics.TokenRequests.WithLabelValues("failure").Inc()
		writeJSONError(w, http.StatusInternalServerError, tokenErrorMessage)
		return
	}

	th.Metrics.TokenRequests.WithLabelValues("success").Inc()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(session.Body)
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	body, _ := json.Marshal(dto.ErrorResponse{Error: message})
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(body)
}
