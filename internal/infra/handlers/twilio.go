package handlers

import (
	"fmt"
	"net/http"

	"realtime-voice-gateway/internal/infra/logger"
	"realtime-voice-gateway/internal/infra/provider"
)

type TwilioHandlers struct {
	Logger        *logger.Logger
	VoiceProvider provider.IVoiceResponseProvider
}

func NewTwilioHandlers(logger *logger.Logger, voiceProvider provider.IVoiceResponseProvider) *TwilioHandlers {
	return &TwilioHandlers{Logger: logger, VoiceProvider: voiceProvider}
}

// Voice answers the incoming-call webhook with TwiML that connects the call to the
// configured media stream. The form body is not inspected, so every call gets the
// same document.
func (th *TwilioHandlers) Voice(w http.ResponseWriter, r *http.Request) {
	doc, err := th.VoiceProvider.ConnectStream()
	if err != nil {
		th.Logger.Error(fmt.Sprintf("Failed to build voice response: %v", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/xml")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(doc))
}
