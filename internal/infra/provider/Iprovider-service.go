package provider

import (
	"context"

	"realtime-voice-gateway/internal/domain/dto"
)

type IRealtimeSessionProvider interface {
	CreateSession(ctx context.Context) (*dto.RealtimeSessionResponse, error)
}

type IVoiceResponseProvider interface {
	ConnectStream() (string, error)
}
