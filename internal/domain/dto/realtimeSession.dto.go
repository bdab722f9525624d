package dto

import "encoding/json"

// RealtimeSessionRequest is the body sent to the session-issuance API.
type RealtimeSessionRequest struct {
	Model string `json:"model"`
	Voice string `json:"voice"`
}

// RealtimeSessionResponse carries the upstream reply untouched.
type RealtimeSessionResponse struct {
	StatusCode int
	Body       json.RawMessage
}

type ErrorResponse struct {
	Error string `json:"error"`
}
