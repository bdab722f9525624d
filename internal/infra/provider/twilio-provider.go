package provider

import (
	"fmt"

	"github.com/twilio/twilio-go/twiml"
)

// TwilioVoiceProvider builds TwiML for inbound calls.
type TwilioVoiceProvider struct {
	StreamURL string
}

func NewTwilioVoiceProvider(streamURL string) *TwilioVoiceProvider {
	return &TwilioVoiceProvider{StreamURL: streamURL}
}

// ConnectStream returns a voice response that connects the call to a single media stream.
func (th *TwilioVoiceProvider) ConnectStream() (string, error) {
	stream := &twiml.VoiceStream{Url: th.StreamURL}
	connect := &twiml.VoiceConnect{InnerElements: []twiml.Element{stream}}

	doc, err := twiml.Voice([]twiml.Element{connect})
	if err != nil {
		return "", fmt.Errorf("failed to build voice response: %w", err)
	}
	return doc, nil
}
