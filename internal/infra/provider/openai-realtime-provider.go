package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"realtime-voice-gateway/internal/domain/dto"
	"realtime-voice-gateway/internal/infra/logger"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
)

// ErrInvalidUpstreamBody is returned when the session API answers with something that is not JSON.
var ErrInvalidUpstreamBody = errors.New("upstream returned a non-JSON body")

// errCallerGone marks calls abandoned because the caller's context ended. The
// breaker does not count them as upstream failures.
var errCallerGone = errors.New("caller went away")

type OpenAIRealtimeProvider struct {
	Logger      *logger.Logger
	HttpClient  *http.Client
	Breaker     *gobreaker.CircuitBreaker
	SessionsURL string
	APIKey      string
	Model       string
	Voice       string
}

func NewOpenAIRealtimeProvider(logger *logger.Logger, httpClient *http.Client, breaker *gobreaker.CircuitBreaker, sessionsURL, apiKey, model, voice string) *OpenAIRealtimeProvider {
	return &OpenAIRealtimeProvider{
		Logger:      logger,
		HttpClient:  httpClient,
		Breaker:     breaker,
		SessionsURL: sessionsURL,
		APIKey:      apiKey,
		Model:       model,
		Voice:       voice,
	}
}

// NewSessionBreaker builds the breaker guarding the session API. It opens after
// maxFailures consecutive failures and stays open for openTimeout. A maxFailures
// of 0 never trips. Calls abandoned by their caller do not count. onStateChange
// may be nil.
func NewSessionBreaker(name string, maxFailures int, openTimeout time.Duration, onStateChange func(name string, from, to gobreaker.State)) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     openTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return maxFailures > 0 && counts.ConsecutiveFailures >= uint32(maxFailures)
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, errCallerGone)
		},
		OnStateChange: onStateChange,
	})
}

// CreateSession asks the realtime API for an ephemeral session.
//
// The upstream status and body are returned as-is whenever the body is valid JSON,
// including upstream 4xx/5xx answers. Transport failures, unreadable bodies,
// non-JSON bodies and an open breaker are returned as errors. Nothing is retried.
func (th *OpenAIRealtimeProvider) CreateSession(ctx context.Context) (*dto.RealtimeSessionResponse, error) {
	result, err := th.Breaker.Execute(func() (interface{}, error) {
		session, err := th.requestSession(ctx)
		if err != nil && ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %w", errCallerGone, err)
		}
		return session, err
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			th.Logger.Warn("Session request blocked by circuit breaker", logrus.Fields{
				"breaker": th.Breaker.Name(),
				"state":   th.Breaker.State().String(),
			})
		}
		return nil, err
	}

	return result.(*dto.RealtimeSessionResponse), nil
}

func (th *OpenAIRealtimeProvider) requestSession(ctx context.Context) (*dto.RealtimeSessionResponse, error) {
	payload, err := json.Marshal(dto.RealtimeSessionRequest{
		Model: th.Model,
		Voice: th.Voice,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, th.SessionsURL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}

	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", th.APIKey))
	req.Header.Set("Content-Type", "application/json")

	res, err := th.HttpClient.Do(req)
	if err != nil {
		th.Logger.Error(fmt.Sprintf("HTTP request failed %v", err))
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		th.Logger.Error(fmt.Sprintf("Failed to read response body %v", err))
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if !json.Valid(body) {
		th.Logger.Error(fmt.Sprintf("Unexpected response body from session API, status %s", res.Status))
		return nil, fmt.Errorf("%w: status %s", ErrInvalidUpstreamBody, res.Status)
	}

	if res.StatusCode < http.StatusOK || res.StatusCode >= http.StatusMultipleChoices {
		th.Logger.Warn(fmt.Sprintf("Session API returned %s", res.Status), logrus.Fields{"response_body": string(body)})
	}

	return &dto.RealtimeSessionResponse{
		StatusCode: res.StatusCode,
		Body:       json.RawMessage(body),
	}, nil
}
