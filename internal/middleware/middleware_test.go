package middleware

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha1"
	"crypto/tls"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sort"
	"strings"
	"testing"

	"realtime-voice-gateway/internal/infra/logger"
	"realtime-voice-gateway/internal/infra/metrics"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twilio/twilio-go/client"
)

func okHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func TestLoggingMiddlewareAssignsRequestID(t *testing.T) {
	var buf bytes.Buffer
	log := logger.New(context.Background(), &buf, "info", true)

	handler := LoggingMiddleware(log)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/token", nil))

	requestID := rr.Header().Get(RequestIDHeader)
	require.NotEmpty(t, requestID)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, requestID, entry["request_id"])
	assert.Equal(t, float64(http.StatusTeapot), entry["status"])
	assert.Contains(t, entry["msg"], "GET /token")
}

func TestLoggingMiddlewareKeepsIncomingRequestID(t *testing.T) {
	handler := LoggingMiddleware(logger.Discard())(http.HandlerFunc(okHandler))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	assert.Equal(t, "abc-123", rr.Header().Get(RequestIDHeader))
}

func TestMetricsMiddlewareLabelsByRouteName(t *testing.T) {
	m := metrics.New()
	router := mux.NewRouter()
	router.Use(MetricsMiddleware(m))
	router.HandleFunc("/token", okHandler).Methods(http.MethodGet).Name("token")
	router.PathPrefix("/").HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	for _, path := range []string{"/token", "/token", "/anything"} {
		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	assert.Equal(t, float64(2), testutil.ToFloat64(m.RequestsTotal.WithLabelValues("token", "GET", "200")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.RequestsTotal.WithLabelValues("/", "GET", "500")))
}

func TestRequestSizeLimit(t *testing.T) {
	handler := RequestSizeLimit(16)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := io.ReadAll(r.Body); err != nil {
			http.Error(w, err.Error(), http.StatusRequestEntityTooLarge)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))

	tests := []struct {
		name          string
		body          string
		contentLength int64
		wantCode      int
	}{
		{"within limit", "a=1", 3, http.StatusOK},
		{"declared too large", strings.Repeat("x", 32), 32, http.StatusRequestEntityTooLarge},
		{"undeclared too large", strings.Repeat("x", 32), -1, http.StatusRequestEntityTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/twilio/voice", strings.NewReader(tt.body))
			req.ContentLength = tt.contentLength
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)
			assert.Equal(t, tt.wantCode, rr.Code)
		})
	}
}

// sign reproduces Twilio's request signature: base64(HMAC-SHA1(token, url + sorted key/value pairs)).
func sign(token, rawURL string, form url.Values) string {
	pairs := make([]string, 0, len(form))
	for k := range form {
		pairs = append(pairs, k+form.Get(k))
	}
	sort.Strings(pairs)

	mac := hmac.New(sha1.New, []byte(token))
	mac.Write([]byte(rawURL + strings.Join(pairs, "")))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func newFormRequest(target string, form url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func TestTwilioSignatureWithTwilioValidator(t *testing.T) {
	const token = "twilio-auth-token"
	validator := client.NewRequestValidator(token)
	handler := TwilioSignature(&validator, "", logger.Discard())(http.HandlerFunc(okHandler))

	form := url.Values{"CallSid": {"CA123"}, "From": {"+15550001111"}, "To": {"+15550002222"}}

	t.Run("valid signature", func(t *testing.T) {
		req := newFormRequest("http://example.com/twilio/voice", form)
		req.Header.Set(TwilioSignatureHeader, sign(token, "http://example.com/twilio/voice", form))
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		assert.Equal(t, http.StatusOK, rr.Code)
	})

	t.Run("forwarded proto", func(t *testing.T) {
		req := newFormRequest("http://example.com/twilio/voice", form)
		req.Header.Set("X-Forwarded-Proto", "https")
		req.Header.Set(TwilioSignatureHeader, sign(token, "https://example.com/twilio/voice", form))
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		assert.Equal(t, http.StatusOK, rr.Code)
	})

	t.Run("tampered body", func(t *testing.T) {
		tampered := url.Values{"CallSid": {"CA999"}, "From": {"+15550001111"}, "To": {"+15550002222"}}
		req := newFormRequest("http://example.com/twilio/voice", tampered)
		req.Header.Set(TwilioSignatureHeader, sign(token, "http://example.com/twilio/voice", form))
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		assert.Equal(t, http.StatusForbidden, rr.Code)
	})

	t.Run("wrong token", func(t *testing.T) {
		req := newFormRequest("http://example.com/twilio/voice", form)
		req.Header.Set(TwilioSignatureHeader, sign("other-token", "http://example.com/twilio/voice", form))
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		assert.Equal(t, http.StatusForbidden, rr.Code)
	})

	t.Run("missing signature", func(t *testing.T) {
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, newFormRequest("http://example.com/twilio/voice", form))
		assert.Equal(t, http.StatusForbidden, rr.Code)
	})
}

type recordingValidator struct {
	url    string
	params map[string]string
	result bool
}

func (v *recordingValidator) Validate(url string, params map[string]string, expectedSignature string) bool {
	v.url = url
	v.params = params
	return v.result
}

func TestTwilioSignatureURLSelection(t *testing.T) {
	tests := []struct {
		name      string
		publicURL string
		target    string
		tls       bool
		wantURL   string
	}{
		{"rebuilt from request", "", "http://voice.local:3000/twilio/voice?x=1", false, "http://voice.local:3000/twilio/voice?x=1"},
		{"tls request", "", "https://voice.local/twilio/voice", true, "https://voice.local/twilio/voice"},
		{"configured public url", "https://public.example.com/twilio/voice", "http://10.0.0.5/twilio/voice", false, "https://public.example.com/twilio/voice"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := &recordingValidator{result: true}
			handler := TwilioSignature(v, tt.publicURL, logger.Discard())(http.HandlerFunc(okHandler))

			req := newFormRequest(tt.target, url.Values{"CallSid": {"CA1"}})
			if tt.tls {
				req.TLS = &tls.ConnectionState{}
			}
			req.Header.Set(TwilioSignatureHeader, "sig")
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)

			assert.Equal(t, http.StatusOK, rr.Code)
			assert.Equal(t, tt.wantURL, v.url)
			assert.Equal(t, map[string]string{"CallSid": "CA1"}, v.params)
		})
	}
}

func TestTwilioSignatureDisabled(t *testing.T) {
	handler := TwilioSignature(nil, "", logger.Discard())(http.HandlerFunc(okHandler))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/twilio/voice", strings.NewReader("anything")))
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestTwilioSignatureOversizedBody(t *testing.T) {
	v := &recordingValidator{result: true}
	handler := RequestSizeLimit(8)(TwilioSignature(v, "", logger.Discard())(http.HandlerFunc(okHandler)))

	req := newFormRequest("http://example.com/twilio/voice", url.Values{"Payload": {strings.Repeat("x", 64)}})
	req.ContentLength = -1
	req.Header.Set(TwilioSignatureHeader, "sig")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, rr.Code)
}
