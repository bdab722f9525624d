package middleware

import (
	"errors"
	"fmt"
	"net/http"

	"realtime-voice-gateway/internal/infra/logger"

	"github.com/sirupsen/logrus"
)

const TwilioSignatureHeader = "X-Twilio-Signature"

// SignatureValidator is satisfied by *client.RequestValidator from twilio-go.
type SignatureValidator interface {
	Validate(url string, params map[string]string, expectedSignature string) bool
}

// TwilioSignature rejects webhook calls whose X-Twilio-Signature does not match the
// request URL and form parameters. A nil validator disables the check.
//
// The signed URL is publicURL when set. Otherwise it is rebuilt from the request,
// honouring X-Forwarded-Proto for deployments behind a TLS-terminating proxy.
func TwilioSignature(validator SignatureValidator, publicURL string, log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if validator == nil {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			signature := r.Header.Get(TwilioSignatureHeader)
			if signature == "" {
				log.Warn("Webhook request without signature", logrus.Fields{"path": r.URL.Path, "remote_addr": r.RemoteAddr})
				http.Error(w, "Forbidden", http.StatusForbidden)
				return
			}

			if err := r.ParseForm(); err != nil {
				var maxBytesErr *http.MaxBytesError
				if errors.As(err, &maxBytesErr) {
					http.Error(w, http.StatusText(http.StatusRequestEntityTooLarge), http.StatusRequestEntityTooLarge)
					return
				}
				log.Warn(fmt.Sprintf("Failed to parse webhook form: %v", err))
				http.Error(w, "Bad Request", http.StatusBadRequest)
				return
			}

			params := make(map[string]string, len(r.PostForm))
			for key, values := range r.PostForm {
				if len(values) > 0 {
					params[key] = values[0]
				}
			}

			signedURL := publicURL
			if signedURL == "" {
				signedURL = requestURL(r)
			}

			if !validator.Validate(signedURL, params, signature) {
				log.Warn("Webhook signature mismatch", logrus.Fields{"url": signedURL, "remote_addr": r.RemoteAddr})
				http.Error(w, "Forbidden", http.StatusForbidden)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func requestURL(r *http.Request) string {
	scheme := "http"
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	} else if r.TLS != nil {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s%s", scheme, r.Host, r.URL.RequestURI())
}
