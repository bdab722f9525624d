package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"net/url"
	"strings"
	"time"

	env "github.com/Netflix/go-env"
	"github.com/joho/godotenv"
)

// PublicVarPrefix marks environment variables that are exposed to the client template.
const PublicVarPrefix = "CLIENT_PUBLIC_"

// Config holds every externally supplied setting of the gateway.
type Config struct {
	Port                  int           `env:"PORT,default=3000"`
	LogLevel              string        `env:"LOG_LEVEL,default=info"`
	LogFormat             string        `env:"LOG_FORMAT,default=json"`
	ServerShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT,default=5s"`

	// upstream realtime session API
	OpenAIAPIKey          string        `env:"OPENAI_API_KEY"`
	OpenAISessionsURL     string        `env:"OPENAI_SESSIONS_URL,default=https://api.openai.com/v1/realtime/sessions"`
	OpenAIRealtimeModel   string        `env:"OPENAI_REALTIME_MODEL,default=gpt-4o-realtime-preview-2024-12-17"`
	OpenAIRealtimeVoice   string        `env:"OPENAI_REALTIME_VOICE,default=verse"`
	OpenAITimeout         time.Duration `env:"OPENAI_TIMEOUT,default=0s"`
	OpenAIBreakerFailures int           `env:"OPENAI_BREAKER_FAILURES,default=5"`
	OpenAIBreakerTimeout  time.Duration `env:"OPENAI_BREAKER_TIMEOUT,default=30s"`

	// telephony webhook
	TwilioStreamURL     string `env:"TWILIO_STREAM_URL,default=wss://daniel-alisch.site/twilio/audio-stream"`
	TwilioAuthToken     string `env:"TWILIO_AUTH_TOKEN"`
	TwilioWebhookURL    string `env:"TWILIO_WEBHOOK_URL"`
	WebhookMaxBodyBytes int    `env:"WEBHOOK_MAX_BODY_BYTES,default=65536"`

	// client rendering
	ClientTemplatePath string `env:"CLIENT_TEMPLATE_PATH,default=./client/index.html"`
	ClientEntryPath    string `env:"CLIENT_ENTRY_PATH,default=./client/entry-server.html"`
	ClientAssetsDir    string `env:"CLIENT_ASSETS_DIR,default=./client"`
}

// LoadEnv loads a .env file from the working directory if one exists.
func LoadEnv() error {
	err := godotenv.Load(".env")
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		log.Printf("Failed to load .env file: %v", err)
		return err
	}
	return nil
}

// Load reads the process environment into a Config and validates it.
func Load() (*Config, error) {
	var cfg Config

	if _, err := env.UnmarshalFromEnviron(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal environment variables: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks value ranges and URL shapes.
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("PORT must be between 1 and 65535, got %d", c.Port)
	}
	if c.LogFormat != "json" && c.LogFormat != "text" {
		return fmt.Errorf("LOG_FORMAT must be json or text, got %q", c.LogFormat)
	}
	if err := validateURL("OPENAI_SESSIONS_URL", c.OpenAISessionsURL, "http", "https"); err != nil {
		return err
	}
	if err := validateURL("TWILIO_STREAM_URL", c.TwilioStreamURL, "ws", "wss"); err != nil {
		return err
	}
	if c.TwilioWebhookURL != "" {
		if err := validateURL("TWILIO_WEBHOOK_URL", c.TwilioWebhookURL, "http", "https"); err != nil {
			return err
		}
	}
	if c.OpenAITimeout < 0 {
		return fmt.Errorf("OPENAI_TIMEOUT must not be negative")
	}
	if c.OpenAIBreakerFailures < 0 {
		return fmt.Errorf("OPENAI_BREAKER_FAILURES must be 0 or greater")
	}
	if c.WebhookMaxBodyBytes < 1 {
		return fmt.Errorf("WEBHOOK_MAX_BODY_BYTES must be at least 1")
	}
	return nil
}

// SignatureVerificationEnabled reports whether inbound webhooks must carry a valid signature.
func (c *Config) SignatureVerificationEnabled() bool {
	return c.TwilioAuthToken != ""
}

// PublicClientVars extracts CLIENT_PUBLIC_* variables from environ ("KEY=value" pairs).
// Keys keep their full name, so CLIENT_PUBLIC_TITLE is referenced as %CLIENT_PUBLIC_TITLE%.
func PublicClientVars(environ []string) map[string]string {
	vars := make(map[string]string)
	for _, kv := range environ {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(key, PublicVarPrefix) {
			continue
		}
		vars[key] = value
	}
	return vars
}

func validateURL(name, raw string, schemes ...string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s is not a valid URL: %w", name, err)
	}
	if u.Host == "" {
		return fmt.Errorf("%s must include a host, got %q", name, raw)
	}
	for _, s := range schemes {
		if u.Scheme == s {
			return nil
		}
	}
	return fmt.Errorf("%s must use one of %v, got %q", name, schemes, u.Scheme)
}
