package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"realtime-voice-gateway/internal/config"
	"realtime-voice-gateway/internal/infra/handlers"
	"realtime-voice-gateway/internal/infra/logger"
	"realtime-voice-gateway/internal/infra/metrics"
	"realtime-voice-gateway/internal/infra/provider"
	"realtime-voice-gateway/internal/infra/routes"
	"realtime-voice-gateway/internal/infra/services"
	"realtime-voice-gateway/internal/middleware"
	"syscall"

	"github.com/gorilla/mux"
	"github.com/sony/gobreaker"
	"github.com/twilio/twilio-go/client"
)

const sessionBreakerName = "openai-sessions"

func main() {
	config.LoadEnv()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	log := logger.NewLogger(ctx, cfg.LogLevel, cfg.LogFormat == "json")

	if cfg.OpenAIAPIKey == "" {
		log.Warn("OPENAI_API_KEY is not set, token requests will be rejected upstream")
	}
	if !cfg.SignatureVerificationEnabled() {
		log.Warn("TWILIO_AUTH_TOKEN is not set, webhook signatures are not verified")
	}

	m := metrics.New()
	router := newRouter(cfg, log, m, config.PublicClientVars(os.Environ()))

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: router,
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	go func() {
		log.Info(fmt.Sprintf("Server running on *:%d", cfg.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error(fmt.Sprintf("Error running HTTP server: %s", err))
			os.Exit(1)
		}
	}()

	<-stop
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ServerShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error(fmt.Sprintf("Server forced to shutdown: %v", err))
	} else {
		log.Info("Server stopped gracefully.")
	}
}

// newRouter wires providers, services and handlers into the single request router.
func newRouter(cfg *config.Config, log *logger.Logger, m *metrics.Metrics, publicVars map[string]string) *mux.Router {
	router := mux.NewRouter()
	router.Use(middleware.LoggingMiddleware(log))
	router.Use(middleware.MetricsMiddleware(m))

	breaker := provider.NewSessionBreaker(sessionBreakerName, cfg.OpenAIBreakerFailures, cfg.OpenAIBreakerTimeout,
		func(name string, from, to gobreaker.State) {
			log.Warn(fmt.Sprintf("Circuit breaker %s changed from %s to %s", name, from, to))
			m.BreakerState.WithLabelValues(name).Set(float64(to))
		})
	m.BreakerState.WithLabelValues(sessionBreakerName).Set(float64(gobreaker.StateClosed))

	httpClient := &http.Client{Timeout: cfg.OpenAITimeout}
	sessionProvider := provider.NewOpenAIRealtimeProvider(log, httpClient, breaker,
		cfg.OpenAISessionsURL, cfg.OpenAIAPIKey, cfg.OpenAIRealtimeModel, cfg.OpenAIRealtimeVoice)
	voiceProvider := provider.NewTwilioVoiceProvider(cfg.TwilioStreamURL)

	pageRenderService := services.NewPageRenderService(log, cfg.ClientTemplatePath, cfg.ClientEntryPath, publicVars)

	twilioHandlers := handlers.NewTwilioHandlers(log, voiceProvider)
	tokenHandlers := handlers.NewTokenHandlers(log, sessionProvider, m)
	renderHandlers := handlers.NewRenderHandlers(log, pageRenderService, handlers.NewErrorHandler(log))

	var validator middleware.SignatureValidator
	if cfg.SignatureVerificationEnabled() {
		v := client.NewRequestValidator(cfg.TwilioAuthToken)
		validator = &v
	}

	routes := routes.NewRoutes(
		router,
		twilioHandlers,
		tokenHandlers,
		renderHandlers,
		m,
		cfg.ClientAssetsDir,
		middleware.RequestSizeLimit(int64(cfg.WebhookMaxBodyBytes)),
		middleware.TwilioSignature(validator, cfg.TwilioWebhookURL, log),
	)

	routes.Init()
	return router
}
