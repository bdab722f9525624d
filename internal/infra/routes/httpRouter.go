package routes

import (
	"encoding/json"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"realtime-voice-gateway/internal/infra/handlers"
	"realtime-voice-gateway/internal/infra/metrics"

	"github.com/gorilla/mux"
)

// Route names, also used as the route label in metrics.
const (
	RouteTwilioVoice = "twilio-voice"
	RouteAssets      = "assets"
	RouteToken       = "token"
	RouteHealthCheck = "health-check"
	RouteMetrics     = "metrics"
	RouteRender      = "render"
)

type Routes struct {
	Mux               *mux.Router
	TwilioHandler     *handlers.TwilioHandlers
	TokenHandler      *handlers.TokenHandlers
	RenderHandler     *handlers.RenderHandlers
	Metrics           *metrics.Metrics
	AssetsDir         string
	WebhookMiddleware []mux.MiddlewareFunc
}

func NewRoutes(router *mux.Router, twilioHandler *handlers.TwilioHandlers, tokenHandler *handlers.TokenHandlers, renderHandler *handlers.RenderHandlers, metrics *metrics.Metrics, assetsDir string, webhookMiddleware ...mux.MiddlewareFunc) *Routes {
	return &Routes{
		Mux:               router,
		TwilioHandler:     twilioHandler,
		TokenHandler:      tokenHandler,
		RenderHandler:     renderHandler,
		Metrics:           metrics,
		AssetsDir:         assetsDir,
		WebhookMiddleware: webhookMiddleware,
	}
}

// Init registers routes in priority order. gorilla/mux picks the first match, so
// the order below is the dispatch order.
func (r *Routes) Init() {
	var voice http.Handler = http.HandlerFunc(r.TwilioHandler.Voice)
	for i := len(r.WebhookMiddleware) - 1; i >= 0; i-- {
		voice = r.WebhookMiddleware[i](voice)
	}
	r.Mux.Handle("/twilio/voice", voice).Methods(http.MethodPost).Name(RouteTwilioVoice)

	r.Mux.MatcherFunc(r.assetExists).
		Methods(http.MethodGet, http.MethodHead).
		Handler(http.FileServer(http.Dir(r.AssetsDir))).
		Name(RouteAssets)

	r.Mux.HandleFunc("/token", r.TokenHandler.Token).Methods(http.MethodGet).Name(RouteToken)

	r.Mux.HandleFunc("/healthCheck", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		response := map[string]string{"status": "healthy"}
		json.NewEncoder(w).Encode(response)
	}).Methods(http.MethodGet).Name(RouteHealthCheck)

	r.Mux.Handle("/metrics", r.Metrics.Handler()).Methods(http.MethodGet).Name(RouteMetrics)

	r.Mux.PathPrefix("/").HandlerFunc(r.RenderHandler.Render).Name(RouteRender)
}

// assetExists matches requests naming a regular file under AssetsDir.
// Directories and HTML documents fall through to the render handler.
func (r *Routes) assetExists(req *http.Request, _ *mux.RouteMatch) bool {
	if r.AssetsDir == "" || strings.HasSuffix(req.URL.Path, "/") {
		return false
	}
	if strings.EqualFold(path.Ext(req.URL.Path), ".html") {
		return false
	}
	name := filepath.Join(r.AssetsDir, filepath.FromSlash(path.Clean("/"+req.URL.Path)))
	info, err := os.Stat(name)
	return err == nil && info.Mode().IsRegular()
}
