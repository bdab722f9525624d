package handlers

import (
	"net/http"

	Iservices "realtime-voice-gateway/internal/domain/interfaces/services"
	"realtime-voice-gateway/internal/infra/logger"
)

type RenderHandlers struct {
	Logger            *logger.Logger
	PageRenderService Iservices.IPageRenderService
	ErrorHandler      *ErrorHandler
}

func NewRenderHandlers(logger *logger.Logger, pageRenderService Iservices.IPageRenderService, errorHandler *ErrorHandler) *RenderHandlers {
	return &RenderHandlers{Logger: logger, PageRenderService: pageRenderService, ErrorHandler: errorHandler}
}

// Render server-side renders the client application for the requested URL.
// Any pipeline failure is handed to the ErrorHandler.
func (th *RenderHandlers) Render(w http.ResponseWriter, r *http.Request) {
	page, err := th.PageRenderService.RenderPage(r.URL.RequestURI())
	if err != nil {
		th.ErrorHandler.ServeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/html")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(page))
}
