package services

import (
	"bytes"
	"fmt"
	"html/template"
	"net/url"
	"os"
	"strings"

	"realtime-voice-gateway/internal/domain/dto"
	"realtime-voice-gateway/internal/infra/logger"

	"github.com/sirupsen/logrus"
)

// SSROutlet is the placeholder in the base template that receives the rendered app.
const SSROutlet = "<!--ssr-outlet-->"

// Render pipeline stages, reported through RenderError.
const (
	StageReadTemplate = "read-template"
	StageTransform    = "transform"
	StageLoadEntry    = "load-entry"
	StageRender       = "render"
	StageSubstitute   = "substitute"
)

// RenderError records which step of the render pipeline failed.
type RenderError struct {
	Stage string
	Path  string
	Err   error
}

func (e *RenderError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("render %s: %v", e.Stage, e.Err)
	}
	return fmt.Sprintf("render %s (%s): %v", e.Stage, e.Path, e.Err)
}

func (e *RenderError) Unwrap() error { return e.Err }

// PageRenderService renders the client application in development mode: the base
// template and the render entry are read from disk on every request, so edits are
// picked up without a restart.
type PageRenderService struct {
	Logger       *logger.Logger
	TemplatePath string
	EntryPath    string
	PublicVars   map[string]string
}

func NewPageRenderService(logger *logger.Logger, templatePath, entryPath string, publicVars map[string]string) *PageRenderService {
	return &PageRenderService{
		Logger:       logger,
		TemplatePath: templatePath,
		EntryPath:    entryPath,
		PublicVars:   publicVars,
	}
}

// RenderPage produces the full HTML document for requestURL.
func (th *PageRenderService) RenderPage(requestURL string) (string, error) {
	raw, err := os.ReadFile(th.TemplatePath)
	if err != nil {
		return "", &RenderError{Stage: StageReadTemplate, Path: th.TemplatePath, Err: err}
	}

	page, err := TransformIndexHTML(requestURL, string(raw), th.PublicVars)
	if err != nil {
		return "", &RenderError{Stage: StageTransform, Path: th.TemplatePath, Err: err}
	}

	entry, err := template.ParseFiles(th.EntryPath)
	if err != nil {
		return "", &RenderError{Stage: StageLoadEntry, Path: th.EntryPath, Err: err}
	}

	var fragment bytes.Buffer
	if err := entry.Execute(&fragment, newRenderContext(requestURL)); err != nil {
		return "", &RenderError{Stage: StageRender, Path: th.EntryPath, Err: err}
	}

	if !strings.Contains(page, SSROutlet) {
		return "", &RenderError{
			Stage: StageSubstitute,
			Path:  th.TemplatePath,
			Err:   fmt.Errorf("template has no %s placeholder", SSROutlet),
		}
	}

	th.Logger.Debug("Rendered page", logrus.Fields{"url": requestURL, "fragment_bytes": fragment.Len()})
	return strings.ReplaceAll(page, SSROutlet, fragment.String()), nil
}

func newRenderContext(requestURL string) dto.RenderContext {
	rc := dto.RenderContext{URL: requestURL, Path: requestURL, Query: url.Values{}}
	if u, err := url.ParseRequestURI(requestURL); err == nil {
		rc.Path = u.Path
		rc.Query = u.Query()
	}
	return rc
}
