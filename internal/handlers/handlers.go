package handlers

import (
	"context"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"sync"

	"github.com/abrezinsky/lunchbot/internal/logger"
	"github.com/abrezinsky/lunchbot/internal/router"
	"github.com/abrezinsky/lunchbot/internal/services"
	"github.com/abrezinsky/lunchbot/internal/websocket"
)

// NewStaticServer creates a static file server from an fs.FS
func NewStaticServer(staticFS fs.FS) http.Handler {
	return http.FileServer(http.FS(staticFS))
}

// Dispatcher runs chat actions and scheduled triggers
type Dispatcher interface {
	Dispatch(ctx context.Context, req router.Request) router.Reply
	Trigger(ctx context.Context, name string) router.TriggerResult
}

// Options holds transport settings
type Options struct {
	// BaseURL is the public address the survey QR code points at
	BaseURL string
	// BotUserID is the bot's Slack user, used to spot mentions
	BotUserID string
	// SigningSecret verifies Slack requests when set
	SigningSecret string
}

// Templates holds all parsed HTML templates
type Templates struct {
	Survey *template.Template
}

// Handlers holds all HTTP handler dependencies
type Handlers struct {
	Survey       services.SurveyServicer
	Catalog      services.CatalogServicer
	Dispatcher   Dispatcher
	Hub          *websocket.Hub
	Log          logger.Logger
	interpreter  router.Interpreter
	opts         Options
	templates    *Templates
	staticServer http.Handler

	// inflight tracks chat dispatches still running after the HTTP ack
	inflight sync.WaitGroup
}

// New creates a new Handlers instance with all dependencies
func New(
	survey services.SurveyServicer,
	catalog services.CatalogServicer,
	dispatcher Dispatcher,
	hub *websocket.Hub,
	templatesFS fs.FS,
	staticServer http.Handler,
	log logger.Logger,
	opts Options,
) (*Handlers, error) {
	templates, err := loadTemplates(templatesFS)
	if err != nil {
		return nil, fmt.Errorf("failed to load templates: %w", err)
	}

	h := NewForTesting(survey, catalog, dispatcher, log, opts)
	h.Hub = hub
	h.templates = templates
	h.staticServer = staticServer
	return h, nil
}

// NewForTesting creates a Handlers instance without templates or a live feed
// (for testing API endpoints)
func NewForTesting(
	survey services.SurveyServicer,
	catalog services.CatalogServicer,
	dispatcher Dispatcher,
	log logger.Logger,
	opts Options,
) *Handlers {
	return &Handlers{
		Survey:      survey,
		Catalog:     catalog,
		Dispatcher:  dispatcher,
		Log:         log,
		interpreter: router.Interpreter{BotUserID: opts.BotUserID},
		opts:        opts,
	}
}

// Wait blocks until chat dispatches accepted so far have finished
func (h *Handlers) Wait() {
	h.inflight.Wait()
}

// loadTemplates parses all templates once at startup
func loadTemplates(templatesFS fs.FS) (*Templates, error) {
	t := &Templates{}
	var err error

	if t.Survey, err = template.ParseFS(templatesFS, "survey.html"); err != nil {
		return nil, fmt.Errorf("survey template: %w", err)
	}

	return t, nil
}
