// Package app wires the lunchbot components together and runs the HTTP server.
package app

import (
	"context"
	stderrors "errors"
	"fmt"
	"io/fs"
	"math/rand/v2"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/abrezinsky/lunchbot/internal/config"
	"github.com/abrezinsky/lunchbot/internal/handlers"
	"github.com/abrezinsky/lunchbot/internal/logger"
	"github.com/abrezinsky/lunchbot/internal/repository"
	"github.com/abrezinsky/lunchbot/internal/router"
	"github.com/abrezinsky/lunchbot/internal/scheduler"
	"github.com/abrezinsky/lunchbot/internal/services"
	"github.com/abrezinsky/lunchbot/internal/store"
	"github.com/abrezinsky/lunchbot/internal/websocket"
	"github.com/abrezinsky/lunchbot/internal/weekclock"
	"github.com/abrezinsky/lunchbot/pkg/chat"
)

const shutdownTimeout = 10 * time.Second

// botIdentifier is implemented by notifiers that can look up the bot's own user
type botIdentifier interface {
	BotUserID(ctx context.Context) (string, error)
}

// App holds all application dependencies
type App struct {
	cfg       *config.Config
	log       logger.Logger
	store     store.Store
	handlers  *handlers.Handlers
	hub       *websocket.Hub
	scheduler *scheduler.Scheduler
	baseURL   string

	closeOnce sync.Once
}

// New opens the configured store and builds every component on top of it
func New(ctx context.Context, cfg *config.Config, log logger.Logger, notifier chat.Notifier, templatesFS, staticFS fs.FS) (*App, error) {
	st, err := openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	a, err := build(ctx, cfg, log, st, notifier, templatesFS, staticFS)
	if err != nil {
		st.Close()
		return nil, err
	}
	return a, nil
}

func build(ctx context.Context, cfg *config.Config, log logger.Logger, st store.Store, notifier chat.Notifier, templatesFS, staticFS fs.FS) (*App, error) {
	repo := repository.New(st)

	rng := rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), rand.Uint64()))
	surveyService := services.NewSurveyService(log, repo, weekclock.Real(), rng)
	catalogService := services.NewCatalogService(log, repo)

	if cfg.CatalogFile != "" {
		n, err := catalogService.SeedFromFile(ctx, cfg.CatalogFile)
		if err != nil {
			return nil, fmt.Errorf("failed to seed catalog: %w", err)
		}
		log.Info("Catalog loaded", "file", cfg.CatalogFile, "options", n)
	}

	botUserID := cfg.BotUserID
	if botUserID == "" {
		botUserID = lookupBotUser(ctx, log, notifier)
	}

	rt := router.New(log, surveyService, notifier, router.Config{
		SurveyChannel: cfg.SurveyChannel,
		Timeout:       cfg.DispatchTimeout,
		MessageOptions: []chat.MessageOption{
			chat.WithIconEmoji(cfg.IconEmoji),
			chat.WithUsername(cfg.Username),
		},
	})

	hub := websocket.New(log, surveyService)
	hub.Start()
	surveyService.SetBroadcaster(hub)

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = fmt.Sprintf("http://%s%s/", lanIP(systemNetwork{}), cfg.Addr())
	}

	h, err := handlers.New(
		surveyService,
		catalogService,
		rt,
		hub,
		templatesFS,
		handlers.NewStaticServer(staticFS),
		log,
		handlers.Options{
			BaseURL:       baseURL,
			BotUserID:     botUserID,
			SigningSecret: cfg.SigningSecret,
		},
	)
	if err != nil {
		hub.Stop()
		return nil, fmt.Errorf("failed to initialize handlers: %w", err)
	}

	loc, err := cfg.Location()
	if err != nil {
		hub.Stop()
		return nil, err
	}
	sched := scheduler.New(log, rt, loc)
	if err := sched.AddAll(cfg.Schedules); err != nil {
		hub.Stop()
		return nil, err
	}

	return &App{
		cfg:       cfg,
		log:       log,
		store:     st,
		handlers:  h,
		hub:       hub,
		scheduler: sched,
		baseURL:   baseURL,
	}, nil
}

func openStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	switch cfg.Store {
	case config.StoreMemory:
		return store.NewMemory(), nil
	case config.StoreSQLite:
		s, err := store.NewSQLite(cfg.DBPath)
		if err != nil {
			return nil, err
		}
		return s, nil
	case config.StoreRedis:
		r, err := store.NewRedis(ctx, store.RedisOptions{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			Key:      cfg.RedisKey,
		})
		if err != nil {
			return nil, err
		}
		return r, nil
	}
	return nil, fmt.Errorf("unknown store %q", cfg.Store)
}

func lookupBotUser(ctx context.Context, log logger.Logger, notifier chat.Notifier) string {
	id, ok := notifier.(botIdentifier)
	if !ok {
		return ""
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	user, err := id.BotUserID(ctx)
	if err != nil {
		log.Warn("Could not look up bot user, mentions will be ignored", "error", err)
		return ""
	}
	log.Info("Bot user resolved", "user", user)
	return user
}

// Router returns the configured HTTP router
func (a *App) Router() chi.Router {
	return a.handlers.Router()
}

// BaseURL is the address the survey page is served from
func (a *App) BaseURL() string {
	return a.baseURL
}

// Run listens on the configured port and serves until ctx is cancelled
func (a *App) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", a.cfg.Addr())
	if err != nil {
		return err
	}
	return a.Serve(ctx, ln)
}

// Serve starts the scheduler and serves HTTP on ln until ctx is cancelled,
// then shuts the server down gracefully
func (a *App) Serve(ctx context.Context, ln net.Listener) error {
	server := &http.Server{
		Handler:           a.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	a.scheduler.Start()
	a.log.Info("Server starting", "addr", ln.Addr().String(), "url", a.baseURL, "store", a.cfg.Store)

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.Serve(ln)
	}()

	select {
	case err := <-serveErr:
		return err
	case <-ctx.Done():
	}

	a.log.Info("Server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-serveErr; err != nil && !stderrors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Close stops background work, waits for in-flight chat messages and
// closes the store. It is safe to call more than once.
func (a *App) Close() error {
	var err error
	a.closeOnce.Do(func() {
		a.scheduler.Stop()
		a.handlers.Wait()
		a.hub.Stop()
		err = a.store.Close()
	})
	return err
}
