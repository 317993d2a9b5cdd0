// Package app assembles the service: configuration, logging, tracing, the
// recognition pipeline, storage, the tutor, and the HTTP surface.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/yungbote/blockbridge-backend/internal/config"
	"github.com/yungbote/blockbridge-backend/internal/httpapi"
	"github.com/yungbote/blockbridge-backend/internal/llm"
	"github.com/yungbote/blockbridge-backend/internal/llm/gemini"
	llmmock "github.com/yungbote/blockbridge-backend/internal/llm/mock"
	"github.com/yungbote/blockbridge-backend/internal/llm/oaihttp"
	"github.com/yungbote/blockbridge-backend/internal/makecode"
	"github.com/yungbote/blockbridge-backend/internal/observability"
	"github.com/yungbote/blockbridge-backend/internal/platform/logger"
	"github.com/yungbote/blockbridge-backend/internal/render"
	"github.com/yungbote/blockbridge-backend/internal/store"
	"github.com/yungbote/blockbridge-backend/internal/tutor"
	"github.com/yungbote/blockbridge-backend/internal/uploads"
	"github.com/yungbote/blockbridge-backend/internal/vision"
)

type App struct {
	Log    *logger.Logger
	Config *config.Config

	server       *http.Server
	visionClient vision.Client
	uploadStore  uploads.Store
	engine       llm.Engine
	otelShutdown func(context.Context) error
}

func New(ctx context.Context) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	log, err := logger.New(cfg.Env)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	otelShutdown := observability.InitOTel(ctx, log, observability.OtelConfig{
		ServiceName: "blockbridge-backend",
		Environment: cfg.Env,
	})

	catalog, err := makecode.LoadCatalog(cfg.Pipeline.CatalogPath)
	if err != nil {
		return nil, fmt.Errorf("load block catalog: %w", err)
	}
	pipeline := makecode.NewPipeline(catalog, cfg.Pipeline.MatchThreshold, cfg.Pipeline.DedupDistancePX, log)
	log.Info("block catalog loaded", "blocks", catalog.Len())

	visionClient, err := vision.New(ctx, cfg.Vision, log)
	if err != nil {
		return nil, fmt.Errorf("init vision provider %q: %w", cfg.Vision.Provider, err)
	}

	engine, err := newEngine(ctx, cfg.LLM)
	if err != nil {
		return nil, fmt.Errorf("init llm provider %q: %w", cfg.LLM.Provider, err)
	}

	db, err := store.Open(cfg.Store, log)
	if err != nil {
		return nil, err
	}
	submissions := store.NewSubmissionRepo(db, log)

	uploadStore, err := uploads.New(ctx, cfg.Uploads, log)
	if err != nil {
		return nil, fmt.Errorf("init uploads backend %q: %w", cfg.Uploads.Backend, err)
	}

	cache, err := tutor.NewCache(cfg.Tutor, log)
	if err != nil {
		return nil, fmt.Errorf("init tutor cache %q: %w", cfg.Tutor.CacheBackend, err)
	}
	tutorService := tutor.NewService(engine, catalog, cache, cfg.LLM, cfg.Tutor, log)

	renderer, err := render.New()
	if err != nil {
		return nil, fmt.Errorf("init preview renderer: %w", err)
	}

	sessions := httpapi.NewSessionManager(cfg.Session)
	health := httpapi.NewHealthHandler(func() error {
		if catalog.Len() == 0 {
			return errors.New("block catalog empty")
		}
		return nil
	})
	programs := httpapi.NewProgramHandler(visionClient, pipeline, uploadStore, submissions, renderer, cfg.HTTP, cfg.Vision, log)
	tutorHandler := httpapi.NewTutorHandler(tutorService, submissions, log)

	router := httpapi.NewRouter(httpapi.RouterConfig{
		Env:      cfg.Env,
		HTTP:     cfg.HTTP,
		Sessions: sessions,
		Health:   health,
		Programs: programs,
		Tutor:    tutorHandler,
	}, log)

	return &App{
		Log:          log,
		Config:       cfg,
		server:       httpapi.NewServer(cfg.HTTP, router),
		visionClient: visionClient,
		uploadStore:  uploadStore,
		engine:       engine,
		otelShutdown: otelShutdown,
	}, nil
}

func newEngine(ctx context.Context, cfg config.LLMConfig) (llm.Engine, error) {
	switch cfg.Provider {
	case "oai_http":
		return oaihttp.New(cfg)
	case "gemini":
		return gemini.New(ctx, cfg)
	case "mock":
		return llmmock.New(), nil
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
}

// Run serves HTTP and runs the upload janitor until ctx is cancelled, then
// shuts both down and releases clients.
func (a *App) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.Log.Info("http server listening", "addr", a.Config.HTTP.Addr)
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		a.runJanitor(gctx)
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.Config.HTTP.ShutdownTimeout.Duration)
		defer cancel()
		return a.server.Shutdown(shutdownCtx)
	})

	err := g.Wait()
	a.close()
	return err
}

// runJanitor sweeps uploads older than the configured age. The original
// deployment grew its upload folder without bound; this keeps disk usage
// proportional to a day of classroom activity.
func (a *App) runJanitor(ctx context.Context) {
	interval := a.Config.Uploads.SweepEvery.Duration
	maxAge := a.Config.Uploads.MaxAge.Duration
	if interval <= 0 || maxAge <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cutoff := time.Now().Add(-maxAge)
			removed, err := a.uploadStore.Sweep(ctx, cutoff)
			if err != nil {
				a.Log.Warn("upload sweep failed", "error", err)
				continue
			}
			if removed > 0 {
				a.Log.Info("upload sweep", "removed", removed)
			}
		}
	}
}

func (a *App) close() {
	if err := a.visionClient.Close(); err != nil {
		a.Log.Warn("close vision client", "error", err)
	}
	if err := a.uploadStore.Close(); err != nil {
		a.Log.Warn("close upload store", "error", err)
	}
	if closer, ok := a.engine.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			a.Log.Warn("close llm engine", "error", err)
		}
	}
	if a.otelShutdown != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.otelShutdown(ctx); err != nil {
			a.Log.Warn("otel shutdown", "error", err)
		}
	}
	a.Log.Sync()
}
