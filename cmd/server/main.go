package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"player-orchestrator/internal/platform/config"
	"player-orchestrator/internal/platform/logger"
	"player-orchestrator/internal/platform/metrics"
	"player-orchestrator/internal/player"

	"github.com/go-chi/chi/v5"
)

const shutdownTimeout = 10 * time.Second

func main() {
	_ = config.Load()

	port := config.GetEnv("PORT", "8080")
	logLevel := config.GetEnv("LOG_LEVEL", "info")
	logFormat := config.GetEnv("LOG_FORMAT", "json")

	defaults := player.SecureURLConfig{
		HostURL:              config.GetEnv("STREAM_HOST_URL", ""),
		URLTemplate:          config.GetEnv("STREAM_URL_TEMPLATE", ""),
		Secret:               config.GetEnv("STREAM_SECRET", ""),
		IncludeClientIP:      config.GetEnvBool("STREAM_INCLUDE_CLIENT_IP", false),
		TokenTTLMinutes:      config.GetEnvInt("STREAM_TOKEN_TTL_MINUTES", player.DefaultTokenTTLMinutes),
		StreamLinkFieldName:  config.GetEnv("STREAM_LINK_FIELD_NAME", ""),
		PosterImageFieldName: config.GetEnv("POSTER_IMAGE_FIELD_NAME", ""),
	}
	adoptionAttempts := config.GetEnvInt("ADOPTION_MAX_ATTEMPTS", 5)
	adoptionBaseDelay := time.Duration(config.GetEnvInt("ADOPTION_BASE_DELAY_MS", 100)) * time.Millisecond

	log := logger.New(logLevel, logFormat)
	met := metrics.New()

	doc := player.NewHostDocument()
	reg := player.NewInMemoryRegistry()
	adapter := player.NewDefaultElementAdapter(doc, logger.Component(log, "adapter"), met, adoptionAttempts, adoptionBaseDelay)
	engines := player.NewHTTPEngineFactory(nil, logger.Component(log, "engine"))

	ctrl := player.NewController(player.ControllerDeps{
		Registry:  reg,
		Document:  doc,
		Adapter:   adapter,
		Engines:   engines,
		Security:  player.NewSecurityObserver(),
		URLs:      player.NewSecureURLBuilder(),
		EngineCfg: player.DefaultEngineConfig(),
		Defaults:  defaults,
		Log:       logger.Component(log, "controller"),
		Metrics:   met,
	})
	h := player.NewHandler(ctrl, doc, log, met)

	r := chi.NewRouter()
	r.Use(logger.RequestLogger(log))
	r.Use(metrics.RequestMiddleware(met))
	r.Get("/metrics", func(w http.ResponseWriter, req *http.Request) {
		met.Handler(func() { met.SetActiveSessions(reg.ActiveSessionCount()) }).ServeHTTP(w, req)
	})
	r.Post("/elements", h.RegisterElement)
	r.Post("/players", h.BindPlayer)
	r.Route("/players/{player_id}", func(r chi.Router) {
		r.Get("/", h.GetPlayer)
		r.Delete("/", h.UnbindPlayer)
		r.Put("/source", h.UpdateSource)
		r.Post("/play", h.Play)
		r.Post("/pause", h.Pause)
		r.Post("/toggle-format", h.ToggleFormat)
		r.Post("/events", h.PostEvent)
	})

	addr := ":" + port
	srv := &http.Server{Addr: addr, Handler: r}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	log.Info("server starting",
		"port", port,
		"log_level", logLevel,
		"adoption_max_attempts", adoptionAttempts,
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Info("shutdown signal received, draining connections")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("shutdown error", "error", err)
		os.Exit(1)
	}

	log.Info("server stopped")
}
