// Command scribe runs the transcription service: a WebSocket endpoint for
// live transcription sessions and a REST API over the stored results.
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/skillsenselab/scribe/internal/api"
	"github.com/skillsenselab/scribe/internal/assembly"
	"github.com/skillsenselab/scribe/internal/config"
	"github.com/skillsenselab/scribe/internal/logger"
	"github.com/skillsenselab/scribe/internal/storage"
	"github.com/skillsenselab/scribe/internal/store"
	"github.com/skillsenselab/scribe/internal/transcribe"
	"github.com/skillsenselab/scribe/internal/ws"
)

func main() {
	configFile := flag.String("config", "", "path to config file (default: ./config.yml if present)")
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		logger.NewDefault("scribe").Fatal("configuration error", map[string]interface{}{
			logger.FieldError: err.Error(),
		})
	}

	log := logger.New(&cfg.Log, cfg.Service.Name)
	log.Info("starting", map[string]interface{}{
		"environment": cfg.Service.Environment,
		"addr":        cfg.Server.Addr(),
	})

	db, err := store.Open(cfg.Database.Path, log)
	if err != nil {
		log.Fatal("database error", map[string]interface{}{logger.FieldError: err.Error()})
	}
	repo := store.NewRepository(db, log)

	backends := make([]storage.Storage, 0, 2)
	if cfg.Supabase.URL != "" {
		supabase, err := storage.NewSupabase(cfg.Supabase)
		if err != nil {
			log.Fatal("supabase error", map[string]interface{}{logger.FieldError: err.Error()})
		}
		backends = append(backends, supabase)
	}
	local, err := storage.NewLocal(cfg.Storage.LocalDir)
	if err != nil {
		log.Fatal("local storage error", map[string]interface{}{logger.FieldError: err.Error()})
	}
	backends = append(backends, local)
	uploader := storage.NewUploader(log, backends...)

	provider := assembly.NewClient(cfg.Assembly, log)
	registry := ws.NewRegistry(cfg.WS.MaxConnections, log)
	orchestrator := transcribe.New(cfg.Job, provider, repo, registry, nil, log)

	if cfg.Service.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery(), api.CORS(cfg.Server.CORSOrigins))

	api.NewHandler(repo, uploader, orchestrator, log).Register(router)
	wsHandler := ws.NewHandler(cfg.WS, registry, uploader, orchestrator, repo, log)
	router.GET("/ws", wsHandler.Handle)

	server := &http.Server{
		Addr:    cfg.Server.Addr(),
		Handler: router,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server error", map[string]interface{}{logger.FieldError: err.Error()})
		}
	case sig := <-quit:
		log.Info("shutting down", map[string]interface{}{"signal": sig.String()})
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			log.Error("shutdown error", map[string]interface{}{logger.FieldError: err.Error()})
		}
	}
	log.Info("stopped")
}
