package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ato_site/internal/admin"
	"ato_site/internal/auth"
	"ato_site/internal/cache"
	"ato_site/internal/config"
	"ato_site/internal/contact"
	"ato_site/internal/db"
	"ato_site/internal/logger"
	"ato_site/internal/mailer"
	"ato_site/internal/metrics"
	"ato_site/internal/server"
	"ato_site/internal/storage"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

func main() {
	logger.Init()
	defer logger.Log.Info("Application stopped")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Загрузка конфигурации
	cfg, err := config.Load("config.json")
	if err != nil {
		logger.Log.Fatalf("Config load error: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		logger.Log.Fatalf("Invalid config: %v", err)
	}

	// Метрики
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	if err := metrics.Register(reg); err != nil {
		logger.Log.Fatalf("Metrics register error: %v", err)
	}

	// Инициализация БД
	database, err := db.NewDB(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Log.Fatalf("DB connection error: %v", err)
	}
	defer database.Close()

	objects := storage.New(cfg.Supabase.URL, cfg.Supabase.Bucket, cfg.Supabase.ServiceKey)
	sessions := auth.New(cfg.Supabase.URL, cfg.Supabase.AnonKey, cfg.Supabase.JWTSecret)
	mail := mailer.New(cfg.EmailJS.URL, cfg.EmailJS.ServiceID, cfg.EmailJS.TemplateID, cfg.EmailJS.PublicKey, cfg.EmailJS.PrivateKey)

	// Первичная загрузка кэша в фоне и периодическое обновление
	store := cache.New(database, objects)
	go func() {
		if failed := store.Load(ctx); failed > 0 {
			logger.Log.Warnf("Initial load finished with %d failed collections", failed)
		}
	}()
	go cache.StartPolling(ctx, store, time.Duration(cfg.RefreshInterval)*time.Minute)

	srv, err := server.NewServer(server.Deps{
		DB:            database,
		Content:       store,
		Console:       admin.NewConsole(database, objects, store),
		Submitter:     contact.NewSubmitter(cfg.ContactAddress, store, mail),
		Sessions:      sessions,
		Gatherer:      reg,
		SecureCookies: cfg.SecureCookies,
	})
	if err != nil {
		logger.Log.Fatalf("Server init error: %v", err)
	}

	httpServer := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           srv.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Log.Infof("Starting HTTP server on %s", cfg.ListenAddr)
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			logger.Log.Fatalf("Server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Log.Info("Shutting down...")
	cancel()
	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()

	if err := httpServer.Shutdown(ctxShutdown); err != nil {
		logger.Log.Fatalf("Forced shutdown: %v", err)
	}
}
