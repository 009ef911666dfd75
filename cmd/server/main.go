package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ai-orchestrator-go/internal/config"
	"ai-orchestrator-go/internal/constants"
	"ai-orchestrator-go/internal/credential"
	"ai-orchestrator-go/internal/logging"
	"ai-orchestrator-go/internal/lro"
	"ai-orchestrator-go/internal/monitoring"
	tracing "ai-orchestrator-go/internal/monitoring/tracing"
	"ai-orchestrator-go/internal/proxy"
	"ai-orchestrator-go/internal/rotator"
	srv "ai-orchestrator-go/internal/server"
	"ai-orchestrator-go/internal/stats"
	"ai-orchestrator-go/internal/storage"
	"ai-orchestrator-go/internal/telemetry"
	"ai-orchestrator-go/internal/token"
	"ai-orchestrator-go/internal/version"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

func main() {
	configPath := flag.String("config", "config.yaml", "Path to configuration file")
	debug := flag.Bool("debug", false, "Enable debug mode")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.WithError(err).Fatal("Failed to load configuration")
	}
	if *debug {
		cfg.Server.Debug = true
	}
	if err := cfg.ExpandPaths(); err != nil {
		log.WithError(err).Fatal("Invalid configuration paths")
	}
	if err := cfg.Validate(); err != nil {
		log.WithError(err).Fatal("Invalid configuration")
	}
	if err := cfg.EnsureDirectories(); err != nil {
		log.WithError(err).Fatal("Failed to prepare credential directories")
	}
	if err := logging.Setup(cfg); err != nil {
		log.WithError(err).Fatal("Failed to configure logging")
	}

	log.Infof("Starting ai-orchestrator %s (config: %s)", version.Version, *configPath)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	traceShutdown, err := tracing.Init(ctx)
	if err != nil {
		log.WithError(err).Warn("Failed to initialize tracing")
	}
	defer func() {
		if err := traceShutdown(context.Background()); err != nil {
			log.WithError(err).Warn("Failed to shutdown tracing")
		}
	}()

	// One shared upstream client; keep-alives sized for the retry loop.
	upstreamClient := &http.Client{
		Timeout: constants.UpstreamTimeout,
		Transport: &http.Transport{
			MaxIdleConns:        constants.UpstreamIdlePerHost * 2,
			MaxIdleConnsPerHost: constants.UpstreamIdlePerHost,
			IdleConnTimeout:     90 * time.Second,
		},
	}

	var decryptor credential.Decryptor
	if cfg.Paths.EncryptionKeyFile != "" {
		dec, err := credential.NewFernetDecryptor(cfg.Paths.EncryptionKeyFile)
		if err != nil {
			log.WithError(err).Warn("Encryption key unavailable; encrypted key files will not load")
		} else {
			decryptor = dec
		}
	}

	geminiRotator := rotator.NewGemini(func() ([]credential.GeminiKey, error) {
		return credential.LoadGeminiKeys(cfg.Paths.GeminiKeysFile(), decryptor)
	})
	vertexRotator := rotator.NewVertex(func() ([]*credential.Vertex, error) {
		return credential.LoadVertexCredentials(ctx, cfg.Paths.VertexCredsDir(), upstreamClient)
	})
	tokenCacher := token.NewCacher()

	reload := func() {
		monitoring.CredentialReloads.WithLabelValues("watcher").Inc()
		if err := geminiRotator.Reload(); err != nil {
			log.WithError(err).Error("Gemini reload failed")
		}
		if err := vertexRotator.Reload(); err != nil {
			log.WithError(err).Error("Vertex reload failed")
		}
		tokenCacher.Reset()
	}
	err = credential.WatchDirectories(ctx, reload,
		cfg.Paths.GeminiCredsDir(), cfg.Paths.VertexCredsDir())
	if err != nil {
		log.WithError(err).Warn("Credential watcher unavailable; reload via admin endpoint only")
	}

	lroCache := buildLROCache(cfg)

	var db *storage.PostgresStore
	if cfg.Services.DatabaseURL != "" {
		db, err = storage.NewPostgresStore(cfg.Services.DatabaseURL)
		if err != nil {
			log.WithError(err).Error("Telemetry database unavailable; requests will not be recorded")
		} else if err := db.Initialize(ctx); err != nil {
			log.WithError(err).Error("Migration failure; closing telemetry database")
			_ = db.Close()
			db = nil
		}
	} else {
		log.Warn("No database configured; telemetry disabled")
	}

	var recorder *telemetry.Recorder
	if db != nil {
		recorder = telemetry.NewRecorder(db)
	} else {
		recorder = telemetry.NewRecorder(nil)
	}
	go recorder.Run(ctx)

	statsService := stats.NewService()
	gateway := proxy.NewGateway(cfg, upstreamClient, geminiRotator, vertexRotator,
		tokenCacher, lroCache, recorder, statsService)

	app := &srv.App{
		Cfg:     cfg,
		Gateway: gateway,
		Gemini:  geminiRotator,
		Vertex:  vertexRotator,
		Tokens:  tokenCacher,
		LRO:     lroCache,
		Stats:   statsService,
		Auth:    srv.NewAuthenticator(cfg.Security.AdminUsername, cfg.Security.AdminPasswordHash),
	}
	if db != nil {
		app.DB = db
	}
	router := srv.NewRouter(app)

	httpServer := &http.Server{
		Addr:    net.JoinHostPort("", fmt.Sprint(cfg.Server.Port)),
		Handler: router,
	}
	go func() {
		log.Infof("Listening on :%d", cfg.Server.Port)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("HTTP server failed")
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Info("Shutdown signal received")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), constants.ServerShutdownTimeout)
	defer cancelShutdown()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("Forced shutdown with requests in flight")
	}

	cancel() // stops the watcher and drains the telemetry queue
	upstreamClient.CloseIdleConnections()
	if db != nil {
		// Give the recorder a moment to flush before the pool closes.
		time.Sleep(200 * time.Millisecond)
		_ = db.Close()
	}
	log.Info("Shutdown complete")
}

func buildLROCache(cfg *config.Config) lro.Cache {
	if cfg.LRO.Backend == "redis" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.LRO.RedisAddr,
			Password: cfg.LRO.RedisPassword,
			DB:       cfg.LRO.RedisDB,
		})
		ttl := time.Duration(cfg.LRO.TTLHours) * time.Hour
		log.Infof("Using Redis operation cache at %s (ttl %s)", cfg.LRO.RedisAddr, ttl)
		return lro.NewRedisCache(client, ttl)
	}
	max := cfg.LRO.MaxEntries
	if max <= 0 {
		max = constants.LROCacheMaxEntries
	}
	return lro.NewMemoryCache(max)
}
