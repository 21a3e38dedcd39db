package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"golang.org/x/time/rate"
	"gopkg.in/natefinch/lumberjack.v2"

	"aiolists/api"
	"aiolists/config"
	"aiolists/handlers"
	"aiolists/models"
	"aiolists/services/catalog"
	"aiolists/services/manifest"
	"aiolists/services/mdblist"
	"aiolists/services/metadata"
	"aiolists/services/tmdb"
	"aiolists/services/trakt"
)

func main() {
	portOverride := flag.Int("port", 0, "override server port from config")
	flag.Parse()

	configPath := os.Getenv("AIOLISTS_CONFIG")
	if configPath == "" {
		configPath = filepath.Join("cache", "settings.json")
	}

	cfgManager := config.NewManager(configPath)
	settings, err := cfgManager.Load()
	if err != nil {
		log.Fatalf("failed to load settings: %v", err)
	}

	if settings.Log.File != "" {
		logDir := filepath.Dir(settings.Log.File)
		if err := os.MkdirAll(logDir, 0o755); err != nil {
			log.Printf("Warning: could not create log directory %s: %v", logDir, err)
		} else {
			fileWriter := &lumberjack.Logger{
				Filename:   settings.Log.File,
				MaxSize:    settings.Log.MaxSize,
				MaxBackups: settings.Log.MaxBackups,
				MaxAge:     settings.Log.MaxAge,
				Compress:   settings.Log.Compress,
			}
			multiWriter := io.MultiWriter(os.Stdout, fileWriter)
			log.SetOutput(multiWriter)
			log.SetFlags(log.LstdFlags | log.Lshortfile)
			slog.SetDefault(slog.New(slog.NewTextHandler(multiWriter, &slog.HandlerOptions{Level: logLevel(settings.Log.Level)})))
			log.Printf("Logging to file: %s", settings.Log.File)
		}
	}

	if *portOverride > 0 {
		settings.Server.Port = *portOverride
	}

	tmdbClient := tmdb.NewClient(tmdb.Options{
		DefaultBearer: settings.Providers.TMDBBearerToken,
		RatePerSecond: settings.RateLimit.UpstreamPerSecond,
		CacheSize:     settings.Cache.MaxEntries,
		IDTTL:         settings.Cache.IDTTL(),
		MetadataTTL:   settings.Cache.MetadataTTL(),
		NegativeTTL:   settings.Cache.NegativeTTL(),
	})
	traktClient := trakt.NewClient(trakt.Options{
		ClientID:      settings.Providers.TraktClientID,
		ClientSecret:  settings.Providers.TraktClientSecret,
		RedirectURI:   settings.Providers.TraktRedirectURI,
		RatePerSecond: settings.RateLimit.UpstreamPerSecond,
		Resolver:      tmdbClient,
	})
	if !traktClient.HasCredentials() {
		slog.Warn("trakt client id missing; trakt catalogs and search are disabled")
	}
	tokens := trakt.NewTokenSource(traktClient)
	mdblistClient := mdblist.NewClient(mdblist.Options{RatePerSecond: settings.RateLimit.UpstreamPerSecond})

	metadataService := metadata.NewService(metadata.Options{
		TMDB:              tmdbClient,
		FanartAPIKey:      settings.Providers.FanartAPIKey,
		BatchSize:         settings.Enrichment.BatchSize,
		CinemetaBatchSize: settings.Enrichment.CinemetaBatchSize,
		CacheSize:         settings.Cache.MaxEntries,
		ArtworkTTL:        settings.Cache.MetadataTTL(),
		NegativeTTL:       settings.Cache.NegativeTTL(),
	})

	router := catalog.NewRouter(catalog.Options{
		MDBList:  mdblistClient,
		Trakt:    traktClient,
		TMDB:     tmdbClient,
		Tokens:   tokens,
		Cinemeta: metadataService,
	})
	builder := manifest.NewBuilder(manifest.Options{
		MDBList:     mdblistClient,
		Trakt:       traktClient,
		TMDB:        tmdbClient,
		Tokens:      tokens,
		Search:      router,
		CacheTTL:    settings.Manifest.CacheTTL(),
		CacheSize:   settings.Manifest.MaxEntries,
		Concurrency: settings.Manifest.Concurrency,
	})

	addonHandler := handlers.NewAddonHandler(builder, router, metadataService)
	addonHandler.FailurePolicy = models.PrimaryFailurePolicy(settings.Enrichment.OnPrimaryFailure)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var limiter *api.IPRateLimiter
	if settings.RateLimit.RequestsPerSecond > 0 {
		limiter = api.NewIPRateLimiter(rate.Limit(settings.RateLimit.RequestsPerSecond), settings.RateLimit.Burst)
		go limiter.Run(ctx)
	}

	r := mux.NewRouter()
	api.Register(r, addonHandler, limiter)

	addr := fmt.Sprintf("%s:%d", settings.Server.Host, settings.Server.Port)
	slog.Info("aiolists starting",
		"addr", addr,
		"config", cfgManager.Path(),
		"tmdb", tmdbClient.Configured(""),
		"fanart", settings.Providers.FanartAPIKey != "",
		"rateLimit", settings.RateLimit.RequestsPerSecond,
	)

	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	shutdownChan := make(chan os.Signal, 1)
	signal.Notify(shutdownChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	<-shutdownChan
	slog.Info("shutdown signal received")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}
	builder.Invalidate()

	slog.Info("shutdown complete")
}

func logLevel(name string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(name)); err != nil {
		return slog.LevelInfo
	}
	return level
}
