package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"stagesmart/internal/adapter/repo"
	"stagesmart/internal/http/handlers"
	"stagesmart/internal/http/httpapi"
	"stagesmart/internal/infra"
	"stagesmart/internal/infra/geoip"
	"stagesmart/internal/ledger"
	"stagesmart/internal/providers/engine"
	"stagesmart/internal/providers/vision"
	"stagesmart/internal/staging"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	// Persistence is optional: without DATABASE_URL the ledger lives in
	// process memory and attempt records are dropped.
	var (
		creditLedger ledger.Ledger = ledger.NewMemory(cfg.StartingCredits)
		recorder     staging.Recorder
		generations  handlers.GenerationLister
	)
	ctx := context.Background()
	if cfg.DatabaseURL != "" {
		dbpool, err := infra.NewDBPool(ctx, cfg)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect database")
		}
		defer dbpool.Close()
		if err := infra.Migrate(ctx, dbpool, logger); err != nil {
			logger.Fatal().Err(err).Msg("failed to apply schema")
		}
		creditLedger = repo.NewLedger(dbpool, cfg.StartingCredits)
		generationRepo := repo.NewGeneration(dbpool)
		recorder = generationRepo
		generations = generationRepo
	}

	gemini := engine.NewGemini(engine.GeminiOptions{
		APIKey:  cfg.GeminiAPIKey,
		BaseURL: cfg.GeminiBaseURL,
		Model:   cfg.GeminiModel,
	})
	replicate := engine.NewReplicate(engine.ReplicateOptions{
		APIToken: cfg.ReplicateAPIToken,
		BaseURL:  cfg.ReplicateBaseURL,
		Model:    cfg.ReplicateModel,
	})
	orchestrator := staging.NewOrchestrator(cfg.EngineTimeout, logger, gemini, replicate)
	pipeline := staging.NewPipeline(orchestrator, creditLedger, recorder, logger)

	classifier := vision.NewClassifier(vision.NewAnthropicDescriber(vision.AnthropicOptions{
		APIKey:  cfg.AnthropicAPIKey,
		Model:   cfg.AnthropicModel,
		BaseURL: cfg.AnthropicBaseURL,
	}))

	resolver, err := geoip.NewResolver(cfg.GeoIPDBPath)
	if err != nil {
		logger.Warn().Err(err).Msg("geoip resolver unavailable")
	}

	app := handlers.NewApp(logger, pipeline, classifier, creditLedger, generations)
	if mode, err := staging.ParseMode(cfg.ActiveEngine); err == nil {
		app.DefaultMode = mode
	} else {
		logger.Warn().Str("active_engine", cfg.ActiveEngine).Msg("unknown ACTIVE_ENGINE, defaulting to both")
	}

	router := httpapi.NewRouter(app, httpapi.RouterOptions{
		Logger:      logger,
		CORSOrigins: cfg.CORSOrigins,
		GeoIP:       resolver,
	})
	server := infra.NewHTTPServer(cfg, router)

	go func() {
		logger.Info().Msgf("API listening on :%s", cfg.Port)
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}
	logger.Info().Msg("server stopped")
}
