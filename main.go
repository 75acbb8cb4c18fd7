package main

import (
	"context"
	stderrors "errors"
	"os"
	"os/signal"
	"syscall"

	"sjsage522/flooringscraper/config"
	"sjsage522/flooringscraper/internal/app"
	"sjsage522/flooringscraper/logger"
	"sjsage522/flooringscraper/services/worker"

	"github.com/joho/godotenv"
)

// main runs one scrape batch. Arguments name vendor keys to scrape; with none,
// every enabled vendor in the registry is scraped.
func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	// Load environment variables
	godotenv.Load()

	logger.Init()
	log := logger.Default

	cfg := config.LoadConfig()
	if err := cfg.Validate(); err != nil {
		log.Error().Err(err).Msg("Invalid configuration")
		return 1
	}

	log.Info().
		Str("environment", cfg.Environment).
		Str("store", cfg.StoreDriver).
		Strs("vendors", args).
		Msg("Starting scrape")

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	services, err := app.Initialize(ctx, cfg)
	if err != nil {
		log.Error().Err(err).Msg("Failed to initialize services")
		return 1
	}
	defer services.Cleanup()

	report, err := services.Worker.Run(ctx, args)
	switch {
	case stderrors.Is(err, worker.ErrNoVendors):
		log.Error().Strs("vendors", args).Msg("None of the requested vendors are known")
		return 1
	case err != nil:
		log.Warn().Err(err).Msg("Scrape interrupted")
	}

	if report != nil {
		for _, o := range report.Outcomes {
			log.Info().
				Str("vendor", o.Source).
				Str("status", o.Status).
				Int("products", o.ProductCount).
				Int("priced", o.ProductsWithPrice).
				Msg("Outcome")
		}
	}

	// vendor failures are recorded in the scrape log, not the exit code
	return 0
}
