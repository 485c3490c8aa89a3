package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"budget/internal/amqp"
	"budget/internal/app"
	"budget/internal/cache"
	"budget/internal/cli"
	apphttp "budget/internal/http"
	"budget/internal/inference"
	applog "budget/internal/log"
	"budget/internal/services"
	"budget/internal/storage"
	"budget/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger()
	cfg := cli.LoadAndValidateConfig(logger)

	ctx := context.Background()

	store := cli.InitBackend(ctx, logger, cfg)
	persistence := storage.NewPersistence(store.Backend, logger.WithComponent(applog.ComponentStorage))

	// Change events are optional; without a broker mutations stay local.
	var (
		publisher services.EventPublisher
		relay     *worker.EventRelay
		broker    *amqp.Client
	)
	if cfg.AMQPURL != "" {
		var err error
		broker, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("AMQP unavailable, change events disabled", applog.FieldError, err)
		} else {
			relay = worker.NewEventRelay(broker, 128, logger.WithComponent(applog.ComponentAMQP))
			relay.Start()
			publisher = relay
			logger.Info("Publishing change events", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
		}
	}

	txService := services.NewTransactionService(ctx, persistence, publisher, logger.WithComponent(applog.ComponentStore))

	inferenceClient := inference.NewClient(inference.Config{
		URL:        cfg.InferenceURL,
		APIKey:     cfg.InferenceAPIKey,
		Timeout:    cfg.InferenceTimeout,
		MaxRetries: cfg.InferenceMaxRetries,
	}, logger.WithComponent(applog.ComponentInference))
	if cfg.InferenceAPIKey == "" {
		logger.Warn("INFERENCE_API_KEY not set, remote insights will likely fall back to the local summary")
	}

	suggestions := cache.NewLRUCache[string](cfg.SuggestionCacheSize, cfg.SuggestionCacheTTL)
	janitor := cache.NewJanitor(func(removed int) {
		st := suggestions.Stats()
		logger.Debug("Suggestion cache cleaned",
			"removed", removed,
			"size", suggestions.Size(),
			"hits", st.Hits,
			"misses", st.Misses,
			"evictions", st.Evictions)
	}, suggestions)
	janitor.Start(5 * time.Minute)

	ctrl := app.New(ctx, app.Deps{
		Transactions: txService,
		Insights:     inference.NewInsightClient(inferenceClient, cfg.InsightsAgentID, logger.WithComponent(applog.ComponentInsights)),
		Suggester:    inference.NewCategoryClient(inferenceClient, cfg.CategoryAgentID, suggestions, logger.WithComponent(applog.ComponentSuggestion)),
		Preferences:  persistence,
		Taxonomy:     store.Backend,
		Logger:       logger.WithComponent(applog.ComponentController),
	})

	srv := apphttp.NewServer(":"+cfg.Port, ctrl, logger.WithComponent(applog.ComponentHTTP))

	done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", applog.FieldError, err)
		}
		if err := ctrl.Close(ctx); err != nil {
			logger.Warn("Insight generation still running at shutdown", applog.FieldError, err)
		}
		janitor.Stop()
		if relay != nil {
			if err := relay.Stop(ctx); err != nil {
				logger.Warn("Pending change events dropped", applog.FieldError, err)
			}
		}
		if broker != nil {
			_ = broker.Close()
		}
		if store.Cleanup != nil {
			if err := store.Cleanup(); err != nil {
				logger.Error("Backend cleanup error", applog.FieldError, err)
			}
		}
	})

	logger.Info("Starting budget server",
		applog.FieldOperation, applog.OpStartup,
		"port", cfg.Port,
		"backend", cfg.DataBackend,
		"transactions", txService.Len())
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", applog.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	<-done
	logger.Info("Server stopped gracefully", applog.FieldOperation, applog.OpShutdown)
}
