// Package pushgateway assembles the HTTP + Pub/Sub service around a Kit:
// registration and subscription endpoints in the front, a streaming send
// pipeline in the back.
package pushgateway

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/illmade-knight/go-dataflow/pkg/messagepipeline"
	"github.com/tinywideclouds/go-microservice-base/pkg/microservice"
	"github.com/tinywideclouds/go-microservice-base/pkg/middleware"

	"github.com/tinywideclouds/go-push-kit/internal/api"
	"github.com/tinywideclouds/go-push-kit/internal/pipeline"
	"github.com/tinywideclouds/go-push-kit/pkg/push"
	"github.com/tinywideclouds/go-push-kit/pushgateway/config"
	"github.com/tinywideclouds/go-push-kit/pushkit"
	kitconfig "github.com/tinywideclouds/go-push-kit/pushkit/config"
)

type Wrapper struct {
	*microservice.BaseServer
	pipelineService *messagepipeline.StreamingService[push.SendRequest]
	kit             *pushkit.Kit
	logger          *slog.Logger
}

// New assembles the service around an already constructed (not yet
// initialized) Kit.
func New(
	cfg *config.Config,
	consumer messagepipeline.MessageConsumer,
	kit *pushkit.Kit,
	authMiddleware func(http.Handler) http.Handler,
	logger *slog.Logger,
) (*Wrapper, error) {

	// 1. Base Server
	baseServer := microservice.NewBaseServer(logger, cfg.ListenAddr)

	// 2. Processor
	processor := pipeline.NewProcessor(kit, logger)

	// 3. Pipeline
	streamingService, err := messagepipeline.NewStreamingService(
		messagepipeline.StreamingServiceConfig{NumWorkers: cfg.NumPipelineWorkers},
		consumer,
		pipeline.SendRequestTransformer,
		processor,
		logger,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create streaming service: %w", err)
	}

	// 4. API
	pushAPI := api.NewPushAPI(kit, logger)

	// Register Routes
	mux := baseServer.Mux()
	corsMiddleware := middleware.NewCorsMiddleware(cfg.CorsConfig, logger)

	handle := func(pattern string, handlerFunc http.HandlerFunc) {
		mux.Handle(pattern, corsMiddleware(authMiddleware(handlerFunc)))
	}

	handle("POST /api/v1/register", pushAPI.Register)
	handle("POST /api/v1/unregister", pushAPI.Unregister)
	handle("POST /api/v1/subscriptions", pushAPI.Subscribe)
	handle("POST /api/v1/unsubscribe", pushAPI.Unsubscribe)
	handle("GET /api/v1/subscriptions", pushAPI.ListSubscriptions)
	handle("POST /api/v1/send", pushAPI.Send)

	// CORS preflight for the API namespace.
	mux.Handle("OPTIONS /api/v1/", corsMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})))

	return &Wrapper{
		BaseServer:      baseServer,
		pipelineService: streamingService,
		kit:             kit,
		logger:          logger,
	}, nil
}

// Start initializes the push provider, starts the pipeline, and only then
// flips the readiness probe.
func (w *Wrapper) Start(ctx context.Context, providerCfg *kitconfig.Config) error {
	if err := w.kit.Init(ctx, providerCfg); err != nil {
		return fmt.Errorf("failed to initialize push provider: %w", err)
	}
	w.logger.Info("Core processing pipeline starting...")
	if err := w.pipelineService.Start(ctx); err != nil {
		return fmt.Errorf("failed to start processing service: %w", err)
	}
	w.SetReady(true)
	w.logger.Info("Service is now ready.")
	return w.BaseServer.Start()
}

func (w *Wrapper) Shutdown(ctx context.Context) error {
	w.logger.Info("Shutting down service components...")
	var finalErr error
	if err := w.pipelineService.Stop(ctx); err != nil {
		w.logger.Error("Processing pipeline shutdown failed.", "err", err)
		finalErr = err
	}
	if err := w.kit.Destroy(ctx); err != nil {
		w.logger.Error("Provider teardown failed.", "err", err)
		finalErr = err
	}
	if err := w.BaseServer.Shutdown(ctx); err != nil {
		w.logger.Error("HTTP server shutdown failed.", "err", err)
		finalErr = err
	}
	w.logger.Info("Service shutdown complete.")
	return finalErr
}
