package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	ginadapter "github.com/awslabs/aws-lambda-go-api-proxy/gin"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/AvagyanVache/patraste-backoffice/internal/aws"
	"github.com/AvagyanVache/patraste-backoffice/internal/clock"
	"github.com/AvagyanVache/patraste-backoffice/internal/config"
	"github.com/AvagyanVache/patraste-backoffice/internal/directory"
	"github.com/AvagyanVache/patraste-backoffice/internal/handlers"
	"github.com/AvagyanVache/patraste-backoffice/internal/logger"
	"github.com/AvagyanVache/patraste-backoffice/internal/orders"
)

func setupRouter(cfg handlers.HandlerConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	// health
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	handlers.RegisterOrderRoutes(r, cfg)
	handlers.RegisterMenuRoutes(r, cfg)
	handlers.RegisterProfileRoutes(r, cfg)

	return r
}

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	zl, err := logger.New(cfg.Log.Level)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer zl.Sync()

	clients, err := aws.NewAWSClients(ctx)
	if err != nil {
		zl.Fatal("failed to init aws clients", zap.Error(err))
	}

	hcfg := handlers.HandlerConfig{
		DynamoDBClient:   clients.DynamoDB,
		SQSClient:        clients.SQS,
		CloudWatchClient: clients.CloudWatch,
		Tables:           cfg.Tables,
		SweepQueueURL:    cfg.Sweep.QueueURL,
		GraceDelay:       cfg.Sweep.GraceDelay,
		MetricsNamespace: cfg.Metrics.Namespace,
		Logger:           zl,
	}

	r := setupRouter(hcfg)

	// if environment variable RUN_LOCAL is set to "true", run local HTTP server for development.
	if os.Getenv("RUN_LOCAL") == "true" {
		if cfg.Stream.ARN != "" {
			startWatcher(ctx, clients, cfg, hcfg, zl)
		}

		addr := fmt.Sprintf(":%d", cfg.Server.Port)
		zl.Info("running local server", zap.String("addr", addr))
		if err := r.Run(addr); err != nil {
			zl.Fatal("failed to run local server", zap.Error(err))
		}
		return
	}

	// lambda adapter
	adapter := ginadapter.New(r)

	lambda.Start(func(ctx context.Context, req events.APIGatewayProxyRequest) (interface{}, error) {
		return adapter.ProxyWithContext(ctx, req)
	})
}

// startWatcher follows the orders stream and re-runs classification for the
// restaurants whose board is being watched. Each change notification
// triggers a full reclassification pass per restaurant.
func startWatcher(ctx context.Context, clients *aws.AWSClients, cfg *config.Config, hcfg handlers.HandlerConfig, zl *zap.Logger) {
	store := orders.NewStore(clients.DynamoDB, cfg.Tables.Orders)
	clockSrc := clock.NewSource(clients.DynamoDB, cfg.Tables.Control)
	dir := directory.NewStore(clients.DynamoDB, cfg.Tables.Restaurants, cfg.Tables.Customers)
	manager := orders.NewManager(store, clockSrc, dir, nil, nil, zl, cfg.Sweep.GraceDelay)

	watched := os.Getenv("WATCH_RESTAURANT_ID")
	refresh := func(ctx context.Context) {
		if watched == "" {
			return
		}
		if _, err := manager.Classify(ctx, watched); err != nil {
			zl.Warn("board refresh failed",
				zap.String("restaurant_id", watched),
				zap.Error(err))
		}
	}

	w := orders.NewWatcher(clients.Streams, cfg.Stream.ARN, cfg.Stream.PollInterval, refresh, zl)
	go func() {
		if err := w.Run(ctx); err != nil {
			zl.Error("stream watcher stopped", zap.Error(err))
		}
	}()
}
