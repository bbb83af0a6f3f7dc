package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/AvagyanVache/patraste-backoffice/internal/aws"
	"github.com/AvagyanVache/patraste-backoffice/internal/clock"
	"github.com/AvagyanVache/patraste-backoffice/internal/config"
	"github.com/AvagyanVache/patraste-backoffice/internal/directory"
	"github.com/AvagyanVache/patraste-backoffice/internal/metrics"
	"github.com/AvagyanVache/patraste-backoffice/internal/orders"
	"github.com/AvagyanVache/patraste-backoffice/internal/validation"
)

// HandlerConfig groups dependencies for the HTTP handlers.
type HandlerConfig struct {
	DynamoDBClient   aws.DynamoDBAPI
	SQSClient        aws.SQSAPI
	CloudWatchClient aws.CloudWatchAPI
	Tables           config.TablesConfig
	SweepQueueURL    string
	GraceDelay       time.Duration
	MetricsNamespace string
	Logger           *zap.Logger
}

func (cfg HandlerConfig) manager() *orders.Manager {
	store := orders.NewStore(cfg.DynamoDBClient, cfg.Tables.Orders)
	clockSrc := clock.NewSource(cfg.DynamoDBClient, cfg.Tables.Control)
	dir := directory.NewStore(cfg.DynamoDBClient, cfg.Tables.Restaurants, cfg.Tables.Customers)

	var sweeps *aws.Publisher
	if cfg.SQSClient != nil && cfg.SweepQueueURL != "" {
		sweeps = aws.NewPublisher(cfg.SQSClient, cfg.SweepQueueURL)
	}
	var em *metrics.Emitter
	if cfg.CloudWatchClient != nil {
		em = metrics.NewEmitter(cfg.CloudWatchClient, cfg.MetricsNamespace, cfg.Logger)
	}

	return orders.NewManager(store, clockSrc, dir, sweeps, em, cfg.Logger, cfg.GraceDelay)
}

// RegisterOrderRoutes registers the order lifecycle routes.
func RegisterOrderRoutes(r *gin.Engine, cfg HandlerConfig) {
	v := validation.New()
	manager := cfg.manager()

	r.POST("/orders/:id/accept", func(c *gin.Context) {
		ctx := c.Request.Context()
		orderID := c.Param("id")

		order, err := manager.Accept(ctx, orderID)
		if err != nil {
			status, code := acceptErrorResponse(err)
			c.JSON(status, gin.H{"error": code, "detail": err.Error()})
			return
		}
		c.JSON(http.StatusOK, order)
	})

	r.POST("/orders/:id/decline", func(c *gin.Context) {
		ctx := c.Request.Context()
		orderID := c.Param("id")

		var req validation.DeclineOrderRequest
		if err := validation.BindAndValidate(c, &req, v); err != nil {
			// BindAndValidate already wrote a 400
			return
		}

		if err := manager.Decline(ctx, orderID, req.FinalReason()); err != nil {
			switch {
			case errors.Is(err, orders.ErrEmptyReason):
				c.JSON(http.StatusBadRequest, gin.H{"error": "empty_reason"})
			case errors.Is(err, orders.ErrOrderNotFound):
				c.JSON(http.StatusNotFound, gin.H{"error": "order_not_found"})
			default:
				c.JSON(http.StatusInternalServerError, gin.H{"error": "decline_failed", "detail": err.Error()})
			}
			return
		}
		c.JSON(http.StatusOK, gin.H{"order_id": orderID, "approval_status": orders.StatusDeclined})
	})

	r.GET("/restaurants/:id/orders/board", func(c *gin.Context) {
		ctx := c.Request.Context()

		board, err := manager.Classify(ctx, c.Param("id"))
		if err != nil {
			if errors.Is(err, clock.ErrClockSource) {
				c.JSON(http.StatusServiceUnavailable, gin.H{"error": "clock_unavailable", "detail": err.Error()})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "classification_failed", "detail": err.Error()})
			return
		}
		c.JSON(http.StatusOK, board)
	})
}

func acceptErrorResponse(err error) (int, string) {
	switch {
	case errors.Is(err, orders.ErrOrderNotFound):
		return http.StatusNotFound, "order_not_found"
	case errors.Is(err, orders.ErrInvalidOrderData):
		return http.StatusUnprocessableEntity, "missing_prep_time"
	case errors.Is(err, orders.ErrNotPending):
		return http.StatusConflict, "order_not_pending"
	case errors.Is(err, clock.ErrClockSource):
		return http.StatusServiceUnavailable, "clock_unavailable"
	case errors.Is(err, orders.ErrTimingResolution):
		// accepted without end_time; the operator must re-trigger
		return http.StatusInternalServerError, "timing_unresolved"
	default:
		return http.StatusInternalServerError, "accept_failed"
	}
}
