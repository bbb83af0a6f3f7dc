// Package metrics publishes operation counters to CloudWatch. Emission is
// best-effort: failures are logged and never propagated into the operation
// that triggered them.
package metrics

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
	"go.uber.org/zap"

	"github.com/AvagyanVache/patraste-backoffice/internal/aws"
)

// Metric names emitted by the service.
const (
	OrdersAccepted   = "OrdersAccepted"
	OrdersDeclined   = "OrdersDeclined"
	OrdersSwept      = "OrdersSwept"
	ClassifyDuration = "ClassifyDuration"
)

// Emitter wraps a CloudWatch client and a namespace. A nil *Emitter is a
// valid no-op, so callers never need to guard.
type Emitter struct {
	client    aws.CloudWatchAPI
	namespace string
	log       *zap.Logger
	nowFunc   func() time.Time
}

// NewEmitter returns an Emitter bound to a namespace.
func NewEmitter(client aws.CloudWatchAPI, namespace string, log *zap.Logger) *Emitter {
	return &Emitter{
		client:    client,
		namespace: namespace,
		log:       log,
		nowFunc:   time.Now,
	}
}

// Count emits a single count datum for name.
func (e *Emitter) Count(ctx context.Context, name string) {
	if e == nil {
		return
	}
	e.put(ctx, cwtypes.MetricDatum{
		MetricName: &name,
		Unit:       cwtypes.StandardUnitCount,
		Value:      awsFloat64(1),
	})
}

// Duration emits a timing datum for name in milliseconds.
func (e *Emitter) Duration(ctx context.Context, name string, d time.Duration) {
	if e == nil {
		return
	}
	e.put(ctx, cwtypes.MetricDatum{
		MetricName: &name,
		Unit:       cwtypes.StandardUnitMilliseconds,
		Value:      awsFloat64(float64(d.Milliseconds())),
	})
}

func (e *Emitter) put(ctx context.Context, datum cwtypes.MetricDatum) {
	now := e.nowFunc().UTC()
	datum.Timestamp = &now
	_, err := e.client.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
		Namespace:  &e.namespace,
		MetricData: []cwtypes.MetricDatum{datum},
	})
	if err != nil && e.log != nil {
		e.log.Warn("metric emission failed",
			zap.String("metric", *datum.MetricName),
			zap.Error(err))
	}
}

func awsFloat64(v float64) *float64 { return &v }
