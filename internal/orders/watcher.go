package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	streams "github.com/aws/aws-sdk-go-v2/service/dynamodbstreams"
	streamtypes "github.com/aws/aws-sdk-go-v2/service/dynamodbstreams/types"
	"github.com/aws/smithy-go"
	"go.uber.org/zap"

	"github.com/AvagyanVache/patraste-backoffice/internal/aws"
)

// Watcher polls the orders table stream and invokes refresh whenever any
// matching document changed. The refresh runs a full reclassification pass
// rather than patching incrementally; change volume is small enough that the
// O(n) re-query per notification is acceptable.
type Watcher struct {
	client    aws.StreamsAPI
	streamARN string
	interval  time.Duration
	refresh   func(context.Context)
	log       *zap.Logger

	iterators map[string]string // shardID -> next iterator
}

// NewWatcher returns a Watcher for the given stream. refresh is called on
// the watcher's goroutine; it must be safe to invoke repeatedly.
func NewWatcher(client aws.StreamsAPI, streamARN string, interval time.Duration, refresh func(context.Context), log *zap.Logger) *Watcher {
	return &Watcher{
		client:    client,
		streamARN: streamARN,
		interval:  interval,
		refresh:   refresh,
		log:       log,
		iterators: map[string]string{},
	}
}

// Run polls until ctx is cancelled. Transient polling errors are logged and
// retried on the next tick; only the initial shard discovery is fatal.
func (w *Watcher) Run(ctx context.Context) error {
	if err := w.discoverShards(ctx); err != nil {
		return err
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			changed, dropped := w.poll(ctx)
			if changed {
				w.refresh(ctx)
			}
			if dropped || len(w.iterators) == 0 {
				// a shard closed or its iterator aged out; re-issue iterators
				// without waiting for the remaining shards to drain
				if err := w.discoverShards(ctx); err != nil {
					w.log.Warn("shard rediscovery failed", zap.Error(err))
				}
			}
		}
	}
}

func (w *Watcher) discoverShards(ctx context.Context) error {
	desc, err := w.client.DescribeStream(ctx, &streams.DescribeStreamInput{
		StreamArn: &w.streamARN,
	})
	if err != nil {
		return fmt.Errorf("describe stream: %w", err)
	}

	for _, shard := range desc.StreamDescription.Shards {
		if shard.ShardId == nil {
			continue
		}
		if _, known := w.iterators[*shard.ShardId]; known {
			continue
		}
		it, err := w.client.GetShardIterator(ctx, &streams.GetShardIteratorInput{
			StreamArn:         &w.streamARN,
			ShardId:           shard.ShardId,
			ShardIteratorType: streamtypes.ShardIteratorTypeLatest,
		})
		if err != nil {
			return fmt.Errorf("get shard iterator %s: %w", *shard.ShardId, err)
		}
		if it.ShardIterator != nil {
			w.iterators[*shard.ShardId] = *it.ShardIterator
		}
	}
	return nil
}

// poll drains one GetRecords page per shard. It reports whether anything
// changed since the last tick and whether any iterator was dropped and needs
// to be re-issued.
func (w *Watcher) poll(ctx context.Context) (changed, dropped bool) {
	for shardID, iterator := range w.iterators {
		out, err := w.client.GetRecords(ctx, &streams.GetRecordsInput{
			ShardIterator: &iterator,
		})
		if err != nil {
			if iteratorInvalid(err) {
				// iterator aged out; drop it so rediscovery issues a new one
				delete(w.iterators, shardID)
				dropped = true
			}
			w.log.Warn("stream poll failed",
				zap.String("shard_id", shardID),
				zap.Error(err))
			continue
		}
		if len(out.Records) > 0 {
			changed = true
		}
		if out.NextShardIterator == nil {
			// shard closed
			delete(w.iterators, shardID)
			dropped = true
			continue
		}
		w.iterators[shardID] = *out.NextShardIterator
	}
	return changed, dropped
}

// iteratorInvalid reports whether the error means the shard iterator can no
// longer be used and has to be re-issued.
func iteratorInvalid(err error) bool {
	var ae smithy.APIError
	if !errors.As(err, &ae) {
		return false
	}
	switch ae.ErrorCode() {
	case "ExpiredIteratorException", "TrimmedDataAccessException":
		return true
	}
	return false
}
