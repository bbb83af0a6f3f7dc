// Package clock provides a trusted wall-clock reading backed by the control
// table. DynamoDB exposes no server-time query, so the value is obtained by
// writing a sentinel item and reading back what the store committed. Two
// concurrent readers can observe different values; callers that only use the
// result to partition orders into current/history tolerate that window.
package clock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/AvagyanVache/patraste-backoffice/internal/aws"
)

// ErrClockSource indicates the sentinel write or read-back failed.
var ErrClockSource = errors.New("trusted clock source unavailable")

const sentinelID = "server-clock"

// sentinel is the shape persisted in the control table.
type sentinel struct {
	ControlID  string    `dynamodbav:"control_id"` // PK
	ObservedAt time.Time `dynamodbav:"observed_at"`
	UpdatedAt  time.Time `dynamodbav:"updated_at"`
}

// Source yields trusted timestamps via the control table.
type Source struct {
	client    aws.DynamoDBAPI
	tableName string
	nowFunc   func() time.Time
}

// NewSource returns a Source bound to the control table.
func NewSource(client aws.DynamoDBAPI, tableName string) *Source {
	return &Source{
		client:    client,
		tableName: tableName,
		nowFunc:   time.Now,
	}
}

// TrustedNow writes the sentinel and returns the committed observed_at value.
// Any failure is wrapped in ErrClockSource.
func (s *Source) TrustedNow(ctx context.Context) (time.Time, error) {
	now := s.nowFunc().UTC()
	rec := sentinel{
		ControlID:  sentinelID,
		ObservedAt: now,
		UpdatedAt:  now,
	}

	item, err := attributevalue.MarshalMap(rec)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: marshal sentinel: %v", ErrClockSource, err)
	}

	_, err = s.client.PutItem(ctx, &dyn.PutItemInput{
		TableName: &s.tableName,
		Item:      item,
	})
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: put sentinel: %v", ErrClockSource, err)
	}

	out, err := s.client.GetItem(ctx, &dyn.GetItemInput{
		TableName: &s.tableName,
		Key: map[string]types.AttributeValue{
			"control_id": &types.AttributeValueMemberS{Value: sentinelID},
		},
	})
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: read sentinel back: %v", ErrClockSource, err)
	}
	if len(out.Item) == 0 {
		return time.Time{}, fmt.Errorf("%w: sentinel missing after write", ErrClockSource)
	}

	var got sentinel
	if err := attributevalue.UnmarshalMap(out.Item, &got); err != nil {
		return time.Time{}, fmt.Errorf("%w: unmarshal sentinel: %v", ErrClockSource, err)
	}
	if got.ObservedAt.IsZero() {
		return time.Time{}, fmt.Errorf("%w: sentinel has no observed_at", ErrClockSource)
	}
	return got.ObservedAt, nil
}
