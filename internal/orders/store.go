package orders

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

// RestaurantIndex is the GSI keyed by restaurant_id used for board queries.
const RestaurantIndex = "restaurant-orders-index"

// ErrConditionFailed indicates a conditional write lost against the current
// document state (wrong status, missing attributes).
var ErrConditionFailed = errors.New("conditional check failed")

// Store encapsulates operations on the orders table.
type Store struct {
	client    aws.DynamoDBAPI
	tableName string
	nowFunc   func() time.Time
}

// NewStore creates a new orders Store.
func NewStore(client aws.DynamoDBAPI, tableName string) *Store {
	return &Store{
		client:    client,
		tableName: tableName,
		nowFunc:   time.Now,
	}
}

// Get fetches an order by order_id. Returns (nil, nil) if not found.
func (s *Store) Get(ctx context.Context, orderID string) (*Order, error) {
	out, err := s.client.GetItem(ctx, &dyn.GetItemInput{
		TableName: &s.tableName,
		Key: map[string]types.AttributeValue{
			"order_id": &types.AttributeValueMemberS{Value: orderID},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, nil
	}
	var o Order
	if err := attributevalue.UnmarshalMap(out.Item, &o); err != nil {
		return nil, fmt.Errorf("unmarshal order: %w", err)
	}
	return &o, nil
}

// Accept transitions pendingApproval -> accepted and stamps start_time, as a
// single TransactWriteItems update. The condition re-validates existence,
// prep time presence and the pending status, so a racing second accept (or
// accept-after-decline) fails with ErrConditionFailed instead of silently
// re-stamping.
func (s *Store) Accept(ctx context.Context, orderID string, startTime time.Time) error {
	st, err := attributevalue.Marshal(startTime)
	if err != nil {
		return fmt.Errorf("marshal start time: %w", err)
	}
	ua, err := attributevalue.Marshal(s.nowFunc().UTC())
	if err != nil {
		return fmt.Errorf("marshal updated_at: %w", err)
	}

	input := &dyn.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{
				Update: &types.Update{
					TableName: &s.tableName,
					Key: map[string]types.AttributeValue{
						"order_id": &types.AttributeValueMemberS{Value: orderID},
					},
					UpdateExpression:    awsString("SET approval_status = :accepted, start_time = :st, updated_at = :ua"),
					ConditionExpression: awsString("attribute_exists(order_id) AND attribute_exists(total_prep_time) AND approval_status = :pending"),
					ExpressionAttributeValues: map[string]types.AttributeValue{
						":accepted": &types.AttributeValueMemberS{Value: StatusAccepted},
						":pending":  &types.AttributeValueMemberS{Value: StatusPendingApproval},
						":st":       st,
						":ua":       ua,
					},
				},
			},
		},
	}

	if _, err := s.client.TransactWriteItems(ctx, input); err != nil {
		var tce *types.TransactionCanceledException
		if errors.As(err, &tce) {
			return ErrConditionFailed
		}
		return fmt.Errorf("transact accept: %w", err)
	}
	return nil
}

// SetEndTime writes the derived end_time after the accept transaction has
// committed. Non-transactional second phase; see Manager.Accept.
func (s *Store) SetEndTime(ctx context.Context, orderID string, endTime time.Time) error {
	et, err := attributevalue.Marshal(endTime)
	if err != nil {
		return fmt.Errorf("marshal end time: %w", err)
	}
	ua, err := attributevalue.Marshal(s.nowFunc().UTC())
	if err != nil {
		return fmt.Errorf("marshal updated_at: %w", err)
	}

	input := &dyn.UpdateItemInput{
		TableName: &s.tableName,
		Key: map[string]types.AttributeValue{
			"order_id": &types.AttributeValueMemberS{Value: orderID},
		},
		UpdateExpression:    awsString("SET end_time = :et, updated_at = :ua"),
		ConditionExpression: awsString("attribute_exists(order_id)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":et": et,
			":ua": ua,
		},
	}
	if _, err := s.client.UpdateItem(ctx, input); err != nil {
		var cc *types.ConditionalCheckFailedException
		if errors.As(err, &cc) {
			return ErrConditionFailed
		}
		return fmt.Errorf("set end time: %w", err)
	}
	return nil
}

// Decline marks the order declined and records the reason in a single
// non-transactional write.
func (s *Store) Decline(ctx context.Context, orderID, reason string) error {
	ua, err := attributevalue.Marshal(s.nowFunc().UTC())
	if err != nil {
		return fmt.Errorf("marshal updated_at: %w", err)
	}

	input := &dyn.UpdateItemInput{
		TableName: &s.tableName,
		Key: map[string]types.AttributeValue{
			"order_id": &types.AttributeValueMemberS{Value: orderID},
		},
		UpdateExpression:    awsString("SET approval_status = :declined, decline_reason = :reason, updated_at = :ua"),
		ConditionExpression: awsString("attribute_exists(order_id)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":declined": &types.AttributeValueMemberS{Value: StatusDeclined},
			":reason":   &types.AttributeValueMemberS{Value: reason},
			":ua":       ua,
		},
	}
	if _, err := s.client.UpdateItem(ctx, input); err != nil {
		var cc *types.ConditionalCheckFailedException
		if errors.As(err, &cc) {
			return ErrConditionFailed
		}
		return fmt.Errorf("decline order: %w", err)
	}
	return nil
}

// Delete removes the order document. Used by the sweeper after the grace
// delay; idempotent, deleting an absent order is not an error.
func (s *Store) Delete(ctx context.Context, orderID string) error {
	_, err := s.client.DeleteItem(ctx, &dyn.DeleteItemInput{
		TableName: &s.tableName,
		Key: map[string]types.AttributeValue{
			"order_id": &types.AttributeValueMemberS{Value: orderID},
		},
	})
	if err != nil {
		return fmt.Errorf("delete item: %w", err)
	}
	return nil
}

// QueryOpenByRestaurant returns the restaurant's orders still carrying
// pendingApproval or accepted status, following pagination. Declined orders
// are excluded; they are on their way out.
func (s *Store) QueryOpenByRestaurant(ctx context.Context, restaurantID string) ([]Order, error) {
	var out []Order
	var startKey map[string]types.AttributeValue

	for {
		res, err := s.client.Query(ctx, &dyn.QueryInput{
			TableName:              &s.tableName,
			IndexName:              awsString(RestaurantIndex),
			KeyConditionExpression: awsString("restaurant_id = :rid"),
			FilterExpression:       awsString("approval_status = :pending OR approval_status = :accepted"),
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":rid":      &types.AttributeValueMemberS{Value: restaurantID},
				":pending":  &types.AttributeValueMemberS{Value: StatusPendingApproval},
				":accepted": &types.AttributeValueMemberS{Value: StatusAccepted},
			},
			ExclusiveStartKey: startKey,
		})
		if err != nil {
			return nil, fmt.Errorf("query open orders: %w", err)
		}

		for _, item := range res.Items {
			var o Order
			if err := attributevalue.UnmarshalMap(item, &o); err != nil {
				return nil, fmt.Errorf("unmarshal order: %w", err)
			}
			out = append(out, o)
		}

		if len(res.LastEvaluatedKey) == 0 {
			break
		}
		startKey = res.LastEvaluatedKey
	}

	return out, nil
}

func awsString(s string) *string { return &s }
