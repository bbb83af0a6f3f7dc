// Package menu manages the per-restaurant menu items. Images themselves live
// elsewhere; image_url is an opaque reference.
package menu

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"

	"github.com/AvagyanVache/patraste-backoffice/internal/aws"
)

// batchWriteLimit is DynamoDB's cap on requests per BatchWriteItem call.
const batchWriteLimit = 25

// ErrNotFound indicates the referenced menu item does not exist.
var ErrNotFound = errors.New("menu item not found")

// Item is the shape stored in the menu_items table.
type Item struct {
	RestaurantID string    `dynamodbav:"restaurant_id" json:"restaurant_id"` // PK
	ItemID       string    `dynamodbav:"item_id" json:"item_id"`             // SK
	Name         string    `dynamodbav:"name" json:"name"`
	Description  string    `dynamodbav:"description,omitempty" json:"description,omitempty"`
	Price        float64   `dynamodbav:"price" json:"price"`
	PrepTime     int       `dynamodbav:"prep_time" json:"prep_time"` // minutes
	Available    bool      `dynamodbav:"available" json:"available"`
	ImageURL     string    `dynamodbav:"image_url,omitempty" json:"image_url,omitempty"`
	CreatedAt    time.Time `dynamodbav:"created_at" json:"created_at"`
	UpdatedAt    time.Time `dynamodbav:"updated_at" json:"updated_at"`
}

// Store encapsulates operations on the menu_items table.
type Store struct {
	client    aws.DynamoDBAPI
	tableName string
	nowFunc   func() time.Time
	idFunc    func() string
}

// NewStore creates a new menu Store.
func NewStore(client aws.DynamoDBAPI, tableName string) *Store {
	return &Store{
		client:    client,
		tableName: tableName,
		nowFunc:   time.Now,
		idFunc:    uuid.NewString,
	}
}

// List returns all menu items of a restaurant, following pagination.
func (s *Store) List(ctx context.Context, restaurantID string) ([]Item, error) {
	var out []Item
	var startKey map[string]types.AttributeValue

	for {
		res, err := s.client.Query(ctx, &dyn.QueryInput{
			TableName:              &s.tableName,
			KeyConditionExpression: awsString("restaurant_id = :rid"),
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":rid": &types.AttributeValueMemberS{Value: restaurantID},
			},
			ExclusiveStartKey: startKey,
		})
		if err != nil {
			return nil, fmt.Errorf("query menu items: %w", err)
		}
		for _, raw := range res.Items {
			var it Item
			if err := attributevalue.UnmarshalMap(raw, &it); err != nil {
				return nil, fmt.Errorf("unmarshal menu item: %w", err)
			}
			out = append(out, it)
		}
		if len(res.LastEvaluatedKey) == 0 {
			break
		}
		startKey = res.LastEvaluatedKey
	}
	return out, nil
}

// Get fetches a single item. Returns (nil, nil) if not found.
func (s *Store) Get(ctx context.Context, restaurantID, itemID string) (*Item, error) {
	out, err := s.client.GetItem(ctx, &dyn.GetItemInput{
		TableName: &s.tableName,
		Key:       itemKey(restaurantID, itemID),
	})
	if err != nil {
		return nil, fmt.Errorf("get menu item: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, nil
	}
	var it Item
	if err := attributevalue.UnmarshalMap(out.Item, &it); err != nil {
		return nil, fmt.Errorf("unmarshal menu item: %w", err)
	}
	return &it, nil
}

// Put creates or overwrites a menu item. A missing ItemID means create: the
// store assigns one and stamps created_at.
func (s *Store) Put(ctx context.Context, item Item) (Item, error) {
	now := s.nowFunc().UTC()
	if item.ItemID == "" {
		item.ItemID = s.idFunc()
		item.CreatedAt = now
	}
	if item.CreatedAt.IsZero() {
		item.CreatedAt = now
	}
	item.UpdatedAt = now

	raw, err := attributevalue.MarshalMap(item)
	if err != nil {
		return Item{}, fmt.Errorf("marshal menu item: %w", err)
	}
	if _, err := s.client.PutItem(ctx, &dyn.PutItemInput{
		TableName: &s.tableName,
		Item:      raw,
	}); err != nil {
		return Item{}, fmt.Errorf("put menu item: %w", err)
	}
	return item, nil
}

// Delete removes a menu item. Deleting an absent item returns ErrNotFound.
func (s *Store) Delete(ctx context.Context, restaurantID, itemID string) error {
	_, err := s.client.DeleteItem(ctx, &dyn.DeleteItemInput{
		TableName:           &s.tableName,
		Key:                 itemKey(restaurantID, itemID),
		ConditionExpression: awsString("attribute_exists(item_id)"),
	})
	if err != nil {
		var cc *types.ConditionalCheckFailedException
		if errors.As(err, &cc) {
			return ErrNotFound
		}
		return fmt.Errorf("delete menu item: %w", err)
	}
	return nil
}

// Replace swaps the restaurant's whole menu for items in one batched pass:
// existing items not present in the new set are deleted, everything else is
// written, in BatchWriteItem pages.
func (s *Store) Replace(ctx context.Context, restaurantID string, items []Item) error {
	existing, err := s.List(ctx, restaurantID)
	if err != nil {
		return err
	}

	now := s.nowFunc().UTC()
	keep := map[string]bool{}
	var writes []types.WriteRequest
	for i := range items {
		items[i].RestaurantID = restaurantID
		if items[i].ItemID == "" {
			items[i].ItemID = s.idFunc()
			items[i].CreatedAt = now
		}
		if items[i].CreatedAt.IsZero() {
			items[i].CreatedAt = now
		}
		items[i].UpdatedAt = now
		keep[items[i].ItemID] = true

		raw, err := attributevalue.MarshalMap(items[i])
		if err != nil {
			return fmt.Errorf("marshal menu item: %w", err)
		}
		writes = append(writes, types.WriteRequest{PutRequest: &types.PutRequest{Item: raw}})
	}
	for _, old := range existing {
		if keep[old.ItemID] {
			continue
		}
		writes = append(writes, types.WriteRequest{
			DeleteRequest: &types.DeleteRequest{Key: itemKey(restaurantID, old.ItemID)},
		})
	}

	for start := 0; start < len(writes); start += batchWriteLimit {
		end := start + batchWriteLimit
		if end > len(writes) {
			end = len(writes)
		}
		pending := writes[start:end]
		for len(pending) > 0 {
			res, err := s.client.BatchWriteItem(ctx, &dyn.BatchWriteItemInput{
				RequestItems: map[string][]types.WriteRequest{
					s.tableName: pending,
				},
			})
			if err != nil {
				return fmt.Errorf("batch write menu: %w", err)
			}
			pending = res.UnprocessedItems[s.tableName]
		}
	}
	return nil
}

func itemKey(restaurantID, itemID string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"restaurant_id": &types.AttributeValueMemberS{Value: restaurantID},
		"item_id":       &types.AttributeValueMemberS{Value: itemID},
	}
}

func awsString(s string) *string { return &s }
