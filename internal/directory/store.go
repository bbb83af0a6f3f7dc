// Package directory holds the customer and restaurant documents referenced
// by orders. The board uses it for contact/address annotation; the profile
// endpoints edit the restaurant document.
package directory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/AvagyanVache/patraste-backoffice/internal/aws"
)

// OwnerIndex is the GSI keyed by owner_uid on the restaurants table.
const OwnerIndex = "owner-uid-index"

// ErrNotFound indicates the referenced restaurant does not exist.
var ErrNotFound = errors.New("restaurant not found")

// Customer is the shape stored in the customers table.
type Customer struct {
	CustomerID string `dynamodbav:"customer_id" json:"customer_id"` // PK
	Name       string `dynamodbav:"name" json:"name"`
	Phone      string `dynamodbav:"phone,omitempty" json:"phone,omitempty"`
	Address    string `dynamodbav:"address,omitempty" json:"address,omitempty"`
}

// Restaurant is the shape stored in the restaurants table.
type Restaurant struct {
	RestaurantID string    `dynamodbav:"restaurant_id" json:"restaurant_id"` // PK
	OwnerUID     string    `dynamodbav:"owner_uid" json:"owner_uid"`         // GSI hash key
	Name         string    `dynamodbav:"name" json:"name"`
	Address      string    `dynamodbav:"address,omitempty" json:"address,omitempty"`
	Phone        string    `dynamodbav:"phone,omitempty" json:"phone,omitempty"`
	LogoURL      string    `dynamodbav:"logo_url,omitempty" json:"logo_url,omitempty"`
	IsOpen       bool      `dynamodbav:"is_open" json:"is_open"`
	UpdatedAt    time.Time `dynamodbav:"updated_at" json:"updated_at"`
}

// ProfileUpdate carries the editable restaurant fields; nil means unchanged.
type ProfileUpdate struct {
	Name    *string
	Address *string
	Phone   *string
	LogoURL *string
	IsOpen  *bool
}

// Store reads and edits directory documents.
type Store struct {
	client           aws.DynamoDBAPI
	restaurantsTable string
	customersTable   string
	nowFunc          func() time.Time
}

// NewStore returns a Store bound to the restaurants and customers tables.
func NewStore(client aws.DynamoDBAPI, restaurantsTable, customersTable string) *Store {
	return &Store{
		client:           client,
		restaurantsTable: restaurantsTable,
		customersTable:   customersTable,
		nowFunc:          time.Now,
	}
}

// Customer fetches a customer by id. Returns (nil, nil) if not found.
func (s *Store) Customer(ctx context.Context, customerID string) (*Customer, error) {
	out, err := s.client.GetItem(ctx, &dyn.GetItemInput{
		TableName: &s.customersTable,
		Key: map[string]types.AttributeValue{
			"customer_id": &types.AttributeValueMemberS{Value: customerID},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("get customer: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, nil
	}
	var c Customer
	if err := attributevalue.UnmarshalMap(out.Item, &c); err != nil {
		return nil, fmt.Errorf("unmarshal customer: %w", err)
	}
	return &c, nil
}

// Restaurant fetches a restaurant by id. Returns (nil, nil) if not found.
func (s *Store) Restaurant(ctx context.Context, restaurantID string) (*Restaurant, error) {
	out, err := s.client.GetItem(ctx, &dyn.GetItemInput{
		TableName: &s.restaurantsTable,
		Key: map[string]types.AttributeValue{
			"restaurant_id": &types.AttributeValueMemberS{Value: restaurantID},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("get restaurant: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, nil
	}
	var r Restaurant
	if err := attributevalue.UnmarshalMap(out.Item, &r); err != nil {
		return nil, fmt.Errorf("unmarshal restaurant: %w", err)
	}
	return &r, nil
}

// RestaurantByOwner resolves the restaurant belonging to an account uid.
// Accounts own at most one restaurant; the first match wins. Returns
// (nil, nil) when the uid owns none.
func (s *Store) RestaurantByOwner(ctx context.Context, ownerUID string) (*Restaurant, error) {
	out, err := s.client.Query(ctx, &dyn.QueryInput{
		TableName:              &s.restaurantsTable,
		IndexName:              awsString(OwnerIndex),
		KeyConditionExpression: awsString("owner_uid = :uid"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":uid": &types.AttributeValueMemberS{Value: ownerUID},
		},
		Limit: awsInt32(1),
	})
	if err != nil {
		return nil, fmt.Errorf("query restaurant by owner: %w", err)
	}
	if len(out.Items) == 0 {
		return nil, nil
	}
	var r Restaurant
	if err := attributevalue.UnmarshalMap(out.Items[0], &r); err != nil {
		return nil, fmt.Errorf("unmarshal restaurant: %w", err)
	}
	return &r, nil
}

// UpdateProfile applies the non-nil fields of upd to the restaurant
// document. No-op updates (all fields nil) return without a write.
func (s *Store) UpdateProfile(ctx context.Context, restaurantID string, upd ProfileUpdate) error {
	sets := []string{"updated_at = :ua"}
	ua, err := attributevalue.Marshal(s.nowFunc().UTC())
	if err != nil {
		return fmt.Errorf("marshal updated_at: %w", err)
	}
	values := map[string]types.AttributeValue{":ua": ua}
	names := map[string]string{}

	if upd.Name != nil {
		// "name" is reserved in DynamoDB expressions
		names["#n"] = "name"
		sets = append(sets, "#n = :name")
		values[":name"] = &types.AttributeValueMemberS{Value: *upd.Name}
	}
	if upd.Address != nil {
		sets = append(sets, "address = :address")
		values[":address"] = &types.AttributeValueMemberS{Value: *upd.Address}
	}
	if upd.Phone != nil {
		sets = append(sets, "phone = :phone")
		values[":phone"] = &types.AttributeValueMemberS{Value: *upd.Phone}
	}
	if upd.LogoURL != nil {
		sets = append(sets, "logo_url = :logo")
		values[":logo"] = &types.AttributeValueMemberS{Value: *upd.LogoURL}
	}
	if upd.IsOpen != nil {
		sets = append(sets, "is_open = :open")
		values[":open"] = &types.AttributeValueMemberBOOL{Value: *upd.IsOpen}
	}
	if len(sets) == 1 {
		return nil
	}

	input := &dyn.UpdateItemInput{
		TableName: &s.restaurantsTable,
		Key: map[string]types.AttributeValue{
			"restaurant_id": &types.AttributeValueMemberS{Value: restaurantID},
		},
		UpdateExpression:          awsString("SET " + strings.Join(sets, ", ")),
		ConditionExpression:       awsString("attribute_exists(restaurant_id)"),
		ExpressionAttributeValues: values,
	}
	if len(names) > 0 {
		input.ExpressionAttributeNames = names
	}
	if _, err := s.client.UpdateItem(ctx, input); err != nil {
		var cc *types.ConditionalCheckFailedException
		if errors.As(err, &cc) {
			return ErrNotFound
		}
		return fmt.Errorf("update profile: %w", err)
	}
	return nil
}

func awsString(s string) *string { return &s }
func awsInt32(v int32) *int32    { return &v }
