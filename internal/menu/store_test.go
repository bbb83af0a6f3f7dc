package menu

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// menuMock is an in-memory menu_items table keyed by restaurant_id/item_id.
type menuMock struct {
	mu    sync.Mutex
	items map[string]map[string]types.AttributeValue
}

func newMenuMock() *menuMock {
	return &menuMock{items: map[string]map[string]types.AttributeValue{}}
}

func keyOf(attrs map[string]types.AttributeValue) string {
	rid := attrs["restaurant_id"].(*types.AttributeValueMemberS).Value
	iid := attrs["item_id"].(*types.AttributeValueMemberS).Value
	return rid + "/" + iid
}

func (m *menuMock) GetItem(ctx context.Context, params *dyn.GetItemInput, optFns ...func(*dyn.Options)) (*dyn.GetItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	item, ok := m.items[keyOf(params.Key)]
	if !ok {
		return &dyn.GetItemOutput{}, nil
	}
	return &dyn.GetItemOutput{Item: item}, nil
}

func (m *menuMock) PutItem(ctx context.Context, params *dyn.PutItemInput, optFns ...func(*dyn.Options)) (*dyn.PutItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[keyOf(params.Item)] = params.Item
	return &dyn.PutItemOutput{}, nil
}

func (m *menuMock) UpdateItem(ctx context.Context, params *dyn.UpdateItemInput, optFns ...func(*dyn.Options)) (*dyn.UpdateItemOutput, error) {
	return nil, errors.New("not supported")
}

func (m *menuMock) DeleteItem(ctx context.Context, params *dyn.DeleteItemInput, optFns ...func(*dyn.Options)) (*dyn.DeleteItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := keyOf(params.Key)
	if params.ConditionExpression != nil && *params.ConditionExpression == "attribute_exists(item_id)" {
		if _, ok := m.items[k]; !ok {
			return nil, &types.ConditionalCheckFailedException{}
		}
	}
	delete(m.items, k)
	return &dyn.DeleteItemOutput{}, nil
}

func (m *menuMock) Query(ctx context.Context, params *dyn.QueryInput, optFns ...func(*dyn.Options)) (*dyn.QueryOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rid := params.ExpressionAttributeValues[":rid"].(*types.AttributeValueMemberS).Value
	var out []map[string]types.AttributeValue
	for _, item := range m.items {
		if item["restaurant_id"].(*types.AttributeValueMemberS).Value == rid {
			out = append(out, item)
		}
	}
	return &dyn.QueryOutput{Items: out}, nil
}

func (m *menuMock) BatchWriteItem(ctx context.Context, params *dyn.BatchWriteItemInput, optFns ...func(*dyn.Options)) (*dyn.BatchWriteItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, reqs := range params.RequestItems {
		for _, req := range reqs {
			if req.PutRequest != nil {
				m.items[keyOf(req.PutRequest.Item)] = req.PutRequest.Item
			}
			if req.DeleteRequest != nil {
				delete(m.items, keyOf(req.DeleteRequest.Key))
			}
		}
	}
	return &dyn.BatchWriteItemOutput{}, nil
}

func (m *menuMock) TransactWriteItems(ctx context.Context, params *dyn.TransactWriteItemsInput, optFns ...func(*dyn.Options)) (*dyn.TransactWriteItemsOutput, error) {
	return nil, errors.New("not supported")
}

func newTestStore(mock *menuMock) *Store {
	s := NewStore(mock, "menu_items")
	s.nowFunc = func() time.Time { return time.Date(2026, 8, 28, 10, 0, 0, 0, time.UTC) }
	ids := 0
	s.idFunc = func() string {
		ids++
		return fmt.Sprintf("generated-%d", ids)
	}
	return s
}

func TestPut_AssignsIDOnCreate(t *testing.T) {
	mock := newMenuMock()
	store := newTestStore(mock)

	item, err := store.Put(context.Background(), Item{
		RestaurantID: "r1",
		Name:         "Khorovats",
		Price:        12.5,
		PrepTime:     25,
		Available:    true,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if item.ItemID == "" {
		t.Fatal("item id not assigned")
	}
	if item.CreatedAt.IsZero() || item.UpdatedAt.IsZero() {
		t.Fatal("timestamps not stamped")
	}

	got, err := store.Get(context.Background(), "r1", item.ItemID)
	if err != nil || got == nil {
		t.Fatalf("item not stored: %v", err)
	}
	if got.Name != "Khorovats" {
		t.Fatalf("name = %q", got.Name)
	}
}

func TestPut_KeepsIDOnUpdate(t *testing.T) {
	mock := newMenuMock()
	store := newTestStore(mock)

	created, err := store.Put(context.Background(), Item{RestaurantID: "r1", Name: "Dolma", Price: 8, PrepTime: 15})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	created.Price = 9.5
	updated, err := store.Put(context.Background(), created)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.ItemID != created.ItemID {
		t.Fatalf("item id changed on update: %q -> %q", created.ItemID, updated.ItemID)
	}

	items, _ := store.List(context.Background(), "r1")
	if len(items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(items))
	}
	if items[0].Price != 9.5 {
		t.Fatalf("price = %v", items[0].Price)
	}
}

func TestDelete_NotFound(t *testing.T) {
	mock := newMenuMock()
	store := newTestStore(mock)

	err := store.Delete(context.Background(), "r1", "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestReplace_RemovesStaleItems(t *testing.T) {
	mock := newMenuMock()
	store := newTestStore(mock)

	old, err := store.Put(context.Background(), Item{RestaurantID: "r1", Name: "Gone Soon", Price: 5, PrepTime: 10})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	kept, err := store.Put(context.Background(), Item{RestaurantID: "r1", Name: "Stays", Price: 7, PrepTime: 12})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	err = store.Replace(context.Background(), "r1", []Item{
		{ItemID: kept.ItemID, Name: "Stays", Price: 7.5, PrepTime: 12},
		{Name: "Brand New", Price: 11, PrepTime: 20},
	})
	if err != nil {
		t.Fatalf("replace: %v", err)
	}

	items, _ := store.List(context.Background(), "r1")
	if len(items) != 2 {
		t.Fatalf("expected 2 items after replace, got %d", len(items))
	}
	byName := map[string]Item{}
	for _, it := range items {
		byName[it.Name] = it
	}
	if _, ok := byName["Gone Soon"]; ok {
		t.Fatalf("stale item %q survived replace", old.Name)
	}
	if byName["Stays"].ItemID != kept.ItemID {
		t.Fatalf("kept item lost its id")
	}
	if byName["Stays"].Price != 7.5 {
		t.Fatalf("kept item not updated")
	}
	if byName["Brand New"].ItemID == "" {
		t.Fatalf("new item has no id")
	}
}

func TestList_RoundTrip(t *testing.T) {
	mock := newMenuMock()
	store := newTestStore(mock)

	want := Item{
		RestaurantID: "r1",
		ItemID:       "fixed-id",
		Name:         "Spas",
		Description:  "warm yogurt soup",
		Price:        6.25,
		PrepTime:     18,
		Available:    true,
		ImageURL:     "https://cdn.example/spas.jpg",
	}
	raw, err := attributevalue.MarshalMap(want)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	mock.items["r1/fixed-id"] = raw

	items, err := store.List(context.Background(), "r1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(items))
	}
	got := items[0]
	if got.Name != want.Name || got.Price != want.Price || got.PrepTime != want.PrepTime || !got.Available {
		t.Fatalf("round trip mismatch: %+v", got)
	}
}
