package orders

import (
	"context"
	"errors"
	"strings"
	"sync"

	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// mockDynamo is an in-memory stand-in for DynamoDB covering the calls and
// expression shapes this package issues. Items are stored per table keyed by
// a synthetic primary key derived from the well-known key attributes.
type mockDynamo struct {
	mu     sync.Mutex
	tables map[string]map[string]map[string]types.AttributeValue

	writeCalls int
}

func newMockDynamo() *mockDynamo {
	return &mockDynamo{
		tables: map[string]map[string]map[string]types.AttributeValue{},
	}
}

func (m *mockDynamo) ensureTable(tbl string) map[string]map[string]types.AttributeValue {
	if _, ok := m.tables[tbl]; !ok {
		m.tables[tbl] = map[string]map[string]types.AttributeValue{}
	}
	return m.tables[tbl]
}

func strVal(av types.AttributeValue) (string, bool) {
	s, ok := av.(*types.AttributeValueMemberS)
	if !ok {
		return "", false
	}
	return s.Value, true
}

// pkOf derives the storage key from whichever well-known key attributes the
// item carries.
func pkOf(attrs map[string]types.AttributeValue) (string, error) {
	if v, ok := attrs["order_id"]; ok {
		s, _ := strVal(v)
		return s, nil
	}
	if v, ok := attrs["control_id"]; ok {
		s, _ := strVal(v)
		return s, nil
	}
	if v, ok := attrs["customer_id"]; ok {
		s, _ := strVal(v)
		return s, nil
	}
	if v, ok := attrs["item_id"]; ok {
		rid, _ := strVal(attrs["restaurant_id"])
		s, _ := strVal(v)
		return rid + "/" + s, nil
	}
	if v, ok := attrs["restaurant_id"]; ok {
		s, _ := strVal(v)
		return s, nil
	}
	return "", errors.New("no known key attribute")
}

// evalCondition evaluates conjunctions of attribute_exists /
// attribute_not_exists / equality terms; each AND operand may itself be an
// OR of equality terms.
func evalCondition(expr string, item map[string]types.AttributeValue, names map[string]string, values map[string]types.AttributeValue) bool {
	for _, clause := range strings.Split(expr, " AND ") {
		anyTrue := false
		for _, term := range strings.Split(clause, " OR ") {
			if evalTerm(strings.TrimSpace(term), item, names, values) {
				anyTrue = true
				break
			}
		}
		if !anyTrue {
			return false
		}
	}
	return true
}

func evalTerm(term string, item map[string]types.AttributeValue, names map[string]string, values map[string]types.AttributeValue) bool {
	if rest, ok := strings.CutPrefix(term, "attribute_exists("); ok {
		attr := resolveName(strings.TrimSuffix(rest, ")"), names)
		_, exists := item[attr]
		return exists
	}
	if rest, ok := strings.CutPrefix(term, "attribute_not_exists("); ok {
		attr := resolveName(strings.TrimSuffix(rest, ")"), names)
		_, exists := item[attr]
		return !exists
	}
	parts := strings.SplitN(term, " = ", 2)
	if len(parts) != 2 {
		return false
	}
	attr := resolveName(strings.TrimSpace(parts[0]), names)
	want, ok := values[strings.TrimSpace(parts[1])]
	if !ok {
		return false
	}
	got, exists := item[attr]
	if !exists {
		return false
	}
	gs, ok1 := strVal(got)
	ws, ok2 := strVal(want)
	return ok1 && ok2 && gs == ws
}

// applySet applies a "SET a = :x, b = :y" expression.
func applySet(expr string, item map[string]types.AttributeValue, names map[string]string, values map[string]types.AttributeValue) {
	expr = strings.TrimPrefix(expr, "SET ")
	for _, assignment := range strings.Split(expr, ",") {
		parts := strings.SplitN(assignment, "=", 2)
		if len(parts) != 2 {
			continue
		}
		attr := resolveName(strings.TrimSpace(parts[0]), names)
		if v, ok := values[strings.TrimSpace(parts[1])]; ok {
			item[attr] = v
		}
	}
}

func resolveName(name string, names map[string]string) string {
	if resolved, ok := names[name]; ok {
		return resolved
	}
	return name
}

func (m *mockDynamo) GetItem(ctx context.Context, params *dyn.GetItemInput, optFns ...func(*dyn.Options)) (*dyn.GetItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	table := m.ensureTable(*params.TableName)
	pk, err := pkOf(params.Key)
	if err != nil {
		return nil, err
	}
	item, ok := table[pk]
	if !ok {
		return &dyn.GetItemOutput{}, nil
	}
	return &dyn.GetItemOutput{Item: item}, nil
}

func (m *mockDynamo) PutItem(ctx context.Context, params *dyn.PutItemInput, optFns ...func(*dyn.Options)) (*dyn.PutItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writeCalls++
	table := m.ensureTable(*params.TableName)
	pk, err := pkOf(params.Item)
	if err != nil {
		return nil, err
	}
	table[pk] = params.Item
	return &dyn.PutItemOutput{}, nil
}

func (m *mockDynamo) UpdateItem(ctx context.Context, params *dyn.UpdateItemInput, optFns ...func(*dyn.Options)) (*dyn.UpdateItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writeCalls++
	table := m.ensureTable(*params.TableName)
	pk, err := pkOf(params.Key)
	if err != nil {
		return nil, err
	}
	item, exists := table[pk]
	if !exists {
		item = map[string]types.AttributeValue{}
	}
	if params.ConditionExpression != nil {
		if !evalCondition(*params.ConditionExpression, item, params.ExpressionAttributeNames, params.ExpressionAttributeValues) {
			return nil, &types.ConditionalCheckFailedException{}
		}
	}
	if !exists {
		for k, v := range params.Key {
			item[k] = v
		}
	}
	if params.UpdateExpression != nil {
		applySet(*params.UpdateExpression, item, params.ExpressionAttributeNames, params.ExpressionAttributeValues)
	}
	table[pk] = item
	return &dyn.UpdateItemOutput{Attributes: item}, nil
}

func (m *mockDynamo) DeleteItem(ctx context.Context, params *dyn.DeleteItemInput, optFns ...func(*dyn.Options)) (*dyn.DeleteItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writeCalls++
	table := m.ensureTable(*params.TableName)
	pk, err := pkOf(params.Key)
	if err != nil {
		return nil, err
	}
	item := table[pk]
	if params.ConditionExpression != nil {
		if !evalCondition(*params.ConditionExpression, item, nil, params.ExpressionAttributeValues) {
			return nil, &types.ConditionalCheckFailedException{}
		}
	}
	delete(table, pk)
	return &dyn.DeleteItemOutput{}, nil
}

func (m *mockDynamo) Query(ctx context.Context, params *dyn.QueryInput, optFns ...func(*dyn.Options)) (*dyn.QueryOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	table := m.ensureTable(*params.TableName)

	var out []map[string]types.AttributeValue
	for _, item := range table {
		if params.KeyConditionExpression != nil &&
			!evalCondition(*params.KeyConditionExpression, item, params.ExpressionAttributeNames, params.ExpressionAttributeValues) {
			continue
		}
		if params.FilterExpression != nil &&
			!evalCondition(*params.FilterExpression, item, params.ExpressionAttributeNames, params.ExpressionAttributeValues) {
			continue
		}
		out = append(out, item)
	}
	return &dyn.QueryOutput{Items: out}, nil
}

func (m *mockDynamo) BatchWriteItem(ctx context.Context, params *dyn.BatchWriteItemInput, optFns ...func(*dyn.Options)) (*dyn.BatchWriteItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writeCalls++
	for tbl, reqs := range params.RequestItems {
		table := m.ensureTable(tbl)
		for _, req := range reqs {
			if req.PutRequest != nil {
				pk, err := pkOf(req.PutRequest.Item)
				if err != nil {
					return nil, err
				}
				table[pk] = req.PutRequest.Item
			}
			if req.DeleteRequest != nil {
				pk, err := pkOf(req.DeleteRequest.Key)
				if err != nil {
					return nil, err
				}
				delete(table, pk)
			}
		}
	}
	return &dyn.BatchWriteItemOutput{}, nil
}

func (m *mockDynamo) TransactWriteItems(ctx context.Context, params *dyn.TransactWriteItemsInput, optFns ...func(*dyn.Options)) (*dyn.TransactWriteItemsOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writeCalls++
	// first pass: verify all conditions
	for _, it := range params.TransactItems {
		if u := it.Update; u != nil {
			table := m.ensureTable(*u.TableName)
			pk, err := pkOf(u.Key)
			if err != nil {
				return nil, err
			}
			item := table[pk]
			if u.ConditionExpression != nil {
				if !evalCondition(*u.ConditionExpression, item, u.ExpressionAttributeNames, u.ExpressionAttributeValues) {
					return nil, &types.TransactionCanceledException{}
				}
			}
		}
	}
	// second pass: apply
	for _, it := range params.TransactItems {
		if u := it.Update; u != nil {
			table := m.ensureTable(*u.TableName)
			pk, _ := pkOf(u.Key)
			item, exists := table[pk]
			if !exists {
				item = map[string]types.AttributeValue{}
				for k, v := range u.Key {
					item[k] = v
				}
			}
			if u.UpdateExpression != nil {
				applySet(*u.UpdateExpression, item, u.ExpressionAttributeNames, u.ExpressionAttributeValues)
			}
			table[pk] = item
		}
	}
	return &dyn.TransactWriteItemsOutput{}, nil
}
