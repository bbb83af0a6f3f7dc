package orders

import (
	"errors"
	"time"
)

// Approval statuses. Declined orders are removed by the sweeper shortly
// after; accepted orders are never deleted here, they age into history once
// the clock passes end_time.
const (
	StatusPendingApproval = "pendingApproval"
	StatusAccepted        = "accepted"
	StatusDeclined        = "declined"
)

// Preset decline reasons. ReasonOther carries free text supplied by the
// operator.
const (
	ReasonOutOfStock      = "Out of stock"
	ReasonKitchenOverload = "Kitchen overload"
	ReasonNotFeasible     = "Order not feasible"
	ReasonOther           = "Other"
)

// Operation-level failures surfaced to the caller.
var (
	// ErrOrderNotFound: accept() target does not exist.
	ErrOrderNotFound = errors.New("order not found")
	// ErrInvalidOrderData: the order has no total prep time, so no timing
	// window can be derived.
	ErrInvalidOrderData = errors.New("order is missing total prep time")
	// ErrNotPending: the order already left pendingApproval.
	ErrNotPending = errors.New("order is not pending approval")
	// ErrTimingResolution: the accept transaction committed but end_time
	// could not be derived; the order stays accepted without a valid
	// end_time until re-triggered.
	ErrTimingResolution = errors.New("failed to resolve order end time")
	// ErrDeclineWrite: the decline status write failed; no deletion is
	// scheduled.
	ErrDeclineWrite = errors.New("failed to write decline status")
	// ErrEmptyReason: decline called without a reason; rejected before any
	// write.
	ErrEmptyReason = errors.New("decline reason must not be empty")
)

// LineItem is a single position of an order.
type LineItem struct {
	Name     string  `dynamodbav:"name" json:"name"`
	Price    float64 `dynamodbav:"price" json:"price"`
	Quantity int     `dynamodbav:"quantity" json:"quantity"`
}

// Order represents the item stored in the orders DynamoDB table.
type Order struct {
	OrderID        string     `dynamodbav:"order_id" json:"order_id"`           // PK
	RestaurantID   string     `dynamodbav:"restaurant_id" json:"restaurant_id"` // GSI hash key
	CustomerID     string     `dynamodbav:"customer_id" json:"customer_id"`
	Items          []LineItem `dynamodbav:"items,omitempty" json:"items,omitempty"`
	TotalPrice     float64    `dynamodbav:"total_price" json:"total_price"`
	TotalPrepTime  int        `dynamodbav:"total_prep_time,omitempty" json:"total_prep_time,omitempty"` // minutes
	ApprovalStatus string     `dynamodbav:"approval_status" json:"approval_status"`
	StartTime      *time.Time `dynamodbav:"start_time,omitempty" json:"start_time,omitempty"`
	EndTime        *time.Time `dynamodbav:"end_time,omitempty" json:"end_time,omitempty"`
	DeclineReason  string     `dynamodbav:"decline_reason,omitempty" json:"decline_reason,omitempty"`
	CreatedAt      time.Time  `dynamodbav:"created_at" json:"created_at"`
	UpdatedAt      time.Time  `dynamodbav:"updated_at" json:"updated_at"`
}

// Ongoing reports whether the order still belongs on the current board at
// the given instant. An order without a resolved end_time is always ongoing.
func (o *Order) Ongoing(now time.Time) bool {
	return o.EndTime == nil || o.EndTime.After(now)
}

// PrepWindow converts the stored prep time to a duration.
func (o *Order) PrepWindow() time.Duration {
	return time.Duration(o.TotalPrepTime) * time.Minute
}
