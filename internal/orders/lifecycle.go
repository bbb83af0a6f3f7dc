package orders

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/AvagyanVache/patraste-backoffice/internal/aws"
	"github.com/AvagyanVache/patraste-backoffice/internal/clock"
	"github.com/AvagyanVache/patraste-backoffice/internal/directory"
	"github.com/AvagyanVache/patraste-backoffice/internal/metrics"
)

// SweepMessage is the payload published on decline and consumed by the
// sweeper after the grace delay.
type SweepMessage struct {
	OrderID       string `json:"order_id"`
	Reason        string `json:"reason"`
	CorrelationID string `json:"correlation_id,omitempty"`
}

// OrderView is an order annotated with the contact fields the board shows.
type OrderView struct {
	Order
	CustomerName      string `json:"customer_name,omitempty"`
	CustomerPhone     string `json:"customer_phone,omitempty"`
	CustomerAddress   string `json:"customer_address,omitempty"`
	RestaurantName    string `json:"restaurant_name,omitempty"`
	RestaurantAddress string `json:"restaurant_address,omitempty"`
}

// Board is the classification result: current orders split by status, plus
// elapsed accepted orders shown read-only.
type Board struct {
	Pending   []OrderView `json:"pending"`
	Preparing []OrderView `json:"preparing"`
	History   []OrderView `json:"history"`
}

// Manager enforces the order lifecycle:
//
//	pendingApproval --accept--> accepted --[clock passes end_time]--> history
//	pendingApproval --decline--> declined --[grace delay]--> deleted
//
// No transition returns an order to pendingApproval.
type Manager struct {
	store      *Store
	clock      *clock.Source
	dir        *directory.Store
	sweeps     *aws.Publisher
	metrics    *metrics.Emitter
	log        *zap.Logger
	graceDelay time.Duration
}

// NewManager wires the lifecycle manager. sweeps may be nil, in which case
// declined orders are not scheduled for deletion (useful in tests and local
// setups without a queue).
func NewManager(store *Store, clockSrc *clock.Source, dir *directory.Store, sweeps *aws.Publisher, em *metrics.Emitter, log *zap.Logger, graceDelay time.Duration) *Manager {
	return &Manager{
		store:      store,
		clock:      clockSrc,
		dir:        dir,
		sweeps:     sweeps,
		metrics:    em,
		log:        log,
		graceDelay: graceDelay,
	}
}

// Accept moves the order to accepted and derives its timing window.
//
// Phase one stamps approval_status and start_time in a conditioned
// transaction using a trusted timestamp. Phase two re-reads the committed
// document and writes end_time = start_time + total_prep_time. The second
// write is not transactional; if it cannot run, the order is left accepted
// without end_time and ErrTimingResolution is returned. That inconsistency
// is surfaced, not auto-repaired: re-accepting is blocked by the status
// condition, so an external correction has to set end_time.
func (m *Manager) Accept(ctx context.Context, orderID string) (*Order, error) {
	o, err := m.store.Get(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("accept %s: %w", orderID, err)
	}
	if o == nil {
		return nil, ErrOrderNotFound
	}
	if o.TotalPrepTime <= 0 {
		return nil, ErrInvalidOrderData
	}
	if o.ApprovalStatus != StatusPendingApproval {
		return nil, ErrNotPending
	}

	startTime, err := m.clock.TrustedNow(ctx)
	if err != nil {
		return nil, err
	}

	if err := m.store.Accept(ctx, orderID, startTime); err != nil {
		if errors.Is(err, ErrConditionFailed) {
			// lost a race with a concurrent accept/decline
			return nil, ErrNotPending
		}
		return nil, fmt.Errorf("accept %s: %w", orderID, err)
	}

	committed, err := m.store.Get(ctx, orderID)
	if err != nil || committed == nil || committed.StartTime == nil {
		return nil, ErrTimingResolution
	}

	endTime := committed.StartTime.Add(committed.PrepWindow())
	if err := m.store.SetEndTime(ctx, orderID, endTime); err != nil {
		return nil, ErrTimingResolution
	}
	committed.EndTime = &endTime

	m.metrics.Count(ctx, metrics.OrdersAccepted)
	m.log.Info("order accepted",
		zap.String("order_id", orderID),
		zap.Time("start_time", *committed.StartTime),
		zap.Time("end_time", endTime))
	return committed, nil
}

// Decline marks the order declined with the given reason and schedules its
// deletion after the grace delay. The reason must be non-empty; it is
// checked before any write. Scheduling is best-effort: a publish failure is
// logged and swallowed because the user-facing action already succeeded.
func (m *Manager) Decline(ctx context.Context, orderID, reason string) error {
	if reason == "" {
		return ErrEmptyReason
	}

	if err := m.store.Decline(ctx, orderID, reason); err != nil {
		if errors.Is(err, ErrConditionFailed) {
			return ErrOrderNotFound
		}
		return fmt.Errorf("%w: %v", ErrDeclineWrite, err)
	}

	m.metrics.Count(ctx, metrics.OrdersDeclined)
	m.log.Info("order declined",
		zap.String("order_id", orderID),
		zap.String("reason", reason))

	if m.sweeps == nil {
		return nil
	}
	body, _ := json.Marshal(SweepMessage{
		OrderID:       orderID,
		Reason:        reason,
		CorrelationID: uuid.NewString(),
	})
	attrs := map[string]string{"order_id": orderID}
	if err := m.sweeps.SendDelayed(ctx, string(body), m.graceDelay, attrs); err != nil {
		m.log.Warn("failed to schedule declined order deletion",
			zap.String("order_id", orderID),
			zap.Error(err))
	}
	return nil
}

// Classify partitions the restaurant's open orders into the board lists
// using a trusted clock reading: an order is current while end_time is
// undefined or still ahead of now, history otherwise. Pending orders never
// have an end_time, so they are always current. No write marks an accepted
// order finished; it ages out by comparison alone, which makes repeated
// calls with no intervening writes yield identical partitions.
func (m *Manager) Classify(ctx context.Context, restaurantID string) (*Board, error) {
	started := time.Now()

	open, err := m.store.QueryOpenByRestaurant(ctx, restaurantID)
	if err != nil {
		return nil, fmt.Errorf("classify %s: %w", restaurantID, err)
	}

	now, err := m.clock.TrustedNow(ctx)
	if err != nil {
		return nil, err
	}

	// startTime descending; orders not yet accepted sort first
	sort.SliceStable(open, func(i, j int) bool {
		si, sj := open[i].StartTime, open[j].StartTime
		switch {
		case si == nil && sj == nil:
			return open[i].CreatedAt.After(open[j].CreatedAt)
		case si == nil:
			return true
		case sj == nil:
			return false
		default:
			return si.After(*sj)
		}
	})

	board := &Board{
		Pending:   []OrderView{},
		Preparing: []OrderView{},
		History:   []OrderView{},
	}
	restaurant := m.lookupRestaurant(ctx, restaurantID)
	for i := range open {
		view := m.annotate(ctx, &open[i], restaurant)
		switch {
		case !open[i].Ongoing(now):
			board.History = append(board.History, view)
		case open[i].ApprovalStatus == StatusPendingApproval:
			board.Pending = append(board.Pending, view)
		default:
			board.Preparing = append(board.Preparing, view)
		}
	}

	m.metrics.Duration(ctx, metrics.ClassifyDuration, time.Since(started))
	return board, nil
}

func (m *Manager) lookupRestaurant(ctx context.Context, restaurantID string) *directory.Restaurant {
	if m.dir == nil {
		return nil
	}
	r, err := m.dir.Restaurant(ctx, restaurantID)
	if err != nil {
		m.log.Warn("restaurant lookup failed",
			zap.String("restaurant_id", restaurantID),
			zap.Error(err))
		return nil
	}
	return r
}

// annotate resolves the contact fields shown on the board. Lookups are
// best-effort; a missing or failing lookup leaves the fields empty rather
// than failing the classification.
func (m *Manager) annotate(ctx context.Context, o *Order, restaurant *directory.Restaurant) OrderView {
	view := OrderView{Order: *o}
	if restaurant != nil {
		view.RestaurantName = restaurant.Name
		view.RestaurantAddress = restaurant.Address
	}
	if m.dir == nil || o.CustomerID == "" {
		return view
	}
	c, err := m.dir.Customer(ctx, o.CustomerID)
	if err != nil {
		m.log.Warn("customer lookup failed",
			zap.String("order_id", o.OrderID),
			zap.String("customer_id", o.CustomerID),
			zap.Error(err))
		return view
	}
	if c != nil {
		view.CustomerName = c.Name
		view.CustomerPhone = c.Phone
		view.CustomerAddress = c.Address
	}
	return view
}
