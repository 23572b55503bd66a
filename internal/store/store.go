package store

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/cuckooeats/backoffice/internal/order"
)

// Repository is the persistence the store reads from and writes through.
// Satisfied by *repository.Repository.
type Repository interface {
	FetchAll(ctx context.Context) ([]order.Order, error)
	UpdateStatus(ctx context.Context, id int64, status order.Status) (order.Order, error)
}

// Subscriber keeps the store current with remote changes.
// Satisfied by *realtime.Listener.
type Subscriber interface {
	Subscribe(ctx context.Context) error
	Unsubscribe()
	RequestPermissionOnce(ctx context.Context)
}

// Snapshot is a point-in-time copy of the store's state.
type Snapshot struct {
	Orders         []order.Order
	Loading        bool
	Error          string
	SelectedOrder  *order.Order
	DetailViewOpen bool
}

// Store holds the authoritative in-memory order list for one staff session.
type Store struct {
	repo   Repository
	logger *zap.Logger

	mu             sync.Mutex
	orders         []order.Order
	loading        bool
	err            string
	selected       *order.Order
	detailViewOpen bool
	sub            Subscriber
	closed         bool

	// Fetches may overlap. Each is numbered when issued and only applied if
	// nothing issued later has been applied already.
	fetchSeq   uint64
	appliedSeq uint64
	inflight   int

	changes chan struct{}
}

func New(repo Repository, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		repo:    repo,
		logger:  logger,
		orders:  []order.Order{},
		changes: make(chan struct{}, 1),
	}
}

// SetSubscriber attaches the change listener. The listener is built after the
// store because it calls back into FetchOrders.
func (s *Store) SetSubscriber(sub Subscriber) {
	s.mu.Lock()
	s.sub = sub
	s.mu.Unlock()
}

// Changes signals after every state change. Signals coalesce; readers should
// take a fresh Snapshot on each receive.
func (s *Store) Changes() <-chan struct{} {
	return s.changes
}

func (s *Store) notify() {
	select {
	case s.changes <- struct{}{}:
	default:
	}
}

func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		Orders:         order.CloneAll(s.orders),
		Loading:        s.loading,
		Error:          s.err,
		DetailViewOpen: s.detailViewOpen,
	}
	if s.selected != nil {
		sel := s.selected.Clone()
		snap.SelectedOrder = &sel
	}
	return snap
}

// Orders returns a copy of the current list.
func (s *Store) Orders() []order.Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	return order.CloneAll(s.orders)
}

// Selected returns a copy of the order open in the detail view, if any.
func (s *Store) Selected() *order.Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.selected == nil {
		return nil
	}
	c := s.selected.Clone()
	return &c
}

// Order returns a copy of the order with the given id from the current list.
func (s *Store) Order(id int64) (order.Order, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, o := range s.orders {
		if o.ID == id {
			return o.Clone(), true
		}
	}
	return order.Order{}, false
}

// FetchOrders replaces the order list with the backend's. On failure the last
// known list stays in place and the error is recorded. A response that
// arrives after a later-issued one has been applied is discarded.
func (s *Store) FetchOrders(ctx context.Context) error {
	s.mu.Lock()
	s.fetchSeq++
	seq := s.fetchSeq
	s.inflight++
	s.loading = true
	s.err = ""
	s.mu.Unlock()
	s.notify()

	orders, err := s.repo.FetchAll(ctx)

	s.mu.Lock()
	s.inflight--
	s.loading = s.inflight > 0
	stale := seq <= s.appliedSeq
	switch {
	case stale:
	case err != nil:
		s.err = order.UserMessage(err)
	default:
		s.appliedSeq = seq
		s.orders = orders
		if s.selected != nil {
			if fresh, ok := findOrder(orders, s.selected.ID); ok {
				c := fresh.Clone()
				s.selected = &c
			}
		}
	}
	s.mu.Unlock()
	s.notify()

	if err != nil {
		s.logger.Warn("fetch orders failed", zap.Error(err), zap.Bool("stale", stale))
	} else if stale {
		s.logger.Debug("discarded stale order list", zap.Uint64("seq", seq))
	}
	return err
}

// UpdateOrderStatus asks the backend to move an order. Local state changes
// only through the refetch that follows a confirmed update; rejected or
// failed updates leave the list untouched and are never retried.
func (s *Store) UpdateOrderStatus(ctx context.Context, id int64, status order.Status) error {
	if _, err := s.repo.UpdateStatus(ctx, id, status); err != nil {
		s.mu.Lock()
		s.err = order.UserMessage(err)
		s.mu.Unlock()
		s.notify()
		s.logger.Warn("update order status failed",
			zap.Int64("order_id", id),
			zap.String("status", string(status)),
			zap.String("kind", order.KindOf(err).String()),
			zap.Error(err),
		)
		return err
	}
	s.logger.Info("order status updated", zap.Int64("order_id", id), zap.String("status", string(status)))
	return s.FetchOrders(ctx)
}

func (s *Store) SelectOrder(o *order.Order) {
	s.mu.Lock()
	if o == nil {
		s.selected = nil
	} else {
		c := o.Clone()
		s.selected = &c
	}
	s.mu.Unlock()
	s.notify()
}

func (s *Store) SetDetailViewOpen(open bool) {
	s.mu.Lock()
	s.detailViewOpen = open
	s.mu.Unlock()
	s.notify()
}

// ClearError drops the recorded error once it has been shown.
func (s *Store) ClearError() {
	s.mu.Lock()
	s.err = ""
	s.mu.Unlock()
	s.notify()
}

// Start loads the initial list and subscribes to changes. A failed
// subscription is logged and tolerated; the store still works by refresh.
func (s *Store) Start(ctx context.Context) error {
	fetchErr := s.FetchOrders(ctx)

	s.mu.Lock()
	sub := s.sub
	s.mu.Unlock()
	if sub == nil {
		return fetchErr
	}

	if err := sub.Subscribe(ctx); err != nil {
		s.logger.Warn("order change subscription failed; continuing without realtime updates", zap.Error(err))
	}
	sub.RequestPermissionOnce(ctx)
	return fetchErr
}

// Close releases the change subscription. Safe to call more than once.
func (s *Store) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	sub := s.sub
	s.mu.Unlock()

	if sub != nil {
		sub.Unsubscribe()
	}
}

func findOrder(orders []order.Order, id int64) (order.Order, bool) {
	for _, o := range orders {
		if o.ID == id {
			return o, true
		}
	}
	return order.Order{}, false
}
