package kanban

import (
	"context"
	"sync"

	"github.com/cuckooeats/backoffice/internal/order"
)

// OrderSource is the board's view of the order store.
// Satisfied by *store.Store.
type OrderSource interface {
	Order(id int64) (order.Order, bool)
	UpdateOrderStatus(ctx context.Context, id int64, status order.Status) error
}

// Outcome describes what a drag end did.
type Outcome int

const (
	NoDrag Outcome = iota
	DroppedOutside
	SameColumn
	UnknownOrder
	Transitioned
)

func (o Outcome) String() string {
	switch o {
	case NoDrag:
		return "no_drag"
	case DroppedOutside:
		return "dropped_outside"
	case SameColumn:
		return "same_column"
	case UnknownOrder:
		return "unknown_order"
	case Transitioned:
		return "transitioned"
	}
	return "unknown"
}

// Board tracks the drag in progress and turns a completed drop into at most
// one status transition.
type Board struct {
	orders OrderSource

	mu       sync.Mutex
	activeID int64
}

func NewBoard(orders OrderSource) *Board {
	return &Board{orders: orders}
}

// DragStart records the dragged order. Unknown orders are ignored.
func (b *Board) DragStart(id int64) bool {
	if _, ok := b.orders.Order(id); !ok {
		return false
	}
	b.mu.Lock()
	b.activeID = id
	b.mu.Unlock()
	return true
}

// DragEnd finishes the drag. over is the column the card was released on, or
// nil when it was released outside every column. Only a drop on a different
// column reaches the store.
func (b *Board) DragEnd(ctx context.Context, over *order.Status) (Outcome, error) {
	b.mu.Lock()
	id := b.activeID
	b.activeID = 0
	b.mu.Unlock()

	if id == 0 {
		return NoDrag, nil
	}
	if over == nil {
		return DroppedOutside, nil
	}
	current, ok := b.orders.Order(id)
	if !ok {
		return UnknownOrder, nil
	}
	if current.Status == *over {
		return SameColumn, nil
	}
	if err := b.orders.UpdateOrderStatus(ctx, id, *over); err != nil {
		return Transitioned, err
	}
	return Transitioned, nil
}

func (b *Board) DragCancel() {
	b.mu.Lock()
	b.activeID = 0
	b.mu.Unlock()
}

// Active returns the id of the order being dragged.
func (b *Board) Active() (int64, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.activeID, b.activeID != 0
}

// Overlay is the card that follows the pointer while dragging.
func (b *Board) Overlay() *Card {
	id, ok := b.Active()
	if !ok {
		return nil
	}
	o, found := b.orders.Order(id)
	if !found {
		return nil
	}
	return &Card{
		Order:    o,
		Customer: o.User.DisplayName(),
		Since:    o.RelevantTimestamp(),
		Dragging: true,
	}
}

// Click returns the order to open in the detail view. Clicks that arrive
// while a drag is active are ignored.
func (b *Board) Click(id int64) (order.Order, bool) {
	if _, dragging := b.Active(); dragging {
		return order.Order{}, false
	}
	return b.orders.Order(id)
}

// Columns lays out orders, marking the dragged card.
func (b *Board) Columns(orders []order.Order) []Column {
	id, _ := b.Active()
	return Columns(orders, id)
}
