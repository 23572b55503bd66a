package detail

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cuckooeats/backoffice/internal/kanban"
	"github.com/cuckooeats/backoffice/internal/order"
)

type StatusOption struct {
	Status   order.Status `json:"status"`
	Label    string       `json:"label"`
	Selected bool         `json:"selected"`
}

type TimelineEntry struct {
	Label string    `json:"label"`
	At    time.Time `json:"at"`
}

type Customer struct {
	Name      string `json:"name"`
	FacultyID *int64 `json:"faculty_id,omitempty"`
}

type IngredientLine struct {
	Name       string           `json:"name"`
	ExtraPrice *decimal.Decimal `json:"extra_price,omitempty"`
}

type Item struct {
	Product     string           `json:"product"`
	Quantity    int32            `json:"quantity"`
	Variant     string           `json:"variant,omitempty"`
	Ingredients []IngredientLine `json:"ingredients"`
	UnitPrice   decimal.Decimal  `json:"unit_price"`
	Subtotal    decimal.Decimal  `json:"subtotal"`
}

// View is everything the detail panel shows for one order.
type View struct {
	OrderID       int64           `json:"order_id"`
	Status        order.Status    `json:"status"`
	StatusOptions []StatusOption  `json:"status_options"`
	Timeline      []TimelineEntry `json:"timeline"`
	Customer      Customer        `json:"customer"`
	Items         []Item          `json:"items"`
	Total         decimal.Decimal `json:"total"`
}

const (
	labelCreated   = "Pedido creado"
	labelStarted   = "En preparación"
	labelReady     = "Listo para entregar"
	labelDelivered = "Entregado"
)

// Build renders an order. Every status is offered, not only forward ones.
func Build(o order.Order) View {
	v := View{
		OrderID:       o.ID,
		Status:        o.Status,
		StatusOptions: make([]StatusOption, 0, len(order.Statuses)),
		Timeline:      []TimelineEntry{},
		Customer:      Customer{Name: o.User.DisplayName()},
		Items:         make([]Item, 0, len(o.Details)),
		Total:         o.Total,
	}
	for _, s := range order.Statuses {
		v.StatusOptions = append(v.StatusOptions, StatusOption{
			Status:   s,
			Label:    kanban.Title(s),
			Selected: s == o.Status,
		})
	}

	v.Timeline = append(v.Timeline, TimelineEntry{Label: labelCreated, At: o.CreatedAt})
	for _, step := range []struct {
		label string
		at    *time.Time
	}{
		{labelStarted, o.StartedAt},
		{labelReady, o.ReadyAt},
		{labelDelivered, o.DeliveredAt},
	} {
		if step.at != nil {
			v.Timeline = append(v.Timeline, TimelineEntry{Label: step.label, At: *step.at})
		}
	}

	if o.User != nil && o.User.FacultyID != nil {
		f := *o.User.FacultyID
		v.Customer.FacultyID = &f
	}

	for _, d := range o.Details {
		item := Item{
			Product:     d.Product.Name,
			Quantity:    d.Quantity,
			Ingredients: make([]IngredientLine, 0, len(d.Ingredients)),
			UnitPrice:   d.UnitPrice,
			Subtotal:    d.Subtotal,
		}
		if d.Product.Variant != nil {
			item.Variant = d.Product.Variant.Name
		}
		for _, ing := range d.Ingredients {
			line := IngredientLine{Name: ing.Name}
			if ing.ExtraPrice != nil {
				p := *ing.ExtraPrice
				line.ExtraPrice = &p
			}
			item.Ingredients = append(item.Ingredients, line)
		}
		v.Items = append(v.Items, item)
	}
	return v
}

// Store is what the detail panel needs from the order store.
// Satisfied by *store.Store.
type Store interface {
	SelectOrder(o *order.Order)
	SetDetailViewOpen(open bool)
	UpdateOrderStatus(ctx context.Context, id int64, status order.Status) error
	Selected() *order.Order
}

type Controller struct {
	store Store
}

func NewController(s Store) *Controller {
	return &Controller{store: s}
}

// Open selects o and shows the panel.
func (c *Controller) Open(o order.Order) {
	c.store.SelectOrder(&o)
	c.store.SetDetailViewOpen(true)
}

// ChangeStatus moves the selected order through the store's single
// transition path. Picking the current status does nothing.
func (c *Controller) ChangeStatus(ctx context.Context, status order.Status) (bool, error) {
	sel := c.store.Selected()
	if sel == nil {
		return false, nil
	}
	if sel.Status == status {
		return false, nil
	}
	if err := c.store.UpdateOrderStatus(ctx, sel.ID, status); err != nil {
		return true, err
	}
	return true, nil
}

// Close hides the panel and clears the selection. The order list is untouched.
func (c *Controller) Close() {
	c.store.SelectOrder(nil)
	c.store.SetDetailViewOpen(false)
}

// View renders the selected order, or nil when nothing is selected.
func (c *Controller) View() *View {
	sel := c.store.Selected()
	if sel == nil {
		return nil
	}
	v := Build(*sel)
	return &v
}
