package order

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/cuckooeats/backoffice/internal/enum"
)

// Status is the workflow stage of an order.
type Status string

const (
	Recibido      Status = enum.OrderStatusRecibido
	EnPreparacion Status = enum.OrderStatusEnPreparacion
	Listo         Status = enum.OrderStatusListo
	Entregado     Status = enum.OrderStatusEntregado
)

// Statuses lists every status in board order.
var Statuses = []Status{Recibido, EnPreparacion, Listo, Entregado}

func (s Status) Valid() bool {
	switch s {
	case Recibido, EnPreparacion, Listo, Entregado:
		return true
	}
	return false
}

func (s Status) String() string { return string(s) }

type Customer struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	FacultyID *int64 `json:"faculty_id,omitempty"`
}

// DisplayName is the name shown on cards. Orders without a linked user show
// a generic label.
func (c *Customer) DisplayName() string {
	if c == nil {
		return "Cliente"
	}
	name := c.FirstName
	if c.LastName != "" {
		if name != "" {
			name += " "
		}
		name += c.LastName
	}
	if name == "" {
		return "Cliente"
	}
	return name
}

type Variant struct {
	Name string `json:"name"`
}

type Product struct {
	Name    string   `json:"name"`
	Variant *Variant `json:"variant,omitempty"`
}

type Ingredient struct {
	Name       string           `json:"name"`
	ExtraPrice *decimal.Decimal `json:"extra_price,omitempty"`
}

type OrderDetail struct {
	ID              int64           `json:"id"`
	ProductID       int64           `json:"product_id"`
	VariantOptionID *int64          `json:"variant_option_id,omitempty"`
	Quantity        int32           `json:"quantity"`
	UnitPrice       decimal.Decimal `json:"unit_price"`
	Subtotal        decimal.Decimal `json:"subtotal"`
	Product         Product         `json:"product"`
	Ingredients     []Ingredient    `json:"ingredients"`
}

type Order struct {
	ID          int64           `json:"id"`
	UserUUID    uuid.UUID       `json:"user_uuid"`
	Status      Status          `json:"status"`
	Total       decimal.Decimal `json:"total"`
	CreatedAt   time.Time       `json:"created_at"`
	StartedAt   *time.Time      `json:"started_at"`
	ReadyAt     *time.Time      `json:"ready_at"`
	DeliveredAt *time.Time      `json:"delivered_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
	User        *Customer       `json:"user"`
	Details     []OrderDetail   `json:"details"`
}

// Clone returns a deep copy. Store snapshots hand these out so callers can
// never mutate shared state.
func (o Order) Clone() Order {
	c := o
	c.StartedAt = cloneTime(o.StartedAt)
	c.ReadyAt = cloneTime(o.ReadyAt)
	c.DeliveredAt = cloneTime(o.DeliveredAt)
	if o.User != nil {
		u := *o.User
		if o.User.FacultyID != nil {
			f := *o.User.FacultyID
			u.FacultyID = &f
		}
		c.User = &u
	}
	if o.Details != nil {
		c.Details = make([]OrderDetail, len(o.Details))
		for i, d := range o.Details {
			c.Details[i] = d.clone()
		}
	}
	return c
}

func (d OrderDetail) clone() OrderDetail {
	c := d
	if d.VariantOptionID != nil {
		v := *d.VariantOptionID
		c.VariantOptionID = &v
	}
	if d.Product.Variant != nil {
		v := *d.Product.Variant
		c.Product.Variant = &v
	}
	if d.Ingredients != nil {
		c.Ingredients = make([]Ingredient, len(d.Ingredients))
		for i, ing := range d.Ingredients {
			c.Ingredients[i] = ing
			if ing.ExtraPrice != nil {
				p := *ing.ExtraPrice
				c.Ingredients[i].ExtraPrice = &p
			}
		}
	}
	return c
}

// RelevantTimestamp is the time a card measures "time ago" from: the moment
// the order entered its current status, falling back to earlier stages when
// that timestamp was never recorded.
func (o Order) RelevantTimestamp() time.Time {
	switch o.Status {
	case Entregado:
		if o.DeliveredAt != nil {
			return *o.DeliveredAt
		}
		fallthrough
	case Listo:
		if o.ReadyAt != nil {
			return *o.ReadyAt
		}
		fallthrough
	case EnPreparacion:
		if o.StartedAt != nil {
			return *o.StartedAt
		}
	}
	return o.CreatedAt
}

// CloneAll deep-copies a slice of orders.
func CloneAll(orders []Order) []Order {
	if orders == nil {
		return nil
	}
	out := make([]Order, len(orders))
	for i, o := range orders {
		out[i] = o.Clone()
	}
	return out
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
