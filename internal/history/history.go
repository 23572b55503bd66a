package history

import (
	"errors"
	"fmt"
	"time"

	"github.com/cuckooeats/backoffice/internal/order"
)

const dateLayout = "2006-01-02"

// Empty distinguishes the two empty states of the history view.
type Empty int

const (
	EmptyNone Empty = iota
	EmptyNoDelivered
	EmptyNoMatch
)

var ErrInvalidDate = errors.New("invalid date, expected YYYY-MM-DD")

// Message is the text shown for an empty state.
func (e Empty) Message() string {
	switch e {
	case EmptyNoDelivered:
		return "Aún no hay pedidos entregados registrados."
	case EmptyNoMatch:
		return "No se encontraron pedidos entregados para la fecha seleccionada."
	}
	return ""
}

func (e Empty) String() string {
	switch e {
	case EmptyNoDelivered:
		return "no_delivered"
	case EmptyNoMatch:
		return "no_match"
	}
	return "none"
}

// Date is a calendar day with no time or zone.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return DateOf(t), nil
}

// DateOf takes the calendar day of t in t's own location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

type Result struct {
	Orders []order.Order `json:"orders"`
	Empty  Empty         `json:"-"`
}

// Delivered returns the delivered orders, keeping the list's order. With a
// filter, only orders delivered on that local day in loc are kept.
func Delivered(orders []order.Order, filter *Date, loc *time.Location) Result {
	if loc == nil {
		loc = time.Local
	}

	res := Result{Orders: []order.Order{}}
	delivered := 0
	for _, o := range orders {
		if o.Status != order.Entregado || o.DeliveredAt == nil {
			continue
		}
		delivered++
		if filter != nil && DateOf(o.DeliveredAt.In(loc)) != *filter {
			continue
		}
		res.Orders = append(res.Orders, o.Clone())
	}

	switch {
	case delivered == 0:
		res.Empty = EmptyNoDelivered
	case len(res.Orders) == 0:
		res.Empty = EmptyNoMatch
	}
	return res
}
