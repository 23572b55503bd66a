package kanban

import (
	"time"

	"github.com/cuckooeats/backoffice/internal/enum"
	"github.com/cuckooeats/backoffice/internal/order"
)

// Card is one order as shown on the board.
type Card struct {
	Order    order.Order `json:"order"`
	Customer string      `json:"customer"`
	Since    time.Time   `json:"since"`
	Dragging bool        `json:"dragging"`
}

// Column holds the cards whose status matches the column's.
type Column struct {
	Status order.Status `json:"status"`
	Title  string       `json:"title"`
	Cards  []Card       `json:"cards"`
	Count  int          `json:"count"`
}

// Title is the column heading for a status.
func Title(s order.Status) string {
	switch s {
	case order.Recibido:
		return enum.ColumnTitleRecibido
	case order.EnPreparacion:
		return enum.ColumnTitleEnPreparacion
	case order.Listo:
		return enum.ColumnTitleListo
	case order.Entregado:
		return enum.ColumnTitleEntregado
	}
	return string(s)
}

// Columns partitions orders into the four status columns, keeping the
// list's order within each column. activeID marks the card being dragged;
// pass 0 when no drag is in progress. Orders with an unknown status are not
// placed on the board.
func Columns(orders []order.Order, activeID int64) []Column {
	cols := make([]Column, len(order.Statuses))
	pos := make(map[order.Status]int, len(order.Statuses))
	for i, s := range order.Statuses {
		cols[i] = Column{Status: s, Title: Title(s), Cards: []Card{}}
		pos[s] = i
	}

	for _, o := range orders {
		i, ok := pos[o.Status]
		if !ok {
			continue
		}
		cols[i].Cards = append(cols[i].Cards, Card{
			Order:    o.Clone(),
			Customer: o.User.DisplayName(),
			Since:    o.RelevantTimestamp(),
			Dragging: activeID != 0 && o.ID == activeID,
		})
	}
	for i := range cols {
		cols[i].Count = len(cols[i].Cards)
	}
	return cols
}
