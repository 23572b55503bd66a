package database

import (
	"github.com/jackc/pgx/v5/pgtype"
)

type IngredientOption struct {
	ID         int64          `json:"id"`
	ProductID  int64          `json:"product_id"`
	Name       string         `json:"name"`
	ExtraPrice pgtype.Numeric `json:"extra_price"`
}

type Order struct {
	ID          int64              `json:"id"`
	UserUuid    pgtype.UUID        `json:"user_uuid"`
	Status      string             `json:"status"`
	Total       pgtype.Numeric     `json:"total"`
	CreatedAt   pgtype.Timestamptz `json:"created_at"`
	StartedAt   pgtype.Timestamptz `json:"started_at"`
	ReadyAt     pgtype.Timestamptz `json:"ready_at"`
	DeliveredAt pgtype.Timestamptz `json:"delivered_at"`
	UpdatedAt   pgtype.Timestamptz `json:"updated_at"`
}

type OrderDetail struct {
	ID              int64          `json:"id"`
	OrderID         int64          `json:"order_id"`
	ProductID       int64          `json:"product_id"`
	VariantOptionID pgtype.Int8    `json:"variant_option_id"`
	Quantity        int32          `json:"quantity"`
	UnitPrice       pgtype.Numeric `json:"unit_price"`
	Subtotal        pgtype.Numeric `json:"subtotal"`
}

type OrderDetailIngredient struct {
	OrderDetailID      int64 `json:"order_detail_id"`
	IngredientOptionID int64 `json:"ingredient_option_id"`
}

type Product struct {
	ID        int64              `json:"id"`
	Name      string             `json:"name"`
	BasePrice pgtype.Numeric     `json:"base_price"`
	IsActive  bool               `json:"is_active"`
	CreatedAt pgtype.Timestamptz `json:"created_at"`
}

type User struct {
	ID        pgtype.UUID        `json:"id"`
	FirstName string             `json:"first_name"`
	LastName  string             `json:"last_name"`
	Email     string             `json:"email"`
	Role      string             `json:"role"`
	FacultyID pgtype.Int8        `json:"faculty_id"`
	CreatedAt pgtype.Timestamptz `json:"created_at"`
}

type VariantOption struct {
	ID         int64          `json:"id"`
	ProductID  int64          `json:"product_id"`
	Name       string         `json:"name"`
	ExtraPrice pgtype.Numeric `json:"extra_price"`
}
