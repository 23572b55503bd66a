package database

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

const listActiveProducts = `-- name: ListActiveProducts :many
SELECT id, name, base_price, is_active, created_at FROM products
WHERE is_active = true
ORDER BY id
`

func (q *Queries) ListActiveProducts(ctx context.Context) ([]Product, error) {
	rows, err := q.db.Query(ctx, listActiveProducts)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Product
	for rows.Next() {
		var i Product
		if err := rows.Scan(&i.ID, &i.Name, &i.BasePrice, &i.IsActive, &i.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const listVariantOptionsByProduct = `-- name: ListVariantOptionsByProduct :many
SELECT id, product_id, name, extra_price FROM variant_options
WHERE product_id = $1
ORDER BY id
`

func (q *Queries) ListVariantOptionsByProduct(ctx context.Context, productID int64) ([]VariantOption, error) {
	rows, err := q.db.Query(ctx, listVariantOptionsByProduct, productID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []VariantOption
	for rows.Next() {
		var i VariantOption
		if err := rows.Scan(&i.ID, &i.ProductID, &i.Name, &i.ExtraPrice); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const listIngredientOptionsByProduct = `-- name: ListIngredientOptionsByProduct :many
SELECT id, product_id, name, extra_price FROM ingredient_options
WHERE product_id = $1
ORDER BY id
`

func (q *Queries) ListIngredientOptionsByProduct(ctx context.Context, productID int64) ([]IngredientOption, error) {
	rows, err := q.db.Query(ctx, listIngredientOptionsByProduct, productID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []IngredientOption
	for rows.Next() {
		var i IngredientOption
		if err := rows.Scan(&i.ID, &i.ProductID, &i.Name, &i.ExtraPrice); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const listCustomerIDs = `-- name: ListCustomerIDs :many
SELECT id FROM users
WHERE role = 'Cliente'
ORDER BY created_at
`

func (q *Queries) ListCustomerIDs(ctx context.Context) ([]pgtype.UUID, error) {
	rows, err := q.db.Query(ctx, listCustomerIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []pgtype.UUID
	for rows.Next() {
		var id pgtype.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		items = append(items, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const createUser = `-- name: CreateUser :one
INSERT INTO users (first_name, last_name, email, role, faculty_id)
VALUES ($1, $2, $3, $4, $5)
RETURNING id, first_name, last_name, email, role, faculty_id, created_at
`

type CreateUserParams struct {
	FirstName string      `json:"first_name"`
	LastName  string      `json:"last_name"`
	Email     string      `json:"email"`
	Role      string      `json:"role"`
	FacultyID pgtype.Int8 `json:"faculty_id"`
}

func (q *Queries) CreateUser(ctx context.Context, arg CreateUserParams) (User, error) {
	row := q.db.QueryRow(ctx, createUser, arg.FirstName, arg.LastName, arg.Email, arg.Role, arg.FacultyID)
	var i User
	err := row.Scan(&i.ID, &i.FirstName, &i.LastName, &i.Email, &i.Role, &i.FacultyID, &i.CreatedAt)
	return i, err
}

const createProduct = `-- name: CreateProduct :one
INSERT INTO products (name, base_price, is_active)
VALUES ($1, $2, $3)
RETURNING id, name, base_price, is_active, created_at
`

type CreateProductParams struct {
	Name      string         `json:"name"`
	BasePrice pgtype.Numeric `json:"base_price"`
	IsActive  bool           `json:"is_active"`
}

func (q *Queries) CreateProduct(ctx context.Context, arg CreateProductParams) (Product, error) {
	row := q.db.QueryRow(ctx, createProduct, arg.Name, arg.BasePrice, arg.IsActive)
	var i Product
	err := row.Scan(&i.ID, &i.Name, &i.BasePrice, &i.IsActive, &i.CreatedAt)
	return i, err
}

const createVariantOption = `-- name: CreateVariantOption :one
INSERT INTO variant_options (product_id, name, extra_price)
VALUES ($1, $2, $3)
RETURNING id, product_id, name, extra_price
`

type CreateVariantOptionParams struct {
	ProductID  int64          `json:"product_id"`
	Name       string         `json:"name"`
	ExtraPrice pgtype.Numeric `json:"extra_price"`
}

func (q *Queries) CreateVariantOption(ctx context.Context, arg CreateVariantOptionParams) (VariantOption, error) {
	row := q.db.QueryRow(ctx, createVariantOption, arg.ProductID, arg.Name, arg.ExtraPrice)
	var i VariantOption
	err := row.Scan(&i.ID, &i.ProductID, &i.Name, &i.ExtraPrice)
	return i, err
}

const createIngredientOption = `-- name: CreateIngredientOption :one
INSERT INTO ingredient_options (product_id, name, extra_price)
VALUES ($1, $2, $3)
RETURNING id, product_id, name, extra_price
`

type CreateIngredientOptionParams struct {
	ProductID  int64          `json:"product_id"`
	Name       string         `json:"name"`
	ExtraPrice pgtype.Numeric `json:"extra_price"`
}

func (q *Queries) CreateIngredientOption(ctx context.Context, arg CreateIngredientOptionParams) (IngredientOption, error) {
	row := q.db.QueryRow(ctx, createIngredientOption, arg.ProductID, arg.Name, arg.ExtraPrice)
	var i IngredientOption
	err := row.Scan(&i.ID, &i.ProductID, &i.Name, &i.ExtraPrice)
	return i, err
}

const countUsersByEmail = `-- name: CountUsersByEmail :one
SELECT count(*) FROM users WHERE email = $1
`

func (q *Queries) CountUsersByEmail(ctx context.Context, email string) (int64, error) {
	row := q.db.QueryRow(ctx, countUsersByEmail, email)
	var count int64
	err := row.Scan(&count)
	return count, err
}
