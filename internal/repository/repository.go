package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/cuckooeats/backoffice/internal/database"
	"github.com/cuckooeats/backoffice/internal/metrics"
	"github.com/cuckooeats/backoffice/internal/order"
)

var tracer = otel.Tracer("github.com/cuckooeats/backoffice/repository")

// SQLSTATE insufficient_privilege, raised when row-level security or grants
// refuse the update.
const codeInsufficientPrivilege = "42501"

// Store is the query surface the repository needs.
// Satisfied by *database.Queries; narrow interface for testability.
type Store interface {
	ListOrders(ctx context.Context) ([]database.ListOrdersRow, error)
	ListOrderDetails(ctx context.Context, orderIds []int64) ([]database.ListOrderDetailsRow, error)
	ListOrderDetailIngredients(ctx context.Context, detailIds []int64) ([]database.ListOrderDetailIngredientsRow, error)
	UpdateOrderStatus(ctx context.Context, arg database.UpdateOrderStatusParams) (database.Order, error)
	DeleteAllOrders(ctx context.Context) (int64, error)
}

// TxBeginner starts a transaction with explicit options.
// Satisfied by *pgxpool.Pool.
type TxBeginner interface {
	BeginTx(ctx context.Context, opts pgx.TxOptions) (pgx.Tx, error)
}

// NewStore creates a Store bound to a pool or transaction.
type NewStore func(db database.DBTX) Store

// snapshotTx gives the three list queries one consistent view of the data.
var snapshotTx = pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly}

// Repository reads and writes orders in the shared backend.
type Repository struct {
	store    Store
	pool     TxBeginner
	newStore NewStore
	metrics  *metrics.Metrics
}

// New builds a repository. With a nil pool, FetchAll reads straight from
// store without a snapshot transaction.
func New(store Store, pool TxBeginner, newStore NewStore, m *metrics.Metrics) *Repository {
	return &Repository{store: store, pool: pool, newStore: newStore, metrics: m}
}

// FetchAll returns every order, newest first, with customer, line items,
// and each line's ingredients flattened to name and extra price.
func (r *Repository) FetchAll(ctx context.Context) (orders []order.Order, err error) {
	ctx, span := tracer.Start(ctx, "OrderRepository.FetchAll")
	defer span.End()
	start := time.Now()
	defer func() {
		r.metrics.ObserveRepo("fetch_all", start, err)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "fetch failed")
		}
	}()

	if r.pool == nil || r.newStore == nil {
		orders, err = r.readOrders(ctx, r.store)
	} else {
		orders, err = r.readSnapshot(ctx)
	}
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.Int("orders.count", len(orders)))
	return orders, nil
}

func (r *Repository) readSnapshot(ctx context.Context) ([]order.Order, error) {
	tx, err := r.pool.BeginTx(ctx, snapshotTx)
	if err != nil {
		return nil, &order.Error{Kind: order.KindFetch, Op: "begin snapshot", Err: err}
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	orders, err := r.readOrders(ctx, r.newStore(tx))
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, &order.Error{Kind: order.KindFetch, Op: "commit snapshot", Err: err}
	}
	return orders, nil
}

func (r *Repository) readOrders(ctx context.Context, store Store) ([]order.Order, error) {
	rows, err := store.ListOrders(ctx)
	if err != nil {
		return nil, &order.Error{Kind: order.KindFetch, Op: "fetch orders", Err: err}
	}

	orders := make([]order.Order, 0, len(rows))
	index := make(map[int64]int, len(rows))
	orderIDs := make([]int64, 0, len(rows))
	for _, row := range rows {
		index[row.ID] = len(orders)
		orderIDs = append(orderIDs, row.ID)
		orders = append(orders, orderFromListRow(row))
	}
	if len(orders) == 0 {
		return orders, nil
	}

	details, err := store.ListOrderDetails(ctx, orderIDs)
	if err != nil {
		return nil, &order.Error{Kind: order.KindFetch, Op: "fetch order details", Err: err}
	}

	type detailPos struct{ order, detail int }
	detailIndex := make(map[int64]detailPos, len(details))
	detailIDs := make([]int64, 0, len(details))
	for _, d := range details {
		oi, ok := index[d.OrderID]
		if !ok {
			continue
		}
		detailIndex[d.ID] = detailPos{order: oi, detail: len(orders[oi].Details)}
		detailIDs = append(detailIDs, d.ID)
		orders[oi].Details = append(orders[oi].Details, detailFromRow(d))
	}
	if len(detailIDs) == 0 {
		return orders, nil
	}

	ingredients, err := store.ListOrderDetailIngredients(ctx, detailIDs)
	if err != nil {
		return nil, &order.Error{Kind: order.KindFetch, Op: "fetch detail ingredients", Err: err}
	}
	for _, ing := range ingredients {
		pos, ok := detailIndex[ing.OrderDetailID]
		if !ok {
			continue
		}
		d := &orders[pos.order].Details[pos.detail]
		d.Ingredients = append(d.Ingredients, ingredientFromRow(ing))
	}

	return orders, nil
}

// UpdateStatus persists a status change for one order. Zero affected rows and
// permission failures are indistinguishable to the caller and both surface as
// a rejection; anything else is a transport failure.
func (r *Repository) UpdateStatus(ctx context.Context, id int64, status order.Status) (updated order.Order, err error) {
	ctx, span := tracer.Start(ctx, "OrderRepository.UpdateStatus", trace.WithAttributes(
		attribute.Int64("order.id", id),
		attribute.String("order.status", string(status)),
	))
	defer span.End()
	start := time.Now()
	defer func() {
		r.metrics.ObserveRepo("update_status", start, err)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "update failed")
		}
	}()

	if !status.Valid() {
		return order.Order{}, &order.Error{Kind: order.KindTransitionRejected, Op: "update status", OrderID: id, Err: order.ErrInvalidStatus}
	}

	row, err := r.store.UpdateOrderStatus(ctx, database.UpdateOrderStatusParams{
		ID:     id,
		Status: string(status),
	})
	if err != nil {
		if isRejection(err) {
			return order.Order{}, &order.Error{Kind: order.KindTransitionRejected, Op: "update status", OrderID: id, Err: order.ErrNotFoundOrForbidden}
		}
		return order.Order{}, &order.Error{Kind: order.KindTransitionTransport, Op: "update status", OrderID: id, Err: err}
	}

	r.metrics.ObserveTransition(row.Status)
	return orderFromRow(row), nil
}

// DeleteAll removes every order. Line items and their ingredients go with
// them through cascading foreign keys.
func (r *Repository) DeleteAll(ctx context.Context) (n int64, err error) {
	ctx, span := tracer.Start(ctx, "OrderRepository.DeleteAll")
	defer span.End()
	start := time.Now()
	defer func() {
		r.metrics.ObserveRepo("delete_all", start, err)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "delete failed")
		}
	}()

	n, err = r.store.DeleteAllOrders(ctx)
	if err != nil {
		return 0, err
	}
	span.SetAttributes(attribute.Int64("orders.deleted", n))
	return n, nil
}

func isRejection(err error) bool {
	if errors.Is(err, pgx.ErrNoRows) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == codeInsufficientPrivilege
	}
	return false
}

func orderFromListRow(row database.ListOrdersRow) order.Order {
	o := order.Order{
		ID:          row.ID,
		UserUUID:    database.UUIDFromPg(row.UserUuid),
		Status:      order.Status(row.Status),
		Total:       database.NumericToDecimal(row.Total),
		CreatedAt:   row.CreatedAt.Time,
		StartedAt:   database.TimestamptzPtr(row.StartedAt),
		ReadyAt:     database.TimestamptzPtr(row.ReadyAt),
		DeliveredAt: database.TimestamptzPtr(row.DeliveredAt),
		UpdatedAt:   row.UpdatedAt.Time,
		Details:     []order.OrderDetail{},
	}
	if row.FirstName.Valid || row.LastName.Valid {
		o.User = &order.Customer{
			FirstName: row.FirstName.String,
			LastName:  row.LastName.String,
			FacultyID: database.Int8Ptr(row.FacultyID),
		}
	}
	return o
}

func orderFromRow(row database.Order) order.Order {
	return order.Order{
		ID:          row.ID,
		UserUUID:    database.UUIDFromPg(row.UserUuid),
		Status:      order.Status(row.Status),
		Total:       database.NumericToDecimal(row.Total),
		CreatedAt:   row.CreatedAt.Time,
		StartedAt:   database.TimestamptzPtr(row.StartedAt),
		ReadyAt:     database.TimestamptzPtr(row.ReadyAt),
		DeliveredAt: database.TimestamptzPtr(row.DeliveredAt),
		UpdatedAt:   row.UpdatedAt.Time,
	}
}

func detailFromRow(row database.ListOrderDetailsRow) order.OrderDetail {
	d := order.OrderDetail{
		ID:              row.ID,
		ProductID:       row.ProductID,
		VariantOptionID: database.Int8Ptr(row.VariantOptionID),
		Quantity:        row.Quantity,
		UnitPrice:       database.NumericToDecimal(row.UnitPrice),
		Subtotal:        database.NumericToDecimal(row.Subtotal),
		Product:         order.Product{Name: row.ProductName},
		Ingredients:     []order.Ingredient{},
	}
	if row.VariantName.Valid {
		d.Product.Variant = &order.Variant{Name: row.VariantName.String}
	}
	return d
}

func ingredientFromRow(row database.ListOrderDetailIngredientsRow) order.Ingredient {
	ing := order.Ingredient{Name: row.Name}
	if row.ExtraPrice.Valid {
		p := database.NumericToDecimal(row.ExtraPrice)
		ing.ExtraPrice = &p
	}
	return ing
}
