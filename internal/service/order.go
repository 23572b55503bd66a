package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/cuckooeats/backoffice/internal/database"
	"github.com/cuckooeats/backoffice/internal/enum"
)

const (
	MaxTestOrders       = 50
	maxItemsPerOrder    = 3
	maxQuantityPerItem  = 2
	ingredientChance    = 0.25
	defaultCustomerPool = 20
)

// Errors returned by the order service.
var (
	ErrInvalidCount = fmt.Errorf("count must be between 1 and %d", MaxTestOrders)
	ErrNoProducts   = errors.New("no active products with variants available for test orders")
	ErrNoCustomers  = errors.New("no customers available for test orders")
)

// TxBeginner starts a new database transaction.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// OrderStore defines the DB methods needed to generate orders.
// Satisfied by *database.Queries (and its WithTx variant).
type OrderStore interface {
	ListActiveProducts(ctx context.Context) ([]database.Product, error)
	ListVariantOptionsByProduct(ctx context.Context, productID int64) ([]database.VariantOption, error)
	ListIngredientOptionsByProduct(ctx context.Context, productID int64) ([]database.IngredientOption, error)
	ListCustomerIDs(ctx context.Context) ([]pgtype.UUID, error)
	CreateOrder(ctx context.Context, arg database.CreateOrderParams) (database.Order, error)
	CreateOrderDetail(ctx context.Context, arg database.CreateOrderDetailParams) (database.OrderDetail, error)
	CreateOrderDetailIngredient(ctx context.Context, arg database.CreateOrderDetailIngredientParams) error
}

// NewOrderStore creates an OrderStore from a DBTX (pool or tx).
type NewOrderStore func(db database.DBTX) OrderStore

// OrderService generates realistic test orders from the live catalog.
type OrderService struct {
	pool     TxBeginner
	newStore NewOrderStore
	logger   *zap.Logger

	mu  sync.Mutex
	rng *rand.Rand
}

type Option func(*OrderService)

// WithRand fixes the random source.
func WithRand(r *rand.Rand) Option {
	return func(s *OrderService) { s.rng = r }
}

func WithLogger(l *zap.Logger) Option {
	return func(s *OrderService) { s.logger = l }
}

// NewOrderService creates a new OrderService.
func NewOrderService(pool TxBeginner, newStore NewOrderStore, opts ...Option) *OrderService {
	s := &OrderService{
		pool:     pool,
		newStore: newStore,
		logger:   zap.NewNop(),
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type catalogProduct struct {
	id          int64
	basePrice   decimal.Decimal
	variants    []database.VariantOption
	ingredients []database.IngredientOption
}

type generatedLine struct {
	productID   int64
	variantID   int64
	quantity    int32
	unitPrice   decimal.Decimal
	subtotal    decimal.Decimal
	ingredients []int64
}

// GenerateTestOrders inserts count orders in status Recibido, each for a
// random customer with one to three lines. All orders share one transaction.
func (s *OrderService) GenerateTestOrders(ctx context.Context, count int) ([]database.Order, error) {
	if count < 1 || count > MaxTestOrders {
		return nil, ErrInvalidCount
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	products, err := loadCatalog(ctx, store)
	if err != nil {
		return nil, err
	}
	if len(products) == 0 {
		return nil, ErrNoProducts
	}

	customers, err := store.ListCustomerIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("list customers: %w", err)
	}
	if len(customers) > defaultCustomerPool {
		customers = customers[:defaultCustomerPool]
	}
	if len(customers) == 0 {
		return nil, ErrNoCustomers
	}

	created := make([]database.Order, 0, count)
	for i := 0; i < count; i++ {
		customer := customers[s.intn(len(customers))]
		lines := s.generateLines(products)

		total := decimal.Zero
		for _, l := range lines {
			total = total.Add(l.subtotal)
		}

		o, err := store.CreateOrder(ctx, database.CreateOrderParams{
			UserUuid: customer,
			Status:   enum.OrderStatusRecibido,
			Total:    database.DecimalToNumeric(total),
		})
		if err != nil {
			return nil, fmt.Errorf("order[%d]: create order: %w", i, err)
		}

		for j, l := range lines {
			d, err := store.CreateOrderDetail(ctx, database.CreateOrderDetailParams{
				OrderID:         o.ID,
				ProductID:       l.productID,
				VariantOptionID: pgtype.Int8{Int64: l.variantID, Valid: true},
				Quantity:        l.quantity,
				UnitPrice:       database.DecimalToNumeric(l.unitPrice),
				Subtotal:        database.DecimalToNumeric(l.subtotal),
			})
			if err != nil {
				return nil, fmt.Errorf("order[%d].detail[%d]: create detail: %w", i, j, err)
			}
			for _, ingID := range l.ingredients {
				if err := store.CreateOrderDetailIngredient(ctx, database.CreateOrderDetailIngredientParams{
					OrderDetailID:      d.ID,
					IngredientOptionID: ingID,
				}); err != nil {
					return nil, fmt.Errorf("order[%d].detail[%d]: add ingredient: %w", i, j, err)
				}
			}
		}
		created = append(created, o)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	s.logger.Info("test orders generated", zap.Int("count", len(created)))
	return created, nil
}

// loadCatalog returns active products that have at least one variant.
func loadCatalog(ctx context.Context, store OrderStore) ([]catalogProduct, error) {
	rows, err := store.ListActiveProducts(ctx)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}

	var products []catalogProduct
	for _, p := range rows {
		variants, err := store.ListVariantOptionsByProduct(ctx, p.ID)
		if err != nil {
			return nil, fmt.Errorf("product %d: list variants: %w", p.ID, err)
		}
		if len(variants) == 0 {
			continue
		}
		ingredients, err := store.ListIngredientOptionsByProduct(ctx, p.ID)
		if err != nil {
			return nil, fmt.Errorf("product %d: list ingredients: %w", p.ID, err)
		}
		products = append(products, catalogProduct{
			id:          p.ID,
			basePrice:   database.NumericToDecimal(p.BasePrice),
			variants:    variants,
			ingredients: ingredients,
		})
	}
	return products, nil
}

// generateLines picks one to three lines. Lines with the same product,
// variant and ingredient set are merged into one.
func (s *OrderService) generateLines(products []catalogProduct) []generatedLine {
	n := s.intn(maxItemsPerOrder) + 1

	var lines []generatedLine
	index := make(map[string]int)
	for i := 0; i < n; i++ {
		p := products[s.intn(len(products))]
		v := p.variants[s.intn(len(p.variants))]
		qty := int32(s.intn(maxQuantityPerItem) + 1)

		unit := p.basePrice.Add(database.NumericToDecimal(v.ExtraPrice))
		var picked []int64
		for _, ing := range p.ingredients {
			if s.float() < ingredientChance {
				picked = append(picked, ing.ID)
				unit = unit.Add(database.NumericToDecimal(ing.ExtraPrice))
			}
		}
		slices.Sort(picked)

		key := lineKey(p.id, v.ID, picked)
		if at, ok := index[key]; ok {
			lines[at].quantity += qty
			lines[at].subtotal = lines[at].unitPrice.Mul(decimal.NewFromInt32(lines[at].quantity))
			continue
		}
		index[key] = len(lines)
		lines = append(lines, generatedLine{
			productID:   p.id,
			variantID:   v.ID,
			quantity:    qty,
			unitPrice:   unit,
			subtotal:    unit.Mul(decimal.NewFromInt32(qty)),
			ingredients: picked,
		})
	}
	return lines
}

func lineKey(productID, variantID int64, ingredients []int64) string {
	var b strings.Builder
	b.WriteString(strconv.FormatInt(productID, 10))
	b.WriteByte('-')
	b.WriteString(strconv.FormatInt(variantID, 10))
	b.WriteByte('-')
	for i, id := range ingredients {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatInt(id, 10))
	}
	return b.String()
}

func (s *OrderService) intn(n int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.Intn(n)
}

func (s *OrderService) float() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.Float64()
}
