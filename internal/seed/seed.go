package seed

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/cuckooeats/backoffice/internal/database"
	"github.com/cuckooeats/backoffice/internal/enum"
)

// ErrAlreadySeeded is returned when the admin account already exists.
var ErrAlreadySeeded = errors.New("database already seeded")

// TxBeginner is satisfied by *pgxpool.Pool.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Store is the write surface the seeder needs. Satisfied by *database.Queries.
type Store interface {
	CountUsersByEmail(ctx context.Context, email string) (int64, error)
	CreateUser(ctx context.Context, arg database.CreateUserParams) (database.User, error)
	CreateProduct(ctx context.Context, arg database.CreateProductParams) (database.Product, error)
	CreateVariantOption(ctx context.Context, arg database.CreateVariantOptionParams) (database.VariantOption, error)
	CreateIngredientOption(ctx context.Context, arg database.CreateIngredientOptionParams) (database.IngredientOption, error)
}

type Options struct {
	AdminEmail    string
	AdminFirst    string
	AdminLast     string
	OperatorEmail string
	Customers     int
}

func DefaultOptions() Options {
	return Options{
		AdminEmail:    "admin@cafeteria.local",
		AdminFirst:    "Admin",
		AdminLast:     "Cafetería",
		OperatorEmail: "cocina@cafeteria.local",
		Customers:     20,
	}
}

// Result counts what was created.
type Result struct {
	Users       int
	Products    int
	Variants    int
	Ingredients int
}

type option struct {
	name  string
	extra string
}

type product struct {
	name        string
	basePrice   string
	variants    []option
	ingredients []option
}

var catalog = []product{
	{
		name:      "Menú del día",
		basePrice: "12.00",
		variants:  []option{{"Pollo", "0"}, {"Pescado", "2.50"}, {"Vegetariano", "0"}},
		ingredients: []option{
			{"Arroz extra", "1.00"},
			{"Ensalada", "0.50"},
			{"Huevo frito", "1.50"},
		},
	},
	{
		name:        "Lomo saltado",
		basePrice:   "15.00",
		variants:    []option{{"Regular", "0"}, {"Grande", "4.00"}},
		ingredients: []option{{"Papas extra", "1.50"}, {"Ají", "0"}},
	},
	{
		name:      "Sándwich de pollo",
		basePrice: "8.50",
		variants:  []option{{"Pan blanco", "0"}, {"Pan integral", "0.80"}},
		ingredients: []option{
			{"Palta", "1.20"},
			{"Queso", "1.00"},
		},
	},
	{
		name:      "Jugo natural",
		basePrice: "4.00",
		variants:  []option{{"Naranja", "0"}, {"Maracuyá", "0.50"}, {"Papaya", "0"}},
	},
}

var firstNames = []string{"Lucía", "Mateo", "Valentina", "Santiago", "Camila", "Diego", "Sofía", "Joaquín", "Daniela", "Andrés"}
var lastNames = []string{"Quispe", "Flores", "Rojas", "Huamán", "Vargas", "Mendoza", "Castillo", "Torres"}

type Seeder struct {
	pool     TxBeginner
	newStore func(db database.DBTX) Store
	logger   *zap.Logger
}

func New(pool TxBeginner, newStore func(db database.DBTX) Store, logger *zap.Logger) *Seeder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Seeder{pool: pool, newStore: newStore, logger: logger}
}

// Run creates the staff accounts, the customer pool and the product catalog
// in one transaction. A database that already has the admin is left alone.
func (s *Seeder) Run(ctx context.Context, opts Options) (Result, error) {
	var res Result
	if opts.AdminEmail == "" {
		return res, fmt.Errorf("admin email is required")
	}
	if opts.Customers < 0 {
		return res, fmt.Errorf("customers must not be negative")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return res, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	q := s.newStore(tx)

	n, err := q.CountUsersByEmail(ctx, opts.AdminEmail)
	if err != nil {
		return res, fmt.Errorf("check admin: %w", err)
	}
	if n > 0 {
		return res, ErrAlreadySeeded
	}

	staff := []database.CreateUserParams{
		{FirstName: opts.AdminFirst, LastName: opts.AdminLast, Email: opts.AdminEmail, Role: enum.UserRoleAdministrador},
	}
	if opts.OperatorEmail != "" {
		staff = append(staff, database.CreateUserParams{
			FirstName: "Cocina", LastName: "Turno", Email: opts.OperatorEmail, Role: enum.UserRoleOperador,
		})
	}
	for _, u := range staff {
		if _, err := q.CreateUser(ctx, u); err != nil {
			return res, fmt.Errorf("create user %s: %w", u.Email, err)
		}
		res.Users++
	}

	for i := 0; i < opts.Customers; i++ {
		arg := database.CreateUserParams{
			FirstName: firstNames[i%len(firstNames)],
			LastName:  lastNames[(i/len(firstNames)+i)%len(lastNames)],
			Email:     fmt.Sprintf("cliente%02d@cafeteria.local", i+1),
			Role:      enum.UserRoleCliente,
			FacultyID: pgtype.Int8{Int64: int64(20240001 + i), Valid: true},
		}
		if _, err := q.CreateUser(ctx, arg); err != nil {
			return res, fmt.Errorf("create customer %s: %w", arg.Email, err)
		}
		res.Users++
	}

	for _, p := range catalog {
		created, err := q.CreateProduct(ctx, database.CreateProductParams{
			Name:      p.name,
			BasePrice: price(p.basePrice),
			IsActive:  true,
		})
		if err != nil {
			return res, fmt.Errorf("create product %s: %w", p.name, err)
		}
		res.Products++

		for _, v := range p.variants {
			if _, err := q.CreateVariantOption(ctx, database.CreateVariantOptionParams{
				ProductID:  created.ID,
				Name:       v.name,
				ExtraPrice: price(v.extra),
			}); err != nil {
				return res, fmt.Errorf("create variant %s: %w", v.name, err)
			}
			res.Variants++
		}
		for _, ing := range p.ingredients {
			if _, err := q.CreateIngredientOption(ctx, database.CreateIngredientOptionParams{
				ProductID:  created.ID,
				Name:       ing.name,
				ExtraPrice: price(ing.extra),
			}); err != nil {
				return res, fmt.Errorf("create ingredient %s: %w", ing.name, err)
			}
			res.Ingredients++
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return res, fmt.Errorf("commit tx: %w", err)
	}

	s.logger.Info("seed completed",
		zap.Int("users", res.Users),
		zap.Int("products", res.Products),
		zap.Int("variants", res.Variants),
		zap.Int("ingredients", res.Ingredients),
	)
	return res, nil
}

func price(s string) pgtype.Numeric {
	return database.DecimalToNumeric(decimal.RequireFromString(s))
}
