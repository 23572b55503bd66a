package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/cuckooeats/backoffice/internal/app"
	"github.com/cuckooeats/backoffice/internal/auth"
	"github.com/cuckooeats/backoffice/internal/config"
	"github.com/cuckooeats/backoffice/internal/database"
	"github.com/cuckooeats/backoffice/internal/enum"
	"github.com/cuckooeats/backoffice/internal/metrics"
	"github.com/cuckooeats/backoffice/internal/realtime"
	"github.com/cuckooeats/backoffice/internal/repository"
	"github.com/cuckooeats/backoffice/internal/seed"
	"github.com/cuckooeats/backoffice/internal/service"
)

const stopTimeout = 10 * time.Second

// NewRootCommand builds the backoffice CLI.
func NewRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "backoffice",
		Short:         "Cafeteria order fulfillment back office",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(newServeCmd())
	root.AddCommand(newMigrateCmd())
	root.AddCommand(newSeedCmd())
	root.AddCommand(newOrdersCmd())
	root.AddCommand(newFeedCmd())
	root.AddCommand(newTokenCmd())

	return root
}

// Execute runs the CLI until it finishes or the process is interrupted.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := NewRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return err
	}
	return nil
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "serve",
		Aliases: []string{"start", "run"},
		Short:   "Run the HTTP and websocket service",
		RunE: func(cmd *cobra.Command, args []string) error {
			application := fx.New(app.Module)
			if err := application.Start(cmd.Context()); err != nil {
				return err
			}
			<-cmd.Context().Done()
			stopCtx, cancel := context.WithTimeout(context.Background(), stopTimeout)
			defer cancel()
			return application.Stop(stopCtx)
		},
	}
}

func newMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if err := database.MigrateUp(cfg.DatabaseURL); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
			return nil
		},
	}

	downCmd := &cobra.Command{
		Use:   "down",
		Short: "Rollback migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			steps, _ := cmd.Flags().GetInt("steps")
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if err := database.MigrateDown(cfg.DatabaseURL, steps); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "migrations rolled back")
			return nil
		},
	}
	downCmd.Flags().Int("steps", 1, "Number of migration steps to rollback")

	cmd.AddCommand(upCmd, downCmd)
	return cmd
}

func newSeedCmd() *cobra.Command {
	defaults := seed.DefaultOptions()
	opts := defaults

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Create staff accounts, customers and the product catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				pool *pgxpool.Pool
				log  *zap.Logger
			)
			fxOpts := fx.Options(app.Core, fx.Populate(&pool, &log))
			return runWithApp(cmd.Context(), fxOpts, func(ctx context.Context) error {
				seeder := seed.New(pool, func(db database.DBTX) seed.Store {
					return database.New(db)
				}, log)
				res, err := seeder.Run(ctx, opts)
				if errors.Is(err, seed.ErrAlreadySeeded) {
					fmt.Fprintf(cmd.OutOrStdout(), "%s already exists, nothing to do\n", opts.AdminEmail)
					return nil
				}
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "seeded %d users, %d products, %d variants, %d ingredients\n",
					res.Users, res.Products, res.Variants, res.Ingredients)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&opts.AdminEmail, "admin-email", defaults.AdminEmail, "Administrator email")
	cmd.Flags().StringVar(&opts.AdminFirst, "admin-first-name", defaults.AdminFirst, "Administrator first name")
	cmd.Flags().StringVar(&opts.AdminLast, "admin-last-name", defaults.AdminLast, "Administrator last name")
	cmd.Flags().StringVar(&opts.OperatorEmail, "operator-email", defaults.OperatorEmail, "Kitchen operator email (empty to skip)")
	cmd.Flags().IntVar(&opts.Customers, "customers", defaults.Customers, "Number of customer accounts")
	return cmd
}

func newOrdersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "orders",
		Short: "Maintain order data",
	}

	purgeCmd := &cobra.Command{
		Use:   "purge",
		Short: "Delete every order",
		RunE: func(cmd *cobra.Command, args []string) error {
			yes, _ := cmd.Flags().GetBool("yes")
			if !yes {
				return errors.New("refusing to delete all orders without --yes")
			}
			var repo *repository.Repository
			fxOpts := fx.Options(app.Core, fx.Populate(&repo))
			return runWithApp(cmd.Context(), fxOpts, func(ctx context.Context) error {
				n, err := repo.DeleteAll(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "deleted %d orders\n", n)
				return nil
			})
		},
	}
	purgeCmd.Flags().Bool("yes", false, "Confirm deletion")

	generateCmd := &cobra.Command{
		Use:   "generate",
		Short: "Create random test orders from the catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			count, _ := cmd.Flags().GetInt("count")
			var svc *service.OrderService
			fxOpts := fx.Options(app.Core, fx.Populate(&svc))
			return runWithApp(cmd.Context(), fxOpts, func(ctx context.Context) error {
				orders, err := svc.GenerateTestOrders(ctx, count)
				if err != nil {
					return err
				}
				for _, o := range orders {
					fmt.Fprintf(cmd.OutOrStdout(), "created order #%d\n", o.ID)
				}
				return nil
			})
		},
	}
	generateCmd.Flags().Int("count", 1, fmt.Sprintf("Number of orders (1-%d)", service.MaxTestOrders))

	cmd.AddCommand(purgeCmd, generateCmd)
	return cmd
}

func newFeedCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "feed",
		Short: "Order change feed tools",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "relay",
		Short: "Forward database change notifications to the configured broker",
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				cfg  *config.Config
				pool *pgxpool.Pool
				log  *zap.Logger
				m    *metrics.Metrics
			)
			fxOpts := fx.Options(app.Core, fx.Populate(&cfg, &pool, &log, &m))
			return runWithApp(cmd.Context(), fxOpts, func(ctx context.Context) error {
				pub, err := realtime.NewPublisher(cfg.Realtime, log)
				if err != nil {
					return err
				}
				defer pub.Close()

				src := realtime.NewPostgresSource(pool, cfg.Realtime.Channel, log.Named("feed"))
				log.Info("relaying order changes",
					zap.String("channel", cfg.Realtime.Channel),
					zap.String("broker", pub.Name()),
				)
				realtime.Relay(ctx, src, pub, log.Named("relay"), m, cfg.Realtime.ReconnectMax)
				return nil
			})
		},
	})
	return cmd
}

func newTokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Staff access tokens",
	}

	issueCmd := &cobra.Command{
		Use:   "issue",
		Short: "Print a signed staff token",
		RunE: func(cmd *cobra.Command, args []string) error {
			rawUser, _ := cmd.Flags().GetString("user")
			role, _ := cmd.Flags().GetString("role")
			ttl, _ := cmd.Flags().GetDuration("ttl")

			userID := uuid.New()
			if rawUser != "" {
				id, err := uuid.Parse(rawUser)
				if err != nil {
					return fmt.Errorf("invalid --user: %w", err)
				}
				userID = id
			}
			if role != enum.UserRoleAdministrador && role != enum.UserRoleOperador {
				return fmt.Errorf("role must be %s or %s", enum.UserRoleAdministrador, enum.UserRoleOperador)
			}

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			token, err := auth.GenerateToken(cfg.JWTSecret, userID, role, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	issueCmd.Flags().String("user", "", "User ID (random when empty)")
	issueCmd.Flags().String("role", enum.UserRoleOperador, "Staff role")
	issueCmd.Flags().Duration("ttl", auth.DefaultTTL, "Token lifetime")

	cmd.AddCommand(issueCmd)
	return cmd
}

func runWithApp(ctx context.Context, opts fx.Option, fn func(context.Context) error) error {
	application := fx.New(opts, fx.NopLogger)
	if err := application.Start(ctx); err != nil {
		return err
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), stopTimeout)
		defer cancel()
		_ = application.Stop(stopCtx)
	}()
	return fn(ctx)
}
