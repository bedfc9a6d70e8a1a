package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/dairysangam/vetcore/internal/config"
	"github.com/dairysangam/vetcore/internal/domain/audit"
	"github.com/dairysangam/vetcore/internal/domain/cases"
	"github.com/dairysangam/vetcore/internal/domain/hierarchy"
	"github.com/dairysangam/vetcore/internal/domain/payment"
	"github.com/dairysangam/vetcore/internal/domain/pricing"
	"github.com/dairysangam/vetcore/internal/domain/registry"
	"github.com/dairysangam/vetcore/internal/domain/stock"
	"github.com/dairysangam/vetcore/internal/platform/apperr"
	"github.com/dairysangam/vetcore/internal/platform/auth"
	"github.com/dairysangam/vetcore/internal/platform/db"
	"github.com/dairysangam/vetcore/internal/platform/middleware"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "vetcore-server",
		Short: "Veterinary case lifecycle API server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(tokenCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, db.PoolConfig{URL: cfg.DatabaseURL, MaxConns: cfg.DBMaxConns, MinConns: cfg.DBMinConns})
			if err != nil {
				return err
			}
			defer pool.Close()

			count, err := db.NewMigrator(pool, dir).Up(ctx)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			fmt.Printf("Applied %d migration(s).\n", count)
			return nil
		},
	}
	upCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(upCmd)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, db.PoolConfig{URL: cfg.DatabaseURL, MaxConns: cfg.DBMaxConns, MinConns: cfg.DBMinConns})
			if err != nil {
				return err
			}
			defer pool.Close()

			statuses, err := db.NewMigrator(pool, dir).Status(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
			for _, s := range statuses {
				status := "pending"
				appliedAt := ""
				if s.Applied {
					status = "applied"
					if s.AppliedAt != nil {
						appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
					}
				}
				fmt.Printf("%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
			}
			return nil
		},
	}
	statusCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(statusCmd)

	return cmd
}

// tokenCmd signs a development JWT for manual API testing.
func tokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a development JWT",
		RunE: func(cmd *cobra.Command, args []string) error {
			sub, _ := cmd.Flags().GetString("user-id")
			dept, _ := cmd.Flags().GetString("department")

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cfg.JWTSecret == "" {
				return fmt.Errorf("JWT_SECRET is not configured")
			}

			ident := &auth.Identity{UserID: uuid.New(), Name: "cli", Department: dept}
			if sub != "" {
				id, err := uuid.Parse(sub)
				if err != nil {
					return err
				}
				ident.UserID = id
			}
			token, err := auth.IssueToken([]byte(cfg.JWTSecret), ident)
			if err != nil {
				return err
			}
			fmt.Println(token)
			return nil
		},
	}
	cmd.Flags().String("user-id", "", "Subject user id (uuid)")
	cmd.Flags().String("department", "ADMIN", "Department claim")
	return cmd
}

func runServer() error {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if os.Getenv("ENV") == "development" || os.Getenv("ENV") == "" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}
	loc, err := cfg.Location()
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid timezone")
	}

	ctx := context.Background()
	pool, err := db.NewPool(ctx, db.PoolConfig{URL: cfg.DatabaseURL, MaxConns: cfg.DBMaxConns, MinConns: cfg.DBMinConns})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = apperr.HTTPErrorHandler(logger)

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
	}))

	if cfg.IsDev() && cfg.JWTSecret == "" {
		e.Use(auth.DevAuthMiddleware())
	} else {
		e.Use(auth.JWTMiddleware([]byte(cfg.JWTSecret)))
	}

	e.GET("/health", db.HealthHandler(pool))

	apiV1 := e.Group("/api/v1")

	rateLimitCfg := middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
	}
	if rateLimitCfg.RequestsPerSecond <= 0 {
		rateLimitCfg = middleware.DefaultRateLimitConfig()
	}
	apiV1.Use(middleware.RateLimit(rateLimitCfg))
	apiV1.Use(middleware.RequestTimeout(time.Duration(cfg.RequestTimeoutSeconds) * time.Second))

	txRunner := db.RunnerFor(pool)

	// Hierarchy
	hierarchySvc := hierarchy.NewService(hierarchy.NewUserRepoPG(pool), hierarchy.NewEdgeRepoPG(pool))
	hierarchy.NewHandler(hierarchySvc).RegisterRoutes(apiV1)

	// Pricing
	pricingSvc := pricing.NewService(pricing.NewRepoPG(pool), txRunner, loc)
	pricing.NewHandler(pricingSvc).RegisterRoutes(apiV1)

	// Registry
	registrySvc := registry.NewService(
		registry.NewMemberRepoPG(pool),
		registry.NewNonMemberRepoPG(pool),
		registry.NewAnimalRepoPG(pool),
		registry.NewTagRepoPG(pool),
		registry.NewStatusLogRepoPG(pool),
		txRunner,
	)
	registry.NewHandler(registrySvc).RegisterRoutes(apiV1)

	// Stock
	stockSvc := stock.NewService(
		stock.NewMedicineRepoPG(pool),
		stock.NewStockRepoPG(pool),
		stock.NewAllocationRepoPG(pool),
		stock.NewTransactionRepoPG(pool),
		txRunner,
	)
	stock.NewHandler(stockSvc).RegisterRoutes(apiV1)

	// Audit
	auditSvc := audit.NewService(audit.NewRepoPG(pool), audit.NewSyncRepoPG(pool))
	audit.NewHandler(auditSvc).RegisterRoutes(apiV1)

	// Cases feed the payment ledger its totals; the ledger summarizes
	// cases. Construct cases first, then close the loop.
	caseSvc := cases.NewService(
		cases.NewRepoPG(pool),
		cases.NewAssignmentLogRepoPG(pool),
		cases.NewDiagnosisRepoPG(pool),
		cases.NewTreatmentRepoPG(pool),
		pricingSvc, registrySvc, hierarchySvc, auditSvc,
		txRunner, loc,
	)
	paymentSvc := payment.NewService(payment.NewRepoPG(pool), caseSvc, txRunner, payment.Options{
		GraceDays:        cfg.PaymentGraceDays,
		AllowOverpayment: cfg.AllowOverpayment,
	})
	caseSvc.SetSummarizer(paymentSvc)
	cases.NewHandler(caseSvc).RegisterRoutes(apiV1)
	payment.NewHandler(paymentSvc).RegisterRoutes(apiV1)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: e,
	}

	go func() {
		logger.Info().Str("port", cfg.Port).Str("env", cfg.Env).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("forced shutdown")
		return err
	}
	logger.Info().Msg("server stopped")
	return nil
}
