package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/inmo/backoffice/internal/config"
	"github.com/inmo/backoffice/internal/domain/agenda"
	"github.com/inmo/backoffice/internal/domain/owner"
	"github.com/inmo/backoffice/internal/domain/task"
	"github.com/inmo/backoffice/internal/platform/auth"
	"github.com/inmo/backoffice/internal/platform/db"
	"github.com/inmo/backoffice/internal/platform/metrics"
	"github.com/inmo/backoffice/internal/platform/middleware"
	"github.com/inmo/backoffice/migrations"
)

const version = "0.1.0"

func main() {
	rootCmd := &cobra.Command{
		Use:   "backoffice-server",
		Short: "Real estate back-office API server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(slotsCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the back-office API server",
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
			ctx := context.Background()
			migrator, pool, err := openMigrator(ctx, cmd)
			if err != nil {
				return err
			}
			defer pool.Close()

			target, _ := cmd.Flags().GetInt("to")
			count, err := migrator.UpTo(ctx, target)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}
	migrateFlags(upCmd)
	upCmd.Flags().Int("to", 0, "Stop after this version (0 applies all)")
	cmd.AddCommand(upCmd)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			migrator, pool, err := openMigrator(ctx, cmd)
			if err != nil {
				return err
			}
			defer pool.Close()

			statuses, err := migrator.Status(ctx)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}
			printStatus(cmd.OutOrStdout(), statuses)
			return nil
		},
	}
	migrateFlags(statusCmd)
	cmd.AddCommand(statusCmd)

	return cmd
}

func migrateFlags(cmd *cobra.Command) {
	cmd.Flags().String("schema", db.DefaultSchema, "Target schema for migrations")
	cmd.Flags().String("dir", "", "Read migrations from this directory instead of the embedded set")
}

func openMigrator(ctx context.Context, cmd *cobra.Command) (*db.Migrator, *pgxpool.Pool, error) {
	schema, _ := cmd.Flags().GetString("schema")
	dir, _ := cmd.Flags().GetString("dir")

	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	pool, err := db.NewPool(ctx, poolOptions(cfg))
	if err != nil {
		return nil, nil, err
	}
	return db.NewMigrator(pool, migrationFS(dir)).WithSchema(schema), pool, nil
}

func poolOptions(cfg *config.Config) db.PoolOptions {
	return db.PoolOptions{
		DatabaseURL: cfg.DatabaseURL,
		MaxConns:    cfg.DBMaxConns,
		MinConns:    cfg.DBMinConns,
		TimeZone:    cfg.Timezone,
	}
}

func migrationFS(dir string) fs.FS {
	if dir != "" {
		return os.DirFS(dir)
	}
	return migrations.FS
}

func printStatus(w io.Writer, statuses []db.MigrationStatus) {
	fmt.Fprintf(w, "%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
	fmt.Fprintln(w, "---------- ---------------------------------------- ---------- --------------------")
	for _, s := range statuses {
		status := "pending"
		appliedAt := ""
		if s.Applied {
			status = "applied"
			if s.AppliedAt != nil {
				appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
			}
		}
		fmt.Fprintf(w, "%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
	}
}

func slotsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "slots",
		Short: "Print the visit slot catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			asJSON, _ := cmd.Flags().GetBool("json")
			return printSlots(cmd.OutOrStdout(), asJSON)
		},
	}
	cmd.Flags().Bool("json", false, "Print the catalog as JSON")
	return cmd
}

func printSlots(w io.Writer, asJSON bool) error {
	slots := agenda.Slots()
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(slots)
	}
	for _, s := range slots {
		fmt.Fprintf(w, "%-8s %s\n", s.Label, s.Window())
	}
	return nil
}

// stores bundles the persistence the HTTP server needs.
type stores struct {
	visits   agenda.VisitRepository
	tasks    task.TaskRepository
	owners   owner.OwnerRepository
	runTx    agenda.TxRunner
	dbHealth echo.HandlerFunc
}

func pgStores(pool *pgxpool.Pool) stores {
	return stores{
		visits: agenda.NewVisitRepoPG(pool),
		tasks:  task.NewTaskRepoPG(pool),
		owners: owner.NewOwnerRepoPG(pool),
		runTx: func(ctx context.Context, fn func(ctx context.Context) error) error {
			return db.RunInTx(ctx, pool, fn)
		},
		dbHealth: db.HealthHandler(pool),
	}
}

// newServer wires middleware, services and routes. The returned agenda
// service must be closed after the server stops.
func newServer(cfg *config.Config, logger zerolog.Logger, st stores, m *metrics.Metrics) (*echo.Echo, *agenda.Service, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, nil, err
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	if cfg.IsProduction() {
		e.HTTPErrorHandler = middleware.MaskInternalErrors(e.DefaultHTTPErrorHandler)
	}

	// Global middleware
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.SecurityHeaders())
	e.Use(middleware.BodyLimit("1M"))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", middleware.RequestIDHeader},
	}))
	e.Use(m.Middleware())

	// Auth middleware
	if cfg.IsDev() {
		e.Use(auth.DevAuthMiddleware())
	} else {
		e.Use(auth.JWTMiddleware(auth.JWTConfig{
			Issuer:     cfg.AuthIssuer,
			Audience:   cfg.AuthAudience,
			SigningKey: []byte(cfg.AuthSigningKey),
			Skipper:    auth.AuthSkipper,
		}))
	}

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": version,
		})
	})
	if st.dbHealth != nil {
		e.GET("/health/db", st.dbHealth)
	}
	e.GET("/metrics", m.Handler())

	apiV1 := e.Group("/api/v1")

	// Agenda
	agendaSvc := agenda.NewService(st.visits, logger.With().Str("component", "agenda").Logger())
	agendaSvc.SetLocation(loc)
	agendaSvc.SetMetrics(m)
	agendaSvc.SetWriteTimeout(cfg.WriteTimeout())
	if st.runTx != nil {
		agendaSvc.SetTxRunner(st.runTx)
	}
	agenda.NewHandler(agendaSvc).RegisterRoutes(apiV1)

	// Tasks
	taskSvc := task.NewService(st.tasks, logger.With().Str("component", "task").Logger())
	taskSvc.SetLocation(loc)
	task.NewHandler(taskSvc).RegisterRoutes(apiV1)

	// Owners
	ownerSvc := owner.NewService(st.owners, logger.With().Str("component", "owner").Logger())
	ownerSvc.SetLocation(loc)
	owner.NewHandler(ownerSvc).RegisterRoutes(apiV1)

	return e, agendaSvc, nil
}

func runServer() error {
	// Logger
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if os.Getenv("ENV") == "development" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}

	// Config
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}

	// Database
	ctx := context.Background()
	pool, err := db.NewPool(ctx, poolOptions(cfg))
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	m := metrics.NewMetrics(cfg.MetricsNamespace, prometheus.NewRegistry())
	e, agendaSvc, err := newServer(cfg, logger, pgStores(pool), m)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build server")
	}
	if err := agendaSvc.RefreshWeekGauge(ctx); err != nil {
		logger.Warn().Err(err).Msg("failed to prime week gauge")
	}

	// Graceful shutdown
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Str("timezone", cfg.Timezone).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server shutdown failed")
	}
	agendaSvc.Close()
	logger.Info().Msg("server stopped")
	return nil
}
