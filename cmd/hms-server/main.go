package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/hms/hms/internal/config"
	"github.com/hms/hms/internal/domain/account"
	"github.com/hms/hms/internal/domain/admin"
	"github.com/hms/hms/internal/domain/appointment"
	"github.com/hms/hms/internal/domain/audit"
	"github.com/hms/hms/internal/domain/bloodbank"
	"github.com/hms/hms/internal/domain/dashboard"
	"github.com/hms/hms/internal/domain/doctor"
	"github.com/hms/hms/internal/domain/emergency"
	"github.com/hms/hms/internal/domain/health"
	"github.com/hms/hms/internal/domain/hospital"
	"github.com/hms/hms/internal/domain/notifications"
	"github.com/hms/hms/internal/domain/user"
	"github.com/hms/hms/internal/platform/auth"
	"github.com/hms/hms/internal/platform/cache"
	"github.com/hms/hms/internal/platform/db"
	"github.com/hms/hms/internal/platform/middleware"
	"github.com/hms/hms/internal/platform/notification"
	"github.com/hms/hms/internal/platform/reporting"
	"github.com/hms/hms/internal/platform/telemetry"
	"github.com/hms/hms/internal/platform/websocket"
	"github.com/hms/hms/pkg/response"
)

var version = "dev"

const statsInterval = 30 * time.Second

func main() {
	rootCmd := &cobra.Command{
		Use:   "hms-server",
		Short: "Hospital management API server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(adminCmd())

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

// openPool loads config and connects without tracing, for one-shot commands.
func openPool(ctx context.Context) (*config.Config, *pgxpool.Pool, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	pool, err := db.NewPool(ctx, poolConfig(cfg, nil))
	if err != nil {
		return nil, nil, err
	}
	return cfg, pool, nil
}

func securityConfig(cfg *config.Config) middleware.SecurityConfig {
	sc := middleware.DefaultSecurityConfig(cfg.IsProduction())
	sc.FrameAncestors = cfg.FrameAncestors
	return sc
}

func poolConfig(cfg *config.Config, tracer pgx.QueryTracer) db.PoolConfig {
	return db.PoolConfig{
		URL:             cfg.DatabaseURL,
		MaxConns:        cfg.DBMaxConns,
		MinConns:        cfg.DBMinConns,
		MaxConnLifetime: cfg.DBMaxConnLifetime,
		MaxConnIdleTime: cfg.DBMaxConnIdleTime,
		Tracer:          tracer,
	}
}

func migrationsDir(cmd *cobra.Command, cfg *config.Config) string {
	if dir, _ := cmd.Flags().GetString("dir"); dir != "" {
		return dir
	}
	return cfg.MigrationsDir
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
			cfg, pool, err := openPool(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			count, err := db.NewMigrator(pool, migrationsDir(cmd, cfg)).Up(ctx)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}
	upCmd.Flags().String("dir", "", "Path to migrations directory (default MIGRATIONS_DIR)")
	cmd.AddCommand(upCmd)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			cfg, pool, err := openPool(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			statuses, err := db.NewMigrator(pool, migrationsDir(cmd, cfg)).Status(ctx)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}
			printStatus(cmd, statuses)
			return nil
		},
	}
	statusCmd.Flags().String("dir", "", "Path to migrations directory (default MIGRATIONS_DIR)")
	cmd.AddCommand(statusCmd)

	return cmd
}

func printStatus(cmd *cobra.Command, statuses []db.MigrationStatus) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
	fmt.Fprintln(out, "---------- ---------------------------------------- ---------- --------------------")
	for _, s := range statuses {
		status := "pending"
		appliedAt := ""
		if s.Applied {
			status = "applied"
			if s.AppliedAt != nil {
				appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
			}
		}
		fmt.Fprintf(out, "%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
	}
}

func adminCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Manage console administrators",
	}

	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Create an administrator account",
		RunE: func(cmd *cobra.Command, args []string) error {
			username, _ := cmd.Flags().GetString("username")
			password, _ := cmd.Flags().GetString("password")
			if username == "" || password == "" {
				return fmt.Errorf("--username and --password are required")
			}

			ctx := context.Background()
			_, pool, err := openPool(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			svc := admin.NewService(admin.NewAdminRepo(pool), admin.NewLogRepo(pool), newLogger("info", false))
			a, err := svc.CreateAdmin(ctx, nil, admin.CreateAdminRequest{Username: username, Password: password})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created admin %s (%s)\n", a.Username, a.ID)
			return nil
		},
	}
	createCmd.Flags().String("username", "", "Admin username")
	createCmd.Flags().String("password", "", "Admin password")

	cmd.AddCommand(createCmd)
	return cmd
}

func newLogger(level string, console bool) zerolog.Logger {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if console {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	return logger.Level(lvl)
}

// hospitalCounter reports the number of registered hospitals for /health.
type hospitalCounter struct {
	repo hospital.HospitalRepository
}

func (h hospitalCounter) CountHospitals(ctx context.Context) (int, error) {
	_, total, err := h.repo.Search(ctx, map[string]string{}, 1, 0)
	return total, err
}

// statsSource feeds the admin system_stats stream.
func statsSource(svc *admin.Service) websocket.StatsSource {
	return func(ctx context.Context) (map[string]interface{}, error) {
		s, err := svc.DashboardStats(ctx)
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{
			"total_users":        s.TotalUsers,
			"total_hospitals":    s.TotalHospitals,
			"total_admins":       s.TotalAdmins,
			"total_appointments": s.TotalAppointments,
			"total_emergencies":  s.TotalEmergencies,
		}, nil
	}
}

// unreadCounter reports how many notifications a user has not read.
type unreadCounter func(ctx context.Context, userID uuid.UUID) (int, error)

// pendingOnConnect tells a freshly connected user how many notifications
// are waiting for them.
func pendingOnConnect(hub *websocket.Hub, unread unreadCounter, logger zerolog.Logger) websocket.ConnectHook {
	return func(ctx context.Context, client *websocket.Client) {
		if client.Type != auth.TypeUser {
			return
		}
		id, err := uuid.Parse(client.UserID)
		if err != nil {
			return
		}
		count, err := unread(ctx, id)
		if err != nil {
			logger.Warn().Err(err).Str("user_id", client.UserID).Msg("failed to count unread notifications")
			return
		}
		if count == 0 {
			return
		}
		ev, err := websocket.NewEvent(websocket.EventPendingNotifications, websocket.UserRoom(client.UserID),
			map[string]int{"unread_count": count})
		if err != nil {
			return
		}
		hub.SendTo(client, ev)
	}
}

func runServer() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := newLogger(cfg.LogLevel, cfg.IsDev())
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	// Telemetry
	tel, err := telemetry.Setup(ctx, telemetry.Config{
		ServiceName:    cfg.OTelServiceName,
		ServiceVersion: version,
		Environment:    cfg.Env,
		Endpoint:       cfg.OTelEndpoint,
	}, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to set up telemetry")
	}

	// Database
	pool, err := db.NewPool(ctx, poolConfig(cfg, tel.QueryTracer()))
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	// Cache, realtime fan-out and rate limiting share one Redis connection
	// when configured.
	store, err := cache.New(ctx, cache.Options{RedisURL: cfg.RedisURL, Prefix: cfg.CachePrefix}, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open cache")
	}
	defer store.Close()

	hub := websocket.NewHub(logger)
	var (
		publisher websocket.Publisher = hub
		limiter   middleware.Limiter  = middleware.NewMemoryLimiter()
	)
	if rs, ok := store.(*cache.RedisStore); ok {
		relay := websocket.NewRedisRelay(rs.Client(), rs.Prefix(), hub, logger)
		go func() {
			if err := relay.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error().Err(err).Msg("websocket relay stopped")
			}
		}()
		publisher = relay
		limiter = middleware.NewRedisLimiter(rs.Client(), rs.Prefix())
	}
	events := websocket.NewNotifier(publisher)

	templates := notification.NewTemplateEngine()
	email := notification.NewEmailSender(notification.SMTPConfig{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.MailFrom,
	}, logger)

	tokens := auth.NewTokenIssuer(cfg.JWTIssuer, []byte(cfg.JWTSecret), cfg.JWTAccessTTL, cfg.JWTRefreshTTL)
	revocations := auth.NewCacheRevocationStore(store)
	tx := db.NewTxRunner(pool)

	// Repositories
	userRepo := user.NewRepo(pool)
	adminRepo := admin.NewAdminRepo(pool)
	accountRepo := hospital.NewAccountRepo(pool)
	hospitalRepo := hospital.NewHospitalRepo(pool)
	doctorRepo := doctor.NewRepo(pool)
	appointmentRepo := appointment.NewAppointmentRepo(pool)
	emergencyRepo := emergency.NewRepo(pool)

	// Services
	adminSvc := admin.NewService(adminRepo, admin.NewLogRepo(pool), logger)
	auditSvc := audit.NewService(audit.NewRepo(pool), store, cfg.LoginMaxFailures, logger)
	notificationSvc := notifications.NewService(notifications.NewRepo(pool), notifications.NewDirectory(pool),
		store, events, email, templates, logger)

	accountSvc := account.NewService(userRepo, adminRepo, accountRepo, hospitalRepo, tokens, revocations, store,
		auditSvc, email, account.Options{
			MaxFailures: cfg.LoginMaxFailures,
			Lockout:     cfg.LoginLockout,
			ResetURL:    cfg.PasswordResetURL,
		}, logger)
	userSvc := user.NewService(userRepo, adminSvc)
	hospitalSvc := hospital.NewService(tx, accountRepo, hospitalRepo, hospital.NewFloorRepo(pool),
		hospital.NewWardRepo(pool), hospital.NewBedRepo(pool), events, adminSvc,
		hospital.Config{DefaultWardCapacity: cfg.DefaultWardCapacity}, logger)
	doctorSvc := doctor.NewService(tx, doctorRepo, doctor.NewScheduleRepo(pool))
	appointmentSvc := appointment.NewService(tx, appointment.NewOPDRepo(pool), appointment.NewSlotRepo(pool),
		appointment.NewReservationRepo(pool), appointmentRepo, events, notificationSvc, logger)
	bloodbankSvc := bloodbank.NewService(tx, bloodbank.NewBankRepo(pool), bloodbank.NewInventoryRepo(pool),
		bloodbank.NewRequestRepo(pool), events, notificationSvc, templates, logger)
	emergencySvc := emergency.NewService(emergencyRepo, emergency.NewAmbulanceRepo(pool), events, templates, logger)
	dashboardSvc := dashboard.NewService(adminSvc, userRepo, hospitalRepo, doctorRepo, appointmentRepo, emergencyRepo)
	reportingSvc := reporting.NewService(reporting.NewPoolEvaluator(pool), store, logger)

	// Echo server
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = response.HTTPErrorHandler(logger)

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(tel.Middleware())
	e.Use(middleware.SecurityHeaders(securityConfig(cfg)))
	e.Use(middleware.BodyLimit(cfg.BodyLimit))
	e.Use(middleware.RequestTimeout(cfg.RequestTimeout))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
	}))
	e.Use(middleware.Sanitize(logger))

	// Auth middleware
	e.Use(auth.JWTMiddleware(auth.JWTConfig{
		Issuer:      cfg.JWTIssuer,
		SigningKey:  []byte(cfg.JWTSecret),
		Revocations: revocations,
		Skipper:     auth.AuthSkipper,
	}))

	if cfg.RateLimitEnabled {
		e.Use(middleware.RateLimit(middleware.DefaultRateLimitConfig(), limiter, logger))
	}

	// Audit middleware
	e.Use(middleware.Audit(logger, auditSvc))

	// Health and realtime
	health.NewHandler(pool, store, hospitalCounter{repo: hospitalRepo}, hub, pool, logger).RegisterRoutes(e)
	websocket.NewHandler(hub, tokens, revocations, pendingOnConnect(hub, notificationSvc.UnreadCount, logger), logger).
		RegisterRoutes(e)
	go websocket.RunStats(ctx, hub, statsSource(adminSvc), statsInterval, logger)

	// API
	apiV1 := e.Group("/api/v1")
	account.NewHandler(accountSvc).RegisterRoutes(apiV1)
	user.NewHandler(userSvc).RegisterRoutes(apiV1)
	admin.NewHandler(adminSvc).RegisterRoutes(apiV1)
	hospital.NewHandler(hospitalSvc).RegisterRoutes(apiV1)
	doctor.NewHandler(doctorSvc).RegisterRoutes(apiV1)
	appointment.NewHandler(appointmentSvc).RegisterRoutes(apiV1)
	bloodbank.NewHandler(bloodbankSvc).RegisterRoutes(apiV1)
	emergency.NewHandler(emergencySvc).RegisterRoutes(apiV1)
	notifications.NewHandler(notificationSvc).RegisterRoutes(apiV1)
	audit.NewHandler(auditSvc).RegisterRoutes(apiV1)
	dashboard.NewHandler(dashboardSvc).RegisterRoutes(apiV1)
	reporting.NewHandler(reportingSvc).RegisterRoutes(apiV1)

	// Graceful shutdown
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Str("version", version).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	stop()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server shutdown failed")
	}
	if err := tel.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("telemetry shutdown failed")
	}
	logger.Info().Msg("server stopped")
	return nil
}
