package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"
	_ "time/tzdata"

	"devlend/internal/api"
	"devlend/internal/bot"
	"devlend/internal/config"
	"devlend/internal/database"
	"devlend/internal/domain"
	"devlend/internal/events"
	"devlend/internal/google"
	"devlend/internal/logging"
	"devlend/internal/metrics"
	"devlend/internal/models"
	"devlend/internal/repository"
	"devlend/internal/service"
	"devlend/internal/worker"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v2"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	devToken := flag.String("dev-token", "", "print a signed token for `email[:admin]` and exit")
	flag.Parse()

	cfg, logger, closer, err := loadConfigAndLogger()
	if err != nil {
		return err
	}
	if closer != nil {
		defer (func() { _ = closer.Close() })()
	}

	identity := api.NewIdentity(cfg.Auth)
	if *devToken != "" {
		return printDevToken(identity, *devToken)
	}

	loc := cfg.App.Location()

	db, err := database.NewDB(cfg.Database.Path, &logger)
	if err != nil {
		logger.Error().Err(err).Str("db_path", cfg.Database.Path).Msg("init database")
		return err
	}
	defer db.Close()

	if err := seedResources(db, cfg.Database.SeedFile, &logger); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	redisClient := initRedis(ctx, cfg, &logger)
	if redisClient != nil {
		defer redisClient.Close()
	}
	limiter := newLimiter(redisClient, &logger)

	var syncWorker domain.SyncWorker
	if sheetsService := initGoogleSheets(ctx, cfg, loc, &logger); sheetsService != nil {
		w := worker.NewSheetsWorker(db, sheetsService, redisClient, worker.DefaultRetryPolicy(), &logger)
		go w.Start(ctx)
		syncWorker = w
	}

	eventBus := events.NewEventBus()
	metrics.SubscribeBookingEvents(eventBus)

	notifications := service.NewNotificationService(db, &logger)
	bookings := service.NewBookingService(db, notifications, eventBus, syncWorker, limiter, cfg.Booking, &logger)
	resources := service.NewResourceService(db, &logger)
	users := service.NewUserService(db, &logger)

	if cfg.Backup.Enabled {
		go database.NewBackupService(db, cfg.Database.Path, cfg.Backup, &logger).Start(ctx)
	}

	if cfg.Telegram.Enabled {
		if err := startTelegram(ctx, cfg, bookings, limiter, eventBus, loc, &logger); err != nil {
			return err
		}
	}

	startMetrics(ctx, cfg, &logger)

	httpServer := api.NewHTTPServer(cfg.API, cfg.Booking, identity, api.Services{
		Bookings:      bookings,
		Resources:     resources,
		Notifications: notifications,
		Users:         users,
	}, db, &logger)
	httpServer.SetLocation(loc)

	var grpcServer *api.GRPCServer
	if cfg.API.GRPC.Enabled {
		grpcServer, err = api.NewGRPCServer(cfg.API, api.NewAvailabilityService(bookings, resources), &logger)
		if err != nil {
			logger.Error().Err(err).Msg("create grpc server")
			return err
		}
	}

	return startServers(ctx, grpcServer, httpServer, cfg, &logger)
}

func loadConfigAndLogger() (*config.Config, zerolog.Logger, io.Closer, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, zerolog.Logger{}, nil, fmt.Errorf("load config: %w", err)
	}

	baseLogger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return nil, zerolog.Logger{}, nil, fmt.Errorf("init logger: %w", err)
	}
	logger := *logging.Component(baseLogger, "api-main")

	return cfg, logger, closer, nil
}

// printDevToken signs a day-long token for local testing of the HTTP API.
func printDevToken(identity *api.Identity, arg string) error {
	email, role, _ := strings.Cut(arg, ":")
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return errors.New("dev-token: email is required")
	}
	actor := models.Actor{UserID: "dev:" + email, Email: email, Role: models.RoleUser}
	if role == string(models.RoleAdmin) {
		actor.Role = models.RoleAdmin
	}

	token, err := identity.Sign(actor, "", 24*time.Hour)
	if err != nil {
		return err
	}
	fmt.Println(token)
	return nil
}

// seedResources loads the device catalogue from a YAML file into an
// empty store. A missing file is not an error.
func seedResources(db *database.DB, path string, logger *zerolog.Logger) error {
	if path == "" {
		path = os.Getenv("RESOURCES_PATH")
	}
	if path == "" {
		path = "configs/resources.yaml"
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logger.Info().Str("seed_file", path).Msg("no seed file, skipping")
			return nil
		}
		logger.Error().Err(err).Str("seed_file", path).Msg("read seed file")
		return err
	}

	var seed struct {
		Resources []models.Resource `yaml:"resources"`
	}
	if err := yaml.Unmarshal(data, &seed); err != nil {
		logger.Error().Err(err).Str("seed_file", path).Msg("parse seed file")
		return err
	}

	n, err := db.SeedResources(context.Background(), seed.Resources)
	if err != nil {
		logger.Error().Err(err).Msg("seed resources")
		return err
	}
	if n > 0 {
		logger.Info().Int("count", n).Msg("resources seeded")
	}
	return nil
}

func initRedis(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) *redis.Client {
	if cfg.Redis.Address == "" {
		return nil
	}

	client := repository.NewRedisClient(cfg.Redis)
	if err := repository.Ping(ctx, client); err != nil {
		logger.Warn().Err(err).Msg("redis connection failed, continuing without redis")
		_ = client.Close()
		return nil
	}

	logger.Info().Str("addr", cfg.Redis.Address).Msg("redis connected")
	return client
}

// newLimiter shares counters through Redis when it is reachable and keeps
// them in memory otherwise.
func newLimiter(client *redis.Client, logger *zerolog.Logger) domain.RateLimiter {
	memory := repository.NewMemoryRateLimiter()
	if client == nil {
		return memory
	}
	return repository.NewFailoverRateLimiter(repository.NewRedisRateLimiter(client), memory, logger)
}

func initGoogleSheets(ctx context.Context, cfg *config.Config, loc *time.Location, logger *zerolog.Logger) *google.SheetsService {
	if !cfg.Google.Enabled() {
		return nil
	}

	sheetsService, err := google.NewSheetsService(ctx, cfg.Google.CredentialsFile, cfg.Google.BookingSpreadSheetID, cfg.Google.SheetName)
	if err != nil {
		logger.Warn().Err(err).Msg("google sheets init failed, continuing without sheets")
		return nil
	}
	sheetsService.SetLocation(loc)

	if err := sheetsService.TestConnection(ctx); err != nil {
		logger.Warn().Err(err).Msg("google sheets connection test failed, continuing without sheets")
		return nil
	}
	if err := sheetsService.WarmUpCache(ctx); err != nil {
		logger.Warn().Err(err).Msg("google sheets cache warm-up failed")
	}

	logger.Info().Msg("google sheets connected")
	return sheetsService
}

// startTelegram relays booking events to the admin chats and serves their
// commands from this process.
func startTelegram(
	ctx context.Context,
	cfg *config.Config,
	bookings domain.BookingService,
	limiter domain.RateLimiter,
	bus *events.EventBus,
	loc *time.Location,
	logger *zerolog.Logger,
) error {
	botAPI, err := bot.NewAPI(cfg.Telegram.BotToken, cfg.Telegram.Debug)
	if err != nil {
		logger.Error().Err(err).Msg("create telegram api")
		return err
	}

	telegramBot, err := bot.NewBot(service.NewTelegramService(botAPI), bookings, limiter, cfg.Telegram, bot.NewMetrics(nil), logger)
	if err != nil {
		logger.Error().Err(err).Msg("create telegram bot")
		return err
	}
	telegramBot.SetLocation(loc)
	telegramBot.SubscribeRelay(bus)

	go telegramBot.Start(ctx)
	return nil
}

func startMetrics(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) {
	if !cfg.Monitoring.PrometheusEnabled {
		return
	}

	metrics.Register()
	go startMetricsServer(ctx, cfg.Monitoring.PrometheusPort, logger)
}

func startServers(
	ctx context.Context,
	grpcServer *api.GRPCServer,
	httpServer *api.HTTPServer,
	cfg *config.Config,
	logger *zerolog.Logger,
) error {
	if grpcServer != nil {
		go func() {
			if err := grpcServer.Serve(); err != nil {
				logger.Error().Err(err).Msg("grpc server stopped")
			}
		}()
	}

	go func() {
		if !cfg.API.HTTP.Enabled {
			return
		}
		if err := httpServer.Start(); err != nil {
			logger.Error().Err(err).Msg("http server stopped")
		}
	}()

	logger.Info().Bool("grpc", grpcServer != nil).Int("http_port", cfg.API.HTTP.Port).Msg("API server started")

	<-ctx.Done()
	logger.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if grpcServer != nil {
		grpcServer.Shutdown(shutdownCtx)
	}
	_ = httpServer.Shutdown(shutdownCtx)

	logger.Info().Msg("API server stopped")
	return nil
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("metrics server error")
	}
}
