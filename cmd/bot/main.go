package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"devlend/internal/bot"
	"devlend/internal/config"
	"devlend/internal/database"
	"devlend/internal/domain"
	"devlend/internal/events"
	"devlend/internal/google"
	"devlend/internal/logging"
	"devlend/internal/metrics"
	"devlend/internal/repository"
	"devlend/internal/service"
	"devlend/internal/worker"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// The bot process runs the admin commands against the shared store when
// the API is deployed without Telegram. Events relayed here are the ones
// its own commands produce.
func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	cfg, logger, closer, err := loadConfigAndLogger()
	if err != nil {
		return err
	}
	if closer != nil {
		defer (func(c io.Closer) { _ = c.Close() })(closer)
	}

	if !cfg.Telegram.Enabled {
		logger.Error().Msg("telegram is disabled in config")
		return errors.New("telegram.enabled must be true to run the bot")
	}

	loc := cfg.App.Location()

	db, err := database.NewDB(cfg.Database.Path, &logger)
	if err != nil {
		logger.Error().Err(err).Msg("Ошибка инициализации базы данных")
		return err
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	redisClient := initRedis(ctx, cfg, &logger)
	if redisClient != nil {
		defer redisClient.Close()
	}
	memory := repository.NewMemoryRateLimiter()
	var limiter domain.RateLimiter = memory
	if redisClient != nil {
		limiter = repository.NewFailoverRateLimiter(repository.NewRedisRateLimiter(redisClient), memory, &logger)
	}

	// Запускаем воркер синхронизации Google Sheets
	var syncWorker domain.SyncWorker
	if cfg.Google.Enabled() {
		sheetsService, err := google.NewSheetsService(ctx, cfg.Google.CredentialsFile, cfg.Google.BookingSpreadSheetID, cfg.Google.SheetName)
		if err != nil {
			logger.Warn().Err(err).Msg("Failed to initialize Google Sheets service")
		} else {
			sheetsService.SetLocation(loc)
			w := worker.NewSheetsWorker(db, sheetsService, redisClient, worker.DefaultRetryPolicy(), &logger)
			go w.Start(ctx)
			syncWorker = w
		}
	}

	eventBus := events.NewEventBus()
	metrics.SubscribeBookingEvents(eventBus)

	notifications := service.NewNotificationService(db, &logger)
	bookings := service.NewBookingService(db, notifications, eventBus, syncWorker, limiter, cfg.Booking, &logger)

	botAPI, err := bot.NewAPI(cfg.Telegram.BotToken, cfg.Telegram.Debug)
	if err != nil {
		logger.Error().Err(err).Msg("Ошибка создания BotAPI")
		return err
	}

	telegramBot, err := bot.NewBot(service.NewTelegramService(botAPI), bookings, limiter, cfg.Telegram, bot.NewMetrics(nil), &logger)
	if err != nil {
		logger.Error().Err(err).Msg("Ошибка создания бота")
		return err
	}
	telegramBot.SetLocation(loc)
	telegramBot.SubscribeRelay(eventBus)

	if cfg.Monitoring.PrometheusEnabled {
		metrics.Register()
		go serveMetrics(ctx, cfg.Monitoring.PrometheusPort, &logger)
	}

	logger.Info().Str("bot", botAPI.Self.UserName).Msg("Бот запущен...")
	telegramBot.Start(ctx)

	logger.Info().Msg("Shutdown complete.")
	return nil
}

func loadConfigAndLogger() (*config.Config, zerolog.Logger, io.Closer, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, zerolog.Logger{}, nil, err
	}

	baseLogger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return nil, zerolog.Logger{}, nil, err
	}
	return cfg, *logging.Component(baseLogger, "bot-main"), closer, nil
}

func initRedis(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) *redis.Client {
	if cfg.Redis.Address == "" {
		return nil
	}
	client := repository.NewRedisClient(cfg.Redis)
	if err := repository.Ping(ctx, client); err != nil {
		logger.Warn().Err(err).Msg("Redis unavailable")
		_ = client.Close()
		return nil
	}
	return client
}

func serveMetrics(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("metrics server error")
	}
}
