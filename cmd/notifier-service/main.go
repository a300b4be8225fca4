package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/dtolk/booking-be/internal/booking"
	"github.com/dtolk/booking-be/internal/booking/assignment"
	"github.com/dtolk/booking-be/internal/booking/domain"
	"github.com/dtolk/booking-be/internal/booking/matching"
	"github.com/dtolk/booking-be/internal/booking/notify"
	"github.com/dtolk/booking-be/internal/booking/state"
	"github.com/dtolk/booking-be/internal/booking/storage"
	"github.com/dtolk/booking-be/internal/channels"
	"github.com/dtolk/booking-be/internal/config"
	"github.com/dtolk/booking-be/internal/notifier"
	"github.com/dtolk/booking-be/shared/logger"
	"github.com/dtolk/booking-be/shared/postgresql"
	"github.com/dtolk/booking-be/shared/rabbitmq"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables or flags")
	}

	// Parse command-line flags
	defaultConfigPath := os.Getenv("NOTIFIER_SERVICE_CONFIG_PATH")
	if defaultConfigPath == "" {
		defaultConfigPath = "configs/notifier-service/config.yaml"
	}
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.ValidateNotifierConfig(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	// Initialize logger
	appLogger, err := initLogger(&cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	appLogger.Info("Starting notifier service",
		slog.String("app", cfg.App.Name),
		slog.String("version", cfg.App.Version),
		slog.String("environment", cfg.App.Environment),
	)

	// Initialize PostgreSQL client
	dbClient, err := initPostgreSQL(&cfg.Database, appLogger.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}

	appLogger.Info("Database connection established")

	// Initialize RabbitMQ client
	rabbitClient, err := initRabbitMQ(&cfg.RabbitMQ, appLogger.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize RabbitMQ: %w", err)
	}

	appLogger.Info("RabbitMQ connection established")

	// Wire the booking core and the notifier around it
	n := initNotifier(cfg, appLogger.Logger, dbClient, rabbitClient)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := n.Start(ctx); err != nil {
		return fmt.Errorf("failed to start notifier: %w", err)
	}

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down notifier service...")

	// Bounded shutdown: cancel the context, then wait for the pool to drain
	shutdownDone := make(chan struct{})
	go func() {
		cancel()
		n.Stop()
		close(shutdownDone)
	}()

	select {
	case <-shutdownDone:
		appLogger.Info("Notifier shutdown complete")
	case <-time.After(cfg.Notifier.ShutdownTimeout):
		appLogger.Warn("Notifier shutdown timed out",
			slog.Duration("timeout", cfg.Notifier.ShutdownTimeout),
		)
	}

	if dbClient != nil {
		dbClient.Close()
	}
	if rabbitClient != nil {
		rabbitClient.Close()
	}

	return nil
}

// initLogger initializes and configures the application logger
func initLogger(cfg *config.LoggingConfig) (*logger.Logger, error) {
	loggerCfg := &logger.Config{
		Level:        cfg.Level,
		Format:       cfg.Format,
		Output:       cfg.Output,
		EnableSource: cfg.EnableCaller,
		TimeFormat:   time.RFC3339,
	}

	return logger.New(loggerCfg)
}

// initPostgreSQL initializes the PostgreSQL database client
func initPostgreSQL(cfg *config.DatabaseConfig, logger *slog.Logger) (*postgresql.Client, error) {
	dbConfig := &postgresql.Config{
		Host:            cfg.Host,
		Port:            cfg.Port,
		User:            cfg.User,
		Password:        cfg.Password,
		Database:        cfg.Database,
		SSLMode:         cfg.SSLMode,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.ConnMaxIdleTime,
	}

	return postgresql.NewClient(dbConfig, logger)
}

// initRabbitMQ initializes the RabbitMQ client
func initRabbitMQ(cfg *config.RabbitMQConfig, logger *slog.Logger) (*rabbitmq.Client, error) {
	rabbitConfig := &rabbitmq.Config{
		Host:               cfg.Host,
		Port:               cfg.Port,
		User:               cfg.User,
		Password:           cfg.Password,
		VHost:              cfg.VHost,
		ExchangeName:       cfg.Exchange.Name,
		ExchangeType:       cfg.Exchange.Type,
		ExchangeDurable:    cfg.Exchange.Durable,
		ExchangeAutoDelete: cfg.Exchange.AutoDelete,
		QueueName:          cfg.Queue.Name,
		QueueDurable:       cfg.Queue.Durable,
		QueueAutoDelete:    cfg.Queue.AutoDelete,
		QueueExclusive:     cfg.Queue.Exclusive,
		RoutingKey:         cfg.RoutingKey,
		RetryAttempts:      cfg.Connection.RetryAttempts,
		RetryInterval:      cfg.Connection.RetryInterval,
		Heartbeat:          cfg.Connection.Heartbeat,
		ConnectionTimeout:  cfg.Connection.ConnectionTimeout,
		PublishRetries:     cfg.Publish.RetryAttempts,
		PublishRetryDelay:  cfg.Publish.RetryInterval,
		PublishBackoffMult: cfg.Publish.BackoffMultiplier,
	}

	return rabbitmq.NewClient(rabbitConfig, logger)
}

// initNotifier wires the booking core with a direct fan-out executor and
// builds the notifier around it. Fan-out effects raised while processing
// run inline here instead of being published back to the queue.
func initNotifier(cfg *config.Config, logger *slog.Logger, dbClient *postgresql.Client, rabbitClient *rabbitmq.Client) *notifier.Notifier {
	store := storage.NewStorage(dbClient)
	clock := domain.SystemClock{}

	matcher := matching.New(store, store, logger)
	assignments := assignment.NewManager(store, clock, logger)
	machine := state.NewMachine(logger)

	mailer := channels.NewEmailClient(channels.EmailConfig{
		BaseURL:     cfg.Channels.Email.BaseURL,
		APIKey:      cfg.Channels.Email.APIKey,
		FromAddress: cfg.Channels.Email.FromAddress,
		FromName:    cfg.Channels.Email.FromName,
		Timeout:     cfg.Channels.Email.Timeout,
	}, logger)
	sms := channels.NewSMSClient(channels.SMSConfig{
		BaseURL: cfg.Channels.SMS.BaseURL,
		APIKey:  cfg.Channels.SMS.APIKey,
		Timeout: cfg.Channels.SMS.Timeout,
	}, logger)
	push := channels.NewPushClient(channels.PushConfig{
		BaseURL: cfg.Channels.Push.BaseURL,
		APIKey:  cfg.Channels.Push.APIKey,
		Timeout: cfg.Channels.Push.Timeout,
	}, logger)

	fanout := notifier.NewDirectFanOut(store, logger)
	dispatcher := notify.NewDispatcher(mailer, sms, push, store, matcher, store, fanout, clock, notify.Config{
		SMSFromNumber: cfg.Booking.SMSFromNumber,
		Night: notify.NightWindow{
			StartHour: cfg.Booking.NightStartHour,
			EndHour:   cfg.Booking.NightEndHour,
		},
	}, logger)
	fanout.Bind(dispatcher)

	orchestrator := booking.NewOrchestrator(store, machine, assignments, dispatcher, clock, booking.Config{
		PhoneCancellationGuidance: cfg.Booking.PhoneCancellationGuidance,
	}, logger)

	return notifier.New(&notifier.Config{
		Logger:        logger,
		RabbitClient:  rabbitClient,
		Store:         store,
		Dispatcher:    dispatcher,
		Orchestrator:  orchestrator,
		Concurrency:   cfg.Notifier.Concurrency,
		MaxTasks:      cfg.Notifier.MaxJobs,
		TaskTimeout:   cfg.Notifier.JobTimeout,
		PrefetchCount: cfg.RabbitMQ.Consumer.PrefetchCount,
		QueueName:     cfg.RabbitMQ.Queue.Name,
		SweepSchedule: cfg.Notifier.ExpirySweepSchedule,
	})
}
