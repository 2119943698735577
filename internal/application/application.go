package application

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/psds-microservice/support-relay/internal/command"
	"github.com/psds-microservice/support-relay/internal/config"
	"github.com/psds-microservice/support-relay/internal/database"
	"github.com/psds-microservice/support-relay/internal/handler"
	"github.com/psds-microservice/support-relay/internal/kafka"
	"github.com/psds-microservice/support-relay/internal/matrix"
	"github.com/psds-microservice/support-relay/internal/relay"
	"github.com/psds-microservice/support-relay/internal/router"
	"github.com/psds-microservice/support-relay/internal/service"
	"github.com/rs/zerolog/log"
)

// Bot приложение: Matrix-цикл событий + операционный HTTP.
type Bot struct {
	cfg        *config.Config
	sqlDB      *sql.DB
	client     *matrix.Client
	relay      *relay.Router
	dispatcher *command.Dispatcher
	producer   *kafka.Producer
	httpSrv    *http.Server
	startedAt  time.Time
}

// NewBot проверяет конфиг, применяет миграции и собирает зависимости.
func NewBot(ctx context.Context, cfg *config.Config) (*Bot, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := cfg.ValidateMatrix(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := database.MigrateUp(ctx, cfg); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	db, err := database.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("database: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("database: %w", err)
	}

	destSvc := service.NewDestinationService(db)
	ticketSvc := service.NewTicketService(db)
	producer := kafka.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopicTicket)

	client, err := NewMatrixClient(cfg)
	if err != nil {
		_ = sqlDB.Close()
		return nil, err
	}

	rt := NewRelay(cfg, destSvc, ticketSvc, client, producer)
	commands := command.New(command.Deps{
		Destinations: destSvc,
		Transport:    client,
		Auth:         client,
	}, command.Options{
		AdminPowerLevel:     cfg.AdminPowerLevel,
		DestroyConfirmation: cfg.DestroyConfirmation,
	})

	httpSrv := &http.Server{
		Addr: cfg.Addr(),
		Handler: router.New(router.Handlers{
			Ready:        handler.Ready(sqlDB),
			Destinations: handler.NewDestinationHandler(destSvc),
			Tickets:      handler.NewTicketHandler(ticketSvc),
		}),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return &Bot{
		cfg:        cfg,
		sqlDB:      sqlDB,
		client:     client,
		relay:      rt,
		dispatcher: command.NewDispatcher(commands, rt),
		producer:   producer,
		httpSrv:    httpSrv,
		startedAt:  time.Now(),
	}, nil
}

// NewMatrixClient builds the transport from the MATRIX_* settings.
func NewMatrixClient(cfg *config.Config) (*matrix.Client, error) {
	client, err := matrix.New(matrix.Config{
		HomeserverURL: cfg.Matrix.HomeserverURL,
		UserID:        cfg.Matrix.UserID,
		AccessToken:   cfg.Matrix.AccessToken,
	})
	if err != nil {
		return nil, fmt.Errorf("matrix: %w", err)
	}
	return client, nil
}

// NewRelay собирает роутер тикетов с лимитами из конфига.
func NewRelay(cfg *config.Config, dests service.DestinationServicer, tickets service.TicketServicer, transport relay.Transport, producer kafka.TicketEventProducer) *relay.Router {
	return relay.NewRouter(relay.Deps{
		Destinations: dests,
		Tickets:      tickets,
		Transport:    transport,
		Producer:     producer,
	}, relay.Options{
		PendingTTL:   cfg.PendingTTL,
		PendingLimit: cfg.PendingLimit,
		DedupSize:    cfg.EventDedupSize,
		DedupTTL:     cfg.EventDedupTTL,
	})
}

// Run восстанавливает индекс, сверяет незавершённые тикеты и блокируется до отмены ctx.
func (b *Bot) Run(ctx context.Context) error {
	defer b.close()

	if err := b.relay.Warm(ctx); err != nil {
		return fmt.Errorf("warm: %w", err)
	}
	n, err := b.relay.Reconcile(ctx, b.startedAt)
	if err != nil {
		return fmt.Errorf("reconcile: %w", err)
	}
	if n > 0 {
		log.Warn().Int("tickets", n).Msg("reconcile: dropped unconfirmed tickets")
	}

	host := b.cfg.AppHost
	if host == "0.0.0.0" {
		host = "localhost"
	}
	base := "http://" + host + ":" + b.cfg.HTTPPort
	log.Info().Str("addr", b.httpSrv.Addr).Msg("HTTP server listening")
	log.Info().Msgf("  Swagger UI:    %s/swagger", base)
	log.Info().Msgf("  Health:        %s/health", base)
	log.Info().Msgf("  API v1:        %s/api/v1/", base)
	log.Info().Bool("kafka", b.producer.Enabled()).Str("driver", b.cfg.DB.Driver).Msg("support relay starting")

	go func() {
		if err := b.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("http")
		}
	}()

	runErr := b.client.Run(ctx, b.dispatcher)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := b.httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown")
	}
	pending, open := b.relay.Stats()
	log.Info().Int("pending_selections", pending).Int("open_tickets", open).Msg("support relay stopped")
	if runErr != nil {
		return fmt.Errorf("matrix sync: %w", runErr)
	}
	return nil
}

func (b *Bot) close() {
	b.relay.Flush()
	if err := b.producer.Close(); err != nil {
		log.Error().Err(err).Msg("kafka close")
	}
	if err := b.sqlDB.Close(); err != nil {
		log.Error().Err(err).Msg("database close")
	}
}
