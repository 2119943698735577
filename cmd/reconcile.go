package cmd

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/psds-microservice/support-relay/internal/application"
	"github.com/psds-microservice/support-relay/internal/database"
	"github.com/psds-microservice/support-relay/internal/kafka"
	"github.com/psds-microservice/support-relay/internal/service"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "List tickets stuck between write and delivery; --purge notifies requesters and removes them",
	RunE:  runReconcile,
}

var (
	reconcileOlderThan time.Duration
	reconcilePurge     bool
)

func init() {
	reconcileCmd.Flags().DurationVar(&reconcileOlderThan, "older-than", time.Minute, "only tickets created at least this long ago")
	reconcileCmd.Flags().BoolVar(&reconcilePurge, "purge", false, "notify requesters over Matrix and delete the tickets")
}

func runReconcile(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	ctx, stop := signalContext(cmd)
	defer stop()

	db, err := database.Open(cfg)
	if err != nil {
		return fmt.Errorf("db: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("db: %w", err)
	}
	defer sqlDB.Close()

	destSvc := service.NewDestinationService(db)
	ticketSvc := service.NewTicketService(db)
	before := time.Now().Add(-reconcileOlderThan)

	stale, err := ticketSvc.ListPending(ctx, before)
	if err != nil {
		return fmt.Errorf("list pending tickets: %w", err)
	}
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tCREATED\tREQUESTER ROOM\tDESTINATION ROOM\tCREATOR")
	for _, t := range stale {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n", t.ID, t.CreatedAt.Format(time.RFC3339), t.OriginalRoom, t.MirroredRoom, t.Creator)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	if !reconcilePurge || len(stale) == 0 {
		log.Info().Int("tickets", len(stale)).Bool("purge", reconcilePurge).Msg("reconcile: done")
		return nil
	}

	if err := cfg.ValidateMatrix(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	client, err := application.NewMatrixClient(cfg)
	if err != nil {
		return err
	}
	producer := kafka.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopicTicket)
	defer producer.Close()

	rt := application.NewRelay(cfg, destSvc, ticketSvc, client, producer)
	// события ticket.abandoned должны уйти до producer.Close
	defer rt.Flush()
	n, err := rt.Reconcile(ctx, before)
	if err != nil {
		return fmt.Errorf("reconcile: %w", err)
	}
	log.Info().Int("tickets", n).Msg("reconcile: purged")
	return nil
}
