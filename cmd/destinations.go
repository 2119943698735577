package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/psds-microservice/support-relay/internal/database"
	"github.com/psds-microservice/support-relay/internal/service"
	"github.com/spf13/cobra"
)

var destinationsCmd = &cobra.Command{
	Use:   "destinations",
	Short: "Print the destinations requesters are currently offered",
	RunE:  runDestinations,
}

func runDestinations(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	db, err := database.Open(cfg)
	if err != nil {
		return fmt.Errorf("db: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("db: %w", err)
	}
	defer sqlDB.Close()

	visible, err := service.NewDestinationService(db).ListVisible(cmd.Context())
	if err != nil {
		return fmt.Errorf("list destinations: %w", err)
	}
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "CODE\tNAME\tROOM")
	for _, d := range visible {
		fmt.Fprintf(w, "%d\t%s\t%s\n", d.Code, d.DisplayName, d.RoomID)
	}
	return w.Flush()
}
