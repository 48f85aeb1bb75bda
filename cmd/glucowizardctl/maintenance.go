package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"glucowizard/internal/maintenance"
)

func newMaintenanceCmd(s *session) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "maintenance",
		Short: "Housekeeping jobs.",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "run",
		Short: "Purge expired OAuth flows and fail stale reports once.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			runner, err := s.runner(cmd.Context())
			if err != nil {
				return err
			}
			cfg, _ := s.config()
			res, err := maintenance.NewScheduler(runner, cfg.MaintenanceSchedule, cfg.StaleReportAfter, s.logger).RunOnce(cmd.Context())
			fmt.Fprintf(cmd.OutOrStdout(), "expired oauth flows purged: %d\nstale reports failed: %d\n", res.ExpiredFlows, res.StaleReports)
			return err
		},
	})
	return cmd
}
