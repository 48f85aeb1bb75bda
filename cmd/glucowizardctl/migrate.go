package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"glucowizard/internal/infra"
)

func newMigrateCmd(s *session) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or inspect schema migrations.",
	}
	withMigrator := func(fn func(cmd *cobra.Command, m *infra.Migrator) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, _ []string) error {
			cfg, err := s.config()
			if err != nil {
				return err
			}
			m, err := infra.NewMigrator(cfg.DatabaseURL, s.logger)
			if err != nil {
				return err
			}
			defer m.Close()
			return fn(cmd, m)
		}
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply every pending migration.",
			RunE: withMigrator(func(cmd *cobra.Command, m *infra.Migrator) error {
				if err := m.Up(cmd.Context()); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), ok("schema up to date"))
				return nil
			}),
		},
		&cobra.Command{
			Use:   "down",
			Short: "Roll back the most recent migration.",
			RunE: withMigrator(func(cmd *cobra.Command, m *infra.Migrator) error {
				if err := m.Down(cmd.Context()); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), warn("rolled back one migration"))
				return nil
			}),
		},
		&cobra.Command{
			Use:   "status",
			Short: "List migrations and whether they are applied.",
			RunE: withMigrator(func(cmd *cobra.Command, m *infra.Migrator) error {
				statuses, err := m.Status(cmd.Context())
				if err != nil {
					return err
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "VERSION\tSTATE\tAPPLIED AT\tFILE")
				for _, st := range statuses {
					state, at := warn("pending"), "-"
					if st.Applied {
						state, at = ok("applied"), st.AppliedAt.Format(time.RFC3339)
					}
					fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", st.Version, state, at, st.Name)
				}
				return tw.Flush()
			}),
		},
	)
	return cmd
}
