package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"glucowizard/internal/sqlaudit"
)

func newLintSQLCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "lint-sql [paths...]",
		Short: "Check that SQL constants carry unique --sql <uuid> markers.",
		RunE: func(cmd *cobra.Command, args []string) error {
			violations, err := sqlaudit.Lint(args...)
			if err != nil {
				return err
			}
			if len(violations) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), ok("sql markers ok"))
				return nil
			}
			for _, v := range violations {
				fmt.Fprintln(cmd.ErrOrStderr(), "  "+v.String())
			}
			return fmt.Errorf("%d statement(s) with missing or duplicate markers", len(violations))
		},
	}
}
