// Command glucowizardctl is the operator CLI: migrations, staff accounts,
// admin prompts, stored credentials and maintenance.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"glucowizard/internal/infra"
)

var (
	ok   = color.New(color.FgGreen).SprintFunc()
	warn = color.New(color.FgYellow).SprintFunc()
	bad  = color.New(color.FgRed).SprintFunc()
)

// session holds what a subcommand opened so main can release it.
type session struct {
	cfg    *infra.Config
	logger infra.Logger
	pool   *pgxpool.Pool
}

func (s *session) config() (*infra.Config, error) {
	if s.cfg != nil {
		return s.cfg, nil
	}
	cfg, err := infra.LoadConfig()
	if err != nil {
		return nil, err
	}
	s.cfg = cfg
	s.logger = infra.NewLogger(cfg.AppEnv, cfg.LogLevel, "").With().Str("component", "cli").Logger()
	return cfg, nil
}

func (s *session) runner(ctx context.Context) (*infra.SQLRunner, error) {
	cfg, err := s.config()
	if err != nil {
		return nil, err
	}
	if s.pool == nil {
		pool, err := infra.NewDBPool(ctx, cfg)
		if err != nil {
			return nil, err
		}
		s.pool = pool
	}
	return infra.NewSQLRunner(s.pool, s.logger), nil
}

func (s *session) close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

func newRootCmd(s *session) *cobra.Command {
	root := &cobra.Command{
		Use:           "glucowizardctl",
		Short:         "Operate the Glucowizard backend.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		newMigrateCmd(s),
		newUserCmd(s),
		newPromptCmd(s),
		newCredentialsCmd(s),
		newMaintenanceCmd(s),
		newLintSQLCmd(),
	)
	return root
}

func main() {
	_ = godotenv.Load()

	s := &session{}
	err := newRootCmd(s).Execute()
	s.close()
	if err != nil {
		fmt.Fprintln(os.Stderr, bad("error:"), err)
		os.Exit(1)
	}
}
