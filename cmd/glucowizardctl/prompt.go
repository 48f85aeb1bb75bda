package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"glucowizard/internal/adapter/repo"
	"glucowizard/internal/domain"
)

func newPromptCmd(s *session) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prompt",
		Short: "Manage admin prompts appended to report instructions.",
	}

	var (
		text     string
		inactive bool
	)
	add := &cobra.Command{
		Use:   "add",
		Short: "Create an admin prompt.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			text = strings.TrimSpace(text)
			if text == "" {
				return errors.New("--text is required")
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
			defer cancel()
			runner, err := s.runner(ctx)
			if err != nil {
				return err
			}
			p, err := repo.NewAdminPromptRepository(runner).Create(ctx, !inactive, text)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s #%d %s\n", ok("created"), p.ID, p)
			return nil
		},
	}
	add.Flags().StringVar(&text, "text", "", "custom instructions")
	add.Flags().BoolVar(&inactive, "inactive", false, "store the prompt disabled")

	var activeOnly bool
	list := &cobra.Command{
		Use:   "list",
		Short: "List admin prompts, most recently updated first.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
			defer cancel()
			runner, err := s.runner(ctx)
			if err != nil {
				return err
			}
			filter := domain.AdminPromptFilter{}
			if activeOnly {
				filter.Active = &activeOnly
			}
			prompts, err := repo.NewAdminPromptRepository(runner).List(ctx, filter)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tSTATE\tUPDATED\tINSTRUCTIONS")
			for _, p := range prompts {
				state := warn("inactive")
				if p.IsActive {
					state = ok("active")
				}
				fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", p.ID, state, p.UpdatedAt.Format("2006-01-02 15:04"), truncate(p.CustomInstructions, 60))
			}
			return tw.Flush()
		},
	}
	list.Flags().BoolVar(&activeOnly, "active", false, "only active prompts")

	cmd.AddCommand(add, list)
	return cmd
}

func truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
