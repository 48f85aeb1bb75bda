package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"glucowizard/internal/adapter/repo"
	"glucowizard/internal/domain"
)

type staffOptions struct {
	id        int64
	email     string
	superuser bool
	revoke    bool
}

func (o staffOptions) validate() error {
	if o.id <= 0 && strings.TrimSpace(o.email) == "" {
		return errors.New("either --id or --email must be provided")
	}
	if o.id > 0 && strings.TrimSpace(o.email) != "" {
		return errors.New("--id and --email are mutually exclusive")
	}
	if o.revoke && o.superuser {
		return errors.New("--superuser cannot be combined with --revoke")
	}
	return nil
}

func newUserCmd(s *session) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage local user accounts.",
	}

	var opts staffOptions
	staff := &cobra.Command{
		Use:   "staff",
		Short: "Grant or revoke admin access for a user.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := opts.validate(); err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
			defer cancel()
			runner, err := s.runner(ctx)
			if err != nil {
				return err
			}
			users := repo.NewUserRepository(runner)

			var user *domain.User
			if opts.id > 0 {
				user, err = users.GetByID(ctx, opts.id)
			} else {
				user, err = users.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(opts.email)))
			}
			if errors.Is(err, domain.ErrNotFound) {
				return fmt.Errorf("user not found")
			}
			if err != nil {
				return fmt.Errorf("load user: %w", err)
			}

			updated, err := users.SetStaff(ctx, user.ID, !opts.revoke, opts.superuser)
			if err != nil {
				return fmt.Errorf("update user: %w", err)
			}
			state := ok("staff")
			switch {
			case !updated.IsStaff:
				state = warn("regular user")
			case updated.IsSuperuser:
				state = ok("superuser")
			}
			fmt.Fprintf(cmd.OutOrStdout(), "User %d %s <%s> is now %s\n", updated.ID, updated.Username, updated.Email, state)
			return nil
		},
	}
	staff.Flags().Int64Var(&opts.id, "id", 0, "user id")
	staff.Flags().StringVar(&opts.email, "email", "", "user email (first match by id)")
	staff.Flags().BoolVar(&opts.superuser, "superuser", false, "also grant superuser")
	staff.Flags().BoolVar(&opts.revoke, "revoke", false, "remove staff and superuser")

	cmd.AddCommand(staff)
	return cmd
}
