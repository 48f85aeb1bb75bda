package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/user"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"glucowizard/internal/domain"
	"glucowizard/internal/infra/credentials"
)

func newCredentialsCmd(s *session) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "credentials",
		Short: "Store third-party API keys in the database.",
	}

	var key, setBy string
	setOpenAI := &cobra.Command{
		Use:   "set-openai",
		Short: "Store the OpenAI API key used when OPENAI_API_KEY is empty.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if strings.TrimSpace(key) == "" {
				key = os.Getenv("OPENAI_API_KEY")
			}
			if strings.TrimSpace(key) == "" {
				return errors.New("OpenAI API key is required via --key or OPENAI_API_KEY")
			}
			if _, err := credentials.ValidateOpenAIKey(key); err != nil {
				return err
			}
			if setBy == "" {
				setBy = operator()
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
			defer cancel()
			runner, err := s.runner(ctx)
			if err != nil {
				return err
			}
			info, err := credentials.NewStore(runner).SetOpenAIAPIKey(ctx, key, setBy)
			if err != nil {
				return fmt.Errorf("persist openai api key: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s openai api key stored (%s, fingerprint %s)\n", ok("ok"), info.Masked, info.Fingerprint)
			return nil
		},
	}
	setOpenAI.Flags().StringVar(&key, "key", "", "API key (defaults to OPENAI_API_KEY)")
	setOpenAI.Flags().StringVar(&setBy, "set-by", "", "operator recorded with the key (defaults to the current user)")

	show := &cobra.Command{
		Use:   "show",
		Short: "Describe the stored OpenAI API key without printing it.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
			defer cancel()
			runner, err := s.runner(ctx)
			if err != nil {
				return err
			}
			info, err := credentials.NewStore(runner).OpenAIKeyInfo(ctx)
			if errors.Is(err, domain.ErrNotFound) {
				fmt.Fprintf(cmd.OutOrStdout(), "%s no openai api key stored\n", warn("none"))
				return nil
			}
			if err != nil {
				return err
			}
			setByLabel := info.SetBy
			if setByLabel == "" {
				setByLabel = "-"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s fingerprint=%s set_by=%s updated=%s\n",
				info.Provider, info.Masked, info.Fingerprint, setByLabel, info.UpdatedAt.Format(time.RFC3339))
			return nil
		},
	}

	cmd.AddCommand(setOpenAI, show)
	return cmd
}

func operator() string {
	if u, err := user.Current(); err == nil && u.Username != "" {
		return u.Username
	}
	return "glucowizardctl"
}
