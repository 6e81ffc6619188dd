package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"jobmate/jobsync/internal/config"
	"jobmate/jobsync/internal/model"
	"jobmate/jobsync/internal/session"
)

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Show, set or clear the logged-in user",
	Long: `Manage the logged-in user stored in $SESSION_DB.

A running server watches the session file and reconciles its liked and
saved sets as soon as the user changes.`,
}

var sessionShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the logged-in user as JSON",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withSession(cmd.Context(), func(ctx context.Context, s *session.Store) error {
			u, err := s.Current(ctx)
			if err != nil {
				return err
			}
			if u == nil {
				fmt.Fprintln(cmd.OutOrStdout(), "Not logged in")
				return nil
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(u)
		})
	},
}

var sessionLoginCmd = &cobra.Command{
	Use:   "login <user-id>",
	Short: "Set the logged-in user",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name, _ := cmd.Flags().GetString("name")
		photo, _ := cmd.Flags().GetString("photo")
		u := model.User{ID: args[0], Name: name, Photo: photo}
		return withSession(cmd.Context(), func(ctx context.Context, s *session.Store) error {
			if err := s.Save(ctx, u); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s\n", u.ID)
			return nil
		})
	},
}

var sessionLogoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Clear the logged-in user",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withSession(cmd.Context(), func(ctx context.Context, s *session.Store) error {
			if err := s.Clear(ctx); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Logged out")
			return nil
		})
	},
}

func init() {
	sessionLoginCmd.Flags().String("name", "", "display name")
	sessionLoginCmd.Flags().String("photo", "", "avatar URL")

	sessionCmd.AddCommand(sessionShowCmd, sessionLoginCmd, sessionLogoutCmd)
	rootCmd.AddCommand(sessionCmd)
}

func withSession(ctx context.Context, fn func(context.Context, *session.Store) error) error {
	cfg, err := config.LoadLocal()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	s, err := session.Open(ctx, cfg.SessionDB)
	if err != nil {
		return err
	}
	defer func() {
		if err := s.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: close session store: %v\n", err)
		}
	}()
	return fn(ctx, s)
}
