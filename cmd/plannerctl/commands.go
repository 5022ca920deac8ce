package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/ashureev/wellness-planner/internal/config"
	"github.com/ashureev/wellness-planner/internal/domain"
	"github.com/ashureev/wellness-planner/internal/identity"
	"github.com/ashureev/wellness-planner/internal/store"
)

type rootOptions struct {
	store config.StoreConfig
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{store: config.LoadStore()}

	root := &cobra.Command{
		Use:           "plannerctl",
		Short:         "Administer the wellness planner session store",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.store.Driver, "driver", opts.store.Driver, "store driver (sqlite|badger)")
	root.PersistentFlags().StringVar(&opts.store.DBPath, "db", opts.store.DBPath, "SQLite database path")
	root.PersistentFlags().StringVar(&opts.store.BadgerPath, "badger-path", opts.store.BadgerPath, "Badger directory")

	root.AddCommand(
		newUsersCmd(opts),
		newRegisterCmd(opts),
		newExportCmd(opts),
		newResetCmd(opts),
	)
	return root
}

func (o *rootOptions) open() (store.Repository, error) {
	return store.Open(store.Options{
		Driver:     o.store.Driver,
		SQLitePath: o.store.DBPath,
		BadgerPath: o.store.BadgerPath,
		Logger:     slog.Default(),
	})
}

// withRepo opens the store for one command and closes it afterwards.
func (o *rootOptions) withRepo(fn func(repo store.Repository) error) error {
	repo, err := o.open()
	if err != nil {
		return err
	}
	runErr := fn(repo)
	if closeErr := repo.Close(); closeErr != nil && runErr == nil {
		return closeErr
	}
	return runErr
}

func newUsersCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "users",
		Short: "List registered users and when their sessions last changed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withRepo(func(repo store.Repository) error {
				sums, err := repo.ListSessions(cmd.Context())
				if err != nil {
					return err
				}
				if len(sums) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No users registered.")
					return nil
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "UID\tNAME\tEMAIL\tCREATED\tLAST LOGIN\tLAST UPDATED")
				for _, s := range sums {
					fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\n",
						s.UID, s.Name, orDash(s.Email), formatTime(&s.CreatedAt), formatTime(s.LastLogin), formatTime(&s.LastUpdated))
				}
				return tw.Flush()
			})
		},
	}
}

func newRegisterCmd(opts *rootOptions) *cobra.Command {
	var name, email, password string
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Register a user with an empty session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			name = strings.TrimSpace(name)
			if name == "" {
				return errors.New("--name is required")
			}
			email = domain.NormalizeEmail(email)
			if email != "" && password == "" {
				return errors.New("--password is required with --email")
			}
			hash, err := identity.HashCredential(password)
			if err != nil {
				return err
			}
			return opts.withRepo(func(repo store.Repository) error {
				s, err := repo.CreateUser(cmd.Context(), name, email, hash)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Registered %s with uid %d\n", s.Name, s.UID)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "display name")
	cmd.Flags().StringVar(&email, "email", "", "optional email address")
	cmd.Flags().StringVar(&password, "password", "", "password (required with --email)")
	return cmd
}

func newExportCmd(opts *rootOptions) *cobra.Command {
	var uid int64
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Print a user's session export as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if uid <= 0 {
				return errors.New("--uid must be a positive user id")
			}
			return opts.withRepo(func(repo store.Repository) error {
				s, err := repo.LoadSession(cmd.Context(), uid)
				if err != nil {
					return fmt.Errorf("load session %d: %w", uid, err)
				}
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(s.Export())
			})
		},
	}
	cmd.Flags().Int64Var(&uid, "uid", 0, "user id")
	return cmd
}

func newResetCmd(opts *rootOptions) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Delete every user and session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !yes {
				return errors.New("refusing to reset without --yes")
			}
			return opts.withRepo(func(repo store.Repository) error {
				n, err := repo.Reset(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %d users\n", n)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "confirm the reset")
	return cmd
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func formatTime(t *time.Time) string {
	if t == nil || t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04")
}
