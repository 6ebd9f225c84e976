package cmd

import (
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
	"github.com/templui/accounts/internal/repository"
	"github.com/templui/accounts/internal/service"
)

func CreateSuperuserCmd(opts *DBOptions) *cobra.Command {
	var email, name string

	cmd := &cobra.Command{
		Use:   "createsuperuser",
		Short: "Create an active staff superuser",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withDB(true, func(database *sqlx.DB) error {
				users := service.NewUserService(repository.NewUserRepository(database))

				user, err := users.CreateSuperuser(cmd.Context(), email, name)
				if errors.Is(err, service.ErrEmailAlreadyExists) {
					return fmt.Errorf("a user with email %q already exists", email)
				}
				if err != nil {
					return err
				}

				fmt.Fprintf(cmd.OutOrStdout(), "superuser created: %s %s\n", user.ID, user.Email)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "email address (required)")
	cmd.Flags().StringVar(&name, "name", "", "display name, defaults to the email local part")
	_ = cmd.MarkFlagRequired("email")

	return cmd
}

func UsersCmd(opts *DBOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "users",
		Short: "Inspect users",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List users, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withDB(true, func(database *sqlx.DB) error {
				users, err := service.NewUserService(repository.NewUserRepository(database)).List(cmd.Context())
				if err != nil {
					return err
				}

				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "ID\tEMAIL\tNAME\tGOOGLE\tACTIVE\tSTAFF\tSUPERUSER\tCREATED")
				for _, u := range users {
					fmt.Fprintf(w, "%s\t%s\t%s\t%t\t%t\t%t\t%t\t%s\n",
						u.ID, u.Email, u.Name, u.HasExternalID(),
						u.IsActive, u.IsStaff, u.IsSuperuser,
						u.CreatedAt.UTC().Format(time.RFC3339),
					)
				}
				return w.Flush()
			})
		},
	})

	return cmd
}
