package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newUserCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage users of the web API",
	}
	cmd.AddCommand(newUserAddCmd(a))
	cmd.AddCommand(newUserCredentialsCmd(a))
	return cmd
}

func newUserAddCmd(a *app) *cobra.Command {
	var username, password string

	c := &cobra.Command{
		Use:   "add",
		Short: "Add a local user (username/password)",
		RunE: func(cmd *cobra.Command, args []string) error {
			d, store, err := a.openStores(cmd, true)
			if err != nil {
				return err
			}
			defer d.Close()

			id, err := store.CreateUser(cmd.Context(), username, password)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created user %q id=%d\n", username, id)
			return nil
		},
	}

	c.Flags().StringVar(&username, "username", "", "username")
	c.Flags().StringVar(&password, "password", "", "password (at least 8 characters)")
	_ = c.MarkFlagRequired("username")
	_ = c.MarkFlagRequired("password")
	return c
}

func newUserCredentialsCmd(a *app) *cobra.Command {
	var userID int64
	var verify bool

	c := &cobra.Command{
		Use:   "credentials",
		Short: "Store the Aptner login used for a user's scheduled plans (from APTNER_ID / APTNER_PW)",
		RunE: func(cmd *cobra.Command, args []string) error {
			creds, err := a.credentials()
			if err != nil {
				return err
			}
			if verify {
				if _, err := a.aptnerClient().Authenticate(cmd.Context(), creds); err != nil {
					return err
				}
			}
			d, store, err := a.openStores(cmd, true)
			if err != nil {
				return err
			}
			defer d.Close()

			if err := store.SaveAptnerCredentials(cmd.Context(), userID, creds); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "stored aptner credentials for user id=%d\n", userID)
			return nil
		},
	}
	c.Flags().Int64Var(&userID, "user-id", 0, "user id (from DB)")
	c.Flags().BoolVar(&verify, "verify", true, "log in to Aptner before storing")
	_ = c.MarkFlagRequired("user-id")
	return c
}
