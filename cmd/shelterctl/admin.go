package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/vladislavdragonenkov/straycare/internal/app"
	"github.com/vladislavdragonenkov/straycare/internal/auth"
)

func newAdminCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Manage administrator accounts",
	}

	var reg auth.Registration
	create := &cobra.Command{
		Use:   "create",
		Short: "Create an administrator directly in storage",
		Long: `Create an administrator without going through the API.

The password is read from --password or SHELTER_ADMIN_PASSWORD.
Storage is selected by the regular SHELTER_* configuration.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if reg.Password == "" {
				reg.Password = os.Getenv("SHELTER_ADMIN_PASSWORD")
			}
			cfg, err := app.LoadConfig()
			if err != nil {
				return err
			}
			id, err := app.CreateAdmin(cmd.Context(), cfg, reg, nil)
			if err != nil {
				return fmt.Errorf("create admin: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "admin %q created with id %d\n", reg.Username, id)
			return nil
		},
	}
	create.Flags().StringVar(&reg.Username, "username", "", "administrator username")
	create.Flags().StringVar(&reg.Email, "email", "", "administrator email")
	create.Flags().StringVar(&reg.Password, "password", "", "administrator password (prefer SHELTER_ADMIN_PASSWORD)")
	_ = create.MarkFlagRequired("username")
	_ = create.MarkFlagRequired("email")

	cmd.AddCommand(create)
	return cmd
}
