package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/MrEthical07/adminauth/store/sqlstore"
)

func newMigrateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the embedded database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, err := sqlstore.Open(ctx, a.cfg.Store(), nil)
			if err != nil {
				return fmt.Errorf("open store: %w", err)
			}
			defer store.Close()

			if err := store.Migrate(ctx); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "migrations applied (%s)\n", store.Dialect())
			return nil
		},
	}
}
