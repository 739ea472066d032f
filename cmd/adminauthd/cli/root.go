package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/MrEthical07/adminauth/internal/appconfig"
)

// Execute creates the root command tree and runs it.
func Execute(version, commit, date string) error {
	return newRootCmd(viper.New(), version, commit, date).Execute()
}

// app carries state shared by subcommands once the root command has loaded
// the configuration.
type app struct {
	v       *viper.Viper
	cfgFile string
	cfg     appconfig.Config
}

func newRootCmd(v *viper.Viper, version, commit, date string) *cobra.Command {
	a := &app{v: v}

	cmd := &cobra.Command{
		Use:   "adminauthd",
		Short: "Administrative identity and approval service",
		Long: `adminauthd authenticates console administrators with a password and a TOTP
second factor, validates their sessions, handles password resets and runs the
maker-checker approval pipeline for privileged account changes.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := appconfig.Load(a.v, a.cfgFile)
			if err != nil {
				return err
			}
			a.cfg = cfg
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&a.cfgFile, "config", "", "config file (default is ./adminauth.yaml)")

	cmd.AddCommand(newServeCmd(a))
	cmd.AddCommand(newMigrateCmd(a))
	cmd.AddCommand(newBootstrapAdminCmd(a))
	cmd.AddCommand(newRolesCmd(a))
	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return nil
		},
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "adminauthd %s (commit %s, built %s)\n", version, commit, date)
		},
	})

	return cmd
}
