package cli

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/MrEthical07/adminauth"
	"github.com/MrEthical07/adminauth/admin"
	"github.com/MrEthical07/adminauth/password"
	"github.com/MrEthical07/adminauth/permission"
	"github.com/MrEthical07/adminauth/store/sqlstore"
)

type bootstrapInput struct {
	Email    string
	Name     string
	Phone    string
	Password string
}

func newBootstrapAdminCmd(a *app) *cobra.Command {
	var in bootstrapInput

	cmd := &cobra.Command{
		Use:   "bootstrap-admin",
		Short: "Create the first super administrator",
		Long: `Create a super_admin account directly in the database. Every later account
change goes through the approval pipeline, which needs an existing checker.

When --password is omitted a password is generated, printed once, and the
account must change it after the first login.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, err := sqlstore.Open(ctx, a.cfg.Store(), nil)
			if err != nil {
				return fmt.Errorf("open store: %w", err)
			}
			defer store.Close()

			u, generated, err := bootstrapAdmin(ctx, store, in, time.Now().UTC())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created %s (id %d, role %s)\n", u.Email, u.ID, u.Role)
			if generated != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "initial password: %s\n", generated)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&in.Email, "email", "", "administrator email (required)")
	cmd.Flags().StringVar(&in.Name, "name", "", "display name (required)")
	cmd.Flags().StringVar(&in.Phone, "phone", "", "phone number")
	cmd.Flags().StringVar(&in.Password, "password", "", "initial password (generated when empty)")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("name")

	return cmd
}

// bootstrapAdmin inserts a super_admin and seeds its password history. It
// returns the generated password when in.Password was empty.
func bootstrapAdmin(ctx context.Context, store admin.Store, in bootstrapInput, now time.Time) (admin.User, string, error) {
	email := admin.NormalizeEmail(in.Email)
	if addr, err := mail.ParseAddress(email); err != nil || addr.Address != email {
		return admin.User{}, "", fmt.Errorf("%w: malformed email", adminauth.ErrInvalidRequest)
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return admin.User{}, "", fmt.Errorf("%w: name is required", adminauth.ErrInvalidRequest)
	}

	cfg := adminauth.DefaultConfig().Password
	pw, generated := in.Password, ""
	if pw == "" {
		var err error
		if pw, err = password.Generate(cfg.GeneratedLength); err != nil {
			return admin.User{}, "", err
		}
		generated = pw
	}
	if err := cfg.Policy.Check(pw); err != nil {
		return admin.User{}, "", err
	}

	hasher, err := password.NewHasher(password.Config{
		Memory:      cfg.Memory,
		Time:        cfg.Time,
		Parallelism: cfg.Parallelism,
		SaltLength:  cfg.SaltLength,
		KeyLength:   cfg.KeyLength,
		MaxLength:   cfg.Policy.MaxLength,
	})
	if err != nil {
		return admin.User{}, "", err
	}
	hash, err := hasher.Hash(pw)
	if err != nil {
		return admin.User{}, "", err
	}

	var u admin.User
	err = store.WithinTx(ctx, func(tx admin.Store) error {
		var err error
		u, err = tx.Users().Create(ctx, admin.NewUser{
			Email:        email,
			Name:         name,
			Phone:        strings.TrimSpace(in.Phone),
			PasswordHash: hash,
			Role:         permission.RoleSuperAdmin,
			FirstLogin:   generated != "",
			CreatedAt:    now,
		})
		if err != nil {
			return err
		}
		return tx.Users().AppendPasswordHistory(ctx, u.ID, hash, now)
	})
	if errors.Is(err, admin.ErrDuplicateEmail) {
		return admin.User{}, "", adminauth.ErrDuplicateEmail
	}
	if err != nil {
		return admin.User{}, "", fmt.Errorf("create administrator: %w", err)
	}
	return u, generated, nil
}

func newRolesCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "roles",
		Short: "Print the effective role table",
		RunE: func(cmd *cobra.Command, args []string) error {
			roles := a.cfg.Roles
			if len(roles) == 0 {
				roles = permission.DefaultRoles()
			}
			registry, err := permission.NewDefaultRegistry()
			if err != nil {
				return err
			}
			rm, err := permission.NewRoleManagerFrom(registry, roles)
			if err != nil {
				return err
			}

			names := make([]string, 0, len(roles))
			for name := range roles {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", name, strings.Join(rm.Permissions(name), ", "))
			}
			return nil
		},
	}
}
