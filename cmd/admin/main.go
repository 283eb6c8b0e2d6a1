package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"civictrack/backend/internal/auth"
	"civictrack/backend/internal/config"
	"civictrack/backend/internal/models"
	"civictrack/backend/internal/storage"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// userStore is what the admin commands need from storage.
type userStore interface {
	SaveUser(ctx context.Context, user *models.User) error
	FindUserByID(ctx context.Context, id string) (*models.User, error)
}

func main() {
	cfg, _ := config.Load()

	var store *storage.Service
	connect := func(*cobra.Command, []string) error {
		if cfg.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is not set")
		}
		db, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{
			Logger: logger.Default.LogMode(logger.Silent),
		})
		if err != nil {
			return fmt.Errorf("failed to connect database: %w", err)
		}
		store = storage.NewStorageService(db, nil, zap.NewNop()) // No redis needed for admin CLI
		return store.Migrate()
	}

	root := &cobra.Command{
		Use:           "admin",
		Short:         "CivicTrack administration",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	userCmd := &cobra.Command{
		Use:               "user",
		Short:             "User directory commands",
		PersistentPreRunE: connect,
	}
	userCmd.AddCommand(addUserCmd(func() userStore { return store }))
	userCmd.AddCommand(setRoleCmd(func() userStore { return store }))

	root.AddCommand(userCmd)
	root.AddCommand(tokenCmd(cfg))

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func addUserCmd(store func() userStore) *cobra.Command {
	var u models.User
	var role string

	cmd := &cobra.Command{
		Use:   "add <username>",
		Short: "Create a directory user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			u.Username = args[0]
			u.Role = models.Role(role)
			if err := addUser(cmd.Context(), store(), &u); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "User %s created with id %s\n", u.Username, u.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&u.Name, "name", "", "display name")
	cmd.Flags().StringVar(&u.Email, "email", "", "email address for notifications")
	cmd.Flags().StringVar(&u.Phone, "phone", "", "E.164 phone number for SMS")
	cmd.Flags().StringVar(&u.City, "city", "", "home city")
	cmd.Flags().StringVar(&u.Language, "language", config.DefaultLanguage, "notification language")
	cmd.Flags().StringVar(&role, "role", string(models.RoleCitizen), "Citizen, Authority or Admin")
	return cmd
}

func setRoleCmd(store func() userStore) *cobra.Command {
	return &cobra.Command{
		Use:   "set-role <user_id> <role>",
		Short: "Change a user's role",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := setRole(cmd.Context(), store(), args[0], models.Role(args[1])); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "User %s is now %s\n", args[0], args[1])
			return nil
		},
	}
}

func tokenCmd(cfg *config.Config) *cobra.Command {
	var role string
	cmd := &cobra.Command{
		Use:   "token <user_id>",
		Short: "Issue an API token for a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfg.JWTSecret == "" {
				return fmt.Errorf("JWT_SECRET is not set")
			}
			r := models.Role(role)
			if !r.Valid() {
				return fmt.Errorf("unknown role %q", role)
			}
			token, err := auth.IssueToken(cfg.JWTSecret, args[0], r, config.TokenTTL)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&role, "role", string(models.RoleCitizen), "role embedded in the token")
	return cmd
}

func addUser(ctx context.Context, s userStore, u *models.User) error {
	u.Username = strings.TrimSpace(u.Username)
	if u.Username == "" {
		return fmt.Errorf("username is required")
	}
	if !u.Role.Valid() {
		return fmt.Errorf("unknown role %q", u.Role)
	}
	return s.SaveUser(ctx, u)
}

func setRole(ctx context.Context, s userStore, userID string, role models.Role) error {
	if !role.Valid() {
		return fmt.Errorf("unknown role %q", role)
	}
	user, err := s.FindUserByID(ctx, userID)
	if err != nil {
		return err
	}
	if user == nil {
		return fmt.Errorf("user %s not found", userID)
	}
	user.Role = role
	return s.SaveUser(ctx, user)
}
