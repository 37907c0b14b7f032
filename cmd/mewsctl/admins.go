package main

import (
	"context"
	"errors"
	"fmt"

	locationstore "github.com/mewsorg/mews/internal/app/store/locations"
	userstore "github.com/mewsorg/mews/internal/app/store/users"
	"github.com/mewsorg/mews/internal/app/system/authutil"
	"github.com/mewsorg/mews/internal/app/system/authz"
	"github.com/mewsorg/mews/internal/domain/models"
	"github.com/spf13/cobra"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

var (
	adminUsername string
	adminPassword string
	adminRole     string
	adminLocation string
	adminEmail    string
)

var createAdminCmd = &cobra.Command{
	Use:   "create-admin",
	Short: "Create an admin login",
	Example: `  mewsctl create-admin --username nalgonda --password '...' --role DISTRICT_ADMIN --location Nalgonda
  mewsctl create-admin --username root --password '...' --role SUPER_ADMIN`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if !models.IsAdminRole(adminRole) {
			return fmt.Errorf("unknown admin role %q", adminRole)
		}
		if err := authutil.ValidatePassword(adminPassword); err != nil {
			return err
		}
		return withDB(cmd, func(ctx context.Context, db *mongo.Database) error {
			loc, err := resolveLocation(ctx, locationstore.New(db), adminRole, adminLocation)
			if err != nil {
				return err
			}
			u, err := userstore.New(db).Create(ctx, models.User{
				Username:         adminUsername,
				Email:            adminEmail,
				Role:             adminRole,
				AssignedLocation: loc,
			}, adminPassword)
			if err != nil {
				return err
			}
			logger.Info("admin created",
				zap.String("id", u.ID.Hex()),
				zap.String("username", u.Username),
				zap.String("role", u.Role))
			return nil
		})
	},
}

var fixAdminLocationCmd = &cobra.Command{
	Use:   "fix-admin-location",
	Short: "Point an admin at a location of the type their role manages",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDB(cmd, func(ctx context.Context, db *mongo.Database) error {
			users := userstore.New(db)
			u, err := users.GetByLogin(ctx, adminUsername)
			if err != nil {
				return fmt.Errorf("user %s: %w", adminUsername, err)
			}
			loc, err := resolveLocation(ctx, locationstore.New(db), u.Role, adminLocation)
			if err != nil {
				return err
			}
			if loc == nil {
				return fmt.Errorf("%s has role %s, which has no location", u.Username, u.Role)
			}
			if err := users.SetAssignedLocation(ctx, u.ID, *loc); err != nil {
				return err
			}
			logger.Info("admin location updated",
				zap.String("username", u.Username),
				zap.String("location", loc.Hex()))
			return nil
		})
	},
}

var resetPasswordCmd = &cobra.Command{
	Use:   "reset-password",
	Short: "Set a new password for an admin or institution login",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := authutil.ValidatePassword(adminPassword); err != nil {
			return err
		}
		return withDB(cmd, func(ctx context.Context, db *mongo.Database) error {
			users := userstore.New(db)
			u, err := users.GetByLogin(ctx, adminUsername)
			if err != nil {
				return fmt.Errorf("user %s: %w", adminUsername, err)
			}
			if err := users.SetPassword(ctx, u.ID, adminPassword); err != nil {
				return err
			}
			logger.Info("password reset", zap.String("username", u.Username))
			return nil
		})
	},
}

func init() {
	createAdminCmd.Flags().StringVar(&adminUsername, "username", "", "login name")
	createAdminCmd.Flags().StringVar(&adminPassword, "password", "", "initial password (8+ characters)")
	createAdminCmd.Flags().StringVar(&adminRole, "role", models.RoleVillageAdmin, "admin role")
	createAdminCmd.Flags().StringVar(&adminLocation, "location", "", "location id or name, required for every role but SUPER_ADMIN")
	createAdminCmd.Flags().StringVar(&adminEmail, "email", "", "email address")
	_ = createAdminCmd.MarkFlagRequired("username")
	_ = createAdminCmd.MarkFlagRequired("password")

	fixAdminLocationCmd.Flags().StringVar(&adminUsername, "username", "", "login name or email")
	fixAdminLocationCmd.Flags().StringVar(&adminLocation, "location", "", "location id or name")
	_ = fixAdminLocationCmd.MarkFlagRequired("username")
	_ = fixAdminLocationCmd.MarkFlagRequired("location")

	resetPasswordCmd.Flags().StringVar(&adminUsername, "username", "", "login name or email")
	resetPasswordCmd.Flags().StringVar(&adminPassword, "password", "", "new password (8+ characters)")
	_ = resetPasswordCmd.MarkFlagRequired("username")
	_ = resetPasswordCmd.MarkFlagRequired("password")

	rootCmd.AddCommand(createAdminCmd, fixAdminLocationCmd, resetPasswordCmd)
}

// resolveLocation finds the location an admin of role should be assigned,
// by hex id or by name. Roles without a location type resolve to nil.
func resolveLocation(ctx context.Context, locs *locationstore.Store, role, ref string) (*primitive.ObjectID, error) {
	typ := authz.LocationTypeForRole(role)
	if typ == "" {
		return nil, nil
	}
	if ref == "" {
		return nil, fmt.Errorf("role %s needs a %s location", role, typ)
	}

	var loc models.Location
	var err error
	if id, perr := primitive.ObjectIDFromHex(ref); perr == nil {
		loc, err = locs.Get(ctx, id)
	} else {
		loc, err = locs.FindByName(ctx, ref, typ)
	}
	if errors.Is(err, locationstore.ErrNotFound) {
		return nil, fmt.Errorf("no %s named %q", typ, ref)
	}
	if err != nil {
		return nil, err
	}
	if loc.Type != typ {
		return nil, fmt.Errorf("%s is a %s, role %s needs a %s", loc.Name, loc.Type, role, typ)
	}
	return &loc.ID, nil
}
