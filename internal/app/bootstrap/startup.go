// internal/app/bootstrap/startup.go
package bootstrap

import (
	"context"
	"errors"
	"fmt"

	"github.com/dalemusser/waffle/config"
	announcementstore "github.com/mewsorg/mews/internal/app/store/announcements"
	carouselstore "github.com/mewsorg/mews/internal/app/store/carousel"
	locationstore "github.com/mewsorg/mews/internal/app/store/locations"
	memberstore "github.com/mewsorg/mews/internal/app/store/members"
	notificationstore "github.com/mewsorg/mews/internal/app/store/notifications"
	userstore "github.com/mewsorg/mews/internal/app/store/users"
	"github.com/mewsorg/mews/internal/app/system/authutil"
	"github.com/mewsorg/mews/internal/app/system/locationcache"
	"github.com/mewsorg/mews/internal/app/system/mailer"
	"github.com/mewsorg/mews/internal/app/system/notify"
	"github.com/mewsorg/mews/internal/app/system/tasks"
	"github.com/mewsorg/mews/internal/app/system/timeouts"
	"github.com/mewsorg/mews/internal/app/system/workers"
	"github.com/mewsorg/mews/internal/domain/models"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Startup runs one-time initialization after the schema is in place and
// before the handler is built: timeouts, the super admin account and the
// background workers.
func Startup(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	timeouts.Configure(timeouts.Config{
		Ping:   timeouts.DefaultPing,
		Short:  appCfg.TimeoutShort,
		Medium: appCfg.TimeoutMedium,
		Long:   appCfg.TimeoutLong,
		Batch:  timeouts.DefaultBatch,
	})

	users := userstore.New(deps.MongoDatabase)
	if err := ensureSuperAdmin(ctx, users, appCfg.SuperAdminUsername, appCfg.SuperAdminPassword, logger); err != nil {
		logger.Error("super admin bootstrap failed", zap.Error(err))
		return err
	}

	db := deps.MongoDatabase
	runner := workers.NewRunner(logger,
		tasks.OTPCleanupJob(memberstore.New(db), logger),
		tasks.ScheduledAnnouncementsJob(announcementstore.New(db), newNotifier(appCfg, db, newLocationCache(db), logger), logger),
		tasks.CarouselExpiryJob(carouselstore.New(db), logger),
	)
	runner.Start()
	if deps.bg != nil {
		deps.bg.runner = runner
	}
	return nil
}

// ensureSuperAdmin creates the configured super admin when no user has
// that username, and promotes an existing user with that username who is
// not one yet. A blank username disables the bootstrap.
func ensureSuperAdmin(ctx context.Context, users *userstore.Store, username, password string, logger *zap.Logger) error {
	if username == "" {
		return nil
	}

	u, err := users.GetByLogin(ctx, username)
	switch {
	case err == nil:
		if u.Role == models.RoleSuperAdmin {
			logger.Debug("super admin already present", zap.String("username", username))
			return nil
		}
		if _, err := users.Assign(ctx, u.ID, models.RoleSuperAdmin, nil, nil); err != nil {
			return fmt.Errorf("promote super admin: %w", err)
		}
		logger.Info("promoted user to super admin", zap.String("username", username), zap.String("from_role", u.Role))
		return nil
	case !errors.Is(err, userstore.ErrNotFound):
		return fmt.Errorf("look up super admin: %w", err)
	}

	if err := authutil.ValidatePassword(password); err != nil {
		return fmt.Errorf("superadmin_password: %w", err)
	}
	if _, err := users.Create(ctx, models.User{Username: username, Role: models.RoleSuperAdmin}, password); err != nil {
		return fmt.Errorf("create super admin: %w", err)
	}
	logger.Info("created super admin", zap.String("username", username))
	return nil
}

func newMailer(appCfg AppConfig, logger *zap.Logger) *mailer.Mailer {
	return mailer.New(mailer.Config{
		Host:     appCfg.MailSMTPHost,
		Port:     appCfg.MailSMTPPort,
		User:     appCfg.MailSMTPUser,
		Pass:     appCfg.MailSMTPPass,
		From:     appCfg.MailFrom,
		FromName: appCfg.MailFromName,
	}, logger)
}

func newLocationCache(db *mongo.Database) *locationcache.Cache {
	return locationcache.New(locationstore.New(db), locationcache.DefaultTTL)
}

func newNotifier(appCfg AppConfig, db *mongo.Database, locs *locationcache.Cache, logger *zap.Logger) *notify.Service {
	return &notify.Service{
		Notifications: notificationstore.New(db),
		Users:         userstore.New(db),
		Members:       memberstore.New(db),
		Locations:     locs,
		Mailer:        newMailer(appCfg, logger),
		Log:           logger,
		FrontendURL:   appCfg.BaseURL,
	}
}
