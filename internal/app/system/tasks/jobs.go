package tasks

import (
	"context"
	"time"

	announcementstore "github.com/mewsorg/mews/internal/app/store/announcements"
	carouselstore "github.com/mewsorg/mews/internal/app/store/carousel"
	memberstore "github.com/mewsorg/mews/internal/app/store/members"
	"github.com/mewsorg/mews/internal/app/system/notify"
	"go.uber.org/zap"
)

// OTPCleanupJob clears login codes that expired without being used.
func OTPCleanupJob(members *memberstore.Store, logger *zap.Logger) Job {
	return Job{
		Name:     "otp-cleanup",
		Interval: 5 * time.Minute,
		Run: func(ctx context.Context) error {
			count, err := members.ClearExpiredOTPs(ctx, time.Now().UTC())
			if err != nil {
				return err
			}
			if count > 0 {
				logger.Debug("cleared expired otps", zap.Int64("count", count))
			}
			return nil
		},
	}
}

// ScheduledAnnouncementsJob publishes scheduled announcements whose time
// has come and notifies their audience.
func ScheduledAnnouncementsJob(store *announcementstore.Store, svc *notify.Service, logger *zap.Logger) Job {
	return Job{
		Name:     "scheduled-announcements",
		Interval: 1 * time.Minute,
		Timeout:  2 * time.Minute,
		Run: func(ctx context.Context) error {
			return PublishDue(ctx, store, svc, logger, time.Now().UTC())
		},
	}
}

// PublishDue marks every due announcement sent and delivers it. An
// announcement another instance already claimed is skipped.
func PublishDue(ctx context.Context, store *announcementstore.Store, svc *notify.Service, logger *zap.Logger, now time.Time) error {
	due, err := store.DueScheduled(ctx, now)
	if err != nil {
		return err
	}
	for _, a := range due {
		claimed, err := store.MarkSent(ctx, a.ID, now)
		if err != nil {
			return err
		}
		if !claimed {
			continue
		}
		scope, err := svc.SenderScope(ctx, a.Sender)
		if err != nil {
			logger.Warn("announcement sender has no scope",
				zap.String("announcement_id", a.ID.Hex()), zap.Error(err))
			continue
		}
		if _, err := svc.Announce(ctx, a, scope); err != nil {
			logger.Error("deliver scheduled announcement",
				zap.String("announcement_id", a.ID.Hex()), zap.Error(err))
		}
	}
	return nil
}

// CarouselExpiryJob hides carousel images past their expiry date.
func CarouselExpiryJob(store *carouselstore.Store, logger *zap.Logger) Job {
	return Job{
		Name:     "carousel-expiry",
		Interval: 1 * time.Hour,
		Run: func(ctx context.Context) error {
			count, err := store.DeactivateExpired(ctx, time.Now().UTC())
			if err != nil {
				return err
			}
			if count > 0 {
				logger.Info("deactivated expired carousel images", zap.Int64("count", count))
			}
			return nil
		},
	}
}
