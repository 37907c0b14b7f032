// internal/app/features/fundrequests/handler.go
package fundrequests

import (
	uierrors "github.com/mewsorg/mews/internal/app/features/errors"
	fundrequeststore "github.com/mewsorg/mews/internal/app/store/fundrequests"
	locationstore "github.com/mewsorg/mews/internal/app/store/locations"
	memberstore "github.com/mewsorg/mews/internal/app/store/members"
	"github.com/mewsorg/mews/internal/app/system/auditlog"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Handler serves fund request applications and their review.
type Handler struct {
	Store    *fundrequeststore.Store
	Members  *memberstore.Store
	LocStore *locationstore.Store
	AuditLog *auditlog.Logger
	ErrLog   *uierrors.ErrorLogger
	Log      *zap.Logger
}

func NewHandler(db *mongo.Database, audit *auditlog.Logger, errLog *uierrors.ErrorLogger, logger *zap.Logger) *Handler {
	return &Handler{
		Store:    fundrequeststore.New(db),
		Members:  memberstore.New(db),
		LocStore: locationstore.New(db),
		AuditLog: audit,
		ErrLog:   errLog,
		Log:      logger,
	}
}
