// internal/app/features/announcements/handler.go
package announcements

import (
	uierrors "github.com/mewsorg/mews/internal/app/features/errors"
	announcementstore "github.com/mewsorg/mews/internal/app/store/announcements"
	userstore "github.com/mewsorg/mews/internal/app/store/users"
	"github.com/mewsorg/mews/internal/app/system/auditlog"
	"github.com/mewsorg/mews/internal/app/system/filestore"
	"github.com/mewsorg/mews/internal/app/system/notify"
	"github.com/mewsorg/mews/internal/app/system/uploads"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// MaxAttachments caps the files one announcement carries.
const MaxAttachments = 10

// Handler owns all announcement handlers.
type Handler struct {
	Store    *announcementstore.Store
	Users    *userstore.Store
	Uploads  *uploads.Parser
	Signer   *filestore.Signer
	Notify   *notify.Service
	AuditLog *auditlog.Logger
	Log      *zap.Logger
	ErrLog   *uierrors.ErrorLogger
}

// NewHandler constructs an announcements Handler. Attachments are written
// to files.
func NewHandler(
	db *mongo.Database,
	files filestore.Store,
	signer *filestore.Signer,
	notifier *notify.Service,
	audit *auditlog.Logger,
	errLog *uierrors.ErrorLogger,
	logger *zap.Logger,
) *Handler {
	return &Handler{
		Store:    announcementstore.New(db),
		Users:    userstore.New(db),
		Uploads:  &uploads.Parser{Store: files},
		Signer:   signer,
		Notify:   notifier,
		AuditLog: audit,
		Log:      logger,
		ErrLog:   errLog,
	}
}
