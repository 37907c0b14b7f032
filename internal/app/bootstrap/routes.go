// internal/app/bootstrap/routes.go
package bootstrap

import (
	"net/http"
	"time"

	"github.com/dalemusser/waffle/config"
	"github.com/dalemusser/waffle/pantry/fileserver"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	adminfeature "github.com/mewsorg/mews/internal/app/features/admin"
	announcementsfeature "github.com/mewsorg/mews/internal/app/features/announcements"
	carouselfeature "github.com/mewsorg/mews/internal/app/features/carousel"
	donationsfeature "github.com/mewsorg/mews/internal/app/features/donations"
	emailverificationfeature "github.com/mewsorg/mews/internal/app/features/emailverification"
	errorsfeature "github.com/mewsorg/mews/internal/app/features/errors"
	fundrequestsfeature "github.com/mewsorg/mews/internal/app/features/fundrequests"
	healthfeature "github.com/mewsorg/mews/internal/app/features/health"
	institutionsfeature "github.com/mewsorg/mews/internal/app/features/institutions"
	locationsfeature "github.com/mewsorg/mews/internal/app/features/locations"
	loginfeature "github.com/mewsorg/mews/internal/app/features/login"
	membersfeature "github.com/mewsorg/mews/internal/app/features/members"
	notificationsfeature "github.com/mewsorg/mews/internal/app/features/notifications"
	proxyimagefeature "github.com/mewsorg/mews/internal/app/features/proxyimage"
	"github.com/mewsorg/mews/internal/app/store/audit"
	userstore "github.com/mewsorg/mews/internal/app/store/users"
	"github.com/mewsorg/mews/internal/app/system/auditlog"
	"github.com/mewsorg/mews/internal/app/system/auth"
	"github.com/mewsorg/mews/internal/app/system/filestore"
	"github.com/mewsorg/mews/internal/app/system/metrics"
	"github.com/mewsorg/mews/internal/app/system/paging"
	"github.com/mewsorg/mews/internal/app/system/ratelimit"
	"github.com/mewsorg/mews/internal/app/system/sms"
	"go.uber.org/zap"
)

// BuildHandler constructs the root router.
//
// Every API feature is mounted under /api. The session middleware runs
// globally so each handler can read the current principal with
// auth.CurrentPrincipal; feature routers decide which routes need one.
func BuildHandler(coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) (http.Handler, error) {
	db := deps.MongoDatabase
	prod := coreCfg.Env == "prod"

	tokens, err := auth.NewTokenIssuer(appCfg.JWTSecret, appCfg.JWTTTL)
	if err != nil {
		logger.Error("token issuer init failed", zap.Error(err))
		return nil, err
	}
	// Secure cookies are enabled in production mode.
	sessionMgr, err := auth.NewSessionManager(appCfg.SessionKey, appCfg.SessionName, appCfg.SessionDomain, appCfg.JWTTTL, prod, tokens, logger)
	if err != nil {
		logger.Error("session manager init failed", zap.Error(err))
		return nil, err
	}
	// Principals are loaded fresh on each request so role changes and
	// deactivations take effect immediately.
	sessionMgr.SetPrincipalFetcher(userstore.NewFetcher(db))

	errLog := errorsfeature.NewErrorLogger(logger)
	auditLog := auditlog.New(audit.New(db), logger, auditlog.Config{
		Auth:  appCfg.AuditLogAuth,
		Admin: appCfg.AuditLogAdmin,
	})
	locs := newLocationCache(db)
	mail := newMailer(appCfg, logger)
	notifier := newNotifier(appCfg, db, locs, logger)
	signer := &filestore.Signer{Store: deps.Files, Bucket: deps.Bucket, Log: logger}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	var m *metrics.Metrics
	if appCfg.MetricsEnabled {
		m = metrics.New()
		r.Use(m.Middleware)
	}

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   appCfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"X-Request-Id", paging.HeaderNextCursor, paging.HeaderPrevCursor},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Global auth middleware: resolves the token (cookie or bearer) into a
	// principal when present.
	r.Use(sessionMgr.Middleware)

	r.NotFound(errorsfeature.NotFound)
	r.MethodNotAllowed(errorsfeature.MethodNotAllowed)

	// Health check endpoint for load balancers and orchestrators
	healthHandler := healthfeature.NewHandler(deps.MongoClient, deps.Files, logger)
	r.Mount("/health", healthfeature.Routes(healthHandler))

	if m != nil {
		r.Handle("/metrics", m.Handler())
	}

	// Local uploads are served straight from disk. Bucket objects are
	// reached through signed URLs or the image proxy instead.
	if local, ok := deps.Files.(*filestore.Local); ok {
		prefix := appCfg.StorageLocalURL
		if prefix == "" {
			prefix = "/uploads"
		}
		r.Handle(prefix+"/*", fileserver.Handler(prefix, local.Root()))
	}

	loginLimiter := ratelimit.NewLoginLimiter()
	loginHandler := loginfeature.NewHandler(db, sessionMgr, loginLimiter, sms.New(appCfg.SMSProvider, logger), auditLog, errLog,
		loginfeature.Options{
			OTPTTL:      appCfg.OTPTTL,
			OTPCooldown: appCfg.OTPCooldown,
			EchoOTP:     !prod,
		}, logger)

	locationsHandler := locationsfeature.NewHandler(db, errLog, logger)

	membersHandler := membersfeature.NewHandler(db, locs, deps.Files, signer, notifier, auditLog, errLog, logger)
	membersHandler.Uploads.MaxBytes = appCfg.UploadMaxBytes

	institutionsHandler := institutionsfeature.NewHandler(db, locs, auditLog, errLog, logger)
	adminHandler := adminfeature.NewHandler(db, locs, notifier, auditLog, errLog, logger)

	announcementsHandler := announcementsfeature.NewHandler(db, deps.Files, signer, notifier, auditLog, errLog, logger)
	announcementsHandler.Uploads.MaxBytes = appCfg.UploadMaxBytes

	notificationsHandler := notificationsfeature.NewHandler(db, errLog, logger)
	fundRequestsHandler := fundrequestsfeature.NewHandler(db, auditLog, errLog, logger)
	donationsHandler := donationsfeature.NewHandler(db, auditLog, errLog, logger)

	carouselHandler := carouselfeature.NewHandler(db, deps.Files, signer, auditLog, errLog, logger)
	carouselHandler.Uploads.MaxBytes = appCfg.UploadMaxBytes

	emailHandler := emailverificationfeature.NewHandler(db, mail, !prod, errLog, logger)
	emailThrottle := ratelimit.NewThrottle(float64(appCfg.EmailVerifyPerMinute)/float64(time.Minute/time.Second), appCfg.EmailVerifyBurst)

	proxyHandler := proxyimagefeature.NewHandler(deps.Files, deps.Bucket, errLog, logger)

	r.Route("/api", func(api chi.Router) {
		api.Mount("/auth", loginfeature.Routes(loginHandler, sessionMgr))
		api.Mount("/locations", locationsfeature.Routes(locationsHandler))
		api.Mount("/members", membersfeature.Routes(membersHandler, sessionMgr))
		api.Mount("/institutions", institutionsfeature.Routes(institutionsHandler, sessionMgr))
		api.Mount("/admin", adminfeature.Routes(adminHandler, sessionMgr))
		api.Mount("/announcements", announcementsfeature.Routes(announcementsHandler, sessionMgr))
		api.Mount("/notifications", notificationsfeature.Routes(notificationsHandler, sessionMgr))
		api.Mount("/fund-requests", fundrequestsfeature.Routes(fundRequestsHandler, sessionMgr))
		api.Mount("/donations", donationsfeature.Routes(donationsHandler, sessionMgr))
		api.Mount("/carousel", carouselfeature.Routes(carouselHandler, sessionMgr))
		api.Mount("/email-verification", emailverificationfeature.Routes(emailHandler, emailThrottle.Middleware))
		api.Mount("/proxy-image", proxyimagefeature.Routes(proxyHandler))
		api.NotFound(errorsfeature.NotFound)
	})

	return r, nil
}
