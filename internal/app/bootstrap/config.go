// internal/app/bootstrap/config.go
package bootstrap

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dalemusser/waffle/config"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.uber.org/zap"
)

// Storage backends.
const (
	StorageLocal = "local"
	StorageGCS   = "gcs"
)

const minProdSecretLen = 32

// appConfigKeys defines the configuration keys for MEWS.
// These are loaded via WAFFLE's config system with support for:
//   - Config files: mongo_uri, jwt_secret, etc.
//   - Environment variables: MEWS_MONGO_URI, MEWS_JWT_SECRET, etc.
//   - Command-line flags: --mongo_uri, --jwt_secret, etc.
var appConfigKeys = []config.AppKey{
	{Name: "mongo_uri", Default: "mongodb://localhost:27017", Desc: "MongoDB connection URI"},
	{Name: "mongo_database", Default: "mews", Desc: "MongoDB database name"},
	{Name: "mongo_max_pool_size", Default: 100, Desc: "MongoDB max connection pool size (default: 100)"},
	{Name: "mongo_min_pool_size", Default: 10, Desc: "MongoDB min connection pool size (default: 10)"},

	// Tokens and session cookie
	{Name: "jwt_secret", Default: "dev-only-change-me-please-0123456789ABCDEF", Desc: "HMAC secret for auth tokens (32+ chars in production)"},
	{Name: "jwt_ttl", Default: "720h", Desc: "Auth token lifetime (default: 30 days)"},
	{Name: "session_key", Default: "", Desc: "Cookie signing key (blank generates one per process)"},
	{Name: "session_name", Default: "jwt", Desc: "Auth cookie name"},
	{Name: "session_domain", Default: "", Desc: "Auth cookie domain (blank means current host)"},

	// File storage
	{Name: "storage_type", Default: StorageLocal, Desc: "Storage backend: 'local' or 'gcs'"},
	{Name: "storage_local_path", Default: "./uploads", Desc: "Local storage root for uploaded files"},
	{Name: "storage_local_url", Default: "/uploads", Desc: "URL prefix for serving local files"},
	{Name: "storage_gcs_bucket", Default: "", Desc: "Google Cloud Storage bucket"},
	{Name: "storage_gcs_project", Default: "", Desc: "Google Cloud project id"},
	{Name: "storage_gcs_credentials", Default: "", Desc: "Path to a service account JSON file (blank uses application default credentials)"},
	{Name: "storage_signed_url_ttl", Default: "60m", Desc: "Lifetime of signed read URLs"},
	{Name: "upload_max_bytes", Default: 5 << 20, Desc: "Largest accepted upload in bytes (default: 5MB)"},

	// Email/SMTP configuration
	{Name: "mail_smtp_host", Default: "", Desc: "SMTP server host (blank logs mail instead of sending)"},
	{Name: "mail_smtp_port", Default: 587, Desc: "SMTP server port"},
	{Name: "mail_smtp_user", Default: "", Desc: "SMTP username"},
	{Name: "mail_smtp_pass", Default: "", Desc: "SMTP password"},
	{Name: "mail_from", Default: "noreply@mews.org.in", Desc: "From email address"},
	{Name: "mail_from_name", Default: "MEWS", Desc: "From display name"},

	{Name: "sms_provider", Default: "log", Desc: "SMS provider for login codes: 'log' or 'off'"},

	// Base URL for email links
	{Name: "base_url", Default: "http://localhost:5173", Desc: "Web client URL used in email links"},

	// Audit logging settings
	{Name: "audit_log_auth", Default: "all", Desc: "Auth event logging: 'all' (db+log), 'db', 'log', or 'off'"},
	{Name: "audit_log_admin", Default: "all", Desc: "Admin event logging: 'all' (db+log), 'db', 'log', or 'off'"},

	// SuperAdmin bootstrap
	{Name: "superadmin_username", Default: "", Desc: "Username of the super admin created on startup when missing"},
	{Name: "superadmin_password", Default: "", Desc: "Initial password for that super admin"},

	// Timeouts
	{Name: "timeout_short", Default: "5s", Desc: "Timeout for single-document operations"},
	{Name: "timeout_medium", Default: "10s", Desc: "Timeout for list and multi-step operations"},
	{Name: "timeout_long", Default: "45s", Desc: "Timeout for aggregations and uploads"},

	// Login codes
	{Name: "otp_ttl", Default: "10m", Desc: "Login code lifetime"},
	{Name: "otp_cooldown", Default: "60s", Desc: "Minimum gap between two login codes to one member"},
	{Name: "email_verify_per_minute", Default: 5, Desc: "Email verification sends per IP per minute"},
	{Name: "email_verify_burst", Default: 3, Desc: "Email verification send burst per IP"},

	{Name: "cors_origins", Default: "http://localhost:5173", Desc: "Comma-separated browser origins allowed to call the API"},
	{Name: "metrics_enabled", Default: true, Desc: "Serve Prometheus metrics at /metrics"},
}

// LoadConfig loads WAFFLE core config and the MEWS app config.
//
// WAFFLE's config.LoadWithAppConfig handles:
//   - Loading from .env files
//   - Loading from config.yaml/json/toml files
//   - Reading environment variables (WAFFLE_* for core, MEWS_* for app)
//   - Parsing command-line flags
//   - Merging with precedence: flags > env > files > defaults
func LoadConfig(logger *zap.Logger) (*config.CoreConfig, AppConfig, error) {
	coreCfg, appValues, err := config.LoadWithAppConfig(logger, "MEWS", appConfigKeys)
	if err != nil {
		return nil, AppConfig{}, err
	}

	appCfg := AppConfig{
		MongoURI:         appValues.String("mongo_uri"),
		MongoDatabase:    appValues.String("mongo_database"),
		MongoMaxPoolSize: uint64(appValues.Int("mongo_max_pool_size")),
		MongoMinPoolSize: uint64(appValues.Int("mongo_min_pool_size")),

		JWTSecret:     appValues.String("jwt_secret"),
		JWTTTL:        appValues.Duration("jwt_ttl", 30*24*time.Hour),
		SessionKey:    appValues.String("session_key"),
		SessionName:   appValues.String("session_name"),
		SessionDomain: appValues.String("session_domain"),

		// File storage
		StorageType:         strings.ToLower(strings.TrimSpace(appValues.String("storage_type"))),
		StorageLocalPath:    appValues.String("storage_local_path"),
		StorageLocalURL:     appValues.String("storage_local_url"),
		StorageGCSBucket:    appValues.String("storage_gcs_bucket"),
		StorageGCSProject:   appValues.String("storage_gcs_project"),
		StorageGCSCredsFile: appValues.String("storage_gcs_credentials"),
		StorageSignedURLTTL: appValues.Duration("storage_signed_url_ttl", time.Hour),
		UploadMaxBytes:      int64(appValues.Int("upload_max_bytes")),

		// Email/SMTP
		MailSMTPHost: appValues.String("mail_smtp_host"),
		MailSMTPPort: appValues.Int("mail_smtp_port"),
		MailSMTPUser: appValues.String("mail_smtp_user"),
		MailSMTPPass: appValues.String("mail_smtp_pass"),
		MailFrom:     appValues.String("mail_from"),
		MailFromName: appValues.String("mail_from_name"),

		SMSProvider: appValues.String("sms_provider"),
		BaseURL:     appValues.String("base_url"),

		// Audit logging
		AuditLogAuth:  appValues.String("audit_log_auth"),
		AuditLogAdmin: appValues.String("audit_log_admin"),

		// SuperAdmin
		SuperAdminUsername: appValues.String("superadmin_username"),
		SuperAdminPassword: appValues.String("superadmin_password"),

		TimeoutShort:  appValues.Duration("timeout_short", 5*time.Second),
		TimeoutMedium: appValues.Duration("timeout_medium", 10*time.Second),
		TimeoutLong:   appValues.Duration("timeout_long", 45*time.Second),

		OTPTTL:               appValues.Duration("otp_ttl", 10*time.Minute),
		OTPCooldown:          appValues.Duration("otp_cooldown", time.Minute),
		EmailVerifyPerMinute: appValues.Int("email_verify_per_minute"),
		EmailVerifyBurst:     appValues.Int("email_verify_burst"),

		CORSOrigins:    splitList(appValues.String("cors_origins")),
		MetricsEnabled: appValues.Bool("metrics_enabled"),
	}

	return coreCfg, appCfg, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// ValidateConfig rejects configurations that would fail later in less
// obvious ways: a malformed Mongo URI, a weak token secret in production
// or a storage backend missing its bucket.
func ValidateConfig(coreCfg *config.CoreConfig, appCfg AppConfig, logger *zap.Logger) error {
	if err := wafflemongo.ValidateURI(appCfg.MongoURI); err != nil {
		logger.Error("invalid MongoDB URI", zap.Error(err))
		return fmt.Errorf("invalid MongoDB URI: %w", err)
	}
	if err := validateSecret(coreCfg.Env, appCfg.JWTSecret); err != nil {
		return err
	}

	switch appCfg.StorageType {
	case StorageLocal:
		if appCfg.StorageLocalPath == "" {
			return errors.New("storage_local_path is required when storage_type is 'local'")
		}
	case StorageGCS:
		if appCfg.StorageGCSBucket == "" {
			return errors.New("storage_gcs_bucket is required when storage_type is 'gcs'")
		}
	default:
		return fmt.Errorf("unknown storage_type %q (want 'local' or 'gcs')", appCfg.StorageType)
	}

	if appCfg.UploadMaxBytes <= 0 {
		return errors.New("upload_max_bytes must be positive")
	}
	return nil
}

func validateSecret(env, secret string) error {
	if secret == "" {
		return errors.New("jwt_secret is required")
	}
	if env == "prod" && len(secret) < minProdSecretLen {
		return fmt.Errorf("jwt_secret must be at least %d characters in production", minProdSecretLen)
	}
	return nil
}
