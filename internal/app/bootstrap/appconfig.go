// internal/app/bootstrap/appconfig.go
package bootstrap

import "time"

// AppConfig holds MEWS-specific configuration.
//
// Values come from config files, MEWS_* environment variables or flags
// (see LoadConfig). WAFFLE's CoreConfig covers the framework side: ports,
// TLS, log level and request limits.
type AppConfig struct {
	// MongoDB
	MongoURI         string // e.g. mongodb://localhost:27017
	MongoDatabase    string
	MongoMaxPoolSize uint64
	MongoMinPoolSize uint64

	// Tokens and the cookie session that carries them
	JWTSecret     string        // HMAC key for issued tokens (32+ chars in prod)
	JWTTTL        time.Duration // token lifetime, 30 days by default
	SessionKey    string        // cookie signing key; blank means random per process
	SessionName   string        // cookie name (default: jwt)
	SessionDomain string        // cookie domain (blank means current host)

	// File storage
	StorageType         string // "local" or "gcs"
	StorageLocalPath    string // root directory for local uploads
	StorageLocalURL     string // URL prefix local uploads are served under
	StorageGCSBucket    string
	StorageGCSProject   string
	StorageGCSCredsFile string        // service account JSON; blank uses ADC
	StorageSignedURLTTL time.Duration // lifetime of signed read URLs
	UploadMaxBytes      int64

	// Email/SMTP. A blank host logs mail instead of sending it.
	MailSMTPHost string
	MailSMTPPort int
	MailSMTPUser string
	MailSMTPPass string
	MailFrom     string
	MailFromName string

	// SMS provider for login codes: "log" or "off"
	SMSProvider string

	// Base URL of the web client, used in email links
	BaseURL string

	// Audit logging destinations: all, db, log or off
	AuditLogAuth  string
	AuditLogAdmin string

	// Super admin created on first start when no user has that username
	SuperAdminUsername string
	SuperAdminPassword string

	// Database operation timeouts
	TimeoutShort  time.Duration
	TimeoutMedium time.Duration
	TimeoutLong   time.Duration

	// Login codes
	OTPTTL      time.Duration
	OTPCooldown time.Duration

	// Per-IP limit on the public email verification send endpoints
	EmailVerifyPerMinute int
	EmailVerifyBurst     int

	// Browser origins allowed to call the API with credentials
	CORSOrigins []string

	MetricsEnabled bool
}
