package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// MinBcryptCost is the lowest work factor accepted for stored credentials.
const MinBcryptCost = 10

// Config holds application configuration loaded from environment variables.
type Config struct {
	Port        int    `envconfig:"PORT" default:"8080"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`
	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`
	Version     string `envconfig:"VERSION" default:"dev"`
	BcryptCost  int    `envconfig:"BCRYPT_COST" default:"12"`

	JWTSecret          string   `envconfig:"JWT_SECRET" required:"true"`
	CookieSecure       bool     `envconfig:"COOKIE_SECURE" default:"false"`
	FrontendURL        string   `envconfig:"FRONTEND_URL" default:"http://localhost:3000"`
	CORSAllowedOrigins []string `envconfig:"CORS_ALLOWED_ORIGINS" default:"http://localhost:3000"`

	SessionTTL        time.Duration `envconfig:"SESSION_TTL" default:"24h"`
	AdminSessionTTL   time.Duration `envconfig:"ADMIN_SESSION_TTL" default:"1h"`
	InviteTTL         time.Duration `envconfig:"INVITE_TTL" default:"5m"`
	OTPTTL            time.Duration `envconfig:"OTP_TTL" default:"5m"`
	ResetOTPTTL       time.Duration `envconfig:"RESET_OTP_TTL" default:"10m"`
	MinPasswordLength int           `envconfig:"MIN_PASSWORD_LENGTH" default:"8"`

	RehashLegacyPasswords bool `envconfig:"REHASH_LEGACY_PASSWORDS" default:"true"`

	RedisURL         string        `envconfig:"REDIS_URL" default:""`
	LoginMaxAttempts int           `envconfig:"LOGIN_MAX_ATTEMPTS" default:"5"`
	LoginLockout     time.Duration `envconfig:"LOGIN_LOCKOUT" default:"15m"`

	RateLimitRPS   int `envconfig:"RATE_LIMIT_RPS" default:"5"`
	RateLimitBurst int `envconfig:"RATE_LIMIT_BURST" default:"10"`
	// TrustProxyHeaders keys the per-IP limit on X-Forwarded-For. Enable only
	// behind a proxy that overwrites or appends that header.
	TrustProxyHeaders bool `envconfig:"TRUST_PROXY_HEADERS" default:"false"`

	SweepInterval   time.Duration `envconfig:"SWEEP_INTERVAL" default:"1m"`
	InviteRetention time.Duration `envconfig:"INVITE_RETENTION" default:"168h"`

	MailTenantID     string `envconfig:"MAIL_TENANT_ID" default:""`
	MailClientID     string `envconfig:"MAIL_CLIENT_ID" default:""`
	MailClientSecret string `envconfig:"MAIL_CLIENT_SECRET" default:""`
	MailSenderUserID string `envconfig:"MAIL_SENDER_USER_ID" default:""`
	ContactInbox     string `envconfig:"CONTACT_INBOX" default:"noreply@example.com"`
}

// Load reads configuration from environment variables into a Config struct.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// MailEnabled reports whether Microsoft Graph delivery is fully configured.
func (c *Config) MailEnabled() bool {
	return c.MailTenantID != "" && c.MailClientID != "" && c.MailClientSecret != "" && c.MailSenderUserID != ""
}

func (c *Config) validate() error {
	if c.BcryptCost < MinBcryptCost {
		return fmt.Errorf("BCRYPT_COST must be at least %d", MinBcryptCost)
	}
	if len(c.JWTSecret) < 16 {
		return fmt.Errorf("JWT_SECRET must be at least 16 characters")
	}
	if c.MinPasswordLength < 1 {
		return fmt.Errorf("MIN_PASSWORD_LENGTH must be positive")
	}
	if c.SessionTTL <= 0 || c.AdminSessionTTL <= 0 || c.InviteTTL <= 0 || c.OTPTTL <= 0 || c.ResetOTPTTL <= 0 {
		return fmt.Errorf("TTL settings must be positive durations")
	}
	if c.SweepInterval <= 0 {
		return fmt.Errorf("SWEEP_INTERVAL must be positive")
	}
	return nil
}
