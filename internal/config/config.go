// Package config provides configuration loading and validation for the
// need-check pipeline. Every credential an adapter or channel sender needs
// is read here once and injected at construction time; nothing looks up
// secrets ad hoc mid-function.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// Defaults applied when the environment leaves a value unset.
const (
	DefaultBotUserAgent  = "GiveFoodBot/1.0 (+https://www.givefood.org.uk)"
	DefaultSiteDomain    = "https://www.givefood.org.uk"
	DefaultFetchTimeout  = 10 * time.Second
	DefaultWorkerCount   = 4
	DefaultCronSpec      = "0 */4 * * *"
	DefaultEmailFrom     = "mail@givefood.org.uk"
	DefaultGeminiModel   = "gemini-2.5-flash"
	DefaultLanguages     = "pt,es,ar"
	DefaultWhatsAppPhone = "890504590819478"
)

// Config holds all runtime settings. Fields tagged `validate:"required"`
// must be present; Validate runs once at startup so a missing credential
// fails fast rather than at send time.
type Config struct {
	DatabaseURL string `validate:"required"`

	// Crawl
	BotUserAgent string
	FetchTimeout time.Duration
	SiteDomain   string `validate:"url"`

	// Extraction
	GeminiAPIKey string
	GeminiModel  string

	// Translation
	TranslateAPIKey string
	Languages       []string

	// Notification channels
	FirebaseCredentialsJSON string
	VAPIDPublicKey          string
	VAPIDPrivateKey         string
	VAPIDAdminEmail         string `validate:"omitempty,email"`
	WhatsAppAccessToken     string
	WhatsAppPhoneNumberID   string
	PostmarkServerToken     string
	EmailFrom               string `validate:"omitempty,email"`

	// Cache purge
	CloudflareZoneID string
	CloudflareAPIKey string

	// Task worker
	WorkerCount int `validate:"gte=1"`
	CronSpec    string
}

// Load reads configuration from the environment. godotenv is loaded by the
// CLI entrypoint before this runs.
func Load() (*Config, error) {
	cfg := &Config{
		DatabaseURL:             os.Getenv("DATABASE_URL"),
		BotUserAgent:            envOr("BOT_USER_AGENT", DefaultBotUserAgent),
		FetchTimeout:            DefaultFetchTimeout,
		SiteDomain:              envOr("SITE_DOMAIN", DefaultSiteDomain),
		GeminiAPIKey:            os.Getenv("GEMINI_API_KEY"),
		GeminiModel:             envOr("GEMINI_MODEL", DefaultGeminiModel),
		TranslateAPIKey:         os.Getenv("GCP_TRANSLATE_KEY"),
		Languages:               splitList(envOr("NEED_LANGUAGES", DefaultLanguages)),
		FirebaseCredentialsJSON: os.Getenv("FIREBASE_SERVICE_ACCOUNT"),
		VAPIDPublicKey:          os.Getenv("VAPID_PUBLIC_KEY"),
		VAPIDPrivateKey:         os.Getenv("VAPID_PRIVATE_KEY"),
		VAPIDAdminEmail:         os.Getenv("VAPID_ADMIN_EMAIL"),
		WhatsAppAccessToken:     os.Getenv("WHATSAPP_ACCESS_TOKEN"),
		WhatsAppPhoneNumberID:   envOr("WHATSAPP_PHONE_NUMBER_ID", DefaultWhatsAppPhone),
		PostmarkServerToken:     os.Getenv("POSTMARK_SERVER_TOKEN"),
		EmailFrom:               envOr("EMAIL_FROM", DefaultEmailFrom),
		CloudflareZoneID:        os.Getenv("CF_ZONE_ID"),
		CloudflareAPIKey:        os.Getenv("CF_API_KEY"),
		WorkerCount:             DefaultWorkerCount,
		CronSpec:                envOr("CRAWL_CRON", DefaultCronSpec),
	}

	if raw := os.Getenv("FETCH_TIMEOUT_SECONDS"); raw != "" {
		secs, err := strconv.Atoi(raw)
		if err != nil || secs <= 0 {
			return nil, fmt.Errorf("invalid FETCH_TIMEOUT_SECONDS %q", raw)
		}
		cfg.FetchTimeout = time.Duration(secs) * time.Second
	}
	if raw := os.Getenv("WORKER_COUNT"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("invalid WORKER_COUNT %q", raw)
		}
		cfg.WorkerCount = n
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration values.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	for _, lang := range c.Languages {
		if lang == "en" {
			return fmt.Errorf("config error: NEED_LANGUAGES must not include the default language %q", lang)
		}
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
