package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	APIBaseURL string `env:"API_BASE_URL"`

	HTTPAddr      string `env:"HTTP_ADDR" envDefault:":8080"`
	BasePublicURL string `env:"BASE_PUBLIC_URL"`

	TelegramToken  string         `env:"TELEGRAM_BOT_TOKEN"`
	VerifyInitData bool           `env:"VERIFY_INIT_DATA" envDefault:"false"`
	AdminTGIDsRaw  string         `env:"ADMIN_TG_IDS"`
	AdminTGIDs     map[int64]bool `env:"-"`

	SpreadsheetID            string `env:"GOOGLE_SHEETS_SPREADSHEET_ID"`
	GoogleServiceAccountJSON string `env:"GOOGLE_SERVICE_ACCOUNT_JSON"`

	IdentitySettleDelay time.Duration `env:"IDENTITY_SETTLE_DELAY" envDefault:"100ms"`
	GateTimeout         time.Duration `env:"GATE_TIMEOUT" envDefault:"5s"`
	APITimeout          time.Duration `env:"API_TIMEOUT" envDefault:"15s"`
	SessionTTL          time.Duration `env:"SESSION_TTL" envDefault:"6h"`
	InitDataMaxAge      time.Duration `env:"INIT_DATA_MAX_AGE" envDefault:"24h"`

	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:"," envDefault:"*"`

	LogLevel string `env:"LOG_LEVEL"`
	LogDev   bool   `env:"LOG_DEV" envDefault:"false"`
}

func FromEnv() (Config, error) {
	var c Config
	if err := env.Parse(&c); err != nil {
		return c, fmt.Errorf("parse env: %w", err)
	}

	c.APIBaseURL = strings.TrimRight(strings.TrimSpace(c.APIBaseURL), "/")
	c.BasePublicURL = strings.TrimRight(strings.TrimSpace(c.BasePublicURL), "/")
	c.TelegramToken = strings.TrimSpace(c.TelegramToken)
	c.SpreadsheetID = strings.TrimSpace(c.SpreadsheetID)
	c.GoogleServiceAccountJSON = strings.TrimSpace(c.GoogleServiceAccountJSON)

	if c.LogLevel == "" {
		c.LogLevel = "info"
		if c.LogDev {
			c.LogLevel = "debug"
		}
	}

	if c.APIBaseURL == "" {
		return c, fmt.Errorf("API_BASE_URL is empty")
	}
	if c.VerifyInitData && c.TelegramToken == "" {
		return c, fmt.Errorf("VERIFY_INIT_DATA requires TELEGRAM_BOT_TOKEN")
	}
	if c.GateTimeout <= 0 {
		return c, fmt.Errorf("GATE_TIMEOUT must be positive")
	}

	c.AdminTGIDs = parseAdminIDs(c.AdminTGIDsRaw)

	return c, nil
}

// SheetsEnabled reports whether both Google Sheets settings are present.
func (c Config) SheetsEnabled() bool {
	return c.SpreadsheetID != "" && c.GoogleServiceAccountJSON != ""
}

// WebAppURL is the address the bot hands out to open the mini app.
func (c Config) WebAppURL() string {
	if c.BasePublicURL != "" {
		return c.BasePublicURL + "/"
	}
	return "http://localhost" + c.HTTPAddr + "/"
}

func parseAdminIDs(raw string) map[int64]bool {
	m := map[int64]bool{}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return m
	}
	parts := strings.Split(raw, ",")
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		v, err := strconv.ParseInt(p, 10, 64)
		if err != nil {
			continue
		}
		m[v] = true
	}
	return m
}
