package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Telegram
	TelegramToken  string
	BaseURL        string
	WebhookWorkers int

	// HTTP
	Port            int
	APIKey          string
	CORSAllowOrigin string

	// Logging
	LogLevel  string
	LogFormat string

	// Market data
	CoinGeckoBaseURL string
	CoinGeckoAPIKey  string
	AssetID          string
	PriceCacheTTL    time.Duration

	// Flow table
	FarsideURL    string
	FarsideAnchor string
	PageCacheTTL  time.Duration
	UseChrome     bool
	TLSProfile    string

	// Scheduled delivery
	ReportChatIDs []int64
	ReportDailyAt string
	NotifyWebhook string
	BotName       string

	// Database (optional archive)
	DatabaseURL string
	DBHost      string
	DBPort      int
	DBName      string
	DBUser      string
	DBPassword  string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	chatIDs, err := parseChatIDs(envStr("REPORT_CHAT_IDS", ""))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		TelegramToken:  envStr("TELEGRAM_BOT_TOKEN", ""),
		BaseURL:        strings.TrimRight(envStr("BASE_URL", ""), "/"),
		WebhookWorkers: envInt("WEBHOOK_WORKERS", 4),

		Port:            envInt("PORT", 10000),
		APIKey:          envStr("API_KEY", ""),
		CORSAllowOrigin: envStr("CORS_ALLOW_ORIGIN", "*"),

		LogLevel:  envStr("LOG_LEVEL", "info"),
		LogFormat: envStr("LOG_FORMAT", "text"),

		CoinGeckoBaseURL: envStr("COINGECKO_BASE_URL", "https://api.coingecko.com/api/v3"),
		CoinGeckoAPIKey:  envStr("COINGECKO_API_KEY", ""),
		AssetID:          envStr("ASSET_ID", "ethereum"),
		PriceCacheTTL:    envSeconds("PRICE_CACHE_SECONDS", 300*time.Second),

		FarsideURL:    envStr("FARSIDE_URL", "https://farside.co.uk/ethereum-etf-flow-all-data/"),
		FarsideAnchor: envStr("FARSIDE_ANCHOR", "Blackrock"),
		PageCacheTTL:  envSeconds("PAGE_CACHE_SECONDS", 600*time.Second),
		UseChrome:     envBool("SCRAPER_USE_CHROME", false),
		TLSProfile:    envStr("SCRAPER_TLS_PROFILE", ""),

		ReportChatIDs: chatIDs,
		ReportDailyAt: envStr("REPORT_DAILY_AT", ""),
		NotifyWebhook: envStr("NOTIFY_WEBHOOK_URL", ""),
		BotName:       envStr("BOT_NAME", "EthFlowBot"),

		DatabaseURL: envStr("DATABASE_URL", ""),
		DBHost:      envStr("DB_HOST", ""),
		DBPort:      envInt("DB_PORT", 5432),
		DBName:      envStr("DB_NAME", "ethflow_bot"),
		DBUser:      envStr("DB_USER", ""),
		DBPassword:  envStr("DB_PASSWORD", ""),
	}

	return cfg, nil
}

// Validate returns every hard error at once. Soft problems are returned as
// warnings for the caller to log.
func (c *Config) Validate() (warnings []string, err error) {
	var errs []string

	if c.TelegramToken == "" {
		errs = append(errs, "TELEGRAM_BOT_TOKEN is required")
	}
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Sprintf("PORT %d is out of range", c.Port))
	}
	if c.FarsideURL == "" {
		errs = append(errs, "FARSIDE_URL must not be empty")
	}
	if c.ReportDailyAt != "" {
		if _, err := time.Parse("15:04", c.ReportDailyAt); err != nil {
			errs = append(errs, fmt.Sprintf("REPORT_DAILY_AT %q must be HH:MM", c.ReportDailyAt))
		}
	}

	if c.APIKey == "" {
		warnings = append(warnings, "API_KEY not set, /v1 endpoints have no authentication")
	}
	if c.ReportDailyAt != "" && len(c.ReportChatIDs) == 0 && c.NotifyWebhook == "" {
		warnings = append(warnings, "REPORT_DAILY_AT set but no REPORT_CHAT_IDS or NOTIFY_WEBHOOK_URL to deliver to")
	}
	if c.BaseURL == "" {
		warnings = append(warnings, "BASE_URL not set, falling back to long polling")
	}

	if len(errs) > 0 {
		return warnings, fmt.Errorf("config validation failed:\n  %s", strings.Join(errs, "\n  "))
	}
	return warnings, nil
}

func (c *Config) Print() {
	fmt.Println("=== ETH Flow Report Bot Configuration ===")
	fmt.Printf("Mode: %s\n", boolLabel(c.BaseURL != "", "webhook ("+c.BaseURL+"/webhook)", "long polling"))
	fmt.Printf("Port: %d\n", c.Port)
	fmt.Printf("Telegram token: %s\n", maskSecret(c.TelegramToken))
	fmt.Println("--------------------------------------")
	fmt.Printf("Asset: %s\n", c.AssetID)
	fmt.Printf("CoinGecko: %s (key %s)\n", c.CoinGeckoBaseURL, boolLabel(c.CoinGeckoAPIKey != "", "set", "not set"))
	fmt.Printf("Price cache: %s\n", c.PriceCacheTTL)
	fmt.Println("--------------------------------------")
	fmt.Printf("Flow table: %s\n", c.FarsideURL)
	fmt.Printf("  Anchor: %s\n", c.FarsideAnchor)
	fmt.Printf("  Page cache: %s\n", c.PageCacheTTL)
	fmt.Printf("  Headless Chrome: %v\n", c.UseChrome)
	fmt.Println("--------------------------------------")
	if c.ReportDailyAt != "" {
		fmt.Printf("Daily report: %s Kyiv to %d chat(s)\n", c.ReportDailyAt, len(c.ReportChatIDs))
	} else {
		fmt.Println("Daily report: disabled")
	}
	fmt.Printf("Notify webhook: %s\n", boolLabel(c.NotifyWebhook != "", "configured", "not set"))
	fmt.Printf("Archive: %s\n", boolLabel(c.ArchiveEnabled(), "postgres", "disabled"))
	fmt.Println("======================================")
}

// ArchiveEnabled reports whether any database connection was configured.
func (c *Config) ArchiveEnabled() bool {
	return c.DatabaseURL != "" || c.DBHost != ""
}

func (c *Config) DSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName)
}

// --- helpers ---

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		v = strings.ToLower(v)
		return v == "true" || v == "1" || v == "yes"
	}
	return fallback
}

// envSeconds reads a whole number of seconds. Zero is kept (it disables
// caches); negative or malformed values use the fallback.
func envSeconds(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			return time.Duration(n) * time.Second
		}
	}
	return fallback
}

func parseChatIDs(raw string) ([]int64, error) {
	var ids []int64
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("REPORT_CHAT_IDS: invalid chat id %q", part)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func maskSecret(s string) string {
	if len(s) <= 8 {
		return boolLabel(s != "", "****", "not set")
	}
	return s[:4] + "..." + s[len(s)-4:]
}

func boolLabel(cond bool, ifTrue, ifFalse string) string {
	if cond {
		return ifTrue
	}
	return ifFalse
}
