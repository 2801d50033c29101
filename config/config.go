package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	// Environment
	IsProd bool `json:"is_prod"`

	// Discord
	Discord DiscordConfig `json:"discord"`

	// Telegram
	Telegram TelegramConfig `json:"telegram"`

	// Insider detection thresholds
	Detector DetectorConfig `json:"detector"`

	// In-memory alert state retention
	Store StoreConfig `json:"store"`

	// Trade ingestion
	Monitor MonitorConfig `json:"monitor"`

	// Market fetching
	Markets MarketsConfig `json:"markets"`

	// Polymarket API
	Polymarket PolymarketConfig `json:"polymarket"`

	// Polygon JSON-RPC
	PolygonRPC PolygonRPCConfig `json:"polygon_rpc"`

	// Health server
	HealthServer HealthServerConfig `json:"health_server"`
}

// DiscordConfig holds Discord-related configuration.
type DiscordConfig struct {
	BotToken      string `json:"-"` // Excluded - env var only
	ProdChannelID string `json:"prod_channel_id"`
	BetaChannelID string `json:"beta_channel_id"`
}

// TelegramConfig holds Telegram-related configuration.
type TelegramConfig struct {
	BotToken   string `json:"-"` // Excluded - env var only
	ProdChatID string `json:"prod_chat_id"`
	BetaChatID string `json:"beta_chat_id"`
}

// DetectorConfig holds the signal and severity thresholds.
type DetectorConfig struct {
	MinNotional       float64       `json:"min_notional"`        // Skip trades below this USD size
	MaxWalletAgeDays  int           `json:"max_wallet_age_days"` // NewWallet: age at or below this
	MaxTradeCount     int           `json:"max_trade_count"`     // LowTradeCount: lifetime trades at or below this
	LongshotPrice     float64       `json:"longshot_price"`      // Longshot: price at or below this
	MinVolumeShare    float64       `json:"min_volume_share"`    // HighVolumeShare: fraction of 24h volume
	ObviousPrice      float64       `json:"obvious_price"`       // Skip evaluation at or above this price
	EndingSoonHorizon time.Duration `json:"ending_soon_horizon"` // URGENT window before market resolution
}

// StoreConfig holds retention windows for the in-memory alert state.
type StoreConfig struct {
	DedupRetention time.Duration `json:"dedup_retention"`
	PositionTTL    time.Duration `json:"position_ttl"`
	PruneInterval  time.Duration `json:"prune_interval"`
}

// MonitorConfig holds trade ingestion configuration.
type MonitorConfig struct {
	PollInterval   time.Duration `json:"poll_interval"`
	UseWebSocket   bool          `json:"use_websocket"` // If false, poll the data API (default)
	EnrichTimeout  time.Duration `json:"enrich_timeout"`
	WalletCacheTTL time.Duration `json:"wallet_cache_ttl"` // Wallet profile freshness window
}

// MarketsConfig holds market fetching configuration.
type MarketsConfig struct {
	TopMarketsCount int           `json:"top_markets_count"`
	RefreshInterval time.Duration `json:"refresh_interval"`
}

// PolymarketConfig holds Polymarket API configuration.
type PolymarketConfig struct {
	GammaAPIURL string `json:"gamma_api_url"`
	DataAPIURL  string `json:"data_api_url"`
	WSURL       string `json:"ws_url"`
}

// PolygonRPCConfig holds the Polygon JSON-RPC endpoint used for the
// brand-new-wallet nonce probe.
type PolygonRPCConfig struct {
	URL           string `json:"url"`
	FreshNonceMax int    `json:"fresh_nonce_max"` // Nonce at or below this marks a wallet fresh
}

// HealthServerConfig holds health check server configuration.
type HealthServerConfig struct {
	Enabled bool `json:"enabled"`
	Port    int  `json:"port"`
}

// Defaults returns a config with hardcoded default values.
func Defaults() *Config {
	return &Config{
		IsProd:   false,
		Discord:  DiscordConfig{},
		Telegram: TelegramConfig{},
		Detector: DetectorConfig{
			MinNotional:       4000.0,
			MaxWalletAgeDays:  30,
			MaxTradeCount:     10,
			LongshotPrice:     0.20,
			MinVolumeShare:    0.05,
			ObviousPrice:      0.80,
			EndingSoonHorizon: 24 * time.Hour,
		},
		Store: StoreConfig{
			DedupRetention: 24 * time.Hour,
			PositionTTL:    7 * 24 * time.Hour,
			PruneInterval:  1 * time.Hour,
		},
		Monitor: MonitorConfig{
			PollInterval:   10 * time.Second,
			UseWebSocket:   false,
			EnrichTimeout:  10 * time.Second,
			WalletCacheTTL: 5 * time.Minute,
		},
		Markets: MarketsConfig{
			TopMarketsCount: 100,
			RefreshInterval: 5 * time.Minute,
		},
		Polymarket: PolymarketConfig{
			GammaAPIURL: "https://gamma-api.polymarket.com",
			DataAPIURL:  "https://data-api.polymarket.com",
			WSURL:       "wss://ws-subscriptions-clob.polymarket.com/ws",
		},
		PolygonRPC: PolygonRPCConfig{
			URL:           "https://polygon-rpc.com",
			FreshNonceMax: 5,
		},
		HealthServer: HealthServerConfig{
			Enabled: true,
			Port:    8080,
		},
	}
}

// Load loads configuration from environment variables with defaults.
func Load() *Config {
	return &Config{
		IsProd: envBool("STAGE", "PROD"),

		Discord: DiscordConfig{
			BotToken:      envString("DISCORD_BOT_TOKEN", ""),
			ProdChannelID: envString("DISCORD_PROD_CHANNEL_ID", ""),
			BetaChannelID: envString("DISCORD_BETA_CHANNEL_ID", ""),
		},

		Telegram: TelegramConfig{
			BotToken:   envString("TELEGRAM_BOT_KEY", ""),
			ProdChatID: envString("TELEGRAM_PROD_CHAT_ID", ""),
			BetaChatID: envString("TELEGRAM_BETA_CHAT_ID", ""),
		},

		Detector: DetectorConfig{
			MinNotional:       envFloat("DETECTOR_MIN_NOTIONAL", 4000.0),
			MaxWalletAgeDays:  envInt("DETECTOR_MAX_WALLET_AGE_DAYS", 30),
			MaxTradeCount:     envInt("DETECTOR_MAX_TRADE_COUNT", 10),
			LongshotPrice:     envFloat("DETECTOR_LONGSHOT_PRICE", 0.20),
			MinVolumeShare:    envFloat("DETECTOR_MIN_VOLUME_SHARE", 0.05),
			ObviousPrice:      envFloat("DETECTOR_OBVIOUS_PRICE", 0.80),
			EndingSoonHorizon: envDuration("DETECTOR_ENDING_SOON_HORIZON", 24*time.Hour),
		},

		Store: StoreConfig{
			DedupRetention: envDuration("STORE_DEDUP_RETENTION", 24*time.Hour),
			PositionTTL:    envDuration("STORE_POSITION_TTL", 7*24*time.Hour),
			PruneInterval:  envDuration("STORE_PRUNE_INTERVAL", 1*time.Hour),
		},

		Monitor: MonitorConfig{
			PollInterval:   envDuration("MONITOR_POLL_INTERVAL", 10*time.Second),
			UseWebSocket:   envBoolDefault("USE_WEBSOCKET", false),
			EnrichTimeout:  envDuration("MONITOR_ENRICH_TIMEOUT", 10*time.Second),
			WalletCacheTTL: envDuration("WALLET_CACHE_TTL", 5*time.Minute),
		},

		Markets: MarketsConfig{
			TopMarketsCount: envInt("TOP_MARKETS_COUNT", 100),
			RefreshInterval: envDuration("MARKET_REFRESH_INTERVAL", 5*time.Minute),
		},

		Polymarket: PolymarketConfig{
			GammaAPIURL: envString("POLYMARKET_GAMMA_API_URL", "https://gamma-api.polymarket.com"),
			DataAPIURL:  envString("POLYMARKET_DATA_API_URL", "https://data-api.polymarket.com"),
			WSURL:       envString("POLYMARKET_WS_URL", "wss://ws-subscriptions-clob.polymarket.com/ws"),
		},

		PolygonRPC: PolygonRPCConfig{
			URL:           envString("POLYGON_RPC_URL", "https://polygon-rpc.com"),
			FreshNonceMax: envInt("POLYGON_FRESH_NONCE_MAX", 5),
		},

		HealthServer: HealthServerConfig{
			Enabled: envBoolDefault("HEALTH_SERVER_ENABLED", true),
			Port:    envInt("HEALTH_SERVER_PORT", 8080),
		},
	}
}

// Helper functions for parsing environment variables

func envString(key, defaultVal string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) int {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultVal
}

func envFloat(key string, defaultVal float64) float64 {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultVal
}

func envBool(key, trueValue string) bool {
	return strings.EqualFold(strings.TrimSpace(os.Getenv(key)), trueValue)
}

func envBoolDefault(key string, defaultVal bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return defaultVal
	}
	return strings.EqualFold(v, "true") || strings.EqualFold(v, "1") || strings.EqualFold(v, "yes")
}
