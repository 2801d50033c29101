package config

import (
	"fmt"
	"time"
)

// ValidationError represents a validation error for a specific field.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationResult holds the result of config validation.
type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Errors []ValidationError `json:"errors,omitempty"`
}

// Validate checks the config for invalid values.
func (c *Config) Validate() ValidationResult {
	var errors []ValidationError

	errors = append(errors, validateDetector(&c.Detector)...)
	errors = append(errors, validateStore(&c.Store)...)
	errors = append(errors, validateMonitor(&c.Monitor)...)
	errors = append(errors, validateMarkets(&c.Markets)...)
	errors = append(errors, validateHealthServer(&c.HealthServer)...)

	return ValidationResult{
		Valid:  len(errors) == 0,
		Errors: errors,
	}
}

func validateDetector(d *DetectorConfig) []ValidationError {
	var errors []ValidationError

	if d.MinNotional < 0 {
		errors = append(errors, ValidationError{
			Field:   "detector.min_notional",
			Message: "must be non-negative",
		})
	}

	if d.MaxWalletAgeDays < 1 {
		errors = append(errors, ValidationError{
			Field:   "detector.max_wallet_age_days",
			Message: "must be at least 1",
		})
	}

	if d.MaxTradeCount < 1 {
		errors = append(errors, ValidationError{
			Field:   "detector.max_trade_count",
			Message: "must be at least 1",
		})
	}

	if d.LongshotPrice < 0 || d.LongshotPrice > 1 {
		errors = append(errors, ValidationError{
			Field:   "detector.longshot_price",
			Message: "must be between 0 and 1",
		})
	}

	if d.MinVolumeShare < 0 || d.MinVolumeShare > 1 {
		errors = append(errors, ValidationError{
			Field:   "detector.min_volume_share",
			Message: "must be between 0 and 1",
		})
	}

	if d.ObviousPrice < 0 || d.ObviousPrice > 1 {
		errors = append(errors, ValidationError{
			Field:   "detector.obvious_price",
			Message: "must be between 0 and 1",
		})
	}

	if d.EndingSoonHorizon < 1*time.Hour {
		errors = append(errors, ValidationError{
			Field:   "detector.ending_soon_horizon",
			Message: "must be at least 1 hour",
		})
	}

	return errors
}

func validateStore(s *StoreConfig) []ValidationError {
	var errors []ValidationError

	if s.DedupRetention < 1*time.Hour {
		errors = append(errors, ValidationError{
			Field:   "store.dedup_retention",
			Message: "must be at least 1 hour",
		})
	}

	if s.PositionTTL < 24*time.Hour {
		errors = append(errors, ValidationError{
			Field:   "store.position_ttl",
			Message: "must be at least 24 hours",
		})
	}

	if s.PruneInterval < 1*time.Minute {
		errors = append(errors, ValidationError{
			Field:   "store.prune_interval",
			Message: "must be at least 1 minute",
		})
	}

	return errors
}

func validateMonitor(m *MonitorConfig) []ValidationError {
	var errors []ValidationError

	if m.PollInterval < 1*time.Second {
		errors = append(errors, ValidationError{
			Field:   "monitor.poll_interval",
			Message: "must be at least 1 second",
		})
	}

	if m.EnrichTimeout < 1*time.Second {
		errors = append(errors, ValidationError{
			Field:   "monitor.enrich_timeout",
			Message: "must be at least 1 second",
		})
	}

	if m.WalletCacheTTL < 10*time.Second {
		errors = append(errors, ValidationError{
			Field:   "monitor.wallet_cache_ttl",
			Message: "must be at least 10 seconds",
		})
	}

	return errors
}

func validateMarkets(m *MarketsConfig) []ValidationError {
	var errors []ValidationError

	if m.TopMarketsCount < 1 {
		errors = append(errors, ValidationError{
			Field:   "markets.top_markets_count",
			Message: "must be at least 1",
		})
	}

	if m.RefreshInterval < 10*time.Second {
		errors = append(errors, ValidationError{
			Field:   "markets.refresh_interval",
			Message: "must be at least 10 seconds",
		})
	}

	return errors
}

func validateHealthServer(hs *HealthServerConfig) []ValidationError {
	var errors []ValidationError

	if hs.Port < 1 || hs.Port > 65535 {
		errors = append(errors, ValidationError{
			Field:   "health_server.port",
			Message: fmt.Sprintf("must be between 1 and 65535, got %d", hs.Port),
		})
	}

	return errors
}
