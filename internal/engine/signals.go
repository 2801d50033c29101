package engine

import "fmt"

// SignalKind identifies an insider heuristic that fired.
type SignalKind string

const (
	SignalNewWallet       SignalKind = "new_wallet"
	SignalLowTradeCount   SignalKind = "low_trade_count"
	SignalLongshot        SignalKind = "longshot"
	SignalHighVolumeShare SignalKind = "high_volume_share"
)

// Signal is a fired heuristic with a human-readable detail for alerts.
type Signal struct {
	Kind   SignalKind
	Detail string
}

// RuleConfig holds the thresholds for signal evaluation.
type RuleConfig struct {
	MaxWalletAgeDays int     // NewWallet: age <= this
	MaxTradeCount    int     // LowTradeCount: lifetime trades <= this
	LongshotPrice    float64 // Longshot: price <= this
	MinVolumeShare   float64 // HighVolumeShare: usd >= this fraction of 24h volume
	ObviousPrice     float64 // skip evaluation entirely at or above this price
}

// DefaultRuleConfig returns the standard thresholds.
func DefaultRuleConfig() RuleConfig {
	return RuleConfig{
		MaxWalletAgeDays: 30,
		MaxTradeCount:    10,
		LongshotPrice:    0.20,
		MinVolumeShare:   0.05,
		ObviousPrice:     0.80,
	}
}

// Evaluate runs the signal rules against a buy. Sells and near-certain
// prices yield no signals. Each rule is skipped independently when the
// enrichment field it needs is unknown.
func Evaluate(cfg RuleConfig, t Trade, profile WalletProfile, market MarketSnapshot) []Signal {
	if t.Side != SideBuy {
		return nil
	}
	if cfg.ObviousPrice > 0 && t.Price >= cfg.ObviousPrice {
		return nil
	}

	var signals []Signal

	switch {
	case profile.AgeDays != nil:
		if *profile.AgeDays <= cfg.MaxWalletAgeDays {
			signals = append(signals, Signal{
				Kind:   SignalNewWallet,
				Detail: fmt.Sprintf("wallet is %d days old", *profile.AgeDays),
			})
		}
	case profile.FreshOnChain:
		// Profile age unknown, but the chain says the address barely exists.
		signals = append(signals, Signal{
			Kind:   SignalNewWallet,
			Detail: "wallet has almost no on-chain history",
		})
	}

	if profile.TradeCount != nil && *profile.TradeCount <= cfg.MaxTradeCount {
		signals = append(signals, Signal{
			Kind:   SignalLowTradeCount,
			Detail: fmt.Sprintf("only %d lifetime trades", *profile.TradeCount),
		})
	}

	if t.Price <= cfg.LongshotPrice {
		signals = append(signals, Signal{
			Kind:   SignalLongshot,
			Detail: fmt.Sprintf("bought at %.0f%% probability", t.Price*100),
		})
	}

	if market.Volume24h > 0 && t.USDSize >= cfg.MinVolumeShare*market.Volume24h {
		share := t.USDSize / market.Volume24h * 100
		signals = append(signals, Signal{
			Kind:   SignalHighVolumeShare,
			Detail: fmt.Sprintf("%.1f%% of 24h market volume", share),
		})
	}

	return signals
}

// hasSignal reports whether kind is present in signals.
func hasSignal(signals []Signal, kind SignalKind) bool {
	for _, s := range signals {
		if s.Kind == kind {
			return true
		}
	}
	return false
}
