package app

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"insiderbot/clients/notifier"
	"insiderbot/clients/polymarketapi"
	"insiderbot/clients/polymarketevents"
	"insiderbot/internal/engine"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// TradeAPI is the slice of the data API the monitor needs for polling.
type TradeAPI interface {
	GetLargeTrades(ctx context.Context, minUSD float64, limit int) ([]polymarketapi.Trade, error)
}

const pollTradeLimit = 200

// MonitorConfig holds the monitor's pipeline settings.
type MonitorConfig struct {
	PollInterval      time.Duration
	MinNotional       float64
	EnrichTimeout     time.Duration
	EndingSoonHorizon time.Duration
	Rules             engine.RuleConfig
}

// DefaultMonitorConfig returns sensible defaults.
func DefaultMonitorConfig() MonitorConfig {
	return MonitorConfig{
		PollInterval:      10 * time.Second,
		MinNotional:       4000.0,
		EnrichTimeout:     10 * time.Second,
		EndingSoonHorizon: 24 * time.Hour,
		Rules:             engine.DefaultRuleConfig(),
	}
}

// MonitorStats is a point-in-time snapshot of pipeline counters.
type MonitorStats struct {
	Polls              int       `json:"polls"`
	TradesSeen         int       `json:"trades_seen"`
	SkippedDuplicate   int       `json:"skipped_duplicate"`
	SkippedMalformed   int       `json:"skipped_malformed"`
	SkippedLowNotional int       `json:"skipped_low_notional"`
	SkippedNoSignals   int       `json:"skipped_no_signals"`
	AlertsUrgent       int       `json:"alerts_urgent"`
	AlertsHighConf     int       `json:"alerts_high_confidence"`
	AlertsReliable     int       `json:"alerts_reliable"`
	AlertsMedium       int       `json:"alerts_medium"`
	Cashouts           int       `json:"cashouts"`
	LastAlertAt        time.Time `json:"last_alert_at,omitempty"`
}

// TotalAlerts returns the sum across severities.
func (s MonitorStats) TotalAlerts() int {
	return s.AlertsUrgent + s.AlertsHighConf + s.AlertsReliable + s.AlertsMedium
}

// TradeMonitor runs the detection pipeline: ingest trades, dedup, enrich,
// evaluate signals, classify, alert, and correlate sells with previously
// alerted positions.
type TradeMonitor struct {
	logger     *zap.Logger
	api        TradeAPI
	profiler   *WalletProfiler
	markets    *MarketCache
	store      *engine.Store
	correlator *engine.Correlator
	alerter    notifier.Notifier

	cfg MonitorConfig

	// The first poll after startup primes the dedup set without alerting,
	// so a restart does not replay the backlog as fresh alerts.
	primedMu sync.Mutex
	primed   bool

	statsMu sync.Mutex
	stats   MonitorStats
}

func NewTradeMonitor(
	logger *zap.Logger,
	api TradeAPI,
	profiler *WalletProfiler,
	markets *MarketCache,
	store *engine.Store,
	alerter notifier.Notifier,
	cfg MonitorConfig,
) *TradeMonitor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 10 * time.Second
	}
	if cfg.EnrichTimeout <= 0 {
		cfg.EnrichTimeout = 10 * time.Second
	}
	if cfg.EndingSoonHorizon <= 0 {
		cfg.EndingSoonHorizon = 24 * time.Hour
	}

	return &TradeMonitor{
		logger:     logger,
		api:        api,
		profiler:   profiler,
		markets:    markets,
		store:      store,
		correlator: engine.NewCorrelator(store),
		alerter:    alerter,
		cfg:        cfg,
	}
}

// RunPolling polls the data API until the context is cancelled.
func (tm *TradeMonitor) RunPolling(ctx context.Context) error {
	tm.logger.Info("trade monitor polling started",
		zap.Duration("interval", tm.cfg.PollInterval),
		zap.Float64("minNotional", tm.cfg.MinNotional),
	)

	// Prime the dedup set so the startup backlog is not alerted.
	tm.pollOnce(ctx)

	ticker := time.NewTicker(tm.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			tm.pollOnce(ctx)
		}
	}
}

func (tm *TradeMonitor) pollOnce(ctx context.Context) {
	trades, err := tm.api.GetLargeTrades(ctx, tm.cfg.MinNotional, pollTradeLimit)
	if err != nil {
		tm.logger.Warn("trade poll failed", zap.Error(err))
		return
	}

	tm.statsMu.Lock()
	tm.stats.Polls++
	tm.statsMu.Unlock()

	allowAlerts := tm.markPrimed()

	for _, t := range trades {
		raw := engine.RawTrade{
			ID:        nz(t.ID, t.TransactionHash),
			Wallet:    t.ProxyWallet,
			MarketID:  t.ConditionID,
			Outcome:   t.Outcome,
			Side:      t.Side,
			Price:     t.Price,
			Size:      t.Size,
			Timestamp: t.Timestamp,
			EventSlug: t.EventSlug,
			Title:     t.Title,
		}
		tm.Process(ctx, raw, displayInfo{
			traderName: nz(t.Name, t.Pseudonym),
		}, allowAlerts)
	}
}

// markPrimed flips the primed flag, returning false exactly once for the
// first poll after startup.
func (tm *TradeMonitor) markPrimed() bool {
	tm.primedMu.Lock()
	defer tm.primedMu.Unlock()
	if !tm.primed {
		tm.primed = true
		return false
	}
	return true
}

// HandleWSMessage feeds a WebSocket frame through the pipeline. Non-trade
// events are ignored.
func (tm *TradeMonitor) HandleWSMessage(ctx context.Context, msg json.RawMessage) {
	event := polymarketevents.ParseTradeEvent(msg)
	if event == nil || event.EventType != "trade" {
		return
	}

	snap, ok := tm.markets.ConditionForToken(event.AssetID)
	if !ok {
		return
	}

	// WS frames carry no outcome name, so the asset ID stands in for the
	// outcome in position keys. Buys and sells use the same key shape, so
	// cashout matching still lines up.
	raw := engine.RawTrade{
		ID:        nz(event.TradeID, event.TransactionHash),
		Wallet:    event.TakerAddress,
		MarketID:  snap.MarketID,
		Outcome:   event.AssetID,
		Side:      event.Side,
		Price:     event.GetPriceFloat(),
		Size:      event.GetSizeFloat(),
		Timestamp: event.GetTimestampUnix(),
		EventSlug: snap.EventSlug,
		Title:     snap.Title,
	}

	tm.Process(ctx, raw, displayInfo{}, true)
}

// displayInfo carries alert presentation fields that ride alongside the
// trade but play no part in detection.
type displayInfo struct {
	traderName string
}

// Process runs one raw trade through the full pipeline.
func (tm *TradeMonitor) Process(ctx context.Context, raw engine.RawTrade, display displayInfo, allowAlerts bool) {
	trade, err := engine.Normalize(raw)
	if err != nil {
		tm.bump(func(s *MonitorStats) { s.SkippedMalformed++ })
		tm.logger.Debug("skipping malformed trade", zap.Error(err))
		return
	}

	// Dedup before any enrichment spend. Sells go through it too so a
	// replayed sell cannot double-report a cashout.
	if !tm.store.RecordIfNew(trade.ID, time.Now()) {
		tm.bump(func(s *MonitorStats) { s.SkippedDuplicate++ })
		return
	}

	tm.bump(func(s *MonitorStats) { s.TradesSeen++ })

	if trade.Side == engine.SideSell {
		tm.processSell(trade, allowAlerts)
		return
	}

	if trade.USDSize < tm.cfg.MinNotional {
		tm.bump(func(s *MonitorStats) { s.SkippedLowNotional++ })
		return
	}

	tm.processBuy(ctx, trade, display, allowAlerts)
}

func (tm *TradeMonitor) processSell(trade engine.Trade, allowAlerts bool) {
	cashout, ok := tm.correlator.OnSell(trade)
	if !ok {
		return
	}

	tm.logger.Info("cashout matched",
		zap.String("wallet", shortID(trade.Wallet)),
		zap.String("market", shortID(trade.MarketID)),
		zap.Float64("pnlUSD", cashout.PnlUSD),
		zap.Float64("pnlPct", cashout.PnlPct),
	)

	if !allowAlerts || tm.alerter == nil {
		return
	}

	// Counters track alerts actually delivered, so primed trades stay out.
	tm.bump(func(s *MonitorStats) { s.Cashouts++ })

	tm.alerter.SendCashoutAlert(notifier.CashoutAlert{
		TraderAddress: trade.Wallet,
		WalletURL:     walletURL(trade.Wallet),
		MarketTitle:   nz(cashout.Position.Title, trade.Title),
		MarketURL:     marketURL(trade.EventSlug),
		Outcome:       trade.Outcome,
		EntryNotional: cashout.Position.USDSize,
		EntryPrice:    cashout.Position.Price,
		ExitNotional:  trade.USDSize,
		ExitPrice:     trade.Price,
		PnlUSD:        cashout.PnlUSD,
		PnlPct:        cashout.PnlPct,
		Held:          cashout.Held,
		Timestamp:     trade.Timestamp,
	})
}

func (tm *TradeMonitor) processBuy(ctx context.Context, trade engine.Trade, display displayInfo, allowAlerts bool) {
	profile, market := tm.enrich(ctx, trade)

	signals := engine.Evaluate(tm.cfg.Rules, trade, profile, market)
	if len(signals) == 0 {
		tm.bump(func(s *MonitorStats) { s.SkippedNoSignals++ })
		return
	}

	endingSoon := engine.EndingSoon(market.EndDate, time.Now(), tm.cfg.EndingSoonHorizon)
	severity := engine.Classify(signals, endingSoon)
	if severity == engine.SeverityNone {
		tm.bump(func(s *MonitorStats) { s.SkippedNoSignals++ })
		return
	}

	priority := engine.PriorityScore(signals, trade.USDSize, endingSoon)

	tm.store.OpenPosition(engine.Position{
		Wallet:   trade.Wallet,
		MarketID: trade.MarketID,
		Outcome:  trade.Outcome,
		Price:    trade.Price,
		Size:     trade.Size,
		USDSize:  trade.USDSize,
		Title:    nz(market.Title, trade.Title),
		OpenedAt: trade.Timestamp,
	})

	tm.logger.Info("insider alert",
		zap.String("severity", severity.String()),
		zap.Int("priority", priority),
		zap.String("wallet", shortID(trade.Wallet)),
		zap.String("market", shortID(trade.MarketID)),
		zap.Float64("notional", trade.USDSize),
		zap.Int("signals", len(signals)),
	)

	if !allowAlerts || tm.alerter == nil {
		return
	}

	// Counters track alerts actually delivered, so primed trades stay out.
	tm.recordAlert(severity)

	tm.alerter.SendInsiderAlert(tm.buildInsiderAlert(trade, display, profile, market, signals, severity, priority, endingSoon))
}

// enrich fetches the wallet profile and market snapshot concurrently, bounded
// by the enrich timeout. Failures degrade to zero values; the rules that
// need the missing data simply do not fire.
func (tm *TradeMonitor) enrich(ctx context.Context, trade engine.Trade) (engine.WalletProfile, engine.MarketSnapshot) {
	enrichCtx, cancel := context.WithTimeout(ctx, tm.cfg.EnrichTimeout)
	defer cancel()

	var (
		profile engine.WalletProfile
		market  engine.MarketSnapshot
	)

	g, gctx := errgroup.WithContext(enrichCtx)

	g.Go(func() error {
		p, err := tm.profiler.GetProfile(gctx, trade.Wallet)
		if err != nil {
			tm.logger.Warn("wallet profile unavailable",
				zap.String("wallet", shortID(trade.Wallet)),
				zap.Error(err),
			)
			return nil
		}
		profile = p
		return nil
	})

	g.Go(func() error {
		if m, ok := tm.markets.Get(gctx, trade.MarketID); ok {
			market = m
		}
		return nil
	})

	_ = g.Wait()

	return profile, market
}

func (tm *TradeMonitor) buildInsiderAlert(
	trade engine.Trade,
	display displayInfo,
	profile engine.WalletProfile,
	market engine.MarketSnapshot,
	signals []engine.Signal,
	severity engine.Severity,
	priority int,
	endingSoon bool,
) notifier.InsiderAlert {
	alertSignals := make([]notifier.Signal, 0, len(signals))
	for _, s := range signals {
		alertSignals = append(alertSignals, notifier.Signal{
			Kind:   string(s.Kind),
			Detail: s.Detail,
		})
	}

	alert := notifier.InsiderAlert{
		TraderName:    display.traderName,
		TraderAddress: trade.Wallet,
		WalletURL:     walletURL(trade.Wallet),
		Shares:        trade.Size,
		Price:         trade.Price,
		Notional:      trade.USDSize,
		Outcome:       trade.Outcome,
		MarketTitle:   nz(market.Title, trade.Title),
		MarketURL:     marketURL(nz(market.EventSlug, trade.EventSlug)),
		ConditionID:   trade.MarketID,
		EndDate:       market.EndDate,
		Severity:      severity.String(),
		Priority:      priority,
		Signals:       alertSignals,
		EndingSoon:    endingSoon,
		Timestamp:     trade.Timestamp,
	}

	if profile.AgeDays != nil {
		alert.WalletAgeDays = *profile.AgeDays
		alert.HasWalletAge = true
	}
	if profile.TradeCount != nil {
		alert.WalletTradeCount = *profile.TradeCount
		alert.HasTradeCount = true
	}
	if profile.VolumeUSD != nil {
		alert.WalletVolumeUSD = *profile.VolumeUSD
		alert.HasWalletVolume = true
	}

	return alert
}

func (tm *TradeMonitor) recordAlert(severity engine.Severity) {
	tm.statsMu.Lock()
	defer tm.statsMu.Unlock()

	switch severity {
	case engine.SeverityUrgent:
		tm.stats.AlertsUrgent++
	case engine.SeverityHighConfidence:
		tm.stats.AlertsHighConf++
	case engine.SeverityReliable:
		tm.stats.AlertsReliable++
	case engine.SeverityMedium:
		tm.stats.AlertsMedium++
	}
	tm.stats.LastAlertAt = time.Now()
}

func (tm *TradeMonitor) bump(f func(*MonitorStats)) {
	tm.statsMu.Lock()
	f(&tm.stats)
	tm.statsMu.Unlock()
}

// Stats returns a snapshot of the pipeline counters.
func (tm *TradeMonitor) Stats() MonitorStats {
	tm.statsMu.Lock()
	defer tm.statsMu.Unlock()
	return tm.stats
}

func walletURL(wallet string) string {
	if wallet == "" {
		return ""
	}
	return fmt.Sprintf("https://polymarket.com/profile/%s", wallet)
}

func marketURL(eventSlug string) string {
	if eventSlug == "" {
		return ""
	}
	return fmt.Sprintf("https://polymarket.com/event/%s", eventSlug)
}
