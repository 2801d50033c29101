package app

import (
	"context"
	"net/http"
	"runtime"
	"runtime/debug"
	"time"

	clts "insiderbot/clients"
	"insiderbot/config"
	"insiderbot/internal/engine"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Build info - populated from embedded VCS info at init time
var (
	BuildCommit = "dev"
	BuildTime   = "unknown"
)

func init() {
	if info, ok := debug.ReadBuildInfo(); ok {
		for _, setting := range info.Settings {
			switch setting.Key {
			case "vcs.revision":
				if setting.Value != "" {
					BuildCommit = setting.Value
				}
			case "vcs.time":
				BuildTime = setting.Value
			}
		}
	}
}

// Runner wires the clients, caches, and monitor together and supervises
// their goroutines.
type Runner struct {
	logger  *zap.Logger
	cfg     *config.Config
	clients *clts.Clients

	store    *engine.Store
	profiler *WalletProfiler
	markets  *MarketCache
	monitor  *TradeMonitor

	healthServer *http.Server
	startTime    time.Time
}

// ServiceStats holds the /stats payload.
type ServiceStats struct {
	Build struct {
		Commit    string `json:"commit"`
		Time      string `json:"time,omitempty"`
		GoVersion string `json:"go_version"`
	} `json:"build"`

	StartTime string `json:"start_time"`
	Uptime    string `json:"uptime"`
	UptimeSec int64  `json:"uptime_seconds"`

	Pipeline MonitorStats `json:"pipeline"`

	State struct {
		SeenTrades    int `json:"seen_trades"`
		OpenPositions int `json:"open_positions"`
		WalletCache   int `json:"wallet_cache"`
		MarketCache   int `json:"market_cache"`
	} `json:"state"`

	WebSocket struct {
		Enabled       bool   `json:"enabled"`
		MessageCount  uint64 `json:"message_count"`
		LastMessageAt string `json:"last_message_at,omitempty"`
	} `json:"websocket"`

	Notifications struct {
		DiscordEnabled  bool `json:"discord_enabled"`
		TelegramEnabled bool `json:"telegram_enabled"`
	} `json:"notifications"`

	Runtime struct {
		Goroutines int    `json:"goroutines"`
		HeapAlloc  uint64 `json:"heap_alloc"`
		NumGC      uint32 `json:"num_gc"`
		GoVersion  string `json:"go_version"`
	} `json:"runtime"`
}

func NewRunner(logger *zap.Logger, cfg *config.Config, clients *clts.Clients) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}

	store := engine.NewStore(engine.StoreConfig{
		DedupRetention: cfg.Store.DedupRetention,
		PositionTTL:    cfg.Store.PositionTTL,
	})

	profiler := NewWalletProfiler(
		logger,
		clients.Polymarket,
		clients.PolygonRPC,
		cfg.Monitor.WalletCacheTTL,
		cfg.PolygonRPC.FreshNonceMax,
	)

	markets := NewMarketCache(
		logger,
		clients.Polymarket,
		cfg.Markets.TopMarketsCount,
		cfg.Markets.RefreshInterval,
	)

	monitor := NewTradeMonitor(
		logger,
		clients.Polymarket,
		profiler,
		markets,
		store,
		clients.Notifier,
		MonitorConfig{
			PollInterval:      cfg.Monitor.PollInterval,
			MinNotional:       cfg.Detector.MinNotional,
			EnrichTimeout:     cfg.Monitor.EnrichTimeout,
			EndingSoonHorizon: cfg.Detector.EndingSoonHorizon,
			Rules: engine.RuleConfig{
				MaxWalletAgeDays: cfg.Detector.MaxWalletAgeDays,
				MaxTradeCount:    cfg.Detector.MaxTradeCount,
				LongshotPrice:    cfg.Detector.LongshotPrice,
				MinVolumeShare:   cfg.Detector.MinVolumeShare,
				ObviousPrice:     cfg.Detector.ObviousPrice,
			},
		},
	)

	return &Runner{
		logger:   logger,
		cfg:      cfg,
		clients:  clients,
		store:    store,
		profiler: profiler,
		markets:  markets,
		monitor:  monitor,
	}
}

// Run starts all components and blocks until the context is cancelled.
func (r *Runner) Run(ctx context.Context) error {
	r.startTime = time.Now()

	r.logger.Info("starting insiderbot",
		zap.String("commit", BuildCommit),
		zap.String("buildTime", BuildTime),
		zap.Bool("isProd", r.cfg.IsProd),
		zap.Bool("websocket", r.cfg.Monitor.UseWebSocket),
	)

	// Initial market load before ingestion begins, so the first trades get
	// enriched and the WS mode knows what to subscribe to.
	if err := r.markets.Refresh(ctx); err != nil {
		r.logger.Warn("initial market refresh failed", zap.Error(err))
	}

	if r.cfg.HealthServer.Enabled {
		r.startHealthServer(r.cfg.HealthServer.Port)
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return r.markets.RunRefreshLoop(gctx)
	})

	g.Go(func() error {
		return r.runPruneLoop(gctx)
	})

	if r.cfg.Monitor.UseWebSocket && r.clients.PolymarketEvents != nil {
		g.Go(func() error {
			return r.runWebSocket(gctx)
		})
	} else {
		g.Go(func() error {
			return r.monitor.RunPolling(gctx)
		})
	}

	err := g.Wait()

	r.shutdown()

	if err == context.Canceled {
		return nil
	}
	return err
}

// runPruneLoop evicts expired dedup entries, positions, and stale wallet
// profiles on the configured interval.
func (r *Runner) runPruneLoop(ctx context.Context) error {
	ticker := time.NewTicker(r.cfg.Store.PruneInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			seen, positions := r.store.Prune(time.Now())
			profiles := r.profiler.PruneStale()
			if seen > 0 || positions > 0 || profiles > 0 {
				r.logger.Info("pruned state",
					zap.Int("seenTrades", seen),
					zap.Int("positions", positions),
					zap.Int("walletProfiles", profiles),
				)
			}
		}
	}
}

// runWebSocket consumes the events feed, reconnecting with backoff when the
// connection drops. Market list changes are picked up on reconnect.
func (r *Runner) runWebSocket(ctx context.Context) error {
	events := r.clients.PolymarketEvents
	backoff := time.Second

	for {
		tokenIDs := r.markets.TokenIDs()
		if len(tokenIDs) == 0 {
			r.logger.Warn("no token ids to subscribe, retrying after market refresh")
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(r.cfg.Markets.RefreshInterval):
				continue
			}
		}

		if err := events.ConnectMarket(ctx, tokenIDs); err != nil {
			r.logger.Warn("ws connect failed",
				zap.Error(err),
				zap.Duration("backoff", backoff),
			)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

	consume:
		for {
			select {
			case <-ctx.Done():
				_ = events.Close()
				return ctx.Err()
			case msg := <-events.Messages():
				r.monitor.HandleWSMessage(ctx, msg)
			case err := <-events.Errors():
				r.logger.Warn("ws stream error, reconnecting", zap.Error(err))
				_ = events.Close()
				break consume
			}
		}
	}
}

func (r *Runner) shutdown() {
	r.logger.Info("shutting down")

	if r.healthServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := r.healthServer.Shutdown(shutdownCtx); err != nil {
			r.logger.Warn("health server shutdown error", zap.Error(err))
		}
	}

	if r.clients.Notifier != nil {
		if err := r.clients.Notifier.Close(); err != nil {
			r.logger.Warn("notifier close error", zap.Error(err))
		}
	}
}

// GetStats assembles the full /stats payload.
func (r *Runner) GetStats() ServiceStats {
	var stats ServiceStats

	stats.Build.Commit = BuildCommit
	stats.Build.Time = BuildTime
	stats.Build.GoVersion = runtime.Version()

	uptime := time.Since(r.startTime)
	stats.StartTime = r.startTime.Format(time.RFC3339)
	stats.Uptime = uptime.Round(time.Second).String()
	stats.UptimeSec = int64(uptime.Seconds())

	stats.Pipeline = r.monitor.Stats()

	stats.State.SeenTrades = r.store.SeenCount()
	stats.State.OpenPositions = r.store.OpenPositionCount()
	stats.State.WalletCache = r.profiler.CacheSize()
	stats.State.MarketCache = r.markets.Size()

	stats.WebSocket.Enabled = r.cfg.Monitor.UseWebSocket
	if r.clients.PolymarketEvents != nil {
		ws := r.clients.PolymarketEvents.Stats()
		stats.WebSocket.MessageCount = ws.MessageCount
		if !ws.LastMessageAt.IsZero() {
			stats.WebSocket.LastMessageAt = ws.LastMessageAt.Format(time.RFC3339)
		}
	}

	stats.Notifications.DiscordEnabled = r.cfg.Discord.BotToken != ""
	stats.Notifications.TelegramEnabled = r.cfg.Telegram.BotToken != ""

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	stats.Runtime.Goroutines = runtime.NumGoroutine()
	stats.Runtime.HeapAlloc = mem.HeapAlloc
	stats.Runtime.NumGC = mem.NumGC
	stats.Runtime.GoVersion = runtime.Version()

	return stats
}
