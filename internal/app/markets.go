package app

import (
	"context"
	"sync"
	"time"

	"insiderbot/clients/polymarketapi"
	"insiderbot/internal/engine"

	"go.uber.org/zap"
)

// MarketAPI is the slice of the Gamma API the market cache needs.
type MarketAPI interface {
	GetActiveMarkets(ctx context.Context, limit int) ([]polymarketapi.GammaMarket, error)
	GetMarketByConditionID(ctx context.Context, conditionID string) (*polymarketapi.GammaMarket, error)
}

// MarketCache holds snapshots of the top-volume active markets, keyed by
// condition ID. The snapshot carries the 24h volume and resolution time the
// detection rules need, plus the token IDs for WebSocket subscriptions.
type MarketCache struct {
	logger *zap.Logger
	api    MarketAPI

	topCount        int
	refreshInterval time.Duration

	mu          sync.RWMutex
	byCondition map[string]engine.MarketSnapshot
	lastRefresh time.Time
}

func NewMarketCache(
	logger *zap.Logger,
	api MarketAPI,
	topCount int,
	refreshInterval time.Duration,
) *MarketCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	if topCount <= 0 {
		topCount = 100
	}
	if refreshInterval <= 0 {
		refreshInterval = 5 * time.Minute
	}

	return &MarketCache{
		logger:          logger,
		api:             api,
		topCount:        topCount,
		refreshInterval: refreshInterval,
		byCondition:     make(map[string]engine.MarketSnapshot),
	}
}

// Refresh replaces the cache with the current top-volume active markets.
// Markets that dropped out of the top list are kept until they go stale so
// in-flight trades can still be enriched.
func (mc *MarketCache) Refresh(ctx context.Context) error {
	markets, err := mc.api.GetActiveMarkets(ctx, mc.topCount)
	if err != nil {
		return err
	}

	now := time.Now()

	mc.mu.Lock()
	defer mc.mu.Unlock()

	for _, m := range markets {
		if m.ConditionID == "" {
			continue
		}
		mc.byCondition[m.ConditionID] = snapshotFromGamma(&m, now)
	}

	// Drop entries not refreshed within two cycles.
	staleBefore := now.Add(-2 * mc.refreshInterval)
	for id, snap := range mc.byCondition {
		if snap.FetchedAt.Before(staleBefore) {
			delete(mc.byCondition, id)
		}
	}

	mc.lastRefresh = now

	mc.logger.Info("market cache refreshed",
		zap.Int("fetched", len(markets)),
		zap.Int("cached", len(mc.byCondition)),
	)

	return nil
}

// Get returns the snapshot for a condition ID. On a cache miss the market is
// fetched individually and cached, so trades in markets outside the top list
// still get enriched.
func (mc *MarketCache) Get(ctx context.Context, conditionID string) (engine.MarketSnapshot, bool) {
	mc.mu.RLock()
	snap, ok := mc.byCondition[conditionID]
	mc.mu.RUnlock()

	if ok {
		return snap, true
	}

	m, err := mc.api.GetMarketByConditionID(ctx, conditionID)
	if err != nil {
		mc.logger.Warn("market lookup failed",
			zap.String("conditionID", shortID(conditionID)),
			zap.Error(err),
		)
		return engine.MarketSnapshot{}, false
	}

	snap = snapshotFromGamma(m, time.Now())

	mc.mu.Lock()
	mc.byCondition[conditionID] = snap
	mc.mu.Unlock()

	return snap, true
}

// TokenIDs returns all cached token IDs for WebSocket subscriptions.
func (mc *MarketCache) TokenIDs() []string {
	mc.mu.RLock()
	defer mc.mu.RUnlock()

	var ids []string
	for _, snap := range mc.byCondition {
		ids = append(ids, snap.TokenIDs...)
	}
	return ids
}

// ConditionForToken resolves a token (asset) ID back to its market snapshot.
func (mc *MarketCache) ConditionForToken(tokenID string) (engine.MarketSnapshot, bool) {
	mc.mu.RLock()
	defer mc.mu.RUnlock()

	for _, snap := range mc.byCondition {
		for _, id := range snap.TokenIDs {
			if id == tokenID {
				return snap, true
			}
		}
	}
	return engine.MarketSnapshot{}, false
}

// Size returns the number of cached markets.
func (mc *MarketCache) Size() int {
	mc.mu.RLock()
	defer mc.mu.RUnlock()
	return len(mc.byCondition)
}

// LastRefresh returns the time of the last successful full refresh.
func (mc *MarketCache) LastRefresh() time.Time {
	mc.mu.RLock()
	defer mc.mu.RUnlock()
	return mc.lastRefresh
}

// RunRefreshLoop refreshes the cache on the configured interval until the
// context is cancelled.
func (mc *MarketCache) RunRefreshLoop(ctx context.Context) error {
	ticker := time.NewTicker(mc.refreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := mc.Refresh(ctx); err != nil {
				mc.logger.Warn("market cache refresh failed", zap.Error(err))
			}
		}
	}
}

func snapshotFromGamma(m *polymarketapi.GammaMarket, now time.Time) engine.MarketSnapshot {
	return engine.MarketSnapshot{
		MarketID:  m.ConditionID,
		Title:     m.Question,
		Slug:      m.Slug,
		EventSlug: m.EventSlug,
		Volume24h: m.Volume24hr,
		Liquidity: m.LiquidityNum,
		EndDate:   m.GetEndTime(),
		TokenIDs:  m.GetTokenIDs(),
		FetchedAt: now,
	}
}
