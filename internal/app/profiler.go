package app

import (
	"context"
	"sync"
	"time"

	"insiderbot/clients/polymarketapi"
	"insiderbot/internal/engine"

	"go.uber.org/zap"
)

// ProfileAPI is the slice of the Polymarket API the profiler needs.
type ProfileAPI interface {
	GetPublicProfile(ctx context.Context, wallet string) (*polymarketapi.PublicProfile, error)
	GetUserActivity(ctx context.Context, wallet string, limit int) ([]polymarketapi.Activity, error)
}

// NonceAPI answers how many transactions an address has ever sent.
type NonceAPI interface {
	GetTransactionCount(ctx context.Context, address string) (uint64, error)
}

const profilerActivityLimit = 500

// WalletProfiler caches wallet enrichment data to avoid repeated API calls.
// When the Polymarket profile gives no account age, the Polygon nonce is
// probed as a fallback brand-new-wallet signal.
type WalletProfiler struct {
	logger *zap.Logger
	api    ProfileAPI
	chain  NonceAPI

	cacheTTL      time.Duration
	freshNonceMax uint64

	mu    sync.RWMutex
	cache map[string]*engine.WalletProfile
}

// NewWalletProfiler creates a profiler with the given cache TTL. chain may be
// nil, which disables the on-chain fallback.
func NewWalletProfiler(
	logger *zap.Logger,
	api ProfileAPI,
	chain NonceAPI,
	cacheTTL time.Duration,
	freshNonceMax int,
) *WalletProfiler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cacheTTL <= 0 {
		cacheTTL = 5 * time.Minute
	}
	if freshNonceMax < 0 {
		freshNonceMax = 0
	}

	return &WalletProfiler{
		logger:        logger,
		api:           api,
		chain:         chain,
		cacheTTL:      cacheTTL,
		freshNonceMax: uint64(freshNonceMax),
		cache:         make(map[string]*engine.WalletProfile),
	}
}

// GetProfile returns cached enrichment data for a wallet, fetching from the
// API if the cache entry is missing or stale. On fetch failure a stale entry
// is returned rather than an error.
func (wp *WalletProfiler) GetProfile(ctx context.Context, wallet string) (engine.WalletProfile, error) {
	wp.mu.RLock()
	cached, ok := wp.cache[wallet]
	wp.mu.RUnlock()

	if ok && time.Since(cached.FetchedAt) < wp.cacheTTL {
		return *cached, nil
	}

	profile, err := wp.fetchProfile(ctx, wallet)
	if err != nil {
		if cached != nil {
			wp.logger.Warn("using stale wallet profile due to fetch error",
				zap.String("wallet", shortID(wallet)),
				zap.Error(err),
			)
			return *cached, nil
		}
		return engine.WalletProfile{}, err
	}

	wp.mu.Lock()
	wp.cache[wallet] = profile
	wp.mu.Unlock()

	return *profile, nil
}

func (wp *WalletProfiler) fetchProfile(ctx context.Context, wallet string) (*engine.WalletProfile, error) {
	profile := &engine.WalletProfile{
		Wallet:    wallet,
		FetchedAt: time.Now(),
	}

	profileErr := wp.fillFromPublicProfile(ctx, wallet, profile)
	activityErr := wp.fillFromActivity(ctx, wallet, profile)

	// Both sources down means no usable data at all.
	if profileErr != nil && activityErr != nil {
		return nil, profileErr
	}

	// The public profile often omits the creation date. The chain nonce is
	// the tiebreaker for wallets that barely exist.
	if profile.AgeDays == nil && wp.chain != nil {
		nonce, err := wp.chain.GetTransactionCount(ctx, wallet)
		if err != nil {
			wp.logger.Warn("polygon nonce probe failed",
				zap.String("wallet", shortID(wallet)),
				zap.Error(err),
			)
		} else if nonce <= wp.freshNonceMax {
			profile.FreshOnChain = true
		}
	}

	wp.logger.Debug("fetched wallet profile",
		zap.String("wallet", shortID(wallet)),
		zap.Bool("hasAge", profile.AgeDays != nil),
		zap.Bool("hasTradeCount", profile.TradeCount != nil),
		zap.Bool("freshOnChain", profile.FreshOnChain),
	)

	return profile, nil
}

func (wp *WalletProfiler) fillFromPublicProfile(ctx context.Context, wallet string, profile *engine.WalletProfile) error {
	pp, err := wp.api.GetPublicProfile(ctx, wallet)
	if err != nil {
		wp.logger.Warn("failed to fetch public profile, wallet age unavailable",
			zap.String("wallet", shortID(wallet)),
			zap.Error(err),
		)
		return err
	}

	if createdAt := pp.GetCreatedAt(); !createdAt.IsZero() {
		age := int(time.Since(createdAt).Hours() / 24)
		if age < 0 {
			age = 0
		}
		profile.AgeDays = &age
	}
	return nil
}

func (wp *WalletProfiler) fillFromActivity(ctx context.Context, wallet string, profile *engine.WalletProfile) error {
	activity, err := wp.api.GetUserActivity(ctx, wallet, profilerActivityLimit)
	if err != nil {
		wp.logger.Warn("failed to fetch user activity, trade count unavailable",
			zap.String("wallet", shortID(wallet)),
			zap.Error(err),
		)
		return err
	}

	count := len(activity)
	volume := 0.0
	for _, a := range activity {
		volume += a.UsdcSize
	}

	profile.TradeCount = &count
	profile.VolumeUSD = &volume
	return nil
}

// CacheSize returns the current number of cached wallets.
func (wp *WalletProfiler) CacheSize() int {
	wp.mu.RLock()
	defer wp.mu.RUnlock()
	return len(wp.cache)
}

// PruneStale removes entries older than twice the cache TTL.
func (wp *WalletProfiler) PruneStale() int {
	wp.mu.Lock()
	defer wp.mu.Unlock()

	pruned := 0
	staleThreshold := 2 * wp.cacheTTL

	for wallet, profile := range wp.cache {
		if time.Since(profile.FetchedAt) > staleThreshold {
			delete(wp.cache, wallet)
			pruned++
		}
	}

	return pruned
}
