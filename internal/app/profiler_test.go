package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"insiderbot/clients/polymarketapi"

	"go.uber.org/zap"
)

func TestGetProfile_FullData(t *testing.T) {
	createdAt := time.Now().AddDate(0, 0, -5).Format(time.RFC3339)
	api := &mockProfileAPI{
		profile: &polymarketapi.PublicProfile{
			ProxyWallet: "0xabc",
			CreatedAt:   createdAt,
		},
		activity: []polymarketapi.Activity{
			{UsdcSize: 1000},
			{UsdcSize: 2500},
			{UsdcSize: 500},
		},
	}
	chain := &mockNonceAPI{nonce: 100}

	wp := NewWalletProfiler(zap.NewNop(), api, chain, time.Minute, 5)

	profile, err := wp.GetProfile(context.Background(), "0xabc")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if profile.AgeDays == nil {
		t.Fatal("expected age to be set")
	}
	if *profile.AgeDays != 5 {
		t.Errorf("expected age 5 days, got %d", *profile.AgeDays)
	}
	if profile.TradeCount == nil || *profile.TradeCount != 3 {
		t.Errorf("expected trade count 3, got %v", profile.TradeCount)
	}
	if profile.VolumeUSD == nil || *profile.VolumeUSD != 4000 {
		t.Errorf("expected volume 4000, got %v", profile.VolumeUSD)
	}
	if profile.FreshOnChain {
		t.Error("should not probe chain when age is known")
	}
	if chain.calls != 0 {
		t.Errorf("expected no nonce probes, got %d", chain.calls)
	}
}

func TestGetProfile_NonceFallback(t *testing.T) {
	// Profile exists but has no creation date
	api := &mockProfileAPI{
		profile:  &polymarketapi.PublicProfile{ProxyWallet: "0xabc"},
		activity: []polymarketapi.Activity{{UsdcSize: 100}},
	}
	chain := &mockNonceAPI{nonce: 2}

	wp := NewWalletProfiler(zap.NewNop(), api, chain, time.Minute, 5)

	profile, err := wp.GetProfile(context.Background(), "0xabc")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if profile.AgeDays != nil {
		t.Error("expected unknown age")
	}
	if !profile.FreshOnChain {
		t.Error("expected fresh-on-chain flag for low nonce")
	}
	if chain.calls != 1 {
		t.Errorf("expected 1 nonce probe, got %d", chain.calls)
	}
}

func TestGetProfile_HighNonceNotFresh(t *testing.T) {
	api := &mockProfileAPI{
		profile:  &polymarketapi.PublicProfile{ProxyWallet: "0xabc"},
		activity: []polymarketapi.Activity{},
	}
	chain := &mockNonceAPI{nonce: 500}

	wp := NewWalletProfiler(zap.NewNop(), api, chain, time.Minute, 5)

	profile, err := wp.GetProfile(context.Background(), "0xabc")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if profile.FreshOnChain {
		t.Error("high nonce should not be flagged fresh")
	}
}

func TestGetProfile_NonceErrorDegrades(t *testing.T) {
	api := &mockProfileAPI{
		profile:  &polymarketapi.PublicProfile{ProxyWallet: "0xabc"},
		activity: []polymarketapi.Activity{},
	}
	chain := &mockNonceAPI{err: errors.New("rpc down")}

	wp := NewWalletProfiler(zap.NewNop(), api, chain, time.Minute, 5)

	profile, err := wp.GetProfile(context.Background(), "0xabc")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if profile.FreshOnChain {
		t.Error("rpc failure should leave fresh-on-chain unset")
	}
}

func TestGetProfile_NilChain(t *testing.T) {
	api := &mockProfileAPI{
		profile:  &polymarketapi.PublicProfile{ProxyWallet: "0xabc"},
		activity: []polymarketapi.Activity{},
	}

	wp := NewWalletProfiler(zap.NewNop(), api, nil, time.Minute, 5)

	profile, err := wp.GetProfile(context.Background(), "0xabc")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if profile.FreshOnChain {
		t.Error("no chain client, flag must stay unset")
	}
}

func TestGetProfile_PartialData(t *testing.T) {
	// Profile fetch fails but activity works; age is unknown, count known.
	api := &mockProfileAPI{
		profileErr: errors.New("profile down"),
		activity:   []polymarketapi.Activity{{UsdcSize: 100}, {UsdcSize: 200}},
	}

	wp := NewWalletProfiler(zap.NewNop(), api, nil, time.Minute, 5)

	profile, err := wp.GetProfile(context.Background(), "0xabc")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if profile.AgeDays != nil {
		t.Error("expected unknown age")
	}
	if profile.TradeCount == nil || *profile.TradeCount != 2 {
		t.Errorf("expected trade count 2, got %v", profile.TradeCount)
	}
}

func TestGetProfile_AllSourcesDown(t *testing.T) {
	api := &mockProfileAPI{
		profileErr:  errors.New("profile down"),
		activityErr: errors.New("activity down"),
	}

	wp := NewWalletProfiler(zap.NewNop(), api, nil, time.Minute, 5)

	_, err := wp.GetProfile(context.Background(), "0xabc")
	if err == nil {
		t.Fatal("expected error when every source fails")
	}
}

func TestGetProfile_CacheHit(t *testing.T) {
	api := &mockProfileAPI{
		profile:  &polymarketapi.PublicProfile{ProxyWallet: "0xabc"},
		activity: []polymarketapi.Activity{},
	}

	wp := NewWalletProfiler(zap.NewNop(), api, nil, time.Minute, 5)

	ctx := context.Background()
	if _, err := wp.GetProfile(ctx, "0xabc"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := wp.GetProfile(ctx, "0xabc"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if api.profileCalls != 1 {
		t.Errorf("expected 1 profile fetch, got %d", api.profileCalls)
	}
	if wp.CacheSize() != 1 {
		t.Errorf("expected cache size 1, got %d", wp.CacheSize())
	}
}

func TestGetProfile_StaleCacheOnError(t *testing.T) {
	api := &mockProfileAPI{
		profile:  &polymarketapi.PublicProfile{ProxyWallet: "0xabc"},
		activity: []polymarketapi.Activity{{UsdcSize: 100}},
	}

	// Tiny TTL so the first entry is immediately stale.
	wp := NewWalletProfiler(zap.NewNop(), api, nil, time.Nanosecond, 5)

	ctx := context.Background()
	if _, err := wp.GetProfile(ctx, "0xabc"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// All sources fail on refetch; the stale entry should carry us.
	api.profileErr = errors.New("down")
	api.activityErr = errors.New("down")

	profile, err := wp.GetProfile(ctx, "0xabc")
	if err != nil {
		t.Fatalf("expected stale fallback, got error: %v", err)
	}
	if profile.TradeCount == nil || *profile.TradeCount != 1 {
		t.Errorf("expected stale trade count 1, got %v", profile.TradeCount)
	}
}

func TestPruneStale(t *testing.T) {
	api := &mockProfileAPI{
		profile:  &polymarketapi.PublicProfile{ProxyWallet: "0xabc"},
		activity: []polymarketapi.Activity{},
	}

	wp := NewWalletProfiler(zap.NewNop(), api, nil, time.Nanosecond, 5)

	if _, err := wp.GetProfile(context.Background(), "0xabc"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	time.Sleep(time.Millisecond)

	pruned := wp.PruneStale()
	if pruned != 1 {
		t.Errorf("expected 1 pruned, got %d", pruned)
	}
	if wp.CacheSize() != 0 {
		t.Errorf("expected empty cache, got %d", wp.CacheSize())
	}
}
