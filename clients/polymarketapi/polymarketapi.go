package polymarketapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"insiderbot/config"

	"go.uber.org/zap"
)

type PolymarketApiClient struct {
	logger       *zap.Logger
	httpClient   *http.Client
	gammaBaseURL string
	dataBaseURL  string
}

func NewPolymarketApiClient(logger *zap.Logger, cfg *config.Config) *PolymarketApiClient {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &PolymarketApiClient{
		logger: logger,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		gammaBaseURL: cfg.Polymarket.GammaAPIURL,
		dataBaseURL:  cfg.Polymarket.DataAPIURL,
	}
}

// ---- Gamma API types ----

type GammaMarket struct {
	ID           string          `json:"id"`
	Slug         string          `json:"slug"`
	Question     string          `json:"question"`
	ConditionID  string          `json:"conditionId"`
	ClobTokenIDs json.RawMessage `json:"clobTokenIds"`

	// Commonly present and useful for labeling YES/NO.
	Outcomes      json.RawMessage `json:"outcomes"`
	OutcomePrices json.RawMessage `json:"outcomePrices"`

	// Volume and liquidity metrics
	Volume24hr   float64 `json:"volume24hr"`
	VolumeNum    float64 `json:"volumeNum"`
	LiquidityNum float64 `json:"liquidityNum"`

	// Status
	Active bool `json:"active"`
	Closed bool `json:"closed"`

	// Resolution time, RFC3339 when present
	EndDate string `json:"endDate"`

	EventSlug string `json:"eventSlug,omitempty"`
	Image     string `json:"image"`
}

// GetOutcomes parses the Outcomes field and returns the outcome names.
func (m *GammaMarket) GetOutcomes() []string {
	if len(m.Outcomes) == 0 {
		return nil
	}

	// Try parsing as direct array
	var outcomes []string
	if err := json.Unmarshal(m.Outcomes, &outcomes); err == nil {
		return outcomes
	}

	// Try parsing as JSON string containing an array (e.g., "[\"Yes\", \"No\"]")
	var jsonStr string
	if err := json.Unmarshal(m.Outcomes, &jsonStr); err == nil {
		if err := json.Unmarshal([]byte(jsonStr), &outcomes); err == nil {
			return outcomes
		}
	}

	return nil
}

// GetOutcomePrices parses the OutcomePrices field and returns prices.
func (m *GammaMarket) GetOutcomePrices() []float64 {
	if len(m.OutcomePrices) == 0 {
		return nil
	}

	parseStrings := func(strs []string) []float64 {
		prices := make([]float64, len(strs))
		for i, s := range strs {
			fmt.Sscanf(s, "%f", &prices[i])
		}
		return prices
	}

	// Try parsing as array of floats
	var prices []float64
	if err := json.Unmarshal(m.OutcomePrices, &prices); err == nil {
		return prices
	}

	// Try parsing as array of strings (sometimes prices are strings)
	var priceStrs []string
	if err := json.Unmarshal(m.OutcomePrices, &priceStrs); err == nil {
		return parseStrings(priceStrs)
	}

	// Try parsing as JSON string containing an array (e.g., "[\"0\", \"1\"]")
	var jsonStr string
	if err := json.Unmarshal(m.OutcomePrices, &jsonStr); err == nil {
		if err := json.Unmarshal([]byte(jsonStr), &prices); err == nil {
			return prices
		}
		if err := json.Unmarshal([]byte(jsonStr), &priceStrs); err == nil {
			return parseStrings(priceStrs)
		}
	}

	return nil
}

// GetTokenIDs parses the ClobTokenIDs field and returns the token IDs.
// Handles the Gamma API's multiple encodings:
// - Direct array: ["token1", "token2"]
// - Array containing JSON string: ["[\"token1\", \"token2\"]"]
// - JSON string: "[\"token1\", \"token2\"]"
func (m *GammaMarket) GetTokenIDs() []string {
	if len(m.ClobTokenIDs) == 0 {
		return nil
	}

	var tokenIDs []string
	if err := json.Unmarshal(m.ClobTokenIDs, &tokenIDs); err == nil && len(tokenIDs) > 0 {
		if len(tokenIDs) == 1 && len(tokenIDs[0]) > 0 && tokenIDs[0][0] == '[' {
			var nested []string
			if err := json.Unmarshal([]byte(tokenIDs[0]), &nested); err == nil && len(nested) > 0 {
				return nested
			}
		}
		return tokenIDs
	}

	var jsonStr string
	if err := json.Unmarshal(m.ClobTokenIDs, &jsonStr); err == nil && jsonStr != "" {
		var innerTokenIDs []string
		if err := json.Unmarshal([]byte(jsonStr), &innerTokenIDs); err == nil && len(innerTokenIDs) > 0 {
			return innerTokenIDs
		}
	}

	return nil
}

// GetEndTime parses the EndDate field. Returns a zero time when absent or
// unparseable.
func (m *GammaMarket) GetEndTime() time.Time {
	if m.EndDate == "" {
		return time.Time{}
	}
	if t, err := time.Parse(time.RFC3339, m.EndDate); err == nil {
		return t
	}
	if t, err := time.Parse("2006-01-02T15:04:05Z0700", m.EndDate); err == nil {
		return t
	}
	return time.Time{}
}

// GetActiveMarkets fetches active markets sorted by 24-hour trading volume.
func (c *PolymarketApiClient) GetActiveMarkets(
	ctx context.Context,
	limit int,
) ([]GammaMarket, error) {
	if limit <= 0 {
		limit = 100
	}

	u, err := url.Parse(c.gammaBaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid gammaBaseURL: %w", err)
	}
	u.Path = "/markets"

	q := u.Query()
	q.Set("limit", fmt.Sprintf("%d", limit))
	q.Set("order", "volume24hr")
	q.Set("ascending", "false")
	q.Set("active", "true")
	q.Set("closed", "false")
	u.RawQuery = q.Encode()

	var markets []GammaMarket
	if err := c.doGet(ctx, u.String(), &markets); err != nil {
		return nil, fmt.Errorf("get active markets: %w", err)
	}
	return markets, nil
}

// GetMarketByConditionID fetches a specific market by its condition ID.
func (c *PolymarketApiClient) GetMarketByConditionID(
	ctx context.Context,
	conditionID string,
) (*GammaMarket, error) {
	conditionID = strings.TrimSpace(conditionID)
	if conditionID == "" {
		return nil, fmt.Errorf("conditionID is empty")
	}

	u, err := url.Parse(c.gammaBaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid gammaBaseURL: %w", err)
	}
	u.Path = "/markets"

	q := u.Query()
	q.Set("condition_id", conditionID)
	q.Set("limit", "1")
	u.RawQuery = q.Encode()

	var markets []GammaMarket
	if err := c.doGet(ctx, u.String(), &markets); err != nil {
		return nil, fmt.Errorf("get market by condition: %w", err)
	}

	if len(markets) == 0 {
		return nil, fmt.Errorf("market not found: %s", conditionID)
	}

	return &markets[0], nil
}

// PublicProfile is the Gamma public-profile record for a wallet.
type PublicProfile struct {
	ProxyWallet string `json:"proxyWallet"`
	Name        string `json:"name"`
	Pseudonym   string `json:"pseudonym"`
	Bio         string `json:"bio"`
	CreatedAt   string `json:"createdAt"` // RFC3339
}

// GetCreatedAt parses the CreatedAt field. Zero time when absent.
func (p *PublicProfile) GetCreatedAt() time.Time {
	if p.CreatedAt == "" {
		return time.Time{}
	}
	if t, err := time.Parse(time.RFC3339, p.CreatedAt); err == nil {
		return t
	}
	return time.Time{}
}

// GetPublicProfile fetches the public profile for a wallet address. Used to
// determine wallet age.
func (c *PolymarketApiClient) GetPublicProfile(
	ctx context.Context,
	wallet string,
) (*PublicProfile, error) {
	wallet = strings.TrimSpace(wallet)
	if wallet == "" {
		return nil, fmt.Errorf("wallet is empty")
	}

	u, err := url.Parse(c.gammaBaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid gammaBaseURL: %w", err)
	}
	u.Path = "/public-profile"

	q := u.Query()
	q.Set("wallet", wallet)
	u.RawQuery = q.Encode()

	var profile PublicProfile
	if err := c.doGet(ctx, u.String(), &profile); err != nil {
		return nil, fmt.Errorf("get public profile: %w", err)
	}

	return &profile, nil
}

// ---- Data API types ----

// Trade represents a trade from the data API.
type Trade struct {
	ID              string  `json:"id"`
	ProxyWallet     string  `json:"proxyWallet"`
	Side            string  `json:"side"` // BUY or SELL
	Size            float64 `json:"size"`
	Price           float64 `json:"price"`
	Timestamp       int64   `json:"timestamp"`
	ConditionID     string  `json:"conditionId"`
	Asset           string  `json:"asset"`
	TransactionHash string  `json:"transactionHash"`

	// Market metadata
	Title        string `json:"title"`
	Slug         string `json:"slug"`
	EventSlug    string `json:"eventSlug"`
	Outcome      string `json:"outcome"`
	OutcomeIndex int    `json:"outcomeIndex"`

	// User profile
	Name      string `json:"name"`
	Pseudonym string `json:"pseudonym"`
}

// Activity represents user activity from the data API.
type Activity struct {
	ProxyWallet     string  `json:"proxyWallet"`
	Timestamp       int64   `json:"timestamp"`
	ConditionID     string  `json:"conditionId"`
	Type            string  `json:"type"` // TRADE, SPLIT, MERGE, REDEEM, REWARD, CONVERSION
	Size            float64 `json:"size"`
	UsdcSize        float64 `json:"usdcSize"`
	Price           float64 `json:"price"`
	Side            string  `json:"side"`
	TransactionHash string  `json:"transactionHash"`

	Title   string `json:"title"`
	Slug    string `json:"slug"`
	Outcome string `json:"outcome"`
}

// GetLargeTrades fetches recent trades at or above a USD notional across all
// markets, newest first. This is the polling ingestion source.
func (c *PolymarketApiClient) GetLargeTrades(
	ctx context.Context,
	minUSD float64,
	limit int,
) ([]Trade, error) {
	if limit <= 0 {
		limit = 100
	}

	u, err := url.Parse(c.dataBaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid dataBaseURL: %w", err)
	}
	u.Path = "/trades"

	q := u.Query()
	q.Set("takerOnly", "true")
	q.Set("filterType", "CASH")
	q.Set("filterAmount", fmt.Sprintf("%.0f", minUSD))
	q.Set("limit", fmt.Sprintf("%d", limit))
	u.RawQuery = q.Encode()

	var trades []Trade
	if err := c.doGet(ctx, u.String(), &trades); err != nil {
		return nil, fmt.Errorf("get large trades: %w", err)
	}

	return trades, nil
}

// GetUserActivity fetches trade activity for a specific wallet address. Used
// to count lifetime trades and total realized volume.
func (c *PolymarketApiClient) GetUserActivity(
	ctx context.Context,
	wallet string,
	limit int,
) ([]Activity, error) {
	wallet = strings.TrimSpace(wallet)
	if wallet == "" {
		return nil, fmt.Errorf("wallet is empty")
	}

	u, err := url.Parse(c.dataBaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid dataBaseURL: %w", err)
	}
	u.Path = "/activity"

	q := u.Query()
	q.Set("user", wallet)
	q.Set("type", "TRADE")
	if limit > 0 {
		q.Set("limit", fmt.Sprintf("%d", limit))
	}
	u.RawQuery = q.Encode()

	var activity []Activity
	if err := c.doGet(ctx, u.String(), &activity); err != nil {
		return nil, fmt.Errorf("get user activity: %w", err)
	}

	return activity, nil
}

// doGet is a helper that performs a GET request and decodes JSON response.
func (c *PolymarketApiClient) doGet(ctx context.Context, url string, dest any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("status=%d body=%s", resp.StatusCode, string(body))
	}

	if err := json.Unmarshal(body, dest); err != nil {
		return fmt.Errorf("decode json: %w", err)
	}

	return nil
}
