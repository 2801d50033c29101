// Package polygonrpc is a minimal Polygon JSON-RPC client. It exists to
// answer one question: how many transactions has a wallet ever sent. A
// near-zero nonce marks a wallet as brand new on chain even when the
// Polymarket profile gives no account age.
package polygonrpc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"insiderbot/config"

	"go.uber.org/zap"
)

// PolygonRPCClient talks to a Polygon JSON-RPC endpoint.
type PolygonRPCClient struct {
	logger     *zap.Logger
	httpClient *http.Client
	rpcURL     string
}

func NewPolygonRPCClient(logger *zap.Logger, cfg *config.Config) *PolygonRPCClient {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &PolygonRPCClient{
		logger: logger,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		rpcURL: cfg.PolygonRPC.URL,
	}
}

type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
	ID      int           `json:"id"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	Result  json.RawMessage `json:"result"`
	Error   *rpcError       `json:"error"`
	ID      int             `json:"id"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// GetTransactionCount returns the total number of transactions the address
// has sent on Polygon.
func (c *PolygonRPCClient) GetTransactionCount(ctx context.Context, address string) (uint64, error) {
	req := rpcRequest{
		JSONRPC: "2.0",
		Method:  "eth_getTransactionCount",
		Params:  []interface{}{address, "latest"},
		ID:      1,
	}

	body, err := json.Marshal(req)
	if err != nil {
		return 0, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.rpcURL, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return 0, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("polygon RPC returned status %d", resp.StatusCode)
	}

	var rpcResp rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		return 0, fmt.Errorf("decode response: %w", err)
	}

	if rpcResp.Error != nil {
		return 0, fmt.Errorf("polygon RPC error %d: %s", rpcResp.Error.Code, rpcResp.Error.Message)
	}

	var hexCount string
	if err := json.Unmarshal(rpcResp.Result, &hexCount); err != nil {
		return 0, fmt.Errorf("unmarshal result: %w", err)
	}

	count, err := parseHexUint(hexCount)
	if err != nil {
		return 0, fmt.Errorf("parse nonce %q: %w", hexCount, err)
	}

	return count, nil
}

func parseHexUint(s string) (uint64, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "0x")
	if s == "" {
		return 0, fmt.Errorf("empty hex string")
	}
	return strconv.ParseUint(s, 16, 64)
}
