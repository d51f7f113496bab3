package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"
	"time"
)

// Client issues JSON-RPC 2.0 requests against a node endpoint.
type Client struct {
	endpoint string
	client   *http.Client
	nextID   atomic.Int64
}

// New creates a client for the given HTTP endpoint. A nil httpClient falls
// back to a client with a 10s timeout.
func New(endpoint string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{endpoint: endpoint, client: httpClient}
}

type request struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int64  `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

type response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int64           `json:"id"`
	Result  json.RawMessage `json:"result"`
	Error   *Error          `json:"error"`
}

// Error is the error member of a JSON-RPC response envelope.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// Call performs one request-response exchange. A populated error member in
// the envelope counts as a non-success response even when HTTP returns 200.
func (c *Client) Call(ctx context.Context, method string, params []any, out any) error {
	if params == nil {
		params = []any{}
	}
	body, err := json.Marshal(request{
		JSONRPC: "2.0",
		ID:      c.nextID.Add(1),
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return fmt.Errorf("marshal %s request: %w", method, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build %s request: %w", method, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("call %s: %w", method, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("call %s: unexpected status %s", method, resp.Status)
	}

	var envelope response
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("decode %s response: %w", method, err)
	}
	if envelope.Error != nil {
		return envelope.Error
	}
	if out != nil {
		if err := json.Unmarshal(envelope.Result, out); err != nil {
			return fmt.Errorf("decode %s result: %w", method, err)
		}
	}
	return nil
}

// BlockNumber returns the node's current block height via eth_blockNumber.
func (c *Client) BlockNumber(ctx context.Context) (uint64, error) {
	var raw string
	if err := c.Call(ctx, "eth_blockNumber", nil, &raw); err != nil {
		return 0, err
	}
	return parseQuantity(raw)
}

// ClientVersion returns the node's reported client version via
// web3_clientVersion, the cheapest liveness exchange the protocol offers.
func (c *Client) ClientVersion(ctx context.Context) (string, error) {
	var version string
	if err := c.Call(ctx, "web3_clientVersion", nil, &version); err != nil {
		return "", err
	}
	return version, nil
}

func parseQuantity(raw string) (uint64, error) {
	hex := strings.TrimPrefix(raw, "0x")
	if hex == "" {
		return 0, fmt.Errorf("empty quantity %q", raw)
	}
	n, err := strconv.ParseUint(hex, 16, 64)
	if err != nil {
		return 0, fmt.Errorf("parse quantity %q: %w", raw, err)
	}
	return n, nil
}
