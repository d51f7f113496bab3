package rpc

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestBlockNumber(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req map[string]any
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req["method"] != "eth_blockNumber" {
			t.Fatalf("unexpected method %v", req["method"])
		}
		json.NewEncoder(w).Encode(map[string]any{
			"jsonrpc": "2.0",
			"id":      req["id"],
			"result":  "0x1a",
		})
	}))
	defer srv.Close()

	client := New(srv.URL, srv.Client())
	height, err := client.BlockNumber(context.Background())
	if err != nil {
		t.Fatalf("BlockNumber: %v", err)
	}
	if height != 26 {
		t.Fatalf("expected height 26, got %d", height)
	}
}

func TestClientVersion(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"jsonrpc": "2.0",
			"id":      1,
			"result":  "axon/v0.3.0",
		})
	}))
	defer srv.Close()

	client := New(srv.URL, srv.Client())
	version, err := client.ClientVersion(context.Background())
	if err != nil {
		t.Fatalf("ClientVersion: %v", err)
	}
	if version != "axon/v0.3.0" {
		t.Fatalf("unexpected version %q", version)
	}
}

func TestCallErrorEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"jsonrpc": "2.0",
			"id":      1,
			"error":   map[string]any{"code": -32601, "message": "method not found"},
		})
	}))
	defer srv.Close()

	client := New(srv.URL, srv.Client())
	err := client.Call(context.Background(), "eth_bogus", nil, nil)
	if err == nil {
		t.Fatal("expected error from error envelope")
	}
	if !strings.Contains(err.Error(), "method not found") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestCallNonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client := New(srv.URL, srv.Client())
	if _, err := client.BlockNumber(context.Background()); err == nil {
		t.Fatal("expected error for HTTP 503")
	}
}

func TestParseQuantity(t *testing.T) {
	cases := []struct {
		raw     string
		want    uint64
		wantErr bool
	}{
		{raw: "0x0", want: 0},
		{raw: "0x10", want: 16},
		{raw: "1a", want: 26},
		{raw: "0x", wantErr: true},
		{raw: "0xzz", wantErr: true},
	}
	for _, tc := range cases {
		got, err := parseQuantity(tc.raw)
		if tc.wantErr {
			if err == nil {
				t.Fatalf("parseQuantity(%q): expected error", tc.raw)
			}
			continue
		}
		if err != nil {
			t.Fatalf("parseQuantity(%q): %v", tc.raw, err)
		}
		if got != tc.want {
			t.Fatalf("parseQuantity(%q) = %d, want %d", tc.raw, got, tc.want)
		}
	}
}
