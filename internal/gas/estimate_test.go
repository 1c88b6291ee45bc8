package gas

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

type rpcRequest struct {
	JSONRPC string            `json:"jsonrpc"`
	ID      json.RawMessage   `json:"id"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
}

func TestEstimateCall(t *testing.T) {
	rpc := newRPCServer(t)
	defer rpc.Close()

	opts := DefaultOptions()
	opts.RPCURL = rpc.URL
	call := Call{
		From: common.HexToAddress("0x00000000000000000000000000000000000000aa"),
		To:   common.HexToAddress("0x00000000000000000000000000000000000000bb"),
		Data: []byte{0x35, 0x93, 0x56, 0x4c},
	}

	estimate, err := EstimateCall(context.Background(), call, opts)
	if err != nil {
		t.Fatalf("EstimateCall failed: %v", err)
	}
	if estimate.BlockTag != string(BlockTagPending) {
		t.Fatalf("expected block tag pending, got %s", estimate.BlockTag)
	}
	if estimate.ChainID != "eip155:1" {
		t.Fatalf("unexpected chain id: %s", estimate.ChainID)
	}
	if estimate.GasEstimateRaw != "21000" {
		t.Fatalf("expected raw gas 21000, got %s", estimate.GasEstimateRaw)
	}
	if estimate.GasLimit != "25200" {
		t.Fatalf("expected gas limit 25200, got %s", estimate.GasLimit)
	}
	if estimate.BaseFeePerGasWei != "1000000000" {
		t.Fatalf("expected base fee 1 gwei, got %s", estimate.BaseFeePerGasWei)
	}
	if estimate.MaxPriorityFeePerGasWei != "2000000000" {
		t.Fatalf("expected tip cap 2 gwei, got %s", estimate.MaxPriorityFeePerGasWei)
	}
	if estimate.MaxFeePerGasWei != "4000000000" {
		t.Fatalf("expected fee cap 4 gwei, got %s", estimate.MaxFeePerGasWei)
	}
	if estimate.EffectiveGasPriceWei != "3000000000" {
		t.Fatalf("expected effective gas price 3 gwei, got %s", estimate.EffectiveGasPriceWei)
	}
	if estimate.LikelyFeeWei != "75600000000000" {
		t.Fatalf("unexpected likely fee: %s", estimate.LikelyFeeWei)
	}
	if estimate.WorstCaseFeeWei != "100800000000000" {
		t.Fatalf("unexpected worst-case fee: %s", estimate.WorstCaseFeeWei)
	}
}

func TestEstimateCallFeeOverrides(t *testing.T) {
	rpc := newRPCServer(t)
	defer rpc.Close()

	opts := DefaultOptions()
	opts.RPCURL = rpc.URL
	opts.MaxPriorityFeeGwei = "1"
	opts.MaxFeeGwei = "2"
	call := Call{
		From: common.HexToAddress("0x00000000000000000000000000000000000000aa"),
		To:   common.HexToAddress("0x00000000000000000000000000000000000000bb"),
	}

	estimate, err := EstimateCall(context.Background(), call, opts)
	if err != nil {
		t.Fatalf("EstimateCall failed: %v", err)
	}
	if estimate.MaxPriorityFeePerGasWei != "1000000000" {
		t.Fatalf("expected overridden tip cap, got %s", estimate.MaxPriorityFeePerGasWei)
	}
	if estimate.MaxFeePerGasWei != "2000000000" {
		t.Fatalf("expected overridden fee cap, got %s", estimate.MaxFeePerGasWei)
	}
	// base fee (1) + tip (1) = fee cap, so effective price hits the cap
	if estimate.EffectiveGasPriceWei != "2000000000" {
		t.Fatalf("unexpected effective gas price: %s", estimate.EffectiveGasPriceWei)
	}
}

func TestEstimateCallRejectsBadOptions(t *testing.T) {
	opts := DefaultOptions()
	if _, err := EstimateCall(context.Background(), Call{}, opts); err == nil {
		t.Fatal("expected missing rpc url error")
	}
	opts.RPCURL = "http://127.0.0.1:1"
	opts.GasMultiplier = 1
	if _, err := EstimateCall(context.Background(), Call{}, opts); err == nil {
		t.Fatal("expected gas multiplier error")
	}
	opts.GasMultiplier = 1.2
	opts.BlockTag = "finalized"
	if _, err := EstimateCall(context.Background(), Call{}, opts); err == nil {
		t.Fatal("expected block tag error")
	}
}

func TestParseGwei(t *testing.T) {
	cases := map[string]string{
		"1":    "1000000000",
		"0.5":  "500000000",
		"2.25": "2250000000",
	}
	for in, want := range cases {
		got, err := parseGwei(in)
		if err != nil {
			t.Fatalf("parseGwei(%q): %v", in, err)
		}
		if got.String() != want {
			t.Fatalf("parseGwei(%q) = %s, want %s", in, got, want)
		}
	}
	for _, in := range []string{"", "abc", "-1", "0.0000000001"} {
		if _, err := parseGwei(in); err == nil {
			t.Fatalf("parseGwei(%q) should fail", in)
		}
	}
}

func newRPCServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer r.Body.Close()
		var req rpcRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		switch req.Method {
		case "eth_chainId":
			writeRPCResult(t, w, req.ID, "0x1")
		case "eth_estimateGas":
			if len(req.Params) < 2 {
				writeRPCError(w, req.ID, -32602, "missing block tag")
				return
			}
			var tag string
			if err := json.Unmarshal(req.Params[1], &tag); err != nil {
				writeRPCError(w, req.ID, -32602, "invalid block tag")
				return
			}
			if tag != "pending" && tag != "latest" {
				writeRPCError(w, req.ID, -32602, "unsupported block tag")
				return
			}
			writeRPCResult(t, w, req.ID, "0x5208")
		case "eth_maxPriorityFeePerGas":
			writeRPCResult(t, w, req.ID, "0x77359400")
		case "eth_getBlockByNumber":
			writeRPCResult(t, w, req.ID, map[string]any{
				"baseFeePerGas": "0x3b9aca00",
			})
		default:
			writeRPCError(w, req.ID, -32601, fmt.Sprintf("method not supported in test: %s", req.Method))
		}
	}))
}

func writeRPCResult(t *testing.T, w http.ResponseWriter, id json.RawMessage, result any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	resp := map[string]any{
		"jsonrpc": "2.0",
		"id":      decodeRPCID(id),
		"result":  result,
	}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		t.Fatalf("encode rpc result: %v", err)
	}
}

func writeRPCError(w http.ResponseWriter, id json.RawMessage, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	resp := map[string]any{
		"jsonrpc": "2.0",
		"id":      decodeRPCID(id),
		"error": map[string]any{
			"code":    code,
			"message": message,
		},
	}
	_ = json.NewEncoder(w).Encode(resp)
}

func decodeRPCID(raw json.RawMessage) any {
	if len(raw) == 0 {
		return 1
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return 1
	}
	return out
}
