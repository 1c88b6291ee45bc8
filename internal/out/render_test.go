package out

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/asanchezr/routerfee/internal/config"
	"github.com/asanchezr/routerfee/internal/model"
)

func TestRenderJSONEnvelope(t *testing.T) {
	var buf bytes.Buffer
	env := model.Envelope{
		Success: true,
		Data: model.DetectResult{
			ChainID:      "eip155:1",
			Router:       "0x3fc91a3afd70395cd496c647d5a6cc9d4b2b7fad",
			Supported:    true,
			Selector:     "0x3593564c",
			CommandCount: 2,
		},
	}
	settings := config.Settings{OutputMode: "json"}

	if err := Render(&buf, env, settings); err != nil {
		t.Fatalf("render: %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("decode output: %v", err)
	}
	if decoded["success"] != true {
		t.Fatalf("expected success=true, got %v", decoded["success"])
	}
	data, ok := decoded["data"].(map[string]any)
	if !ok {
		t.Fatalf("expected data object, got %T", decoded["data"])
	}
	if data["selector"] != "0x3593564c" {
		t.Fatalf("unexpected selector: %v", data["selector"])
	}
}

func TestRenderResultsOnlySelect(t *testing.T) {
	var buf bytes.Buffer
	env := model.Envelope{
		Success: true,
		Data: model.InjectResult{
			Injected: true,
			Strategy: "portion-before-sweep",
			Data:     "0xdeadbeef",
			FeeBps:   25,
		},
	}
	settings := config.Settings{
		OutputMode:   "json",
		ResultsOnly:  true,
		SelectFields: []string{"injected", "strategy"},
	}

	if err := Render(&buf, env, settings); err != nil {
		t.Fatalf("render: %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("decode output: %v", err)
	}
	if len(decoded) != 2 {
		t.Fatalf("expected 2 projected fields, got %v", decoded)
	}
	if decoded["strategy"] != "portion-before-sweep" {
		t.Fatalf("unexpected strategy: %v", decoded["strategy"])
	}
}

func TestRenderPlainList(t *testing.T) {
	var buf bytes.Buffer
	env := model.Envelope{
		Success: true,
		Data: []model.RouterListing{
			{ChainID: "eip155:1", Routers: []string{"0xabc"}, WrappedNative: "0xc02a"},
			{ChainID: "eip155:10", Routers: []string{"0xdef"}, WrappedNative: "0x4200"},
		},
	}
	settings := config.Settings{OutputMode: "plain", ResultsOnly: true}

	if err := Render(&buf, env, settings); err != nil {
		t.Fatalf("render: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d: %q", len(lines), buf.String())
	}
	if !strings.Contains(lines[0], "chain_id=eip155:1") {
		t.Fatalf("expected chain_id in first line, got %q", lines[0])
	}
}

func TestRenderPlainEnvelopeIncludesError(t *testing.T) {
	var buf bytes.Buffer
	env := model.Envelope{
		Success: false,
		Error:   &model.ErrorBody{Code: 11, Message: "bad calldata"},
	}
	settings := config.Settings{OutputMode: "plain"}

	if err := Render(&buf, env, settings); err != nil {
		t.Fatalf("render: %v", err)
	}
	if !strings.Contains(buf.String(), "bad calldata") {
		t.Fatalf("expected error message in plain output, got %q", buf.String())
	}
}
