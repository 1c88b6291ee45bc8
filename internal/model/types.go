package model

import "time"

const EnvelopeVersion = "v1"

type Envelope struct {
	Version  string       `json:"version"`
	Success  bool         `json:"success"`
	Data     any          `json:"data,omitempty"`
	Error    *ErrorBody   `json:"error"`
	Warnings []string     `json:"warnings,omitempty"`
	Meta     EnvelopeMeta `json:"meta"`
}

type ErrorBody struct {
	Code    int    `json:"code"`
	Type    string `json:"type"`
	Message string `json:"message"`
}

type EnvelopeMeta struct {
	RequestID string      `json:"request_id"`
	Timestamp time.Time   `json:"timestamp"`
	Command   string      `json:"command"`
	Cache     CacheStatus `json:"cache"`
}

type CacheStatus struct {
	Status string `json:"status"`
	AgeMS  int64  `json:"age_ms"`
	Stale  bool   `json:"stale"`
}

// DetectResult reports whether a transaction targets a supported router.
type DetectResult struct {
	ChainID      string `json:"chain_id"`
	Router       string `json:"router"`
	Supported    bool   `json:"supported"`
	Selector     string `json:"selector,omitempty"`
	CommandCount int    `json:"command_count,omitempty"`
}

// StreamCommand is one decoded entry of a router call, for inspection.
type StreamCommand struct {
	Index   int    `json:"index"`
	Opcode  string `json:"opcode"`
	Name    string `json:"name"`
	Input   string `json:"input"`
	Summary string `json:"summary,omitempty"`
}

// InspectResult is the human-readable decode of a router call.
type InspectResult struct {
	Selector string          `json:"selector"`
	Deadline string          `json:"deadline,omitempty"`
	Commands []StreamCommand `json:"commands"`
}

// InjectResult reports the outcome of a fee-injection attempt. Injected
// false with no error means every rewrite rule declined and the original
// transaction should be forwarded as-is.
type InjectResult struct {
	Injected              bool   `json:"injected"`
	Strategy              string `json:"strategy,omitempty"`
	Data                  string `json:"data,omitempty"`
	FeeRecipient          string `json:"fee_recipient,omitempty"`
	FeeBps                int    `json:"fee_bps,omitempty"`
	BalanceChecksAdjusted int    `json:"balance_checks_adjusted,omitempty"`
}

// RouterListing is one chain's allow-list entry set.
type RouterListing struct {
	ChainID       string   `json:"chain_id"`
	Routers       []string `json:"routers"`
	WrappedNative string   `json:"wrapped_native,omitempty"`
	DefaultRPC    string   `json:"default_rpc,omitempty"`
}
