// Package urcodec decodes and re-encodes Universal Router execute calls:
// the parallel opcode/input sequences plus an optional deadline, together
// with the fixed-shape tuple codecs the rewrite strategies operate on.
package urcodec

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// Command is a one-byte Universal Router opcode. Values come from the
// router's published command reference and are matched by exact equality;
// bytes outside the table are carried through untouched.
type Command byte

const (
	V3SwapExactIn            Command = 0x00
	V3SwapExactOut           Command = 0x01
	Permit2TransferFrom      Command = 0x02
	Permit2PermitBatch       Command = 0x03
	Sweep                    Command = 0x04
	Transfer                 Command = 0x05
	PayPortion               Command = 0x06
	V2SwapExactIn            Command = 0x08
	V2SwapExactOut           Command = 0x09
	Permit2Permit            Command = 0x0a
	WrapETH                  Command = 0x0b
	UnwrapWETH               Command = 0x0c
	Permit2TransferFromBatch Command = 0x0d

	// BalanceCheckERC20 asserts a minimum ERC-20 balance for an owner.
	// V4Swap is the v4 batch-swap dispatch. The adjacency of the raw
	// values is coincidence: match by exact equality only, never by
	// range or masking.
	BalanceCheckERC20 Command = 0x0e
	V4Swap            Command = 0x10

	ExecuteSubPlan Command = 0x21
)

// Router address sentinels defined by the protocol: a recipient of
// MsgSender resolves to the caller, AddressThis to the router itself.
var (
	MsgSender   = common.HexToAddress("0x0000000000000000000000000000000000000001")
	AddressThis = common.HexToAddress("0x0000000000000000000000000000000000000002")
)

// NativeToken is the zero address, which the router treats as the native
// currency in SWEEP and TRANSFER inputs.
var NativeToken = common.Address{}

var commandNames = map[Command]string{
	V3SwapExactIn:            "V3_SWAP_EXACT_IN",
	V3SwapExactOut:           "V3_SWAP_EXACT_OUT",
	Permit2TransferFrom:      "PERMIT2_TRANSFER_FROM",
	Permit2PermitBatch:       "PERMIT2_PERMIT_BATCH",
	Sweep:                    "SWEEP",
	Transfer:                 "TRANSFER",
	PayPortion:               "PAY_PORTION",
	V2SwapExactIn:            "V2_SWAP_EXACT_IN",
	V2SwapExactOut:           "V2_SWAP_EXACT_OUT",
	Permit2Permit:            "PERMIT2_PERMIT",
	WrapETH:                  "WRAP_ETH",
	UnwrapWETH:               "UNWRAP_WETH",
	Permit2TransferFromBatch: "PERMIT2_TRANSFER_FROM_BATCH",
	BalanceCheckERC20:        "BALANCE_CHECK_ERC20",
	V4Swap:                   "V4_SWAP",
	ExecuteSubPlan:           "EXECUTE_SUB_PLAN",
}

// Name returns the protocol name for known opcodes and a hex rendering for
// everything else.
func (c Command) Name() string {
	if name, ok := commandNames[c]; ok {
		return name
	}
	return fmt.Sprintf("UNKNOWN_0x%02x", byte(c))
}

// IsSwap reports whether the opcode is one of the v2/v3 swap commands.
func (c Command) IsSwap() bool {
	switch c {
	case V2SwapExactIn, V2SwapExactOut, V3SwapExactIn, V3SwapExactOut:
		return true
	}
	return false
}

// IsExactInSwap reports whether the opcode is a rewritable exact-input
// swap. Exact-output swaps fix the amount received, so their inputs carry
// no minimum-output slot to lower.
func (c Command) IsExactInSwap() bool {
	return c == V2SwapExactIn || c == V3SwapExactIn
}
