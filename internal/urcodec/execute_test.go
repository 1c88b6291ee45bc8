package urcodec

import (
	"bytes"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

var (
	testToken     = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	testRecipient = common.HexToAddress("0x00000000000000000000000000000000000000b2")
)

func mustEncode(t *testing.T, s *CommandStream) []byte {
	t.Helper()
	data, err := s.Encode()
	if err != nil {
		t.Fatalf("encode stream: %v", err)
	}
	return data
}

func TestDecodeExecuteRoundTripWithDeadline(t *testing.T) {
	original := &CommandStream{
		Commands: []Command{V3SwapExactIn, Sweep},
		Inputs: [][]byte{
			bytes.Repeat([]byte{0x11}, 5*WordSize),
			EncodeTriple(testToken, testRecipient, big.NewInt(1000)),
		},
		Deadline: big.NewInt(1_700_000_000),
	}
	data := mustEncode(t, original)
	if got := [4]byte(data[:4]); got != SelectorExecuteDeadline {
		t.Fatalf("expected deadline selector, got %x", got)
	}

	decoded, err := DecodeExecute(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.Deadline == nil || decoded.Deadline.Cmp(original.Deadline) != 0 {
		t.Fatalf("deadline not preserved: %v", decoded.Deadline)
	}
	if len(decoded.Commands) != 2 || decoded.Commands[1] != Sweep {
		t.Fatalf("unexpected commands: %v", decoded.Commands)
	}

	reencoded := mustEncode(t, decoded)
	if !bytes.Equal(data, reencoded) {
		t.Fatalf("round trip diverged:\n  in:  %x\n  out: %x", data, reencoded)
	}
}

func TestDecodeExecuteRoundTripWithoutDeadline(t *testing.T) {
	original := &CommandStream{
		Commands: []Command{V2SwapExactIn},
		Inputs:   [][]byte{bytes.Repeat([]byte{0x22}, 6*WordSize)},
	}
	data := mustEncode(t, original)
	if got := [4]byte(data[:4]); got != SelectorExecute {
		t.Fatalf("expected plain selector, got %x", got)
	}

	decoded, err := DecodeExecute(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.Deadline != nil {
		t.Fatalf("two-argument form should carry no deadline, got %v", decoded.Deadline)
	}
	if !bytes.Equal(data, mustEncode(t, decoded)) {
		t.Fatal("round trip diverged for two-argument form")
	}
}

func TestDecodeExecuteRejectsForeignSelector(t *testing.T) {
	data := append([]byte{0xa9, 0x05, 0x9c, 0xbb}, make([]byte, 64)...)
	if _, err := DecodeExecute(data); err != ErrNotExecuteCall {
		t.Fatalf("expected ErrNotExecuteCall, got %v", err)
	}
	if _, err := DecodeExecute([]byte{0x35}); err != ErrNotExecuteCall {
		t.Fatalf("expected ErrNotExecuteCall for short data, got %v", err)
	}
}

func TestDecodeExecuteRejectsMalformedArguments(t *testing.T) {
	data := append(SelectorExecuteDeadline[:], bytes.Repeat([]byte{0xff}, 32)...)
	if _, err := DecodeExecute(data); err == nil {
		t.Fatal("expected malformed-call error")
	}
}

func TestInsertKeepsAlignment(t *testing.T) {
	s := &CommandStream{
		Commands: []Command{V3SwapExactIn, Sweep},
		Inputs:   [][]byte{{0x01}, {0x02}},
	}
	s.Insert(1, PayPortion, []byte{0x03})
	if len(s.Commands) != len(s.Inputs) {
		t.Fatalf("commands/inputs out of sync: %d vs %d", len(s.Commands), len(s.Inputs))
	}
	wantCmds := []Command{V3SwapExactIn, PayPortion, Sweep}
	for i, c := range wantCmds {
		if s.Commands[i] != c {
			t.Fatalf("command %d = %s, want %s", i, s.Commands[i].Name(), c.Name())
		}
	}
	if s.Inputs[1][0] != 0x03 || s.Inputs[2][0] != 0x02 {
		t.Fatalf("inputs misplaced after insert: %v", s.Inputs)
	}
}

func TestCloneIsIndependent(t *testing.T) {
	s := &CommandStream{
		Commands: []Command{Sweep},
		Inputs:   [][]byte{{0x01}},
	}
	c := s.Clone()
	c.Append(PayPortion, []byte{0x02})
	c.Inputs[0] = []byte{0xff}
	if len(s.Commands) != 1 || s.Inputs[0][0] != 0x01 {
		t.Fatal("clone mutation leaked into the original stream")
	}
}

func TestCommandNames(t *testing.T) {
	if BalanceCheckERC20.Name() != "BALANCE_CHECK_ERC20" {
		t.Fatalf("unexpected name: %s", BalanceCheckERC20.Name())
	}
	if V4Swap.Name() != "V4_SWAP" {
		t.Fatalf("unexpected name: %s", V4Swap.Name())
	}
	if Command(0x7f).Name() != "UNKNOWN_0x7f" {
		t.Fatalf("unexpected name for unknown byte: %s", Command(0x7f).Name())
	}
}
