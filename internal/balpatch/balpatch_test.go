package balpatch

import (
	"bytes"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"github.com/asanchezr/routerfee/internal/urcodec"
)

var (
	patchToken = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	patchOwner = common.HexToAddress("0x00000000000000000000000000000000000000b2")
	otherAddr  = common.HexToAddress("0x00000000000000000000000000000000000000c3")
)

func TestAdjustSequentialScalesMatchingTriple(t *testing.T) {
	cmds := []urcodec.Command{urcodec.V3SwapExactIn, urcodec.BalanceCheckERC20}
	inputs := [][]byte{
		bytes.Repeat([]byte{0x11}, 5*urcodec.WordSize),
		urcodec.EncodeTriple(patchToken, patchOwner, big.NewInt(200)),
	}
	n := AdjustSequential(cmds, inputs, patchToken, NewOwnerSet(patchOwner), []int{50})
	if n != 1 {
		t.Fatalf("adjusted = %d, want 1", n)
	}
	_, _, minBalance, err := urcodec.DecodeTriple(inputs[1])
	if err != nil {
		t.Fatalf("decode patched triple: %v", err)
	}
	if minBalance.Int64() != 199 { // floor(200*9950/10000)
		t.Fatalf("minBalance = %s, want 199", minBalance)
	}
}

func TestAdjustSequentialIgnoresOtherTokenAndOwner(t *testing.T) {
	cmds := []urcodec.Command{urcodec.BalanceCheckERC20, urcodec.BalanceCheckERC20}
	inputs := [][]byte{
		urcodec.EncodeTriple(otherAddr, patchOwner, big.NewInt(100)),
		urcodec.EncodeTriple(patchToken, otherAddr, big.NewInt(100)),
	}
	before0 := append([]byte{}, inputs[0]...)
	before1 := append([]byte{}, inputs[1]...)
	if n := AdjustSequential(cmds, inputs, patchToken, NewOwnerSet(patchOwner), []int{50}); n != 0 {
		t.Fatalf("adjusted = %d, want 0", n)
	}
	if !bytes.Equal(inputs[0], before0) || !bytes.Equal(inputs[1], before1) {
		t.Fatal("non-matching checks must not be rewritten")
	}
}

func TestAdjustSequentialNeverTouchesOtherOpcodes(t *testing.T) {
	// The v4 batch-swap opcode must not be treated as a balance check
	// even though its input happens to decode as a matching triple.
	cmds := []urcodec.Command{urcodec.V4Swap}
	inputs := [][]byte{urcodec.EncodeTriple(patchToken, patchOwner, big.NewInt(100))}
	before := append([]byte{}, inputs[0]...)
	if n := AdjustSequential(cmds, inputs, patchToken, NewOwnerSet(patchOwner), []int{50}); n != 0 {
		t.Fatalf("adjusted = %d, want 0", n)
	}
	if !bytes.Equal(inputs[0], before) {
		t.Fatal("V4_SWAP input was rewritten")
	}
}

func TestAdjustSequentialHeuristicWordScan(t *testing.T) {
	// Five words: junk, token, owner, min, junk. Not a triple, so the
	// word scan has to find the pattern.
	blob := bytes.Join([][]byte{
		urcodec.UintWord(big.NewInt(7)),
		urcodec.AddressWord(patchToken),
		urcodec.AddressWord(patchOwner),
		urcodec.UintWord(big.NewInt(1000)),
		urcodec.UintWord(big.NewInt(9)),
	}, nil)
	cmds := []urcodec.Command{urcodec.BalanceCheckERC20}
	inputs := [][]byte{blob}
	if n := AdjustSequential(cmds, inputs, patchToken, NewOwnerSet(patchOwner), []int{100, 50}); n != 1 {
		t.Fatalf("adjusted = %d, want 1", n)
	}
	word, _ := urcodec.Word(inputs[0], 3)
	if got := new(big.Int).SetBytes(word).Int64(); got != 985 {
		t.Fatalf("scanned minimum = %d, want 985", got)
	}
	// Neighbouring words stay untouched.
	word, _ = urcodec.Word(inputs[0], 4)
	if new(big.Int).SetBytes(word).Int64() != 9 {
		t.Fatal("word after the minimum slot was modified")
	}
}

func TestAdjustSequentialHeuristicMissIsSilent(t *testing.T) {
	blob := bytes.Repeat([]byte{0xee}, 4*urcodec.WordSize)
	cmds := []urcodec.Command{urcodec.BalanceCheckERC20}
	inputs := [][]byte{blob}
	before := append([]byte{}, blob...)
	if n := AdjustSequential(cmds, inputs, patchToken, NewOwnerSet(patchOwner), []int{50}); n != 0 {
		t.Fatalf("adjusted = %d, want 0", n)
	}
	if !bytes.Equal(inputs[0], before) {
		t.Fatal("miss must leave the blob untouched")
	}

	// Short blobs are likewise a silent no-op.
	inputs = [][]byte{{0x01, 0x02}}
	if n := AdjustSequential(cmds, inputs, patchToken, NewOwnerSet(patchOwner), []int{50}); n != 0 {
		t.Fatalf("adjusted = %d, want 0", n)
	}
}

func TestNewOwnerSetSkipsZeroAddress(t *testing.T) {
	set := NewOwnerSet(common.Address{}, patchOwner)
	if set.Contains(common.Address{}) {
		t.Fatal("zero address must never be an owner candidate")
	}
	if !set.Contains(patchOwner) {
		t.Fatal("owner missing from set")
	}
}
