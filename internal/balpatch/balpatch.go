// Package balpatch rescales minimum-balance assertions so they stay
// satisfiable after a fee has reduced the balance they guard.
package balpatch

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/asanchezr/routerfee/internal/bps"
	"github.com/asanchezr/routerfee/internal/urcodec"
)

// OwnerSet is the set of addresses recognized as legitimate holders when a
// balance check is considered for scaling.
type OwnerSet map[common.Address]struct{}

// NewOwnerSet builds an owner set, skipping zero addresses.
func NewOwnerSet(addrs ...common.Address) OwnerSet {
	set := make(OwnerSet, len(addrs))
	for _, a := range addrs {
		if a == (common.Address{}) {
			continue
		}
		set[a] = struct{}{}
	}
	return set
}

// Contains reports membership.
func (s OwnerSet) Contains(a common.Address) bool {
	_, ok := s[a]
	return ok
}

// AdjustSequential scales the minimum of every BALANCE_CHECK_ERC20 entry
// that references token and a recognized owner by the sequential factor of
// bpsList, replacing the entry's input blob in place in the inputs slice.
// The primary path decodes the input as a (token, owner, minBalance)
// triple; inputs of any other length get a best-effort word scan instead.
// It returns the number of minimums rewritten, a diagnostic count only.
func AdjustSequential(cmds []urcodec.Command, inputs [][]byte, token common.Address, owners OwnerSet, bpsList []int) int {
	adjusted := 0
	for i, cmd := range cmds {
		// Exact match only: the v4 batch-swap opcode is a different
		// command even though its byte value sits nearby.
		if cmd != urcodec.BalanceCheckERC20 || i >= len(inputs) {
			continue
		}
		checkToken, owner, minBalance, err := urcodec.DecodeTriple(inputs[i])
		if err == nil {
			if checkToken != token || !owners.Contains(owner) {
				continue
			}
			newMin := bps.ApplySequential(minBalance, bpsList)
			if newMin.Cmp(minBalance) != 0 {
				inputs[i] = urcodec.EncodeTriple(checkToken, owner, newMin)
				adjusted++
			}
			continue
		}
		if patched, n := scanWords(inputs[i], token, owners, bpsList); n > 0 {
			inputs[i] = patched
			adjusted += n
		}
	}
	return adjusted
}

// scanWords is the heuristic fallback for inputs that are not a plain
// triple: any (token, owner) word pair is treated as preceding a
// minimum-balance slot. This is a pattern match, not a structural
// guarantee; zero matches is a valid outcome and nothing here can fail.
func scanWords(input []byte, token common.Address, owners OwnerSet, bpsList []int) ([]byte, int) {
	count := urcodec.WordCount(input)
	if count < 3 {
		return input, 0
	}
	patched := input
	adjusted := 0
	for i := 0; i+2 < count; i++ {
		tokenWord, _ := urcodec.Word(patched, i)
		if urcodec.WordAddress(tokenWord) != token {
			continue
		}
		ownerWord, _ := urcodec.Word(patched, i+1)
		if !owners.Contains(urcodec.WordAddress(ownerWord)) {
			continue
		}
		minWord, _ := urcodec.Word(patched, i+2)
		minBalance := new(big.Int).SetBytes(minWord)
		newMin := bps.ApplySequential(minBalance, bpsList)
		if newMin.Cmp(minBalance) == 0 {
			continue
		}
		patched = urcodec.WithWord(patched, i+2, urcodec.UintWord(newMin))
		adjusted++
	}
	return patched, adjusted
}
