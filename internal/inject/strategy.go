package inject

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"

	"github.com/asanchezr/routerfee/internal/balpatch"
	"github.com/asanchezr/routerfee/internal/urcodec"
)

// attempt carries the inputs of one strategy invocation. Every strategy
// receives its own clone of the decoded stream; nothing is shared between
// attempts, so a declined strategy leaves no trace.
type attempt struct {
	stream        *urcodec.CommandStream
	router        common.Address
	caller        common.Address
	wrappedNative common.Address
	feeRecipient  common.Address
	feeBps        int
	ownerExtras   []common.Address
	log           zerolog.Logger
}

// rewrite is a successful strategy outcome: the reshaped stream plus the
// number of balance checks that were rescaled alongside it.
type rewrite struct {
	stream         *urcodec.CommandStream
	checksAdjusted int
}

// strategy is one rewrite rule. apply returns nil to decline; the caller
// then tries the next rule in order.
type strategy interface {
	name() string
	apply(a *attempt) *rewrite
}

// orderedStrategies returns the rules in priority order. The order is
// load-bearing: earlier rules produce less invasive rewrites, and which
// shape wins determines how minimums and balance checks are rescaled.
func orderedStrategies() []strategy {
	return []strategy{
		portionBeforeSweep{},
		nativeUnwrapTransfer{},
		swapBeforeUnwrap{},
		tailSwap{},
		transferFallback{},
	}
}

func lastIndex(cmds []urcodec.Command, want urcodec.Command) int {
	for i := len(cmds) - 1; i >= 0; i-- {
		if cmds[i] == want {
			return i
		}
	}
	return -1
}

// hasFeeEntry reports whether the stream already carries an entry of the
// given opcode paying token to recipient. Undecodable entries are skipped;
// they cannot be ours.
func hasFeeEntry(s *urcodec.CommandStream, cmd urcodec.Command, token, recipient common.Address) bool {
	for i, c := range s.Commands {
		if c != cmd {
			continue
		}
		t, r, _, err := urcodec.DecodeTriple(s.Inputs[i])
		if err != nil {
			continue
		}
		if t == token && r == recipient {
			return true
		}
	}
	return false
}

// owners builds the holder candidate set for balance-check rescaling:
// the payout recipient, the transaction sender, the router itself (both
// as the ADDRESS_THIS sentinel and as its literal address), and any
// chain-specific extras.
func (a *attempt) owners(primary common.Address) balpatch.OwnerSet {
	addrs := make([]common.Address, 0, 4+len(a.ownerExtras))
	addrs = append(addrs, primary, a.caller, urcodec.AddressThis, a.router)
	addrs = append(addrs, a.ownerExtras...)
	return balpatch.NewOwnerSet(addrs...)
}

func (a *attempt) feeBpsBig() *big.Int { return big.NewInt(int64(a.feeBps)) }
