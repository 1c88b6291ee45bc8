package inject

import (
	"github.com/asanchezr/routerfee/internal/balpatch"
	"github.com/asanchezr/routerfee/internal/bps"
	"github.com/asanchezr/routerfee/internal/urcodec"
)

// tailSwap handles streams that end on an exact-in swap paying the user
// directly, with no SWEEP anywhere to hang a fee on. The swap is
// redirected to the router, then a PAY_PORTION and a SWEEP back to the
// original recipient are appended.
type tailSwap struct{}

func (tailSwap) name() string { return "tail-swap" }

func (tailSwap) apply(a *attempt) *rewrite {
	if lastIndex(a.stream.Commands, urcodec.Sweep) >= 0 {
		return nil
	}
	last := len(a.stream.Commands) - 1
	if last < 0 || !a.stream.Commands[last].IsExactInSwap() {
		return nil
	}
	swap, err := urcodec.DecodeSwapExactIn(a.stream.Commands[last], a.stream.Inputs[last])
	if err != nil {
		return nil
	}
	if swap.Recipient == urcodec.AddressThis {
		// Output already parked at the router; the real payout recipient
		// is unknown, so there is nowhere safe to sweep to.
		return nil
	}
	if hasFeeEntry(a.stream, urcodec.PayPortion, swap.OutputToken, a.feeRecipient) ||
		hasFeeEntry(a.stream, urcodec.Transfer, swap.OutputToken, a.feeRecipient) {
		return nil
	}

	newMin := bps.ApplySequential(swap.AmountOutMin, []int{a.feeBps})
	if newMin.Cmp(swap.AmountOutMin) == 0 {
		return nil
	}

	out := a.stream.Clone()
	out.Inputs[last] = swap.Rewrite(urcodec.AddressThis, newMin)
	out.Append(urcodec.PayPortion, urcodec.EncodeTriple(swap.OutputToken, a.feeRecipient, a.feeBpsBig()))
	out.Append(urcodec.Sweep, urcodec.EncodeTriple(swap.OutputToken, swap.Recipient, newMin))

	n := balpatch.AdjustSequential(out.Commands, out.Inputs, swap.OutputToken, a.owners(swap.Recipient), []int{a.feeBps})
	return &rewrite{stream: out, checksAdjusted: n}
}
