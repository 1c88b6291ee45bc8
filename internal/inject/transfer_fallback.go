package inject

import (
	"github.com/asanchezr/routerfee/internal/balpatch"
	"github.com/asanchezr/routerfee/internal/bps"
	"github.com/asanchezr/routerfee/internal/urcodec"
)

// transferFallback is the catch-all for sweep-bearing streams nothing
// else claimed: an exact TRANSFER of the fee amount to the fee recipient
// goes in front of the last SWEEP, whose minimum drops accordingly.
type transferFallback struct{}

func (transferFallback) name() string { return "transfer-fallback" }

func (transferFallback) apply(a *attempt) *rewrite {
	sweepIdx := lastIndex(a.stream.Commands, urcodec.Sweep)
	if sweepIdx < 0 {
		return nil
	}
	token, recipient, minOut, err := urcodec.DecodeTriple(a.stream.Inputs[sweepIdx])
	if err != nil {
		return nil
	}
	if hasFeeEntry(a.stream, urcodec.PayPortion, token, a.feeRecipient) ||
		hasFeeEntry(a.stream, urcodec.Transfer, token, a.feeRecipient) {
		return nil
	}

	feeAmount := bps.SeqDelta(minOut, nil, a.feeBps)
	newMin := bps.ApplySequential(minOut, []int{a.feeBps})
	if newMin.Cmp(minOut) == 0 {
		return nil
	}

	out := a.stream.Clone()
	out.Insert(sweepIdx, urcodec.Transfer, urcodec.EncodeTriple(token, a.feeRecipient, feeAmount))
	out.Inputs[sweepIdx+1] = urcodec.EncodeTriple(token, recipient, newMin)

	n := balpatch.AdjustSequential(out.Commands, out.Inputs, token, a.owners(recipient), []int{a.feeBps})
	return &rewrite{stream: out, checksAdjusted: n}
}
