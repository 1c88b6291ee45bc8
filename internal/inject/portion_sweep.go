package inject

import (
	"github.com/asanchezr/routerfee/internal/balpatch"
	"github.com/asanchezr/routerfee/internal/bps"
	"github.com/asanchezr/routerfee/internal/urcodec"
)

// portionBeforeSweep inserts a PAY_PORTION for the fee recipient in front
// of the stream's last ERC-20 SWEEP and lowers the sweep minimum by the
// compounded fee factor. Fee layers already present for the same token
// keep their position; ours goes after the last of them.
type portionBeforeSweep struct{}

func (portionBeforeSweep) name() string { return "portion-before-sweep" }

func (portionBeforeSweep) apply(a *attempt) *rewrite {
	sweepIdx := lastIndex(a.stream.Commands, urcodec.Sweep)
	if sweepIdx < 0 {
		return nil
	}
	token, recipient, minOut, err := urcodec.DecodeTriple(a.stream.Inputs[sweepIdx])
	if err != nil {
		return nil
	}
	if token == urcodec.NativeToken {
		// Native sweeps belong to the unwrap rewrite.
		return nil
	}
	if hasFeeEntry(a.stream, urcodec.Transfer, token, a.feeRecipient) {
		return nil
	}

	priorBps := make([]int, 0, 2)
	insertAt := sweepIdx
	for i := 0; i < sweepIdx; i++ {
		if a.stream.Commands[i] != urcodec.PayPortion {
			continue
		}
		t, r, bips, err := urcodec.DecodeTriple(a.stream.Inputs[i])
		if err != nil || t != token {
			continue
		}
		if r == a.feeRecipient {
			// Already fee-injected.
			return nil
		}
		priorBps = append(priorBps, bps.ClampBig(bips))
		insertAt = i + 1
	}

	allBps := append(priorBps, a.feeBps)
	newMin := bps.ApplySequential(minOut, allBps)
	if newMin.Cmp(minOut) == 0 {
		return nil
	}

	out := a.stream.Clone()
	out.Insert(insertAt, urcodec.PayPortion, urcodec.EncodeTriple(token, a.feeRecipient, a.feeBpsBig()))
	out.Inputs[sweepIdx+1] = urcodec.EncodeTriple(token, recipient, newMin)

	n := balpatch.AdjustSequential(out.Commands, out.Inputs, token, a.owners(recipient), allBps)
	return &rewrite{stream: out, checksAdjusted: n}
}
