package inject

import (
	"github.com/ethereum/go-ethereum/common"

	"github.com/asanchezr/routerfee/internal/balpatch"
	"github.com/asanchezr/routerfee/internal/bps"
	"github.com/asanchezr/routerfee/internal/urcodec"
)

// nativeUnwrapTransfer handles streams whose last SWEEP pays out the
// native token. A native sweep cannot carry a portion before it, so the
// sweep is split instead: an exact TRANSFER of the wrapped token to the
// fee recipient, then an UNWRAP_WETH paying the user the lowered minimum.
type nativeUnwrapTransfer struct{}

func (nativeUnwrapTransfer) name() string { return "unwrap-transfer" }

func (nativeUnwrapTransfer) apply(a *attempt) *rewrite {
	sweepIdx := lastIndex(a.stream.Commands, urcodec.Sweep)
	if sweepIdx < 0 {
		return nil
	}
	token, recipient, minOut, err := urcodec.DecodeTriple(a.stream.Inputs[sweepIdx])
	if err != nil {
		return nil
	}
	if token != urcodec.NativeToken {
		return nil
	}
	if a.wrappedNative == (common.Address{}) {
		// No wrapped asset known for this chain.
		return nil
	}
	if hasFeeEntry(a.stream, urcodec.Transfer, a.wrappedNative, a.feeRecipient) ||
		hasFeeEntry(a.stream, urcodec.PayPortion, a.wrappedNative, a.feeRecipient) {
		return nil
	}

	feeAmount := bps.SeqDelta(minOut, nil, a.feeBps)
	newMin := bps.ApplySequential(minOut, []int{a.feeBps})
	if newMin.Cmp(minOut) == 0 {
		return nil
	}

	out := a.stream.Clone()
	out.Commands[sweepIdx] = urcodec.Transfer
	out.Inputs[sweepIdx] = urcodec.EncodeTriple(a.wrappedNative, a.feeRecipient, feeAmount)
	out.Insert(sweepIdx+1, urcodec.UnwrapWETH, urcodec.EncodePair(recipient, newMin))

	n := balpatch.AdjustSequential(out.Commands, out.Inputs, a.wrappedNative, a.owners(recipient), []int{a.feeBps})
	return &rewrite{stream: out, checksAdjusted: n}
}
