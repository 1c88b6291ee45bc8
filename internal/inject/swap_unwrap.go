package inject

import (
	"github.com/ethereum/go-ethereum/common"

	"github.com/asanchezr/routerfee/internal/balpatch"
	"github.com/asanchezr/routerfee/internal/bps"
	"github.com/asanchezr/routerfee/internal/urcodec"
)

// swapBeforeUnwrap targets the swap-then-unwrap tail shape: an exact-in
// swap whose wrapped-native output feeds directly into UNWRAP_WETH. The
// swap is redirected to the router, a PAY_PORTION skims the wrapped
// balance, and both minimums are lowered by the fee factor.
type swapBeforeUnwrap struct{}

func (swapBeforeUnwrap) name() string { return "swap-before-unwrap" }

func (swapBeforeUnwrap) apply(a *attempt) *rewrite {
	if a.wrappedNative == (common.Address{}) {
		return nil
	}
	swapIdx := -1
	for i := len(a.stream.Commands) - 2; i >= 0; i-- {
		if a.stream.Commands[i].IsExactInSwap() && a.stream.Commands[i+1] == urcodec.UnwrapWETH {
			swapIdx = i
			break
		}
	}
	if swapIdx < 0 {
		return nil
	}
	swap, err := urcodec.DecodeSwapExactIn(a.stream.Commands[swapIdx], a.stream.Inputs[swapIdx])
	if err != nil {
		return nil
	}
	if swap.OutputToken != a.wrappedNative {
		return nil
	}
	if hasFeeEntry(a.stream, urcodec.PayPortion, a.wrappedNative, a.feeRecipient) ||
		hasFeeEntry(a.stream, urcodec.Transfer, a.wrappedNative, a.feeRecipient) {
		return nil
	}
	unwrapRecipient, unwrapMin, err := urcodec.DecodePair(a.stream.Inputs[swapIdx+1])
	if err != nil {
		return nil
	}

	newSwapMin := bps.ApplySequential(swap.AmountOutMin, []int{a.feeBps})
	if newSwapMin.Cmp(swap.AmountOutMin) == 0 {
		return nil
	}
	newUnwrapMin := bps.ApplySequential(unwrapMin, []int{a.feeBps})

	out := a.stream.Clone()
	out.Inputs[swapIdx] = swap.Rewrite(urcodec.AddressThis, newSwapMin)
	out.Insert(swapIdx+1, urcodec.PayPortion, urcodec.EncodeTriple(a.wrappedNative, a.feeRecipient, a.feeBpsBig()))
	out.Inputs[swapIdx+2] = urcodec.EncodePair(unwrapRecipient, newUnwrapMin)

	n := balpatch.AdjustSequential(out.Commands, out.Inputs, a.wrappedNative, a.owners(unwrapRecipient), []int{a.feeBps})
	return &rewrite{stream: out, checksAdjusted: n}
}
