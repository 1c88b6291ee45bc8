// Package bps implements clamped basis-point arithmetic with sequential
// (compounding) rounding semantics: every cut floors on the already-reduced
// amount, which is not equivalent to summing rates and applying once.
package bps

import "math/big"

// Denominator is the basis-point scale: 10000 bps == 100%.
const Denominator = 10000

var denominator = big.NewInt(Denominator)

// Clamp floors v into the valid basis-point range [0, 10000].
func Clamp(v int) int {
	if v < 0 {
		return 0
	}
	if v > Denominator {
		return Denominator
	}
	return v
}

// ClampBig clamps an untrusted on-chain bips value into [0, 10000].
// Values that do not fit an int64 are saturated at the denominator.
func ClampBig(v *big.Int) int {
	if v == nil || v.Sign() < 0 {
		return 0
	}
	if !v.IsInt64() || v.Int64() > Denominator {
		return Denominator
	}
	return int(v.Int64())
}

// ApplySequential applies each cut in list order with floor rounding:
// amount = floor(amount * (10000 - bps) / 10000) per step. Order matters for
// low-decimal tokens, where the rounding error compounds. The input amount is
// never mutated; a nil amount is treated as zero.
func ApplySequential(amount *big.Int, bpsList []int) *big.Int {
	out := new(big.Int)
	if amount == nil {
		return out
	}
	out.Set(amount)
	for _, b := range bpsList {
		keep := big.NewInt(int64(Denominator - Clamp(b)))
		out.Mul(out, keep)
		out.Quo(out, denominator)
	}
	return out
}

// SeqDelta returns the exact amount a new fee layer extracts under the
// sequential model: ApplySequential(amount, prior) minus
// ApplySequential(amount, prior + [ours]).
func SeqDelta(amount *big.Int, prior []int, ours int) *big.Int {
	before := ApplySequential(amount, prior)
	after := ApplySequential(amount, append(append([]int{}, prior...), ours))
	return before.Sub(before, after)
}
