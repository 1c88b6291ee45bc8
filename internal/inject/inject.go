// Package inject rewrites batch-router call data so a basis-point fee is
// diverted to an operator address, leaving the swap's observable behavior
// otherwise unchanged apart from the deducted fee. Every call is a pure
// transformation of one transaction's data field; any failure along the
// way converges to "leave the transaction alone".
package inject

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"

	"github.com/asanchezr/routerfee/internal/bps"
	"github.com/asanchezr/routerfee/internal/urcodec"
)

// Directory resolves the per-chain protocol constants the engine consumes:
// which addresses are genuine routers and what the chain's wrapped-native
// asset is.
type Directory interface {
	IsRouter(chainID uint64, addr common.Address) bool
	WrappedNative(chainID uint64) common.Address
}

// Transaction is the slice of a wallet signing request the engine reads.
// Only Data is ever replaced; every other field passes through untouched.
type Transaction struct {
	To   common.Address
	Data []byte
	From common.Address
	Gas  uint64
}

// Request is one fee-injection call.
type Request struct {
	Tx           Transaction
	ChainID      uint64
	FeeRecipient common.Address
	FeeBps       int
	OwnerExtras  []common.Address
}

// Result is a successful rewrite. Data is the replacement call data;
// Strategy names the rule that produced it.
type Result struct {
	Data                  []byte
	Strategy              string
	BalanceChecksAdjusted int
}

// Engine runs the rewrite rules against incoming transactions. It holds
// no mutable state; concurrent Adapt calls need no coordination.
type Engine struct {
	dir Directory
	log zerolog.Logger
}

// New builds an engine over the given directory.
func New(dir Directory, log zerolog.Logger) *Engine {
	return &Engine{dir: dir, log: log}
}

// Detect reports whether a transaction is an execute call to a known
// router on the given chain. It decodes the call data fully, so a true
// result means Adapt will at least get to try its strategies.
func (e *Engine) Detect(tx Transaction, chainID uint64) bool {
	if !e.dir.IsRouter(chainID, tx.To) {
		return false
	}
	_, err := urcodec.DecodeExecute(tx.Data)
	return err == nil
}

// Adapt tries the rewrite rules in priority order and returns the first
// successful replacement, or nil when every rule declines. A nil result
// means the caller forwards the original transaction unmodified.
func (e *Engine) Adapt(req Request) *Result {
	feeBps := bps.Clamp(req.FeeBps)
	if feeBps == 0 || req.FeeRecipient == (common.Address{}) {
		return nil
	}
	if !e.dir.IsRouter(req.ChainID, req.Tx.To) {
		return nil
	}
	stream, err := urcodec.DecodeExecute(req.Tx.Data)
	if err != nil {
		return nil
	}

	log := e.log.With().
		Uint64("chain_id", req.ChainID).
		Str("router", req.Tx.To.Hex()).
		Int("fee_bps", feeBps).
		Logger()

	for _, s := range orderedStrategies() {
		a := &attempt{
			stream:        stream.Clone(),
			router:        req.Tx.To,
			caller:        req.Tx.From,
			wrappedNative: e.dir.WrappedNative(req.ChainID),
			feeRecipient:  req.FeeRecipient,
			feeBps:        feeBps,
			ownerExtras:   req.OwnerExtras,
			log:           log,
		}
		rw := s.apply(a)
		if rw == nil {
			log.Debug().Str("strategy", s.name()).Msg("strategy declined")
			continue
		}
		data, err := rw.stream.Encode()
		if err != nil {
			// An unencodable rewrite is a bug in the strategy, not in the
			// transaction. Skip it rather than corrupt the call.
			log.Error().Err(err).Str("strategy", s.name()).Msg("rewrite failed to encode")
			continue
		}
		log.Info().
			Str("strategy", s.name()).
			Int("balance_checks", rw.checksAdjusted).
			Msg("fee injected")
		return &Result{
			Data:                  data,
			Strategy:              s.name(),
			BalanceChecksAdjusted: rw.checksAdjusted,
		}
	}
	return nil
}
