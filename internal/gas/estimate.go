// Package gas prices a rewritten transaction before it goes back to the
// wallet. Estimation is advisory: it runs after the rewrite decision and
// its failure never invalidates the rewrite itself.
package gas

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/ethclient"

	clierr "github.com/asanchezr/routerfee/internal/errors"
)

type BlockTag string

const (
	BlockTagLatest  BlockTag = "latest"
	BlockTagPending BlockTag = "pending"
)

type Options struct {
	RPCURL             string
	GasMultiplier      float64
	MaxFeeGwei         string
	MaxPriorityFeeGwei string
	BlockTag           BlockTag
}

func DefaultOptions() Options {
	return Options{
		GasMultiplier: 1.2,
		BlockTag:      BlockTagPending,
	}
}

// Call is the transaction slice needed for pricing.
type Call struct {
	From  common.Address
	To    common.Address
	Data  []byte
	Value *big.Int
}

type Estimate struct {
	EstimatedAt             string `json:"estimated_at"`
	BlockTag                string `json:"block_tag"`
	ChainID                 string `json:"chain_id"`
	GasEstimateRaw          string `json:"gas_estimate_raw"`
	GasLimit                string `json:"gas_limit"`
	BaseFeePerGasWei        string `json:"base_fee_per_gas_wei"`
	MaxPriorityFeePerGasWei string `json:"max_priority_fee_per_gas_wei"`
	MaxFeePerGasWei         string `json:"max_fee_per_gas_wei"`
	EffectiveGasPriceWei    string `json:"effective_gas_price_wei"`
	LikelyFeeWei            string `json:"likely_fee_wei"`
	WorstCaseFeeWei         string `json:"worst_case_fee_wei"`
}

// EstimateCall prices one call against the given RPC endpoint.
func EstimateCall(ctx context.Context, call Call, opts Options) (Estimate, error) {
	if strings.TrimSpace(opts.RPCURL) == "" {
		return Estimate{}, clierr.New(clierr.CodeUsage, "missing rpc url")
	}
	if opts.GasMultiplier <= 1 {
		return Estimate{}, clierr.New(clierr.CodeUsage, "--gas-multiplier must be > 1")
	}
	blockTag, err := normalizeBlockTag(opts.BlockTag)
	if err != nil {
		return Estimate{}, err
	}

	client, err := ethclient.DialContext(ctx, strings.TrimSpace(opts.RPCURL))
	if err != nil {
		return Estimate{}, clierr.Wrap(clierr.CodeUnavailable, "connect rpc", err)
	}
	defer client.Close()

	chainID, err := client.ChainID(ctx)
	if err != nil {
		return Estimate{}, clierr.Wrap(clierr.CodeUnavailable, "read chain id", err)
	}

	rawGas, err := estimateGasWithBlockTag(ctx, client, call, blockTag)
	if err != nil {
		return Estimate{}, clierr.Wrap(clierr.CodeEstimate, "estimate gas", err)
	}
	gasLimit := uint64(float64(rawGas) * opts.GasMultiplier)
	if gasLimit == 0 {
		return Estimate{}, clierr.New(clierr.CodeEstimate, "estimate gas returned zero")
	}

	tipCap, err := resolveTipCap(ctx, client, opts.MaxPriorityFeeGwei)
	if err != nil {
		return Estimate{}, err
	}
	baseFee, err := baseFeeAtBlockTag(ctx, client, blockTag)
	if err != nil {
		return Estimate{}, err
	}
	feeCap, err := resolveFeeCap(baseFee, tipCap, opts.MaxFeeGwei)
	if err != nil {
		return Estimate{}, err
	}

	effectiveGasPrice := new(big.Int).Add(new(big.Int).Set(baseFee), tipCap)
	if effectiveGasPrice.Cmp(feeCap) > 0 {
		effectiveGasPrice = new(big.Int).Set(feeCap)
	}
	gasLimitBI := new(big.Int).SetUint64(gasLimit)
	likelyFee := new(big.Int).Mul(new(big.Int).Set(gasLimitBI), effectiveGasPrice)
	worstFee := new(big.Int).Mul(new(big.Int).Set(gasLimitBI), feeCap)

	return Estimate{
		EstimatedAt:             time.Now().UTC().Format(time.RFC3339),
		BlockTag:                string(blockTag),
		ChainID:                 fmt.Sprintf("eip155:%d", chainID.Int64()),
		GasEstimateRaw:          new(big.Int).SetUint64(rawGas).String(),
		GasLimit:                new(big.Int).SetUint64(gasLimit).String(),
		BaseFeePerGasWei:        baseFee.String(),
		MaxPriorityFeePerGasWei: tipCap.String(),
		MaxFeePerGasWei:         feeCap.String(),
		EffectiveGasPriceWei:    effectiveGasPrice.String(),
		LikelyFeeWei:            likelyFee.String(),
		WorstCaseFeeWei:         worstFee.String(),
	}, nil
}

func normalizeBlockTag(input BlockTag) (BlockTag, error) {
	switch strings.ToLower(strings.TrimSpace(string(input))) {
	case "", string(BlockTagPending):
		return BlockTagPending, nil
	case string(BlockTagLatest):
		return BlockTagLatest, nil
	default:
		return "", clierr.New(clierr.CodeUsage, "--block-tag must be one of: pending,latest")
	}
}

func estimateGasWithBlockTag(ctx context.Context, client *ethclient.Client, call Call, blockTag BlockTag) (uint64, error) {
	arg := map[string]any{
		"from": call.From.Hex(),
		"to":   call.To.Hex(),
	}
	if len(call.Data) > 0 {
		arg["data"] = hexutil.Bytes(call.Data)
	}
	if call.Value != nil {
		arg["value"] = (*hexutil.Big)(call.Value)
	}

	var estimated hexutil.Uint64
	if err := client.Client().CallContext(ctx, &estimated, "eth_estimateGas", arg, string(blockTag)); err != nil {
		// Some endpoints reject the pending tag outright.
		if blockTag == BlockTagPending {
			if retryErr := client.Client().CallContext(ctx, &estimated, "eth_estimateGas", arg, string(BlockTagLatest)); retryErr == nil {
				return uint64(estimated), nil
			}
		}
		return 0, err
	}
	return uint64(estimated), nil
}

func baseFeeAtBlockTag(ctx context.Context, client *ethclient.Client, blockTag BlockTag) (*big.Int, error) {
	var block struct {
		BaseFeePerGas *hexutil.Big `json:"baseFeePerGas"`
	}
	if err := client.Client().CallContext(ctx, &block, "eth_getBlockByNumber", string(blockTag), false); err != nil {
		header, headerErr := client.HeaderByNumber(ctx, nil)
		if headerErr != nil {
			return nil, clierr.Wrap(clierr.CodeUnavailable, "fetch latest header", err)
		}
		if header.BaseFee == nil {
			return big.NewInt(1_000_000_000), nil
		}
		return new(big.Int).Set(header.BaseFee), nil
	}
	if block.BaseFeePerGas == nil {
		return big.NewInt(1_000_000_000), nil
	}
	return new(big.Int).Set((*big.Int)(block.BaseFeePerGas)), nil
}

func resolveTipCap(ctx context.Context, client *ethclient.Client, overrideGwei string) (*big.Int, error) {
	if strings.TrimSpace(overrideGwei) != "" {
		v, err := parseGwei(overrideGwei)
		if err != nil {
			return nil, clierr.Wrap(clierr.CodeUsage, "parse --max-priority-fee-gwei", err)
		}
		return v, nil
	}
	tipCap, err := client.SuggestGasTipCap(ctx)
	if err != nil {
		return big.NewInt(2_000_000_000), nil // 2 gwei fallback
	}
	return tipCap, nil
}

func resolveFeeCap(baseFee, tipCap *big.Int, overrideGwei string) (*big.Int, error) {
	if strings.TrimSpace(overrideGwei) != "" {
		v, err := parseGwei(overrideGwei)
		if err != nil {
			return nil, clierr.Wrap(clierr.CodeUsage, "parse --max-fee-gwei", err)
		}
		if v.Cmp(tipCap) < 0 {
			return nil, clierr.New(clierr.CodeUsage, "--max-fee-gwei must be >= --max-priority-fee-gwei")
		}
		return v, nil
	}
	feeCap := new(big.Int).Mul(baseFee, big.NewInt(2))
	feeCap.Add(feeCap, tipCap)
	return feeCap, nil
}

func parseGwei(v string) (*big.Int, error) {
	clean := strings.TrimSpace(v)
	if clean == "" {
		return nil, fmt.Errorf("empty gwei value")
	}
	rat, ok := new(big.Rat).SetString(clean)
	if !ok {
		return nil, fmt.Errorf("invalid numeric value %q", v)
	}
	if rat.Sign() < 0 {
		return nil, fmt.Errorf("value must be non-negative")
	}
	rat.Mul(rat, big.NewRat(1_000_000_000, 1))
	if !rat.IsInt() {
		return nil, fmt.Errorf("value must resolve to an integer wei amount")
	}
	return new(big.Int).Set(rat.Num()), nil
}
