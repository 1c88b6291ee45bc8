package app

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	clierr "github.com/asanchezr/routerfee/internal/errors"
	"github.com/asanchezr/routerfee/internal/gas"
	"github.com/asanchezr/routerfee/internal/id"
	"github.com/asanchezr/routerfee/internal/inject"
	"github.com/asanchezr/routerfee/internal/registry"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/spf13/cobra"
)

func (s *runtimeState) newEstimateCommand() *cobra.Command {
	var chainArg, toArg, fromArg, dataArg string
	var rpcURL, maxFeeGwei, maxPriorityFeeGwei, blockTag string
	var gasMultiplier float64
	var raw bool
	cmd := &cobra.Command{
		Use:   "estimate",
		Short: "Price a router call, preferring the fee-injected calldata",
		RunE: func(cmd *cobra.Command, args []string) error {
			strategy := ""
			warnings := []string{}
			var req inject.Request
			var chain id.Chain
			var err error
			if raw {
				req, chain, err = parseCallInputs(chainArg, toArg, fromArg, dataArg)
				if err != nil {
					return err
				}
			} else {
				req, chain, err = s.buildInjectRequest(chainArg, toArg, fromArg, dataArg)
				if err != nil {
					return err
				}
			}

			data := req.Tx.Data
			if !raw {
				if adapted := s.engine.Adapt(req); adapted != nil {
					data = adapted.Data
					strategy = adapted.Strategy
				} else {
					warnings = append(warnings, "no rewrite strategy applied; pricing original calldata")
				}
			}

			url := rpcURL
			if url == "" {
				url = s.settings.RPCURLOverrides[chain.ChainID]
			}
			url, err = registry.ResolveRPCURL(url, chain.ChainID)
			if err != nil {
				return clierr.Wrap(clierr.CodeUsage, "resolve rpc url", err)
			}

			opts := gas.DefaultOptions()
			opts.RPCURL = url
			if gasMultiplier > 0 {
				opts.GasMultiplier = gasMultiplier
			}
			opts.MaxFeeGwei = maxFeeGwei
			opts.MaxPriorityFeeGwei = maxPriorityFeeGwei
			if blockTag != "" {
				opts.BlockTag = gas.BlockTag(blockTag)
			}

			call := gas.Call{From: req.Tx.From, To: req.Tx.To, Data: data}
			sum := sha256.Sum256(data)
			fingerprint := quoteFingerprint(trimRootPath(cmd.CommandPath()), map[string]any{
				"chain":     chain.CAIP2,
				"to":        strings.ToLower(req.Tx.To.Hex()),
				"from":      strings.ToLower(req.Tx.From.Hex()),
				"data":      hex.EncodeToString(sum[:]),
				"block_tag": string(opts.BlockTag),
				"max_fee":   opts.MaxFeeGwei,
				"max_tip":   opts.MaxPriorityFeeGwei,
				"mult":      opts.GasMultiplier,
			})
			return s.runQuotedCommand(trimRootPath(cmd.CommandPath()), chain.CAIP2, fingerprint, strategy, 15*time.Second, func(ctx context.Context) (any, []string, error) {
				estimate, err := gas.EstimateCall(ctx, call, opts)
				if err != nil {
					return nil, warnings, err
				}
				payload := map[string]any{
					"estimate": estimate,
					"data":     hexutil.Encode(data),
				}
				if strategy != "" {
					payload["strategy"] = strategy
				}
				return payload, warnings, nil
			})
		},
	}
	cmd.Flags().StringVar(&chainArg, "chain", "", "Chain identifier (slug, decimal ID, or CAIP-2)")
	cmd.Flags().StringVar(&toArg, "to", "", "Transaction target address")
	cmd.Flags().StringVar(&fromArg, "from", "", "Transaction sender address")
	cmd.Flags().StringVar(&dataArg, "data", "", "Transaction calldata (0x-prefixed hex)")
	cmd.Flags().StringVar(&rpcURL, "rpc-url", "", "JSON-RPC endpoint override")
	cmd.Flags().Float64Var(&gasMultiplier, "gas-multiplier", 0, "Gas limit headroom multiplier (> 1)")
	cmd.Flags().StringVar(&maxFeeGwei, "max-fee-gwei", "", "Max fee per gas override, in gwei")
	cmd.Flags().StringVar(&maxPriorityFeeGwei, "max-priority-fee-gwei", "", "Max priority fee override, in gwei")
	cmd.Flags().StringVar(&blockTag, "block-tag", "", "Block tag for estimation (latest|pending)")
	cmd.Flags().BoolVar(&raw, "raw", false, "Price the original calldata without attempting a rewrite")
	_ = cmd.MarkFlagRequired("chain")
	_ = cmd.MarkFlagRequired("to")
	_ = cmd.MarkFlagRequired("data")
	return cmd
}
