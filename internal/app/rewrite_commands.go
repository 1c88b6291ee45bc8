package app

import (
	"fmt"
	"strings"

	clierr "github.com/asanchezr/routerfee/internal/errors"
	"github.com/asanchezr/routerfee/internal/id"
	"github.com/asanchezr/routerfee/internal/inject"
	"github.com/asanchezr/routerfee/internal/model"
	"github.com/asanchezr/routerfee/internal/urcodec"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/spf13/cobra"
)

func (s *runtimeState) newDetectCommand() *cobra.Command {
	var chainArg, toArg, dataArg string
	cmd := &cobra.Command{
		Use:   "detect",
		Short: "Check whether calldata targets a supported router execute call",
		RunE: func(cmd *cobra.Command, args []string) error {
			chain, err := id.ParseChain(chainArg)
			if err != nil {
				return err
			}
			to, err := id.ParseAddress(toArg)
			if err != nil {
				return err
			}
			data, err := id.ParseHexData(dataArg)
			if err != nil {
				return err
			}

			result := model.DetectResult{
				ChainID: chain.CAIP2,
				Router:  strings.ToLower(to.Hex()),
			}
			tx := inject.Transaction{To: to, Data: data}
			if s.engine.Detect(tx, chain.ChainID) {
				result.Supported = true
				result.Selector = hexutil.Encode(data[:4])
				if stream, err := urcodec.DecodeExecute(data); err == nil {
					result.CommandCount = len(stream.Commands)
				}
			}
			return s.emitSuccess(trimRootPath(cmd.CommandPath()), result, nil, cacheMetaBypass())
		},
	}
	cmd.Flags().StringVar(&chainArg, "chain", "", "Chain identifier (slug, decimal ID, or CAIP-2)")
	cmd.Flags().StringVar(&toArg, "to", "", "Transaction target address")
	cmd.Flags().StringVar(&dataArg, "data", "", "Transaction calldata (0x-prefixed hex)")
	_ = cmd.MarkFlagRequired("chain")
	_ = cmd.MarkFlagRequired("to")
	_ = cmd.MarkFlagRequired("data")
	return cmd
}

func (s *runtimeState) newInspectCommand() *cobra.Command {
	var dataArg string
	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Decode an execute call into its command sequence",
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := id.ParseHexData(dataArg)
			if err != nil {
				return err
			}
			stream, err := urcodec.DecodeExecute(data)
			if err != nil {
				return clierr.Wrap(clierr.CodeUsage, "decode execute call", err)
			}

			result := model.InspectResult{
				Selector: hexutil.Encode(data[:4]),
				Commands: make([]model.StreamCommand, 0, len(stream.Commands)),
			}
			if stream.Deadline != nil {
				result.Deadline = stream.Deadline.String()
			}
			for i, c := range stream.Commands {
				result.Commands = append(result.Commands, model.StreamCommand{
					Index:   i,
					Opcode:  fmt.Sprintf("0x%02x", byte(c)),
					Name:    c.Name(),
					Input:   hexutil.Encode(stream.Inputs[i]),
					Summary: summarizeCommand(c, stream.Inputs[i]),
				})
			}
			return s.emitSuccess(trimRootPath(cmd.CommandPath()), result, nil, cacheMetaBypass())
		},
	}
	cmd.Flags().StringVar(&dataArg, "data", "", "Transaction calldata (0x-prefixed hex)")
	_ = cmd.MarkFlagRequired("data")
	return cmd
}

// summarizeCommand renders a short human summary for the fixed-shape
// inputs; commands with dynamic payloads get no summary.
func summarizeCommand(c urcodec.Command, input []byte) string {
	switch c {
	case urcodec.Sweep, urcodec.Transfer:
		token, recipient, value, err := urcodec.DecodeTriple(input)
		if err != nil {
			return ""
		}
		return fmt.Sprintf("token=%s recipient=%s value=%s",
			strings.ToLower(token.Hex()), strings.ToLower(recipient.Hex()), value.String())
	case urcodec.PayPortion:
		token, recipient, bips, err := urcodec.DecodeTriple(input)
		if err != nil {
			return ""
		}
		return fmt.Sprintf("token=%s recipient=%s bips=%s",
			strings.ToLower(token.Hex()), strings.ToLower(recipient.Hex()), bips.String())
	case urcodec.WrapETH, urcodec.UnwrapWETH:
		recipient, amount, err := urcodec.DecodePair(input)
		if err != nil {
			return ""
		}
		return fmt.Sprintf("recipient=%s amount=%s", strings.ToLower(recipient.Hex()), amount.String())
	case urcodec.BalanceCheckERC20:
		token, owner, minBalance, err := urcodec.DecodeTriple(input)
		if err != nil {
			return ""
		}
		return fmt.Sprintf("token=%s owner=%s min_balance=%s",
			strings.ToLower(token.Hex()), strings.ToLower(owner.Hex()), minBalance.String())
	default:
		if !c.IsExactInSwap() {
			return ""
		}
		swap, err := urcodec.DecodeSwapExactIn(c, input)
		if err != nil {
			return ""
		}
		return fmt.Sprintf("recipient=%s amount_in=%s amount_out_min=%s out_token=%s",
			strings.ToLower(swap.Recipient.Hex()), swap.AmountIn.String(),
			swap.AmountOutMin.String(), strings.ToLower(swap.OutputToken.Hex()))
	}
}

func (s *runtimeState) newInjectCommand() *cobra.Command {
	var chainArg, toArg, fromArg, dataArg string
	cmd := &cobra.Command{
		Use:   "inject",
		Short: "Rewrite execute calldata to divert an operator fee",
		RunE: func(cmd *cobra.Command, args []string) error {
			req, _, err := s.buildInjectRequest(chainArg, toArg, fromArg, dataArg)
			if err != nil {
				return err
			}

			result := model.InjectResult{Injected: false}
			if adapted := s.engine.Adapt(req); adapted != nil {
				result = model.InjectResult{
					Injected:              true,
					Strategy:              adapted.Strategy,
					Data:                  hexutil.Encode(adapted.Data),
					FeeRecipient:          strings.ToLower(req.FeeRecipient.Hex()),
					FeeBps:                req.FeeBps,
					BalanceChecksAdjusted: adapted.BalanceChecksAdjusted,
				}
			}
			return s.emitSuccess(trimRootPath(cmd.CommandPath()), result, nil, cacheMetaBypass())
		},
	}
	cmd.Flags().StringVar(&chainArg, "chain", "", "Chain identifier (slug, decimal ID, or CAIP-2)")
	cmd.Flags().StringVar(&toArg, "to", "", "Transaction target address")
	cmd.Flags().StringVar(&fromArg, "from", "", "Transaction sender address")
	cmd.Flags().StringVar(&dataArg, "data", "", "Transaction calldata (0x-prefixed hex)")
	_ = cmd.MarkFlagRequired("chain")
	_ = cmd.MarkFlagRequired("to")
	_ = cmd.MarkFlagRequired("data")
	return cmd
}

// buildInjectRequest assembles an engine request from CLI inputs plus the
// configured fee policy. The returned chain is the parsed chain for
// callers that need its CAIP-2 form.
func (s *runtimeState) buildInjectRequest(chainArg, toArg, fromArg, dataArg string) (inject.Request, id.Chain, error) {
	req, chain, err := parseCallInputs(chainArg, toArg, fromArg, dataArg)
	if err != nil {
		return inject.Request{}, id.Chain{}, err
	}

	if strings.TrimSpace(s.settings.FeeRecipient) == "" {
		return inject.Request{}, id.Chain{}, clierr.New(clierr.CodeUsage, "fee recipient is not configured (--fee-recipient)")
	}
	feeRecipient, err := id.ParseAddress(s.settings.FeeRecipient)
	if err != nil {
		return inject.Request{}, id.Chain{}, clierr.Wrap(clierr.CodeUsage, "parse configured fee recipient", err)
	}
	if s.settings.FeeBps <= 0 {
		return inject.Request{}, id.Chain{}, clierr.New(clierr.CodeUsage, "fee bps must be positive (--fee-bps)")
	}

	extras := make([]common.Address, 0, len(s.settings.OwnerExtras))
	for _, raw := range s.settings.OwnerExtras {
		addr, err := id.ParseAddress(raw)
		if err != nil {
			return inject.Request{}, id.Chain{}, clierr.Wrap(clierr.CodeUsage, "parse configured owner extra", err)
		}
		extras = append(extras, addr)
	}

	req.FeeRecipient = feeRecipient
	req.FeeBps = s.settings.FeeBps
	req.OwnerExtras = extras
	return req, chain, nil
}

// parseCallInputs parses the shared chain/to/from/data flags into a bare
// engine request with no fee policy attached.
func parseCallInputs(chainArg, toArg, fromArg, dataArg string) (inject.Request, id.Chain, error) {
	chain, err := id.ParseChain(chainArg)
	if err != nil {
		return inject.Request{}, id.Chain{}, err
	}
	to, err := id.ParseAddress(toArg)
	if err != nil {
		return inject.Request{}, id.Chain{}, err
	}
	var from common.Address
	if strings.TrimSpace(fromArg) != "" {
		from, err = id.ParseAddress(fromArg)
		if err != nil {
			return inject.Request{}, id.Chain{}, err
		}
	}
	data, err := id.ParseHexData(dataArg)
	if err != nil {
		return inject.Request{}, id.Chain{}, err
	}
	return inject.Request{
		Tx:      inject.Transaction{To: to, Data: data, From: from},
		ChainID: chain.ChainID,
	}, chain, nil
}
