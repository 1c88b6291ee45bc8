// Package id parses the chain, address and calldata identifier formats
// accepted on the command line.
package id

import (
	"encoding/hex"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	clierr "github.com/asanchezr/routerfee/internal/errors"
)

var (
	eip155ChainPattern = regexp.MustCompile(`^eip155:[0-9]+$`)
	evmAddressPattern  = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)
)

type Chain struct {
	Name    string
	Slug    string
	CAIP2   string
	ChainID uint64
}

var chainBySlug = map[string]Chain{
	"ethereum":  {Name: "Ethereum", Slug: "ethereum", CAIP2: "eip155:1", ChainID: 1},
	"mainnet":   {Name: "Ethereum", Slug: "ethereum", CAIP2: "eip155:1", ChainID: 1},
	"optimism":  {Name: "Optimism", Slug: "optimism", CAIP2: "eip155:10", ChainID: 10},
	"bsc":       {Name: "BSC", Slug: "bsc", CAIP2: "eip155:56", ChainID: 56},
	"polygon":   {Name: "Polygon", Slug: "polygon", CAIP2: "eip155:137", ChainID: 137},
	"base":      {Name: "Base", Slug: "base", CAIP2: "eip155:8453", ChainID: 8453},
	"arbitrum":  {Name: "Arbitrum", Slug: "arbitrum", CAIP2: "eip155:42161", ChainID: 42161},
	"avalanche": {Name: "Avalanche", Slug: "avalanche", CAIP2: "eip155:43114", ChainID: 43114},
}

// ParseChain accepts a chain slug ("base"), a bare decimal chain ID
// ("8453") or a CAIP-2 identifier ("eip155:8453").
func ParseChain(input string) (Chain, error) {
	norm := strings.ToLower(strings.TrimSpace(input))
	if norm == "" {
		return Chain{}, clierr.New(clierr.CodeUsage, "missing chain identifier")
	}
	if chain, ok := chainBySlug[norm]; ok {
		return chain, nil
	}
	if eip155ChainPattern.MatchString(norm) {
		norm = strings.TrimPrefix(norm, "eip155:")
	}
	if n, err := strconv.ParseUint(norm, 10, 64); err == nil && n > 0 {
		for _, chain := range chainBySlug {
			if chain.ChainID == n {
				return chain, nil
			}
		}
		return Chain{
			Name:    fmt.Sprintf("eip155:%d", n),
			Slug:    fmt.Sprintf("eip155-%d", n),
			CAIP2:   fmt.Sprintf("eip155:%d", n),
			ChainID: n,
		}, nil
	}
	return Chain{}, clierr.New(clierr.CodeUsage, fmt.Sprintf("unrecognized chain %q (use a slug, chain id, or eip155:<id>)", input))
}

// ParseAddress validates and normalizes a 20-byte hex address.
func ParseAddress(input string) (common.Address, error) {
	norm := strings.TrimSpace(input)
	if !evmAddressPattern.MatchString(norm) {
		return common.Address{}, clierr.New(clierr.CodeUsage, fmt.Sprintf("invalid address %q", input))
	}
	return common.HexToAddress(norm), nil
}

// ParseHexData decodes 0x-prefixed (or bare) hex calldata. Odd-length
// input is rejected rather than silently padded.
func ParseHexData(input string) ([]byte, error) {
	norm := strings.TrimSpace(input)
	norm = strings.TrimPrefix(norm, "0x")
	if norm == "" {
		return nil, clierr.New(clierr.CodeUsage, "missing calldata")
	}
	if len(norm)%2 != 0 {
		return nil, clierr.New(clierr.CodeUsage, "calldata hex has odd length")
	}
	buf, err := hex.DecodeString(norm)
	if err != nil {
		return nil, clierr.Wrap(clierr.CodeUsage, "decode calldata hex", err)
	}
	return buf, nil
}
