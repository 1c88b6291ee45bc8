package registry

import (
	"sort"

	"github.com/ethereum/go-ethereum/common"
)

// Published batch-router deployments per chain ID. Detection is an
// allow-list: an address missing here is never rewritten, whatever its
// call data looks like.
var routersByChainID = map[uint64][]common.Address{
	1: {
		common.HexToAddress("0x3fC91A3afd70395Cd496C647d5a6CC9D4B2b7FAD"),
		common.HexToAddress("0xEf1c6E67703c7BD7107eed8303Fbe6EC2554BF6B"),
		common.HexToAddress("0x66a9893cC07D91D95644AEDD05D03f95e1dBA8Af"),
	},
	10: {
		common.HexToAddress("0xCb1355ff08Ab38bBCE60111F1bb2B784bE25D7e8"),
	},
	56: {
		common.HexToAddress("0x4Dae2f939ACf50408e13d58534Ff8c2776d45265"),
	},
	137: {
		common.HexToAddress("0xec7BE89e9d109e7e3Fec59c222CF297125FEFda2"),
	},
	8453: {
		common.HexToAddress("0x3fC91A3afd70395Cd496C647d5a6CC9D4B2b7FAD"),
		common.HexToAddress("0x6fF5693b99212Da76ad316178A184AB56D299b43"),
	},
	42161: {
		common.HexToAddress("0x5E325eDA8064b456f4781070C0738d849c824258"),
	},
	43114: {
		common.HexToAddress("0x4Dae2f939ACf50408e13d58534Ff8c2776d45265"),
	},
}

// Canonical wrapped-native token per chain ID.
var wrappedNativeByChainID = map[uint64]common.Address{
	1:     common.HexToAddress("0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2"),
	10:    common.HexToAddress("0x4200000000000000000000000000000000000006"),
	56:    common.HexToAddress("0xbb4CdB9CBd36B01bD1cBaEBF2De08d9173bc095c"),
	137:   common.HexToAddress("0x0d500B1d8E8eF31E21C99d1Db9A6444d3ADf1270"),
	8453:  common.HexToAddress("0x4200000000000000000000000000000000000006"),
	42161: common.HexToAddress("0x82aF49447D8a07e3bd95BD0d56f35241523fBab1"),
	43114: common.HexToAddress("0xB31f66AA3C1e785363F0875A1B74E27b85FD66c7"),
}

// Directory resolves per-chain protocol constants. The built-in tables
// can be extended at runtime (config overlays) but never shrunk.
type Directory struct {
	extraRouters  map[uint64][]common.Address
	wrappedExtras map[uint64]common.Address
}

func NewDirectory() *Directory {
	return &Directory{
		extraRouters:  make(map[uint64][]common.Address),
		wrappedExtras: make(map[uint64]common.Address),
	}
}

// AddRouter registers an additional router address for a chain.
func (d *Directory) AddRouter(chainID uint64, addr common.Address) {
	if addr == (common.Address{}) {
		return
	}
	d.extraRouters[chainID] = append(d.extraRouters[chainID], addr)
}

// SetWrappedNative overrides or supplies the wrapped-native asset for a
// chain the built-in table does not know.
func (d *Directory) SetWrappedNative(chainID uint64, addr common.Address) {
	d.wrappedExtras[chainID] = addr
}

// IsRouter reports whether addr is an allow-listed router on chainID.
func (d *Directory) IsRouter(chainID uint64, addr common.Address) bool {
	for _, r := range routersByChainID[chainID] {
		if r == addr {
			return true
		}
	}
	for _, r := range d.extraRouters[chainID] {
		if r == addr {
			return true
		}
	}
	return false
}

// WrappedNative returns the chain's wrapped-native token, or the zero
// address when the chain is unknown.
func (d *Directory) WrappedNative(chainID uint64) common.Address {
	if addr, ok := d.wrappedExtras[chainID]; ok {
		return addr
	}
	return wrappedNativeByChainID[chainID]
}

// Routers returns every allow-listed router for a chain, built-ins first.
func (d *Directory) Routers(chainID uint64) []common.Address {
	out := append([]common.Address{}, routersByChainID[chainID]...)
	return append(out, d.extraRouters[chainID]...)
}

// Chains returns every chain ID with at least one router, sorted.
func (d *Directory) Chains() []uint64 {
	seen := make(map[uint64]struct{}, len(routersByChainID))
	for id := range routersByChainID {
		seen[id] = struct{}{}
	}
	for id := range d.extraRouters {
		seen[id] = struct{}{}
	}
	out := make([]uint64, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
