package id

import "testing"

func TestParseChainVariants(t *testing.T) {
	chain, err := ParseChain("base")
	if err != nil {
		t.Fatalf("ParseChain(base) failed: %v", err)
	}
	if chain.CAIP2 != "eip155:8453" {
		t.Fatalf("unexpected CAIP2: %s", chain.CAIP2)
	}

	chain, err = ParseChain("8453")
	if err != nil {
		t.Fatalf("ParseChain(8453) failed: %v", err)
	}
	if chain.Slug != "base" {
		t.Fatalf("unexpected slug: %s", chain.Slug)
	}

	chain, err = ParseChain("eip155:999999")
	if err != nil {
		t.Fatalf("ParseChain(eip155:999999) failed: %v", err)
	}
	if chain.ChainID != 999999 {
		t.Fatalf("unexpected chain ID: %d", chain.ChainID)
	}

	if _, err := ParseChain(""); err == nil {
		t.Fatal("expected empty chain error")
	}
	if _, err := ParseChain("not-a-chain"); err == nil {
		t.Fatal("expected unrecognized chain error")
	}
}

func TestParseAddress(t *testing.T) {
	addr, err := ParseAddress("0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2")
	if err != nil {
		t.Fatalf("ParseAddress failed: %v", err)
	}
	if addr.Hex() != "0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2" {
		t.Fatalf("unexpected address: %s", addr.Hex())
	}
	for _, bad := range []string{"", "0x123", "C02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2x"} {
		if _, err := ParseAddress(bad); err == nil {
			t.Fatalf("ParseAddress(%q) should fail", bad)
		}
	}
}

func TestParseHexData(t *testing.T) {
	buf, err := ParseHexData("0x3593564c")
	if err != nil {
		t.Fatalf("ParseHexData failed: %v", err)
	}
	if len(buf) != 4 || buf[0] != 0x35 {
		t.Fatalf("unexpected decode: %x", buf)
	}
	if _, err := ParseHexData("3593564c"); err != nil {
		t.Fatalf("bare hex should parse: %v", err)
	}
	for _, bad := range []string{"", "0x", "0x123", "0xzz"} {
		if _, err := ParseHexData(bad); err == nil {
			t.Fatalf("ParseHexData(%q) should fail", bad)
		}
	}
}
