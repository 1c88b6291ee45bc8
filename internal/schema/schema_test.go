package schema

import (
	"testing"

	"github.com/spf13/cobra"
)

func TestBuildRootSchema(t *testing.T) {
	root := &cobra.Command{Use: "routerfee"}
	inject := &cobra.Command{Use: "inject", Short: "rewrite router calldata"}
	inject.Flags().String("data", "", "transaction calldata")
	inject.Flags().Int("fee-bps", 0, "fee in basis points")
	root.AddCommand(inject)

	s, err := Build(root, "")
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if s.Path != "routerfee" {
		t.Fatalf("unexpected path: %s", s.Path)
	}
	if len(s.Subcommands) != 1 || s.Subcommands[0].Use != "inject" {
		t.Fatalf("unexpected subcommands: %+v", s.Subcommands)
	}
}

func TestBuildSubcommandSchema(t *testing.T) {
	root := &cobra.Command{Use: "routerfee"}
	estimate := &cobra.Command{Use: "estimate", Short: "estimate rewritten calldata gas"}
	estimate.Flags().String("rpc-url", "", "JSON-RPC endpoint override")
	root.AddCommand(estimate)

	s, err := Build(root, "estimate")
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if s.Path != "routerfee estimate" {
		t.Fatalf("unexpected path: %s", s.Path)
	}
	if len(s.Flags) != 1 || s.Flags[0].Name != "rpc-url" {
		t.Fatalf("unexpected flags: %+v", s.Flags)
	}
}

func TestBuildUnknownCommand(t *testing.T) {
	root := &cobra.Command{Use: "routerfee"}
	if _, err := Build(root, "nope"); err == nil {
		t.Fatal("expected error for unknown command path")
	}
}
