package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"OpenMCP-Intent/internal/chain"
)

func newCatalogCmd(opts *options) *cobra.Command {
	var (
		network, token, address string
		verify                  bool
		timeout                 time.Duration
	)
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Print the networks and tokens recognised by the parser",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			catalog, err := opts.catalog()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			switch {
			case verify:
				return runVerify(cmd, catalog, timeout)
			case network != "":
				id, ok := catalog.ChainID(network)
				if !ok {
					return fmt.Errorf("unknown network %q", network)
				}
				fmt.Fprintln(out, id)
			case token != "":
				t, ok := catalog.Token(token)
				if !ok {
					return fmt.Errorf("unknown token %q", token)
				}
				fmt.Fprintf(out, "%s %s decimals=%d\n", t.Symbol, t.Name, t.Decimals)
			case address != "":
				if !chain.IsAddress(address) {
					return fmt.Errorf("%q is not an address", address)
				}
				fmt.Fprintln(out, chain.NormalizeAddress(address))
			default:
				for _, line := range catalog.Summary() {
					fmt.Fprintln(out, line)
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&network, "network", "", "print the chain id of a network name or alias")
	cmd.Flags().StringVar(&token, "token", "", "print metadata of a token symbol")
	cmd.Flags().StringVar(&address, "address", "", "validate an address and print its checksummed form")
	cmd.Flags().BoolVar(&verify, "verify", false, "query eth_chainId on every network with an rpc_url")
	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Second, "per-network timeout for --verify")
	return cmd
}

func runVerify(cmd *cobra.Command, catalog chain.Catalog, timeout time.Duration) error {
	out := cmd.OutOrStdout()
	results := catalog.Verify(cmd.Context(), timeout)
	if len(results) == 0 {
		fmt.Fprintln(out, "no network has an rpc_url")
		return nil
	}
	failed := 0
	for _, r := range results {
		switch {
		case r.Err != nil:
			failed++
			fmt.Fprintf(out, "FAIL %-10s %v\n", r.Network, r.Err)
		case !r.OK():
			failed++
			fmt.Fprintf(out, "FAIL %-10s chain_id=%d, node reports %d\n", r.Network, r.Expected, r.Actual)
		default:
			fmt.Fprintf(out, "ok   %-10s chain_id=%d\n", r.Network, r.Actual)
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d network(s) failed verification", failed)
	}
	return nil
}
