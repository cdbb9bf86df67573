package cli

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/loom/internal/paths"
)

func newReserveCmd(flags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reserve",
		Short: "Manage handles reserved through ENS and RNS records",
		Long: "Reserved handles may only be claimed by the address their record names.\n" +
			"Records live in reserved.yaml next to config.yaml; changes require the\n" +
			"caller to be the configured resolver.admin.",
	}

	var ens, rns []string
	add := &cobra.Command{
		Use:   "add",
		Short: "Reserve handles: --ens handle=0x... --rns handle=0x...",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ensRecords, err := parseRecords("--ens", ens)
			if err != nil {
				return err
			}
			rnsRecords, err := parseRecords("--rns", rns)
			if err != nil {
				return err
			}
			return withResolver(cmd, flags, func(a *app, caller common.Address) error {
				if err := a.resolver.AddENSRecords(caller, ensRecords); err != nil {
					return err
				}
				if err := a.resolver.AddRNSRecords(caller, rnsRecords); err != nil {
					return err
				}
				return printResult(cmd.OutOrStdout(), flags, map[string]int{"ens": len(ensRecords), "rns": len(rnsRecords)},
					"Reserved %d ENS and %d RNS handles", len(ensRecords), len(rnsRecords))
			})
		},
	}
	add.Flags().StringSliceVar(&ens, "ens", nil, "ENS record as handle=address")
	add.Flags().StringSliceVar(&rns, "rns", nil, "RNS record as handle=address")

	var delENS, delRNS []string
	del := &cobra.Command{
		Use:   "delete",
		Short: "Release reserved handles",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withResolver(cmd, flags, func(a *app, caller common.Address) error {
				if err := a.resolver.DeleteENSRecords(caller, delENS); err != nil {
					return err
				}
				if err := a.resolver.DeleteRNSRecords(caller, delRNS); err != nil {
					return err
				}
				return printResult(cmd.OutOrStdout(), flags, map[string]int{"ens": len(delENS), "rns": len(delRNS)}, "OK")
			})
		},
	}
	del.Flags().StringSliceVar(&delENS, "ens", nil, "ENS handles to release")
	del.Flags().StringSliceVar(&delRNS, "rns", nil, "RNS handles to release")

	list := &cobra.Command{
		Use:   "list",
		Short: "List reserved handles and their holders",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), flags, func(a *app) error {
				type row struct {
					Handle string         `json:"handle"`
					ENS    common.Address `json:"ens"`
					RNS    common.Address `json:"rns"`
				}
				var rows []row
				for _, h := range a.resolver.Handles() {
					r := row{Handle: h}
					r.ENS, _ = a.resolver.ENSRecord(h)
					r.RNS, _ = a.resolver.RNSRecord(h)
					rows = append(rows, r)
				}
				if flags.jsonMode {
					return printJSON(cmd.OutOrStdout(), rows)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%d ENS, %d RNS\n", a.resolver.TotalENSCount(), a.resolver.TotalRNSCount())
				for _, r := range rows {
					fmt.Fprintf(cmd.OutOrStdout(), "%-31s ens=%s rns=%s\n", r.Handle, r.ENS.Hex(), r.RNS.Hex())
				}
				return nil
			})
		},
	}

	cmd.AddCommand(add, del, list)
	return cmd
}

// withResolver runs fn as the caller and saves the records when fn succeeds.
func withResolver(cmd *cobra.Command, flags *rootFlags, fn func(a *app, caller common.Address) error) error {
	return withApp(cmd.Context(), flags, func(a *app) error {
		caller, err := a.caller(flags)
		if err != nil {
			return err
		}
		if err := fn(a, caller); err != nil {
			return err
		}
		if err := a.resolver.Save(paths.ReservedFile(a.settings.configDir)); err != nil {
			return sysErr("save reservations: %w", err)
		}
		return nil
	})
}

// parseRecords turns handle=address pairs into records.
func parseRecords(flag string, pairs []string) (map[string]common.Address, error) {
	out := make(map[string]common.Address, len(pairs))
	for _, p := range pairs {
		handle, raw, ok := strings.Cut(p, "=")
		if !ok || handle == "" {
			return nil, fmt.Errorf("%s: %q is not handle=address", flag, p)
		}
		addr, err := parseAddress(flag, raw)
		if err != nil {
			return nil, err
		}
		out[handle] = addr
	}
	return out, nil
}
