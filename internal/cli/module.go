package cli

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/loom/internal/modules"
)

// moduleFlags selects a module by built-in name or address and builds its
// init data.
type moduleFlags struct {
	name          string
	approve       []string
	maxSupply     uint64
	maxPerAddress uint64
}

func (m *moduleFlags) register(cmd *cobra.Command, prefix string) {
	cmd.Flags().StringVar(&m.name, prefix+"-module", "", "module name ("+strings.Join(moduleNames(), ", ")+") or address")
	cmd.Flags().StringSliceVar(&m.approve, prefix+"-approve", nil, "approved addresses for an approval module")
	if prefix == "mint" {
		cmd.Flags().Uint64Var(&m.maxSupply, "max-supply", 0, "LimitedMintModule total supply")
		cmd.Flags().Uint64Var(&m.maxPerAddress, "max-per-address", 0, "LimitedMintModule tokens per recipient")
	}
}

func moduleNames() []string {
	var names []string
	for name := range modules.Addresses() {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// resolve returns the module address and its init data. An empty name
// selects no module.
func (m *moduleFlags) resolve() (common.Address, []byte, error) {
	if m.name == "" {
		return common.Address{}, nil, nil
	}
	addr, builtin := modules.Addresses()[m.name]
	if !builtin {
		var err error
		if addr, err = parseAddress("module", m.name); err != nil {
			return common.Address{}, nil, err
		}
	}

	switch m.name {
	case modules.LimitedMintName:
		data, err := modules.EncodeLimits(m.maxSupply, m.maxPerAddress)
		return addr, data, err
	case modules.ApprovalLinkName, modules.ApprovalMintName:
		addrs := make([]common.Address, 0, len(m.approve))
		for _, s := range m.approve {
			a, err := parseAddress("approve", s)
			if err != nil {
				return common.Address{}, nil, err
			}
			addrs = append(addrs, a)
		}
		data, err := modules.EncodeAddresses(addrs)
		return addr, data, err
	}
	return addr, nil, nil
}

func newModuleCmd(flags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "modules",
		Short: "List the built-in link and mint modules",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			addrs := modules.Addresses()
			if flags.jsonMode {
				return printJSON(cmd.OutOrStdout(), addrs)
			}
			for _, name := range moduleNames() {
				fmt.Fprintf(cmd.OutOrStdout(), "%-20s %s\n", name, addrs[name].Hex())
			}
			return nil
		},
	}

	var mod moduleFlags
	setAddress := &cobra.Command{
		Use:   "set-address",
		Short: "Attach a link module to the caller's address",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			addr, data, err := mod.resolve()
			if err != nil {
				return err
			}
			return withApp(cmd.Context(), flags, func(a *app) error {
				caller, err := a.caller(flags)
				if err != nil {
					return err
				}
				if err := a.engine.SetLinkModule4Address(cmd.Context(), caller, addr, data); err != nil {
					return err
				}
				return printResult(cmd.OutOrStdout(), flags, map[string]string{"link_module": addr.Hex()},
					"Link module of %s set to %s", caller.Hex(), addr.Hex())
			})
		},
	}
	mod.register(setAddress, "link")
	cmd.AddCommand(setAddress, newApproveLinkCmd(flags), newApproveMintCmd(flags))
	return cmd
}

// approvalFlags are the addresses an approve command grants or revokes.
type approvalFlags struct {
	addresses []string
	revoke    bool
}

func (f *approvalFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringSliceVar(&f.addresses, "address", nil, "addresses to approve")
	cmd.Flags().BoolVar(&f.revoke, "revoke", false, "revoke instead of grant")
	_ = cmd.MarkFlagRequired("address")
}

func (f *approvalFlags) parse() ([]common.Address, error) {
	addrs := make([]common.Address, 0, len(f.addresses))
	for _, s := range f.addresses {
		addr, err := parseAddress("--address", s)
		if err != nil {
			return nil, err
		}
		addrs = append(addrs, addr)
	}
	return addrs, nil
}

func newApproveLinkCmd(flags *rootFlags) *cobra.Command {
	var af approvalFlags
	cmd := &cobra.Command{
		Use:   "approve-link <kind> <target...>",
		Short: "Change who may link to a target guarded by " + modules.ApprovalLinkName,
		Long:  "Grant or revoke link approval on a target you own.\n\n" + targetUsage,
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			target, err := parseTarget(args[0], args[1:])
			if err != nil {
				return err
			}
			addrs, err := af.parse()
			if err != nil {
				return err
			}
			return withApp(cmd.Context(), flags, func(a *app) error {
				caller, err := a.caller(flags)
				if err != nil {
					return err
				}
				if err := a.modules.ApprovalLink.Approve(cmd.Context(), caller, target, addrs, !af.revoke); err != nil {
					return err
				}
				return printResult(cmd.OutOrStdout(), flags, map[string]any{"approved": !af.revoke, "addresses": addrs},
					"Updated %d link approval(s)", len(addrs))
			})
		},
	}
	af.register(cmd)
	return cmd
}

func newApproveMintCmd(flags *rootFlags) *cobra.Command {
	var af approvalFlags
	cmd := &cobra.Command{
		Use:   "approve-mint <character> <note>",
		Short: "Change who may mint a note guarded by " + modules.ApprovalMintName,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, n, err := parseNoteRef(args)
			if err != nil {
				return err
			}
			addrs, err := af.parse()
			if err != nil {
				return err
			}
			return withApp(cmd.Context(), flags, func(a *app) error {
				caller, err := a.caller(flags)
				if err != nil {
					return err
				}
				if err := a.modules.ApprovalMint.Approve(cmd.Context(), caller, c, n, addrs, !af.revoke); err != nil {
					return err
				}
				return printResult(cmd.OutOrStdout(), flags, map[string]any{"approved": !af.revoke, "addresses": addrs},
					"Updated %d mint approval(s)", len(addrs))
			})
		},
	}
	af.register(cmd)
	return cmd
}
