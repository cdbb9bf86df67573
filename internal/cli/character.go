package cli

import (
	"context"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/loom/pkg/types"
)

func newCharacterCmd(flags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "character",
		Aliases: []string{"char"},
		Short:   "Create, inspect and manage characters",
	}
	cmd.AddCommand(
		newCharacterCreateCmd(flags),
		newCharacterShowCmd(flags),
		newCharacterSetCmd(flags, "set-handle <id> <handle>", "Rename a character", func(ctx context.Context, a *app, caller common.Address, id uint64, arg string) error {
			return a.engine.SetHandle(ctx, caller, id, arg)
		}),
		newCharacterSetCmd(flags, "set-uri <id> <uri>", "Set a character's metadata URI", func(ctx context.Context, a *app, caller common.Address, id uint64, arg string) error {
			return a.engine.SetCharacterURI(ctx, caller, id, arg)
		}),
		newCharacterSetCmd(flags, "set-operator <id> <address>", "Delegate character management to an operator", func(ctx context.Context, a *app, caller common.Address, id uint64, arg string) error {
			op, err := parseAddress("operator", arg)
			if err != nil {
				return err
			}
			return a.engine.SetOperator(ctx, caller, id, op)
		}),
		newCharacterSetCmd(flags, "transfer <id> <to>", "Transfer a character to another address", func(ctx context.Context, a *app, caller common.Address, id uint64, arg string) error {
			to, err := parseAddress("to", arg)
			if err != nil {
				return err
			}
			return a.engine.TransferCharacter(ctx, caller, caller, to, id)
		}),
		newCharacterIDCmd(flags, "set-primary <id>", "Make a character the caller's primary", func(ctx context.Context, a *app, caller common.Address, id uint64) error {
			return a.engine.SetPrimaryCharacter(ctx, caller, id)
		}),
		newCharacterIDCmd(flags, "burn <id>", "Destroy a character", func(ctx context.Context, a *app, caller common.Address, id uint64) error {
			return a.engine.Burn(ctx, caller, id)
		}),
		newCharacterLinkModuleCmd(flags),
	)
	return cmd
}

func newCharacterCreateCmd(flags *rootFlags) *cobra.Command {
	var (
		to, uri string
		mod     moduleFlags
	)
	cmd := &cobra.Command{
		Use:   "create <handle>",
		Short: "Create a character",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), flags, func(a *app) error {
				caller, err := a.caller(flags)
				if err != nil {
					return err
				}
				in := types.CreateCharacterInput{To: caller, Handle: args[0], URI: uri}
				if to != "" {
					if in.To, err = parseAddress("--to", to); err != nil {
						return err
					}
				}
				if in.LinkModule, in.LinkModuleInitData, err = mod.resolve(); err != nil {
					return err
				}
				id, err := a.engine.CreateCharacter(cmd.Context(), caller, in)
				if err != nil {
					return err
				}
				return printResult(cmd.OutOrStdout(), flags, map[string]uint64{"character_id": id},
					"Created character %d (%s)", id, in.Handle)
			})
		},
	}
	cmd.Flags().StringVar(&to, "to", "", "owner of the new character (default: caller)")
	cmd.Flags().StringVar(&uri, "uri", "", "metadata URI")
	mod.register(cmd, "link")
	return cmd
}

// newCharacterShowCmd accepts an id or @handle.
func newCharacterShowCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id|@handle>",
		Short: "Display a character",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), flags, func(a *app) error {
				var (
					c   *types.Character
					err error
				)
				if handle, ok := strings.CutPrefix(args[0], "@"); ok {
					c, err = a.engine.CharacterByHandle(cmd.Context(), handle)
				} else {
					var id uint64
					if id, err = parseID("character id", args[0]); err != nil {
						return err
					}
					c, err = a.engine.Character(cmd.Context(), id)
				}
				if err != nil {
					return err
				}
				return printCharacter(cmd.OutOrStdout(), flags, c)
			})
		},
	}
}

func newCharacterSetCmd(flags *rootFlags, use, short string, fn func(ctx context.Context, a *app, caller common.Address, id uint64, arg string) error) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("character id", args[0])
			if err != nil {
				return err
			}
			return withApp(cmd.Context(), flags, func(a *app) error {
				caller, err := a.caller(flags)
				if err != nil {
					return err
				}
				if err := fn(cmd.Context(), a, caller, id, args[1]); err != nil {
					return err
				}
				return printResult(cmd.OutOrStdout(), flags, map[string]uint64{"character_id": id}, "OK")
			})
		},
	}
}

func newCharacterIDCmd(flags *rootFlags, use, short string, fn func(ctx context.Context, a *app, caller common.Address, id uint64) error) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("character id", args[0])
			if err != nil {
				return err
			}
			return withApp(cmd.Context(), flags, func(a *app) error {
				caller, err := a.caller(flags)
				if err != nil {
					return err
				}
				if err := fn(cmd.Context(), a, caller, id); err != nil {
					return err
				}
				return printResult(cmd.OutOrStdout(), flags, map[string]uint64{"character_id": id}, "OK")
			})
		},
	}
}

func newCharacterLinkModuleCmd(flags *rootFlags) *cobra.Command {
	var mod moduleFlags
	cmd := &cobra.Command{
		Use:   "set-link-module <id>",
		Short: "Attach a link module to a character",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("character id", args[0])
			if err != nil {
				return err
			}
			return withApp(cmd.Context(), flags, func(a *app) error {
				caller, err := a.caller(flags)
				if err != nil {
					return err
				}
				addr, data, err := mod.resolve()
				if err != nil {
					return err
				}
				if err := a.engine.SetLinkModule4Character(cmd.Context(), caller, id, addr, data); err != nil {
					return err
				}
				return printResult(cmd.OutOrStdout(), flags, map[string]string{"link_module": addr.Hex()}, "Link module set to %s", addr.Hex())
			})
		},
	}
	mod.register(cmd, "link")
	return cmd
}
