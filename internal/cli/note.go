package cli

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/loom/pkg/types"
)

func newNoteCmd(flags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "note",
		Short: "Post, edit and mint notes",
	}
	cmd.AddCommand(
		newNotePostCmd(flags),
		newNoteShowCmd(flags),
		newNoteEditCmd(flags, "set-uri <character> <note> <uri>", "Replace a note's content URI", 3,
			func(ctx context.Context, a *app, caller common.Address, c, n uint64, args []string) error {
				return a.engine.SetNoteURI(ctx, caller, c, n, args[0])
			}),
		newNoteEditCmd(flags, "lock <character> <note>", "Freeze a note's content and modules", 2,
			func(ctx context.Context, a *app, caller common.Address, c, n uint64, _ []string) error {
				return a.engine.LockNote(ctx, caller, c, n)
			}),
		newNoteEditCmd(flags, "delete <character> <note>", "Mark a note deleted", 2,
			func(ctx context.Context, a *app, caller common.Address, c, n uint64, _ []string) error {
				return a.engine.DeleteNote(ctx, caller, c, n)
			}),
		newNoteModuleCmd(flags),
		newNoteMintCmd(flags),
		newMintTransferCmd(flags),
	)
	return cmd
}

func newNotePostCmd(flags *rootFlags) *cobra.Command {
	var (
		on        []string
		locked    bool
		newHandle string
		linkMod   moduleFlags
		mintMod   moduleFlags
	)
	cmd := &cobra.Command{
		Use:   "post <character> <content-uri>",
		Short: "Post a note, optionally on a target",
		Long: "Post a note. --on takes a target as kind followed by its arguments, e.g.\n" +
			"--on note,3,1 or --on anyuri,https://example.com.\n" +
			"With --new-handle the character argument is ignored and a character is\n" +
			"created for the caller first.\n\n" + targetUsage,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			in := types.PostNoteInput{ContentURI: args[1], Locked: locked}
			if newHandle == "" {
				var err error
				if in.CharacterID, err = parseID("character", args[0]); err != nil {
					return err
				}
			}
			if len(on) > 0 {
				target, err := parseTarget(on[0], on[1:])
				if err != nil {
					return err
				}
				in.Target = target
			}
			var err error
			if in.LinkModule, in.LinkModuleInitData, err = linkMod.resolve(); err != nil {
				return err
			}
			if in.MintModule, in.MintModuleInitData, err = mintMod.resolve(); err != nil {
				return err
			}

			return withApp(cmd.Context(), flags, func(a *app) error {
				caller, err := a.caller(flags)
				if err != nil {
					return err
				}
				if newHandle != "" {
					cid, nid, err := a.engine.CreateCharacterThenPostNote(cmd.Context(), caller,
						types.CreateCharacterInput{To: caller, Handle: newHandle}, in)
					if err != nil {
						return err
					}
					return printResult(cmd.OutOrStdout(), flags, map[string]uint64{"character_id": cid, "note_id": nid},
						"Created character %d and posted note %d", cid, nid)
				}
				id, err := a.engine.PostNote(cmd.Context(), caller, in)
				if err != nil {
					return err
				}
				return printResult(cmd.OutOrStdout(), flags, map[string]uint64{"character_id": in.CharacterID, "note_id": id},
					"Posted note %d/%d", in.CharacterID, id)
			})
		},
	}
	cmd.Flags().StringSliceVar(&on, "on", nil, "target of the note: kind,arg[,arg]")
	cmd.Flags().BoolVar(&locked, "locked", false, "post the note locked")
	cmd.Flags().StringVar(&newHandle, "new-handle", "", "create a character with this handle, then post")
	linkMod.register(cmd, "link")
	mintMod.register(cmd, "mint")
	return cmd
}

func newNoteShowCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "show <character> <note>",
		Short: "Display a note",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, n, err := parseNoteRef(args)
			if err != nil {
				return err
			}
			return withApp(cmd.Context(), flags, func(a *app) error {
				note, err := a.engine.Note(cmd.Context(), c, n)
				if err != nil {
					return err
				}
				return printNote(cmd.OutOrStdout(), flags, note)
			})
		},
	}
}

func parseNoteRef(args []string) (uint64, uint64, error) {
	c, err := parseID("character", args[0])
	if err != nil {
		return 0, 0, err
	}
	n, err := parseID("note", args[1])
	return c, n, err
}

func newNoteEditCmd(flags *rootFlags, use, short string, nargs int,
	fn func(ctx context.Context, a *app, caller common.Address, c, n uint64, rest []string) error) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(nargs),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, n, err := parseNoteRef(args)
			if err != nil {
				return err
			}
			return withApp(cmd.Context(), flags, func(a *app) error {
				caller, err := a.caller(flags)
				if err != nil {
					return err
				}
				if err := fn(cmd.Context(), a, caller, c, n, args[2:]); err != nil {
					return err
				}
				return printResult(cmd.OutOrStdout(), flags, map[string]uint64{"character_id": c, "note_id": n}, "OK")
			})
		},
	}
}

func newNoteModuleCmd(flags *rootFlags) *cobra.Command {
	var linkMod, mintMod moduleFlags
	cmd := &cobra.Command{
		Use:   "set-module <character> <note>",
		Short: "Replace a note's link or mint module",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, n, err := parseNoteRef(args)
			if err != nil {
				return err
			}
			if (linkMod.name == "") == (mintMod.name == "") {
				return fmt.Errorf("pass exactly one of --link-module and --mint-module")
			}
			return withApp(cmd.Context(), flags, func(a *app) error {
				caller, err := a.caller(flags)
				if err != nil {
					return err
				}
				if linkMod.name != "" {
					addr, data, err := linkMod.resolve()
					if err != nil {
						return err
					}
					if err := a.engine.SetLinkModule4Note(cmd.Context(), caller, c, n, addr, data); err != nil {
						return err
					}
				} else {
					addr, data, err := mintMod.resolve()
					if err != nil {
						return err
					}
					if err := a.engine.SetMintModule4Note(cmd.Context(), caller, c, n, addr, data); err != nil {
						return err
					}
				}
				return printResult(cmd.OutOrStdout(), flags, map[string]uint64{"character_id": c, "note_id": n}, "OK")
			})
		},
	}
	linkMod.register(cmd, "link")
	mintMod.register(cmd, "mint")
	return cmd
}

func newNoteMintCmd(flags *rootFlags) *cobra.Command {
	var to string
	cmd := &cobra.Command{
		Use:   "mint <character> <note>",
		Short: "Mint a token of a note",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, n, err := parseNoteRef(args)
			if err != nil {
				return err
			}
			return withApp(cmd.Context(), flags, func(a *app) error {
				caller, err := a.caller(flags)
				if err != nil {
					return err
				}
				recipient := caller
				if to != "" {
					if recipient, err = parseAddress("--to", to); err != nil {
						return err
					}
				}
				tokenID, nft, err := a.engine.MintNote(cmd.Context(), caller, types.MintNoteInput{CharacterID: c, NoteID: n, To: recipient})
				if err != nil {
					return err
				}
				return printResult(cmd.OutOrStdout(), flags, map[string]any{"token_id": tokenID, "mint_nft": nft},
					"Minted token %d of %s", tokenID, nft.Hex())
			})
		},
	}
	cmd.Flags().StringVar(&to, "to", "", "recipient (default: caller)")
	return cmd
}

func newMintTransferCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "transfer-token <mint-nft> <token-id> <to>",
		Short: "Transfer a minted note token",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			nft, err := parseAddress("mint nft", args[0])
			if err != nil {
				return err
			}
			tokenID, err := parseID("token id", args[1])
			if err != nil {
				return err
			}
			to, err := parseAddress("to", args[2])
			if err != nil {
				return err
			}
			return withApp(cmd.Context(), flags, func(a *app) error {
				caller, err := a.caller(flags)
				if err != nil {
					return err
				}
				if err := a.engine.TransferMintToken(cmd.Context(), caller, nft, tokenID, to); err != nil {
					return err
				}
				return printResult(cmd.OutOrStdout(), flags, map[string]uint64{"token_id": tokenID}, "OK")
			})
		},
	}
}
