package cli

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/loom/pkg/types"
)

func newLinkCmd(flags *rootFlags) *cobra.Command {
	var (
		linkType string
		create   bool
	)
	cmd := &cobra.Command{
		Use:   "link <from-character> <kind> <target...>",
		Short: "Link a character to a target",
		Long: "Add the target to the link-list of the given type, creating the list on first use.\n" +
			"With --create and an address target, a character is first created for that address.\n\n" + targetUsage,
		Args: cobra.MinimumNArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			from, err := parseID("from character", args[0])
			if err != nil {
				return err
			}
			target, err := parseTarget(args[1], args[2:])
			if err != nil {
				return err
			}
			lt := types.NewLinkType(linkType)

			return withApp(cmd.Context(), flags, func(a *app) error {
				caller, err := a.caller(flags)
				if err != nil {
					return err
				}
				if create {
					addr, ok := target.(types.AddressTarget)
					if !ok {
						return fmt.Errorf("--create needs an address target")
					}
					id, err := a.engine.CreateThenLinkCharacter(cmd.Context(), caller, from, addr.Address, lt)
					if err != nil {
						return err
					}
					return printResult(cmd.OutOrStdout(), flags, map[string]uint64{"character_id": id},
						"Created character %d and linked it as %s", id, lt)
				}
				listID, err := a.engine.Link(cmd.Context(), caller, types.LinkInput{FromCharacterID: from, Target: target, LinkType: lt})
				if err != nil {
					return err
				}
				return printResult(cmd.OutOrStdout(), flags, map[string]uint64{"linklist_id": listID},
					"Linked via linklist %d", listID)
			})
		},
	}
	cmd.Flags().StringVarP(&linkType, "type", "t", "follow", "link type")
	cmd.Flags().BoolVar(&create, "create", false, "create a character for an address target, then link it")
	return cmd
}

func newUnlinkCmd(flags *rootFlags) *cobra.Command {
	var linkType string
	cmd := &cobra.Command{
		Use:   "unlink <from-character> <kind> <target...>",
		Short: "Remove a target from a character's link-list",
		Long:  "Removing a target that is not linked is not an error.\n\n" + targetUsage,
		Args:  cobra.MinimumNArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			from, err := parseID("from character", args[0])
			if err != nil {
				return err
			}
			target, err := parseTarget(args[1], args[2:])
			if err != nil {
				return err
			}
			return withApp(cmd.Context(), flags, func(a *app) error {
				caller, err := a.caller(flags)
				if err != nil {
					return err
				}
				if err := a.engine.Unlink(cmd.Context(), caller, from, target, types.NewLinkType(linkType)); err != nil {
					return err
				}
				return printResult(cmd.OutOrStdout(), flags, map[string]bool{"ok": true}, "OK")
			})
		},
	}
	cmd.Flags().StringVarP(&linkType, "type", "t", "follow", "link type")
	return cmd
}

func newLinkingCmd(flags *rootFlags) *cobra.Command {
	var linkType, kindName string
	cmd := &cobra.Command{
		Use:   "linking <character>",
		Short: "List what a character links to",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			from, err := parseID("character", args[0])
			if err != nil {
				return err
			}
			kind, err := types.ParseKind(kindName)
			if err != nil {
				return err
			}
			lt := types.NewLinkType(linkType)

			return withApp(cmd.Context(), flags, func(a *app) error {
				ctx := cmd.Context()
				var items []string
				switch kind {
				case types.KindCharacter:
					for _, id := range a.engine.LinkingCharacterIDs(ctx, from, lt) {
						items = append(items, fmt.Sprint(id))
					}
				case types.KindAddress:
					for _, addr := range a.engine.LinkingAddresses(ctx, from, lt) {
						items = append(items, addr.Hex())
					}
				case types.KindNote:
					for _, n := range a.engine.LinkingNotes(ctx, from, lt) {
						items = append(items, fmt.Sprintf("%d/%d", n.CharacterID, n.NoteID))
					}
				case types.KindERC721:
					for _, t := range a.engine.LinkingERC721s(ctx, from, lt) {
						items = append(items, fmt.Sprintf("%s#%s", t.Contract.Hex(), t.TokenID.Dec()))
					}
				case types.KindLinklist:
					for _, id := range a.engine.LinkingLinklists(ctx, from, lt) {
						items = append(items, fmt.Sprint(id))
					}
				case types.KindAnyURI:
					items = a.engine.LinkingAnyURIs(ctx, from, lt)
				}
				if flags.jsonMode {
					if items == nil {
						items = []string{}
					}
					return printJSON(cmd.OutOrStdout(), map[string]any{"kind": kind.String(), "items": items})
				}
				for _, item := range items {
					fmt.Fprintln(cmd.OutOrStdout(), item)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&linkType, "type", "t", "follow", "link type")
	cmd.Flags().StringVarP(&kindName, "kind", "k", "character", "target kind")
	return cmd
}

func newTargetCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "target <kind> <key>",
		Short: "Resolve a canonical target key",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := types.ParseKind(args[0])
			if err != nil {
				return err
			}
			key := common.HexToHash(args[1])
			return withApp(cmd.Context(), flags, func(a *app) error {
				t, err := a.engine.LinkingTarget(cmd.Context(), kind, key)
				if err != nil {
					return err
				}
				return printResult(cmd.OutOrStdout(), flags, types.NewLinkItem(t), "%s %+v", kind, t)
			})
		},
	}
}
