package cli

import (
	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/loom/pkg/types"
)

func newLinklistCmd(flags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "linklist",
		Short: "Inspect and manage link-lists",
	}

	show := &cobra.Command{
		Use:   "show <id>",
		Short: "Display a link-list and its members",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("linklist id", args[0])
			if err != nil {
				return err
			}
			return withApp(cmd.Context(), flags, func(a *app) error {
				l, err := a.engine.Linklist(cmd.Context(), id)
				if err != nil {
					return err
				}
				return printLinklist(cmd.OutOrStdout(), flags, l)
			})
		},
	}

	transfer := &cobra.Command{
		Use:   "transfer <id> <to>",
		Short: "Transfer a link-list; it stays bound to its character",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("linklist id", args[0])
			if err != nil {
				return err
			}
			to, err := parseAddress("to", args[1])
			if err != nil {
				return err
			}
			return withApp(cmd.Context(), flags, func(a *app) error {
				caller, err := a.caller(flags)
				if err != nil {
					return err
				}
				if err := a.engine.TransferLinklist(cmd.Context(), caller, caller, to, id); err != nil {
					return err
				}
				return printResult(cmd.OutOrStdout(), flags, map[string]uint64{"linklist_id": id}, "OK")
			})
		},
	}

	setURI := &cobra.Command{
		Use:   "set-uri <id> <uri>",
		Short: "Set a link-list's metadata URI",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("linklist id", args[0])
			if err != nil {
				return err
			}
			return withApp(cmd.Context(), flags, func(a *app) error {
				caller, err := a.caller(flags)
				if err != nil {
					return err
				}
				if err := a.engine.SetLinklistURI(cmd.Context(), caller, id, args[1]); err != nil {
					return err
				}
				return printResult(cmd.OutOrStdout(), flags, map[string]uint64{"linklist_id": id}, "OK")
			})
		},
	}

	var detachType string
	detach := &cobra.Command{
		Use:   "detach <character>",
		Short: "Unbind a character's link-list of one type",
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
				if err := a.engine.DetachLinklist(cmd.Context(), caller, id, types.NewLinkType(detachType)); err != nil {
					return err
				}
				return printResult(cmd.OutOrStdout(), flags, map[string]uint64{"character_id": id}, "OK")
			})
		},
	}
	detach.Flags().StringVarP(&detachType, "type", "t", "follow", "link type")

	var mod moduleFlags
	setModule := &cobra.Command{
		Use:   "set-link-module <id>",
		Short: "Attach a link module to a link-list",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("linklist id", args[0])
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
				if err := a.engine.SetLinkModule4Linklist(cmd.Context(), caller, id, addr, data); err != nil {
					return err
				}
				return printResult(cmd.OutOrStdout(), flags, map[string]string{"link_module": addr.Hex()}, "Link module set to %s", addr.Hex())
			})
		},
	}
	mod.register(setModule, "link")

	cmd.AddCommand(show, transfer, setURI, detach, setModule)
	return cmd
}
