package cli

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/loom/internal/sqlite"
	"github.com/mesh-intelligence/loom/pkg/types"
)

// eventFlags narrow the event log.
type eventFlags struct {
	character uint64
	kind      string
	limit     int
}

func (f *eventFlags) register(cmd *cobra.Command) {
	cmd.Flags().Uint64Var(&f.character, "character", 0, "only events of this character")
	cmd.Flags().StringVar(&f.kind, "kind", "", "only events of this kind, e.g. LinkCharacter")
	cmd.Flags().IntVar(&f.limit, "limit", 0, "at most this many events")
}

func (f *eventFlags) filter() sqlite.EventFilter {
	return sqlite.EventFilter{CharacterID: f.character, Kind: types.EventKind(f.kind), Limit: f.limit}
}

// eventStore returns the backend holding the event log.
func eventStore(a *app) (*sqlite.Backend, error) {
	if a.store == nil {
		return nil, fmt.Errorf("the event log needs the %s backend", types.BackendSQLite)
	}
	return a.store, nil
}

func newEventsCmd(flags *rootFlags) *cobra.Command {
	var lf eventFlags
	cmd := &cobra.Command{
		Use:   "events",
		Short: "List committed events in commit order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), flags, func(a *app) error {
				store, err := eventStore(a)
				if err != nil {
					return err
				}
				events, err := store.Events(cmd.Context(), lf.filter())
				if err != nil {
					return sysErr("read events: %w", err)
				}
				if flags.jsonMode {
					return printJSON(cmd.OutOrStdout(), events)
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
				for _, ev := range events {
					fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n",
						ev.Timestamp.UTC().Format(time.RFC3339), ev.Kind, ev.CharacterID, ev.Caller.Hex())
				}
				return tw.Flush()
			})
		},
	}
	lf.register(cmd)

	var xf eventFlags
	export := &cobra.Command{
		Use:   "export <file>",
		Short: "Write the event log to a JSONL file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), flags, func(a *app) error {
				store, err := eventStore(a)
				if err != nil {
					return err
				}
				n, err := store.ExportEvents(cmd.Context(), args[0], xf.filter())
				if err != nil {
					return sysErr("export events: %w", err)
				}
				return printResult(cmd.OutOrStdout(), flags, map[string]int{"exported": n},
					"Exported %d events to %s", n, args[0])
			})
		},
	}
	xf.register(export)

	cmd.AddCommand(export)
	return cmd
}
