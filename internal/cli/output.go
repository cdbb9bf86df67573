package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/ethereum/go-ethereum/common"

	"github.com/mesh-intelligence/loom/pkg/types"
)

// printJSON writes v indented.
func printJSON(w io.Writer, v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return sysErr("marshal JSON: %w", err)
	}
	fmt.Fprintln(w, string(out))
	return nil
}

// printResult writes v as JSON in --json mode and text otherwise.
func printResult(w io.Writer, flags *rootFlags, v any, text string, args ...any) error {
	if flags.jsonMode {
		return printJSON(w, v)
	}
	fmt.Fprintf(w, text+"\n", args...)
	return nil
}

func printCharacter(w io.Writer, flags *rootFlags, c *types.Character) error {
	if flags.jsonMode {
		return printJSON(w, c)
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "id\t%d\n", c.CharacterID)
	fmt.Fprintf(tw, "handle\t%s\n", c.Handle)
	fmt.Fprintf(tw, "owner\t%s\n", c.Owner.Hex())
	fmt.Fprintf(tw, "operator\t%s\n", c.Operator.Hex())
	fmt.Fprintf(tw, "uri\t%s\n", c.URI)
	fmt.Fprintf(tw, "notes\t%d\n", c.NoteCount)
	fmt.Fprintf(tw, "link module\t%s\n", c.LinkModule.Hex())
	return tw.Flush()
}

func printNote(w io.Writer, flags *rootFlags, n *types.Note) error {
	if flags.jsonMode {
		return printJSON(w, n)
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "note\t%d/%d\n", n.CharacterID, n.NoteID)
	fmt.Fprintf(tw, "content\t%s\n", n.ContentURI)
	if !n.Target.IsZero() {
		fmt.Fprintf(tw, "target\t%s %s\n", n.Target.Kind, n.Target.Key.Hex())
	}
	fmt.Fprintf(tw, "locked\t%t\n", n.Locked)
	fmt.Fprintf(tw, "deleted\t%t\n", n.Deleted)
	if n.MintNFT != (common.Address{}) {
		fmt.Fprintf(tw, "mint nft\t%s\n", n.MintNFT.Hex())
	}
	return tw.Flush()
}

func printLinklist(w io.Writer, flags *rootFlags, l *types.Linklist) error {
	if flags.jsonMode {
		return printJSON(w, l)
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "linklist\t%d\n", l.LinklistID)
	fmt.Fprintf(tw, "owner\t%s\n", l.Owner.Hex())
	fmt.Fprintf(tw, "character\t%d\n", l.CharacterID)
	fmt.Fprintf(tw, "type\t%s\n", l.LinkType)
	fmt.Fprintf(tw, "uri\t%s\n", l.URI)
	for _, m := range l.Members {
		fmt.Fprintf(tw, "member\t%s %s\n", m.Kind, m.Key.Hex())
	}
	return tw.Flush()
}
