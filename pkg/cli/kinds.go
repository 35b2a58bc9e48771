package cli

import (
	"flag"
	"fmt"
	"io"

	"github.com/platinummonkey/blastradius/pkg/references"
)

// newKindsCommand lists the kinds with usage heuristics beyond the primary
// dependency query
func newKindsCommand(out io.Writer) *Command {
	cmd := &Command{
		Name:        "kinds",
		Description: "List component types with extra usage heuristics",
		Flags:       flag.NewFlagSet("kinds", flag.ContinueOnError),
		out:         out,
	}
	cmd.Run = func(args []string) error {
		if err := cmd.Flags.Parse(args); err != nil {
			return err
		}
		for _, kind := range references.Kinds() {
			if _, err := fmt.Fprintln(out, kind); err != nil {
				return err
			}
		}
		return nil
	}
	return cmd
}
