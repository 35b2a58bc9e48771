package cli

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/blastradius/pkg/sfapi"
)

// Command represents a CLI command
type Command struct {
	Name        string
	Description string
	Run         func(args []string) error
	Subcommands map[string]*Command
	Flags       *flag.FlagSet

	out io.Writer
}

// SourceOpener connects the collaborator backend for a command
type SourceOpener func(ctx context.Context, cfg sfapi.Config, logger logrus.FieldLogger) (*sfapi.Source, error)

// NewRootCommand creates the root command writing to stdout against the
// configured snapshot backend
func NewRootCommand() *Command {
	return newRootCommand(os.Stdout, os.Stderr, sfapi.Open)
}

func newRootCommand(out, errOut io.Writer, open SourceOpener) *Command {
	root := &Command{
		Name:        "blastradius",
		Description: "blastradius - component dependency and usage analysis",
		Subcommands: make(map[string]*Command),
		Flags:       flag.NewFlagSet("blastradius", flag.ContinueOnError),
		out:         out,
	}

	root.Subcommands["dependencies"] = newAnalysisCommand(dependenciesCommand, out, errOut, open)
	root.Subcommands["usage"] = newAnalysisCommand(usageCommand, out, errOut, open)
	root.Subcommands["kinds"] = newKindsCommand(out)

	return root
}

// Execute runs the subcommand named by the first argument
func (c *Command) Execute(args []string) error {
	if len(args) == 0 {
		return c.usage()
	}

	if strings.EqualFold(args[0], "-h") || strings.EqualFold(args[0], "--help") {
		return c.usage()
	}

	if subcmd, ok := c.Subcommands[args[0]]; ok {
		return subcmd.Run(args[1:])
	}

	return fmt.Errorf("unknown command: %s", args[0])
}

// usage prints the command usage
func (c *Command) usage() error {
	fmt.Fprintf(c.out, "Usage: %s <command> [args]\n\n", c.Name)
	fmt.Fprintf(c.out, "Commands:\n")

	names := make([]string, 0, len(c.Subcommands))
	for name := range c.Subcommands {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(c.out, "  %-15s %s\n", name, c.Subcommands[name].Description)
	}
	return nil
}
