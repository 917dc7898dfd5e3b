// Package cli implements the operator command line: chain authoring and
// workflow actions against the configured store.
package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"

	"gitlab.com/yelinaung/expense-approval/internal/approval"
)

// ErrUsage is returned for unknown commands and bad flags. The usage text
// has already been written when it is returned.
var ErrUsage = errors.New("invalid usage")

// ErrEphemeralStore is returned for commands that read state left by an
// earlier run when the store does not outlive the process.
var ErrEphemeralStore = errors.New("command needs a persistent store")

// App wires the approval services to subcommands.
type App struct {
	Chains    *approval.ChainService
	Workflows *approval.WorkflowService
	// Migrate applies database migrations. Nil when the store needs none.
	Migrate func(ctx context.Context) error
	// Ephemeral is set when every run starts from an empty store.
	Ephemeral bool
	Version   string
	Out       io.Writer
	Err       io.Writer
}

type command struct {
	name    string
	summary string
	run     func(ctx context.Context, args []string) error
}

// Run executes the subcommand named by args[0].
func (a *App) Run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		a.usage("", a.commands())
		return ErrUsage
	}
	return a.dispatch(ctx, "", a.commands(), args)
}

func (a *App) commands() []command {
	return []command{
		{"version", "print build information", a.runVersion},
		{"migrate", "apply database migrations", a.runMigrate},
		{"chain", "manage approval chains", func(ctx context.Context, args []string) error {
			return a.dispatch(ctx, "chain", a.chainCommands(), args)
		}},
		{"workflow", "act on expense workflows", a.persistent(func(ctx context.Context, args []string) error {
			return a.dispatch(ctx, "workflow", a.workflowCommands(), args)
		})},
	}
}

func (a *App) dispatch(ctx context.Context, prefix string, cmds []command, args []string) error {
	if len(args) == 0 {
		a.usage(prefix, cmds)
		return ErrUsage
	}
	for _, cmd := range cmds {
		if cmd.name == args[0] {
			return cmd.run(ctx, args[1:])
		}
	}
	fmt.Fprintf(a.Err, "unknown command %q\n", args[0])
	a.usage(prefix, cmds)
	return ErrUsage
}

// persistent refuses run on an ephemeral store, where it could only ever
// see an empty one.
func (a *App) persistent(run func(ctx context.Context, args []string) error) func(ctx context.Context, args []string) error {
	return func(ctx context.Context, args []string) error {
		if a.Ephemeral {
			fmt.Fprintln(a.Err, "the memory store starts empty on every run; set STORE=postgres to use this command")
			return ErrEphemeralStore
		}
		return run(ctx, args)
	}
}

func (a *App) usage(prefix string, cmds []command) {
	name := "expense-approval"
	if prefix != "" {
		name += " " + prefix
	}
	fmt.Fprintf(a.Err, "Usage: %s <command> [flags]\n\nCommands:\n", name)
	for _, cmd := range cmds {
		fmt.Fprintf(a.Err, "  %-10s %s\n", cmd.name, cmd.summary)
	}
}

// flagSet returns a FlagSet that reports errors instead of exiting.
func (a *App) flagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(a.Err)
	return fs
}

func (a *App) parse(fs *flag.FlagSet, args []string, required ...string) error {
	if err := fs.Parse(args); err != nil {
		return ErrUsage
	}
	set := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })
	for _, name := range required {
		if !set[name] {
			fmt.Fprintf(a.Err, "flag -%s is required\n", name)
			fs.Usage()
			return ErrUsage
		}
	}
	return nil
}

func (a *App) runVersion(_ context.Context, _ []string) error {
	fmt.Fprintf(a.Out, "expense-approval %s\n", a.Version)
	return nil
}

func (a *App) runMigrate(ctx context.Context, _ []string) error {
	if a.Migrate == nil {
		fmt.Fprintln(a.Out, "nothing to migrate for the memory store")
		return nil
	}
	if err := a.Migrate(ctx); err != nil {
		return err
	}
	fmt.Fprintln(a.Out, "migrations applied")
	return nil
}
