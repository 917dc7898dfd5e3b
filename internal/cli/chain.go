package cli

import (
	"context"
	"flag"
	"fmt"

	"gitlab.com/yelinaung/expense-approval/internal/models"
)

func (a *App) chainCommands() []command {
	return []command{
		{"create", "create an approval chain", a.chainCreate},
		{"list", "list chains in a workspace", a.persistent(a.chainList)},
		{"activate", "make a chain eligible for matching", a.persistent(a.chainToggle(true))},
		{"deactivate", "remove a chain from matching", a.persistent(a.chainToggle(false))},
		{"delete", "delete a chain", a.persistent(a.chainDelete)},
	}
}

func (a *App) chainCreate(ctx context.Context, args []string) error {
	fs := a.flagSet("chain create")
	params := models.ApprovalChainParams{}
	var approvers, categories listFlag
	var minAmount, maxAmount decimalFlag
	fs.StringVar(&params.WorkspaceID, "workspace", "", "workspace id")
	fs.StringVar(&params.Name, "name", "", "chain name")
	fs.StringVar(&params.Description, "description", "", "optional description")
	fs.Var(&approvers, "approvers", "comma separated approver ids, in order")
	fs.Var(&categories, "categories", "comma separated category ids the chain is limited to")
	fs.Var(&minAmount, "min", "minimum amount, inclusive")
	fs.Var(&maxAmount, "max", "maximum amount, inclusive")
	fs.BoolVar(&params.RequiresReceipt, "requires-receipt", false, "only match expenses with a receipt")
	if err := a.parse(fs, args, "workspace", "name", "approvers"); err != nil {
		return err
	}
	params.ApproverSequence = approvers
	params.CategoryIDs = categories
	params.MinAmount = minAmount.value
	params.MaxAmount = maxAmount.value

	chain, err := a.Chains.CreateChain(ctx, params)
	if err != nil {
		return err
	}
	a.printChain(chain)
	return nil
}

func (a *App) chainList(ctx context.Context, args []string) error {
	fs := a.flagSet("chain list")
	workspaceID := fs.String("workspace", "", "workspace id")
	activeOnly := fs.Bool("active", false, "only list active chains")
	if err := a.parse(fs, args, "workspace"); err != nil {
		return err
	}

	list := a.Chains.ListChains
	if *activeOnly {
		list = a.Chains.ListActiveChains
	}
	chains, err := list(ctx, *workspaceID)
	if err != nil {
		return err
	}
	a.printChains(chains)
	return nil
}

func (a *App) chainToggle(active bool) func(ctx context.Context, args []string) error {
	return func(ctx context.Context, args []string) error {
		name, toggle := "chain deactivate", a.Chains.DeactivateChain
		if active {
			name, toggle = "chain activate", a.Chains.ActivateChain
		}
		fs := a.flagSet(name)
		id := chainIDFlag(fs)
		if err := a.parse(fs, args, "id"); err != nil {
			return err
		}
		chain, err := toggle(ctx, *id)
		if err != nil {
			return err
		}
		a.printChain(chain)
		return nil
	}
}

func (a *App) chainDelete(ctx context.Context, args []string) error {
	fs := a.flagSet("chain delete")
	id := chainIDFlag(fs)
	if err := a.parse(fs, args, "id"); err != nil {
		return err
	}
	if err := a.Chains.DeleteChain(ctx, *id); err != nil {
		return err
	}
	fmt.Fprintf(a.Out, "deleted chain %s\n", *id)
	return nil
}

func chainIDFlag(fs *flag.FlagSet) *string {
	return fs.String("id", "", "chain id")
}
