package cli

import (
	"context"
	"flag"

	"gitlab.com/yelinaung/expense-approval/internal/approval"
	"gitlab.com/yelinaung/expense-approval/internal/models"
)

func (a *App) workflowCommands() []command {
	return []command{
		{"initiate", "start the approval workflow for an expense", a.workflowInitiate},
		{"approve", "approve the current step", a.workflowStep("approve", a.Workflows.ApproveStep)},
		{"reject", "reject the current step (requires -comments)", a.workflowStep("reject", a.Workflows.RejectStep)},
		{"delegate", "hand the current step to another user", a.workflowDelegate},
		{"cancel", "cancel an open workflow", a.workflowCancel},
		{"show", "show the workflow for an expense", a.workflowShow},
		{"pending", "list workflows waiting on an approver", a.workflowPending},
		{"mine", "list workflows a user requested", a.workflowMine},
	}
}

func (a *App) workflowInitiate(ctx context.Context, args []string) error {
	fs := a.flagSet("workflow initiate")
	req := approval.InitiateRequest{}
	var amount decimalFlag
	var categoryID string
	fs.StringVar(&req.ExpenseID, "expense", "", "expense id")
	fs.StringVar(&req.WorkspaceID, "workspace", "", "workspace id")
	fs.StringVar(&req.RequesterID, "requester", "", "user submitting the expense")
	fs.Var(&amount, "amount", "expense amount")
	fs.StringVar(&categoryID, "category", "", "optional category id")
	fs.BoolVar(&req.HasReceipt, "receipt", false, "the expense has a receipt")
	if err := a.parse(fs, args, "expense", "workspace", "requester", "amount"); err != nil {
		return err
	}
	req.Amount = *amount.value
	if categoryID != "" {
		req.CategoryID = &categoryID
	}

	wf, err := a.Workflows.InitiateWorkflow(ctx, req)
	if err != nil {
		return err
	}
	a.printWorkflow(wf)
	return nil
}

type stepFunc func(ctx context.Context, action approval.StepAction) (*models.ExpenseWorkflow, error)

func (a *App) workflowStep(name string, apply stepFunc) func(ctx context.Context, args []string) error {
	return func(ctx context.Context, args []string) error {
		fs := a.flagSet("workflow " + name)
		action := stepActionFlags(fs)
		if err := a.parse(fs, args, "expense", "actor"); err != nil {
			return err
		}
		wf, err := apply(ctx, *action)
		if err != nil {
			return err
		}
		a.printWorkflow(wf)
		return nil
	}
}

func (a *App) workflowDelegate(ctx context.Context, args []string) error {
	fs := a.flagSet("workflow delegate")
	action := stepActionFlags(fs)
	to := fs.String("to", "", "user receiving the step")
	if err := a.parse(fs, args, "expense", "actor", "to"); err != nil {
		return err
	}
	wf, err := a.Workflows.DelegateStep(ctx, *action, *to)
	if err != nil {
		return err
	}
	a.printWorkflow(wf)
	return nil
}

func (a *App) workflowCancel(ctx context.Context, args []string) error {
	fs := a.flagSet("workflow cancel")
	expenseID := fs.String("expense", "", "expense id")
	actorID := fs.String("actor", "", "user cancelling the workflow")
	if err := a.parse(fs, args, "expense", "actor"); err != nil {
		return err
	}
	wf, err := a.Workflows.CancelWorkflow(ctx, *expenseID, *actorID)
	if err != nil {
		return err
	}
	a.printWorkflow(wf)
	return nil
}

func (a *App) workflowShow(ctx context.Context, args []string) error {
	fs := a.flagSet("workflow show")
	expenseID := fs.String("expense", "", "expense id")
	if err := a.parse(fs, args, "expense"); err != nil {
		return err
	}
	wf, err := a.Workflows.GetWorkflow(ctx, *expenseID)
	if err != nil {
		return err
	}
	a.printWorkflow(wf)
	return nil
}

func (a *App) workflowPending(ctx context.Context, args []string) error {
	fs := a.flagSet("workflow pending")
	approverID := fs.String("approver", "", "approver id")
	workspaceID := fs.String("workspace", "", "workspace id")
	if err := a.parse(fs, args, "approver", "workspace"); err != nil {
		return err
	}
	workflows, err := a.Workflows.ListPendingForApprover(ctx, *approverID, *workspaceID)
	if err != nil {
		return err
	}
	a.printWorkflows(workflows)
	return nil
}

func (a *App) workflowMine(ctx context.Context, args []string) error {
	fs := a.flagSet("workflow mine")
	userID := fs.String("user", "", "requester id")
	workspaceID := fs.String("workspace", "", "workspace id")
	if err := a.parse(fs, args, "user", "workspace"); err != nil {
		return err
	}
	workflows, err := a.Workflows.ListRequestedBy(ctx, *userID, *workspaceID)
	if err != nil {
		return err
	}
	a.printWorkflows(workflows)
	return nil
}

func stepActionFlags(fs *flag.FlagSet) *approval.StepAction {
	action := &approval.StepAction{}
	fs.StringVar(&action.ExpenseID, "expense", "", "expense id")
	fs.StringVar(&action.ActorID, "actor", "", "user acting on the step")
	fs.IntVar(&action.StepNumber, "step", 0, "only act if this step is current")
	fs.StringVar(&action.Comments, "comments", "", "comments recorded on the step")
	return action
}
