package cli

import (
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"gitlab.com/yelinaung/expense-approval/internal/models"
)

func (a *App) table() *tabwriter.Writer {
	return tabwriter.NewWriter(a.Out, 0, 0, 2, ' ', 0)
}

func (a *App) printChain(chain *models.ApprovalChain) {
	a.printChains([]*models.ApprovalChain{chain})
}

func (a *App) printChains(chains []*models.ApprovalChain) {
	if len(chains) == 0 {
		fmt.Fprintln(a.Out, "no chains")
		return
	}
	w := a.table()
	fmt.Fprintln(w, "ID\tNAME\tACTIVE\tAMOUNT\tRECEIPT\tAPPROVERS")
	for _, chain := range chains {
		fmt.Fprintf(w, "%s\t%s\t%t\t%s\t%t\t%s\n",
			chain.ID(),
			chain.Name(),
			chain.IsActive(),
			amountRange(chain),
			chain.RequiresReceipt(),
			strings.Join(chain.ApproverSequence(), ","),
		)
	}
	_ = w.Flush()
}

func amountRange(chain *models.ApprovalChain) string {
	lo, hi := "*", "*"
	if minAmount := chain.MinAmount(); minAmount != nil {
		lo = minAmount.String()
	}
	if maxAmount := chain.MaxAmount(); maxAmount != nil {
		hi = maxAmount.String()
	}
	return lo + ".." + hi
}

func (a *App) printWorkflow(wf *models.ExpenseWorkflow) {
	fmt.Fprintf(a.Out, "workflow %s expense %s status %s step %d/%d\n",
		wf.ID(), wf.ExpenseID(), wf.Status(), wf.CurrentStepNumber(), wf.TotalSteps())

	w := a.table()
	fmt.Fprintln(w, "STEP\tAPPROVER\tDELEGATED TO\tSTATUS\tPROCESSED\tCOMMENTS")
	for _, step := range wf.Steps() {
		processed := "-"
		if at := step.ProcessedAt(); at != nil {
			processed = at.UTC().Format(time.RFC3339)
		}
		delegatedTo := step.DelegatedTo()
		if delegatedTo == "" {
			delegatedTo = "-"
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\n",
			step.StepNumber(), step.ApproverID(), delegatedTo, step.Status(), processed, step.Comments())
	}
	_ = w.Flush()
}

func (a *App) printWorkflows(workflows []*models.ExpenseWorkflow) {
	if len(workflows) == 0 {
		fmt.Fprintln(a.Out, "no workflows")
		return
	}
	w := a.table()
	fmt.Fprintln(w, "EXPENSE\tWORKFLOW\tSTATUS\tSTEP\tCREATED")
	for _, wf := range workflows {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d/%d\t%s\n",
			wf.ExpenseID(), wf.ID(), wf.Status(), wf.CurrentStepNumber(), wf.TotalSteps(),
			wf.CreatedAt().UTC().Format(time.RFC3339))
	}
	_ = w.Flush()
}
