package main

import (
	"context"
	"fmt"

	"github.com/trezcool/masomo-admin/core"
	"github.com/trezcool/masomo-admin/core/catalog"
)

type repairOptions struct {
	dryRun bool
	yes    bool
	diff   bool
	limit  int
}

func (cli *commandLine) repairBranches(opts repairOptions) error {
	ctx := context.Background()
	if err := cli.connect(ctx); err != nil {
		return err
	}

	// show the plan & ask before writing
	if !opts.dryRun && !opts.yes {
		if !isTerminalFunc() {
			return core.NewArgumentError("refusing to write branches without -yes when stdin is not a terminal")
		}
		plan, err := cli.catSvc.RepairAssignments(ctx, catalog.RepairOptions{DryRun: true, Limit: opts.limit})
		if err != nil {
			return err
		}
		printRepairReport(cli.out, plan, opts.diff)
		if plan.ChangedCount() == 0 {
			_, _ = fmt.Fprintln(cli.out, "Nothing to repair.")
			return nil
		}
		ok, err := cli.confirm(fmt.Sprintf("Write %d branch(es)?", len(plan.Changes)))
		if err != nil {
			return err
		}
		if !ok {
			return errAborted
		}
		opts.diff = false // already shown
	}

	report, err := cli.catSvc.RepairAssignments(ctx, catalog.RepairOptions{DryRun: opts.dryRun, Limit: opts.limit})
	if report.Changes != nil {
		printRepairReport(cli.out, report, opts.diff)
	}
	return err
}
