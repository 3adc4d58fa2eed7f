package main

import (
	"context"

	"github.com/trezcool/masomo-admin/core/catalog"
)

func (cli *commandLine) inspectBranches(limit int) error {
	ctx := context.Background()
	if err := cli.connect(ctx); err != nil {
		return err
	}

	in, err := cli.catSvc.InspectAssignments(ctx, catalog.InspectOptions{Limit: limit})
	if err != nil {
		return err
	}
	printInspection(cli.out, in)
	return nil
}
