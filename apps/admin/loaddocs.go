package main

import (
	"context"
	"fmt"
	"os"

	"github.com/pkg/errors"

	"github.com/trezcool/masomo-admin/core"
	"github.com/trezcool/masomo-admin/storage/database/docrepos"
)

func (cli *commandLine) loadFixtures(ctx context.Context, path string) error {
	f, err := os.Open(core.CleanString(path))
	if err != nil {
		return errors.Wrap(err, "opening fixtures")
	}
	defer func() { _ = f.Close() }()

	fx, err := docrepos.ReadFixtures(f)
	if err != nil {
		return errors.Wrap(err, path)
	}
	if err = docrepos.LoadFixtures(ctx, cli.store, fx); err != nil {
		return err
	}
	cli.logger.Info(fmt.Sprintf("loaded %d course(s) and %d branch(es) from %s", len(fx.Courses), len(fx.Branches), path))
	return nil
}

func (cli *commandLine) loadDocs(path string) error {
	ctx := context.Background()
	if err := cli.connect(ctx); err != nil {
		return err
	}
	return cli.loadFixtures(ctx, path)
}
