package main

import (
	"context"

	"github.com/trezcool/goose"

	"github.com/trezcool/masomo-admin/core"
	"github.com/trezcool/masomo-admin/fs"
	"github.com/trezcool/masomo-admin/storage/database"
)

var gooseRunFunc = goose.RunFS // mockable

func (cli *commandLine) requirePostgres(cmd string) error {
	if cli.conf.Store.Backend != core.StorePostgres {
		return core.NewArgumentError(cmd + " requires the " + core.StorePostgres + " store (got " + cli.conf.Store.Backend + ")")
	}
	return nil
}

func (cli *commandLine) migrate(args []string) error {
	if err := cli.requirePostgres("migrate"); err != nil {
		return err
	}
	if err := cli.connect(context.Background()); err != nil {
		return err
	}

	arguments := make([]string, 0)
	if len(args) > 1 {
		arguments = append(arguments, args[1:]...)
	}
	return gooseRunFunc(args[0], cli.db, appfs.FS, appfs.MigrationsDir, arguments...)
}

var (
	createIfNotExistFunc = database.CreateIfNotExist // mockable
	migrateFunc          = database.Migrate          // mockable
)

func (cli *commandLine) createDB() error {
	if err := cli.requirePostgres("createdb"); err != nil {
		return err
	}
	if err := createIfNotExistFunc(cli.conf); err != nil {
		return err
	}
	if err := cli.connect(context.Background()); err != nil {
		return err
	}
	if err := migrateFunc(cli.db); err != nil {
		return err
	}
	cli.logger.Info("database " + cli.conf.Database.Name + " is ready")
	return nil
}
