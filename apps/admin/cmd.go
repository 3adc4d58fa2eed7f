package main

import (
	"bufio"
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"golang.org/x/term"

	"github.com/trezcool/masomo-admin/core"
	"github.com/trezcool/masomo-admin/core/catalog"
	"github.com/trezcool/masomo-admin/storage/database"
	"github.com/trezcool/masomo-admin/storage/database/docrepos"
	dummydb "github.com/trezcool/masomo-admin/storage/database/dummy"
	sqlxstore "github.com/trezcool/masomo-admin/storage/database/sqlx"
)

var (
	isTerminalFunc = func() bool { return term.IsTerminal(int(os.Stdin.Fd())) } // mockable

	errHelp    = errors.New("help provided")
	errAborted = errors.New("aborted")
)

type commandLine struct {
	conf   *core.Config
	logger core.Logger
	in     io.Reader
	out    io.Writer

	// set up by connect()
	db     *sql.DB // nil unless the store is postgres
	store  core.DocumentStore
	catSvc catalog.Service
}

func (cli *commandLine) printUsage() {
	_, _ = fmt.Fprintln(cli.out, "Usage:")
	_, _ = fmt.Fprintln(cli.out, "  createdb - create the app database & user if they do not exist, then migrate it")
	_, _ = fmt.Fprintln(cli.out, "  migrate COMMAND [ARGS] - run a goose migration command: up, up-by-one, up-to, down, down-to, redo, reset, status, version, create, fix")
	_, _ = fmt.Fprintln(cli.out, "  loaddocs -file PATH - load courses & branches from a JSON fixtures file")
	_, _ = fmt.Fprintln(cli.out, "  inspectbranches [-limit N] - list the courses assigned to every branch, then every course")
	_, _ = fmt.Fprintln(cli.out, "  repairbranches [-dry-run] [-yes] [-diff] [-limit N] - reassign courses to branches and rebuild their offered course titles")
}

func (cli *commandLine) newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(cli.out)
	return fs
}

// parse parses `args` with `fs`, mapping -h to errHelp.
func parse(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return errHelp
		}
		return err
	}
	return nil
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	createDBCmd := cli.newFlagSet("createdb")

	loadDocsCmd := cli.newFlagSet("loaddocs")
	loadDocsFile := loadDocsCmd.String("file", "", "Path of a JSON file like {\"courses\": [...], \"branches\": [...]}.")

	inspectCmd := cli.newFlagSet("inspectbranches")
	inspectLimit := inspectCmd.Int("limit", cli.conf.Store.FetchLimit, "Maximum number of branches and courses to read (0: all).")

	repairCmd := cli.newFlagSet("repairbranches")
	repairDryRun := repairCmd.Bool("dry-run", false, "Only print what would be written.")
	repairYes := repairCmd.Bool("yes", false, "Do not ask for confirmation before writing.")
	repairDiff := repairCmd.Bool("diff", false, "Print a diff of the offered courses of every changed branch.")
	repairLimit := repairCmd.Int("limit", cli.conf.Store.FetchLimit, "Only repair the first N branches (0: all); courses are always read in full.")

	switch args[1] {
	case "createdb":
		if err := parse(createDBCmd, args[2:]); err != nil {
			return err
		}
		return cli.createDB()
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])
	case "loaddocs":
		if err := parse(loadDocsCmd, args[2:]); err != nil {
			return err
		}
		if *loadDocsFile == "" {
			loadDocsCmd.Usage()
			return errHelp
		}
		return cli.loadDocs(*loadDocsFile)
	case "inspectbranches":
		if err := parse(inspectCmd, args[2:]); err != nil {
			return err
		}
		return cli.inspectBranches(*inspectLimit)
	case "repairbranches":
		if err := parse(repairCmd, args[2:]); err != nil {
			return err
		}
		return cli.repairBranches(repairOptions{
			dryRun: *repairDryRun,
			yes:    *repairYes,
			diff:   *repairDiff,
			limit:  *repairLimit,
		})
	default:
		cli.printUsage()
		return errHelp
	}
}

// connect opens the configured store, unless one is set already.
func (cli *commandLine) connect(ctx context.Context) error {
	if cli.store == nil {
		switch cli.conf.Store.Backend {
		case core.StorePostgres:
			db, err := database.Open(ctx, cli.conf)
			if err != nil {
				return err
			}
			cli.db = db
			cli.store = sqlxstore.New(db)
		case core.StoreMemory:
			db, err := dummydb.Open()
			if err != nil {
				return err
			}
			cli.store = db
			if cli.conf.Store.Fixtures != "" {
				if err = cli.loadFixtures(ctx, cli.conf.Store.Fixtures); err != nil {
					return err
				}
			}
		default:
			return core.NewArgumentError(fmt.Sprintf("unknown store backend %q", cli.conf.Store.Backend))
		}
	}
	if cli.catSvc == nil {
		cli.catSvc = catalog.NewService(docrepos.NewCatalogRepository(cli.store), cli.logger)
	}
	return nil
}

func (cli *commandLine) close() error {
	if cli.store == nil {
		return nil
	}
	return cli.store.Close()
}

// confirm asks `question` and reports whether the answer is yes.
func (cli *commandLine) confirm(question string) (bool, error) {
	_, _ = fmt.Fprintf(cli.out, "%s [y/N]: ", question)
	answer, err := bufio.NewReader(cli.in).ReadString('\n')
	if err != nil && err != io.EOF {
		return false, err
	}
	switch core.CleanString(answer, true /* lower */) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}
