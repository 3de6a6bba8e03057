package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/codewithboateng/adlint/internal/rules"
	"github.com/codewithboateng/adlint/internal/rulesdsl"
	"github.com/codewithboateng/adlint/internal/shared"
	"github.com/codewithboateng/adlint/internal/storage"
)

var version = "dev"

const (
	exitError     = 1
	exitUsage     = 2
	exitThreshold = 3
)

// exitCodeError carries a process exit code through cobra.
type exitCodeError struct {
	code int
	err  error
}

func (e *exitCodeError) Error() string { return e.err.Error() }
func (e *exitCodeError) Unwrap() error { return e.err }

func usageError(err error) error { return &exitCodeError{code: exitUsage, err: err} }

func usageArgs(check cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := check(cmd, args); err != nil {
			return usageError(err)
		}
		return nil
	}
}

type app struct {
	configPath string
	dbPath     string
	noDB       bool
	packPath   string
	logLevel   string
	logFormat  string

	cfg    shared.Config
	logger *slog.Logger
}

func main() {
	root := newRootCmd(&app{})
	if err := root.Execute(); err != nil {
		code := exitError
		var ec *exitCodeError
		if errors.As(err, &ec) {
			code = ec.code
		}
		if code != exitThreshold {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		os.Exit(code)
	}
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "adlint",
		Short: "adlint - cosmetics advertising compliance checker",
		Long: `adlint scans Korean cosmetics ad copy for expressions restricted by the
Cosmetics Act and the Fair Labeling and Advertising Act, and reports each
violation with its legal basis, a suggested rewrite and an overall risk level.`,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init(cmd)
		},
	}
	root.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error { return usageError(err) })

	pf := root.PersistentFlags()
	pf.StringVar(&a.configPath, "config", "", "path to YAML config (optional)")
	pf.StringVar(&a.dbPath, "db", "", "SQLite rule database path")
	pf.BoolVar(&a.noDB, "no-db", false, "use the in-memory catalog only")
	pf.StringVar(&a.packPath, "pack", "", "YAML rule pack replacing the built-in catalog")
	pf.StringVar(&a.logLevel, "log-level", "", "debug|info|warn|error")
	pf.StringVar(&a.logFormat, "log-format", "", "json|text")

	root.AddCommand(
		newCheckCmd(a),
		newDiffCmd(a),
		newRulesCmd(a),
		newServeCmd(a),
		newTokenCmd(),
		newConfigCmd(a),
		&cobra.Command{
			Use:   "version",
			Short: "Print version information",
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Fprintln(cmd.OutOrStdout(), "adlint", version)
			},
		},
	)
	return root
}

// init resolves configuration with flags > env > file > defaults.
func (a *app) init(cmd *cobra.Command) error {
	overrides := map[string]any{}
	flags := cmd.Flags()
	if flags.Changed("db") {
		overrides["database.path"] = a.dbPath
	}
	if flags.Changed("no-db") {
		overrides["database.persistent"] = !a.noDB
	}
	if flags.Changed("pack") {
		overrides["rules.pack"] = a.packPath
	}
	if flags.Changed("log-level") {
		overrides["logging.level"] = a.logLevel
	}
	if flags.Changed("log-format") {
		overrides["logging.format"] = a.logFormat
	}
	cfg, err := shared.LoadConfig(a.configPath, overrides)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.logger = shared.InitLogger(cfg.Logging.Format, cfg.Logging.Level)
	return nil
}

// openProvider builds the rule provider. An unopenable database leaves the
// provider in fallback mode rather than failing the command.
func (a *app) openProvider() (*rules.Provider, *storage.DB, error) {
	var loader rules.Loader = rules.BuiltinLoader{}
	if a.cfg.Rules.Pack != "" {
		loader = rulesdsl.PackLoader{Path: a.cfg.Rules.Pack}
	}

	var (
		store rules.Store
		db    *storage.DB
	)
	if a.cfg.Database.Persistent {
		var err error
		db, err = storage.OpenSQLite(a.cfg.Database.Path)
		if err != nil {
			a.logger.Warn("cannot open rule database", "path", a.cfg.Database.Path, "err", err)
		} else {
			store = db
		}
	}

	p := rules.NewProvider(store, loader, a.logger)
	if err := p.Initialize(); err != nil {
		if db != nil {
			db.Close()
		}
		return nil, nil, err
	}
	return p, db, nil
}

func closeDB(db *storage.DB) {
	if db != nil {
		_ = db.Close()
	}
}
