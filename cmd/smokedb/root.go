package main

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/kbukum/smokedb/bootstrap"
	"github.com/kbukum/smokedb/config"
	"github.com/kbukum/smokedb/observability"
	"github.com/kbukum/smokedb/store"
)

var errNoStores = errors.New("no object stores declared: set database.stores in the config or pass --stores")

// rootOptions are the persistent flags shared by every command.
type rootOptions struct {
	configFile string
	envFile    string
	driver     string
	path       string
	stores     []string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "smokedb",
		Short:         "An embedded object-store database with a deferred query engine",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	f := cmd.PersistentFlags()
	f.StringVarP(&opts.configFile, "config", "c", "", "config file (default ./smokedb.yml, ./config/smokedb.yml or ~/.smokedb/config.yml)")
	f.StringVar(&opts.envFile, "env-file", "", "env file (default ./.env.smokedb or ./.env)")
	f.StringVar(&opts.driver, "driver", "", "storage driver: memory, badger or sqlite")
	f.StringVar(&opts.path, "path", "", "badger directory or sqlite file")
	f.StringSliceVar(&opts.stores, "stores", nil, "object stores to declare, replacing database.stores")
	f.StringVar(&opts.logLevel, "log-level", "", "log level, overriding logging.level")

	cmd.AddCommand(
		newServeCmd(opts),
		newInsertCmd(opts),
		newQueryCmd(opts),
		newCountCmd(opts),
		newStoresCmd(opts),
		newTokenCmd(opts),
		newVersionCmd(),
	)
	return cmd
}

// load reads the configuration with the persistent flags applied on top.
func (o *rootOptions) load(extra ...config.LoaderOption) (*config.Config, error) {
	lo := []config.LoaderOption{
		config.WithConfigFile(o.configFile),
		config.WithEnvFile(o.envFile),
		config.WithOverride("database.driver", o.driver),
		config.WithOverride("database.path", o.path),
	}
	if len(o.stores) > 0 {
		lo = append(lo, config.WithOverride("database.stores", o.stores))
	}
	lo = append(lo, extra...)
	if o.logLevel != "" {
		lo = append(lo, config.WithOverride("logging.level", o.logLevel))
	}
	return config.Load(lo...)
}

// openDatabase builds the configured database and registers it with app.
// Opening migrates the stores to the declared set, so an empty declaration
// is refused rather than dropping every store.
func openDatabase(app *bootstrap.App) (*store.Database, error) {
	if len(app.Cfg.Database.Stores) == 0 {
		return nil, errNoStores
	}
	metrics, err := observability.NewMetrics(observability.Meter())
	if err != nil {
		return nil, err
	}
	db, err := store.Open(app.Cfg.Database, app.Logger.WithComponent("store"), store.WithMetrics(metrics))
	if err != nil {
		return nil, err
	}
	if err := app.RegisterComponent(db); err != nil {
		return nil, err
	}
	return db, nil
}

// runTask opens the database and runs task against it. Logging defaults to
// warnings so command output stays readable.
func (o *rootOptions) runTask(cmd *cobra.Command, task func(ctx context.Context, db *store.Database) error) error {
	cfg, err := o.load(config.WithOverride("logging.level", "warn"))
	if err != nil {
		return err
	}
	app, err := bootstrap.NewApp(cfg, bootstrap.WithoutSummary())
	if err != nil {
		return err
	}
	db, err := openDatabase(app)
	if err != nil {
		return err
	}
	return app.RunTask(cmd.Context(), func(ctx context.Context) error {
		return task(ctx, db)
	})
}
