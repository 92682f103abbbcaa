package main

import (
	"github.com/spf13/cobra"

	"github.com/kbukum/smokedb/bootstrap"
	"github.com/kbukum/smokedb/config"
	"github.com/kbukum/smokedb/httpapi"
	"github.com/kbukum/smokedb/server"
	"github.com/kbukum/smokedb/sse"
	"github.com/kbukum/smokedb/store"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.load(config.WithOverride("http.addr", addr))
			if err != nil {
				return err
			}
			app, err := bootstrap.NewApp(cfg, bootstrap.WithSummaryWriter(cmd.ErrOrStderr()))
			if err != nil {
				return err
			}
			db, err := openDatabase(app)
			if err != nil {
				return err
			}
			if _, err := registerServer(app, db); err != nil {
				return err
			}
			return app.Run(cmd.Context())
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address, overriding http.addr")
	return cmd
}

// registerServer wires the change feed and the HTTP server into app. The
// database must already be registered so it starts first and stops last.
func registerServer(app *bootstrap.App, db *store.Database) (*server.Server, error) {
	hub := sse.NewHub(app.Logger.WithComponent("sse"))
	feed := sse.NewComponent(hub, "/changes")

	srv := server.New(app.Cfg.HTTP, app.Logger.WithComponent("http"))
	srv.ApplyDefaults(app.Name, app.Components.HealthAll)

	api, err := httpapi.New(db, app.Cfg.HTTP,
		httpapi.WithLogger(app.Logger.WithComponent("httpapi")),
		httpapi.WithChangeFeed(hub),
	)
	if err != nil {
		return nil, err
	}
	api.Register(srv.GinEngine())

	if err := app.RegisterComponent(feed); err != nil {
		return nil, err
	}
	if err := app.RegisterComponent(server.NewComponent(srv)); err != nil {
		return nil, err
	}
	return srv, nil
}
