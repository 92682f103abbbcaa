// Package bootstrap runs a smokedb process: it starts the registered
// components, runs lifecycle hooks, prints a startup summary and shuts
// everything down in reverse order on SIGINT or SIGTERM.
//
//	app, err := bootstrap.NewApp(cfg)
//	_ = app.RegisterComponent(db)
//	_ = app.RegisterComponent(httpServer)
//	return app.Run(ctx)
//
// One-shot commands use RunTask, which cancels the task on a signal instead
// of waiting for one.
package bootstrap
