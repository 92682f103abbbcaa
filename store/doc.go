// Package store persists typed records in named object stores and exposes
// them to the query engine.
//
// A Database wraps one Driver (memory, badger or sqlite) and the list of
// stores it declares. On first use the driver is opened and its schema is
// brought in line with the declared stores: missing stores are created,
// undeclared ones are removed, and the schema version is bumped.
//
//	db, err := store.Open(cfg.Database, log)
//	users := store.NewCollection[User](db, "users")
//
//	users.Insert(User{Name: "ada"}, User{Name: "alan"})
//	if err := users.Submit(ctx); err != nil {
//	    return err
//	}
//
//	names, err := query.Select(users.Query().Where(func(r store.Record[User], _ int) bool {
//	    return r.Value.Active
//	}), func(r store.Record[User], _ int) string { return r.Value.Name }).Collect(ctx)
//
// Drivers register themselves with RegisterDriver when their package is
// imported.
package store
