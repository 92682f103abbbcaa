// Package config loads smokedb configuration from a YAML file, a .env file
// and SMOKEDB_* environment variables.
//
// # Usage
//
//	cfg, err := config.Load(config.WithConfigFile("smokedb.yml"))
//
// Environment variables override file values. The SMOKEDB_ prefix is
// stripped and the rest maps onto nested keys, so SMOKEDB_DATABASE_DRIVER
// sets database.driver and SMOKEDB_DATABASE_SUBMIT_RETRIES sets
// database.submit_retries. Explicit overrides, such as CLI flags, win over
// everything else.
package config
