// Package validation checks configuration and request input for smokedb.
//
// Struct tag validation uses go-playground/validator with two extra tags:
// storename for object store names and recordkey for record keys.
//
//	type DatabaseConfig struct {
//	    Name   string   `validate:"required,storename"`
//	    Stores []string `validate:"dive,storename"`
//	}
//	err := validation.Validate(cfg)
//
// The imperative Validator collects field errors for input that does not
// live in a struct, such as path parameters.
//
//	err := validation.New().StoreName("store", c.Param("store")).Validate()
package validation
