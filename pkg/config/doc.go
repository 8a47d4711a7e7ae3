// Package config provides configuration management for the vote relay worker.
//
// # Layers
//
// Resolve applies, in order:
//
//  1. Default(): documented defaults for every setting
//  2. an optional YAML file, with ${VAR_NAME} substitution
//  3. environment variables (REDIS_HOST, WHICH_DBM, DB2_METHOD, PG_*, DB2_*, ...)
//  4. DB2 credential defaults for the selected method (ODBC: db2inst1,
//     REST: IBMUSER) when nothing else set them
//
// # Usage
//
//	cfg, err := config.Resolve(config.ResolveOptions{File: path})
//	if err != nil {
//		return err
//	}
//	if err := cfg.Validate(); err != nil {
//		return err
//	}
//	sink, err := registry.CreateSink(cfg.SinkName(), cfg, log)
//
// ## Environment Variable Substitution
//
//	# worker.yaml
//	backend:
//	  which_dbm: POSTGRES
//	postgres:
//	  host: pg.internal
//	  password: ${PG_PASSWORD}
//
// Validate rejects unknown WHICH_DBM or DB2_METHOD values. Startup stops
// on a validation failure.
package config
