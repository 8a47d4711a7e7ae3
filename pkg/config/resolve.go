package config

import (
	"os"
	"strings"

	"github.com/caarlos0/env/v11"

	"github.com/ajitpratap0/voterelay/pkg/errors"
)

// ResolveOptions selects the optional layers used by Resolve.
type ResolveOptions struct {
	// File is an optional YAML file applied on top of the defaults
	File string
	// Environ replaces the process environment when non-nil
	Environ map[string]string
}

// Resolve builds the Config in order: defaults, optional YAML file,
// environment variables, then per-method DB2 credential defaults. It does
// not validate; call Validate on the result.
func Resolve(opts ResolveOptions) (*Config, error) {
	cfg := Default()

	environ := opts.Environ
	if environ == nil {
		environ = processEnviron()
	}
	lookup := func(key string) string { return environ[key] }

	if opts.File != "" {
		if err := Load(opts.File, cfg, lookup); err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to load config file").
				WithDetail("file", opts.File)
		}
	}
	userSet, passwordSet := cfg.DB2.User != "", cfg.DB2.Password != ""

	// Fields without a matching variable are left untouched, so the
	// defaults and file values survive.
	if err := env.ParseWithOptions(cfg, env.Options{Environment: environ}); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to parse environment")
	}

	// env skips empty values, but an empty credential is a real setting:
	// REDIS_PASSWORD="" means a redis without AUTH.
	for key, field := range credentialFields(cfg) {
		if v, ok := environ[key]; ok && v == "" {
			*field = ""
		}
	}
	_, envUser := environ["DB2_USER"]
	_, envPassword := environ["DB2_PASSWORD"]

	cfg.applyMethodDefaults(userSet || envUser, passwordSet || envPassword)
	return cfg, nil
}

func credentialFields(c *Config) map[string]*string {
	return map[string]*string{
		"REDIS_PASSWORD": &c.Redis.Password,
		"PG_USER":        &c.Postgres.User,
		"PG_PASSWORD":    &c.Postgres.Password,
		"DB2_USER":       &c.DB2.User,
		"DB2_PASSWORD":   &c.DB2.Password,
	}
}

func processEnviron() map[string]string {
	environ := make(map[string]string)
	for _, kv := range os.Environ() {
		if k, v, ok := strings.Cut(kv, "="); ok {
			environ[k] = v
		}
	}
	return environ
}
