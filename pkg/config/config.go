package config

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/ajitpratap0/voterelay/pkg/errors"
)

// Backend selector values accepted in WHICH_DBM
const (
	DBMDB2      = "DB2"
	DBMPostgres = "POSTGRES"
)

// DB2 connection method values accepted in DB2_METHOD
const (
	DB2MethodODBC = "ODBC"
	DB2MethodREST = "REST"
)

// Registry names of the sink variants
const (
	SinkPostgres = "postgres"
	SinkDB2ODBC  = "db2-odbc"
	SinkDB2REST  = "db2-rest"
)

// Credential defaults that depend on the DB2 connection method
const (
	defaultDB2ODBCUser     = "db2inst1"
	defaultDB2ODBCPassword = "passw0rd"
	defaultDB2RESTUser     = "IBMUSER"
	defaultDB2RESTPassword = "SYS1"
)

const redactedValue = "****"

// Config is the single configuration structure of the worker. Treat it as
// immutable once Resolve returns.
type Config struct {
	// Redis settings for the queue store
	Redis RedisConfig `yaml:"redis" json:"redis"`

	// Backend selects the relational sink
	Backend BackendConfig `yaml:"backend" json:"backend"`

	// Postgres connection parameters
	Postgres PostgresConfig `yaml:"postgres" json:"postgres"`

	// DB2 connection parameters, shared by ODBC and REST modes
	DB2 DB2Config `yaml:"db2" json:"db2"`

	// Worker controls the poll loop
	Worker WorkerConfig `yaml:"worker" json:"worker"`

	// Debug enables verbose request/response logging
	Debug bool `yaml:"debug" json:"debug" env:"DEBUG_LOGGING"`

	Logging LoggingConfig `yaml:"logging" json:"logging"`
	Metrics MetricsConfig `yaml:"metrics" json:"metrics"`
	Tracing TracingConfig `yaml:"tracing" json:"tracing"`
}

// RedisConfig contains the queue store connection settings.
type RedisConfig struct {
	// Host is a service name, hostname, or ip address
	Host     string `yaml:"host" json:"host" env:"REDIS_HOST"`
	Port     int    `yaml:"port" json:"port" env:"REDIS_PORT"`
	Password string `yaml:"password" json:"password" env:"REDIS_PASSWORD"`
	DB       int    `yaml:"db" json:"db" env:"REDIS_DB"`
	// Timeout applies to dial, read and write
	Timeout time.Duration `yaml:"timeout" json:"timeout" env:"REDIS_TIMEOUT"`
}

// Addr returns host:port for the redis client
func (r RedisConfig) Addr() string {
	return net.JoinHostPort(r.Host, strconv.Itoa(r.Port))
}

// BackendConfig contains the sink selectors.
type BackendConfig struct {
	// WhichDBM is DB2 or POSTGRES
	WhichDBM string `yaml:"which_dbm" json:"which_dbm" env:"WHICH_DBM"`
	// DB2Method is ODBC or REST; only read when WhichDBM is DB2
	DB2Method string `yaml:"db2_method" json:"db2_method" env:"DB2_METHOD"`
}

// PostgresConfig contains the Postgres sink connection settings.
type PostgresConfig struct {
	Host     string `yaml:"host" json:"host" env:"PG_HOSTNAME"`
	Port     int    `yaml:"port" json:"port" env:"PG_PORT"`
	Database string `yaml:"database" json:"database" env:"PG_DATABASE"`
	User     string `yaml:"user" json:"user" env:"PG_USER"`
	Password string `yaml:"password" json:"password" env:"PG_PASSWORD"`
	// MaxConns caps the pool size
	MaxConns int32 `yaml:"max_conns" json:"max_conns" env:"PG_MAX_CONNS"`
}

// DB2Config contains the DB2 sink settings for both connection methods.
type DB2Config struct {
	Driver   string `yaml:"driver" json:"driver" env:"DB2_DRIVER"`
	Database string `yaml:"database" json:"database" env:"DB2_DATABASE"`
	Hostname string `yaml:"hostname" json:"hostname" env:"DB2_HOSTNAME"`
	Port     string `yaml:"port" json:"port" env:"DB2_PORT"`
	Protocol string `yaml:"protocol" json:"protocol" env:"DB2_PROTOCOL"`
	Schema   string `yaml:"schema" json:"schema" env:"DB2_SCHEMA"`
	// User and Password default per method when left empty
	User     string `yaml:"user" json:"user" env:"DB2_USER"`
	Password string `yaml:"password" json:"password" env:"DB2_PASSWORD"`
	// RESTURL is the endpoint used in REST mode
	RESTURL string `yaml:"rest_url" json:"rest_url" env:"DB2_REST_APIURL"`
}

// WorkerConfig controls the poll loop.
type WorkerConfig struct {
	// ListKey is the redis list consumed with RPOP
	ListKey string `yaml:"list_key" json:"list_key" env:"QUEUE_KEY"`
	// PollInterval is the fixed sleep after every iteration
	PollInterval time.Duration `yaml:"poll_interval" json:"poll_interval" env:"POLL_INTERVAL"`
	// OperationTimeout bounds a single pop or sink call
	OperationTimeout time.Duration `yaml:"operation_timeout" json:"operation_timeout" env:"OPERATION_TIMEOUT"`
}

// LoggingConfig controls the zap logger.
type LoggingConfig struct {
	Level  string `yaml:"level" json:"level" env:"LOG_LEVEL"`
	Format string `yaml:"format" json:"format" env:"LOG_FORMAT"`
	// Output is a zap sink path; empty means stdout
	Output string `yaml:"output" json:"output" env:"LOG_OUTPUT"`
}

// MetricsConfig controls the prometheus listener.
type MetricsConfig struct {
	// Addr is the listen address for /metrics; empty disables the listener
	Addr string `yaml:"addr" json:"addr" env:"METRICS_ADDR"`
}

// TracingConfig controls OpenTelemetry tracing.
type TracingConfig struct {
	Enabled     bool   `yaml:"enabled" json:"enabled" env:"TRACING_ENABLED"`
	ServiceName string `yaml:"service_name" json:"service_name" env:"TRACING_SERVICE_NAME"`
}

// Default returns a Config populated with the documented defaults. DB2
// credentials stay empty here; they depend on the method and are filled in
// by ApplyMethodDefaults.
func Default() *Config {
	return &Config{
		Redis: RedisConfig{
			Host:     "redis",
			Port:     6379,
			Password: "password",
			DB:       0,
			Timeout:  5 * time.Second,
		},
		Backend: BackendConfig{
			WhichDBM:  DBMDB2,
			DB2Method: DB2MethodODBC,
		},
		Postgres: PostgresConfig{
			Host:     "postgresql",
			Port:     5432,
			Database: "db",
			User:     "admin",
			Password: "admin",
			MaxConns: 4,
		},
		DB2: DB2Config{
			Driver:   "IBM DB2 ODBC DRIVER",
			Database: "SAMPLEDB",
			Hostname: "localhost",
			Port:     "50000",
			Protocol: "TCPIP",
			Schema:   "TEAM1",
		},
		Worker: WorkerConfig{
			ListKey:          "votes",
			PollInterval:     5 * time.Second,
			OperationTimeout: 30 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Tracing: TracingConfig{
			ServiceName: "vote-worker",
		},
	}
}

// ApplyMethodDefaults fills DB2 credentials that no layer has set with the
// defaults of the selected connection method.
func (c *Config) ApplyMethodDefaults() {
	c.applyMethodDefaults(c.DB2.User != "", c.DB2.Password != "")
}

// applyMethodDefaults fills the credentials not marked as set. An explicitly
// set empty value is kept.
func (c *Config) applyMethodDefaults(userSet, passwordSet bool) {
	user, password := defaultDB2ODBCUser, defaultDB2ODBCPassword
	if c.Backend.DB2Method == DB2MethodREST {
		user, password = defaultDB2RESTUser, defaultDB2RESTPassword
	}
	if !userSet {
		c.DB2.User = user
	}
	if !passwordSet {
		c.DB2.Password = password
	}
}

// Validate checks the backend selectors and the worker settings. All
// problems are reported together.
func (c *Config) Validate() error {
	var problems []string

	switch c.Backend.WhichDBM {
	case DBMDB2:
		switch c.Backend.DB2Method {
		case DB2MethodODBC:
		case DB2MethodREST:
			if c.DB2.RESTURL == "" {
				problems = append(problems, "DB2_REST_APIURL is required when DB2_METHOD is REST")
			}
		default:
			problems = append(problems, fmt.Sprintf("invalid setting %q for DB2_METHOD, should be ODBC or REST", c.Backend.DB2Method))
		}
	case DBMPostgres:
	default:
		problems = append(problems, fmt.Sprintf("invalid setting %q for WHICH_DBM, should be DB2 or POSTGRES", c.Backend.WhichDBM))
	}

	if c.Worker.ListKey == "" {
		problems = append(problems, "QUEUE_KEY must not be empty")
	}
	if c.Worker.PollInterval <= 0 {
		problems = append(problems, "POLL_INTERVAL must be positive")
	}
	if c.Worker.OperationTimeout <= 0 {
		problems = append(problems, "OPERATION_TIMEOUT must be positive")
	}
	if c.Redis.Host == "" {
		problems = append(problems, "REDIS_HOST must not be empty")
	}

	if len(problems) > 0 {
		return errors.New(errors.ErrorTypeConfig, strings.Join(problems, "; ")).
			WithDetail("problems", problems)
	}
	return nil
}

// SinkName maps the backend selectors to a registry name. It assumes
// Validate has passed.
func (c *Config) SinkName() string {
	if c.Backend.WhichDBM == DBMPostgres {
		return SinkPostgres
	}
	if c.Backend.DB2Method == DB2MethodREST {
		return SinkDB2REST
	}
	return SinkDB2ODBC
}

// Redacted returns a copy with every secret masked, suitable for logging.
func (c *Config) Redacted() *Config {
	cp := *c
	if cp.Redis.Password != "" {
		cp.Redis.Password = redactedValue
	}
	if cp.Postgres.Password != "" {
		cp.Postgres.Password = redactedValue
	}
	if cp.DB2.Password != "" {
		cp.DB2.Password = redactedValue
	}
	return &cp
}
