// Package voterelay is a queue-to-database relay for a voting application.
//
// A single worker process pops JSON vote messages such as
//
//	{"vote": "a", "voter_id": "71f0caa7172a84eb"}
//
// from the right end of the "votes" redis list and writes each one to the
// configured relational sink:
//
//   - postgres: public.votes through a pgx pool
//   - db2-odbc: {SCHEMA}.VOTES through the ODBC driver
//   - db2-rest: an HTTP POST to a REST service in front of DB2
//
// The loop polls on a fixed interval. Every failure (unreachable cache or
// database, malformed message, rejected insert) is logged and the loop
// continues with the next message. Nothing is retried.
//
// # Quick Start
//
//	export WHICH_DBM=POSTGRES PG_HOSTNAME=localhost REDIS_HOST=localhost
//	vote-worker validate
//	vote-worker run
//
// # Layout
//
//   - cmd/vote-worker: the CLI (run, validate, sinks, version)
//   - internal/relay: the poll loop
//   - pkg/config: defaults, YAML file and environment resolution
//   - pkg/connector: the Sink and Queue interfaces, the sink registry and
//     the sink and queue implementations
//   - pkg/models: the vote record and its wire formats
//   - pkg/errors, pkg/logger, pkg/metrics, pkg/observability: ambient support
package voterelay
