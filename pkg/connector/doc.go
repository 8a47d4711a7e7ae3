// Package connector groups the endpoints of the vote relay.
//
//   - core: the Sink and Queue interfaces.
//   - registry: sink factories by name. Sinks register themselves from
//     init, so importing a sink package is enough to make it available.
//   - sources/redisqueue: the redis list the votes are popped from.
//   - destinations/postgres, destinations/db2odbc, destinations/db2rest: the
//     relational sinks.
//
// The relay picks exactly one sink at startup, using config.SinkName to
// map WHICH_DBM and DB2_METHOD to a registry name.
package connector
