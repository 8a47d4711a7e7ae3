package db2odbc

import (
	"github.com/ajitpratap0/voterelay/pkg/config"
	"github.com/ajitpratap0/voterelay/pkg/connector/registry"
)

func init() {
	registry.RegisterSink(&registry.ConnectorInfo{
		Name:        config.SinkDB2ODBC,
		Description: "IBM DB2 sink writing votes to {SCHEMA}.VOTES over ODBC",
		Selector:    "WHICH_DBM=DB2 DB2_METHOD=ODBC",
	}, NewSink)
}
