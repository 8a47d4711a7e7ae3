package db2rest

import (
	"github.com/ajitpratap0/voterelay/pkg/config"
	"github.com/ajitpratap0/voterelay/pkg/connector/registry"
)

func init() {
	registry.RegisterSink(&registry.ConnectorInfo{
		Name:        config.SinkDB2REST,
		Description: "IBM DB2 sink posting votes to a REST service with basic auth",
		Selector:    "WHICH_DBM=DB2 DB2_METHOD=REST",
	}, NewSink)
}
