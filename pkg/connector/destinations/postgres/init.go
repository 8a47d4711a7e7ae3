package postgres

import (
	"github.com/ajitpratap0/voterelay/pkg/config"
	"github.com/ajitpratap0/voterelay/pkg/connector/registry"
)

func init() {
	registry.RegisterSink(&registry.ConnectorInfo{
		Name:        config.SinkPostgres,
		Description: "PostgreSQL sink writing votes to public.votes through a pgx pool",
		Selector:    "WHICH_DBM=POSTGRES",
	}, NewSink)
}
