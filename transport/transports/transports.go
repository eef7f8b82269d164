// Package transports imports all built-in transports for auto-registration.
// Import this package to have all transports registered with the default registry.
package transports

import (
	// Import all transports for side-effect registration
	_ "github.com/flowmesh/dispatchflow/transport/aws"
	_ "github.com/flowmesh/dispatchflow/transport/channel"
	_ "github.com/flowmesh/dispatchflow/transport/http"
	iotransport "github.com/flowmesh/dispatchflow/transport/io"
	_ "github.com/flowmesh/dispatchflow/transport/jetstream"
	_ "github.com/flowmesh/dispatchflow/transport/kafka"
	natstransport "github.com/flowmesh/dispatchflow/transport/nats"
	_ "github.com/flowmesh/dispatchflow/transport/postgres"
	rabbitmqtransport "github.com/flowmesh/dispatchflow/transport/rabbitmq"
	_ "github.com/flowmesh/dispatchflow/transport/sqlite"
)

// io, nats and rabbitmq have no init of their own, so they are registered here.
func init() {
	iotransport.Register()
	natstransport.Register()
	rabbitmqtransport.Register()
}
