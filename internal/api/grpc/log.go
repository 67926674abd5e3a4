package lamprpc

import "github.com/btcsuite/btclog/v2"

// Subsystem is the logging tag for the gRPC server.
const Subsystem = "GRPC"

var log = btclog.Disabled

// UseLogger sets the package logger.
func UseLogger(logger btclog.Logger) {
	log = logger
}
