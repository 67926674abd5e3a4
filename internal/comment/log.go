package comment

import "github.com/btcsuite/btclog/v2"

// Subsystem is the logging tag for the comment service.
const Subsystem = "CMNT"

var log = btclog.Disabled

// UseLogger sets the package logger.
func UseLogger(logger btclog.Logger) {
	log = logger
}
