package actor

import "github.com/btcsuite/btclog/v2"

// Subsystem is the logging tag for the actor runtime.
const Subsystem = "ACTR"

// log is the package logger. It is silent until UseLogger is called.
var log = btclog.Disabled

// UseLogger sets the package logger.
func UseLogger(logger btclog.Logger) {
	log = logger
}
