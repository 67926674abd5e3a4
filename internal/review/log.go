package review

import "github.com/btcsuite/btclog/v2"

const (
	// Subsystem is the logging tag for the review service.
	Subsystem = "REVW"

	// DispatchSubsystem is the logging tag for the status dispatcher.
	DispatchSubsystem = "DISP"
)

var (
	log     = btclog.Disabled
	dispLog = btclog.Disabled
)

// UseLogger sets the review service logger.
func UseLogger(logger btclog.Logger) {
	log = logger
}

// UseDispatchLogger sets the dispatcher logger.
func UseDispatchLogger(logger btclog.Logger) {
	dispLog = logger
}
