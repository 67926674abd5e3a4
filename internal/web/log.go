package web

import "github.com/btcsuite/btclog/v2"

// Subsystem is the logging tag for the HTTP API and moderation feed.
const Subsystem = "WEBS"

var log = btclog.Disabled

// UseLogger sets the package logger.
func UseLogger(logger btclog.Logger) {
	log = logger
}
