package mcp

import "github.com/btcsuite/btclog/v2"

// Subsystem is the logging tag for the MCP server.
const Subsystem = "MCPS"

var log = btclog.Disabled

// UseLogger sets the package logger.
func UseLogger(logger btclog.Logger) {
	log = logger
}
