package commands

import (
	btclogv2 "github.com/btcsuite/btclog/v2"
	lamprpc "github.com/lamp-blog/lamp/internal/api/grpc"
	"github.com/lamp-blog/lamp/internal/article"
	"github.com/lamp-blog/lamp/internal/baselib/actor"
	"github.com/lamp-blog/lamp/internal/build"
	"github.com/lamp-blog/lamp/internal/comment"
	"github.com/lamp-blog/lamp/internal/config"
	"github.com/lamp-blog/lamp/internal/events"
	"github.com/lamp-blog/lamp/internal/mcp"
	"github.com/lamp-blog/lamp/internal/review"
	"github.com/lamp-blog/lamp/internal/web"
)

const (
	// mainSubsystem tags the daemon's own messages.
	mainSubsystem = "LAMP"

	// storeSubsystem tags the storage layer, which logs through slog.
	storeSubsystem = "STOR"
)

// log is the daemon logger.
var log = btclogv2.Disabled

// subsystemLoggers wires every package logger to its tag.
func subsystemLoggers() map[string]func(btclogv2.Logger) {
	return map[string]func(btclogv2.Logger){
		mainSubsystem:            func(l btclogv2.Logger) { log = l },
		actor.Subsystem:          actor.UseLogger,
		events.Subsystem:         events.UseLogger,
		review.Subsystem:         review.UseLogger,
		review.DispatchSubsystem: review.UseDispatchLogger,
		article.Subsystem:        article.UseLogger,
		comment.Subsystem:        comment.UseLogger,
		web.Subsystem:            web.UseLogger,
		lamprpc.Subsystem:        lamprpc.UseLogger,
		mcp.Subsystem:            mcp.UseLogger,
	}
}

// setupLogging builds the log handlers described by cfg.
func setupLogging(cfg config.Log) (*build.LogManager, error) {
	return build.SetupLoggers(build.LogConfig{
		Level:         cfg.Level,
		Dir:           cfg.Dir,
		MaxFiles:      cfg.MaxFiles,
		MaxFileSizeMB: cfg.MaxFileSizeMB,
	}, subsystemLoggers())
}
