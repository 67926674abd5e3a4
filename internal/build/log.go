package build

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"sync"

	"github.com/btcsuite/btclog"
	btclogv2 "github.com/btcsuite/btclog/v2"
)

// LogConfig configures SetupLoggers.
type LogConfig struct {
	// Level is the initial level of every subsystem.
	Level string

	// Dir enables the rotating log file when set.
	Dir string

	MaxFiles      int
	MaxFileSizeMB int

	// Console receives human readable output. Defaults to stderr, since
	// stdout may carry the MCP stdio transport.
	Console io.Writer
}

// LogManager owns the root handlers and the per-subsystem loggers.
type LogManager struct {
	handlers *HandlerSet
	rotator  *RotatingLogWriter

	mu         sync.Mutex
	subsystems map[string]btclogv2.Logger
}

// SetupLoggers builds the console and file handlers and hands each
// registered subsystem its tagged logger.
func SetupLoggers(cfg LogConfig,
	subsystems map[string]func(btclogv2.Logger)) (*LogManager, error) {

	level, ok := btclog.LevelFromString(cfg.Level)
	if cfg.Level == "" {
		level, ok = btclog.LevelInfo, true
	}
	if !ok {
		return nil, fmt.Errorf("unknown log level %q", cfg.Level)
	}

	console := cfg.Console
	if console == nil {
		console = os.Stderr
	}

	handlers := []btclogv2.Handler{btclogv2.NewDefaultHandler(console)}

	m := &LogManager{
		subsystems: make(map[string]btclogv2.Logger),
	}

	if cfg.Dir != "" {
		maxFiles := cfg.MaxFiles
		if maxFiles == 0 {
			maxFiles = DefaultMaxLogFiles
		}

		rotator, err := NewRotatingLogWriter(RotatorConfig{
			Dir:           cfg.Dir,
			MaxFiles:      maxFiles,
			MaxFileSizeMB: cfg.MaxFileSizeMB,
		})
		if err != nil {
			return nil, err
		}
		m.rotator = rotator
		handlers = append(handlers, btclogv2.NewDefaultHandler(rotator))
	}

	m.handlers = NewHandlerSet(handlers...)
	m.handlers.SetLevel(level)

	for tag, use := range subsystems {
		logger := btclogv2.NewSLogger(m.handlers.SubSystem(tag))
		logger.SetLevel(level)
		m.subsystems[tag] = logger
		use(logger)
	}

	return m, nil
}

// Subsystems lists the registered subsystem tags.
func (m *LogManager) Subsystems() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	tags := make([]string, 0, len(m.subsystems))
	for tag := range m.subsystems {
		tags = append(tags, tag)
	}
	sort.Strings(tags)

	return tags
}

// SetLevel changes the level of one subsystem, or of all of them when
// tag is empty.
func (m *LogManager) SetLevel(tag, level string) error {
	lvl, ok := btclog.LevelFromString(level)
	if !ok {
		return fmt.Errorf("unknown log level %q", level)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if tag == "" {
		for _, l := range m.subsystems {
			l.SetLevel(lvl)
		}
		return nil
	}

	l, ok := m.subsystems[tag]
	if !ok {
		return fmt.Errorf("unknown log subsystem %q", tag)
	}
	l.SetLevel(lvl)

	return nil
}

// Slog returns a log/slog logger over the same handlers, tagged with tag.
// The storage layer and golang-migrate log through it.
func (m *LogManager) Slog(tag string) *slog.Logger {
	return slog.New(m.handlers.SubSystem(tag))
}

// Close flushes the log file.
func (m *LogManager) Close() error {
	if m.rotator == nil {
		return nil
	}

	return m.rotator.Close()
}
