package build

import (
	"context"
	"errors"
	"log/slog"

	"github.com/btcsuite/btclog"
	btclogv2 "github.com/btcsuite/btclog/v2"
)

// HandlerSet fans log records out to the console and, when enabled, the
// rotating log file. A record is written to every handler whose level
// admits it.
type HandlerSet struct {
	level btclog.Level
	set   []btclogv2.Handler
}

// NewHandlerSet builds a set at the info level.
func NewHandlerSet(handlers ...btclogv2.Handler) *HandlerSet {
	h := &HandlerSet{set: handlers}
	h.SetLevel(btclog.LevelInfo)

	return h
}

// Enabled is part of slog.Handler.
func (h *HandlerSet) Enabled(ctx context.Context, level slog.Level) bool {
	return anyEnabled(ctx, level, h.slogSet())
}

// Handle is part of slog.Handler.
func (h *HandlerSet) Handle(ctx context.Context, record slog.Record) error {
	return handleAll(ctx, record, h.slogSet())
}

// WithAttrs is part of slog.Handler.
func (h *HandlerSet) WithAttrs(attrs []slog.Attr) slog.Handler {
	return slogSet(h.slogSet()).WithAttrs(attrs)
}

// WithGroup is part of slog.Handler.
func (h *HandlerSet) WithGroup(name string) slog.Handler {
	return slogSet(h.slogSet()).WithGroup(name)
}

// SubSystem returns a set tagged with tag. Each daemon package logs
// through one of these.
func (h *HandlerSet) SubSystem(tag string) btclogv2.Handler {
	return h.derive(func(handler btclogv2.Handler) btclogv2.Handler {
		return handler.SubSystem(tag)
	})
}

// WithPrefix is part of btclog.Handler.
func (h *HandlerSet) WithPrefix(prefix string) btclogv2.Handler {
	return h.derive(func(handler btclogv2.Handler) btclogv2.Handler {
		return handler.WithPrefix(prefix)
	})
}

// SetLevel sets the level of every handler in the set.
func (h *HandlerSet) SetLevel(level btclog.Level) {
	for _, handler := range h.set {
		handler.SetLevel(level)
	}
	h.level = level
}

// Level is part of btclog.Handler.
func (h *HandlerSet) Level() btclog.Level {
	return h.level
}

func (h *HandlerSet) derive(
	f func(btclogv2.Handler) btclogv2.Handler) *HandlerSet {

	derived := &HandlerSet{
		level: h.level,
		set:   make([]btclogv2.Handler, len(h.set)),
	}
	for i, handler := range h.set {
		derived.set[i] = f(handler)
	}

	return derived
}

func (h *HandlerSet) slogSet() []slog.Handler {
	set := make([]slog.Handler, len(h.set))
	for i, handler := range h.set {
		set[i] = handler
	}

	return set
}

var _ btclogv2.Handler = (*HandlerSet)(nil)

// slogSet is what WithAttrs and WithGroup reduce a HandlerSet to, since
// those return plain slog handlers.
type slogSet []slog.Handler

func (s slogSet) Enabled(ctx context.Context, level slog.Level) bool {
	return anyEnabled(ctx, level, s)
}

func (s slogSet) Handle(ctx context.Context, record slog.Record) error {
	return handleAll(ctx, record, s)
}

func (s slogSet) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make(slogSet, len(s))
	for i, handler := range s {
		out[i] = handler.WithAttrs(attrs)
	}

	return out
}

func (s slogSet) WithGroup(name string) slog.Handler {
	out := make(slogSet, len(s))
	for i, handler := range s {
		out[i] = handler.WithGroup(name)
	}

	return out
}

var _ slog.Handler = slogSet(nil)

func anyEnabled(ctx context.Context, level slog.Level,
	set []slog.Handler) bool {

	for _, handler := range set {
		if handler.Enabled(ctx, level) {
			return true
		}
	}

	return false
}

// handleAll writes record to every handler that admits it. A failing
// file handler does not keep the record off the console.
func handleAll(ctx context.Context, record slog.Record,
	set []slog.Handler) error {

	var errs []error
	for _, handler := range set {
		if !handler.Enabled(ctx, record.Level) {
			continue
		}
		if err := handler.Handle(ctx, record.Clone()); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}
