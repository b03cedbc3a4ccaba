// Hearth - Local-First Media Library Kernel
// Copyright 2026 Hearth Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hearthlib/hearth

package logging

import (
	"context"
	"log/slog"

	"github.com/rs/zerolog"
)

// slogBridge implements slog.Handler on top of a zerolog logger so
// libraries that speak slog (sutureslog) share the daemon's log stream.
type slogBridge struct {
	logger zerolog.Logger
	attrs  []slog.Attr
	groups []string
}

// NewSlogLogger returns an slog.Logger whose records are written
// through the given zerolog logger.
func NewSlogLogger(logger zerolog.Logger) *slog.Logger {
	return slog.New(&slogBridge{logger: logger})
}

func (h *slogBridge) Enabled(_ context.Context, level slog.Level) bool {
	return h.logger.GetLevel() <= bridgeLevel(level)
}

func (h *slogBridge) Handle(_ context.Context, record slog.Record) error {
	ev := h.logger.WithLevel(bridgeLevel(record.Level))
	for _, attr := range h.attrs {
		ev = appendAttr(ev, attr, h.groups)
	}
	record.Attrs(func(attr slog.Attr) bool {
		ev = appendAttr(ev, attr, h.groups)
		return true
	})
	ev.Msg(record.Message)
	return nil
}

func (h *slogBridge) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	merged = append(merged, h.attrs...)
	merged = append(merged, attrs...)
	return &slogBridge{logger: h.logger, attrs: merged, groups: h.groups}
}

func (h *slogBridge) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	groups := make([]string, 0, len(h.groups)+1)
	groups = append(groups, h.groups...)
	groups = append(groups, name)
	return &slogBridge{logger: h.logger, attrs: h.attrs, groups: groups}
}

func appendAttr(ev *zerolog.Event, attr slog.Attr, groups []string) *zerolog.Event {
	key := attr.Key
	for i := len(groups) - 1; i >= 0; i-- {
		key = groups[i] + "." + key
	}

	switch attr.Value.Kind() {
	case slog.KindString:
		return ev.Str(key, attr.Value.String())
	case slog.KindInt64:
		return ev.Int64(key, attr.Value.Int64())
	case slog.KindUint64:
		return ev.Uint64(key, attr.Value.Uint64())
	case slog.KindFloat64:
		return ev.Float64(key, attr.Value.Float64())
	case slog.KindBool:
		return ev.Bool(key, attr.Value.Bool())
	case slog.KindDuration:
		return ev.Dur(key, attr.Value.Duration())
	case slog.KindTime:
		return ev.Time(key, attr.Value.Time())
	case slog.KindGroup:
		for _, ga := range attr.Value.Group() {
			ev = appendAttr(ev, ga, append(groups, attr.Key))
		}
		return ev
	default:
		return ev.Interface(key, attr.Value.Any())
	}
}

func bridgeLevel(level slog.Level) zerolog.Level {
	switch {
	case level < slog.LevelInfo:
		return zerolog.DebugLevel
	case level < slog.LevelWarn:
		return zerolog.InfoLevel
	case level < slog.LevelError:
		return zerolog.WarnLevel
	default:
		return zerolog.ErrorLevel
	}
}
