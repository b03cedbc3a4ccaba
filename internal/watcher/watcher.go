// Hearth - Local-First Media Library Kernel
// Copyright 2026 Hearth Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hearthlib/hearth

package watcher

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// Handler receives translated file events. It must not block: the
// watcher calls it from its event loop.
type Handler func(FileEvent)

// ErrorSink receives non-fatal watch errors. Recovery is the caller's
// responsibility; the watcher keeps running.
type ErrorSink func(error)

// Watcher wraps fsnotify with recursive directory registration and
// event translation. Subdirectories created after Start are watched
// automatically.
type Watcher struct {
	fs      *fsnotify.Watcher
	handler Handler
	errSink ErrorSink
	log     zerolog.Logger
	done    chan struct{}
}

// New creates a watcher delivering events to handler and errors to
// errSink. A nil errSink discards errors after logging them.
func New(handler Handler, errSink ErrorSink, logger zerolog.Logger) (*Watcher, error) {
	inner, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating filesystem watcher: %w", err)
	}
	if errSink == nil {
		errSink = func(error) {}
	}
	return &Watcher{
		fs:      inner,
		handler: handler,
		errSink: errSink,
		log:     logger,
		done:    make(chan struct{}),
	}, nil
}

// Watch registers root and all existing subdirectories, then starts the
// event loop.
func (w *Watcher) Watch(root string) error {
	if err := w.addRecursive(root); err != nil {
		return err
	}
	go w.loop()
	return nil
}

// Close stops the event loop and releases OS watch handles.
func (w *Watcher) Close() error {
	err := w.fs.Close()
	<-w.done
	return err
}

func (w *Watcher) addRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return fmt.Errorf("walking %s: %w", path, err)
		}
		if !d.IsDir() {
			return nil
		}
		if err := w.fs.Add(path); err != nil {
			return fmt.Errorf("watching %s: %w", path, err)
		}
		return nil
	})
}

func (w *Watcher) loop() {
	defer close(w.done)

	for {
		select {
		case ev, ok := <-w.fs.Events:
			if !ok {
				return
			}
			w.dispatch(ev)
		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			w.log.Warn().Err(err).Msg("Filesystem watch error")
			w.errSink(err)
		}
	}
}

func (w *Watcher) dispatch(ev fsnotify.Event) {
	now := time.Now().UTC()

	switch {
	case ev.Has(fsnotify.Create):
		// New directories join the watch set so nested drops are seen.
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			if err := w.fs.Add(ev.Name); err != nil {
				w.log.Warn().Err(err).Str("path", ev.Name).Msg("Failed to watch new directory")
				w.errSink(err)
			}
			return
		}
		w.handler(FileEvent{Path: ev.Name, Type: EventCreated, OccurredAt: now})
	case ev.Has(fsnotify.Write):
		w.handler(FileEvent{Path: ev.Name, Type: EventModified, OccurredAt: now})
	case ev.Has(fsnotify.Remove):
		w.handler(FileEvent{Path: ev.Name, Type: EventDeleted, OccurredAt: now})
	case ev.Has(fsnotify.Rename):
		// fsnotify reports the old path; the new path arrives as a
		// separate Create. Treat the old path as gone.
		w.handler(FileEvent{Path: ev.Name, OldPath: ev.Name, Type: EventRenamed, OccurredAt: now})
	}
	// Chmod is deliberately ignored.
}
