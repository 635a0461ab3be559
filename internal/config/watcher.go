/*******************************************************************************
* Copyright 2023 Stefan Majewsky <majewsky@gmx.net>
* SPDX-License-Identifier: GPL-3.0-only
* Refer to the file "LICENSE" for details.
*******************************************************************************/

package config

import (
	"fmt"

	"github.com/fsnotify/fsnotify"
	"github.com/sapcc/go-bits/logg"
)

// Watcher notifies the caller when the configuration file it wraps changes
// on disk, so the process can be restarted (or, in a future revision,
// reload in place) by whatever supervises it.
type Watcher struct {
	backend *fsnotify.Watcher
	path    string
}

// NewWatcher starts watching path for changes.
func NewWatcher(path string) (*Watcher, error) {
	backend, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("cannot initialize filesystem watcher: %w", err)
	}
	if err := backend.Add(path); err != nil {
		backend.Close()
		return nil, fmt.Errorf("cannot watch %s: %w", path, err)
	}
	return &Watcher{backend: backend, path: path}, nil
}

// Run blocks, calling onChange every time the watched file is written or
// replaced, until the watcher is closed.
func (w *Watcher) Run(onChange func()) {
	for {
		select {
		case event, ok := <-w.backend.Events:
			if !ok {
				return
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
				onChange()
			}
		case err, ok := <-w.backend.Errors:
			if !ok {
				return
			}
			logg.Error("config watcher on %s: %s", w.path, err.Error())
		}
	}
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	return w.backend.Close()
}
