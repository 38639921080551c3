package driver

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/howeyc/fsnotify"
)

// debounceDelay coalesces the burst of write events an editor or build
// step fires per save into a single reload.
const debounceDelay = 100 * time.Millisecond

// Watch re-reads path every time it changes on disk and delivers the
// new image on the returned channel. The stop function releases the
// watch. Read failures are logged and skipped; the file is often
// mid-write when the first event fires.
func Watch(path string) (<-chan []byte, func(), error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, nil, fmt.Errorf("unable to create watcher: %w", err)
	}

	path = filepath.Clean(path)

	// Watch the directory, not the file: editors that replace the file
	// on save would silently detach a watch set on the file itself.
	if err := watcher.Watch(filepath.Dir(path)); err != nil {
		_ = watcher.Close()
		return nil, nil, fmt.Errorf("unable to watch %q: %w", filepath.Dir(path), err)
	}
	slog.Info("watching program file", "path", path)

	images := make(chan []byte, 1)
	go watchLoop(watcher, path, images)

	stop := func() {
		_ = watcher.Close()
	}

	return images, stop, nil
}

// watchLoop runs until the watcher is closed, which closes its event
// channels.
func watchLoop(watcher *fsnotify.Watcher, path string, images chan<- []byte) {
	var reload <-chan time.Time

	for {
		select {
		case ev, ok := <-watcher.Event:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != path || ev.IsAttrib() {
				break
			}
			slog.Debug("watch: file changed", "event", ev)
			reload = time.After(debounceDelay)

		case err, ok := <-watcher.Error:
			if !ok {
				return
			}
			slog.Warn("watch: watcher error", "err", err)

		case <-reload:
			reload = nil

			bs, err := os.ReadFile(path)
			if err != nil {
				slog.Warn("watch: unable to re-read program", "path", path, "err", err)
				break
			}

			// Keep only the newest image if the last one was never
			// collected.
			select {
			case images <- bs:
			default:
				select {
				case <-images:
				default:
				}
				images <- bs
			}
		}
	}
}
