package shader

import (
	"errors"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/Carmen-Shannon/oxy-gpu/common"
	"github.com/fsnotify/fsnotify"
)

// ErrWatcherClosed is returned by Watch after Close.
var ErrWatcherClosed = errors.New("shader watcher closed")

// Watcher reports changes to shader source files. Directories are watched rather than files so
// editors that save by rename keep triggering events. Callbacks run on the watcher goroutine.
type Watcher struct {
	fs *fsnotify.Watcher

	mu sync.Mutex
	// files maps a cleaned absolute path to its change callbacks.
	files map[string][]func(path string)
	// dirs counts the watched files per directory.
	dirs   map[string]int
	closed bool
	done   chan struct{}
}

// NewWatcher starts a shader file watcher.
//
// Returns:
//   - *Watcher: the running watcher
//   - error: an error if the platform watcher cannot be created
func NewWatcher() (*Watcher, error) {
	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create shader watcher: %w", err)
	}
	w := &Watcher{
		fs:    fs,
		files: make(map[string][]func(string)),
		dirs:  make(map[string]int),
		done:  make(chan struct{}),
	}
	go w.run()
	return w, nil
}

// Watch registers onChange to be called whenever path is written or re-created.
//
// Parameters:
//   - path: the shader file
//   - onChange: called with the cleaned absolute path
//
// Returns:
//   - error: ErrWatcherClosed, or an error if the directory cannot be watched
func (w *Watcher) Watch(path string, onChange func(path string)) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve %s: %w", path, err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrWatcherClosed
	}
	dir := filepath.Dir(abs)
	if w.dirs[dir] == 0 {
		if err := w.fs.Add(dir); err != nil {
			return fmt.Errorf("failed to watch %s: %w", dir, err)
		}
	}
	w.dirs[dir]++
	w.files[abs] = append(w.files[abs], onChange)
	return nil
}

// Close stops the watcher. Pending callbacks finish; no new ones start.
func (w *Watcher) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	w.mu.Unlock()

	err := w.fs.Close()
	<-w.done
	return err
}

func (w *Watcher) run() {
	defer close(w.done)
	for {
		select {
		case e, ok := <-w.fs.Events:
			if !ok {
				return
			}
			if e.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			name := filepath.Clean(e.Name)
			w.mu.Lock()
			callbacks := append([]func(string){}, w.files[name]...)
			w.mu.Unlock()
			for _, cb := range callbacks {
				cb(name)
			}
		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			common.Logger().Error("shader watcher error", "error", err)
		}
	}
}
