// Package watch monitors the project tree for source changes so watch mode
// can re-run the matrix. Events are debounced into change bursts; build
// output (target/) and VCS metadata are ignored so our own runs and cargo's
// artifacts never trigger a pass.
package watch

import (
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Change represents a debounced burst of file changes in the project tree.
type Change struct {
	Files []string // paths seen in the burst, deduplicated
}

// Watcher monitors a project directory recursively using fsnotify.
type Watcher struct {
	Dir     string
	Changes <-chan Change // Read-only external channel

	changes chan Change
	done    chan struct{}
	watcher *fsnotify.Watcher
}

// ignoredDirs are directory names never watched or reported.
var ignoredDirs = map[string]bool{
	"target":          true,
	".git":            true,
	".hg":             true,
	"hfuzz_workspace": true,
}

// New creates a watcher for the given project directory.
func New(dir string) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	ch := make(chan Change, 4)
	w := &Watcher{
		Dir:     dir,
		Changes: ch,
		changes: ch,
		done:    make(chan struct{}),
		watcher: fw,
	}
	return w, nil
}

// Start adds the project tree to the watcher and begins emitting changes.
func (w *Watcher) Start() error {
	err := filepath.WalkDir(w.Dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if ignoredDirs[d.Name()] && path != w.Dir {
			return filepath.SkipDir
		}
		return w.watcher.Add(path)
	})
	if err != nil {
		return err
	}

	go w.loop()
	return nil
}

// Stop closes the watcher and channels.
func (w *Watcher) Stop() {
	w.watcher.Close()
	<-w.done // Wait for loop to exit
	close(w.changes)
}

func (w *Watcher) loop() {
	defer close(w.done)

	// Debounce: collect events until the tree has been quiet for a beat.
	const debounce = 250 * time.Millisecond
	pending := make(map[string]bool)
	var last time.Time
	ticker := time.NewTicker(debounce)
	defer ticker.Stop()

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if w.ignored(event.Name) {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
				pending[event.Name] = true
				last = time.Now()
			}
			// New directories need their own watch to stay recursive.
			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					_ = w.watcher.Add(event.Name)
				}
			}

		case <-ticker.C:
			if len(pending) == 0 || time.Since(last) < debounce {
				continue
			}
			files := make([]string, 0, len(pending))
			for f := range pending {
				files = append(files, f)
			}
			pending = make(map[string]bool)
			w.changes <- Change{Files: files}

		case _, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			// Ignore watch errors; they're non-fatal.
		}
	}
}

// ignored reports whether a path sits under an ignored directory.
func (w *Watcher) ignored(name string) bool {
	rel, err := filepath.Rel(w.Dir, name)
	if err != nil {
		return false
	}
	for rel != "." && rel != string(filepath.Separator) {
		if ignoredDirs[filepath.Base(rel)] {
			return true
		}
		rel = filepath.Dir(rel)
	}
	return false
}
