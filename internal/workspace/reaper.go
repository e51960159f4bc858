package workspace

import (
	"os"
	"time"

	"github.com/charmbracelet/log"
)

// GracePeriod is how long the shutdown path waits after cancellation before
// deleting registered workspaces. In-flight cargo processes receive the
// context cancellation and are killed; the grace interval lets them release
// their working directories first.
const GracePeriod = 500 * time.Millisecond

// Reaper owns the pending-deletion list. Any task may Register a path at
// any time; only the reaper's own goroutine ever reads the list, so the hot
// path needs no locking. Sweep deletes everything registered so far — it is
// called on the normal exit path and, after the grace period, on interrupt.
type Reaper struct {
	register chan string
	sweep    chan chan int
}

// NewReaper starts the collector goroutine. The reaper lives for the rest
// of the process; there is no stop.
func NewReaper() *Reaper {
	r := &Reaper{
		register: make(chan string, 4),
		sweep:    make(chan chan int),
	}
	go r.loop()
	return r
}

// Register adds a workspace path to the pending-deletion list. It must be
// called before any command runs against the path.
func (r *Reaper) Register(path string) {
	r.register <- path
}

// Sweep removes every registered workspace and returns how many were
// deleted. Deletion is best effort; failures are logged and skipped.
func (r *Reaper) Sweep() int {
	reply := make(chan int)
	r.sweep <- reply
	return <-reply
}

func (r *Reaper) loop() {
	var paths []string
	for {
		select {
		case p := <-r.register:
			log.Debug("workspace registered for deletion", "path", p)
			paths = append(paths, p)
		case reply := <-r.sweep:
			for _, p := range paths {
				log.Debug("deleting workspace", "path", p)
				if err := os.RemoveAll(p); err != nil {
					log.Error("failed to delete workspace", "path", p, "err", err)
				}
			}
			n := len(paths)
			paths = nil
			reply <- n
		}
	}
}
