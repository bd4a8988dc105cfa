package automation

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"
)

const lockRetryDelay = 250 * time.Millisecond

// Guard serializes automation invocations within the process and, when a
// lock path is set, across every process on the host.
type Guard struct {
	mu   sync.Mutex
	lock *flock.Flock
}

// NewGuard returns a guard backed by a lock file at lockPath. An empty path
// limits exclusivity to this process.
func NewGuard(lockPath string) *Guard {
	g := &Guard{}
	if path := strings.TrimSpace(lockPath); path != "" {
		g.lock = flock.New(path)
	}
	return g
}

// Run executes fn while holding the guard. It waits for the lock until ctx
// is done.
func (g *Guard) Run(ctx context.Context, fn func()) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.lock != nil {
		if err := os.MkdirAll(filepath.Dir(g.lock.Path()), 0o755); err != nil {
			return fmt.Errorf("create automation lock dir: %w", err)
		}
		ok, err := g.lock.TryLockContext(ctx, lockRetryDelay)
		if err != nil {
			return fmt.Errorf("acquire automation lock: %w", err)
		}
		if !ok {
			return fmt.Errorf("acquire automation lock: %s is held", g.lock.Path())
		}
		defer func() {
			_ = g.lock.Unlock()
		}()
	}

	fn()
	return nil
}
