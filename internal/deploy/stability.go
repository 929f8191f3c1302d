package deploy

import (
	"context"
	"io/fs"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"botforge/internal/logging"
)

// StabilityGate waits for writes under a directory tree to quiesce before a
// deployment proceeds. The wait is bounded: the gate gives up after MaxWait
// whether or not the tree settled.
type StabilityGate struct {
	// StableFor is how long the tree must stay unchanged to count as stable.
	StableFor time.Duration
	// MaxWait bounds the whole wait.
	MaxWait time.Duration

	log *zap.Logger
}

// NewStabilityGate returns a gate with the standard 2s-quiet / 10s-max policy.
func NewStabilityGate() *StabilityGate {
	return &StabilityGate{
		StableFor: 2 * time.Second,
		MaxWait:   10 * time.Second,
		log:       logging.L().With(zap.String("component", "stability_gate")),
	}
}

// WaitStable blocks until no file under dir has changed for StableFor, or
// until MaxWait (or ctx) expires. If the watcher cannot be created the gate
// degrades to a fixed sleep rather than failing the deployment.
func (g *StabilityGate) WaitStable(ctx context.Context, dir string) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		g.log.Warn("file watcher unavailable, falling back to fixed wait", zap.Error(err))
		select {
		case <-time.After(g.StableFor):
		case <-ctx.Done():
		}
		return
	}
	defer func() { _ = watcher.Close() }()

	// Watch the whole tree; fsnotify watches are not recursive.
	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			_ = watcher.Add(path)
		}
		return nil
	})

	deadline := time.Now().Add(g.MaxWait)
	lastChange := time.Now()
	sawChange := false
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-watcher.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				lastChange = time.Now()
				sawChange = true
			}
		case <-watcher.Errors:
			// Watcher errors are non-fatal; the deadline still bounds us.
		case <-ticker.C:
			if time.Since(lastChange) >= g.StableFor {
				if sawChange {
					g.log.Info("directory tree settled",
						zap.String("dir", dir),
						zap.Duration("quiet_for", time.Since(lastChange)))
				}
				return
			}
			if time.Now().After(deadline) {
				g.log.Warn("stability wait hit deadline, proceeding", zap.String("dir", dir))
				return
			}
		}
	}
}
