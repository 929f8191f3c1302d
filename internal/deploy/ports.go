// Package deploy owns external service processes: starting, stopping, and
// reclaiming the machine-global ports they bind.
package deploy

import (
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"syscall"

	"go.uber.org/zap"

	"botforge/internal/logging"
)

// Reclaimer finds and terminates processes occupying network ports. Killing
// is forceful: anything still bound after a managed shutdown is an orphan
// from a prior ungraceful exit.
type Reclaimer struct {
	log *zap.Logger

	// listOwners and killPid are overridable for tests.
	listOwners func(port int) ([]int, error)
	killPid    func(pid int) error
}

// NewReclaimer creates a Reclaimer backed by lsof and SIGKILL.
func NewReclaimer() *Reclaimer {
	return &Reclaimer{
		log:        logging.L().With(zap.String("component", "reclaimer")),
		listOwners: lsofOwners,
		killPid: func(pid int) error {
			return syscall.Kill(pid, syscall.SIGKILL)
		},
	}
}

// Reclaim force-kills every process bound to any of the given ports. It is
// idempotent when the ports are free. An owner that cannot be enumerated or
// killed surfaces as an error rather than being silently ignored.
func (r *Reclaimer) Reclaim(ports []int) error {
	for _, port := range ports {
		pids, err := r.listOwners(port)
		if err != nil {
			return fmt.Errorf("failed to enumerate processes on port %d: %w", port, err)
		}
		for _, pid := range pids {
			r.log.Info("force killing process occupying port",
				zap.Int("pid", pid), zap.Int("port", port))
			if err := r.killPid(pid); err != nil && err != syscall.ESRCH {
				return fmt.Errorf("failed to kill pid %d on port %d: %w", pid, port, err)
			}
		}
	}
	return nil
}

// lsofOwners shells out to lsof to list pids bound to a port. A clean exit
// with no output, or lsof's exit status 1 (nothing matched), both mean the
// port is free.
func lsofOwners(port int) ([]int, error) {
	out, err := exec.Command("lsof", "-i", fmt.Sprintf(":%d", port), "-t").Output()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok && exitErr.ExitCode() == 1 {
			return nil, nil
		}
		return nil, err
	}

	var pids []int
	for _, line := range strings.Split(strings.TrimSpace(string(out)), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		pid, err := strconv.Atoi(line)
		if err != nil {
			continue
		}
		pids = append(pids, pid)
	}
	return pids, nil
}
