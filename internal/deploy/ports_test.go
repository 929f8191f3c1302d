package deploy

import (
	"errors"
	"testing"
)

func fakeReclaimer(owners map[int][]int) (*Reclaimer, *[]int) {
	killed := &[]int{}
	r := NewReclaimer()
	r.listOwners = func(port int) ([]int, error) {
		return owners[port], nil
	}
	r.killPid = func(pid int) error {
		*killed = append(*killed, pid)
		return nil
	}
	return r, killed
}

func TestReclaimFreePortsIsNoop(t *testing.T) {
	r, killed := fakeReclaimer(nil)
	if err := r.Reclaim([]int{8000, 3000}); err != nil {
		t.Fatalf("Reclaim on free ports: %v", err)
	}
	if len(*killed) != 0 {
		t.Fatalf("killed %v on free ports", *killed)
	}
}

func TestReclaimKillsEveryOccupant(t *testing.T) {
	r, killed := fakeReclaimer(map[int][]int{
		8000: {101, 102},
		3000: {303},
	})
	if err := r.Reclaim([]int{8000, 3000}); err != nil {
		t.Fatalf("Reclaim: %v", err)
	}
	if len(*killed) != 3 {
		t.Fatalf("killed = %v, want pids 101 102 303", *killed)
	}
}

func TestReclaimIdempotent(t *testing.T) {
	occupied := map[int][]int{8000: {55}}
	r, killed := fakeReclaimer(occupied)
	if err := r.Reclaim([]int{8000}); err != nil {
		t.Fatalf("first Reclaim: %v", err)
	}
	delete(occupied, 8000)
	if err := r.Reclaim([]int{8000}); err != nil {
		t.Fatalf("second Reclaim: %v", err)
	}
	if len(*killed) != 1 {
		t.Fatalf("killed = %v, want exactly one kill", *killed)
	}
}

func TestReclaimSurfacesEnumerationError(t *testing.T) {
	r := NewReclaimer()
	r.listOwners = func(port int) ([]int, error) {
		return nil, errors.New("lsof unavailable")
	}
	if err := r.Reclaim([]int{8000}); err == nil {
		t.Fatalf("expected enumeration error to surface")
	}
}

func TestReclaimSurfacesKillError(t *testing.T) {
	r := NewReclaimer()
	r.listOwners = func(port int) ([]int, error) {
		return []int{42}, nil
	}
	r.killPid = func(pid int) error {
		return errors.New("operation not permitted")
	}
	if err := r.Reclaim([]int{8000}); err == nil {
		t.Fatalf("expected kill error to surface")
	}
}
