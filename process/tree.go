package process

import (
	"errors"
	"sync"

	"golang.org/x/sys/unix"
)

// procInfo is one process as read from /proc.
type procInfo struct {
	pid, ppid, pgrp int
	// start is the start time in clock ticks since boot. Together with pid
	// it identifies a process across pid reuse.
	start uint64
	// rss is the resident set in bytes.
	rss int64
}

// procTree follows every process descended from a tool's leader. Members
// stay tracked after they leave the leader's process group or session and
// after their parent exits, as long as a scan saw them first.
type procTree struct {
	mu      sync.Mutex
	leader  int
	members map[int]uint64
}

// track starts following the tree of leader.
func (t *procTree) track(leader int) {
	t.mu.Lock()
	t.leader = leader
	t.members = make(map[int]uint64)
	t.mu.Unlock()
	t.refresh()
}

// refresh rescans processes, keeps the members that are still alive, adds
// their new descendants and anything in the leader's group, and returns
// the resident bytes of the whole tree.
func (t *procTree) refresh() int64 {
	procs := readProcs()

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.leader <= 0 {
		return 0
	}

	children := make(map[int][]procInfo, len(procs))
	live := make(map[int]uint64)
	var queue []procInfo
	add := func(p procInfo) {
		if _, ok := live[p.pid]; ok {
			return
		}
		live[p.pid] = p.start
		queue = append(queue, p)
	}
	for _, p := range procs {
		children[p.ppid] = append(children[p.ppid], p)
		if start, ok := t.members[p.pid]; ok && start == p.start {
			add(p)
		}
		if p.pid == t.leader || p.pgrp == t.leader {
			add(p)
		}
	}

	var rss int64
	for len(queue) > 0 {
		p := queue[0]
		queue = queue[1:]
		rss += p.rss
		for _, c := range children[p.pid] {
			add(c)
		}
	}
	t.members = live
	return rss
}

// signal sends sig to the leader's group and to every tracked member.
// Processes that are already gone are not an error.
func (t *procTree) signal(sig unix.Signal) error {
	t.refresh()

	t.mu.Lock()
	leader := t.leader
	pids := make([]int, 0, len(t.members))
	for pid := range t.members {
		pids = append(pids, pid)
	}
	t.mu.Unlock()

	err := signalGroup(leader, sig)
	for _, pid := range pids {
		if kerr := unix.Kill(pid, sig); kerr != nil && !errors.Is(kerr, unix.ESRCH) && err == nil {
			err = kerr
		}
	}
	return err
}

// size returns the number of tracked processes.
func (t *procTree) size() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.members)
}
