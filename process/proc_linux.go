package process

import (
	"os"
	"strconv"
	"strings"
)

var pageSize = int64(os.Getpagesize())

// readProcs lists every process visible in /proc. Processes that exit
// during the scan are skipped.
func readProcs() []procInfo {
	entries, err := os.ReadDir("/proc")
	if err != nil {
		return nil
	}
	procs := make([]procInfo, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if name[0] < '0' || name[0] > '9' {
			continue
		}
		b, err := os.ReadFile("/proc/" + name + "/stat")
		if err != nil {
			continue
		}
		if p, ok := parseStat(string(b)); ok {
			procs = append(procs, p)
		}
	}
	return procs
}

// parseStat reads pid, ppid, pgrp, start time and rss from a
// /proc/<pid>/stat line. The command name is parenthesized and may contain
// spaces, so fields are counted from the last ')'.
func parseStat(stat string) (procInfo, bool) {
	open := strings.IndexByte(stat, '(')
	end := strings.LastIndexByte(stat, ')')
	if open < 1 || end < open || end+2 > len(stat) {
		return procInfo{}, false
	}
	pid, err := strconv.Atoi(strings.TrimSpace(stat[:open]))
	if err != nil {
		return procInfo{}, false
	}
	fields := strings.Fields(stat[end+2:])
	if len(fields) < 22 {
		return procInfo{}, false
	}

	p := procInfo{pid: pid}
	if p.ppid, err = strconv.Atoi(fields[1]); err != nil {
		return procInfo{}, false
	}
	if p.pgrp, err = strconv.Atoi(fields[2]); err != nil {
		return procInfo{}, false
	}
	if p.start, err = strconv.ParseUint(fields[19], 10, 64); err != nil {
		return procInfo{}, false
	}
	rss, err := strconv.ParseInt(fields[21], 10, 64)
	if err != nil {
		return procInfo{}, false
	}
	p.rss = rss * pageSize
	return p, true
}
