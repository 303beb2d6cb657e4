package monitor

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/shirou/gopsutil/v3/process"
	log "github.com/sirupsen/logrus"

	"github.com/sidkik/savesync/pkg/errors"
)

// Snapshot maps process names to the PID of a running process with that
// name. Names that aren't running are absent.
type Snapshot map[string]int32

// LivenessSource reports which of the given process names are running.
type LivenessSource interface {
	Snapshot(ctx context.Context, names []string) (Snapshot, error)
}

// Mocked out for unit testing.
var listProcesses = listProcessesImpl

type processInfo struct {
	pid  int32
	name string
}

func listProcessesImpl(ctx context.Context) ([]processInfo, error) {
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return nil, err
	}

	infos := make([]processInfo, 0, len(procs))
	for _, p := range procs {
		name, err := p.NameWithContext(ctx)
		if err != nil {
			// The process may have exited since it was listed.
			log.WithError(err).WithField("pid", p.Pid).Debug("Failed to get process name")
			continue
		}
		infos = append(infos, processInfo{pid: p.Pid, name: name})
	}
	return infos, nil
}

// ProcessTable is a LivenessSource that lists the OS process table. Each call
// lists the table once, regardless of how many names are asked for.
type ProcessTable struct{}

// Snapshot implements LivenessSource. Process names are matched
// case-insensitively, with or without their extension, so that `game`
// matches a process named `Game.exe`. Names that only differ in case all
// match the same process. If several processes share a name, the first one
// listed wins.
func (ProcessTable) Snapshot(ctx context.Context, names []string) (Snapshot, error) {
	snap := Snapshot{}
	if len(names) == 0 {
		return snap, nil
	}

	wanted := map[string][]string{}
	for _, name := range names {
		key := strings.ToLower(name)
		wanted[key] = append(wanted[key], name)
	}

	procs, err := listProcesses(ctx)
	if err != nil {
		return nil, errors.WithContext(err, "list processes")
	}

	for _, p := range procs {
		key := strings.ToLower(p.name)
		matches, ok := wanted[key]
		if !ok {
			matches = wanted[strings.TrimSuffix(key, filepath.Ext(key))]
		}

		for _, name := range matches {
			if _, seen := snap[name]; !seen {
				snap[name] = p.pid
			}
		}
	}
	return snap, nil
}
