// Package orchestrator ties the pieces of savesync together. It reconciles
// every entry with the staging root at startup, and reacts to entries'
// processes starting and stopping by pulling and pushing their save data.
package orchestrator

import (
	"context"
	"sort"
	"sync"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/sidkik/savesync/pkg/config"
	"github.com/sidkik/savesync/pkg/errors"
	"github.com/sidkik/savesync/pkg/monitor"
	"github.com/sidkik/savesync/pkg/notify"
	"github.com/sidkik/savesync/pkg/treediff"
)

// RemoteSync syncs the staging root with the cloud remote.
type RemoteSync interface {
	LocalSync() error
	RemoteSync() error
	RemoteResync() error
}

// Suspender pauses and resumes processes.
type Suspender interface {
	Suspend(pid int32) error
	Resume(pid int32) error
}

// Notifier publishes user-visible signals.
type Notifier interface {
	Notify(kind notify.Kind, entry string)
	NotifyError(kind notify.Kind, err error)
	EntryStatus(name string, running bool)
}

// Poller returns the PIDs of the running processes out of `names`.
type Poller interface {
	Poll(ctx context.Context, names []string) (monitor.Snapshot, error)
}

// EntryLoader loads and validates the configured entries.
type EntryLoader func() ([]config.Entry, error)

// Status describes an entry and whether its process is running.
type Status struct {
	config.Entry
	Running bool
	PID     int32
}

type entryState struct {
	config.Entry
	pid int32
}

// Orchestrator owns the list of entries and their last observed PIDs. All
// sync work is serialized by a single mutex, so at most one of startup, a
// poll tick, a manual sync or a reload runs at a time.
type Orchestrator struct {
	fs          afero.Fs
	stagingRoot string
	load        EntryLoader
	client      RemoteSync
	engine      *treediff.Engine
	poller      Poller
	suspender   Suspender
	notifier    Notifier

	// mu serializes sync work.
	mu sync.Mutex

	// stateMu guards entries, so that queries don't wait for a sync to
	// finish. Replacing the slice also requires holding mu.
	stateMu sync.RWMutex
	entries []*entryState
}

// Deps are the collaborators of an Orchestrator.
type Deps struct {
	Fs        afero.Fs
	Load      EntryLoader
	Client    RemoteSync
	Engine    *treediff.Engine
	Poller    Poller
	Suspender Suspender
	Notifier  Notifier
}

// New creates an Orchestrator. No entries are loaded until Start or Reload
// is called.
func New(stagingRoot string, deps Deps) *Orchestrator {
	return &Orchestrator{
		fs:          deps.Fs,
		stagingRoot: stagingRoot,
		load:        deps.Load,
		client:      deps.Client,
		engine:      deps.Engine,
		poller:      deps.Poller,
		suspender:   deps.Suspender,
		notifier:    deps.Notifier,
	}
}

// Start initializes the staging root, loads the entries, clears the markers
// left by an unclean shutdown, and reconciles each entry with the staging
// root. Sync failures are logged, and don't
// prevent startup from completing.
func (o *Orchestrator) Start(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.notifier.Notify(notify.Starting, "")

	firstSync, err := o.initializeRemote()
	if err != nil {
		return err
	}

	o.loadLocked()
	o.clearStaleMarkers()

	if firstSync {
		log.Info("Staging root was just created. Skipping the initial reconcile")
	} else {
		o.reconcileLocked()
	}

	o.notifier.Notify(notify.ReadyToPlay, "")
	return nil
}

// initializeRemote pulls the cloud remote into the staging root. It returns
// whether the staging root had to be created.
func (o *Orchestrator) initializeRemote() (bool, error) {
	exists, err := afero.DirExists(o.fs, o.stagingRoot)
	if err != nil {
		return false, errors.WithContext(err, "stat staging root")
	}

	if exists {
		if err := o.client.RemoteSync(); err != nil {
			log.WithError(err).Warn("Failed to pull the cloud remote")
		}
		return false, nil
	}

	log.WithField("path", o.stagingRoot).Info("Creating staging root")
	if err := o.fs.MkdirAll(o.stagingRoot, 0755); err != nil {
		return false, errors.WithContext(err, "make staging root")
	}
	if err := o.client.RemoteResync(); err != nil {
		log.WithError(err).Warn("Failed to initialize the cloud remote")
	}
	return true, nil
}

// reconcileLocked synchronizes every entry, then pushes the staging root if
// anything changed.
func (o *Orchestrator) reconcileLocked() {
	count := 0
	for _, e := range o.entries {
		n, err := o.synchronize(e.Entry)
		count += n
		if err != nil {
			log.WithError(err).WithField("entry", e.Name).Warn("Failed to synchronize entry")
		}
	}

	if count == 0 {
		return
	}
	if err := o.client.LocalSync(); err != nil {
		log.WithError(err).Warn("Failed to push the staging root")
	}
}

// Tick polls the process table once, and handles every entry whose process
// started or stopped since the previous tick.
func (o *Orchestrator) Tick(ctx context.Context) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if len(o.entries) == 0 {
		return
	}

	var names []string
	for _, e := range o.entries {
		names = append(names, e.ProcessName())
	}

	snap, err := o.poller.Poll(ctx, names)
	if err != nil {
		log.WithError(err).Warn("Failed to poll running processes")
		return
	}

	for _, e := range o.entries {
		prev := e.pid
		curr, event := monitor.Observe(prev, snap, e.ProcessName())
		o.setPID(e, curr)

		switch event {
		case monitor.Started:
			o.notifier.EntryStatus(e.Name, true)
			if err := o.handleStarted(e.Entry, curr); err != nil {
				log.WithError(err).WithField("entry", e.Name).Warn("Failed to prepare save data")
			}
		case monitor.Stopped:
			o.notifier.EntryStatus(e.Name, false)
			if err := o.handleStopped(e.Entry); err != nil {
				log.WithError(err).WithField("entry", e.Name).Warn("Failed to upload save data")
			}
		}
	}
}

// handleStarted pulls the latest save data for an entry whose process just
// started. The process is suspended while its data is replaced, and is
// always resumed afterwards.
func (o *Orchestrator) handleStarted(e config.Entry, pid int32) error {
	logger := log.WithFields(log.Fields{"entry": e.Name, "pid": pid})
	logger.Info("Process started")

	if err := o.suspender.Suspend(pid); err != nil {
		logger.WithError(err).Warn("Failed to suspend process")
		o.notifier.NotifyError(notify.ProcessError, errors.WithContext(err, "suspend"))
	}

	err := o.pull(e)

	if err := o.suspender.Resume(pid); err != nil {
		logger.WithError(err).Warn("Failed to resume process")
		o.notifier.NotifyError(notify.ProcessError, errors.WithContext(err, "resume"))
	}
	o.writeMarker(e)
	return err
}

// pull brings the staging root and then the entry's local directory up to
// date. Failures of the sync client are published by the client itself, so
// only local copy failures are published here.
func (o *Orchestrator) pull(e config.Entry) error {
	o.notifier.Notify(notify.DownloadingData, e.Name)
	if err := o.client.RemoteSync(); err != nil {
		return errors.WithContext(err, "pull cloud remote")
	}
	if _, err := o.download(e); err != nil {
		err = errors.WithContext(err, "download")
		o.notifier.NotifyError(notify.SyncError, err)
		return err
	}
	return nil
}

// handleStopped pushes the save data of an entry whose process just exited.
func (o *Orchestrator) handleStopped(e config.Entry) error {
	log.WithField("entry", e.Name).Info("Process stopped")
	o.notifier.Notify(notify.UploadingData, e.Name)

	count, err := o.update(e)
	o.deleteMarker(e)
	if err != nil {
		err = errors.WithContext(err, "update")
		o.notifier.NotifyError(notify.SyncError, err)
		return err
	}

	if count > 0 {
		if err := o.client.LocalSync(); err != nil {
			return errors.WithContext(err, "push staging root")
		}
	}
	o.notifier.Notify(notify.UploadFinished, e.Name)
	return nil
}

// SyncEntry pulls the cloud remote, reconciles the named entry with the
// staging root, and pushes the result if anything changed.
func (o *Orchestrator) SyncEntry(name string) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	e, ok := o.findLocked(name)
	if !ok {
		return errors.NewFriendlyError("No entry named %q", name)
	}

	if err := o.client.RemoteSync(); err != nil {
		return errors.WithContext(err, "pull cloud remote")
	}

	count, err := o.synchronize(e.Entry)
	if err != nil {
		return errors.WithContext(err, "synchronize")
	}
	if count > 0 {
		if err := o.client.LocalSync(); err != nil {
			return errors.WithContext(err, "push staging root")
		}
	}
	o.notifier.Notify(notify.EntrySynced, name)
	return nil
}

// Resync rebuilds the bisync state from scratch, then reconciles every
// entry.
func (o *Orchestrator) Resync() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if err := o.client.RemoteResync(); err != nil {
		return errors.WithContext(err, "resync")
	}
	o.reconcileLocked()
	return nil
}

// Reload re-reads the configured entries. The last observed PID of every
// entry that's still configured is kept, so that reloading doesn't trigger
// spurious start events.
func (o *Orchestrator) Reload() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.loadLocked()
}

func (o *Orchestrator) loadLocked() {
	entries, err := o.load()
	if err != nil {
		log.WithError(err).Error("Invalid configuration")
		o.notifier.NotifyError(notify.ReadinessError, err)
		entries = nil
	}

	o.stateMu.Lock()
	defer o.stateMu.Unlock()

	prevPIDs := map[string]int32{}
	for _, e := range o.entries {
		prevPIDs[e.Name] = e.pid
	}

	o.entries = nil
	for _, e := range entries {
		o.entries = append(o.entries, &entryState{Entry: e, pid: prevPIDs[e.Name]})
	}
	log.WithField("count", len(o.entries)).Info("Loaded entries")
}

// Wait blocks until any in-progress sync work finishes.
func (o *Orchestrator) Wait() {
	o.mu.Lock()
	defer o.mu.Unlock()
}

func (o *Orchestrator) setPID(e *entryState, pid int32) {
	o.stateMu.Lock()
	defer o.stateMu.Unlock()
	e.pid = pid
}

func (o *Orchestrator) findLocked(name string) (*entryState, bool) {
	for _, e := range o.entries {
		if e.Name == name {
			return e, true
		}
	}
	return nil, false
}

// AllEntries returns the status of every entry, sorted by name.
func (o *Orchestrator) AllEntries() []Status {
	return o.query(func(Status) bool { return true })
}

// EntriesByCategory returns the status of the entries in `category`.
func (o *Orchestrator) EntriesByCategory(category config.Category) []Status {
	return o.query(func(s Status) bool { return s.Category == category })
}

// RunningEntries returns the status of the running entries in `category`.
func (o *Orchestrator) RunningEntries(category config.Category) []Status {
	return o.query(func(s Status) bool {
		return s.Category == category && s.Running
	})
}

func (o *Orchestrator) query(match func(Status) bool) []Status {
	o.stateMu.RLock()
	defer o.stateMu.RUnlock()

	var statuses []Status
	for _, e := range o.entries {
		status := Status{Entry: e.Entry, Running: e.pid != 0, PID: e.pid}
		if match(status) {
			statuses = append(statuses, status)
		}
	}

	sort.Slice(statuses, func(i, j int) bool {
		return statuses[i].Name < statuses[j].Name
	})
	return statuses
}
