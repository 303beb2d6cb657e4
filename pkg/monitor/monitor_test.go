package monitor

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sidkik/savesync/pkg/errors"
)

func TestDeriveEvent(t *testing.T) {
	tests := []struct {
		name       string
		prev, curr int32
		exp        Event
	}{
		{"AbsentToPresent", 0, 42, Started},
		{"PresentToAbsent", 42, 0, Stopped},
		{"PresentToPresent", 42, 42, NoChange},
		{"AbsentToAbsent", 0, 0, NoChange},
		{"RestartedWithinInterval", 42, 43, NoChange},
	}

	for _, test := range tests {
		test := test
		t.Run(test.name, func(t *testing.T) {
			assert.Equal(t, test.exp, DeriveEvent(test.prev, test.curr))
		})
	}
}

func TestObserve(t *testing.T) {
	snap := Snapshot{"game": 42}

	pid, event := Observe(0, snap, "game")
	assert.Equal(t, int32(42), pid)
	assert.Equal(t, Started, event)

	pid, event = Observe(41, snap, "game")
	assert.Equal(t, int32(42), pid)
	assert.Equal(t, NoChange, event)

	pid, event = Observe(42, snap, "emulator")
	assert.Equal(t, int32(0), pid)
	assert.Equal(t, Stopped, event)
}

func TestProcessTableSnapshot(t *testing.T) {
	calls := 0
	listProcesses = func(context.Context) ([]processInfo, error) {
		calls++
		return []processInfo{
			{pid: 1, name: "init"},
			{pid: 10, name: "Game.exe"},
			{pid: 11, name: "game.exe"},
			{pid: 20, name: "retroarch"},
			{pid: 30, name: "notepad.exe"},
		}, nil
	}
	defer func() { listProcesses = listProcessesImpl }()

	snap, err := ProcessTable{}.Snapshot(context.Background(), []string{"Game", "retroarch", "missing"})
	require.NoError(t, err)
	assert.Equal(t, Snapshot{"Game": 10, "retroarch": 20}, snap)
	assert.Equal(t, 1, calls)

	snap, err = ProcessTable{}.Snapshot(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, snap)
	assert.Equal(t, 1, calls, "an empty poll shouldn't list processes")
}

func TestProcessTableSnapshotCaseCollision(t *testing.T) {
	listProcesses = func(context.Context) ([]processInfo, error) {
		return []processInfo{{pid: 10, name: "GAME.exe"}}, nil
	}
	defer func() { listProcesses = listProcessesImpl }()

	snap, err := ProcessTable{}.Snapshot(context.Background(), []string{"Game", "game"})
	require.NoError(t, err)
	assert.Equal(t, Snapshot{"Game": 10, "game": 10}, snap)
}

func TestProcessTableSnapshotError(t *testing.T) {
	listProcesses = func(context.Context) ([]processInfo, error) {
		return nil, errors.New("permission denied")
	}
	defer func() { listProcesses = listProcessesImpl }()

	_, err := ProcessTable{}.Snapshot(context.Background(), []string{"game"})
	assert.Error(t, err)
}

type mockSource struct {
	names [][]string
}

func (s *mockSource) Snapshot(_ context.Context, names []string) (Snapshot, error) {
	s.names = append(s.names, names)
	return Snapshot{}, nil
}

func TestPollDedupes(t *testing.T) {
	source := &mockSource{}
	m := New(source, clockwork.NewFakeClock(), time.Second)

	_, err := m.Poll(context.Background(), []string{"game", "emu", "game"})
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"game", "emu"}}, source.names)
}

func TestRun(t *testing.T) {
	clock := clockwork.NewFakeClock()
	m := New(&mockSource{}, clock, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	ticks := make(chan struct{}, 10)
	done := make(chan struct{})
	go func() {
		m.Run(ctx, func(context.Context) {
			ticks <- struct{}{}
		})
		close(done)
	}()

	clock.BlockUntil(1)
	for i := 0; i < 2; i++ {
		clock.Advance(time.Second)
		select {
		case <-ticks:
		case <-time.After(5 * time.Second):
			t.Fatal("tick wasn't called")
		}
	}

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Run didn't return after the context was cancelled")
	}
}
