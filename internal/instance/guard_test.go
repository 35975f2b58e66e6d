package instance

import (
	"errors"
	"testing"

	ps "github.com/mitchellh/go-ps"
	"github.com/stretchr/testify/require"
)

type fakeProcess struct {
	pid  int
	name string
}

func (p fakeProcess) Pid() int           { return p.pid }
func (p fakeProcess) PPid() int          { return 1 }
func (p fakeProcess) Executable() string { return p.name }

func listOf(processes ...ps.Process) ProcessLister {
	return func() ([]ps.Process, error) { return processes, nil }
}

func TestGuard_Check(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		processes []ps.Process
		wantErr   error
	}{
		{
			name:      "alone",
			processes: []ps.Process{fakeProcess{pid: 10, name: "alarm-central"}, fakeProcess{pid: 11, name: "bash"}},
		},
		{
			name:      "another instance",
			processes: []ps.Process{fakeProcess{pid: 10, name: "alarm-central"}, fakeProcess{pid: 12, name: "alarm-central"}},
			wantErr:   ErrAlreadyRunning,
		},
		{
			name:      "control client is fine",
			processes: []ps.Process{fakeProcess{pid: 10, name: "alarm-central"}, fakeProcess{pid: 13, name: "alarmctl"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := NewGuardFor("alarm-central", 10, listOf(tt.processes...)).Check()
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)

				return
			}

			require.NoError(t, err)
		})
	}
}

func TestGuard_TruncatedName(t *testing.T) {
	t.Parallel()

	g := NewGuardFor("home-alarm-central", 1, listOf(fakeProcess{pid: 2, name: "home-alarm-cent"}))
	require.ErrorIs(t, g.Check(), ErrAlreadyRunning)
}

func TestGuard_ListFailure(t *testing.T) {
	t.Parallel()

	errList := errors.New("proc unavailable")
	g := NewGuardFor("alarm-central", 1, func() ([]ps.Process, error) { return nil, errList })
	require.ErrorIs(t, g.Check(), errList)
}

func TestNewGuard(t *testing.T) {
	t.Parallel()

	g, err := NewGuard()
	require.NoError(t, err)
	require.NotEmpty(t, g.name)
	require.NoError(t, g.Check())
}
