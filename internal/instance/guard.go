package instance

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	ps "github.com/mitchellh/go-ps"
)

// commLen is the Linux limit for process names reported by /proc/<pid>/stat.
const commLen = 15

// ErrAlreadyRunning is returned when another process with the same executable is alive.
var ErrAlreadyRunning = errors.New("another instance is already running")

// ProcessLister returns the running processes.
type ProcessLister func() ([]ps.Process, error)

// Guard checks for concurrent instances of one executable.
type Guard struct {
	// name is the executable name to look for.
	name string
	// pid is this process, always excluded.
	pid int
	// list enumerates processes.
	list ProcessLister
}

// NewGuard returns a guard for the running executable.
func NewGuard() (*Guard, error) {
	exe, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("resolve executable: %w", err)
	}

	return &Guard{
		name: filepath.Base(exe),
		pid:  os.Getpid(),
		list: ps.Processes,
	}, nil
}

// NewGuardFor returns a guard for name that uses list; used in tests.
func NewGuardFor(name string, pid int, list ProcessLister) *Guard {
	return &Guard{
		name: name,
		pid:  pid,
		list: list,
	}
}

// Check fails with ErrAlreadyRunning when another process runs the same executable.
func (g *Guard) Check() error {
	processes, err := g.list()
	if err != nil {
		return fmt.Errorf("list processes: %w", err)
	}

	var others []int

	for _, process := range processes {
		if process.Pid() == g.pid {
			continue
		}

		if !sameExecutable(process.Executable(), g.name) {
			continue
		}

		others = append(others, process.Pid())
	}

	if len(others) > 0 {
		return fmt.Errorf("%w: %s pid %v", ErrAlreadyRunning, g.name, others)
	}

	return nil
}

// sameExecutable tolerates the truncated names Linux reports.
func sameExecutable(reported, name string) bool {
	if reported == name {
		return true
	}

	return len(reported) == commLen && strings.HasPrefix(name, reported)
}
