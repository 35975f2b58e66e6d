package gpio

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
)

// DefaultSysfsRoot is where the kernel exposes the legacy GPIO interface.
const DefaultSysfsRoot = "/sys/class/gpio"

// sysfsFileMode is used when writing control files.
const sysfsFileMode = 0o644

// Sysfs drives pins through /sys/class/gpio.
type Sysfs struct {
	// root is the sysfs gpio directory.
	root string
	// mu protects exported.
	mu sync.Mutex
	// exported lists pins this driver exported and must unexport on Close.
	exported []int
}

// NewSysfs returns a driver rooted at root, or DefaultSysfsRoot when empty.
func NewSysfs(root string) *Sysfs {
	if root == "" {
		root = DefaultSysfsRoot
	}

	return &Sysfs{
		root: filepath.Clean(root),
	}
}

// Export makes pin available as an output driven low.
func (s *Sysfs) Export(pin int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := os.Stat(s.pinDir(pin)); errors.Is(err, os.ErrNotExist) {
		if err = s.writeFile(filepath.Join(s.root, "export"), strconv.Itoa(pin)); err != nil {
			return err
		}

		s.exported = append(s.exported, pin)
	}

	if err := s.writeFile(filepath.Join(s.pinDir(pin), "direction"), "low"); err != nil {
		return err
	}

	return nil
}

// Write sets the pin value.
func (s *Sysfs) Write(pin int, high bool) error {
	value := "0"
	if high {
		value = "1"
	}

	return s.writeFile(filepath.Join(s.pinDir(pin), "value"), value)
}

// Close unexports the pins exported by this driver.
func (s *Sysfs) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var errs []error

	for _, pin := range s.exported {
		if err := s.writeFile(filepath.Join(s.root, "unexport"), strconv.Itoa(pin)); err != nil {
			errs = append(errs, err)
		}
	}

	s.exported = nil

	return errors.Join(errs...)
}

func (s *Sysfs) pinDir(pin int) string {
	return filepath.Join(s.root, "gpio"+strconv.Itoa(pin))
}

func (s *Sysfs) writeFile(path, value string) error {
	if err := os.WriteFile(path, []byte(value), sysfsFileMode); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}

	return nil
}
