//go:build unix

package fifo

import (
	"errors"
	"os"
	"syscall"
)

// mkfifo creates a named pipe at path unless one already exists.
func mkfifo(path string) error {
	err := syscall.Mkfifo(path, 0o600)
	if err == nil || !errors.Is(err, syscall.EEXIST) {
		return err
	}
	fi, err := os.Stat(path)
	if err != nil {
		return err
	}
	if fi.Mode()&os.ModeNamedPipe == 0 {
		return &os.PathError{Op: "mkfifo", Path: path, Err: syscall.EEXIST}
	}
	return nil
}
