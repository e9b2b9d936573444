// Package daemon tracks the running `codelion serve` process through a
// small state file so that other invocations can report on or stop it.
package daemon

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// ErrAlreadyRunning is returned by Acquire when a live server owns the file.
var ErrAlreadyRunning = errors.New("server already running")

// ErrNotRunning is returned when no live server is recorded.
var ErrNotRunning = errors.New("server not running")

// Info describes a running server.
type Info struct {
	PID       int       `json:"pid"`
	Addr      string    `json:"addr"`
	StartedAt time.Time `json:"started_at"`
}

// Instance manages the state file at Path.
type Instance struct {
	Path string
}

// NewInstance returns an Instance backed by path.
func NewInstance(path string) *Instance {
	return &Instance{Path: path}
}

// Acquire records the current process as the running server. A file left
// behind by a dead process is replaced.
func (i *Instance) Acquire(addr string) error {
	if info, running := i.Status(); running {
		return fmt.Errorf("%w (pid %d, %s)", ErrAlreadyRunning, info.PID, info.Addr)
	}
	return i.write(Info{PID: os.Getpid(), Addr: addr, StartedAt: time.Now().UTC()})
}

// Release removes the state file if it belongs to this process.
func (i *Instance) Release() error {
	info, err := i.Read()
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	if info.PID != os.Getpid() {
		return nil
	}
	return os.Remove(i.Path)
}

func (i *Instance) write(info Info) error {
	if err := os.MkdirAll(filepath.Dir(i.Path), 0o755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}
	data, err := json.Marshal(info)
	if err != nil {
		return err
	}
	return os.WriteFile(i.Path, append(data, '\n'), 0o644)
}

// Read returns the recorded server info without checking liveness.
func (i *Instance) Read() (*Info, error) {
	data, err := os.ReadFile(i.Path)
	if err != nil {
		return nil, err
	}
	var info Info
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, fmt.Errorf("invalid instance file: %w", err)
	}
	if info.PID <= 0 {
		return nil, fmt.Errorf("invalid instance file: pid %d", info.PID)
	}
	return &info, nil
}

// Status returns the recorded info and whether that process is alive.
func (i *Instance) Status() (*Info, bool) {
	info, err := i.Read()
	if err != nil {
		return nil, false
	}
	return info, processAlive(info.PID)
}

// Stop asks the running server to shut down and waits up to timeout for it
// to exit.
func (i *Instance) Stop(timeout time.Duration) (*Info, error) {
	info, running := i.Status()
	if !running {
		return nil, ErrNotRunning
	}
	if err := terminate(info.PID); err != nil {
		return info, fmt.Errorf("signal pid %d: %w", info.PID, err)
	}

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if !processAlive(info.PID) {
			return info, nil
		}
		time.Sleep(100 * time.Millisecond)
	}
	return info, fmt.Errorf("pid %d did not exit within %s", info.PID, timeout)
}
