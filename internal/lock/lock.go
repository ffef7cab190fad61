package lock

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"
)

// FileName is the lock file created inside an instance directory.
const FileName = "LOCK"

// HeldError is returned when another process holds the instance lock.
type HeldError struct {
	Holder Holder
	Path   string
}

func (e *HeldError) Error() string {
	return fmt.Sprintf("instance lock held by PID %d since %s (%s)",
		e.Holder.PID, e.Holder.Since.Format(time.RFC3339), e.Path)
}

// Holder describes the process recorded in a lock file.
type Holder struct {
	PID   int
	Since time.Time
}

// Lock represents an acquired instance lock file.
type Lock struct {
	file   *os.File
	path   string
	holder Holder
}

// Acquire takes an exclusive flock on dir/LOCK, creating dir if needed, and
// records the current PID and time in it. Returns *HeldError if another
// process already holds it.
func Acquire(dir string) (*Lock, error) {
	lockPath := filepath.Join(dir, FileName)

	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("create instance dir: %w", err)
	}

	f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, 0600)
	if err != nil {
		return nil, fmt.Errorf("open lock file: %w", err)
	}

	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		h, _ := ReadHolder(dir)
		_ = f.Close()
		return nil, &HeldError{Holder: h, Path: lockPath}
	}

	h := Holder{PID: os.Getpid(), Since: time.Now().UTC().Truncate(time.Second)}
	if err := f.Truncate(0); err != nil {
		_ = f.Close()
		return nil, err
	}
	if _, err := f.WriteAt([]byte(h.encode()), 0); err != nil {
		_ = f.Close()
		return nil, err
	}

	return &Lock{file: f, path: lockPath, holder: h}, nil
}

// Holder returns what this lock recorded when it was acquired.
func (l *Lock) Holder() Holder {
	return l.holder
}

// Path returns the lock file path.
func (l *Lock) Path() string {
	return l.path
}

// Release releases the lock. Safe to call on nil receiver and more than once.
func (l *Lock) Release() error {
	if l == nil || l.file == nil {
		return nil
	}
	// Remove before closing so no stale file outlives the flock.
	_ = os.Remove(l.path)
	err := l.file.Close()
	l.file = nil
	return err
}

// ReadHolder parses the lock file in dir. It returns fs.ErrNotExist when no
// daemon holds the instance.
func ReadHolder(dir string) (Holder, error) {
	data, err := os.ReadFile(filepath.Join(dir, FileName))
	if err != nil {
		return Holder{}, err
	}
	h := parseHolder(string(data))
	if h.PID == 0 {
		return Holder{}, fmt.Errorf("lock file %s: %w", dir, fs.ErrNotExist)
	}
	return h, nil
}

// IsHeld reports whether err came from a contended Acquire.
func IsHeld(err error) bool {
	var held *HeldError
	return errors.As(err, &held)
}

func (h Holder) encode() string {
	return fmt.Sprintf("pid=%d\ntime=%s\n", h.PID, h.Since.Format(time.RFC3339))
}

func parseHolder(content string) Holder {
	var h Holder
	for _, line := range strings.Split(content, "\n") {
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		switch key {
		case "pid":
			h.PID, _ = strconv.Atoi(value)
		case "time":
			h.Since, _ = time.Parse(time.RFC3339, value)
		}
	}
	return h
}
