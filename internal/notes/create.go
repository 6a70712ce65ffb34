package notes

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"
)

const notePerms = 0o644

// NextFreeVersion returns the lowest version for date with no file in dir.
func NextFreeVersion(dir, date string) (int, error) {
	return NextFreeVersionFrom(dir, date, 0)
}

// NextFreeVersionFrom probes versions start, start+1, ... and returns the
// first one with no file in dir. It gives up with ErrVersionSpaceExhausted
// at MaxVersions.
func NextFreeVersionFrom(dir, date string, start int) (int, error) {
	if start < 0 {
		start = 0
	}
	for v := start; v < MaxVersions; v++ {
		_, err := os.Lstat(filepath.Join(dir, Encode(date, v)))
		if errors.Is(err, fs.ErrNotExist) {
			return v, nil
		}
		if err != nil {
			return 0, fmt.Errorf("probe version %d: %w", v, err)
		}
	}
	return 0, fmt.Errorf("%w: %s (%d versions in use)", ErrVersionSpaceExhausted, date, MaxVersions)
}

// Create writes a new note for date at the next free version and returns
// its path. A non-empty content is written as one entry stamped with now;
// otherwise the note is empty. dir is created if needed.
func Create(dir, date, content string, now time.Time) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create notes directory: %w", err)
	}

	v, err := NextFreeVersion(dir, date)
	if err != nil {
		return "", err
	}
	path := filepath.Join(dir, Encode(date, v))

	var data []byte
	if content != "" {
		data = []byte(FormatEntry(content, now))
	}
	if err := writeExclusive(path, data); err != nil {
		return "", err
	}
	return path, nil
}

// writeExclusive creates path with O_EXCL so a concurrent writer that took
// the same version surfaces as ErrFileAlreadyExists instead of a clobber.
func writeExclusive(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, notePerms)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return fmt.Errorf("%w: %s", ErrFileAlreadyExists, path)
		}
		return fmt.Errorf("create note: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(path)
		return fmt.Errorf("write note: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return fmt.Errorf("close note: %w", err)
	}
	return nil
}
