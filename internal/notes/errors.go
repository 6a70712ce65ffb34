package notes

import "errors"

// Sentinel errors for note operations. Callers match with errors.Is; the
// returned errors wrap these with the offending path or date.
var (
	// ErrDirectoryNotFound is returned when an operation needs the notes
	// directory to exist already (merge, recency scan).
	ErrDirectoryNotFound = errors.New("notes directory not found")
	// ErrVersionSpaceExhausted is returned when every version below
	// MaxVersions is taken for a date.
	ErrVersionSpaceExhausted = errors.New("no free note version left for date")
	// ErrFileAlreadyExists is returned when another writer created the probed
	// file between the probe and the exclusive create.
	ErrFileAlreadyExists = errors.New("note file already exists")
	// ErrFileRead is returned when an entry's source file cannot be read.
	ErrFileRead = errors.New("cannot read entry file")
	// ErrInvalidInput is returned when an entry has no source, or two.
	ErrInvalidInput = errors.New("invalid entry input")
)
