package notes

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
)

// Listing is one directory entry with its strict decode result.
// Valid is false for files that are not canonical note files.
type Listing struct {
	Name  string
	Path  string
	ID    FileID
	Valid bool
}

// NoteFile is a canonical note file on disk.
type NoteFile struct {
	ID   FileID
	Path string
}

// Group holds every note file for one date, ordered by version ascending.
type Group struct {
	Date  string
	Files []NoteFile
}

// MaxVersion returns the highest version in the group, or -1 when empty.
func (g Group) MaxVersion() int {
	if len(g.Files) == 0 {
		return -1
	}
	return g.Files[len(g.Files)-1].ID.Version
}

// ListNoteFiles returns the regular files in dir, sorted by name, each with
// its strict decode result. A missing dir yields ErrDirectoryNotFound.
func ListNoteFiles(dir string) ([]Listing, error) {
	entries, err := readDir(dir)
	if err != nil {
		return nil, err
	}

	listings := make([]Listing, 0, len(entries))
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		name := e.Name()
		id, ok := Decode(name)
		listings = append(listings, Listing{
			Name:  name,
			Path:  filepath.Join(dir, name),
			ID:    id,
			Valid: ok,
		})
	}
	sort.Slice(listings, func(i, j int) bool { return listings[i].Name < listings[j].Name })
	return listings, nil
}

// MostRecent returns the path of the latest note for date. Candidates are
// loose-decoded: the highest parseable version wins, and when either side
// has no parseable version (or versions tie) the greater stem wins.
// It reports false when dir holds no note for date.
func MostRecent(dir, date string) (string, bool, error) {
	entries, err := readDir(dir)
	if err != nil {
		return "", false, err
	}

	var (
		best  LooseID
		found bool
	)
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		id, ok := DecodeLoose(e.Name())
		if !ok || id.Date != date {
			continue
		}
		if !found || looseAfter(id, best) {
			best = id
			found = true
		}
	}
	if !found {
		return "", false, nil
	}
	return filepath.Join(dir, best.Stem+"."+Extension), true, nil
}

// looseAfter reports whether a sorts after b for recency purposes.
func looseAfter(a, b LooseID) bool {
	if a.HasVersion && b.HasVersion && a.Version != b.Version {
		return a.Version > b.Version
	}
	return a.Stem > b.Stem
}

// GroupByDate groups canonical note files by date. A non-empty filter keeps
// only that date. Groups are ordered by date and files by version, so the
// result never depends on directory listing order.
func GroupByDate(dir, filter string) ([]Group, error) {
	listings, err := ListNoteFiles(dir)
	if err != nil {
		return nil, err
	}

	byDate := make(map[string][]NoteFile)
	for _, l := range listings {
		if !l.Valid {
			continue
		}
		if filter != "" && l.ID.Date != filter {
			continue
		}
		byDate[l.ID.Date] = append(byDate[l.ID.Date], NoteFile{ID: l.ID, Path: l.Path})
	}

	groups := make([]Group, 0, len(byDate))
	for date, files := range byDate {
		sort.Slice(files, func(i, j int) bool { return files[i].ID.Less(files[j].ID) })
		groups = append(groups, Group{Date: date, Files: files})
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].Date < groups[j].Date })
	return groups, nil
}

func readDir(dir string) ([]fs.DirEntry, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrDirectoryNotFound, dir)
		}
		return nil, fmt.Errorf("read notes directory: %w", err)
	}
	return entries, nil
}
