// Package notes implements the dated, versioned note directory: filename
// codec, directory scanning, note creation, entry appends and same-day merge.
//
// Note files are named "{yyyyMMdd}.{version}.md". The directory itself is the
// only state; every operation rescans it.
package notes

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Filename layout constants.
const (
	DateLayout   = "20060102"
	HeaderLayout = "01-02-2006"
	Extension    = "md"

	// MaxVersions bounds the number of versions probed for a single date.
	MaxVersions = 1000
)

// FileID identifies a note file by its calendar day and per-day version.
type FileID struct {
	Date    string
	Version int
}

// Filename returns the canonical file name for the ID.
func (id FileID) Filename() string {
	return Encode(id.Date, id.Version)
}

// Less orders IDs by date, then version.
func (id FileID) Less(other FileID) bool {
	if id.Date != other.Date {
		return id.Date < other.Date
	}
	return id.Version < other.Version
}

// LooseID is the result of the tolerant decode used for recency lookups.
// Version is only meaningful when HasVersion is true.
type LooseID struct {
	Stem       string
	Date       string
	Version    int
	HasVersion bool
}

// Encode formats the canonical note filename.
func Encode(date string, version int) string {
	return fmt.Sprintf("%s.%d.%s", date, version, Extension)
}

// Decode parses a canonical note filename. It accepts exactly
// "{8 digits}.{digits}.md" with no leading zero on the version, so every
// version has one filename, and reports false for anything else.
func Decode(name string) (FileID, bool) {
	parts := strings.Split(name, ".")
	if len(parts) != 3 || parts[2] != Extension {
		return FileID{}, false
	}
	if !ValidDate(parts[0]) {
		return FileID{}, false
	}
	if len(parts[1]) > 1 && parts[1][0] == '0' {
		return FileID{}, false
	}
	v, ok := parseVersion(parts[1])
	if !ok {
		return FileID{}, false
	}
	return FileID{Date: parts[0], Version: v}, true
}

// DecodeLoose parses any "*.md" name whose first dot-separated segment is
// the date. The second segment is taken as the version when it parses;
// further segments are ignored.
func DecodeLoose(name string) (LooseID, bool) {
	stem, ok := strings.CutSuffix(name, "."+Extension)
	if !ok || stem == "" {
		return LooseID{}, false
	}
	parts := strings.Split(stem, ".")
	id := LooseID{Stem: stem, Date: parts[0]}
	if id.Date == "" {
		return LooseID{}, false
	}
	if len(parts) > 1 {
		id.Version, id.HasVersion = parseVersion(parts[1])
	}
	return id, true
}

// ValidDate reports whether s looks like a yyyyMMdd date: exactly eight
// ASCII digits. It does not check that the day exists on the calendar.
func ValidDate(s string) bool {
	return len(s) == len(DateLayout) && allDigits(s)
}

// TodayDateString formats now as a yyyyMMdd date in now's location.
func TodayDateString(now time.Time) string {
	return now.Format(DateLayout)
}

// FilterToday is the date argument that selects today's notes.
const FilterToday = "today"

// ResolveFilter turns a user-supplied date argument into a merge or list
// filter: "" selects every date, "today" selects now's date, and a
// yyyyMMdd date selects itself. Anything else is ErrInvalidInput.
func ResolveFilter(arg string, now time.Time) (string, error) {
	arg = strings.TrimSpace(arg)
	switch {
	case arg == "":
		return "", nil
	case strings.EqualFold(arg, FilterToday):
		return TodayDateString(now), nil
	case ValidDate(arg):
		return arg, nil
	}
	return "", fmt.Errorf("%w: date must be %q or yyyyMMdd, got %q", ErrInvalidInput, FilterToday, arg)
}

// HeaderDate reformats a yyyyMMdd date as MM-dd-yyyy. Dates that do not
// exist on the calendar are returned unchanged.
func HeaderDate(date string) string {
	t, err := time.ParseInLocation(DateLayout, date, time.Local)
	if err != nil {
		return date
	}
	return t.Format(HeaderLayout)
}

func parseVersion(s string) (int, bool) {
	if s == "" || !allDigits(s) {
		return 0, false
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, false
	}
	return v, true
}

func allDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
