package notes

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/adrg/frontmatter"
)

// EntryLayout is the time format used in entry headings.
const EntryLayout = "15:04"

// FormatEntry renders one timestamped entry block.
func FormatEntry(content string, now time.Time) string {
	return fmt.Sprintf("### %s\n\n%s\n\n", now.Format(EntryLayout), content)
}

// EntrySource is where an appended entry's text comes from. Exactly one of
// Text and File must be set.
type EntrySource struct {
	Text string
	File string
}

// Resolve returns the entry text. File sources are read whole and any
// leading front matter block is dropped.
func (s EntrySource) Resolve() (string, error) {
	hasText := strings.TrimSpace(s.Text) != ""
	hasFile := s.File != ""
	switch {
	case hasText && hasFile:
		return "", fmt.Errorf("%w: give either content or a file, not both", ErrInvalidInput)
	case !hasText && !hasFile:
		return "", fmt.Errorf("%w: no content given", ErrInvalidInput)
	case hasText:
		return strings.TrimSpace(s.Text), nil
	}

	data, err := os.ReadFile(s.File)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrFileRead, s.File, err)
	}
	text := strings.TrimSpace(stripFrontmatter(data))
	if text == "" {
		return "", fmt.Errorf("%w: %s is empty", ErrInvalidInput, s.File)
	}
	return text, nil
}

func stripFrontmatter(data []byte) string {
	var meta map[string]any
	body, err := frontmatter.Parse(bytes.NewReader(data), &meta)
	if err != nil {
		// Malformed front matter: keep the file as written.
		return string(data)
	}
	return string(body)
}

// Append adds one entry to today's most recent note in dir, creating an
// empty note first when there is none. It returns the note's path.
// Existing bytes are never rewritten.
func Append(dir, content string, now time.Time) (string, error) {
	today := TodayDateString(now)

	path, ok, err := MostRecent(dir, today)
	if err != nil && !errors.Is(err, ErrDirectoryNotFound) {
		return "", err
	}
	if !ok {
		path, err = Create(dir, today, "", now)
		if err != nil {
			return "", err
		}
	}

	if err := appendBytes(path, []byte(FormatEntry(content, now))); err != nil {
		return "", err
	}
	return path, nil
}

func appendBytes(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return fmt.Errorf("open note: %w", err)
	}
	if _, err := f.Seek(0, io.SeekEnd); err != nil {
		f.Close()
		return fmt.Errorf("seek note: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return fmt.Errorf("append entry: %w", err)
	}
	return f.Close()
}
