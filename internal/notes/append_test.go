package notes

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestFormatEntry(t *testing.T) {
	now := time.Date(2026, 1, 2, 7, 5, 0, 0, time.Local)
	if got := FormatEntry("body", now); got != "### 07:05\n\nbody\n\n" {
		t.Errorf("FormatEntry = %q", got)
	}
}

func TestAppend_CreatesNoteWhenNoneToday(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "fresh")

	path, err := Append(dir, "first", testNow)
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	if filepath.Base(path) != "20260102.0.md" {
		t.Errorf("expected new note 20260102.0.md, got %s", filepath.Base(path))
	}

	listings, err := ListNoteFiles(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(listings) != 1 {
		t.Fatalf("expected exactly one file, got %d", len(listings))
	}
	data, _ := os.ReadFile(path)
	if string(data) != "### 09:00\n\nfirst\n\n" {
		t.Errorf("expected exactly one entry, got %q", data)
	}
}

func TestAppend_PreservesExistingBytes(t *testing.T) {
	dir := t.TempDir()
	prior := "# my own heading\nno trailing newline"
	writeNote(t, dir, "20260102.0.md", "older")
	path := writeNote(t, dir, "20260102.1.md", prior)

	later := testNow.Add(90 * time.Minute)
	got, err := Append(dir, "second", later)
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	if got != path {
		t.Fatalf("appended to %s, want %s", got, path)
	}

	data, _ := os.ReadFile(path)
	if !strings.HasPrefix(string(data), prior) {
		t.Fatalf("prior bytes altered: %q", data)
	}
	if rest := strings.TrimPrefix(string(data), prior); rest != "### 10:30\n\nsecond\n\n" {
		t.Errorf("expected one added entry, got %q", rest)
	}
	if older, _ := os.ReadFile(filepath.Join(dir, "20260102.0.md")); string(older) != "older" {
		t.Errorf("lower version was modified: %q", older)
	}
}

func TestAppend_NeverContinuesYesterday(t *testing.T) {
	dir := t.TempDir()
	yesterday := writeNote(t, dir, "20260101.3.md", "yesterday")

	path, err := Append(dir, "today", testNow)
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	if filepath.Base(path) != "20260102.0.md" {
		t.Errorf("expected a new note for today, got %s", filepath.Base(path))
	}
	if data, _ := os.ReadFile(yesterday); string(data) != "yesterday" {
		t.Errorf("yesterday's note changed: %q", data)
	}
}

func TestEntrySource_Resolve(t *testing.T) {
	dir := t.TempDir()
	plain := writeNote(t, dir, "plain.md", "  from a file\n")
	withMeta := writeNote(t, dir, "meta.md", "---\ntitle: standup\ntags: [work]\n---\nbody only\n")
	blank := writeNote(t, dir, "blank.md", "\n\n")

	tests := []struct {
		name    string
		src     EntrySource
		want    string
		wantErr error
	}{
		{"text", EntrySource{Text: " hi "}, "hi", nil},
		{"file", EntrySource{File: plain}, "from a file", nil},
		{"front matter stripped", EntrySource{File: withMeta}, "body only", nil},
		{"neither", EntrySource{}, "", ErrInvalidInput},
		{"both", EntrySource{Text: "x", File: plain}, "", ErrInvalidInput},
		{"whitespace only", EntrySource{Text: "   "}, "", ErrInvalidInput},
		{"empty file", EntrySource{File: blank}, "", ErrInvalidInput},
		{"missing file", EntrySource{File: filepath.Join(dir, "gone.md")}, "", ErrFileRead},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.src.Resolve()
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Resolve: %v", err)
			}
			if got != tt.want {
				t.Errorf("Resolve = %q, want %q", got, tt.want)
			}
		})
	}
}
