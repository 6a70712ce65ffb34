package mcp

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

var testNow = time.Date(2026, 1, 2, 10, 30, 0, 0, time.Local)

type stubSummarizer struct {
	summary string
	calls   int
}

func (s *stubSummarizer) Summarize(ctx context.Context, text, prompt string) (string, error) {
	s.calls++
	return s.summary, nil
}

func setupServer(t *testing.T, opts Options) (*Server, string) {
	t.Helper()
	dir := t.TempDir()
	s := New(dir, opts)
	s.now = func() time.Time { return testNow }
	return s, dir
}

func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	if result == nil {
		t.Fatal("expected non-nil result")
	}
	if len(result.Content) == 0 {
		t.Fatal("expected at least one content item")
	}
	tc, ok := result.Content[0].(*mcp.TextContent)
	if !ok {
		t.Fatalf("expected TextContent, got %T", result.Content[0])
	}
	return tc.Text
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func readFile(t *testing.T, dir, name string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		t.Fatal(err)
	}
	return string(data)
}

func dirNames(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestHandleNewNote(t *testing.T) {
	s, dir := setupServer(t, Options{})
	ctx := context.Background()

	res, _, err := s.handleNewNote(ctx, nil, contentInput{Content: "  kickoff  "})
	if err != nil {
		t.Fatalf("handleNewNote: %v", err)
	}
	if got := resultText(t, res); got != "Created 20260102.0.md" {
		t.Errorf("result = %q", got)
	}
	if got := readFile(t, dir, "20260102.0.md"); got != "### 10:30\n\nkickoff\n\n" {
		t.Errorf("content = %q", got)
	}

	res, _, _ = s.handleNewNote(ctx, nil, contentInput{})
	if got := resultText(t, res); got != "Created 20260102.1.md" {
		t.Errorf("second result = %q", got)
	}
	if got := readFile(t, dir, "20260102.1.md"); got != "" {
		t.Errorf("expected empty note, got %q", got)
	}
}

func TestHandleAddEntry(t *testing.T) {
	s, dir := setupServer(t, Options{})
	ctx := context.Background()

	res, _, _ := s.handleAddEntry(ctx, nil, contentInput{Content: "   "})
	if got := resultText(t, res); !strings.HasPrefix(got, "Error:") {
		t.Errorf("expected error for blank content, got %q", got)
	}
	if names := dirNames(t, dir); len(names) != 0 {
		t.Fatalf("blank content wrote files: %v", names)
	}

	writeFile(t, dir, "20260102.0.md", "first\n")
	writeFile(t, dir, "20260102.1.md", "second\n")
	res, _, _ = s.handleAddEntry(ctx, nil, contentInput{Content: "third"})
	if got := resultText(t, res); got != "Appended to 20260102.1.md" {
		t.Errorf("result = %q", got)
	}
	if got := readFile(t, dir, "20260102.1.md"); got != "second\n### 10:30\n\nthird\n\n" {
		t.Errorf("content = %q", got)
	}
}

func TestHandleCombineNotes_Today(t *testing.T) {
	sum := &stubSummarizer{summary: "Two entries."}
	s, dir := setupServer(t, Options{Summarizer: sum, Prompt: "p"})

	writeFile(t, dir, "20260102.0.md", "alpha")
	writeFile(t, dir, "20260102.1.md", "beta\n")
	writeFile(t, dir, "20260101.0.md", "old")
	writeFile(t, dir, "20260101.1.md", "older")

	res, _, _ := s.handleCombineNotes(context.Background(), nil, combineInput{Date: "today", Summarize: true})
	text := resultText(t, res)

	var out combineOutput
	if err := json.Unmarshal([]byte(text), &out); err != nil {
		t.Fatalf("decode output %q: %v", text, err)
	}
	if out.Merged != 1 || len(out.Groups) != 1 {
		t.Fatalf("unexpected output: %+v", out)
	}
	g := out.Groups[0]
	if g.Target != "20260102.0.md" || !g.Summarized || len(g.Deleted) != 1 || g.Deleted[0] != "20260102.1.md" {
		t.Errorf("unexpected group: %+v", g)
	}

	want := "# 01-02-2026\n\n## AI Summary\n\nTwo entries.\n\n---\n\nalpha\n---\n\nbeta\n"
	if got := readFile(t, dir, "20260102.0.md"); got != want {
		t.Errorf("merged content:\n%q\nwant:\n%q", got, want)
	}
	if sum.calls != 1 {
		t.Errorf("summarizer calls = %d", sum.calls)
	}
	if got := readFile(t, dir, "20260101.1.md"); got != "older" {
		t.Error("other dates must be untouched")
	}
}

func TestHandleCombineNotes_SummaryNeedsOptIn(t *testing.T) {
	sum := &stubSummarizer{summary: "unused"}
	s, dir := setupServer(t, Options{Summarizer: sum})
	writeFile(t, dir, "20260102.0.md", "a\n")
	writeFile(t, dir, "20260102.1.md", "b\n")

	s.handleCombineNotes(context.Background(), nil, combineInput{Keep: true})
	if sum.calls != 0 {
		t.Errorf("summarizer called without summarize=true")
	}
	if got := dirNames(t, dir); strings.Join(got, ",") != "20260102.0.md,20260102.1.md,20260102.2.md" {
		t.Errorf("keep mode files = %v", got)
	}
}

func TestHandleCombineNotes_NothingToDo(t *testing.T) {
	s, dir := setupServer(t, Options{})
	writeFile(t, dir, "20260101.0.md", "yesterday")
	writeFile(t, dir, "20260101.1.md", "yesterday again")

	res, _, _ := s.handleCombineNotes(context.Background(), nil, combineInput{Date: "today"})
	if got := resultText(t, res); got != "No notes found for 20260102." {
		t.Errorf("result = %q", got)
	}

	writeFile(t, dir, "20260102.0.md", "only one")
	res, _, _ = s.handleCombineNotes(context.Background(), nil, combineInput{Date: "20260102"})
	if got := resultText(t, res); got != "Nothing to combine." {
		t.Errorf("result = %q", got)
	}
	if got := len(dirNames(t, dir)); got != 3 {
		t.Errorf("expected no writes, have %d files", got)
	}
}

func TestHandleCombineNotes_InvalidDate(t *testing.T) {
	s, _ := setupServer(t, Options{})
	res, _, _ := s.handleCombineNotes(context.Background(), nil, combineInput{Date: "2026-01-02"})
	if got := resultText(t, res); !strings.HasPrefix(got, "Error:") {
		t.Errorf("expected error, got %q", got)
	}
}

func TestHandleListNotes(t *testing.T) {
	s, dir := setupServer(t, Options{})

	res, _, _ := s.handleListNotes(context.Background(), nil, listInput{})
	if got := resultText(t, res); got != "No notes found." {
		t.Errorf("empty dir result = %q", got)
	}

	writeFile(t, dir, "20260102.10.md", "")
	writeFile(t, dir, "20260102.2.md", "")
	writeFile(t, dir, "20251231.0.md", "")
	writeFile(t, dir, "scratch.md", "")

	res, _, _ = s.handleListNotes(context.Background(), nil, listInput{})
	var out []listOutput
	if err := json.Unmarshal([]byte(resultText(t, res)), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(out) != 2 || out[0].Date != "20251231" || out[1].Date != "20260102" {
		t.Fatalf("unexpected groups: %+v", out)
	}
	if strings.Join(out[1].Files, ",") != "20260102.2.md,20260102.10.md" {
		t.Errorf("files not in version order: %v", out[1].Files)
	}

	res, _, _ = s.handleListNotes(context.Background(), nil, listInput{Date: "today"})
	out = nil
	json.Unmarshal([]byte(resultText(t, res)), &out)
	if len(out) != 1 || out[0].Date != "20260102" {
		t.Errorf("today filter: %+v", out)
	}
}

func TestHandleReadNote(t *testing.T) {
	s, dir := setupServer(t, Options{})
	writeFile(t, dir, "20260102.0.md", "hello\n")
	writeFile(t, dir, "notes.md", "not a note")

	tests := []struct {
		name string
		want string
	}{
		{"20260102.0.md", "hello\n"},
		{"20260102.5.md", "Note not found."},
		{"notes.md", "Error: name must be a note file name like 20260102.0.md."},
		{"../20260102.0.md", "Error: name must be a note file name like 20260102.0.md."},
		{filepath.Join(dir, "20260102.0.md"), "Error: name must be a note file name like 20260102.0.md."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, _, _ := s.handleReadNote(context.Background(), nil, readInput{Name: tt.name})
			if got := resultText(t, res); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestHandleReadNote_RejectsSymlink(t *testing.T) {
	s, dir := setupServer(t, Options{})
	secret := filepath.Join(t.TempDir(), "secret.txt")
	writeFile(t, filepath.Dir(secret), "secret.txt", "secret")
	if err := os.Symlink(secret, filepath.Join(dir, "20260102.0.md")); err != nil {
		t.Skipf("symlink unsupported: %v", err)
	}

	res, _, _ := s.handleReadNote(context.Background(), nil, readInput{Name: "20260102.0.md"})
	if got := resultText(t, res); got != "Error: not a regular file." {
		t.Errorf("got %q", got)
	}
}

func TestAllowWrite_RateLimit(t *testing.T) {
	s, dir := setupServer(t, Options{})
	for i := 0; i < maxWritesPerWindow; i++ {
		if !s.allowWrite() {
			t.Fatalf("write %d rejected early", i)
		}
	}

	res, _, _ := s.handleNewNote(context.Background(), nil, contentInput{Content: "x"})
	if got := resultText(t, res); !strings.Contains(got, "too many writes") {
		t.Errorf("expected rate limit, got %q", got)
	}
	if len(dirNames(t, dir)) != 0 {
		t.Error("rate-limited call wrote a file")
	}

	s.now = func() time.Time { return testNow.Add(writeWindow + time.Second) }
	if !s.allowWrite() {
		t.Error("expected window to reset")
	}
}
