// Package mcp exposes the notes directory as MCP tools over stdio.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/sgx-labs/noter/internal/notes"
)

// Version is set by the caller (main) before calling Serve.
var Version = "dev"

// Write rate limit shared by every mutating tool.
const (
	maxWritesPerWindow = 30
	writeWindow        = time.Minute
)

// maxReadBytes caps read_note output.
const maxReadBytes = 1 << 20

// Options configures the tool handlers.
type Options struct {
	// Summarizer is optional; nil makes combine_notes skip summaries.
	Summarizer notes.Summarizer
	Prompt     string
	Log        *zap.Logger
}

// Server holds the notes directory and dependencies for tool handlers.
type Server struct {
	dir        string
	summarizer notes.Summarizer
	prompt     string
	log        *zap.Logger
	now        func() time.Time

	writeMu    sync.Mutex
	writeTimes []time.Time
}

// New creates tool handlers bound to dir.
func New(dir string, opts Options) *Server {
	log := opts.Log
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{
		dir:        dir,
		summarizer: opts.Summarizer,
		prompt:     opts.Prompt,
		log:        log.Named("mcp"),
		now:        time.Now,
	}
}

// Serve runs the MCP server on stdio until ctx is done or the client
// disconnects.
func (s *Server) Serve(ctx context.Context) error {
	server := mcp.NewServer(&mcp.Implementation{
		Name:    "noter",
		Version: Version,
	}, nil)

	s.registerTools(server)

	s.log.Info("serving MCP on stdio", zap.String("dir", s.dir))
	return server.Run(ctx, &mcp.StdioTransport{})
}

func (s *Server) registerTools(server *mcp.Server) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "new_note",
		Description: "Start a new note for today. The note gets the next free version number.\n\nArgs:\n  content: Optional first entry. Leave empty to create an empty note.\n\nReturns the created file name.",
	}, s.handleNewNote)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "add_entry",
		Description: "Append a timestamped entry to today's most recent note, creating one if today has none.\n\nArgs:\n  content: Entry text (required, markdown allowed)\n\nReturns the file name that was written.",
	}, s.handleAddEntry)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "combine_notes",
		Description: "Merge every version of a date into one note, optionally with an AI summary.\n\nArgs:\n  date: 'today', a yyyyMMdd date, or empty for every date\n  keep: Keep the source files and write the merge as a new version (default false)\n  summarize: Add an AI summary block when a summarizer is configured (default false)\n\nReturns per-date merge results.",
	}, s.handleCombineNotes)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "list_notes",
		Description: "List note files grouped by date.\n\nArgs:\n  date: 'today', a yyyyMMdd date, or empty for every date\n\nReturns dates with their note file names in version order.",
	}, s.handleListNotes)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "read_note",
		Description: "Read the full markdown of one note.\n\nArgs:\n  name: Note file name as returned by list_notes (e.g. 20260102.0.md)\n\nReturns the file content.",
	}, s.handleReadNote)
}

// Tool input types

type contentInput struct {
	Content string `json:"content" jsonschema:"Entry text in markdown"`
}

type combineInput struct {
	Date      string `json:"date,omitempty" jsonschema:"'today', a yyyyMMdd date, or empty for every date"`
	Keep      bool   `json:"keep,omitempty" jsonschema:"Keep source files and write a new version"`
	Summarize bool   `json:"summarize,omitempty" jsonschema:"Add an AI summary block"`
}

type listInput struct {
	Date string `json:"date,omitempty" jsonschema:"'today', a yyyyMMdd date, or empty for every date"`
}

type readInput struct {
	Name string `json:"name" jsonschema:"Note file name, e.g. 20260102.0.md"`
}

// Tool output types

type groupOutput struct {
	Date       string   `json:"date"`
	Target     string   `json:"target,omitempty"`
	Sources    []string `json:"sources"`
	Deleted    []string `json:"deleted,omitempty"`
	Skipped    []string `json:"skipped,omitempty"`
	Summarized bool     `json:"summarized"`
	Error      string   `json:"error,omitempty"`
}

type combineOutput struct {
	FilesFound int           `json:"files_found"`
	Merged     int           `json:"merged"`
	Groups     []groupOutput `json:"groups"`
}

type listOutput struct {
	Date  string   `json:"date"`
	Files []string `json:"files"`
}

// Tool handlers

func (s *Server) handleNewNote(ctx context.Context, req *mcp.CallToolRequest, input contentInput) (*mcp.CallToolResult, any, error) {
	if !s.allowWrite() {
		return textResult("Error: too many writes, try again in a minute."), nil, nil
	}
	now := s.now()
	path, err := notes.Create(s.dir, notes.TodayDateString(now), strings.TrimSpace(input.Content), now)
	if err != nil {
		s.log.Warn("new_note failed", zap.Error(err))
		return textResult(fmt.Sprintf("Error: %v", err)), nil, nil
	}
	return textResult("Created " + filepath.Base(path)), nil, nil
}

func (s *Server) handleAddEntry(ctx context.Context, req *mcp.CallToolRequest, input contentInput) (*mcp.CallToolResult, any, error) {
	content := strings.TrimSpace(input.Content)
	if content == "" {
		return textResult("Error: content is required."), nil, nil
	}
	if !s.allowWrite() {
		return textResult("Error: too many writes, try again in a minute."), nil, nil
	}
	path, err := notes.Append(s.dir, content, s.now())
	if err != nil {
		s.log.Warn("add_entry failed", zap.Error(err))
		return textResult(fmt.Sprintf("Error: %v", err)), nil, nil
	}
	return textResult("Appended to " + filepath.Base(path)), nil, nil
}

func (s *Server) handleCombineNotes(ctx context.Context, req *mcp.CallToolRequest, input combineInput) (*mcp.CallToolResult, any, error) {
	filter, err := notes.ResolveFilter(input.Date, s.now())
	if err != nil {
		return textResult(fmt.Sprintf("Error: %v", err)), nil, nil
	}
	if !s.allowWrite() {
		return textResult("Error: too many writes, try again in a minute."), nil, nil
	}

	m := &notes.Merger{
		Summarizer: s.summarizer,
		Prompt:     s.prompt,
		Summarize:  input.Summarize && s.summarizer != nil,
		Keep:       input.Keep,
		Log:        s.log,
	}
	report, err := m.Merge(ctx, s.dir, filter)
	if report == nil {
		return textResult(fmt.Sprintf("Error: %v", err)), nil, nil
	}
	if report.FilesFound == 0 {
		if filter == "" {
			return textResult("No notes found."), nil, nil
		}
		return textResult(fmt.Sprintf("No notes found for %s.", filter)), nil, nil
	}
	if len(report.Groups) == 0 {
		return textResult("Nothing to combine."), nil, nil
	}

	out := combineOutput{FilesFound: report.FilesFound, Merged: report.Merged()}
	for _, g := range report.Groups {
		gout := groupOutput{
			Date:       g.Date,
			Target:     baseName(g.Target),
			Sources:    baseNames(g.Sources),
			Deleted:    baseNames(g.Deleted),
			Skipped:    baseNames(g.Skipped),
			Summarized: g.Summarized,
		}
		if g.Err != nil {
			gout.Error = g.Err.Error()
		}
		out.Groups = append(out.Groups, gout)
	}
	data, _ := json.MarshalIndent(out, "", "  ")
	return textResult(string(data)), nil, nil
}

func (s *Server) handleListNotes(ctx context.Context, req *mcp.CallToolRequest, input listInput) (*mcp.CallToolResult, any, error) {
	filter, err := notes.ResolveFilter(input.Date, s.now())
	if err != nil {
		return textResult(fmt.Sprintf("Error: %v", err)), nil, nil
	}
	groups, err := notes.GroupByDate(s.dir, filter)
	if err != nil {
		if errors.Is(err, notes.ErrDirectoryNotFound) {
			return textResult("No notes found."), nil, nil
		}
		return textResult(fmt.Sprintf("Error: %v", err)), nil, nil
	}
	if len(groups) == 0 {
		return textResult("No notes found."), nil, nil
	}

	out := make([]listOutput, 0, len(groups))
	for _, g := range groups {
		lo := listOutput{Date: g.Date}
		for _, f := range g.Files {
			lo.Files = append(lo.Files, f.ID.Filename())
		}
		out = append(out, lo)
	}
	data, _ := json.MarshalIndent(out, "", "  ")
	return textResult(string(data)), nil, nil
}

func (s *Server) handleReadNote(ctx context.Context, req *mcp.CallToolRequest, input readInput) (*mcp.CallToolResult, any, error) {
	path := s.notePath(input.Name)
	if path == "" {
		return textResult("Error: name must be a note file name like 20260102.0.md."), nil, nil
	}

	info, err := os.Lstat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return textResult("Note not found."), nil, nil
		}
		return textResult("Error reading note."), nil, nil
	}
	if !info.Mode().IsRegular() {
		return textResult("Error: not a regular file."), nil, nil
	}
	if info.Size() > maxReadBytes {
		return textResult(fmt.Sprintf("Error: note is larger than %d bytes.", maxReadBytes)), nil, nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return textResult("Error reading note."), nil, nil
	}
	return textResult(string(content)), nil, nil
}

// Helpers

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: text},
		},
	}
}

// notePath resolves a bare note file name inside the notes directory.
// Anything that is not a strict note name returns "".
func (s *Server) notePath(name string) string {
	name = strings.TrimSpace(name)
	if name != filepath.Base(name) {
		return ""
	}
	if _, ok := notes.Decode(name); !ok {
		return ""
	}
	return filepath.Join(s.dir, name)
}

// allowWrite enforces the sliding-window write limit.
func (s *Server) allowWrite() bool {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	now := s.now()
	cutoff := now.Add(-writeWindow)
	kept := s.writeTimes[:0]
	for _, t := range s.writeTimes {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	s.writeTimes = kept
	if len(s.writeTimes) >= maxWritesPerWindow {
		return false
	}
	s.writeTimes = append(s.writeTimes, now)
	return true
}

func baseName(path string) string {
	if path == "" {
		return ""
	}
	return filepath.Base(path)
}

func baseNames(paths []string) []string {
	if len(paths) == 0 {
		return nil
	}
	out := make([]string, len(paths))
	for i, p := range paths {
		out[i] = filepath.Base(p)
	}
	return out
}
