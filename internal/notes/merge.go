package notes

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/natefinch/atomic"
	"go.uber.org/zap"
)

// Merged file building blocks.
const (
	Divider       = "---\n\n"
	SummaryHeader = "## AI Summary"
)

// File operations swapped out in tests.
var (
	readFile   = os.ReadFile
	removeFile = os.Remove
)

// Summarizer produces a summary of merged note text. prompt is the system
// instruction. Implementations enforce their own timeout.
type Summarizer interface {
	Summarize(ctx context.Context, text, prompt string) (string, error)
}

// Merger combines every version of a date into one note.
type Merger struct {
	// Summarizer is optional; nil disables the AI summary block.
	Summarizer Summarizer
	Prompt     string
	// Summarize turns the AI summary step on.
	Summarize bool
	// Keep leaves source files in place and writes the merge to a new version.
	Keep bool
	Log  *zap.Logger
}

// GroupResult is the outcome of merging one date.
type GroupResult struct {
	Date       string
	Sources    []string
	Target     string
	Summarized bool
	Deleted    []string
	// Skipped lists sources that could not be read. They are never deleted.
	Skipped []string
	// Err is set when the group failed or its cleanup stopped early.
	Err error
}

// OK reports whether the merged file was written.
func (r GroupResult) OK() bool {
	return r.Target != ""
}

// MergeReport summarizes a merge run.
type MergeReport struct {
	// FilesFound counts canonical note files matching the filter.
	FilesFound int
	Groups     []GroupResult
}

// Merged returns the number of groups whose merged file was written.
func (r *MergeReport) Merged() int {
	n := 0
	for _, g := range r.Groups {
		if g.OK() {
			n++
		}
	}
	return n
}

// Merge combines each date in dir that has two or more note files. A
// non-empty filter restricts the run to that date. Failures are recorded
// per group; Merge itself only fails when dir is unusable or when every
// attempted group failed.
func (m *Merger) Merge(ctx context.Context, dir, filter string) (*MergeReport, error) {
	log := m.logger()

	groups, err := GroupByDate(dir, filter)
	if err != nil {
		return nil, err
	}

	report := &MergeReport{}
	var errs []error
	for _, g := range groups {
		report.FilesFound += len(g.Files)
		if len(g.Files) < 2 {
			log.Debug("skip single-file date", zap.String("date", g.Date))
			continue
		}
		res := m.mergeGroup(ctx, g)
		if !res.OK() {
			errs = append(errs, fmt.Errorf("%s: %w", g.Date, res.Err))
		}
		report.Groups = append(report.Groups, res)
	}

	if len(report.Groups) > 0 && report.Merged() == 0 {
		return report, errors.Join(errs...)
	}
	return report, nil
}

func (m *Merger) mergeGroup(ctx context.Context, g Group) GroupResult {
	log := m.logger().With(zap.String("date", g.Date))
	res := GroupResult{Date: g.Date}

	var (
		chunks []string
		read   []NoteFile
	)
	for _, f := range g.Files {
		res.Sources = append(res.Sources, f.Path)
		data, err := readFile(f.Path)
		if err != nil {
			log.Warn("skip unreadable note", zap.String("path", f.Path), zap.Error(err))
			res.Skipped = append(res.Skipped, f.Path)
			continue
		}
		chunk := string(data)
		if !strings.HasSuffix(chunk, "\n") {
			chunk += "\n"
		}
		chunks = append(chunks, chunk)
		read = append(read, f)
	}
	if len(chunks) == 0 {
		res.Err = fmt.Errorf("no readable notes")
		return res
	}

	body := strings.Join(chunks, Divider)

	dir := filepath.Dir(g.Files[0].Path)
	target, err := m.target(dir, g)
	if err != nil {
		res.Err = err
		return res
	}
	for _, p := range res.Skipped {
		if p == target {
			res.Err = fmt.Errorf("refusing to overwrite unreadable %s", filepath.Base(p))
			return res
		}
	}

	var b strings.Builder
	b.WriteString("# " + HeaderDate(g.Date) + "\n\n")
	if summary := m.summarize(ctx, body, log); summary != "" {
		b.WriteString(SummaryHeader + "\n\n" + summary + "\n\n" + Divider)
		res.Summarized = true
	}
	b.WriteString(body)

	_, statErr := os.Stat(target)
	if err := atomic.WriteFile(target, strings.NewReader(b.String())); err != nil {
		res.Err = fmt.Errorf("write merged note: %w", err)
		return res
	}
	// atomic.WriteFile keeps an existing file's mode but leaves new ones 0600.
	if statErr != nil {
		if err := os.Chmod(target, notePerms); err != nil {
			log.Warn("set merged note permissions", zap.String("path", target), zap.Error(err))
		}
	}
	res.Target = target
	log.Debug("wrote merged note", zap.String("path", target), zap.Int("sources", len(read)))

	if m.Keep {
		return res
	}
	for _, f := range read {
		if f.Path == target {
			continue
		}
		if err := removeFile(f.Path); err != nil {
			log.Warn("stop cleanup after failed delete", zap.String("path", f.Path), zap.Error(err))
			res.Err = fmt.Errorf("delete %s: %w", filepath.Base(f.Path), err)
			break
		}
		res.Deleted = append(res.Deleted, f.Path)
	}
	return res
}

// target picks the merged file's path: version 0 when sources are deleted,
// otherwise the first free version after the group's highest.
func (m *Merger) target(dir string, g Group) (string, error) {
	if !m.Keep {
		return filepath.Join(dir, Encode(g.Date, 0)), nil
	}
	v, err := NextFreeVersionFrom(dir, g.Date, g.MaxVersion()+1)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, Encode(g.Date, v)), nil
}

func (m *Merger) summarize(ctx context.Context, text string, log *zap.Logger) string {
	if !m.Summarize || m.Summarizer == nil {
		return ""
	}
	summary, err := m.Summarizer.Summarize(ctx, text, m.Prompt)
	if err != nil {
		log.Debug("summary unavailable", zap.Error(err))
		return ""
	}
	return strings.TrimSpace(summary)
}

func (m *Merger) logger() *zap.Logger {
	if m.Log == nil {
		return zap.NewNop()
	}
	return m.Log
}
