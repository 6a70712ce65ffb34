// Package config resolves noter's configuration.
// Loads from: CLI flags > env vars > ~/.noterrc > built-in defaults.
package config

import (
	"bufio"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// RCFileName is the per-user configuration file, stored in $HOME.
const RCFileName = ".noterrc"

// DefaultNotesDir is the notes directory relative to $HOME when nothing else
// is configured.
const DefaultNotesDir = "notes"

// DefaultPrompt is the system instruction given to the summarizer when the
// rc-file does not set ai_prompt.
const DefaultPrompt = "You summarize a day's worth of personal notes. " +
	"Write a short Markdown summary of the key points, decisions and open tasks. " +
	"Do not invent details that are not in the notes."

// Summarizer defaults.
const (
	DefaultProvider  = "auto"
	DefaultOllamaURL = "http://localhost:11434"
	DefaultTimeout   = 60 * time.Second
)

// Environment variables read by Load.
const (
	EnvPath       = "NOTER_PATH"
	EnvAIProvider = "NOTER_AI_PROVIDER"
	EnvAIModel    = "NOTER_AI_MODEL"
	EnvAIBaseURL  = "NOTER_AI_BASE_URL"
	EnvAIAPIKey   = "NOTER_AI_API_KEY"
	EnvVerbose    = "NOTER_VERBOSE"
	EnvOllamaURL  = "OLLAMA_URL"
	EnvOpenAIKey  = "OPENAI_API_KEY"
)

// Sentinel errors for consistent messaging across commands.
var (
	// ErrNoDirectory is returned when no notes directory can be resolved.
	ErrNoDirectory = errors.New("cannot resolve notes directory: set --dir, NOTER_PATH or path= in ~/.noterrc")
	// ErrUnsafeDirectory is returned for notes directories that are
	// filesystem roots or shallow system directories.
	ErrUnsafeDirectory = errors.New("notes directory is too broad")
	// ErrOllamaNotLocal is returned when the Ollama URL points to a non-localhost host.
	ErrOllamaNotLocal = errors.New("OLLAMA_URL must point to localhost")
)

// RC holds the values read from ~/.noterrc. Keys are flat so the same file
// works as TOML (path = "~/notes") or as legacy key=value lines.
type RC struct {
	Path       string `toml:"path"`
	AIPrompt   string `toml:"ai_prompt"`
	AIProvider string `toml:"ai_provider"`
	AIModel    string `toml:"ai_model"`
	AIBaseURL  string `toml:"ai_base_url"`
	AIAPIKey   string `toml:"ai_api_key"`
	AITimeout  string `toml:"ai_timeout"`
	LogFile    string `toml:"log_file"`
}

// AIConfig selects and tunes the summarization back-end.
type AIConfig struct {
	// Provider is one of auto, ollama, openai, openai-compatible, none.
	Provider string
	Model    string
	BaseURL  string
	APIKey   string
	Timeout  time.Duration
}

// Config is the effective configuration for one command invocation.
type Config struct {
	Dir     string
	Prompt  string
	LogFile string
	Verbose bool
	AI      AIConfig
	// RCPath is the rc-file that was read, empty if none.
	RCPath string
}

// Env abstracts environment lookups so resolution stays testable.
type Env func(key string) string

// Load resolves the configuration for a command. flagDir is the --dir
// flag value (may be empty). The rc-file is read from $HOME.
func Load(flagDir string) (*Config, error) {
	return LoadWith(flagDir, os.Getenv, userHome())
}

// LoadWith is Load with explicit environment and home directory.
func LoadWith(flagDir string, env Env, home string) (*Config, error) {
	var (
		rc     RC
		rcPath string
	)
	if home != "" {
		p := filepath.Join(home, RCFileName)
		data, err := os.ReadFile(p)
		switch {
		case err == nil:
			parsed, unknown, perr := ParseRC(string(data))
			if perr != nil {
				return nil, fmt.Errorf("parse %s: %w", p, perr)
			}
			warnUnknownKeys(unknown, p)
			rc, rcPath = parsed, p
		case !os.IsNotExist(err):
			return nil, fmt.Errorf("read %s: %w", p, err)
		}
	}

	dir, err := ResolveDirectory(flagDir, env(EnvPath), rc, home)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Dir:     dir,
		Prompt:  ResolvePrompt(rc),
		LogFile: expandHome(rc.LogFile, home),
		Verbose: env(EnvVerbose) != "",
		RCPath:  rcPath,
	}
	cfg.AI, err = resolveAI(rc, env)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// ResolveDirectory picks the notes directory: flag > env > rc path >
// ~/notes. A leading "~/" is expanded against home. The result is rejected
// when it names a filesystem root or a shallow system directory.
func ResolveDirectory(flag, env string, rc RC, home string) (string, error) {
	var path string
	switch {
	case strings.TrimSpace(flag) != "":
		path = strings.TrimSpace(flag)
	case strings.TrimSpace(env) != "":
		path = strings.TrimSpace(env)
	case strings.TrimSpace(rc.Path) != "":
		path = strings.TrimSpace(rc.Path)
	default:
		if home == "" {
			return "", ErrNoDirectory
		}
		path = filepath.Join(home, DefaultNotesDir)
	}

	if path == "~" || strings.HasPrefix(path, "~/") {
		if home == "" {
			return "", ErrNoDirectory
		}
		path = expandHome(path, home)
	}
	return validateNotesDir(path)
}

// ResolvePrompt returns the rc-file's ai_prompt, or DefaultPrompt.
func ResolvePrompt(rc RC) string {
	if p := strings.TrimSpace(rc.AIPrompt); p != "" {
		return p
	}
	return DefaultPrompt
}

func resolveAI(rc RC, env Env) (AIConfig, error) {
	ai := AIConfig{
		Provider: firstNonEmpty(env(EnvAIProvider), rc.AIProvider, DefaultProvider),
		Model:    firstNonEmpty(env(EnvAIModel), rc.AIModel),
		BaseURL:  firstNonEmpty(env(EnvAIBaseURL), rc.AIBaseURL),
		APIKey:   firstNonEmpty(env(EnvAIAPIKey), rc.AIAPIKey, env(EnvOpenAIKey)),
		Timeout:  DefaultTimeout,
	}
	ai.Provider = strings.ToLower(ai.Provider)
	if ai.BaseURL == "" && (ai.Provider == "ollama" || ai.Provider == "auto") {
		ai.BaseURL = firstNonEmpty(env(EnvOllamaURL), DefaultOllamaURL)
	}
	if s := strings.TrimSpace(rc.AITimeout); s != "" {
		d, err := time.ParseDuration(s)
		if err != nil || d <= 0 {
			return AIConfig{}, fmt.Errorf("invalid ai_timeout %q: want a positive duration like 30s", s)
		}
		ai.Timeout = d
	}
	return ai, nil
}

// ParseRC decodes rc-file content. Valid TOML is decoded directly;
// anything else is read as key=value lines, with '#' comments and blank
// lines skipped. Unrecognized keys are returned, sorted, for warnings.
func ParseRC(content string) (RC, []string, error) {
	var rc RC
	meta, err := toml.Decode(content, &rc)
	if err == nil {
		var unknown []string
		for _, key := range meta.Undecoded() {
			unknown = append(unknown, key.String())
		}
		sort.Strings(unknown)
		return rc, unknown, nil
	}
	return parseLegacyRC(content)
}

func parseLegacyRC(content string) (RC, []string, error) {
	var (
		rc      RC
		unknown []string
	)
	fields := map[string]*string{
		"path":        &rc.Path,
		"ai_prompt":   &rc.AIPrompt,
		"ai_provider": &rc.AIProvider,
		"ai_model":    &rc.AIModel,
		"ai_base_url": &rc.AIBaseURL,
		"ai_api_key":  &rc.AIAPIKey,
		"ai_timeout":  &rc.AITimeout,
		"log_file":    &rc.LogFile,
	}

	sc := bufio.NewScanner(strings.NewReader(content))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = unquote(strings.TrimSpace(value))
		if dst, ok := fields[key]; ok {
			*dst = value
		} else {
			unknown = append(unknown, key)
		}
	}
	if err := sc.Err(); err != nil {
		return RC{}, nil, err
	}
	sort.Strings(unknown)
	return rc, unknown, nil
}

func unquote(s string) string {
	if len(s) >= 2 {
		if (s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '\'' && s[len(s)-1] == '\'') {
			return s[1 : len(s)-1]
		}
	}
	return s
}

// validateNotesDir rejects directories that are too broad to hold notes
// (/, /home, /tmp, ...) and resolves symlinks so a link to one of them is
// rejected too.
func validateNotesDir(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolve notes directory %q: %w", path, err)
	}
	dangerous := []string{"/", "/home", "/Users", "/tmp", "/var", "/etc", "/opt"}
	if runtime.GOOS == "windows" && len(abs) >= 3 {
		driveRoot := abs[:3]
		dangerous = append(dangerous, driveRoot, filepath.Join(driveRoot, "Users"), filepath.Join(driveRoot, "Windows"))
	}
	for _, d := range dangerous {
		if abs == d {
			return "", fmt.Errorf("%w: %s", ErrUnsafeDirectory, abs)
		}
	}

	// Path may not exist yet; new and add create it on first write.
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return abs, nil
	}
	for _, d := range dangerous {
		if resolved == d {
			return "", fmt.Errorf("%w: %s resolves to %s", ErrUnsafeDirectory, abs, resolved)
		}
		if rd, err := filepath.EvalSymlinks(d); err == nil && resolved == rd {
			return "", fmt.Errorf("%w: %s resolves to %s", ErrUnsafeDirectory, abs, resolved)
		}
	}
	return abs, nil
}

// OllamaURL validates an Ollama base URL. Only http(s) on a loopback host
// is accepted.
func OllamaURL(raw string) (string, error) {
	if raw == "" {
		raw = DefaultOllamaURL
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid OLLAMA_URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("OLLAMA_URL must use http or https scheme, got: %s", u.Scheme)
	}
	host := u.Hostname()
	if host != "localhost" && host != "127.0.0.1" && host != "::1" {
		return "", ErrOllamaNotLocal
	}
	return strings.TrimRight(raw, "/"), nil
}

// Show renders the effective configuration as TOML. The API key is never
// printed.
func Show(cfg *Config) string {
	var b strings.Builder
	b.WriteString("# Effective noter configuration (merged from all sources)\n")
	if cfg.RCPath != "" {
		fmt.Fprintf(&b, "# rc-file: %s\n", cfg.RCPath)
	}
	b.WriteString("\n")

	type aiView struct {
		Provider  string `toml:"provider"`
		Model     string `toml:"model,omitempty"`
		BaseURL   string `toml:"base_url,omitempty"`
		Timeout   string `toml:"timeout"`
		APIKeySet bool   `toml:"api_key_set"`
	}
	view := struct {
		Dir     string `toml:"dir"`
		Prompt  string `toml:"prompt"`
		LogFile string `toml:"log_file,omitempty"`
		Verbose bool   `toml:"verbose"`
		AI      aiView `toml:"ai"`
	}{
		Dir:     cfg.Dir,
		Prompt:  cfg.Prompt,
		LogFile: cfg.LogFile,
		Verbose: cfg.Verbose,
		AI: aiView{
			Provider:  cfg.AI.Provider,
			Model:     cfg.AI.Model,
			BaseURL:   cfg.AI.BaseURL,
			Timeout:   cfg.AI.Timeout.String(),
			APIKeySet: cfg.AI.APIKey != "",
		},
	}
	if err := toml.NewEncoder(&b).Encode(view); err != nil {
		return fmt.Sprintf("# Error encoding config: %v\n", err)
	}
	return b.String()
}

// configSuggestions maps common wrong keys to the correct rc key.
var configSuggestions = map[string]string{
	"dir":        "path",
	"notes_dir":  "path",
	"notes_path": "path",
	"prompt":     "ai_prompt",
	"model":      "ai_model",
	"provider":   "ai_provider",
	"api_key":    "ai_api_key",
	"apikey":     "ai_api_key",
	"base_url":   "ai_base_url",
	"timeout":    "ai_timeout",
	"log":        "log_file",
}

// warnUnknownKeys prints warnings for unrecognized rc keys.
func warnUnknownKeys(keys []string, path string) {
	fname := filepath.Base(path)
	for _, key := range keys {
		last := key
		if i := strings.LastIndex(key, "."); i >= 0 {
			last = key[i+1:]
		}
		if suggestion, ok := configSuggestions[last]; ok {
			fmt.Fprintf(os.Stderr, "noter: WARNING: unknown key %q in %s, did you mean %q?\n", key, fname, suggestion)
		} else {
			fmt.Fprintf(os.Stderr, "noter: WARNING: unknown key %q in %s (will be ignored)\n", key, fname)
		}
	}
}

func expandHome(path, home string) string {
	if path == "~" {
		return home
	}
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(home, path[2:])
	}
	return path
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

func userHome() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return home
}
