// Package config holds the tracer options.
package config

import (
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"

	"github.com/zboralski/jniscope/internal/log"

	"go.uber.org/zap"
	yaml "gopkg.in/yaml.v3"
)

// Backtrace modes.
const (
	BacktraceAccurate = "accurate"
	BacktraceFuzzy    = "fuzzy"
	BacktraceNone     = "none"
)

// Output sinks.
const (
	OutputConsole   = "console"
	OutputJSON      = "json"
	OutputYAML      = "yaml"
	OutputCollector = "collector"
	OutputTUI       = "tui"
)

var (
	backtraceModes = []string{BacktraceAccurate, BacktraceFuzzy, BacktraceNone}
	outputs        = []string{OutputConsole, OutputJSON, OutputYAML, OutputCollector, OutputTUI}
)

// Config is the tracer configuration.
type Config struct {
	Libraries      []string `yaml:"libraries,omitempty" json:"libraries,omitempty"`
	Backtrace      string   `yaml:"backtrace,omitempty" json:"backtrace,omitempty"`
	IncludeExports []string `yaml:"include_exports,omitempty" json:"include_exports,omitempty"`
	ExcludeExports []string `yaml:"exclude_exports,omitempty" json:"exclude_exports,omitempty"`
	IncludeMethods []string `yaml:"include_methods,omitempty" json:"include_methods,omitempty"`
	ExcludeMethods []string `yaml:"exclude_methods,omitempty" json:"exclude_methods,omitempty"`
	Env            bool     `yaml:"env" json:"env"`
	VM             bool     `yaml:"vm" json:"vm"`
	Output         []string `yaml:"output,omitempty" json:"output,omitempty"`
	CollectorURL   string   `yaml:"collector_url,omitempty" json:"collector_url,omitempty"`
	Script         string   `yaml:"script,omitempty" json:"script,omitempty"`
	MaxFrames      int      `yaml:"max_frames,omitempty" json:"max_frames,omitempty"`
	RunNatives     bool     `yaml:"run_natives,omitempty" json:"run_natives,omitempty"`

	includeMethods []*regexp.Regexp
	excludeMethods []*regexp.Regexp
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Libraries: []string{"*"},
		Backtrace: BacktraceAccurate,
		Env:       true,
		VM:        true,
		Output:    []string{OutputConsole},
		MaxFrames: 16,
	}
}

// Load reads a config file on top of the defaults.
func Load(file string) (*Config, error) {
	f, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	log.Or(nil).Debug("loading config file", zap.String("file", file))
	return LoadReader(f)
}

// LoadReader reads YAML from r on top of the defaults and validates it.
func LoadReader(r io.Reader) (*Config, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks enumerated fields and compiles the method filters.
func (c *Config) Validate() error {
	if c.Backtrace == "" {
		c.Backtrace = BacktraceAccurate
	}
	if !contains(backtraceModes, c.Backtrace) {
		return fmt.Errorf("invalid backtrace mode %q, expected one of: %s",
			c.Backtrace, strings.Join(backtraceModes, ", "))
	}
	for _, o := range c.Output {
		if !contains(outputs, o) {
			return fmt.Errorf("invalid output %q, expected one of: %s", o, strings.Join(outputs, ", "))
		}
	}
	if contains(c.Output, OutputCollector) && c.CollectorURL == "" {
		return fmt.Errorf("output %q requires collector_url", OutputCollector)
	}
	if c.MaxFrames < 0 {
		return fmt.Errorf("max_frames must not be negative")
	}

	var err error
	if c.includeMethods, err = compile(c.IncludeMethods); err != nil {
		return fmt.Errorf("include_methods: %w", err)
	}
	if c.excludeMethods, err = compile(c.ExcludeMethods); err != nil {
		return fmt.Errorf("exclude_methods: %w", err)
	}
	return nil
}

func compile(patterns []string) ([]*regexp.Regexp, error) {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, err
		}
		out = append(out, re)
	}
	return out, nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// HasOutput reports whether sink o is enabled.
func (c *Config) HasOutput(o string) bool {
	return contains(c.Output, o)
}

// MatchesLibrary reports whether a library path passes the libraries list.
// "*" matches everything; other entries match the base name as a substring.
func (c *Config) MatchesLibrary(path string) bool {
	for _, l := range c.Libraries {
		if l == "*" || strings.Contains(path, l) {
			return true
		}
	}
	return false
}

// MatchesExport applies include_exports then exclude_exports as substring
// filters. An empty include list lets everything through.
func (c *Config) MatchesExport(name string) bool {
	if len(c.IncludeExports) > 0 && !anySubstring(c.IncludeExports, name) {
		return false
	}
	return !anySubstring(c.ExcludeExports, name)
}

// MatchesMethod applies include_methods then exclude_methods. Filters must
// have been compiled by Validate.
func (c *Config) MatchesMethod(name string) bool {
	if len(c.includeMethods) > 0 && !anyMatch(c.includeMethods, name) {
		return false
	}
	return !anyMatch(c.excludeMethods, name)
}

func anySubstring(patterns []string, s string) bool {
	for _, p := range patterns {
		if strings.Contains(s, p) {
			return true
		}
	}
	return false
}

func anyMatch(res []*regexp.Regexp, s string) bool {
	for _, re := range res {
		if re.MatchString(s) {
			return true
		}
	}
	return false
}
