package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"golang.org/x/net/html/atom"
	"gopkg.in/yaml.v3"
)

// Config holds configuration options for the patching process
type Config struct {
	// ContainerTag is the element name whose nesting depth is tracked (e.g. "div")
	ContainerTag string `yaml:"container_tag"`

	// Dialect fixes the case rules for tag and attribute names ("html" or "xhtml")
	Dialect string `yaml:"dialect"`

	// RequireUTF8 rejects documents that are not valid UTF-8 before scanning
	RequireUTF8 bool `yaml:"require_utf8"`

	// ValidateReplacement checks replacement markup before it is written to storage
	ValidateReplacement bool `yaml:"validate_replacement"`

	// PageClass is the class token a replacement page root is expected to carry
	PageClass string `yaml:"page_class"`

	// MarginBoxClass marks the content box that must not come back empty
	MarginBoxClass string `yaml:"margin_box_class"`

	// CatalogPath is the SQLite database that tracks registered documents
	CatalogPath string `yaml:"catalog_path"`

	// InboxDir is watched for edited pages laid out as <doc-id>/<page-id>.htm
	InboxDir string `yaml:"inbox_dir"`

	// InboxDebounce is the quiet period after the last write to an inbox file
	InboxDebounce time.Duration `yaml:"inbox_debounce"`

	Logger *slog.Logger `yaml:"-"`
}

// Default returns a configuration suited to Bloom-style book documents
func Default() Config {
	return Config{
		ContainerTag:        "div",          // Pages and their boxes are divs
		Dialect:             "html",         // Book files are HTML, names fold case
		RequireUTF8:         true,           // Decoded text is a caller precondition
		ValidateReplacement: true,           // Refuse to save emptied pages
		PageClass:           "bloom-page",   // Class token on every page root
		MarginBoxClass:      "marginBox",    // Content area inside a page
		CatalogPath:         "pagepatch.db", // Next to the working directory
		InboxDebounce:       250 * time.Millisecond,
	}
}

// LoadFile reads a YAML configuration file on top of Default()
func LoadFile(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	cfg.applyDefaults()
	return cfg, nil
}

// applyDefaults fills zero values left by a partial config file
func (c *Config) applyDefaults() {
	def := Default()
	if c.ContainerTag == "" {
		c.ContainerTag = def.ContainerTag
	}
	if c.Dialect == "" {
		c.Dialect = def.Dialect
	}
	if c.CatalogPath == "" {
		c.CatalogPath = def.CatalogPath
	}
	if c.InboxDebounce <= 0 {
		c.InboxDebounce = def.InboxDebounce
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Validate checks that the configuration can drive the scanner
func (c Config) Validate() error {
	if c.ContainerTag == "" {
		return fmt.Errorf("container tag must not be empty")
	}
	for i := 0; i < len(c.ContainerTag); i++ {
		if !IsNameByte(c.ContainerTag[i]) {
			return fmt.Errorf("invalid container tag %q: unexpected %q", c.ContainerTag, c.ContainerTag[i])
		}
	}

	profile, ok := lookupDialect(c.Dialect)
	if !ok {
		return fmt.Errorf("invalid dialect: %s (valid: %s)", c.Dialect, strings.Join(Dialects(), ", "))
	}

	// Custom elements carry a hyphen and are never in the atom table
	if profile.Name == "html" && !strings.Contains(c.ContainerTag, "-") {
		if atom.Lookup([]byte(strings.ToLower(c.ContainerTag))) == 0 {
			return fmt.Errorf("unknown HTML element: %s", c.ContainerTag)
		}
	}

	return nil
}

// Profile returns the dialect profile selected by the configuration
func (c Config) Profile() DialectProfile {
	return GetDialectProfile(c.Dialect)
}

// IsNameByte reports whether b may appear in a tag or attribute name
func IsNameByte(b byte) bool {
	return ('a' <= b && b <= 'z') || ('A' <= b && b <= 'Z') || ('0' <= b && b <= '9') ||
		b == '-' || b == '_' || b == ':' || b == '.'
}
