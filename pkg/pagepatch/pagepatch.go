package pagepatch

import (
	"errors"
	"log/slog"
	"time"
	"unicode/utf8"

	"pagepatch/internal/config"
	"pagepatch/internal/html"
)

// ErrInvalidEncoding is returned when RequireUTF8 is set and a document is
// not valid UTF-8
var ErrInvalidEncoding = errors.New("document is not valid UTF-8")

// Patcher replaces one element of a document, chosen by id, with new markup
type Patcher struct {
	config  config.Config
	dialect config.DialectProfile
	logger  *slog.Logger
}

// New creates a patcher with the given configuration
func New(cfg config.Config) *Patcher {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Patcher{
		config:  cfg,
		dialect: cfg.Profile(),
		logger:  logger,
	}
}

// NewWithDefaults creates a patcher for div-based HTML book pages
func NewWithDefaults() *Patcher {
	return New(config.Default())
}

// Config returns the configuration the patcher was built with
func (p *Patcher) Config() config.Config {
	return p.config
}

// PatchResult contains the result of a patch operation
type PatchResult struct {
	Document   string           // Patched document, or the input unchanged when not found
	Found      bool             // Whether the target element was located
	Span       html.ElementSpan // Byte range the replacement was spliced over
	Duplicates int              // Further top-level elements carrying the same id
	Stats      ProcessingStats  // Performance and processing statistics
}

// ProcessingStats contains metrics from the patch process
type ProcessingStats struct {
	DocumentBytes    int   // Size of the input document
	ReplacedBytes    int   // Size of the element that was replaced
	ReplacementBytes int   // Size of the replacement markup
	ProcessingTimeMs int64 // Processing time in milliseconds
}

// Patch locates the element whose id is targetID and splices replacement
// over it. A document without such an element comes back unchanged with
// Found set to false; that is not an error.
func (p *Patcher) Patch(document, targetID, replacement string) (*PatchResult, error) {
	start := time.Now()

	if p.config.RequireUTF8 && !utf8.ValidString(document) {
		return nil, ErrInvalidEncoding
	}

	result := &PatchResult{
		Document: document,
		Stats: ProcessingStats{
			DocumentBytes:    len(document),
			ReplacementBytes: len(replacement),
		},
	}

	spans := html.LocateAll(document, p.config.ContainerTag, targetID, p.dialect)
	if len(spans) > 0 {
		result.Found = true
		result.Span = spans[0]
		result.Duplicates = len(spans) - 1
		result.Document = html.Patch(document, result.Span, true, replacement)
		result.Stats.ReplacedBytes = result.Span.Len()
	}
	result.Stats.ProcessingTimeMs = time.Since(start).Milliseconds()

	if result.Duplicates > 0 {
		p.logger.Warn("pagepatch: duplicate id", "id", targetID, "extra", result.Duplicates)
	}
	p.logger.Debug("pagepatch: patch",
		"id", targetID,
		"found", result.Found,
		"span", result.Span.String(),
		"bytes", result.Stats.DocumentBytes)

	return result, nil
}

// PatchString is a convenience method that returns only the patched document
func (p *Patcher) PatchString(document, targetID, replacement string) (string, error) {
	result, err := p.Patch(document, targetID, replacement)
	if err != nil {
		return "", err
	}
	return result.Document, nil
}

// Extract returns the verbatim text of the element whose id is targetID
func (p *Patcher) Extract(document, targetID string) (string, bool) {
	span, ok := html.Locate(document, p.config.ContainerTag, targetID, p.dialect)
	if !ok {
		return "", false
	}
	return html.Extract(document, span), true
}

// Locate returns the span of every top-level element carrying targetID
func (p *Patcher) Locate(document, targetID string) []html.ElementSpan {
	return html.LocateAll(document, p.config.ContainerTag, targetID, p.dialect)
}

// ReplaceElementByID returns document with the first elementTagName element
// whose id attribute equals targetID replaced by replacement. If there is no
// such element, or it is never closed, document is returned unchanged.
func ReplaceElementByID(document, elementTagName, targetID, replacement string) string {
	return html.ReplaceElementByID(document, elementTagName, targetID, replacement, config.GetDialectProfile("html"))
}

// ReplaceElementByIDWithConfig is ReplaceElementByID with the container tag
// and dialect taken from cfg
func ReplaceElementByIDWithConfig(document, targetID, replacement string, cfg config.Config) string {
	return html.ReplaceElementByID(document, cfg.ContainerTag, targetID, replacement, cfg.Profile())
}
