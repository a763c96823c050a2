// Package catalog keeps a registry of book documents keyed by a stable id,
// applies page replacements to them and records every attempt. Observers
// subscribe to hear about pages that were actually replaced.
package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"pagepatch/internal/config"
	"pagepatch/internal/html"
	"pagepatch/internal/storage"
	"pagepatch/pkg/pagepatch"
)

var (
	// ErrNotFound is returned for an unknown document id
	ErrNotFound = errors.New("catalog: document not found")
	// ErrAlreadyRegistered is returned when a path is registered twice
	ErrAlreadyRegistered = errors.New("catalog: document already registered")
	// ErrPageNotFound is returned when the document has no page with the given id
	ErrPageNotFound = errors.New("catalog: page not found")
	// ErrRejected is returned when replacement markup fails validation
	ErrRejected = errors.New("catalog: replacement rejected")
	// ErrNotRecorded is returned when a document was rewritten but its edit
	// could not be committed to the history
	ErrNotRecorded = errors.New("catalog: edit not recorded")
)

const schema = `
CREATE TABLE IF NOT EXISTS documents (
    id          TEXT PRIMARY KEY,
    path        TEXT NOT NULL UNIQUE,
    title       TEXT NOT NULL,
    revision    INTEGER NOT NULL DEFAULT 0,
    created_at  TEXT NOT NULL,
    updated_at  TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS edits (
    id            TEXT PRIMARY KEY,
    document_id   TEXT NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
    page_id       TEXT NOT NULL,
    applied       INTEGER NOT NULL,
    reason        TEXT NOT NULL DEFAULT '',
    revision      INTEGER NOT NULL,
    bytes_before  INTEGER NOT NULL,
    bytes_after   INTEGER NOT NULL,
    created_at    TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_edits_document ON edits(document_id, created_at);
`

// Document is a registered book file
type Document struct {
	ID        string    `json:"id"`
	Path      string    `json:"path"`
	Title     string    `json:"title"`
	Revision  int       `json:"revision"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Edit records one attempt to replace a page
type Edit struct {
	ID          string    `json:"id"`
	DocumentID  string    `json:"document_id"`
	PageID      string    `json:"page_id"`
	Applied     bool      `json:"applied"`
	Reason      string    `json:"reason,omitempty"`
	Revision    int       `json:"revision"`
	BytesBefore int       `json:"bytes_before"`
	BytesAfter  int       `json:"bytes_after"`
	CreatedAt   time.Time `json:"created_at"`
}

// Observer is told about every page that was written to storage
type Observer interface {
	PageReplaced(doc Document, edit Edit)
}

// ObserverFunc adapts a function to the Observer interface
type ObserverFunc func(doc Document, edit Edit)

// PageReplaced calls f
func (f ObserverFunc) PageReplaced(doc Document, edit Edit) { f(doc, edit) }

// Catalog is a SQLite-backed document registry. It is safe for concurrent use.
type Catalog struct {
	db      *sql.DB
	store   *storage.Store
	patcher *pagepatch.Patcher
	cfg     config.Config
	logger  *slog.Logger
	newID   func() string
	now     func() time.Time

	// edits serialises read-patch-write cycles
	edits sync.Mutex

	obsMu     sync.RWMutex
	observers map[int]Observer
	nextObs   int
}

// Open opens (or creates) the catalog database at cfg.CatalogPath
func Open(cfg config.Config, store *storage.Store) (*Catalog, error) {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if store == nil {
		store = &storage.Store{}
	}

	path := cfg.CatalogPath
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("catalog: mkdir: %w", err)
		}
	}

	dsn := path + "?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(10000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("catalog: open db: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("catalog: migrate: %w", err)
	}

	return &Catalog{
		db:        db,
		store:     store,
		patcher:   pagepatch.New(cfg),
		cfg:       cfg,
		logger:    cfg.Logger,
		newID:     func() string { return uuid.Must(uuid.NewV7()).String() },
		now:       func() time.Time { return time.Now().UTC() },
		observers: make(map[int]Observer),
	}, nil
}

// Close closes the underlying database
func (c *Catalog) Close() error { return c.db.Close() }

// Register adds the document at path. An empty title defaults to the file
// name without its extension.
func (c *Catalog) Register(ctx context.Context, path, title string) (*Document, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("catalog: resolve %s: %w", path, err)
	}
	if !c.store.Exists(abs) {
		return nil, fmt.Errorf("catalog: register %s: %w", path, storage.ErrNotExist)
	}
	if title == "" {
		title = strings.TrimSuffix(filepath.Base(abs), filepath.Ext(abs))
	}

	now := c.now()
	doc := &Document{
		ID:        c.newID(),
		Path:      abs,
		Title:     title,
		CreatedAt: now,
		UpdatedAt: now,
	}

	var existing string
	err = c.db.QueryRowContext(ctx, `SELECT id FROM documents WHERE path = ?`, abs).Scan(&existing)
	if err == nil {
		return nil, fmt.Errorf("%w: %s (id %s)", ErrAlreadyRegistered, abs, existing)
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("catalog: lookup path: %w", err)
	}

	_, err = c.db.ExecContext(ctx,
		`INSERT INTO documents (id, path, title, revision, created_at, updated_at) VALUES (?, ?, ?, 0, ?, ?)`,
		doc.ID, doc.Path, doc.Title, formatTime(now), formatTime(now))
	if err != nil {
		return nil, fmt.Errorf("catalog: insert document: %w", err)
	}

	c.logger.Info("catalog: document registered", "doc_id", doc.ID, "path", doc.Path)
	return doc, nil
}

// Get returns the document with the given id
func (c *Catalog) Get(ctx context.Context, id string) (*Document, error) {
	row := c.db.QueryRowContext(ctx,
		`SELECT id, path, title, revision, created_at, updated_at FROM documents WHERE id = ?`, id)
	doc, err := scanDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("catalog: get %s: %w", id, err)
	}
	return doc, nil
}

// List returns all documents ordered by title
func (c *Catalog) List(ctx context.Context) ([]Document, error) {
	rows, err := c.db.QueryContext(ctx,
		`SELECT id, path, title, revision, created_at, updated_at FROM documents ORDER BY title, id`)
	if err != nil {
		return nil, fmt.Errorf("catalog: list: %w", err)
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("catalog: scan document: %w", err)
		}
		docs = append(docs, *doc)
	}
	return docs, rows.Err()
}

// Remove forgets a document and its history. The file itself is untouched.
func (c *Catalog) Remove(ctx context.Context, id string) error {
	res, err := c.db.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("catalog: remove %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	c.logger.Info("catalog: document removed", "doc_id", id)
	return nil
}

// Pages lists the page ids of a document in order
func (c *Catalog) Pages(ctx context.Context, id string) ([]string, error) {
	doc, err := c.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	text, err := c.store.Read(ctx, doc.Path)
	if err != nil {
		return nil, err
	}
	return html.PageIDs(text, c.cfg.PageClass)
}

// ReplacePage swaps the page pageID of document docID for replacement and
// writes the document back to storage. Every attempt that reaches the
// document is recorded; only applied edits bump the revision and notify
// observers.
func (c *Catalog) ReplacePage(ctx context.Context, docID, pageID, replacement string) (*Edit, error) {
	c.edits.Lock()
	defer c.edits.Unlock()

	doc, err := c.Get(ctx, docID)
	if err != nil {
		return nil, err
	}

	edit := &Edit{
		ID:         c.newID(),
		DocumentID: doc.ID,
		PageID:     pageID,
		Revision:   doc.Revision,
		CreatedAt:  c.now(),
	}

	text, err := c.store.Read(ctx, doc.Path)
	if err != nil {
		return nil, fmt.Errorf("catalog: read %s: %w", doc.Path, err)
	}
	edit.BytesBefore = len(text)
	edit.BytesAfter = len(text)

	if c.cfg.ValidateReplacement {
		issues := c.patcher.ValidateReplacement(pageID, replacement)
		if pagepatch.HasErrors(issues) {
			edit.Reason = "rejected: " + pagepatch.Summarize(issues)
			if err := c.recordEdit(ctx, edit); err != nil {
				return nil, err
			}
			c.logger.Warn("catalog: replacement rejected", "doc_id", docID, "page_id", pageID,
				"issues", len(issues), "reason", edit.Reason)
			return edit, fmt.Errorf("%w: %s", ErrRejected, pagepatch.Summarize(issues))
		}
	}

	result, err := c.patcher.Patch(text, pageID, replacement)
	if err != nil {
		return nil, fmt.Errorf("catalog: patch %s: %w", doc.Path, err)
	}

	if !result.Found {
		edit.Reason = "page not found"
		if err := c.recordEdit(ctx, edit); err != nil {
			return nil, err
		}
		c.logger.Warn("catalog: page not found", "doc_id", docID, "page_id", pageID)
		return edit, fmt.Errorf("%w: %s in %s", ErrPageNotFound, pageID, docID)
	}

	if err := c.store.Write(ctx, doc.Path, result.Document); err != nil {
		return nil, fmt.Errorf("catalog: write %s: %w", doc.Path, err)
	}

	edit.Applied = true
	edit.Revision = doc.Revision + 1
	edit.BytesAfter = len(result.Document)
	if result.Duplicates > 0 {
		edit.Reason = fmt.Sprintf("%d duplicate page id(s) left unchanged", result.Duplicates)
	}

	if err := c.commitEdit(ctx, edit); err != nil {
		// The document on disk is already the new revision
		c.logger.Error("catalog: page written but edit not recorded", "doc_id", docID, "page_id", pageID,
			"path", doc.Path, "edit_id", edit.ID, "error", err)
		return nil, fmt.Errorf("%w: %s/%s: %w", ErrNotRecorded, docID, pageID, err)
	}
	doc.Revision = edit.Revision
	doc.UpdatedAt = edit.CreatedAt

	c.logger.Info("catalog: page replaced", "doc_id", docID, "page_id", pageID,
		"revision", edit.Revision, "bytes", edit.BytesAfter)
	c.notify(*doc, *edit)
	return edit, nil
}

// History returns the most recent edits of a document, newest first.
// limit <= 0 returns everything.
func (c *Catalog) History(ctx context.Context, docID string, limit int) ([]Edit, error) {
	if _, err := c.Get(ctx, docID); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = -1
	}

	rows, err := c.db.QueryContext(ctx, `
		SELECT id, document_id, page_id, applied, reason, revision, bytes_before, bytes_after, created_at
		FROM edits WHERE document_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?`, docID, limit)
	if err != nil {
		return nil, fmt.Errorf("catalog: history: %w", err)
	}
	defer rows.Close()

	var edits []Edit
	for rows.Next() {
		var e Edit
		var applied int
		var created string
		if err := rows.Scan(&e.ID, &e.DocumentID, &e.PageID, &applied, &e.Reason,
			&e.Revision, &e.BytesBefore, &e.BytesAfter, &created); err != nil {
			return nil, fmt.Errorf("catalog: scan edit: %w", err)
		}
		e.Applied = applied == 1
		e.CreatedAt = parseTime(created)
		edits = append(edits, e)
	}
	return edits, rows.Err()
}

// Subscribe registers o for applied edits. The returned function removes it.
// Observers run synchronously after the document has been written.
func (c *Catalog) Subscribe(o Observer) (cancel func()) {
	c.obsMu.Lock()
	defer c.obsMu.Unlock()

	id := c.nextObs
	c.nextObs++
	c.observers[id] = o

	var once sync.Once
	return func() {
		once.Do(func() {
			c.obsMu.Lock()
			delete(c.observers, id)
			c.obsMu.Unlock()
		})
	}
}

func (c *Catalog) notify(doc Document, edit Edit) {
	c.obsMu.RLock()
	observers := make([]Observer, 0, len(c.observers))
	for _, o := range c.observers {
		observers = append(observers, o)
	}
	c.obsMu.RUnlock()

	for _, o := range observers {
		o.PageReplaced(doc, edit)
	}
}

func (c *Catalog) recordEdit(ctx context.Context, e *Edit) error {
	_, err := c.db.ExecContext(ctx, `
		INSERT INTO edits (id, document_id, page_id, applied, reason, revision, bytes_before, bytes_after, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.DocumentID, e.PageID, boolInt(e.Applied), e.Reason, e.Revision,
		e.BytesBefore, e.BytesAfter, formatTime(e.CreatedAt))
	if err != nil {
		return fmt.Errorf("catalog: record edit: %w", err)
	}
	return nil
}

// commitEdit records an applied edit and bumps the document revision together
func (c *Catalog) commitEdit(ctx context.Context, e *Edit) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("catalog: begin: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`UPDATE documents SET revision = ?, updated_at = ? WHERE id = ?`,
		e.Revision, formatTime(e.CreatedAt), e.DocumentID)
	if err != nil {
		return fmt.Errorf("catalog: bump revision: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO edits (id, document_id, page_id, applied, reason, revision, bytes_before, bytes_after, created_at)
		VALUES (?, ?, ?, 1, ?, ?, ?, ?, ?)`,
		e.ID, e.DocumentID, e.PageID, e.Reason, e.Revision,
		e.BytesBefore, e.BytesAfter, formatTime(e.CreatedAt))
	if err != nil {
		return fmt.Errorf("catalog: record edit: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("catalog: commit: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (*Document, error) {
	var doc Document
	var created, updated string
	if err := row.Scan(&doc.ID, &doc.Path, &doc.Title, &doc.Revision, &created, &updated); err != nil {
		return nil, err
	}
	doc.CreatedAt = parseTime(created)
	doc.UpdatedAt = parseTime(updated)
	return &doc, nil
}

// timeFormat has a fixed width so stored timestamps sort as text
const timeFormat = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeFormat)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(timeFormat, s)
	return t
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
