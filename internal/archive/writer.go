package archive

import (
	"bytes"
	"compress/gzip"
	"database/sql"
	"fmt"
	"sync"

	_ "modernc.org/sqlite" // SQLite driver
)

const (
	// DefaultBatchSize is the number of frames to buffer before flushing to the database.
	DefaultBatchSize = 64

	// SamplesArray is the array name under which the full buffer is stored.
	SamplesArray = "samples"
)

// FrameEntry represents a single frame to be written.
type FrameEntry struct {
	Data  []byte // PNG data (will be gzip-compressed before storage)
	Index int
}

// Writer writes frames to an archive database.
type Writer struct {
	db        *sql.DB
	path      string
	batch     []FrameEntry
	metadata  Metadata
	batchSize int
	mu        sync.Mutex
}

// New creates a new archive writer.
// The database is created if it doesn't exist, and the schema is initialized.
func New(path string, metadata Metadata) (*Writer, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA temp_store = MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma %q: %w", pragma, err)
		}
	}

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	if err := insertMetadata(db, metadata); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to insert metadata: %w", err)
	}

	return &Writer{
		db:        db,
		path:      path,
		batch:     make([]FrameEntry, 0, DefaultBatchSize),
		batchSize: DefaultBatchSize,
		metadata:  metadata,
	}, nil
}

func createSchema(db *sql.DB) error {
	schema := `
		CREATE TABLE IF NOT EXISTS metadata (
			name TEXT NOT NULL PRIMARY KEY,
			value TEXT
		);

		CREATE TABLE IF NOT EXISTS frames (
			frame_index INTEGER NOT NULL PRIMARY KEY,
			frame_data BLOB NOT NULL
		);

		CREATE TABLE IF NOT EXISTS arrays (
			name TEXT NOT NULL PRIMARY KEY,
			npy_data BLOB NOT NULL
		);
	`

	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}

	return nil
}

func insertMetadata(db *sql.DB, meta Metadata) error {
	if _, err := db.Exec("DELETE FROM metadata"); err != nil {
		return fmt.Errorf("failed to clear metadata: %w", err)
	}

	stmt, err := db.Prepare("INSERT INTO metadata (name, value) VALUES (?, ?)")
	if err != nil {
		return fmt.Errorf("failed to prepare metadata insert: %w", err)
	}
	defer stmt.Close()

	for key, value := range meta.ToMap() {
		if _, err := stmt.Exec(key, value); err != nil {
			return fmt.Errorf("failed to insert metadata %q: %w", key, err)
		}
	}

	return nil
}

// WriteFrame adds a frame to the batch. When the batch is full, it is
// automatically flushed.
func (w *Writer) WriteFrame(index int, pngData []byte) error {
	if index < 0 {
		return fmt.Errorf("frame index must be non-negative, got %d", index)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	w.batch = append(w.batch, FrameEntry{Index: index, Data: pngData})

	if len(w.batch) >= w.batchSize {
		return w.flushLocked()
	}

	return nil
}

// WriteArray stores an encoded .npy array under name, replacing any previous one.
func (w *Writer) WriteArray(name string, npyData []byte) error {
	compressed, err := gzipCompress(npyData)
	if err != nil {
		return fmt.Errorf("failed to compress array %q: %w", name, err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if _, err := w.db.Exec("INSERT OR REPLACE INTO arrays (name, npy_data) VALUES (?, ?)", name, compressed); err != nil {
		return fmt.Errorf("failed to insert array %q: %w", name, err)
	}
	return nil
}

// Flush writes any buffered frames to the database.
func (w *Writer) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.flushLocked()
}

// flushLocked writes buffered frames to the database. Must be called with lock held.
func (w *Writer) flushLocked() error {
	if len(w.batch) == 0 {
		return nil
	}

	tx, err := w.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() // nolint:errcheck

	stmt, err := tx.Prepare("INSERT OR REPLACE INTO frames (frame_index, frame_data) VALUES (?, ?)")
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, frame := range w.batch {
		compressed, err := gzipCompress(frame.Data)
		if err != nil {
			return fmt.Errorf("failed to compress frame %d: %w", frame.Index, err)
		}

		if _, err := stmt.Exec(frame.Index, compressed); err != nil {
			return fmt.Errorf("failed to insert frame %d: %w", frame.Index, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	w.batch = w.batch[:0]
	return nil
}

// Close flushes any remaining frames and closes the database.
func (w *Writer) Close() error {
	if err := w.Flush(); err != nil {
		w.db.Close()
		return err
	}

	if err := w.db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}

	return nil
}

// gzipCompress compresses data with gzip.
func gzipCompress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	gw := gzip.NewWriter(&buf)

	if _, err := gw.Write(data); err != nil {
		gw.Close()
		return nil, err
	}

	if err := gw.Close(); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}
