package archive

import (
	"bytes"
	"compress/gzip"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
)

// ErrNotFound is returned for a missing frame or array.
var ErrNotFound = errors.New("not found")

// Reader reads frames from an archive database.
type Reader struct {
	db   *sql.DB
	path string
}

// OpenReader opens an archive for reading.
func OpenReader(path string) (*Reader, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("failed to open archive: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	var count int
	err = db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name IN ('frames', 'metadata')").Scan(&count)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to verify schema: %w", err)
	}
	if count != 2 {
		db.Close()
		return nil, fmt.Errorf("database %s is not a noise archive", path)
	}

	return &Reader{
		db:   db,
		path: path,
	}, nil
}

// FrameCount returns the number of stored frames.
func (r *Reader) FrameCount() (int, error) {
	var n int
	if err := r.db.QueryRow("SELECT COUNT(*) FROM frames").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count frames: %w", err)
	}
	return n, nil
}

// ReadFrame returns the PNG data of frame index.
func (r *Reader) ReadFrame(index int) ([]byte, error) {
	var compressed []byte
	err := r.db.QueryRow("SELECT frame_data FROM frames WHERE frame_index=?", index).Scan(&compressed)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("frame %d: %w", index, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query frame: %w", err)
	}

	data, err := gzipDecompress(compressed)
	if err != nil {
		return nil, fmt.Errorf("failed to decompress frame %d: %w", index, err)
	}
	return data, nil
}

// ReadArray returns the .npy data stored under name.
func (r *Reader) ReadArray(name string) ([]byte, error) {
	var compressed []byte
	err := r.db.QueryRow("SELECT npy_data FROM arrays WHERE name=?", name).Scan(&compressed)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("array %q: %w", name, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query array: %w", err)
	}

	data, err := gzipDecompress(compressed)
	if err != nil {
		return nil, fmt.Errorf("failed to decompress array %q: %w", name, err)
	}
	return data, nil
}

// Metadata reads metadata from the database.
func (r *Reader) Metadata() (Metadata, error) {
	rows, err := r.db.Query("SELECT name, value FROM metadata")
	if err != nil {
		return Metadata{}, fmt.Errorf("failed to query metadata: %w", err)
	}
	defer rows.Close()

	values := make(map[string]string)
	for rows.Next() {
		var name, value string
		if err := rows.Scan(&name, &value); err != nil {
			return Metadata{}, fmt.Errorf("failed to scan metadata row: %w", err)
		}
		values[name] = value
	}
	if err := rows.Err(); err != nil {
		return Metadata{}, fmt.Errorf("error iterating metadata: %w", err)
	}

	return metadataFromMap(values)
}

// Close closes the database connection.
func (r *Reader) Close() error {
	if err := r.db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	return nil
}

// gzipDecompress decompresses gzip data.
func gzipDecompress(data []byte) ([]byte, error) {
	gr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer gr.Close()

	return io.ReadAll(gr)
}
