package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"github.com/RyanBlaney/eeg-capture/pkg/common"
)

type dataDB struct {
	db *sql.DB
}

func openDB(path string) (*dataDB, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, storageErr("failed to open data file", err)
	}
	// SQLite allows one writer at a time.
	db.SetMaxOpenConns(1)

	d := &dataDB{db: db}
	if err := d.migrate(); err != nil {
		db.Close()
		return nil, storageErr("failed to migrate data file", err)
	}
	return d, nil
}

func openExistingDB(path string) (*dataDB, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, storageErr("no recording data", err)
		}
		return nil, storageErr("failed to inspect data file", err)
	}
	return openDB(path)
}

func (d *dataDB) Close() error {
	return d.db.Close()
}

func (d *dataDB) migrate() error {
	_, err := d.db.Exec(`
		CREATE TABLE IF NOT EXISTS channels (
			position INTEGER PRIMARY KEY,
			name TEXT UNIQUE NOT NULL
		);
		CREATE TABLE IF NOT EXISTS markers (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp REAL NOT NULL,
			label TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_markers_ts ON markers(timestamp);
	`)
	return err
}

// quoteIdent quotes a channel name for use as a column identifier.
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func (d *dataDB) writeRecording(rec *common.Recording) error {
	tx, err := d.db.Begin()
	if err != nil {
		return storageErr("failed to begin transaction", err)
	}
	defer tx.Rollback()

	cols := make([]string, len(rec.Channels))
	for i, ch := range rec.Channels {
		cols[i] = quoteIdent(ch)
	}

	var ddl strings.Builder
	ddl.WriteString("CREATE TABLE samples (idx INTEGER PRIMARY KEY, timestamp REAL NOT NULL")
	for _, c := range cols {
		// NaN binds as NULL.
		ddl.WriteString(", " + c + " REAL")
	}
	ddl.WriteString(")")
	if _, err := tx.Exec(ddl.String()); err != nil {
		return storageErr("failed to create samples table", err)
	}

	for i, ch := range rec.Channels {
		if _, err := tx.Exec("INSERT INTO channels (position, name) VALUES (?, ?)", i, ch); err != nil {
			return storageErr(fmt.Sprintf("failed to record channel %q", ch), err)
		}
	}

	placeholders := strings.Repeat(", ?", len(cols))
	insert := fmt.Sprintf("INSERT INTO samples (idx, timestamp%s) VALUES (?, ?%s)",
		prefixEach(cols, ", "), placeholders)
	stmt, err := tx.Prepare(insert)
	if err != nil {
		return storageErr("failed to prepare insert", err)
	}
	defer stmt.Close()

	args := make([]any, len(cols)+2)
	for i, ts := range rec.Timestamps {
		args[0] = i
		args[1] = ts
		for c := range rec.Samples {
			args[c+2] = rec.Samples[c][i]
		}
		if _, err := stmt.Exec(args...); err != nil {
			return storageErr("failed to insert sample", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return storageErr("failed to commit recording", err)
	}
	return nil
}

func prefixEach(items []string, prefix string) string {
	var b strings.Builder
	for _, it := range items {
		b.WriteString(prefix + it)
	}
	return b.String()
}

func (d *dataDB) readRecording() (*common.Recording, error) {
	rows, err := d.db.Query("SELECT name FROM channels ORDER BY position")
	if err != nil {
		return nil, storageErr("failed to read channels", err)
	}
	var channels []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			rows.Close()
			return nil, storageErr("failed to scan channel", err)
		}
		channels = append(channels, name)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, storageErr("failed to read channels", err)
	}

	var count int
	if err := d.db.QueryRow("SELECT COUNT(*) FROM samples").Scan(&count); err != nil {
		return nil, storageErr("failed to count samples", err)
	}

	rec := &common.Recording{
		Timestamps: make([]float64, 0, count),
		Channels:   channels,
		Samples:    make(common.Samples, len(channels)),
	}
	for c := range rec.Samples {
		rec.Samples[c] = make([]float64, 0, count)
	}

	cols := make([]string, len(channels))
	for i, ch := range channels {
		cols[i] = quoteIdent(ch)
	}
	query := fmt.Sprintf("SELECT timestamp%s FROM samples ORDER BY idx", prefixEach(cols, ", "))

	sampleRows, err := d.db.Query(query)
	if err != nil {
		return nil, storageErr("failed to read samples", err)
	}
	defer sampleRows.Close()

	var ts float64
	values := make([]sql.NullFloat64, len(channels))
	dest := make([]any, len(values)+1)
	dest[0] = &ts
	for i := range values {
		dest[i+1] = &values[i]
	}
	for sampleRows.Next() {
		if err := sampleRows.Scan(dest...); err != nil {
			return nil, storageErr("failed to scan sample", err)
		}
		rec.Timestamps = append(rec.Timestamps, ts)
		for c, v := range values {
			if !v.Valid {
				v.Float64 = math.NaN()
			}
			rec.Samples[c] = append(rec.Samples[c], v.Float64)
		}
	}
	if err := sampleRows.Err(); err != nil {
		return nil, storageErr("failed to read samples", err)
	}
	return rec, nil
}

func (d *dataDB) writeMarkers(markers []common.Marker) error {
	tx, err := d.db.Begin()
	if err != nil {
		return storageErr("failed to begin transaction", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM markers"); err != nil {
		return storageErr("failed to clear markers", err)
	}
	for _, m := range markers {
		if _, err := tx.Exec("INSERT INTO markers (timestamp, label) VALUES (?, ?)", m.Timestamp, m.Label); err != nil {
			return storageErr("failed to insert marker", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return storageErr("failed to commit markers", err)
	}
	return nil
}

func (d *dataDB) readMarkers() ([]common.Marker, error) {
	rows, err := d.db.Query("SELECT timestamp, label FROM markers ORDER BY seq")
	if err != nil {
		return nil, storageErr("failed to read markers", err)
	}
	defer rows.Close()

	markers := []common.Marker{}
	for rows.Next() {
		var m common.Marker
		if err := rows.Scan(&m.Timestamp, &m.Label); err != nil {
			return nil, storageErr("failed to scan marker", err)
		}
		markers = append(markers, m)
	}
	return markers, rows.Err()
}
