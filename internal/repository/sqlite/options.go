package sqlite

import (
	"net/url"
	"strconv"
	"strings"
)

// JournalMode mirrors SQLite's PRAGMA journal_mode values.
type JournalMode string

const (
	JournalWAL    JournalMode = "WAL"
	JournalDelete JournalMode = "DELETE"
)

// Options configures the SQLite connection, following the teacher's
// internal/database.SQLiteOptions shape trimmed to the settings this
// service actually needs (no OAuth-era authentication PRAGMAs).
type Options struct {
	Path        string
	Journal     JournalMode
	ForeignKeys bool
	BusyTimeout int // milliseconds
}

// DefaultOptions mirrors the teacher's NewDefaultOptions recommended
// defaults: WAL journaling, foreign keys on, a generous busy timeout.
func DefaultOptions(path string) Options {
	return Options{
		Path:        path,
		Journal:     JournalWAL,
		ForeignKeys: true,
		BusyTimeout: 5000,
	}
}

// connectionString builds a modernc.org/sqlite DSN from opts, the same
// URI-parameter approach as the teacher's buildConnectionString.
func (opts Options) connectionString() string {
	params := url.Values{}
	if opts.Journal != "" {
		params.Set("_journal_mode", string(opts.Journal))
	}
	if opts.ForeignKeys {
		params.Set("_foreign_keys", "true")
	}
	if opts.BusyTimeout > 0 {
		params.Set("_busy_timeout", strconv.Itoa(opts.BusyTimeout))
	}

	connStr := opts.Path
	if !strings.HasPrefix(connStr, "file:") {
		connStr = "file:" + connStr
	}
	if encoded := params.Encode(); encoded != "" {
		sep := "?"
		if strings.Contains(connStr, "?") {
			sep = "&"
		}
		connStr += sep + encoded
	}
	return connStr
}
