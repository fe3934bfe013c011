package spool

import (
	"os"
	"path/filepath"

	"github.com/vmihailenco/msgpack/v5"
)

const indexFileName = ".index.msgpack"

// indexEntry records a pending spool file's identity without requiring its
// JSON body to be re-parsed, so Recover can report counts cheaply once the
// index is warm.
type indexEntry struct {
	Path       string `msgpack:"path"`
	RunID      string `msgpack:"run_id"`
	EventCount int    `msgpack:"event_count"`
}

func indexPath(dir string) string {
	return filepath.Join(dir, indexFileName)
}

// loadIndex reads the recovery index. A missing or corrupt index is not an
// error: the caller falls back to a directory scan.
func loadIndex(dir string) []indexEntry {
	data, err := os.ReadFile(indexPath(dir))
	if err != nil {
		return nil
	}
	var entries []indexEntry
	if err := msgpack.Unmarshal(data, &entries); err != nil {
		return nil
	}
	return entries
}

// saveIndex persists the recovery index via temp-file-then-rename, the same
// durability discipline as a spool record, so a crash mid-write never
// corrupts the previously saved index.
func saveIndex(dir string, entries []indexEntry) error {
	data, err := msgpack.Marshal(entries)
	if err != nil {
		return err
	}

	tmp := indexPath(dir) + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, indexPath(dir))
}
