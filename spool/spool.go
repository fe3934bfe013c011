// Package spool implements the disk fallback for the flush worker: events
// that cannot be sent are written durably to local files and replayed once
// the connection recovers. The write-ahead-then-rename protocol mirrors the
// teacher's atomic-write discipline in the adapter layer, and the exact
// record shape and file-extension state machine are ported from
// mlrun.spool.DiskSpool.
package spool

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/justapithecus/qtrack/types"
)

// file is a single active in-memory accumulation buffer for one run,
// not yet flushed to disk.
type file struct {
	mu        sync.Mutex
	path      string
	runID     string
	events    []types.Event
	sizeBytes int64
	createdAt time.Time
}

func newFile(dir, runID string) *file {
	name := fmt.Sprintf("%s_%d_%s%s", runID, time.Now().UnixMilli(), uuid.NewString()[:8], extSpool)
	return &file{
		path:      filepath.Join(dir, name),
		runID:     runID,
		createdAt: time.Now(),
	}
}

func (f *file) append(e types.Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, e)
	b, _ := json.Marshal(e)
	f.sizeBytes += int64(len(b))
}

func (f *file) flush() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.events) == 0 {
		return nil
	}

	record := types.SpoolRecord{
		Version:   types.ContractVersion,
		RunID:     f.runID,
		CreatedAt: float64(f.createdAt.UnixNano()) / 1e9,
		Events:    f.events,
	}

	if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
		return fmt.Errorf("%w: mkdir: %v", ErrIOFailure, err)
	}

	tmpPath := f.path[:len(f.path)-len(extSpool)] + extPending
	tmp, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("%w: create temp file: %v", ErrIOFailure, err)
	}
	if err := json.NewEncoder(tmp).Encode(record); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("%w: encode: %v", ErrIOFailure, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("%w: close temp file: %v", ErrIOFailure, err)
	}

	if err := os.Rename(tmpPath, f.path); err != nil {
		return fmt.Errorf("%w: rename: %v", ErrIOFailure, err)
	}
	return nil
}

// Disk manages on-disk event spooling. Safe for concurrent use; the active
// file map is guarded by a single mutex, mirroring the teacher's
// proxy.Selector locking discipline.
type Disk struct {
	config Config

	mu           sync.Mutex
	active       map[string]*file // run_id -> active accumulation buffer
	pendingBytes int64

	totalSynced   int64
	lastSyncTime  time.Time
}

// New creates a Disk spool rooted at config.Dir.
func New(config Config) *Disk {
	return &Disk{
		config: config,
		active: make(map[string]*file),
	}
}

// Spool appends e to the active file for its run, flushing to disk once the
// file crosses MaxFileSizeBytes. Returns false (event dropped, no error
// propagated) if the spool is at its total size cap.
func (d *Disk) Spool(e types.Event) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.pendingBytes >= d.config.MaxTotalSizeBytes {
		return false
	}

	f, ok := d.active[e.RunID]
	if !ok {
		f = newFile(d.config.Dir, e.RunID)
		d.active[e.RunID] = f
	}
	f.append(e)

	if f.sizeBytes >= d.config.MaxFileSizeBytes {
		if err := f.flush(); err == nil {
			d.pendingBytes += f.sizeBytes
			d.indexAddLocked(f)
		}
		delete(d.active, e.RunID)
	}

	return true
}

// indexAddLocked records f in the recovery index. Called with d.mu held.
// Index write failures are logged-worthy but never block the spool path;
// Recover falls back to a directory scan whenever the index is stale.
func (d *Disk) indexAddLocked(f *file) {
	entries := loadIndex(d.config.Dir)
	entries = append(entries, indexEntry{Path: f.path, RunID: f.runID, EventCount: len(f.events)})
	_ = saveIndex(d.config.Dir, entries)
}

// indexRemove drops path from the recovery index after a successful sync.
func (d *Disk) indexRemove(path string) {
	entries := loadIndex(d.config.Dir)
	if entries == nil {
		return
	}
	kept := entries[:0]
	for _, e := range entries {
		if e.Path != path {
			kept = append(kept, e)
		}
	}
	_ = saveIndex(d.config.Dir, kept)
}

// FlushAll flushes every active in-memory file to disk, regardless of size.
// Called on worker shutdown so no buffered event is lost to process exit.
func (d *Disk) FlushAll() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	var firstErr error
	for runID, f := range d.active {
		if err := f.flush(); err != nil {
			if firstErr == nil {
				firstErr = err
			}
		} else {
			d.indexAddLocked(f)
		}
		delete(d.active, runID)
	}
	return firstErr
}

// PendingFiles returns the paths of durable .spool files, oldest (by mtime)
// first.
func (d *Disk) PendingFiles() ([]string, error) {
	return d.filesWithExt(extSpool)
}

func (d *Disk) filesWithExt(ext string) ([]string, error) {
	entries, err := os.ReadDir(d.config.Dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("spool: read dir: %w", err)
	}

	type stamped struct {
		path  string
		mtime time.Time
	}
	var found []stamped
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ext {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		found = append(found, stamped{path: filepath.Join(d.config.Dir, entry.Name()), mtime: info.ModTime()})
	}
	sort.Slice(found, func(i, j int) bool { return found[i].mtime.Before(found[j].mtime) })

	paths := make([]string, len(found))
	for i, s := range found {
		paths[i] = s.path
	}
	return paths, nil
}

// ReadFile reads and parses the events recorded in a .spool file.
func (d *Disk) ReadFile(path string) ([]types.Event, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("spool: read %s: %w", path, err)
	}

	var record types.SpoolRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("spool: parse %s: %w", path, err)
	}
	return record.Events, nil
}

// MarkSynced renames a .spool file to .done after a successful upload.
func (d *Disk) MarkSynced(path string) error {
	donePath := path[:len(path)-len(extSpool)] + extDone
	if err := os.Rename(path, donePath); err != nil {
		return fmt.Errorf("spool: mark synced %s: %w", path, err)
	}

	d.mu.Lock()
	d.totalSynced++
	d.lastSyncTime = time.Now()
	d.mu.Unlock()

	d.indexRemove(path)
	return nil
}

// CleanupOldFiles deletes .done files older than RetentionHours, returning
// the count removed.
func (d *Disk) CleanupOldFiles() (int, error) {
	done, err := d.filesWithExt(extDone)
	if err != nil {
		return 0, err
	}

	cutoff := time.Now().Add(-time.Duration(d.config.RetentionHours) * time.Hour)
	cleaned := 0
	for _, path := range done {
		info, err := os.Stat(path)
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			if err := os.Remove(path); err == nil {
				cleaned++
			}
		}
	}
	return cleaned, nil
}

// Recover enumerates durable .spool files present on startup and returns
// their count. Stray .pending files from an interrupted write are left
// alone; they never achieved the atomic rename and are simply ignored by
// every other spool operation, which only look for .spool/.done suffixes.
//
// It consults the msgpack recovery index first to avoid re-parsing every
// .spool file's JSON body; if the index is missing, stale (entry count
// disagrees with what's actually on disk), or corrupt, it rebuilds the
// index from a full directory scan.
func (d *Disk) Recover() (int, error) {
	pending, err := d.PendingFiles()
	if err != nil {
		return 0, err
	}

	if entries := loadIndex(d.config.Dir); entries != nil && len(entries) == len(pending) {
		return len(entries), nil
	}

	entries := make([]indexEntry, 0, len(pending))
	for _, path := range pending {
		events, err := d.ReadFile(path)
		if err != nil {
			continue
		}
		runID := ""
		if len(events) > 0 {
			runID = events[0].RunID
		}
		entries = append(entries, indexEntry{Path: path, RunID: runID, EventCount: len(events)})
	}
	_ = saveIndex(d.config.Dir, entries)

	return len(pending), nil
}

// Stats describes the spool's current on-disk footprint.
type Stats struct {
	PendingFiles  int
	PendingEvents int
	PendingBytes  int64
	DoneFiles     int
	TotalSynced   int64
	LastSyncTime  time.Time
}

// Stats recomputes spool statistics from disk state.
func (d *Disk) Stats() Stats {
	pending, _ := d.PendingFiles()
	done, _ := d.filesWithExt(extDone)

	var bytes int64
	var events int
	for _, p := range pending {
		info, err := os.Stat(p)
		if err != nil {
			continue
		}
		bytes += info.Size()
		if evs, err := d.ReadFile(p); err == nil {
			events += len(evs)
		}
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	return Stats{
		PendingFiles:  len(pending),
		PendingEvents: events,
		PendingBytes:  bytes,
		DoneFiles:     len(done),
		TotalSynced:   d.totalSynced,
		LastSyncTime:  d.lastSyncTime,
	}
}
