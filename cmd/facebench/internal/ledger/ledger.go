// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package ledger records the outcome of every benchmark invocation in an
// embedded BadgerDB, keyed by the invocation's output file.
//
// The run driver writes one record per invocation; the figure driver reads
// them back to tell a failed benchmark apart from a file that simply has no
// data.
//
// License: BadgerDB is Apache 2.0 licensed (github.com/dgraph-io/badger).
package ledger

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"time"

	"github.com/dgraph-io/badger/v4"
)

const keyPrefix = "run/"

var (
	// ErrNotFound is returned by Get for paths with no record.
	ErrNotFound = errors.New("no ledger record")

	// ErrPathRequired is returned by Open for a persistent ledger without a path.
	ErrPathRequired = errors.New("path is required for persistent ledger")
)

// Status is the outcome of an invocation.
type Status string

const (
	StatusOK     Status = "ok"
	StatusFailed Status = "failed"
)

// Record is one invocation outcome.
type Record struct {
	OutputPath  string        `json:"output_path"`
	RunID       string        `json:"run_id"`
	Method      string        `json:"method"`
	Table       string        `json:"table"`
	Dataset     string        `json:"dataset"`
	Label       string        `json:"label,omitempty"`
	CommandLine string        `json:"command_line"`
	OutputMode  string        `json:"output_mode"`
	Start       time.Time     `json:"start"`
	Duration    time.Duration `json:"duration"`
	ExitCode    int           `json:"exit_code"`
	Status      Status        `json:"status"`
	Error       string        `json:"error,omitempty"`

	// Attempts counts how many times this output path has been run.
	Attempts int `json:"attempts"`
}

// Config holds configuration for the ledger database.
type Config struct {
	// Path is the directory for BadgerDB files. Ignored when InMemory is true.
	Path string

	// InMemory keeps the ledger in RAM. Used by tests and dry runs.
	InMemory bool

	// SyncWrites makes every Put durable before returning.
	SyncWrites bool

	// ReadOnly opens an existing ledger for lookups only. Put fails.
	ReadOnly bool

	// Logger receives BadgerDB's own log lines. Nil disables them.
	Logger *slog.Logger

	// GCDiscardRatio is passed to one value-log GC pass on Close.
	GCDiscardRatio float64
}

// DefaultConfig returns a durable ledger at path.
func DefaultConfig(path string) Config {
	return Config{Path: path, SyncWrites: true, GCDiscardRatio: 0.5}
}

// ReadOnlyConfig opens the ledger at path for lookups.
func ReadOnlyConfig(path string) Config {
	return Config{Path: path, ReadOnly: true}
}

// InMemoryConfig returns configuration for tests.
func InMemoryConfig() Config {
	return Config{InMemory: true}
}

// badgerLogger adapts slog.Logger to BadgerDB's Logger interface. Badger's
// info chatter is demoted to debug.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

// Ledger is the run ledger. Safe for concurrent use.
type Ledger struct {
	db     *badger.DB
	cfg    Config
	logger *slog.Logger
}

// Open opens (creating if needed) the ledger.
func Open(cfg Config) (*Ledger, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, ErrPathRequired
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if cfg.ReadOnly {
			if _, err := os.Stat(cfg.Path); err != nil {
				return nil, fmt.Errorf("open ledger: %w", err)
			}
		} else if err := os.MkdirAll(cfg.Path, 0750); err != nil {
			return nil, fmt.Errorf("create ledger directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithSyncWrites(cfg.SyncWrites).WithNumVersionsToKeep(1)
	if cfg.ReadOnly && !cfg.InMemory {
		opts = opts.WithReadOnly(true)
	}
	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: cfg.Logger})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Ledger{db: db, cfg: cfg, logger: logger}, nil
}

// Put stores rec, carrying the attempt count forward from any earlier
// record for the same output path. It returns the stored record.
func (l *Ledger) Put(rec Record) (Record, error) {
	if rec.OutputPath == "" {
		return rec, errors.New("record has no output path")
	}
	key := []byte(keyPrefix + rec.OutputPath)

	err := l.db.Update(func(txn *badger.Txn) error {
		prev, err := getRecord(txn, key)
		switch {
		case errors.Is(err, ErrNotFound):
			rec.Attempts = 1
		case err != nil:
			return err
		default:
			rec.Attempts = prev.Attempts + 1
		}
		data, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("marshal record: %w", err)
		}
		return txn.Set(key, data)
	})
	if err != nil {
		return rec, fmt.Errorf("put %s: %w", rec.OutputPath, err)
	}
	return rec, nil
}

// Get returns the record for an output path or ErrNotFound.
func (l *Ledger) Get(outputPath string) (Record, error) {
	var rec Record
	err := l.db.View(func(txn *badger.Txn) error {
		var err error
		rec, err = getRecord(txn, []byte(keyPrefix+outputPath))
		return err
	})
	return rec, err
}

func getRecord(txn *badger.Txn, key []byte) (Record, error) {
	item, err := txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, err
	}
	data, err := item.ValueCopy(nil)
	if err != nil {
		return Record{}, err
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return Record{}, fmt.Errorf("decode record %s: %w", key, err)
	}
	return rec, nil
}

// List returns every record accepted by keep (nil keeps all), oldest
// start time first.
func (l *Ledger) List(keep func(Record) bool) ([]Record, error) {
	var out []Record
	prefix := []byte(keyPrefix)
	err := l.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			data, err := it.Item().ValueCopy(nil)
			if err != nil {
				return err
			}
			var rec Record
			if err := json.Unmarshal(data, &rec); err != nil {
				l.logger.Warn("skipping undecodable ledger record", "key", string(it.Item().Key()), "error", err)
				continue
			}
			if keep == nil || keep(rec) {
				out = append(out, rec)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list ledger: %w", err)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out, nil
}

// Failed is a List filter for failed invocations.
func Failed(rec Record) bool { return rec.Status == StatusFailed }

// Close runs one value-log GC pass on persistent ledgers and closes the DB.
func (l *Ledger) Close() error {
	if !l.cfg.InMemory && !l.cfg.ReadOnly && l.cfg.GCDiscardRatio > 0 {
		if err := l.db.RunValueLogGC(l.cfg.GCDiscardRatio); err != nil && !errors.Is(err, badger.ErrNoRewrite) {
			l.logger.Warn("ledger value log GC error", "error", err)
		}
	}
	return l.db.Close()
}
