// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dgraph-io/badger/v4"

	graphbadger "github.com/AleutianAI/AleutianGraph/services/graph/storage/badger"
)

// Key layout:
//
//	resource/{key}/index         -> JSON index
//	resource/{key}/entry/{name}  -> entry bytes
//
// where key is Fingerprint.Key.
const badgerKeyPrefix = "resource/"

func badgerIndexKey(fp Fingerprint) []byte {
	return []byte(badgerKeyPrefix + fp.Key() + "/index")
}

func badgerEntryKey(fp Fingerprint, name string) []byte {
	return []byte(badgerKeyPrefix + fp.Key() + "/entry/" + name)
}

// BadgerStore keeps artifacts in an embedded BadgerDB. Each artifact is
// written in a single transaction, so the index and its entries appear
// together or not at all.
type BadgerStore struct {
	db     *graphbadger.DB
	owned  bool
	logger *slog.Logger
}

// OpenBadgerStore opens a database with cfg and wraps it. The store owns
// the database and closes it on Close.
func OpenBadgerStore(cfg graphbadger.Config, logger *slog.Logger) (*BadgerStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Logger == nil {
		cfg.Logger = logger
	}
	db, err := graphbadger.Open(cfg)
	if err != nil {
		return nil, err
	}
	return &BadgerStore{db: db, owned: true, logger: logger}, nil
}

// NewBadgerStore wraps an already open database. The caller keeps
// ownership and must close it.
func NewBadgerStore(db *graphbadger.DB, logger *slog.Logger) *BadgerStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &BadgerStore{db: db, logger: logger}
}

// Exists reports whether fp has a committed index.
func (s *BadgerStore) Exists(ctx context.Context, fp Fingerprint) (bool, error) {
	if err := fp.Validate(); err != nil {
		return false, err
	}
	found := false
	err := s.db.View(ctx, func(txn *badger.Txn) error {
		_, err := txn.Get(badgerIndexKey(fp))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("check resource %s: %w", fp, err)
	}
	return found, nil
}

// Begin returns a buffered writer that commits in one transaction.
func (s *BadgerStore) Begin(ctx context.Context, fp Fingerprint) (Writer, error) {
	if err := fp.Validate(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return newStagedWriter(fp, func(a *Artifact) (Resource, error) {
		return s.commit(ctx, fp, a)
	}, nil), nil
}

func (s *BadgerStore) commit(ctx context.Context, fp Fingerprint, a *Artifact) (Resource, error) {
	res := Resource{Fingerprint: fp}
	raw, err := json.Marshal(newIndex(fp, "", a))
	if err != nil {
		return Resource{}, fmt.Errorf("marshal index: %w", err)
	}

	err = s.db.Update(context.WithoutCancel(ctx), func(txn *badger.Txn) error {
		// Reading the index puts it in the read set, so a concurrent commit
		// of the same fingerprint fails this transaction with ErrConflict.
		if _, err := txn.Get(badgerIndexKey(fp)); err == nil {
			return errAlreadyCommitted
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		for _, name := range a.Names() {
			if err := txn.Set(badgerEntryKey(fp, name), a.entries[name]); err != nil {
				return err
			}
		}
		return txn.Set(badgerIndexKey(fp), raw)
	})

	switch {
	case err == nil:
		return res, nil
	case errors.Is(err, errAlreadyCommitted):
		return res, nil
	case errors.Is(err, badger.ErrConflict):
		if exists, existsErr := s.Exists(context.WithoutCancel(ctx), fp); existsErr == nil && exists {
			s.logger.Debug("resource already committed by another writer",
				slog.String("fingerprint", string(fp)),
			)
			return res, nil
		}
		return Resource{}, fmt.Errorf("commit resource %s: %w", fp, err)
	default:
		return Resource{}, fmt.Errorf("commit resource %s: %w", fp, err)
	}
}

var errAlreadyCommitted = errors.New("resource already committed")

// Read loads and verifies the artifact for r within one read transaction.
func (s *BadgerStore) Read(ctx context.Context, r Resource) (*Artifact, error) {
	fp := r.Fingerprint
	if err := fp.Validate(); err != nil {
		return nil, err
	}
	a := NewArtifact()
	err := s.db.View(ctx, func(txn *badger.Txn) error {
		item, err := txn.Get(badgerIndexKey(fp))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return notFound(fp)
		}
		if err != nil {
			return err
		}
		var idx index
		if err := item.Value(func(val []byte) error {
			return json.Unmarshal(val, &idx)
		}); err != nil {
			return fmt.Errorf("%w: index for %s: %v", ErrCorruptArtifact, fp, err)
		}

		for _, entry := range idx.Entries {
			item, err := txn.Get(badgerEntryKey(fp, entry.Name))
			if err != nil {
				return fmt.Errorf("%w: entry %q of %s: %v", ErrCorruptArtifact, entry.Name, fp, err)
			}
			data, err := item.ValueCopy(nil)
			if err != nil {
				return fmt.Errorf("copy entry %q: %w", entry.Name, err)
			}
			if data == nil {
				data = []byte{}
			}
			if err := entry.verify(data); err != nil {
				return err
			}
			a.entries[entry.Name] = data
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return a, nil
}

// Close closes the database if the store opened it.
func (s *BadgerStore) Close() error {
	if !s.owned {
		return nil
	}
	return s.db.Close()
}
