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
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	graphbadger "github.com/AleutianAI/AleutianGraph/services/graph/storage/badger"
)

// fakeBlobBackend is an in-memory object store with if-absent semantics.
type fakeBlobBackend struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newFakeBlobBackend() *fakeBlobBackend {
	return &fakeBlobBackend{objects: make(map[string][]byte)}
}

func (b *fakeBlobBackend) put(_ context.Context, key string, data []byte, ifAbsent bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.objects[key]; ok && ifAbsent {
		return errBlobExists
	}
	b.objects[key] = cloneBytes(data)
	return nil
}

func (b *fakeBlobBackend) get(_ context.Context, key string) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	data, ok := b.objects[key]
	if !ok {
		return nil, errBlobNotFound
	}
	return cloneBytes(data), nil
}

func (b *fakeBlobBackend) exists(_ context.Context, key string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.objects[key]
	return ok, nil
}

func (b *fakeBlobBackend) delete(_ context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.objects, key)
	return nil
}

func (b *fakeBlobBackend) close() error { return nil }

func (b *fakeBlobBackend) keys() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, 0, len(b.objects))
	for k := range b.objects {
		out = append(out, k)
	}
	return out
}

type storeFactory struct {
	name string
	open func(t *testing.T) Store
}

func storeFactories() []storeFactory {
	return []storeFactory{
		{"memory", func(t *testing.T) Store { return NewMemoryStore() }},
		{"local", func(t *testing.T) Store {
			s, err := NewLocalStore(t.TempDir(), nil)
			require.NoError(t, err)
			return s
		}},
		{"badger", func(t *testing.T) Store {
			s, err := OpenBadgerStore(graphbadger.InMemoryConfig(), nil)
			require.NoError(t, err)
			return s
		}},
		{"blob", func(t *testing.T) Store {
			return newBlobStore("fake", newFakeBlobBackend(), "resources", nil)
		}},
	}
}

func forEachStore(t *testing.T, fn func(t *testing.T, s Store)) {
	for _, f := range storeFactories() {
		t.Run(f.name, func(t *testing.T) {
			s := f.open(t)
			t.Cleanup(func() { _ = s.Close() })
			fn(t, s)
		})
	}
}

func TestStore_RoundTrip(t *testing.T) {
	payloads := map[string][]byte{
		"empty":  {},
		"small":  []byte("hello"),
		"binary": {0x00, 0xff, 0x10, 0x00},
		"large":  []byte(strings.Repeat("abc", 100_000)),
	}

	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		for name, data := range payloads {
			fp := Fingerprint("fp-" + name)
			res, err := WriteBytes(ctx, s, fp, data)
			require.NoError(t, err, name)
			assert.Equal(t, fp, res.Fingerprint)

			got, err := ReadBytes(ctx, s, res)
			require.NoError(t, err, name)
			assert.Equal(t, len(data), len(got), name)
			assert.Equal(t, string(data), string(got), name)
		}
	})
}

func TestStore_DirectoryArtifact(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		a := NewArtifact()
		require.NoError(t, a.Set("model.json", []byte(`{"w":1}`)))
		require.NoError(t, a.Set("vocab/tokens.txt", []byte("a\nb\n")))
		require.NoError(t, a.Set("vocab/empty", nil))

		res, err := WriteArtifact(ctx, s, "dir-artifact", a)
		require.NoError(t, err)

		got, err := s.Read(ctx, res)
		require.NoError(t, err)
		assert.Equal(t, []string{"model.json", "vocab/empty", "vocab/tokens.txt"}, got.Names())
		data, ok := got.Get("vocab/tokens.txt")
		require.True(t, ok)
		assert.Equal(t, "a\nb\n", string(data))
	})
}

func TestStore_ReadUnwritten(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		fp := Fingerprint("never-written")

		_, err := s.Read(ctx, Resource{Fingerprint: fp})
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrResourceNotFound))

		var nf *ResourceNotFoundError
		require.True(t, errors.As(err, &nf))
		assert.Equal(t, fp, nf.Fingerprint)

		exists, err := s.Exists(ctx, fp)
		require.NoError(t, err)
		assert.False(t, exists, "a failed read must not create the resource")
	})
}

func TestStore_Exists(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		exists, err := s.Exists(ctx, "present")
		require.NoError(t, err)
		assert.False(t, exists)

		_, err = WriteBytes(ctx, s, "present", []byte("x"))
		require.NoError(t, err)

		exists, err = s.Exists(ctx, "present")
		require.NoError(t, err)
		assert.True(t, exists)
	})
}

func TestStore_AbortLeavesNothing(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		boom := errors.New("boom")

		_, err := Write(ctx, s, "aborted", func(w Writer) error {
			require.NoError(t, w.Put("partial", []byte("half")))
			return boom
		})
		assert.ErrorIs(t, err, boom)

		exists, err := s.Exists(ctx, "aborted")
		require.NoError(t, err)
		assert.False(t, exists)
	})
}

func TestStore_PanicAborts(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()

		assert.PanicsWithValue(t, "kaboom", func() {
			_, _ = Write(ctx, s, "panicked", func(w Writer) error {
				_ = w.Put("partial", []byte("half"))
				panic("kaboom")
			})
		})

		exists, err := s.Exists(ctx, "panicked")
		require.NoError(t, err)
		assert.False(t, exists)
	})
}

func TestStore_FirstCommitWins(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()

		first, err := s.Begin(ctx, "shared")
		require.NoError(t, err)
		second, err := s.Begin(ctx, "shared")
		require.NoError(t, err)

		require.NoError(t, first.Put(DataEntry, []byte("first")))
		require.NoError(t, second.Put(DataEntry, []byte("second")))

		r1, err := first.Commit()
		require.NoError(t, err)
		r2, err := second.Commit()
		require.NoError(t, err)
		assert.Equal(t, r1, r2)

		got, err := ReadBytes(ctx, s, r1)
		require.NoError(t, err)
		assert.Equal(t, "first", string(got))
	})
}

func TestStore_ConcurrentWriters(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		const writers = 8

		var wg sync.WaitGroup
		errs := make(chan error, writers)
		for i := 0; i < writers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := WriteBytes(ctx, s, "contended", []byte("same content"))
				errs <- err
			}()
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			assert.NoError(t, err)
		}

		got, err := ReadBytes(ctx, s, Resource{Fingerprint: "contended"})
		require.NoError(t, err)
		assert.Equal(t, "same content", string(got))
	})
}

func TestStore_WriterClosed(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		w, err := s.Begin(context.Background(), "closed")
		require.NoError(t, err)
		require.NoError(t, w.Abort())

		assert.ErrorIs(t, w.Put("x", nil), ErrWriterClosed)
		_, err = w.Commit()
		assert.ErrorIs(t, err, ErrWriterClosed)
		assert.NoError(t, w.Abort())
	})
}

func TestStore_EmptyFingerprint(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		_, err := s.Begin(ctx, "")
		assert.ErrorIs(t, err, ErrInvalidFingerprint)
		_, err = s.Exists(ctx, "")
		assert.ErrorIs(t, err, ErrInvalidFingerprint)
		_, err = s.Read(ctx, Resource{})
		assert.ErrorIs(t, err, ErrInvalidFingerprint)
	})
}

func TestStore_ArbitraryFingerprintRoundTrip(t *testing.T) {
	fingerprints := []Fingerprint{
		"sha256:abc",
		"model.v2",
		"ns/fp",
		"../escape",
		`back\slash`,
		"has space",
		"ünïcode",
		Fingerprint(strings.Repeat("a", 129)),
		Fingerprint(strings.Repeat("x/", 300)),
	}
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		for i, fp := range fingerprints {
			payload := []byte(fmt.Sprintf("payload-%d", i))
			res, err := WriteBytes(ctx, s, fp, payload)
			require.NoError(t, err, string(fp))
			assert.Equal(t, fp, res.Fingerprint)

			ok, err := s.Exists(ctx, fp)
			require.NoError(t, err)
			assert.True(t, ok, string(fp))

			got, err := ReadBytes(ctx, s, res)
			require.NoError(t, err, string(fp))
			assert.Equal(t, payload, got, string(fp))
		}

		// Fingerprints that differ only in characters a path would
		// normalize away stay distinct.
		ok, err := s.Exists(ctx, "ns/fp/")
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestFingerprint_Key(t *testing.T) {
	a, b := Fingerprint("ns/fp").Key(), Fingerprint("ns_fp").Key()
	assert.Len(t, a, 64)
	assert.NotEqual(t, a, b)
	assert.Equal(t, a, Fingerprint("ns/fp").Key())
}

func TestValidateEntryName(t *testing.T) {
	valid := []string{"data", "a/b", "vocab/tokens.txt"}
	invalid := []string{"", "/abs", "a/../b", "..", "./a", "a//b", `a\b`, "a/"}

	for _, name := range valid {
		assert.NoError(t, ValidateEntryName(name), name)
	}
	for _, name := range invalid {
		assert.ErrorIs(t, ValidateEntryName(name), ErrInvalidEntryName, name)
	}
}

func TestArtifact_DirRoundTrip(t *testing.T) {
	src := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(src, "sub"), 0750))
	require.NoError(t, os.WriteFile(filepath.Join(src, "top.bin"), []byte{1, 2, 3}, 0640))
	require.NoError(t, os.WriteFile(filepath.Join(src, "sub", "inner.txt"), []byte("inner"), 0640))

	a, err := ArtifactFromDir(src)
	require.NoError(t, err)
	assert.Equal(t, []string{"sub/inner.txt", "top.bin"}, a.Names())
	assert.Equal(t, int64(8), a.Size())

	dst := t.TempDir()
	require.NoError(t, a.WriteDir(dst))
	data, err := os.ReadFile(filepath.Join(dst, "sub", "inner.txt"))
	require.NoError(t, err)
	assert.Equal(t, "inner", string(data))
}

func TestLocalStore_CorruptEntryDetected(t *testing.T) {
	root := t.TempDir()
	s, err := NewLocalStore(root, nil)
	require.NoError(t, err)
	ctx := context.Background()

	res, err := WriteBytes(ctx, s, "abcdef", []byte("original"))
	require.NoError(t, err)

	key := Fingerprint("abcdef").Key()
	entry := filepath.Join(root, key[:2], key, entriesDirName, DataEntry)
	require.NoError(t, os.WriteFile(entry, []byte("tampered"), 0640))

	_, err = s.Read(ctx, res)
	assert.ErrorIs(t, err, ErrCorruptArtifact)
}

func TestLocalStore_AbortRemovesStaging(t *testing.T) {
	root := t.TempDir()
	s, err := NewLocalStore(root, nil)
	require.NoError(t, err)

	w, err := s.Begin(context.Background(), "staged")
	require.NoError(t, err)
	require.NoError(t, w.Put(DataEntry, []byte("x")))
	require.NoError(t, w.Abort())

	entries, err := os.ReadDir(filepath.Join(root, stagingDirName))
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestBlobStore_LosingWriterCleansUp(t *testing.T) {
	backend := newFakeBlobBackend()
	s := newBlobStore("fake", backend, "p", nil)
	ctx := context.Background()

	_, err := WriteBytes(ctx, s, "fp1", []byte("a"))
	require.NoError(t, err)
	_, err = WriteBytes(ctx, s, "fp1", []byte("a"))
	require.NoError(t, err)

	// One index plus the winner's single entry.
	keys := backend.keys()
	assert.Len(t, keys, 2)
	assert.Contains(t, keys, "p/"+Fingerprint("fp1").Key()+"/index.json")
}

func TestInstrumented_Counts(t *testing.T) {
	s := NewInstrumented(NewMemoryStore())
	ctx := context.Background()

	_, err := WriteBytes(ctx, s, "counted", []byte("v"))
	require.NoError(t, err)
	_, err = s.Read(ctx, Resource{Fingerprint: "counted"})
	require.NoError(t, err)
	_, err = s.Read(ctx, Resource{Fingerprint: "missing"})
	require.ErrorIs(t, err, ErrResourceNotFound)
	_, err = Write(ctx, s, "failed", func(Writer) error { return errors.New("no") })
	require.Error(t, err)

	stats := s.Stats()
	assert.Equal(t, int64(1), stats.Writes)
	assert.Equal(t, int64(1), stats.Reads)
	assert.Equal(t, int64(1), stats.Aborts)

	s.Reset()
	assert.Equal(t, Stats{}, s.Stats())
}

func TestOpen_UnknownBackend(t *testing.T) {
	_, err := Open(context.Background(), Config{Backend: "tape"}, nil)
	assert.ErrorIs(t, err, ErrUnknownBackend)
}

func TestOpen_Local(t *testing.T) {
	s, err := Open(context.Background(), Config{Backend: BackendLocal, Path: t.TempDir()}, nil)
	require.NoError(t, err)
	defer s.Close()
	_, ok := s.(*LocalStore)
	assert.True(t, ok)
}
