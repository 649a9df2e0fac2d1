//go:build integration

package storage

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
)

// TestPersistenceAcrossRestarts tests that history persists when the store is closed and reopened.
func TestPersistenceAcrossRestarts(t *testing.T) {
	path := filepath.Join(t.TempDir(), "persist.json")
	ctx := context.Background()

	store, err := NewJSONStore(path)
	if err != nil {
		t.Fatalf("NewJSONStore() error = %v", err)
	}
	rec := &DownloadRecord{TaskID: "persist-1", Kind: "audio", State: "SUCCESS", Progress: 100}
	if err := store.CreateDownload(ctx, rec); err != nil {
		t.Fatalf("CreateDownload() error = %v", err)
	}
	store.Close()

	store2, err := NewJSONStore(path)
	if err != nil {
		t.Fatalf("NewJSONStore() reopen error = %v", err)
	}
	defer store2.Close()

	got, err := store2.GetDownloadByTaskID(ctx, "persist-1")
	if err != nil {
		t.Fatalf("GetDownloadByTaskID() error = %v", err)
	}
	if got.ID != rec.ID || got.Kind != "audio" {
		t.Errorf("reloaded record = %+v, want ID %q kind audio", got, rec.ID)
	}
}

// TestStoresShareFile tests that two stores on one history file see each other's writes.
func TestStoresShareFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shared.json")
	ctx := context.Background()

	first, err := NewJSONStore(path)
	if err != nil {
		t.Fatalf("NewJSONStore() error = %v", err)
	}
	defer first.Close()
	second, err := NewJSONStore(path)
	if err != nil {
		t.Fatalf("second NewJSONStore() error = %v", err)
	}
	defer second.Close()

	if err := first.CreateDownload(ctx, &DownloadRecord{TaskID: "from-first"}); err != nil {
		t.Fatalf("CreateDownload() error = %v", err)
	}
	if err := second.CreateDownload(ctx, &DownloadRecord{TaskID: "from-second"}); err != nil {
		t.Fatalf("CreateDownload() error = %v", err)
	}
	if err := second.CreateDownload(ctx, &DownloadRecord{TaskID: "from-first"}); !errors.Is(err, ErrAlreadyExists) {
		t.Errorf("duplicate across stores error = %v, want ErrAlreadyExists", err)
	}

	list, err := first.ListDownloads(ctx)
	if err != nil {
		t.Fatalf("ListDownloads() error = %v", err)
	}
	if len(list) != 2 {
		t.Errorf("ListDownloads() len = %d, want 2", len(list))
	}
}

// TestConcurrentCreates tests that concurrent writers do not lose records.
func TestConcurrentCreates(t *testing.T) {
	store := newTestStore(t)
	defer store.Close()
	ctx := context.Background()

	const n = 20
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			rec := &DownloadRecord{TaskID: filepath.Join("task", string(rune('A'+i)))}
			if err := store.CreateDownload(ctx, rec); err != nil {
				t.Errorf("CreateDownload(%d) error = %v", i, err)
			}
		}(i)
	}
	wg.Wait()

	list, err := store.ListDownloads(ctx)
	if err != nil {
		t.Fatalf("ListDownloads() error = %v", err)
	}
	if len(list) != n {
		t.Errorf("ListDownloads() len = %d, want %d", len(list), n)
	}
}
