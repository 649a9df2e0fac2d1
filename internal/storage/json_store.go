package storage

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	schemaVersion = "1.0"
	// DefaultLockTimeout bounds the wait for another process's history write.
	DefaultLockTimeout = 5 * time.Second
)

// JSONStore implements DownloadStore using a single JSON file.
//
// Several vidflow processes may share one history file. Every write takes
// the history lock, reloads the file, applies the change and writes it back
// atomically, so concurrent writers never lose each other's records. Reads
// reload the file without locking; atomic replacement keeps them consistent.
type JSONStore struct {
	path string
	// LockTimeout bounds each write's wait for the history lock.
	LockTimeout time.Duration

	mu   sync.Mutex
	data *storeData
}

// storeData is the top-level JSON structure.
type storeData struct {
	Version   string                     `json:"version"`
	UpdatedAt time.Time                  `json:"updated_at"`
	Downloads map[string]*DownloadRecord `json:"downloads"`
	Indexes   *indexes                   `json:"indexes"`
}

// indexes maintains lookup tables for efficient queries.
type indexes struct {
	TaskID map[string]string `json:"task_id"` // task_id -> record id
}

// NewJSONStore opens the JSON file store at the given path.
// If the file does not exist, an empty history is written.
func NewJSONStore(path string) (*JSONStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, &StorageError{Op: "open", Entity: "history", ID: path, Err: err}
	}

	s := &JSONStore{path: path, LockTimeout: DefaultLockTimeout}
	// An empty write creates the file and surfaces permission errors now.
	err := s.write(context.Background(), func(*storeData) (bool, error) {
		_, statErr := os.Stat(path)
		return errors.Is(statErr, os.ErrNotExist), nil
	})
	if err != nil {
		return nil, err
	}
	return s, nil
}

// write runs one locked read-modify-write cycle. fn reports whether it
// changed the data; unchanged data is not written back.
func (s *JSONStore) write(ctx context.Context, fn func(*storeData) (bool, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	lock, err := lockHistory(ctx, s.path, s.LockTimeout)
	if err != nil {
		return &StorageError{Op: "lock", Entity: "history", ID: s.path, Err: err}
	}
	defer lock.release()

	if err := s.load(); err != nil {
		return err
	}
	changed, err := fn(s.data)
	if err != nil || !changed {
		return err
	}
	return s.save()
}

// read reloads the file and runs fn over the current data.
func (s *JSONStore) read(fn func(*storeData) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.load(); err != nil {
		return err
	}
	return fn(s.data)
}

// load reads the JSON file into memory. A missing file is an empty history.
func (s *JSONStore) load() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			s.data = newStoreData()
			return nil
		}
		return &StorageError{Op: "read", Entity: "history", ID: s.path, Err: err}
	}

	s.data = &storeData{}
	if err := json.Unmarshal(data, s.data); err != nil {
		return &StorageError{Op: "read", Entity: "history", ID: s.path, Err: ErrStorageCorrupt}
	}

	if s.data.Downloads == nil {
		s.data.Downloads = make(map[string]*DownloadRecord)
	}
	if s.data.Indexes == nil || s.data.Indexes.TaskID == nil {
		s.reindex()
	}

	return nil
}

// reindex rebuilds the lookup tables from the records.
func (s *JSONStore) reindex() {
	s.data.Indexes = newIndexes()
	for id, rec := range s.data.Downloads {
		if rec.TaskID != "" {
			s.data.Indexes.TaskID[rec.TaskID] = id
		}
	}
}

// save persists the data to disk atomically.
func (s *JSONStore) save() error {
	s.data.UpdatedAt = time.Now()

	writer, err := NewAtomicWriter(s.path)
	if err != nil {
		return &StorageError{Op: "write", Entity: "history", ID: s.path, Err: err}
	}

	encoder := json.NewEncoder(writer)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(s.data); err != nil {
		writer.Abort()
		return &StorageError{Op: "write", Entity: "history", ID: s.path, Err: err}
	}

	if err := writer.Commit(); err != nil {
		return &StorageError{Op: "write", Entity: "history", ID: s.path, Err: err}
	}

	return nil
}

// Close implements DownloadStore. The store holds no lock or descriptor
// between calls.
func (s *JSONStore) Close() error {
	return nil
}

func newStoreData() *storeData {
	return &storeData{
		Version:   schemaVersion,
		UpdatedAt: time.Now(),
		Downloads: make(map[string]*DownloadRecord),
		Indexes:   newIndexes(),
	}
}

func newIndexes() *indexes {
	return &indexes{TaskID: make(map[string]string)}
}

// CreateDownload implements DownloadStore.
func (s *JSONStore) CreateDownload(ctx context.Context, rec *DownloadRecord) error {
	if rec == nil || rec.TaskID == "" {
		return &StorageError{Op: "create", Entity: "download", Err: ErrInvalidInput}
	}

	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	now := time.Now()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	rec.UpdatedAt = now

	return s.write(ctx, func(d *storeData) (bool, error) {
		if _, exists := d.Downloads[rec.ID]; exists {
			return false, &StorageError{Op: "create", Entity: "download", ID: rec.ID, Err: ErrAlreadyExists}
		}
		if _, exists := d.Indexes.TaskID[rec.TaskID]; exists {
			return false, &StorageError{Op: "create", Entity: "download", ID: rec.TaskID, Err: ErrAlreadyExists}
		}
		stored := *rec
		d.Downloads[rec.ID] = &stored
		d.Indexes.TaskID[rec.TaskID] = rec.ID
		return true, nil
	})
}

// GetDownload implements DownloadStore.
func (s *JSONStore) GetDownload(ctx context.Context, id string) (*DownloadRecord, error) {
	var out *DownloadRecord
	err := s.read(func(d *storeData) error {
		rec, exists := d.Downloads[id]
		if !exists {
			return &StorageError{Op: "read", Entity: "download", ID: id, Err: ErrNotFound}
		}
		cp := *rec
		out = &cp
		return nil
	})
	return out, err
}

// GetDownloadByTaskID implements DownloadStore.
func (s *JSONStore) GetDownloadByTaskID(ctx context.Context, taskID string) (*DownloadRecord, error) {
	var out *DownloadRecord
	err := s.read(func(d *storeData) error {
		id, exists := d.Indexes.TaskID[taskID]
		if !exists {
			return &StorageError{Op: "read", Entity: "download", ID: taskID, Err: ErrNotFound}
		}
		rec, exists := d.Downloads[id]
		if !exists {
			return &StorageError{Op: "read", Entity: "download", ID: id, Err: ErrStorageCorrupt}
		}
		cp := *rec
		out = &cp
		return nil
	})
	return out, err
}

// UpdateDownload implements DownloadStore.
func (s *JSONStore) UpdateDownload(ctx context.Context, rec *DownloadRecord) error {
	return s.write(ctx, func(d *storeData) (bool, error) {
		existing, exists := d.Downloads[rec.ID]
		if !exists {
			return false, &StorageError{Op: "update", Entity: "download", ID: rec.ID, Err: ErrNotFound}
		}

		if existing.TaskID != rec.TaskID {
			delete(d.Indexes.TaskID, existing.TaskID)
			d.Indexes.TaskID[rec.TaskID] = rec.ID
		}

		rec.CreatedAt = existing.CreatedAt
		rec.UpdatedAt = time.Now()
		stored := *rec
		d.Downloads[rec.ID] = &stored
		return true, nil
	})
}

// DeleteDownload implements DownloadStore.
func (s *JSONStore) DeleteDownload(ctx context.Context, id string) error {
	return s.write(ctx, func(d *storeData) (bool, error) {
		rec, exists := d.Downloads[id]
		if !exists {
			return false, &StorageError{Op: "delete", Entity: "download", ID: id, Err: ErrNotFound}
		}
		delete(d.Downloads, id)
		delete(d.Indexes.TaskID, rec.TaskID)
		return true, nil
	})
}

// ListDownloads implements DownloadStore.
func (s *JSONStore) ListDownloads(ctx context.Context) ([]*DownloadRecord, error) {
	var out []*DownloadRecord
	err := s.read(func(d *storeData) error {
		out = make([]*DownloadRecord, 0, len(d.Downloads))
		for _, rec := range d.Downloads {
			cp := *rec
			out = append(out, &cp)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// PruneDownloads implements DownloadStore.
func (s *JSONStore) PruneDownloads(ctx context.Context, before time.Time) (int, error) {
	removed := 0
	err := s.write(ctx, func(d *storeData) (bool, error) {
		for id, rec := range d.Downloads {
			if rec.CreatedAt.Before(before) {
				delete(d.Downloads, id)
				delete(d.Indexes.TaskID, rec.TaskID)
				removed++
			}
		}
		return removed > 0, nil
	})
	if err != nil {
		return 0, err
	}
	return removed, nil
}
