// Package storage persists local client state: the download history and the
// access token.
package storage

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Sentinel errors for common storage conditions.
var (
	// ErrNotFound indicates the requested entity was not found.
	ErrNotFound = errors.New("storage: not found")
	// ErrAlreadyExists indicates the entity already exists in storage.
	ErrAlreadyExists = errors.New("storage: already exists")
	// ErrInvalidInput indicates invalid or malformed input was provided.
	ErrInvalidInput = errors.New("storage: invalid input")
	// ErrStorageCorrupt indicates data corruption was detected.
	ErrStorageCorrupt = errors.New("storage: data corruption detected")
	// ErrLockTimeout indicates a timeout acquiring a file lock.
	ErrLockTimeout = errors.New("storage: lock acquisition timeout")
)

// StorageError wraps storage errors with operation and entity context.
// Use errors.As() to extract this error type and get operation details:
//
//	var storErr *storage.StorageError
//	if errors.As(err, &storErr) {
//		fmt.Printf("Failed to %s %s %s: %v\n", storErr.Op, storErr.Entity, storErr.ID, storErr.Err)
//	}
type StorageError struct {
	// Op is the operation that failed ("create", "read", "update", "delete").
	Op string
	// Entity is the entity type ("download", "token", "store").
	Entity string
	// ID is the entity ID if applicable.
	ID string
	// Err is the underlying error that occurred.
	Err error
}

// Error returns a string representation of the storage error.
func (e *StorageError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("storage: %s %s %s: %v", e.Op, e.Entity, e.ID, e.Err)
	}
	return fmt.Sprintf("storage: %s %s: %v", e.Op, e.Entity, e.Err)
}

// Unwrap returns the underlying error for use with errors.Is() and errors.As().
func (e *StorageError) Unwrap() error { return e.Err }

// DownloadStore records submitted jobs and where their artifacts ended up.
// Implementations must be safe for concurrent use.
type DownloadStore interface {
	// CreateDownload saves a new record. An empty ID is assigned.
	CreateDownload(ctx context.Context, rec *DownloadRecord) error
	// GetDownload retrieves a record by its ID.
	GetDownload(ctx context.Context, id string) (*DownloadRecord, error)
	// GetDownloadByTaskID retrieves the record for a server task id.
	GetDownloadByTaskID(ctx context.Context, taskID string) (*DownloadRecord, error)
	// UpdateDownload replaces an existing record.
	UpdateDownload(ctx context.Context, rec *DownloadRecord) error
	// DeleteDownload removes a record.
	DeleteDownload(ctx context.Context, id string) error
	// ListDownloads returns records, newest first.
	ListDownloads(ctx context.Context) ([]*DownloadRecord, error)
	// PruneDownloads removes records created before the cutoff and returns how many.
	PruneDownloads(ctx context.Context, before time.Time) (int, error)

	// Close releases any resources held by the store.
	Close() error
}
