package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/sweetshop/apiserver/config"
	"github.com/sweetshop/apiserver/types"
)

const (
	snapshotPrefix      = "catalog/"
	snapshotContentType = "application/json"
)

// ErrObjectNotFound is returned by Get when the key does not exist.
var ErrObjectNotFound = errors.New("object not found")

// ObjectStorage defines common object operations across backends.
type ObjectStorage interface {
	EnsureBucket(ctx context.Context) error
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
	Bucket() string
	Close() error
}

// Storage wraps an ObjectStorage backend with catalog snapshot helpers.
type Storage struct {
	backend ObjectStorage
}

// NewStorage constructs a Storage wrapper for the provided backend.
func NewStorage(backend ObjectStorage) *Storage {
	return &Storage{backend: backend}
}

// Open connects the backend named by cfg.Backend.
func Open(ctx context.Context, cfg config.StorageConfig) (*Storage, error) {
	var (
		backend ObjectStorage
		err     error
	)
	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case "", "minio":
		backend, err = NewMinioClient(cfg.Minio)
	case "gcs":
		backend, err = NewGCSClient(ctx, cfg.GCS)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
	if err != nil {
		return nil, err
	}
	return NewStorage(backend), nil
}

// Snapshot is the stored form of a catalog export.
type Snapshot struct {
	TakenAt time.Time     `json:"taken_at"`
	Count   int           `json:"count"`
	Sweets  []types.Sweet `json:"sweets"`
}

// SnapshotKey returns the object key for a snapshot taken at t.
func SnapshotKey(t time.Time) string {
	return snapshotPrefix + "snapshot-" + t.UTC().Format(time.RFC3339) + ".json"
}

// WriteSnapshot uploads sweets as a JSON snapshot and returns its key.
func (s *Storage) WriteSnapshot(ctx context.Context, sweets []types.Sweet, takenAt time.Time) (string, error) {
	if sweets == nil {
		sweets = []types.Sweet{}
	}
	data, err := json.MarshalIndent(Snapshot{
		TakenAt: takenAt.UTC(),
		Count:   len(sweets),
		Sweets:  sweets,
	}, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode snapshot: %w", err)
	}

	if err := s.backend.EnsureBucket(ctx); err != nil {
		return "", fmt.Errorf("ensure bucket %s: %w", s.backend.Bucket(), err)
	}

	key := SnapshotKey(takenAt)
	if err := s.backend.Put(ctx, key, bytes.NewReader(data), int64(len(data)), snapshotContentType); err != nil {
		return "", fmt.Errorf("upload snapshot %s: %w", key, err)
	}
	return key, nil
}

// ReadSnapshot downloads and decodes the snapshot stored under key.
func (s *Storage) ReadSnapshot(ctx context.Context, key string) (Snapshot, error) {
	rc, err := s.backend.Get(ctx, key)
	if err != nil {
		return Snapshot{}, err
	}
	defer rc.Close()

	var snapshot Snapshot
	if err := json.NewDecoder(rc).Decode(&snapshot); err != nil {
		return Snapshot{}, fmt.Errorf("decode snapshot %s: %w", key, err)
	}
	return snapshot, nil
}

// VerifySnapshot reads key back and checks that it holds want sweets. A
// snapshot that does not read back intact is removed.
func (s *Storage) VerifySnapshot(ctx context.Context, key string, want int) error {
	snapshot, err := s.ReadSnapshot(ctx, key)
	if err == nil && (snapshot.Count != want || len(snapshot.Sweets) != want) {
		err = fmt.Errorf("snapshot %s holds %d sweets, expected %d", key, len(snapshot.Sweets), want)
	}
	if err == nil {
		return nil
	}

	if delErr := s.Delete(ctx, key); delErr != nil {
		return errors.Join(err, fmt.Errorf("remove snapshot %s: %w", key, delErr))
	}
	return err
}

// Delete removes an object from the configured bucket.
func (s *Storage) Delete(ctx context.Context, key string) error {
	return s.backend.Delete(ctx, key)
}

// Bucket returns the configured bucket name.
func (s *Storage) Bucket() string {
	return s.backend.Bucket()
}

func (s *Storage) Close() error {
	return s.backend.Close()
}
