package ledger

import (
	"context"
	"errors"
	"fmt"
	"os"

	"greenhouse/internal/fileutil"

	"github.com/go-redis/redis/v8"
)

// ErrNotFound is returned by a DocumentStore that has no document yet
var ErrNotFound = errors.New("history document not found")

// DocumentStore persists the whole history document as one blob
type DocumentStore interface {
	Load() ([]byte, error)
	Save(data []byte) error
}

// FileStore keeps the document in a JSON file, replaced atomically on every save
type FileStore struct {
	path string
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (fs *FileStore) Load() ([]byte, error) {
	data, err := os.ReadFile(fs.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", fs.path, err)
	}
	return data, nil
}

func (fs *FileStore) Save(data []byte) error {
	return fileutil.WriteAtomic(fs.path, data, 0o644)
}

// RedisDocumentStore keeps the document under a single Redis key
type RedisDocumentStore struct {
	client *redis.Client
	key    string
}

func NewRedisDocumentStore(client *redis.Client, key string) *RedisDocumentStore {
	return &RedisDocumentStore{client: client, key: key}
}

func (rs *RedisDocumentStore) Load() ([]byte, error) {
	data, err := rs.client.Get(context.Background(), rs.key).Bytes()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s from redis: %w", rs.key, err)
	}
	return data, nil
}

func (rs *RedisDocumentStore) Save(data []byte) error {
	if err := rs.client.Set(context.Background(), rs.key, data, 0).Err(); err != nil {
		return fmt.Errorf("failed to write %s to redis: %w", rs.key, err)
	}
	return nil
}

// MemoryStore keeps the document in memory
type MemoryStore struct {
	data []byte
	err  error
}

func (ms *MemoryStore) Load() ([]byte, error) {
	if ms.data == nil {
		return nil, ErrNotFound
	}
	return append([]byte(nil), ms.data...), nil
}

func (ms *MemoryStore) Save(data []byte) error {
	if ms.err != nil {
		return ms.err
	}
	ms.data = append([]byte(nil), data...)
	return nil
}

// FailSaves makes every following Save return err; nil clears it
func (ms *MemoryStore) FailSaves(err error) {
	ms.err = err
}
