package ledger

import (
	"errors"
	"fmt"
	"sync"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"
)

// DeviceIndex maps device identifiers to the hash of the block that most recently registered them.
type DeviceIndex interface {
	Put(deviceID, blockHash string) error
	// Get returns false if the device was never indexed.
	Get(deviceID string) (blockHash string, ok bool, err error)
	Delete(deviceID string) error
	Each(fn func(deviceID, blockHash string) error) error
	Reset() error
	Close() error
}

type memoryIndex struct {
	mu      sync.RWMutex
	devices map[string]string
}

func NewMemoryIndex() DeviceIndex {
	return &memoryIndex{devices: make(map[string]string)}
}

func (m *memoryIndex) Put(deviceID, blockHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.devices[deviceID] = blockHash
	return nil
}

func (m *memoryIndex) Get(deviceID string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	hash, ok := m.devices[deviceID]
	return hash, ok, nil
}

func (m *memoryIndex) Delete(deviceID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.devices, deviceID)
	return nil
}

func (m *memoryIndex) Each(fn func(deviceID, blockHash string) error) error {
	m.mu.RLock()
	snapshot := make(map[string]string, len(m.devices))
	for k, v := range m.devices {
		snapshot[k] = v
	}
	m.mu.RUnlock()

	for k, v := range snapshot {
		if err := fn(k, v); err != nil {
			return err
		}
	}
	return nil
}

func (m *memoryIndex) Reset() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.devices = make(map[string]string)
	return nil
}

func (m *memoryIndex) Close() error {
	return nil
}

// levelDBIndex persists the device index so lookups survive restarts.
type levelDBIndex struct {
	db *leveldb.DB
}

func NewLevelDBIndex(path string) (DeviceIndex, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open device index @ %s: %w", path, err)
	}
	return &levelDBIndex{db: db}, nil
}

func (l *levelDBIndex) Put(deviceID, blockHash string) error {
	if err := l.db.Put([]byte(deviceID), []byte(blockHash), &opt.WriteOptions{Sync: true}); err != nil {
		return fmt.Errorf("storing device %s in index: %w", deviceID, err)
	}
	return nil
}

func (l *levelDBIndex) Get(deviceID string) (string, bool, error) {
	hash, err := l.db.Get([]byte(deviceID), nil)
	switch {
	case errors.Is(err, leveldb.ErrNotFound):
		return "", false, nil
	case err != nil:
		return "", false, fmt.Errorf("get device %s from index: %w", deviceID, err)
	}
	return string(hash), true, nil
}

func (l *levelDBIndex) Delete(deviceID string) error {
	return l.db.Delete([]byte(deviceID), &opt.WriteOptions{Sync: true})
}

func (l *levelDBIndex) Each(fn func(deviceID, blockHash string) error) error {
	iter := l.db.NewIterator(nil, nil)
	defer iter.Release()
	for iter.Next() {
		if err := fn(string(iter.Key()), string(iter.Value())); err != nil {
			return err
		}
	}
	return iter.Error()
}

func (l *levelDBIndex) Reset() error {
	batch := new(leveldb.Batch)
	iter := l.db.NewIterator(nil, nil)
	for iter.Next() {
		batch.Delete(append([]byte(nil), iter.Key()...))
	}
	iter.Release()
	if err := iter.Error(); err != nil {
		return fmt.Errorf("scanning device index: %w", err)
	}
	return l.db.Write(batch, &opt.WriteOptions{Sync: true})
}

func (l *levelDBIndex) Close() error {
	return l.db.Close()
}
