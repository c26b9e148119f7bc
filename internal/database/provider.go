package database

import (
	"errors"
	"sync"
)

var (
	activeStore Store
	storeName   string
	storeMu     sync.RWMutex
)

// RegisterStore registers the active storage backend.
// This is called by cmd after opening PostgreSQL or SQLite to avoid import cycles.
func RegisterStore(name string, store Store) {
	storeMu.Lock()
	defer storeMu.Unlock()
	activeStore = store
	storeName = name
}

// GetStore returns the registered backend
func GetStore() (Store, error) {
	storeMu.RLock()
	defer storeMu.RUnlock()
	if activeStore == nil {
		return nil, errors.New("storage backend not initialized: set DATABASE_URL or SQLITE_PATH")
	}
	return activeStore, nil
}

// BackendName returns the name of the registered backend, or "" if none.
func BackendName() string {
	storeMu.RLock()
	defer storeMu.RUnlock()
	return storeName
}

// IsInitialized returns whether a storage backend has been registered.
func IsInitialized() bool {
	storeMu.RLock()
	defer storeMu.RUnlock()
	return activeStore != nil
}
