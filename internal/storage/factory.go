package storage

import (
	"fmt"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/venator/internal/common"
	"github.com/ternarybob/venator/internal/interfaces"
	badgerstore "github.com/ternarybob/venator/internal/storage/badger"
	"github.com/ternarybob/venator/internal/storage/memory"
)

// Manager owns the database connection and the configured result store.
type Manager struct {
	db     *badgerstore.BadgerDB
	result interfaces.ResultStore
	logger arbor.ILogger
}

// NewManager creates a storage manager based on config. "badger" is durable
// only, "memory" is process-local only, "fallback" (the default) composes
// durable-first with the in-memory map.
func NewManager(logger arbor.ILogger, config *common.StorageConfig) (*Manager, error) {
	switch config.Type {
	case "memory":
		return &Manager{
			result: memory.NewResultStore(logger),
			logger: logger,
		}, nil

	case "badger", "fallback", "":
		db, err := badgerstore.NewBadgerDB(logger, &config.Badger)
		if err != nil {
			return nil, err
		}

		durable := badgerstore.NewResultStore(db, logger)
		m := &Manager{db: db, logger: logger}
		if config.Type == "badger" {
			m.result = durable
		} else {
			m.result = NewFallbackStore(durable, memory.NewResultStore(logger), logger)
		}
		return m, nil

	default:
		return nil, fmt.Errorf("unsupported storage type: %s", config.Type)
	}
}

// ResultStore returns the configured result store.
func (m *Manager) ResultStore() interfaces.ResultStore {
	return m.result
}

// DB returns the shared Badger connection, nil for memory-only storage.
func (m *Manager) DB() *badgerstore.BadgerDB {
	return m.db
}

// Close closes the result store and the database connection.
func (m *Manager) Close() error {
	if err := m.result.Close(); err != nil {
		m.logger.Warn().Err(err).Msg("Failed to close result store")
	}
	if m.db != nil {
		return m.db.Close()
	}
	return nil
}
