package sqlite

import (
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/refnet/internal/common"
	"github.com/ternarybob/refnet/internal/interfaces"
)

// Manager bundles the store facets over one SQLite file.
type Manager struct {
	db     *SQLiteDB
	papers *PaperStore
	queue  *QueueStore
}

// Compile-time interface assertion
var _ interfaces.StorageManager = (*Manager)(nil)

// NewManager opens the database and wires up the storage facets.
func NewManager(logger arbor.ILogger, cfg *common.SQLiteConfig) (*Manager, error) {
	db, err := NewSQLiteDB(logger, cfg)
	if err != nil {
		return nil, err
	}
	return &Manager{
		db:     db,
		papers: NewPaperStore(db, logger),
		queue:  NewQueueStore(db, logger),
	}, nil
}

// Papers returns the graph storage facet.
func (m *Manager) Papers() interfaces.PaperStorage {
	return m.papers
}

// Queue returns the work queue facet.
func (m *Manager) Queue() interfaces.QueueStorage {
	return m.queue
}

// DB exposes the shared connection for the queue broker.
func (m *Manager) DB() *SQLiteDB {
	return m.db
}

// Close closes the underlying database.
func (m *Manager) Close() error {
	return m.db.Close()
}
