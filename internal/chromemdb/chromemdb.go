package chromemdb

import (
	"context"
	"fmt"

	"github.com/philippgille/chromem-go"
	"github.com/rs/zerolog/log"
)

// Manager encapsulates the embedded chromem-go collection used in local
// mode, where no SQL database is available.
type Manager struct {
	db         *chromem.DB
	collection *chromem.Collection
	dbPath     string
}

const compress = false

// NewManager initializes the vector database, persistent unless inMemory.
func NewManager(dbPath, collectionName string, inMemory bool) (*Manager, error) {
	var db *chromem.DB
	var err error
	if inMemory {
		db = chromem.NewDB()
	} else {
		db, err = chromem.NewPersistentDB(dbPath, compress)
		if err != nil {
			return nil, fmt.Errorf("failed to create database: %v", err)
		}
	}

	m := &Manager{db: db, dbPath: dbPath}
	c, err := db.GetOrCreateCollection(collectionName, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create/get collection: %v", err)
	}
	m.collection = c
	return m, nil
}

// AddDocuments stores pre-embedded documents in the collection.
func (m *Manager) AddDocuments(ctx context.Context, docs []chromem.Document) error {
	if len(docs) == 0 {
		return nil
	}
	log.Debug().Int("count", len(docs)).Msg("Adding documents to vector database")
	return m.collection.AddDocuments(ctx, docs, 4)
}

// Query returns the k nearest documents for a query embedding.
func (m *Manager) Query(ctx context.Context, queryEmbedding []float32, k int) ([]chromem.Result, error) {
	count := m.collection.Count()
	if count == 0 {
		return nil, nil
	}
	if k > count {
		k = count
	}
	return m.collection.QueryEmbedding(ctx, queryEmbedding, k, nil, nil)
}

// Count reports how many documents the collection holds.
func (m *Manager) Count() int {
	return m.collection.Count()
}
