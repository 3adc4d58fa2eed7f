package dummydb

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo-admin/core"
)

var ErrClosed = errors.New("database is closed")

type (
	// DB is an in-memory core.DocumentStore.
	DB struct {
		sync.RWMutex
		collections map[string]*collection
		closed      bool
	}

	collection struct {
		rows []*row // insertion order
		byID map[string]*row
	}

	row struct {
		pk  string // internal row id, unrelated to the document's "id"
		doc core.Document
	}
)

var _ core.DocumentStore = (*DB)(nil) // interface compliance check

func Open() (*DB, error) {
	db := &DB{
		collections: make(map[string]*collection),
	}
	return db, nil
}

func (db *DB) table(name string) *collection {
	tbl, ok := db.collections[name]
	if !ok {
		tbl = &collection{byID: make(map[string]*row)}
		db.collections[name] = tbl
	}
	return tbl
}

func (db *DB) FindAll(ctx context.Context, collection string, limit int) ([]core.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	db.RLock()
	defer db.RUnlock()
	if db.closed {
		return nil, ErrClosed
	}

	tbl, ok := db.collections[collection]
	if !ok {
		return []core.Document{}, nil
	}
	n := len(tbl.rows)
	if limit > 0 && limit < n {
		n = limit
	}
	docs := make([]core.Document, 0, n)
	for _, r := range tbl.rows[:n] {
		docs = append(docs, r.doc.Copy())
	}
	return docs, nil
}

func (db *DB) SetFields(ctx context.Context, collection, id string, fields ...core.Field) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	db.Lock()
	defer db.Unlock()
	if db.closed {
		return ErrClosed
	}

	tbl, ok := db.collections[collection]
	if !ok {
		return core.ErrDocNotFound
	}
	r, ok := tbl.byID[id]
	if !ok {
		return core.ErrDocNotFound
	}
	for _, fld := range fields {
		r.doc.Set(fld.Path, fld.Value)
	}
	return nil
}

// Insert adds `docs` to `collection`. A document whose "id" is already present replaces it in place.
func (db *DB) Insert(ctx context.Context, collection string, docs ...core.Document) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	db.Lock()
	defer db.Unlock()
	if db.closed {
		return ErrClosed
	}

	tbl := db.table(collection)
	for _, doc := range docs {
		id := doc.ID()
		if strings.TrimSpace(id) == "" {
			return errors.Errorf("inserting into %s: document has no %q", collection, core.DocIDKey)
		}
		if r, ok := tbl.byID[id]; ok {
			r.doc = doc.Copy()
			continue
		}
		r := &row{pk: uuid.New().String(), doc: doc.Copy()}
		tbl.rows = append(tbl.rows, r)
		tbl.byID[id] = r
	}
	return nil
}

func (db *DB) Close() error {
	db.Lock()
	defer db.Unlock()
	db.closed = true
	return nil
}
