package sqlxstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/kat-co/vala"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo-admin/core"
)

const pqUndefinedTable = "42P01"

// Store is a core.DocumentStore keeping every collection in the `documents` table as JSONB.
type Store struct {
	db *sqlx.DB
}

var _ core.DocumentStore = (*Store)(nil) // interface compliance check

func New(db *sql.DB) *Store {
	vala.BeginValidation().Validate(
		vala.IsNotNil(db, "db"),
	).CheckAndPanic()

	return &Store{db: sqlx.NewDb(db, "postgres")}
}

type docRow struct {
	PK  int64  `db:"pk"`
	Doc []byte `db:"doc"`
}

// wrapErr adds context to `err`, pointing at migrations if the documents table is missing.
func (s *Store) wrapErr(err error, msg string) error {
	if pqErr, ok := errors.Cause(err).(*pq.Error); ok && pqErr.Code == pqUndefinedTable {
		return errors.Wrap(err, msg+" (run `admin migrate up` first)")
	}
	return errors.Wrap(err, msg)
}

func (s *Store) FindAll(ctx context.Context, collection string, limit int) ([]core.Document, error) {
	q := `SELECT pk, doc FROM documents WHERE collection = $1 ORDER BY pk`
	args := []interface{}{collection}
	if limit > 0 {
		q += ` LIMIT $2`
		args = append(args, limit)
	}

	var rows []docRow
	if err := s.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, s.wrapErr(err, "selecting "+collection)
	}

	docs := make([]core.Document, 0, len(rows))
	for _, r := range rows {
		var doc core.Document
		if err := json.Unmarshal(r.Doc, &doc); err != nil {
			return nil, errors.Wrapf(err, "decoding %s row %d", collection, r.PK)
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// setFieldQuery compiles an UPDATE setting the value at `path`. Every intermediate
// path that is not an object is replaced by an empty one first.
// Placeholders: $1 collection, $2 id, $3.. the path prefixes, then the full path and the JSON value.
func setFieldQuery(path []string) string {
	expr := "doc"
	n := 3
	for i := 1; i < len(path); i++ {
		prefix := fmt.Sprintf("$%d::text[]", n)
		n++
		expr = fmt.Sprintf(
			"jsonb_set(%[1]s, %[2]s, CASE WHEN jsonb_typeof(%[1]s #> %[2]s) = 'object' THEN %[1]s #> %[2]s ELSE '{}'::jsonb END, true)",
			expr, prefix)
	}
	expr = fmt.Sprintf("jsonb_set(%s, $%d::text[], $%d::jsonb, true)", expr, n, n+1)
	return `UPDATE documents SET doc = ` + expr + `, updated_at = now() WHERE collection = $1 AND doc->>'id' = $2`
}

func setFieldArgs(collection, id string, path []string, value []byte) []interface{} {
	args := make([]interface{}, 0, len(path)+3)
	args = append(args, collection, id)
	for i := 1; i < len(path); i++ {
		args = append(args, pq.Array(path[:i]))
	}
	return append(args, pq.Array(path), string(value))
}

// SetFields sets all `fields` in a single transaction.
func (s *Store) SetFields(ctx context.Context, collection, id string, fields ...core.Field) (err error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "beginning transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if len(fields) == 0 {
		var exists bool
		q := `SELECT EXISTS (SELECT 1 FROM documents WHERE collection = $1 AND doc->>'id' = $2)`
		if err = tx.GetContext(ctx, &exists, q, collection, id); err != nil {
			return s.wrapErr(err, "checking "+collection)
		}
		if !exists {
			return core.ErrDocNotFound
		}
	}

	for _, fld := range fields {
		if len(fld.Path) == 0 {
			return errors.Errorf("setting %s %q: empty field path", collection, id)
		}
		var val []byte
		if val, err = json.Marshal(fld.Value); err != nil {
			return errors.Wrapf(err, "encoding %s", fld)
		}
		var res sql.Result
		res, err = tx.ExecContext(ctx, setFieldQuery(fld.Path), setFieldArgs(collection, id, fld.Path, val)...)
		if err != nil {
			return s.wrapErr(err, fmt.Sprintf("setting %s on %s %q", fld, collection, id))
		}
		var cnt int64
		if cnt, err = res.RowsAffected(); err != nil {
			return errors.Wrap(err, "counting updated rows")
		}
		if cnt == 0 {
			err = core.ErrDocNotFound
			return err
		}
	}

	if err = tx.Commit(); err != nil {
		return errors.Wrap(err, "committing transaction")
	}
	return nil
}

// Insert adds `docs` to `collection`. A document whose "id" is already present replaces it in place.
func (s *Store) Insert(ctx context.Context, collection string, docs ...core.Document) (err error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "beginning transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	q := `INSERT INTO documents (collection, doc) VALUES ($1, $2::jsonb)
		ON CONFLICT (collection, (doc->>'id')) DO UPDATE SET doc = EXCLUDED.doc, updated_at = now()`
	for _, doc := range docs {
		if strings.TrimSpace(doc.ID()) == "" {
			err = errors.Errorf("inserting into %s: document has no %q", collection, core.DocIDKey)
			return err
		}
		var val []byte
		if val, err = json.Marshal(doc); err != nil {
			return errors.Wrapf(err, "encoding %s %q", collection, doc.ID())
		}
		if _, err = tx.ExecContext(ctx, q, collection, string(val)); err != nil {
			return s.wrapErr(err, "inserting into "+collection)
		}
	}

	if err = tx.Commit(); err != nil {
		return errors.Wrap(err, "committing transaction")
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}
