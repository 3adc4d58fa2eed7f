package core

import (
	"context"
	"strings"
)

// Collections
const (
	CollectionCourses  = "courses"
	CollectionBranches = "branches"
)

// DocIDKey is the document field records are keyed by; it is unrelated to the store's internal row id.
const DocIDKey = "id"

type (
	// Document is a semi-structured record as held by a DocumentStore.
	Document map[string]interface{}

	// Field is a (possibly nested) document path and the value to set at it.
	Field struct {
		Path  []string
		Value interface{}
	}

	// DocumentStore is any store holding named collections of Documents keyed by their "id" field.
	DocumentStore interface {
		// FindAll returns the documents of `collection` in insertion order. limit <= 0 means no bound.
		FindAll(ctx context.Context, collection string, limit int) ([]Document, error)
		// SetFields sets `fields` on the document whose "id" field equals `id`,
		// creating intermediate objects as needed. Returns ErrDocNotFound if there is no such document.
		SetFields(ctx context.Context, collection, id string, fields ...Field) error
		Insert(ctx context.Context, collection string, docs ...Document) error
		Close() error
	}
)

// NewField builds a Field from a dotted path, e.g. "assignments.courses".
func NewField(path string, value interface{}) Field {
	return Field{Path: strings.Split(path, "."), Value: value}
}

func (f Field) String() string {
	return strings.Join(f.Path, ".")
}

// ID returns the document's "id" field, or "" if missing or not a string.
func (d Document) ID() string {
	id, _ := d[DocIDKey].(string)
	return id
}

// Copy returns a deep copy of the document (nested objects and arrays included).
func (d Document) Copy() Document {
	if d == nil {
		return nil
	}
	return copyValue(map[string]interface{}(d)).(map[string]interface{})
}

// Set sets the value at the nested `path`, replacing any non-object found on the way.
func (d Document) Set(path []string, value interface{}) {
	if len(path) == 0 {
		return
	}
	curr := map[string]interface{}(d)
	for _, key := range path[:len(path)-1] {
		next, ok := curr[key].(map[string]interface{})
		if !ok {
			if doc, isDoc := curr[key].(Document); isDoc {
				next = doc
			} else {
				next = make(map[string]interface{})
			}
			curr[key] = next
		}
		curr = next
	}
	curr[path[len(path)-1]] = copyValue(value)
}

func copyValue(v interface{}) interface{} {
	switch val := v.(type) {
	case Document:
		return copyValue(map[string]interface{}(val))
	case map[string]interface{}:
		m := make(map[string]interface{}, len(val))
		for k, e := range val {
			m[k] = copyValue(e)
		}
		return m
	case []interface{}:
		s := make([]interface{}, len(val))
		for i, e := range val {
			s[i] = copyValue(e)
		}
		return s
	case []string:
		s := make([]interface{}, len(val))
		for i, e := range val {
			s[i] = e
		}
		return s
	default:
		return val
	}
}
