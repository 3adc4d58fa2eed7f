package testutil

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/trezcool/masomo-admin/core"
	dummydb "github.com/trezcool/masomo-admin/storage/database/dummy"
)

// PrepareStore opens an in-memory document store closed at the end of the test.
func PrepareStore(t *testing.T) *dummydb.DB {
	db, err := dummydb.Open()
	if err != nil {
		t.Fatalf("dummydb.Open() failed: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func CreateCourse(t *testing.T, store core.DocumentStore, id, title string) core.Document {
	doc := core.Document{"id": id, "title": title}
	if err := store.Insert(context.Background(), core.CollectionCourses, doc); err != nil {
		t.Fatalf("createCourse() failed: %v", err)
	}
	return doc
}

// CreateBranch inserts a branch with the given assigned course ids and title cache (nil ones are left out).
func CreateBranch(t *testing.T, store core.DocumentStore, id, name string, courseIDs, offered []string) core.Document {
	doc := core.Document{"id": id, "name": name}
	if courseIDs != nil {
		doc.Set([]string{"assignments", "courses"}, courseIDs)
	}
	if offered != nil {
		doc.Set([]string{"operational_details", "courses_offered"}, offered)
	}
	if err := store.Insert(context.Background(), core.CollectionBranches, doc); err != nil {
		t.Fatalf("createBranch() failed: %v", err)
	}
	return doc
}

// GetDocument returns the document of `collection` whose "id" is `id`.
func GetDocument(t *testing.T, store core.DocumentStore, collection, id string) core.Document {
	docs, err := store.FindAll(context.Background(), collection, 0)
	if err != nil {
		t.Fatalf("getDocument() failed: %v", err)
	}
	for _, doc := range docs {
		if doc.ID() == id {
			return doc
		}
	}
	t.Fatalf("getDocument(): no %s with id %q", collection, id)
	return nil
}

// StringsAt returns the list of strings at the nested `path` of `doc`, or nil if there is none.
func StringsAt(doc core.Document, path ...string) []string {
	var curr interface{} = map[string]interface{}(doc)
	for _, key := range path {
		m, ok := curr.(map[string]interface{})
		if !ok {
			return nil
		}
		curr = m[key]
	}
	list, ok := curr.([]interface{})
	if !ok {
		return nil
	}
	ss := make([]string, 0, len(list))
	for _, e := range list {
		s, _ := e.(string)
		ss = append(ss, s)
	}
	return ss
}

// Logger is a core.Logger keeping the messages it is given.
type Logger struct {
	mu       sync.Mutex
	Messages []string // "LEVEL: msg"
}

var _ core.Logger = (*Logger)(nil)

func (l *Logger) record(level, msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Messages = append(l.Messages, level+": "+msg)
}

// Lines returns the recorded messages of `level`.
func (l *Logger) Lines(level string) []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	lines := make([]string, 0)
	for _, m := range l.Messages {
		if strings.HasPrefix(m, level+": ") {
			lines = append(lines, strings.TrimPrefix(m, level+": "))
		}
	}
	return lines
}

func (l *Logger) Debug(msg string, args ...interface{}) { l.record("DEBUG", msg) }
func (l *Logger) Info(msg string, args ...interface{})  { l.record("INFO", msg) }
func (l *Logger) Warn(msg string, args ...interface{})  { l.record("WARN", msg) }
func (l *Logger) Error(msg string, args ...interface{}) { l.record("ERROR", msg) }
func (l *Logger) Fatal(msg string, args ...interface{}) {
	l.record("FATAL", msg)
	panic(msg)
}
