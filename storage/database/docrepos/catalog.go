package docrepos

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/kat-co/vala"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo-admin/core"
	"github.com/trezcool/masomo-admin/core/catalog"
)

type catalogRepository struct {
	store core.DocumentStore
}

var _ catalog.Repository = (*catalogRepository)(nil) // interface compliance check

func NewCatalogRepository(store core.DocumentStore) *catalogRepository {
	vala.BeginValidation().Validate(
		vala.IsNotNil(store, "store"),
	).CheckAndPanic()

	return &catalogRepository{store: store}
}

// decode maps a loosely-typed value onto the record `v` points to.
func decode(val interface{}, v interface{}) error {
	data, err := json.Marshal(val)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

// lookup returns the value at the nested `path` of `doc`, nil if absent.
// It fails when a non-object sits on the way.
func lookup(doc core.Document, path []string) (interface{}, error) {
	var curr interface{} = map[string]interface{}(doc)
	for i, key := range path {
		m, ok := curr.(map[string]interface{})
		if !ok {
			if curr == nil {
				return nil, nil
			}
			return nil, errors.Errorf("%s is not an object", strings.Join(path[:i], "."))
		}
		curr = m[key]
	}
	return curr, nil
}

// DecodeCourse decodes and validates a course document.
func DecodeCourse(doc core.Document) (catalog.Course, error) {
	var c catalog.Course
	if err := decode(doc, &c); err != nil {
		return catalog.Course{}, core.NewValidationError(catalog.ErrInvalidCourse, core.FieldError{Field: "document", Error: err.Error()})
	}
	if err := c.Validate(); err != nil {
		return catalog.Course{}, err
	}
	return c, nil
}

// DecodeBranch decodes and validates a branch document.
// Only the id is required: a name or assignment field that cannot be decoded
// is read as empty and listed in Branch.Unreadable.
func DecodeBranch(doc core.Document) (catalog.Branch, error) {
	b := catalog.Branch{ID: doc.ID()}
	if err := b.Validate(); err != nil {
		return catalog.Branch{}, err
	}

	fields := []struct {
		path string
		dest interface{}
	}{
		{catalog.FieldName, &b.Name},
		{catalog.FieldAssignedCourses, &b.Assignments.Courses},
		{catalog.FieldCoursesOffered, &b.OperationalDetails.CoursesOffered},
	}
	for _, fld := range fields {
		path := strings.Split(fld.path, ".")
		val, err := lookup(doc, path)
		if err != nil {
			// the non-object parent is what cannot be read
			b.Unreadable = appendOnce(b.Unreadable, path[0])
			continue
		}
		if val == nil {
			continue
		}
		if err = decode(val, fld.dest); err != nil {
			b.Unreadable = appendOnce(b.Unreadable, fld.path)
		}
	}
	return b, nil
}

func appendOnce(list []string, s string) []string {
	for _, e := range list {
		if e == s {
			return list
		}
	}
	return append(list, s)
}

func (repo catalogRepository) QueryCourses(ctx context.Context, limit int) ([]catalog.Course, error) {
	docs, err := repo.store.FindAll(ctx, core.CollectionCourses, limit)
	if err != nil {
		return nil, errors.Wrap(err, "querying courses")
	}
	courses := make([]catalog.Course, 0, len(docs))
	for i, doc := range docs {
		c, err := DecodeCourse(doc)
		if err != nil {
			return nil, errors.Wrapf(err, "course #%d (id %q)", i, doc.ID())
		}
		courses = append(courses, c)
	}
	return courses, nil
}

func (repo catalogRepository) QueryBranches(ctx context.Context, limit int) ([]catalog.Branch, error) {
	docs, err := repo.store.FindAll(ctx, core.CollectionBranches, limit)
	if err != nil {
		return nil, errors.Wrap(err, "querying branches")
	}
	branches := make([]catalog.Branch, 0, len(docs))
	for i, doc := range docs {
		b, err := DecodeBranch(doc)
		if err != nil {
			return nil, errors.Wrapf(err, "branch #%d (id %q)", i, doc.ID())
		}
		branches = append(branches, b)
	}
	return branches, nil
}

// trapNotFoundErr maps core.ErrDocNotFound to catalog.ErrBranchNotFound
func (repo catalogRepository) trapNotFoundErr(err error, msg string) error {
	if errors.Cause(err) == core.ErrDocNotFound {
		return catalog.ErrBranchNotFound
	}
	return errors.Wrap(err, msg)
}

func (repo catalogRepository) UpdateBranchAssignments(ctx context.Context, branchID string, courseIDs, titles []string) error {
	if courseIDs == nil {
		courseIDs = []string{}
	}
	if titles == nil {
		titles = []string{}
	}
	err := repo.store.SetFields(
		ctx, core.CollectionBranches, branchID,
		core.NewField(catalog.FieldAssignedCourses, courseIDs),
		core.NewField(catalog.FieldCoursesOffered, titles),
	)
	if err != nil {
		return repo.trapNotFoundErr(err, "updating branch assignments")
	}
	return nil
}
