package docrepos

import (
	"context"
	"encoding/json"
	"io"

	"github.com/pkg/errors"

	"github.com/trezcool/masomo-admin/core"
)

// Fixtures is the content of a fixtures file: {"courses": [...], "branches": [...]}.
type Fixtures struct {
	Courses  []core.Document `json:"courses"`
	Branches []core.Document `json:"branches"`
}

// ReadFixtures decodes and validates fixtures from `r`.
func ReadFixtures(r io.Reader) (Fixtures, error) {
	var fx Fixtures
	dec := json.NewDecoder(r)
	dec.UseNumber()
	if err := dec.Decode(&fx); err != nil {
		return Fixtures{}, errors.Wrap(err, "decoding fixtures")
	}
	for i, doc := range fx.Courses {
		if _, err := DecodeCourse(doc); err != nil {
			return Fixtures{}, errors.Wrapf(err, "course #%d", i)
		}
	}
	for i, doc := range fx.Branches {
		if _, err := DecodeBranch(doc); err != nil {
			return Fixtures{}, errors.Wrapf(err, "branch #%d", i)
		}
	}
	return fx, nil
}

// LoadFixtures writes the fixtures' courses then branches into `store`.
func LoadFixtures(ctx context.Context, store core.DocumentStore, fx Fixtures) error {
	if len(fx.Courses) > 0 {
		if err := store.Insert(ctx, core.CollectionCourses, fx.Courses...); err != nil {
			return errors.Wrap(err, "loading courses")
		}
	}
	if len(fx.Branches) > 0 {
		if err := store.Insert(ctx, core.CollectionBranches, fx.Branches...); err != nil {
			return errors.Wrap(err, "loading branches")
		}
	}
	return nil
}
