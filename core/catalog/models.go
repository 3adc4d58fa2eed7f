package catalog

import (
	"encoding/json"
	"fmt"

	"github.com/pkg/errors"

	"github.com/trezcool/masomo-admin/core"
)

// UnknownTitle stands in for the title of a course id that matches no course.
const UnknownTitle = "Unknown"

// Branch document fields maintained by the repair.
const (
	FieldAssignedCourses = "assignments.courses"
	FieldCoursesOffered  = "operational_details.courses_offered"
)

// FieldName is the branch display name field; the repair never writes it.
const FieldName = "name"

type Course struct {
	ID    string `json:"id" validate:"required,docid"`
	Title string `json:"title"`
}

func (c Course) Validate() error {
	return core.ValidateStruct(c, ErrInvalidCourse)
}

type Assignments struct {
	Courses StringList `json:"courses"`
}

type OperationalDetails struct {
	CoursesOffered StringList `json:"courses_offered"`
}

type Branch struct {
	ID                 string             `json:"id" validate:"required,docid"`
	Name               string             `json:"name"`
	Assignments        Assignments        `json:"assignments"`
	OperationalDetails OperationalDetails `json:"operational_details"`

	// Unreadable lists the (dotted) fields that could not be decoded and were read as empty.
	Unreadable []string `json:"-"`
}

func (b Branch) Validate() error {
	return core.ValidateStruct(b, ErrInvalidBranch)
}

// DisplayName returns the branch name, falling back to its id.
func (b Branch) DisplayName() string {
	if name := core.CleanString(b.Name); name != "" {
		return name
	}
	return b.ID
}

// CacheUnreadable reports whether one of the fields the repair rewrites could not be read.
func (b Branch) CacheUnreadable() bool {
	return cacheUnreadable(b.Unreadable)
}

func cacheUnreadable(fields []string) bool {
	for _, f := range fields {
		if f != FieldName {
			return true
		}
	}
	return false
}

// StringList is a list of strings decoded leniently from loosely-typed documents:
// null decodes to a nil list, a lone string to a 1-element list,
// and non-string array elements are stringified (null elements are dropped).
type StringList []string

func (l *StringList) UnmarshalJSON(data []byte) error {
	var raw interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch val := raw.(type) {
	case nil:
		*l = nil
	case string:
		*l = StringList{val}
	case []interface{}:
		list := make(StringList, 0, len(val))
		for _, elem := range val {
			switch e := elem.(type) {
			case nil:
			case string:
				list = append(list, e)
			default:
				list = append(list, fmt.Sprint(e))
			}
		}
		*l = list
	default:
		return errors.Errorf("cannot decode %T as a list of strings", raw)
	}
	return nil
}

// TitleIndex resolves course ids to titles.
type TitleIndex map[string]string

// NewTitleIndex indexes `courses` by id. The first course wins on duplicate ids.
func NewTitleIndex(courses []Course) TitleIndex {
	idx := make(TitleIndex, len(courses))
	for _, c := range courses {
		if _, ok := idx[c.ID]; !ok {
			idx[c.ID] = c.Title
		}
	}
	return idx
}

// Title returns the title of the course with `id`, or UnknownTitle if there is none.
func (idx TitleIndex) Title(id string) string {
	if title, ok := idx[id]; ok {
		return title
	}
	return UnknownTitle
}

// Titles maps every id in `ids` to its title, keeping positions.
func (idx TitleIndex) Titles(ids []string) []string {
	titles := make([]string, 0, len(ids))
	for _, id := range ids {
		titles = append(titles, idx.Title(id))
	}
	return titles
}

// CourseIDs returns the ids of `courses`, in order.
func CourseIDs(courses []Course) []string {
	ids := make([]string, 0, len(courses))
	for _, c := range courses {
		ids = append(ids, c.ID)
	}
	return ids
}
