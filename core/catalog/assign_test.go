package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAssignCourses(t *testing.T) {
	all := []string{"c1", "c2", "c3", "c4"}

	tests := []struct {
		name      string
		idx       int
		courseIDs []string
		want      []string
	}{
		{name: "first branch: first 2", idx: 0, courseIDs: all, want: []string{"c1", "c2"}},
		{name: "second branch: last 2", idx: 1, courseIDs: all, want: []string{"c3", "c4"}},
		{name: "third branch: all", idx: 2, courseIDs: all, want: all},
		{name: "later branch: all", idx: 7, courseIDs: all, want: all},
		{name: "exactly 2: first", idx: 0, courseIDs: []string{"c1", "c2"}, want: []string{"c1", "c2"}},
		{name: "exactly 2: second", idx: 1, courseIDs: []string{"c1", "c2"}, want: []string{"c1", "c2"}},
		{name: "single course: first", idx: 0, courseIDs: []string{"c1"}, want: []string{"c1"}},
		{name: "single course: second", idx: 1, courseIDs: []string{"c1"}, want: []string{"c1"}},
		{name: "single course: third", idx: 2, courseIDs: []string{"c1"}, want: []string{"c1"}},
		{name: "no course", idx: 0, courseIDs: nil, want: []string{}},
		{name: "no course: later branch", idx: 5, courseIDs: []string{}, want: []string{}},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			got := AssignCourses(tt.idx, tt.courseIDs)
			assert.NotNil(t, got)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAssignCourses_doesNotAlias(t *testing.T) {
	ids := []string{"c1", "c2", "c3"}
	got := AssignCourses(2, ids)
	got[0] = "lol"
	assert.Equal(t, "c1", ids[0])
}

func TestTitleIndex(t *testing.T) {
	idx := NewTitleIndex([]Course{
		{ID: "c1", Title: "Math"},
		{ID: "c2", Title: "Science"},
		{ID: "c1", Title: "Duplicate"},
		{ID: "c3"},
	})

	assert.Equal(t, "Math", idx.Title("c1"))
	assert.Equal(t, "", idx.Title("c3"))
	assert.Equal(t, UnknownTitle, idx.Title("c9"))
	assert.Equal(t, []string{"Science", UnknownTitle, "Math"}, idx.Titles([]string{"c2", "c9", "c1"}))
	assert.Equal(t, []string{}, idx.Titles(nil))
}

func TestPlanAssignments(t *testing.T) {
	courses := []Course{{ID: "c1", Title: "Math"}, {ID: "c2", Title: "Science"}, {ID: "c3", Title: "Art"}}
	branches := []Branch{{ID: "b0"}, {ID: "b1"}, {ID: "b2"}}

	assert.Equal(t, []Assignment{
		{CourseIDs: []string{"c1", "c2"}, Titles: []string{"Math", "Science"}},
		{CourseIDs: []string{"c2", "c3"}, Titles: []string{"Science", "Art"}},
		{CourseIDs: []string{"c1", "c2", "c3"}, Titles: []string{"Math", "Science", "Art"}},
	}, PlanAssignments(branches, courses))
}

func TestStringList_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		want    StringList
		wantErr bool
	}{
		{name: "null", data: `null`, want: nil},
		{name: "strings", data: `["c1", "c2"]`, want: StringList{"c1", "c2"}},
		{name: "mixed", data: `["c1", 2, null, true]`, want: StringList{"c1", "2", "true"}},
		{name: "lone string", data: `"c1"`, want: StringList{"c1"}},
		{name: "object", data: `{"c1": true}`, wantErr: true},
		{name: "malformed", data: `[`, wantErr: true},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			var got StringList
			err := got.UnmarshalJSON([]byte(tt.data))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBranch_Validate(t *testing.T) {
	assert.NoError(t, Branch{ID: "b0"}.Validate())
	assert.Error(t, Branch{}.Validate())
	assert.NoError(t, Branch{ID: "Main Branch"}.Validate())
	assert.Error(t, Branch{ID: " \t"}.Validate())
	assert.NoError(t, Course{ID: "c1"}.Validate())
	assert.Error(t, Course{Title: "Math"}.Validate())
}
