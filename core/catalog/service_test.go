package catalog_test

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/masomo-admin/core"
	"github.com/trezcool/masomo-admin/core/catalog"
	"github.com/trezcool/masomo-admin/storage/database/docrepos"
	dummydb "github.com/trezcool/masomo-admin/storage/database/dummy"
	"github.com/trezcool/masomo-admin/tests"
)

func setup(t *testing.T) (catalog.Service, *dummydb.DB) {
	store := testutil.PrepareStore(t)
	return catalog.NewService(docrepos.NewCatalogRepository(store), &testutil.Logger{}), store
}

func assignment(t *testing.T, store core.DocumentStore, branchID string) ([]string, []string) {
	doc := testutil.GetDocument(t, store, core.CollectionBranches, branchID)
	return testutil.StringsAt(doc, "assignments", "courses"), testutil.StringsAt(doc, "operational_details", "courses_offered")
}

func TestService_RepairAssignments(t *testing.T) {
	type course struct{ id, title string }
	tests := []struct {
		name        string
		courses     []course
		branchCount int
		wantIDs     [][]string
		wantTitles  [][]string
	}{
		{
			name:        "three courses",
			courses:     []course{{"c1", "Math"}, {"c2", "Science"}, {"c3", "Art"}},
			branchCount: 3,
			wantIDs:     [][]string{{"c1", "c2"}, {"c2", "c3"}, {"c1", "c2", "c3"}},
			wantTitles:  [][]string{{"Math", "Science"}, {"Science", "Art"}, {"Math", "Science", "Art"}},
		},
		{
			name:        "no course",
			branchCount: 3,
			wantIDs:     [][]string{{}, {}, {}},
			wantTitles:  [][]string{{}, {}, {}},
		},
		{
			name:        "single course",
			courses:     []course{{"c1", "Math"}},
			branchCount: 4,
			wantIDs:     [][]string{{"c1"}, {"c1"}, {"c1"}, {"c1"}},
			wantTitles:  [][]string{{"Math"}, {"Math"}, {"Math"}, {"Math"}},
		},
		{
			name:        "four courses, two branches",
			courses:     []course{{"c1", "Math"}, {"c2", "Science"}, {"c3", "Art"}, {"c4", "History"}},
			branchCount: 2,
			wantIDs:     [][]string{{"c1", "c2"}, {"c3", "c4"}},
			wantTitles:  [][]string{{"Math", "Science"}, {"Art", "History"}},
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			svc, store := setup(t)
			for _, c := range tt.courses {
				testutil.CreateCourse(t, store, c.id, c.title)
			}
			for i := 0; i < tt.branchCount; i++ {
				testutil.CreateBranch(t, store, fmt.Sprintf("b%d", i), fmt.Sprintf("Branch %d", i), []string{"stale"}, nil)
			}

			report, err := svc.RepairAssignments(context.Background(), catalog.RepairOptions{})
			require.NoError(t, err)
			assert.False(t, report.DryRun)
			assert.NotEmpty(t, report.RunID)
			assert.Equal(t, len(tt.courses), report.CourseCount)
			assert.Equal(t, tt.branchCount, report.AppliedCount())
			assert.Equal(t, tt.branchCount, report.ChangedCount())

			for i := 0; i < tt.branchCount; i++ {
				ids, titles := assignment(t, store, fmt.Sprintf("b%d", i))
				assert.Equal(t, tt.wantIDs[i], ids, "branch %d ids", i)
				assert.Equal(t, tt.wantTitles[i], titles, "branch %d titles", i)
			}
		})
	}
}

func TestService_RepairAssignments_idempotent(t *testing.T) {
	svc, store := setup(t)
	testutil.CreateCourse(t, store, "c1", "Math")
	testutil.CreateCourse(t, store, "c2", "Science")
	testutil.CreateCourse(t, store, "c3", "Art")
	for i := 0; i < 4; i++ {
		testutil.CreateBranch(t, store, fmt.Sprintf("b%d", i), "", nil, nil)
	}

	ctx := context.Background()
	_, err := svc.RepairAssignments(ctx, catalog.RepairOptions{})
	require.NoError(t, err)
	first, err := store.FindAll(ctx, core.CollectionBranches, 0)
	require.NoError(t, err)

	report, err := svc.RepairAssignments(ctx, catalog.RepairOptions{})
	require.NoError(t, err)
	second, err := store.FindAll(ctx, core.CollectionBranches, 0)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 0, report.ChangedCount())
	assert.Equal(t, 4, report.AppliedCount())
}

func TestService_RepairAssignments_keepsOtherFields(t *testing.T) {
	svc, store := setup(t)
	testutil.CreateCourse(t, store, "c1", "Math")
	require.NoError(t, store.Insert(context.Background(), core.CollectionBranches, core.Document{
		"id":                  "b0",
		"name":                "Gombe",
		"assignments":         map[string]interface{}{"teachers": []interface{}{"t1"}},
		"operational_details": map[string]interface{}{"hours": "8-17", "courses_offered": []interface{}{"Old"}},
	}))

	_, err := svc.RepairAssignments(context.Background(), catalog.RepairOptions{})
	require.NoError(t, err)

	doc := testutil.GetDocument(t, store, core.CollectionBranches, "b0")
	assert.Equal(t, "Gombe", doc["name"])
	assert.Equal(t, []string{"t1"}, testutil.StringsAt(doc, "assignments", "teachers"))
	assert.Equal(t, []string{"c1"}, testutil.StringsAt(doc, "assignments", "courses"))
	assert.Equal(t, []string{"Math"}, testutil.StringsAt(doc, "operational_details", "courses_offered"))
	assert.Equal(t, "8-17", doc["operational_details"].(map[string]interface{})["hours"])
}

func TestService_RepairAssignments_dryRun(t *testing.T) {
	svc, store := setup(t)
	testutil.CreateCourse(t, store, "c1", "Math")
	testutil.CreateCourse(t, store, "c2", "Science")
	testutil.CreateBranch(t, store, "b0", "Gombe", []string{"c2"}, []string{"Science"})

	report, err := svc.RepairAssignments(context.Background(), catalog.RepairOptions{DryRun: true})
	require.NoError(t, err)
	assert.True(t, report.DryRun)
	require.Len(t, report.Changes, 1)

	change := report.Changes[0]
	assert.Equal(t, "b0", change.BranchID)
	assert.Equal(t, "Gombe", change.Name)
	assert.Equal(t, []string{"c2"}, change.OldCourses)
	assert.Equal(t, []string{"c1", "c2"}, change.NewCourses)
	assert.Equal(t, []string{"Math", "Science"}, change.NewTitles)
	assert.True(t, change.Changed)
	assert.False(t, change.Applied)

	ids, titles := assignment(t, store, "b0")
	assert.Equal(t, []string{"c2"}, ids)
	assert.Equal(t, []string{"Science"}, titles)
}

// titleResolution checks every branch's title cache against the courses in the store.
func titleResolution(t *testing.T, store core.DocumentStore) {
	t.Helper()
	courses, err := store.FindAll(context.Background(), core.CollectionCourses, 0)
	require.NoError(t, err)
	titles := make(map[string]string)
	for _, c := range courses {
		if _, ok := titles[c.ID()]; !ok {
			titles[c.ID()], _ = c["title"].(string)
		}
	}

	branches, err := store.FindAll(context.Background(), core.CollectionBranches, 0)
	require.NoError(t, err)
	for _, b := range branches {
		ids := testutil.StringsAt(b, "assignments", "courses")
		offered := testutil.StringsAt(b, "operational_details", "courses_offered")
		require.Len(t, offered, len(ids))
		for i, id := range ids {
			want, ok := titles[id]
			if !ok {
				want = catalog.UnknownTitle
			}
			assert.Equal(t, want, offered[i], "branch %s position %d", b.ID(), i)
		}
	}
}

func TestService_RepairAssignments_titleResolution(t *testing.T) {
	rnd := rand.New(rand.NewSource(42))
	for run := 0; run < 20; run++ {
		svc, store := setup(t)
		courseCount := rnd.Intn(6)
		for i := 0; i < courseCount; i++ {
			testutil.CreateCourse(t, store, fmt.Sprintf("c%d", i), fmt.Sprintf("Course %d", rnd.Intn(3)))
		}
		branchCount := 3 + rnd.Intn(4)
		for i := 0; i < branchCount; i++ {
			testutil.CreateBranch(t, store, fmt.Sprintf("b%d", i), "", []string{"c99"}, []string{"lol"})
		}

		report, err := svc.RepairAssignments(context.Background(), catalog.RepairOptions{})
		require.NoError(t, err)
		require.Len(t, report.Changes, branchCount)
		titleResolution(t, store)

		all := make([]string, 0, courseCount)
		for i := 0; i < courseCount; i++ {
			all = append(all, fmt.Sprintf("c%d", i))
		}
		for i, change := range report.Changes {
			assert.Equal(t, catalog.AssignCourses(i, all), change.NewCourses)
		}
	}
}

func TestService_RepairAssignments_unknownCourse(t *testing.T) {
	svc, store := setup(t)
	testutil.CreateCourse(t, store, "c1", "Math")
	testutil.CreateCourse(t, store, "c2", "Science")
	testutil.CreateBranch(t, store, "b0", "", []string{"c9"}, []string{"Old"})

	in, err := svc.InspectAssignments(context.Background(), catalog.InspectOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{"b0"}, in.Inconsistencies())
	assert.False(t, in.Consistent())

	_, err = svc.RepairAssignments(context.Background(), catalog.RepairOptions{})
	require.NoError(t, err)

	in, err = svc.InspectAssignments(context.Background(), catalog.InspectOptions{})
	require.NoError(t, err)
	assert.True(t, in.Consistent())
}

// faultyStore fails SetFields once `failAfter` updates went through.
type faultyStore struct {
	core.DocumentStore
	failAfter int
	updates   int
}

var errUnreachable = errors.New("store unreachable")

func (s *faultyStore) SetFields(ctx context.Context, collection, id string, fields ...core.Field) error {
	if s.updates >= s.failAfter {
		return errUnreachable
	}
	s.updates++
	return s.DocumentStore.SetFields(ctx, collection, id, fields...)
}

func TestService_RepairAssignments_failure(t *testing.T) {
	store := testutil.PrepareStore(t)
	testutil.CreateCourse(t, store, "c1", "Math")
	testutil.CreateCourse(t, store, "c2", "Science")
	testutil.CreateCourse(t, store, "c3", "Art")
	for i := 0; i < 3; i++ {
		testutil.CreateBranch(t, store, fmt.Sprintf("b%d", i), "", nil, nil)
	}
	svc := catalog.NewService(docrepos.NewCatalogRepository(&faultyStore{DocumentStore: store, failAfter: 1}), &testutil.Logger{})

	report, err := svc.RepairAssignments(context.Background(), catalog.RepairOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `updating branch "b1"`)
	assert.True(t, errors.Is(err, errUnreachable))

	require.Len(t, report.Changes, 2)
	assert.True(t, report.Changes[0].Applied)
	assert.False(t, report.Changes[1].Applied)

	// writes made before the failure are kept
	ids, _ := assignment(t, store, "b0")
	assert.Equal(t, []string{"c1", "c2"}, ids)
	ids, _ = assignment(t, store, "b1")
	assert.Nil(t, ids)
}

func TestService_RepairAssignments_closedStore(t *testing.T) {
	svc, store := setup(t)
	require.NoError(t, store.Close())

	_, err := svc.RepairAssignments(context.Background(), catalog.RepairOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "loading courses")
}

func TestService_InspectAssignments(t *testing.T) {
	svc, store := setup(t)
	testutil.CreateCourse(t, store, "c1", "Math")
	testutil.CreateCourse(t, store, "c2", "Science")
	testutil.CreateBranch(t, store, "b0", "Gombe", []string{"c1"}, []string{"Math"})
	testutil.CreateBranch(t, store, "b1", "", []string{"c2", "c1"}, []string{"Science", "Math"})

	in, err := svc.InspectAssignments(context.Background(), catalog.InspectOptions{})
	require.NoError(t, err)
	assert.Equal(t, []catalog.BranchSummary{
		{ID: "b0", Name: "Gombe", Courses: []string{"c1"}, CoursesOffered: []string{"Math"}},
		{ID: "b1", Name: "b1", Courses: []string{"c2", "c1"}, CoursesOffered: []string{"Science", "Math"}},
	}, in.Branches)
	assert.Equal(t, []catalog.CourseSummary{{ID: "c1", Title: "Math"}, {ID: "c2", Title: "Science"}}, in.Courses)
	assert.True(t, in.Consistent())

	in, err = svc.InspectAssignments(context.Background(), catalog.InspectOptions{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, in.Branches, 1)
	assert.Len(t, in.Courses, 1)
}

func TestNewService(t *testing.T) {
	repo := docrepos.NewCatalogRepository(testutil.PrepareStore(t))
	assert.NotPanics(t, func() { catalog.NewService(repo, &testutil.Logger{}) })
	assert.Panics(t, func() { catalog.NewService(nil, &testutil.Logger{}) })
	assert.Panics(t, func() { catalog.NewService(repo, nil) })
}

func TestService_RepairAssignments_unreadableFields(t *testing.T) {
	tests := []struct {
		name           string
		branch         core.Document
		wantUnreadable []string
		wantName       string
	}{
		{
			name: "courses_offered not a list",
			branch: core.Document{
				"id":                  "b1",
				"name":                "Limete",
				"assignments":         map[string]interface{}{"courses": []interface{}{"c2", "c3"}},
				"operational_details": map[string]interface{}{"courses_offered": map[string]interface{}{"x": 1}},
			},
			wantUnreadable: []string{catalog.FieldCoursesOffered},
			wantName:       "Limete",
		},
		{
			name:           "assignments not an object",
			branch:         core.Document{"id": "b1", "name": "Limete", "assignments": []interface{}{"c1"}},
			wantUnreadable: []string{"assignments"},
			wantName:       "Limete",
		},
		{
			name:           "name not a string",
			branch:         core.Document{"id": "b1", "name": 7},
			wantUnreadable: []string{catalog.FieldName},
			wantName:       "b1",
		},
		{
			name:     "id with spaces",
			branch:   core.Document{"id": "Main Branch", "name": "Main"},
			wantName: "Main",
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			svc, store := setup(t)
			testutil.CreateCourse(t, store, "c1", "Math")
			testutil.CreateCourse(t, store, "c2", "Science")
			testutil.CreateCourse(t, store, "c3", "Art")
			testutil.CreateBranch(t, store, "bA", "Gombe", nil, nil)
			require.NoError(t, store.Insert(context.Background(), core.CollectionBranches, tt.branch))

			report, err := svc.RepairAssignments(context.Background(), catalog.RepairOptions{})
			require.NoError(t, err)
			require.Len(t, report.Changes, 2)

			ids, titles := assignment(t, store, "bA")
			assert.Equal(t, []string{"c1", "c2"}, ids)
			assert.Equal(t, []string{"Math", "Science"}, titles)

			id := tt.branch.ID()
			ids, titles = assignment(t, store, id)
			assert.Equal(t, []string{"c2", "c3"}, ids)
			assert.Equal(t, []string{"Science", "Art"}, titles)

			change := report.Changes[1]
			assert.Equal(t, id, change.BranchID)
			assert.Equal(t, tt.wantName, change.Name)
			assert.Equal(t, tt.wantUnreadable, change.Unreadable)
			assert.True(t, change.Changed)
			assert.True(t, change.Applied)

			// a second run finds nothing left to repair
			report, err = svc.RepairAssignments(context.Background(), catalog.RepairOptions{})
			require.NoError(t, err)
			assert.Equal(t, 0, report.ChangedCount())
		})
	}
}

func TestService_InspectAssignments_unreadableCache(t *testing.T) {
	svc, store := setup(t)
	require.NoError(t, store.Insert(context.Background(), core.CollectionBranches, core.Document{
		"id":                  "b0",
		"operational_details": map[string]interface{}{"courses_offered": map[string]interface{}{"x": 1}},
	}))
	require.NoError(t, store.Insert(context.Background(), core.CollectionBranches, core.Document{"id": "b1", "name": 7}))

	in, err := svc.InspectAssignments(context.Background(), catalog.InspectOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{catalog.FieldCoursesOffered}, in.Branches[0].Unreadable)
	assert.Equal(t, []string{catalog.FieldName}, in.Branches[1].Unreadable)
	// an unreadable name alone does not make a branch inconsistent
	assert.Equal(t, []string{"b0"}, in.Inconsistencies())
}

func TestService_RepairAssignments_limit(t *testing.T) {
	store := testutil.PrepareStore(t)
	logger := &testutil.Logger{}
	svc := catalog.NewService(docrepos.NewCatalogRepository(store), logger)
	testutil.CreateCourse(t, store, "c1", "Math")
	testutil.CreateCourse(t, store, "c2", "Science")
	testutil.CreateCourse(t, store, "c3", "Art")
	for i := 0; i < 3; i++ {
		testutil.CreateBranch(t, store, fmt.Sprintf("b%d", i), "", nil, nil)
	}

	report, err := svc.RepairAssignments(context.Background(), catalog.RepairOptions{Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, 3, report.CourseCount)
	require.Len(t, report.Changes, 2)

	// courses are read in full, whatever the limit
	ids, _ := assignment(t, store, "b0")
	assert.Equal(t, []string{"c1", "c2"}, ids)
	ids, _ = assignment(t, store, "b1")
	assert.Equal(t, []string{"c2", "c3"}, ids)
	ids, _ = assignment(t, store, "b2")
	assert.Nil(t, ids)

	assert.Equal(t, []string{"repair limited to the first 2 branch(es)"}, logger.Lines("WARN"))

	logger.Messages = nil
	_, err = svc.RepairAssignments(context.Background(), catalog.RepairOptions{Limit: 2, DryRun: true})
	require.NoError(t, err)
	assert.Empty(t, logger.Lines("WARN"))
}
