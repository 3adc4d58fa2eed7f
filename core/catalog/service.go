package catalog

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/kat-co/vala"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo-admin/core"
)

var (
	// errors
	ErrBranchNotFound = errors.New("branch not found")
	ErrInvalidCourse  = errors.New("invalid course record")
	ErrInvalidBranch  = errors.New("invalid branch record")
)

type (
	Repository interface {
		// QueryCourses returns courses in store order; limit <= 0 means all of them.
		QueryCourses(ctx context.Context, limit int) ([]Course, error)
		// QueryBranches returns branches in store order; limit <= 0 means all of them.
		QueryBranches(ctx context.Context, limit int) ([]Branch, error)
		// UpdateBranchAssignments sets the branch's assigned course ids and the parallel course titles.
		UpdateBranchAssignments(ctx context.Context, branchID string, courseIDs, titles []string) error
	}

	Service interface {
		RepairAssignments(ctx context.Context, opts RepairOptions) (RepairReport, error)
		InspectAssignments(ctx context.Context, opts InspectOptions) (Inspection, error)
	}

	service struct {
		repo   Repository
		logger core.Logger
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, logger core.Logger) Service {
	vala.BeginValidation().Validate(
		vala.IsNotNil(repo, "repo"),
		vala.IsNotNil(logger, "logger"),
	).CheckAndPanic()

	return &service{repo: repo, logger: logger}
}

type RepairOptions struct {
	DryRun bool
	// Limit bounds the branches repaired to the first Limit ones (<= 0: all of them).
	// Courses are always read in full.
	Limit int
}

type BranchChange struct {
	BranchID   string
	Name       string
	OldCourses []string
	NewCourses []string
	OldTitles  []string
	NewTitles  []string
	Unreadable []string // fields read as empty, see Branch.Unreadable
	Changed    bool
	Applied    bool
}

type RepairReport struct {
	RunID       core.RunID
	DryRun      bool
	CourseCount int
	Changes     []BranchChange
}

func (r RepairReport) ChangedCount() int {
	var n int
	for _, c := range r.Changes {
		if c.Changed {
			n++
		}
	}
	return n
}

func (r RepairReport) AppliedCount() int {
	var n int
	for _, c := range r.Changes {
		if c.Applied {
			n++
		}
	}
	return n
}

// RepairAssignments rewrites every branch's assigned courses and title cache following AssignCourses.
// Branches are written one at a time, in store order; the first failure stops the run
// and the partial report is returned along with the error. Writes already made are kept.
func (svc *service) RepairAssignments(ctx context.Context, opts RepairOptions) (RepairReport, error) {
	report := RepairReport{
		RunID:  core.RunID(uuid.New().String()),
		DryRun: opts.DryRun,
	}

	// assignments depend on every course: only the branches are bounded
	courses, err := svc.repo.QueryCourses(ctx, 0)
	if err != nil {
		return report, errors.Wrap(err, "loading courses")
	}
	branches, err := svc.repo.QueryBranches(ctx, opts.Limit)
	if err != nil {
		return report, errors.Wrap(err, "loading branches")
	}
	report.CourseCount = len(courses)
	if opts.Limit > 0 && !opts.DryRun {
		svc.logger.Warn(fmt.Sprintf("repair limited to the first %d branch(es)", opts.Limit), report.RunID)
	}
	svc.logger.Info(
		fmt.Sprintf("repairing branch assignments: %d branch(es), %d course(s), dry run: %t", len(branches), len(courses), opts.DryRun),
		report.RunID,
	)

	plan := PlanAssignments(branches, courses)
	report.Changes = make([]BranchChange, 0, len(branches))
	for i, b := range branches {
		change := BranchChange{
			BranchID:   b.ID,
			Name:       b.DisplayName(),
			OldCourses: b.Assignments.Courses,
			NewCourses: plan[i].CourseIDs,
			OldTitles:  b.OperationalDetails.CoursesOffered,
			NewTitles:  plan[i].Titles,
			Unreadable: b.Unreadable,
		}
		change.Changed = b.CacheUnreadable() ||
			!equalStrings(change.OldCourses, change.NewCourses) ||
			!equalStrings(change.OldTitles, change.NewTitles)
		if len(b.Unreadable) > 0 {
			svc.logger.Warn(fmt.Sprintf("branch %q: unreadable %s, read as empty", b.ID, strings.Join(b.Unreadable, ", ")), report.RunID)
		}

		if !opts.DryRun {
			if err := svc.repo.UpdateBranchAssignments(ctx, b.ID, change.NewCourses, change.NewTitles); err != nil {
				report.Changes = append(report.Changes, change)
				svc.logger.Error(fmt.Sprintf("updating branch %q: %v", b.ID, err), err, report.RunID)
				return report, errors.Wrapf(err, "updating branch %q", b.ID)
			}
			change.Applied = true
		}
		report.Changes = append(report.Changes, change)
	}

	svc.logger.Info(
		fmt.Sprintf("branch assignments repaired: %d changed, %d written", report.ChangedCount(), report.AppliedCount()),
		report.RunID,
	)
	return report, nil
}

type InspectOptions struct {
	Limit int // bounds each collection fetch; <= 0 fetches everything
}

type BranchSummary struct {
	ID             string
	Name           string
	Courses        []string
	CoursesOffered []string
	Unreadable     []string
}

type CourseSummary struct {
	ID    string
	Title string
}

type Inspection struct {
	Branches []BranchSummary
	Courses  []CourseSummary
}

// Inconsistencies returns the ids of the branches whose title cache does not match
// their assigned courses resolved against the inspected courses.
func (in Inspection) Inconsistencies() []string {
	courses := make([]Course, 0, len(in.Courses))
	for _, c := range in.Courses {
		courses = append(courses, Course{ID: c.ID, Title: c.Title})
	}
	titles := NewTitleIndex(courses)

	ids := make([]string, 0)
	for _, b := range in.Branches {
		if cacheUnreadable(b.Unreadable) || !equalStrings(titles.Titles(b.Courses), b.CoursesOffered) {
			ids = append(ids, b.ID)
		}
	}
	return ids
}

func (in Inspection) Consistent() bool {
	return len(in.Inconsistencies()) == 0
}

// InspectAssignments reads the branches' current assignments and the courses. It never writes.
func (svc *service) InspectAssignments(ctx context.Context, opts InspectOptions) (Inspection, error) {
	branches, err := svc.repo.QueryBranches(ctx, opts.Limit)
	if err != nil {
		return Inspection{}, errors.Wrap(err, "loading branches")
	}
	courses, err := svc.repo.QueryCourses(ctx, opts.Limit)
	if err != nil {
		return Inspection{}, errors.Wrap(err, "loading courses")
	}

	in := Inspection{
		Branches: make([]BranchSummary, 0, len(branches)),
		Courses:  make([]CourseSummary, 0, len(courses)),
	}
	for _, b := range branches {
		in.Branches = append(in.Branches, BranchSummary{
			ID:             b.ID,
			Name:           b.DisplayName(),
			Courses:        b.Assignments.Courses,
			CoursesOffered: b.OperationalDetails.CoursesOffered,
			Unreadable:     b.Unreadable,
		})
	}
	for _, c := range courses {
		in.Courses = append(in.Courses, CourseSummary{ID: c.ID, Title: c.Title})
	}
	return in, nil
}

// equalStrings treats nil and empty slices as equal.
func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
