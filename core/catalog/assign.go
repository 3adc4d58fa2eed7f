package catalog

// pairSize is the number of courses given to the first and second branches.
const pairSize = 2

// AssignCourses returns the course ids assigned to the branch at position `i`
// of the retrieved branch sequence:
//	- branch 0 gets the first 2 course ids,
//	- branch 1 gets the last 2 course ids,
//	- every other branch gets all of them.
// Branches 0 and 1 get all course ids when there are fewer than 2.
// The result is never nil and never aliases `courseIDs`.
func AssignCourses(i int, courseIDs []string) []string {
	var ids []string
	switch {
	case len(courseIDs) < pairSize:
		ids = courseIDs
	case i == 0:
		ids = courseIDs[:pairSize]
	case i == 1:
		ids = courseIDs[len(courseIDs)-pairSize:]
	default:
		ids = courseIDs
	}
	assigned := make([]string, len(ids))
	copy(assigned, ids)
	return assigned
}

// Assignment is the course ids and parallel titles a branch should carry.
type Assignment struct {
	CourseIDs []string
	Titles    []string
}

// PlanAssignments computes the Assignment of every branch, by position.
func PlanAssignments(branches []Branch, courses []Course) []Assignment {
	courseIDs := CourseIDs(courses)
	titles := NewTitleIndex(courses)

	plan := make([]Assignment, 0, len(branches))
	for i := range branches {
		ids := AssignCourses(i, courseIDs)
		plan = append(plan, Assignment{CourseIDs: ids, Titles: titles.Titles(ids)})
	}
	return plan
}
