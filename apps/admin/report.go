package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/pmezard/go-difflib/difflib"

	"github.com/trezcool/masomo-admin/core/catalog"
)

var (
	headerColor = color.New(color.FgCyan, color.Bold)
	okColor     = color.New(color.FgGreen)
	warnColor   = color.New(color.FgYellow)
	errColor    = color.New(color.FgRed)
)

func joinList(list []string) string {
	if len(list) == 0 {
		return "-"
	}
	return strings.Join(list, ", ")
}

func newTable(w io.Writer, header ...string) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetHeader(header)
	table.SetAutoWrapText(false)
	table.SetRowLine(false)
	return table
}

func changeStatus(report catalog.RepairReport, change catalog.BranchChange) string {
	switch {
	case change.Applied && change.Changed:
		return okColor.Sprint("repaired")
	case change.Applied:
		return "unchanged"
	case !report.DryRun:
		return errColor.Sprint("not written")
	case change.Changed:
		return warnColor.Sprint("to repair")
	default:
		return "unchanged"
	}
}

// offeredDiff returns a unified diff of the branch's offered course titles, before and after.
func offeredDiff(change catalog.BranchChange) string {
	diff, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(strings.Join(change.OldTitles, "\n")),
		B:        difflib.SplitLines(strings.Join(change.NewTitles, "\n")),
		FromFile: change.BranchID + " (before)",
		ToFile:   change.BranchID + " (after)",
		Context:  1,
	})
	if err != nil {
		return err.Error()
	}
	return diff
}

// printUnreadable lists the branch fields that could not be read and were taken as empty.
func printUnreadable(w io.Writer, changes []catalog.BranchChange) {
	for _, change := range changes {
		if len(change.Unreadable) > 0 {
			_, _ = warnColor.Fprintf(w, "%s: unreadable %s, read as empty\n", change.BranchID, strings.Join(change.Unreadable, ", "))
		}
	}
}

func printRepairReport(w io.Writer, report catalog.RepairReport, diff bool) {
	title := "Branch course assignments"
	if report.DryRun {
		title += " (dry run)"
	}
	_, _ = headerColor.Fprintln(w, title)
	_, _ = fmt.Fprintf(w, "run %s, %d course(s)\n", report.RunID, report.CourseCount)

	table := newTable(w, "Branch", "Name", "Courses (before)", "Courses (after)", "Offered (after)", "Status")
	for _, change := range report.Changes {
		table.Append([]string{
			change.BranchID,
			change.Name,
			joinList(change.OldCourses),
			joinList(change.NewCourses),
			joinList(change.NewTitles),
			changeStatus(report, change),
		})
	}
	table.Render()
	printUnreadable(w, report.Changes)

	if diff {
		for _, change := range report.Changes {
			if change.Changed {
				_, _ = fmt.Fprint(w, offeredDiff(change))
			}
		}
	}

	if report.DryRun {
		_, _ = fmt.Fprintf(w, "%d of %d branch(es) to repair\n", report.ChangedCount(), len(report.Changes))
	} else {
		_, _ = fmt.Fprintf(w, "%d branch(es) written, %d changed\n", report.AppliedCount(), report.ChangedCount())
	}
}

func printInspection(w io.Writer, in catalog.Inspection) {
	inconsistent := in.Inconsistencies()
	outOfSync := make(map[string]bool, len(inconsistent))
	for _, id := range inconsistent {
		outOfSync[id] = true
	}

	_, _ = headerColor.Fprintln(w, "Branches")
	branches := newTable(w, "ID", "Name", "Assigned courses", "Courses offered")
	for _, b := range in.Branches {
		name := b.Name
		if outOfSync[b.ID] {
			name = errColor.Sprint(name)
		}
		branches.Append([]string{b.ID, name, joinList(b.Courses), joinList(b.CoursesOffered)})
	}
	branches.Render()
	for _, b := range in.Branches {
		if len(b.Unreadable) > 0 {
			_, _ = warnColor.Fprintf(w, "%s: unreadable %s, read as empty\n", b.ID, strings.Join(b.Unreadable, ", "))
		}
	}

	_, _ = headerColor.Fprintln(w, "Courses")
	courses := newTable(w, "Title", "ID")
	for _, c := range in.Courses {
		courses.Append([]string{c.Title, c.ID})
	}
	courses.Render()

	if len(inconsistent) == 0 {
		_, _ = okColor.Fprintf(w, "%d branch(es) in sync with their courses\n", len(in.Branches))
		return
	}
	_, _ = errColor.Fprintf(w, "%d branch(es) out of sync: %s\n", len(inconsistent), strings.Join(inconsistent, ", "))
}
