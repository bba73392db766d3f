package marks

import (
	"fmt"

	"github.com/mustafazeydani/NotUyarX/lib/htmlutil"
	"github.com/mustafazeydani/NotUyarX/lib/notify"
	"github.com/mustafazeydani/NotUyarX/lib/scrapers/obs"
)

// Diff compares two course lists and returns one notification per
// newly finalized exam. Courses are paired by normalized name, never
// by list position: the portal reorders rows between fetches. Courses
// present only in current are new enrollments with no baseline and
// yield nothing. Identical lists yield an empty result.
func Diff(previous, current []obs.Course) []notify.Notification {
	baseline := map[string]obs.Course{}
	for _, course := range previous {
		baseline[htmlutil.NormalizeName(course.Name)] = course
	}

	var out []notify.Notification
	for _, course := range current {
		prev, ok := baseline[htmlutil.NormalizeName(course.Name)]
		if !ok {
			continue
		}

		known := map[string]string{}
		for _, exam := range prev.Exams {
			known[exam.Name] = exam.Grade
		}
		for _, exam := range course.Exams {
			if exam.Grade == "" || known[exam.Name] != "" {
				continue
			}
			out = append(out, notify.Notification{
				Title: course.Name,
				Body:  fmt.Sprintf("%s: %s", exam.Name, exam.Grade),
			})
		}
	}
	return out
}

// LetterChanged reports whether any paired course's letter grade
// differs between the two lists. A changed letter invalidates the
// stored GPAInfo, which is then recomputed wholesale.
func LetterChanged(previous, current []obs.Course) bool {
	baseline := map[string]string{}
	for _, course := range previous {
		baseline[htmlutil.NormalizeName(course.Name)] = course.Letter
	}
	for _, course := range current {
		letter, ok := baseline[htmlutil.NormalizeName(course.Name)]
		if ok && letter != course.Letter {
			return true
		}
	}
	return false
}
