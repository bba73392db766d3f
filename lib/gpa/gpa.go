// Package gpa derives grade point averages from a course list and the
// letter-coefficient table scraped off the transcript-scenario page.
package gpa

import (
	"github.com/mustafazeydani/NotUyarX/lib/htmlutil"
	"github.com/mustafazeydani/NotUyarX/lib/scrapers/obs"
)

// Excluded reports whether a letter keeps its course out of every
// average. blank means not graded yet, "--" is the simulator's "no
// selection" entry and V marks a withdrawal.
func Excluded(letter string) bool {
	switch letter {
	case "", "--", "V":
		return true
	}
	return false
}

// Cumulative is the CGPA straight off the transcript totals.
func Cumulative(info obs.GPAInfo) float64 {
	if info.TotalAktsOrKredi == 0 {
		return 0
	}
	return info.TotalPuan / info.TotalAktsOrKredi
}

// Term averages the current course list only. overrides maps normalized
// course names to hypothetical letters and may be nil.
func Term(courses []obs.Course, info obs.GPAInfo, overrides map[string]string) float64 {
	var totalPuan, totalCredits float64
	for _, course := range courses {
		letter := effectiveLetter(course, overrides)
		if Excluded(letter) {
			continue
		}
		totalPuan += info.HarfKatsayi[letter] * course.Credits
		totalCredits += course.Credits
	}
	if totalCredits == 0 {
		return 0
	}
	return totalPuan / totalCredits
}

// CumulativeWithOverrides recomputes the CGPA as if the current-term
// courses carried the override letters. a course moving between the
// excluded and counted states moves its credit units into or out of the
// denominator with it, except for a course in DuplicateNoLetterLessons:
// its transcript sibling already contributed those credits, so only the
// weighted points change.
func CumulativeWithOverrides(courses []obs.Course, info obs.GPAInfo, overrides map[string]string) float64 {
	totalPuan := info.TotalPuan
	totalCredits := info.TotalAktsOrKredi

	duplicates := map[string]bool{}
	for _, name := range info.DuplicateNoLetterLessons {
		duplicates[htmlutil.NormalizeName(name)] = true
	}

	for _, course := range courses {
		letter := effectiveLetter(course, overrides)
		switch {
		case Excluded(letter):
			if Excluded(course.Letter) {
				continue
			}
			totalPuan -= info.HarfKatsayi[course.Letter] * course.Credits
			totalCredits -= course.Credits
		case Excluded(course.Letter) && !duplicates[htmlutil.NormalizeName(course.Name)]:
			totalPuan += info.HarfKatsayi[letter] * course.Credits
			totalCredits += course.Credits
		default:
			totalPuan += (info.HarfKatsayi[letter] - info.HarfKatsayi[course.Letter]) * course.Credits
		}
	}
	if totalCredits == 0 {
		return 0
	}
	return totalPuan / totalCredits
}

func effectiveLetter(course obs.Course, overrides map[string]string) string {
	if letter, ok := overrides[htmlutil.NormalizeName(course.Name)]; ok {
		return letter
	}
	return course.Letter
}
