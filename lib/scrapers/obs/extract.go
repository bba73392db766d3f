package obs

import (
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"github.com/mustafazeydani/NotUyarX/lib/htmlutil"

	"github.com/PuerkitoBio/goquery"
	"github.com/antzucaro/matchr"
)

// IsExpired reports whether a grades-page response came from a dead
// session. the portal has no expiry endpoint, it only signals it
// through this sentinel header.
func IsExpired(headers http.Header) bool {
	return headers.Get("Expires") == "-1"
}

// RequiresProfileUpdate detects the mandatory "update student info"
// interstitial. the page holds a save button instead of the grades
// table until the form is submitted back.
func RequiresProfileUpdate(doc *goquery.Document) bool {
	return doc.Find("#btnKaydet").Length() > 0
}

var examNameJunk = regexp.MustCompile(`[:\s]`)

// ExtractCourses turns a grades page into course rows. a page whose
// table has no data rows is a valid empty result: it means a new
// semester with no enrollment yet, and the caller must clear any
// previously stored list.
func ExtractCourses(doc *goquery.Document) []Course {
	rows := doc.Find("table#grd_not_listesi tr")
	if rows.Length() <= 1 {
		return nil
	}

	var courses []Course
	rows.Each(func(i int, row *goquery.Selection) {
		if i == 0 {
			// header row
			return
		}

		course := Course{
			Name:         strings.TrimSpace(row.Find("td:nth-child(3)").Text()),
			EnrollStatus: strings.TrimSpace(row.Find("td:nth-child(4)").Text()),
			Average:      strings.TrimSpace(row.Find("td:nth-child(6)").Text()),
			Letter:       strings.TrimSpace(row.Find("td:nth-child(7)").Text()),
			FinalStatus:  strings.TrimSpace(row.Find("td:nth-child(8)").Text()),
		}

		examCell := row.Find("td:nth-child(5)")
		course.Tskor = strings.TrimSpace(examCell.Find("[id^='grd_not_listesi_lblTSKOR']").Text())

		names := examCell.Find("[id^='grd_not_listesi_lblHSnv']")
		grades := examCell.Find("[id^='grd_not_listesi_lblSnv']")
		grades.Each(func(j int, grade *goquery.Selection) {
			// an exam slot without a grade yet renders as an empty label
			if grade.Text() == "" {
				return
			}
			course.Exams = append(course.Exams, Exam{
				Name:  examNameJunk.ReplaceAllString(names.Eq(j).Text(), ""),
				Grade: strings.TrimSpace(grade.Text()),
			})
		})

		courses = append(courses, course)
	})
	return courses
}

// ExtractMenuPaths pulls the relative paths of the grades page and the
// transcript-scenario page out of the post-login menu. the paths are
// session scoped, they change on every login.
func ExtractMenuPaths(doc *goquery.Document) (notListPath, transcriptPath string) {
	doc.Find("a").Each(func(_ int, a *goquery.Selection) {
		caption := a.Find("p")
		if len(caption.Nodes) == 0 {
			return
		}
		label := htmlutil.CleanText(htmlutil.GetText(caption.Nodes[0]))
		onclick, ok := a.Attr("onclick")
		if !ok {
			return
		}
		parts := strings.Split(onclick, "'")
		if len(parts) < 2 {
			return
		}

		switch {
		case strings.Contains(label, "Not Liste") && !strings.Contains(label, "Haz. Not Listesi"):
			notListPath = parts[1]
		case strings.Contains(label, "Transkript Senaryosu"):
			transcriptPath = parts[1]
		}
	})
	return notListPath, transcriptPath
}

type transcriptRow struct {
	name   string
	kredi  string
	akts   string
	letter string
}

// letters that never enter the accumulated totals
func excludedFromTotals(letter string) bool {
	return letter == "" || letter == "V"
}

// ExtractGPAInfo builds the letter-coefficient table and the credit
// totals from the transcript-scenario page. matching rows also resolve
// Credits on the passed course list in place.
func ExtractGPAInfo(doc *goquery.Document, courses []Course) GPAInfo {
	info := GPAInfo{
		HarfKatsayi:              map[string]float64{},
		DuplicateNoLetterLessons: []string{},
	}

	// letter -> coefficient dropdown, first entry is "no selection"
	// and the last is a placeholder
	options := doc.Find("#cmbWinHarf option")
	options.Each(func(i int, opt *goquery.Selection) {
		if i == 0 || i == options.Length()-1 {
			return
		}
		text := opt.Text()
		colon := strings.Index(text, ":")
		if colon < 0 {
			return
		}
		letter := strings.Fields(text[:colon])
		if len(letter) == 0 {
			return
		}
		coefficient, err := strconv.ParseFloat(
			strings.ReplaceAll(strings.TrimSpace(text[colon+1:]), ",", "."), 64)
		if err != nil {
			return
		}
		info.HarfKatsayi[letter[0]] = coefficient
	})

	useAkts := strings.TrimSpace(doc.Find("#lblKrediAktsBaslik").Text()) == "AKTS"

	var rows []transcriptRow
	names := doc.Find("[id^='grd_genel_lblDersAd']")
	kredis := doc.Find("[id^='grd_genel_lblKredi']")
	aktss := doc.Find("[id^='grd_genel_lblAKTS']")
	letters := doc.Find("[id^='grd_genel_lblHarf']")
	names.Each(func(i int, name *goquery.Selection) {
		row := transcriptRow{
			name:   strings.TrimSpace(name.Text()),
			kredi:  strings.TrimSpace(kredis.Eq(i).Text()),
			akts:   strings.TrimSpace(aktss.Eq(i).Text()),
			letter: strings.TrimSpace(letters.Eq(i).Text()),
		}
		if row.name == "" {
			return
		}
		rows = append(rows, row)
	})

	// the transcript lists a retaken course twice. keep the copy that
	// carries a letter; a letterless duplicate is recorded so the
	// calculator can avoid double counting it later.
	deduped := make([]transcriptRow, 0, len(rows))
	for i, row := range rows {
		if row.letter == "" {
			duplicate := false
			for j, other := range rows {
				if j != i && htmlutil.NormalizeName(other.name) == htmlutil.NormalizeName(row.name) {
					duplicate = true
					break
				}
			}
			if duplicate {
				info.DuplicateNoLetterLessons = append(info.DuplicateNoLetterLessons, row.name)
				deduped = append(deduped, row)
				continue
			}
		}
		superseded := false
		for j := i + 1; j < len(rows); j++ {
			if htmlutil.NormalizeName(rows[j].name) == htmlutil.NormalizeName(row.name) && rows[j].letter != "" {
				superseded = true
				break
			}
		}
		if !superseded {
			deduped = append(deduped, row)
		}
	}

	for _, row := range rows {
		credits := creditValue(row, useAkts)
		if idx := findCourse(courses, row.name); idx >= 0 {
			courses[idx].Credits = credits
		}
	}

	for _, row := range deduped {
		if excludedFromTotals(row.letter) {
			continue
		}
		credits := creditValue(row, useAkts)
		info.TotalAktsOrKredi += credits
		info.TotalPuan += info.HarfKatsayi[row.letter] * credits
	}
	return info
}

func creditValue(row transcriptRow, useAkts bool) float64 {
	raw := row.kredi
	if useAkts {
		raw = row.akts
	}
	credits, err := strconv.ParseFloat(strings.ReplaceAll(raw, ",", "."), 64)
	if err != nil {
		return 0
	}
	return credits
}

// findCourse matches a transcript row to a fetched course by normalized
// name, falling back to the closest Jaro-Winkler match when the two
// pages render the name slightly differently.
func findCourse(courses []Course, name string) int {
	target := htmlutil.NormalizeName(name)
	for i, c := range courses {
		if htmlutil.NormalizeName(c.Name) == target {
			return i
		}
	}

	best := -1
	var bestSim float64
	for i, c := range courses {
		sim := matchr.JaroWinkler(htmlutil.NormalizeName(c.Name), target, false)
		if sim > bestSim {
			bestSim = sim
			best = i
		}
	}
	if bestSim >= 0.95 {
		return best
	}
	return -1
}
