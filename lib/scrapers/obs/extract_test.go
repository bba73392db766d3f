package obs

import (
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/require"
)

func loadFixture(t *testing.T, name string) *goquery.Document {
	f, err := os.Open(filepath.Join("testdata", name))
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	doc, err := goquery.NewDocumentFromReader(f)
	if err != nil {
		t.Fatal(err)
	}
	return doc
}

func TestExtractCourses(t *testing.T) {
	doc := loadFixture(t, "not_listesi.html")

	require.False(t, RequiresProfileUpdate(doc))

	courses := ExtractCourses(doc)
	require.Len(t, courses, 2)

	mat := courses[0]
	require.Equal(t, "MATEMATİK I", mat.Name)
	require.Equal(t, "Zorunlu", mat.EnrollStatus)
	require.Equal(t, []Exam{
		{Name: "Vize", Grade: "80"},
		{Name: "Final", Grade: "70"},
	}, mat.Exams)
	require.Equal(t, "65,5", mat.Tskor)
	require.Equal(t, "74", mat.Average)
	require.Equal(t, "BB", mat.Letter)
	require.Equal(t, "Geçti", mat.FinalStatus)

	fiz := courses[1]
	require.Equal(t, "FİZİK I", fiz.Name)
	// the Final slot has no grade yet, only announced exams are kept
	require.Equal(t, []Exam{{Name: "Vize", Grade: "55"}}, fiz.Exams)
	require.Equal(t, "", fiz.Letter)
	require.Equal(t, "", fiz.Average)
}

func TestExtractCoursesEmptyTable(t *testing.T) {
	doc := loadFixture(t, "not_listesi_empty.html")

	// zero data rows means a fresh semester with no enrollment, an
	// empty successful result rather than an error
	courses := ExtractCourses(doc)
	require.Empty(t, courses)
}

func TestRequiresProfileUpdate(t *testing.T) {
	doc := loadFixture(t, "profile_update.html")
	require.True(t, RequiresProfileUpdate(doc))
}

func TestIsExpired(t *testing.T) {
	headers := http.Header{}
	require.False(t, IsExpired(headers))

	headers.Set("Expires", "-1")
	require.True(t, IsExpired(headers))
}

func TestExtractMenuPaths(t *testing.T) {
	doc := loadFixture(t, "login_success.html")

	notListPath, transcriptPath := ExtractMenuPaths(doc)
	require.Equal(t, "not_goster.aspx?curOp=must", notListPath)
	require.Equal(t, "trns_senaryo.aspx?curOp=must", transcriptPath)
}

func TestExtractGPAInfo(t *testing.T) {
	doc := loadFixture(t, "transkript.html")

	courses := []Course{
		{Name: "MATEMATİK I", Letter: "BB"},
		{Name: "FİZİK I"},
	}
	info := ExtractGPAInfo(doc, courses)

	require.Equal(t, 4.0, info.HarfKatsayi["AA"])
	require.Equal(t, 3.0, info.HarfKatsayi["BB"])
	require.Equal(t, 0.0, info.HarfKatsayi["FF"])
	// first ("no selection") and last ("placeholder") entries skipped
	require.NotContains(t, info.HarfKatsayi, "Seçiniz")
	require.NotContains(t, info.HarfKatsayi, "--")

	// AKTS basis: MATEMATİK I contributes 3.0*6, TÜRK DİLİ I (FF)
	// contributes 0*2 but its 2 credits still count; the V and
	// letterless rows contribute nothing to either total
	require.Equal(t, 8.0, info.TotalAktsOrKredi)
	require.Equal(t, 18.0, info.TotalPuan)

	require.Equal(t, []string{"TÜRK DİLİ I"}, info.DuplicateNoLetterLessons)

	// credits resolved onto the fetched courses in place
	require.Equal(t, 6.0, courses[0].Credits)
	require.Equal(t, 5.0, courses[1].Credits)
}
