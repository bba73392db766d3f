package gpa

import (
	"testing"

	"github.com/mustafazeydani/NotUyarX/lib/scrapers/obs"

	"github.com/stretchr/testify/require"
)

func testInfo() obs.GPAInfo {
	return obs.GPAInfo{
		HarfKatsayi: map[string]float64{
			"AA": 4.0, "BB": 3.0, "CC": 2.0, "FF": 0.0, "V": 0.0,
		},
		TotalAktsOrKredi:         8,
		TotalPuan:                18,
		DuplicateNoLetterLessons: []string{},
	}
}

func TestExcluded(t *testing.T) {
	for _, letter := range []string{"", "--", "V"} {
		require.True(t, Excluded(letter), letter)
	}
	require.False(t, Excluded("FF"))
	require.False(t, Excluded("AA"))
}

func TestCumulative(t *testing.T) {
	require.Equal(t, 2.25, Cumulative(testInfo()))
	require.Equal(t, 0.0, Cumulative(obs.GPAInfo{TotalPuan: 10}))
}

func TestTerm(t *testing.T) {
	info := testInfo()
	courses := []obs.Course{
		{Name: "MATEMATİK I", Letter: "BB", Credits: 6},
		{Name: "FİZİK I", Credits: 5},
		{Name: "BEDEN EĞİTİMİ", Letter: "V", Credits: 1},
	}

	// only the graded, non-withdrawn course counts: 3.0*6 / 6
	require.Equal(t, 3.0, Term(courses, info, nil))

	// a what-if letter pulls the ungraded course into the average
	avg := Term(courses, info, map[string]string{"fizik i": "CC"})
	require.InDelta(t, (3.0*6+2.0*5)/11, avg, 1e-9)

	require.Equal(t, 0.0, Term(nil, info, nil))
}

func TestCumulativeWithOverrides(t *testing.T) {
	courses := []obs.Course{
		{Name: "MATEMATİK I", Letter: "BB", Credits: 4},
		{Name: "FİZİK I", Credits: 5},
	}

	t.Run("no overrides leaves the transcript average", func(t *testing.T) {
		require.Equal(t, 2.25, CumulativeWithOverrides(courses, testInfo(), nil))
	})

	t.Run("counted to counted swaps the points", func(t *testing.T) {
		avg := CumulativeWithOverrides(courses, testInfo(), map[string]string{
			"matematik i": "AA",
		})
		require.InDelta(t, (18+(4.0-3.0)*4)/8, avg, 1e-9)
	})

	t.Run("counted to excluded removes points and credits", func(t *testing.T) {
		avg := CumulativeWithOverrides(courses, testInfo(), map[string]string{
			"matematik i": "V",
		})
		require.InDelta(t, (18-3.0*4)/(8-4), avg, 1e-9)
	})

	t.Run("excluded to counted adds points and credits", func(t *testing.T) {
		avg := CumulativeWithOverrides(courses, testInfo(), map[string]string{
			"fizik i": "CC",
		})
		require.InDelta(t, (18+2.0*5)/(8+5), avg, 1e-9)
	})

	t.Run("duplicate course keeps its sibling's credits", func(t *testing.T) {
		info := testInfo()
		info.DuplicateNoLetterLessons = []string{"FİZİK I"}
		avg := CumulativeWithOverrides(courses, info, map[string]string{
			"fizik i": "CC",
		})
		require.InDelta(t, (18+2.0*5)/8, avg, 1e-9)
	})

	t.Run("zero credits yields zero", func(t *testing.T) {
		info := obs.GPAInfo{HarfKatsayi: map[string]float64{"V": 0}}
		single := []obs.Course{{Name: "MATEMATİK I", Letter: "BB", Credits: 0}}
		require.Equal(t, 0.0, CumulativeWithOverrides(single, info, nil))
	})
}
