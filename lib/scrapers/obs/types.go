package obs

// Exam is a single {name, grade} cell inside a course row. a grade that
// has not been announced yet is an empty string, never absent, so two
// snapshots can be compared field by field.
type Exam struct {
	Name  string `json:"sinavAdi"`
	Grade string `json:"sinavNotu"`
}

// Course is one row of the grades table (grd_not_listesi). Credits is
// zero until ExtractGPAInfo resolves it from the transcript page.
type Course struct {
	Name         string  `json:"dersAdi"`
	EnrollStatus string  `json:"durum"`
	Exams        []Exam  `json:"sinavlar"`
	Tskor        string  `json:"tskor"`
	Average      string  `json:"ort"`
	Letter       string  `json:"harfNotu"`
	FinalStatus  string  `json:"durumu"`
	Credits      float64 `json:"aktsOrKredi"`
}

// GPAInfo is derived wholesale from the transcript page, never mutated
// incrementally.
type GPAInfo struct {
	HarfKatsayi              map[string]float64 `json:"harfKatsayi"`
	TotalAktsOrKredi         float64            `json:"totalAktsOrKredi"`
	TotalPuan                float64            `json:"totalPuan"`
	DuplicateNoLetterLessons []string           `json:"duplicateNoLetterLessons"`
}

// Credentials as the login form wants them: the password is stored and
// passed around only in its portal-encoded form.
type Credentials struct {
	StudentId         string `json:"studentId"`
	EncryptedPassword string `json:"password"`
}

// SessionCookie is the persistable subset of an http.Cookie.
type SessionCookie struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Session holds everything needed to resume an authenticated portal
// session after a restart.
type Session struct {
	Cookies        []SessionCookie `json:"cookies"`
	MainUrl        string          `json:"mainUrl"`
	NotListPath    string          `json:"notListPath"`
	TranscriptPath string          `json:"transkriptPath"`
	Active         bool            `json:"active"`
}
