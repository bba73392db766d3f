package marks

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/mustafazeydani/NotUyarX/lib/notify"
	"github.com/mustafazeydani/NotUyarX/lib/obscipher"
	"github.com/mustafazeydani/NotUyarX/lib/scrapers/obs"
	"github.com/mustafazeydani/NotUyarX/lib/testutil"
	"github.com/mustafazeydani/NotUyarX/services/keychain"
	keychaindb "github.com/mustafazeydani/NotUyarX/services/keychain/db"
	marksdb "github.com/mustafazeydani/NotUyarX/services/marks/db"

	"github.com/stretchr/testify/require"
)

type fakePortal struct {
	loginErr      error
	loginCalls    int
	expireOnce    bool
	expireGPAOnce bool
	courses       []obs.Course
	info          obs.GPAInfo
	gpaCalls      int
	session       obs.Session
	restored      int
}

func (p *fakePortal) Login(ctx context.Context, creds obs.Credentials) error {
	p.loginCalls++
	if p.loginErr != nil {
		return p.loginErr
	}
	p.session = obs.Session{
		Cookies:     []obs.SessionCookie{{Name: "ASP.NET_SessionId", Value: "fresh"}},
		MainUrl:     "https://obs.example.edu.tr/oibs/ogrenci/start.aspx",
		NotListPath: "not_goster.aspx",
		Active:      true,
	}
	return nil
}

func (p *fakePortal) RestoreSession(session obs.Session) error {
	p.restored++
	p.session = session
	return nil
}

func (p *fakePortal) Session() obs.Session {
	return p.session
}

func (p *fakePortal) FetchCourses(ctx context.Context) ([]obs.Course, error) {
	if p.expireOnce {
		p.expireOnce = false
		return nil, obs.ErrSessionExpired
	}
	return p.courses, nil
}

func (p *fakePortal) FetchGPAInfo(ctx context.Context, courses []obs.Course) (obs.GPAInfo, error) {
	p.gpaCalls++
	if p.expireGPAOnce {
		p.expireGPAOnce = false
		return obs.GPAInfo{}, obs.ErrSessionExpired
	}
	return p.info, nil
}

type fakeScheduler struct {
	registered  bool
	minutes     int
	unregisters int
}

func (s *fakeScheduler) Register(minutes int, tick func()) error {
	s.registered = true
	s.minutes = minutes
	return nil
}

func (s *fakeScheduler) Unregister() {
	s.registered = false
	s.unregisters++
}

type fixture struct {
	service   *Service
	keychain  keychain.Service
	portal    *fakePortal
	sink      *notify.Memory
	scheduler *fakeScheduler
	host      string
}

func setup(t *testing.T, options Options) fixture {
	keychainRes, cleanupKeychain := testutil.SetupService(t, testutil.ServiceParams{
		Name:     "services/marks:keychain",
		DbSchema: keychaindb.Schema,
	})
	t.Cleanup(cleanupKeychain)
	marksRes, cleanupMarks := testutil.SetupService(t, testutil.ServiceParams{
		Name:     "services/marks",
		DbSchema: marksdb.Schema,
	})
	t.Cleanup(cleanupMarks)

	// the connectivity probe needs a live port to dial
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	t.Cleanup(server.Close)

	portal := &fakePortal{}
	sink := notify.NewMemory()
	scheduler := &fakeScheduler{}

	options.Keychain = keychain.NewService(keychainRes.DB)
	options.Notifier = sink
	options.Scheduler = scheduler
	options.NewPortal = func(host string) (Portal, error) {
		return portal, nil
	}

	return fixture{
		service:   NewService(marksRes.DB, options),
		keychain:  options.Keychain,
		portal:    portal,
		sink:      sink,
		scheduler: scheduler,
		host:      server.URL,
	}
}

func (f fixture) registerDirectly(t *testing.T, ctx context.Context) {
	require.NoError(t, f.keychain.SetUniversity(ctx, f.host))
	require.NoError(t, f.keychain.SetCredentials(ctx, obs.Credentials{
		StudentId:         "20250001",
		EncryptedPassword: obscipher.EncryptPassword("hunter2"),
	}))
}

// alerts filters out the silent housekeeping notifications.
func alerts(sink *notify.Memory) []notify.Notification {
	var out []notify.Notification
	for _, n := range sink.Pushed() {
		if !n.Silent {
			out = append(out, n)
		}
	}
	return out
}

func TestTickBaselineThenDiff(t *testing.T) {
	f := setup(t, Options{})
	ctx := context.Background()
	f.registerDirectly(t, ctx)

	f.portal.courses = []obs.Course{
		{Name: "Algebra", Exams: []obs.Exam{{Name: "Midterm", Grade: "80"}}},
	}
	f.portal.info = obs.GPAInfo{
		HarfKatsayi:              map[string]float64{"BB": 3.0},
		DuplicateNoLetterLessons: []string{},
	}

	// first tick logs in and stores the baseline without alerting
	f.service.Tick(ctx)
	require.Equal(t, 1, f.portal.loginCalls)
	require.Equal(t, 1, f.portal.gpaCalls)
	require.Empty(t, alerts(f.sink))

	stored, ok, err := f.service.State().Courses(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, stored, 1)

	session, ok, err := f.keychain.GetSession(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, session.Active)

	// second tick sees the finalized exam
	f.portal.courses = []obs.Course{
		{Name: "Algebra", Letter: "BB", Exams: []obs.Exam{
			{Name: "Midterm", Grade: "80"},
			{Name: "Final", Grade: "70"},
		}},
	}
	f.service.Tick(ctx)

	got := alerts(f.sink)
	require.Len(t, got, 1)
	require.Equal(t, "Algebra", got[0].Title)
	require.Equal(t, "Final: 70", got[0].Body)

	// the letter change forced a gpa refresh, the fresh session was
	// reused instead of logging in again
	require.Equal(t, 2, f.portal.gpaCalls)
	require.Equal(t, 1, f.portal.loginCalls)
	require.Equal(t, 1, f.portal.restored)

	// the transient notification got dismissed both times
	require.Len(t, f.sink.Active(), 1)
}

func TestTickUnchangedListSkipsGPARefresh(t *testing.T) {
	f := setup(t, Options{})
	ctx := context.Background()
	f.registerDirectly(t, ctx)

	f.portal.courses = []obs.Course{
		{Name: "Algebra", Exams: []obs.Exam{{Name: "Midterm", Grade: "80"}}},
	}
	f.service.Tick(ctx)
	f.service.Tick(ctx)

	require.Empty(t, alerts(f.sink))
	require.Equal(t, 1, f.portal.gpaCalls)
}

func TestTickStaleSessionReauthenticates(t *testing.T) {
	f := setup(t, Options{SessionStaleness: time.Nanosecond})
	ctx := context.Background()
	f.registerDirectly(t, ctx)

	f.portal.courses = []obs.Course{{Name: "Algebra"}}
	f.service.Tick(ctx)
	f.service.Tick(ctx)

	require.Equal(t, 2, f.portal.loginCalls)
	require.Equal(t, 0, f.portal.restored)
}

func TestTickExpiredSessionRetriesOnce(t *testing.T) {
	f := setup(t, Options{})
	ctx := context.Background()
	f.registerDirectly(t, ctx)

	f.portal.courses = []obs.Course{
		{Name: "Algebra", Exams: []obs.Exam{{Name: "Midterm", Grade: "80"}}},
	}
	f.service.Tick(ctx)
	require.Equal(t, 1, f.portal.loginCalls)

	// the restored session turns out to be dead mid-tick
	f.portal.expireOnce = true
	f.service.Tick(ctx)

	require.Equal(t, 2, f.portal.loginCalls)
	stored, ok, err := f.service.State().Courses(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, stored, 1)
}

func TestTickExpiredSessionDuringGPARefresh(t *testing.T) {
	f := setup(t, Options{})
	ctx := context.Background()
	f.registerDirectly(t, ctx)

	f.portal.courses = []obs.Course{
		{Name: "Algebra", Exams: []obs.Exam{{Name: "Midterm", Grade: "80"}}},
	}
	f.service.Tick(ctx)
	require.Equal(t, 1, f.portal.loginCalls)
	require.Equal(t, 1, f.portal.gpaCalls)

	// the letter change forces a transcript fetch, and the session dies
	// between the two page loads
	f.portal.courses = []obs.Course{
		{Name: "Algebra", Letter: "BB", Exams: []obs.Exam{{Name: "Midterm", Grade: "80"}}},
	}
	f.portal.expireGPAOnce = true
	f.service.Tick(ctx)

	require.Equal(t, 2, f.portal.loginCalls)
	require.Equal(t, 3, f.portal.gpaCalls)
	require.Empty(t, alerts(f.sink))

	stored, ok, err := f.service.State().Courses(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "BB", stored[0].Letter)
}

func TestTickEmptySemesterClearsState(t *testing.T) {
	f := setup(t, Options{})
	ctx := context.Background()
	f.registerDirectly(t, ctx)

	f.portal.courses = []obs.Course{
		{Name: "Algebra", Exams: []obs.Exam{{Name: "Midterm", Grade: "80"}}},
	}
	f.service.Tick(ctx)

	f.portal.courses = nil
	f.service.Tick(ctx)

	_, ok, err := f.service.State().Courses(ctx)
	require.NoError(t, err)
	require.False(t, ok)
	_, ok, err = f.service.State().GPAInfo(ctx)
	require.NoError(t, err)
	require.False(t, ok)
	// an empty semester is not an error, nothing was alerted
	require.Empty(t, alerts(f.sink))
}

func TestTickLoginFailureClearsCredentials(t *testing.T) {
	f := setup(t, Options{})
	ctx := context.Background()
	f.registerDirectly(t, ctx)
	require.NoError(t, f.service.StartPolling(ctx, 5))

	f.portal.loginErr = &obs.LoginError{PortalMessage: "Kullanıcı adı veya şifre hatalı"}
	f.service.Tick(ctx)

	_, ok, err := f.keychain.GetCredentials(ctx)
	require.NoError(t, err)
	require.False(t, ok)
	require.False(t, f.scheduler.registered)

	got := alerts(f.sink)
	require.Len(t, got, 1)
	require.Contains(t, got[0].Body, "şifre hatalı")

	// the stop survives a restart
	enabled, _, err := f.service.State().PollingPreference(ctx)
	require.NoError(t, err)
	require.False(t, enabled)
	require.NoError(t, f.service.ResumePolling(ctx))
	require.False(t, f.scheduler.registered)
}

func TestTickGenericFailureKeepsCredentials(t *testing.T) {
	f := setup(t, Options{})
	ctx := context.Background()
	f.registerDirectly(t, ctx)
	require.NoError(t, f.service.StartPolling(ctx, 5))

	f.portal.loginErr = errors.New("unexpected page structure")
	f.service.Tick(ctx)

	_, ok, err := f.keychain.GetCredentials(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.False(t, f.scheduler.registered)
	require.Len(t, alerts(f.sink), 1)

	// the session is marked dead and the polling preference is off, so
	// a restart stays stopped until the user re-enables it
	active, err := f.service.State().SessionActive(ctx)
	require.NoError(t, err)
	require.False(t, active)
	enabled, _, err := f.service.State().PollingPreference(ctx)
	require.NoError(t, err)
	require.False(t, enabled)
	require.NoError(t, f.service.ResumePolling(ctx))
	require.False(t, f.scheduler.registered)
}

func TestTickDialFailureStaysSilent(t *testing.T) {
	f := setup(t, Options{})
	ctx := context.Background()
	f.registerDirectly(t, ctx)
	require.NoError(t, f.service.StartPolling(ctx, 5))

	// the portal dropped between the reachability probe and the request
	f.portal.loginErr = &url.Error{
		Op:  "Post",
		URL: f.host,
		Err: &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")},
	}
	f.service.Tick(ctx)

	require.Empty(t, alerts(f.sink))
	require.True(t, f.scheduler.registered)
	enabled, _, err := f.service.State().PollingPreference(ctx)
	require.NoError(t, err)
	require.True(t, enabled)
}

func TestTickProtocolFailureStopsPolling(t *testing.T) {
	f := setup(t, Options{})
	ctx := context.Background()
	f.registerDirectly(t, ctx)
	require.NoError(t, f.service.StartPolling(ctx, 5))

	// a reachable host answering with a broken handshake is not
	// transient noise, it needs the user's attention
	f.portal.loginErr = &url.Error{
		Op:  "Post",
		URL: f.host,
		Err: errors.New("tls: failed to verify certificate"),
	}
	f.service.Tick(ctx)

	require.False(t, f.scheduler.registered)
	require.Len(t, alerts(f.sink), 1)

	// the credentials survive, only the schedule stops
	_, ok, err := f.keychain.GetCredentials(ctx)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestTickUnreachableHostStaysSilent(t *testing.T) {
	f := setup(t, Options{DialTimeout: 50 * time.Millisecond})
	ctx := context.Background()

	// port 1 refuses connections immediately
	require.NoError(t, f.keychain.SetUniversity(ctx, "http://127.0.0.1:1"))
	require.NoError(t, f.keychain.SetCredentials(ctx, obs.Credentials{StudentId: "20250001"}))

	f.service.Tick(ctx)

	require.Empty(t, f.sink.Pushed())
	require.Equal(t, 0, f.portal.loginCalls)
}

func TestRegister(t *testing.T) {
	f := setup(t, Options{})
	ctx := context.Background()

	f.portal.courses = []obs.Course{
		{Name: "Algebra", Exams: []obs.Exam{{Name: "Midterm", Grade: "80"}}},
	}
	require.NoError(t, f.service.Register(ctx, f.host, "20250001", "hunter2"))

	creds, ok, err := f.keychain.GetCredentials(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	// only the transformed password is at rest
	require.NotEqual(t, "hunter2", creds.EncryptedPassword)
	raw, err := obscipher.DecryptPassword(creds.EncryptedPassword)
	require.NoError(t, err)
	require.Equal(t, "hunter2", raw)

	host, ok, err := f.keychain.GetUniversity(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, f.host, host)

	stored, ok, err := f.service.State().Courses(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, stored, 1)
	require.Equal(t, 1, f.portal.gpaCalls)

	// first login never diffs, so nothing was alerted
	require.Empty(t, alerts(f.sink))
}

func TestLogoutKeepsLanguage(t *testing.T) {
	f := setup(t, Options{})
	ctx := context.Background()
	f.registerDirectly(t, ctx)
	require.NoError(t, f.service.State().SetLang(ctx, "tr"))
	require.NoError(t, f.service.StartPolling(ctx, 15))

	require.NoError(t, f.service.Logout(ctx))

	_, ok, err := f.keychain.GetCredentials(ctx)
	require.NoError(t, err)
	require.False(t, ok)
	require.False(t, f.scheduler.registered)

	lang, ok, err := f.service.State().Lang(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "tr", lang)

	// the polling preference was wiped with the rest of the state
	enabled, _, err := f.service.State().PollingPreference(ctx)
	require.NoError(t, err)
	require.False(t, enabled)
}

func TestResumePolling(t *testing.T) {
	f := setup(t, Options{})
	ctx := context.Background()

	require.NoError(t, f.service.StartPolling(ctx, 15))
	f.scheduler.registered = false

	require.NoError(t, f.service.ResumePolling(ctx))
	require.True(t, f.scheduler.registered)
	require.Equal(t, 15, f.scheduler.minutes)

	require.NoError(t, f.service.StopPolling(ctx))
	require.False(t, f.scheduler.registered)
	require.NoError(t, f.service.ResumePolling(ctx))
	require.False(t, f.scheduler.registered)
}
