// Package marks runs the polling engine: it periodically fetches the
// grade list off the portal, diffs it against the stored baseline,
// pushes a notification per newly finalized exam and keeps the derived
// GPA data fresh.
package marks

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"sync"
	"time"

	"github.com/mustafazeydani/NotUyarX/lib/captcha"
	"github.com/mustafazeydani/NotUyarX/lib/notify"
	"github.com/mustafazeydani/NotUyarX/lib/obscipher"
	"github.com/mustafazeydani/NotUyarX/lib/scrapers/obs"
	"github.com/mustafazeydani/NotUyarX/services/keychain"
	"github.com/mustafazeydani/NotUyarX/services/marks/db"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	_ "modernc.org/sqlite"
)

var tracer = otel.Tracer("services/marks")

// Portal is the slice of the obs client the orchestrator depends on.
type Portal interface {
	Login(ctx context.Context, creds obs.Credentials) error
	RestoreSession(session obs.Session) error
	Session() obs.Session
	FetchCourses(ctx context.Context) ([]obs.Course, error)
	FetchGPAInfo(ctx context.Context, courses []obs.Course) (obs.GPAInfo, error)
}

// Scheduler is the slice of the cron layer the orchestrator depends on.
type Scheduler interface {
	Register(minutes int, tick func()) error
	Unregister()
}

type Options struct {
	Keychain  keychain.Service
	Notifier  notify.Notifier
	Scheduler Scheduler
	NewPortal func(host string) (Portal, error)

	// SessionStaleness forces a re-login when the last successful
	// refresh is older than this. the portal times sessions out
	// around the ten minute mark, so the default stays under it.
	SessionStaleness time.Duration
	// DialTimeout bounds the connectivity probe at the top of a tick.
	DialTimeout time.Duration
}

// NewPortalFactory adapts the obs client constructor to the Portal
// factory the service wants.
func NewPortalFactory(solver captcha.Solver) func(host string) (Portal, error) {
	return func(host string) (Portal, error) {
		return obs.NewClient(obs.ClientOptions{Host: host, Solver: solver})
	}
}

type Service struct {
	db       *sql.DB
	qry      *db.Queries
	state    State
	keychain keychain.Service
	notifier notify.Notifier
	options  Options

	mu      sync.Mutex
	running bool
}

func NewService(database *sql.DB, options Options) *Service {
	if options.SessionStaleness <= 0 {
		options.SessionStaleness = 9 * time.Minute
	}
	if options.DialTimeout <= 0 {
		options.DialTimeout = 5 * time.Second
	}

	qry := db.New(database)
	return &Service{
		db:       database,
		qry:      qry,
		state:    NewState(qry),
		keychain: options.Keychain,
		notifier: options.Notifier,
		options:  options,
	}
}

// State exposes the persisted state for read-only consumers like the
// CLI table renderers.
func (s *Service) State() State {
	return s.state
}

// Register performs the first-time login: transform and store the
// credentials, authenticate, then persist the fetched course list and
// GPAInfo as the baseline. the diff never runs here, so enrolling
// mid-semester does not flood the user with stale "new grade" alerts.
func (s *Service) Register(ctx context.Context, host, studentId, password string) error {
	ctx, span := tracer.Start(ctx, "Register")
	defer span.End()
	span.SetAttributes(attribute.String("host", host))

	creds := obs.Credentials{
		StudentId:         studentId,
		EncryptedPassword: obscipher.EncryptPassword(password),
	}

	portal, err := s.options.NewPortal(host)
	if err != nil {
		return err
	}
	err = portal.Login(ctx, creds)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "login failed")
		return err
	}

	err = s.keychain.SetUniversity(ctx, host)
	if err != nil {
		return err
	}
	err = s.keychain.SetCredentials(ctx, creds)
	if err != nil {
		return err
	}
	err = s.keychain.SetSession(ctx, portal.Session())
	if err != nil {
		return err
	}

	courses, err := portal.FetchCourses(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fetch baseline courses")
		return err
	}

	var info obs.GPAInfo
	haveInfo := false
	if len(courses) > 0 {
		info, err = portal.FetchGPAInfo(ctx, courses)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to fetch baseline gpa info")
			return err
		}
		haveInfo = true
	}

	return s.persistRefresh(ctx, courses, info, haveInfo)
}

// Logout clears credentials, session artifacts and all state except
// the language preference, and stops polling.
func (s *Service) Logout(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "Logout")
	defer span.End()

	if s.options.Scheduler != nil {
		s.options.Scheduler.Unregister()
	}
	err := s.keychain.Clear(ctx)
	if err != nil {
		return err
	}
	return s.state.Clear(ctx)
}

// StartPolling registers the recurring tick and remembers the choice
// so it survives a restart.
func (s *Service) StartPolling(ctx context.Context, minutes int) error {
	if s.options.Scheduler == nil {
		return fmt.Errorf("no scheduler configured")
	}
	err := s.options.Scheduler.Register(minutes, func() {
		s.Tick(context.Background())
	})
	if err != nil {
		return err
	}
	return s.state.SetPollingPreference(ctx, true, minutes)
}

func (s *Service) StopPolling(ctx context.Context) error {
	if s.options.Scheduler != nil {
		s.options.Scheduler.Unregister()
	}
	_, minutes, err := s.state.PollingPreference(ctx)
	if err != nil {
		return err
	}
	return s.state.SetPollingPreference(ctx, false, minutes)
}

// ResumePolling re-registers the tick from the persisted preference.
// called once at process start.
func (s *Service) ResumePolling(ctx context.Context) error {
	enabled, minutes, err := s.state.PollingPreference(ctx)
	if err != nil {
		return err
	}
	if !enabled || minutes <= 0 {
		return nil
	}
	return s.StartPolling(ctx, minutes)
}

// Tick is the single entry point of a poll cycle. overlapping fires
// are dropped, not queued: a tick that finds another one running
// returns immediately.
func (s *Service) Tick(ctx context.Context) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		slog.DebugContext(ctx, "tick already running, dropping")
		return
	}
	s.running = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	ctx, span := tracer.Start(ctx, "Tick")
	defer span.End()

	err := s.tick(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "tick failed")
		s.recover(ctx, err)
	}
}

func (s *Service) tick(ctx context.Context) error {
	host, ok, err := s.keychain.GetUniversity(ctx)
	if err != nil {
		return err
	}
	if !ok {
		slog.DebugContext(ctx, "no university registered, skipping tick")
		return nil
	}
	creds, ok, err := s.keychain.GetCredentials(ctx)
	if err != nil {
		return err
	}
	if !ok {
		slog.DebugContext(ctx, "no credentials stored, skipping tick")
		return nil
	}

	// offline is not an error, it is just not the moment to poll
	if !s.reachable(host) {
		slog.DebugContext(ctx, "portal unreachable, skipping tick", "host", host)
		return nil
	}

	stickyId, err := s.notifier.Push(ctx, notify.Notification{
		Title:  "NotUyarX",
		Body:   "Checking for new grades...",
		Silent: true,
	})
	if err != nil {
		slog.WarnContext(ctx, "failed to push sticky notification", "err", err)
	} else {
		if err := s.state.SetStickyNotificationId(ctx, stickyId); err != nil {
			slog.WarnContext(ctx, "failed to persist sticky notification id", "err", err)
		}
		defer func() {
			if err := s.notifier.Dismiss(ctx, stickyId); err != nil {
				slog.WarnContext(ctx, "failed to dismiss sticky notification", "err", err)
			}
			if err := s.state.ClearStickyNotificationId(ctx); err != nil {
				slog.WarnContext(ctx, "failed to clear sticky notification id", "err", err)
			}
		}()
	}

	portal, err := s.options.NewPortal(host)
	if err != nil {
		return err
	}
	err = s.ensureSession(ctx, portal, creds)
	if err != nil {
		return err
	}

	courses, err := portal.FetchCourses(ctx)
	if errors.Is(err, obs.ErrSessionExpired) {
		// one re-login and one refetch per tick, never a loop
		err = s.relogin(ctx, portal, creds)
		if err != nil {
			return err
		}
		courses, err = portal.FetchCourses(ctx)
	}
	if err != nil {
		return err
	}

	// an empty list is a valid new-semester state, not a failure
	if len(courses) == 0 {
		return s.clearRefresh(ctx)
	}

	previous, havePrevious, err := s.state.Courses(ctx)
	if err != nil {
		return err
	}
	_, haveInfo, err := s.state.GPAInfo(ctx)
	if err != nil {
		return err
	}

	var payloads []notify.Notification
	if havePrevious {
		payloads = Diff(previous, courses)
		carryCredits(previous, courses)
	}

	refreshInfo := !havePrevious || !haveInfo || LetterChanged(previous, courses)
	var info obs.GPAInfo
	if refreshInfo {
		info, err = portal.FetchGPAInfo(ctx, courses)
		if errors.Is(err, obs.ErrSessionExpired) {
			err = s.relogin(ctx, portal, creds)
			if err != nil {
				return err
			}
			info, err = portal.FetchGPAInfo(ctx, courses)
		}
		if err != nil {
			return err
		}
	}

	err = s.persistRefresh(ctx, courses, info, refreshInfo)
	if err != nil {
		return err
	}

	for _, payload := range payloads {
		_, err := s.notifier.Push(ctx, payload)
		if err != nil {
			slog.WarnContext(ctx, "failed to push grade notification",
				"title", payload.Title, "err", err)
		}
	}
	return nil
}

func (s *Service) ensureSession(ctx context.Context, portal Portal, creds obs.Credentials) error {
	session, ok, err := s.keychain.GetSession(ctx)
	if err != nil {
		return err
	}

	stale := !ok || !session.Active
	if !stale {
		last, haveLast, err := s.state.LastRefreshTime(ctx)
		if err != nil {
			return err
		}
		if !haveLast || time.Since(last) >= s.options.SessionStaleness {
			stale = true
		}
	}

	if !stale {
		return portal.RestoreSession(session)
	}
	return s.relogin(ctx, portal, creds)
}

func (s *Service) relogin(ctx context.Context, portal Portal, creds obs.Credentials) error {
	err := portal.Login(ctx, creds)
	if err != nil {
		return err
	}
	err = s.keychain.SetSession(ctx, portal.Session())
	if err != nil {
		return err
	}
	return s.state.SetSessionActive(ctx, true)
}

// persistRefresh writes the course list, the GPA data and the refresh
// timestamp in one transaction, so a kill mid-tick leaves the state
// either fully updated or fully unchanged.
func (s *Service) persistRefresh(ctx context.Context, courses []obs.Course, info obs.GPAInfo, withInfo bool) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	txstate := NewState(s.qry.WithTx(tx))

	err = txstate.SetCourses(ctx, courses)
	if err != nil {
		return err
	}
	if withInfo {
		err = txstate.SetGPAInfo(ctx, info)
		if err != nil {
			return err
		}
	}
	err = txstate.SetLastRefreshTime(ctx, time.Now())
	if err != nil {
		return err
	}
	err = txstate.SetSessionActive(ctx, true)
	if err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Service) clearRefresh(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	txqry := s.qry.WithTx(tx)

	err = txqry.DeleteState(ctx, keyCourses)
	if err != nil {
		return err
	}
	err = txqry.DeleteState(ctx, keyGPAInfo)
	if err != nil {
		return err
	}
	err = NewState(txqry).SetLastRefreshTime(ctx, time.Now())
	if err != nil {
		return err
	}
	return tx.Commit()
}

// recover applies the failure taxonomy: network noise stays silent, a
// rejected login wipes the stored secrets and stops polling, anything
// else stops polling but keeps the credentials so the user can restart
// without re-entering them.
func (s *Service) recover(ctx context.Context, err error) {
	var loginErr *obs.LoginError
	switch {
	case isNetworkError(err):
		slog.WarnContext(ctx, "network failure during tick", "err", err)

	case errors.As(err, &loginErr):
		slog.ErrorContext(ctx, "portal rejected login, clearing credentials", "err", err)
		s.haltPolling(ctx)
		if clearErr := s.keychain.Clear(ctx); clearErr != nil {
			slog.ErrorContext(ctx, "failed to clear keychain", "err", clearErr)
		}
		if stateErr := s.state.SetSessionActive(ctx, false); stateErr != nil {
			slog.ErrorContext(ctx, "failed to mark session inactive", "err", stateErr)
		}
		_, pushErr := s.notifier.Push(ctx, notify.Notification{
			Title: "NotUyarX",
			Body:  fmt.Sprintf("Login failed, please sign in again: %s", loginErr.PortalMessage),
		})
		if pushErr != nil {
			slog.ErrorContext(ctx, "failed to push login failure notification", "err", pushErr)
		}

	default:
		slog.ErrorContext(ctx, "tick failed, stopping polling", "err", err)
		s.haltPolling(ctx)
		if stateErr := s.state.SetSessionActive(ctx, false); stateErr != nil {
			slog.ErrorContext(ctx, "failed to mark session inactive", "err", stateErr)
		}
		_, pushErr := s.notifier.Push(ctx, notify.Notification{
			Title: "NotUyarX",
			Body:  "Grade checking stopped after an unexpected error, restart it from the app.",
		})
		if pushErr != nil {
			slog.ErrorContext(ctx, "failed to push failure notification", "err", pushErr)
		}
	}
}

// haltPolling unregisters the tick and flips the persisted preference
// off, so a restart does not quietly resume a schedule that just
// failed.
func (s *Service) haltPolling(ctx context.Context) {
	if s.options.Scheduler != nil {
		s.options.Scheduler.Unregister()
	}
	_, minutes, err := s.state.PollingPreference(ctx)
	if err == nil {
		err = s.state.SetPollingPreference(ctx, false, minutes)
	}
	if err != nil {
		slog.ErrorContext(ctx, "failed to persist polling stop", "err", err)
	}
}

// reachable probes the portal host over tcp. resolving the scheme's
// default port keeps the probe honest for both http and https hosts.
func (s *Service) reachable(host string) bool {
	parsed, err := url.Parse(host)
	if err != nil {
		return false
	}
	addr := parsed.Host
	if parsed.Port() == "" {
		port := "443"
		if parsed.Scheme == "http" {
			port = "80"
		}
		addr = net.JoinHostPort(parsed.Hostname(), port)
	}
	conn, err := net.DialTimeout("tcp", addr, s.options.DialTimeout)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}

// isNetworkError picks out the transient transport failures worth
// staying silent about. a url.Error is unwrapped first: it covers
// protocol and tls failures too, and those deserve the fatal path.
func isNetworkError(err error) bool {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		err = urlErr.Err
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// carryCredits copies the transcript-resolved credit units from the
// stored list onto the fresh fetch for the ticks that skip the
// transcript page.
func carryCredits(previous, current []obs.Course) {
	credits := map[string]float64{}
	for _, course := range previous {
		credits[course.Name] = course.Credits
	}
	for i := range current {
		if value, ok := credits[current[i].Name]; ok && current[i].Credits == 0 {
			current[i].Credits = value
		}
	}
}
