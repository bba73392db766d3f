package marks

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mustafazeydani/NotUyarX/lib/scrapers/obs"
	"github.com/mustafazeydani/NotUyarX/services/marks/db"
)

// state-store keys, kept identical to the persisted names of earlier
// releases so an existing database migrates for free
const (
	keyCourses            = "dersler"
	keyGPAInfo            = "GPAInfo"
	keySessionActive      = "isSessionActive"
	keyIntervalLastState  = "intervalLastState"
	keyIntervalLastOption = "intervalLastOption"
	keyLastRefreshTime    = "lastRefreshTime"
	keyStickyNotification = "stickyNotificationId"
	keyLang               = "lang"
)

// State is a typed view over the key-value state table. It operates on
// whatever Queries it wraps, so a transaction-scoped view is just
// NewState(qry.WithTx(tx)).
type State struct {
	qry *db.Queries
}

func NewState(qry *db.Queries) State {
	return State{qry: qry}
}

func (s State) getJson(ctx context.Context, key string, out any) (bool, error) {
	raw, err := s.qry.GetState(ctx, key)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	err = json.Unmarshal([]byte(raw), out)
	if err != nil {
		return false, fmt.Errorf("decode state %q: %w", key, err)
	}
	return true, nil
}

func (s State) setJson(ctx context.Context, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode state %q: %w", key, err)
	}
	return s.qry.SetState(ctx, db.SetStateParams{Key: key, Value: string(raw)})
}

func (s State) Courses(ctx context.Context) ([]obs.Course, bool, error) {
	var courses []obs.Course
	ok, err := s.getJson(ctx, keyCourses, &courses)
	return courses, ok, err
}

func (s State) SetCourses(ctx context.Context, courses []obs.Course) error {
	return s.setJson(ctx, keyCourses, courses)
}

func (s State) GPAInfo(ctx context.Context) (obs.GPAInfo, bool, error) {
	var info obs.GPAInfo
	ok, err := s.getJson(ctx, keyGPAInfo, &info)
	return info, ok, err
}

func (s State) SetGPAInfo(ctx context.Context, info obs.GPAInfo) error {
	return s.setJson(ctx, keyGPAInfo, info)
}

func (s State) SessionActive(ctx context.Context) (bool, error) {
	var active bool
	_, err := s.getJson(ctx, keySessionActive, &active)
	return active, err
}

func (s State) SetSessionActive(ctx context.Context, active bool) error {
	return s.setJson(ctx, keySessionActive, active)
}

func (s State) LastRefreshTime(ctx context.Context) (time.Time, bool, error) {
	var unix int64
	ok, err := s.getJson(ctx, keyLastRefreshTime, &unix)
	if err != nil || !ok {
		return time.Time{}, ok, err
	}
	return time.Unix(unix, 0), true, nil
}

func (s State) SetLastRefreshTime(ctx context.Context, t time.Time) error {
	return s.setJson(ctx, keyLastRefreshTime, t.Unix())
}

func (s State) StickyNotificationId(ctx context.Context) (string, bool, error) {
	var id string
	ok, err := s.getJson(ctx, keyStickyNotification, &id)
	return id, ok, err
}

func (s State) SetStickyNotificationId(ctx context.Context, id string) error {
	return s.setJson(ctx, keyStickyNotification, id)
}

func (s State) ClearStickyNotificationId(ctx context.Context) error {
	return s.qry.DeleteState(ctx, keyStickyNotification)
}

// PollingPreference remembers whether polling was on and at which
// interval, so it can be restored after a process restart.
func (s State) PollingPreference(ctx context.Context) (enabled bool, minutes int, err error) {
	_, err = s.getJson(ctx, keyIntervalLastState, &enabled)
	if err != nil {
		return false, 0, err
	}
	_, err = s.getJson(ctx, keyIntervalLastOption, &minutes)
	if err != nil {
		return false, 0, err
	}
	return enabled, minutes, nil
}

func (s State) SetPollingPreference(ctx context.Context, enabled bool, minutes int) error {
	err := s.setJson(ctx, keyIntervalLastState, enabled)
	if err != nil {
		return err
	}
	return s.setJson(ctx, keyIntervalLastOption, minutes)
}

func (s State) Lang(ctx context.Context) (string, bool, error) {
	var lang string
	ok, err := s.getJson(ctx, keyLang, &lang)
	return lang, ok, err
}

func (s State) SetLang(ctx context.Context, lang string) error {
	return s.setJson(ctx, keyLang, lang)
}

// Clear wipes everything except the language preference, the logout
// semantics of the state store.
func (s State) Clear(ctx context.Context) error {
	return s.qry.DeleteStateExcept(ctx, keyLang)
}
