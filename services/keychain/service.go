// Package keychain is the secure store for everything that can open
// the student's portal account: credentials, the live session and the
// selected university host.
package keychain

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mustafazeydani/NotUyarX/lib/scrapers/obs"
	"github.com/mustafazeydani/NotUyarX/services/keychain/db"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"

	_ "modernc.org/sqlite"
)

var tracer = otel.Tracer("services/keychain")

const (
	keyCredentials = "credentials"
	keySession     = "session"
	keyUniversity  = "selectedUniversity"
)

type Service struct {
	db  *sql.DB
	qry *db.Queries
}

func NewService(database *sql.DB) Service {
	return Service{
		db:  database,
		qry: db.New(database),
	}
}

func getJson[T any](ctx context.Context, qry *db.Queries, key string) (T, bool, error) {
	var out T

	raw, err := qry.GetSecret(ctx, key)
	if errors.Is(err, sql.ErrNoRows) {
		return out, false, nil
	}
	if err != nil {
		return out, false, err
	}
	err = json.Unmarshal([]byte(raw), &out)
	if err != nil {
		return out, false, fmt.Errorf("decode secret %q: %w", key, err)
	}
	return out, true, nil
}

func setJson[T any](ctx context.Context, qry *db.Queries, key string, value T) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode secret %q: %w", key, err)
	}
	return qry.SetSecret(ctx, db.SetSecretParams{Key: key, Value: string(raw)})
}

func (s Service) GetCredentials(ctx context.Context) (obs.Credentials, bool, error) {
	ctx, span := tracer.Start(ctx, "GetCredentials")
	defer span.End()

	creds, ok, err := getJson[obs.Credentials](ctx, s.qry, keyCredentials)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to read credentials")
	}
	return creds, ok, err
}

// SetCredentials persists the student id and the transformed password.
// the raw password never reaches this store.
func (s Service) SetCredentials(ctx context.Context, creds obs.Credentials) error {
	ctx, span := tracer.Start(ctx, "SetCredentials")
	defer span.End()

	err := setJson(ctx, s.qry, keyCredentials, creds)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to write credentials")
	}
	return err
}

func (s Service) ClearCredentials(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "ClearCredentials")
	defer span.End()

	err := s.qry.DeleteSecret(ctx, keyCredentials)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to delete credentials")
	}
	return err
}

func (s Service) GetSession(ctx context.Context) (obs.Session, bool, error) {
	ctx, span := tracer.Start(ctx, "GetSession")
	defer span.End()

	session, ok, err := getJson[obs.Session](ctx, s.qry, keySession)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to read session")
	}
	return session, ok, err
}

// SetSession stores the cookies, resolved urls and the active flag in
// one write so a session is never marked active without them.
func (s Service) SetSession(ctx context.Context, session obs.Session) error {
	ctx, span := tracer.Start(ctx, "SetSession")
	defer span.End()

	err := setJson(ctx, s.qry, keySession, session)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to write session")
	}
	return err
}

func (s Service) GetUniversity(ctx context.Context) (string, bool, error) {
	ctx, span := tracer.Start(ctx, "GetUniversity")
	defer span.End()

	host, ok, err := getJson[string](ctx, s.qry, keyUniversity)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to read university")
	}
	return host, ok, err
}

func (s Service) SetUniversity(ctx context.Context, host string) error {
	ctx, span := tracer.Start(ctx, "SetUniversity")
	defer span.End()

	err := setJson(ctx, s.qry, keyUniversity, host)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to write university")
	}
	return err
}

// Clear wipes every stored secret. used by logout and by the
// unrecoverable-login-failure path.
func (s Service) Clear(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "Clear")
	defer span.End()

	err := s.qry.DeleteAllSecrets(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to clear keychain")
	}
	return err
}
