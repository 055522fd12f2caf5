// Package store persists sessions, attendance, users and OTPs behind a
// single repository interface so the services and tests can swap the
// backend (JSON file, in-memory fake, Postgres).
package store

import (
	"context"
	"errors"

	"github.com/Ignisight/attendance-server/internal/model"
)

var (
	// ErrNotFound is returned when a looked-up row does not exist.
	ErrNotFound = errors.New("store: not found")
	// ErrDuplicate is returned when an insert violates a uniqueness
	// invariant: one record per (session, email), one account per
	// email.
	ErrDuplicate = errors.New("store: duplicate")
)

// Store is the repository over the whole persisted state.
type Store interface {
	// Sessions.
	CreateSession(ctx context.Context, s model.Session) error
	UpdateSession(ctx context.Context, s model.Session) error
	// UpdateSessions applies several session updates in one commit so
	// sweeps do not issue a file rewrite per session.
	UpdateSessions(ctx context.Context, ss []model.Session) error
	GetSession(ctx context.Context, id int64) (model.Session, error)
	GetSessionByCode(ctx context.Context, code string) (model.Session, error)
	ListSessions(ctx context.Context) ([]model.Session, error)
	// DeleteSessions removes the sessions and every attendance record
	// they own. Unknown ids are skipped. Returns removed counts.
	DeleteSessions(ctx context.Context, ids []int64) (sessions, records int, err error)

	// Attendance.
	AppendRecord(ctx context.Context, r model.Record) error
	ListRecords(ctx context.Context, sessionID int64) ([]model.Record, error)
	HasRecord(ctx context.Context, sessionID int64, email string) (bool, error)
	CountRecords(ctx context.Context, sessionID int64) (int, error)

	// Users.
	CreateUser(ctx context.Context, u model.User) error
	GetUserByEmail(ctx context.Context, email string) (model.User, error)
	UpdateUser(ctx context.Context, u model.User) error

	// OTPs. PutOTP drops any previous entry for the same email.
	PutOTP(ctx context.Context, o model.OTP) error
	GetOTP(ctx context.Context, email string) (model.OTP, error)
	DeleteOTP(ctx context.Context, email string) error

	Close() error
}
