package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/Ignisight/attendance-server/internal/model"
)

// PostgresStore implements Store on Postgres via the pgx stdlib
// driver. Selected with STORE_BACKEND=postgres for deployments that
// outgrow the flat file; uniqueness invariants live in the schema.
type PostgresStore struct {
	db *sql.DB
}

// OpenPostgres connects, applies the schema, and returns the store.
func OpenPostgres(connString string) (*PostgresStore, error) {
	db, err := sql.Open("pgx", connString)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)
	if err := db.PingContext(context.Background()); err != nil {
		return nil, fmt.Errorf("ping db: %w", err)
	}
	if err := migrate(db); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &PostgresStore{db: db}, nil
}

func migrate(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS sessions (
		id         BIGINT PRIMARY KEY,
		name       TEXT NOT NULL,
		code       TEXT UNIQUE NOT NULL,
		created_at TIMESTAMPTZ NOT NULL,
		active     BOOLEAN NOT NULL,
		stopped_at BIGINT,
		lat        DOUBLE PRECISION,
		lon        DOUBLE PRECISION
	);

	CREATE TABLE IF NOT EXISTS attendance (
		session_id   BIGINT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
		email        TEXT NOT NULL,
		name         TEXT NOT NULL,
		roll_number  TEXT NOT NULL,
		roll_no      TEXT NOT NULL,
		year         TEXT NOT NULL,
		program      TEXT NOT NULL,
		branch       TEXT NOT NULL,
		submitted_at TIMESTAMPTZ NOT NULL,
		date         TEXT NOT NULL,
		time         TEXT NOT NULL
	);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_attendance_unique
		ON attendance(session_id, lower(email));

	CREATE TABLE IF NOT EXISTS users (
		id            TEXT PRIMARY KEY,
		email         TEXT NOT NULL,
		name          TEXT NOT NULL DEFAULT '',
		college       TEXT NOT NULL DEFAULT '',
		department    TEXT NOT NULL DEFAULT '',
		password_hash TEXT NOT NULL,
		created_at    TIMESTAMPTZ NOT NULL
	);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_users_email ON users(lower(email));

	CREATE TABLE IF NOT EXISTS otps (
		email      TEXT PRIMARY KEY,
		otp        TEXT NOT NULL,
		expires_at TIMESTAMPTZ NOT NULL
	);
	`
	_, err := db.Exec(schema)
	return err
}

func (p *PostgresStore) Close() error { return p.db.Close() }

// uniqueViolation reports the Postgres unique_violation error.
func uniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// -------- Sessions --------

func (p *PostgresStore) CreateSession(ctx context.Context, s model.Session) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO sessions (id, name, code, created_at, active, stopped_at, lat, lon)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, s.ID, s.Name, s.Code, s.CreatedAt, s.Active, s.StoppedAt, s.Lat, s.Lon)
	if uniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

func (p *PostgresStore) UpdateSession(ctx context.Context, s model.Session) error {
	res, err := p.db.ExecContext(ctx, `
		UPDATE sessions SET name=$2, active=$3, stopped_at=$4, lat=$5, lon=$6
		WHERE id=$1
	`, s.ID, s.Name, s.Active, s.StoppedAt, s.Lat, s.Lon)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *PostgresStore) UpdateSessions(ctx context.Context, ss []model.Session) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	for _, s := range ss {
		res, err := tx.ExecContext(ctx, `
			UPDATE sessions SET name=$2, active=$3, stopped_at=$4, lat=$5, lon=$6
			WHERE id=$1
		`, s.ID, s.Name, s.Active, s.StoppedAt, s.Lat, s.Lon)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return ErrNotFound
		}
	}
	return tx.Commit()
}

const sessionCols = `id, name, code, created_at, active, stopped_at, lat, lon`

func scanSession(row interface{ Scan(...any) error }) (model.Session, error) {
	var s model.Session
	err := row.Scan(&s.ID, &s.Name, &s.Code, &s.CreatedAt, &s.Active, &s.StoppedAt, &s.Lat, &s.Lon)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Session{}, ErrNotFound
	}
	return s, err
}

func (p *PostgresStore) GetSession(ctx context.Context, id int64) (model.Session, error) {
	return scanSession(p.db.QueryRowContext(ctx,
		`SELECT `+sessionCols+` FROM sessions WHERE id = $1`, id))
}

func (p *PostgresStore) GetSessionByCode(ctx context.Context, code string) (model.Session, error) {
	return scanSession(p.db.QueryRowContext(ctx,
		`SELECT `+sessionCols+` FROM sessions WHERE code = $1`, code))
}

func (p *PostgresStore) ListSessions(ctx context.Context) ([]model.Session, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT `+sessionCols+` FROM sessions ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (p *PostgresStore) DeleteSessions(ctx context.Context, ids []int64) (int, int, error) {
	if len(ids) == 0 {
		return 0, 0, nil
	}
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, 0, err
	}
	defer tx.Rollback()
	recRes, err := tx.ExecContext(ctx,
		`DELETE FROM attendance WHERE session_id = ANY($1)`, ids)
	if err != nil {
		return 0, 0, err
	}
	sesRes, err := tx.ExecContext(ctx,
		`DELETE FROM sessions WHERE id = ANY($1)`, ids)
	if err != nil {
		return 0, 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, 0, err
	}
	nr, _ := recRes.RowsAffected()
	ns, _ := sesRes.RowsAffected()
	return int(ns), int(nr), nil
}

// -------- Attendance --------

func (p *PostgresStore) AppendRecord(ctx context.Context, r model.Record) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO attendance (session_id, email, name, roll_number, roll_no, year, program, branch, submitted_at, date, time)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
	`, r.SessionID, r.Email, r.Name, r.RollNumber, r.RollNo, r.Year, r.Program, r.Branch, r.SubmittedAt, r.Date, r.Time)
	if uniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

const recordCols = `session_id, email, name, roll_number, roll_no, year, program, branch, submitted_at, date, time`

func (p *PostgresStore) ListRecords(ctx context.Context, sessionID int64) ([]model.Record, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT `+recordCols+` FROM attendance WHERE session_id = $1 ORDER BY submitted_at`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Record
	for rows.Next() {
		var r model.Record
		if err := rows.Scan(&r.SessionID, &r.Email, &r.Name, &r.RollNumber, &r.RollNo, &r.Year, &r.Program, &r.Branch, &r.SubmittedAt, &r.Date, &r.Time); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (p *PostgresStore) HasRecord(ctx context.Context, sessionID int64, email string) (bool, error) {
	var exists bool
	err := p.db.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM attendance WHERE session_id = $1 AND lower(email) = lower($2))
	`, sessionID, email).Scan(&exists)
	return exists, err
}

func (p *PostgresStore) CountRecords(ctx context.Context, sessionID int64) (int, error) {
	var n int
	err := p.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM attendance WHERE session_id = $1`, sessionID).Scan(&n)
	return n, err
}

// -------- Users --------

func (p *PostgresStore) CreateUser(ctx context.Context, u model.User) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO users (id, email, name, college, department, password_hash, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, u.ID, u.Email, u.Name, u.College, u.Department, u.PasswordHash, u.CreatedAt)
	if uniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

func (p *PostgresStore) GetUserByEmail(ctx context.Context, email string) (model.User, error) {
	var u model.User
	err := p.db.QueryRowContext(ctx, `
		SELECT id, email, name, college, department, password_hash, created_at
		FROM users WHERE lower(email) = lower($1)
	`, email).Scan(&u.ID, &u.Email, &u.Name, &u.College, &u.Department, &u.PasswordHash, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.User{}, ErrNotFound
	}
	return u, err
}

func (p *PostgresStore) UpdateUser(ctx context.Context, u model.User) error {
	res, err := p.db.ExecContext(ctx, `
		UPDATE users SET name=$2, college=$3, department=$4, password_hash=$5
		WHERE id=$1
	`, u.ID, u.Name, u.College, u.Department, u.PasswordHash)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// -------- OTPs --------

func (p *PostgresStore) PutOTP(ctx context.Context, o model.OTP) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO otps (email, otp, expires_at)
		VALUES (lower($1), $2, $3)
		ON CONFLICT (email) DO UPDATE SET otp = EXCLUDED.otp, expires_at = EXCLUDED.expires_at
	`, o.Email, o.Code, o.ExpiresAt)
	return err
}

func (p *PostgresStore) GetOTP(ctx context.Context, email string) (model.OTP, error) {
	var o model.OTP
	err := p.db.QueryRowContext(ctx,
		`SELECT email, otp, expires_at FROM otps WHERE email = lower($1)`, email).
		Scan(&o.Email, &o.Code, &o.ExpiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.OTP{}, ErrNotFound
	}
	return o, err
}

func (p *PostgresStore) DeleteOTP(ctx context.Context, email string) error {
	_, err := p.db.ExecContext(ctx, `DELETE FROM otps WHERE email = lower($1)`, email)
	return err
}
