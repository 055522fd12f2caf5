package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/Ignisight/attendance-server/internal/model"
)

// FileStore keeps the whole state in memory and rewrites one JSON
// document on every mutation. Mutations build the next state, write it
// durably (temp file + rename), and only then commit it in memory, so
// a failed write rolls back and memory never diverges from disk.
type FileStore struct {
	mu    sync.Mutex
	path  string
	state model.State
}

// OpenFile loads the document at path, starting empty when the file
// does not exist yet.
func OpenFile(path string) (*FileStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}
	fs := &FileStore{path: path}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fs, nil
		}
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, &fs.state); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return fs, nil
}

func (f *FileStore) Close() error { return nil }

// commit durably writes next and swaps it in. Callers hold f.mu.
func (f *FileStore) commit(next model.State) error {
	if f.path == "" {
		f.state = next
		return nil
	}
	data, err := json.MarshalIndent(next, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, f.path); err != nil {
		return fmt.Errorf("rename %s: %w", tmp, err)
	}
	f.state = next
	return nil
}

func emailKey(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// -------- Sessions --------

func (f *FileStore) CreateSession(_ context.Context, s model.Session) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	next := f.state
	next.Sessions = append(slices.Clone(f.state.Sessions), s)
	return f.commit(next)
}

func (f *FileStore) UpdateSession(ctx context.Context, s model.Session) error {
	return f.UpdateSessions(ctx, []model.Session{s})
}

func (f *FileStore) UpdateSessions(_ context.Context, ss []model.Session) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	sessions := slices.Clone(f.state.Sessions)
	for _, s := range ss {
		i := slices.IndexFunc(sessions, func(cur model.Session) bool { return cur.ID == s.ID })
		if i < 0 {
			return ErrNotFound
		}
		sessions[i] = s
	}
	next := f.state
	next.Sessions = sessions
	return f.commit(next)
}

func (f *FileStore) GetSession(_ context.Context, id int64) (model.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.state.Sessions {
		if s.ID == id {
			return s, nil
		}
	}
	return model.Session{}, ErrNotFound
}

func (f *FileStore) GetSessionByCode(_ context.Context, code string) (model.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.state.Sessions {
		if s.Code == code {
			return s, nil
		}
	}
	return model.Session{}, ErrNotFound
}

func (f *FileStore) ListSessions(_ context.Context) ([]model.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.state.Sessions), nil
}

func (f *FileStore) DeleteSessions(_ context.Context, ids []int64) (int, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	drop := make(map[int64]bool, len(ids))
	for _, id := range ids {
		drop[id] = true
	}
	var sessions []model.Session
	for _, s := range f.state.Sessions {
		if !drop[s.ID] {
			sessions = append(sessions, s)
		}
	}
	var records []model.Record
	for _, r := range f.state.Attendance {
		if !drop[r.SessionID] {
			records = append(records, r)
		}
	}
	removedSessions := len(f.state.Sessions) - len(sessions)
	removedRecords := len(f.state.Attendance) - len(records)
	if removedSessions == 0 && removedRecords == 0 {
		return 0, 0, nil
	}
	next := f.state
	next.Sessions = sessions
	next.Attendance = records
	if err := f.commit(next); err != nil {
		return 0, 0, err
	}
	return removedSessions, removedRecords, nil
}

// -------- Attendance --------

func (f *FileStore) AppendRecord(_ context.Context, r model.Record) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := emailKey(r.Email)
	for _, cur := range f.state.Attendance {
		if cur.SessionID == r.SessionID && emailKey(cur.Email) == key {
			return ErrDuplicate
		}
	}
	next := f.state
	next.Attendance = append(slices.Clone(f.state.Attendance), r)
	return f.commit(next)
}

func (f *FileStore) ListRecords(_ context.Context, sessionID int64) ([]model.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Record
	for _, r := range f.state.Attendance {
		if r.SessionID == sessionID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *FileStore) HasRecord(_ context.Context, sessionID int64, email string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := emailKey(email)
	for _, r := range f.state.Attendance {
		if r.SessionID == sessionID && emailKey(r.Email) == key {
			return true, nil
		}
	}
	return false, nil
}

func (f *FileStore) CountRecords(_ context.Context, sessionID int64) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, r := range f.state.Attendance {
		if r.SessionID == sessionID {
			n++
		}
	}
	return n, nil
}

// -------- Users --------

func (f *FileStore) CreateUser(_ context.Context, u model.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := emailKey(u.Email)
	for _, cur := range f.state.Users {
		if emailKey(cur.Email) == key {
			return ErrDuplicate
		}
	}
	next := f.state
	next.Users = append(slices.Clone(f.state.Users), u)
	return f.commit(next)
}

func (f *FileStore) GetUserByEmail(_ context.Context, email string) (model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := emailKey(email)
	for _, u := range f.state.Users {
		if emailKey(u.Email) == key {
			return u, nil
		}
	}
	return model.User{}, ErrNotFound
}

func (f *FileStore) UpdateUser(_ context.Context, u model.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	users := slices.Clone(f.state.Users)
	i := slices.IndexFunc(users, func(cur model.User) bool { return cur.ID == u.ID })
	if i < 0 {
		return ErrNotFound
	}
	users[i] = u
	next := f.state
	next.Users = users
	return f.commit(next)
}

// -------- OTPs --------

func (f *FileStore) PutOTP(_ context.Context, o model.OTP) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := emailKey(o.Email)
	var otps []model.OTP
	for _, cur := range f.state.OTPs {
		if emailKey(cur.Email) != key {
			otps = append(otps, cur)
		}
	}
	next := f.state
	next.OTPs = append(otps, o)
	return f.commit(next)
}

func (f *FileStore) GetOTP(_ context.Context, email string) (model.OTP, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := emailKey(email)
	for _, o := range f.state.OTPs {
		if emailKey(o.Email) == key {
			return o, nil
		}
	}
	return model.OTP{}, ErrNotFound
}

func (f *FileStore) DeleteOTP(_ context.Context, email string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := emailKey(email)
	var otps []model.OTP
	for _, cur := range f.state.OTPs {
		if emailKey(cur.Email) != key {
			otps = append(otps, cur)
		}
	}
	if len(otps) == len(f.state.OTPs) {
		return nil
	}
	next := f.state
	next.OTPs = otps
	return f.commit(next)
}
