package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ignisight/attendance-server/internal/model"
)

func tempStore(t *testing.T) (*FileStore, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data", "attendance.json")
	fs, err := OpenFile(path)
	require.NoError(t, err)
	return fs, path
}

func testSession(id int64) model.Session {
	return model.Session{
		ID:        id,
		Name:      "CS101",
		Code:      "code-" + time.UnixMilli(id).UTC().Format("150405.000"),
		CreatedAt: time.UnixMilli(id).UTC(),
		Active:    true,
	}
}

func TestFileStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	fs, path := tempStore(t)

	sess := testSession(1000)
	require.NoError(t, fs.CreateSession(ctx, sess))
	require.NoError(t, fs.AppendRecord(ctx, model.Record{
		SessionID:  sess.ID,
		Email:      "2046ugcm300@nitjsr.ac.in",
		Name:       "A Student",
		RollNumber: "2046UGCM300",
	}))

	// A fresh store reads the same document back.
	reopened, err := OpenFile(path)
	require.NoError(t, err)
	got, err := reopened.GetSession(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, sess.ID, got.ID)
	assert.Equal(t, sess.Name, got.Name)
	assert.Equal(t, sess.Code, got.Code)
	assert.True(t, got.CreatedAt.Equal(sess.CreatedAt))
	assert.True(t, got.Active)
	recs, err := reopened.ListRecords(ctx, sess.ID)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "2046UGCM300", recs[0].RollNumber)
}

func TestFileStoreDocumentShape(t *testing.T) {
	ctx := context.Background()
	fs, path := tempStore(t)
	require.NoError(t, fs.CreateSession(ctx, testSession(1000)))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	// One JSON document with all four top-level arrays.
	assert.Contains(t, string(data), `"users"`)
	assert.Contains(t, string(data), `"otps"`)
	assert.Contains(t, string(data), `"sessions"`)
	assert.Contains(t, string(data), `"attendance"`)
}

func TestFileStoreDuplicateRecord(t *testing.T) {
	ctx := context.Background()
	fs, _ := tempStore(t)

	sess := testSession(1000)
	require.NoError(t, fs.CreateSession(ctx, sess))
	rec := model.Record{SessionID: sess.ID, Email: "2046ugcm300@nitjsr.ac.in"}
	require.NoError(t, fs.AppendRecord(ctx, rec))

	dup := model.Record{SessionID: sess.ID, Email: "2046UGCM300@NITJSR.AC.IN"}
	assert.ErrorIs(t, fs.AppendRecord(ctx, dup), ErrDuplicate)

	other := model.Record{SessionID: 2000, Email: "2046ugcm300@nitjsr.ac.in"}
	assert.NoError(t, fs.AppendRecord(ctx, other))
}

func TestFileStoreUpdateSession(t *testing.T) {
	ctx := context.Background()
	fs, _ := tempStore(t)

	sess := testSession(1000)
	require.NoError(t, fs.CreateSession(ctx, sess))

	stoppedAt := int64(2000)
	sess.Active = false
	sess.StoppedAt = &stoppedAt
	require.NoError(t, fs.UpdateSession(ctx, sess))

	got, err := fs.GetSession(ctx, sess.ID)
	require.NoError(t, err)
	assert.False(t, got.Active)
	require.NotNil(t, got.StoppedAt)
	assert.Equal(t, stoppedAt, *got.StoppedAt)

	missing := testSession(9999)
	assert.ErrorIs(t, fs.UpdateSession(ctx, missing), ErrNotFound)
}

func TestFileStoreDeleteSessionsCascades(t *testing.T) {
	ctx := context.Background()
	fs, _ := tempStore(t)

	a, b := testSession(1000), testSession(2000)
	require.NoError(t, fs.CreateSession(ctx, a))
	require.NoError(t, fs.CreateSession(ctx, b))
	require.NoError(t, fs.AppendRecord(ctx, model.Record{SessionID: a.ID, Email: "x@nitjsr.ac.in"}))
	require.NoError(t, fs.AppendRecord(ctx, model.Record{SessionID: b.ID, Email: "x@nitjsr.ac.in"}))

	sessions, records, err := fs.DeleteSessions(ctx, []int64{a.ID})
	require.NoError(t, err)
	assert.Equal(t, 1, sessions)
	assert.Equal(t, 1, records)

	_, err = fs.GetSession(ctx, a.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	recs, err := fs.ListRecords(ctx, b.ID)
	require.NoError(t, err)
	assert.Len(t, recs, 1)
}

func TestFileStoreUsers(t *testing.T) {
	ctx := context.Background()
	fs, _ := tempStore(t)

	u := model.User{ID: "u1", Email: "teacher@nitjsr.ac.in", Name: "Teacher", PasswordHash: "h", CreatedAt: time.Now().UTC()}
	require.NoError(t, fs.CreateUser(ctx, u))

	// Email uniqueness is case-insensitive.
	dup := model.User{ID: "u2", Email: "TEACHER@nitjsr.ac.in"}
	assert.ErrorIs(t, fs.CreateUser(ctx, dup), ErrDuplicate)

	got, err := fs.GetUserByEmail(ctx, "Teacher@NITJSR.AC.IN")
	require.NoError(t, err)
	assert.Equal(t, "u1", got.ID)

	got.Name = "Renamed"
	require.NoError(t, fs.UpdateUser(ctx, got))
	got, err = fs.GetUserByEmail(ctx, u.Email)
	require.NoError(t, err)
	assert.Equal(t, "Renamed", got.Name)
}

func TestFileStoreOTPSupersede(t *testing.T) {
	ctx := context.Background()
	fs, _ := tempStore(t)

	first := model.OTP{Email: "teacher@nitjsr.ac.in", Code: "111111", ExpiresAt: time.Now().Add(time.Minute)}
	require.NoError(t, fs.PutOTP(ctx, first))
	second := model.OTP{Email: "teacher@nitjsr.ac.in", Code: "222222", ExpiresAt: time.Now().Add(time.Minute)}
	require.NoError(t, fs.PutOTP(ctx, second))

	got, err := fs.GetOTP(ctx, "teacher@nitjsr.ac.in")
	require.NoError(t, err)
	assert.Equal(t, "222222", got.Code)

	require.NoError(t, fs.DeleteOTP(ctx, "teacher@nitjsr.ac.in"))
	_, err = fs.GetOTP(ctx, "teacher@nitjsr.ac.in")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStoreHasNoFile(t *testing.T) {
	ctx := context.Background()
	ms := NewMemory()
	require.NoError(t, ms.CreateSession(ctx, testSession(1000)))
	got, err := ms.GetSession(ctx, 1000)
	require.NoError(t, err)
	assert.Equal(t, "CS101", got.Name)
}
