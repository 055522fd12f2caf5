package users

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Ignisight/attendance-server/internal/apperr"
	"github.com/Ignisight/attendance-server/internal/store"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestService() (*Service, *fakeClock, store.Store) {
	clk := &fakeClock{t: time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)}
	st := store.NewMemory()
	return NewService(st, zap.NewNop(), clk.now), clk, st
}

func TestRegisterAndLogin(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	u, err := svc.Register(ctx, "Teacher@nitjsr.ac.in", "Teacher", "NIT Jamshedpur", "CSE", "secret1")
	require.NoError(t, err)
	assert.Equal(t, "teacher@nitjsr.ac.in", u.Email)
	assert.NotEqual(t, "secret1", u.PasswordHash)

	// Duplicate registration, case-insensitive.
	_, err = svc.Register(ctx, "TEACHER@nitjsr.ac.in", "Other", "", "", "secret2")
	assert.True(t, apperr.Is(err, apperr.CodeDuplicateAccount))

	_, err = svc.Login(ctx, "teacher@nitjsr.ac.in", "secret1")
	require.NoError(t, err)

	_, err = svc.Login(ctx, "teacher@nitjsr.ac.in", "wrong")
	assert.True(t, apperr.Is(err, apperr.CodeUnauthorized))

	_, err = svc.Login(ctx, "nobody@nitjsr.ac.in", "secret1")
	assert.True(t, apperr.Is(err, apperr.CodeUnauthorized))
}

func TestRegisterValidation(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	_, err := svc.Register(ctx, "", "Teacher", "", "", "secret1")
	assert.True(t, apperr.Is(err, apperr.CodeMissingField))

	_, err = svc.Register(ctx, "t@nitjsr.ac.in", "Teacher", "", "", "short")
	assert.True(t, apperr.Is(err, apperr.CodeValidation))
}

func TestPasswordResetFlow(t *testing.T) {
	svc, _, st := newTestService()
	ctx := context.Background()

	_, err := svc.Register(ctx, "teacher@nitjsr.ac.in", "Teacher", "", "", "secret1")
	require.NoError(t, err)

	require.NoError(t, svc.ForgotPassword(ctx, "teacher@nitjsr.ac.in"))
	first, err := st.GetOTP(ctx, "teacher@nitjsr.ac.in")
	require.NoError(t, err)
	assert.Len(t, first.Code, 6)

	// A second request supersedes the first code.
	require.NoError(t, svc.ForgotPassword(ctx, "teacher@nitjsr.ac.in"))
	otp, err := st.GetOTP(ctx, "teacher@nitjsr.ac.in")
	require.NoError(t, err)
	if first.Code != otp.Code {
		err = svc.ResetPassword(ctx, "teacher@nitjsr.ac.in", first.Code, "newsecret")
		assert.True(t, apperr.Is(err, apperr.CodeUnauthorized))
	}

	require.NoError(t, svc.ResetPassword(ctx, "teacher@nitjsr.ac.in", otp.Code, "newsecret"))
	_, err = svc.Login(ctx, "teacher@nitjsr.ac.in", "newsecret")
	require.NoError(t, err)

	// The OTP is consumed.
	err = svc.ResetPassword(ctx, "teacher@nitjsr.ac.in", otp.Code, "another1")
	assert.True(t, apperr.Is(err, apperr.CodeUnauthorized))
}

func TestResetPasswordExpiredOTP(t *testing.T) {
	svc, clk, st := newTestService()
	ctx := context.Background()

	_, err := svc.Register(ctx, "teacher@nitjsr.ac.in", "Teacher", "", "", "secret1")
	require.NoError(t, err)
	require.NoError(t, svc.ForgotPassword(ctx, "teacher@nitjsr.ac.in"))
	otp, err := st.GetOTP(ctx, "teacher@nitjsr.ac.in")
	require.NoError(t, err)

	clk.advance(11 * time.Minute)
	err = svc.ResetPassword(ctx, "teacher@nitjsr.ac.in", otp.Code, "newsecret")
	assert.True(t, apperr.Is(err, apperr.CodeUnauthorized))
}

func TestForgotPasswordUnknownAccount(t *testing.T) {
	svc, _, _ := newTestService()
	err := svc.ForgotPassword(context.Background(), "nobody@nitjsr.ac.in")
	assert.True(t, apperr.Is(err, apperr.CodeNotFound))
}

func TestChangePassword(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	_, err := svc.Register(ctx, "teacher@nitjsr.ac.in", "Teacher", "", "", "secret1")
	require.NoError(t, err)

	err = svc.ChangePassword(ctx, "teacher@nitjsr.ac.in", "wrong", "newsecret")
	assert.True(t, apperr.Is(err, apperr.CodeUnauthorized))

	require.NoError(t, svc.ChangePassword(ctx, "teacher@nitjsr.ac.in", "secret1", "newsecret"))
	_, err = svc.Login(ctx, "teacher@nitjsr.ac.in", "newsecret")
	require.NoError(t, err)
}

func TestUpdateProfile(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	_, err := svc.Register(ctx, "teacher@nitjsr.ac.in", "Teacher", "NIT", "CSE", "secret1")
	require.NoError(t, err)

	u, err := svc.UpdateProfile(ctx, "teacher@nitjsr.ac.in", "New Name", "", "ECE")
	require.NoError(t, err)
	assert.Equal(t, "New Name", u.Name)
	assert.Equal(t, "NIT", u.College)
	assert.Equal(t, "ECE", u.Department)

	_, err = svc.UpdateProfile(ctx, "nobody@nitjsr.ac.in", "X", "", "")
	assert.True(t, apperr.Is(err, apperr.CodeNotFound))
}
