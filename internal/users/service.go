// Package users is the account collaborator: registration, login, and
// OTP-based password recovery for teacher accounts.
package users

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/Ignisight/attendance-server/internal/apperr"
	"github.com/Ignisight/attendance-server/internal/model"
	"github.com/Ignisight/attendance-server/internal/store"
)

// Service manages teacher accounts.
type Service struct {
	store  store.Store
	log    *zap.Logger
	now    func() time.Time
	otpTTL time.Duration
}

// NewService builds the account service. now defaults to time.Now.
func NewService(st store.Store, log *zap.Logger, now func() time.Time) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{store: st, log: log, now: now, otpTTL: 10 * time.Minute}
}

// Register creates a teacher account with a bcrypt password hash.
func (s *Service) Register(ctx context.Context, email, name, college, department, password string) (model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	name = strings.TrimSpace(name)
	if email == "" || name == "" || password == "" {
		return model.User{}, apperr.New(apperr.CodeMissingField, "email, name and password are required")
	}
	if len(password) < 6 {
		return model.User{}, apperr.New(apperr.CodeValidation, "password must be at least 6 characters")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return model.User{}, apperr.Wrap(apperr.CodePersistence, err, "could not hash password")
	}
	u := model.User{
		ID:           uuid.NewString(),
		Email:        email,
		Name:         name,
		College:      strings.TrimSpace(college),
		Department:   strings.TrimSpace(department),
		PasswordHash: string(hash),
		CreatedAt:    s.now().UTC(),
	}
	if err := s.store.CreateUser(ctx, u); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return model.User{}, apperr.New(apperr.CodeDuplicateAccount, "an account with this email already exists")
		}
		return model.User{}, apperr.Wrap(apperr.CodePersistence, err, "could not save account")
	}
	s.log.Info("account registered", zap.String("email", email))
	return u, nil
}

// Login verifies credentials and returns the account.
func (s *Service) Login(ctx context.Context, email, password string) (model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return model.User{}, apperr.New(apperr.CodeMissingField, "email and password are required")
	}
	u, err := s.store.GetUserByEmail(ctx, email)
	if errors.Is(err, store.ErrNotFound) {
		return model.User{}, apperr.New(apperr.CodeUnauthorized, "invalid email or password")
	}
	if err != nil {
		return model.User{}, apperr.Wrap(apperr.CodePersistence, err, "could not load account")
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return model.User{}, apperr.New(apperr.CodeUnauthorized, "invalid email or password")
	}
	return u, nil
}

// ForgotPassword issues a fresh OTP, superseding any live one. The
// code is logged rather than mailed; the mailer is an external
// collaborator.
func (s *Service) ForgotPassword(ctx context.Context, email string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	if _, err := s.store.GetUserByEmail(ctx, email); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return apperr.New(apperr.CodeNotFound, "no account with this email")
		}
		return apperr.Wrap(apperr.CodePersistence, err, "could not load account")
	}
	code, err := otpCode()
	if err != nil {
		return apperr.Wrap(apperr.CodePersistence, err, "could not generate code")
	}
	otp := model.OTP{Email: email, Code: code, ExpiresAt: s.now().Add(s.otpTTL)}
	if err := s.store.PutOTP(ctx, otp); err != nil {
		return apperr.Wrap(apperr.CodePersistence, err, "could not save code")
	}
	s.log.Info("password reset code issued", zap.String("email", email), zap.String("otp", code))
	return nil
}

// ResetPassword consumes a live OTP and installs the new password.
func (s *Service) ResetPassword(ctx context.Context, email, code, newPassword string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || code == "" || newPassword == "" {
		return apperr.New(apperr.CodeMissingField, "email, otp and new password are required")
	}
	otp, err := s.store.GetOTP(ctx, email)
	if errors.Is(err, store.ErrNotFound) {
		return apperr.New(apperr.CodeUnauthorized, "invalid or expired code")
	}
	if err != nil {
		return apperr.Wrap(apperr.CodePersistence, err, "could not load code")
	}
	if otp.Code != code || s.now().After(otp.ExpiresAt) {
		return apperr.New(apperr.CodeUnauthorized, "invalid or expired code")
	}
	if err := s.setPassword(ctx, email, newPassword); err != nil {
		return err
	}
	if err := s.store.DeleteOTP(ctx, email); err != nil {
		return apperr.Wrap(apperr.CodePersistence, err, "could not clear code")
	}
	s.log.Info("password reset", zap.String("email", email))
	return nil
}

// ChangePassword verifies the current password and installs the new
// one.
func (s *Service) ChangePassword(ctx context.Context, email, current, newPassword string) error {
	if _, err := s.Login(ctx, email, current); err != nil {
		return err
	}
	return s.setPassword(ctx, email, newPassword)
}

func (s *Service) setPassword(ctx context.Context, email, password string) error {
	if len(password) < 6 {
		return apperr.New(apperr.CodeValidation, "password must be at least 6 characters")
	}
	u, err := s.store.GetUserByEmail(ctx, email)
	if err != nil {
		return apperr.Wrap(apperr.CodePersistence, err, "could not load account")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return apperr.Wrap(apperr.CodePersistence, err, "could not hash password")
	}
	u.PasswordHash = string(hash)
	if err := s.store.UpdateUser(ctx, u); err != nil {
		return apperr.Wrap(apperr.CodePersistence, err, "could not save account")
	}
	return nil
}

// UpdateProfile updates the mutable account fields.
func (s *Service) UpdateProfile(ctx context.Context, email, name, college, department string) (model.User, error) {
	u, err := s.store.GetUserByEmail(ctx, email)
	if errors.Is(err, store.ErrNotFound) {
		return model.User{}, apperr.New(apperr.CodeNotFound, "account not found")
	}
	if err != nil {
		return model.User{}, apperr.Wrap(apperr.CodePersistence, err, "could not load account")
	}
	if name = strings.TrimSpace(name); name != "" {
		u.Name = name
	}
	if college = strings.TrimSpace(college); college != "" {
		u.College = college
	}
	if department = strings.TrimSpace(department); department != "" {
		u.Department = department
	}
	if err := s.store.UpdateUser(ctx, u); err != nil {
		return model.User{}, apperr.Wrap(apperr.CodePersistence, err, "could not save account")
	}
	return u, nil
}

// otpCode returns a 6-digit numeric code.
func otpCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}
