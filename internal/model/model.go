package model

import "time"

// Session is one attendance window. ID is the creation time in Unix
// milliseconds; it is unique, monotonically assigned, and feeds the
// expiry computation.
type Session struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Code      string    `json:"code"`
	CreatedAt time.Time `json:"createdAt"`
	Active    bool      `json:"active"`
	// StoppedAt is set only when a session is explicitly stopped or
	// expired by the sweep. A session deactivated by a replacement
	// keeps StoppedAt nil; "stopped" and "merely inactive" are
	// distinct states.
	StoppedAt *int64   `json:"stoppedAt,omitempty"`
	Lat       *float64 `json:"lat,omitempty"`
	Lon       *float64 `json:"lon,omitempty"`
}

// Geofenced reports whether submissions must carry coordinates.
func (s Session) Geofenced() bool { return s.Lat != nil && s.Lon != nil }

// Record is a single accepted attendance submission. Records are never
// mutated; they are deleted only when their owning session is purged.
type Record struct {
	SessionID int64  `json:"sessionId"`
	Email     string `json:"email"`
	Name      string `json:"name"`
	// RollNumber is the full uppercased email local-part and doubles
	// as the registration number. RollNo is the trailing serial.
	RollNumber  string    `json:"rollNumber"`
	RollNo      string    `json:"rollNo"`
	Year        string    `json:"year"`
	Program     string    `json:"program"`
	Branch      string    `json:"branch"`
	SubmittedAt time.Time `json:"submittedAt"`
	Date        string    `json:"date"`
	Time        string    `json:"time"`
}

// User is a teacher account.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	College      string    `json:"college"`
	Department   string    `json:"department"`
	PasswordHash string    `json:"passwordHash"`
	CreatedAt    time.Time `json:"createdAt"`
}

// OTP is a one-time password-reset code. At most one live OTP exists
// per email; inserting a new one drops any previous entry.
type OTP struct {
	Email     string    `json:"email"`
	Code      string    `json:"otp"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// State is the whole persisted document. The file store rewrites it in
// full on every mutation.
type State struct {
	Users      []User    `json:"users"`
	OTPs       []OTP     `json:"otps"`
	Sessions   []Session `json:"sessions"`
	Attendance []Record  `json:"attendance"`
}
