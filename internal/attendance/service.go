// Package attendance implements the session lifecycle, the submission
// validator, and the two periodic sweeps.
package attendance

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Ignisight/attendance-server/internal/apperr"
	"github.com/Ignisight/attendance-server/internal/metrics"
	"github.com/Ignisight/attendance-server/internal/model"
	"github.com/Ignisight/attendance-server/internal/store"
)

// Session-activeness policies.
const (
	// PolicySingle keeps at most one active session; starting a new
	// one deactivates the rest without stopping them.
	PolicySingle = "single"
	// PolicyMulti lets sessions run concurrently, each on its own
	// expiry clock.
	PolicyMulti = "multi"
)

// Config carries the domain knobs.
type Config struct {
	// AllowedDomain is the required email suffix, e.g. "@nitjsr.ac.in".
	AllowedDomain string
	// SessionDuration bounds both the validator's time-window check
	// and the expiry sweep; the two must agree.
	SessionDuration time.Duration
	// GeofenceRadiusM is the accepted distance from a geofenced
	// session's coordinates, in meters.
	GeofenceRadiusM float64
	// Policy is PolicySingle or PolicyMulti.
	Policy string
	// AllowSupersededSubmit lets a session deactivated by a
	// replacement (PolicySingle, not stopped) keep accepting
	// submissions through its original link.
	AllowSupersededSubmit bool
	// RetentionAge is how long sessions and their attendance are
	// kept before the retention sweep purges them.
	RetentionAge time.Duration
	// Location renders the locale date/time fields of a record.
	Location *time.Location
}

// Service serializes every mutation of the shared state behind one
// mutex; request handlers and sweep tickers all queue on it.
type Service struct {
	mu     sync.Mutex
	store  store.Store
	cfg    Config
	log    *zap.Logger
	now    func() time.Time
	lastID int64
}

// NewService builds a service. now defaults to time.Now.
func NewService(st store.Store, cfg Config, log *zap.Logger, now func() time.Time) *Service {
	if now == nil {
		now = time.Now
	}
	if cfg.SessionDuration <= 0 {
		cfg.SessionDuration = 10 * time.Minute
	}
	if cfg.GeofenceRadiusM <= 0 {
		cfg.GeofenceRadiusM = 80
	}
	if cfg.RetentionAge <= 0 {
		cfg.RetentionAge = 48 * time.Hour
	}
	if cfg.Policy == "" {
		cfg.Policy = PolicySingle
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &Service{store: st, cfg: cfg, log: log, now: now}
}

// StartSession creates a session, applying the activeness policy.
func (s *Service) StartSession(ctx context.Context, name string, lat, lon *float64) (model.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	name = strings.TrimSpace(name)
	if name == "" {
		return model.Session{}, apperr.New(apperr.CodeValidation, "session name is required")
	}
	if (lat == nil) != (lon == nil) {
		return model.Session{}, apperr.New(apperr.CodeValidation, "both latitude and longitude are required for a geofence")
	}
	if lat != nil && (*lat < -90 || *lat > 90 || *lon < -180 || *lon > 180) {
		return model.Session{}, apperr.New(apperr.CodeValidation, "coordinates out of range")
	}

	now := s.now()
	id := now.UnixMilli()
	// IDs double as creation timestamps; force monotonicity when two
	// starts land on the same millisecond.
	if id <= s.lastID {
		id = s.lastID + 1
	}
	s.lastID = id

	if s.cfg.Policy == PolicySingle {
		if err := s.deactivateActive(ctx); err != nil {
			return model.Session{}, err
		}
	}

	sess := model.Session{
		ID:        id,
		Name:      name,
		Code:      uuid.NewString(),
		CreatedAt: now.UTC(),
		Active:    true,
		Lat:       lat,
		Lon:       lon,
	}
	if err := s.store.CreateSession(ctx, sess); err != nil {
		return model.Session{}, apperr.Wrap(apperr.CodePersistence, err, "could not save session")
	}
	metrics.SessionsStarted.Inc()
	s.log.Info("session started",
		zap.Int64("id", sess.ID),
		zap.String("name", sess.Name),
		zap.Bool("geofenced", sess.Geofenced()))
	return sess, nil
}

// deactivateActive clears the active flag on every active session
// without setting stoppedAt; superseded is not stopped. Caller holds
// the mutex.
func (s *Service) deactivateActive(ctx context.Context) error {
	sessions, err := s.store.ListSessions(ctx)
	if err != nil {
		return apperr.Wrap(apperr.CodePersistence, err, "could not load sessions")
	}
	var updated []model.Session
	for _, cur := range sessions {
		if cur.Active {
			cur.Active = false
			updated = append(updated, cur)
		}
	}
	if len(updated) == 0 {
		return nil
	}
	if err := s.store.UpdateSessions(ctx, updated); err != nil {
		return apperr.Wrap(apperr.CodePersistence, err, "could not deactivate sessions")
	}
	return nil
}

// StopSession stops the identified session. A session that was merely
// superseded can still be stopped; one already carrying stoppedAt
// cannot.
func (s *Service) StopSession(ctx context.Context, id int64) (model.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.store.GetSession(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return model.Session{}, apperr.New(apperr.CodeNotFound, "session not found")
	}
	if err != nil {
		return model.Session{}, apperr.Wrap(apperr.CodePersistence, err, "could not load session")
	}
	if sess.StoppedAt != nil {
		return model.Session{}, apperr.New(apperr.CodeAlreadyStopped, "session already stopped")
	}
	stoppedAt := s.now().UnixMilli()
	sess.Active = false
	sess.StoppedAt = &stoppedAt
	if err := s.store.UpdateSession(ctx, sess); err != nil {
		return model.Session{}, apperr.Wrap(apperr.CodePersistence, err, "could not stop session")
	}
	s.log.Info("session stopped", zap.Int64("id", sess.ID), zap.String("name", sess.Name))
	return sess, nil
}

// StopAll stops every active session and returns how many it stopped.
func (s *Service) StopAll(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sessions, err := s.store.ListSessions(ctx)
	if err != nil {
		return 0, apperr.Wrap(apperr.CodePersistence, err, "could not load sessions")
	}
	stoppedAt := s.now().UnixMilli()
	var updated []model.Session
	for _, cur := range sessions {
		if cur.Active {
			cur.Active = false
			cur.StoppedAt = &stoppedAt
			updated = append(updated, cur)
		}
	}
	if len(updated) == 0 {
		return 0, nil
	}
	if err := s.store.UpdateSessions(ctx, updated); err != nil {
		return 0, apperr.Wrap(apperr.CodePersistence, err, "could not stop sessions")
	}
	s.log.Info("sessions stopped", zap.Int("count", len(updated)))
	return len(updated), nil
}

// Status returns the most recently created active session, or false
// when none is active.
func (s *Service) Status(ctx context.Context) (model.Session, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok, err := s.mostRecentActive(ctx)
	return sess, ok, err
}

func (s *Service) mostRecentActive(ctx context.Context) (model.Session, bool, error) {
	sessions, err := s.store.ListSessions(ctx)
	if err != nil {
		return model.Session{}, false, apperr.Wrap(apperr.CodePersistence, err, "could not load sessions")
	}
	var best model.Session
	found := false
	for _, cur := range sessions {
		if cur.Active && (!found || cur.ID > best.ID) {
			best = cur
			found = true
		}
	}
	return best, found, nil
}

// HistoryEntry is one session plus its response count.
type HistoryEntry struct {
	Session       model.Session
	ResponseCount int
}

// History lists all sessions, newest first, with response counts.
func (s *Service) History(ctx context.Context) ([]HistoryEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sessions, err := s.store.ListSessions(ctx)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodePersistence, err, "could not load sessions")
	}
	out := make([]HistoryEntry, 0, len(sessions))
	for _, cur := range sessions {
		n, err := s.store.CountRecords(ctx, cur.ID)
		if err != nil {
			return nil, apperr.Wrap(apperr.CodePersistence, err, "could not count responses")
		}
		out = append(out, HistoryEntry{Session: cur, ResponseCount: n})
	}
	// Reverse chronological; IDs are creation times.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

// SubmitInput is one incoming attendance submission.
type SubmitInput struct {
	SessionCode string
	Email       string
	Name        string
	Lat         *float64
	Lon         *float64
}

// Submit runs the acceptance decision in its fixed order and records
// the submission when every check passes.
func (s *Service) Submit(ctx context.Context, in SubmitInput) (model.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.submit(ctx, in)
	if err != nil {
		metrics.SubmissionsTotal.WithLabelValues(string(apperr.CodeOf(err))).Inc()
		return model.Record{}, err
	}
	metrics.SubmissionsTotal.WithLabelValues("accepted").Inc()
	return rec, nil
}

func (s *Service) submit(ctx context.Context, in SubmitInput) (model.Record, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	name := strings.TrimSpace(in.Name)
	if email == "" || name == "" {
		return model.Record{}, apperr.New(apperr.CodeMissingField, "email and name are required")
	}
	if !strings.HasSuffix(email, strings.ToLower(s.cfg.AllowedDomain)) {
		return model.Record{}, apperr.New(apperr.CodeDomainRejected, "please use your %s email address", s.cfg.AllowedDomain)
	}

	sess, err := s.resolveSession(ctx, in.SessionCode)
	if err != nil {
		return model.Record{}, err
	}
	// Explicitly stopped is terminal no matter what else holds.
	if sess.StoppedAt != nil {
		return model.Record{}, apperr.New(apperr.CodeSessionEnded, "this session has ended")
	}
	if !sess.Active && !s.cfg.AllowSupersededSubmit {
		return model.Record{}, apperr.New(apperr.CodeSessionEnded, "this session has ended")
	}

	dup, err := s.store.HasRecord(ctx, sess.ID, email)
	if err != nil {
		return model.Record{}, apperr.Wrap(apperr.CodePersistence, err, "could not check submissions")
	}
	if dup {
		return model.Record{}, apperr.New(apperr.CodeDuplicateSubmission, "attendance already submitted for this session")
	}

	now := s.now()
	if now.UnixMilli()-sess.ID >= s.cfg.SessionDuration.Milliseconds() {
		return model.Record{}, apperr.New(apperr.CodeSessionExpired, "this session has expired")
	}

	if sess.Geofenced() {
		if in.Lat == nil || in.Lon == nil {
			return model.Record{}, apperr.New(apperr.CodeLocationRequired, "location access is required for this session")
		}
		dist := Haversine(*sess.Lat, *sess.Lon, *in.Lat, *in.Lon)
		if dist > s.cfg.GeofenceRadiusM {
			return model.Record{}, apperr.New(apperr.CodeTooFar, "you are %.0f m away from the classroom (limit %.0f m)", dist, s.cfg.GeofenceRadiusM)
		}
	}

	roll := ParseRoll(email)
	local := now.In(s.cfg.Location)
	rec := model.Record{
		SessionID:   sess.ID,
		Email:       email,
		Name:        name,
		RollNumber:  roll.RollNumber,
		RollNo:      roll.RollNo,
		Year:        roll.Year,
		Program:     roll.Program,
		Branch:      roll.Branch,
		SubmittedAt: now.UTC(),
		Date:        local.Format("2/1/2006"),
		Time:        local.Format("3:04:05 pm"),
	}
	if err := s.store.AppendRecord(ctx, rec); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return model.Record{}, apperr.New(apperr.CodeDuplicateSubmission, "attendance already submitted for this session")
		}
		// The store rolls the in-memory append back on write
		// failure; surface it loudly instead of swallowing.
		s.log.Error("attendance write failed", zap.Error(err), zap.Int64("session", sess.ID))
		return model.Record{}, apperr.Wrap(apperr.CodePersistence, err, "could not save attendance")
	}
	return rec, nil
}

// resolveSession finds the submission target: by code when given
// (regardless of the active flag, so stale links report "ended" and
// superseded links keep working), otherwise the current active
// session.
func (s *Service) resolveSession(ctx context.Context, code string) (model.Session, error) {
	code = strings.TrimSpace(code)
	if code != "" {
		sess, err := s.store.GetSessionByCode(ctx, code)
		if errors.Is(err, store.ErrNotFound) {
			return model.Session{}, apperr.New(apperr.CodeNoActiveSession, "no such attendance session")
		}
		if err != nil {
			return model.Session{}, apperr.Wrap(apperr.CodePersistence, err, "could not load session")
		}
		return sess, nil
	}
	sess, ok, err := s.mostRecentActive(ctx)
	if err != nil {
		return model.Session{}, err
	}
	if !ok {
		return model.Session{}, apperr.New(apperr.CodeNoActiveSession, "no attendance session is currently active")
	}
	return sess, nil
}

// SessionByCode looks a session up by its link code, regardless of
// the active flag.
func (s *Service) SessionByCode(ctx context.Context, code string) (model.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.store.GetSessionByCode(ctx, strings.TrimSpace(code))
	if errors.Is(err, store.ErrNotFound) {
		return model.Session{}, apperr.New(apperr.CodeNotFound, "no such attendance session")
	}
	if err != nil {
		return model.Session{}, apperr.Wrap(apperr.CodePersistence, err, "could not load session")
	}
	return sess, nil
}

// Responses returns the records of the most recent session with the
// given name, sorted by roll number.
func (s *Service) Responses(ctx context.Context, sessionName string) (model.Session, []model.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sessions, err := s.store.ListSessions(ctx)
	if err != nil {
		return model.Session{}, nil, apperr.Wrap(apperr.CodePersistence, err, "could not load sessions")
	}
	var target model.Session
	found := false
	for _, cur := range sessions {
		if cur.Name == sessionName && (!found || cur.ID > target.ID) {
			target = cur
			found = true
		}
	}
	if !found {
		return model.Session{}, nil, apperr.New(apperr.CodeNotFound, "session %q not found", sessionName)
	}
	recs, err := s.store.ListRecords(ctx, target.ID)
	if err != nil {
		return model.Session{}, nil, apperr.Wrap(apperr.CodePersistence, err, "could not load responses")
	}
	SortByRoll(recs)
	return target, recs, nil
}

// SessionRecords returns a session and its records sorted by roll
// number; used by the per-session export.
func (s *Service) SessionRecords(ctx context.Context, id int64) (model.Session, []model.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.store.GetSession(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return model.Session{}, nil, apperr.New(apperr.CodeNotFound, "session not found")
	}
	if err != nil {
		return model.Session{}, nil, apperr.Wrap(apperr.CodePersistence, err, "could not load session")
	}
	recs, err := s.store.ListRecords(ctx, sess.ID)
	if err != nil {
		return model.Session{}, nil, apperr.Wrap(apperr.CodePersistence, err, "could not load responses")
	}
	SortByRoll(recs)
	return sess, recs, nil
}

// DeleteSessions purges the identified sessions with their attendance.
func (s *Service) DeleteSessions(ctx context.Context, ids []int64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sessions, records, err := s.store.DeleteSessions(ctx, ids)
	if err != nil {
		return 0, apperr.Wrap(apperr.CodePersistence, err, "could not delete sessions")
	}
	if sessions > 0 {
		s.log.Info("sessions deleted", zap.Int("sessions", sessions), zap.Int("records", records))
	}
	return sessions, nil
}

// ClearAll purges every session and attendance record.
func (s *Service) ClearAll(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sessions, err := s.store.ListSessions(ctx)
	if err != nil {
		return 0, apperr.Wrap(apperr.CodePersistence, err, "could not load sessions")
	}
	ids := make([]int64, 0, len(sessions))
	for _, cur := range sessions {
		ids = append(ids, cur.ID)
	}
	n, records, err := s.store.DeleteSessions(ctx, ids)
	if err != nil {
		return 0, apperr.Wrap(apperr.CodePersistence, err, "could not clear sessions")
	}
	s.log.Info("all sessions cleared", zap.Int("sessions", n), zap.Int("records", records))
	return n, nil
}

// ExpireSweep deactivates every active session older than the session
// duration. The expiry timestamp is derived from the creation time,
// not the sweep clock, so repeated sweeps are deterministic no-ops.
func (s *Service) ExpireSweep(ctx context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sessions, err := s.store.ListSessions(ctx)
	if err != nil {
		return 0, apperr.Wrap(apperr.CodePersistence, err, "could not load sessions")
	}
	durMs := s.cfg.SessionDuration.Milliseconds()
	var updated []model.Session
	for _, cur := range sessions {
		if !cur.Active || now.UnixMilli()-cur.ID < durMs {
			continue
		}
		stoppedAt := cur.ID + durMs
		cur.Active = false
		cur.StoppedAt = &stoppedAt
		updated = append(updated, cur)
	}
	if len(updated) == 0 {
		return 0, nil
	}
	if err := s.store.UpdateSessions(ctx, updated); err != nil {
		return 0, apperr.Wrap(apperr.CodePersistence, err, "could not expire sessions")
	}
	metrics.SessionsExpired.Add(float64(len(updated)))
	s.log.Info("sessions expired", zap.Int("count", len(updated)))
	return len(updated), nil
}

// RetentionSweep purges sessions created before now minus the
// retention age, together with their attendance.
func (s *Service) RetentionSweep(ctx context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sessions, err := s.store.ListSessions(ctx)
	if err != nil {
		return 0, apperr.Wrap(apperr.CodePersistence, err, "could not load sessions")
	}
	cutoff := now.Add(-s.cfg.RetentionAge)
	var ids []int64
	for _, cur := range sessions {
		if cur.CreatedAt.Before(cutoff) {
			ids = append(ids, cur.ID)
		}
	}
	if len(ids) == 0 {
		return 0, nil
	}
	purgedSessions, purgedRecords, err := s.store.DeleteSessions(ctx, ids)
	if err != nil {
		return 0, apperr.Wrap(apperr.CodePersistence, err, "could not purge old sessions")
	}
	metrics.RetentionPurged.WithLabelValues("sessions").Add(float64(purgedSessions))
	metrics.RetentionPurged.WithLabelValues("records").Add(float64(purgedRecords))
	s.log.Info("retention sweep",
		zap.Int("sessions", purgedSessions),
		zap.Int("records", purgedRecords))
	return purgedSessions, nil
}
