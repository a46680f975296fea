package services

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/dmitrijs2005/doorkeeper/internal/common"
	"github.com/dmitrijs2005/doorkeeper/internal/dbx"
	"github.com/dmitrijs2005/doorkeeper/internal/server/models"
	"github.com/dmitrijs2005/doorkeeper/internal/server/repositories/attendees"
	"github.com/dmitrijs2005/doorkeeper/internal/server/repositories/checkins"
	"github.com/dmitrijs2005/doorkeeper/internal/server/repositories/events"
	"github.com/dmitrijs2005/doorkeeper/internal/server/repositories/refreshtokens"
	"github.com/dmitrijs2005/doorkeeper/internal/server/repositories/users"
)

const (
	eventA    = "6f1c1d52-8a3e-4c47-9b39-2f6d0d6c9a10"
	eventB    = "0b6f7d7e-3d1c-4a55-8f0e-8b0f4a0c2b21"
	attendee1 = "a3c2b1d0-1111-4aaa-8bbb-000000000001"
	attendee2 = "a3c2b1d0-2222-4aaa-8bbb-000000000002"
	attendee3 = "a3c2b1d0-3333-4aaa-8bbb-000000000003"
)

type errBoom struct{}

func (errBoom) Error() string { return "boom" }

// memStore is an in-memory stand-in for the database. Redeem is atomic under
// the store mutex, the same guarantee the conditional update gives.
type memStore struct {
	mu        sync.Mutex
	events    map[string]*models.Event
	attendees map[string]*models.Attendee
	attempts  []*models.CheckInAttempt
	users     map[string]*models.User
	refresh   map[string]*models.RefreshToken

	redeemErr        error
	findErr          error
	eventErr         error
	setTokenErr      map[string]error
	recordErr        error
	createUserErr    error
	getUserErr       error
	findRefreshErr   error
	deleteRefreshErr error
	createRefreshErr error
	deleteExpiredErr error
}

func newMemStore() *memStore {
	return &memStore{
		events:      map[string]*models.Event{},
		attendees:   map[string]*models.Attendee{},
		users:       map[string]*models.User{},
		refresh:     map[string]*models.RefreshToken{},
		setTokenErr: map[string]error{},
	}
}

func (s *memStore) addEvent(id, name, slug string) {
	s.events[id] = &models.Event{ID: id, Name: name, Slug: slug}
}

func (s *memStore) addAttendee(id, eventID, first, last string) *models.Attendee {
	a := &models.Attendee{ID: id, EventID: eventID, FirstName: first, LastName: last}
	s.attendees[id] = a
	return a
}

func (s *memStore) withToken(id, token string, expiresAt time.Time) {
	a := s.attendees[id]
	a.QRToken = &token
	a.QRExpiresAt = &expiresAt
}

func (s *memStore) get(id string) *models.Attendee {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneAttendee(s.attendees[id])
}

func (s *memStore) audit() []*models.CheckInAttempt {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*models.CheckInAttempt(nil), s.attempts...)
}

func cloneAttendee(a *models.Attendee) *models.Attendee {
	if a == nil {
		return nil
	}
	c := *a
	return &c
}

type memManager struct{ s *memStore }

func (m *memManager) RunMigrations(context.Context, *sql.DB) error    { return nil }
func (m *memManager) Users(dbx.DBTX) users.Repository                 { return memUsers{m.s} }
func (m *memManager) RefreshTokens(dbx.DBTX) refreshtokens.Repository { return memRefresh{m.s} }
func (m *memManager) Attendees(dbx.DBTX) attendees.Repository         { return memAttendees{m.s} }
func (m *memManager) Events(dbx.DBTX) events.Repository               { return memEvents{m.s} }
func (m *memManager) CheckIns(dbx.DBTX) checkins.Repository           { return memCheckIns{m.s} }

type memAttendees struct{ s *memStore }

func (r memAttendees) Redeem(_ context.Context, eventID, entryID, token, deviceID string, now time.Time) (*models.Attendee, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.redeemErr != nil {
		return nil, r.s.redeemErr
	}
	a := r.s.attendees[entryID]
	if a == nil || a.EventID != eventID || a.QRToken == nil || *a.QRToken != token ||
		a.QRExpiresAt == nil || !a.QRExpiresAt.After(now) || a.QRUsedAt != nil || a.CheckedIn {
		return nil, common.ErrorNotFound
	}
	usedAt := now
	a.QRUsedAt = &usedAt
	if deviceID != "" {
		a.QRUsedByDevice = &deviceID
	}
	a.QRToken, a.QRExpiresAt = nil, nil
	a.CheckedIn = true
	a.CheckedInAt = &usedAt
	return cloneAttendee(a), nil
}

func (r memAttendees) FindByID(_ context.Context, id string) (*models.Attendee, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.findErr != nil {
		return nil, r.s.findErr
	}
	a := r.s.attendees[id]
	if a == nil {
		return nil, common.ErrorNotFound
	}
	return cloneAttendee(a), nil
}

func (r memAttendees) FindByEventAndID(ctx context.Context, eventID, id string) (*models.Attendee, error) {
	a, err := r.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if a.EventID != eventID {
		return nil, common.ErrorNotFound
	}
	return a, nil
}

func (r memAttendees) SetToken(_ context.Context, id, eventID, token string, expiresAt time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.setTokenErr[id]; err != nil {
		return err
	}
	a := r.s.attendees[id]
	if a == nil || a.EventID != eventID {
		return common.ErrorNotFound
	}
	a.QRToken = &token
	a.QRExpiresAt = &expiresAt
	return nil
}

func (r memAttendees) MarkCheckedIn(_ context.Context, id string, now time.Time) (*models.Attendee, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	a := r.s.attendees[id]
	if a == nil || a.CheckedIn {
		return nil, common.ErrorNotFound
	}
	at := now
	a.CheckedIn = true
	a.CheckedInAt = &at
	return cloneAttendee(a), nil
}

func (r memAttendees) ListByEvent(_ context.Context, eventID string) ([]models.AttendeeRef, error) {
	var out []models.AttendeeRef
	for _, ref := range r.refs() {
		if ref.EventID == eventID {
			out = append(out, ref)
		}
	}
	return out, nil
}

func (r memAttendees) ListAll(context.Context) ([]models.AttendeeRef, error) {
	return r.refs(), nil
}

func (r memAttendees) refs() []models.AttendeeRef {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]models.AttendeeRef, 0, len(r.s.attendees))
	for _, a := range r.s.attendees {
		out = append(out, models.AttendeeRef{ID: a.ID, EventID: a.EventID})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (r memAttendees) ListForSnapshot(_ context.Context, eventID string) ([]*models.SnapshotEntry, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*models.SnapshotEntry
	for _, a := range r.s.attendees {
		if eventID != "" && a.EventID != eventID {
			continue
		}
		e := &models.SnapshotEntry{ID: a.ID, EventID: a.EventID, FirstName: a.FirstName, LastName: a.LastName,
			CheckedIn: a.CheckedIn, CheckedInAt: a.CheckedInAt, QRToken: a.QRToken, QRExpiresAt: a.QRExpiresAt}
		if ev := r.s.events[a.EventID]; ev != nil {
			e.EventName = ev.Name
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

type memEvents struct{ s *memStore }

func (r memEvents) GetByID(_ context.Context, id string) (*models.Event, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.eventErr != nil {
		return nil, r.s.eventErr
	}
	ev := r.s.events[id]
	if ev == nil {
		return nil, common.ErrorNotFound
	}
	c := *ev
	return &c, nil
}

func (r memEvents) GetBySlug(_ context.Context, slug string) (*models.Event, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.eventErr != nil {
		return nil, r.s.eventErr
	}
	for _, ev := range r.s.events {
		if ev.Slug == slug {
			c := *ev
			return &c, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (r memEvents) List(context.Context) ([]*models.Event, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]*models.Event, 0, len(r.s.events))
	for _, ev := range r.s.events {
		c := *ev
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

type memCheckIns struct{ s *memStore }

func (r memCheckIns) Record(_ context.Context, a *models.CheckInAttempt) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.recordErr != nil {
		return r.s.recordErr
	}
	c := *a
	c.ID = int64(len(r.s.attempts) + 1)
	r.s.attempts = append(r.s.attempts, &c)
	return nil
}

func (r memCheckIns) ListRecent(_ context.Context, limit int) ([]*models.CheckInAttempt, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	n := min(limit, len(r.s.attempts))
	return append([]*models.CheckInAttempt(nil), r.s.attempts[len(r.s.attempts)-n:]...), nil
}

type memUsers struct{ s *memStore }

func (r memUsers) Create(_ context.Context, u *models.User) (*models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.createUserErr != nil {
		return nil, r.s.createUserErr
	}
	c := *u
	if c.ID == "" {
		c.ID = fmt.Sprintf("u%d", len(r.s.users)+1)
	}
	r.s.users[c.ID] = &c
	return &c, nil
}

func (r memUsers) GetUserByLogin(_ context.Context, login string) (*models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.getUserErr != nil {
		return nil, r.s.getUserErr
	}
	for _, u := range r.s.users {
		if u.UserName == login {
			c := *u
			return &c, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (r memUsers) GetByID(_ context.Context, id string) (*models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.getUserErr != nil {
		return nil, r.s.getUserErr
	}
	u := r.s.users[id]
	if u == nil {
		return nil, common.ErrorNotFound
	}
	c := *u
	return &c, nil
}

type memRefresh struct{ s *memStore }

func (r memRefresh) Create(_ context.Context, userID, token string, expiresAt time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.createRefreshErr != nil {
		return r.s.createRefreshErr
	}
	r.s.refresh[token] = &models.RefreshToken{UserID: userID, Token: token, Expires: expiresAt}
	return nil
}

func (r memRefresh) Find(_ context.Context, token string) (*models.RefreshToken, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.findRefreshErr != nil {
		return nil, r.s.findRefreshErr
	}
	t := r.s.refresh[token]
	if t == nil {
		return nil, common.ErrorNotFound
	}
	c := *t
	return &c, nil
}

func (r memRefresh) Delete(_ context.Context, token string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.deleteRefreshErr != nil {
		return r.s.deleteRefreshErr
	}
	delete(r.s.refresh, token)
	return nil
}

func (r memRefresh) DeleteExpired(_ context.Context, userID string, now time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.deleteExpiredErr != nil {
		return 0, r.s.deleteExpiredErr
	}
	var n int64
	for k, t := range r.s.refresh {
		if t.UserID == userID && t.Expires.Before(now) {
			delete(r.s.refresh, k)
			n++
		}
	}
	return n, nil
}

// recordingPublisher keeps published messages for assertions.
type recordingPublisher struct {
	mu   sync.Mutex
	keys []string
	msgs []any
	err  error
}

func (p *recordingPublisher) PublishJSON(_ context.Context, key string, v any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.keys = append(p.keys, key)
	p.msgs = append(p.msgs, v)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) published() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.keys...)
}

type fixedClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fixedClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func newClock() *fixedClock {
	return &fixedClock{t: time.Date(2026, 5, 1, 18, 0, 0, 0, time.UTC)}
}
