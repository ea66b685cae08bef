package service

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"testing"
	"time"

	"doc-tracker/internal/geo"
	"doc-tracker/internal/identity"
	"doc-tracker/internal/model"
	"doc-tracker/internal/notify"
	"doc-tracker/internal/repository"
	"doc-tracker/pkg/config"
	"doc-tracker/pkg/db"

	"github.com/stretchr/testify/require"
)

// 每个测试一个全新的内存库
func setupTestDB(t *testing.T) {
	t.Helper()
	require.NoError(t, config.InitTest(), "Failed to initialize config")
	require.NoError(t, db.InitDB(config.GlobalConfig.Database), "Failed to connect to test database")
	t.Cleanup(func() {
		if sqlDB, err := db.DB.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
}

// recordingNotifier 同步记录所有分发请求
type recordingNotifier struct {
	mu   sync.Mutex
	sent []notify.Notification
}

func (r *recordingNotifier) Dispatch(_ context.Context, n notify.Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, n)
}

func (r *recordingNotifier) kinds() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	kinds := make([]string, len(r.sent))
	for i, n := range r.sent {
		kinds[i] = n.Kind
	}
	return kinds
}

func (r *recordingNotifier) count(kind, sessionID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	var c int
	for _, n := range r.sent {
		if n.Kind == kind && (sessionID == "" || n.SessionID == sessionID) {
			c++
		}
	}
	return c
}

func (r *recordingNotifier) last(kind string) *notify.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.sent) - 1; i >= 0; i-- {
		if r.sent[i].Kind == kind {
			n := r.sent[i]
			return &n
		}
	}
	return nil
}

type stubLocator struct {
	location *geo.Location
	calls    int
}

func (s *stubLocator) Lookup(context.Context, string) *geo.Location {
	s.calls++
	return s.location
}

type fixture struct {
	t          *testing.T
	tracking   *TrackingService
	guard      *AccessGuard
	engagement *Engagement
	analytics  *AnalyticsService
	notifier   *recordingNotifier
	locator    *stubLocator
	clock      time.Time
	owner      *model.User
	doc        *model.Document
	share      *model.Share
	headers    http.Header
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	setupTestDB(t)
	cfg := config.GlobalConfig.Tracking

	owner := &model.User{Email: "owner@example.com", DisplayName: "Owner", NotifyByEmail: true}
	require.NoError(t, db.DB.Create(owner).Error)
	doc := &model.Document{OwnerID: owner.ID, Name: "Pitch Deck", NumPages: 3}
	require.NoError(t, db.DB.Create(doc).Error)
	share := &model.Share{Token: "tok-1", UserID: owner.ID, DocumentID: doc.ID, Active: true}
	require.NoError(t, db.DB.Create(share).Error)

	shares := repository.NewShareRepository()
	spaces := repository.NewSpaceRepository()
	viewers := repository.NewViewerRepository()
	analyticsRepo := repository.NewAnalyticsRepository()
	interactions := repository.NewInteractionRepository()

	validator, err := NewEventValidator()
	require.NoError(t, err)

	f := &fixture{
		t:        t,
		notifier: &recordingNotifier{},
		locator:  &stubLocator{location: &geo.Location{Country: "Germany", CountryCode: "DE", City: "Berlin"}},
		clock:    time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC),
		owner:    owner,
		doc:      doc,
		share:    share,
		headers: http.Header{
			"User-Agent":      []string{"Mozilla/5.0 (Macintosh; Intel Mac OS X 14_0)"},
			"X-Forwarded-For": []string{"203.0.113.7, 10.0.0.1"},
		},
	}

	f.engagement = NewEngagement(shares, analyticsRepo, viewers, interactions,
		repository.NewPresenceRepository(), cfg)
	f.guard = NewAccessGuard(spaces, f.notifier)
	f.guard.now = f.now
	f.tracking = NewTrackingService(TrackingDeps{
		Shares:     shares,
		Spaces:     spaces,
		Guard:      f.guard,
		Sessions:   NewSessionTracker(repository.NewSessionRepository(), viewers, shares, analyticsRepo, cfg),
		Engagement: f.engagement,
		Ledger:     notify.NewDedupGuard(repository.NewLedgerRepository()),
		Notifier:   f.notifier,
		Locator:    f.locator,
		Validator:  validator,
		Config:     cfg,
	})
	f.tracking.now = f.now
	f.analytics = NewAnalyticsService(shares, viewers, analyticsRepo, interactions, f.engagement)
	f.analytics.now = f.now
	return f
}

func (f *fixture) now() time.Time { return f.clock }

func (f *fixture) advance(d time.Duration) { f.clock = f.clock.Add(d) }

// send 以 JSON 上报一个事件
func (f *fixture) send(event map[string]any) error {
	f.t.Helper()
	return f.sendTo(f.share.Token, event)
}

// sendTo 通过指定分享上报事件
func (f *fixture) sendTo(token string, event map[string]any) error {
	f.t.Helper()
	body, err := json.Marshal(event)
	require.NoError(f.t, err)
	return f.tracking.Track(context.Background(), TrackRequest{Token: token, Body: body, Headers: f.headers})
}

func (f *fixture) mustSend(event map[string]any) {
	f.t.Helper()
	require.NoError(f.t, f.send(event))
}

func (f *fixture) viewerID() string {
	return identity.ViewerID(identity.ClientIP(f.headers), f.headers.Get("User-Agent"))
}

func (f *fixture) reloadShare() *model.Share {
	f.t.Helper()
	var share model.Share
	require.NoError(f.t, db.DB.First(&share, f.share.ID).Error)
	return &share
}

func (f *fixture) viewer() *model.ViewerIdentity {
	f.t.Helper()
	var row model.ViewerIdentity
	require.NoError(f.t, db.DB.Where("document_id = ?", f.doc.ID).First(&row).Error)
	return &row
}

func (f *fixture) pageLogs(sessionID string, page int) []model.AnalyticsLog {
	f.t.Helper()
	var logs []model.AnalyticsLog
	require.NoError(f.t, db.DB.Where("session_id = ? AND page_number = ? AND kind = ?",
		sessionID, page, model.LogKindPageView).Order("id ASC").Find(&logs).Error)
	return logs
}
