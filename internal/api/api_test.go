package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"doc-tracker/internal/model"
	"doc-tracker/internal/notify"
	"doc-tracker/internal/repository"
	"doc-tracker/internal/service"
	"doc-tracker/pkg/config"
	"doc-tracker/pkg/db"
	"doc-tracker/pkg/utils"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type recordingNotifier struct {
	mu    sync.Mutex
	kinds []string
}

func (r *recordingNotifier) Dispatch(_ context.Context, n notify.Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.kinds = append(r.kinds, n.Kind)
}

type testServer struct {
	router   *gin.Engine
	notifier *recordingNotifier
	owner    *model.User
	share    *model.Share
	token    string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	require.NoError(t, config.InitTest())
	require.NoError(t, db.InitDB(config.GlobalConfig.Database))
	t.Cleanup(func() {
		if sqlDB, err := db.DB.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	owner := &model.User{Email: "owner@example.com", NotifyByEmail: true}
	require.NoError(t, db.DB.Create(owner).Error)
	doc := &model.Document{OwnerID: owner.ID, Name: "Deck", NumPages: 2}
	require.NoError(t, db.DB.Create(doc).Error)
	share := &model.Share{Token: "abc123", UserID: owner.ID, DocumentID: doc.ID, Active: true}
	require.NoError(t, db.DB.Create(share).Error)

	cfg := config.GlobalConfig.Tracking
	shares := repository.NewShareRepository()
	spaces := repository.NewSpaceRepository()
	viewers := repository.NewViewerRepository()
	analytics := repository.NewAnalyticsRepository()
	users := repository.NewUserRepository()
	notifier := &recordingNotifier{}

	validator, err := service.NewEventValidator()
	require.NoError(t, err)
	interactions := repository.NewInteractionRepository()
	engagement := service.NewEngagement(shares, analytics, viewers, interactions,
		repository.NewPresenceRepository(), cfg)
	guard := service.NewAccessGuard(spaces, notifier)
	tracking := service.NewTrackingService(service.TrackingDeps{
		Shares:     shares,
		Spaces:     spaces,
		Guard:      guard,
		Sessions:   service.NewSessionTracker(repository.NewSessionRepository(), viewers, shares, analytics, cfg),
		Engagement: engagement,
		Ledger:     notify.NewDedupGuard(repository.NewLedgerRepository()),
		Notifier:   notifier,
		Validator:  validator,
		Config:     cfg,
	})

	router := NewRouter(Handlers{
		Tracking:  NewTrackingHandler(tracking),
		Spaces:    NewSpaceHandler(guard),
		Analytics: NewAnalyticsHandler(service.NewAnalyticsService(shares, viewers, analytics, interactions, engagement)),
		Users:     users,
	})

	token, err := utils.GenerateToken(owner.ID)
	require.NoError(t, err)
	return &testServer{router: router, notifier: notifier, owner: owner, share: share, token: token}
}

func (s *testServer) do(method, path, body, bearer string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) Mobile")
	req.Header.Set("X-Forwarded-For", "198.51.100.4")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func TestTrackEndpoint(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name       string
		token      string
		body       string
		wantStatus int
		wantBody   string
	}{
		{
			name:       "Session start",
			token:      "abc123",
			body:       `{"event":"session_start","sessionId":"s1"}`,
			wantStatus: http.StatusOK,
			wantBody:   `{"success":true}`,
		},
		{
			name:       "Missing required field is skipped",
			token:      "abc123",
			body:       `{"event":"page_view","sessionId":"s1"}`,
			wantStatus: http.StatusOK,
			wantBody:   `{"success":true}`,
		},
		{
			name:       "Unknown event is acknowledged",
			token:      "abc123",
			body:       `{"event":"future_event","sessionId":"s1"}`,
			wantStatus: http.StatusOK,
			wantBody:   `{"success":true}`,
		},
		{
			name:       "Malformed JSON",
			token:      "abc123",
			body:       `{"event":`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "Unknown share",
			token:      "nope",
			body:       `{"event":"session_start"}`,
			wantStatus: http.StatusNotFound,
			wantBody:   `{"error":"share not found"}`,
		},
		{
			name:       "Unknown share with malformed JSON",
			token:      "nope",
			body:       `{"event":`,
			wantStatus: http.StatusNotFound,
			wantBody:   `{"error":"share not found"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := s.do(http.MethodPost, "/"+tt.token+"/track", tt.body, "")
			assert.Equal(t, tt.wantStatus, w.Code)
			if tt.wantBody != "" {
				assert.JSONEq(t, tt.wantBody, w.Body.String())
			}
		})
	}

	var session model.Session
	require.NoError(t, db.DB.Where("session_id = ?", "s1").First(&session).Error)
	assert.Equal(t, "mobile", session.Device)
	assert.Equal(t, []string{notify.KindOpened}, s.notifier.kinds)
}

func TestTrackEndpointGatedSpace(t *testing.T) {
	s := newTestServer(t)
	past := time.Now().Add(-time.Hour)
	space := &model.Space{OwnerID: s.owner.ID, Name: "Room", Status: model.SpaceStatusActive, AutoExpiry: true, ExpiryDate: &past}
	require.NoError(t, db.DB.Create(space).Error)
	require.NoError(t, db.DB.Model(s.share).Update("space_id", space.ID).Error)

	w := s.do(http.MethodPost, "/abc123/track", `{"event":"session_start","sessionId":"s1"}`, "")
	assert.Equal(t, http.StatusForbidden, w.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, service.CodeExpired, body["code"])
	assert.NotEmpty(t, body["error"])
}

func TestSpaceAccessEndpoint(t *testing.T) {
	s := newTestServer(t)
	hash, err := bcrypt.GenerateFromPassword([]byte("letmein"), bcrypt.MinCost)
	require.NoError(t, err)
	space := &model.Space{OwnerID: s.owner.ID, Name: "Room", Status: model.SpaceStatusActive,
		PasswordHash: string(hash), NotifyOnView: true}
	require.NoError(t, db.DB.Create(space).Error)
	path := "/api/spaces/" + strconv.FormatUint(uint64(space.ID), 10) + "/access"

	w := s.do(http.MethodPost, path, `{"email":"a@b.io","password":"wrong"}`, "")
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), service.CodePasswordRequired)

	w = s.do(http.MethodPost, path, `{"email":"a@b.io","password":"letmein"}`, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"allowed":true}`, w.Body.String())
	assert.Equal(t, []string{notify.KindSpaceView}, s.notifier.kinds)

	w = s.do(http.MethodPost, "/api/spaces/9999/access", `{}`, "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(http.MethodPost, "/api/spaces/abc/access", `{}`, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAnalyticsEndpoints(t *testing.T) {
	s := newTestServer(t)
	require.Equal(t, http.StatusOK, s.do(http.MethodPost, "/abc123/track", `{"event":"session_start","sessionId":"s1"}`, "").Code)
	require.Equal(t, http.StatusOK, s.do(http.MethodPost, "/abc123/track", `{"event":"page_view","sessionId":"s1","page":1}`, "").Code)
	require.Equal(t, http.StatusOK, s.do(http.MethodPost, "/abc123/track", `{"event":"presence_ping","sessionId":"s1","page":1}`, "").Code)

	w := s.do(http.MethodGet, "/api/shares/abc123/summary", "", s.token)
	require.Equal(t, http.StatusOK, w.Code)
	var summary struct {
		Share struct {
			Views         int64 `json:"views"`
			UniqueViewers int64 `json:"unique_viewers"`
		} `json:"share"`
		Pages []model.SharePageStat `json:"pages"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &summary))
	assert.Equal(t, int64(1), summary.Share.Views)
	assert.Equal(t, int64(1), summary.Share.UniqueViewers)
	require.Len(t, summary.Pages, 1)

	w = s.do(http.MethodGet, "/api/shares/abc123/viewers", "", s.token)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"visit_count":1`)

	w = s.do(http.MethodGet, "/api/shares/abc123/presence", "", s.token)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"count":1`)

	w = s.do(http.MethodGet, "/api/shares/abc123/sessions/s1", "", s.token)
	require.Equal(t, http.StatusOK, w.Code)
	var session struct {
		Logs []model.AnalyticsLog `json:"logs"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &session))
	require.Len(t, session.Logs, 2)
	assert.Equal(t, model.LogKindPageView, session.Logs[1].Kind)

	w = s.do(http.MethodGet, "/api/shares/abc123/viewers/"+session.Logs[0].ViewerID, "", s.token)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"visit_count":1`)

	w = s.do(http.MethodGet, "/api/shares/abc123/viewers/nobody", "", s.token)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(http.MethodGet, "/api/shares/abc123/heatmap?page=1", "", s.token)
	require.Equal(t, http.StatusOK, w.Code)
	var heatmap struct {
		Page   int                  `json:"page"`
		Events []model.HeatmapEvent `json:"events"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &heatmap))
	assert.Equal(t, 1, heatmap.Page)
	assert.Empty(t, heatmap.Events)

	w = s.do(http.MethodGet, "/api/shares/abc123/heatmap?page=zero", "", s.token)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = s.do(http.MethodGet, "/api/shares/abc123/heatmap?page=0", "", s.token)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(http.MethodGet, "/api/shares/abc123/summary", "", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.do(http.MethodGet, "/api/shares/missing/summary", "", s.token)
	assert.Equal(t, http.StatusNotFound, w.Code)

	stranger := &model.User{Email: "stranger@example.com"}
	require.NoError(t, db.DB.Create(stranger).Error)
	strangerToken, err := utils.GenerateToken(stranger.ID)
	require.NoError(t, err)
	w = s.do(http.MethodGet, "/api/shares/abc123/viewers", "", strangerToken)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = s.do(http.MethodGet, "/api/me", "", s.token)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "owner@example.com")
}

func TestHealthz(t *testing.T) {
	s := newTestServer(t)
	w := s.do(http.MethodGet, "/healthz", "", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}
