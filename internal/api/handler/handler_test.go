package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"civictrack/backend/internal/api/handler"
	"civictrack/backend/internal/auth"
	"civictrack/backend/internal/eventhub"
	"civictrack/backend/internal/followers"
	"civictrack/backend/internal/imaging"
	"civictrack/backend/internal/localization"
	"civictrack/backend/internal/models"
	"civictrack/backend/internal/notify"
	"civictrack/backend/internal/reports"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const jwtSecret = "handler-test-secret"

type emailCall struct {
	to, subject string
}

type fakeMailer struct {
	mu    sync.Mutex
	calls []emailCall
}

func (m *fakeMailer) SendEmail(_ context.Context, to, subject, _, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, emailCall{to: to, subject: subject})
	return nil
}

func (m *fakeMailer) sent() []emailCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]emailCall(nil), m.calls...)
}

// roomClient is a realtime client that only buffers events.
type roomClient struct {
	id   string
	recv chan models.Event
}

func (c *roomClient) GetClientID() string                 { return c.id }
func (c *roomClient) GetUserID() string                   { return "" }
func (c *roomClient) GetSendChannel() chan<- models.Event { return c.recv }
func (c *roomClient) Run()                                {}
func (c *roomClient) Close()                              {}

type testServer struct {
	router     *gin.Engine
	store      *memStore
	hub        *eventhub.Manager
	mailer     *fakeMailer
	dispatcher *notify.Dispatcher
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	logger := zap.NewNop()
	store := newMemStore(
		models.User{ID: "U1", Username: "olena", City: "Kyiv", Email: "u1@example.com", Role: models.RoleCitizen},
		models.User{ID: "S1", Username: "taras", City: "Lviv", Email: "staff@example.com", Role: models.RoleAuthority},
	)
	hub := eventhub.NewManager(logger)
	mailer := &fakeMailer{}
	text, err := localization.NewDefault()
	require.NoError(t, err)

	dispatcher := notify.NewDispatcher(store, notify.Channels{Email: mailer}, store, hub, text, 4, logger)
	reportSvc := reports.NewService(store, imaging.NewPipeline(nil, logger), hub, dispatcher, logger, reports.Options{})
	registry := followers.NewRegistry(reportSvc, logger)

	h := handler.NewHandler(reportSvc, registry, hub, jwtSecret, 1<<20, logger)
	r := gin.New()
	h.Routes(r)

	return &testServer{router: r, store: store, hub: hub, mailer: mailer, dispatcher: dispatcher}
}

func token(t *testing.T, userID string, role models.Role) string {
	t.Helper()
	raw, err := auth.IssueToken(jwtSecret, userID, role, time.Hour)
	require.NoError(t, err)
	return raw
}

func (s *testServer) do(t *testing.T, method, path, bearer string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v))
}

func TestEndToEnd_CreateFollowUpdate(t *testing.T) {
	s := newTestServer(t)
	citizen := token(t, "U1", models.RoleCitizen)
	staff := token(t, "S1", models.RoleAuthority)

	w := s.do(t, http.MethodPost, "/api/issues", "", map[string]string{
		"title":       "Pothole on Main St",
		"description": "Deep pothole next to the bus stop",
		"category":    "PWD - Pothole",
		"location":    "12.9,77.6",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var created map[string]interface{}
	decode(t, w, &created)
	assert.Equal(t, "Pending", created["status"])
	assert.Equal(t, []interface{}{}, created["images"])
	assert.Equal(t, []interface{}{}, created["followers"])
	id := created["id"].(string)

	watcher := &roomClient{id: "watcher", recv: make(chan models.Event, 8)}
	s.hub.Join(watcher, id)

	w = s.do(t, http.MethodPost, "/api/issues/"+id+"/follow", citizen, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var followed struct {
		Followers []string `json:"followers"`
	}
	decode(t, w, &followed)
	assert.Equal(t, []string{"U1"}, followed.Followers)

	w = s.do(t, http.MethodPatch, "/api/issues/"+id, staff, map[string]string{"status": "In Progress"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var updated models.Report
	decode(t, w, &updated)
	assert.Equal(t, models.StatusInProgress, updated.Status)

	waitCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, s.dispatcher.Wait(waitCtx))

	var statusEvents []models.Event
	for len(watcher.recv) > 0 {
		ev := <-watcher.recv
		if ev.Name == models.EventStatusUpdate {
			statusEvents = append(statusEvents, ev)
		}
	}
	require.Len(t, statusEvents, 1)
	assert.JSONEq(t, `{"reportId":"`+id+`","status":"In Progress"}`, string(statusEvents[0].Data))

	mails := s.mailer.sent()
	require.Len(t, mails, 1)
	assert.Equal(t, "u1@example.com", mails[0].to)

	// Same status again: no broadcast, no fan-out.
	w = s.do(t, http.MethodPatch, "/api/issues/"+id, staff, map[string]string{"status": "In Progress"})
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, s.dispatcher.Wait(waitCtx))
	assert.Len(t, s.mailer.sent(), 1)
	assert.Len(t, watcher.recv, 0)
}

func TestCreateIssue_Validation(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodPost, "/api/issues", "", map[string]string{"title": "No details"})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	var body map[string]interface{}
	decode(t, w, &body)
	assert.Equal(t, "VALIDATION_ERROR", body["code"])
	assert.ElementsMatch(t, []interface{}{"description", "category", "location"}, body["fields"])
}

func TestCreateIssue_InlineImageAndReporter(t *testing.T) {
	s := newTestServer(t)
	inline := "data:image/png;base64,iVBORw0KGgo="

	w := s.do(t, http.MethodPost, "/api/issues", token(t, "U1", models.RoleCitizen), map[string]string{
		"title": "Graffiti", "description": "On the school wall", "category": "Vandalism",
		"location": "50.45,30.52", "image": inline,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var report models.Report
	decode(t, w, &report)
	assert.Equal(t, []string{inline}, []string(report.Images))
	assert.Equal(t, "U1", report.ReporterID)
	assert.Equal(t, 1, s.store.users["U1"].ReportsCount)
}

func TestCreateIssue_MultipartWithoutStorageFallsBack(t *testing.T) {
	s := newTestServer(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range map[string]string{
		"title": "Fallen tree", "description": "Blocks the road", "category": "Parks", "location": "1,2",
	} {
		require.NoError(t, mw.WriteField(k, v))
	}
	part, err := mw.CreateFormFile("image", "tree.png")
	require.NoError(t, err)
	_, err = part.Write([]byte("not really a png"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/issues", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var report models.Report
	decode(t, w, &report)
	assert.Empty(t, report.Images, "no object storage and no inline payload means no image")
}

func TestUpdateIssue_Authorization(t *testing.T) {
	s := newTestServer(t)
	w := s.do(t, http.MethodPost, "/api/issues", "", map[string]string{
		"title": "t", "description": "d", "category": "c", "location": "l",
	})
	var created models.Report
	decode(t, w, &created)

	w = s.do(t, http.MethodPatch, "/api/issues/"+created.ID, "", map[string]string{"status": "Resolved"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.do(t, http.MethodPatch, "/api/issues/"+created.ID, token(t, "U1", models.RoleCitizen), map[string]string{"status": "Resolved"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = s.do(t, http.MethodPut, "/api/issues/"+created.ID, token(t, "S1", models.RoleAdmin), map[string]interface{}{"followers": []string{"X"}})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodPatch, "/api/issues/missing", token(t, "S1", models.RoleAdmin), map[string]string{"status": "Resolved"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestResolutionImage(t *testing.T) {
	s := newTestServer(t)
	staff := token(t, "S1", models.RoleAuthority)
	w := s.do(t, http.MethodPost, "/api/issues", "", map[string]string{
		"title": "t", "description": "d", "category": "c", "location": "l",
	})
	var created models.Report
	decode(t, w, &created)

	w = s.do(t, http.MethodPost, "/api/issues/"+created.ID+"/resolution-images", staff, map[string]string{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	inline := "data:image/jpeg;base64,/9j/4AAQ"
	w = s.do(t, http.MethodPost, "/api/issues/"+created.ID+"/resolution-images", staff, map[string]string{"image": inline})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var report models.Report
	decode(t, w, &report)
	assert.Equal(t, []string{inline}, []string(report.ResolutionImages))
}

func TestFollowUnfollowIdempotent(t *testing.T) {
	s := newTestServer(t)
	citizen := token(t, "U1", models.RoleCitizen)
	w := s.do(t, http.MethodPost, "/api/issues", "", map[string]string{
		"title": "t", "description": "d", "category": "c", "location": "l",
	})
	var created models.Report
	decode(t, w, &created)
	path := "/api/issues/" + created.ID + "/follow"

	s.do(t, http.MethodPost, path, citizen, nil)
	w = s.do(t, http.MethodPost, path, citizen, nil)
	assert.JSONEq(t, `{"followers":["U1"]}`, w.Body.String())

	s.do(t, http.MethodDelete, path, citizen, nil)
	w = s.do(t, http.MethodDelete, path, citizen, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"followers":[]}`, w.Body.String())

	w = s.do(t, http.MethodPost, "/api/issues/nope/follow", citizen, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestComments(t *testing.T) {
	s := newTestServer(t)
	citizen := token(t, "U1", models.RoleCitizen)
	w := s.do(t, http.MethodPost, "/api/issues", "", map[string]string{
		"title": "t", "description": "d", "category": "c", "location": "l",
	})
	var created models.Report
	decode(t, w, &created)
	watcher := &roomClient{id: "w", recv: make(chan models.Event, 4)}
	s.hub.Join(watcher, created.ID)

	w = s.do(t, http.MethodPost, "/api/issues/"+created.ID+"/comments", citizen, map[string]string{"text": "Still there"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = s.do(t, http.MethodGet, "/api/issues/"+created.ID+"/comments", "", nil)
	var comments []models.Comment
	decode(t, w, &comments)
	require.Len(t, comments, 1)
	assert.Equal(t, "U1", comments[0].AuthorID)

	ev := <-watcher.recv
	assert.Equal(t, models.EventComment, ev.Name)
}

func TestListIssues(t *testing.T) {
	s := newTestServer(t)
	for _, cat := range []string{"Roads", "Parks"} {
		s.do(t, http.MethodPost, "/api/issues", "", map[string]string{
			"title": "t", "description": "d", "category": cat, "location": "l",
		})
	}

	w := s.do(t, http.MethodGet, "/api/issues?category=Parks", "", nil)
	var list []models.Report
	decode(t, w, &list)
	require.Len(t, list, 1)
	assert.Equal(t, "Parks", list[0].Category)

	w = s.do(t, http.MethodGet, "/api/issues?status=bogus", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestLinkToken(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodGet, "/api/me/telegram-token", token(t, "U1", models.RoleCitizen), nil)
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Token string `json:"token"`
	}
	decode(t, w, &body)
	claims, err := auth.ParseLinkToken(jwtSecret, body.Token)
	require.NoError(t, err)
	assert.Equal(t, "U1", claims.UserID)
}

func TestLinkToken_CannotAuthenticateAPI(t *testing.T) {
	s := newTestServer(t)
	staff := token(t, "S1", models.RoleAuthority)
	w := s.do(t, http.MethodPost, "/api/issues", "", map[string]string{
		"title": "t", "description": "d", "category": "c", "location": "l",
	})
	var created models.Report
	decode(t, w, &created)

	w = s.do(t, http.MethodGet, "/api/me/telegram-token", staff, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Token string `json:"token"`
	}
	decode(t, w, &body)

	w = s.do(t, http.MethodPatch, "/api/issues/"+created.ID, body.Token, map[string]string{"status": "Resolved"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.do(t, http.MethodGet, "/api/issues/"+created.ID, "", nil)
	var unchanged models.Report
	decode(t, w, &unchanged)
	assert.Equal(t, models.StatusPending, unchanged.Status)
}

func TestUnknownReportIDs(t *testing.T) {
	s := newTestServer(t)
	citizen := token(t, "U1", models.RoleCitizen)

	for _, path := range []string{"/api/issues/not-a-uuid", "/api/issues/not-a-uuid/comments"} {
		w := s.do(t, http.MethodGet, path, "", nil)
		assert.Equal(t, http.StatusNotFound, w.Code, path)
	}
	w := s.do(t, http.MethodPost, "/api/issues/not-a-uuid/comments", citizen, map[string]string{"text": "hi"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestLeaderboard(t *testing.T) {
	s := newTestServer(t)
	create := func(bearer string) {
		w := s.do(t, http.MethodPost, "/api/issues", bearer, map[string]string{
			"title": "t", "description": "d", "category": "c", "location": "l",
		})
		require.Equal(t, http.StatusCreated, w.Code)
	}
	citizen := token(t, "U1", models.RoleCitizen)
	staff := token(t, "S1", models.RoleAuthority)
	create(citizen)
	create(citizen)
	create(staff)
	create("")

	w := s.do(t, http.MethodGet, "/api/users/leaderboard", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[
		{"id":"U1","name":"","username":"olena","city":"Kyiv","reportsCount":2},
		{"id":"S1","name":"","username":"taras","city":"Lviv","reportsCount":1}
	]`, w.Body.String())

	w = s.do(t, http.MethodGet, "/api/users/leaderboard?city=Lviv", "", nil)
	var lviv []models.LeaderboardEntry
	decode(t, w, &lviv)
	require.Len(t, lviv, 1)
	assert.Equal(t, "S1", lviv[0].ID)

	w = s.do(t, http.MethodGet, "/api/users/leaderboard?limit=1", "", nil)
	var top []models.LeaderboardEntry
	decode(t, w, &top)
	require.Len(t, top, 1)
	assert.Equal(t, "U1", top[0].ID)

	w = s.do(t, http.MethodGet, "/api/users/leaderboard?limit=zero", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
