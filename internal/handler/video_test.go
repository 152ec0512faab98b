package handler_test

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"io/fs"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avela/coursegate"
	"github.com/avela/coursegate/internal/auth"
	"github.com/avela/coursegate/internal/config"
	"github.com/avela/coursegate/internal/db"
	"github.com/avela/coursegate/internal/handler"
	"github.com/avela/coursegate/internal/hosting"
	"github.com/avela/coursegate/internal/metrics"
	"github.com/avela/coursegate/internal/model"
	"github.com/avela/coursegate/internal/testutil"
	"github.com/avela/coursegate/internal/videotoken"
)

const (
	deviceA = "a1b2c3d4e5f6a7b8a1b2c3d4e5f6a7b8a1b2c3d4e5f6a7b8a1b2c3d4e5f6a7b8"
	deviceB = "ffeeddccbbaa9988ffeeddccbbaa9988ffeeddccbbaa9988ffeeddccbbaa9988"
)

type env struct {
	router  http.Handler
	db      *sql.DB
	cfg     *config.Config
	tokens  *videotoken.Service
	account *model.Account
	course  *model.Course
	lesson  *model.Lesson
	now     time.Time
}

func newEnv(t *testing.T, embeds hosting.Provider) *env {
	t.Helper()

	database := testutil.NewDB(t)
	account := testutil.SeedAccount(t, database, "viewer@example.com", "member")
	course := testutil.SeedCourse(t, database, "go-basics")
	lesson := testutil.SeedLesson(t, database, course.ID, "vid-001")
	testutil.SeedPurchase(t, database, account.ID, course.ID)

	cfg := &config.Config{
		BaseURL:        "http://localhost:8080",
		SessionSecret:  "0123456789abcdef0123456789abcdef",
		TokenTTL:       4 * time.Hour,
		MaxViews:       3,
		LivenessWindow: 5 * time.Minute,
		PaymentSecret:  "hook-secret",
	}

	e := &env{
		db:      database,
		cfg:     cfg,
		account: account,
		course:  course,
		lesson:  lesson,
		now:     time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC),
	}

	e.tokens = videotoken.NewService(database, cfg.TokenTTL, cfg.MaxViews, cfg.LivenessWindow)
	e.tokens.Now = func() time.Time { return e.now }

	if embeds == nil {
		signer := hosting.NewSigner("https://stream.example.com", "embed-key", 4*time.Hour)
		embeds = signer
	}

	templateFS, err := fs.Sub(coursegate.TemplateFS, "templates")
	require.NoError(t, err)
	staticFS, err := fs.Sub(coursegate.StaticFS, "static")
	require.NoError(t, err)

	h := handler.New(database, cfg, e.tokens, embeds, metrics.New(), templateFS)

	loginRL := handler.NewRateLimiter(100, 100)
	t.Cleanup(loginRL.Stop)
	issueRL := handler.NewRateLimiter(100, 100)
	t.Cleanup(issueRL.Stop)

	e.router = h.Routes(staticFS, loginRL, issueRL)
	return e
}

func (e *env) login(t *testing.T, account *model.Account) *http.Cookie {
	t.Helper()
	session := &model.Session{
		ID:        uuid.New().String(),
		AccountID: account.ID,
		ExpiresAt: time.Now().Add(time.Hour),
	}
	require.NoError(t, db.CreateSession(e.db, session))

	rec := httptest.NewRecorder()
	auth.SetSessionCookie(rec, session.ID, e.cfg.SessionSecret)
	return rec.Result().Cookies()[0]
}

func (e *env) do(t *testing.T, method, path string, body interface{}, cookie *http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(buf)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if cookie != nil {
		req.AddCookie(cookie)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v))
}

func (e *env) issueToken(t *testing.T, cookie *http.Cookie) map[string]interface{} {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/api/video/token",
		map[string]string{"lessonId": e.lesson.ID, "courseId": e.course.ID}, cookie)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var out map[string]interface{}
	decode(t, rec, &out)
	return out
}

func TestIssueEndpoint(t *testing.T) {
	e := newEnv(t, nil)
	cookie := e.login(t, e.account)

	out := e.issueToken(t, cookie)
	assert.Len(t, out["token"], 64)
	assert.Equal(t, float64(3), out["remainingViews"])
	assert.Contains(t, out["videoUrl"], "/watch/"+out["token"].(string))

	expiresAt, err := time.Parse(time.RFC3339, out["expiresAt"].(string))
	require.NoError(t, err)
	assert.Equal(t, e.now.Add(4*time.Hour), expiresAt)
}

func TestIssueEndpointRequiresAuth(t *testing.T) {
	e := newEnv(t, nil)
	rec := e.do(t, http.MethodPost, "/api/video/token",
		map[string]string{"lessonId": e.lesson.ID, "courseId": e.course.ID}, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestIssueEndpointNoEnrollment(t *testing.T) {
	e := newEnv(t, nil)
	stranger := testutil.SeedAccount(t, e.db, "stranger@example.com", "member")
	cookie := e.login(t, stranger)

	rec := e.do(t, http.MethodPost, "/api/video/token",
		map[string]string{"lessonId": e.lesson.ID, "courseId": e.course.ID}, cookie)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	var body map[string]string
	decode(t, rec, &body)
	assert.Equal(t, "NO_ENROLLMENT", body["code"])
}

func TestIssueEndpointConcurrentSession(t *testing.T) {
	e := newEnv(t, nil)
	cookie := e.login(t, e.account)

	out := e.issueToken(t, cookie)
	rec := e.do(t, http.MethodPost, "/api/video/heartbeat",
		map[string]string{"tokenId": out["token"].(string), "fingerprint": deviceA}, cookie)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = e.do(t, http.MethodPost, "/api/video/token",
		map[string]string{"lessonId": e.lesson.ID, "courseId": e.course.ID, "fingerprint": deviceB}, cookie)
	assert.Equal(t, http.StatusConflict, rec.Code)

	var body map[string]string
	decode(t, rec, &body)
	assert.Equal(t, "CONCURRENT_SESSION", body["code"])
}

func TestValidateEndpoint(t *testing.T) {
	e := newEnv(t, nil)
	cookie := e.login(t, e.account)
	out := e.issueToken(t, cookie)

	rec := e.do(t, http.MethodPost, "/api/video/validate",
		map[string]string{"token": out["token"].(string)}, cookie)
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]interface{}
	decode(t, rec, &body)
	assert.Equal(t, true, body["valid"])
	assert.Equal(t, float64(3), body["remainingViews"])
}

func TestValidateEndpointUnknownToken(t *testing.T) {
	e := newEnv(t, nil)
	cookie := e.login(t, e.account)

	rec := e.do(t, http.MethodPost, "/api/video/validate",
		map[string]string{"token": "bogus"}, cookie)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestWatchPage(t *testing.T) {
	e := newEnv(t, nil)
	cookie := e.login(t, e.account)
	out := e.issueToken(t, cookie)

	rec := e.do(t, http.MethodGet, "/watch/"+out["token"].(string), nil, cookie)
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")

	page := rec.Body.String()
	assert.Contains(t, page, "viewer@example.com")         // on-screen watermark
	assert.Contains(t, page, "2 views remaining")          // one view spent
	assert.Contains(t, page, "stream.example.com/e/")      // signed embed reference
	assert.NotContains(t, page, "vid-001")                 // raw video id never leaks
}

func TestWatchPageExhaustsAfterMaxViews(t *testing.T) {
	e := newEnv(t, nil)
	cookie := e.login(t, e.account)
	out := e.issueToken(t, cookie)
	path := "/watch/" + out["token"].(string)

	for _, want := range []string{"2 views remaining", "1 views remaining", "0 views remaining"} {
		rec := e.do(t, http.MethodGet, path, nil, cookie)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), want)
	}

	rec := e.do(t, http.MethodGet, path, nil, cookie)
	assert.Equal(t, http.StatusGone, rec.Code)
	var body map[string]string
	decode(t, rec, &body)
	assert.Equal(t, "EXHAUSTED", body["code"])
}

func TestWatchPageExpired(t *testing.T) {
	e := newEnv(t, nil)
	cookie := e.login(t, e.account)
	out := e.issueToken(t, cookie)

	e.now = e.now.Add(5 * time.Hour)

	rec := e.do(t, http.MethodGet, "/watch/"+out["token"].(string), nil, cookie)
	assert.Equal(t, http.StatusGone, rec.Code)
	var body map[string]string
	decode(t, rec, &body)
	assert.Equal(t, "EXPIRED", body["code"])
}

type downProvider struct{}

func (downProvider) SignedEmbed(ctx context.Context, videoID string) (*hosting.EmbedRef, error) {
	return nil, errors.New("upstream unavailable")
}

func TestWatchPageDegradesWhenProviderDown(t *testing.T) {
	e := newEnv(t, downProvider{})
	cookie := e.login(t, e.account)
	out := e.issueToken(t, cookie)

	rec := e.do(t, http.MethodGet, "/watch/"+out["token"].(string), nil, cookie)
	require.Equal(t, http.StatusOK, rec.Code)

	page := rec.Body.String()
	assert.Contains(t, page, "temporarily unavailable")
	assert.Contains(t, page, "viewer@example.com") // watermark still renders
	assert.NotContains(t, page, "iframe")
}

func TestHeartbeatEndpoint(t *testing.T) {
	e := newEnv(t, nil)
	cookie := e.login(t, e.account)
	out := e.issueToken(t, cookie)
	token := out["token"].(string)

	// Missing fields
	rec := e.do(t, http.MethodPost, "/api/video/heartbeat",
		map[string]string{"tokenId": token}, cookie)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// First beat binds device A
	rec = e.do(t, http.MethodPost, "/api/video/heartbeat",
		map[string]string{"tokenId": token, "fingerprint": deviceA}, cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]interface{}
	decode(t, rec, &body)
	assert.Equal(t, true, body["active"])

	// Device B gets evicted and reported
	rec = e.do(t, http.MethodPost, "/api/video/heartbeat",
		map[string]string{"tokenId": token, "fingerprint": deviceB}, cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &body)
	assert.Equal(t, false, body["active"])
	assert.Equal(t, "fingerprint_mismatch", body["reason"])

	// Original device finds the claim gone
	rec = e.do(t, http.MethodPost, "/api/video/heartbeat",
		map[string]string{"tokenId": token, "fingerprint": deviceA}, cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &body)
	assert.Equal(t, false, body["active"])
	assert.Equal(t, "no_session", body["reason"])
}

func TestHeartbeatForeignCallerForbidden(t *testing.T) {
	e := newEnv(t, nil)
	cookie := e.login(t, e.account)
	out := e.issueToken(t, cookie)

	stranger := testutil.SeedAccount(t, e.db, "stranger@example.com", "member")
	strangerCookie := e.login(t, stranger)

	rec := e.do(t, http.MethodPost, "/api/video/heartbeat",
		map[string]string{"tokenId": out["token"].(string), "fingerprint": deviceB}, strangerCookie)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestAdminRevoke(t *testing.T) {
	e := newEnv(t, nil)
	cookie := e.login(t, e.account)
	out := e.issueToken(t, cookie)

	admin := testutil.SeedAccount(t, e.db, "admin@example.com", "admin")
	adminCookie := e.login(t, admin)

	// Find the internal id through the admin listing.
	rec := e.do(t, http.MethodGet, "/api/admin/tokens?account="+e.account.ID, nil, adminCookie)
	require.Equal(t, http.StatusOK, rec.Code)
	var tokens []map[string]interface{}
	decode(t, rec, &tokens)
	require.Len(t, tokens, 1)

	rec = e.do(t, http.MethodPost, "/api/admin/revoke",
		map[string]string{"tokenId": tokens[0]["id"].(string), "reason": "chargeback"}, adminCookie)
	require.Equal(t, http.StatusOK, rec.Code)

	// Mid-playback discovery: the next resolution reports the revocation.
	rec = e.do(t, http.MethodGet, "/watch/"+out["token"].(string), nil, cookie)
	assert.Equal(t, http.StatusGone, rec.Code)
	var body map[string]string
	decode(t, rec, &body)
	assert.Equal(t, "REVOKED", body["code"])
}

func TestRevokeForbiddenForMembers(t *testing.T) {
	e := newEnv(t, nil)
	cookie := e.login(t, e.account)

	rec := e.do(t, http.MethodPost, "/api/admin/revoke",
		map[string]string{"tokenId": "whatever"}, cookie)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestPaymentWebhook(t *testing.T) {
	e := newEnv(t, nil)
	stranger := testutil.SeedAccount(t, e.db, "buyer@example.com", "member")
	cookie := e.login(t, stranger)

	// Without the entitlement, issuance is refused.
	rec := e.do(t, http.MethodPost, "/api/video/token",
		map[string]string{"lessonId": e.lesson.ID, "courseId": e.course.ID}, cookie)
	require.Equal(t, http.StatusForbidden, rec.Code)

	// Wrong secret is rejected.
	req := httptest.NewRequest(http.MethodPost, "/webhooks/payment",
		bytes.NewReader(mustJSON(t, map[string]string{"accountId": stranger.ID, "courseId": e.course.ID})))
	req.Header.Set("X-Webhook-Secret", "wrong")
	rr := httptest.NewRecorder()
	e.router.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	// Confirmed payment grants the entitlement; retries are harmless.
	for i := 0; i < 2; i++ {
		req = httptest.NewRequest(http.MethodPost, "/webhooks/payment",
			bytes.NewReader(mustJSON(t, map[string]string{
				"accountId": stranger.ID,
				"courseId":  e.course.ID,
				"provider":  "card",
				"reference": "ch_123",
			})))
		req.Header.Set("X-Webhook-Secret", "hook-secret")
		rr = httptest.NewRecorder()
		e.router.ServeHTTP(rr, req)
		require.Equal(t, http.StatusOK, rr.Code)
	}

	rec = e.do(t, http.MethodPost, "/api/video/token",
		map[string]string{"lessonId": e.lesson.ID, "courseId": e.course.ID}, cookie)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHealthz(t *testing.T) {
	e := newEnv(t, nil)
	rec := e.do(t, http.MethodGet, "/healthz", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func mustJSON(t *testing.T, v interface{}) []byte {
	t.Helper()
	buf, err := json.Marshal(v)
	require.NoError(t, err)
	return buf
}
