package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"wayfarer/models"
	"wayfarer/pkg/cache"
	"wayfarer/pkg/realtime"
	"wayfarer/pkg/tokens"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// helper to perform requests with auth token
func performRequest(r http.Handler, method, path string, body io.Reader, token string) *httptest.ResponseRecorder {
	req, _ := http.NewRequest(method, path, body)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func jsonBody(t *testing.T, v interface{}) *bytes.Buffer {
	t.Helper()
	raw, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	return bytes.NewBuffer(raw)
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return env
}

func newTestApp(t *testing.T, withRedis bool) (*App, *gin.Engine) {
	// integration tests are opt-in. Set DB_DSN_TEST=1 and DB_DSN to run them;
	// tests that exercise the cache additionally need REDIS_DSN_TEST=1 and
	// REDIS_URL.
	if os.Getenv("DB_DSN_TEST") != "1" {
		t.Skip("integration tests are disabled; set DB_DSN_TEST=1 to enable")
	}
	gin.SetMode(gin.TestMode)

	cfg := loadConfig()
	cfg.UploadBase = t.TempDir()
	db, err := openDB(cfg)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}

	c := cache.Disabled()
	if withRedis {
		if os.Getenv("REDIS_DSN_TEST") != "1" {
			t.Skip("redis tests are disabled; set REDIS_DSN_TEST=1 and REDIS_URL to enable")
		}
		c, err = cache.New(cfg.RedisURL)
		if err != nil {
			t.Fatalf("connect redis: %v", err)
		}
		t.Cleanup(func() { c.Close() })
		// keep the auth limiter out of the way across repeated runs
		cfg.AuthRateMax = 1 << 20
		cfg.RateLimitMax = 1 << 20
	}

	issuer := tokens.NewIssuer(cfg.JWTSecret, cfg.AccessTokenTTL, cfg.RefreshTokenTTL)
	app := newApp(cfg, db, c, issuer, realtime.NewHub())

	r := gin.New()
	app.setupRoutes(r)
	return app, r
}

func setupTestServer(t *testing.T) *gin.Engine {
	_, r := newTestApp(t, false)
	return r
}

func registerAndLogin(t *testing.T, r http.Handler, email string) (access, refresh string) {
	t.Helper()
	body := map[string]string{"email": email, "password": "sup3rsecret", "displayName": "Test Traveler"}
	resp := performRequest(r, http.MethodPost, "/api/v1/auth/register", jsonBody(t, body), "")
	if resp.Code != http.StatusCreated {
		t.Fatalf("register failed status=%d body=%s", resp.Code, resp.Body.String())
	}
	var result struct {
		AccessToken  string `json:"accessToken"`
		RefreshToken string `json:"refreshToken"`
	}
	env := decode(t, resp)
	if err := json.Unmarshal(env.Data, &result); err != nil {
		t.Fatalf("decode register data: %v", err)
	}
	if result.AccessToken == "" || result.RefreshToken == "" {
		t.Fatalf("register returned empty tokens: %s", env.Data)
	}
	return result.AccessToken, result.RefreshToken
}

func uniqueEmail(prefix string) string {
	return fmt.Sprintf("%s+%d@example.com", prefix, time.Now().UnixNano())
}

func TestAuthFullFlow(t *testing.T) {
	r := setupTestServer(t)
	email := uniqueEmail("flow")

	access, refresh := registerAndLogin(t, r, email)

	// authenticated profile fetch
	resp := performRequest(r, http.MethodGet, "/api/v1/auth/me", nil, access)
	if resp.Code != http.StatusOK {
		t.Fatalf("me failed status=%d body=%s", resp.Code, resp.Body.String())
	}

	// rotate the refresh token
	resp = performRequest(r, http.MethodPost, "/api/v1/auth/refresh",
		jsonBody(t, map[string]string{"refreshToken": refresh}), "")
	if resp.Code != http.StatusOK {
		t.Fatalf("refresh failed status=%d body=%s", resp.Code, resp.Body.String())
	}
	var rotated struct {
		AccessToken  string `json:"accessToken"`
		RefreshToken string `json:"refreshToken"`
	}
	env := decode(t, resp)
	if err := json.Unmarshal(env.Data, &rotated); err != nil {
		t.Fatalf("decode refresh data: %v", err)
	}

	// the redeemed token must be dead
	resp = performRequest(r, http.MethodPost, "/api/v1/auth/refresh",
		jsonBody(t, map[string]string{"refreshToken": refresh}), "")
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("reused refresh token accepted: status=%d body=%s", resp.Code, resp.Body.String())
	}

	// logout revokes everything
	resp = performRequest(r, http.MethodPost, "/api/v1/auth/logout", nil, rotated.AccessToken)
	if resp.Code != http.StatusOK {
		t.Fatalf("logout failed status=%d body=%s", resp.Code, resp.Body.String())
	}
	resp = performRequest(r, http.MethodPost, "/api/v1/auth/refresh",
		jsonBody(t, map[string]string{"refreshToken": rotated.RefreshToken}), "")
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("refresh after logout accepted: status=%d body=%s", resp.Code, resp.Body.String())
	}
}

func TestLoginErrorsAreIndistinguishable(t *testing.T) {
	r := setupTestServer(t)
	email := uniqueEmail("enum")
	registerAndLogin(t, r, email)

	wrongPass := performRequest(r, http.MethodPost, "/api/v1/auth/login",
		jsonBody(t, map[string]string{"email": email, "password": "wrongwrong"}), "")
	unknownUser := performRequest(r, http.MethodPost, "/api/v1/auth/login",
		jsonBody(t, map[string]string{"email": uniqueEmail("ghost"), "password": "whatever1"}), "")

	if wrongPass.Code != http.StatusUnauthorized || unknownUser.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401s, got %d and %d", wrongPass.Code, unknownUser.Code)
	}
	a, b := decode(t, wrongPass), decode(t, unknownUser)
	if a.Error == nil || b.Error == nil || a.Error.Message != b.Error.Message {
		t.Fatalf("login errors differ: %s vs %s", wrongPass.Body.String(), unknownUser.Body.String())
	}
}

func TestRefreshTokenRejectedAsAccessToken(t *testing.T) {
	r := setupTestServer(t)
	_, refresh := registerAndLogin(t, r, uniqueEmail("xtype"))

	resp := performRequest(r, http.MethodGet, "/api/v1/auth/me", nil, refresh)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("refresh token accepted as access token: status=%d body=%s", resp.Code, resp.Body.String())
	}
}

func TestChangePassword(t *testing.T) {
	r := setupTestServer(t)
	email := uniqueEmail("chpw")
	access, refresh := registerAndLogin(t, r, email)

	// wrong current password changes nothing
	resp := performRequest(r, http.MethodPost, "/api/v1/auth/change-password",
		jsonBody(t, map[string]string{"currentPassword": "nope-nope", "newPassword": "freshsecret1"}), access)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("wrong current password: status=%d body=%s", resp.Code, resp.Body.String())
	}
	resp = performRequest(r, http.MethodPost, "/api/v1/auth/refresh",
		jsonBody(t, map[string]string{"refreshToken": refresh}), "")
	if resp.Code != http.StatusOK {
		t.Fatalf("refresh should survive failed change: status=%d body=%s", resp.Code, resp.Body.String())
	}
	env := decode(t, resp)
	var rotated struct {
		RefreshToken string `json:"refreshToken"`
	}
	_ = json.Unmarshal(env.Data, &rotated)

	// correct change revokes every session
	resp = performRequest(r, http.MethodPost, "/api/v1/auth/change-password",
		jsonBody(t, map[string]string{"currentPassword": "sup3rsecret", "newPassword": "freshsecret1"}), access)
	if resp.Code != http.StatusOK {
		t.Fatalf("change password failed: status=%d body=%s", resp.Code, resp.Body.String())
	}
	resp = performRequest(r, http.MethodPost, "/api/v1/auth/refresh",
		jsonBody(t, map[string]string{"refreshToken": rotated.RefreshToken}), "")
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("refresh survived password change: status=%d body=%s", resp.Code, resp.Body.String())
	}

	// old password no longer works, new one does
	resp = performRequest(r, http.MethodPost, "/api/v1/auth/login",
		jsonBody(t, map[string]string{"email": email, "password": "sup3rsecret"}), "")
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("old password still valid: status=%d", resp.Code)
	}
	resp = performRequest(r, http.MethodPost, "/api/v1/auth/login",
		jsonBody(t, map[string]string{"email": email, "password": "freshsecret1"}), "")
	if resp.Code != http.StatusOK {
		t.Fatalf("new password rejected: status=%d body=%s", resp.Code, resp.Body.String())
	}
}

func TestItineraryLifecycle(t *testing.T) {
	r := setupTestServer(t)
	access, _ := registerAndLogin(t, r, uniqueEmail("trip"))

	resp := performRequest(r, http.MethodPost, "/api/v1/itineraries", jsonBody(t, map[string]interface{}{
		"title":       "Bali long weekend",
		"destination": "Denpasar",
		"startDate":   "2026-10-01",
		"endDate":     "2026-10-05",
		"mood":        "relaxed",
	}), access)
	if resp.Code != http.StatusCreated {
		t.Fatalf("create itinerary failed status=%d body=%s", resp.Code, resp.Body.String())
	}
	var it struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	env := decode(t, resp)
	if err := json.Unmarshal(env.Data, &it); err != nil {
		t.Fatalf("decode itinerary: %v", err)
	}
	if it.Status != "draft" {
		t.Fatalf("new itinerary status = %q, want draft", it.Status)
	}

	resp = performRequest(r, http.MethodPost, "/api/v1/itineraries/"+it.ID+"/items", jsonBody(t, map[string]interface{}{
		"title":         "Surf lesson",
		"scheduledDate": "2026-10-02",
		"startTime":     "09:00",
		"category":      "activity",
	}), access)
	if resp.Code != http.StatusCreated {
		t.Fatalf("add item failed status=%d body=%s", resp.Code, resp.Body.String())
	}

	resp = performRequest(r, http.MethodPost, "/api/v1/itineraries/"+it.ID+"/activate", nil, access)
	if resp.Code != http.StatusOK {
		t.Fatalf("activate failed status=%d body=%s", resp.Code, resp.Body.String())
	}
	// completing twice must conflict
	resp = performRequest(r, http.MethodPost, "/api/v1/itineraries/"+it.ID+"/complete", nil, access)
	if resp.Code != http.StatusOK {
		t.Fatalf("complete failed status=%d body=%s", resp.Code, resp.Body.String())
	}
	resp = performRequest(r, http.MethodPost, "/api/v1/itineraries/"+it.ID+"/complete", nil, access)
	if resp.Code != http.StatusConflict {
		t.Fatalf("double complete status=%d, want 409", resp.Code)
	}

	// another user cannot see the private itinerary
	otherAccess, _ := registerAndLogin(t, r, uniqueEmail("peek"))
	resp = performRequest(r, http.MethodGet, "/api/v1/itineraries/"+it.ID, nil, otherAccess)
	if resp.Code != http.StatusNotFound {
		t.Fatalf("private itinerary visible to stranger: status=%d", resp.Code)
	}
}

func TestCheckinFlow(t *testing.T) {
	r := setupTestServer(t)
	access, _ := registerAndLogin(t, r, uniqueEmail("safe"))

	resp := performRequest(r, http.MethodPost, "/api/v1/safety/checkin", jsonBody(t, map[string]interface{}{
		"locationName": "Hostel lobby",
		"latitude":     -8.65,
		"longitude":    115.21,
	}), access)
	if resp.Code != http.StatusCreated {
		t.Fatalf("checkin failed status=%d body=%s", resp.Code, resp.Body.String())
	}

	future := time.Now().Add(2 * time.Hour).UTC().Format(time.RFC3339)
	resp = performRequest(r, http.MethodPost, "/api/v1/safety/checkin/schedule", jsonBody(t, map[string]interface{}{
		"locationName": "Back at hotel",
		"scheduledFor": future,
	}), access)
	if resp.Code != http.StatusCreated {
		t.Fatalf("schedule failed status=%d body=%s", resp.Code, resp.Body.String())
	}
	var scheduled struct {
		ID string `json:"id"`
	}
	env := decode(t, resp)
	if err := json.Unmarshal(env.Data, &scheduled); err != nil {
		t.Fatalf("decode scheduled checkin: %v", err)
	}

	resp = performRequest(r, http.MethodGet, "/api/v1/safety/checkins/pending", nil, access)
	if resp.Code != http.StatusOK {
		t.Fatalf("pending failed status=%d body=%s", resp.Code, resp.Body.String())
	}

	resp = performRequest(r, http.MethodPost, "/api/v1/safety/checkins/"+scheduled.ID+"/complete", nil, access)
	if resp.Code != http.StatusOK {
		t.Fatalf("complete checkin failed status=%d body=%s", resp.Code, resp.Body.String())
	}

	resp = performRequest(r, http.MethodGet, "/api/v1/safety/status", nil, access)
	if resp.Code != http.StatusOK {
		t.Fatalf("status failed status=%d body=%s", resp.Code, resp.Body.String())
	}
}

func TestConnectionsAndMessaging(t *testing.T) {
	r := setupTestServer(t)
	aliceAccess, _ := registerAndLogin(t, r, uniqueEmail("alice"))
	bobAccess, _ := registerAndLogin(t, r, uniqueEmail("bob"))

	var bobID string
	resp := performRequest(r, http.MethodGet, "/api/v1/auth/me", nil, bobAccess)
	env := decode(t, resp)
	var me struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(env.Data, &me); err != nil {
		t.Fatalf("decode me: %v", err)
	}
	bobID = me.ID

	// messaging before connecting is forbidden
	resp = performRequest(r, http.MethodPost, "/api/v1/social/messages/"+bobID,
		jsonBody(t, map[string]string{"content": "hi!"}), aliceAccess)
	if resp.Code != http.StatusForbidden {
		t.Fatalf("message without connection: status=%d, want 403", resp.Code)
	}

	resp = performRequest(r, http.MethodPost, "/api/v1/social/connections",
		jsonBody(t, map[string]string{"userId": bobID}), aliceAccess)
	if resp.Code != http.StatusCreated {
		t.Fatalf("connection request failed status=%d body=%s", resp.Code, resp.Body.String())
	}
	env = decode(t, resp)
	var conn struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(env.Data, &conn); err != nil {
		t.Fatalf("decode connection: %v", err)
	}

	// duplicate request conflicts
	resp = performRequest(r, http.MethodPost, "/api/v1/social/connections",
		jsonBody(t, map[string]string{"userId": bobID}), aliceAccess)
	if resp.Code != http.StatusConflict {
		t.Fatalf("duplicate request status=%d, want 409", resp.Code)
	}

	// only the recipient may accept
	resp = performRequest(r, http.MethodPost, "/api/v1/social/connections/"+conn.ID+"/respond",
		jsonBody(t, map[string]bool{"accept": true}), aliceAccess)
	if resp.Code != http.StatusForbidden {
		t.Fatalf("requester accepted own request: status=%d", resp.Code)
	}
	resp = performRequest(r, http.MethodPost, "/api/v1/social/connections/"+conn.ID+"/respond",
		jsonBody(t, map[string]bool{"accept": true}), bobAccess)
	if resp.Code != http.StatusOK {
		t.Fatalf("accept failed status=%d body=%s", resp.Code, resp.Body.String())
	}

	resp = performRequest(r, http.MethodPost, "/api/v1/social/messages/"+bobID,
		jsonBody(t, map[string]string{"content": "hi bob"}), aliceAccess)
	if resp.Code != http.StatusCreated {
		t.Fatalf("send message failed status=%d body=%s", resp.Code, resp.Body.String())
	}
	resp = performRequest(r, http.MethodGet, "/api/v1/social/messages/"+bobID, nil, aliceAccess)
	if resp.Code != http.StatusOK {
		t.Fatalf("list messages failed status=%d body=%s", resp.Code, resp.Body.String())
	}
}

func currentUserIDOf(t *testing.T, r http.Handler, access string) string {
	t.Helper()
	resp := performRequest(r, http.MethodGet, "/api/v1/auth/me", nil, access)
	if resp.Code != http.StatusOK {
		t.Fatalf("me failed status=%d body=%s", resp.Code, resp.Body.String())
	}
	env := decode(t, resp)
	var me struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(env.Data, &me); err != nil {
		t.Fatalf("decode me: %v", err)
	}
	return me.ID
}

func TestPasswordResetTicketSingleUse(t *testing.T) {
	app, r := newTestApp(t, true)
	ctx := context.Background()
	email := uniqueEmail("reset")
	access, _ := registerAndLogin(t, r, email)
	userID := currentUserIDOf(t, r, access)

	// requesting a reset never reveals whether the account exists
	resp := performRequest(r, http.MethodPost, "/api/v1/auth/forgot-password",
		jsonBody(t, map[string]string{"email": email}), "")
	if resp.Code != http.StatusOK {
		t.Fatalf("forgot-password failed status=%d body=%s", resp.Code, resp.Body.String())
	}
	resp = performRequest(r, http.MethodPost, "/api/v1/auth/forgot-password",
		jsonBody(t, map[string]string{"email": uniqueEmail("nobody")}), "")
	if resp.Code != http.StatusOK {
		t.Fatalf("forgot-password for unknown email status=%d, want 200", resp.Code)
	}

	// a token nobody issued is rejected
	resp = performRequest(r, http.MethodPost, "/api/v1/auth/reset-password",
		jsonBody(t, map[string]string{"token": uuid.NewString(), "newPassword": "brandnew123"}), "")
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("unknown reset token status=%d, want 400", resp.Code)
	}

	// plant a ticket exactly as forgotPassword stores it
	token := uuid.NewString()
	if err := app.cache.Set(ctx, cache.PasswordResetKey(token),
		resetTicket{UserID: userID, Email: email}, time.Hour); err != nil {
		t.Fatalf("store reset ticket: %v", err)
	}

	// first consumption succeeds
	resp = performRequest(r, http.MethodPost, "/api/v1/auth/reset-password",
		jsonBody(t, map[string]string{"token": token, "newPassword": "brandnew123"}), "")
	if resp.Code != http.StatusOK {
		t.Fatalf("reset failed status=%d body=%s", resp.Code, resp.Body.String())
	}

	// the password actually changed
	resp = performRequest(r, http.MethodPost, "/api/v1/auth/login",
		jsonBody(t, map[string]string{"email": email, "password": "sup3rsecret"}), "")
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("old password still valid after reset: status=%d", resp.Code)
	}
	resp = performRequest(r, http.MethodPost, "/api/v1/auth/login",
		jsonBody(t, map[string]string{"email": email, "password": "brandnew123"}), "")
	if resp.Code != http.StatusOK {
		t.Fatalf("new password rejected after reset: status=%d body=%s", resp.Code, resp.Body.String())
	}

	// the ticket is single-use
	resp = performRequest(r, http.MethodPost, "/api/v1/auth/reset-password",
		jsonBody(t, map[string]string{"token": token, "newPassword": "anotherone123"}), "")
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("reused reset token status=%d, want 400", resp.Code)
	}
}

func TestExpiredLedgerRowIsLazilyRevoked(t *testing.T) {
	app, r := newTestApp(t, false)
	access, _ := registerAndLogin(t, r, uniqueEmail("stale"))
	userID := uuid.MustParse(currentUserIDOf(t, r, access))

	// a valid JWT whose ledger row has already lapsed
	_, refresh, err := app.tokens.Pair(userID)
	if err != nil {
		t.Fatalf("issue tokens: %v", err)
	}
	row := models.RefreshToken{
		UserID:    userID,
		TokenHash: tokens.Hash(refresh),
		ExpiresAt: time.Now().Add(-time.Minute),
	}
	if err := app.db.Create(&row).Error; err != nil {
		t.Fatalf("seed ledger row: %v", err)
	}

	resp := performRequest(r, http.MethodPost, "/api/v1/auth/refresh",
		jsonBody(t, map[string]string{"refreshToken": refresh}), "")
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expired ledger row accepted: status=%d body=%s", resp.Code, resp.Body.String())
	}

	var after models.RefreshToken
	if err := app.db.Where("token_hash = ?", tokens.Hash(refresh)).First(&after).Error; err != nil {
		t.Fatalf("reload ledger row: %v", err)
	}
	if after.RevokedAt == nil {
		t.Fatal("expired ledger row was not revoked on presentation")
	}
}
