package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"yogastudio/internal/auth"
	"yogastudio/internal/config"
	"yogastudio/internal/crypto"
	"yogastudio/internal/db"
	"yogastudio/internal/model"
	"yogastudio/internal/repository"
)

func testConfig() config.Config {
	return config.Config{
		HTTPAddr:       ":0",
		JWTSecret:      "test-secret",
		JWTIssuer:      "test-issuer",
		AccessTokenTTL: 15 * time.Minute,
		CacheTTL:       time.Minute,
	}
}

func TestAuthEndpoints(t *testing.T) {
	pool := openTestDB(t)
	if pool == nil {
		return
	}
	defer pool.Close()

	cfg := testConfig()
	store := repository.NewStore(pool)
	server := NewServer(cfg, store, nil)
	app := httptest.NewServer(server.Router())
	defer app.Close()

	email := uniqueEmail("register")
	registerBody := map[string]string{
		"email":     email,
		"firstName": "Test",
		"lastName":  "User",
		"password":  "test!1234",
	}

	resp := doReq(t, http.MethodPost, app.URL+"/api/auth/register", "", registerBody)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 on register, got %d", resp.StatusCode)
	}
	var registered map[string]string
	decodeBody(t, resp, &registered)
	if registered["message"] != "User registered successfully!" {
		t.Fatalf("unexpected register message %q", registered["message"])
	}

	// Same email again is rejected.
	resp = doReq(t, http.MethodPost, app.URL+"/api/auth/register", "", registerBody)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 on duplicate email, got %d", resp.StatusCode)
	}

	resp = doReq(t, http.MethodPost, app.URL+"/api/auth/login", "", map[string]string{
		"email":    email,
		"password": "wrong",
	})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 on bad password, got %d", resp.StatusCode)
	}

	resp = doReq(t, http.MethodPost, app.URL+"/api/auth/login", "", map[string]string{
		"email":    email,
		"password": "test!1234",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 on login, got %d", resp.StatusCode)
	}
	var session struct {
		Token    string `json:"token"`
		Type     string `json:"type"`
		Username string `json:"username"`
		Admin    bool   `json:"admin"`
	}
	decodeBody(t, resp, &session)
	if session.Token == "" || session.Type != "Bearer" || session.Username != email || session.Admin {
		t.Fatalf("unexpected login response %+v", session)
	}

	// The issued token grants access to protected routes.
	resp = doReq(t, http.MethodGet, app.URL+"/api/session", session.Token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 with token, got %d", resp.StatusCode)
	}
	resp = doReq(t, http.MethodGet, app.URL+"/api/session", "", nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", resp.StatusCode)
	}
}

func TestSessionCRUDAndRoster(t *testing.T) {
	pool := openTestDB(t)
	if pool == nil {
		return
	}
	defer pool.Close()

	cfg := testConfig()
	store := repository.NewStore(pool)
	server := NewServer(cfg, store, nil)
	app := httptest.NewServer(server.Router())
	defer app.Close()

	ctx := context.Background()
	teacher := seedTeacher(t, ctx, store)
	admin := seedUser(t, ctx, store, true)
	member := seedUser(t, ctx, store, false)
	adminToken := mustToken(t, cfg, admin)
	memberToken := mustToken(t, cfg, member)

	sessionBody := map[string]interface{}{
		"name":        "Morning Flow",
		"date":        time.Date(2026, 9, 1, 9, 0, 0, 0, time.UTC),
		"teacher_id":  teacher.ID,
		"description": "Vinyasa basics",
	}

	// Members cannot create sessions.
	resp := doReq(t, http.MethodPost, app.URL+"/api/session", memberToken, sessionBody)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 for member create, got %d", resp.StatusCode)
	}

	resp = doReq(t, http.MethodPost, app.URL+"/api/session", adminToken, sessionBody)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 for admin create, got %d", resp.StatusCode)
	}
	var created struct {
		ID    int64   `json:"id"`
		Name  string  `json:"name"`
		Users []int64 `json:"users"`
	}
	decodeBody(t, resp, &created)
	if created.ID == 0 || created.Name != "Morning Flow" || len(created.Users) != 0 {
		t.Fatalf("unexpected create response %+v", created)
	}
	sessionURL := fmt.Sprintf("%s/api/session/%d", app.URL, created.ID)

	// Missing fields are rejected before any write.
	resp = doReq(t, http.MethodPost, app.URL+"/api/session", adminToken, map[string]interface{}{
		"name":       "No description",
		"date":       time.Now().UTC(),
		"teacher_id": teacher.ID,
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing fields, got %d", resp.StatusCode)
	}

	updateBody := map[string]interface{}{
		"name":        "Evening Flow",
		"date":        time.Date(2026, 9, 1, 18, 0, 0, 0, time.UTC),
		"teacher_id":  teacher.ID,
		"description": "Updated",
	}
	resp = doReq(t, http.MethodPut, sessionURL, memberToken, updateBody)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 for member update, got %d", resp.StatusCode)
	}
	resp = doReq(t, http.MethodPut, sessionURL, adminToken, updateBody)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 for admin update, got %d", resp.StatusCode)
	}
	var updated struct {
		Name string `json:"name"`
	}
	decodeBody(t, resp, &updated)
	if updated.Name != "Evening Flow" {
		t.Fatalf("expected updated name, got %q", updated.Name)
	}

	participateURL := fmt.Sprintf("%s/participate/%d", sessionURL, member.ID)

	resp = doReq(t, http.MethodPost, participateURL, memberToken, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 on participate, got %d", resp.StatusCode)
	}
	// Participating twice is a caller error.
	resp = doReq(t, http.MethodPost, participateURL, memberToken, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 on duplicate participate, got %d", resp.StatusCode)
	}

	resp = doReq(t, http.MethodGet, sessionURL, memberToken, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 on get, got %d", resp.StatusCode)
	}
	var fetched struct {
		Users []int64 `json:"users"`
	}
	decodeBody(t, resp, &fetched)
	if len(fetched.Users) != 1 || fetched.Users[0] != member.ID {
		t.Fatalf("expected roster [%d], got %v", member.ID, fetched.Users)
	}

	resp = doReq(t, http.MethodDelete, participateURL, memberToken, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 on unparticipate, got %d", resp.StatusCode)
	}
	// Removing a non-participant is a no-op success.
	resp = doReq(t, http.MethodDelete, participateURL, memberToken, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 on repeated unparticipate, got %d", resp.StatusCode)
	}

	resp = doReq(t, http.MethodPost, fmt.Sprintf("%s/participate/999999", sessionURL), memberToken, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown participant user, got %d", resp.StatusCode)
	}

	resp = doReq(t, http.MethodDelete, sessionURL, memberToken, nil)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 for member delete, got %d", resp.StatusCode)
	}
	resp = doReq(t, http.MethodDelete, sessionURL, adminToken, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 for admin delete, got %d", resp.StatusCode)
	}
	resp = doReq(t, http.MethodGet, sessionURL, adminToken, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %d", resp.StatusCode)
	}

	resp = doReq(t, http.MethodGet, app.URL+"/api/session/a", adminToken, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for invalid id, got %d", resp.StatusCode)
	}
}

func TestTeacherAndUserEndpoints(t *testing.T) {
	pool := openTestDB(t)
	if pool == nil {
		return
	}
	defer pool.Close()

	cfg := testConfig()
	store := repository.NewStore(pool)
	server := NewServer(cfg, store, nil)
	app := httptest.NewServer(server.Router())
	defer app.Close()

	ctx := context.Background()
	teacher := seedTeacher(t, ctx, store)
	admin := seedUser(t, ctx, store, true)
	member := seedUser(t, ctx, store, false)
	adminToken := mustToken(t, cfg, admin)
	memberToken := mustToken(t, cfg, member)

	resp := doReq(t, http.MethodGet, app.URL+"/api/teacher", memberToken, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 on teacher list, got %d", resp.StatusCode)
	}

	resp = doReq(t, http.MethodGet, fmt.Sprintf("%s/api/teacher/%d", app.URL, teacher.ID), memberToken, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 on teacher get, got %d", resp.StatusCode)
	}
	resp = doReq(t, http.MethodGet, app.URL+"/api/teacher/999999", memberToken, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 on unknown teacher, got %d", resp.StatusCode)
	}

	resp = doReq(t, http.MethodGet, fmt.Sprintf("%s/api/user/%d", app.URL, member.ID), memberToken, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 on user get, got %d", resp.StatusCode)
	}
	var profile struct {
		Email string `json:"email"`
		Admin bool   `json:"admin"`
	}
	decodeBody(t, resp, &profile)
	if profile.Email != member.Email || profile.Admin {
		t.Fatalf("unexpected profile %+v", profile)
	}

	// Only the account owner may delete it.
	resp = doReq(t, http.MethodDelete, fmt.Sprintf("%s/api/user/%d", app.URL, member.ID), adminToken, nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 deleting another account, got %d", resp.StatusCode)
	}
	resp = doReq(t, http.MethodDelete, fmt.Sprintf("%s/api/user/%d", app.URL, member.ID), memberToken, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 deleting own account, got %d", resp.StatusCode)
	}
	resp = doReq(t, http.MethodGet, fmt.Sprintf("%s/api/user/%d", app.URL, member.ID), adminToken, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 after account deletion, got %d", resp.StatusCode)
	}
}

func TestDeleteUserClearsRosters(t *testing.T) {
	pool := openTestDB(t)
	if pool == nil {
		return
	}
	defer pool.Close()

	cfg := testConfig()
	store := repository.NewStore(pool)
	server := NewServer(cfg, store, nil)
	app := httptest.NewServer(server.Router())
	defer app.Close()

	ctx := context.Background()
	teacher := seedTeacher(t, ctx, store)
	admin := seedUser(t, ctx, store, true)
	member := seedUser(t, ctx, store, false)
	adminToken := mustToken(t, cfg, admin)
	memberToken := mustToken(t, cfg, member)

	session, err := store.CreateSession(ctx, model.SessionDraft{
		Name:        "Morning Flow",
		Description: "Vinyasa basics",
		Date:        time.Date(2026, 9, 1, 9, 0, 0, 0, time.UTC),
		TeacherID:   teacher.ID,
	}, time.Now().UTC())
	if err != nil {
		t.Fatalf("seed session: %v", err)
	}
	if err := store.AddParticipant(ctx, session.ID, member.ID, time.Now().UTC()); err != nil {
		t.Fatalf("seed participant: %v", err)
	}

	sessionIDs, err := store.ListUserSessionIDs(ctx, member.ID)
	if err != nil {
		t.Fatalf("list user sessions: %v", err)
	}
	if len(sessionIDs) != 1 || sessionIDs[0] != session.ID {
		t.Fatalf("expected membership [%d], got %v", session.ID, sessionIDs)
	}

	resp := doReq(t, http.MethodDelete, fmt.Sprintf("%s/api/user/%d", app.URL, member.ID), memberToken, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 deleting account, got %d", resp.StatusCode)
	}

	// The cascade removed the user from the roster.
	resp = doReq(t, http.MethodGet, fmt.Sprintf("%s/api/session/%d", app.URL, session.ID), adminToken, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 on session get, got %d", resp.StatusCode)
	}
	var fetched struct {
		Users []int64 `json:"users"`
	}
	decodeBody(t, resp, &fetched)
	if len(fetched.Users) != 0 {
		t.Fatalf("expected empty roster after account deletion, got %v", fetched.Users)
	}
}

func openTestDB(t *testing.T) *pgxpool.Pool {
	url := os.Getenv("YOGASTUDIO_TEST_DB")
	if url == "" {
		url = os.Getenv("DATABASE_URL")
	}
	if url == "" {
		t.Skip("YOGASTUDIO_TEST_DB or DATABASE_URL not set")
		return nil
	}
	pool, err := db.NewPool(context.Background(), url)
	if err != nil {
		t.Skipf("db unavailable: %v", err)
		return nil
	}
	if err := repository.NewStore(pool).EnsureSchema(context.Background()); err != nil {
		pool.Close()
		t.Fatalf("schema init failed: %v", err)
	}
	return pool
}

func seedTeacher(t *testing.T, ctx context.Context, store *repository.Store) model.Teacher {
	t.Helper()
	now := time.Now().UTC()
	teacher, err := store.CreateTeacher(ctx, model.Teacher{
		FirstName: "Margot",
		LastName:  "Delahaye",
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		t.Fatalf("seed teacher: %v", err)
	}
	return teacher
}

func seedUser(t *testing.T, ctx context.Context, store *repository.Store, admin bool) model.User {
	t.Helper()
	hash, err := crypto.HashPassword("test!1234")
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	now := time.Now().UTC()
	role := "member"
	if admin {
		role = "admin"
	}
	user, err := store.CreateUser(ctx, model.User{
		Email:        uniqueEmail(role),
		FirstName:    "Test",
		LastName:     "User",
		PasswordHash: hash,
		Admin:        admin,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return user
}

func uniqueEmail(prefix string) string {
	return fmt.Sprintf("%s.%d@example.local", prefix, time.Now().UnixNano())
}

func mustToken(t *testing.T, cfg config.Config, user model.User) string {
	t.Helper()
	token, err := auth.NewAccessToken(cfg.JWTSecret, cfg.JWTIssuer, 10*time.Minute, auth.Claims{
		UserID: user.ID,
		Admin:  user.Admin,
	})
	if err != nil {
		t.Fatalf("token error: %v", err)
	}
	return token
}

func doReq(t *testing.T, method, url, token string, body interface{}) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode error: %v", err)
		}
	}
	req, err := http.NewRequest(method, url, &buf)
	if err != nil {
		t.Fatalf("request error: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("http error: %v", err)
	}
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, out interface{}) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		t.Fatalf("decode error: %v", err)
	}
}
