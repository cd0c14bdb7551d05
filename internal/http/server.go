package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/mail"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"yogastudio/internal/auth"
	"yogastudio/internal/config"
	"yogastudio/internal/crypto"
	"yogastudio/internal/model"
	"yogastudio/internal/repository"
)

type Server struct {
	cfg      config.Config
	store    *repository.Store
	redis    *redis.Client
	cacheTTL time.Duration
}

func NewServer(cfg config.Config, store *repository.Store, redisClient *redis.Client) *Server {
	return &Server{
		cfg:      cfg,
		store:    store,
		redis:    redisClient,
		cacheTTL: cfg.CacheTTL,
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Post("/api/auth/login", s.handleLogin)
	r.Post("/api/auth/register", s.handleRegister)

	r.Route("/api/session", func(r chi.Router) {
		r.Use(s.authMiddleware)
		r.Get("/", s.handleListSessions)
		r.Get("/{id}", s.handleGetSession)
		r.With(s.requireAdmin).Post("/", s.handleCreateSession)
		r.With(s.requireAdmin).Put("/{id}", s.handleUpdateSession)
		r.With(s.requireAdmin).Delete("/{id}", s.handleDeleteSession)
		r.Post("/{id}/participate/{userId}", s.handleParticipate)
		r.Delete("/{id}/participate/{userId}", s.handleUnparticipate)
	})

	r.Route("/api/teacher", func(r chi.Router) {
		r.Use(s.authMiddleware)
		r.Get("/", s.handleListTeachers)
		r.Get("/{id}", s.handleGetTeacher)
	})

	r.Route("/api/user", func(r chi.Router) {
		r.Use(s.authMiddleware)
		r.Get("/{id}", s.handleGetUser)
		r.Delete("/{id}", s.handleDeleteUser)
	})

	return r
}

// Middleware

type claimsKey struct{}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := strings.TrimSpace(r.Header.Get("X-Request-Id"))
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set("X-Request-Id", requestID)
		next.ServeHTTP(w, r)
	})
}

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r.Header.Get("Authorization"))
		if token == "" {
			writeError(w, http.StatusUnauthorized, "missing_token")
			return
		}
		claims, err := auth.ParseToken(s.cfg.JWTSecret, s.cfg.JWTIssuer, token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid_token")
			return
		}
		ctx := context.WithValue(r.Context(), claimsKey{}, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims := claimsFromContext(r.Context())
		if claims == nil || !claims.Admin {
			writeError(w, http.StatusForbidden, "admin_only")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func claimsFromContext(ctx context.Context) *auth.Claims {
	value := ctx.Value(claimsKey{})
	claims, _ := value.(*auth.Claims)
	return claims
}

// Models

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type authResponse struct {
	Token     string `json:"token"`
	Type      string `json:"type"`
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Admin     bool   `json:"admin"`
}

type registerRequest struct {
	Email     string `json:"email"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Password  string `json:"password"`
}

type sessionRequest struct {
	Name        string     `json:"name"`
	Date        *time.Time `json:"date"`
	TeacherID   int64      `json:"teacher_id"`
	Description string     `json:"description"`
}

type sessionResponse struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Date        time.Time `json:"date"`
	TeacherID   int64     `json:"teacher_id"`
	Description string    `json:"description"`
	Users       []int64   `json:"users"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

type teacherResponse struct {
	ID        int64     `json:"id"`
	LastName  string    `json:"lastName"`
	FirstName string    `json:"firstName"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type userResponse struct {
	ID        int64     `json:"id"`
	Email     string    `json:"email"`
	LastName  string    `json:"lastName"`
	FirstName string    `json:"firstName"`
	Admin     bool      `json:"admin"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func mapSession(session model.Session) sessionResponse {
	users := session.Users
	if users == nil {
		users = []int64{}
	}
	return sessionResponse{
		ID:          session.ID,
		Name:        session.Name,
		Date:        session.Date,
		TeacherID:   session.TeacherID,
		Description: session.Description,
		Users:       users,
		CreatedAt:   session.CreatedAt,
		UpdatedAt:   session.UpdatedAt,
	}
}

func mapTeacher(teacher model.Teacher) teacherResponse {
	return teacherResponse{
		ID:        teacher.ID,
		LastName:  teacher.LastName,
		FirstName: teacher.FirstName,
		CreatedAt: teacher.CreatedAt,
		UpdatedAt: teacher.UpdatedAt,
	}
}

func mapUser(user model.User) userResponse {
	return userResponse{
		ID:        user.ID,
		Email:     user.Email,
		LastName:  user.LastName,
		FirstName: user.FirstName,
		Admin:     user.Admin,
		CreatedAt: user.CreatedAt,
		UpdatedAt: user.UpdatedAt,
	}
}

// Auth handlers

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	if req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "missing_credentials")
		return
	}

	user, err := s.store.GetUserByEmail(r.Context(), req.Email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusUnauthorized, "invalid_credentials")
			return
		}
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	if err := crypto.CheckPassword(user.PasswordHash, req.Password); err != nil {
		writeError(w, http.StatusUnauthorized, "invalid_credentials")
		return
	}

	token, err := auth.NewAccessToken(s.cfg.JWTSecret, s.cfg.JWTIssuer, s.cfg.AccessTokenTTL, auth.Claims{
		UserID: user.ID,
		Admin:  user.Admin,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "token_error")
		return
	}

	writeJSON(w, http.StatusOK, authResponse{
		Token:     token,
		Type:      "Bearer",
		ID:        user.ID,
		Username:  user.Email,
		FirstName: user.FirstName,
		LastName:  user.LastName,
		Admin:     user.Admin,
	})
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	if req.Email == "" || req.Password == "" || strings.TrimSpace(req.FirstName) == "" || strings.TrimSpace(req.LastName) == "" {
		writeError(w, http.StatusBadRequest, "missing_fields")
		return
	}
	if !validEmail(req.Email) {
		writeError(w, http.StatusBadRequest, "invalid_email")
		return
	}

	hash, err := crypto.HashPassword(req.Password)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "password_hash_failed")
		return
	}

	now := time.Now().UTC()
	user := model.User{
		Email:        req.Email,
		FirstName:    strings.TrimSpace(req.FirstName),
		LastName:     strings.TrimSpace(req.LastName),
		PasswordHash: hash,
		Admin:        false,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if _, err := s.store.CreateUser(r.Context(), user); err != nil {
		if isUniqueViolation(err) {
			writeError(w, http.StatusBadRequest, "email_taken")
			return
		}
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "User registered successfully!"})
}

// Session handlers

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	if data, ok := s.cacheGet(r.Context(), sessionListKey); ok {
		writeJSONRaw(w, http.StatusOK, data)
		return
	}

	sessions, err := s.store.ListSessions(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	resp := make([]sessionResponse, 0, len(sessions))
	for _, session := range sessions {
		resp = append(resp, mapSession(session))
	}

	s.cacheSet(r.Context(), sessionListKey, resp)
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sessionID, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_id")
		return
	}

	if data, ok := s.cacheGet(r.Context(), sessionKey(sessionID)); ok {
		writeJSONRaw(w, http.StatusOK, data)
		return
	}

	session, err := s.store.GetSessionByID(r.Context(), sessionID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, "session_not_found")
			return
		}
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}

	resp := mapSession(session)
	s.cacheSet(r.Context(), sessionKey(sessionID), resp)
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req sessionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	draft, ok := sessionDraft(req)
	if !ok {
		writeError(w, http.StatusBadRequest, "missing_fields")
		return
	}

	if _, err := s.store.GetTeacherByID(r.Context(), draft.TeacherID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, "teacher_not_found")
			return
		}
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}

	session, err := s.store.CreateSession(r.Context(), draft, time.Now().UTC())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}

	s.cacheInvalidate(r.Context(), sessionListKey)
	writeJSON(w, http.StatusOK, mapSession(session))
}

func (s *Server) handleUpdateSession(w http.ResponseWriter, r *http.Request) {
	sessionID, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_id")
		return
	}

	var req sessionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	draft, ok := sessionDraft(req)
	if !ok {
		writeError(w, http.StatusBadRequest, "missing_fields")
		return
	}

	session, err := s.store.UpdateSession(r.Context(), sessionID, draft, time.Now().UTC())
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, "session_not_found")
			return
		}
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}

	s.cacheInvalidate(r.Context(), sessionListKey, sessionKey(sessionID))
	writeJSON(w, http.StatusOK, mapSession(session))
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	sessionID, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_id")
		return
	}

	deleted, err := s.store.DeleteSession(r.Context(), sessionID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	if !deleted {
		writeError(w, http.StatusNotFound, "session_not_found")
		return
	}

	s.cacheInvalidate(r.Context(), sessionListKey, sessionKey(sessionID))
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (s *Server) handleParticipate(w http.ResponseWriter, r *http.Request) {
	sessionID, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_id")
		return
	}
	userID, err := parseID(chi.URLParam(r, "userId"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_id")
		return
	}

	if _, err := s.store.GetSessionByID(r.Context(), sessionID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, "session_not_found")
			return
		}
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	if _, err := s.store.GetUserByID(r.Context(), userID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, "user_not_found")
			return
		}
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}

	if err := s.store.AddParticipant(r.Context(), sessionID, userID, time.Now().UTC()); err != nil {
		if errors.Is(err, repository.ErrAlreadyParticipating) {
			writeError(w, http.StatusBadRequest, "already_participating")
			return
		}
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}

	s.cacheInvalidate(r.Context(), sessionListKey, sessionKey(sessionID))
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleUnparticipate(w http.ResponseWriter, r *http.Request) {
	sessionID, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_id")
		return
	}
	userID, err := parseID(chi.URLParam(r, "userId"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_id")
		return
	}

	if _, err := s.store.GetSessionByID(r.Context(), sessionID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, "session_not_found")
			return
		}
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}

	// Removing a user that is not on the roster is a no-op success.
	if err := s.store.RemoveParticipant(r.Context(), sessionID, userID); err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}

	s.cacheInvalidate(r.Context(), sessionListKey, sessionKey(sessionID))
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Teacher handlers

func (s *Server) handleListTeachers(w http.ResponseWriter, r *http.Request) {
	if data, ok := s.cacheGet(r.Context(), teacherListKey); ok {
		writeJSONRaw(w, http.StatusOK, data)
		return
	}

	teachers, err := s.store.ListTeachers(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	resp := make([]teacherResponse, 0, len(teachers))
	for _, teacher := range teachers {
		resp = append(resp, mapTeacher(teacher))
	}

	s.cacheSet(r.Context(), teacherListKey, resp)
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetTeacher(w http.ResponseWriter, r *http.Request) {
	teacherID, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_id")
		return
	}

	teacher, err := s.store.GetTeacherByID(r.Context(), teacherID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, "teacher_not_found")
			return
		}
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}

	writeJSON(w, http.StatusOK, mapTeacher(teacher))
}

// User handlers

func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	userID, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_id")
		return
	}

	user, err := s.store.GetUserByID(r.Context(), userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, "user_not_found")
			return
		}
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}

	writeJSON(w, http.StatusOK, mapUser(user))
}

func (s *Server) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	userID, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_id")
		return
	}

	claims := claimsFromContext(r.Context())
	if claims == nil || claims.UserID != userID {
		writeError(w, http.StatusUnauthorized, "not_account_owner")
		return
	}

	// The delete cascades through session_users, so every roster the user
	// was on changes. Collect those session ids before the row is gone.
	sessionIDs, err := s.store.ListUserSessionIDs(r.Context(), userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}

	deleted, err := s.store.DeleteUser(r.Context(), userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	if !deleted {
		writeError(w, http.StatusNotFound, "user_not_found")
		return
	}

	s.cacheInvalidate(r.Context(), rosterCacheKeys(sessionIDs)...)
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// Cache

const (
	sessionListKey = "cache:sessions"
	teacherListKey = "cache:teachers"
)

func sessionKey(sessionID int64) string {
	return fmt.Sprintf("cache:session:%d", sessionID)
}

// rosterCacheKeys is the invalidation set for a roster change touching the
// given sessions: the list key plus one key per session.
func rosterCacheKeys(sessionIDs []int64) []string {
	keys := make([]string, 0, len(sessionIDs)+1)
	keys = append(keys, sessionListKey)
	for _, sessionID := range sessionIDs {
		keys = append(keys, sessionKey(sessionID))
	}
	return keys
}

func (s *Server) cacheGet(ctx context.Context, key string) ([]byte, bool) {
	if s.redis == nil {
		return nil, false
	}
	data, err := s.redis.Get(ctx, key).Bytes()
	if err != nil {
		return nil, false
	}
	return data, true
}

func (s *Server) cacheSet(ctx context.Context, key string, payload interface{}) {
	if s.redis == nil {
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	_ = s.redis.Set(ctx, key, data, s.cacheTTL).Err()
}

func (s *Server) cacheInvalidate(ctx context.Context, keys ...string) {
	if s.redis == nil {
		return
	}
	_ = s.redis.Del(ctx, keys...).Err()
}

// Helpers

func sessionDraft(req sessionRequest) (model.SessionDraft, bool) {
	if strings.TrimSpace(req.Name) == "" || req.Date == nil || req.TeacherID <= 0 || strings.TrimSpace(req.Description) == "" {
		return model.SessionDraft{}, false
	}
	return model.SessionDraft{
		Name:        strings.TrimSpace(req.Name),
		Description: strings.TrimSpace(req.Description),
		Date:        req.Date.UTC(),
		TeacherID:   req.TeacherID,
	}, true
}

func parseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.New("invalid id")
	}
	return id, nil
}

func validEmail(email string) bool {
	addr, err := mail.ParseAddress(email)
	return err == nil && addr.Address == email
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func bearerToken(header string) string {
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func decodeJSON(r *http.Request, out interface{}) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(out)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeJSONRaw(w http.ResponseWriter, status int, data []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, map[string]string{"error": code})
}
