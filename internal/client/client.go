// Package client is the typed REST client for the yoga studio API. Every
// method is a single request/response pair; failures are mapped to sentinel
// errors and surfaced to the caller without retries.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"yogastudio/internal/model"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrUnauthorized = errors.New("unauthorized")
	ErrBadRequest   = errors.New("bad request")
)

type Client struct {
	baseURL    string
	httpClient *http.Client
	token      string
}

func New(baseURL string) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: http.DefaultClient,
	}
}

// SetToken installs the bearer token used on authenticated calls.
func (c *Client) SetToken(token string) {
	c.token = token
}

// Auth

type AuthSession struct {
	Token     string `json:"token"`
	Type      string `json:"type"`
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Admin     bool   `json:"admin"`
}

func (c *Client) Login(ctx context.Context, email, password string) (AuthSession, error) {
	var session AuthSession
	err := c.do(ctx, http.MethodPost, "/api/auth/login", map[string]string{
		"email":    email,
		"password": password,
	}, &session)
	return session, err
}

func (c *Client) Register(ctx context.Context, email, firstName, lastName, password string) error {
	return c.do(ctx, http.MethodPost, "/api/auth/register", map[string]string{
		"email":     email,
		"firstName": firstName,
		"lastName":  lastName,
		"password":  password,
	}, nil)
}

// Sessions

type sessionDTO struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Date        time.Time `json:"date"`
	TeacherID   int64     `json:"teacher_id"`
	Description string    `json:"description"`
	Users       []int64   `json:"users"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

type sessionPayload struct {
	Name        string    `json:"name"`
	Date        time.Time `json:"date"`
	TeacherID   int64     `json:"teacher_id"`
	Description string    `json:"description"`
}

func (dto sessionDTO) toModel() model.Session {
	users := dto.Users
	if users == nil {
		users = []int64{}
	}
	return model.Session{
		ID:          dto.ID,
		Name:        dto.Name,
		Description: dto.Description,
		Date:        dto.Date,
		TeacherID:   dto.TeacherID,
		Users:       users,
		CreatedAt:   dto.CreatedAt,
		UpdatedAt:   dto.UpdatedAt,
	}
}

func draftPayload(draft model.SessionDraft) sessionPayload {
	return sessionPayload{
		Name:        draft.Name,
		Date:        draft.Date,
		TeacherID:   draft.TeacherID,
		Description: draft.Description,
	}
}

func (c *Client) ListSessions(ctx context.Context) ([]model.Session, error) {
	var dtos []sessionDTO
	if err := c.do(ctx, http.MethodGet, "/api/session", nil, &dtos); err != nil {
		return nil, err
	}
	sessions := make([]model.Session, 0, len(dtos))
	for _, dto := range dtos {
		sessions = append(sessions, dto.toModel())
	}
	return sessions, nil
}

func (c *Client) GetSession(ctx context.Context, sessionID int64) (model.Session, error) {
	var dto sessionDTO
	if err := c.do(ctx, http.MethodGet, "/api/session/"+formatID(sessionID), nil, &dto); err != nil {
		return model.Session{}, err
	}
	return dto.toModel(), nil
}

func (c *Client) CreateSession(ctx context.Context, draft model.SessionDraft) (model.Session, error) {
	var dto sessionDTO
	if err := c.do(ctx, http.MethodPost, "/api/session", draftPayload(draft), &dto); err != nil {
		return model.Session{}, err
	}
	return dto.toModel(), nil
}

func (c *Client) UpdateSession(ctx context.Context, sessionID int64, draft model.SessionDraft) (model.Session, error) {
	var dto sessionDTO
	if err := c.do(ctx, http.MethodPut, "/api/session/"+formatID(sessionID), draftPayload(draft), &dto); err != nil {
		return model.Session{}, err
	}
	return dto.toModel(), nil
}

func (c *Client) DeleteSession(ctx context.Context, sessionID int64) error {
	return c.do(ctx, http.MethodDelete, "/api/session/"+formatID(sessionID), nil, nil)
}

func (c *Client) Participate(ctx context.Context, sessionID, userID int64) error {
	return c.do(ctx, http.MethodPost, "/api/session/"+formatID(sessionID)+"/participate/"+formatID(userID), nil, nil)
}

func (c *Client) Unparticipate(ctx context.Context, sessionID, userID int64) error {
	return c.do(ctx, http.MethodDelete, "/api/session/"+formatID(sessionID)+"/participate/"+formatID(userID), nil, nil)
}

// Teachers

type teacherDTO struct {
	ID        int64     `json:"id"`
	LastName  string    `json:"lastName"`
	FirstName string    `json:"firstName"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (dto teacherDTO) toModel() model.Teacher {
	return model.Teacher{
		ID:        dto.ID,
		FirstName: dto.FirstName,
		LastName:  dto.LastName,
		CreatedAt: dto.CreatedAt,
		UpdatedAt: dto.UpdatedAt,
	}
}

func (c *Client) ListTeachers(ctx context.Context) ([]model.Teacher, error) {
	var dtos []teacherDTO
	if err := c.do(ctx, http.MethodGet, "/api/teacher", nil, &dtos); err != nil {
		return nil, err
	}
	teachers := make([]model.Teacher, 0, len(dtos))
	for _, dto := range dtos {
		teachers = append(teachers, dto.toModel())
	}
	return teachers, nil
}

func (c *Client) GetTeacher(ctx context.Context, teacherID int64) (model.Teacher, error) {
	var dto teacherDTO
	if err := c.do(ctx, http.MethodGet, "/api/teacher/"+formatID(teacherID), nil, &dto); err != nil {
		return model.Teacher{}, err
	}
	return dto.toModel(), nil
}

// Users

type userDTO struct {
	ID        int64     `json:"id"`
	Email     string    `json:"email"`
	LastName  string    `json:"lastName"`
	FirstName string    `json:"firstName"`
	Admin     bool      `json:"admin"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (c *Client) GetUser(ctx context.Context, userID int64) (model.User, error) {
	var dto userDTO
	if err := c.do(ctx, http.MethodGet, "/api/user/"+formatID(userID), nil, &dto); err != nil {
		return model.User{}, err
	}
	return model.User{
		ID:        dto.ID,
		Email:     dto.Email,
		FirstName: dto.FirstName,
		LastName:  dto.LastName,
		Admin:     dto.Admin,
		CreatedAt: dto.CreatedAt,
		UpdatedAt: dto.UpdatedAt,
	}, nil
}

func (c *Client) DeleteUser(ctx context.Context, userID int64) error {
	return c.do(ctx, http.MethodDelete, "/api/user/"+formatID(userID), nil, nil)
}

// Transport

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, &buf)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return statusError(resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func statusError(resp *http.Response) error {
	code := "request_failed"
	var payload struct {
		Error string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err == nil && payload.Error != "" {
		code = payload.Error
	}

	switch resp.StatusCode {
	case http.StatusUnauthorized:
		return fmt.Errorf("%w: %s", ErrUnauthorized, code)
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", ErrNotFound, code)
	case http.StatusBadRequest:
		return fmt.Errorf("%w: %s", ErrBadRequest, code)
	default:
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, code)
	}
}

func formatID(id int64) string {
	return strconv.FormatInt(id, 10)
}
