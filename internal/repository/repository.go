package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"yogastudio/internal/model"
)

// ErrAlreadyParticipating is returned when a user id is already present in a
// session roster. The composite primary key on session_users guarantees the
// roster can never hold duplicates either way.
var ErrAlreadyParticipating = errors.New("already participating")

type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// EnsureSchema creates the tables on startup when they do not exist yet.
func (s *Store) EnsureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS users (
			id BIGSERIAL PRIMARY KEY,
			email TEXT NOT NULL UNIQUE,
			first_name TEXT NOT NULL,
			last_name TEXT NOT NULL,
			password_hash TEXT NOT NULL,
			admin BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		);
		CREATE TABLE IF NOT EXISTS teachers (
			id BIGSERIAL PRIMARY KEY,
			first_name TEXT NOT NULL,
			last_name TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		);
		CREATE TABLE IF NOT EXISTS sessions (
			id BIGSERIAL PRIMARY KEY,
			name TEXT NOT NULL,
			description TEXT NOT NULL,
			date TIMESTAMPTZ NOT NULL,
			teacher_id BIGINT NOT NULL REFERENCES teachers (id),
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		);
		CREATE TABLE IF NOT EXISTS session_users (
			session_id BIGINT NOT NULL REFERENCES sessions (id) ON DELETE CASCADE,
			user_id BIGINT NOT NULL REFERENCES users (id) ON DELETE CASCADE,
			created_at TIMESTAMPTZ NOT NULL,
			PRIMARY KEY (session_id, user_id)
		);
	`)
	return err
}

// Users

func (s *Store) CreateUser(ctx context.Context, user model.User) (model.User, error) {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO users (email, first_name, last_name, password_hash, admin, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`, user.Email, user.FirstName, user.LastName, user.PasswordHash, user.Admin, user.CreatedAt, user.UpdatedAt)
	err := row.Scan(&user.ID)
	return user, err
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (model.User, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, email, first_name, last_name, password_hash, admin, created_at, updated_at
		FROM users
		WHERE email = $1
	`, email)
	return scanUser(row)
}

func (s *Store) GetUserByID(ctx context.Context, userID int64) (model.User, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, email, first_name, last_name, password_hash, admin, created_at, updated_at
		FROM users
		WHERE id = $1
	`, userID)
	return scanUser(row)
}

func (s *Store) DeleteUser(ctx context.Context, userID int64) (bool, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, userID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func scanUser(row pgx.Row) (model.User, error) {
	var user model.User
	err := row.Scan(
		&user.ID,
		&user.Email,
		&user.FirstName,
		&user.LastName,
		&user.PasswordHash,
		&user.Admin,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	return user, err
}

// Teachers

func (s *Store) ListTeachers(ctx context.Context) ([]model.Teacher, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, first_name, last_name, created_at, updated_at
		FROM teachers
		ORDER BY id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	teachers := make([]model.Teacher, 0)
	for rows.Next() {
		var teacher model.Teacher
		if err := rows.Scan(&teacher.ID, &teacher.FirstName, &teacher.LastName, &teacher.CreatedAt, &teacher.UpdatedAt); err != nil {
			return nil, err
		}
		teachers = append(teachers, teacher)
	}
	return teachers, rows.Err()
}

func (s *Store) GetTeacherByID(ctx context.Context, teacherID int64) (model.Teacher, error) {
	var teacher model.Teacher
	row := s.pool.QueryRow(ctx, `
		SELECT id, first_name, last_name, created_at, updated_at
		FROM teachers
		WHERE id = $1
	`, teacherID)
	err := row.Scan(&teacher.ID, &teacher.FirstName, &teacher.LastName, &teacher.CreatedAt, &teacher.UpdatedAt)
	return teacher, err
}

func (s *Store) CreateTeacher(ctx context.Context, teacher model.Teacher) (model.Teacher, error) {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO teachers (first_name, last_name, created_at, updated_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`, teacher.FirstName, teacher.LastName, teacher.CreatedAt, teacher.UpdatedAt)
	err := row.Scan(&teacher.ID)
	return teacher, err
}

// Sessions

func (s *Store) ListSessions(ctx context.Context) ([]model.Session, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, name, description, date, teacher_id, created_at, updated_at
		FROM sessions
		ORDER BY id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sessions := make([]model.Session, 0)
	for rows.Next() {
		var session model.Session
		if err := rows.Scan(&session.ID, &session.Name, &session.Description, &session.Date, &session.TeacherID, &session.CreatedAt, &session.UpdatedAt); err != nil {
			return nil, err
		}
		sessions = append(sessions, session)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range sessions {
		users, err := s.listSessionUsers(ctx, sessions[i].ID)
		if err != nil {
			return nil, err
		}
		sessions[i].Users = users
	}
	return sessions, nil
}

func (s *Store) GetSessionByID(ctx context.Context, sessionID int64) (model.Session, error) {
	var session model.Session
	row := s.pool.QueryRow(ctx, `
		SELECT id, name, description, date, teacher_id, created_at, updated_at
		FROM sessions
		WHERE id = $1
	`, sessionID)
	err := row.Scan(&session.ID, &session.Name, &session.Description, &session.Date, &session.TeacherID, &session.CreatedAt, &session.UpdatedAt)
	if err != nil {
		return session, err
	}
	session.Users, err = s.listSessionUsers(ctx, session.ID)
	return session, err
}

func (s *Store) CreateSession(ctx context.Context, draft model.SessionDraft, now time.Time) (model.Session, error) {
	session := model.Session{
		Name:        draft.Name,
		Description: draft.Description,
		Date:        draft.Date,
		TeacherID:   draft.TeacherID,
		Users:       []int64{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	row := s.pool.QueryRow(ctx, `
		INSERT INTO sessions (name, description, date, teacher_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`, session.Name, session.Description, session.Date, session.TeacherID, session.CreatedAt, session.UpdatedAt)
	err := row.Scan(&session.ID)
	return session, err
}

func (s *Store) UpdateSession(ctx context.Context, sessionID int64, draft model.SessionDraft, now time.Time) (model.Session, error) {
	var session model.Session
	row := s.pool.QueryRow(ctx, `
		UPDATE sessions
		SET name = $1, description = $2, date = $3, teacher_id = $4, updated_at = $5
		WHERE id = $6
		RETURNING id, name, description, date, teacher_id, created_at, updated_at
	`, draft.Name, draft.Description, draft.Date, draft.TeacherID, now, sessionID)
	err := row.Scan(&session.ID, &session.Name, &session.Description, &session.Date, &session.TeacherID, &session.CreatedAt, &session.UpdatedAt)
	if err != nil {
		return session, err
	}
	session.Users, err = s.listSessionUsers(ctx, session.ID)
	return session, err
}

func (s *Store) DeleteSession(ctx context.Context, sessionID int64) (bool, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM sessions WHERE id = $1`, sessionID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// Roster

func (s *Store) AddParticipant(ctx context.Context, sessionID, userID int64, now time.Time) error {
	tag, err := s.pool.Exec(ctx, `
		INSERT INTO session_users (session_id, user_id, created_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (session_id, user_id) DO NOTHING
	`, sessionID, userID, now)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrAlreadyParticipating
	}
	return nil
}

// RemoveParticipant is a no-op success when the user is not on the roster.
func (s *Store) RemoveParticipant(ctx context.Context, sessionID, userID int64) error {
	_, err := s.pool.Exec(ctx, `
		DELETE FROM session_users
		WHERE session_id = $1 AND user_id = $2
	`, sessionID, userID)
	return err
}

// ListUserSessionIDs returns the ids of every session the user is on the
// roster of. Deleting a user cascades through session_users, so callers
// that cache sessions need this before the delete.
func (s *Store) ListUserSessionIDs(ctx context.Context, userID int64) ([]int64, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT session_id
		FROM session_users
		WHERE user_id = $1
		ORDER BY session_id
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sessionIDs := make([]int64, 0)
	for rows.Next() {
		var sessionID int64
		if err := rows.Scan(&sessionID); err != nil {
			return nil, err
		}
		sessionIDs = append(sessionIDs, sessionID)
	}
	return sessionIDs, rows.Err()
}

func (s *Store) listSessionUsers(ctx context.Context, sessionID int64) ([]int64, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT user_id
		FROM session_users
		WHERE session_id = $1
		ORDER BY user_id
	`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]int64, 0)
	for rows.Next() {
		var userID int64
		if err := rows.Scan(&userID); err != nil {
			return nil, err
		}
		users = append(users, userID)
	}
	return users, rows.Err()
}
