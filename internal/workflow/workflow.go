// Package workflow models the view-bound state machines of the yoga studio
// application: list, detail, form, account, login and register. Each
// workflow reads the identity store once at entry, talks to the REST client
// through narrow interfaces, and reports navigation and confirmations
// through the Navigator and Notifier boundaries.
package workflow

import (
	"context"

	"yogastudio/internal/client"
	"yogastudio/internal/identity"
	"yogastudio/internal/model"
)

// SessionAPI is the session repository boundary.
type SessionAPI interface {
	ListSessions(ctx context.Context) ([]model.Session, error)
	GetSession(ctx context.Context, sessionID int64) (model.Session, error)
	CreateSession(ctx context.Context, draft model.SessionDraft) (model.Session, error)
	UpdateSession(ctx context.Context, sessionID int64, draft model.SessionDraft) (model.Session, error)
	DeleteSession(ctx context.Context, sessionID int64) error
	Participate(ctx context.Context, sessionID, userID int64) error
	Unparticipate(ctx context.Context, sessionID, userID int64) error
}

// TeacherAPI is the read-only teacher lookup boundary.
type TeacherAPI interface {
	ListTeachers(ctx context.Context) ([]model.Teacher, error)
	GetTeacher(ctx context.Context, teacherID int64) (model.Teacher, error)
}

// UserAPI is the user account boundary.
type UserAPI interface {
	GetUser(ctx context.Context, userID int64) (model.User, error)
	DeleteUser(ctx context.Context, userID int64) error
}

// AuthAPI is the authentication boundary.
type AuthAPI interface {
	Login(ctx context.Context, email, password string) (client.AuthSession, error)
	Register(ctx context.Context, email, firstName, lastName, password string) error
}

// Navigator is the router boundary. Routes are application paths such as
// "/sessions" or "/login".
type Navigator interface {
	Navigate(route string)
}

// Notifier is the confirmation (snackbar) boundary.
type Notifier interface {
	Notify(message string)
}

type Role int

const (
	RoleMember Role = iota
	RoleAdmin
)

// AuthorizationContext is the role view a workflow queries once at entry
// instead of re-deriving admin checks per action.
type AuthorizationContext struct {
	UserID int64
	Role   Role
}

func (a AuthorizationContext) IsAdmin() bool {
	return a.Role == RoleAdmin
}

func authorization(store *identity.Store) AuthorizationContext {
	current, ok := store.Current()
	if !ok {
		return AuthorizationContext{}
	}
	role := RoleMember
	if current.Admin {
		role = RoleAdmin
	}
	return AuthorizationContext{UserID: current.ID, Role: role}
}
