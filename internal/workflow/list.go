package workflow

import (
	"context"

	"yogastudio/internal/identity"
	"yogastudio/internal/model"
)

type ListState int

const (
	ListLoading ListState = iota
	ListLoaded
)

// List shows every session. Admins get create and per-item edit
// affordances, members only the detail view.
type List struct {
	sessions SessionAPI
	authz    AuthorizationContext

	State    ListState
	Sessions []model.Session
	Err      bool
}

func NewList(store *identity.Store, sessions SessionAPI) *List {
	return &List{
		sessions: sessions,
		authz:    authorization(store),
		State:    ListLoading,
	}
}

// Enter fetches the session list. The workflow stays in Loading until the
// response arrives; there is no partial rendering.
func (w *List) Enter(ctx context.Context) error {
	sessions, err := w.sessions.ListSessions(ctx)
	if err != nil {
		w.Err = true
		return err
	}
	w.Sessions = sessions
	w.State = ListLoaded
	return nil
}

func (w *List) CanCreate() bool {
	return w.authz.IsAdmin()
}

func (w *List) CanEdit() bool {
	return w.authz.IsAdmin()
}
