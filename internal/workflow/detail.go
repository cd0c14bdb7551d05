package workflow

import (
	"context"

	"yogastudio/internal/identity"
	"yogastudio/internal/model"
)

type DetailState int

const (
	DetailLoading DetailState = iota
	DetailReady
)

// Detail shows one session with its teacher and roster. The teacher fetch
// depends on the session response, so the two are always sequential.
type Detail struct {
	sessions  SessionAPI
	teachers  TeacherAPI
	nav       Navigator
	notifier  Notifier
	authz     AuthorizationContext
	sessionID int64

	State   DetailState
	Session model.Session
	Teacher model.Teacher
	Err     bool
}

func NewDetail(store *identity.Store, sessions SessionAPI, teachers TeacherAPI, nav Navigator, notifier Notifier, sessionID int64) *Detail {
	return &Detail{
		sessions:  sessions,
		teachers:  teachers,
		nav:       nav,
		notifier:  notifier,
		authz:     authorization(store),
		sessionID: sessionID,
		State:     DetailLoading,
	}
}

func (w *Detail) Enter(ctx context.Context) error {
	return w.refresh(ctx)
}

// IsParticipating is always derived from the last fetched roster, never
// from a locally mutated copy.
func (w *Detail) IsParticipating() bool {
	for _, userID := range w.Session.Users {
		if userID == w.authz.UserID {
			return true
		}
	}
	return false
}

func (w *Detail) CanDelete() bool {
	return w.authz.IsAdmin()
}

func (w *Detail) CanToggleParticipation() bool {
	return !w.authz.IsAdmin()
}

// Participate adds the current user to the roster, then re-fetches the
// session so the roster state comes from the authoritative copy.
func (w *Detail) Participate(ctx context.Context) error {
	if err := w.sessions.Participate(ctx, w.sessionID, w.authz.UserID); err != nil {
		w.Err = true
		return err
	}
	return w.refresh(ctx)
}

func (w *Detail) Unparticipate(ctx context.Context) error {
	if err := w.sessions.Unparticipate(ctx, w.sessionID, w.authz.UserID); err != nil {
		w.Err = true
		return err
	}
	return w.refresh(ctx)
}

func (w *Detail) Delete(ctx context.Context) error {
	if err := w.sessions.DeleteSession(ctx, w.sessionID); err != nil {
		w.Err = true
		return err
	}
	w.notifier.Notify("Session deleted !")
	w.nav.Navigate("/sessions")
	return nil
}

func (w *Detail) refresh(ctx context.Context) error {
	session, err := w.sessions.GetSession(ctx, w.sessionID)
	if err != nil {
		w.Err = true
		return err
	}
	teacher, err := w.teachers.GetTeacher(ctx, session.TeacherID)
	if err != nil {
		w.Err = true
		return err
	}
	w.Session = session
	w.Teacher = teacher
	w.State = DetailReady
	return nil
}
