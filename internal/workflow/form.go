package workflow

import (
	"context"
	"strings"
	"time"

	"yogastudio/internal/identity"
	"yogastudio/internal/model"
)

type FormMode int

const (
	FormCreate FormMode = iota
	FormUpdate
)

// Form creates or updates a session. The mode is selected by the presence
// of a route id at entry. Members never see the form: entry redirects them
// to the session list before any network call is made.
type Form struct {
	sessions SessionAPI
	teachers TeacherAPI
	nav      Navigator
	notifier Notifier
	authz    AuthorizationContext

	Mode       FormMode
	Redirected bool
	Teachers   []model.Teacher
	Draft      model.SessionDraft
	Err        bool

	sessionID int64
}

// NewForm builds a create-mode form when sessionID is nil and an
// update-mode form otherwise.
func NewForm(store *identity.Store, sessions SessionAPI, teachers TeacherAPI, nav Navigator, notifier Notifier, sessionID *int64) *Form {
	form := &Form{
		sessions: sessions,
		teachers: teachers,
		nav:      nav,
		notifier: notifier,
		authz:    authorization(store),
		Mode:     FormCreate,
	}
	if sessionID != nil {
		form.Mode = FormUpdate
		form.sessionID = *sessionID
	}
	return form
}

func (w *Form) Enter(ctx context.Context) error {
	if !w.authz.IsAdmin() {
		w.Redirected = true
		w.nav.Navigate("/sessions")
		return nil
	}

	teachers, err := w.teachers.ListTeachers(ctx)
	if err != nil {
		w.Err = true
		return err
	}
	w.Teachers = teachers

	if w.Mode == FormUpdate {
		session, err := w.sessions.GetSession(ctx, w.sessionID)
		if err != nil {
			w.Err = true
			return err
		}
		w.Draft = model.SessionDraft{
			Name:        session.Name,
			Description: session.Description,
			Date:        session.Date,
			TeacherID:   session.TeacherID,
		}
	}
	return nil
}

func (w *Form) SetName(name string)               { w.Draft.Name = name }
func (w *Form) SetDescription(description string) { w.Draft.Description = description }
func (w *Form) SetDate(date time.Time)            { w.Draft.Date = date }
func (w *Form) ClearDate()                        { w.Draft.Date = time.Time{} }
func (w *Form) SetTeacher(teacherID int64)        { w.Draft.TeacherID = teacherID }

// CanSubmit re-evaluates the draft on every call: all four fields must be
// non-empty for submission to be enabled.
func (w *Form) CanSubmit() bool {
	return strings.TrimSpace(w.Draft.Name) != "" &&
		strings.TrimSpace(w.Draft.Description) != "" &&
		!w.Draft.Date.IsZero() &&
		w.Draft.TeacherID > 0
}

// Submit persists the draft. A redirected form never reaches the network,
// and an incomplete draft is refused here as well as in the view.
func (w *Form) Submit(ctx context.Context) error {
	if w.Redirected || !w.CanSubmit() {
		return nil
	}
	if w.Mode == FormUpdate {
		if _, err := w.sessions.UpdateSession(ctx, w.sessionID, w.Draft); err != nil {
			w.Err = true
			return err
		}
		w.notifier.Notify("Session updated !")
	} else {
		if _, err := w.sessions.CreateSession(ctx, w.Draft); err != nil {
			w.Err = true
			return err
		}
		w.notifier.Notify("Session created !")
	}
	w.nav.Navigate("/sessions")
	return nil
}
