package workflow

import (
	"context"
	"strings"

	"yogastudio/internal/identity"
)

// Login authenticates and installs the identity in the directory store.
// A failed attempt sets the error flag and leaves the store untouched;
// there is no retry.
type Login struct {
	auth  AuthAPI
	store *identity.Store
	nav   Navigator

	Email    string
	Password string
	OnError  bool
}

func NewLogin(store *identity.Store, auth AuthAPI, nav Navigator) *Login {
	return &Login{auth: auth, store: store, nav: nav}
}

func (w *Login) CanSubmit() bool {
	return strings.TrimSpace(w.Email) != "" && w.Password != ""
}

func (w *Login) Submit(ctx context.Context) error {
	session, err := w.auth.Login(ctx, w.Email, w.Password)
	if err != nil {
		w.OnError = true
		return err
	}

	w.OnError = false
	w.store.LogIn(identity.Identity{
		ID:        session.ID,
		Username:  session.Username,
		FirstName: session.FirstName,
		LastName:  session.LastName,
		Admin:     session.Admin,
		Token:     session.Token,
	})
	w.nav.Navigate("/sessions")
	return nil
}
