package workflow

import (
	"context"
	"net/mail"
	"strings"
)

// Register creates an account and moves on to the login page. A rejected
// registration sets the error flag and stays put.
type Register struct {
	auth AuthAPI
	nav  Navigator

	Email     string
	FirstName string
	LastName  string
	Password  string
	OnError   bool
}

func NewRegister(auth AuthAPI, nav Navigator) *Register {
	return &Register{auth: auth, nav: nav}
}

func (w *Register) CanSubmit() bool {
	if strings.TrimSpace(w.FirstName) == "" || strings.TrimSpace(w.LastName) == "" || w.Password == "" {
		return false
	}
	email := strings.TrimSpace(w.Email)
	if email == "" {
		return false
	}
	addr, err := mail.ParseAddress(email)
	return err == nil && addr.Address == email
}

func (w *Register) Submit(ctx context.Context) error {
	if err := w.auth.Register(ctx, w.Email, w.FirstName, w.LastName, w.Password); err != nil {
		w.OnError = true
		return err
	}
	w.OnError = false
	w.nav.Navigate("/login")
	return nil
}
