package workflow

import (
	"context"

	"yogastudio/internal/identity"
	"yogastudio/internal/model"
)

// Me shows the current user's account. Members can delete their account;
// admin accounts render no delete affordance at all.
type Me struct {
	users    UserAPI
	store    *identity.Store
	nav      Navigator
	notifier Notifier
	authz    AuthorizationContext

	User model.User
	Err  bool
}

func NewMe(store *identity.Store, users UserAPI, nav Navigator, notifier Notifier) *Me {
	return &Me{
		users:    users,
		store:    store,
		nav:      nav,
		notifier: notifier,
		authz:    authorization(store),
	}
}

func (w *Me) Enter(ctx context.Context) error {
	user, err := w.users.GetUser(ctx, w.authz.UserID)
	if err != nil {
		w.Err = true
		return err
	}
	w.User = user
	return nil
}

func (w *Me) CanDelete() bool {
	return !w.authz.IsAdmin()
}

// Delete removes the account, logs the identity out and navigates to the
// root.
func (w *Me) Delete(ctx context.Context) error {
	if err := w.users.DeleteUser(ctx, w.authz.UserID); err != nil {
		w.Err = true
		return err
	}
	w.notifier.Notify("Your account has been deleted !")
	w.store.LogOut()
	w.nav.Navigate("/")
	return nil
}
