package workflow

import (
	"context"
	"errors"

	"yogastudio/internal/client"
	"yogastudio/internal/identity"
	"yogastudio/internal/model"
)

var errFake = errors.New("fake failure")

// fakeSessionAPI serves sessions from an in-memory map and counts calls so
// tests can assert what a workflow actually requested.
type fakeSessionAPI struct {
	sessions map[int64]model.Session
	fail     bool

	listCalls          int
	getCalls           int
	participateCalls   int
	unparticipateCalls int
	deleted            []int64
	created            []model.SessionDraft
	updated            map[int64]model.SessionDraft
}

func newFakeSessionAPI(sessions ...model.Session) *fakeSessionAPI {
	f := &fakeSessionAPI{
		sessions: make(map[int64]model.Session),
		updated:  make(map[int64]model.SessionDraft),
	}
	for _, s := range sessions {
		f.sessions[s.ID] = s
	}
	return f
}

func (f *fakeSessionAPI) ListSessions(ctx context.Context) ([]model.Session, error) {
	f.listCalls++
	if f.fail {
		return nil, errFake
	}
	out := make([]model.Session, 0, len(f.sessions))
	for _, s := range f.sessions {
		out = append(out, s)
	}
	return out, nil
}

func (f *fakeSessionAPI) GetSession(ctx context.Context, sessionID int64) (model.Session, error) {
	f.getCalls++
	if f.fail {
		return model.Session{}, errFake
	}
	s, ok := f.sessions[sessionID]
	if !ok {
		return model.Session{}, client.ErrNotFound
	}
	return s, nil
}

func (f *fakeSessionAPI) CreateSession(ctx context.Context, draft model.SessionDraft) (model.Session, error) {
	if f.fail {
		return model.Session{}, errFake
	}
	f.created = append(f.created, draft)
	return model.Session{ID: int64(len(f.sessions) + 1), Name: draft.Name}, nil
}

func (f *fakeSessionAPI) UpdateSession(ctx context.Context, sessionID int64, draft model.SessionDraft) (model.Session, error) {
	if f.fail {
		return model.Session{}, errFake
	}
	f.updated[sessionID] = draft
	return model.Session{ID: sessionID, Name: draft.Name}, nil
}

func (f *fakeSessionAPI) DeleteSession(ctx context.Context, sessionID int64) error {
	if f.fail {
		return errFake
	}
	f.deleted = append(f.deleted, sessionID)
	delete(f.sessions, sessionID)
	return nil
}

func (f *fakeSessionAPI) Participate(ctx context.Context, sessionID, userID int64) error {
	f.participateCalls++
	if f.fail {
		return errFake
	}
	s, ok := f.sessions[sessionID]
	if !ok {
		return client.ErrNotFound
	}
	for _, id := range s.Users {
		if id == userID {
			return client.ErrBadRequest
		}
	}
	s.Users = append(s.Users, userID)
	f.sessions[sessionID] = s
	return nil
}

func (f *fakeSessionAPI) Unparticipate(ctx context.Context, sessionID, userID int64) error {
	f.unparticipateCalls++
	if f.fail {
		return errFake
	}
	s, ok := f.sessions[sessionID]
	if !ok {
		return client.ErrNotFound
	}
	users := s.Users[:0]
	for _, id := range s.Users {
		if id != userID {
			users = append(users, id)
		}
	}
	s.Users = users
	f.sessions[sessionID] = s
	return nil
}

type fakeTeacherAPI struct {
	teachers map[int64]model.Teacher
	fail     bool

	listCalls int
	getCalls  int
}

func newFakeTeacherAPI(teachers ...model.Teacher) *fakeTeacherAPI {
	f := &fakeTeacherAPI{teachers: make(map[int64]model.Teacher)}
	for _, teacher := range teachers {
		f.teachers[teacher.ID] = teacher
	}
	return f
}

func (f *fakeTeacherAPI) ListTeachers(ctx context.Context) ([]model.Teacher, error) {
	f.listCalls++
	if f.fail {
		return nil, errFake
	}
	out := make([]model.Teacher, 0, len(f.teachers))
	for _, teacher := range f.teachers {
		out = append(out, teacher)
	}
	return out, nil
}

func (f *fakeTeacherAPI) GetTeacher(ctx context.Context, teacherID int64) (model.Teacher, error) {
	f.getCalls++
	if f.fail {
		return model.Teacher{}, errFake
	}
	teacher, ok := f.teachers[teacherID]
	if !ok {
		return model.Teacher{}, client.ErrNotFound
	}
	return teacher, nil
}

type fakeUserAPI struct {
	users map[int64]model.User
	fail  bool

	deleted []int64
}

func newFakeUserAPI(users ...model.User) *fakeUserAPI {
	f := &fakeUserAPI{users: make(map[int64]model.User)}
	for _, user := range users {
		f.users[user.ID] = user
	}
	return f
}

func (f *fakeUserAPI) GetUser(ctx context.Context, userID int64) (model.User, error) {
	if f.fail {
		return model.User{}, errFake
	}
	user, ok := f.users[userID]
	if !ok {
		return model.User{}, client.ErrNotFound
	}
	return user, nil
}

func (f *fakeUserAPI) DeleteUser(ctx context.Context, userID int64) error {
	if f.fail {
		return errFake
	}
	f.deleted = append(f.deleted, userID)
	delete(f.users, userID)
	return nil
}

type fakeAuthAPI struct {
	session client.AuthSession
	fail    bool

	registered []string
}

func (f *fakeAuthAPI) Login(ctx context.Context, email, password string) (client.AuthSession, error) {
	if f.fail {
		return client.AuthSession{}, client.ErrUnauthorized
	}
	return f.session, nil
}

func (f *fakeAuthAPI) Register(ctx context.Context, email, firstName, lastName, password string) error {
	if f.fail {
		return client.ErrBadRequest
	}
	f.registered = append(f.registered, email)
	return nil
}

type fakeNavigator struct {
	routes []string
}

func (f *fakeNavigator) Navigate(route string) {
	f.routes = append(f.routes, route)
}

func (f *fakeNavigator) last() string {
	if len(f.routes) == 0 {
		return ""
	}
	return f.routes[len(f.routes)-1]
}

type fakeNotifier struct {
	messages []string
}

func (f *fakeNotifier) Notify(message string) {
	f.messages = append(f.messages, message)
}

func memberStore(id int64) *identity.Store {
	store := identity.NewStore()
	store.LogIn(identity.Identity{ID: id, Username: "member@studio.com", Admin: false, Token: "t"})
	return store
}

func adminStore(id int64) *identity.Store {
	store := identity.NewStore()
	store.LogIn(identity.Identity{ID: id, Username: "yoga@studio.com", Admin: true, Token: "t"})
	return store
}
