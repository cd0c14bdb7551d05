package model

import "time"

type User struct {
	ID           int64
	Email        string
	FirstName    string
	LastName     string
	PasswordHash string
	Admin        bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type Teacher struct {
	ID        int64
	FirstName string
	LastName  string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Session struct {
	ID          int64
	Name        string
	Description string
	Date        time.Time
	TeacherID   int64
	Users       []int64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// SessionDraft is the editable field set submitted to create or update a
// session. Ids and timestamps are server-assigned.
type SessionDraft struct {
	Name        string
	Description string
	Date        time.Time
	TeacherID   int64
}
