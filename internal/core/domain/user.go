package domain

import (
	"regexp"
	"strings"
	"time"
)

type Role string

const (
	RoleAdmin   Role = "admin"
	RoleManager Role = "manager"
	RoleViewer  Role = "viewer"
)

func ParseRole(raw string) (Role, error) {
	switch Role(raw) {
	case RoleAdmin, RoleManager, RoleViewer:
		return Role(raw), nil
	}
	return "", invalid("role", "must be one of admin, manager, viewer")
}

type User struct {
	ID           int64
	Email        string
	Username     string
	PasswordHash string
	FullName     string
	Role         Role
	Active       bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// UserDraft is the registration input before hashing.
type UserDraft struct {
	Email    string
	Username string
	Password string
	FullName string
	Role     Role
}

var (
	emailPattern    = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
	usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9._-]+$`)
)

const minPasswordLength = 8

func (d UserDraft) Validate() error {
	if !emailPattern.MatchString(d.Email) {
		return invalid("email", "must be a valid email address")
	}
	if n := len(strings.TrimSpace(d.Username)); n < 3 || n > 50 {
		return invalid("username", "must be between 3 and 50 characters")
	}
	if !usernamePattern.MatchString(d.Username) {
		return invalid("username", "may only contain letters, digits, dots, dashes and underscores")
	}
	if len(d.Password) < minPasswordLength {
		return invalid("password", "must be at least 8 characters")
	}
	if d.Role != "" {
		if _, err := ParseRole(string(d.Role)); err != nil {
			return err
		}
	}
	return nil
}

// Session is the identity extracted from a validated token. It is passed
// explicitly through request context; there is no ambient current-user state.
type Session struct {
	UserID    int64
	Email     string
	Username  string
	Role      Role
	TokenID   string
	ExpiresAt time.Time
}

// Actor identifies who performed a mutation, as recorded in the audit trail.
type Actor struct {
	ID   int64
	Name string
}

func (s Session) Actor() Actor {
	return Actor{ID: s.UserID, Name: s.Username}
}
