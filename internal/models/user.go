package models

import (
	"fmt"
	"net/mail"
	"time"
)

// User is an account whose calendars and cycle data are tracked.
type User struct {
	base
	Email     string
	Name      string
	Timezone  string
	deletedAt *time.Time
}

// NewUser creates a user with fresh timestamps; the ID is assigned on persistence.
func NewUser(email, name, timezone string) *User {
	if timezone == "" {
		timezone = "UTC"
	}
	return &User{base: newBase(), Email: email, Name: name, Timezone: timezone}
}

func (u *User) DeletedAt() *time.Time     { return u.deletedAt }
func (u *User) SetDeletedAt(t *time.Time) { u.deletedAt = t }

// Location resolves the user's timezone, defaulting to UTC.
func (u *User) Location() *time.Location {
	loc, err := time.LoadLocation(u.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func (u *User) Validate() error {
	if u.Email == "" {
		return fmt.Errorf("email is required")
	}
	if _, err := mail.ParseAddress(u.Email); err != nil {
		return fmt.Errorf("invalid email %q: %w", u.Email, err)
	}
	if _, err := time.LoadLocation(u.Timezone); err != nil {
		return fmt.Errorf("invalid timezone %q", u.Timezone)
	}
	return nil
}
