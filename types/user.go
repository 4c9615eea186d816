package types

import "time"

// DefaultRole is granted to every user at creation.
const DefaultRole = "ROLE_USER"

// User represents a panel account.
// It contains identity, profile, and audit metadata.
type User struct {
	// ID is the unique identifier of the user, assigned by the store.
	ID int `json:"id" db:"id"`

	// Email is the user's email address.
	Email string `json:"email" db:"email"`

	// Name is the user's display name.
	Name string `json:"name" db:"name"`

	// PasswordHash stores the hashed representation of the user's password.
	// This field is never exposed in API responses.
	PasswordHash string `json:"-" db:"password"`

	// Activity is an opaque, caller-supplied activity flag.
	Activity int `json:"activity" db:"activity"`

	// Lang is the preferred language code (e.g., "pl", "en").
	Lang string `json:"lang" db:"lang"`

	// ValidTill is the moment the account stops being valid.
	ValidTill time.Time `json:"valid_till" db:"valid_till"`

	// RegisterDate is the timestamp when the account was created.
	// It is assigned once by the store and never changed.
	RegisterDate time.Time `json:"register_date" db:"register_date"`

	// Roles holds the granted role names. Never exposed in API responses.
	Roles []string `json:"-" db:"roles"`
}

// UserView is the projection of a User returned by the API.
type UserView struct {
	ID           int      `json:"id"`
	Email        string   `json:"email"`
	Name         string   `json:"name"`
	Activity     int      `json:"activity"`
	Lang         string   `json:"lang"`
	ValidTill    DateTime `json:"valid_till"`
	RegisterDate DateTime `json:"register_date"`
}

// View projects the user onto its public fields.
func (u User) View() UserView {
	return UserView{
		ID:           u.ID,
		Email:        u.Email,
		Name:         u.Name,
		Activity:     u.Activity,
		Lang:         u.Lang,
		ValidTill:    DateTime(u.ValidTill),
		RegisterDate: DateTime(u.RegisterDate),
	}
}

// Views projects each user in order.
func Views(users []User) []UserView {
	views := make([]UserView, 0, len(users))
	for _, user := range users {
		views = append(views, user.View())
	}
	return views
}
