package types

import (
	"strings"
	"time"
)

// Gender values accepted for a user profile.
const (
	GenderMale   = "male"
	GenderFemale = "female"
	GenderOthers = "others"
)

// User represents a library member or staff account.
// It contains identity, authorization, penalty and audit metadata.
type User struct {
	// ID is the unique identifier of the user.
	ID int `json:"id" db:"id"`

	// Username is the unique login name. It is stored lower-cased with
	// spaces replaced by underscores.
	Username string `json:"username" db:"username"`

	// Email is the user's email address. Reminders are only sent when set.
	Email string `json:"email" db:"email"`

	// FirstName is the user's given name.
	FirstName string `json:"first_name" db:"first_name"`

	// LastName is the user's family name.
	LastName string `json:"last_name" db:"last_name"`

	// Gender is one of "male", "female" or "others".
	Gender string `json:"gender" db:"gender"`

	// Phone is an optional unique phone number usable as a login name.
	Phone *string `json:"phone,omitempty" db:"phone"`

	// RoleID references the user's role, if any.
	RoleID *int `json:"role_id,omitempty" db:"role_id"`

	// IsActive reports whether the account may log in.
	IsActive bool `json:"is_active" db:"is_active"`

	// IsAdmin grants elevated privilege (catalog mutation, access to other
	// users' borrows and penalties).
	IsAdmin bool `json:"is_admin" db:"is_admin"`

	// PenaltyPoints is the accumulated number of days returned late.
	// Only the return workflow increases it; only an administrator resets it.
	PenaltyPoints int `json:"penalty_points" db:"penalty_points"`

	// PasswordHash stores the hashed representation of the user's password.
	// This field is never exposed in API responses.
	PasswordHash string `json:"-" db:"password_hash"`

	Audit
}

// NormalizeUsername lower-cases the username and replaces spaces with underscores.
func NormalizeUsername(username string) string {
	return strings.ToLower(strings.ReplaceAll(strings.TrimSpace(username), " ", "_"))
}

// PenaltySummary is the penalty view of a user.
type PenaltySummary struct {
	ID            int    `json:"id" db:"id"`
	Username      string `json:"username" db:"username"`
	PenaltyPoints int    `json:"penalty_points" db:"penalty_points"`
}

// Audit holds creation and modification metadata shared by all records.
type Audit struct {
	// CreatedAt is the timestamp at which the record was created.
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	// UpdatedAt is the timestamp of the most recent update.
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`

	// CreatedBy is the acting user that created the record, if known.
	CreatedBy *int `json:"created_by,omitempty" db:"created_by"`

	// UpdatedBy is the acting user that last modified the record, if known.
	UpdatedBy *int `json:"updated_by,omitempty" db:"updated_by"`
}
