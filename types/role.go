package types

// Role is a named grouping of users.
type Role struct {
	ID   int    `json:"id" db:"id"`
	Name string `json:"name" db:"name"`

	Audit
}
