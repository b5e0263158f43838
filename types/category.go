package types

// Category groups books by subject. Names are unique.
type Category struct {
	ID   int    `json:"id" db:"id"`
	Name string `json:"name" db:"name"`

	Audit
}
