package types

// Author represents a book author.
type Author struct {
	// ID is the unique identifier of the author.
	ID int `json:"id" db:"id"`

	// Name is the author's display name.
	Name string `json:"name" db:"name"`

	// Bio is an optional free-form biography.
	Bio string `json:"bio" db:"bio"`

	Audit
}
