package types

// Book represents a catalog title and its physical copy counts.
//
// AvailableCopies never exceeds TotalCopies and never drops below zero.
// The difference between the two equals the number of open borrows.
type Book struct {
	// ID is the unique identifier of the book.
	ID int `json:"id" db:"id"`

	// Title is the book's title. Titles are not unique.
	Title string `json:"title" db:"title"`

	// Description is an optional summary.
	Description string `json:"description" db:"description"`

	// AuthorID references the book's author. Deleting the author deletes the book.
	AuthorID int `json:"author" db:"author_id"`

	// AuthorName is the joined author name, populated on reads.
	AuthorName string `json:"author_name" db:"author_name"`

	// CategoryID references the book's category. It is cleared when the
	// category is deleted.
	CategoryID *int `json:"category" db:"category_id"`

	// CategoryName is the joined category name, populated on reads.
	CategoryName *string `json:"category_name" db:"category_name"`

	// TotalCopies is the number of copies the library owns.
	TotalCopies int `json:"total_copies" db:"total_copies"`

	// AvailableCopies is the number of copies currently on the shelf.
	AvailableCopies int `json:"available_copies" db:"available_copies"`

	// CoverKey is the object storage key of the cover image, if uploaded.
	CoverKey *string `json:"cover_key,omitempty" db:"cover_key"`

	Audit
}

// Borrowed returns the number of copies currently lent out.
func (b Book) Borrowed() int {
	return b.TotalCopies - b.AvailableCopies
}

// IsAvailable reports whether at least one copy is on the shelf.
func (b Book) IsAvailable() bool {
	return b.AvailableCopies > 0
}

// BookFilter narrows a book listing.
type BookFilter struct {
	Search        string
	AuthorID      int
	CategoryID    int
	AvailableOnly bool
	Ordering      string
	Offset        int
	Limit         int
}
