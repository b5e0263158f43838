package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"path"
	"strings"

	"github.com/google/uuid"
	"github.com/libris-lms/apiserver/internal/logging"
	"github.com/libris-lms/apiserver/internal/storage"
	"github.com/libris-lms/apiserver/types"
)

// MaxCoverBytes bounds the size of an uploaded cover image.
const MaxCoverBytes = 5 << 20

var coverExtensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
	"image/gif":  ".gif",
}

// BookRepository defines persistence operations for books.
type BookRepository interface {
	List(ctx context.Context, filter types.BookFilter) ([]types.Book, int, error)
	Get(ctx context.Context, id int) (types.Book, error)
	Create(ctx context.Context, book types.Book, actorID int) (types.Book, error)
	Update(ctx context.Context, id int, actorID int, mutate func(current types.Book) (types.Book, error)) (types.Book, error)
	SetCover(ctx context.Context, id int, key string, actorID int) (types.Book, error)
	Delete(ctx context.Context, id int) error
}

// CoverStorage stores book cover images.
type CoverStorage interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

// BookUpdate carries the editable fields of a book.
type BookUpdate struct {
	Title       string
	Description string
	AuthorID    int
	CategoryID  *int
	TotalCopies int
}

// BookService encapsulates book use-cases.
type BookService struct {
	repo   BookRepository
	covers CoverStorage
}

// NewBookService returns a BookService. covers may be nil, in which case
// cover operations fail with ErrStorageUnavailable.
func NewBookService(repo BookRepository, covers CoverStorage) *BookService {
	return &BookService{repo: repo, covers: covers}
}

func (s *BookService) List(ctx context.Context, filter types.BookFilter) ([]types.Book, int, error) {
	return s.repo.List(ctx, filter)
}

func (s *BookService) Get(ctx context.Context, id int) (types.Book, error) {
	book, err := s.repo.Get(ctx, id)
	return book, translate(err, "book")
}

// Create adds a title to the catalog with every copy available.
func (s *BookService) Create(ctx context.Context, actor types.User, input BookUpdate) (types.Book, error) {
	if err := requireAdmin(actor); err != nil {
		return types.Book{}, err
	}
	input, err := normalizeBook(input)
	if err != nil {
		return types.Book{}, err
	}

	created, err := s.repo.Create(ctx, types.Book{
		Title:       input.Title,
		Description: input.Description,
		AuthorID:    input.AuthorID,
		CategoryID:  input.CategoryID,
		TotalCopies: input.TotalCopies,
	}, actor.ID)
	return created, translate(err, "book")
}

// Update replaces the editable fields of a book. The new total may not drop
// below the number of copies currently lent out; available copies are
// recomputed from it.
func (s *BookService) Update(ctx context.Context, actor types.User, id int, input BookUpdate) (types.Book, error) {
	if err := requireAdmin(actor); err != nil {
		return types.Book{}, err
	}
	input, err := normalizeBook(input)
	if err != nil {
		return types.Book{}, err
	}

	updated, err := s.repo.Update(ctx, id, actor.ID, func(current types.Book) (types.Book, error) {
		borrowed := current.Borrowed()
		if input.TotalCopies < borrowed {
			return types.Book{}, validationError("total copies cannot be less than currently borrowed books (%d)", borrowed)
		}

		next := current
		next.Title = input.Title
		next.Description = input.Description
		next.AuthorID = input.AuthorID
		next.CategoryID = input.CategoryID
		next.TotalCopies = input.TotalCopies
		next.AvailableCopies = input.TotalCopies - borrowed
		return next, nil
	})
	return updated, translate(err, "book")
}

// Delete removes a book and its borrow history. The cover object is removed
// when storage is configured.
func (s *BookService) Delete(ctx context.Context, actor types.User, id int) error {
	if err := requireAdmin(actor); err != nil {
		return err
	}

	book, err := s.repo.Get(ctx, id)
	if err != nil {
		return translate(err, "book")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return translate(err, "book")
	}
	if book.CoverKey != nil {
		s.removeCover(ctx, *book.CoverKey)
	}
	return nil
}

// UploadCover stores a cover image for a book and replaces any previous one.
func (s *BookService) UploadCover(ctx context.Context, actor types.User, id int, r io.Reader, size int64, contentType string) (types.Book, error) {
	if err := requireAdmin(actor); err != nil {
		return types.Book{}, err
	}
	if s.covers == nil {
		return types.Book{}, ErrStorageUnavailable
	}

	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return types.Book{}, validationError("invalid content type")
	}
	ext, ok := coverExtensions[mediaType]
	if !ok {
		return types.Book{}, validationError("cover must be a jpeg, png, webp or gif image")
	}
	if size <= 0 || size > MaxCoverBytes {
		return types.Book{}, validationError("cover must be between 1 byte and %d bytes", MaxCoverBytes)
	}

	book, err := s.repo.Get(ctx, id)
	if err != nil {
		return types.Book{}, translate(err, "book")
	}

	key := coverKey(id, ext)
	if err := s.covers.Put(ctx, key, r, size, mediaType); err != nil {
		return types.Book{}, fmt.Errorf("upload cover: %w", err)
	}

	updated, err := s.repo.SetCover(ctx, id, key, actor.ID)
	if err != nil {
		s.removeCover(ctx, key)
		return types.Book{}, translate(err, "book")
	}
	if book.CoverKey != nil && *book.CoverKey != key {
		s.removeCover(ctx, *book.CoverKey)
	}
	return updated, nil
}

// Cover opens the cover image of a book. The caller closes the reader.
func (s *BookService) Cover(ctx context.Context, id int) (io.ReadCloser, string, error) {
	if s.covers == nil {
		return nil, "", ErrStorageUnavailable
	}

	book, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, "", translate(err, "book")
	}
	if book.CoverKey == nil {
		return nil, "", fmt.Errorf("cover %w", ErrNotFound)
	}

	rc, err := s.covers.Get(ctx, *book.CoverKey)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return nil, "", fmt.Errorf("cover %w", ErrNotFound)
		}
		return nil, "", fmt.Errorf("open cover: %w", err)
	}
	contentType := mime.TypeByExtension(path.Ext(*book.CoverKey))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return rc, contentType, nil
}

func (s *BookService) removeCover(ctx context.Context, key string) {
	if s.covers == nil {
		return
	}
	if err := s.covers.Delete(ctx, key); err != nil {
		logging.FromContext(ctx).Warn("remove cover object", "key", key, "error", err)
	}
}

func coverKey(bookID int, ext string) string {
	return fmt.Sprintf("covers/%d/%s%s", bookID, uuid.NewString(), ext)
}

func normalizeBook(input BookUpdate) (BookUpdate, error) {
	input.Title = strings.TrimSpace(input.Title)
	input.Description = strings.TrimSpace(input.Description)

	switch {
	case input.Title == "":
		return BookUpdate{}, validationError("title is required")
	case len(input.Title) > 200:
		return BookUpdate{}, validationError("title must be at most 200 characters")
	case input.AuthorID < 1:
		return BookUpdate{}, validationError("author is required")
	case input.TotalCopies < 0:
		return BookUpdate{}, validationError("total copies must not be negative")
	}
	if input.CategoryID != nil && *input.CategoryID < 1 {
		input.CategoryID = nil
	}
	return input, nil
}
