package services

import (
	"context"
	"strings"

	"github.com/libris-lms/apiserver/types"
)

// AuthorRepository defines persistence operations for authors.
type AuthorRepository interface {
	List(ctx context.Context, search, ordering string, offset, limit int) ([]types.Author, int, error)
	Get(ctx context.Context, id int) (types.Author, error)
	Create(ctx context.Context, author types.Author, actorID int) (types.Author, error)
	Update(ctx context.Context, author types.Author, actorID int) (types.Author, error)
	Delete(ctx context.Context, id int) error
}

// AuthorService encapsulates author use-cases.
type AuthorService struct {
	repo AuthorRepository
}

func NewAuthorService(repo AuthorRepository) *AuthorService {
	return &AuthorService{repo: repo}
}

func (s *AuthorService) List(ctx context.Context, search, ordering string, offset, limit int) ([]types.Author, int, error) {
	return s.repo.List(ctx, search, ordering, offset, limit)
}

func (s *AuthorService) Get(ctx context.Context, id int) (types.Author, error) {
	author, err := s.repo.Get(ctx, id)
	return author, translate(err, "author")
}

func (s *AuthorService) Create(ctx context.Context, actor types.User, author types.Author) (types.Author, error) {
	if err := requireAdmin(actor); err != nil {
		return types.Author{}, err
	}
	author, err := normalizeAuthor(author)
	if err != nil {
		return types.Author{}, err
	}
	created, err := s.repo.Create(ctx, author, actor.ID)
	return created, translate(err, "author")
}

func (s *AuthorService) Update(ctx context.Context, actor types.User, author types.Author) (types.Author, error) {
	if err := requireAdmin(actor); err != nil {
		return types.Author{}, err
	}
	author, err := normalizeAuthor(author)
	if err != nil {
		return types.Author{}, err
	}
	updated, err := s.repo.Update(ctx, author, actor.ID)
	return updated, translate(err, "author")
}

// Delete removes an author together with their books and the borrows of those books.
func (s *AuthorService) Delete(ctx context.Context, actor types.User, id int) error {
	if err := requireAdmin(actor); err != nil {
		return err
	}
	return translate(s.repo.Delete(ctx, id), "author")
}

func normalizeAuthor(author types.Author) (types.Author, error) {
	author.Name = strings.TrimSpace(author.Name)
	author.Bio = strings.TrimSpace(author.Bio)
	if err := validateName(author.Name, 100); err != nil {
		return types.Author{}, err
	}
	return author, nil
}
