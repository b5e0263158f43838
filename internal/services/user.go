package services

import (
	"context"
	"fmt"
	"net/mail"
	"strings"

	"github.com/libris-lms/apiserver/types"
)

// UserRepository defines persistence operations for users.
type UserRepository interface {
	GetByID(ctx context.Context, id int) (types.User, error)
	GetByUsername(ctx context.Context, username string) (types.User, error)
	GetByLogin(ctx context.Context, login string) (types.User, error)
	Create(ctx context.Context, user types.User) (types.User, error)
	ResetPenaltyPoints(ctx context.Context, id int, actorID int) (types.User, error)
	Delete(ctx context.Context, id int) error
}

// UserService encapsulates user use-cases.
type UserService struct {
	repo UserRepository
}

func NewUserService(repo UserRepository) *UserService {
	return &UserService{repo: repo}
}

func (s *UserService) GetByID(ctx context.Context, id int) (types.User, error) {
	user, err := s.repo.GetByID(ctx, id)
	return user, translate(err, "user")
}

func (s *UserService) GetByUsername(ctx context.Context, username string) (types.User, error) {
	user, err := s.repo.GetByUsername(ctx, types.NormalizeUsername(username))
	return user, translate(err, "user")
}

// GetByLogin resolves a login name, which may be a username, email or phone number.
func (s *UserService) GetByLogin(ctx context.Context, login string) (types.User, error) {
	user, err := s.repo.GetByLogin(ctx, strings.TrimSpace(login))
	return user, translate(err, "user")
}

// Create validates and stores a new account. PasswordHash must already be set.
func (s *UserService) Create(ctx context.Context, user types.User) (types.User, error) {
	user.Username = types.NormalizeUsername(user.Username)
	user.Email = strings.TrimSpace(user.Email)
	user.FirstName = strings.TrimSpace(user.FirstName)
	user.LastName = strings.TrimSpace(user.LastName)
	if user.Gender == "" {
		user.Gender = types.GenderMale
	}
	if user.Phone != nil {
		phone := strings.TrimSpace(*user.Phone)
		if phone == "" {
			user.Phone = nil
		} else {
			user.Phone = &phone
		}
	}

	if err := validateUser(user); err != nil {
		return types.User{}, err
	}

	created, err := s.repo.Create(ctx, user)
	if err != nil {
		return types.User{}, translate(err, "user")
	}
	return created, nil
}

// Delete removes a user account. Admin only.
func (s *UserService) Delete(ctx context.Context, actor types.User, id int) error {
	if err := requireAdmin(actor); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete user %d: %w", id, translate(err, "user"))
	}
	return nil
}

func validateUser(user types.User) error {
	switch {
	case user.Username == "":
		return validationError("username is required")
	case len(user.Username) > 100:
		return validationError("username must be at most 100 characters")
	case user.FirstName == "":
		return validationError("first name is required")
	case user.PasswordHash == "":
		return validationError("password is required")
	}
	if user.Email != "" {
		if _, err := mail.ParseAddress(user.Email); err != nil {
			return validationError("invalid email address")
		}
	}
	switch user.Gender {
	case types.GenderMale, types.GenderFemale, types.GenderOthers:
	default:
		return validationError("gender must be one of male, female, others")
	}
	return nil
}
