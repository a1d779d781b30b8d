package user

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"go.uber.org/zap"

	domain "user-records-service/internal/domain/user"
	pkgerrors "user-records-service/pkg/errors"

	"github.com/go-playground/validator/v10"
)

// Repository defines the interface for user data access operations.
// A Repository is bound to a single session and must not outlive it.
type Repository interface {
	Create(ctx context.Context, u *domain.User) (int64, error)          // Create a new user, returns the generated ID
	GetByID(ctx context.Context, id int64) (*domain.User, error)        // Retrieve user by ID
	GetByEmail(ctx context.Context, email string) (*domain.User, error) // Retrieve user by email, nil when absent
	Update(ctx context.Context, u *domain.User) (int64, error)          // Replace an existing user
	Delete(ctx context.Context, id int64) (int64, error)                // Delete user by ID
	List(ctx context.Context) ([]domain.User, error)                    // List every user
}

// SessionFactory opens a scoped unit of work.
// fn receives a Repository bound to the session; the session is committed
// when fn returns nil, rolled back otherwise, and always released.
type SessionFactory interface {
	WithSession(ctx context.Context, fn func(repo Repository) error) error
}

// Service implements the record operations on top of a SessionFactory.
type Service struct {
	sessions SessionFactory      // Source of per-request sessions
	log      *zap.Logger         // Logger for structured logging
	validate *validator.Validate // Validator for request validation
}

// New creates a new Service with the provided session factory and logger.
func New(s SessionFactory, log *zap.Logger) *Service {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		if name := f.Tag.Get("field"); name != "" {
			return name
		}
		return f.Name
	})

	return &Service{sessions: s, log: log, validate: v}
}

// formatValidationError converts validator.ValidationErrors into a human-readable error.
func formatValidationError(err error) error {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return pkgerrors.NewValidationError("", err.Error())
	}

	messages := make([]string, 0, len(validationErrors))
	for _, e := range validationErrors {
		switch e.Tag() {
		case "required":
			messages = append(messages, fmt.Sprintf("%s is required", e.Field()))
		case "gt":
			messages = append(messages, fmt.Sprintf("%s must be greater than %s", e.Field(), e.Param()))
		case "lt":
			messages = append(messages, fmt.Sprintf("%s must be less than %s", e.Field(), e.Param()))
		case "min":
			messages = append(messages, fmt.Sprintf("%s must be at least %s characters", e.Field(), e.Param()))
		case "max":
			messages = append(messages, fmt.Sprintf("%s must be at most %s characters", e.Field(), e.Param()))
		default:
			messages = append(messages, fmt.Sprintf("%s is invalid", e.Field()))
		}
	}
	return pkgerrors.NewValidationError("", strings.Join(messages, ", "))
}

func notFound(id int64) error {
	return pkgerrors.NewNotFoundError("user", fmt.Sprintf("User ID %d does not exist", id))
}

func emailTaken() error {
	return pkgerrors.NewAlreadyExistsError("user", "Email already registered")
}

// ListUsers returns every user, unfiltered and unpaginated.
func (uc *Service) ListUsers(ctx context.Context) (*ListUsersResponse, error) {
	var domainUsers []domain.User
	err := uc.sessions.WithSession(ctx, func(repo Repository) error {
		var err error
		domainUsers, err = repo.List(ctx)
		return err
	})
	if err != nil {
		uc.log.Error("failed to list users", zap.Error(err))
		return nil, pkgerrors.NewInternalError("failed to list users", err)
	}

	users := make([]User, len(domainUsers))
	for i := range domainUsers {
		users[i] = toDTO(&domainUsers[i])
	}

	return &ListUsersResponse{Users: users}, nil
}

// CreateUser creates a new user after validating the request and checking email uniqueness.
// The lookup and the insert share one session; the store's unique index settles races.
func (uc *Service) CreateUser(ctx context.Context, in CreateUserRequest) (*User, error) {
	uc.log.Info("creating user", zap.String("name", in.Name), zap.String("email", in.Email))

	if err := uc.validate.Struct(in); err != nil {
		uc.log.Warn("validate failed", zap.Error(err))
		return nil, formatValidationError(err)
	}

	u := &domain.User{
		Name:            in.Name,
		Email:           in.Email,
		Age:             in.Age,
		Recommendations: normalizeRecommendations(in.Recommendations),
		ZipCode:         in.ZipCode,
	}

	err := uc.sessions.WithSession(ctx, func(repo Repository) error {
		existingUser, err := repo.GetByEmail(ctx, in.Email)
		if err != nil {
			return err
		}
		if existingUser != nil {
			return domain.ErrEmailTaken
		}

		id, err := repo.Create(ctx, u)
		if err != nil {
			return err
		}
		u.ID = id
		return nil
	})
	if err != nil {
		if errors.Is(err, domain.ErrEmailTaken) {
			uc.log.Warn("email already exists", zap.String("email", in.Email))
			return nil, emailTaken()
		}
		uc.log.Error("failed to create user", zap.String("email", in.Email), zap.Error(err))
		return nil, pkgerrors.NewInternalError("failed to create user", err)
	}

	dto := toDTO(u)
	return &dto, nil
}

// UpdateUser replaces every field of an existing user.
// Email uniqueness is not re-checked here; a collision is rejected by the store.
func (uc *Service) UpdateUser(ctx context.Context, in UpdateUserRequest) (*User, error) {
	uc.log.Info("updating user", zap.Int64("id", in.ID), zap.String("name", in.Name), zap.String("email", in.Email))

	if err := uc.validate.Struct(in); err != nil {
		uc.log.Warn("validate failed", zap.Error(err))
		return nil, formatValidationError(err)
	}

	u := &domain.User{
		ID:              in.ID,
		Name:            in.Name,
		Email:           in.Email,
		Age:             in.Age,
		Recommendations: normalizeRecommendations(in.Recommendations),
		ZipCode:         in.ZipCode,
	}

	err := uc.sessions.WithSession(ctx, func(repo Repository) error {
		_, err := repo.Update(ctx, u)
		return err
	})
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrNotFound):
			uc.log.Warn("user not found for update", zap.Int64("id", in.ID))
			return nil, notFound(in.ID)
		case errors.Is(err, domain.ErrEmailTaken):
			uc.log.Warn("email already exists", zap.String("email", in.Email), zap.Int64("id", in.ID))
			return nil, emailTaken()
		}
		uc.log.Error("failed to update user", zap.Int64("id", in.ID), zap.Error(err))
		return nil, pkgerrors.NewInternalError("failed to update user", err)
	}

	dto := toDTO(u)
	return &dto, nil
}

// DeleteUser permanently removes a user.
func (uc *Service) DeleteUser(ctx context.Context, in DeleteUserRequest) (*DeleteUserResponse, error) {
	uc.log.Info("deleting user", zap.Int64("id", in.ID))

	err := uc.sessions.WithSession(ctx, func(repo Repository) error {
		_, err := repo.Delete(ctx, in.ID)
		return err
	})
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			uc.log.Warn("user not found for delete", zap.Int64("id", in.ID))
			return nil, notFound(in.ID)
		}
		uc.log.Error("failed to delete user", zap.Int64("id", in.ID), zap.Error(err))
		return nil, pkgerrors.NewInternalError("failed to delete user", err)
	}

	return &DeleteUserResponse{
		ID:      in.ID,
		Message: fmt.Sprintf("User ID %d has been deleted", in.ID),
	}, nil
}

// GetRecommendations returns the decoded recommendations of a user.
func (uc *Service) GetRecommendations(ctx context.Context, in GetRecommendationsRequest) (*GetRecommendationsResponse, error) {
	var u *domain.User
	err := uc.sessions.WithSession(ctx, func(repo Repository) error {
		var err error
		u, err = repo.GetByID(ctx, in.ID)
		return err
	})
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			uc.log.Warn("user not found for recommendations", zap.Int64("id", in.ID))
			return nil, notFound(in.ID)
		}
		uc.log.Error("failed to get recommendations", zap.Int64("id", in.ID), zap.Error(err))
		return nil, pkgerrors.NewInternalError("failed to get recommendations", err)
	}

	return &GetRecommendationsResponse{
		Recommendations: normalizeRecommendations(u.Recommendations),
	}, nil
}

// normalizeRecommendations returns a non-nil copy of recs.
func normalizeRecommendations(recs []string) []string {
	return append(make([]string, 0, len(recs)), recs...)
}

func toDTO(u *domain.User) User {
	return User{
		ID:              u.ID,
		Name:            u.Name,
		Email:           u.Email,
		Age:             u.Age,
		Recommendations: normalizeRecommendations(u.Recommendations),
		ZipCode:         u.ZipCode,
	}
}
